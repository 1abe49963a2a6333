package controllers

import (
	"log"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/sujit-baniya/flash"
	"gorm.io/gorm"

	"github.com/nimbushost/nimbushost/app/repository"
	"github.com/nimbushost/nimbushost/internal/pkg/billing"
	"github.com/nimbushost/nimbushost/internal/pkg/env"
	"github.com/nimbushost/nimbushost/internal/pkg/usercontext"
)

// Shared controller dependencies, wired once by Setup before the router
// registers any handler.
var (
	db              *gorm.DB
	repos           *repository.Repositories
	planRegistry    *billing.PlanRegistry
	billingRepo     billing.Repository
	billingService  *billing.Service
	checkoutBuilder *billing.CheckoutBuilder
)

// Setup wires the controller layer. Called once at startup after the
// database connection is established.
func Setup(database *gorm.DB) error {
	db = database
	repos = repository.NewRepositories(database)
	repository.InitializeFactory(database)

	registry, err := billing.NewPlanRegistryFromEnv()
	if err != nil {
		return err
	}
	planRegistry = registry

	billingRepo = billing.NewRepository(database)
	billingService = billing.NewServiceFromDB(database, registry, billing.NewPanelTargetFromEnv())
	checkoutBuilder = billing.NewCheckoutBuilderFromEnv()

	log.Printf("controllers: wired with %d registered plan prices", len(registry.Entries()))
	return nil
}

// render wraps c.Render and injects the data every template expects: the
// request user context and any pending flash message.
func render(c *fiber.Ctx, name string, data fiber.Map) error {
	uc := usercontext.GetUserContext(c)
	bind := fiber.Map{
		"IsLoggedIn": uc.IsLoggedIn,
		"IsAdmin":    uc.IsAdmin,
		"Username":   uc.Username,
		"AppName":    env.GetEnv("APP_NAME", "NimbusHost"),
		"Flash":      flash.Get(c),
	}
	for k, v := range data {
		bind[k] = v
	}
	return c.Render(name, bind, "layouts/main")
}

// baseURL returns the externally visible URL of this deployment, used to
// build checkout redirect targets.
func baseURL() string {
	return strings.TrimRight(env.GetEnv("PUBLIC_DOMAIN", "http://localhost:8080"), "/")
}

// pageParam reads a 1-based ?page= query value and converts it to an offset.
func pageParam(c *fiber.Ctx, perPage int) (page, offset int) {
	page, err := strconv.Atoi(c.Query("page", "1"))
	if err != nil || page < 1 {
		page = 1
	}
	return page, (page - 1) * perPage
}
