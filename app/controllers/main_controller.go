package controllers

import (
	"errors"
	"html/template"
	"sort"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/nimbushost/nimbushost/app/models"
	"github.com/nimbushost/nimbushost/internal/pkg/entitlements"
	"github.com/nimbushost/nimbushost/internal/pkg/utils"
)

// planDisplay is the pricing page view of one purchasable plan.
type planDisplay struct {
	PlanName     string
	MonthPriceID string
	YearPriceID  string
	Limits       entitlements.Entitlements
}

// HandleStart renders the marketing landing page.
func HandleStart(c *fiber.Ctx) error {
	return render(c, "home", fiber.Map{
		"Title": "Managed web hosting",
		"Plans": pricingPlans(),
	})
}

// HandlePricing renders the pricing page from the configured plan catalog.
func HandlePricing(c *fiber.Ctx) error {
	return render(c, "pricing", fiber.Map{
		"Title": "Pricing",
		"Plans": pricingPlans(),
	})
}

// HandleContact renders the contact page.
func HandleContact(c *fiber.Ctx) error {
	return render(c, "contact", fiber.Map{
		"Title": "Contact",
	})
}

// HandlePage serves a CMS page by slug.
func HandlePage(c *fiber.Ctx) error {
	slug := c.Params("slug")

	page, err := repos.Page.GetBySlug(slug)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return handleNotFound(c)
		}
		return c.Status(fiber.StatusInternalServerError).SendString("page unavailable")
	}

	return render(c, "page", fiber.Map{
		"Title":           page.Title,
		"MetaDescription": page.MetaDescription,
		"Page":            page,
		"Content":         template.HTML(utils.ProcessHTMLContent(page.Content)),
	})
}

func handleNotFound(c *fiber.Ctx) error {
	return c.Status(fiber.StatusNotFound).Render("errors/404", fiber.Map{
		"Title": "Page not found",
	}, "layouts/main")
}

// pricingPlans folds the registry entries into one row per plan with its
// monthly and yearly price ids.
func pricingPlans() []planDisplay {
	byPlan := map[string]*planDisplay{}
	for _, e := range planRegistry.Entries() {
		p, ok := byPlan[e.PlanName]
		if !ok {
			p = &planDisplay{PlanName: e.PlanName, Limits: entitlements.ForPlan(e.PlanName)}
			byPlan[e.PlanName] = p
		}
		switch e.Interval {
		case models.BillingIntervalMonth:
			p.MonthPriceID = e.PriceID
		case models.BillingIntervalYear:
			p.YearPriceID = e.PriceID
		}
	}

	plans := make([]planDisplay, 0, len(byPlan))
	for _, p := range byPlan {
		plans = append(plans, *p)
	}
	sort.Slice(plans, func(i, j int) bool { return plans[i].PlanName < plans[j].PlanName })
	return plans
}
