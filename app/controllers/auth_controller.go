package controllers

import (
	"errors"
	"log"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sujit-baniya/flash"
	"gorm.io/gorm"

	"github.com/nimbushost/nimbushost/app/models"
	"github.com/nimbushost/nimbushost/internal/pkg/constants"
	"github.com/nimbushost/nimbushost/internal/pkg/mail"
	"github.com/nimbushost/nimbushost/internal/pkg/session"
	"github.com/nimbushost/nimbushost/internal/pkg/usercontext"
)

// HandleAuthLogin renders the login form.
func HandleAuthLogin(c *fiber.Ctx) error {
	if usercontext.IsLoggedIn(c) {
		return c.Redirect(constants.UserBillingRoute, fiber.StatusSeeOther)
	}
	return render(c, "auth/login", fiber.Map{
		"Title": "Login",
	})
}

// HandleAuthLoginPost checks the credentials and opens a session.
func HandleAuthLoginPost(c *fiber.Ctx) error {
	email := strings.TrimSpace(strings.ToLower(c.FormValue("email")))
	password := c.FormValue("password")

	fail := func() error {
		return flash.WithError(c, fiber.Map{
			"error": "Invalid email or password.",
		}).Redirect(constants.LoginRoute, fiber.StatusSeeOther)
	}

	if email == "" || password == "" {
		return fail()
	}

	user, err := repos.User.GetByEmail(email)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			log.Printf("auth: user lookup failed: %v", err)
		}
		return fail()
	}
	if !user.IsActive() || !user.CheckPassword(password) {
		return fail()
	}

	if err := openSession(c, user); err != nil {
		log.Printf("auth: session open failed for user %d: %v", user.ID, err)
		return fail()
	}

	now := time.Now()
	user.LastLoginAt = &now
	if err := repos.User.Update(user); err != nil {
		log.Printf("auth: last login update failed for user %d: %v", user.ID, err)
	}

	return c.Redirect(constants.UserBillingRoute, fiber.StatusSeeOther)
}

// HandleAuthRegister renders the registration form.
func HandleAuthRegister(c *fiber.Ctx) error {
	if usercontext.IsLoggedIn(c) {
		return c.Redirect(constants.UserBillingRoute, fiber.StatusSeeOther)
	}
	return render(c, "auth/register", fiber.Map{
		"Title": "Create account",
	})
}

// HandleAuthRegisterPost creates a new account and logs it in.
func HandleAuthRegisterPost(c *fiber.Ctx) error {
	name := strings.TrimSpace(c.FormValue("name"))
	email := strings.TrimSpace(strings.ToLower(c.FormValue("email")))
	password := c.FormValue("password")

	user, err := models.CreateUser(name, email, password)
	if err != nil {
		return flash.WithError(c, fiber.Map{
			"error": "Please check your input and try again.",
		}).Redirect(constants.RegisterRoute, fiber.StatusSeeOther)
	}

	if _, err := repos.User.GetByEmail(email); err == nil {
		return flash.WithError(c, fiber.Map{
			"error": "An account with this email already exists.",
		}).Redirect(constants.RegisterRoute, fiber.StatusSeeOther)
	}

	if err := repos.User.Create(user); err != nil {
		log.Printf("auth: user create failed: %v", err)
		return flash.WithError(c, fiber.Map{
			"error": "Registration failed, please try again.",
		}).Redirect(constants.RegisterRoute, fiber.StatusSeeOther)
	}

	go func(to, name string) {
		if err := mail.SendWelcomeMail(to, name); err != nil {
			log.Printf("auth: welcome mail to %s failed: %v", to, err)
		}
	}(user.Email, user.Name)

	if err := openSession(c, user); err != nil {
		log.Printf("auth: session open failed for user %d: %v", user.ID, err)
		return c.Redirect(constants.LoginRoute, fiber.StatusSeeOther)
	}
	return c.Redirect(constants.UserBillingRoute, fiber.StatusSeeOther)
}

// HandleAuthLogout destroys the session.
func HandleAuthLogout(c *fiber.Ctx) error {
	sess, err := session.GetSessionStore().Get(c)
	if err == nil {
		if err := sess.Destroy(); err != nil {
			log.Printf("auth: session destroy failed: %v", err)
		}
	}
	return c.Redirect(constants.HomeRoute, fiber.StatusSeeOther)
}

func openSession(c *fiber.Ctx, user *models.User) error {
	sess, err := session.GetSessionStore().Get(c)
	if err != nil {
		return err
	}
	sess.Set(usercontext.KeyUserID, user.ID)
	sess.Set(usercontext.KeyUsername, user.Name)
	sess.Set(usercontext.KeyIsAdmin, user.Role == models.ROLE_ADMIN)
	return sess.Save()
}
