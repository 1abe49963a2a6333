package controllers

import (
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/sujit-baniya/flash"
	"gorm.io/gorm"

	"github.com/nimbushost/nimbushost/app/models"
)

// HandleAdminPages lists all CMS pages.
func HandleAdminPages(c *fiber.Ctx) error {
	pages, err := repos.Page.GetAll()
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).SendString("pages unavailable")
	}
	return render(c, "admin/pages/index", fiber.Map{
		"Title": "Pages",
		"Pages": pages,
	})
}

// HandleAdminPageCreate renders the create form.
func HandleAdminPageCreate(c *fiber.Ctx) error {
	return render(c, "admin/pages/form", fiber.Map{
		"Title": "New page",
		"Page":  &models.Page{IsActive: true},
	})
}

// HandleAdminPageStore persists a new page.
func HandleAdminPageStore(c *fiber.Ctx) error {
	page := pageFromForm(c, &models.Page{})

	if err := page.Validate(); err != nil {
		return flash.WithError(c, fiber.Map{
			"error": "Please fill in title, slug and content.",
		}).Redirect("/admin/pages/create", fiber.StatusSeeOther)
	}

	exists, err := repos.Page.SlugExists(page.Slug)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).SendString("pages unavailable")
	}
	if exists {
		return flash.WithError(c, fiber.Map{
			"error": "A page with this slug already exists.",
		}).Redirect("/admin/pages/create", fiber.StatusSeeOther)
	}

	if err := repos.Page.Create(page); err != nil {
		return c.Status(fiber.StatusInternalServerError).SendString("pages unavailable")
	}
	return flash.WithSuccess(c, fiber.Map{
		"success": "Page created.",
	}).Redirect("/admin/pages", fiber.StatusSeeOther)
}

// HandleAdminPageEdit renders the edit form.
func HandleAdminPageEdit(c *fiber.Ctx) error {
	page, err := adminPageFromParam(c)
	if err != nil {
		return handleNotFound(c)
	}
	return render(c, "admin/pages/form", fiber.Map{
		"Title": "Edit page",
		"Page":  page,
	})
}

// HandleAdminPageUpdate saves changes to an existing page.
func HandleAdminPageUpdate(c *fiber.Ctx) error {
	page, err := adminPageFromParam(c)
	if err != nil {
		return handleNotFound(c)
	}

	pageFromForm(c, page)
	if err := page.Validate(); err != nil {
		return flash.WithError(c, fiber.Map{
			"error": "Please fill in title, slug and content.",
		}).Redirect("/admin/pages/edit/"+strconv.Itoa(int(page.ID)), fiber.StatusSeeOther)
	}

	exists, err := repos.Page.SlugExistsExceptID(page.Slug, page.ID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).SendString("pages unavailable")
	}
	if exists {
		return flash.WithError(c, fiber.Map{
			"error": "A page with this slug already exists.",
		}).Redirect("/admin/pages/edit/"+strconv.Itoa(int(page.ID)), fiber.StatusSeeOther)
	}

	if err := repos.Page.Update(page); err != nil {
		return c.Status(fiber.StatusInternalServerError).SendString("pages unavailable")
	}
	return flash.WithSuccess(c, fiber.Map{
		"success": "Page updated.",
	}).Redirect("/admin/pages", fiber.StatusSeeOther)
}

// HandleAdminPageDelete removes a page.
func HandleAdminPageDelete(c *fiber.Ctx) error {
	page, err := adminPageFromParam(c)
	if err != nil {
		return handleNotFound(c)
	}
	if err := repos.Page.Delete(page.ID); err != nil {
		return c.Status(fiber.StatusInternalServerError).SendString("pages unavailable")
	}
	return flash.WithSuccess(c, fiber.Map{
		"success": "Page deleted.",
	}).Redirect("/admin/pages", fiber.StatusSeeOther)
}

func adminPageFromParam(c *fiber.Ctx) (*models.Page, error) {
	id, err := strconv.Atoi(c.Params("id"))
	if err != nil || id < 1 {
		return nil, gorm.ErrRecordNotFound
	}
	return repos.Page.GetByID(uint(id))
}

func pageFromForm(c *fiber.Ctx, page *models.Page) *models.Page {
	page.Title = strings.TrimSpace(c.FormValue("title"))
	page.Slug = strings.ToLower(strings.TrimSpace(c.FormValue("slug")))
	page.Content = c.FormValue("content")
	page.MetaDescription = strings.TrimSpace(c.FormValue("meta_description"))
	page.IsActive = c.FormValue("is_active") == "on" || c.FormValue("is_active") == "true"
	return page
}
