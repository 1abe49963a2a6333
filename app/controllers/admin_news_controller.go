package controllers

import (
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/sujit-baniya/flash"
	"gorm.io/gorm"

	"github.com/nimbushost/nimbushost/app/models"
	"github.com/nimbushost/nimbushost/internal/pkg/usercontext"
)

const adminNewsPerPage = 25

// HandleAdminNews lists all articles including unpublished drafts.
func HandleAdminNews(c *fiber.Ctx) error {
	page, offset := pageParam(c, adminNewsPerPage)

	articles, err := repos.News.GetAll(offset, adminNewsPerPage)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).SendString("news unavailable")
	}
	total, err := repos.News.Count()
	if err != nil {
		total = 0
	}

	return render(c, "admin/news/index", fiber.Map{
		"Title":    "News",
		"Articles": articles,
		"Page":     page,
		"HasMore":  int64(offset+adminNewsPerPage) < total,
	})
}

// HandleAdminNewsCreate renders the create form.
func HandleAdminNewsCreate(c *fiber.Ctx) error {
	return render(c, "admin/news/form", fiber.Map{
		"Title":   "New article",
		"Article": &models.News{},
	})
}

// HandleAdminNewsStore persists a new article authored by the current admin.
func HandleAdminNewsStore(c *fiber.Ctx) error {
	article := newsFromForm(c, &models.News{
		UserID: uint64(usercontext.GetUserID(c)),
	})

	if article.Title == "" || article.Slug == "" || article.Content == "" {
		return flash.WithError(c, fiber.Map{
			"error": "Please fill in title, slug and content.",
		}).Redirect("/admin/news/create", fiber.StatusSeeOther)
	}

	if err := repos.News.Create(article); err != nil {
		return flash.WithError(c, fiber.Map{
			"error": "Saving failed, the slug may already be in use.",
		}).Redirect("/admin/news/create", fiber.StatusSeeOther)
	}
	return flash.WithSuccess(c, fiber.Map{
		"success": "Article created.",
	}).Redirect("/admin/news", fiber.StatusSeeOther)
}

// HandleAdminNewsEdit renders the edit form.
func HandleAdminNewsEdit(c *fiber.Ctx) error {
	article, err := adminNewsFromParam(c)
	if err != nil {
		return handleNotFound(c)
	}
	return render(c, "admin/news/form", fiber.Map{
		"Title":   "Edit article",
		"Article": article,
	})
}

// HandleAdminNewsUpdate saves changes to an article.
func HandleAdminNewsUpdate(c *fiber.Ctx) error {
	article, err := adminNewsFromParam(c)
	if err != nil {
		return handleNotFound(c)
	}

	newsFromForm(c, article)
	if err := repos.News.Update(article); err != nil {
		return flash.WithError(c, fiber.Map{
			"error": "Saving failed, the slug may already be in use.",
		}).Redirect("/admin/news", fiber.StatusSeeOther)
	}
	return flash.WithSuccess(c, fiber.Map{
		"success": "Article updated.",
	}).Redirect("/admin/news", fiber.StatusSeeOther)
}

// HandleAdminNewsDelete removes an article.
func HandleAdminNewsDelete(c *fiber.Ctx) error {
	article, err := adminNewsFromParam(c)
	if err != nil {
		return handleNotFound(c)
	}
	if err := repos.News.Delete(uint(article.ID)); err != nil {
		return c.Status(fiber.StatusInternalServerError).SendString("news unavailable")
	}
	return flash.WithSuccess(c, fiber.Map{
		"success": "Article deleted.",
	}).Redirect("/admin/news", fiber.StatusSeeOther)
}

func adminNewsFromParam(c *fiber.Ctx) (*models.News, error) {
	id, err := strconv.Atoi(c.Params("id"))
	if err != nil || id < 1 {
		return nil, gorm.ErrRecordNotFound
	}
	return repos.News.GetByID(uint(id))
}

func newsFromForm(c *fiber.Ctx, article *models.News) *models.News {
	article.Title = strings.TrimSpace(c.FormValue("title"))
	article.Slug = strings.ToLower(strings.TrimSpace(c.FormValue("slug")))
	article.Content = c.FormValue("content")
	article.Published = c.FormValue("published") == "on" || c.FormValue("published") == "true"
	return article
}
