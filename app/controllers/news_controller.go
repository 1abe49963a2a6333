package controllers

import (
	"errors"
	"html/template"
	"log"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/nimbushost/nimbushost/internal/pkg/metrics/counter"
	"github.com/nimbushost/nimbushost/internal/pkg/usercontext"
	"github.com/nimbushost/nimbushost/internal/pkg/utils"
)

const newsPerPage = 10

// HandleNewsList renders the published news feed, newest first.
func HandleNewsList(c *fiber.Ctx) error {
	page, offset := pageParam(c, newsPerPage)

	articles, err := repos.News.GetPublished(offset, newsPerPage)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).SendString("news unavailable")
	}

	total, err := repos.News.Count()
	if err != nil {
		total = 0
	}

	return render(c, "news/index", fiber.Map{
		"Title":    "News",
		"Articles": articles,
		"Page":     page,
		"HasMore":  int64(offset+newsPerPage) < total,
	})
}

// HandleNewsShow renders one article by slug. Unpublished articles are only
// visible to admins.
func HandleNewsShow(c *fiber.Ctx) error {
	article, err := repos.News.GetBySlug(c.Params("slug"))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return handleNotFound(c)
		}
		return c.Status(fiber.StatusInternalServerError).SendString("news unavailable")
	}

	if !article.Published && !usercontext.IsAdmin(c) {
		return handleNotFound(c)
	}

	if article.Published {
		if err := counter.AddNewsView(article.ID); err != nil {
			log.Printf("news: view count for article %d failed: %v", article.ID, err)
		}
	}

	return render(c, "news/show", fiber.Map{
		"Title":        article.Title,
		"Article":      article,
		"Content":      template.HTML(utils.ProcessHTMLContent(article.Content)),
		"AuthorAvatar": utils.GetGravatarURL(article.User.Email, 80),
	})
}
