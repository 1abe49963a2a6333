package repository

import (
	"github.com/nimbushost/nimbushost/app/models"
)

// UserRepository defines the interface for user-related database operations.
type UserRepository interface {
	Create(user *models.User) error
	GetByID(id uint) (*models.User, error)
	GetByEmail(email string) (*models.User, error)
	Update(user *models.User) error
	Delete(id uint) error
	List(offset, limit int) ([]models.User, error)
	Count() (int64, error)
}

// PageRepository defines the interface for CMS page operations.
type PageRepository interface {
	Create(page *models.Page) error
	GetByID(id uint) (*models.Page, error)
	GetBySlug(slug string) (*models.Page, error)
	GetAll() ([]models.Page, error)
	GetActive() ([]models.Page, error)
	Update(page *models.Page) error
	Delete(id uint) error
	SlugExists(slug string) (bool, error)
	SlugExistsExceptID(slug string, id uint) (bool, error)
}

// NewsRepository defines the interface for news-related operations.
type NewsRepository interface {
	Create(news *models.News) error
	GetByID(id uint) (*models.News, error)
	GetBySlug(slug string) (*models.News, error)
	GetPublished(offset, limit int) ([]models.News, error)
	GetAll(offset, limit int) ([]models.News, error)
	Update(news *models.News) error
	Delete(id uint) error
	Count() (int64, error)
}

// Repositories bundles all repository implementations.
type Repositories struct {
	User UserRepository
	Page PageRepository
	News NewsRepository
}
