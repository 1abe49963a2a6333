package repository

import (
	"github.com/nimbushost/nimbushost/app/models"
	"gorm.io/gorm"
)

// pageRepository implements the PageRepository interface.
type pageRepository struct {
	db *gorm.DB
}

// NewPageRepository creates a new page repository instance.
func NewPageRepository(db *gorm.DB) PageRepository {
	return &pageRepository{db: db}
}

func (r *pageRepository) Create(page *models.Page) error {
	return r.db.Create(page).Error
}

func (r *pageRepository) GetByID(id uint) (*models.Page, error) {
	var page models.Page
	err := r.db.First(&page, id).Error
	if err != nil {
		return nil, err
	}
	return &page, nil
}

func (r *pageRepository) GetBySlug(slug string) (*models.Page, error) {
	var page models.Page
	err := r.db.Where("slug = ? AND is_active = ?", slug, true).First(&page).Error
	if err != nil {
		return nil, err
	}
	return &page, nil
}

func (r *pageRepository) GetAll() ([]models.Page, error) {
	var pages []models.Page
	err := r.db.Order("created_at DESC").Find(&pages).Error
	return pages, err
}

func (r *pageRepository) GetActive() ([]models.Page, error) {
	var pages []models.Page
	err := r.db.Where("is_active = ?", true).Order("created_at DESC").Find(&pages).Error
	return pages, err
}

func (r *pageRepository) Update(page *models.Page) error {
	return r.db.Save(page).Error
}

func (r *pageRepository) Delete(id uint) error {
	return r.db.Delete(&models.Page{}, id).Error
}

func (r *pageRepository) SlugExists(slug string) (bool, error) {
	var count int64
	err := r.db.Model(&models.Page{}).Where("slug = ?", slug).Count(&count).Error
	return count > 0, err
}

func (r *pageRepository) SlugExistsExceptID(slug string, id uint) (bool, error) {
	var count int64
	err := r.db.Model(&models.Page{}).Where("slug = ? AND id != ?", slug, id).Count(&count).Error
	return count > 0, err
}
