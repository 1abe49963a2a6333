package repository

import (
	"github.com/nimbushost/nimbushost/app/models"
	"gorm.io/gorm"
)

// newsRepository implements the NewsRepository interface.
type newsRepository struct {
	db *gorm.DB
}

// NewNewsRepository creates a new news repository instance.
func NewNewsRepository(db *gorm.DB) NewsRepository {
	return &newsRepository{db: db}
}

func (r *newsRepository) Create(news *models.News) error {
	return r.db.Create(news).Error
}

func (r *newsRepository) GetByID(id uint) (*models.News, error) {
	var news models.News
	err := r.db.Preload("User").First(&news, id).Error
	if err != nil {
		return nil, err
	}
	return &news, nil
}

func (r *newsRepository) GetBySlug(slug string) (*models.News, error) {
	var news models.News
	err := r.db.Preload("User").Where("slug = ?", slug).First(&news).Error
	if err != nil {
		return nil, err
	}
	return &news, nil
}

func (r *newsRepository) GetPublished(offset, limit int) ([]models.News, error) {
	var news []models.News
	err := r.db.Preload("User").Where("published = ?", true).
		Order("created_at DESC").Offset(offset).Limit(limit).Find(&news).Error
	return news, err
}

func (r *newsRepository) GetAll(offset, limit int) ([]models.News, error) {
	var news []models.News
	err := r.db.Preload("User").Order("created_at DESC").
		Offset(offset).Limit(limit).Find(&news).Error
	return news, err
}

func (r *newsRepository) Update(news *models.News) error {
	return r.db.Save(news).Error
}

func (r *newsRepository) Delete(id uint) error {
	return r.db.Delete(&models.News{}, id).Error
}

func (r *newsRepository) Count() (int64, error) {
	var count int64
	err := r.db.Model(&models.News{}).Count(&count).Error
	return count, err
}
