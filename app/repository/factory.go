package repository

import (
	"sync"

	"gorm.io/gorm"
)

// Factory manages repository instances and ensures they are singletons.
type Factory struct {
	db    *gorm.DB
	repos *Repositories
	once  sync.Once
}

// NewFactory creates a new repository factory.
func NewFactory(db *gorm.DB) *Factory {
	return &Factory{db: db}
}

// NewRepositories builds all repository implementations from one DB handle.
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		User: NewUserRepository(db),
		Page: NewPageRepository(db),
		News: NewNewsRepository(db),
	}
}

// GetRepositories returns a singleton instance of all repositories.
func (f *Factory) GetRepositories() *Repositories {
	f.once.Do(func() {
		f.repos = NewRepositories(f.db)
	})
	return f.repos
}

// GetUserRepository returns the user repository instance.
func (f *Factory) GetUserRepository() UserRepository {
	return f.GetRepositories().User
}

// GetPageRepository returns the page repository instance.
func (f *Factory) GetPageRepository() PageRepository {
	return f.GetRepositories().Page
}

// GetNewsRepository returns the news repository instance.
func (f *Factory) GetNewsRepository() NewsRepository {
	return f.GetRepositories().News
}

// Global factory instance.
var globalFactory *Factory
var factoryOnce sync.Once

// InitializeFactory initializes the global repository factory.
func InitializeFactory(db *gorm.DB) {
	factoryOnce.Do(func() {
		globalFactory = NewFactory(db)
	})
}

// GetGlobalFactory returns the global repository factory.
func GetGlobalFactory() *Factory {
	return globalFactory
}
