// internal/domain/product/service.go
package product

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
)

// ErrProductNotFound is returned when a product lookup misses.
var ErrProductNotFound = errors.New("product not found")

// ListRequest carries catalog listing filters.
type ListRequest struct {
	CategoryID *uint
	BrandID    *uint
	Search     string
	Limit      int
	Offset     int
}

// Service handles catalog reads. Catalog writes happen through the
// back-office tooling, not this API.
type Service struct {
	db *gorm.DB
}

// NewService creates a new product service
func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

// List returns active products matching the filters.
func (s *Service) List(ctx context.Context, req ListRequest) ([]Product, int64, error) {
	if req.Limit <= 0 || req.Limit > 100 {
		req.Limit = 20
	}
	if req.Offset < 0 {
		req.Offset = 0
	}

	query := s.db.WithContext(ctx).Model(&Product{}).Where("is_active = ?", true)
	if req.CategoryID != nil {
		query = query.Where("category_id = ?", *req.CategoryID)
	}
	if req.BrandID != nil {
		query = query.Where("brand_id = ?", *req.BrandID)
	}
	if req.Search != "" {
		search := "%" + req.Search + "%"
		query = query.Where("name ILIKE ? OR description ILIKE ?", search, search)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count products: %w", err)
	}

	var products []Product
	err := query.Preload("Category").Preload("Brand").
		Order("created_at DESC").
		Limit(req.Limit).Offset(req.Offset).
		Find(&products).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list products: %w", err)
	}

	return products, total, nil
}

// GetBySlug loads an active product with its variants.
func (s *Service) GetBySlug(ctx context.Context, slug string) (*Product, error) {
	var prod Product
	err := s.db.WithContext(ctx).
		Preload("Category").
		Preload("Brand").
		Preload("Variants", "is_active = ?", true).
		Where("slug = ? AND is_active = ?", slug, true).
		First(&prod).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrProductNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load product: %w", err)
	}
	return &prod, nil
}

// ListCategories returns active categories ordered for display.
func (s *Service) ListCategories(ctx context.Context) ([]Category, error) {
	var categories []Category
	err := s.db.WithContext(ctx).
		Where("is_active = ?", true).
		Order("sort_order ASC, name ASC").
		Find(&categories).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	return categories, nil
}
