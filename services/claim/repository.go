package claim

import (
	"context"

	"gorm.io/gorm"
)

// ListParams pages through a customer's attempts, newest first.
type ListParams struct {
	BeforeID int64
	Limit    int
}

// Repository describes database operations available for claim attempts.
type Repository interface {
	Create(ctx context.Context, attempt *Attempt) error
	ListByCustomer(ctx context.Context, customerID string, params ListParams) ([]Attempt, error)
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository returns a gorm backed Repository implementation.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) Create(ctx context.Context, attempt *Attempt) error {
	if r == nil || r.db == nil {
		return gorm.ErrInvalidDB
	}
	return r.db.WithContext(ctx).Create(attempt).Error
}

func (r *gormRepository) ListByCustomer(ctx context.Context, customerID string, params ListParams) ([]Attempt, error) {
	if r == nil || r.db == nil {
		return nil, gorm.ErrInvalidDB
	}

	query := r.db.WithContext(ctx).Model(&Attempt{}).
		Where("customer_id = ?", customerID)

	if params.BeforeID > 0 {
		query = query.Where("attempt_id < ?", params.BeforeID)
	}
	if params.Limit > 0 {
		query = query.Limit(params.Limit)
	}

	query = query.Order("attempt_id DESC")

	var attempts []Attempt
	if err := query.Find(&attempts).Error; err != nil {
		return nil, err
	}
	return attempts, nil
}
