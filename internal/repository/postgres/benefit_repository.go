package postgres

import (
	"context"
	"errors"
	"loyaltyStamp/domain"

	"gorm.io/gorm"
)

type BenefitRepository struct {
	DB *gorm.DB
}

func NewBenefitRepository(db *gorm.DB) *BenefitRepository {
	return &BenefitRepository{
		DB: db,
	}
}

func (r *BenefitRepository) Create(ctx context.Context, benefit *domain.Benefit) error {
	if err := r.DB.WithContext(ctx).Create(benefit).Error; err != nil {
		return err
	}

	return nil
}

func (r *BenefitRepository) FindByID(ctx context.Context, id string) (domain.Benefit, error) {
	var benefit domain.Benefit

	err := r.DB.WithContext(ctx).Where("id = ?", id).First(&benefit).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Benefit{}, errors.New("benefit not found")
		}
		return domain.Benefit{}, err
	}

	return benefit, nil
}

func (r *BenefitRepository) FindByCustomer(ctx context.Context, customerID uint) ([]domain.Benefit, error) {
	var benefits []domain.Benefit

	err := r.DB.WithContext(ctx).
		Where("customer_id = ?", customerID).
		Order("created_at DESC").
		Find(&benefits).Error
	if err != nil {
		return nil, err
	}

	return benefits, nil
}

func (r *BenefitRepository) Update(ctx context.Context, benefit *domain.Benefit) error {
	row := r.DB.WithContext(ctx).
		Model(&domain.Benefit{}).
		Where("id = ?", benefit.ID).
		Select("active", "used").
		Updates(benefit)
	if row.Error != nil {
		return row.Error
	}

	if row.RowsAffected == 0 {
		return errors.New("benefit not found")
	}

	return nil
}
