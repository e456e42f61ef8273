package postgres

import (
	"context"
	"loyaltyStamp/domain"

	"gorm.io/gorm"
)

type RedemptionLogRepository struct {
	DB *gorm.DB
}

func NewRedemptionLogRepository(db *gorm.DB) *RedemptionLogRepository {
	return &RedemptionLogRepository{
		DB: db,
	}
}

func (r *RedemptionLogRepository) Create(ctx context.Context, log *domain.RedemptionLog) error {
	if err := r.DB.WithContext(ctx).Create(log).Error; err != nil {
		return err
	}

	return nil
}

func (r *RedemptionLogRepository) FindByCustomer(ctx context.Context, customerID uint) ([]domain.RedemptionLog, error) {
	var logs []domain.RedemptionLog

	err := r.DB.WithContext(ctx).
		Where("customer_id = ?", customerID).
		Order("confirmed_at DESC").
		Find(&logs).Error
	if err != nil {
		return nil, err
	}

	return logs, nil
}
