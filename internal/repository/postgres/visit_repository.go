package postgres

import (
	"context"
	"errors"
	"loyaltyStamp/domain"

	"gorm.io/gorm"
)

type VisitRepository struct {
	DB *gorm.DB
}

func NewVisitRepository(db *gorm.DB) *VisitRepository {
	return &VisitRepository{
		DB: db,
	}
}

func (r *VisitRepository) Create(ctx context.Context, record *domain.VisitRecord) error {
	if err := r.DB.WithContext(ctx).Create(record).Error; err != nil {
		return err
	}

	return nil
}

func (r *VisitRepository) FindByID(ctx context.Context, id string) (domain.VisitRecord, error) {
	var record domain.VisitRecord

	err := r.DB.WithContext(ctx).Where("id = ?", id).First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.VisitRecord{}, errors.New("visit record not found")
		}
		return domain.VisitRecord{}, err
	}

	return record, nil
}

func (r *VisitRepository) FindByCustomer(ctx context.Context, customerID uint) ([]domain.VisitRecord, error) {
	var records []domain.VisitRecord

	err := r.DB.WithContext(ctx).
		Where("customer_id = ?", customerID).
		Order("scanned_at DESC").
		Find(&records).Error
	if err != nil {
		return nil, err
	}

	return records, nil
}

func (r *VisitRepository) FindUnsynced(ctx context.Context) ([]domain.VisitRecord, error) {
	var records []domain.VisitRecord

	err := r.DB.WithContext(ctx).
		Where("sync_state <> ?", domain.SyncSent).
		Order("scanned_at ASC").
		Find(&records).Error
	if err != nil {
		return nil, err
	}

	return records, nil
}

func (r *VisitRepository) FindSentByCustomer(ctx context.Context, customerID uint) ([]domain.VisitRecord, error) {
	var records []domain.VisitRecord

	err := r.DB.WithContext(ctx).
		Where("customer_id = ?", customerID).
		Where("sync_state = ?", domain.SyncSent).
		Order("scanned_at DESC").
		Find(&records).Error
	if err != nil {
		return nil, err
	}

	return records, nil
}

func (r *VisitRepository) Update(ctx context.Context, record *domain.VisitRecord) error {
	row := r.DB.WithContext(ctx).
		Model(&domain.VisitRecord{}).
		Where("id = ?", record.ID).
		Select("sync_state", "synced_at", "sync_attempts", "last_error", "progress_token").
		Updates(record)
	if row.Error != nil {
		return row.Error
	}

	if row.RowsAffected == 0 {
		return errors.New("visit record not found")
	}

	return nil
}

func (r *VisitRepository) DeleteByCustomer(ctx context.Context, customerID uint) error {
	return r.DB.WithContext(ctx).
		Where("customer_id = ?", customerID).
		Delete(&domain.VisitRecord{}).Error
}
