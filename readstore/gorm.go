package readstore

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/openledger/banking/cqrs"
)

var _ Repository = (*GormRepository)(nil)

// GormRepository is the PostgreSQL-backed repository used in deployments.
type GormRepository struct {
	db *gorm.DB
}

// OpenDB opens the PostgreSQL connection with error translation enabled, so
// duplicate-key violations surface as gorm.ErrDuplicatedKey.
func OpenDB(dsn string) (*gorm.DB, error) {
	return gorm.Open(postgres.Open(dsn), &gorm.Config{TranslateError: true})
}

// NewGormRepository migrates the read-model tables and returns the
// repository.
func NewGormRepository(db *gorm.DB) (*GormRepository, error) {
	if err := db.AutoMigrate(&BankAccount{}, &ProcessedEvent{}); err != nil {
		return nil, cqrs.WrapStorageError(err)
	}
	return &GormRepository{db: db}, nil
}

func (r *GormRepository) Insert(ctx context.Context, account *BankAccount) error {
	if err := r.db.WithContext(ctx).Create(account).Error; err != nil {
		return cqrs.WrapStorageError(err)
	}
	return nil
}

func (r *GormRepository) DeleteByIdentifier(ctx context.Context, identifier string) error {
	if err := r.db.WithContext(ctx).Delete(&BankAccount{}, "identifier = ?", identifier).Error; err != nil {
		return cqrs.WrapStorageError(err)
	}
	return nil
}

func (r *GormRepository) AdjustBalance(ctx context.Context, identifier string, delta decimal.Decimal) error {
	tx := r.db.WithContext(ctx).
		Model(&BankAccount{}).
		Where("identifier = ?", identifier).
		Update("balance", gorm.Expr("balance + ?", delta))
	if tx.Error != nil {
		return cqrs.WrapStorageError(tx.Error)
	}
	if tx.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *GormRepository) FindByIdentifier(ctx context.Context, identifier string) (*BankAccount, error) {
	var account BankAccount
	err := r.db.WithContext(ctx).First(&account, "identifier = ?", identifier).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, cqrs.WrapStorageError(err)
	}
	return &account, nil
}

func (r *GormRepository) FindAll(ctx context.Context) ([]BankAccount, error) {
	accounts := make([]BankAccount, 0)
	if err := r.db.WithContext(ctx).Order("creation_date").Find(&accounts).Error; err != nil {
		return nil, cqrs.WrapStorageError(err)
	}
	return accounts, nil
}

func (r *GormRepository) MarkProcessed(ctx context.Context, eventID string) (bool, error) {
	err := r.db.WithContext(ctx).Create(&ProcessedEvent{EventID: eventID, ProcessedAt: time.Now().UTC()}).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return false, nil
	}
	if err != nil {
		return false, cqrs.WrapStorageError(err)
	}
	return true, nil
}

func (r *GormRepository) Transact(ctx context.Context, fn func(Repository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&GormRepository{db: tx})
	})
}
