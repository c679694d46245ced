package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"timeclerk/internal/model"
)

// ModuleRepository manages task modules.
type ModuleRepository struct {
	db *gorm.DB
}

func NewModuleRepository(db *gorm.DB) *ModuleRepository {
	return &ModuleRepository{db: db}
}

// WithTx returns a repository bound to the given transaction.
func (r *ModuleRepository) WithTx(tx *gorm.DB) *ModuleRepository {
	return &ModuleRepository{db: tx}
}

// GetOrCreate finds a user's module by name, creating it when absent.
// Returns the module and whether it was created.
func (r *ModuleRepository) GetOrCreate(ctx context.Context, userID, name string) (*model.Module, bool, error) {
	if name == "" {
		return nil, false, fmt.Errorf("module name is required")
	}

	var module model.Module
	db := r.db.WithContext(ctx)
	err := db.Where("user_id = ? AND name = ?", userID, name).First(&module).Error
	switch {
	case err == nil:
		return &module, false, nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		module = model.Module{ID: uuid.New().String(), UserID: userID, Name: name}
		if err := db.Create(&module).Error; err != nil {
			return nil, false, fmt.Errorf("create module: %w", err)
		}
		return &module, true, nil
	default:
		return nil, false, fmt.Errorf("find module: %w", err)
	}
}

func (r *ModuleRepository) GetByID(ctx context.Context, userID, moduleID string) (*model.Module, error) {
	var module model.Module
	if err := r.db.WithContext(ctx).Where("user_id = ? AND id = ?", userID, moduleID).First(&module).Error; err != nil {
		return nil, err
	}
	return &module, nil
}

func (r *ModuleRepository) ListByUser(ctx context.Context, userID string) ([]model.Module, error) {
	var modules []model.Module
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).Order("name ASC").Find(&modules).Error; err != nil {
		return nil, err
	}
	return modules, nil
}

// Delete removes a module row. The caller is responsible for checking
// that no tasks still reference it.
func (r *ModuleRepository) Delete(ctx context.Context, userID, moduleID string) error {
	res := r.db.WithContext(ctx).Where("user_id = ? AND id = ?", userID, moduleID).Delete(&model.Module{})
	if res.Error != nil {
		return fmt.Errorf("delete module: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
