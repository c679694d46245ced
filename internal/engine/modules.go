package engine

import (
	"context"
	"strings"

	"gorm.io/gorm"

	"timeclerk/internal/model"
)

// CreateModule returns the user's module with the given name, creating
// it when absent.
func (e *Engine) CreateModule(ctx context.Context, userID, name string) (*model.Module, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrModuleRequired
	}
	module, _, err := e.modules.GetOrCreate(ctx, userID, name)
	if err != nil {
		return nil, err
	}
	return module, nil
}

func (e *Engine) ListModules(ctx context.Context, userID string) ([]model.Module, error) {
	return e.modules.ListByUser(ctx, userID)
}

// DeleteModule removes an empty module; a module that still has tasks
// is a state error. Guard and delete run in one transaction so a task
// created in between cannot be orphaned.
func (e *Engine) DeleteModule(ctx context.Context, userID, moduleID string) error {
	err := e.db.Transaction(func(tx *gorm.DB) error {
		count, err := e.tasks.WithTx(tx).CountByModule(ctx, userID, moduleID)
		if err != nil {
			return err
		}
		if count > 0 {
			return ErrModuleHasTasks
		}
		return e.modules.WithTx(tx).Delete(ctx, userID, moduleID)
	})
	return asNotFound(err, ErrModuleNotFound)
}
