package database

import (
	"context"
	"fmt"

	"gorm.io/gorm"
)

// Repository is the storage contract shared by every persisted entity:
// credential profiles, devices, results, passes, and alerts all go through
// the same six operations.
type Repository[T any] interface {
	List(ctx context.Context) ([]*T, error)
	Get(ctx context.Context, id int64) (*T, error)
	GetByField(ctx context.Context, field string, value any) (*T, error)
	Create(ctx context.Context, entity *T) (*T, error)
	Update(ctx context.Context, id int64, entity *T) (*T, error)
	Delete(ctx context.Context, id int64) error
}

// GormRepository backs Repository with one gorm table per entity type.
type GormRepository[T any] struct {
	db *gorm.DB
}

func NewGormRepository[T any](db *gorm.DB) *GormRepository[T] {
	return &GormRepository[T]{db: db}
}

// DB exposes the handle for queries the generic surface cannot express,
// such as device eligibility and alert dedup lookups.
func (repo *GormRepository[T]) DB() *gorm.DB {
	return repo.db
}

func (repo *GormRepository[T]) List(ctx context.Context) ([]*T, error) {
	var entities []*T
	result := repo.db.WithContext(ctx).Find(&entities)
	return entities, result.Error
}

func (repo *GormRepository[T]) Get(ctx context.Context, id int64) (*T, error) {
	var entity T
	result := repo.db.WithContext(ctx).First(&entity, id)
	if result.Error != nil {
		return nil, result.Error
	}
	return &entity, nil
}

// GetByField returns the first row matching one column, e.g. a device by
// its management IP. field must be a code-supplied column name, never
// request input.
func (repo *GormRepository[T]) GetByField(ctx context.Context, field string, value any) (*T, error) {
	var entity T
	result := repo.db.WithContext(ctx).Where(fmt.Sprintf("%s = ?", field), value).First(&entity)
	if result.Error != nil {
		return nil, result.Error
	}
	return &entity, nil
}

func (repo *GormRepository[T]) Create(ctx context.Context, entity *T) (*T, error) {
	result := repo.db.WithContext(ctx).Create(entity)
	if result.Error != nil {
		return nil, result.Error
	}
	return entity, nil
}

// Update applies the non-zero fields of entity to an existing row and
// returns the reloaded state.
func (repo *GormRepository[T]) Update(ctx context.Context, id int64, entity *T) (*T, error) {
	var existing T
	if err := repo.db.WithContext(ctx).First(&existing, id).Error; err != nil {
		return nil, err
	}

	result := repo.db.WithContext(ctx).Model(&existing).Updates(entity)
	if result.Error != nil {
		return nil, result.Error
	}

	repo.db.WithContext(ctx).First(&existing, id)

	return &existing, nil
}

func (repo *GormRepository[T]) Delete(ctx context.Context, id int64) error {
	var entity T
	result := repo.db.WithContext(ctx).Delete(&entity, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("record not found")
	}
	return nil
}
