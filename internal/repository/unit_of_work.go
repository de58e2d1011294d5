package repository

import (
	"context"

	"gorm.io/gorm"
)

// UnitOfWork runs a function inside a single database transaction,
// handing it repositories bound to that transaction. Either every write
// the function performs lands, or none do. SQLite serializes writers,
// so a concurrent second resolve of the same task observes the first
// one's writes before its own checks run.
type UnitOfWork struct {
	db *gorm.DB
}

func NewUnitOfWork(db *gorm.DB) *UnitOfWork {
	return &UnitOfWork{db: db}
}

// TxRepos groups the transaction-scoped repositories.
type TxRepos struct {
	Tasks       *TaskRepository
	Resolutions *ResolutionRepository
}

// Do executes fn inside one transaction. Returning an error rolls the
// whole transaction back and surfaces that error unchanged.
func (u *UnitOfWork) Do(ctx context.Context, fn func(TxRepos) error) error {
	return u.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(TxRepos{
			Tasks:       NewTaskRepository(tx),
			Resolutions: NewResolutionRepository(tx),
		})
	})
}
