package workflow

import (
	"fmt"

	"gorm.io/gorm"
)

// AcquireOrderPostingLock serializes trigger/rollback/recompute per order
// across instances using MySQL advisory locks.
// NOTE: GET_LOCK is connection-scoped, so this must be called on the same
// *gorm.DB that runs the mutate-then-recompute transaction.
func AcquireOrderPostingLock(tx *gorm.DB, orderId int) error {
	lockName := fmt.Sprintf("order-posting:%d", orderId)
	var ok int
	if err := tx.Raw("SELECT GET_LOCK(?, 30)", lockName).Scan(&ok).Error; err != nil {
		return err
	}
	if ok != 1 {
		return fmt.Errorf("could not acquire posting lock for order_id=%d", orderId)
	}
	return nil
}

func ReleaseOrderPostingLock(tx *gorm.DB, orderId int) {
	lockName := fmt.Sprintf("order-posting:%d", orderId)
	var _ok int
	_ = tx.Raw("SELECT RELEASE_LOCK(?)", lockName).Scan(&_ok).Error
}

// WithOrderLock runs fn inside one transaction holding the order's posting
// lock. Two concurrent triggers/rollbacks on the same order must not
// interleave a partial child mutation with a stale recompute.
func WithOrderLock(db *gorm.DB, orderId int, fn func(tx *gorm.DB) error) error {
	return db.Transaction(func(tx *gorm.DB) error {
		if err := AcquireOrderPostingLock(tx, orderId); err != nil {
			return err
		}
		defer ReleaseOrderPostingLock(tx, orderId)
		return fn(tx)
	})
}
