package workflow

import (
	"errors"
	"time"

	"github.com/lopmaker/order-converter-sub000/config"
	"github.com/lopmaker/order-converter-sub000/models"
	"github.com/lopmaker/order-converter-sub000/utils"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

type NewPaymentInput struct {
	TargetType    models.PaymentTargetType `json:"target_type" validate:"required"`
	TargetId      int                      `json:"target_id" validate:"required"`
	Amount        decimal.Decimal          `json:"amount"`
	PaymentDate   *time.Time               `json:"payment_date"`
	PaymentMethod string                   `json:"payment_method"`
	Reference     string                   `json:"reference"`
}

type UpdatePaymentInput struct {
	Amount        *decimal.Decimal `json:"amount"`
	PaymentDate   *time.Time       `json:"payment_date"`
	PaymentMethod *string          `json:"payment_method"`
	Reference     *string          `json:"reference"`
}

// ProcessCreatePayment posts a payment against a bill, rederives the bill's
// status from its new paid total, and recomputes the owning order. Direction
// is taken from the bill kind, never from the caller.
func ProcessCreatePayment(db *gorm.DB, logger *logrus.Logger, input *NewPaymentInput) (*models.Payment, error) {
	if err := utils.ValidateStruct(input); err != nil {
		return nil, err
	}
	if !input.Amount.IsPositive() {
		return nil, utils.NewValidationError("amount", "payment amount must be positive")
	}

	// Resolve outside the lock only to learn which order serializes the post.
	target, err := models.ResolvePaymentTarget(db, input.TargetType, input.TargetId)
	if err != nil {
		return nil, err
	}

	var payment *models.Payment
	err = WithOrderLock(db, target.OrderId, func(tx *gorm.DB) error {
		target, err := models.ResolvePaymentTarget(tx, input.TargetType, input.TargetId)
		if err != nil {
			return err
		}

		paymentDate := time.Now().UTC()
		if input.PaymentDate != nil {
			paymentDate = *input.PaymentDate
		}
		created := models.Payment{
			TargetType:    input.TargetType,
			TargetId:      input.TargetId,
			Direction:     target.Direction,
			Amount:        utils.RoundMoney(input.Amount),
			PaymentDate:   paymentDate,
			PaymentMethod: input.PaymentMethod,
			Reference:     input.Reference,
		}
		if err := tx.Create(&created).Error; err != nil {
			config.LogError(logger, "paymentWorkflow.go", "ProcessCreatePayment", "Create", created, err)
			return err
		}
		payment = &created

		if err := RederiveBillStatus(tx, input.TargetType, input.TargetId); err != nil {
			return err
		}
		_, err = RecomputeOrderStatus(tx, logger, target.OrderId)
		return err
	})
	if err != nil {
		return nil, err
	}
	return payment, nil
}

// ProcessUpdatePayment edits a posted payment. Nil fields are left unchanged.
func ProcessUpdatePayment(db *gorm.DB, logger *logrus.Logger, paymentId int, input *UpdatePaymentInput) (*models.Payment, error) {
	if input.Amount != nil && !input.Amount.IsPositive() {
		return nil, utils.NewValidationError("amount", "payment amount must be positive")
	}

	var existing models.Payment
	if err := db.First(&existing, paymentId).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}
	target, err := models.ResolvePaymentTarget(db, existing.TargetType, existing.TargetId)
	if err != nil {
		return nil, err
	}

	var payment *models.Payment
	err = WithOrderLock(db, target.OrderId, func(tx *gorm.DB) error {
		var row models.Payment
		if err := tx.First(&row, paymentId).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return utils.ErrorRecordNotFound
			}
			return err
		}

		if input.Amount != nil {
			row.Amount = utils.RoundMoney(*input.Amount)
		}
		if input.PaymentDate != nil {
			row.PaymentDate = *input.PaymentDate
		}
		if input.PaymentMethod != nil {
			row.PaymentMethod = *input.PaymentMethod
		}
		if input.Reference != nil {
			row.Reference = *input.Reference
		}
		if err := tx.Save(&row).Error; err != nil {
			config.LogError(logger, "paymentWorkflow.go", "ProcessUpdatePayment", "Save", row, err)
			return err
		}
		payment = &row

		if err := RederiveBillStatus(tx, row.TargetType, row.TargetId); err != nil {
			return err
		}
		_, err := RecomputeOrderStatus(tx, logger, target.OrderId)
		return err
	})
	if err != nil {
		return nil, err
	}
	return payment, nil
}

// ProcessDeletePayment removes a payment and rederives downstream state. A
// paid bill drops back to Partial or Open, and a closed order reopens.
func ProcessDeletePayment(db *gorm.DB, logger *logrus.Logger, paymentId int) error {
	var existing models.Payment
	if err := db.First(&existing, paymentId).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return utils.ErrorRecordNotFound
		}
		return err
	}
	target, err := models.ResolvePaymentTarget(db, existing.TargetType, existing.TargetId)
	if err != nil {
		return err
	}

	return WithOrderLock(db, target.OrderId, func(tx *gorm.DB) error {
		result := tx.Delete(&models.Payment{}, paymentId)
		if result.Error != nil {
			config.LogError(logger, "paymentWorkflow.go", "ProcessDeletePayment", "Delete", paymentId, result.Error)
			return result.Error
		}
		if result.RowsAffected == 0 {
			return utils.ErrorRecordNotFound
		}

		if err := RederiveBillStatus(tx, existing.TargetType, existing.TargetId); err != nil {
			return err
		}
		_, err := RecomputeOrderStatus(tx, logger, target.OrderId)
		return err
	})
}
