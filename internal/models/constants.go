package models

const (
	StateDraft      = "draft"
	StateConfirmed  = "confirmed"
	StateInProgress = "in_progress"
	StateCompleted  = "completed"
	StateCancelled  = "cancelled"
)

const (
	PaymentPending = "pending"
	PaymentPartial = "partial"
	PaymentPaid    = "paid"
)

const (
	SportFootball     = "football"
	SportBasketball   = "basketball"
	SportTennis       = "tennis"
	SportVolleyball   = "volleyball"
	SportPaddle       = "paddle"
	SportMultipurpose = "multipurpose"
)

const (
	SurfaceGrass     = "grass"
	SurfaceSynthetic = "synthetic"
	SurfaceConcrete  = "concrete"
	SurfaceParquet   = "parquet"
	SurfaceClay      = "clay"
)

const (
	OutboxPending   = "pending"
	OutboxRetry     = "retry"
	OutboxCompleted = "completed"
	OutboxFailed    = "failed"
)

const (
	// DateLayout формат даты бронирования в хранилище и API
	DateLayout = "2006-01-02"

	// DefaultOpeningTime час открытия площадки по умолчанию
	DefaultOpeningTime = 7.0

	// DefaultClosingTime час закрытия площадки по умолчанию
	DefaultClosingTime = 22.0

	// DefaultCapacity вместимость площадки по умолчанию
	DefaultCapacity = 10

	// MinCapacity минимальная вместимость площадки
	MinCapacity = 2
)

// IsValidPaymentStatus reports whether s is one of the payment statuses.
func IsValidPaymentStatus(s string) bool {
	switch s {
	case PaymentPending, PaymentPartial, PaymentPaid:
		return true
	}
	return false
}
