package valueobject

import (
	"fmt"
	"math"

	"github.com/ignatzorin/marketplace-backend/internal/pkg/apperror"
)

const defaultCurrency = "USD"

// Money: положительная сумма сделки или ставки.
type Money struct {
	Amount   float64
	Currency string
}

func NewMoney(amount float64, currency string) (Money, error) {
	if math.IsNaN(amount) || math.IsInf(amount, 0) || amount <= 0 {
		return Money{}, apperror.Validation("сумма должна быть положительной")
	}
	if currency == "" {
		currency = defaultCurrency
	}
	return Money{Amount: math.Round(amount*100) / 100, Currency: currency}, nil
}

func (m Money) String() string {
	return fmt.Sprintf("%s %.2f", m.Currency, m.Amount)
}

// Percent: процент выполнения в диапазоне 0..100.
type Percent int

func NewPercent(v int) (Percent, error) {
	if v < 0 || v > 100 {
		return 0, apperror.Validation("прогресс должен быть в диапазоне 0..100")
	}
	return Percent(v), nil
}
