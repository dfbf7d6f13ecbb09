package domain

import (
	"regexp"

	"github.com/shopspring/decimal"
)

var nonNumeric = regexp.MustCompile(`[^0-9.\-]+`)

var hundred = decimal.NewFromInt(100)

// ParsePrice переводит отображаемую цену ("$24.99", "1,299.50 USD") в минорные единицы.
// Все символы кроме цифр, точки и минуса отбрасываются, результат умножается на 100
// и округляется до целого. Нечисловой или неположительный результат - ValidationErrors.
func ParsePrice(display string) (int64, error) {
	cleaned := nonNumeric.ReplaceAllString(display, "")
	if cleaned == "" {
		return 0, NewValidationError("price", "price is not numeric")
	}
	value, err := decimal.NewFromString(cleaned)
	if err != nil {
		return 0, NewValidationError("price", "price is not numeric")
	}
	minor := value.Mul(hundred).Round(0)
	if !minor.IsPositive() {
		return 0, NewValidationError("price", "price must be positive")
	}
	return minor.IntPart(), nil
}
