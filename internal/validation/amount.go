package validation

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// ErrInvalidAmount возвращается, если сумма не является положительным числом.
var ErrInvalidAmount = errors.New("amount must be a positive number")

var displayPrinter = message.NewPrinter(language.EuropeanSpanish)

// FormatAmount нормализует ввод суммы: остаются цифры и первая десятичная
// точка, дробная часть обрезается до двух знаков. Функция чистая и
// идемпотентная: повторное применение к собственному результату ничего не меняет.
func FormatAmount(raw string) string {
	var b strings.Builder
	dotSeen := false
	fraction := -1

	for _, r := range raw {
		switch {
		case r >= '0' && r <= '9':
			if fraction >= 2 {
				continue
			}
			b.WriteRune(r)
			if dotSeen {
				fraction++
			}
		case r == '.' && !dotSeen:
			b.WriteRune(r)
			dotSeen = true
			fraction = 0
		}
	}

	return b.String()
}

// ParseAmountCents разбирает нормализованную сумму и возвращает её в центах.
// Сумма должна быть строго больше нуля.
func ParseAmountCents(formatted string) (int64, error) {
	if formatted == "" {
		return 0, ErrInvalidAmount
	}

	d, err := decimal.NewFromString(formatted)
	if err != nil {
		return 0, ErrInvalidAmount
	}

	if !d.IsPositive() {
		return 0, ErrInvalidAmount
	}

	return d.Shift(2).IntPart(), nil
}

// FormatDisplayAmount отображает сумму в центах с разделителями тысяч и двумя
// десятичными знаками в испанской локали: 123456 -> "1.234,56".
func FormatDisplayAmount(cents int64) string {
	return displayPrinter.Sprint(number.Decimal(
		float64(cents)/100,
		number.MinFractionDigits(2),
		number.MaxFractionDigits(2),
	))
}
