package usecase

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// formatRupiah renders 12500 as "Rp 12.500" and 12.5 as "Rp 12,5".
func formatRupiah(amount float64) string {
	p := message.NewPrinter(language.Indonesian)
	if amount < 0 {
		return "-Rp " + p.Sprint(number.Decimal(-amount, number.MaxFractionDigits(2)))
	}
	return "Rp " + p.Sprint(number.Decimal(amount, number.MaxFractionDigits(2)))
}
