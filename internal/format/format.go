// Package format renders amounts and dates the way the utility prints them
// on its bills.
package format

import (
	"strconv"
	"strings"
)

var months = [...]string{
	"Januari",
	"Februari",
	"Maret",
	"April",
	"Mei",
	"Juni",
	"Juli",
	"Agustus",
	"September",
	"Oktober",
	"November",
	"Desember",
}

// Month returns the Indonesian name of month m (1-12), or "" when m is out
// of range.
func Month(m int) string {
	if m < 1 || m > len(months) {
		return ""
	}
	return months[m-1]
}

// Rupiah renders a non-negative amount as "Rp. " followed by its digits
// grouped in threes with "." separators, e.g. 1234567 -> "Rp. 1.234.567".
func Rupiah(amount int64) string {
	digits := strconv.FormatInt(amount, 10)
	sign := ""
	if strings.HasPrefix(digits, "-") {
		sign, digits = "-", digits[1:]
	}

	var b strings.Builder
	b.WriteString("Rp. ")
	b.WriteString(sign)
	lead := len(digits) % 3
	if lead == 0 {
		lead = 3
	}
	b.WriteString(digits[:lead])
	for i := lead; i < len(digits); i += 3 {
		b.WriteByte('.')
		b.WriteString(digits[i : i+3])
	}
	return b.String()
}
