// Package format renders in-game amounts for people.
package format

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var printer = message.NewPrinter(language.English)

// Number returns n with thousands separators (e.g., "-1,234,567").
func Number(n int64) string {
	return printer.Sprintf("%d", n)
}

// Roubles returns n as a rouble amount (e.g., "₽1,234,567").
func Roubles(n int64) string {
	if n < 0 {
		return "-₽" + Number(-n)
	}
	return "₽" + Number(n)
}
