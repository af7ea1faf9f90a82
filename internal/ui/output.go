// Package ui provides colored terminal output helpers for the CLI.
package ui

import (
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

const headerWidth = 60

var (
	headerColor  = color.New(color.FgCyan, color.Bold)
	stepColor    = color.New(color.FgBlue)
	successColor = color.New(color.FgGreen)
	infoColor    = color.New(color.FgCyan)
	warningColor = color.New(color.FgYellow)
	errorColor   = color.New(color.FgRed, color.Bold)

	// moneyPrinter renders amounts with thousands separators.
	moneyPrinter = message.NewPrinter(language.AmericanEnglish)
)

// Header prints a centered section header with a rule underneath.
func Header(text string) {
	headerColor.Fprintln(os.Stderr, center(text, headerWidth))
	headerColor.Fprintln(os.Stderr, strings.Repeat("=", headerWidth))
}

// Step prints a numbered progress step: [2/4] Loading rules
func Step(current, total int, text string) {
	stepColor.Fprintf(os.Stderr, "[%d/%d] %s\n", current, total, text)
}

// Success prints a green checkmark line.
func Success(text string) {
	successColor.Fprintf(os.Stderr, "✓ %s\n", text)
}

// Info prints an informational line.
func Info(text string) {
	infoColor.Fprintf(os.Stderr, "• %s\n", text)
}

// Warning prints a yellow warning line.
func Warning(text string) {
	warningColor.Fprintf(os.Stderr, "⚠ %s\n", text)
}

// Error prints a red error line.
func Error(text string) {
	errorColor.Fprintf(os.Stderr, "✗ %s\n", text)
}

// BlueText prints plain blue text.
func BlueText(text string) {
	stepColor.Fprintln(os.Stderr, text)
}

// YellowText prints plain yellow text.
func YellowText(text string) {
	warningColor.Fprintln(os.Stderr, text)
}

// Money formats an amount in a statement's currency with thousands
// separators: Money(12450.5, "USD") -> "12,450.50 USD".
func Money(amount float64, currency string) string {
	formatted := moneyPrinter.Sprintf("%.2f", amount)
	if currency == "" {
		return formatted
	}
	return fmt.Sprintf("%s %s", formatted, currency)
}

// SignedMoney is Money with an explicit sign for gains, used in P&L
// summaries.
func SignedMoney(amount float64, currency string) string {
	if amount > 0 {
		return "+" + Money(amount, currency)
	}
	return Money(amount, currency)
}

// center pads text on the left so it appears centered within width.
// Text wider than width is returned unchanged.
func center(text string, width int) string {
	if len(text) >= width {
		return text
	}
	padding := (width - len(text)) / 2
	return strings.Repeat(" ", padding) + text
}
