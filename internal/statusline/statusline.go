// Package statusline renders resolved quotes and failures as single
// status-bar lines in the "text | key=value" form menu-bar hosts parse.
package statusline

import (
	"errors"
	"fmt"
	"strings"

	"stockbar/internal/provider"
	"stockbar/internal/resolver"
)

const (
	arrowUp   = "△"
	arrowDown = "▽"
	warning   = "⚠"

	Green = "green"
	Red   = "red"
	Gray  = "gray"
)

// DefaultStyle is appended to every line unless the caller overrides it.
const DefaultStyle = "font=Menlo size=12"

// Color is green or red by direction while live, gray otherwise.
func Color(q resolver.DisplayQuote) string {
	if !q.IsLive {
		return Gray
	}
	if q.Direction() == resolver.Down {
		return Red
	}
	return Green
}

func Arrow(d resolver.Direction) string {
	if d == resolver.Down {
		return arrowDown
	}
	return arrowUp
}

// Format renders q, e.g. "△ ORCL 120.50 ($2.50 / 2.12%) | color=green font=Menlo size=12".
func Format(q resolver.DisplayQuote, style string) string {
	line := fmt.Sprintf("%s %s %s ($%s / %s%%) | color=%s",
		Arrow(q.Direction()),
		strings.ToUpper(q.Symbol),
		q.Price.StringFixed(2),
		q.Change().StringFixed(2),
		q.Percent().StringFixed(2),
		Color(q),
	)
	return withStyle(line, style)
}

// FormatError renders a terminal failure. Fatal resolver errors are red,
// everything else gray.
func FormatError(symbol string, err error, style string) string {
	color := Gray
	var re *resolver.Error
	if errors.As(err, &re) && re.Fatal {
		color = Red
	}
	line := fmt.Sprintf("%s %s %s | color=%s", warning, strings.ToUpper(symbol), Message(err), color)
	return withStyle(line, style)
}

// Message is the short user-facing text for err.
func Message(err error) string {
	var fe *provider.FetchError
	if errors.As(err, &fe) {
		return fe.Summary()
	}
	if err == nil {
		return "unknown error"
	}
	return oneLine(err.Error())
}

func oneLine(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if r := []rune(s); len(r) > 80 {
		s = string(r[:77]) + "..."
	}
	return s
}

func withStyle(line, style string) string {
	style = strings.TrimSpace(style)
	if style == "" {
		return line
	}
	return line + " " + style
}
