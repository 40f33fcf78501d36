package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/zulandar/shiftlog/internal/report"
	"golang.org/x/term"
)

// ANSI color codes.
const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorGray   = "\033[90m"
)

// isTerminal reports whether out is a terminal. Tests and pipes get plain text.
var isTerminal = func(out io.Writer) bool {
	f, ok := out.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// colorize wraps s in color when out is a terminal.
func colorize(out io.Writer, color, s string) string {
	if !isTerminal(out) {
		return s
	}
	return color + s + colorReset
}

// colorizeStatus colors an outcome status: green submitted, red failed,
// gray for discarded drafts.
func colorizeStatus(out io.Writer, status string) string {
	switch report.Status(status) {
	case report.StatusSubmitted:
		return colorize(out, colorGreen, status)
	case report.StatusFailed:
		return colorize(out, colorRed, status)
	default:
		return colorize(out, colorGray, status)
	}
}

// formatCount formats an integer with comma separators (e.g. 45230 -> "45,230").
func formatCount(n int64) string {
	if n < 0 {
		return "-" + formatCount(-n)
	}
	s := fmt.Sprintf("%d", n)
	if len(s) <= 3 {
		return s
	}

	var b strings.Builder
	remainder := len(s) % 3
	if remainder > 0 {
		b.WriteString(s[:remainder])
	}
	for i := remainder; i < len(s); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(s[i : i+3])
	}
	return b.String()
}

// shortID returns the first 8 characters of a report UUID.
func shortID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8]
}

// truncate returns s truncated to maxLen bytes with "..." appended if needed.
func truncate(s string, maxLen int) string {
	if utf8.RuneCountInString(s) <= maxLen {
		return s
	}
	return string([]rune(s)[:maxLen]) + "..."
}

// describeFlow names the optional steps enabled in f.
func describeFlow(f report.Flow) string {
	var parts []string
	if f.JourneyType {
		parts = append(parts, "journey-type")
	}
	if f.ComputeDistance {
		parts = append(parts, "distance")
	}
	if f.RequirePhotos {
		parts = append(parts, "photos")
	}
	if len(parts) == 0 {
		return "basic"
	}
	return strings.Join(parts, "+")
}
