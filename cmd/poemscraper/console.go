package main

import (
	"fmt"

	"github.com/fatih/color"
)

var (
	menuColor    = color.New(color.FgBlue)
	promptColor  = color.New(color.FgGreen)
	failureColor = color.New(color.FgRed)
	summaryColor = color.New(color.FgCyan, color.Bold)
)

func menuText(s string) string {
	return menuColor.Sprint(s)
}

func promptText(s string) string {
	return promptColor.Sprint(s)
}

// diagnostic formats a one-line operator-facing failure.
func diagnostic(format string, args ...any) string {
	return failureColor.Sprintf(format, args...) + "\n"
}

func heading(s string) string {
	return summaryColor.Sprint(s)
}

func formatRow(label string, value any) string {
	return fmt.Sprintf("  %-14s %v\n", label+":", value)
}
