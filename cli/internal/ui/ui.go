package ui

import (
	"fmt"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/fatih/color"
	"github.com/pterm/pterm"
)

var (
	// Colors
	PrimaryColor   = lipgloss.Color("#00D9FF")
	SuccessColor   = lipgloss.Color("#00FF88")
	WarningColor   = lipgloss.Color("#FFB800")
	ErrorColor     = lipgloss.Color("#FF4444")
	InfoColor      = lipgloss.Color("#00D9FF")
	SecondaryColor = lipgloss.Color("#6C757D")

	// Styles
	TitleStyle = lipgloss.NewStyle().
			Foreground(PrimaryColor).
			Bold(true).
			MarginBottom(1)

	SuccessStyle = lipgloss.NewStyle().
			Foreground(SuccessColor).
			Bold(true)

	ErrorStyle = lipgloss.NewStyle().
			Foreground(ErrorColor).
			Bold(true)

	WarningStyle = lipgloss.NewStyle().
			Foreground(WarningColor).
			Bold(true)

	InfoStyle = lipgloss.NewStyle().
			Foreground(InfoColor)

	SecondaryStyle = lipgloss.NewStyle().
			Foreground(SecondaryColor)
)

// PrintHeader prints a boxed header
func PrintHeader(title string, subtitle string) {
	width := 80
	if w := pterm.GetTerminalWidth(); w > 0 {
		width = w
	}

	header := lipgloss.NewStyle().
		Width(width).
		Align(lipgloss.Center).
		Border(lipgloss.RoundedBorder()).
		BorderForeground(PrimaryColor).
		Padding(1, 2).
		Render(
			lipgloss.JoinVertical(
				lipgloss.Center,
				TitleStyle.Render(title),
				SecondaryStyle.Render(subtitle),
			),
		)

	fmt.Println(header)
	fmt.Println()
}

// PrintSuccess prints a success message
func PrintSuccess(format string, args ...interface{}) {
	message := fmt.Sprintf(format, args...)
	fmt.Println(SuccessStyle.Render("✓ " + message))
}

// PrintError prints an error message
func PrintError(format string, args ...interface{}) {
	message := fmt.Sprintf(format, args...)
	fmt.Fprintln(os.Stderr, ErrorStyle.Render("✗ "+message))
}

// PrintWarning prints a warning message
func PrintWarning(format string, args ...interface{}) {
	message := fmt.Sprintf(format, args...)
	fmt.Println(WarningStyle.Render("⚠ " + message))
}

// PrintInfo prints an info message
func PrintInfo(format string, args ...interface{}) {
	message := fmt.Sprintf(format, args...)
	fmt.Println(InfoStyle.Render("ℹ " + message))
}

// PrintStep prints a step indicator
func PrintStep(step int, total int, message string) {
	stepStyle := lipgloss.NewStyle().
		Foreground(SecondaryColor).
		Render(fmt.Sprintf("[%d/%d]", step, total))

	fmt.Printf("%s %s\n", stepStyle, message)
}

// PrintTable prints a table using pterm
func PrintTable(headers []string, rows [][]string) {
	tableData := pterm.TableData{headers}
	tableData = append(tableData, rows...)
	pterm.DefaultTable.WithHasHeader().WithData(tableData).Render()
}

// PrintBox prints content in a box
func PrintBox(title string, content string) {
	width := 80
	if w := pterm.GetTerminalWidth(); w > 0 {
		width = w
	}

	box := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(PrimaryColor).
		Padding(1, 2).
		Width(width).
		Render(
			lipgloss.JoinVertical(
				lipgloss.Left,
				TitleStyle.Render(title),
				content,
			),
		)

	fmt.Println(box)
}

// PrintSpinner creates a spinner and returns it
func PrintSpinner(message string) (*pterm.SpinnerPrinter, error) {
	spinner := pterm.DefaultSpinner.WithText(message)
	spinner.Start()
	return spinner, nil
}

// ColorPrint uses fatih/color for simple colored output
func ColorPrint(c *color.Color, format string, args ...interface{}) {
	c.Printf(format, args...)
}

// GetColorPrinters returns color printers for common use cases
func GetColorPrinters() map[string]*color.Color {
	return map[string]*color.Color{
		"success": color.New(color.FgGreen, color.Bold),
		"error":   color.New(color.FgRed, color.Bold),
		"warning": color.New(color.FgYellow, color.Bold),
		"info":    color.New(color.FgCyan),
		"primary": color.New(color.FgCyan, color.Bold),
	}
}
