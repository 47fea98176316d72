package commands

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
)

var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#8E4EC6")).
			Padding(0, 1).
			MarginBottom(1)

	sectionStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#8E4EC6")).
			Bold(true)

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245")).
			Width(16)

	okColor   = lipgloss.Color("#2E8B57")
	warnColor = lipgloss.Color("#D7875F")
	badColor  = lipgloss.Color("#D75F5F")
)

func printRow(label, value string) {
	fmt.Printf("  %s %s\n", labelStyle.Render(label+":"), value)
}

func colored(c lipgloss.Color, s string) string {
	return lipgloss.NewStyle().Foreground(c).Render(s)
}
