// Package styles holds the lipgloss styles used for the wizard's terminal
// output and prompts.
package styles

import "github.com/charmbracelet/lipgloss"

var (
	// Colors - all colors meet WCAG AA contrast (4.5:1) on dark backgrounds
	PrimaryColor   = lipgloss.Color("#A78BFA") // Purple
	SecondaryColor = lipgloss.Color("#10B981") // Green
	WarningColor   = lipgloss.Color("#F59E0B") // Amber
	ErrorColor     = lipgloss.Color("#F87171") // Red
	MutedColor     = lipgloss.Color("#9CA3AF") // Gray
	TextColor      = lipgloss.Color("#F9FAFB") // Light text
	BorderColor    = lipgloss.Color("#6B7280") // Gray
	InfoColor      = lipgloss.Color("#60A5FA") // Blue

	// Convenience styles for colors
	Primary   = lipgloss.NewStyle().Foreground(PrimaryColor)
	Secondary = lipgloss.NewStyle().Foreground(SecondaryColor)
	Warning   = lipgloss.NewStyle().Foreground(WarningColor)
	Error     = lipgloss.NewStyle().Foreground(ErrorColor)
	Muted     = lipgloss.NewStyle().Foreground(MutedColor)
	Text      = lipgloss.NewStyle().Foreground(TextColor)

	Title = lipgloss.NewStyle().
		Bold(true).
		Foreground(PrimaryColor).
		MarginBottom(1)

	// Step is the heading printed when a stage starts
	Step = lipgloss.NewStyle().
		Bold(true).
		Foreground(InfoColor)

	// Prompt label
	Question = lipgloss.NewStyle().
			Bold(true).
			Foreground(TextColor)

	Hint = lipgloss.NewStyle().
		Foreground(MutedColor).
		Italic(true)

	// PinBox frames the generated registration lock PIN
	PinBox = lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(WarningColor).
		Foreground(TextColor).
		Bold(true).
		Padding(1, 3)

	ContentBox = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(BorderColor).
			Padding(0, 1)

	HelpBar = lipgloss.NewStyle().
		Foreground(MutedColor).
		MarginTop(1)

	HelpKey = lipgloss.NewStyle().
		Bold(true).
		Foreground(SecondaryColor)

	ErrorMsg = lipgloss.NewStyle().
			Foreground(ErrorColor).
			Bold(true)

	SuccessMsg = lipgloss.NewStyle().
			Foreground(SecondaryColor).
			Bold(true)

	WarningMsg = lipgloss.NewStyle().
			Foreground(WarningColor).
			Bold(true)

	// Select list
	OptionItem = lipgloss.NewStyle().
			Foreground(TextColor).
			Padding(0, 1)

	OptionItemSelected = lipgloss.NewStyle().
				Foreground(TextColor).
				Background(PrimaryColor).
				Bold(true).
				Padding(0, 1)
)

// StateColor returns the color for an onboarding state name.
func StateColor(state string) lipgloss.Color {
	switch state {
	case "AwaitingAccount", "AwaitingCaptcha", "AwaitingVerification", "AwaitingLink":
		return WarningColor
	case "Registering", "SettingPin", "Stabilizing":
		return InfoColor
	case "Linked", "Done":
		return SecondaryColor
	case "Failed":
		return ErrorColor
	default:
		return MutedColor
	}
}

// StateIcon returns an icon for an onboarding state name.
func StateIcon(state string) string {
	switch state {
	case "AwaitingAccount", "AwaitingCaptcha", "AwaitingVerification", "AwaitingLink":
		return "?"
	case "Registering", "SettingPin", "Stabilizing":
		return "●"
	case "Linked", "Done":
		return "✓"
	case "Failed":
		return "✗"
	default:
		return "○"
	}
}
