package tui

import (
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// Colors adapt to light and dark backgrounds. Faint styling is only applied on dark
// backgrounds; faint text on light terminals is often unreadable.

func ac(light, dark string) lipgloss.AdaptiveColor {
	return lipgloss.AdaptiveColor{Light: light, Dark: dark}
}

func faintIfDark(st lipgloss.Style) lipgloss.Style {
	if lipgloss.HasDarkBackground() {
		return st.Faint(true)
	}
	return st
}

var (
	colorMuted     lipgloss.TerminalColor = ac("240", "243")
	colorLabel     lipgloss.TerminalColor = ac("238", "250")
	colorAccent    lipgloss.TerminalColor = ac("27", "62")
	colorInputBg   lipgloss.TerminalColor = ac("254", "234")
	colorSavedFg   lipgloss.TerminalColor = ac("28", "78")
	colorSavingFg  lipgloss.TerminalColor = ac("130", "214")
	colorErrorFg   lipgloss.TerminalColor = ac("160", "203")
	colorBorderDim lipgloss.TerminalColor = ac("250", "240")
)

func styleMuted() lipgloss.Style {
	return faintIfDark(lipgloss.NewStyle().Foreground(colorMuted))
}

func styleLabel(focused bool) lipgloss.Style {
	st := lipgloss.NewStyle().Foreground(colorLabel).Width(10)
	if focused {
		st = st.Foreground(colorAccent).Bold(true)
	}
	return st
}

// applyColorProfilePreference honors NO_COLOR and otherwise trusts TERM/COLORTERM over
// termenv's probe when they claim more colors.
func applyColorProfilePreference() {
	if strings.TrimSpace(os.Getenv("NO_COLOR")) != "" {
		lipgloss.SetColorProfile(termenv.Ascii)
		return
	}
	profile := termenv.ColorProfile()
	term := strings.ToLower(os.Getenv("TERM"))
	colorterm := strings.ToLower(os.Getenv("COLORTERM"))
	switch {
	case profile == termenv.Ascii:
	case strings.Contains(colorterm, "truecolor"), strings.Contains(colorterm, "24bit"):
		profile = termenv.TrueColor
	case strings.Contains(term, "256color") && profile == termenv.ANSI:
		profile = termenv.ANSI256
	}
	lipgloss.SetColorProfile(profile)
}

// applyThemePreference pins background detection when PLANNER_TUI_THEME is light or dark.
func applyThemePreference() {
	switch themePreference() {
	case "light":
		lipgloss.SetHasDarkBackground(false)
	case "dark":
		lipgloss.SetHasDarkBackground(true)
	}
}

func themePreference() string {
	return strings.ToLower(strings.TrimSpace(os.Getenv("PLANNER_TUI_THEME")))
}
