package banner

import (
	"github.com/charmbracelet/lipgloss"

	"lessonload/internal/tui/styles"
)

const ascii = `
    __                                __                __
   / /   ___  ______________  ____   / /   ____  ____ _/ /
  / /   / _ \/ ___/ ___/ __ \/ __ \ / /   / __ \/ __ '/ __ /
 / /___/  __(__  |__  ) /_/ / / / // /___/ /_/ / /_/ / /_/ /
/_____/\___/____/____/\____/_/ /_//_____/\____/\__,_/\__,_/ `

// GetString returns the coloured CLI banner.
func GetString() string {
	style := lipgloss.DefaultRenderer().NewStyle().
		Foreground(styles.ColorBanner).
		Bold(true)

	return "\n" + style.Render(ascii) + "\n" +
		styles.Subtle.Render("  traffic simulation for the learning platform") + "\n"
}
