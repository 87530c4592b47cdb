package banner

import (
	"streambench/internal/tui/styles"

	"github.com/charmbracelet/lipgloss"
)

func GetString() string {
	renderer := lipgloss.DefaultRenderer()

	style := renderer.NewStyle().
		Foreground(styles.ColorBanner).
		Bold(true)

	ascii := `
   _____ __                          ____                  __
  / ___// /_________  ____ _____ ___/ __ )___  ____  _____/ /_
  \__ \/ __/ ___/ _ \/ __ '/ __ '__  / __/ _ \/ __ \/ ___/ __ \
 ___/ / /_/ /  /  __/ /_/ / / / / / / /_/  __/ / / / /__/ / / /
/____/\__/_/   \___/\__,_/_/ /_/ /_/_____|___/_/ /_/\___/_/ /_/ `

	return "\n" + style.Render(ascii) + "\n"
}
