package offline

import (
	"encoding/base64"
	"fmt"

	"aibook/internal/util"
)

// placeholderImage renders a labeled SVG box as a data URL, standing in for
// a real generated image.
func placeholderImage(prompt string) string {
	label := util.TrimRunes(prompt, 30)
	svg := fmt.Sprintf(`<svg xmlns="http://www.w3.org/2000/svg" width="300" height="300" viewBox="0 0 300 300">
  <rect width="100%%" height="100%%" fill="#4b5563"/>
  <text x="50%%" y="50%%" font-family="sans-serif" font-size="14" fill="white" dominant-baseline="middle" text-anchor="middle">[Offline image: %s]</text>
</svg>`, label)
	return "data:image/svg+xml;base64," + base64.StdEncoding.EncodeToString([]byte(svg))
}
