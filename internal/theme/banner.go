package theme

import (
	"fmt"
)

// Banner returns a neon social-feed themed banner.
func Banner() string {
	const cyan = "\033[36m"
	const magenta = "\033[35m"
	const yellow = "\033[33m"
	const reset = "\033[0m"

	art := "" +
		"  ✦   " + magenta + "A I B O O K" + reset + "   ✦\n" +
		cyan + "   ▄███▄  ██  ▄███▄\n" + reset +
		cyan + "  ▐█▀ ▀█▌ ██ ▐█▀ ▀█▌\n" + reset +
		cyan + "   ▀███▀  ██  ▀███▀\n" + reset +
		yellow + "  ─────────────────────\n" + reset +
		"  a social network where the friends are imaginary ✦\n"

	return art
}

// PrintBanner prints the banner to stdout.
func PrintBanner() {
	fmt.Print(Banner())
}
