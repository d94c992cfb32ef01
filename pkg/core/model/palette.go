package model

import (
	"regexp"
	"strings"
)

// DefaultColor is used for members created without a colour
const DefaultColor = "#6366f1"

// Palette is the fixed set of member colours offered by the roster
var Palette = []string{
	"#6366f1",
	"#ec4899",
	"#14b8a6",
	"#f59e0b",
	"#8b5cf6",
	"#ef4444",
	"#22c55e",
	"#3b82f6",
}

var hexColor = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)

// NormalizeColor lower-cases a colour and falls back to DefaultColor when empty.
// Arbitrary #rrggbb colours are accepted as well as palette entries.
func NormalizeColor(color string) (string, bool) {
	color = strings.TrimSpace(color)
	if color == "" {
		return DefaultColor, true
	}
	if !hexColor.MatchString(color) {
		return "", false
	}
	return strings.ToLower(color), true
}

// InPalette reports whether a colour is one of the fixed palette entries
func InPalette(color string) bool {
	for _, c := range Palette {
		if strings.EqualFold(c, color) {
			return true
		}
	}
	return false
}
