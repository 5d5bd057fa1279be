// Package themes defines the dashboard color schemes. Each theme is a flat
// table of named colors the page template turns into CSS custom properties.
package themes

import (
	"fmt"
	"sort"
	"strings"
)

type Colors struct {
	// Backgrounds
	BgBlack  string
	BgDarker string
	BgDark   string
	BgPanel  string
	BgBorder string

	// Accents
	Primary       string
	PrimaryGlow   string
	PrimaryDark   string
	Secondary     string
	SecondaryGlow string

	// Status
	Success       string
	Warning       string
	Error         string
	StatusOnline  string
	StatusOffline string

	// Text
	TextPrimary   string
	TextSecondary string
	TextMuted     string
}

type Theme struct {
	Name        string
	DisplayName string
	Colors      Colors
}

var industrial = Theme{
	Name:        "industrial",
	DisplayName: "Industrial Command Center",
	Colors: Colors{
		BgBlack:  "#000000",
		BgDarker: "#0a0a0a",
		BgDark:   "#111111",
		BgPanel:  "#1a1a1a",
		BgBorder: "#2a2a2a",

		Primary:       "#00d4ff",
		PrimaryGlow:   "#00ffff",
		PrimaryDark:   "#0088aa",
		Secondary:     "#ffb000",
		SecondaryGlow: "#ff8800",

		Success:       "#00ff88",
		Warning:       "#ffb000",
		Error:         "#ff3355",
		StatusOnline:  "#00ff88",
		StatusOffline: "#555555",

		TextPrimary:   "#00d4ff",
		TextSecondary: "#ffffff",
		TextMuted:     "#666666",
	},
}

var pink = Theme{
	Name:        "pink",
	DisplayName: "Pink Dream",
	Colors: Colors{
		BgBlack:  "#0a0014",
		BgDarker: "#140a1f",
		BgDark:   "#1a0f2e",
		BgPanel:  "#2a1a3d",
		BgBorder: "#3d2952",

		Primary:       "#ff1b8d",
		PrimaryGlow:   "#ff66b3",
		PrimaryDark:   "#cc0066",
		Secondary:     "#ffb3d9",
		SecondaryGlow: "#ffd6ec",

		Success:       "#ff85c0",
		Warning:       "#ffb3d9",
		Error:         "#ff0066",
		StatusOnline:  "#ff85c0",
		StatusOffline: "#6b5570",

		TextPrimary:   "#ff1b8d",
		TextSecondary: "#ffe6f7",
		TextMuted:     "#8b6b91",
	},
}

var neon = Theme{
	Name:        "neon",
	DisplayName: "Cyberpunk Neon",
	Colors: Colors{
		BgBlack:  "#0a0014",
		BgDarker: "#0f0a1f",
		BgDark:   "#14111f",
		BgPanel:  "#1f1a2e",
		BgBorder: "#2e2a3d",

		Primary:       "#b833ff",
		PrimaryGlow:   "#d966ff",
		PrimaryDark:   "#8800cc",
		Secondary:     "#00d9ff",
		SecondaryGlow: "#66e5ff",

		Success:       "#00ff99",
		Warning:       "#ffcc00",
		Error:         "#ff0066",
		StatusOnline:  "#00ff99",
		StatusOffline: "#555566",

		TextPrimary:   "#b833ff",
		TextSecondary: "#e6e6ff",
		TextMuted:     "#6b5580",
	},
}

var matrix = Theme{
	Name:        "matrix",
	DisplayName: "Matrix Green",
	Colors: Colors{
		BgBlack:  "#000a00",
		BgDarker: "#001400",
		BgDark:   "#001f00",
		BgPanel:  "#002b00",
		BgBorder: "#003d00",

		Primary:       "#00ff41",
		PrimaryGlow:   "#66ff88",
		PrimaryDark:   "#00b32e",
		Secondary:     "#ccff00",
		SecondaryGlow: "#e5ff66",

		Success:       "#00ff41",
		Warning:       "#ccff00",
		Error:         "#ff3333",
		StatusOnline:  "#00ff41",
		StatusOffline: "#335533",

		TextPrimary:   "#00ff41",
		TextSecondary: "#e6ffe6",
		TextMuted:     "#336633",
	},
}

var themes = map[string]Theme{
	"industrial": industrial,
	"pink":       pink,
	"neon":       neon,
	"matrix":     matrix,

	// Legacy alias kept for old configs.
	"dark": industrial,
}

// Get returns the theme with the given name. The error names the
// available themes so a config typo is easy to fix.
func Get(name string) (Theme, error) {
	theme, ok := themes[name]
	if !ok {
		return Theme{}, fmt.Errorf("unknown theme %q (available: %s)", name, strings.Join(List(), ", "))
	}
	return theme, nil
}

// List returns the available theme names, sorted, excluding the legacy
// "dark" alias.
func List() []string {
	names := make([]string, 0, len(themes)-1)
	for name := range themes {
		if name == "dark" {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// CSSVariables renders the theme's colors as CSS custom property
// declarations for the dashboard page's :root block.
func (t Theme) CSSVariables() string {
	vars := []struct {
		name  string
		value string
	}{
		{"bg-black", t.Colors.BgBlack},
		{"bg-darker", t.Colors.BgDarker},
		{"bg-dark", t.Colors.BgDark},
		{"bg-panel", t.Colors.BgPanel},
		{"bg-border", t.Colors.BgBorder},
		{"primary", t.Colors.Primary},
		{"primary-glow", t.Colors.PrimaryGlow},
		{"primary-dark", t.Colors.PrimaryDark},
		{"secondary", t.Colors.Secondary},
		{"secondary-glow", t.Colors.SecondaryGlow},
		{"success", t.Colors.Success},
		{"warning", t.Colors.Warning},
		{"error", t.Colors.Error},
		{"status-online", t.Colors.StatusOnline},
		{"status-offline", t.Colors.StatusOffline},
		{"text-primary", t.Colors.TextPrimary},
		{"text-secondary", t.Colors.TextSecondary},
		{"text-muted", t.Colors.TextMuted},
	}

	var b strings.Builder
	for _, v := range vars {
		fmt.Fprintf(&b, "--%s: %s;\n", v.name, v.value)
	}
	return b.String()
}
