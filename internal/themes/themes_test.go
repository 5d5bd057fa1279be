package themes

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetKnownThemes(t *testing.T) {
	for _, name := range []string{"industrial", "pink", "neon", "matrix"} {
		theme, err := Get(name)
		require.NoError(t, err, name)
		assert.Equal(t, name, theme.Name)
		assert.NotEmpty(t, theme.DisplayName)
		assert.NotEmpty(t, theme.Colors.Primary)
	}
}

func TestGetDarkAlias(t *testing.T) {
	theme, err := Get("dark")
	require.NoError(t, err)
	assert.Equal(t, "industrial", theme.Name)
}

func TestGetUnknown(t *testing.T) {
	_, err := Get("vaporwave")
	require.Error(t, err)
	// The error should tell the user what is available.
	assert.Contains(t, err.Error(), "matrix")
}

func TestListExcludesAlias(t *testing.T) {
	names := List()
	assert.Equal(t, []string{"industrial", "matrix", "neon", "pink"}, names)
	assert.NotContains(t, names, "dark")
}

func TestCSSVariables(t *testing.T) {
	theme, err := Get("matrix")
	require.NoError(t, err)

	css := theme.CSSVariables()
	assert.Contains(t, css, "--primary: #00ff41;")
	assert.Contains(t, css, "--bg-panel: #002b00;")

	// One declaration per color field.
	assert.Equal(t, 18, strings.Count(css, "--"))
}
