package example

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/homedash/backend/internal/config"
)

func TestDefaults(t *testing.T) {
	integ, err := New(&config.Credentials{})
	require.NoError(t, err)

	assert.Equal(t, "example", integ.Name())
	assert.Equal(t, "Example Widget", integ.DisplayName())
	assert.Equal(t, 5*time.Second, integ.RefreshInterval())
}

func TestFetchAndRender(t *testing.T) {
	w := &Widget{
		message:  "Hello & welcome",
		interval: 5 * time.Second,
		now: func() time.Time {
			return time.Date(2025, time.March, 14, 9, 26, 53, 0, time.UTC)
		},
		intn: func(n int) int { return 0 },
	}

	data, err := w.Fetch(context.Background())
	require.NoError(t, err)

	html, err := w.Render(data)
	require.NoError(t, err)

	assert.Contains(t, html, "09:26:53")
	assert.Contains(t, html, "Friday, March 14, 2025")
	assert.Contains(t, html, "Hello &amp; welcome") // template escapes the message
	assert.Contains(t, html, "10%")
	assert.Contains(t, html, "30%")
	assert.Contains(t, html, "40°C")
}

func TestRenderRejectsForeignData(t *testing.T) {
	w := &Widget{}
	_, err := w.Render(42)
	assert.Error(t, err)
}
