// Package example is a self-contained demo integration. It needs no
// credentials and no network, which makes it the template to copy when
// adding a real integration and the widget to enable when trying the
// dashboard out.
package example

import (
	"context"
	_ "embed"
	"fmt"
	"html/template"
	"math/rand"
	"strings"
	"time"

	"github.com/homedash/backend/internal/config"
	"github.com/homedash/backend/internal/integration"
)

//go:embed widget.html
var widgetHTML string

var widgetTmpl = template.Must(template.New("example").Parse(widgetHTML))

type settings struct {
	Message         string `yaml:"message"`
	RefreshInterval int    `yaml:"refresh_interval"`
}

type stat struct {
	Label string
	Value int
	Unit  string
}

type snapshot struct {
	CurrentTime string
	CurrentDate string
	Message     string
	Stats       []stat
}

type Widget struct {
	message  string
	interval time.Duration
	now      func() time.Time
	intn     func(n int) int
}

// New builds the example widget. The optional credentials block may
// override the greeting message and refresh cadence.
func New(creds *config.Credentials) (integration.Integration, error) {
	cfg := settings{
		Message:         "Welcome to Dashboard",
		RefreshInterval: 5,
	}
	if err := creds.Decode("example", &cfg); err != nil {
		return nil, err
	}

	return &Widget{
		message:  cfg.Message,
		interval: time.Duration(cfg.RefreshInterval) * time.Second,
		now:      time.Now,
		intn:     rand.Intn,
	}, nil
}

func (w *Widget) Name() string                   { return "example" }
func (w *Widget) DisplayName() string            { return "Example Widget" }
func (w *Widget) RefreshInterval() time.Duration { return w.interval }

func (w *Widget) Fetch(ctx context.Context) (any, error) {
	now := w.now()
	return snapshot{
		CurrentTime: now.Format("15:04:05"),
		CurrentDate: now.Format("Monday, January 2, 2006"),
		Message:     w.message,
		Stats: []stat{
			{Label: "CPU", Value: 10 + w.intn(81), Unit: "%"},
			{Label: "Memory", Value: 30 + w.intn(51), Unit: "%"},
			{Label: "Temp", Value: 40 + w.intn(31), Unit: "°C"},
		},
	}, nil
}

func (w *Widget) Render(data any) (string, error) {
	snap, ok := data.(snapshot)
	if !ok {
		return "", fmt.Errorf("example: unexpected data type %T", data)
	}

	var b strings.Builder
	if err := widgetTmpl.Execute(&b, snap); err != nil {
		return "", err
	}
	return b.String(), nil
}
