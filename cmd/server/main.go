package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"github.com/jonboulle/clockwork"

	"github.com/homedash/backend/internal/config"
	"github.com/homedash/backend/internal/frontend"
	"github.com/homedash/backend/internal/integration"
	"github.com/homedash/backend/internal/integration/cameras"
	"github.com/homedash/backend/internal/integration/example"
	"github.com/homedash/backend/internal/integration/sysmetrics"
	"github.com/homedash/backend/internal/integration/todoist"
	"github.com/homedash/backend/internal/refresh"
	"github.com/homedash/backend/internal/themes"
	"github.com/homedash/backend/internal/widget"
	"github.com/homedash/backend/internal/ws"
)

func main() {
	configPath := flag.String("config", "config.yaml", "Path to config file")
	port := flag.Int("port", 0, "Override server port")
	demoMode := flag.Bool("demo", false, "Serve only the example widget, no credentials needed")
	devMode := flag.Bool("dev", false, "Serve static assets from the filesystem")
	staticDir := flag.String("static", "internal/frontend/static", "Static asset directory for -dev")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		if !*demoMode {
			log.Fatalf("Failed to load config: %v", err)
		}
		log.Printf("No config at %s, using defaults for demo mode", *configPath)
		cfg = config.Default()
	}

	if *port > 0 {
		cfg.Server.Port = *port
	}
	if *demoMode {
		log.Println("Starting in demo mode")
		cfg.Layout.Widgets = []config.WidgetConfig{{Integration: "example", Position: 0}}
	}

	creds, err := config.LoadCredentials(*configPath)
	if err != nil {
		log.Fatalf("Failed to load credentials: %v", err)
	}

	theme, err := themes.Get(cfg.Dashboard.Theme)
	if err != nil {
		log.Fatalf("Failed to load theme: %v", err)
	}

	registry := integration.NewRegistry()
	registry.Register("example", example.New)
	registry.Register("sysmetrics", sysmetrics.New)
	registry.Register("todoist", todoist.New)
	registry.Register("cameras", cameras.New)

	integrations := registry.LoadAll(cfg, creds)
	log.Printf("Loaded %d integration(s)", len(integrations))

	store := widget.NewStore()
	broadcaster := ws.NewBroadcaster()
	supervisor := refresh.NewSupervisor(integrations, broadcaster, store, clockwork.NewRealClock())

	var static http.Handler
	if *devMode {
		log.Printf("Serving static assets from %s", *staticDir)
		static = frontend.DirHandler(*staticDir)
	} else {
		static = frontend.Handler()
	}

	statusFn := statusReporter(cfg, integrations, supervisor)
	server := ws.NewServer(cfg, theme, store, broadcaster, integrations, statusFn, static)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	supervisor.Start(ctx)

	mux := http.NewServeMux()
	server.SetupRoutes(mux)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Println("Shutting down...")
		cancel()
		supervisor.Stop()
		broadcaster.Stop()
		os.Exit(0)
	}()

	if err := ws.ListenAndServe(cfg.Server.Host, cfg.Server.Port, mux); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}

// statusReporter builds the /api/integrations payload: every configured
// widget, whether its integration loaded, and the refresh mode its driver
// settled on.
func statusReporter(cfg *config.Config, integrations []integration.Integration, supervisor *refresh.Supervisor) ws.StatusFunc {
	loaded := make(map[string]integration.Integration, len(integrations))
	for _, integ := range integrations {
		loaded[integ.Name()] = integ
	}

	return func() []ws.IntegrationStatus {
		driverStatus := supervisor.Status()

		var statuses []ws.IntegrationStatus
		seen := make(map[string]bool)
		for _, w := range cfg.EnabledWidgets() {
			if seen[w.Integration] {
				continue
			}
			seen[w.Integration] = true

			status := ws.IntegrationStatus{Name: w.Integration}
			integ, ok := loaded[w.Integration]
			if !ok {
				statuses = append(statuses, status)
				continue
			}

			status.DisplayName = integ.DisplayName()
			status.RefreshIntervalSeconds = integ.RefreshInterval().Seconds()
			status.Loaded = true
			if ds, ok := driverStatus[w.Integration]; ok {
				status.Mode = string(ds.Mode)
				status.ConsecutiveFailures = ds.ConsecutiveFailures
				status.LastError = ds.LastError
			}
			statuses = append(statuses, status)
		}

		sort.Slice(statuses, func(i, j int) bool { return statuses[i].Name < statuses[j].Name })
		return statuses
	}
}
