package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"html/template"
	"log"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/homedash/backend/internal/config"
	"github.com/homedash/backend/internal/integration"
	"github.com/homedash/backend/internal/themes"
	"github.com/homedash/backend/internal/widget"
)

// IntegrationStatus is the /api/integrations view of one integration,
// whether or not it loaded.
type IntegrationStatus struct {
	Name                   string  `json:"name"`
	DisplayName            string  `json:"display_name"`
	RefreshIntervalSeconds float64 `json:"refresh_interval"`
	Loaded                 bool    `json:"loaded"`
	Mode                   string  `json:"mode,omitempty"`
	ConsecutiveFailures    int     `json:"consecutive_failures,omitempty"`
	LastError              string  `json:"last_error,omitempty"`
}

// StatusFunc supplies the current integration statuses. Wired up in
// cmd/server from the registry and the refresh supervisor.
type StatusFunc func() []IntegrationStatus

type Server struct {
	cfg          *config.Config
	theme        themes.Theme
	store        *widget.Store
	broadcaster  *Broadcaster
	integrations map[string]integration.Integration
	statusFn     StatusFunc
	static       http.Handler
	page         *template.Template
}

func NewServer(cfg *config.Config, theme themes.Theme, store *widget.Store, broadcaster *Broadcaster, integrations []integration.Integration, statusFn StatusFunc, static http.Handler) *Server {
	byName := make(map[string]integration.Integration, len(integrations))
	for _, integ := range integrations {
		byName[integ.Name()] = integ
	}

	return &Server{
		cfg:          cfg,
		theme:        theme,
		store:        store,
		broadcaster:  broadcaster,
		integrations: byName,
		statusFn:     statusFn,
		static:       static,
		page:         template.Must(template.New("dashboard").Parse(dashboardPage)),
	}
}

func (s *Server) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/", s.handleDashboard)
	mux.HandleFunc("/ws", s.handleWS)
	mux.HandleFunc("/api/widgets/", s.handleWidget)
	mux.HandleFunc("/api/integrations", s.handleIntegrations)
	mux.HandleFunc("/api/themes", s.handleThemes)
	mux.HandleFunc("/api/reload", s.handleReload)
	mux.Handle("/metrics", promhttp.Handler())

	if s.static != nil {
		mux.Handle("/static/", http.StripPrefix("/static/", s.static))
	}
}

// --- WebSocket ---

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	upgrader := websocket.Upgrader{
		CheckOrigin: s.checkOrigin,
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade error: %v", err)
		return
	}

	log.Printf("Viewer connected: %s", r.RemoteAddr)
	c := s.broadcaster.AddClient(conn)

	go func() {
		defer func() {
			s.broadcaster.RemoveClient(c)
			log.Printf("Viewer disconnected: %s", r.RemoteAddr)
		}()
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			// Liveness check; everything else from viewers is ignored.
			if string(data) == "ping" {
				c.trySend([]byte("pong"))
			}
		}
	}()
}

func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}

	parsed, err := url.Parse(origin)
	if err != nil {
		return false
	}

	host := parsed.Host
	if host == "" {
		return false
	}

	if host == r.Host {
		return true
	}

	if strings.HasPrefix(host, "localhost:") || host == "localhost" {
		return true
	}
	if strings.HasPrefix(host, "127.0.0.1:") || host == "127.0.0.1" {
		return true
	}
	if strings.HasPrefix(host, "[::1]:") || host == "::1" {
		return true
	}

	return false
}

// --- Dashboard page ---

type pageWidget struct {
	Name        string
	DisplayName string
	HTML        template.HTML
	Position    int
}

type pageData struct {
	Title   string
	CSSVars template.CSS
	Columns int
	Widgets []pageWidget
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	widgets := s.cfg.EnabledWidgets()
	sort.SliceStable(widgets, func(i, j int) bool {
		return widgets[i].Position < widgets[j].Position
	})

	data := pageData{
		Title:   s.cfg.Dashboard.Title,
		CSSVars: template.CSS(s.theme.CSSVariables()),
		Columns: s.cfg.Layout.Columns,
	}

	for _, wc := range widgets {
		integ, ok := s.integrations[wc.Integration]
		if !ok {
			continue
		}
		data.Widgets = append(data.Widgets, pageWidget{
			Name:        integ.Name(),
			DisplayName: integ.DisplayName(),
			HTML:        template.HTML(s.currentHTML(r.Context(), integ)),
			Position:    wc.Position,
		})
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.page.Execute(w, data); err != nil {
		log.Printf("dashboard render error: %v", err)
	}
}

// currentHTML returns the last rendered fragment for the integration,
// falling back to a live fetch+render when nothing was rendered yet.
func (s *Server) currentHTML(ctx context.Context, integ integration.Integration) string {
	if cached, ok := s.store.Get(integ.Name()); ok {
		return cached.HTML
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	data, err := integ.Fetch(ctx)
	if err != nil {
		log.Printf("Error loading widget %s: %v", integ.Name(), err)
		return fmt.Sprintf(`<div class="widget-error">Error loading %s</div>`, template.HTMLEscapeString(integ.Name()))
	}
	html, err := integ.Render(data)
	if err != nil {
		log.Printf("Error rendering widget %s: %v", integ.Name(), err)
		return fmt.Sprintf(`<div class="widget-error">Error loading %s</div>`, template.HTMLEscapeString(integ.Name()))
	}

	s.store.Put(integ.Name(), html)
	return html
}

// --- JSON API ---

func (s *Server) handleWidget(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimPrefix(r.URL.Path, "/api/widgets/")
	integ, ok := s.integrations[name]
	if !ok {
		http.Error(w, fmt.Sprintf("unknown integration: %s", name), http.StatusNotFound)
		return
	}

	if cached, ok := s.store.Get(name); ok {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, cached.HTML)
		return
	}

	data, err := integ.Fetch(r.Context())
	if err != nil {
		log.Printf("Error fetching widget %s: %v", name, err)
		http.Error(w, "error loading widget", http.StatusInternalServerError)
		return
	}
	html, err := integ.Render(data)
	if err != nil {
		log.Printf("Error rendering widget %s: %v", name, err)
		http.Error(w, "error loading widget", http.StatusInternalServerError)
		return
	}

	s.store.Put(name, html)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprint(w, html)
}

func (s *Server) handleIntegrations(w http.ResponseWriter, r *http.Request) {
	var statuses []IntegrationStatus
	if s.statusFn != nil {
		statuses = s.statusFn()
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(statuses)
}

func (s *Server) handleThemes(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"themes":  themes.List(),
		"current": s.theme.Name,
	})
}

func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.broadcaster.BroadcastReload()
	w.WriteHeader(http.StatusNoContent)
}

func ListenAndServe(host string, port int, mux *http.ServeMux) error {
	addr := fmt.Sprintf("%s:%d", host, port)
	log.Printf("Dashboard listening on %s", addr)
	return http.ListenAndServe(addr, mux)
}
