package ws

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/homedash/backend/internal/config"
	"github.com/homedash/backend/internal/integration"
	"github.com/homedash/backend/internal/themes"
	"github.com/homedash/backend/internal/widget"
)

type stubIntegration struct {
	name    string
	fetch   func(ctx context.Context) (any, error)
	render  func(data any) (string, error)
	display string
}

func (s *stubIntegration) Name() string { return s.name }
func (s *stubIntegration) DisplayName() string {
	if s.display != "" {
		return s.display
	}
	return s.name
}
func (s *stubIntegration) RefreshInterval() time.Duration { return 30 * time.Second }
func (s *stubIntegration) Fetch(ctx context.Context) (any, error) {
	if s.fetch != nil {
		return s.fetch(ctx)
	}
	return "data", nil
}
func (s *stubIntegration) Render(data any) (string, error) {
	if s.render != nil {
		return s.render(data)
	}
	return "<div>stub</div>", nil
}

func testConfig(widgets ...string) *config.Config {
	cfg := &config.Config{
		Dashboard: config.DashboardConfig{
			Title: "Test Dashboard",
			Theme: "industrial",
		},
		Layout: config.LayoutConfig{Columns: 2},
	}
	for i, name := range widgets {
		cfg.Layout.Widgets = append(cfg.Layout.Widgets, config.WidgetConfig{
			Integration: name,
			Position:    i,
		})
	}
	return cfg
}

func newTestServer(t *testing.T, cfg *config.Config, store *widget.Store, integrations []integration.Integration, statusFn StatusFunc) (*httptest.Server, *Broadcaster) {
	t.Helper()

	theme, err := themes.Get(cfg.Dashboard.Theme)
	require.NoError(t, err)

	b := NewBroadcaster()
	t.Cleanup(b.Stop)

	srv := NewServer(cfg, theme, store, b, integrations, statusFn, nil)
	mux := http.NewServeMux()
	srv.SetupRoutes(mux)

	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)
	return ts, b
}

func dialWS(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestPingPong(t *testing.T) {
	ts, _ := newTestServer(t, testConfig(), widget.NewStore(), nil, nil)
	conn := dialWS(t, ts)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("ping")))

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, "pong", string(data))
}

func TestNonPingInboundIgnored(t *testing.T) {
	ts, b := newTestServer(t, testConfig(), widget.NewStore(), nil, nil)
	conn := dialWS(t, ts)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("hello?")))

	// No automatic reply; the next frame the viewer sees is a broadcast.
	require.Eventually(t, func() bool { return b.ClientCount() == 1 }, time.Second, 10*time.Millisecond)
	b.Broadcast("x", "<div>next</div>")

	env := readEnvelope(t, conn)
	assert.Equal(t, MsgWidgetUpdate, env.Type)
}

func TestViewerBroadcastRoundTrip(t *testing.T) {
	ts, b := newTestServer(t, testConfig(), widget.NewStore(), nil, nil)
	conn := dialWS(t, ts)

	require.Eventually(t, func() bool { return b.ClientCount() == 1 }, time.Second, 10*time.Millisecond)

	b.Broadcast("sysmetrics", "<div>cpu</div>")
	env := readEnvelope(t, conn)
	assert.Equal(t, "sysmetrics", env.Integration)

	conn.Close()
	require.Eventually(t, func() bool { return b.ClientCount() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestDashboardPage(t *testing.T) {
	store := widget.NewStore()
	store.Put("tasks", "<div>3 open tasks</div>")

	integ := &stubIntegration{name: "tasks", display: "Todoist"}
	ts, _ := newTestServer(t, testConfig("tasks"), store, []integration.Integration{integ}, nil)

	resp, err := http.Get(ts.URL + "/")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	page := string(body)

	assert.Contains(t, page, "Test Dashboard")
	assert.Contains(t, page, `data-widget="tasks"`)
	assert.Contains(t, page, "Todoist")
	assert.Contains(t, page, "<div>3 open tasks</div>") // cached render, not escaped
	assert.Contains(t, page, "--primary: #00d4ff;")     // industrial theme vars
}

func TestDashboardPageLiveFallback(t *testing.T) {
	integ := &stubIntegration{
		name:   "tasks",
		render: func(any) (string, error) { return "<div>fresh</div>", nil },
	}
	store := widget.NewStore()
	ts, _ := newTestServer(t, testConfig("tasks"), store, []integration.Integration{integ}, nil)

	resp, err := http.Get(ts.URL + "/")
	require.NoError(t, err)
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(body), "<div>fresh</div>")

	// The live render is cached for the next request.
	cached, ok := store.Get("tasks")
	require.True(t, ok)
	assert.Equal(t, "<div>fresh</div>", cached.HTML)
}

func TestWidgetAPI(t *testing.T) {
	store := widget.NewStore()
	store.Put("tasks", "<div>cached</div>")
	integ := &stubIntegration{name: "tasks"}

	ts, _ := newTestServer(t, testConfig("tasks"), store, []integration.Integration{integ}, nil)

	resp, err := http.Get(ts.URL + "/api/widgets/tasks")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, "<div>cached</div>", string(body))

	resp, err = http.Get(ts.URL + "/api/widgets/nope")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestIntegrationsAPI(t *testing.T) {
	statusFn := func() []IntegrationStatus {
		return []IntegrationStatus{
			{Name: "tasks", DisplayName: "Todoist", RefreshIntervalSeconds: 60, Loaded: true, Mode: "polling"},
			{Name: "cameras", DisplayName: "Cameras", RefreshIntervalSeconds: 30, Loaded: false},
		}
	}
	ts, _ := newTestServer(t, testConfig(), widget.NewStore(), nil, statusFn)

	resp, err := http.Get(ts.URL + "/api/integrations")
	require.NoError(t, err)
	defer resp.Body.Close()

	var got []IntegrationStatus
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	require.Len(t, got, 2)
	assert.Equal(t, "polling", got[0].Mode)
	assert.False(t, got[1].Loaded)
}

func TestThemesAPI(t *testing.T) {
	ts, _ := newTestServer(t, testConfig(), widget.NewStore(), nil, nil)

	resp, err := http.Get(ts.URL + "/api/themes")
	require.NoError(t, err)
	defer resp.Body.Close()

	var got struct {
		Themes  []string `json:"themes"`
		Current string   `json:"current"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	assert.Equal(t, "industrial", got.Current)
	assert.Contains(t, got.Themes, "matrix")
}

func TestReloadEndpoint(t *testing.T) {
	ts, b := newTestServer(t, testConfig(), widget.NewStore(), nil, nil)
	conn := dialWS(t, ts)
	require.Eventually(t, func() bool { return b.ClientCount() == 1 }, time.Second, 10*time.Millisecond)

	resp, err := http.Post(ts.URL+"/api/reload", "", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	env := readEnvelope(t, conn)
	assert.Equal(t, MsgRefresh, env.Type)

	// Reload is POST-only.
	getResp, err := http.Get(ts.URL + "/api/reload")
	require.NoError(t, err)
	getResp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, getResp.StatusCode)
}

func TestCheckOrigin(t *testing.T) {
	s := &Server{}

	tests := []struct {
		name   string
		origin string
		host   string
		want   bool
	}{
		{"NoOrigin", "", "dash.local:9753", true},
		{"SameHost", "http://dash.local:9753", "dash.local:9753", true},
		{"Localhost", "http://localhost:3000", "dash.local:9753", true},
		{"Loopback", "http://127.0.0.1:3000", "dash.local:9753", true},
		{"CrossOrigin", "http://evil.example.com", "dash.local:9753", false},
		{"Garbage", "://bad", "dash.local:9753", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/ws", nil)
			r.Host = tt.host
			if tt.origin != "" {
				r.Header.Set("Origin", tt.origin)
			}
			assert.Equal(t, tt.want, s.checkOrigin(r))
		})
	}
}
