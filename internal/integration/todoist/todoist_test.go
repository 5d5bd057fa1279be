package todoist

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/homedash/backend/internal/config"
)

const (
	tasksJSON = `[
		{"id": "1", "content": "Water plants", "priority": 1, "project_id": "p1",
		 "due": {"date": "2025-06-10", "string": "today"}},
		{"id": "2", "content": "Pay rent", "priority": 4, "project_id": "p1",
		 "due": {"date": "2025-06-10", "string": "today"}},
		{"id": "3", "content": "Return parcel", "priority": 2, "project_id": "p2",
		 "due": {"date": "2025-06-08", "string": "Jun 8"}},
		{"id": "4", "content": "Book dentist", "priority": 1, "project_id": "p2",
		 "due": {"date": "2025-06-20", "string": "Jun 20"}},
		{"id": "5", "content": "Someday idea", "priority": 1, "project_id": "p2"}
	]`
	projectsJSON = `[
		{"id": "p1", "name": "Home"},
		{"id": "p2", "name": "Errands"}
	]`
)

func testServer(t *testing.T, tasks, projects string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/tasks":
			w.Write([]byte(tasks))
		case "/projects":
			w.Write([]byte(projects))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func testClient(srv *httptest.Server) *Client {
	return &Client{
		api:      newAPIClient(srv.URL, "test-token"),
		maxTasks: 10,
		interval: time.Minute,
		now: func() time.Time {
			return time.Date(2025, time.June, 10, 14, 0, 0, 0, time.UTC)
		},
	}
}

func TestNewRequiresToken(t *testing.T) {
	_, err := New(&config.Credentials{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "api_token")
}

func TestFetchCategorizesTasks(t *testing.T) {
	c := testClient(testServer(t, tasksJSON, projectsJSON))

	data, err := c.Fetch(context.Background())
	require.NoError(t, err)
	snap := data.(Snapshot)

	require.Len(t, snap.TodayTasks, 2)
	// Priority 4 sorts before priority 1.
	assert.Equal(t, "Pay rent", snap.TodayTasks[0].Content)
	assert.Equal(t, "Water plants", snap.TodayTasks[1].Content)
	assert.Equal(t, "Home", snap.TodayTasks[0].ProjectName)

	require.Len(t, snap.OverdueTasks, 1)
	assert.Equal(t, "Return parcel", snap.OverdueTasks[0].Content)

	// Future-dated and undated tasks both count as upcoming.
	assert.Equal(t, 2, snap.UpcomingCount)
	assert.Equal(t, 5, snap.TotalTasks)
	assert.Equal(t, 2, snap.ProjectCount)
}

func TestFetchCapsAtMaxTasks(t *testing.T) {
	c := testClient(testServer(t, tasksJSON, projectsJSON))
	c.maxTasks = 1

	data, err := c.Fetch(context.Background())
	require.NoError(t, err)
	snap := data.(Snapshot)

	require.Len(t, snap.TodayTasks, 1)
	assert.Equal(t, "Pay rent", snap.TodayTasks[0].Content)
}

func TestFetchDatetimeDue(t *testing.T) {
	tasks := `[{"id": "1", "content": "Standup", "priority": 3, "project_id": "p1",
		"due": {"date": "2025-06-10T09:00:00Z", "string": "9am"}}]`
	c := testClient(testServer(t, tasks, projectsJSON))

	data, err := c.Fetch(context.Background())
	require.NoError(t, err)
	snap := data.(Snapshot)

	require.Len(t, snap.TodayTasks, 1)
	assert.Equal(t, "Standup", snap.TodayTasks[0].Content)
}

func TestFetchAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad token", http.StatusUnauthorized)
	}))
	t.Cleanup(srv.Close)

	c := testClient(srv)
	_, err := c.Fetch(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
}

func TestRender(t *testing.T) {
	c := testClient(testServer(t, tasksJSON, projectsJSON))
	data, err := c.Fetch(context.Background())
	require.NoError(t, err)

	html, err := c.Render(data)
	require.NoError(t, err)

	assert.Contains(t, html, "Pay rent")
	assert.Contains(t, html, "Return parcel")
	assert.Contains(t, html, "Overdue")
	assert.Contains(t, html, "2 upcoming")
	assert.Contains(t, html, "5 tasks in 2 projects")
}

func TestRenderEmptyToday(t *testing.T) {
	c := testClient(testServer(t, `[]`, `[]`))
	data, err := c.Fetch(context.Background())
	require.NoError(t, err)

	html, err := c.Render(data)
	require.NoError(t, err)
	assert.Contains(t, html, "Nothing due today")
	assert.NotContains(t, html, "Overdue")
}
