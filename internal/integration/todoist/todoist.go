// Package todoist shows today's and overdue tasks from a Todoist account
// using the REST v2 API.
package todoist

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"html/template"
	"sort"
	"strings"
	"time"

	"github.com/homedash/backend/internal/config"
	"github.com/homedash/backend/internal/integration"
)

//go:embed widget.html
var widgetHTML string

var widgetTmpl = template.Must(template.New("todoist").Parse(widgetHTML))

type settings struct {
	APIToken        string `yaml:"api_token"`
	MaxTasks        int    `yaml:"max_tasks"`
	RefreshInterval int    `yaml:"refresh_rate"`
}

// TaskView is one task as shown in the widget.
type TaskView struct {
	Content     string
	Priority    int
	ProjectName string
	DueString   string
	Labels      []string
}

// Snapshot is the categorized task list for one refresh cycle.
type Snapshot struct {
	TodayTasks    []TaskView
	OverdueTasks  []TaskView
	UpcomingCount int
	TotalTasks    int
	ProjectCount  int
	MaxTasks      int
}

type Client struct {
	api      *apiClient
	maxTasks int
	interval time.Duration
	now      func() time.Time
}

func New(creds *config.Credentials) (integration.Integration, error) {
	cfg := settings{
		MaxTasks:        10,
		RefreshInterval: 60,
	}
	if err := creds.Decode("todoist", &cfg); err != nil {
		return nil, err
	}
	if cfg.APIToken == "" {
		return nil, errors.New("todoist: api_token is required")
	}

	return &Client{
		api:      newAPIClient(defaultBaseURL, cfg.APIToken),
		maxTasks: cfg.MaxTasks,
		interval: time.Duration(cfg.RefreshInterval) * time.Second,
		now:      time.Now,
	}, nil
}

func (c *Client) Name() string                   { return "todoist" }
func (c *Client) DisplayName() string            { return "Todoist" }
func (c *Client) RefreshInterval() time.Duration { return c.interval }

func (c *Client) Fetch(ctx context.Context) (any, error) {
	tasks, err := c.api.activeTasks(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetching tasks: %w", err)
	}

	projects, err := c.api.projects(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetching projects: %w", err)
	}
	projectNames := make(map[string]string, len(projects))
	for _, p := range projects {
		projectNames[p.ID] = p.Name
	}

	snap := Snapshot{
		TotalTasks:   len(tasks),
		ProjectCount: len(projects),
		MaxTasks:     c.maxTasks,
	}

	today := dayOf(c.now())
	for _, t := range tasks {
		view := TaskView{
			Content:     t.Content,
			Priority:    t.Priority,
			ProjectName: projectNames[t.ProjectID],
			Labels:      t.Labels,
		}
		if t.Due != nil {
			view.DueString = t.Due.String
		}

		due, ok := dueDay(t)
		switch {
		case !ok:
			snap.UpcomingCount++
		case due.Before(today):
			snap.OverdueTasks = append(snap.OverdueTasks, view)
		case due.Equal(today):
			snap.TodayTasks = append(snap.TodayTasks, view)
		default:
			snap.UpcomingCount++
		}
	}

	// Highest priority first. Todoist uses 4 for p1 down to 1 for p4.
	byPriority := func(tasks []TaskView) func(i, j int) bool {
		return func(i, j int) bool { return tasks[i].Priority > tasks[j].Priority }
	}
	sort.SliceStable(snap.TodayTasks, byPriority(snap.TodayTasks))
	sort.SliceStable(snap.OverdueTasks, byPriority(snap.OverdueTasks))

	if len(snap.TodayTasks) > c.maxTasks {
		snap.TodayTasks = snap.TodayTasks[:c.maxTasks]
	}
	if len(snap.OverdueTasks) > c.maxTasks {
		snap.OverdueTasks = snap.OverdueTasks[:c.maxTasks]
	}

	return snap, nil
}

// dueDay parses a task's due date, which the API sends either as a plain
// date or as an RFC 3339 datetime.
func dueDay(t apiTask) (time.Time, bool) {
	if t.Due == nil || t.Due.Date == "" {
		return time.Time{}, false
	}
	if day, err := time.Parse("2006-01-02", t.Due.Date); err == nil {
		return day, true
	}
	if ts, err := time.Parse(time.RFC3339, t.Due.Date); err == nil {
		return dayOf(ts), true
	}
	return time.Time{}, false
}

// dayOf drops the time-of-day so dates compare as calendar days.
func dayOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func (c *Client) Render(data any) (string, error) {
	snap, ok := data.(Snapshot)
	if !ok {
		return "", fmt.Errorf("todoist: unexpected data type %T", data)
	}

	var b strings.Builder
	if err := widgetTmpl.Execute(&b, snap); err != nil {
		return "", err
	}
	return b.String(), nil
}
