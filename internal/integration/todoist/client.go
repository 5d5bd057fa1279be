package todoist

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const defaultBaseURL = "https://api.todoist.com/rest/v2"

type apiTask struct {
	ID        string   `json:"id"`
	Content   string   `json:"content"`
	Priority  int      `json:"priority"`
	ProjectID string   `json:"project_id"`
	Labels    []string `json:"labels"`
	Due       *apiDue  `json:"due"`
}

type apiDue struct {
	Date        string `json:"date"`
	String      string `json:"string"`
	IsRecurring bool   `json:"is_recurring"`
}

type apiProject struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type apiClient struct {
	baseURL string
	token   string
	http    *http.Client
}

func newAPIClient(baseURL, token string) *apiClient {
	return &apiClient{
		baseURL: baseURL,
		token:   token,
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

func (a *apiClient) activeTasks(ctx context.Context) ([]apiTask, error) {
	var tasks []apiTask
	if err := a.get(ctx, "/tasks", &tasks); err != nil {
		return nil, err
	}
	return tasks, nil
}

func (a *apiClient) projects(ctx context.Context) ([]apiProject, error) {
	var projects []apiProject
	if err := a.get(ctx, "/projects", &projects); err != nil {
		return nil, err
	}
	return projects, nil
}

func (a *apiClient) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+a.token)

	resp, err := a.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("todoist API %s: %s: %s", path, resp.Status, body)
	}

	return json.NewDecoder(resp.Body).Decode(out)
}
