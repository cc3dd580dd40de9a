package dida

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"golang.org/x/oauth2"
)

type capturedRequest struct {
	method string
	path   string
	auth   string
	body   []byte
}

// fakeAPI serves canned responses and records what the client sent.
type fakeAPI struct {
	t        *testing.T
	status   int
	response string

	requests []capturedRequest
}

func (f *fakeAPI) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			f.t.Errorf("reading request body: %v", err)
		}
		f.requests = append(f.requests, capturedRequest{
			method: r.Method,
			path:   r.URL.Path,
			auth:   r.Header.Get("Authorization"),
			body:   body,
		})

		w.Header().Set("Content-Type", "application/json")
		if f.status != 0 {
			w.WriteHeader(f.status)
		}
		_, _ = io.WriteString(w, f.response)
	}
}

func (f *fakeAPI) last() capturedRequest {
	if len(f.requests) == 0 {
		f.t.Fatal("no request captured")
	}
	return f.requests[len(f.requests)-1]
}

func newFakeClient(t *testing.T, status int, response string) (*Client, *fakeAPI) {
	t.Helper()
	api := &fakeAPI{t: t, status: status, response: response}
	srv := httptest.NewServer(api.handler())
	t.Cleanup(srv.Close)

	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "test-token"})
	return New(srv.URL, ts), api
}

func TestListProjects(t *testing.T) {
	client, api := newFakeClient(t, http.StatusOK,
		`[{"id":"p1","name":"Inbox","viewMode":"list"},{"id":"p2","name":"Work","viewMode":"kanban"}]`)

	projects, err := client.ListProjects(context.Background())
	if err != nil {
		t.Fatalf("ListProjects failed: %v", err)
	}

	req := api.last()
	if req.method != http.MethodGet || req.path != "/project" {
		t.Errorf("request = %s %s, want GET /project", req.method, req.path)
	}
	if req.auth != "Bearer test-token" {
		t.Errorf("Authorization = %q, want Bearer test-token", req.auth)
	}

	if len(projects) != 2 {
		t.Fatalf("got %d projects, want 2", len(projects))
	}
	if projects[1].Name != "Work" || projects[1].ViewMode != "kanban" {
		t.Errorf("second project = %+v", projects[1])
	}
}

func TestGetProjectData(t *testing.T) {
	client, api := newFakeClient(t, http.StatusOK,
		`{"project":{"id":"p1","name":"Inbox"},"tasks":[{"id":"t1","projectId":"p1","title":"Buy milk","tags":["errand"]}]}`)

	data, err := client.GetProjectData(context.Background(), "p1")
	if err != nil {
		t.Fatalf("GetProjectData failed: %v", err)
	}

	if req := api.last(); req.path != "/project/p1/data" {
		t.Errorf("path = %q, want /project/p1/data", req.path)
	}
	if len(data.Tasks) != 1 || data.Tasks[0].Title != "Buy milk" {
		t.Errorf("tasks = %+v", data.Tasks)
	}
}

func TestCreateTask(t *testing.T) {
	client, api := newFakeClient(t, http.StatusOK,
		`{"id":"t1","projectId":"p1","title":"Buy milk","priority":3,"dueDate":"2026-09-01T09:00:00+0800"}`)

	created, err := client.CreateTask(context.Background(), Task{
		Title:     "Buy milk",
		ProjectID: "p1",
		Priority:  3,
		DueDate:   "2026-09-01T09:00:00+0800",
	})
	if err != nil {
		t.Fatalf("CreateTask failed: %v", err)
	}

	req := api.last()
	if req.method != http.MethodPost || req.path != "/task" {
		t.Errorf("request = %s %s, want POST /task", req.method, req.path)
	}

	var sent map[string]any
	if err := json.Unmarshal(req.body, &sent); err != nil {
		t.Fatalf("request body is not valid JSON: %v", err)
	}
	if sent["title"] != "Buy milk" || sent["projectId"] != "p1" {
		t.Errorf("request body = %s", req.body)
	}
	if sent["dueDate"] != "2026-09-01T09:00:00+0800" {
		t.Errorf("dueDate = %v", sent["dueDate"])
	}

	if created.ID != "t1" {
		t.Errorf("created.ID = %q, want t1", created.ID)
	}
}

func TestUpdateTask(t *testing.T) {
	client, api := newFakeClient(t, http.StatusOK, `{"id":"t1","projectId":"p1","title":"Renamed"}`)

	updated, err := client.UpdateTask(context.Background(), Task{ID: "t1", ProjectID: "p1", Title: "Renamed"})
	if err != nil {
		t.Fatalf("UpdateTask failed: %v", err)
	}

	if req := api.last(); req.path != "/task/t1" || req.method != http.MethodPost {
		t.Errorf("request = %s %s, want POST /task/t1", req.method, req.path)
	}
	if updated.Title != "Renamed" {
		t.Errorf("updated.Title = %q", updated.Title)
	}
}

func TestCompleteTask(t *testing.T) {
	client, api := newFakeClient(t, http.StatusOK, "")

	if err := client.CompleteTask(context.Background(), "p1", "t1"); err != nil {
		t.Fatalf("CompleteTask failed: %v", err)
	}

	req := api.last()
	if req.method != http.MethodPost || req.path != "/project/p1/task/t1/complete" {
		t.Errorf("request = %s %s, want POST /project/p1/task/t1/complete", req.method, req.path)
	}
}

func TestDeleteTask(t *testing.T) {
	client, api := newFakeClient(t, http.StatusOK, "")

	if err := client.DeleteTask(context.Background(), "p1", "t1"); err != nil {
		t.Fatalf("DeleteTask failed: %v", err)
	}

	if req := api.last(); req.method != http.MethodDelete || req.path != "/project/p1/task/t1" {
		t.Errorf("request = %s %s, want DELETE /project/p1/task/t1", req.method, req.path)
	}
}

func TestPathEscaping(t *testing.T) {
	var rawPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rawPath = r.URL.EscapedPath()
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{}`)
	}))
	t.Cleanup(srv.Close)

	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "test-token"})
	client := New(srv.URL, ts)

	if _, err := client.GetTask(context.Background(), "p/1", "t 2"); err != nil {
		t.Fatalf("GetTask failed: %v", err)
	}

	// IDs with reserved characters stay single path segments on the wire.
	if rawPath != "/project/p%2F1/task/t%202" {
		t.Errorf("escaped path = %q, want /project/p%%2F1/task/t%%202", rawPath)
	}
}

func TestAPIErrorStructured(t *testing.T) {
	client, _ := newFakeClient(t, http.StatusForbidden,
		`{"errorId":"abc","errorCode":"task_exceed_quota","errorMessage":"quota exceeded"}`)

	_, err := client.ListProjects(context.Background())
	if err == nil {
		t.Fatal("expected error for 403 response")
	}

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error is not *APIError: %v", err)
	}
	if apiErr.StatusCode != http.StatusForbidden {
		t.Errorf("StatusCode = %d, want 403", apiErr.StatusCode)
	}
	if apiErr.Code != "task_exceed_quota" {
		t.Errorf("Code = %q, want task_exceed_quota", apiErr.Code)
	}
	if apiErr.Message != "quota exceeded" {
		t.Errorf("Message = %q, want quota exceeded", apiErr.Message)
	}
}

func TestAPIErrorUnstructuredBody(t *testing.T) {
	client, _ := newFakeClient(t, http.StatusBadGateway, `upstream unavailable`)

	_, err := client.ListProjects(context.Background())
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error is not *APIError: %v", err)
	}
	if apiErr.Code != "" || apiErr.Message != "" {
		t.Errorf("structured fields should be empty for non-JSON body, got code=%q message=%q",
			apiErr.Code, apiErr.Message)
	}
	if string(apiErr.Body) != "upstream unavailable" {
		t.Errorf("Body = %q", apiErr.Body)
	}
}

func TestEmptyResponseBody(t *testing.T) {
	client, _ := newFakeClient(t, http.StatusOK, "")

	// A 200 with an empty body must not fail decoding for result-bearing calls.
	task, err := client.GetTask(context.Background(), "p1", "t1")
	if err != nil {
		t.Fatalf("GetTask failed: %v", err)
	}
	if task.ID != "" {
		t.Errorf("task = %+v, want zero value", task)
	}
}
