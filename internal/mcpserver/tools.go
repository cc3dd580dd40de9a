// Package mcpserver registers the MCP tools that expose Dida365 todo
// operations. It is pure mapping: tool inputs are forwarded to the
// authenticated API client and responses re-serialized for the model.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/didatodolist/dida-mcp/internal/dida"
)

// New builds the MCP server with all Dida365 tools registered.
func New(client *dida.Client, version string) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{Name: "dida-mcp", Version: version}, nil)
	RegisterTools(server, client)
	return server
}

// RegisterTools adds all Dida365 tools to the given MCP server.
func RegisterTools(server *mcp.Server, client *dida.Client) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "dida_list_projects",
		Description: "List all todo projects with their IDs, names and view modes.",
	}, listProjectsHandler(client))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "dida_get_project_data",
		Description: "Get a project together with its undone tasks.",
	}, getProjectDataHandler(client))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "dida_create_project",
		Description: "Create a new todo project.",
	}, createProjectHandler(client))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "dida_delete_project",
		Description: "Delete a project by ID. This also removes its tasks.",
	}, deleteProjectHandler(client))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "dida_get_task",
		Description: "Get a single task by project ID and task ID.",
	}, getTaskHandler(client))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "dida_create_task",
		Description: "Create a task. Dates use ISO 8601, e.g. 2026-09-01T09:00:00+0800.",
	}, createTaskHandler(client))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "dida_update_task",
		Description: "Update fields of an existing task. Requires task ID and project ID.",
	}, updateTaskHandler(client))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "dida_complete_task",
		Description: "Mark a task as completed.",
	}, completeTaskHandler(client))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "dida_delete_task",
		Description: "Delete a task by project ID and task ID.",
	}, deleteTaskHandler(client))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "dida_list_tags",
		Description: "List all tags used by undone tasks in a project.",
	}, listTagsHandler(client))
}

// --- Input types ---
// The MCP SDK infers JSON schema from these struct types via jsonschema tags.

// ListProjectsInput has no parameters.
type ListProjectsInput struct{}

// ProjectInput identifies a project.
type ProjectInput struct {
	ProjectID string `json:"project_id" jsonschema:"required,project ID"`
}

// CreateProjectInput holds parameters for dida_create_project.
type CreateProjectInput struct {
	Name     string `json:"name" jsonschema:"required,project name"`
	Color    string `json:"color,omitempty" jsonschema:"hex color, e.g. #F18181"`
	ViewMode string `json:"view_mode,omitempty" jsonschema:"list, kanban or timeline, defaults to list"`
}

// TaskRefInput identifies a task within a project.
type TaskRefInput struct {
	ProjectID string `json:"project_id" jsonschema:"required,project ID"`
	TaskID    string `json:"task_id" jsonschema:"required,task ID"`
}

// CreateTaskInput holds parameters for dida_create_task.
type CreateTaskInput struct {
	Title     string   `json:"title" jsonschema:"required,task title"`
	ProjectID string   `json:"project_id,omitempty" jsonschema:"project ID, defaults to the inbox"`
	Content   string   `json:"content,omitempty" jsonschema:"task note content"`
	Tags      []string `json:"tags,omitempty" jsonschema:"tag names"`
	Priority  int      `json:"priority,omitempty" jsonschema:"0 none, 1 low, 3 medium, 5 high"`
	StartDate string   `json:"start_date,omitempty" jsonschema:"ISO 8601 start date"`
	DueDate   string   `json:"due_date,omitempty" jsonschema:"ISO 8601 due date"`
	IsAllDay  bool     `json:"is_all_day,omitempty" jsonschema:"all-day task"`
}

// UpdateTaskInput holds parameters for dida_update_task.
type UpdateTaskInput struct {
	TaskID    string   `json:"task_id" jsonschema:"required,task ID"`
	ProjectID string   `json:"project_id" jsonschema:"required,project ID"`
	Title     string   `json:"title,omitempty" jsonschema:"new title"`
	Content   string   `json:"content,omitempty" jsonschema:"new note content"`
	Tags      []string `json:"tags,omitempty" jsonschema:"replacement tag names"`
	Priority  int      `json:"priority,omitempty" jsonschema:"0 none, 1 low, 3 medium, 5 high"`
	StartDate string   `json:"start_date,omitempty" jsonschema:"ISO 8601 start date"`
	DueDate   string   `json:"due_date,omitempty" jsonschema:"ISO 8601 due date"`
}

// TagsResult is the structured output of dida_list_tags.
type TagsResult struct {
	ProjectID string   `json:"project_id"`
	Tags      []string `json:"tags"`
}

// StatusResult reports the outcome of operations without a resource body.
type StatusResult struct {
	Status string `json:"status"`
}

// --- Handlers ---

func listProjectsHandler(client *dida.Client) mcp.ToolHandlerFor[ListProjectsInput, []dida.Project] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, _ ListProjectsInput) (*mcp.CallToolResult, []dida.Project, error) {
		projects, err := client.ListProjects(ctx)
		if err != nil {
			return nil, nil, err
		}
		return textResult(projects), projects, nil
	}
}

func getProjectDataHandler(client *dida.Client) mcp.ToolHandlerFor[ProjectInput, *dida.ProjectData] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input ProjectInput) (*mcp.CallToolResult, *dida.ProjectData, error) {
		data, err := client.GetProjectData(ctx, input.ProjectID)
		if err != nil {
			return nil, nil, err
		}
		return textResult(data), data, nil
	}
}

func createProjectHandler(client *dida.Client) mcp.ToolHandlerFor[CreateProjectInput, *dida.Project] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input CreateProjectInput) (*mcp.CallToolResult, *dida.Project, error) {
		created, err := client.CreateProject(ctx, dida.Project{
			Name:     input.Name,
			Color:    input.Color,
			ViewMode: input.ViewMode,
		})
		if err != nil {
			return nil, nil, err
		}
		return textResult(created), created, nil
	}
}

func deleteProjectHandler(client *dida.Client) mcp.ToolHandlerFor[ProjectInput, *StatusResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input ProjectInput) (*mcp.CallToolResult, *StatusResult, error) {
		if err := client.DeleteProject(ctx, input.ProjectID); err != nil {
			return nil, nil, err
		}
		result := &StatusResult{Status: "deleted"}
		return textResult(result), result, nil
	}
}

func getTaskHandler(client *dida.Client) mcp.ToolHandlerFor[TaskRefInput, *dida.Task] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input TaskRefInput) (*mcp.CallToolResult, *dida.Task, error) {
		task, err := client.GetTask(ctx, input.ProjectID, input.TaskID)
		if err != nil {
			return nil, nil, err
		}
		return textResult(task), task, nil
	}
}

func createTaskHandler(client *dida.Client) mcp.ToolHandlerFor[CreateTaskInput, *dida.Task] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input CreateTaskInput) (*mcp.CallToolResult, *dida.Task, error) {
		created, err := client.CreateTask(ctx, dida.Task{
			Title:     input.Title,
			ProjectID: input.ProjectID,
			Content:   input.Content,
			Tags:      input.Tags,
			Priority:  input.Priority,
			StartDate: input.StartDate,
			DueDate:   input.DueDate,
			IsAllDay:  input.IsAllDay,
		})
		if err != nil {
			return nil, nil, err
		}
		return textResult(created), created, nil
	}
}

func updateTaskHandler(client *dida.Client) mcp.ToolHandlerFor[UpdateTaskInput, *dida.Task] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input UpdateTaskInput) (*mcp.CallToolResult, *dida.Task, error) {
		updated, err := client.UpdateTask(ctx, dida.Task{
			ID:        input.TaskID,
			ProjectID: input.ProjectID,
			Title:     input.Title,
			Content:   input.Content,
			Tags:      input.Tags,
			Priority:  input.Priority,
			StartDate: input.StartDate,
			DueDate:   input.DueDate,
		})
		if err != nil {
			return nil, nil, err
		}
		return textResult(updated), updated, nil
	}
}

func completeTaskHandler(client *dida.Client) mcp.ToolHandlerFor[TaskRefInput, *StatusResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input TaskRefInput) (*mcp.CallToolResult, *StatusResult, error) {
		if err := client.CompleteTask(ctx, input.ProjectID, input.TaskID); err != nil {
			return nil, nil, err
		}
		result := &StatusResult{Status: "completed"}
		return textResult(result), result, nil
	}
}

func deleteTaskHandler(client *dida.Client) mcp.ToolHandlerFor[TaskRefInput, *StatusResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input TaskRefInput) (*mcp.CallToolResult, *StatusResult, error) {
		if err := client.DeleteTask(ctx, input.ProjectID, input.TaskID); err != nil {
			return nil, nil, err
		}
		result := &StatusResult{Status: "deleted"}
		return textResult(result), result, nil
	}
}

func listTagsHandler(client *dida.Client) mcp.ToolHandlerFor[ProjectInput, *TagsResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input ProjectInput) (*mcp.CallToolResult, *TagsResult, error) {
		data, err := client.GetProjectData(ctx, input.ProjectID)
		if err != nil {
			return nil, nil, err
		}

		result := &TagsResult{ProjectID: input.ProjectID, Tags: collectTags(data.Tasks)}
		return textResult(result), result, nil
	}
}

// collectTags returns the sorted, de-duplicated tags across tasks.
func collectTags(tasks []dida.Task) []string {
	seen := make(map[string]struct{})
	for _, task := range tasks {
		for _, tag := range task.Tags {
			seen[tag] = struct{}{}
		}
	}

	tags := make([]string, 0, len(seen))
	for tag := range seen {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	return tags
}

// textResult builds a CallToolResult with JSON text content from any
// value. This provides the unstructured content alongside the structured
// output that the SDK populates automatically.
func textResult(v any) *mcp.CallToolResult {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: fmt.Sprintf("failed to render result: %v", err)}},
			IsError: true,
		}
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: string(data)}},
	}
}
