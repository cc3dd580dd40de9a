package dida

// Task status values used by the open API.
const (
	TaskStatusActive    = 0
	TaskStatusCompleted = 2
)

// Task is the Dida365 open API task resource. Fields are forwarded as-is;
// the adapter owns no business semantics.
type Task struct {
	ID        string   `json:"id,omitempty"`
	ProjectID string   `json:"projectId,omitempty"`
	Title     string   `json:"title,omitempty"`
	Content   string   `json:"content,omitempty"`
	Desc      string   `json:"desc,omitempty"`
	Tags      []string `json:"tags,omitempty"`
	Priority  int      `json:"priority,omitempty"`
	Status    int      `json:"status,omitempty"`
	StartDate string   `json:"startDate,omitempty"`
	DueDate   string   `json:"dueDate,omitempty"`
	IsAllDay  bool     `json:"isAllDay,omitempty"`
	TimeZone  string   `json:"timeZone,omitempty"`
}

// Project is the Dida365 open API project resource.
type Project struct {
	ID       string `json:"id,omitempty"`
	Name     string `json:"name,omitempty"`
	Color    string `json:"color,omitempty"`
	ViewMode string `json:"viewMode,omitempty"`
	Kind     string `json:"kind,omitempty"`
	Closed   bool   `json:"closed,omitempty"`
}

// ProjectData is a project together with its undone tasks, as returned by
// the /project/{id}/data endpoint.
type ProjectData struct {
	Project Project `json:"project"`
	Tasks   []Task  `json:"tasks"`
}
