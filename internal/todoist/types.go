package todoist

// Task is the subset of a Todoist task choregate reads.
type Task struct {
	ID        string `json:"id"`
	Content   string `json:"content"`
	SectionID string `json:"section_id"`
	Checked   bool   `json:"checked"`
	// IsCompleted is the completion flag of the older REST API.
	IsCompleted bool `json:"is_completed"`
	Due         *Due `json:"due"`
}

// Done reports whether the task has been ticked off.
func (t Task) Done() bool { return t.Checked || t.IsCompleted }

// Due is a task due date. Date is YYYY-MM-DD, or a full timestamp for tasks
// with a due time.
type Due struct {
	Date   string `json:"date"`
	String string `json:"string"`
}

type Project struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type Section struct {
	ID        string `json:"id"`
	ProjectID string `json:"project_id"`
	Name      string `json:"name"`
}

// page is the cursor paginated envelope of list endpoints.
type page[T any] struct {
	Results    []T     `json:"results"`
	NextCursor *string `json:"next_cursor"`
}
