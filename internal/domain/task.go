package domain

import "time"

// TaskStatus is the workflow state of a task.
type TaskStatus string

// Task statuses.
const (
	StatusTodo       TaskStatus = "todo"
	StatusInProgress TaskStatus = "in_progress"
	StatusDone       TaskStatus = "done"
)

// IsValid reports whether s is a known status.
func (s TaskStatus) IsValid() bool {
	switch s {
	case StatusTodo, StatusInProgress, StatusDone:
		return true
	}
	return false
}

// TaskPriority ranks task urgency.
type TaskPriority string

// Task priorities.
const (
	PriorityLow    TaskPriority = "low"
	PriorityMedium TaskPriority = "medium"
	PriorityHigh   TaskPriority = "high"
)

// IsValid reports whether p is a known priority.
func (p TaskPriority) IsValid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

// Task is a unit of work. TeamID is nil for personal tasks.
type Task struct {
	ID          string       `json:"id"`
	TeamID      *string      `json:"teamId"`
	Title       string       `json:"title"`
	Description *string      `json:"description"`
	Status      TaskStatus   `json:"status"`
	Priority    TaskPriority `json:"priority"`
	DueDate     *time.Time   `json:"dueDate"`
	AssignedTo  *string      `json:"assignedTo"`
	CreatedBy   string       `json:"createdBy"`
	CreatedAt   time.Time    `json:"createdAt"`
	UpdatedAt   time.Time    `json:"updatedAt"`
}

// IsPersonal reports whether the task belongs to no team.
func (t *Task) IsPersonal() bool {
	return t.TeamID == nil
}

// IsAssignedTo reports whether userID is the current assignee.
func (t *Task) IsAssignedTo(userID string) bool {
	return t.AssignedTo != nil && *t.AssignedTo == userID
}

// TaskWithDetails is a task with its creator, optional assignee and comment count.
type TaskWithDetails struct {
	Task
	Creator      UserSummary  `json:"creator"`
	AssignedUser *UserSummary `json:"assignedUser,omitempty"`
	TeamName     *string      `json:"teamName,omitempty"`
	CommentCount int          `json:"commentCount"`
}

// Comment is a note left on a task.
type Comment struct {
	ID        string    `json:"id"`
	TaskID    string    `json:"taskId"`
	UserID    string    `json:"userId"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// CommentWithAuthor is a comment joined with its author's profile.
type CommentWithAuthor struct {
	Comment
	User UserSummary `json:"user"`
}
