package models

// Task is a unit of work tracked by the API. Tasks have no owner.
type Task struct {
	ID          int64  `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
}
