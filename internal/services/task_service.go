package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/isdelr/todo-api/internal/database"
	"github.com/isdelr/todo-api/internal/models"
)

// Task event actions.
const (
	TaskCreated = "task.created"
	TaskDeleted = "task.deleted"
)

// EventPublisher receives task lifecycle notifications.
type EventPublisher interface {
	Publish(action string, payload interface{})
}

// TaskServiceProvider defines the interface for task services.
type TaskServiceProvider interface {
	Create(ctx context.Context, title, description string) (models.Task, error)
	List(ctx context.Context) ([]models.Task, error)
	Get(ctx context.Context, id int64) (models.Task, error)
	Delete(ctx context.Context, id int64) error
}

// TaskService provides business logic for task management.
type TaskService struct {
	db     *sql.DB
	events EventPublisher
}

// NewTaskService creates a new TaskService. events may be nil.
func NewTaskService(db *sql.DB, events EventPublisher) *TaskService {
	return &TaskService{db: db, events: events}
}

// Create persists a new task and returns it with its assigned id.
func (s *TaskService) Create(ctx context.Context, title, description string) (models.Task, error) {
	res, err := s.db.ExecContext(ctx, "INSERT INTO tasks (title, description) VALUES (?, ?)", title, description)
	if err != nil {
		return models.Task{}, fmt.Errorf("failed to insert task: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return models.Task{}, fmt.Errorf("failed to read task id: %w", err)
	}

	task := models.Task{ID: id, Title: title, Description: description}
	s.publish(TaskCreated, task)
	return task, nil
}

// List returns all tasks in insertion order.
func (s *TaskService) List(ctx context.Context) ([]models.Task, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id, title, description FROM tasks ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("failed to query tasks: %w", err)
	}
	defer rows.Close()

	tasks := []models.Task{}
	for rows.Next() {
		var task models.Task
		if err := rows.Scan(&task.ID, &task.Title, &task.Description); err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		tasks = append(tasks, task)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate tasks: %w", err)
	}
	return tasks, nil
}

// Get retrieves a single task by its ID.
func (s *TaskService) Get(ctx context.Context, id int64) (models.Task, error) {
	return getTask(ctx, s.db, id)
}

// Delete removes a task. The lookup and the delete share one transaction.
func (s *TaskService) Delete(ctx context.Context, id int64) error {
	var deleted models.Task
	err := database.WithTx(ctx, s.db, func(ctx context.Context, tx database.DBTX) error {
		task, err := getTask(ctx, tx, id)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM tasks WHERE id = ?", id); err != nil {
			return fmt.Errorf("failed to delete task: %w", err)
		}
		deleted = task
		return nil
	})
	if err != nil {
		return err
	}

	s.publish(TaskDeleted, deleted)
	return nil
}

func (s *TaskService) publish(action string, task models.Task) {
	if s.events != nil {
		s.events.Publish(action, task)
	}
}

func getTask(ctx context.Context, db database.DBTX, id int64) (models.Task, error) {
	var task models.Task
	row := db.QueryRowContext(ctx, "SELECT id, title, description FROM tasks WHERE id = ?", id)
	if err := row.Scan(&task.ID, &task.Title, &task.Description); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Task{}, ErrNotFound
		}
		return models.Task{}, fmt.Errorf("failed to get task: %w", err)
	}
	return task, nil
}
