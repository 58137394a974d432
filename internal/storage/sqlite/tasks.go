package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"kanban/internal/apperr"
	"kanban/internal/models"
)

// AddTask inserts a task into a column owned by userID. Empty descriptions are allowed.
func (s *Store) AddTask(ctx context.Context, userID, columnID int64, description string) (models.Task, error) {
	if err := ownedColumn(ctx, s.db, userID, columnID); err != nil {
		return models.Task{}, err
	}

	res, err := s.db.ExecContext(ctx, `INSERT INTO tasks(description, column_id) VALUES(?, ?)`, strings.TrimSpace(description), columnID)
	if err != nil {
		return models.Task{}, fmt.Errorf("insert task: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return models.Task{}, fmt.Errorf("task id: %w", err)
	}
	return s.GetTask(ctx, id)
}

// GetTask retrieves a task by id.
func (s *Store) GetTask(ctx context.Context, id int64) (models.Task, error) {
	return getTask(ctx, s.db, id)
}

func getTask(ctx context.Context, q querier, id int64) (models.Task, error) {
	var t models.Task
	err := q.QueryRowContext(ctx, `SELECT id, description, column_id, version, created_at, updated_at FROM tasks WHERE id = ?`, id).
		Scan(&t.ID, &t.Description, &t.ColumnID, &t.Version, &t.CreatedAt, &t.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Task{}, apperr.NotFoundf("task not found")
	}
	if err != nil {
		return models.Task{}, fmt.Errorf("get task: %w", err)
	}
	return t, nil
}

// UpdateTask applies a partial update. Only non-nil fields change; a supplied
// version must match the stored one.
func (s *Store) UpdateTask(ctx context.Context, userID, taskID int64, upd models.TaskUpdate) (models.Task, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return models.Task{}, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	current, err := getTask(ctx, tx, taskID)
	if err != nil {
		return models.Task{}, err
	}
	if err := ownedColumn(ctx, tx, userID, current.ColumnID); err != nil {
		return models.Task{}, foreignTask(err)
	}
	if upd.Version != nil && *upd.Version != current.Version {
		return models.Task{}, apperr.Stalef("task %d is at version %d, not %d", taskID, current.Version, *upd.Version)
	}

	description := current.Description
	columnID := current.ColumnID
	if upd.Description != nil {
		description = strings.TrimSpace(*upd.Description)
	}
	if upd.ColumnID != nil && *upd.ColumnID != current.ColumnID {
		if err := ownedColumn(ctx, tx, userID, *upd.ColumnID); err != nil {
			return models.Task{}, err
		}
		columnID = *upd.ColumnID
	}

	res, err := tx.ExecContext(ctx, `UPDATE tasks SET description = ?, column_id = ?, version = version + 1, updated_at = CURRENT_TIMESTAMP
        WHERE id = ? AND version = ?`, description, columnID, taskID, current.Version)
	if err != nil {
		return models.Task{}, fmt.Errorf("update task: %w", err)
	}
	if affected, err := res.RowsAffected(); err != nil {
		return models.Task{}, err
	} else if affected == 0 {
		return models.Task{}, apperr.Stalef("task %d was modified concurrently", taskID)
	}

	updated, err := getTask(ctx, tx, taskID)
	if err != nil {
		return models.Task{}, err
	}
	if err := tx.Commit(); err != nil {
		return models.Task{}, fmt.Errorf("commit: %w", err)
	}
	return updated, nil
}

// DeleteTask removes a task owned by userID.
func (s *Store) DeleteTask(ctx context.Context, userID, taskID int64) error {
	current, err := s.GetTask(ctx, taskID)
	if err != nil {
		return err
	}
	if err := ownedColumn(ctx, s.db, userID, current.ColumnID); err != nil {
		return foreignTask(err)
	}

	res, err := s.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = ?`, taskID)
	if err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return apperr.NotFoundf("task not found")
	}
	return nil
}

// foreignTask hides a task whose column belongs to another user.
func foreignTask(err error) error {
	if errors.Is(err, apperr.ErrNotFound) {
		return apperr.NotFoundf("task not found")
	}
	return err
}
