package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mattn/go-sqlite3"

	"kanban/internal/apperr"
	"kanban/internal/models"
)

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// GetOrCreateBoard returns the user's board, creating the default one on first use.
func (s *Store) GetOrCreateBoard(ctx context.Context, userID int64) (models.Board, error) {
	res, err := s.db.ExecContext(ctx, `INSERT INTO boards(name, user_id) VALUES(?, ?) ON CONFLICT(user_id) DO NOTHING`,
		models.DefaultBoardName, userID)
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintForeignKey {
			return models.Board{}, apperr.NotFoundf("user not found")
		}
		return models.Board{}, fmt.Errorf("insert board: %w", err)
	}
	if created, _ := res.RowsAffected(); created > 0 {
		s.logger.Info("created default board", slog.Int64("user_id", userID))
	}

	var b models.Board
	err = s.db.QueryRowContext(ctx, `SELECT id, name, user_id, created_at FROM boards WHERE user_id = ?`, userID).
		Scan(&b.ID, &b.Name, &b.UserID, &b.CreatedAt)
	if err != nil {
		return models.Board{}, fmt.Errorf("get board: %w", err)
	}
	return b, nil
}

// LoadBoardView assembles the board with its columns and tasks, both ordered by id.
func (s *Store) LoadBoardView(ctx context.Context, board models.Board) (models.BoardView, error) {
	view := models.BoardView{ID: board.ID, Name: board.Name, Columns: []models.ColumnView{}}

	rows, err := s.db.QueryContext(ctx, `SELECT id, name, version FROM board_columns WHERE board_id = ? ORDER BY id`, board.ID)
	if err != nil {
		return models.BoardView{}, fmt.Errorf("list columns: %w", err)
	}
	index := map[int64]int{}
	for rows.Next() {
		c := models.ColumnView{Tasks: []models.TaskView{}}
		if err := rows.Scan(&c.ID, &c.Name, &c.Version); err != nil {
			rows.Close()
			return models.BoardView{}, fmt.Errorf("scan column: %w", err)
		}
		index[c.ID] = len(view.Columns)
		view.Columns = append(view.Columns, c)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return models.BoardView{}, err
	}

	rows, err = s.db.QueryContext(ctx, `SELECT t.id, t.description, t.column_id, t.version
        FROM tasks t JOIN board_columns c ON c.id = t.column_id
        WHERE c.board_id = ? ORDER BY t.id`, board.ID)
	if err != nil {
		return models.BoardView{}, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var t models.TaskView
		if err := rows.Scan(&t.ID, &t.Description, &t.ColumnID, &t.Version); err != nil {
			return models.BoardView{}, fmt.Errorf("scan task: %w", err)
		}
		attachTask(&view, index, t)
	}
	return view, rows.Err()
}

// attachTask files t under its column. Tasks of columns created after the
// column query ran are skipped; they show up on the next load.
func attachTask(view *models.BoardView, index map[int64]int, t models.TaskView) bool {
	i, ok := index[t.ColumnID]
	if !ok {
		return false
	}
	view.Columns[i].Tasks = append(view.Columns[i].Tasks, t)
	return true
}

// AddColumn creates a column on a board owned by userID.
func (s *Store) AddColumn(ctx context.Context, userID, boardID int64, name string) (models.Column, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return models.Column{}, apperr.Validationf("column name must not be empty")
	}

	var owner int64
	err := s.db.QueryRowContext(ctx, `SELECT user_id FROM boards WHERE id = ?`, boardID).Scan(&owner)
	if errors.Is(err, sql.ErrNoRows) || (err == nil && owner != userID) {
		return models.Column{}, apperr.NotFoundf("board not found")
	}
	if err != nil {
		return models.Column{}, fmt.Errorf("get board: %w", err)
	}

	res, err := s.db.ExecContext(ctx, `INSERT INTO board_columns(name, board_id) VALUES(?, ?)`, name, boardID)
	if err != nil {
		return models.Column{}, fmt.Errorf("insert column: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return models.Column{}, fmt.Errorf("column id: %w", err)
	}
	return s.GetColumn(ctx, id)
}

// GetColumn fetches a single column by id.
func (s *Store) GetColumn(ctx context.Context, id int64) (models.Column, error) {
	var c models.Column
	err := s.db.QueryRowContext(ctx, `SELECT id, name, board_id, version, created_at, updated_at FROM board_columns WHERE id = ?`, id).
		Scan(&c.ID, &c.Name, &c.BoardID, &c.Version, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Column{}, apperr.NotFoundf("column not found")
	}
	if err != nil {
		return models.Column{}, fmt.Errorf("get column: %w", err)
	}
	return c, nil
}

// RenameColumn changes the name of a column owned by userID.
func (s *Store) RenameColumn(ctx context.Context, userID, columnID int64, name string) (models.Column, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return models.Column{}, apperr.Validationf("column name must not be empty")
	}
	if err := ownedColumn(ctx, s.db, userID, columnID); err != nil {
		return models.Column{}, err
	}

	_, err := s.db.ExecContext(ctx, `UPDATE board_columns SET name = ?, version = version + 1, updated_at = CURRENT_TIMESTAMP WHERE id = ?`, name, columnID)
	if err != nil {
		return models.Column{}, fmt.Errorf("update column: %w", err)
	}
	return s.GetColumn(ctx, columnID)
}

// DeleteColumn removes a column; its tasks go with it through the foreign key cascade.
func (s *Store) DeleteColumn(ctx context.Context, userID, columnID int64) error {
	if err := ownedColumn(ctx, s.db, userID, columnID); err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM board_columns WHERE id = ?`, columnID)
	if err != nil {
		return fmt.Errorf("delete column: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return apperr.NotFoundf("column not found")
	}
	return nil
}

// ownedColumn reports ErrNotFound for missing columns and for columns on another user's board.
func ownedColumn(ctx context.Context, q querier, userID, columnID int64) error {
	var id int64
	err := q.QueryRowContext(ctx, `SELECT c.id FROM board_columns c JOIN boards b ON b.id = c.board_id
        WHERE c.id = ? AND b.user_id = ?`, columnID, userID).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return apperr.NotFoundf("column not found")
	}
	if err != nil {
		return fmt.Errorf("get column: %w", err)
	}
	return nil
}
