package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kanban/internal/apperr"
	"kanban/internal/models"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "nested", "kanban.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func createUser(t *testing.T, store *Store, email string) models.User {
	t.Helper()
	u, err := store.CreateUser(context.Background(), "Ada", email, "hash")
	require.NoError(t, err)
	return u
}

func TestOpenRejectsEmptyPath(t *testing.T) {
	_, err := Open("", nil)
	assert.Error(t, err)
}

func TestCreateUserDuplicateEmail(t *testing.T) {
	store := openTestStore(t)
	createUser(t, store, "ada@example.com")

	_, err := store.CreateUser(context.Background(), "Other", "ada@example.com", "hash")
	assert.ErrorIs(t, err, apperr.ErrConflict)
}

func TestRefreshTokenOverwrite(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)
	u := createUser(t, store, "ada@example.com")
	expiry := time.Now().Add(time.Hour).UTC().Truncate(time.Second)

	require.NoError(t, store.SetRefreshToken(ctx, u.ID, "first", expiry))
	require.NoError(t, store.SetRefreshToken(ctx, u.ID, "second", expiry))

	_, err := store.GetUserByRefreshToken(ctx, "first")
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	got, err := store.GetUserByRefreshToken(ctx, "second")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)
	assert.True(t, got.RefreshTokenExpiry.Equal(expiry))

	_, err = store.GetUserByRefreshToken(ctx, "")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestGetOrCreateBoardIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)
	u := createUser(t, store, "ada@example.com")

	first, err := store.GetOrCreateBoard(ctx, u.ID)
	require.NoError(t, err)
	second, err := store.GetOrCreateBoard(ctx, u.ID)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, models.DefaultBoardName, first.Name)

	_, err = store.GetOrCreateBoard(ctx, 999)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestDeleteColumnCascadesTasks(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)
	u := createUser(t, store, "ada@example.com")
	board, err := store.GetOrCreateBoard(ctx, u.ID)
	require.NoError(t, err)

	col, err := store.AddColumn(ctx, u.ID, board.ID, "To Do")
	require.NoError(t, err)
	task, err := store.AddTask(ctx, u.ID, col.ID, "write tests")
	require.NoError(t, err)

	require.NoError(t, store.DeleteColumn(ctx, u.ID, col.ID))

	_, err = store.GetTask(ctx, task.ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	view, err := store.LoadBoardView(ctx, board)
	require.NoError(t, err)
	assert.Empty(t, view.Columns)

	assert.ErrorIs(t, store.DeleteColumn(ctx, u.ID, col.ID), apperr.ErrNotFound)
}

func TestLoadBoardViewGroupsTasks(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)
	u := createUser(t, store, "ada@example.com")
	board, err := store.GetOrCreateBoard(ctx, u.ID)
	require.NoError(t, err)

	todo, err := store.AddColumn(ctx, u.ID, board.ID, "To Do")
	require.NoError(t, err)
	done, err := store.AddColumn(ctx, u.ID, board.ID, "Done")
	require.NoError(t, err)
	_, err = store.AddTask(ctx, u.ID, todo.ID, "a")
	require.NoError(t, err)
	_, err = store.AddTask(ctx, u.ID, done.ID, "b")
	require.NoError(t, err)
	_, err = store.AddTask(ctx, u.ID, todo.ID, "c")
	require.NoError(t, err)

	view, err := store.LoadBoardView(ctx, board)
	require.NoError(t, err)
	require.Len(t, view.Columns, 2)
	assert.Equal(t, "To Do", view.Columns[0].Name)
	require.Len(t, view.Columns[0].Tasks, 2)
	assert.Equal(t, "a", view.Columns[0].Tasks[0].Description)
	assert.Equal(t, "c", view.Columns[0].Tasks[1].Description)
	require.Len(t, view.Columns[1].Tasks, 1)
	assert.Equal(t, done.ID, view.Columns[1].Tasks[0].ColumnID)
}

func TestAttachTaskSkipsUnknownColumn(t *testing.T) {
	view := models.BoardView{Columns: []models.ColumnView{{ID: 7, Tasks: []models.TaskView{}}}}
	index := map[int64]int{7: 0}

	assert.False(t, attachTask(&view, index, models.TaskView{ID: 1, ColumnID: 8}))
	assert.True(t, attachTask(&view, index, models.TaskView{ID: 2, ColumnID: 7}))
	require.Len(t, view.Columns[0].Tasks, 1)
	assert.Equal(t, int64(2), view.Columns[0].Tasks[0].ID)

	empty := models.BoardView{}
	assert.False(t, attachTask(&empty, map[int64]int{}, models.TaskView{ID: 3, ColumnID: 7}))
}

func TestColumnValidationAndRename(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)
	u := createUser(t, store, "ada@example.com")
	board, err := store.GetOrCreateBoard(ctx, u.ID)
	require.NoError(t, err)

	_, err = store.AddColumn(ctx, u.ID, board.ID, "   ")
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = store.AddColumn(ctx, u.ID, board.ID+100, "Ghost")
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	col, err := store.AddColumn(ctx, u.ID, board.ID, "Doing")
	require.NoError(t, err)
	assert.Equal(t, int64(1), col.Version)

	renamed, err := store.RenameColumn(ctx, u.ID, col.ID, " In Progress ")
	require.NoError(t, err)
	assert.Equal(t, "In Progress", renamed.Name)
	assert.Equal(t, int64(2), renamed.Version)

	_, err = store.RenameColumn(ctx, u.ID, col.ID+100, "x")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestUpdateTaskPartial(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)
	u := createUser(t, store, "ada@example.com")
	board, err := store.GetOrCreateBoard(ctx, u.ID)
	require.NoError(t, err)
	a, err := store.AddColumn(ctx, u.ID, board.ID, "A")
	require.NoError(t, err)
	b, err := store.AddColumn(ctx, u.ID, board.ID, "B")
	require.NoError(t, err)
	task, err := store.AddTask(ctx, u.ID, a.ID, "original")
	require.NoError(t, err)

	moved, err := store.UpdateTask(ctx, u.ID, task.ID, models.TaskUpdate{ColumnID: &b.ID})
	require.NoError(t, err)
	assert.Equal(t, b.ID, moved.ColumnID)
	assert.Equal(t, "original", moved.Description)
	assert.Equal(t, int64(2), moved.Version)

	desc := "edited"
	edited, err := store.UpdateTask(ctx, u.ID, task.ID, models.TaskUpdate{Description: &desc})
	require.NoError(t, err)
	assert.Equal(t, b.ID, edited.ColumnID)
	assert.Equal(t, "edited", edited.Description)

	missing := b.ID + 100
	_, err = store.UpdateTask(ctx, u.ID, task.ID, models.TaskUpdate{ColumnID: &missing})
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	_, err = store.UpdateTask(ctx, u.ID, task.ID+100, models.TaskUpdate{Description: &desc})
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestUpdateTaskStaleVersion(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)
	u := createUser(t, store, "ada@example.com")
	board, err := store.GetOrCreateBoard(ctx, u.ID)
	require.NoError(t, err)
	col, err := store.AddColumn(ctx, u.ID, board.ID, "A")
	require.NoError(t, err)
	task, err := store.AddTask(ctx, u.ID, col.ID, "x")
	require.NoError(t, err)

	desc := "first writer"
	v := task.Version
	_, err = store.UpdateTask(ctx, u.ID, task.ID, models.TaskUpdate{Description: &desc, Version: &v})
	require.NoError(t, err)

	desc = "second writer"
	_, err = store.UpdateTask(ctx, u.ID, task.ID, models.TaskUpdate{Description: &desc, Version: &v})
	assert.ErrorIs(t, err, apperr.ErrStale)
}

func TestForeignResourcesAreHidden(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)
	owner := createUser(t, store, "owner@example.com")
	other := createUser(t, store, "other@example.com")

	board, err := store.GetOrCreateBoard(ctx, owner.ID)
	require.NoError(t, err)
	otherBoard, err := store.GetOrCreateBoard(ctx, other.ID)
	require.NoError(t, err)
	col, err := store.AddColumn(ctx, owner.ID, board.ID, "Mine")
	require.NoError(t, err)
	otherCol, err := store.AddColumn(ctx, other.ID, otherBoard.ID, "Theirs")
	require.NoError(t, err)
	task, err := store.AddTask(ctx, owner.ID, col.ID, "private")
	require.NoError(t, err)

	_, err = store.AddColumn(ctx, other.ID, board.ID, "Intruder")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	_, err = store.AddTask(ctx, other.ID, col.ID, "intruder")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	_, err = store.RenameColumn(ctx, other.ID, col.ID, "Pwned")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	assert.ErrorIs(t, store.DeleteColumn(ctx, other.ID, col.ID), apperr.ErrNotFound)
	assert.ErrorIs(t, store.DeleteTask(ctx, other.ID, task.ID), apperr.ErrNotFound)

	_, err = store.UpdateTask(ctx, other.ID, task.ID, models.TaskUpdate{ColumnID: &otherCol.ID})
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	_, err = store.UpdateTask(ctx, owner.ID, task.ID, models.TaskUpdate{ColumnID: &otherCol.ID})
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	still, err := store.GetTask(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, col.ID, still.ColumnID)
}
