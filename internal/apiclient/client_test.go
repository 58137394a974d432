package apiclient

import (
	"context"
	"io"
	"log/slog"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"kanban/internal/apperr"
	"kanban/internal/auth"
	"kanban/internal/boardstate"
	"kanban/internal/models"
	"kanban/internal/server"
	"kanban/internal/storage/sqlite"
)

const password = "Secret#123"

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestAPI(t *testing.T) (string, *clock) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store, err := sqlite.Open(filepath.Join(t.TempDir(), "kanban.db"), logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	clk := &clock{now: time.Now()}
	authService, err := auth.New(store, auth.Config{
		SigningKey: []byte("client-test-key"),
		BcryptCost: bcrypt.MinCost,
	}, auth.WithClock(clk.Now))
	require.NoError(t, err)

	ts := httptest.NewServer(server.New(store, authService, logger, "").Engine())
	t.Cleanup(ts.Close)
	return ts.URL, clk
}

func loggedInClient(t *testing.T, baseURL, email string) *Client {
	t.Helper()
	ctx := context.Background()
	c := New(baseURL)
	_, err := c.Register(ctx, email, "Ada", password)
	require.NoError(t, err)
	_, err = c.Login(ctx, email, password)
	require.NoError(t, err)
	return c
}

func TestRegisterAndLogin(t *testing.T) {
	baseURL, _ := newTestAPI(t)
	ctx := context.Background()
	c := New(baseURL + "/")

	require.NoError(t, c.Health(ctx))

	user, err := c.Register(ctx, "ada@example.com", "Ada", password)
	require.NoError(t, err)
	assert.Equal(t, models.UserView{ID: user.ID, Name: "Ada", Email: "ada@example.com"}, user)

	_, err = c.Register(ctx, "ada@example.com", "Ada", password)
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = c.Login(ctx, "ada@example.com", "wrong")
	assert.ErrorIs(t, err, apperr.ErrAuth)

	tokens, err := c.Login(ctx, "ada@example.com", password)
	require.NoError(t, err)
	assert.NotEmpty(t, tokens.AccessToken)
	assert.Equal(t, tokens, c.Tokens())
}

func TestBoardCalls(t *testing.T) {
	baseURL, _ := newTestAPI(t)
	ctx := context.Background()
	c := loggedInClient(t, baseURL, "ada@example.com")

	board, err := c.GetBoard(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.DefaultBoardName, board.Name)

	todo, err := c.AddColumn(ctx, board.ID, "Todo")
	require.NoError(t, err)
	done, err := c.AddColumn(ctx, board.ID, "Done")
	require.NoError(t, err)

	renamed, err := c.RenameColumn(ctx, done.ID, "Shipped")
	require.NoError(t, err)
	assert.Equal(t, "Shipped", renamed.Name)

	task, err := c.AddTask(ctx, todo.ID, "write client")
	require.NoError(t, err)

	moved, err := c.MoveTask(ctx, task.ID, done.ID)
	require.NoError(t, err)
	assert.Equal(t, done.ID, moved.ColumnID)
	assert.Equal(t, "write client", moved.Description)

	edited, err := c.UpdateTaskDescription(ctx, task.ID, "ship client")
	require.NoError(t, err)
	assert.Equal(t, done.ID, edited.ColumnID)

	stale := task.Version
	_, err = c.UpdateTask(ctx, task.ID, models.TaskUpdate{Version: &stale})
	assert.ErrorIs(t, err, apperr.ErrStale)

	_, err = c.MoveTask(ctx, task.ID, 9999)
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	require.NoError(t, c.DeleteTask(ctx, task.ID))
	require.NoError(t, c.DeleteColumn(ctx, todo.ID))
	assert.ErrorIs(t, c.DeleteColumn(ctx, todo.ID), apperr.ErrNotFound)

	board, err = c.GetBoard(ctx)
	require.NoError(t, err)
	require.Len(t, board.Columns, 1)
	assert.Equal(t, "Shipped", board.Columns[0].Name)
	assert.Empty(t, board.Columns[0].Tasks)
}

func TestExpiredAccessTokenIsRefreshed(t *testing.T) {
	baseURL, clk := newTestAPI(t)
	ctx := context.Background()
	c := loggedInClient(t, baseURL, "ada@example.com")
	before := c.Tokens()

	clk.Advance(3 * time.Hour)

	_, err := c.GetBoard(ctx)
	require.NoError(t, err)
	after := c.Tokens()
	assert.NotEqual(t, before.AccessToken, after.AccessToken)
	assert.NotEqual(t, before.RefreshToken, after.RefreshToken)
}

func TestConcurrentCallsShareOneRefresh(t *testing.T) {
	baseURL, clk := newTestAPI(t)
	c := loggedInClient(t, baseURL, "ada@example.com")

	for round := 0; round < 10; round++ {
		clk.Advance(3 * time.Hour)
		before := c.Tokens()

		errs := make([]error, 4)
		var wg sync.WaitGroup
		for i := range errs {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_, errs[i] = c.GetBoard(context.Background())
			}(i)
		}
		wg.Wait()

		for i, err := range errs {
			require.NoError(t, err, "round %d call %d", round, i)
		}
		assert.NotEqual(t, before.RefreshToken, c.Tokens().RefreshToken)
	}
}

func TestExpiredSessionSurfacesAuthError(t *testing.T) {
	baseURL, clk := newTestAPI(t)
	c := loggedInClient(t, baseURL, "ada@example.com")

	clk.Advance(8 * 24 * time.Hour)

	_, err := c.GetBoard(context.Background())
	assert.ErrorIs(t, err, apperr.ErrAuth)

	_, err = New(baseURL).GetBoard(context.Background())
	assert.ErrorIs(t, err, apperr.ErrAuth)
}

func TestDragThroughReconciler(t *testing.T) {
	baseURL, _ := newTestAPI(t)
	ctx := context.Background()
	c := loggedInClient(t, baseURL, "ada@example.com")

	board, err := c.GetBoard(ctx)
	require.NoError(t, err)
	colA, err := c.AddColumn(ctx, board.ID, "A")
	require.NoError(t, err)
	colB, err := c.AddColumn(ctx, board.ID, "B")
	require.NoError(t, err)
	t1, err := c.AddTask(ctx, colA.ID, "T1")
	require.NoError(t, err)
	t2, err := c.AddTask(ctx, colA.ID, "T2")
	require.NoError(t, err)
	t3, err := c.AddTask(ctx, colB.ID, "T3")
	require.NoError(t, err)

	r := boardstate.NewReconciler(c)
	snap, err := r.Load(ctx)
	require.NoError(t, err)

	var e boardstate.Engine
	require.NoError(t, e.DragStart(snap, boardstate.KindTask, t1.ID))
	next, out := e.DragEnd(snap, boardstate.OverTask(t3.ID))
	r.Apply(ctx, next, out)

	snap = r.Snapshot()
	require.NoError(t, e.DragStart(snap, boardstate.KindTask, t2.ID))
	next, out = e.DragEnd(snap, boardstate.OverColumn(colB.ID))
	r.Apply(ctx, next, out)
	r.Drain()

	snap = r.Snapshot()
	assert.Empty(t, snap.TaskIDs(colA.ID))
	assert.Equal(t, []int64{t1.ID, t3.ID, t2.ID}, snap.TaskIDs(colB.ID))

	// membership is persisted, in-column order is not
	snap, err = r.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, snap.TaskIDs(colA.ID))
	assert.ElementsMatch(t, []int64{t1.ID, t2.ID, t3.ID}, snap.TaskIDs(colB.ID))
}
