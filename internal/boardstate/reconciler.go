package boardstate

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"kanban/internal/models"
)

// API is the subset of the board endpoints the reconciler drives.
type API interface {
	GetBoard(ctx context.Context) (models.BoardView, error)
	AddColumn(ctx context.Context, boardID int64, name string) (models.Column, error)
	RenameColumn(ctx context.Context, columnID int64, name string) (models.Column, error)
	DeleteColumn(ctx context.Context, columnID int64) error
	AddTask(ctx context.Context, columnID int64, description string) (models.Task, error)
	MoveTask(ctx context.Context, taskID, columnID int64) (models.Task, error)
	UpdateTaskDescription(ctx context.Context, taskID int64, description string) (models.Task, error)
	DeleteTask(ctx context.Context, taskID int64) error
}

// Completion reports the result of one dispatched move.
type Completion struct {
	Move  Move
	Stamp uint64
	Task  models.Task
	Err   error
}

// ErrNotLoaded is returned by operations that need a board before Load.
var ErrNotLoaded = errors.New("board not loaded")

// position is where the server last confirmed a task to be.
type position struct {
	column int64
	index  int
}

// taskMoves tracks the single move of a task that is on the wire and the
// newest move waiting behind it.
type taskMoves struct {
	inflight Move
	stamp    uint64
	queued   *Move
	qstamp   uint64
	qctx     context.Context
}

// Reconciler keeps the optimistic snapshot in line with the server. Moves
// are applied locally first and persisted in the background. Each task has
// at most one move on the wire; moves made meanwhile collapse into the
// newest one, which is sent when the previous one completes, so the server
// sees a task's moves in the order they were made.
type Reconciler struct {
	api    API
	logger *slog.Logger

	mu        sync.Mutex
	board     Board
	loaded    bool
	seq       uint64
	moves     map[int64]*taskMoves
	confirmed map[int64]position

	completions chan Completion
}

// Option configures a Reconciler.
type Option func(*Reconciler)

// WithLogger sets the logger used for dropped and failed moves.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Reconciler) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewReconciler creates a reconciler on top of api. The caller must keep
// reading Completions (or call Drain) while moves are in flight: a move
// blocks until its completion has been received.
func NewReconciler(api API, opts ...Option) *Reconciler {
	r := &Reconciler{
		api:         api,
		logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
		moves:       make(map[int64]*taskMoves),
		confirmed:   make(map[int64]position),
		completions: make(chan Completion, 64),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Snapshot returns the current board.
func (r *Reconciler) Snapshot() Board {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.board
}

// Load fetches the board and replaces the snapshot, resetting order to the
// server's. Every task's position becomes its confirmed position.
func (r *Reconciler) Load(ctx context.Context) (Board, error) {
	view, err := r.api.GetBoard(ctx)
	if err != nil {
		return Board{}, fmt.Errorf("load board: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.board = FromView(view)
	r.loaded = true
	r.confirmed = make(map[int64]position)
	for _, c := range r.board.Columns {
		for i, t := range c.Tasks {
			r.confirmed[t.ID] = position{column: c.ID, index: i}
		}
	}
	return r.board, nil
}

// Apply installs an optimistic snapshot produced by the engine. When the
// outcome carries a move it is stamped and sent to the server, or queued
// behind the task's move already in flight. Results show up on Completions.
func (r *Reconciler) Apply(ctx context.Context, next Board, outcome Outcome) uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.board = next
	if outcome.Move == nil {
		return 0
	}
	r.seq++
	move := *outcome.Move

	if tm, ok := r.moves[move.TaskID]; ok {
		tm.queued, tm.qstamp, tm.qctx = &move, r.seq, ctx
		return r.seq
	}
	r.moves[move.TaskID] = &taskMoves{inflight: move, stamp: r.seq}
	r.dispatch(ctx, move, r.seq)
	return r.seq
}

func (r *Reconciler) dispatch(ctx context.Context, move Move, stamp uint64) {
	go func() {
		task, err := r.api.MoveTask(ctx, move.TaskID, move.ColumnID)
		r.completions <- Completion{Move: move, Stamp: stamp, Task: task, Err: err}
	}()
}

// Completions delivers results of dispatched moves. The channel is
// buffered; a sender blocks once the buffer is full until someone reads.
func (r *Reconciler) Completions() <-chan Completion {
	return r.completions
}

// Settle applies a completion and reports whether it settled its task. A
// completion with a newer move queued behind it only records the server
// state and sends the queued move; its result is reported as false. When
// the newest move fails the task goes back to its last confirmed position.
func (r *Reconciler) Settle(c Completion) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	tm, ok := r.moves[c.Move.TaskID]
	if !ok || tm.stamp != c.Stamp {
		r.logger.Debug("unknown move completion dropped", "task_id", c.Move.TaskID, "stamp", c.Stamp)
		return false
	}

	if c.Err == nil {
		r.confirm(c.Move.TaskID, c.Move.ColumnID)
		if t, _, ok := r.board.FindTask(c.Move.TaskID); ok {
			t.Version = c.Task.Version
			r.board = r.board.UpdateTask(t)
		}
	}

	if tm.queued != nil {
		tm.inflight, tm.stamp = *tm.queued, tm.qstamp
		r.dispatch(tm.qctx, tm.inflight, tm.stamp)
		tm.queued, tm.qctx = nil, nil
		return false
	}
	delete(r.moves, c.Move.TaskID)

	if c.Err != nil {
		pos, ok := r.confirmed[c.Move.TaskID]
		if !ok {
			pos = position{column: c.Move.FromColumn, index: c.Move.FromIndex}
		}
		r.logger.Warn("move failed; rolling back",
			"task_id", c.Move.TaskID, "column_id", c.Move.ColumnID, "back_to", pos.column, "error", c.Err)
		r.board = r.board.PlaceTask(c.Move.TaskID, pos.column, pos.index)
	}
	return true
}

// confirm records the server-side column of a task. The index is the
// task's current place when the snapshot agrees, otherwise the column end.
func (r *Reconciler) confirm(taskID, columnID int64) {
	t, idx, ok := r.board.FindTask(taskID)
	if !ok || t.ColumnID != columnID {
		col, _ := r.board.FindColumn(columnID)
		idx = len(col.Tasks)
	}
	r.confirmed[taskID] = position{column: columnID, index: idx}
}

// Drain receives and settles completions until no move is in flight.
func (r *Reconciler) Drain() {
	for r.Pending() > 0 {
		r.Settle(<-r.completions)
	}
}

// Pending reports how many tasks have a move in flight.
func (r *Reconciler) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.moves)
}

// AddColumn creates a column and appends it once the server confirms.
func (r *Reconciler) AddColumn(ctx context.Context, name string) (Column, error) {
	boardID, err := r.boardID()
	if err != nil {
		return Column{}, err
	}
	col, err := r.api.AddColumn(ctx, boardID, name)
	if err != nil {
		return Column{}, err
	}

	c := Column{ID: col.ID, Name: col.Name}
	r.mu.Lock()
	r.board = r.board.AddColumn(c)
	r.mu.Unlock()
	return c, nil
}

// RenameColumn renames a column once the server confirms.
func (r *Reconciler) RenameColumn(ctx context.Context, columnID int64, name string) error {
	col, err := r.api.RenameColumn(ctx, columnID, name)
	if err != nil {
		return err
	}
	r.mu.Lock()
	r.board = r.board.RenameColumn(col.ID, col.Name)
	r.mu.Unlock()
	return nil
}

// DeleteColumn removes a column and its tasks once the server confirms.
func (r *Reconciler) DeleteColumn(ctx context.Context, columnID int64) error {
	if err := r.api.DeleteColumn(ctx, columnID); err != nil {
		return err
	}
	r.mu.Lock()
	r.board = r.board.RemoveColumn(columnID)
	r.mu.Unlock()
	return nil
}

// AddTask creates a card at the end of a column once the server confirms.
func (r *Reconciler) AddTask(ctx context.Context, columnID int64, description string) (Task, error) {
	created, err := r.api.AddTask(ctx, columnID, description)
	if err != nil {
		return Task{}, err
	}

	t := Task{ID: created.ID, Description: created.Description, ColumnID: created.ColumnID, Version: created.Version}
	r.mu.Lock()
	r.board = r.board.AddTask(t)
	r.confirm(t.ID, t.ColumnID)
	r.mu.Unlock()
	return t, nil
}

// EditTask changes the description of a card once the server confirms.
func (r *Reconciler) EditTask(ctx context.Context, taskID int64, description string) error {
	updated, err := r.api.UpdateTaskDescription(ctx, taskID, description)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if t, _, ok := r.board.FindTask(taskID); ok {
		t.Description = updated.Description
		t.Version = updated.Version
		r.board = r.board.UpdateTask(t)
	}
	return nil
}

// DeleteTask removes a card once the server confirms.
func (r *Reconciler) DeleteTask(ctx context.Context, taskID int64) error {
	if err := r.api.DeleteTask(ctx, taskID); err != nil {
		return err
	}
	r.mu.Lock()
	r.board = r.board.RemoveTask(taskID)
	delete(r.confirmed, taskID)
	if tm, ok := r.moves[taskID]; ok {
		tm.queued, tm.qctx = nil, nil
	}
	r.mu.Unlock()
	return nil
}

func (r *Reconciler) boardID() (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.loaded {
		return 0, ErrNotLoaded
	}
	return r.board.ID, nil
}
