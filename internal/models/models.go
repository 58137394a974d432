package models

import "time"

// DefaultBoardName is given to the board created on a user's first visit.
const DefaultBoardName = "DefaultBoard"

// User is an account able to own one board.
type User struct {
	ID                 int64
	Name               string
	Email              string
	PasswordHash       string
	RefreshToken       string
	RefreshTokenExpiry time.Time
	CreatedAt          time.Time
}

// View strips credentials from the user.
func (u User) View() UserView {
	return UserView{ID: u.ID, Name: u.Name, Email: u.Email}
}

// Board is the single workspace owned by a user.
type Board struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	UserID    int64     `json:"userId"`
	CreatedAt time.Time `json:"createdAt"`
}

// Column is a named bucket of tasks on a board.
type Column struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	BoardID   int64     `json:"boardId"`
	Version   int64     `json:"version"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Task is a single card owned by one column at a time.
type Task struct {
	ID          int64     `json:"id"`
	Description string    `json:"description"`
	ColumnID    int64     `json:"columnId"`
	Version     int64     `json:"version"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// TaskUpdate carries the optional fields of a partial task update.
// A nil Version skips the optimistic concurrency check.
type TaskUpdate struct {
	Description *string
	ColumnID    *int64
	Version     *int64
}

// UserView is the public shape of a user.
type UserView struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// TokenPair is returned by login and refresh.
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// BoardView is the board snapshot returned by GetUserBoard.
type BoardView struct {
	ID      int64        `json:"id"`
	Name    string       `json:"name"`
	Columns []ColumnView `json:"columns"`
}

// ColumnView nests the tasks of a column.
type ColumnView struct {
	ID      int64      `json:"id"`
	Name    string     `json:"name"`
	Version int64      `json:"version"`
	Tasks   []TaskView `json:"tasks"`
}

// TaskView is a task as seen inside a board snapshot.
type TaskView struct {
	ID          int64  `json:"id"`
	Description string `json:"description"`
	ColumnID    int64  `json:"columnId"`
	Version     int64  `json:"version"`
}
