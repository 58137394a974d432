package boardstate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kanban/internal/models"
)

const (
	colA int64 = 1
	colB int64 = 2
	colC int64 = 3
)

// sampleBoard is A=[T1,T2], B=[T3], C=[].
func sampleBoard() Board {
	return FromView(models.BoardView{
		ID:   10,
		Name: models.DefaultBoardName,
		Columns: []models.ColumnView{
			{ID: colA, Name: "Todo", Tasks: []models.TaskView{
				{ID: 1, Description: "T1", ColumnID: colA, Version: 1},
				{ID: 2, Description: "T2", ColumnID: colA, Version: 1},
			}},
			{ID: colB, Name: "Doing", Tasks: []models.TaskView{
				{ID: 3, Description: "T3", ColumnID: colB, Version: 1},
			}},
			{ID: colC, Name: "Done"},
		},
	})
}

func TestFromViewKeepsServerOrder(t *testing.T) {
	b := sampleBoard()

	assert.Equal(t, []int64{colA, colB, colC}, b.ColumnIDs())
	assert.Equal(t, []int64{1, 2}, b.TaskIDs(colA))
	assert.Equal(t, []int64{3}, b.TaskIDs(colB))
	assert.Empty(t, b.TaskIDs(colC))

	task, idx, ok := b.FindTask(2)
	require.True(t, ok)
	assert.Equal(t, 1, idx)
	assert.Equal(t, colA, task.ColumnID)
	assert.Equal(t, "T2", task.Description)
}

func TestSnapshotsAreNotMutated(t *testing.T) {
	before := sampleBoard()

	after := before.PlaceTask(1, colB, 0)
	after = after.RenameColumn(colC, "Shipped")
	after = after.RemoveTask(3)
	after = after.MoveColumn(0, 2)

	assert.Equal(t, sampleBoard(), before)
	assert.Equal(t, []int64{colB, colC, colA}, after.ColumnIDs())
	assert.Equal(t, []int64{1}, after.TaskIDs(colB))
}

func TestPlaceTaskClampsIndex(t *testing.T) {
	b := sampleBoard().PlaceTask(3, colA, 99)
	assert.Equal(t, []int64{1, 2, 3}, b.TaskIDs(colA))

	task, _, ok := b.FindTask(3)
	require.True(t, ok)
	assert.Equal(t, colA, task.ColumnID)

	b = b.PlaceTask(3, colA, -5)
	assert.Equal(t, []int64{3, 1, 2}, b.TaskIDs(colA))
}

func TestColumnAndTaskHelpers(t *testing.T) {
	b := sampleBoard().
		AddColumn(Column{ID: 4, Name: "Archive"}).
		AddTask(Task{ID: 9, Description: "new", ColumnID: 4}).
		UpdateTaskDescription(9, "edited")

	col, ok := b.FindColumn(4)
	require.True(t, ok)
	assert.Equal(t, "Archive", col.Name)

	task, _, ok := b.FindTask(9)
	require.True(t, ok)
	assert.Equal(t, "edited", task.Description)

	b = b.RemoveColumn(4)
	_, _, ok = b.FindTask(9)
	assert.False(t, ok)
	assert.Equal(t, -1, b.ColumnIndex(4))
}

func TestArrayMove(t *testing.T) {
	in := []string{"a", "b", "c", "d"}

	assert.Equal(t, []string{"b", "c", "a", "d"}, arrayMove(in, 0, 2))
	assert.Equal(t, []string{"d", "a", "b", "c"}, arrayMove(in, 3, 0))
	assert.Equal(t, in, arrayMove(in, 1, 9))
	assert.Equal(t, []string{"a", "b", "c", "d"}, in)
}
