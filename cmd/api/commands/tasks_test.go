package commands

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskmaster/tasklist/internal/domain/entities"
)

func sampleTasks() []*entities.Task {
	return []*entities.Task{
		{ID: "4f1c0a2e-aaaa", Position: 1, Pinned: true, Data: entities.TextData("pinned")},
		{ID: "4f9d7b11-bbbb", Position: 2, Data: entities.TextData("second\nmore")},
		{ID: "c0ffee00-cccc", Position: 5, Done: true, Data: entities.ChecklistData([]entities.ListItem{
			{ID: "i1", Data: "milk"},
			{ID: "i2", Data: "eggs", Done: true},
		})},
	}
}

func TestResolveTask(t *testing.T) {
	tasks := sampleTasks()

	id, err := resolveTask(tasks, "2")
	require.NoError(t, err)
	assert.Equal(t, "4f9d7b11-bbbb", id)

	id, err = resolveTask(tasks, "c0ff")
	require.NoError(t, err)
	assert.Equal(t, "c0ffee00-cccc", id)

	id, err = resolveTask(tasks, "4f1c0a2e-aaaa")
	require.NoError(t, err)
	assert.Equal(t, "4f1c0a2e-aaaa", id)

	_, err = resolveTask(tasks, "4f")
	assert.ErrorContains(t, err, "ambiguous")

	_, err = resolveTask(tasks, "9")
	assert.ErrorIs(t, err, entities.ErrTaskNotFound)

	_, err = resolveTask(tasks, "zz")
	assert.ErrorIs(t, err, entities.ErrTaskNotFound)
}

func TestResolveItem(t *testing.T) {
	items := sampleTasks()[2].Data.Items()

	id, err := resolveItem(items, "2")
	require.NoError(t, err)
	assert.Equal(t, "i2", id)

	_, err = resolveItem(items, "3")
	assert.ErrorIs(t, err, entities.ErrItemNotFound)

	_, err = resolveItem(nil, "1")
	assert.ErrorIs(t, err, entities.ErrNotChecklist)
}

func TestPrintTasks(t *testing.T) {
	var buf bytes.Buffer
	printTasks(&buf, sampleTasks(), 7)

	out := buf.String()
	assert.Contains(t, out, "4f1c0a2e")
	assert.Contains(t, out, "second ...")
	assert.Contains(t, out, "[x] eggs")
	assert.Contains(t, out, "(version 7)")
}
