package entities

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTaskData_WireForms(t *testing.T) {
	var task Task
	require.NoError(t, json.Unmarshal([]byte(`{"id":"1","data":"buy milk"}`), &task))
	assert.False(t, task.IsChecklist())
	assert.Equal(t, "buy milk", task.Data.Text())

	require.NoError(t, json.Unmarshal([]byte(`{"id":"2","data":[{"id":"a","data":"eggs","done":true}]}`), &task))
	require.True(t, task.IsChecklist())
	assert.Equal(t, []ListItem{{ID: "a", Data: "eggs", Done: true}}, task.Data.Items())

	out, err := json.Marshal(task.Data)
	require.NoError(t, err)
	assert.JSONEq(t, `[{"id":"a","data":"eggs","done":true}]`, string(out))

	assert.Error(t, json.Unmarshal([]byte(`{"data":{"x":1}}`), &task))
}

func TestTaskData_EmptyChecklistCollapsesToText(t *testing.T) {
	d := ChecklistData(nil)
	assert.False(t, d.IsChecklist())
	assert.Equal(t, "", d.Text())

	var parsed TaskData
	require.NoError(t, json.Unmarshal([]byte(`[]`), &parsed))
	assert.False(t, parsed.IsChecklist())
}

func TestTaskData_Scan(t *testing.T) {
	var d TaskData
	require.NoError(t, d.Scan(`"hello"`))
	assert.Equal(t, "hello", d.Text())

	require.NoError(t, d.Scan([]byte(`[{"id":"a","data":"x","done":false}]`)))
	assert.True(t, d.IsChecklist())

	require.NoError(t, d.Scan("legacy plain text"))
	assert.Equal(t, "legacy plain text", d.Text())

	v, err := TextData("hi").Value()
	require.NoError(t, err)
	assert.Equal(t, `"hi"`, v)
}

func TestTask_CloneIsDeep(t *testing.T) {
	img := "a.png"
	orig := &Task{ID: "1", Data: ChecklistData([]ListItem{{ID: "a"}}), Image: &img}
	c := orig.Clone()
	*c.Image = "b.png"
	items := c.Data.Items()
	items[0].Done = true

	assert.Equal(t, "a.png", *orig.Image)
	assert.False(t, orig.Data.Items()[0].Done)
}

func TestFilter(t *testing.T) {
	f, err := ParseFilter("Done")
	require.NoError(t, err)
	assert.True(t, f.Match(&Task{Done: true}))
	assert.False(t, f.Match(&Task{}))

	f, err = ParseFilter("")
	require.NoError(t, err)
	assert.Equal(t, FilterAll, f)

	_, err = ParseFilter("later")
	assert.Error(t, err)
}

func TestPersistenceError(t *testing.T) {
	err := &PersistenceError{Op: "renumber", Err: assert.AnError}
	assert.ErrorIs(t, err, ErrPersistence)
	assert.ErrorIs(t, err, assert.AnError)
}
