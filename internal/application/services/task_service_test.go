package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/taskmaster/tasklist/internal/adapters/cache"
	"github.com/taskmaster/tasklist/internal/adapters/repository"
	"github.com/taskmaster/tasklist/internal/domain/entities"
	"github.com/taskmaster/tasklist/internal/domain/ordering"
	"github.com/taskmaster/tasklist/internal/infrastructure/logger"
	"github.com/taskmaster/tasklist/internal/infrastructure/metrics"
	"github.com/taskmaster/tasklist/internal/ports"
)

// countingLedger records write calls and can be told to fail them.
type countingLedger struct {
	ports.TaskLedger
	mu        sync.Mutex
	inserts   int
	renumbers int
	writes    int
	failWrite error
}

func (l *countingLedger) Insert(ctx context.Context, task *entities.Task, plan ordering.RenumberPlan, expected int64) error {
	l.mu.Lock()
	l.inserts++
	l.writes++
	fail := l.failWrite
	l.mu.Unlock()
	if fail != nil {
		return fail
	}
	return l.TaskLedger.Insert(ctx, task, plan, expected)
}

func (l *countingLedger) Renumber(ctx context.Context, userID string, plan ordering.RenumberPlan, expected int64) error {
	l.mu.Lock()
	l.renumbers++
	l.writes++
	fail := l.failWrite
	l.mu.Unlock()
	if fail != nil {
		return fail
	}
	return l.TaskLedger.Renumber(ctx, userID, plan, expected)
}

func (l *countingLedger) UpdateContent(ctx context.Context, task *entities.Task, expected int64) error {
	l.mu.Lock()
	l.writes++
	fail := l.failWrite
	l.mu.Unlock()
	if fail != nil {
		return fail
	}
	return l.TaskLedger.UpdateContent(ctx, task, expected)
}

func (l *countingLedger) Delete(ctx context.Context, userID, taskID string, expected int64) error {
	l.mu.Lock()
	l.writes++
	l.mu.Unlock()
	return l.TaskLedger.Delete(ctx, userID, taskID, expected)
}

func (l *countingLedger) counts() (renumbers, writes int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.renumbers, l.writes
}

const user = "user-1"

func newTestService(t *testing.T) (*TaskService, *countingLedger) {
	t.Helper()
	ledger := &countingLedger{TaskLedger: repository.NewMemoryLedger()}
	svc := NewTaskService(ledger, cache.NewLocalLocker(), metrics.New(), logger.NewNop())
	return svc, ledger
}

// create adds tasks in order; each lands at the top of the unpinned block, so
// ids are created in reverse to end up in the given order.
func create(t *testing.T, svc *TaskService, ids ...string) {
	t.Helper()
	for i := len(ids) - 1; i >= 0; i-- {
		_, err := svc.PersistCreate(context.Background(), user, ports.CreateTaskRequest{
			ID:   ids[i],
			Data: entities.TextData("task " + ids[i]),
		})
		require.NoError(t, err)
	}
}

func fetchOrder(t *testing.T, svc *TaskService) []string {
	t.Helper()
	snap, err := svc.FetchTasks(context.Background(), user)
	require.NoError(t, err)
	require.NoError(t, ordering.Validate(snap.Tasks))
	out := make([]string, len(snap.Tasks))
	for i, task := range snap.Tasks {
		out[i] = task.ID
	}
	return out
}

func positions(t *testing.T, svc *TaskService) map[string]int {
	t.Helper()
	snap, err := svc.FetchTasks(context.Background(), user)
	require.NoError(t, err)
	out := make(map[string]int)
	for _, task := range snap.Tasks {
		out[task.ID] = task.Position
	}
	return out
}

func TestPersistCreate_PlacesAtTopOfUnpinned(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	create(t, svc, "A", "B")

	_, err := svc.PersistPinToggle(ctx, user, "B", nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"B", "A"}, fetchOrder(t, svc))

	res, err := svc.PersistCreate(ctx, user, ports.CreateTaskRequest{ID: "C", Data: entities.TextData("new")})
	require.NoError(t, err)
	assert.Equal(t, []string{"B", "C", "A"}, fetchOrder(t, svc))
	assert.Equal(t, positions(t, svc)["C"], res.Position)
	require.NotNil(t, res.Task)
	assert.Equal(t, "new", res.Task.Data.Text())

	res, err = svc.PersistCreate(ctx, user, ports.CreateTaskRequest{ID: "P", Pinned: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"B", "P", "C", "A"}, fetchOrder(t, svc))
	assert.True(t, res.Task.Pinned)
}

func TestPersistCreate_GeneratesIDAndRejectsDuplicates(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	res, err := svc.PersistCreate(ctx, user, ports.CreateTaskRequest{Data: entities.TextData("x")})
	require.NoError(t, err)
	assert.NotEmpty(t, res.Task.ID)

	_, err = svc.PersistCreate(ctx, user, ports.CreateTaskRequest{ID: res.Task.ID})
	assert.ErrorIs(t, err, entities.ErrTaskConflict)
}

func TestPersistCreate_Validation(t *testing.T) {
	svc, _ := newTestService(t)
	long := make([]byte, MaxTextLength+1)
	for i := range long {
		long[i] = 'a'
	}
	_, err := svc.PersistCreate(context.Background(), user, ports.CreateTaskRequest{Data: entities.TextData(string(long))})
	assert.ErrorIs(t, err, ErrInvalidTaskData)

	dup := entities.ChecklistData([]entities.ListItem{{ID: "a"}, {ID: "a"}})
	_, err = svc.PersistCreate(context.Background(), user, ports.CreateTaskRequest{Data: dup})
	assert.ErrorIs(t, err, ErrInvalidTaskData)
}

func TestPersistMove_ScenarioA(t *testing.T) {
	svc, _ := newTestService(t)
	create(t, svc, "A", "B", "C", "D")
	before := positions(t, svc)

	res, err := svc.PersistMove(context.Background(), user, "C", 1, nil)
	require.NoError(t, err)
	assert.True(t, res.Changed)
	assert.Equal(t, []string{"C", "A", "B", "D"}, fetchOrder(t, svc))
	assert.Equal(t, before["D"], positions(t, svc)["D"])
	assert.Len(t, res.Plan.Assignments, 3)
}

func TestPersistMove_ScenarioE_OutOfRangeIsSilentNoop(t *testing.T) {
	svc, ledger := newTestService(t)
	create(t, svc, "A", "B", "C", "D")
	renumbersBefore, _ := ledger.counts()
	snap, err := svc.FetchTasks(context.Background(), user)
	require.NoError(t, err)

	for _, pos := range []int{-2, 0, 5, 100} {
		res, err := svc.PersistMove(context.Background(), user, "A", pos, nil)
		require.NoError(t, err, "position %d", pos)
		assert.False(t, res.Changed)
		assert.Equal(t, snap.Version, res.Version)
	}

	renumbersAfter, _ := ledger.counts()
	assert.Equal(t, renumbersBefore, renumbersAfter, "no ledger call")
	assert.Equal(t, []string{"A", "B", "C", "D"}, fetchOrder(t, svc))
}

func TestPersistMove_IdempotentAtOwnIndex(t *testing.T) {
	svc, ledger := newTestService(t)
	create(t, svc, "A", "B", "C")
	_, writesBefore := ledger.counts()

	res, err := svc.PersistMove(context.Background(), user, "B", 2, nil)
	require.NoError(t, err)
	assert.False(t, res.Changed)

	_, writesAfter := ledger.counts()
	assert.Equal(t, writesBefore, writesAfter)
	assert.Equal(t, []string{"A", "B", "C"}, fetchOrder(t, svc))
}

func TestPersistMove_Windowing(t *testing.T) {
	svc, _ := newTestService(t)
	create(t, svc, "A", "B", "C", "D", "E", "F", "G")
	before := positions(t, svc)

	_, err := svc.PersistMove(context.Background(), user, "C", 6, nil)
	require.NoError(t, err)

	after := positions(t, svc)
	for _, id := range []string{"A", "B", "G"} {
		assert.Equal(t, before[id], after[id], id)
	}
	assert.Equal(t, []string{"A", "B", "D", "E", "F", "C", "G"}, fetchOrder(t, svc))
}

func TestPersistMove_UnknownTask(t *testing.T) {
	svc, _ := newTestService(t)
	create(t, svc, "A")
	_, err := svc.PersistMove(context.Background(), user, "Z", 1, nil)
	assert.ErrorIs(t, err, entities.ErrTaskNotFound)
}

func TestPersistMoveBy(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	create(t, svc, "A", "B", "C")

	_, err := svc.PersistMoveBy(ctx, user, "A", 1, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"B", "A", "C"}, fetchOrder(t, svc))

	res, err := svc.PersistMoveBy(ctx, user, "B", -1, nil)
	require.NoError(t, err)
	assert.False(t, res.Changed)
}

func TestPersistPinToggle_ScenarioB(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	create(t, svc, "A", "B", "C")
	_, err := svc.PersistPinToggle(ctx, user, "A", nil)
	require.NoError(t, err)

	res, err := svc.PersistPinToggle(ctx, user, "B", nil)
	require.NoError(t, err)
	assert.True(t, res.Task.Pinned)
	assert.Equal(t, []string{"A", "B", "C"}, fetchOrder(t, svc))

	snap, err := svc.FetchTasks(ctx, user)
	require.NoError(t, err)
	assert.True(t, snap.Tasks[0].Pinned)
	assert.True(t, snap.Tasks[1].Pinned)
	assert.False(t, snap.Tasks[2].Pinned)
}

func TestPersistDelete(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	create(t, svc, "A", "B", "C")

	_, err := svc.PersistDelete(ctx, user, "B", nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "C"}, fetchOrder(t, svc))

	_, err = svc.PersistDelete(ctx, user, "B", nil)
	assert.ErrorIs(t, err, entities.ErrTaskNotFound)
}

func TestStaleVersionIsRejected(t *testing.T) {
	svc, ledger := newTestService(t)
	ctx := context.Background()
	create(t, svc, "A", "B")

	snap, err := svc.FetchTasks(ctx, user)
	require.NoError(t, err)
	stale := snap.Version

	res, err := svc.PersistMove(ctx, user, "B", 1, &stale)
	require.NoError(t, err)
	assert.Equal(t, stale+1, res.Version)
	_, writes := ledger.counts()

	_, err = svc.PersistMove(ctx, user, "A", 1, &stale)
	assert.ErrorIs(t, err, entities.ErrStaleVersion)
	_, after := ledger.counts()
	assert.Equal(t, writes, after)
	assert.Equal(t, []string{"B", "A"}, fetchOrder(t, svc))
}

func TestPersistenceFailureLeavesStateRecoverable(t *testing.T) {
	svc, ledger := newTestService(t)
	ctx := context.Background()
	create(t, svc, "A", "B", "C")

	ledger.failWrite = &entities.PersistenceError{Op: "renumber tasks", Err: errors.New("disk full")}
	_, err := svc.PersistMove(ctx, user, "C", 1, nil)
	assert.ErrorIs(t, err, entities.ErrPersistence)

	ledger.failWrite = nil
	assert.Equal(t, []string{"A", "B", "C"}, fetchOrder(t, svc))
}

func TestPersistCreate_IsOneLedgerWrite(t *testing.T) {
	svc, ledger := newTestService(t)
	ctx := context.Background()
	create(t, svc, "A", "B")
	before, _ := ledger.counts()

	res, err := svc.PersistCreate(ctx, user, ports.CreateTaskRequest{ID: "P", Pinned: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"P", "A", "B"}, fetchOrder(t, svc))
	assert.Equal(t, positions(t, svc)["P"], res.Position)

	renumbers, _ := ledger.counts()
	assert.Equal(t, before, renumbers)
	assert.Equal(t, 3, ledger.inserts)
}

func TestPersistCreate_FailedPinnedCreateLeavesNothing(t *testing.T) {
	svc, ledger := newTestService(t)
	ctx := context.Background()
	create(t, svc, "A")
	version := listVersion(t, svc)

	ledger.failWrite = &entities.PersistenceError{Op: "insert task", Err: errors.New("disk gone")}
	_, err := svc.PersistCreate(ctx, user, ports.CreateTaskRequest{ID: "P", Pinned: true})
	assert.ErrorIs(t, err, entities.ErrPersistence)

	ledger.failWrite = nil
	assert.Equal(t, []string{"A"}, fetchOrder(t, svc))
	assert.Equal(t, version, listVersion(t, svc))

	_, err = svc.PersistCreate(ctx, user, ports.CreateTaskRequest{ID: "P", Pinned: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"P", "A"}, fetchOrder(t, svc))
}

// driftingLedger bumps the version behind the service's back before the
// first write, as a second writer would after the lock lease ran out.
type driftingLedger struct {
	ports.TaskLedger
	once sync.Once
}

func (l *driftingLedger) drift(ctx context.Context) {
	l.once.Do(func() {
		tasks, _ := l.TaskLedger.GetOrdered(ctx, user)
		version, _ := l.TaskLedger.Version(ctx, user)
		_ = l.TaskLedger.UpdateContent(ctx, tasks[0], version)
	})
}

func (l *driftingLedger) Renumber(ctx context.Context, userID string, plan ordering.RenumberPlan, expected int64) error {
	l.drift(ctx)
	return l.TaskLedger.Renumber(ctx, userID, plan, expected)
}

func (l *driftingLedger) Insert(ctx context.Context, task *entities.Task, plan ordering.RenumberPlan, expected int64) error {
	l.drift(ctx)
	return l.TaskLedger.Insert(ctx, task, plan, expected)
}

func TestWriteRejectedWhenLedgerMovesUnderLock(t *testing.T) {
	ctx := context.Background()
	mem := repository.NewMemoryLedger()
	seedSvc := NewTaskService(mem, cache.NewLocalLocker(), nil, logger.NewNop())
	create(t, seedSvc, "A", "B", "C")

	core, logs := observer.New(zapcore.InfoLevel)
	log := &logger.Logger{SugaredLogger: zap.New(core).Sugar()}
	svc := NewTaskService(&driftingLedger{TaskLedger: mem}, cache.NewLocalLocker(), metrics.New(), log)
	_, err := svc.PersistMove(ctx, user, "C", 1, nil)
	assert.ErrorIs(t, err, entities.ErrStaleVersion)
	assert.Equal(t, []string{"A", "B", "C"}, fetchOrder(t, svc))

	warned := logs.FilterMessage("Ledger moved under a held lock").All()
	require.Len(t, warned, 1)
	assert.Equal(t, user, warned[0].ContextMap()["user_id"])
	assert.Equal(t, "move", warned[0].ContextMap()["op"])

	_, err = svc.PersistCreate(ctx, user, ports.CreateTaskRequest{ID: "P", Pinned: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"P", "A", "B", "C"}, fetchOrder(t, svc))
}

func listVersion(t *testing.T, svc *TaskService) int64 {
	t.Helper()
	snap, err := svc.FetchTasks(context.Background(), user)
	require.NoError(t, err)
	return snap.Version
}

func TestChecklistOperations_ScenarioCAndD(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	items := []entities.ListItem{{ID: "x", Data: "x"}, {ID: "y", Data: "y"}, {ID: "z", Data: "z"}}
	_, err := svc.PersistCreate(ctx, user, ports.CreateTaskRequest{ID: "T", Data: entities.ChecklistData(items)})
	require.NoError(t, err)

	res, err := svc.ToggleItemDone(ctx, user, "T", "x", nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"y", "z", "x"}, itemIDs(res.Task))

	res, err = svc.ToggleItemDone(ctx, user, "T", "x", nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"x", "y", "z"}, itemIDs(res.Task))

	res, err = svc.InsertItemAfter(ctx, user, "T", "x", nil)
	require.NoError(t, err)
	got := res.Task.Data.Items()
	require.Len(t, got, 4)
	assert.Equal(t, "x", got[0].ID)
	assert.Equal(t, "y", got[2].ID)

	res, err = svc.MoveItem(ctx, user, "T", "z", 0, nil)
	require.NoError(t, err)
	assert.Equal(t, "z", itemIDs(res.Task)[0])

	noop, err := svc.MoveItem(ctx, user, "T", "z", 99, nil)
	require.NoError(t, err)
	assert.False(t, noop.Changed)

	res, err = svc.SetItemText(ctx, user, "T", "z", "zed", nil)
	require.NoError(t, err)
	assert.Equal(t, "zed", res.Task.Data.Items()[0].Data)

	for _, id := range itemIDs(res.Task) {
		res, err = svc.DeleteItem(ctx, user, "T", id, nil)
		require.NoError(t, err)
	}
	assert.False(t, res.Task.IsChecklist())
	assert.Equal(t, "", res.Task.Data.Text())

	_, err = svc.ToggleItemDone(ctx, user, "T", "x", nil)
	assert.ErrorIs(t, err, entities.ErrNotChecklist)
}

func TestPersistChecklistWrite(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	create(t, svc, "T")

	items := []entities.ListItem{{ID: "a", Data: "eggs"}, {ID: "b", Data: "milk"}}
	res, err := svc.PersistChecklistWrite(ctx, user, "T", items, nil)
	require.NoError(t, err)
	assert.Equal(t, items, res.Task.Data.Items())

	_, err = svc.PersistChecklistWrite(ctx, user, "T", nil, nil)
	assert.ErrorIs(t, err, ErrInvalidTaskData)

	_, err = svc.PersistChecklistWrite(ctx, user, "missing", items, nil)
	assert.ErrorIs(t, err, entities.ErrTaskNotFound)
}

func TestSetChecklistMode(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	_, err := svc.PersistCreate(ctx, user, ports.CreateTaskRequest{ID: "T", Data: entities.TextData("eggs\nmilk")})
	require.NoError(t, err)

	res, err := svc.SetChecklistMode(ctx, user, "T", true, nil)
	require.NoError(t, err)
	require.True(t, res.Task.IsChecklist())
	assert.Len(t, res.Task.Data.Items(), 2)

	res, err = svc.SetChecklistMode(ctx, user, "T", true, nil)
	require.NoError(t, err)
	assert.False(t, res.Changed)

	res, err = svc.SetChecklistMode(ctx, user, "T", false, nil)
	require.NoError(t, err)
	assert.Equal(t, "eggs\nmilk", res.Task.Data.Text())
}

func TestUpdateTask(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	create(t, svc, "A", "B")
	before := positions(t, svc)

	done := true
	img := "cat.png"
	data := entities.TextData("edited")
	res, err := svc.UpdateTask(ctx, user, "B", ports.UpdateTaskRequest{Data: &data, Done: &done, Image: &img}, nil)
	require.NoError(t, err)
	assert.True(t, res.Task.Done)
	assert.Equal(t, "edited", res.Task.Data.Text())
	assert.Equal(t, before, positions(t, svc))

	empty := ""
	res, err = svc.UpdateTask(ctx, user, "B", ports.UpdateTaskRequest{Image: &empty}, nil)
	require.NoError(t, err)
	assert.Nil(t, res.Task.Image)
}

func TestResequence(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	create(t, svc, "A", "B", "C", "D")
	_, err := svc.PersistDelete(ctx, user, "B", nil)
	require.NoError(t, err)

	res, err := svc.Resequence(ctx, user)
	require.NoError(t, err)
	assert.True(t, res.Changed)
	assert.Equal(t, map[string]int{"A": 1, "C": 2, "D": 3}, positions(t, svc))

	res, err = svc.Resequence(ctx, user)
	require.NoError(t, err)
	assert.False(t, res.Changed)
}

func TestConcurrentWritersKeepInvariants(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	ids := make([]string, 12)
	for i := range ids {
		ids[i] = fmt.Sprintf("t%02d", i)
	}
	create(t, svc, ids...)

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 25; i++ {
				id := ids[(w*7+i)%len(ids)]
				switch i % 3 {
				case 0:
					_, err := svc.PersistMove(ctx, user, id, (w+i)%len(ids)+1, nil)
					assert.NoError(t, err)
				case 1:
					_, err := svc.PersistPinToggle(ctx, user, id, nil)
					assert.NoError(t, err)
				default:
					_, err := svc.PersistMoveBy(ctx, user, id, 1-(i%4), nil)
					assert.NoError(t, err)
				}
			}
		}(w)
	}
	wg.Wait()

	assert.Len(t, fetchOrder(t, svc), len(ids))
}

func itemIDs(task *entities.Task) []string {
	items := task.Data.Items()
	out := make([]string, len(items))
	for i, item := range items {
		out[i] = item.ID
	}
	return out
}
