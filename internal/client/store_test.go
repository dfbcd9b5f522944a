package client

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskmaster/tasklist/internal/adapters/cache"
	"github.com/taskmaster/tasklist/internal/adapters/repository"
	"github.com/taskmaster/tasklist/internal/application/services"
	"github.com/taskmaster/tasklist/internal/domain/entities"
	"github.com/taskmaster/tasklist/internal/infrastructure/logger"
	"github.com/taskmaster/tasklist/internal/ports"
)

const testUser = "user-1"

// recordingRemote logs write calls in the order the server sees them. Writes can
// be held on gate and the next one can be made to fail.
type recordingRemote struct {
	Remote
	mu        sync.Mutex
	calls     []string
	gate      chan struct{}
	fetchGate chan struct{}
	failNext  error
}

func (r *recordingRemote) before(op string) error {
	r.mu.Lock()
	r.calls = append(r.calls, op)
	gate := r.gate
	r.mu.Unlock()

	if gate != nil {
		<-gate
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	err := r.failNext
	r.failNext = nil
	return err
}

func (r *recordingRemote) recorded() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

func (r *recordingRemote) Fetch(ctx context.Context) (*ports.Snapshot, error) {
	r.mu.Lock()
	gate := r.fetchGate
	r.mu.Unlock()
	if gate != nil {
		<-gate
	}
	return r.Remote.Fetch(ctx)
}

func (r *recordingRemote) Create(ctx context.Context, req ports.CreateTaskRequest) (*ports.WriteResult, error) {
	if err := r.before("create"); err != nil {
		return nil, err
	}
	return r.Remote.Create(ctx, req)
}

func (r *recordingRemote) Update(ctx context.Context, taskID string, req ports.UpdateTaskRequest, base *int64) (*ports.WriteResult, error) {
	if err := r.before("update"); err != nil {
		return nil, err
	}
	return r.Remote.Update(ctx, taskID, req, base)
}

func (r *recordingRemote) Delete(ctx context.Context, taskID string, base *int64) (*ports.WriteResult, error) {
	if err := r.before("delete"); err != nil {
		return nil, err
	}
	return r.Remote.Delete(ctx, taskID, base)
}

func (r *recordingRemote) Move(ctx context.Context, taskID string, newPosition int, base *int64) (*ports.WriteResult, error) {
	if err := r.before("move"); err != nil {
		return nil, err
	}
	return r.Remote.Move(ctx, taskID, newPosition, base)
}

func (r *recordingRemote) MoveBy(ctx context.Context, taskID string, step int, base *int64) (*ports.WriteResult, error) {
	if err := r.before("move_by"); err != nil {
		return nil, err
	}
	return r.Remote.MoveBy(ctx, taskID, step, base)
}

func (r *recordingRemote) TogglePin(ctx context.Context, taskID string, base *int64) (*ports.WriteResult, error) {
	if err := r.before("pin"); err != nil {
		return nil, err
	}
	return r.Remote.TogglePin(ctx, taskID, base)
}

func (r *recordingRemote) WriteChecklist(ctx context.Context, taskID string, items []entities.ListItem, base *int64) (*ports.WriteResult, error) {
	if err := r.before("checklist"); err != nil {
		return nil, err
	}
	return r.Remote.WriteChecklist(ctx, taskID, items, base)
}

func newTestService() *services.TaskService {
	return services.NewTaskService(repository.NewMemoryLedger(), cache.NewLocalLocker(), nil, logger.NewNop())
}

func newTestStore(t *testing.T, remote Remote) *Store {
	t.Helper()
	store := NewStore(remote, Options{RetryDelay: 10 * time.Millisecond})
	t.Cleanup(store.Close)
	return store
}

func flush(t *testing.T, store *Store) error {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return store.Flush(ctx)
}

func idsOf(tasks []*entities.Task) []string {
	ids := make([]string, len(tasks))
	for i, t := range tasks {
		ids[i] = t.ID
	}
	return ids
}

func positionsOf(tasks []*entities.Task) []int {
	out := make([]int, len(tasks))
	for i, t := range tasks {
		out[i] = t.Position
	}
	return out
}

// assertMatchesServer checks the optimistic list equals the authoritative one.
func assertMatchesServer(t *testing.T, store *Store, svc *services.TaskService) {
	t.Helper()
	snap, err := svc.FetchTasks(context.Background(), testUser)
	require.NoError(t, err)

	local := store.Tasks()
	assert.Equal(t, idsOf(snap.Tasks), idsOf(local))
	assert.Equal(t, positionsOf(snap.Tasks), positionsOf(local))
	for i := range local {
		assert.Equal(t, snap.Tasks[i].Pinned, local[i].Pinned, "pinned of %s", local[i].ID)
		assert.Equal(t, snap.Tasks[i].Done, local[i].Done, "done of %s", local[i].ID)
		assert.Equal(t, snap.Tasks[i].Data, local[i].Data, "data of %s", local[i].ID)
	}
	assert.Equal(t, snap.Version, store.Version())
}

func TestStore_InitialLoad(t *testing.T) {
	svc := newTestService()
	store := newTestStore(t, NewServiceRemote(svc, testUser))

	require.NoError(t, flush(t, store))
	assert.Equal(t, Clean, store.State())
	assert.Empty(t, store.Tasks())
}

func TestStore_CreateIsOptimistic(t *testing.T) {
	svc := newTestService()
	store := newTestStore(t, NewServiceRemote(svc, testUser))
	require.NoError(t, flush(t, store))

	a, err := store.Create(entities.TextData("a"), false)
	require.NoError(t, err)
	b, err := store.Create(entities.TextData("b"), false)
	require.NoError(t, err)
	p, err := store.Create(entities.TextData("p"), true)
	require.NoError(t, err)

	assert.Equal(t, []string{p.ID, b.ID, a.ID}, idsOf(store.Tasks()))

	require.NoError(t, flush(t, store))
	assert.Equal(t, Clean, store.State())
	assertMatchesServer(t, store, svc)
}

func TestStore_ServerFollowsOptimisticOrder(t *testing.T) {
	svc := newTestService()
	store := newTestStore(t, NewServiceRemote(svc, testUser))
	require.NoError(t, flush(t, store))

	var ids []string
	for _, text := range []string{"one", "two", "three", "four", "five"} {
		task, err := store.Create(entities.TextData(text), false)
		require.NoError(t, err)
		ids = append(ids, task.ID)
	}

	moved, err := store.TogglePin(ids[1])
	require.NoError(t, err)
	assert.True(t, moved)

	moved, err = store.Move(ids[0], 1)
	require.NoError(t, err)
	assert.True(t, moved)

	_, err = store.MoveBy(ids[4], 2)
	require.NoError(t, err)
	require.NoError(t, store.ToggleDone(ids[3]))
	require.NoError(t, store.Delete(ids[2]))
	require.NoError(t, store.EditText(ids[4], "five, edited"))

	require.NoError(t, flush(t, store))
	assertMatchesServer(t, store, svc)
	assert.Len(t, store.View(entities.FilterDone), 1)
	assert.Len(t, store.View(entities.FilterDoing), 3)
}

func TestStore_OutOfRangeMoveSendsNothing(t *testing.T) {
	svc := newTestService()
	remote := &recordingRemote{Remote: NewServiceRemote(svc, testUser)}
	store := newTestStore(t, remote)
	require.NoError(t, flush(t, store))

	task, err := store.Create(entities.TextData("only"), false)
	require.NoError(t, err)
	require.NoError(t, flush(t, store))

	moved, err := store.Move(task.ID, 5)
	require.NoError(t, err)
	assert.False(t, moved)

	moved, err = store.MoveBy(task.ID, -1)
	require.NoError(t, err)
	assert.False(t, moved)

	_, err = store.Move("missing", 0)
	assert.ErrorIs(t, err, entities.ErrTaskNotFound)

	require.NoError(t, flush(t, store))
	assert.Equal(t, []string{"create"}, remote.recorded())
}

func TestStore_SendsInIssueOrder(t *testing.T) {
	svc := newTestService()
	remote := &recordingRemote{Remote: NewServiceRemote(svc, testUser)}
	store := newTestStore(t, remote)
	require.NoError(t, flush(t, store))

	a, err := store.Create(entities.TextData("a"), false)
	require.NoError(t, err)
	b, err := store.Create(entities.TextData("b"), false)
	require.NoError(t, err)
	_, err = store.Create(entities.TextData("c"), false)
	require.NoError(t, err)
	_, err = store.TogglePin(a.ID)
	require.NoError(t, err)
	moved, err := store.Move(b.ID, 1)
	require.NoError(t, err)
	require.True(t, moved)
	require.NoError(t, store.ToggleDone(b.ID))
	require.NoError(t, store.Delete(a.ID))

	require.NoError(t, flush(t, store))
	assert.Equal(t, []string{"create", "create", "create", "pin", "move", "update", "delete"}, remote.recorded())
	assertMatchesServer(t, store, svc)
}

func TestStore_ReconcilesOnStaleVersion(t *testing.T) {
	svc := newTestService()
	store := newTestStore(t, NewServiceRemote(svc, testUser))
	require.NoError(t, flush(t, store))

	a, err := store.Create(entities.TextData("a"), false)
	require.NoError(t, err)
	_, err = store.Create(entities.TextData("b"), false)
	require.NoError(t, err)
	require.NoError(t, flush(t, store))

	// another device writes behind the store's back
	_, err = svc.PersistCreate(context.Background(), testUser, ports.CreateTaskRequest{ID: "elsewhere", Data: entities.TextData("x")})
	require.NoError(t, err)

	moved, err := store.Move(a.ID, 0)
	require.NoError(t, err)
	assert.True(t, moved)

	err = flush(t, store)
	assert.ErrorIs(t, err, entities.ErrStaleVersion)
	assert.Equal(t, Clean, store.State())
	assert.Contains(t, idsOf(store.Tasks()), "elsewhere")
	assertMatchesServer(t, store, svc)

	// the next flush has nothing to report
	assert.NoError(t, flush(t, store))
}

func TestStore_FailureDropsQueuedWrites(t *testing.T) {
	svc := newTestService()
	remote := &recordingRemote{Remote: NewServiceRemote(svc, testUser)}
	store := newTestStore(t, remote)
	require.NoError(t, flush(t, store))

	a, err := store.Create(entities.TextData("a"), false)
	require.NoError(t, err)
	b, err := store.Create(entities.TextData("b"), false)
	require.NoError(t, err)
	require.NoError(t, flush(t, store))
	before := idsOf(store.Tasks())

	boom := errors.New("connection reset")
	remote.mu.Lock()
	remote.gate = make(chan struct{})
	remote.failNext = boom
	remote.mu.Unlock()

	_, err = store.Move(a.ID, 0)
	require.NoError(t, err)
	_, err = store.TogglePin(b.ID)
	require.NoError(t, err)
	require.NoError(t, store.ToggleDone(a.ID))
	assert.Equal(t, PendingWrite, store.State())

	remote.gate <- struct{}{}

	err = flush(t, store)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, []string{"create", "create", "move"}, remote.recorded())
	assert.Equal(t, before, idsOf(store.Tasks()))
	assertMatchesServer(t, store, svc)
}

func TestStore_RejectsEditsWhileReconciling(t *testing.T) {
	svc := newTestService()
	remote := &recordingRemote{Remote: NewServiceRemote(svc, testUser), fetchGate: make(chan struct{})}
	store := newTestStore(t, remote)

	assert.Equal(t, Reconciling, store.State())
	_, err := store.Create(entities.TextData("too early"), false)
	assert.ErrorIs(t, err, ErrReconciling)

	close(remote.fetchGate)
	require.NoError(t, flush(t, store))
	_, err = store.Create(entities.TextData("now"), false)
	assert.NoError(t, err)
}

func TestStore_FlushHonoursContext(t *testing.T) {
	svc := newTestService()
	remote := &recordingRemote{Remote: NewServiceRemote(svc, testUser), fetchGate: make(chan struct{})}
	store := newTestStore(t, remote)
	t.Cleanup(func() { close(remote.fetchGate) })

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, store.Flush(ctx), context.DeadlineExceeded)
}

func TestStore_ChecklistEdits(t *testing.T) {
	svc := newTestService()
	remote := &recordingRemote{Remote: NewServiceRemote(svc, testUser)}
	store := newTestStore(t, remote)
	require.NoError(t, flush(t, store))

	task, err := store.Create(entities.TextData("milk\neggs"), false)
	require.NoError(t, err)
	require.NoError(t, store.SetChecklistMode(task.ID, true))

	items := store.Tasks()[0].Data.Items()
	require.Len(t, items, 2)

	require.NoError(t, store.ToggleItem(task.ID, items[0].ID))
	added, err := store.InsertItemAfter(task.ID, items[1].ID)
	require.NoError(t, err)
	require.NoError(t, store.EditItem(task.ID, added, "bread"))
	require.NoError(t, store.MoveItem(task.ID, added, 0))
	require.NoError(t, store.MoveItem(task.ID, added, 42))
	require.NoError(t, flush(t, store))
	assertMatchesServer(t, store, svc)

	got := store.Tasks()[0].Data.Items()
	require.Len(t, got, 3)
	assert.Equal(t, "bread", got[0].Data)
	assert.True(t, got[2].Done)

	for _, item := range got {
		require.NoError(t, store.DeleteItem(task.ID, item.ID))
	}
	require.NoError(t, flush(t, store))
	assert.False(t, store.Tasks()[0].IsChecklist())
	assertMatchesServer(t, store, svc)

	err = store.ToggleItem(task.ID, "gone")
	assert.ErrorIs(t, err, entities.ErrNotChecklist)
}
