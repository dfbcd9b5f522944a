package client

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/taskmaster/tasklist/internal/domain/checklist"
	"github.com/taskmaster/tasklist/internal/domain/entities"
	"github.com/taskmaster/tasklist/internal/domain/ordering"
	"github.com/taskmaster/tasklist/internal/infrastructure/logger"
	"github.com/taskmaster/tasklist/internal/ports"
)

// State is where the Store stands relative to the server.
type State int

const (
	// Clean means the local list equals the last confirmed server list.
	Clean State = iota
	// PendingWrite means local edits are queued or in flight.
	PendingWrite
	// Reconciling means a write failed and the authoritative list is being fetched.
	Reconciling
)

func (s State) String() string {
	switch s {
	case Clean:
		return "clean"
	case PendingWrite:
		return "pending_write"
	case Reconciling:
		return "reconciling"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// ErrReconciling is returned by local edits while the Store refetches.
var ErrReconciling = errors.New("task list is reconciling with the server")

// ErrChecklistTask is returned by EditText on a checklist task.
var ErrChecklistTask = errors.New("task is a checklist")

// call is one queued persistence request.
type call func(ctx context.Context, base *int64) (*ports.WriteResult, error)

type command struct {
	op   string
	gen  uint64
	send call
}

// Options tune a Store
type Options struct {
	// RetryDelay is the pause between failed fetches while reconciling.
	RetryDelay time.Duration
	Logger     *logger.Logger
}

// Store is the optimistic client list. Edits apply locally at once and are
// sent to the Remote by one worker goroutine in the order they were made.
type Store struct {
	remote Remote
	logger *logger.Logger
	retry  time.Duration

	mu       sync.Mutex
	cond     *sync.Cond
	tasks    []*entities.Task
	version  int64
	state    State
	gen      uint64
	queue    []command
	inflight bool
	lastErr  error
	closed   bool

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// NewStore starts the worker. The Store begins in Reconciling and loads the
// server list before accepting edits; Flush waits for that.
func NewStore(remote Remote, opts Options) *Store {
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = time.Second
	}
	if opts.Logger == nil {
		opts.Logger = logger.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Store{
		remote: remote,
		logger: opts.Logger.WithComponent("client_store"),
		retry:  opts.RetryDelay,
		state:  Reconciling,
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	s.cond = sync.NewCond(&s.mu)
	go s.run()
	return s
}

// Close stops the worker. Queued edits that were not sent are dropped.
func (s *Store) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.cond.Broadcast()
	s.mu.Unlock()

	s.cancel()
	<-s.done
}

// Tasks returns a copy of the local ordered list
func (s *Store) Tasks() []*entities.Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	return entities.CloneTasks(s.tasks)
}

// View returns the local list narrowed by filter, in display order
func (s *Store) View(filter entities.Filter) []*entities.Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*entities.Task, 0, len(s.tasks))
	for _, t := range s.tasks {
		if filter.Match(t) {
			out = append(out, t.Clone())
		}
	}
	return out
}

// State reports the sync state
func (s *Store) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Version is the last server version the Store confirmed
func (s *Store) Version() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.version
}

// Refresh drops queued edits and refetches the server list.
func (s *Store) Refresh() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reconcileLocked(nil)
}

// Flush blocks until every queued edit was sent and the Store is Clean.
// It returns the failure that forced the latest reconcile, if any, and clears it.
func (s *Store) Flush(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() {
		s.mu.Lock()
		s.cond.Broadcast()
		s.mu.Unlock()
	})
	defer stop()

	s.mu.Lock()
	defer s.mu.Unlock()
	for !s.closed && (s.state != Clean || len(s.queue) > 0 || s.inflight) {
		if err := ctx.Err(); err != nil {
			if s.lastErr != nil {
				return fmt.Errorf("%w (last error: %v)", err, s.lastErr)
			}
			return err
		}
		s.cond.Wait()
	}
	err := s.lastErr
	s.lastErr = nil
	return err
}

// Create adds a task at the top of the unpinned block, or as the last pinned task.
func (s *Store) Create(data entities.TaskData, pinned bool) (*entities.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.writableLocked(); err != nil {
		return nil, err
	}

	task := &entities.Task{
		ID:       uuid.NewString(),
		Position: ordering.NextPosition(s.tasks),
		Data:     data,
		Pinned:   pinned,
	}
	withNew := append(entities.CloneTasks(s.tasks), task)
	plan, err := ordering.PlaceNew(withNew, task.ID)
	if err != nil {
		return nil, err
	}
	s.tasks = ordering.Apply(withNew, plan)

	req := ports.CreateTaskRequest{ID: task.ID, Data: data, Pinned: pinned}
	s.enqueueLocked("create", func(ctx context.Context, _ *int64) (*ports.WriteResult, error) {
		return s.remote.Create(ctx, req)
	})

	created, _ := findLocal(s.tasks, task.ID)
	return created.Clone(), nil
}

// Move takes a task to the 0-based index newIndex. It reports whether anything moved;
// targets outside the list are ignored.
func (s *Store) Move(taskID string, newIndex int) (bool, error) {
	return s.reorder("move", taskID, func(tasks []*entities.Task) (ordering.RenumberPlan, error) {
		return ordering.Move(tasks, taskID, newIndex)
	}, func(ctx context.Context, base *int64) (*ports.WriteResult, error) {
		return s.remote.Move(ctx, taskID, newIndex+1, base)
	})
}

// MoveBy shifts a task by step within its partition
func (s *Store) MoveBy(taskID string, step int) (bool, error) {
	return s.reorder("move_by", taskID, func(tasks []*entities.Task) (ordering.RenumberPlan, error) {
		return ordering.MoveBy(tasks, taskID, step)
	}, func(ctx context.Context, base *int64) (*ports.WriteResult, error) {
		return s.remote.MoveBy(ctx, taskID, step, base)
	})
}

// TogglePin pins or unpins a task
func (s *Store) TogglePin(taskID string) (bool, error) {
	return s.reorder("pin_toggle", taskID, func(tasks []*entities.Task) (ordering.RenumberPlan, error) {
		return ordering.TogglePin(tasks, taskID)
	}, func(ctx context.Context, base *int64) (*ports.WriteResult, error) {
		return s.remote.TogglePin(ctx, taskID, base)
	})
}

// Delete removes a task; the others keep their positions.
func (s *Store) Delete(taskID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.writableLocked(); err != nil {
		return err
	}
	idx := -1
	for i, t := range s.tasks {
		if t.ID == taskID {
			idx = i
		}
	}
	if idx < 0 {
		return fmt.Errorf("task %s: %w", taskID, entities.ErrTaskNotFound)
	}
	s.tasks = append(s.tasks[:idx:idx], s.tasks[idx+1:]...)

	s.enqueueLocked("delete", func(ctx context.Context, base *int64) (*ports.WriteResult, error) {
		return s.remote.Delete(ctx, taskID, base)
	})
	return nil
}

// ToggleDone flips a task's done flag
func (s *Store) ToggleDone(taskID string) error {
	return s.edit("toggle_done", taskID, func(task *entities.Task) (call, error) {
		task.Done = !task.Done
		done := task.Done
		return func(ctx context.Context, base *int64) (*ports.WriteResult, error) {
			return s.remote.Update(ctx, taskID, ports.UpdateTaskRequest{Done: &done}, base)
		}, nil
	})
}

// EditText replaces a text task's content
func (s *Store) EditText(taskID, text string) error {
	return s.edit("edit_text", taskID, func(task *entities.Task) (call, error) {
		if task.IsChecklist() {
			return nil, fmt.Errorf("task %s: %w", taskID, ErrChecklistTask)
		}
		task.Data = entities.TextData(text)
		return s.persistData(task), nil
	})
}

// SetChecklistMode converts a task between text and checklist
func (s *Store) SetChecklistMode(taskID string, enabled bool) error {
	return s.edit("checklist_mode", taskID, func(task *entities.Task) (call, error) {
		switch {
		case enabled && !task.IsChecklist():
			task.Data = entities.ChecklistData(checklist.FromText(task.Data.Text()))
		case !enabled && task.IsChecklist():
			task.Data = entities.TextData(checklist.ToText(task.Data.Items()))
		default:
			return nil, nil
		}
		return s.persistData(task), nil
	})
}

// ToggleItem completes or restores a checklist item
func (s *Store) ToggleItem(taskID, itemID string) error {
	return s.editItems("item_toggle", taskID, func(items []entities.ListItem) ([]entities.ListItem, error) {
		return checklist.ToggleDone(items, itemID)
	})
}

// InsertItemAfter adds an empty item after the anchor and returns its id
func (s *Store) InsertItemAfter(taskID, anchorID string) (string, error) {
	item := checklist.NewItem("")
	err := s.editItems("item_insert", taskID, func(items []entities.ListItem) ([]entities.ListItem, error) {
		return checklist.InsertAfter(items, anchorID, item)
	})
	if err != nil {
		return "", err
	}
	return item.ID, nil
}

// EditItem changes one item's text
func (s *Store) EditItem(taskID, itemID, text string) error {
	return s.editItems("item_edit", taskID, func(items []entities.ListItem) ([]entities.ListItem, error) {
		return checklist.SetText(items, itemID, text)
	})
}

// MoveItem moves an item to a 0-based index. Out of range targets are ignored.
func (s *Store) MoveItem(taskID, itemID string, newIndex int) error {
	return s.editItems("item_move", taskID, func(items []entities.ListItem) ([]entities.ListItem, error) {
		return checklist.Move(items, itemID, newIndex)
	})
}

// MoveItemBy shifts an item by step
func (s *Store) MoveItemBy(taskID, itemID string, step int) error {
	return s.editItems("item_move_by", taskID, func(items []entities.ListItem) ([]entities.ListItem, error) {
		return checklist.MoveBy(items, itemID, step)
	})
}

// DeleteItem removes an item; removing the last one turns the task into empty text.
func (s *Store) DeleteItem(taskID, itemID string) error {
	return s.editItems("item_delete", taskID, func(items []entities.ListItem) ([]entities.ListItem, error) {
		out, _, err := checklist.Remove(items, itemID)
		return out, err
	})
}

func (s *Store) reorder(op, taskID string, compute func([]*entities.Task) (ordering.RenumberPlan, error), send call) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.writableLocked(); err != nil {
		return false, err
	}

	plan, err := compute(s.tasks)
	if errors.Is(err, entities.ErrOutOfRange) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if plan.Empty() {
		return false, nil
	}
	s.tasks = ordering.Apply(s.tasks, plan)
	s.enqueueLocked(op, send)
	return true, nil
}

// edit lets change mutate a copy of the task. A nil call means nothing changed.
func (s *Store) edit(op, taskID string, change func(*entities.Task) (call, error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.writableLocked(); err != nil {
		return err
	}

	current, idx := findLocal(s.tasks, taskID)
	if current == nil {
		return fmt.Errorf("task %s: %w", taskID, entities.ErrTaskNotFound)
	}
	task := current.Clone()
	send, err := change(task)
	if err != nil {
		return err
	}
	if send == nil {
		return nil
	}
	tasks := make([]*entities.Task, len(s.tasks))
	copy(tasks, s.tasks)
	tasks[idx] = task
	s.tasks = tasks
	s.enqueueLocked(op, send)
	return nil
}

func (s *Store) editItems(op, taskID string, change func([]entities.ListItem) ([]entities.ListItem, error)) error {
	return s.edit(op, taskID, func(task *entities.Task) (call, error) {
		if !task.IsChecklist() {
			return nil, fmt.Errorf("task %s: %w", taskID, entities.ErrNotChecklist)
		}
		items, err := change(task.Data.Items())
		if errors.Is(err, entities.ErrOutOfRange) {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		task.Data = entities.ChecklistData(items)
		return s.persistData(task), nil
	})
}

// persistData sends the task's whole data payload.
func (s *Store) persistData(task *entities.Task) call {
	taskID := task.ID
	data := task.Data
	if data.IsChecklist() {
		items := data.Items()
		return func(ctx context.Context, base *int64) (*ports.WriteResult, error) {
			return s.remote.WriteChecklist(ctx, taskID, items, base)
		}
	}
	return func(ctx context.Context, base *int64) (*ports.WriteResult, error) {
		return s.remote.Update(ctx, taskID, ports.UpdateTaskRequest{Data: &data}, base)
	}
}

func (s *Store) writableLocked() error {
	if s.closed {
		return errors.New("store closed")
	}
	if s.state == Reconciling {
		return ErrReconciling
	}
	return nil
}

func (s *Store) enqueueLocked(op string, send call) {
	s.queue = append(s.queue, command{op: op, gen: s.gen, send: send})
	s.state = PendingWrite
	s.cond.Broadcast()
}

// reconcileLocked drops every queued edit and schedules a fetch. Responses to
// anything sent before this point are ignored.
func (s *Store) reconcileLocked(cause error) {
	s.gen++
	s.queue = nil
	s.state = Reconciling
	if cause != nil {
		s.lastErr = cause
	}
	s.cond.Broadcast()
}

func (s *Store) run() {
	defer close(s.done)
	for {
		s.mu.Lock()
		for !s.closed && s.state != Reconciling && len(s.queue) == 0 {
			s.cond.Wait()
		}
		if s.closed {
			s.mu.Unlock()
			return
		}

		if s.state == Reconciling {
			gen := s.gen
			s.inflight = true
			s.mu.Unlock()
			s.fetch(gen)
			continue
		}

		cmd := s.queue[0]
		s.queue = s.queue[1:]
		base := s.version
		s.inflight = true
		s.mu.Unlock()

		res, err := cmd.send(s.ctx, &base)
		s.settle(cmd, res, err)
	}
}

func (s *Store) fetch(gen uint64) {
	snap, err := s.remote.Fetch(s.ctx)

	s.mu.Lock()
	s.inflight = false
	if err != nil {
		s.lastErr = err
		s.cond.Broadcast()
		s.mu.Unlock()
		s.logger.Warnw("Fetch failed, retrying", "error", err, "retry_in", s.retry)
		select {
		case <-s.ctx.Done():
		case <-time.After(s.retry):
		}
		return
	}
	defer s.mu.Unlock()
	if gen != s.gen {
		return
	}
	s.tasks = snap.Tasks
	s.version = snap.Version
	s.state = Clean
	s.cond.Broadcast()
	s.logger.Debugw("Reconciled with server", "version", snap.Version, "tasks", len(snap.Tasks))
}

func (s *Store) settle(cmd command, res *ports.WriteResult, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inflight = false
	defer s.cond.Broadcast()

	if cmd.gen != s.gen || s.closed {
		return
	}
	if err != nil {
		s.logger.Warnw("Write rejected, reconciling", "op", cmd.op, "error", err)
		s.reconcileLocked(fmt.Errorf("%s: %w", cmd.op, err))
		return
	}
	s.version = res.Version
	if len(s.queue) == 0 {
		s.state = Clean
	}
}

func findLocal(tasks []*entities.Task, taskID string) (*entities.Task, int) {
	for i, t := range tasks {
		if t.ID == taskID {
			return t, i
		}
	}
	return nil, -1
}
