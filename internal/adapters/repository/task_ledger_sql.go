package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/taskmaster/tasklist/internal/domain/entities"
	"github.com/taskmaster/tasklist/internal/domain/ordering"
	"github.com/taskmaster/tasklist/internal/infrastructure/database"
	"github.com/taskmaster/tasklist/internal/ports"
)

const taskColumns = `id, user_id, position, data, done, pinned, image, created_at, updated_at`

// TaskLedgerSQL stores task order in postgres or sqlite. Queries are written
// with ? placeholders and rebound for the connection's driver.
type TaskLedgerSQL struct {
	db *sqlx.DB
}

// NewTaskLedger creates a new SQL-backed task ledger
func NewTaskLedger(db *sqlx.DB) ports.TaskLedger {
	return &TaskLedgerSQL{db: db}
}

func (r *TaskLedgerSQL) GetOrdered(ctx context.Context, userID string) ([]*entities.Task, error) {
	query := r.db.Rebind(`SELECT ` + taskColumns + ` FROM tasks WHERE user_id = ? ORDER BY position ASC`)

	tasks := []*entities.Task{}
	if err := r.db.SelectContext(ctx, &tasks, query, userID); err != nil {
		return nil, &entities.PersistenceError{Op: "get ordered tasks", Err: err}
	}
	return tasks, nil
}

func (r *TaskLedgerSQL) Get(ctx context.Context, userID, taskID string) (*entities.Task, error) {
	query := r.db.Rebind(`SELECT ` + taskColumns + ` FROM tasks WHERE user_id = ? AND id = ?`)

	var task entities.Task
	if err := r.db.GetContext(ctx, &task, query, userID, taskID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, entities.ErrTaskNotFound
		}
		return nil, &entities.PersistenceError{Op: "get task", Err: err}
	}
	return &task, nil
}

// Insert stores the task one past the highest position in use, then applies plan
// in the same transaction. task.Position holds the final position on return.
func (r *TaskLedgerSQL) Insert(ctx context.Context, task *entities.Task, plan ordering.RenumberPlan, expected int64) error {
	now := time.Now().UTC()
	if task.CreatedAt.IsZero() {
		task.CreatedAt = now
	}
	task.UpdatedAt = now

	err := database.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		if err := bumpVersion(ctx, tx, task.UserID, expected); err != nil {
			return err
		}

		var exists int
		if err := tx.GetContext(ctx, &exists, tx.Rebind(`SELECT COUNT(*) FROM tasks WHERE user_id = ? AND id = ?`), task.UserID, task.ID); err != nil {
			return err
		}
		if exists > 0 {
			return entities.ErrTaskConflict
		}

		var next int
		if err := tx.GetContext(ctx, &next, tx.Rebind(`SELECT COALESCE(MAX(position), 0) + 1 FROM tasks WHERE user_id = ?`), task.UserID); err != nil {
			return err
		}

		insert := tx.Rebind(`INSERT INTO tasks (` + taskColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
		if _, err := tx.ExecContext(ctx, insert,
			task.ID, task.UserID, next, task.Data, task.Done, task.Pinned, task.Image,
			task.CreatedAt, task.UpdatedAt,
		); err != nil {
			return err
		}
		if err := applyPlan(ctx, tx, task.UserID, plan, now); err != nil {
			return err
		}
		return tx.GetContext(ctx, &task.Position, tx.Rebind(`SELECT position FROM tasks WHERE user_id = ? AND id = ?`), task.UserID, task.ID)
	})
	return wrapLedgerError("insert task", err)
}

// Renumber applies the plan in one transaction.
func (r *TaskLedgerSQL) Renumber(ctx context.Context, userID string, plan ordering.RenumberPlan, expected int64) error {
	if plan.Empty() {
		return nil
	}
	now := time.Now().UTC()

	err := database.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		if err := bumpVersion(ctx, tx, userID, expected); err != nil {
			return err
		}
		return applyPlan(ctx, tx, userID, plan, now)
	})
	return wrapLedgerError("renumber tasks", err)
}

// UpdateContent rewrites data, done and image. Position and pinned are untouched.
func (r *TaskLedgerSQL) UpdateContent(ctx context.Context, task *entities.Task, expected int64) error {
	task.UpdatedAt = time.Now().UTC()

	err := database.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		if err := bumpVersion(ctx, tx, task.UserID, expected); err != nil {
			return err
		}
		query := tx.Rebind(`UPDATE tasks SET data = ?, done = ?, image = ?, updated_at = ? WHERE user_id = ? AND id = ?`)
		res, err := tx.ExecContext(ctx, query, task.Data, task.Done, task.Image, task.UpdatedAt, task.UserID, task.ID)
		if err != nil {
			return err
		}
		return requireRow(res)
	})
	return wrapLedgerError("update task content", err)
}

// Delete removes the row. Remaining positions are left as they are.
func (r *TaskLedgerSQL) Delete(ctx context.Context, userID, taskID string, expected int64) error {
	err := database.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		if err := bumpVersion(ctx, tx, userID, expected); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM tasks WHERE user_id = ? AND id = ?`), userID, taskID)
		if err != nil {
			return err
		}
		return requireRow(res)
	})
	return wrapLedgerError("delete task", err)
}

func (r *TaskLedgerSQL) Version(ctx context.Context, userID string) (int64, error) {
	var version int64
	err := r.db.GetContext(ctx, &version, r.db.Rebind(`SELECT version FROM ledger_versions WHERE user_id = ?`), userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		return 0, &entities.PersistenceError{Op: "get version", Err: err}
	}
	return version, nil
}

// bumpVersion moves the user's version from expected to expected+1. It runs
// first in every write transaction so concurrent writers queue on the row.
func bumpVersion(ctx context.Context, tx *sqlx.Tx, userID string, expected int64) error {
	var (
		res sql.Result
		err error
	)
	if expected == 0 {
		res, err = tx.ExecContext(ctx, tx.Rebind(`INSERT INTO ledger_versions (user_id, version) VALUES (?, 1)
			ON CONFLICT (user_id) DO NOTHING`), userID)
	} else {
		res, err = tx.ExecContext(ctx, tx.Rebind(`UPDATE ledger_versions SET version = version + 1
			WHERE user_id = ? AND version = ?`), userID, expected)
	}
	if err != nil {
		return fmt.Errorf("bump version: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("bump version: %w", err)
	}
	if n == 0 {
		return entities.ErrStaleVersion
	}
	return nil
}

// applyPlan writes a renumber plan. Touched rows are first moved to negative
// positions so the unique (user_id, position) index never sees a transient
// duplicate while the window is rewritten.
func applyPlan(ctx context.Context, tx *sqlx.Tx, userID string, plan ordering.RenumberPlan, now time.Time) error {
	if plan.Empty() {
		return nil
	}
	ids := plan.Touched()

	count, args, err := sqlx.In(`SELECT COUNT(*) FROM tasks WHERE user_id = ? AND id IN (?)`, userID, ids)
	if err != nil {
		return err
	}
	var found int
	if err := tx.GetContext(ctx, &found, tx.Rebind(count), args...); err != nil {
		return err
	}
	if found != len(ids) {
		return entities.ErrTaskNotFound
	}

	if len(plan.Assignments) > 0 {
		moved := make([]string, len(plan.Assignments))
		for i, a := range plan.Assignments {
			moved[i] = a.TaskID
		}
		park, args, err := sqlx.In(`UPDATE tasks SET position = -position WHERE user_id = ? AND id IN (?)`, userID, moved)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, tx.Rebind(park), args...); err != nil {
			return err
		}

		assign := tx.Rebind(`UPDATE tasks SET position = ?, updated_at = ? WHERE user_id = ? AND id = ?`)
		for _, a := range plan.Assignments {
			if _, err := tx.ExecContext(ctx, assign, a.Position, now, userID, a.TaskID); err != nil {
				return err
			}
		}
	}

	if plan.Pin != nil {
		pin := tx.Rebind(`UPDATE tasks SET pinned = ?, updated_at = ? WHERE user_id = ? AND id = ?`)
		if _, err := tx.ExecContext(ctx, pin, plan.Pin.Pinned, now, userID, plan.Pin.TaskID); err != nil {
			return err
		}
	}
	return nil
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if n == 0 {
		return entities.ErrTaskNotFound
	}
	return nil
}

// wrapLedgerError passes domain errors through and wraps storage failures.
func wrapLedgerError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, entities.ErrTaskNotFound) ||
		errors.Is(err, entities.ErrTaskConflict) ||
		errors.Is(err, entities.ErrStaleVersion) {
		return err
	}
	return &entities.PersistenceError{Op: op, Err: err}
}
