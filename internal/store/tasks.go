package store

import (
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/sparklive/rustmailer/internal/apperr"
	"github.com/sparklive/rustmailer/internal/idgen"
	"github.com/sparklive/rustmailer/internal/model"
)

// TaskStore is the durable task store (C2): typed persistent records for
// scheduled work with the secondary-index access patterns the scheduler and
// list APIs need. Grounded on original_source's
// modules/scheduler/nativedb/meta.rs, reimplemented over SQLite instead of
// native_db (see package doc).
type TaskStore struct {
	s *Store
}

func NewTaskStore(s *Store) *TaskStore { return &TaskStore{s: s} }

func idHex(id model.TaskID) string { return hex.EncodeToString(id[:]) }

func idFromHex(s string) (model.TaskID, error) {
	var id model.TaskID
	b, err := hex.DecodeString(s)
	if err != nil || len(b) != len(id) {
		return id, fmt.Errorf("malformed task id %q", s)
	}
	copy(id[:], b)
	return id, nil
}

// Insert persists a brand-new task row in Scheduled status.
func (t *TaskStore) Insert(meta *model.TaskMeta) error {
	policy, err := json.Marshal(meta.RetryPolicy)
	if err != nil {
		return err
	}
	_, err = t.s.DB().Exec(
		`INSERT INTO tasks (id, task_key, params, queue, status, stop_reason, last_error,
			last_duration_ms, retry_count, retry_policy, next_run, heartbeat_at, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		idHex(meta.ID), meta.TaskKey, meta.Params, meta.Queue, meta.Status, meta.StopReason, meta.LastError,
		meta.LastDuration.Milliseconds(), meta.RetryCount, string(policy), meta.NextRun.Unix(), nullTime(meta.HeartbeatAt),
		meta.CreatedAt.Unix(), meta.UpdatedAt.Unix(),
	)
	return err
}

func nullTime(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.Unix()
}

// FetchPending atomically selects up to limit Scheduled rows whose next_run
// has arrived, flips them to Running, and returns the pre-flip snapshot —
// the transaction guarantees at-most-once dispatch per row.
func (t *TaskStore) FetchPending(now time.Time, limit int) ([]*model.TaskMeta, error) {
	tx, err := t.s.DB().Begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	rows, err := tx.Query(
		`SELECT id, task_key, params, queue, status, stop_reason, last_error, last_duration_ms,
			retry_count, retry_policy, next_run, heartbeat_at, created_at, updated_at
		 FROM tasks WHERE status = ? AND next_run <= ? ORDER BY next_run ASC LIMIT ?`,
		model.TaskScheduled, now.Unix(), limit,
	)
	if err != nil {
		return nil, err
	}
	metas, err := scanTasks(rows)
	rows.Close()
	if err != nil {
		return nil, err
	}

	if len(metas) > 0 {
		ids := make([]string, len(metas))
		for i, m := range metas {
			ids[i] = idHex(m.ID)
		}
		placeholder := placeholders(len(ids))
		args := make([]interface{}, 0, len(ids)+2)
		args = append(args, model.TaskRunning, now.Unix())
		for _, id := range ids {
			args = append(args, id)
		}
		q := fmt.Sprintf("UPDATE tasks SET status = ?, updated_at = ? WHERE id IN (%s)", placeholder)
		if _, err := tx.Exec(q, args...); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return metas, nil
}

func placeholders(n int) string {
	s := ""
	for i := 0; i < n; i++ {
		if i > 0 {
			s += ","
		}
		s += "?"
	}
	return s
}

// CompleteSuccess marks a task Success, recording its run duration. It never
// overwrites a Stopped/Removed row.
func (t *TaskStore) CompleteSuccess(id model.TaskID, duration time.Duration) error {
	_, err := t.s.DB().Exec(
		`UPDATE tasks SET status = ?, last_duration_ms = ?, updated_at = ?
		 WHERE id = ? AND status NOT IN (?, ?)`,
		model.TaskSuccess, duration.Milliseconds(), time.Now().Unix(), idHex(id), model.TaskRemoved, model.TaskStopped,
	)
	return err
}

// CompleteFailure consults policy and retryCount (the value before this
// failure) to either reschedule with backoff or mark the task Failed. It
// never overwrites a Stopped/Removed row; in that case only last_error is
// recorded.
func (t *TaskStore) CompleteFailure(id model.TaskID, policy model.RetryPolicy, retryCount uint32, lastErr string, duration time.Duration) (model.TaskStatus, error) {
	tx, err := t.s.DB().Begin()
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	var status model.TaskStatus
	if err := tx.QueryRow("SELECT status FROM tasks WHERE id = ?", idHex(id)).Scan(&status); err != nil {
		return 0, err
	}
	if status.Terminal() {
		_, err := tx.Exec("UPDATE tasks SET last_error = ?, updated_at = ? WHERE id = ?", lastErr, time.Now().Unix(), idHex(id))
		if err != nil {
			return status, err
		}
		return status, tx.Commit()
	}

	now := time.Now()
	var newStatus model.TaskStatus
	var nextRun time.Time
	var newRetryCount uint32
	if policy.ExhaustedAfter(retryCount) {
		newStatus = model.TaskFailed
		newRetryCount = retryCount + 1
		nextRun = now
	} else {
		newStatus = model.TaskScheduled
		newRetryCount = retryCount + 1
		nextRun = now.Add(policy.NextWait(retryCount))
	}

	_, err = tx.Exec(
		`UPDATE tasks SET status = ?, retry_count = ?, next_run = ?, last_error = ?, last_duration_ms = ?, updated_at = ?
		 WHERE id = ?`,
		newStatus, newRetryCount, nextRun.Unix(), lastErr, duration.Milliseconds(), now.Unix(), idHex(id),
	)
	if err != nil {
		return status, err
	}
	if err := tx.Commit(); err != nil {
		return status, err
	}
	return newStatus, nil
}

// SetStatus forcibly sets a task's status (used by Stop/Remove API calls and
// hook-task short-circuiting).
func (t *TaskStore) SetStatus(id model.TaskID, status model.TaskStatus, reason *string) error {
	_, err := t.s.DB().Exec(
		"UPDATE tasks SET status = ?, stop_reason = ?, updated_at = ? WHERE id = ?",
		status, reason, time.Now().Unix(), idHex(id),
	)
	return err
}

// Heartbeat updates heartbeat_at for a Running task.
func (t *TaskStore) Heartbeat(id model.TaskID, at time.Time) error {
	_, err := t.s.DB().Exec("UPDATE tasks SET heartbeat_at = ? WHERE id = ? AND status = ?", at.Unix(), idHex(id), model.TaskRunning)
	return err
}

func (t *TaskStore) Get(id model.TaskID) (*model.TaskMeta, error) {
	row := t.s.DB().QueryRow(
		`SELECT id, task_key, params, queue, status, stop_reason, last_error, last_duration_ms,
			retry_count, retry_policy, next_run, heartbeat_at, created_at, updated_at
		 FROM tasks WHERE id = ?`, idHex(id))
	m, err := scanTaskRow(row)
	if err == sql.ErrNoRows {
		return nil, apperr.New(apperr.ResourceNotFound, "task not found")
	}
	return m, err
}

// ListByStatus returns all tasks of the given kind (empty kind == any) and
// status, newest first.
func (t *TaskStore) ListByStatus(taskKey string, status model.TaskStatus) ([]*model.TaskMeta, error) {
	var rows *sql.Rows
	var err error
	if taskKey == "" {
		rows, err = t.s.DB().Query(
			`SELECT id, task_key, params, queue, status, stop_reason, last_error, last_duration_ms,
				retry_count, retry_policy, next_run, heartbeat_at, created_at, updated_at
			 FROM tasks WHERE status = ? ORDER BY created_at DESC, id DESC`, status)
	} else {
		rows, err = t.s.DB().Query(
			`SELECT id, task_key, params, queue, status, stop_reason, last_error, last_duration_ms,
				retry_count, retry_policy, next_run, heartbeat_at, created_at, updated_at
			 FROM tasks WHERE task_key = ? AND status = ? ORDER BY created_at DESC, id DESC`, taskKey, status)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTasks(rows)
}

// ListPaginated returns a page of tasks for taskKey (all statuses).
func (t *TaskStore) ListPaginated(taskKey string, page, pageSize uint64, desc bool) ([]*model.TaskMeta, uint64, error) {
	if page == 0 {
		page = 1
	}
	if pageSize == 0 {
		pageSize = 20
	}
	order := "ASC"
	if desc {
		order = "DESC"
	}

	var total uint64
	if err := t.s.DB().QueryRow("SELECT COUNT(*) FROM tasks WHERE task_key = ?", taskKey).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := t.s.DB().Query(
		fmt.Sprintf(`SELECT id, task_key, params, queue, status, stop_reason, last_error, last_duration_ms,
			retry_count, retry_policy, next_run, heartbeat_at, created_at, updated_at
		 FROM tasks WHERE task_key = ? ORDER BY created_at %s, id %s LIMIT ? OFFSET ?`, order, order),
		taskKey, pageSize, (page-1)*pageSize,
	)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	items, err := scanTasks(rows)
	return items, total, err
}

// RestoreOnStartup reclassifies every Running task left over from a crashed
// process: Scheduled if retries remain, Removed otherwise.
func (t *TaskStore) RestoreOnStartup() (scheduled, removed int, err error) {
	rows, err := t.s.DB().Query(
		`SELECT id, task_key, params, queue, status, stop_reason, last_error, last_duration_ms,
			retry_count, retry_policy, next_run, heartbeat_at, created_at, updated_at
		 FROM tasks WHERE status = ?`, model.TaskRunning)
	if err != nil {
		return 0, 0, err
	}
	metas, err := scanTasks(rows)
	rows.Close()
	if err != nil {
		return 0, 0, err
	}

	reason := "max retries exceeded during restore"
	now := time.Now()
	for _, m := range metas {
		if m.RetryPolicy.ExhaustedAfter(m.RetryCount) {
			if err := t.SetStatus(m.ID, model.TaskRemoved, &reason); err != nil {
				return scheduled, removed, err
			}
			removed++
		} else {
			if _, err := t.s.DB().Exec("UPDATE tasks SET status = ?, next_run = ?, updated_at = ? WHERE id = ?",
				model.TaskScheduled, now.Unix(), now.Unix(), idHex(m.ID)); err != nil {
				return scheduled, removed, err
			}
			scheduled++
		}
	}
	return scheduled, removed, nil
}

// Cleanup deletes terminal tasks older than retention, chunkSize rows at a
// time, to bound transaction size.
func (t *TaskStore) Cleanup(retention time.Duration, chunkSize int) (int, error) {
	cutoff := time.Now().Add(-retention).Unix()
	total := 0
	for {
		res, err := t.s.DB().Exec(
			`DELETE FROM tasks WHERE id IN (
				SELECT id FROM tasks
				WHERE status IN (?, ?, ?, ?) AND created_at < ?
				LIMIT ?
			 )`,
			model.TaskSuccess, model.TaskFailed, model.TaskRemoved, model.TaskStopped, cutoff, chunkSize,
		)
		if err != nil {
			return total, err
		}
		n, _ := res.RowsAffected()
		total += int(n)
		if n < int64(chunkSize) {
			break
		}
	}
	return total, nil
}

func scanTasks(rows *sql.Rows) ([]*model.TaskMeta, error) {
	var out []*model.TaskMeta
	for rows.Next() {
		m, err := scanTaskFields(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanTaskRow(row *sql.Row) (*model.TaskMeta, error) {
	return scanTaskFields(row)
}

func scanTaskFields(row rowScanner) (*model.TaskMeta, error) {
	var (
		idStr, taskKey, queue, policyJSON string
		status                            model.TaskStatus
		stopReason, lastError             sql.NullString
		lastDurationMs                    int64
		retryCount                        uint32
		nextRun, createdAt, updatedAt     int64
		heartbeatAt                       sql.NullInt64
		params                            []byte
	)
	if err := row.Scan(&idStr, &taskKey, &params, &queue, &status, &stopReason, &lastError, &lastDurationMs,
		&retryCount, &policyJSON, &nextRun, &heartbeatAt, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	id, err := idFromHex(idStr)
	if err != nil {
		return nil, err
	}
	var policy model.RetryPolicy
	if err := json.Unmarshal([]byte(policyJSON), &policy); err != nil {
		return nil, err
	}
	m := &model.TaskMeta{
		ID:           id,
		TaskKey:      taskKey,
		Params:       params,
		Queue:        queue,
		Status:       status,
		LastDuration: time.Duration(lastDurationMs) * time.Millisecond,
		RetryCount:   retryCount,
		RetryPolicy:  policy,
		NextRun:      time.Unix(nextRun, 0),
		CreatedAt:    time.Unix(createdAt, 0),
		UpdatedAt:    time.Unix(updatedAt, 0),
	}
	if stopReason.Valid {
		m.StopReason = &stopReason.String
	}
	if lastError.Valid {
		m.LastError = &lastError.String
	}
	if heartbeatAt.Valid {
		ht := time.Unix(heartbeatAt.Int64, 0)
		m.HeartbeatAt = &ht
	}
	return m, nil
}

// NewTaskMeta builds a fresh Scheduled task row ready for Insert.
func NewTaskMeta(taskKey, queue string, params []byte, policy model.RetryPolicy, delaySeconds uint32) *model.TaskMeta {
	now := time.Now()
	return &model.TaskMeta{
		ID:          idgen.NewTaskID(),
		TaskKey:     taskKey,
		Params:      params,
		Queue:       queue,
		Status:      model.TaskScheduled,
		RetryPolicy: policy,
		NextRun:     now.Add(time.Duration(delaySeconds) * time.Second),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}
