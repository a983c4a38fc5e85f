// Package sqlite implements store.Store against SQLite via modernc.org/sqlite.
// It backs local development and the storetest compliance suite.
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/strideapp/stride/internal/model"
	"github.com/strideapp/stride/internal/store"
)

//go:embed schema.sql
var schemaSQL string

// Open opens (or creates) a SQLite database at the given path, enables WAL
// journal mode and foreign keys, and applies the schema.
func Open(path string) (*sql.DB, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)", path)
	return openDSN(dsn)
}

// OpenInMemory opens a private in-memory database, used by tests.
func OpenInMemory() (*sql.DB, error) {
	return openDSN("file::memory:?_pragma=foreign_keys(ON)")
}

func openDSN(dsn string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	// A single connection keeps in-memory databases coherent and sidesteps
	// SQLITE_BUSY under concurrent writers.
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := ensureSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

func ensureSchema(db *sql.DB) error {
	for _, stmt := range strings.Split(schemaSQL, ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}

// NewWithDB constructs a SQLite store backed directly by database/sql.
func NewWithDB(db *sql.DB) store.Store { return &liteStore{db: db} }

type liteStore struct{ db *sql.DB }

func (s *liteStore) Users() store.Users               { return &users{db: s.db} }
func (s *liteStore) Tasks() store.Tasks               { return &tasks{db: s.db} }
func (s *liteStore) Steps() store.Steps               { return &steps{db: s.db} }
func (s *liteStore) ActivityLogs() store.ActivityLogs { return &activityLogs{db: s.db} }
func (s *liteStore) Interactions() store.Interactions { return &interactions{db: s.db} }

// HealthPing verifies database connectivity.
func (s *liteStore) HealthPing(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func mapNoRows(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return model.ErrNotFound
	}
	return err
}

// --- Users ---

type users struct{ db *sql.DB }

const userColumns = `user_id, email, display_name, password_hash, time_zone, settings, creation_time, update_time`

func (u *users) Create(ctx context.Context, m *model.User) (*model.User, error) {
	out := *m
	if out.UserID == "" {
		out.UserID = uuid.New().String()
	}
	now := time.Now().UTC()
	out.CreationTime = now
	out.UpdateTime = now

	raw, err := json.Marshal(out.Settings)
	if err != nil {
		return nil, err
	}
	_, err = u.db.ExecContext(ctx, `
        INSERT INTO users (`+userColumns+`)
        VALUES (?,?,?,?,?,?,?,?)
    `, out.UserID, out.Email, out.DisplayName, out.PasswordHash, out.TimeZone,
		string(raw), out.CreationTime, out.UpdateTime)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func scanUser(row interface{ Scan(...any) error }) (*model.User, error) {
	var out model.User
	var raw string
	if err := row.Scan(&out.UserID, &out.Email, &out.DisplayName, &out.PasswordHash,
		&out.TimeZone, &raw, &out.CreationTime, &out.UpdateTime); err != nil {
		return nil, mapNoRows(err)
	}
	if raw != "" {
		if err := json.Unmarshal([]byte(raw), &out.Settings); err != nil {
			return nil, err
		}
	}
	return &out, nil
}

func (u *users) GetByID(ctx context.Context, userID string) (*model.User, error) {
	return scanUser(u.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE user_id=?`, userID))
}

func (u *users) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	return scanUser(u.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE email=?`, email))
}

func (u *users) Update(ctx context.Context, m *model.User) (*model.User, error) {
	out := *m
	out.UpdateTime = time.Now().UTC()
	res, err := u.db.ExecContext(ctx, `
        UPDATE users SET email=?, display_name=?, password_hash=?, time_zone=?, update_time=?
        WHERE user_id=?
    `, out.Email, out.DisplayName, out.PasswordHash, out.TimeZone, out.UpdateTime, out.UserID)
	if err != nil {
		return nil, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, model.ErrNotFound
	}
	return &out, nil
}

func (u *users) UpdateSettings(ctx context.Context, userID string, s model.NotificationSettings) error {
	raw, err := json.Marshal(s)
	if err != nil {
		return err
	}
	res, err := u.db.ExecContext(ctx,
		`UPDATE users SET settings=?, update_time=? WHERE user_id=?`,
		string(raw), time.Now().UTC(), userID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return model.ErrNotFound
	}
	return nil
}

func (u *users) List(ctx context.Context) ([]*model.User, error) {
	rows, err := u.db.QueryContext(ctx,
		`SELECT `+userColumns+` FROM users ORDER BY creation_time`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.User
	for rows.Next() {
		usr, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, usr)
	}
	return out, rows.Err()
}

func (u *users) Delete(ctx context.Context, userID string) error {
	res, err := u.db.ExecContext(ctx, `DELETE FROM users WHERE user_id=?`, userID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return model.ErrNotFound
	}
	return nil
}

// --- Tasks ---

type tasks struct{ db *sql.DB }

const taskColumns = `task_id, user_id, title, description, status, priority, deadline, completed_at, creation_time, update_time`

func scanTask(row interface{ Scan(...any) error }) (*model.Task, error) {
	var out model.Task
	if err := row.Scan(&out.TaskID, &out.UserID, &out.Title, &out.Description,
		&out.Status, &out.Priority, &out.Deadline, &out.CompletedAt,
		&out.CreationTime, &out.UpdateTime); err != nil {
		return nil, mapNoRows(err)
	}
	return &out, nil
}

func (t *tasks) Create(ctx context.Context, m *model.Task) (*model.Task, error) {
	out := *m
	if out.TaskID == "" {
		out.TaskID = uuid.New().String()
	}
	now := time.Now().UTC()
	out.CreationTime = now
	out.UpdateTime = now

	_, err := t.db.ExecContext(ctx, `
        INSERT INTO tasks (`+taskColumns+`)
        VALUES (?,?,?,?,?,?,?,?,?,?)
    `, out.TaskID, out.UserID, out.Title, out.Description, out.Status, out.Priority,
		out.Deadline, out.CompletedAt, out.CreationTime, out.UpdateTime)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (t *tasks) GetByID(ctx context.Context, taskID string) (*model.Task, error) {
	return scanTask(t.db.QueryRowContext(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE task_id=?`, taskID))
}

func (t *tasks) ListByUser(ctx context.Context, userID string, status *model.TaskStatus) ([]*model.Task, error) {
	q := `SELECT ` + taskColumns + ` FROM tasks WHERE user_id=?`
	args := []any{userID}
	if status != nil {
		q += ` AND status=?`
		args = append(args, *status)
	}
	q += ` ORDER BY creation_time DESC`

	rows, err := t.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectTasks(rows)
}

func (t *tasks) ListActive(ctx context.Context) ([]*model.Task, error) {
	rows, err := t.db.QueryContext(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE status=? ORDER BY creation_time`,
		model.TaskStatusActive)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectTasks(rows)
}

func collectTasks(rows *sql.Rows) ([]*model.Task, error) {
	var out []*model.Task
	for rows.Next() {
		tk, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, tk)
	}
	return out, rows.Err()
}

func (t *tasks) CountByStatus(ctx context.Context, userID string, status model.TaskStatus) (int, error) {
	var n int
	err := t.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM tasks WHERE user_id=? AND status=?`,
		userID, status).Scan(&n)
	return n, err
}

func (t *tasks) CountCompletedSince(ctx context.Context, userID string, since time.Time) (int, error) {
	var n int
	err := t.db.QueryRowContext(ctx, `
        SELECT COUNT(*) FROM tasks
        WHERE user_id=? AND status=? AND completed_at >= ?
    `, userID, model.TaskStatusCompleted, since).Scan(&n)
	return n, err
}

func (t *tasks) Update(ctx context.Context, m *model.Task) (*model.Task, error) {
	out := *m
	out.UpdateTime = time.Now().UTC()
	res, err := t.db.ExecContext(ctx, `
        UPDATE tasks SET title=?, description=?, status=?, priority=?, deadline=?, completed_at=?, update_time=?
        WHERE task_id=?
    `, out.Title, out.Description, out.Status, out.Priority,
		out.Deadline, out.CompletedAt, out.UpdateTime, out.TaskID)
	if err != nil {
		return nil, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, model.ErrNotFound
	}
	return &out, nil
}

func (t *tasks) MarkCompleted(ctx context.Context, taskID string, at time.Time) error {
	_, err := t.db.ExecContext(ctx, `
        UPDATE tasks SET status=?, completed_at=?, update_time=?
        WHERE task_id=? AND status <> ?
    `, model.TaskStatusCompleted, at, at, taskID, model.TaskStatusCompleted)
	return err
}

func (t *tasks) Delete(ctx context.Context, taskID string) error {
	res, err := t.db.ExecContext(ctx, `DELETE FROM tasks WHERE task_id=?`, taskID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return model.ErrNotFound
	}
	return nil
}

// --- Steps ---

type steps struct{ db *sql.DB }

const stepColumns = `step_id, task_id, title, description, step_order, completed, completed_at, creation_time, update_time`

func scanStep(row interface{ Scan(...any) error }) (*model.Step, error) {
	var out model.Step
	if err := row.Scan(&out.StepID, &out.TaskID, &out.Title, &out.Description,
		&out.Order, &out.Completed, &out.CompletedAt,
		&out.CreationTime, &out.UpdateTime); err != nil {
		return nil, mapNoRows(err)
	}
	return &out, nil
}

func (s *steps) Create(ctx context.Context, m *model.Step) (*model.Step, error) {
	out := *m
	if out.StepID == "" {
		out.StepID = uuid.New().String()
	}
	now := time.Now().UTC()
	out.CreationTime = now
	out.UpdateTime = now

	_, err := s.db.ExecContext(ctx, `
        INSERT INTO steps (`+stepColumns+`)
        VALUES (?,?,?,?,?,?,?,?,?)
    `, out.StepID, out.TaskID, out.Title, out.Description, out.Order,
		out.Completed, out.CompletedAt, out.CreationTime, out.UpdateTime)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *steps) GetByID(ctx context.Context, stepID string) (*model.Step, error) {
	return scanStep(s.db.QueryRowContext(ctx,
		`SELECT `+stepColumns+` FROM steps WHERE step_id=?`, stepID))
}

func (s *steps) ListByTask(ctx context.Context, taskID string) ([]*model.Step, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+stepColumns+` FROM steps WHERE task_id=? ORDER BY step_order`, taskID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.Step
	for rows.Next() {
		st, err := scanStep(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

func (s *steps) MaxOrder(ctx context.Context, taskID string) (int, error) {
	var max int
	err := s.db.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(step_order), -1) FROM steps WHERE task_id=?`, taskID).Scan(&max)
	return max, err
}

func (s *steps) Update(ctx context.Context, m *model.Step) (*model.Step, error) {
	out := *m
	out.UpdateTime = time.Now().UTC()
	res, err := s.db.ExecContext(ctx, `
        UPDATE steps SET title=?, description=?, step_order=?, update_time=?
        WHERE step_id=?
    `, out.Title, out.Description, out.Order, out.UpdateTime, out.StepID)
	if err != nil {
		return nil, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, model.ErrNotFound
	}
	return &out, nil
}

func (s *steps) SetCompleted(ctx context.Context, stepID string, completed bool, at *time.Time) (*model.Step, error) {
	res, err := s.db.ExecContext(ctx, `
        UPDATE steps SET completed=?, completed_at=?, update_time=?
        WHERE step_id=?
    `, completed, at, time.Now().UTC(), stepID)
	if err != nil {
		return nil, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, model.ErrNotFound
	}
	return s.GetByID(ctx, stepID)
}

func (s *steps) Delete(ctx context.Context, stepID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM steps WHERE step_id=?`, stepID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return model.ErrNotFound
	}
	return nil
}

// --- ActivityLogs ---

type activityLogs struct{ db *sql.DB }

const logColumns = `log_id, task_id, step_id, action_type, details, log_time`

func scanLog(row interface{ Scan(...any) error }) (*model.ActivityLog, error) {
	var out model.ActivityLog
	if err := row.Scan(&out.LogID, &out.TaskID, &out.StepID, &out.Action,
		&out.Details, &out.Timestamp); err != nil {
		return nil, mapNoRows(err)
	}
	return &out, nil
}

func (a *activityLogs) Append(ctx context.Context, m *model.ActivityLog) (*model.ActivityLog, error) {
	out := *m
	if out.LogID == "" {
		out.LogID = uuid.New().String()
	}
	if out.Timestamp.IsZero() {
		out.Timestamp = time.Now().UTC()
	}
	_, err := a.db.ExecContext(ctx, `
        INSERT INTO activity_logs (`+logColumns+`)
        VALUES (?,?,?,?,?,?)
    `, out.LogID, out.TaskID, out.StepID, out.Action, out.Details, out.Timestamp)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (a *activityLogs) ListByTask(ctx context.Context, taskID string, limit int) ([]*model.ActivityLog, error) {
	rows, err := a.db.QueryContext(ctx, `
        SELECT `+logColumns+` FROM activity_logs
        WHERE task_id=? ORDER BY log_time DESC LIMIT ?
    `, taskID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectLogs(rows)
}

func (a *activityLogs) LatestByTask(ctx context.Context, taskID string) (*model.ActivityLog, error) {
	return scanLog(a.db.QueryRowContext(ctx, `
        SELECT `+logColumns+` FROM activity_logs
        WHERE task_id=? ORDER BY log_time DESC LIMIT 1
    `, taskID))
}

func (a *activityLogs) ListCompletionsByUser(ctx context.Context, userID string, limit int) ([]*model.ActivityLog, error) {
	rows, err := a.db.QueryContext(ctx, `
        SELECT l.log_id, l.task_id, l.step_id, l.action_type, l.details, l.log_time
        FROM activity_logs l
        JOIN tasks t ON t.task_id = l.task_id
        WHERE t.user_id=? AND l.action_type=?
        ORDER BY l.log_time DESC LIMIT ?
    `, userID, model.ActionCompleted, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectLogs(rows)
}

func collectLogs(rows *sql.Rows) ([]*model.ActivityLog, error) {
	var out []*model.ActivityLog
	for rows.Next() {
		l, err := scanLog(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// --- Interactions ---

type interactions struct{ db *sql.DB }

func (i *interactions) Create(ctx context.Context, m *model.AIInteraction) (*model.AIInteraction, error) {
	out := *m
	if out.InteractionID == "" {
		out.InteractionID = uuid.New().String()
	}
	if out.Timestamp.IsZero() {
		out.Timestamp = time.Now().UTC()
	}
	_, err := i.db.ExecContext(ctx, `
        INSERT INTO ai_interactions (interaction_id, user_id, task_id, interaction_type, prompt, response, creation_time)
        VALUES (?,?,?,?,?,?,?)
    `, out.InteractionID, out.UserID, out.TaskID, out.Type, out.Prompt, out.Response, out.Timestamp)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (i *interactions) ListByUser(ctx context.Context, userID string, limit int) ([]*model.AIInteraction, error) {
	rows, err := i.db.QueryContext(ctx, `
        SELECT interaction_id, user_id, task_id, interaction_type, prompt, response, creation_time
        FROM ai_interactions WHERE user_id=?
        ORDER BY creation_time DESC LIMIT ?
    `, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.AIInteraction
	for rows.Next() {
		var it model.AIInteraction
		if err := rows.Scan(&it.InteractionID, &it.UserID, &it.TaskID, &it.Type,
			&it.Prompt, &it.Response, &it.Timestamp); err != nil {
			return nil, err
		}
		out = append(out, &it)
	}
	return out, rows.Err()
}
