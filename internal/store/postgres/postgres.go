// Package postgres implements store.Store against PostgreSQL using the pgx
// stdlib driver.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/strideapp/stride/internal/model"
	"github.com/strideapp/stride/internal/store"
)

// Open opens a PostgreSQL connection using the pgx stdlib driver and verifies
// connectivity.
func Open(dsn string) (*sql.DB, error) {
	if dsn == "" {
		return nil, fmt.Errorf("postgres DSN is empty")
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// NewWithDB constructs a Postgres store backed directly by database/sql.
func NewWithDB(db *sql.DB) store.Store { return &pgStore{db: db} }

type pgStore struct{ db *sql.DB }

func (s *pgStore) Users() store.Users               { return &users{db: s.db} }
func (s *pgStore) Tasks() store.Tasks               { return &tasks{db: s.db} }
func (s *pgStore) Steps() store.Steps               { return &steps{db: s.db} }
func (s *pgStore) ActivityLogs() store.ActivityLogs { return &activityLogs{db: s.db} }
func (s *pgStore) Interactions() store.Interactions { return &interactions{db: s.db} }

// HealthPing verifies database connectivity.
func (s *pgStore) HealthPing(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func mapNoRows(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return model.ErrNotFound
	}
	return err
}

func marshalSettings(s model.NotificationSettings) ([]byte, error) {
	return json.Marshal(s)
}

func unmarshalSettings(raw []byte, into *model.NotificationSettings) error {
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, into)
}

// --- Users ---

type users struct{ db *sql.DB }

func (u *users) Create(ctx context.Context, m *model.User) (*model.User, error) {
	out := *m
	if out.UserID == "" {
		out.UserID = uuid.New().String()
	}
	now := time.Now().UTC()
	out.CreationTime = now
	out.UpdateTime = now

	raw, err := marshalSettings(out.Settings)
	if err != nil {
		return nil, err
	}
	_, err = u.db.ExecContext(ctx, `
        INSERT INTO users (user_id, email, display_name, password_hash, time_zone, settings, creation_time, update_time)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
    `, out.UserID, out.Email, out.DisplayName, out.PasswordHash, out.TimeZone, raw, out.CreationTime, out.UpdateTime)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

const userColumns = `user_id, email, display_name, password_hash, time_zone, settings, creation_time, update_time`

func scanUser(row interface{ Scan(...any) error }) (*model.User, error) {
	var out model.User
	var raw []byte
	if err := row.Scan(&out.UserID, &out.Email, &out.DisplayName, &out.PasswordHash,
		&out.TimeZone, &raw, &out.CreationTime, &out.UpdateTime); err != nil {
		return nil, mapNoRows(err)
	}
	if err := unmarshalSettings(raw, &out.Settings); err != nil {
		return nil, err
	}
	return &out, nil
}

func (u *users) GetByID(ctx context.Context, userID string) (*model.User, error) {
	return scanUser(u.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE user_id=$1`, userID))
}

func (u *users) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	return scanUser(u.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE email=$1`, email))
}

func (u *users) Update(ctx context.Context, m *model.User) (*model.User, error) {
	out := *m
	out.UpdateTime = time.Now().UTC()
	res, err := u.db.ExecContext(ctx, `
        UPDATE users SET email=$2, display_name=$3, password_hash=$4, time_zone=$5, update_time=$6
        WHERE user_id=$1
    `, out.UserID, out.Email, out.DisplayName, out.PasswordHash, out.TimeZone, out.UpdateTime)
	if err != nil {
		return nil, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, model.ErrNotFound
	}
	return &out, nil
}

func (u *users) UpdateSettings(ctx context.Context, userID string, s model.NotificationSettings) error {
	raw, err := marshalSettings(s)
	if err != nil {
		return err
	}
	res, err := u.db.ExecContext(ctx,
		`UPDATE users SET settings=$2, update_time=$3 WHERE user_id=$1`,
		userID, raw, time.Now().UTC())
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
	// Owned entities are removed by ON DELETE CASCADE.
	res, err := u.db.ExecContext(ctx, `DELETE FROM users WHERE user_id=$1`, userID)
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
        INSERT INTO tasks (task_id, user_id, title, description, status, priority, deadline, completed_at, creation_time, update_time)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
    `, out.TaskID, out.UserID, out.Title, out.Description, out.Status, out.Priority,
		out.Deadline, out.CompletedAt, out.CreationTime, out.UpdateTime)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (t *tasks) GetByID(ctx context.Context, taskID string) (*model.Task, error) {
	return scanTask(t.db.QueryRowContext(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE task_id=$1`, taskID))
}

func (t *tasks) ListByUser(ctx context.Context, userID string, status *model.TaskStatus) ([]*model.Task, error) {
	q := `SELECT ` + taskColumns + ` FROM tasks WHERE user_id=$1`
	args := []any{userID}
	if status != nil {
		q += ` AND status=$2`
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
		`SELECT `+taskColumns+` FROM tasks WHERE status=$1 ORDER BY creation_time`,
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
		`SELECT COUNT(*) FROM tasks WHERE user_id=$1 AND status=$2`,
		userID, status).Scan(&n)
	return n, err
}

func (t *tasks) CountCompletedSince(ctx context.Context, userID string, since time.Time) (int, error) {
	var n int
	err := t.db.QueryRowContext(ctx, `
        SELECT COUNT(*) FROM tasks
        WHERE user_id=$1 AND status=$2 AND completed_at >= $3
    `, userID, model.TaskStatusCompleted, since).Scan(&n)
	return n, err
}

func (t *tasks) Update(ctx context.Context, m *model.Task) (*model.Task, error) {
	out := *m
	out.UpdateTime = time.Now().UTC()
	res, err := t.db.ExecContext(ctx, `
        UPDATE tasks SET title=$2, description=$3, status=$4, priority=$5, deadline=$6, completed_at=$7, update_time=$8
        WHERE task_id=$1
    `, out.TaskID, out.Title, out.Description, out.Status, out.Priority,
		out.Deadline, out.CompletedAt, out.UpdateTime)
	if err != nil {
		return nil, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, model.ErrNotFound
	}
	return &out, nil
}

func (t *tasks) MarkCompleted(ctx context.Context, taskID string, at time.Time) error {
	// Guarded by status so completed_at is written exactly once.
	_, err := t.db.ExecContext(ctx, `
        UPDATE tasks SET status=$2, completed_at=$3, update_time=$3
        WHERE task_id=$1 AND status <> $2
    `, taskID, model.TaskStatusCompleted, at)
	return err
}

func (t *tasks) Delete(ctx context.Context, taskID string) error {
	res, err := t.db.ExecContext(ctx, `DELETE FROM tasks WHERE task_id=$1`, taskID)
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
        INSERT INTO steps (step_id, task_id, title, description, step_order, completed, completed_at, creation_time, update_time)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
    `, out.StepID, out.TaskID, out.Title, out.Description, out.Order,
		out.Completed, out.CompletedAt, out.CreationTime, out.UpdateTime)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *steps) GetByID(ctx context.Context, stepID string) (*model.Step, error) {
	return scanStep(s.db.QueryRowContext(ctx,
		`SELECT `+stepColumns+` FROM steps WHERE step_id=$1`, stepID))
}

func (s *steps) ListByTask(ctx context.Context, taskID string) ([]*model.Step, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+stepColumns+` FROM steps WHERE task_id=$1 ORDER BY step_order`, taskID)
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
		`SELECT COALESCE(MAX(step_order), -1) FROM steps WHERE task_id=$1`, taskID).Scan(&max)
	return max, err
}

func (s *steps) Update(ctx context.Context, m *model.Step) (*model.Step, error) {
	out := *m
	out.UpdateTime = time.Now().UTC()
	res, err := s.db.ExecContext(ctx, `
        UPDATE steps SET title=$2, description=$3, step_order=$4, update_time=$5
        WHERE step_id=$1
    `, out.StepID, out.Title, out.Description, out.Order, out.UpdateTime)
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
        UPDATE steps SET completed=$2, completed_at=$3, update_time=$4
        WHERE step_id=$1
    `, stepID, completed, at, time.Now().UTC())
	if err != nil {
		return nil, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, model.ErrNotFound
	}
	return s.GetByID(ctx, stepID)
}

func (s *steps) Delete(ctx context.Context, stepID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM steps WHERE step_id=$1`, stepID)
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
        INSERT INTO activity_logs (log_id, task_id, step_id, action_type, details, log_time)
        VALUES ($1,$2,$3,$4,$5,$6)
    `, out.LogID, out.TaskID, out.StepID, out.Action, out.Details, out.Timestamp)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (a *activityLogs) ListByTask(ctx context.Context, taskID string, limit int) ([]*model.ActivityLog, error) {
	rows, err := a.db.QueryContext(ctx, `
        SELECT `+logColumns+` FROM activity_logs
        WHERE task_id=$1 ORDER BY log_time DESC LIMIT $2
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
        WHERE task_id=$1 ORDER BY log_time DESC LIMIT 1
    `, taskID))
}

func (a *activityLogs) ListCompletionsByUser(ctx context.Context, userID string, limit int) ([]*model.ActivityLog, error) {
	rows, err := a.db.QueryContext(ctx, `
        SELECT l.log_id, l.task_id, l.step_id, l.action_type, l.details, l.log_time
        FROM activity_logs l
        JOIN tasks t ON t.task_id = l.task_id
        WHERE t.user_id=$1 AND l.action_type=$2
        ORDER BY l.log_time DESC LIMIT $3
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
        VALUES ($1,$2,$3,$4,$5,$6,$7)
    `, out.InteractionID, out.UserID, out.TaskID, out.Type, out.Prompt, out.Response, out.Timestamp)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (i *interactions) ListByUser(ctx context.Context, userID string, limit int) ([]*model.AIInteraction, error) {
	rows, err := i.db.QueryContext(ctx, `
        SELECT interaction_id, user_id, task_id, interaction_type, prompt, response, creation_time
        FROM ai_interactions WHERE user_id=$1
        ORDER BY creation_time DESC LIMIT $2
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
