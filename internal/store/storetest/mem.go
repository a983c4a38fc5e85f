package storetest

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/strideapp/stride/internal/model"
	"github.com/strideapp/stride/internal/store"
)

// Mem is a thread-safe in-memory store.Store used by unit tests across
// packages. It mirrors the SQL stores' semantics: ErrNotFound mapping,
// newest-first listings, one-way task completion, and user cascade deletes.
type Mem struct {
	mu           sync.Mutex
	users        map[string]*model.User
	tasks        map[string]*model.Task
	steps        map[string]*model.Step
	logs         []*model.ActivityLog
	interactions []*model.AIInteraction

	// FailWith, when set, is returned by every operation. Lets tests
	// exercise storage-error propagation.
	FailWith error
}

// NewMem constructs an empty in-memory store.
func NewMem() *Mem {
	return &Mem{
		users: make(map[string]*model.User),
		tasks: make(map[string]*model.Task),
		steps: make(map[string]*model.Step),
	}
}

func (m *Mem) Users() store.Users               { return memUsers{m} }
func (m *Mem) Tasks() store.Tasks               { return memTasks{m} }
func (m *Mem) Steps() store.Steps               { return memSteps{m} }
func (m *Mem) ActivityLogs() store.ActivityLogs { return memLogs{m} }
func (m *Mem) Interactions() store.Interactions { return memInteractions{m} }

// Seed helpers -------------------------------------------------------------

// AddUser inserts u, assigning an id when missing, and returns it.
func (m *Mem) AddUser(u *model.User) *model.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u.UserID == "" {
		u.UserID = uuid.New().String()
	}
	cp := *u
	m.users[cp.UserID] = &cp
	return u
}

// AddTask inserts t, assigning an id when missing, and returns it.
func (m *Mem) AddTask(t *model.Task) *model.Task {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t.TaskID == "" {
		t.TaskID = uuid.New().String()
	}
	cp := *t
	m.tasks[cp.TaskID] = &cp
	return t
}

// AddStep inserts s, assigning an id when missing, and returns it.
func (m *Mem) AddStep(s *model.Step) *model.Step {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s.StepID == "" {
		s.StepID = uuid.New().String()
	}
	cp := *s
	m.steps[cp.StepID] = &cp
	return s
}

// AddLog appends l, assigning an id when missing, and returns it.
func (m *Mem) AddLog(l *model.ActivityLog) *model.ActivityLog {
	m.mu.Lock()
	defer m.mu.Unlock()
	if l.LogID == "" {
		l.LogID = uuid.New().String()
	}
	cp := *l
	m.logs = append(m.logs, &cp)
	return l
}

// InteractionCount returns the number of recorded interactions.
func (m *Mem) InteractionCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.interactions)
}

// InteractionAt returns a copy of the i-th recorded interaction, in insert
// order.
func (m *Mem) InteractionAt(i int) model.AIInteraction {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.interactions[i]
}

// TaskByID returns a copy of the stored task, for assertions.
func (m *Mem) TaskByID(taskID string) (model.Task, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[taskID]
	if !ok {
		return model.Task{}, false
	}
	return *t, true
}

// Users ---------------------------------------------------------------------

type memUsers struct{ m *Mem }

func (u memUsers) Create(ctx context.Context, usr *model.User) (*model.User, error) {
	u.m.mu.Lock()
	defer u.m.mu.Unlock()
	if u.m.FailWith != nil {
		return nil, u.m.FailWith
	}
	out := *usr
	if out.UserID == "" {
		out.UserID = uuid.New().String()
	}
	for _, existing := range u.m.users {
		if existing.Email == out.Email {
			return nil, model.ErrConflict
		}
	}
	now := time.Now().UTC()
	out.CreationTime = now
	out.UpdateTime = now
	u.m.users[out.UserID] = &out
	cp := out
	return &cp, nil
}

func (u memUsers) GetByID(ctx context.Context, userID string) (*model.User, error) {
	u.m.mu.Lock()
	defer u.m.mu.Unlock()
	if u.m.FailWith != nil {
		return nil, u.m.FailWith
	}
	usr, ok := u.m.users[userID]
	if !ok {
		return nil, model.ErrNotFound
	}
	cp := *usr
	return &cp, nil
}

func (u memUsers) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	u.m.mu.Lock()
	defer u.m.mu.Unlock()
	if u.m.FailWith != nil {
		return nil, u.m.FailWith
	}
	for _, usr := range u.m.users {
		if usr.Email == email {
			cp := *usr
			return &cp, nil
		}
	}
	return nil, model.ErrNotFound
}

func (u memUsers) Update(ctx context.Context, usr *model.User) (*model.User, error) {
	u.m.mu.Lock()
	defer u.m.mu.Unlock()
	if u.m.FailWith != nil {
		return nil, u.m.FailWith
	}
	stored, ok := u.m.users[usr.UserID]
	if !ok {
		return nil, model.ErrNotFound
	}
	stored.Email = usr.Email
	stored.DisplayName = usr.DisplayName
	stored.PasswordHash = usr.PasswordHash
	stored.TimeZone = usr.TimeZone
	stored.UpdateTime = time.Now().UTC()
	cp := *stored
	return &cp, nil
}

func (u memUsers) UpdateSettings(ctx context.Context, userID string, s model.NotificationSettings) error {
	u.m.mu.Lock()
	defer u.m.mu.Unlock()
	if u.m.FailWith != nil {
		return u.m.FailWith
	}
	stored, ok := u.m.users[userID]
	if !ok {
		return model.ErrNotFound
	}
	stored.Settings = s
	stored.UpdateTime = time.Now().UTC()
	return nil
}

func (u memUsers) List(ctx context.Context) ([]*model.User, error) {
	u.m.mu.Lock()
	defer u.m.mu.Unlock()
	if u.m.FailWith != nil {
		return nil, u.m.FailWith
	}
	out := make([]*model.User, 0, len(u.m.users))
	for _, usr := range u.m.users {
		cp := *usr
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreationTime.Before(out[j].CreationTime) })
	return out, nil
}

func (u memUsers) Delete(ctx context.Context, userID string) error {
	u.m.mu.Lock()
	defer u.m.mu.Unlock()
	if u.m.FailWith != nil {
		return u.m.FailWith
	}
	if _, ok := u.m.users[userID]; !ok {
		return model.ErrNotFound
	}
	delete(u.m.users, userID)
	for id, t := range u.m.tasks {
		if t.UserID == userID {
			for sid, st := range u.m.steps {
				if st.TaskID == id {
					delete(u.m.steps, sid)
				}
			}
			kept := u.m.logs[:0]
			for _, l := range u.m.logs {
				if l.TaskID != id {
					kept = append(kept, l)
				}
			}
			u.m.logs = kept
			delete(u.m.tasks, id)
		}
	}
	keptInteractions := u.m.interactions[:0]
	for _, it := range u.m.interactions {
		if it.UserID != userID {
			keptInteractions = append(keptInteractions, it)
		}
	}
	u.m.interactions = keptInteractions
	return nil
}

// Tasks ---------------------------------------------------------------------

type memTasks struct{ m *Mem }

func (t memTasks) Create(ctx context.Context, tk *model.Task) (*model.Task, error) {
	t.m.mu.Lock()
	defer t.m.mu.Unlock()
	if t.m.FailWith != nil {
		return nil, t.m.FailWith
	}
	out := *tk
	if out.TaskID == "" {
		out.TaskID = uuid.New().String()
	}
	now := time.Now().UTC()
	out.CreationTime = now
	out.UpdateTime = now
	t.m.tasks[out.TaskID] = &out
	cp := out
	return &cp, nil
}

func (t memTasks) GetByID(ctx context.Context, taskID string) (*model.Task, error) {
	t.m.mu.Lock()
	defer t.m.mu.Unlock()
	if t.m.FailWith != nil {
		return nil, t.m.FailWith
	}
	tk, ok := t.m.tasks[taskID]
	if !ok {
		return nil, model.ErrNotFound
	}
	cp := *tk
	return &cp, nil
}

func (t memTasks) ListByUser(ctx context.Context, userID string, status *model.TaskStatus) ([]*model.Task, error) {
	t.m.mu.Lock()
	defer t.m.mu.Unlock()
	if t.m.FailWith != nil {
		return nil, t.m.FailWith
	}
	var out []*model.Task
	for _, tk := range t.m.tasks {
		if tk.UserID != userID {
			continue
		}
		if status != nil && tk.Status != *status {
			continue
		}
		cp := *tk
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreationTime.After(out[j].CreationTime) })
	return out, nil
}

func (t memTasks) ListActive(ctx context.Context) ([]*model.Task, error) {
	t.m.mu.Lock()
	defer t.m.mu.Unlock()
	if t.m.FailWith != nil {
		return nil, t.m.FailWith
	}
	var out []*model.Task
	for _, tk := range t.m.tasks {
		if tk.Status == model.TaskStatusActive {
			cp := *tk
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreationTime.Before(out[j].CreationTime) })
	return out, nil
}

func (t memTasks) CountByStatus(ctx context.Context, userID string, status model.TaskStatus) (int, error) {
	t.m.mu.Lock()
	defer t.m.mu.Unlock()
	if t.m.FailWith != nil {
		return 0, t.m.FailWith
	}
	n := 0
	for _, tk := range t.m.tasks {
		if tk.UserID == userID && tk.Status == status {
			n++
		}
	}
	return n, nil
}

func (t memTasks) CountCompletedSince(ctx context.Context, userID string, since time.Time) (int, error) {
	t.m.mu.Lock()
	defer t.m.mu.Unlock()
	if t.m.FailWith != nil {
		return 0, t.m.FailWith
	}
	n := 0
	for _, tk := range t.m.tasks {
		if tk.UserID == userID && tk.Status == model.TaskStatusCompleted &&
			tk.CompletedAt != nil && !tk.CompletedAt.Before(since) {
			n++
		}
	}
	return n, nil
}

func (t memTasks) Update(ctx context.Context, tk *model.Task) (*model.Task, error) {
	t.m.mu.Lock()
	defer t.m.mu.Unlock()
	if t.m.FailWith != nil {
		return nil, t.m.FailWith
	}
	stored, ok := t.m.tasks[tk.TaskID]
	if !ok {
		return nil, model.ErrNotFound
	}
	stored.Title = tk.Title
	stored.Description = tk.Description
	stored.Status = tk.Status
	stored.Priority = tk.Priority
	stored.Deadline = tk.Deadline
	stored.CompletedAt = tk.CompletedAt
	stored.UpdateTime = time.Now().UTC()
	cp := *stored
	return &cp, nil
}

func (t memTasks) MarkCompleted(ctx context.Context, taskID string, at time.Time) error {
	t.m.mu.Lock()
	defer t.m.mu.Unlock()
	if t.m.FailWith != nil {
		return t.m.FailWith
	}
	stored, ok := t.m.tasks[taskID]
	if !ok {
		return nil
	}
	if stored.Status == model.TaskStatusCompleted {
		return nil
	}
	stored.Status = model.TaskStatusCompleted
	atCopy := at
	stored.CompletedAt = &atCopy
	stored.UpdateTime = at
	return nil
}

func (t memTasks) Delete(ctx context.Context, taskID string) error {
	t.m.mu.Lock()
	defer t.m.mu.Unlock()
	if t.m.FailWith != nil {
		return t.m.FailWith
	}
	if _, ok := t.m.tasks[taskID]; !ok {
		return model.ErrNotFound
	}
	delete(t.m.tasks, taskID)
	return nil
}

// Steps ---------------------------------------------------------------------

type memSteps struct{ m *Mem }

func (s memSteps) Create(ctx context.Context, st *model.Step) (*model.Step, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if s.m.FailWith != nil {
		return nil, s.m.FailWith
	}
	out := *st
	if out.StepID == "" {
		out.StepID = uuid.New().String()
	}
	now := time.Now().UTC()
	out.CreationTime = now
	out.UpdateTime = now
	s.m.steps[out.StepID] = &out
	cp := out
	return &cp, nil
}

func (s memSteps) GetByID(ctx context.Context, stepID string) (*model.Step, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if s.m.FailWith != nil {
		return nil, s.m.FailWith
	}
	st, ok := s.m.steps[stepID]
	if !ok {
		return nil, model.ErrNotFound
	}
	cp := *st
	return &cp, nil
}

func (s memSteps) ListByTask(ctx context.Context, taskID string) ([]*model.Step, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if s.m.FailWith != nil {
		return nil, s.m.FailWith
	}
	var out []*model.Step
	for _, st := range s.m.steps {
		if st.TaskID == taskID {
			cp := *st
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Order < out[j].Order })
	return out, nil
}

func (s memSteps) MaxOrder(ctx context.Context, taskID string) (int, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if s.m.FailWith != nil {
		return 0, s.m.FailWith
	}
	max := -1
	for _, st := range s.m.steps {
		if st.TaskID == taskID && st.Order > max {
			max = st.Order
		}
	}
	return max, nil
}

func (s memSteps) Update(ctx context.Context, st *model.Step) (*model.Step, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if s.m.FailWith != nil {
		return nil, s.m.FailWith
	}
	stored, ok := s.m.steps[st.StepID]
	if !ok {
		return nil, model.ErrNotFound
	}
	stored.Title = st.Title
	stored.Description = st.Description
	stored.Order = st.Order
	stored.UpdateTime = time.Now().UTC()
	cp := *stored
	return &cp, nil
}

func (s memSteps) SetCompleted(ctx context.Context, stepID string, completed bool, at *time.Time) (*model.Step, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if s.m.FailWith != nil {
		return nil, s.m.FailWith
	}
	stored, ok := s.m.steps[stepID]
	if !ok {
		return nil, model.ErrNotFound
	}
	stored.Completed = completed
	stored.CompletedAt = at
	stored.UpdateTime = time.Now().UTC()
	cp := *stored
	return &cp, nil
}

func (s memSteps) Delete(ctx context.Context, stepID string) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if s.m.FailWith != nil {
		return s.m.FailWith
	}
	if _, ok := s.m.steps[stepID]; !ok {
		return model.ErrNotFound
	}
	delete(s.m.steps, stepID)
	return nil
}

// ActivityLogs --------------------------------------------------------------

type memLogs struct{ m *Mem }

func (a memLogs) Append(ctx context.Context, l *model.ActivityLog) (*model.ActivityLog, error) {
	a.m.mu.Lock()
	defer a.m.mu.Unlock()
	if a.m.FailWith != nil {
		return nil, a.m.FailWith
	}
	out := *l
	if out.LogID == "" {
		out.LogID = uuid.New().String()
	}
	if out.Timestamp.IsZero() {
		out.Timestamp = time.Now().UTC()
	}
	a.m.logs = append(a.m.logs, &out)
	cp := out
	return &cp, nil
}

func (a memLogs) byTask(taskID string) []*model.ActivityLog {
	var out []*model.ActivityLog
	for _, l := range a.m.logs {
		if l.TaskID == taskID {
			cp := *l
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	return out
}

func (a memLogs) ListByTask(ctx context.Context, taskID string, limit int) ([]*model.ActivityLog, error) {
	a.m.mu.Lock()
	defer a.m.mu.Unlock()
	if a.m.FailWith != nil {
		return nil, a.m.FailWith
	}
	out := a.byTask(taskID)
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (a memLogs) LatestByTask(ctx context.Context, taskID string) (*model.ActivityLog, error) {
	a.m.mu.Lock()
	defer a.m.mu.Unlock()
	if a.m.FailWith != nil {
		return nil, a.m.FailWith
	}
	out := a.byTask(taskID)
	if len(out) == 0 {
		return nil, model.ErrNotFound
	}
	return out[0], nil
}

func (a memLogs) ListCompletionsByUser(ctx context.Context, userID string, limit int) ([]*model.ActivityLog, error) {
	a.m.mu.Lock()
	defer a.m.mu.Unlock()
	if a.m.FailWith != nil {
		return nil, a.m.FailWith
	}
	var out []*model.ActivityLog
	for _, l := range a.m.logs {
		if l.Action != model.ActionCompleted {
			continue
		}
		t, ok := a.m.tasks[l.TaskID]
		if !ok || t.UserID != userID {
			continue
		}
		cp := *l
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Interactions --------------------------------------------------------------

type memInteractions struct{ m *Mem }

func (i memInteractions) Create(ctx context.Context, it *model.AIInteraction) (*model.AIInteraction, error) {
	i.m.mu.Lock()
	defer i.m.mu.Unlock()
	if i.m.FailWith != nil {
		return nil, i.m.FailWith
	}
	out := *it
	if out.InteractionID == "" {
		out.InteractionID = uuid.New().String()
	}
	if out.Timestamp.IsZero() {
		out.Timestamp = time.Now().UTC()
	}
	i.m.interactions = append(i.m.interactions, &out)
	cp := out
	return &cp, nil
}

func (i memInteractions) ListByUser(ctx context.Context, userID string, limit int) ([]*model.AIInteraction, error) {
	i.m.mu.Lock()
	defer i.m.mu.Unlock()
	if i.m.FailWith != nil {
		return nil, i.m.FailWith
	}
	var out []*model.AIInteraction
	for _, it := range i.m.interactions {
		if it.UserID == userID {
			cp := *it
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(a, b int) bool { return out[a].Timestamp.After(out[b].Timestamp) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
