package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/ytakahashi/taskflow/internal/logger"
	"github.com/ytakahashi/taskflow/internal/models"
	"github.com/ytakahashi/taskflow/internal/services"
)

// KeyPrefix is prepended to the account email to form the collection key.
const KeyPrefix = "taskflow_tasks_"

// ErrNothingToClear is returned by ClearCompleted when no task is completed.
var ErrNothingToClear = &models.Error{Kind: models.ErrValidation, Message: "No completed tasks to clear."}

var errNoAccount = &models.Error{Kind: models.ErrAuthentication, Message: "Please sign in to manage tasks."}

// Scheduler is told about every newly created task that has a due time.
// Implementations must not block.
type Scheduler interface {
	Schedule(account models.Account, task models.Task)
}

// TaskInput carries the user-editable fields of a task.
type TaskInput struct {
	Text      string
	Priority  models.Priority
	StartDate *time.Time
	EndDate   *time.Time
}

func (in TaskInput) text() string              { return strings.TrimSpace(in.Text) }
func (in TaskInput) priority() models.Priority { return models.ParsePriority(string(in.Priority)) }

func (in TaskInput) validate() error {
	if in.text() == "" {
		return models.ValidationError("Task cannot be empty.")
	}
	return nil
}

// Store owns the ordered task collection of the active account.
// It is not safe for concurrent use; one session drives it.
type Store struct {
	kv        services.KV
	account   *models.Account
	tasks     []models.Task
	scheduler Scheduler
	now       func() time.Time
	newID     func() string
}

type Option func(*Store)

func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

func WithIDGenerator(gen func() string) Option {
	return func(s *Store) { s.newID = gen }
}

func WithScheduler(sch Scheduler) Option {
	return func(s *Store) { s.scheduler = sch }
}

func NewStore(kv services.KV, opts ...Option) *Store {
	s := &Store{
		kv:  kv,
		now: time.Now,
		newID: func() string {
			// v7 ids sort by creation time
			if id, err := uuid.NewV7(); err == nil {
				return id.String()
			}
			return uuid.NewString()
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CollectionKey returns the persistence key for an account's tasks.
func CollectionKey(email string) string {
	return KeyPrefix + models.NormalizeEmail(email)
}

// LoadForAccount replaces the in-memory collection with the one persisted
// for account. A missing collection loads as empty.
func (s *Store) LoadForAccount(ctx context.Context, account models.Account) ([]models.Task, error) {
	raw, err := s.kv.Get(ctx, CollectionKey(account.Email))
	var list []models.Task
	switch {
	case errors.Is(err, services.ErrKeyNotFound):
		list = []models.Task{}
	case err != nil:
		return nil, models.PersistenceError("Could not load your tasks.", err)
	default:
		if err := json.Unmarshal([]byte(raw), &list); err != nil {
			return nil, models.PersistenceError("Could not load your tasks.", err)
		}
		if list == nil {
			list = []models.Task{}
		}
	}

	acc := account
	s.account = &acc
	s.tasks = normalize(list)
	logger.Debug("task collection loaded", "email", account.Email, "count", len(s.tasks))
	return s.Tasks(), nil
}

// Account returns the active account, if any.
func (s *Store) Account() (models.Account, bool) {
	if s.account == nil {
		return models.Account{}, false
	}
	return *s.account, true
}

// Tasks returns a copy of the collection, newest first.
func (s *Store) Tasks() []models.Task {
	return clone(s.tasks)
}

func (s *Store) Get(id string) (models.Task, bool) {
	if i := indexOf(s.tasks, id); i >= 0 {
		return s.tasks[i], true
	}
	return models.Task{}, false
}

// Create prepends a new task and persists the collection. When the task has
// an end date the scheduler is notified after the write succeeded.
func (s *Store) Create(ctx context.Context, in TaskInput) (models.Task, error) {
	if s.account == nil {
		return models.Task{}, errNoAccount
	}
	if err := in.validate(); err != nil {
		return models.Task{}, err
	}

	t := models.Task{
		ID:        s.newID(),
		Text:      in.text(),
		Priority:  in.priority(),
		CreatedAt: s.now(),
		StartDate: in.StartDate,
		EndDate:   in.EndDate,
	}
	if indexOf(s.tasks, t.ID) >= 0 {
		return models.Task{}, models.ValidationError("Task id already in use.")
	}

	if err := s.commit(ctx, prepend(s.tasks, t)); err != nil {
		return models.Task{}, err
	}

	if t.EndDate != nil && s.scheduler != nil {
		s.scheduler.Schedule(*s.account, t)
	}
	return t, nil
}

// Toggle flips the completion state of a task.
func (s *Store) Toggle(ctx context.Context, id string) (models.Task, error) {
	if s.account == nil {
		return models.Task{}, errNoAccount
	}
	next, t, ok := toggled(s.tasks, id, s.now())
	if !ok {
		return models.Task{}, notFound(id)
	}
	if err := s.commit(ctx, next); err != nil {
		return models.Task{}, err
	}
	return t, nil
}

// Edit replaces text, priority and the scheduling window of a task.
// Completion and reminder state are left untouched.
func (s *Store) Edit(ctx context.Context, id string, in TaskInput) (models.Task, error) {
	if s.account == nil {
		return models.Task{}, errNoAccount
	}
	if err := in.validate(); err != nil {
		return models.Task{}, err
	}
	next, t, ok := edited(s.tasks, id, in)
	if !ok {
		return models.Task{}, notFound(id)
	}
	if err := s.commit(ctx, next); err != nil {
		return models.Task{}, err
	}
	return t, nil
}

// Delete removes a task. A missing id is reported as a NotFoundError.
func (s *Store) Delete(ctx context.Context, id string) error {
	if s.account == nil {
		return errNoAccount
	}
	next, ok := without(s.tasks, id)
	if !ok {
		return notFound(id)
	}
	return s.commit(ctx, next)
}

// ClearCompleted removes every completed task and returns how many were removed.
// Nothing is written when there is nothing to clear.
func (s *Store) ClearCompleted(ctx context.Context) (int, error) {
	if s.account == nil {
		return 0, errNoAccount
	}
	next, removed := withoutCompleted(s.tasks)
	if removed == 0 {
		return 0, ErrNothingToClear
	}
	if err := s.commit(ctx, next); err != nil {
		return 0, err
	}
	return removed, nil
}

// ClearAll empties the collection. Confirmation is the caller's job.
func (s *Store) ClearAll(ctx context.Context) error {
	if s.account == nil {
		return errNoAccount
	}
	return s.commit(ctx, []models.Task{})
}

// MarkReminderSent records that the due-time reminder for id was delivered.
func (s *Store) MarkReminderSent(ctx context.Context, id string) (models.Task, error) {
	if s.account == nil {
		return models.Task{}, errNoAccount
	}
	next, t, ok := markedSent(s.tasks, id)
	if !ok {
		return models.Task{}, notFound(id)
	}
	if err := s.commit(ctx, next); err != nil {
		return models.Task{}, err
	}
	return t, nil
}

// Unload discards the in-memory collection, e.g. on sign-out.
func (s *Store) Unload() {
	s.account = nil
	s.tasks = nil
}

// commit writes the whole collection and only then adopts it, so a failed
// write leaves the previous state in place.
func (s *Store) commit(ctx context.Context, next []models.Task) error {
	data, err := json.Marshal(next)
	if err != nil {
		return models.PersistenceError("Could not save your tasks.", err)
	}
	if err := s.kv.Set(ctx, CollectionKey(s.account.Email), string(data)); err != nil {
		logger.Error("failed to persist tasks", "email", s.account.Email, "error", err)
		return models.PersistenceError("Could not save your tasks.", err)
	}
	s.tasks = next
	return nil
}

func notFound(id string) error {
	return &models.Error{Kind: models.ErrNotFound, Message: "Task not found.", Err: errors.New("no task with id " + id)}
}
