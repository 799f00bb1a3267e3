package accounts

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/ytakahashi/taskflow/internal/logger"
	"github.com/ytakahashi/taskflow/internal/models"
	"github.com/ytakahashi/taskflow/internal/reminder"
	"github.com/ytakahashi/taskflow/internal/services"
	"github.com/ytakahashi/taskflow/internal/tasks"
)

// SessionKey remembers the signed-in account between runs.
const SessionKey = "taskflow_session"

const (
	minPasswordLen = 6
	// bcrypt ignores everything past 72 bytes.
	maxPasswordLen = 72
)

var (
	errInvalidCredentials = &models.Error{Kind: models.ErrAuthentication, Message: "Invalid email or password."}
	errNoSession          = &models.Error{Kind: models.ErrAuthentication, Message: "Please sign in first."}
)

type rememberedSession struct {
	Email string `json:"email"`
}

// Manager signs accounts in and out and builds their sessions.
type Manager struct {
	kv        services.KV
	dir       *Directory
	notifier  reminder.Notifier
	reminders reminder.Config
	taskOpts  []tasks.Option
}

type Option func(*Manager)

// WithTaskOptions passes options to every task store the manager builds.
func WithTaskOptions(opts ...tasks.Option) Option {
	return func(m *Manager) { m.taskOpts = append(m.taskOpts, opts...) }
}

func WithReminderConfig(cfg reminder.Config) Option {
	return func(m *Manager) { m.reminders = cfg }
}

func NewManager(kv services.KV, dir *Directory, notifier reminder.Notifier, opts ...Option) *Manager {
	m := &Manager{
		kv:        kv,
		dir:       dir,
		notifier:  notifier,
		reminders: reminder.DefaultConfig(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Signup registers an account and signs it in. New accounts are always remembered.
func (m *Manager) Signup(ctx context.Context, name, email, password string) (*Session, error) {
	name = strings.TrimSpace(name)
	email = models.NormalizeEmail(email)
	if name == "" || email == "" || strings.TrimSpace(password) == "" {
		return nil, models.ValidationError("Please fill in all fields.")
	}
	if len(password) < minPasswordLen {
		return nil, models.ValidationError("Password must be at least 6 characters.")
	}
	if len(password) > maxPasswordLen {
		return nil, models.ValidationError("Password must be at most 72 characters.")
	}

	acc, err := m.dir.Create(ctx, name, email, password)
	if err != nil {
		return nil, err
	}

	s, err := m.activate(ctx, acc)
	if err == nil {
		err = m.remember(ctx, acc.Email)
		if err != nil {
			m.closeQuietly(ctx, s)
		}
	}
	if err != nil {
		// a failed signup leaves no account behind, so it can be retried
		if rbErr := m.dir.Delete(ctx, acc.Email); rbErr != nil {
			logger.Error("failed to roll back account", "email", acc.Email, "error", rbErr)
		}
		return nil, err
	}
	logger.Info("account created", "email", acc.Email)
	return s, nil
}

// Login verifies credentials and signs the account in. Without remember any
// previously remembered session is forgotten.
func (m *Manager) Login(ctx context.Context, email, password string, remember bool) (*Session, error) {
	if strings.TrimSpace(email) == "" || password == "" {
		return nil, models.ValidationError("Please fill in all fields.")
	}

	acc, ok, err := m.dir.FindByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if !ok || !m.dir.VerifyPassword(acc, password) {
		return nil, errInvalidCredentials
	}

	s, err := m.activate(ctx, acc)
	if err != nil {
		return nil, err
	}
	if remember {
		err = m.remember(ctx, acc.Email)
	} else {
		err = m.forget(ctx)
	}
	if err != nil {
		m.closeQuietly(ctx, s)
		return nil, err
	}
	return s, nil
}

// Restore reopens the remembered session. A remembered email with no
// matching account is discarded.
func (m *Manager) Restore(ctx context.Context) (*Session, error) {
	raw, err := m.kv.Get(ctx, SessionKey)
	if errors.Is(err, services.ErrKeyNotFound) {
		return nil, errNoSession
	}
	if err != nil {
		return nil, models.PersistenceError("Could not load your session.", err)
	}

	var rs rememberedSession
	if err := json.Unmarshal([]byte(raw), &rs); err != nil || rs.Email == "" {
		logger.Warn("discarding unreadable session")
		_ = m.forget(ctx)
		return nil, errNoSession
	}

	acc, ok, err := m.dir.FindByEmail(ctx, rs.Email)
	if err != nil {
		return nil, err
	}
	if !ok {
		logger.Warn("discarding session for unknown account", "email", rs.Email)
		_ = m.forget(ctx)
		return nil, errNoSession
	}
	return m.activate(ctx, acc)
}

// Logout forgets the remembered session and closes s.
func (m *Manager) Logout(ctx context.Context, s *Session) error {
	if err := m.forget(ctx); err != nil {
		return err
	}
	if s == nil {
		return nil
	}
	logger.Info("signed out", "email", s.Account.Email)
	return s.Close(ctx)
}

// activate builds the session and loads the account's collection exactly once.
func (m *Manager) activate(ctx context.Context, acc models.Account) (*Session, error) {
	prefs := reminder.NewPreferences(m.kv)
	coord := reminder.NewCoordinator(m.reminders, m.kv, m.notifier, prefs)

	opts := append([]tasks.Option{tasks.WithScheduler(coord)}, m.taskOpts...)
	store := tasks.NewStore(m.kv, opts...)
	coord.BindTasks(store)

	if _, err := store.LoadForAccount(ctx, acc); err != nil {
		return nil, err
	}
	// The worker outlives the sign-in request; Close stops it.
	if err := coord.Start(context.WithoutCancel(ctx)); err != nil {
		return nil, err
	}

	return &Session{
		Account:   acc,
		Tasks:     store,
		Reminders: coord,
		Prefs:     prefs,
	}, nil
}

func (m *Manager) closeQuietly(ctx context.Context, s *Session) {
	if err := s.Close(ctx); err != nil {
		logger.Warn("failed to close session", "email", s.Account.Email, "error", err)
	}
}

func (m *Manager) remember(ctx context.Context, email string) error {
	data, err := json.Marshal(rememberedSession{Email: email})
	if err != nil {
		return models.PersistenceError("Could not save your session.", err)
	}
	if err := m.kv.Set(ctx, SessionKey, string(data)); err != nil {
		return models.PersistenceError("Could not save your session.", err)
	}
	return nil
}

func (m *Manager) forget(ctx context.Context) error {
	if err := m.kv.Delete(ctx, SessionKey); err != nil {
		return models.PersistenceError("Could not clear your session.", err)
	}
	return nil
}
