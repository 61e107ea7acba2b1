package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/AnTengye/cvintake/backend/config"
	"github.com/AnTengye/cvintake/backend/model"
	"github.com/AnTengye/cvintake/backend/pkg/logger"
)

// ErrNotFound is returned when an application or scheduled e-mail does not exist
var ErrNotFound = errors.New("not found")

// ApplicationStore persists submitted applications
type ApplicationStore interface {
	Save(ctx context.Context, app *model.Application) error
	Get(ctx context.Context, id string) (*model.Application, error)
	// List returns applications newest first
	List(ctx context.Context) ([]*model.Application, error)
	UpdateStatus(ctx context.Context, id, status string) error
	Delete(ctx context.Context, id string) error
	Count(ctx context.Context) (int, error)
}

// EmailQueue holds follow-up e-mails until they are due
type EmailQueue interface {
	Schedule(ctx context.Context, email *model.ScheduledEmail) error
	// Due returns unsent e-mails scheduled at or before now, oldest first
	Due(ctx context.Context, now time.Time, limit int) ([]*model.ScheduledEmail, error)
	MarkSent(ctx context.Context, id string, at time.Time) error
	MarkFailed(ctx context.Context, id string, errMsg string) error
}

// Store is the persistence behind the server: applications plus the e-mail queue
type Store interface {
	ApplicationStore
	EmailQueue
	Close() error
}

// OpenStore returns the store selected by cfg.Driver
func OpenStore(cfg *config.StoreConfig) (Store, error) {
	switch cfg.Driver {
	case "", "memory":
		return NewMemoryStore(cfg.MaxApplications), nil
	case "sqlite":
		store, err := NewSQLiteStore(cfg.Path)
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}

// MemoryStore is an in-memory ApplicationStore and EmailQueue.
// Contents are lost on restart; use SQLiteStore for durability.
type MemoryStore struct {
	mu              sync.RWMutex
	applications    map[string]*model.Application
	emails          map[string]*model.ScheduledEmail
	maxApplications int // 0 = unlimited
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore(maxApplications int) *MemoryStore {
	if maxApplications < 0 {
		maxApplications = 0
	}
	return &MemoryStore{
		applications:    make(map[string]*model.Application),
		emails:          make(map[string]*model.ScheduledEmail),
		maxApplications: maxApplications,
	}
}

func (s *MemoryStore) Save(ctx context.Context, app *model.Application) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	if app.SubmittedAt.IsZero() {
		app.SubmittedAt = now
	}
	app.UpdatedAt = now

	stored := *app
	s.applications[app.ID] = &stored

	s.cleanupIfNeeded(ctx)
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (*model.Application, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	app, ok := s.applications[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := *app
	return &out, nil
}

func (s *MemoryStore) List(_ context.Context) ([]*model.Application, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*model.Application, 0, len(s.applications))
	for _, app := range s.applications {
		out := *app
		result = append(result, &out)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].SubmittedAt.After(result[j].SubmittedAt)
	})
	return result, nil
}

func (s *MemoryStore) UpdateStatus(_ context.Context, id, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	app, ok := s.applications[id]
	if !ok {
		return ErrNotFound
	}
	app.Status = status
	app.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.applications, id)
	return nil
}

// Close is a no-op; it lets MemoryStore stand in for SQLiteStore.
func (s *MemoryStore) Close() error { return nil }

func (s *MemoryStore) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.applications), nil
}

// cleanupIfNeeded removes the oldest applications once the store exceeds
// maxApplications. Must be called with lock held.
func (s *MemoryStore) cleanupIfNeeded(ctx context.Context) {
	if s.maxApplications <= 0 || len(s.applications) <= s.maxApplications {
		return
	}

	apps := make([]*model.Application, 0, len(s.applications))
	for _, app := range s.applications {
		apps = append(apps, app)
	}
	sort.Slice(apps, func(i, j int) bool {
		return apps[i].SubmittedAt.Before(apps[j].SubmittedAt)
	})

	removeCount := len(apps) - s.maxApplications
	for i := 0; i < removeCount; i++ {
		logger.Info(ctx, "evicting old application",
			"evicted_id", apps[i].ID,
			"submitted_at", apps[i].SubmittedAt,
		)
		delete(s.applications, apps[i].ID)
	}
}

func (s *MemoryStore) Schedule(_ context.Context, email *model.ScheduledEmail) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if email.CreatedAt.IsZero() {
		email.CreatedAt = time.Now().UTC()
	}
	stored := *email
	s.emails[email.ID] = &stored
	return nil
}

func (s *MemoryStore) Due(_ context.Context, now time.Time, limit int) ([]*model.ScheduledEmail, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var due []*model.ScheduledEmail
	for _, e := range s.emails {
		if e.Sent || e.ScheduledFor.After(now) {
			continue
		}
		out := *e
		due = append(due, &out)
	}
	sort.Slice(due, func(i, j int) bool {
		return due[i].ScheduledFor.Before(due[j].ScheduledFor)
	})
	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}
	return due, nil
}

func (s *MemoryStore) MarkSent(_ context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.emails[id]
	if !ok {
		return ErrNotFound
	}
	e.Sent = true
	e.SentAt = &at
	e.Attempts++
	e.LastError = ""
	return nil
}

func (s *MemoryStore) MarkFailed(_ context.Context, id string, errMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.emails[id]
	if !ok {
		return ErrNotFound
	}
	e.Attempts++
	e.LastError = errMsg
	return nil
}
