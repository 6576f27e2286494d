package event

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"pointtrack/internal/model"
	"pointtrack/pkg/logger"
)

var (
	// ErrValidation marks requests rejected before touching storage.
	ErrValidation = errors.New("event: validation failed")

	// ErrNotFound is returned when the target event id is unknown.
	ErrNotFound = errors.New("event: not found")
)

// Store is the entity-store contract for events.
type Store interface {
	FindEvent(ctx context.Context, id int64) (*model.Event, error)
	FindActiveEvent(ctx context.Context) (*model.Event, error)
	ListEvents(ctx context.Context) ([]model.Event, error)
	CreateEvent(ctx context.Context, f model.EventFields, active bool) (model.Event, error)
	UpdateEvent(ctx context.Context, id int64, f model.EventFields, active bool) (*model.Event, error)
	DeactivateAll(ctx context.Context) error
	DeactivateExcept(ctx context.Context, id int64) error
	Activate(ctx context.Context, id int64) error
	DeleteEvent(ctx context.Context, id int64) error
}

// Service enforces the single-active-event invariant: every path that
// turns an event active first sweeps the others inactive, and the two
// steps run under one lock so interleaved calls cannot leave two
// events active.
type Service struct {
	store Store
	log   *zap.Logger
	mu    sync.Mutex
}

// NewService creates the activation manager over a store.
func NewService(store Store, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{store: store, log: log}
}

// Create inserts an event; when active is requested the sweep runs first.
func (s *Service) Create(ctx context.Context, f model.EventFields, active bool) (model.Event, error) {
	if f.Name == "" {
		return model.Event{}, fmt.Errorf("%w: name is required", ErrValidation)
	}
	if f.Date == "" {
		return model.Event{}, fmt.Errorf("%w: date is required", ErrValidation)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if active {
		if err := s.store.DeactivateAll(ctx); err != nil {
			return model.Event{}, fmt.Errorf("deactivate all: %w", err)
		}
	}
	created, err := s.store.CreateEvent(ctx, f, active)
	if err != nil {
		return model.Event{}, fmt.Errorf("create event: %w", err)
	}
	s.log.Info("event created",
		zap.Int64(logger.FieldEventID, created.ID),
		zap.String("name", created.Name),
		zap.Bool("is_active", created.IsActive))
	return created, nil
}

// Update rewrites an event's fields. The sweep excludes the target so
// its own prior active state is irrelevant.
func (s *Service) Update(ctx context.Context, id int64, f model.EventFields, active bool) (model.Event, error) {
	if f.Name == "" {
		return model.Event{}, fmt.Errorf("%w: name is required", ErrValidation)
	}
	if f.Date == "" {
		return model.Event{}, fmt.Errorf("%w: date is required", ErrValidation)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if active {
		if err := s.store.DeactivateExcept(ctx, id); err != nil {
			return model.Event{}, fmt.Errorf("deactivate others: %w", err)
		}
	}
	updated, err := s.store.UpdateEvent(ctx, id, f, active)
	if err != nil {
		return model.Event{}, fmt.Errorf("update event: %w", err)
	}
	if updated == nil {
		return model.Event{}, fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	return *updated, nil
}

// Activate makes id the single active event.
func (s *Service) Activate(ctx context.Context, id int64) (model.Event, error) {
	existing, err := s.store.FindEvent(ctx, id)
	if err != nil {
		return model.Event{}, fmt.Errorf("find event: %w", err)
	}
	if existing == nil {
		return model.Event{}, fmt.Errorf("%w: %d", ErrNotFound, id)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.store.DeactivateAll(ctx); err != nil {
		return model.Event{}, fmt.Errorf("deactivate all: %w", err)
	}
	if err := s.store.Activate(ctx, id); err != nil {
		return model.Event{}, fmt.Errorf("activate: %w", err)
	}
	activated, err := s.store.FindEvent(ctx, id)
	if err != nil {
		return model.Event{}, fmt.Errorf("find event: %w", err)
	}
	if activated == nil {
		return model.Event{}, fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	s.log.Info("event activated", zap.Int64(logger.FieldEventID, id))
	return *activated, nil
}

// DeactivateAll turns every event off; attendance processing refuses
// check-ins until some event is reactivated.
func (s *Service) DeactivateAll(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.store.DeactivateAll(ctx); err != nil {
		return fmt.Errorf("deactivate all: %w", err)
	}
	s.log.Info("all events deactivated")
	return nil
}

// Delete removes an event and purges its attendance records.
func (s *Service) Delete(ctx context.Context, id int64) error {
	existing, err := s.store.FindEvent(ctx, id)
	if err != nil {
		return fmt.Errorf("find event: %w", err)
	}
	if existing == nil {
		return fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	if err := s.store.DeleteEvent(ctx, id); err != nil {
		return fmt.Errorf("delete event: %w", err)
	}
	s.log.Info("event deleted", zap.Int64(logger.FieldEventID, id))
	return nil
}

// Get returns a single event.
func (s *Service) Get(ctx context.Context, id int64) (model.Event, error) {
	evt, err := s.store.FindEvent(ctx, id)
	if err != nil {
		return model.Event{}, fmt.Errorf("find event: %w", err)
	}
	if evt == nil {
		return model.Event{}, fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	return *evt, nil
}

// List returns all events, newest date first.
func (s *Service) List(ctx context.Context) ([]model.Event, error) {
	events, err := s.store.ListEvents(ctx)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	return events, nil
}

// Active returns the current active event, or ErrNotFound when no
// event is active. If outside writers ever left more than one active,
// the store picks one rather than failing.
func (s *Service) Active(ctx context.Context) (model.Event, error) {
	evt, err := s.store.FindActiveEvent(ctx)
	if err != nil {
		return model.Event{}, fmt.Errorf("find active event: %w", err)
	}
	if evt == nil {
		return model.Event{}, fmt.Errorf("%w: no active event", ErrNotFound)
	}
	return *evt, nil
}
