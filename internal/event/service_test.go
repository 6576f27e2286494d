package event

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pointtrack/internal/model"
)

type fakeStore struct {
	mu     sync.Mutex
	events map[int64]*model.Event
	nextID int64
}

func newFakeStore() *fakeStore {
	return &fakeStore{events: make(map[int64]*model.Event)}
}

func (f *fakeStore) FindEvent(_ context.Context, id int64) (*model.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if evt, ok := f.events[id]; ok {
		copied := *evt
		return &copied, nil
	}
	return nil, nil
}

func (f *fakeStore) FindActiveEvent(_ context.Context) (*model.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var active *model.Event
	for _, evt := range f.events {
		if evt.IsActive && (active == nil || evt.ID < active.ID) {
			active = evt
		}
	}
	if active == nil {
		return nil, nil
	}
	copied := *active
	return &copied, nil
}

func (f *fakeStore) ListEvents(_ context.Context) ([]model.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Event
	for _, evt := range f.events {
		out = append(out, *evt)
	}
	return out, nil
}

func (f *fakeStore) CreateEvent(_ context.Context, fields model.EventFields, active bool) (model.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	evt := &model.Event{
		ID: f.nextID, Name: fields.Name, Description: fields.Description,
		Date: fields.Date, IsActive: active, CreatedAt: time.Now(),
	}
	f.events[evt.ID] = evt
	return *evt, nil
}

func (f *fakeStore) UpdateEvent(_ context.Context, id int64, fields model.EventFields, active bool) (*model.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	evt, ok := f.events[id]
	if !ok {
		return nil, nil
	}
	evt.Name = fields.Name
	evt.Description = fields.Description
	evt.Date = fields.Date
	evt.IsActive = active
	copied := *evt
	return &copied, nil
}

func (f *fakeStore) DeactivateAll(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, evt := range f.events {
		evt.IsActive = false
	}
	return nil
}

func (f *fakeStore) DeactivateExcept(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, evt := range f.events {
		if evt.ID != id {
			evt.IsActive = false
		}
	}
	return nil
}

func (f *fakeStore) Activate(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if evt, ok := f.events[id]; ok {
		evt.IsActive = true
	}
	return nil
}

func (f *fakeStore) DeleteEvent(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.events, id)
	return nil
}

func (f *fakeStore) activeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, evt := range f.events {
		if evt.IsActive {
			n++
		}
	}
	return n
}

func fields(name, date string) model.EventFields {
	return model.EventFields{Name: name, Date: date}
}

func TestCreateValidation(t *testing.T) {
	svc := NewService(newFakeStore(), nil)
	ctx := context.Background()

	_, err := svc.Create(ctx, fields("", "2025-01-21"), false)
	assert.ErrorIs(t, err, ErrValidation)

	_, err = svc.Create(ctx, fields("session", ""), false)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestCreateActiveDeactivatesOthers(t *testing.T) {
	fs := newFakeStore()
	svc := NewService(fs, nil)
	ctx := context.Background()

	first, err := svc.Create(ctx, fields("first", "2025-01-21"), true)
	require.NoError(t, err)
	assert.True(t, first.IsActive)

	second, err := svc.Create(ctx, fields("second", "2025-01-22"), true)
	require.NoError(t, err)
	assert.True(t, second.IsActive)
	assert.Equal(t, 1, fs.activeCount())

	active, err := svc.Active(ctx)
	require.NoError(t, err)
	assert.Equal(t, second.ID, active.ID)
}

func TestUpdatePreservesInvariant(t *testing.T) {
	fs := newFakeStore()
	svc := NewService(fs, nil)
	ctx := context.Background()

	a, err := svc.Create(ctx, fields("a", "2025-01-21"), true)
	require.NoError(t, err)
	b, err := svc.Create(ctx, fields("b", "2025-01-22"), false)
	require.NoError(t, err)

	// Reactivating the already-active event must keep it active.
	updated, err := svc.Update(ctx, a.ID, fields("a2", "2025-01-21"), true)
	require.NoError(t, err)
	assert.True(t, updated.IsActive)
	assert.Equal(t, 1, fs.activeCount())

	// Moving the active flag deactivates the previous holder.
	updated, err = svc.Update(ctx, b.ID, fields("b2", "2025-01-22"), true)
	require.NoError(t, err)
	assert.True(t, updated.IsActive)
	assert.Equal(t, 1, fs.activeCount())

	_, err = svc.Update(ctx, 9999, fields("x", "2025-01-23"), false)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestActivate(t *testing.T) {
	fs := newFakeStore()
	svc := NewService(fs, nil)
	ctx := context.Background()

	a, err := svc.Create(ctx, fields("a", "2025-01-21"), true)
	require.NoError(t, err)
	b, err := svc.Create(ctx, fields("b", "2025-01-22"), false)
	require.NoError(t, err)

	activated, err := svc.Activate(ctx, b.ID)
	require.NoError(t, err)
	assert.True(t, activated.IsActive)
	assert.Equal(t, 1, fs.activeCount())

	got, err := svc.Get(ctx, a.ID)
	require.NoError(t, err)
	assert.False(t, got.IsActive)

	_, err = svc.Activate(ctx, 9999)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeactivateAll(t *testing.T) {
	fs := newFakeStore()
	svc := NewService(fs, nil)
	ctx := context.Background()

	_, err := svc.Create(ctx, fields("a", "2025-01-21"), true)
	require.NoError(t, err)

	require.NoError(t, svc.DeactivateAll(ctx))
	assert.Equal(t, 0, fs.activeCount())

	_, err = svc.Active(ctx)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDelete(t *testing.T) {
	fs := newFakeStore()
	svc := NewService(fs, nil)
	ctx := context.Background()

	a, err := svc.Create(ctx, fields("a", "2025-01-21"), false)
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, a.ID))
	assert.ErrorIs(t, svc.Delete(ctx, a.ID), ErrNotFound)

	_, err = svc.Get(ctx, a.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestInvariantHoldsAcrossCallOrders(t *testing.T) {
	fs := newFakeStore()
	svc := NewService(fs, nil)
	ctx := context.Background()

	e1, err := svc.Create(ctx, fields("e1", "2025-01-21"), true)
	require.NoError(t, err)
	e2, err := svc.Create(ctx, fields("e2", "2025-01-22"), true)
	require.NoError(t, err)
	_, err = svc.Update(ctx, e1.ID, fields("e1", "2025-01-21"), true)
	require.NoError(t, err)
	_, err = svc.Activate(ctx, e2.ID)
	require.NoError(t, err)
	require.NoError(t, svc.DeactivateAll(ctx))
	_, err = svc.Create(ctx, fields("e3", "2025-01-23"), true)
	require.NoError(t, err)
	_, err = svc.Activate(ctx, e1.ID)
	require.NoError(t, err)

	assert.LessOrEqual(t, fs.activeCount(), 1,
		"at most one event active after any call sequence")
}
