package student

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pointtrack/internal/model"
)

type fakeStore struct {
	mu       sync.Mutex
	students map[string]*model.Student
	nextID   int64
	clock    time.Time
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		students: make(map[string]*model.Student),
		clock:    time.Date(2025, 1, 21, 9, 0, 0, 0, time.UTC),
	}
}

func (f *fakeStore) FindStudent(_ context.Context, studentID string) (*model.Student, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if st, ok := f.students[studentID]; ok {
		copied := *st
		return &copied, nil
	}
	return nil, nil
}

// CreateStudent mirrors the store contract: insert if absent, return
// the stored row either way.
func (f *fakeStore) CreateStudent(_ context.Context, studentID string, name *string, totalPoints int) (model.Student, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if st, ok := f.students[studentID]; ok {
		return *st, nil
	}
	f.nextID++
	f.clock = f.clock.Add(time.Second)
	st := &model.Student{ID: f.nextID, StudentID: studentID, Name: name, TotalPoints: totalPoints, CreatedAt: f.clock}
	f.students[studentID] = st
	return *st, nil
}

func (f *fakeStore) UpdateStudent(_ context.Context, studentID string, name *string) (*model.Student, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	st, ok := f.students[studentID]
	if !ok {
		return nil, nil
	}
	if name != nil {
		st.Name = name
	}
	copied := *st
	return &copied, nil
}

func (f *fakeStore) AddPoints(_ context.Context, studentID string, delta int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.students[studentID].TotalPoints += delta
	return nil
}

func (f *fakeStore) SetTotalPoints(_ context.Context, studentID string, value int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.students[studentID].TotalPoints = value
	return nil
}

func (f *fakeStore) ListStudents(_ context.Context) ([]model.Student, error) {
	return f.sorted(0, false), nil
}

func (f *fakeStore) Leaderboard(_ context.Context, limit int) ([]model.Student, error) {
	return f.sorted(limit, true), nil
}

func (f *fakeStore) sorted(limit int, scoredOnly bool) []model.Student {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Student
	for _, st := range f.students {
		if scoredOnly && st.TotalPoints <= 0 {
			continue
		}
		out = append(out, *st)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].TotalPoints != out[j].TotalPoints {
			return out[i].TotalPoints > out[j].TotalPoints
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func (f *fakeStore) DeleteStudent(_ context.Context, studentID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.students, studentID)
	return nil
}

type recordingCache struct {
	refreshed [][]model.Student
	err       error
}

func (c *recordingCache) Refresh(_ context.Context, students []model.Student) error {
	c.refreshed = append(c.refreshed, students)
	return c.err
}

func strPtr(s string) *string { return &s }
func intPtr(i int) *int       { return &i }

func TestUpsertCreates(t *testing.T) {
	fs := newFakeStore()
	svc := NewService(fs, nil, nil)
	ctx := context.Background()

	st, err := svc.Upsert(ctx, "123456789", strPtr("John Doe"), nil)
	require.NoError(t, err)
	assert.Equal(t, "123456789", st.StudentID)
	require.NotNil(t, st.Name)
	assert.Equal(t, "John Doe", *st.Name)
	assert.Equal(t, 0, st.TotalPoints)

	_, err = svc.Upsert(ctx, "", nil, nil)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestUpsertUpdatesAndOverridesLedger(t *testing.T) {
	fs := newFakeStore()
	svc := NewService(fs, nil, nil)
	ctx := context.Background()

	_, err := svc.Upsert(ctx, "123456789", strPtr("John Doe"), nil)
	require.NoError(t, err)
	_, err = svc.AdjustPoints(ctx, "123456789", 7)
	require.NoError(t, err)

	// Name-only update leaves the ledger alone.
	st, err := svc.Upsert(ctx, "123456789", strPtr("John D."), nil)
	require.NoError(t, err)
	assert.Equal(t, 7, st.TotalPoints)
	assert.Equal(t, "John D.", *st.Name)

	// Explicit total is the administrative override.
	st, err = svc.Upsert(ctx, "123456789", nil, intPtr(42))
	require.NoError(t, err)
	assert.Equal(t, 42, st.TotalPoints)
	assert.Equal(t, "John D.", *st.Name, "nil name keeps the current value")
}

func TestAdjustPoints(t *testing.T) {
	fs := newFakeStore()
	svc := NewService(fs, nil, nil)
	ctx := context.Background()

	_, err := svc.Upsert(ctx, "123456789", nil, intPtr(10))
	require.NoError(t, err)

	st, err := svc.AdjustPoints(ctx, "123456789", -4)
	require.NoError(t, err)
	assert.Equal(t, 6, st.TotalPoints)

	_, err = svc.AdjustPoints(ctx, "unknown", 1)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLeaderboardOrdering(t *testing.T) {
	fs := newFakeStore()
	cache := &recordingCache{}
	svc := NewService(fs, cache, nil)
	ctx := context.Background()

	_, err := svc.Upsert(ctx, "A", nil, intPtr(10))
	require.NoError(t, err)
	_, err = svc.Upsert(ctx, "B", nil, intPtr(10))
	require.NoError(t, err)
	_, err = svc.Upsert(ctx, "C", nil, intPtr(5))
	require.NoError(t, err)
	_, err = svc.Upsert(ctx, "D", nil, nil)
	require.NoError(t, err)

	top, err := svc.Leaderboard(ctx, 10)
	require.NoError(t, err)
	require.Len(t, top, 3, "zero-point students stay off the board")
	assert.Equal(t, "A", top[0].StudentID, "ties break by earliest creation")
	assert.Equal(t, "B", top[1].StudentID)
	assert.Equal(t, "C", top[2].StudentID)

	require.Len(t, cache.refreshed, 1)
	assert.Len(t, cache.refreshed[0], 3)
}

func TestLeaderboardSurvivesCacheFailure(t *testing.T) {
	fs := newFakeStore()
	cache := &recordingCache{err: errors.New("redis down")}
	svc := NewService(fs, cache, nil)
	ctx := context.Background()

	_, err := svc.Upsert(ctx, "A", nil, intPtr(3))
	require.NoError(t, err)

	top, err := svc.Leaderboard(ctx, 10)
	require.NoError(t, err, "cache failures are not the caller's problem")
	assert.Len(t, top, 1)
}

func TestDeleteStudent(t *testing.T) {
	fs := newFakeStore()
	svc := NewService(fs, nil, nil)
	ctx := context.Background()

	_, err := svc.Upsert(ctx, "123456789", nil, nil)
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, "123456789"))
	assert.ErrorIs(t, svc.Delete(ctx, "123456789"), ErrNotFound)

	_, err = svc.Get(ctx, "123456789")
	assert.ErrorIs(t, err, ErrNotFound)
}
