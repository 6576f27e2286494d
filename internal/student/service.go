package student

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"pointtrack/internal/model"
	"pointtrack/pkg/logger"
)

var (
	// ErrValidation marks requests rejected before touching storage.
	ErrValidation = errors.New("student: validation failed")

	// ErrNotFound is returned when the target student id is unknown.
	ErrNotFound = errors.New("student: not found")
)

// Store is the entity-store contract for students.
type Store interface {
	FindStudent(ctx context.Context, studentID string) (*model.Student, error)
	CreateStudent(ctx context.Context, studentID string, name *string, totalPoints int) (model.Student, error)
	UpdateStudent(ctx context.Context, studentID string, name *string) (*model.Student, error)
	AddPoints(ctx context.Context, studentID string, delta int) error
	SetTotalPoints(ctx context.Context, studentID string, value int) error
	ListStudents(ctx context.Context) ([]model.Student, error)
	Leaderboard(ctx context.Context, limit int) ([]model.Student, error)
	DeleteStudent(ctx context.Context, studentID string) error
}

// LeaderboardCache mirrors leaderboard standings into a cache for
// external readers. Failures are tolerated; the store stays the source
// of truth.
type LeaderboardCache interface {
	Refresh(ctx context.Context, students []model.Student) error
}

// Service manages students and the point ledger's administrative
// surface. The record-driven ledger math lives in the attendance state
// machine; the overrides here (explicit total on upsert, direct
// adjust) are deliberate escape hatches.
type Service struct {
	store Store
	cache LeaderboardCache
	log   *zap.Logger
}

// NewService creates a student service. cache may be nil.
func NewService(store Store, cache LeaderboardCache, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{store: store, cache: cache, log: log}
}

// Upsert creates or updates a student. A non-nil totalPoints on an
// existing student rewrites the ledger regardless of what the records
// sum to; that override is logged so audits can find it.
func (s *Service) Upsert(ctx context.Context, studentID string, name *string, totalPoints *int) (model.Student, error) {
	if studentID == "" {
		return model.Student{}, fmt.Errorf("%w: student id is required", ErrValidation)
	}

	existing, err := s.store.FindStudent(ctx, studentID)
	if err != nil {
		return model.Student{}, fmt.Errorf("find student: %w", err)
	}

	if existing == nil {
		points := 0
		if totalPoints != nil {
			points = *totalPoints
		}
		created, err := s.store.CreateStudent(ctx, studentID, name, points)
		if err != nil {
			return model.Student{}, fmt.Errorf("create student: %w", err)
		}
		s.log.Info("student created", zap.String(logger.FieldStudentID, studentID))
		return created, nil
	}

	if totalPoints != nil {
		// Administrative override: rewrites the ledger without touching
		// records, via the escape hatch kept separate from AddPoints.
		if *totalPoints != existing.TotalPoints {
			s.log.Warn("ledger overwritten by upsert",
				zap.String(logger.FieldStudentID, studentID),
				zap.Int("old_total", existing.TotalPoints),
				zap.Int("new_total", *totalPoints))
		}
		if err := s.store.SetTotalPoints(ctx, studentID, *totalPoints); err != nil {
			return model.Student{}, fmt.Errorf("set total points: %w", err)
		}
	}
	updated, err := s.store.UpdateStudent(ctx, studentID, name)
	if err != nil {
		return model.Student{}, fmt.Errorf("update student: %w", err)
	}
	if updated == nil {
		return model.Student{}, fmt.Errorf("%w: %s", ErrNotFound, studentID)
	}
	return *updated, nil
}

// AdjustPoints adds a signed delta to the ledger with no backing
// record, administrative override.
func (s *Service) AdjustPoints(ctx context.Context, studentID string, delta int) (model.Student, error) {
	existing, err := s.store.FindStudent(ctx, studentID)
	if err != nil {
		return model.Student{}, fmt.Errorf("find student: %w", err)
	}
	if existing == nil {
		return model.Student{}, fmt.Errorf("%w: %s", ErrNotFound, studentID)
	}

	if err := s.store.AddPoints(ctx, studentID, delta); err != nil {
		return model.Student{}, fmt.Errorf("add points: %w", err)
	}
	s.log.Info("points adjusted manually",
		zap.String(logger.FieldStudentID, studentID),
		zap.Int("delta", delta))

	adjusted, err := s.store.FindStudent(ctx, studentID)
	if err != nil {
		return model.Student{}, fmt.Errorf("find student: %w", err)
	}
	if adjusted == nil {
		return model.Student{}, fmt.Errorf("%w: %s", ErrNotFound, studentID)
	}
	return *adjusted, nil
}

// Leaderboard returns the top students by points, ties broken by
// earliest creation. The cache refresh is best effort.
func (s *Service) Leaderboard(ctx context.Context, limit int) ([]model.Student, error) {
	if limit <= 0 {
		limit = 10
	}
	top, err := s.store.Leaderboard(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("leaderboard: %w", err)
	}
	if s.cache != nil {
		if err := s.cache.Refresh(ctx, top); err != nil {
			s.log.Warn("leaderboard cache refresh failed", zap.Error(err))
		}
	}
	return top, nil
}

// Get returns a single student.
func (s *Service) Get(ctx context.Context, studentID string) (model.Student, error) {
	st, err := s.store.FindStudent(ctx, studentID)
	if err != nil {
		return model.Student{}, fmt.Errorf("find student: %w", err)
	}
	if st == nil {
		return model.Student{}, fmt.Errorf("%w: %s", ErrNotFound, studentID)
	}
	return *st, nil
}

// List returns all students ordered by points.
func (s *Service) List(ctx context.Context) ([]model.Student, error) {
	students, err := s.store.ListStudents(ctx)
	if err != nil {
		return nil, fmt.Errorf("list students: %w", err)
	}
	return students, nil
}

// Delete removes a student and purges their attendance records.
func (s *Service) Delete(ctx context.Context, studentID string) error {
	existing, err := s.store.FindStudent(ctx, studentID)
	if err != nil {
		return fmt.Errorf("find student: %w", err)
	}
	if existing == nil {
		return fmt.Errorf("%w: %s", ErrNotFound, studentID)
	}
	if err := s.store.DeleteStudent(ctx, studentID); err != nil {
		return fmt.Errorf("delete student: %w", err)
	}
	s.log.Info("student deleted", zap.String(logger.FieldStudentID, studentID))
	return nil
}
