package attendance

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"pointtrack/internal/model"
	"pointtrack/pkg/logger"
)

var (
	// ErrValidation marks requests rejected before touching storage.
	ErrValidation = errors.New("attendance: validation failed")

	// ErrEventUnavailable is returned when the target event does not
	// exist or is not the active event.
	ErrEventUnavailable = errors.New("attendance: event not found or not active")

	// ErrRecordNotFound is returned when a targeted record does not
	// exist, or is already checked out on the manual checkout path.
	ErrRecordNotFound = errors.New("attendance: record not found")
)

// Action tags the outcome of Process.
type Action string

const (
	ActionCheckIn  Action = "check_in"
	ActionCheckOut Action = "check_out"
)

// Result is the outcome of a processed attendance toggle.
type Result struct {
	Action          Action                 `json:"action"`
	Record          model.AttendanceRecord `json:"record"`
	DurationMinutes int                    `json:"duration_minutes,omitempty"`
	Points          int                    `json:"points,omitempty"`
}

// Store is the entity-store contract the state machine drives.
type Store interface {
	FindStudent(ctx context.Context, studentID string) (*model.Student, error)
	CreateStudent(ctx context.Context, studentID string, name *string, totalPoints int) (model.Student, error)
	AddPoints(ctx context.Context, studentID string, delta int) error
	FindEvent(ctx context.Context, id int64) (*model.Event, error)
	FindOpenRecord(ctx context.Context, studentID string, eventID int64) (*model.AttendanceRecord, error)
	InsertRecord(ctx context.Context, studentID string, eventID int64, checkIn time.Time) (model.AttendanceRecord, error)
	FindRecord(ctx context.Context, id int64) (*model.AttendanceRecord, error)
	CloseRecord(ctx context.Context, id int64, checkOut time.Time, points int) (model.AttendanceRecord, error)
	DeleteRecord(ctx context.Context, id int64) error
	ListRecords(ctx context.Context, f model.RecordFilter) ([]model.AttendanceRecord, error)
}

// Service is the attendance state machine. Per (student, event) pair a
// student is either absent (no open record) or present (one open
// record); Process toggles between the two and awards points on the
// way out. Read-then-write sequences run under a per-pair lock so two
// concurrent toggles cannot both observe the same state.
type Service struct {
	store Store
	log   *zap.Logger
	now   func() time.Time

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewService creates the state machine over a store.
func NewService(store Store, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		store: store,
		log:   log,
		now:   func() time.Time { return time.Now().UTC() },
		locks: make(map[string]*sync.Mutex),
	}
}

// WithClock overrides the clock, for tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

func (s *Service) pairLock(studentID string, eventID int64) *sync.Mutex {
	key := fmt.Sprintf("%s|%d", studentID, eventID)
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[key]
	if !ok {
		l = &sync.Mutex{}
		s.locks[key] = l
	}
	return l
}

// Process toggles attendance for (studentID, eventID): checks in when
// no open record exists, checks out otherwise. The caller never picks
// the action. The student is created implicitly on first contact; the
// event must already exist and be active.
func (s *Service) Process(ctx context.Context, studentID string, eventID int64) (Result, error) {
	if studentID == "" {
		return Result{}, fmt.Errorf("%w: student id is required", ErrValidation)
	}
	if eventID <= 0 {
		return Result{}, fmt.Errorf("%w: event id is required", ErrValidation)
	}

	student, err := s.store.FindStudent(ctx, studentID)
	if err != nil {
		return Result{}, fmt.Errorf("find student: %w", err)
	}
	if student == nil {
		if _, err := s.store.CreateStudent(ctx, studentID, nil, 0); err != nil {
			return Result{}, fmt.Errorf("create student: %w", err)
		}
		s.log.Info("student created implicitly on check-in",
			zap.String(logger.FieldStudentID, studentID))
	}

	event, err := s.store.FindEvent(ctx, eventID)
	if err != nil {
		return Result{}, fmt.Errorf("find event: %w", err)
	}
	if event == nil || !event.IsActive {
		return Result{}, ErrEventUnavailable
	}

	lock := s.pairLock(studentID, eventID)
	lock.Lock()
	defer lock.Unlock()

	open, err := s.store.FindOpenRecord(ctx, studentID, eventID)
	if err != nil {
		return Result{}, fmt.Errorf("find open record: %w", err)
	}

	if open == nil {
		record, err := s.store.InsertRecord(ctx, studentID, eventID, s.now())
		if err != nil {
			return Result{}, fmt.Errorf("insert record: %w", err)
		}
		s.log.Info("checked in",
			zap.String(logger.FieldStudentID, studentID),
			zap.Int64(logger.FieldEventID, eventID),
			zap.Int64(logger.FieldRecordID, record.ID))
		return Result{Action: ActionCheckIn, Record: record}, nil
	}

	return s.checkout(ctx, *open)
}

// ManualCheckout closes an open record by id, administrative path.
func (s *Service) ManualCheckout(ctx context.Context, recordID int64) (Result, error) {
	record, err := s.store.FindRecord(ctx, recordID)
	if err != nil {
		return Result{}, fmt.Errorf("find record: %w", err)
	}
	if record == nil || record.IsCheckedOut {
		return Result{}, fmt.Errorf("%w: no open record %d", ErrRecordNotFound, recordID)
	}

	lock := s.pairLock(record.StudentID, record.EventID)
	lock.Lock()
	defer lock.Unlock()

	// Re-read under the lock: a concurrent toggle may have closed it.
	record, err = s.store.FindRecord(ctx, recordID)
	if err != nil {
		return Result{}, fmt.Errorf("find record: %w", err)
	}
	if record == nil || record.IsCheckedOut {
		return Result{}, fmt.Errorf("%w: no open record %d", ErrRecordNotFound, recordID)
	}

	return s.checkout(ctx, *record)
}

// checkout closes the record at the current time, awards points, and
// credits the student ledger. Callers hold the pair lock.
func (s *Service) checkout(ctx context.Context, open model.AttendanceRecord) (Result, error) {
	now := s.now()
	duration := now.Sub(open.CheckInTime)
	pts := Points(duration)

	record, err := s.store.CloseRecord(ctx, open.ID, now, pts)
	if err != nil {
		return Result{}, fmt.Errorf("close record: %w", err)
	}
	if err := s.store.AddPoints(ctx, open.StudentID, pts); err != nil {
		// Record is closed but the ledger missed the credit; the
		// inconsistency is repairable from records, so log loudly.
		s.log.Error("ledger credit failed after checkout",
			zap.Int64(logger.FieldRecordID, open.ID),
			zap.String(logger.FieldStudentID, open.StudentID),
			zap.Int("points", pts),
			zap.Error(err))
		return Result{}, fmt.Errorf("add points: %w", err)
	}

	s.log.Info("checked out",
		zap.String(logger.FieldStudentID, open.StudentID),
		zap.Int64(logger.FieldEventID, open.EventID),
		zap.Int64(logger.FieldRecordID, open.ID),
		zap.Int("points", pts))

	return Result{
		Action:          ActionCheckOut,
		Record:          record,
		DurationMinutes: int(duration / time.Minute),
		Points:          pts,
	}, nil
}

// DeleteRecord removes a record and reverses its point contribution.
// Deleting an open record leaves the ledger untouched.
func (s *Service) DeleteRecord(ctx context.Context, recordID int64) error {
	record, err := s.store.FindRecord(ctx, recordID)
	if err != nil {
		return fmt.Errorf("find record: %w", err)
	}
	if record == nil {
		return fmt.Errorf("%w: %d", ErrRecordNotFound, recordID)
	}

	lock := s.pairLock(record.StudentID, record.EventID)
	lock.Lock()
	defer lock.Unlock()

	// Re-read under the lock: a concurrent toggle may have closed the
	// record and credited the ledger since the first read.
	record, err = s.store.FindRecord(ctx, recordID)
	if err != nil {
		return fmt.Errorf("find record: %w", err)
	}
	if record == nil {
		return fmt.Errorf("%w: %d", ErrRecordNotFound, recordID)
	}

	if record.Points > 0 {
		// Reverse the ledger before the record disappears so a failure
		// in between never strands points the records cannot explain.
		if err := s.store.AddPoints(ctx, record.StudentID, -record.Points); err != nil {
			return fmt.Errorf("reverse points: %w", err)
		}
	}
	if err := s.store.DeleteRecord(ctx, recordID); err != nil {
		if record.Points > 0 {
			s.log.Error("record delete failed after ledger reversal",
				zap.Int64(logger.FieldRecordID, recordID),
				zap.String(logger.FieldStudentID, record.StudentID),
				zap.Int("points", record.Points),
				zap.Error(err))
		}
		return fmt.Errorf("delete record: %w", err)
	}

	s.log.Info("record deleted",
		zap.Int64(logger.FieldRecordID, recordID),
		zap.String(logger.FieldStudentID, record.StudentID),
		zap.Int("points_reversed", record.Points))
	return nil
}

// ListRecords returns attendance records, newest check-in first.
func (s *Service) ListRecords(ctx context.Context, f model.RecordFilter) ([]model.AttendanceRecord, error) {
	records, err := s.store.ListRecords(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	return records, nil
}
