package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"pointtrack/internal/model"
)

// Postgres implements the entity-store contracts consumed by the
// attendance, event, and student services. Single statements rely on
// Postgres for atomicity; the purge-style deletes wrap their two
// statements in a transaction.
type Postgres struct {
	db *sql.DB
}

// NewPostgres creates the store over an open connection.
func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

const studentColumns = `id, student_id, name, total_points, created_at, updated_at`

func scanStudent(row interface{ Scan(...any) error }) (model.Student, error) {
	var st model.Student
	err := row.Scan(&st.ID, &st.StudentID, &st.Name, &st.TotalPoints, &st.CreatedAt, &st.UpdatedAt)
	return st, err
}

// FindStudent returns a student by external id, nil when absent.
func (p *Postgres) FindStudent(ctx context.Context, studentID string) (*model.Student, error) {
	row := p.db.QueryRowContext(ctx, `
		SELECT `+studentColumns+` FROM students WHERE student_id = $1
	`, studentID)
	st, err := scanStudent(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &st, nil
}

// CreateStudent inserts a student if absent and returns the stored row
// either way. Two first-contact check-ins can race on the same student
// id; the loser of the insert reads the winner's row instead of hitting
// the unique constraint.
func (p *Postgres) CreateStudent(ctx context.Context, studentID string, name *string, totalPoints int) (model.Student, error) {
	row := p.db.QueryRowContext(ctx, `
		INSERT INTO students (student_id, name, total_points)
		VALUES ($1, $2, $3)
		ON CONFLICT (student_id) DO NOTHING
		RETURNING `+studentColumns+`
	`, studentID, name, totalPoints)
	st, err := scanStudent(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			existing, ferr := p.FindStudent(ctx, studentID)
			if ferr != nil {
				return model.Student{}, ferr
			}
			if existing == nil {
				return model.Student{}, fmt.Errorf("student %s vanished after insert conflict", studentID)
			}
			return *existing, nil
		}
		return model.Student{}, err
	}
	return st, nil
}

// UpdateStudent rewrites mutable fields; a nil name keeps the current
// value. Returns nil when the student does not exist.
func (p *Postgres) UpdateStudent(ctx context.Context, studentID string, name *string) (*model.Student, error) {
	row := p.db.QueryRowContext(ctx, `
		UPDATE students
		SET name = COALESCE($2, name), updated_at = NOW()
		WHERE student_id = $1
		RETURNING `+studentColumns+`
	`, studentID, name)
	st, err := scanStudent(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &st, nil
}

// AddPoints applies a signed delta to the student ledger.
func (p *Postgres) AddPoints(ctx context.Context, studentID string, delta int) error {
	_, err := p.db.ExecContext(ctx, `
		UPDATE students
		SET total_points = total_points + $2, updated_at = NOW()
		WHERE student_id = $1
	`, studentID, delta)
	return err
}

// SetTotalPoints overwrites the ledger outright, administrative override.
func (p *Postgres) SetTotalPoints(ctx context.Context, studentID string, value int) error {
	_, err := p.db.ExecContext(ctx, `
		UPDATE students
		SET total_points = $2, updated_at = NOW()
		WHERE student_id = $1
	`, studentID, value)
	return err
}

// ListStudents returns every student, highest points first.
func (p *Postgres) ListStudents(ctx context.Context) ([]model.Student, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT `+studentColumns+` FROM students
		ORDER BY total_points DESC, created_at ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var students []model.Student
	for rows.Next() {
		st, err := scanStudent(rows)
		if err != nil {
			return nil, err
		}
		students = append(students, st)
	}
	return students, rows.Err()
}

// Leaderboard returns the top scoring students, ties broken by
// earliest creation.
func (p *Postgres) Leaderboard(ctx context.Context, limit int) ([]model.Student, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT `+studentColumns+` FROM students
		WHERE total_points > 0
		ORDER BY total_points DESC, created_at ASC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var students []model.Student
	for rows.Next() {
		st, err := scanStudent(rows)
		if err != nil {
			return nil, err
		}
		students = append(students, st)
	}
	return students, rows.Err()
}

// DeleteStudent removes a student and their attendance records in one
// transaction.
func (p *Postgres) DeleteStudent(ctx context.Context, studentID string) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM attendance_records WHERE student_id = $1`, studentID); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM students WHERE student_id = $1`, studentID); err != nil {
		return err
	}
	return tx.Commit()
}

const eventColumns = `id, name, description, date, is_active, created_at, updated_at`

func scanEvent(row interface{ Scan(...any) error }) (model.Event, error) {
	var evt model.Event
	err := row.Scan(&evt.ID, &evt.Name, &evt.Description, &evt.Date, &evt.IsActive, &evt.CreatedAt, &evt.UpdatedAt)
	return evt, err
}

// FindEvent returns an event by id, nil when absent.
func (p *Postgres) FindEvent(ctx context.Context, id int64) (*model.Event, error) {
	row := p.db.QueryRowContext(ctx, `
		SELECT `+eventColumns+` FROM events WHERE id = $1
	`, id)
	evt, err := scanEvent(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &evt, nil
}

// FindActiveEvent returns the active event, nil when none. If outside
// writers ever violated the single-active invariant this still returns
// one row rather than failing.
func (p *Postgres) FindActiveEvent(ctx context.Context) (*model.Event, error) {
	row := p.db.QueryRowContext(ctx, `
		SELECT `+eventColumns+` FROM events WHERE is_active ORDER BY id LIMIT 1
	`)
	evt, err := scanEvent(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &evt, nil
}

// ListEvents returns all events, newest date first.
func (p *Postgres) ListEvents(ctx context.Context) ([]model.Event, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT `+eventColumns+` FROM events ORDER BY date DESC, created_at DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []model.Event
	for rows.Next() {
		evt, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, evt)
	}
	return events, rows.Err()
}

// CreateEvent inserts an event. The activation sweep is the caller's job.
func (p *Postgres) CreateEvent(ctx context.Context, f model.EventFields, active bool) (model.Event, error) {
	row := p.db.QueryRowContext(ctx, `
		INSERT INTO events (name, description, date, is_active)
		VALUES ($1, $2, $3, $4)
		RETURNING `+eventColumns+`
	`, f.Name, f.Description, f.Date, active)
	return scanEvent(row)
}

// UpdateEvent rewrites an event. Returns nil when the id is unknown.
func (p *Postgres) UpdateEvent(ctx context.Context, id int64, f model.EventFields, active bool) (*model.Event, error) {
	row := p.db.QueryRowContext(ctx, `
		UPDATE events
		SET name = $2, description = $3, date = $4, is_active = $5, updated_at = NOW()
		WHERE id = $1
		RETURNING `+eventColumns+`
	`, id, f.Name, f.Description, f.Date, active)
	evt, err := scanEvent(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &evt, nil
}

// DeactivateAll turns every event inactive.
func (p *Postgres) DeactivateAll(ctx context.Context) error {
	_, err := p.db.ExecContext(ctx, `
		UPDATE events SET is_active = FALSE, updated_at = NOW() WHERE is_active
	`)
	return err
}

// DeactivateExcept turns every event but id inactive.
func (p *Postgres) DeactivateExcept(ctx context.Context, id int64) error {
	_, err := p.db.ExecContext(ctx, `
		UPDATE events SET is_active = FALSE, updated_at = NOW() WHERE is_active AND id <> $1
	`, id)
	return err
}

// Activate turns a single event active.
func (p *Postgres) Activate(ctx context.Context, id int64) error {
	_, err := p.db.ExecContext(ctx, `
		UPDATE events SET is_active = TRUE, updated_at = NOW() WHERE id = $1
	`, id)
	return err
}

// DeleteEvent removes an event and its attendance records in one
// transaction. Points those records earned stay on the ledger.
func (p *Postgres) DeleteEvent(ctx context.Context, id int64) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM attendance_records WHERE event_id = $1`, id); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM events WHERE id = $1`, id); err != nil {
		return err
	}
	return tx.Commit()
}

const recordColumns = `ar.id, ar.student_id, ar.event_id, ar.check_in_time, ar.check_out_time,
	ar.points, ar.is_checked_out, s.name, e.name, ar.created_at, ar.updated_at`

const recordJoins = `FROM attendance_records ar
	LEFT JOIN students s ON ar.student_id = s.student_id
	LEFT JOIN events e ON ar.event_id = e.id`

func scanRecord(row interface{ Scan(...any) error }) (model.AttendanceRecord, error) {
	var rec model.AttendanceRecord
	err := row.Scan(&rec.ID, &rec.StudentID, &rec.EventID, &rec.CheckInTime, &rec.CheckOutTime,
		&rec.Points, &rec.IsCheckedOut, &rec.StudentName, &rec.EventName, &rec.CreatedAt, &rec.UpdatedAt)
	return rec, err
}

// FindRecord returns a record by id with joined names, nil when absent.
func (p *Postgres) FindRecord(ctx context.Context, id int64) (*model.AttendanceRecord, error) {
	row := p.db.QueryRowContext(ctx, `
		SELECT `+recordColumns+` `+recordJoins+` WHERE ar.id = $1
	`, id)
	rec, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &rec, nil
}

// FindOpenRecord returns the most recent open record for the pair, nil
// when the student is absent from the event.
func (p *Postgres) FindOpenRecord(ctx context.Context, studentID string, eventID int64) (*model.AttendanceRecord, error) {
	row := p.db.QueryRowContext(ctx, `
		SELECT `+recordColumns+` `+recordJoins+`
		WHERE ar.student_id = $1 AND ar.event_id = $2 AND NOT ar.is_checked_out
		ORDER BY ar.check_in_time DESC
		LIMIT 1
	`, studentID, eventID)
	rec, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &rec, nil
}

// InsertRecord opens a new attendance record.
func (p *Postgres) InsertRecord(ctx context.Context, studentID string, eventID int64, checkIn time.Time) (model.AttendanceRecord, error) {
	var id int64
	err := p.db.QueryRowContext(ctx, `
		INSERT INTO attendance_records (student_id, event_id, check_in_time)
		VALUES ($1, $2, $3)
		RETURNING id
	`, studentID, eventID, checkIn).Scan(&id)
	if err != nil {
		return model.AttendanceRecord{}, err
	}
	return p.getRecord(ctx, id)
}

// CloseRecord finalizes a record with checkout time and points.
func (p *Postgres) CloseRecord(ctx context.Context, id int64, checkOut time.Time, points int) (model.AttendanceRecord, error) {
	res, err := p.db.ExecContext(ctx, `
		UPDATE attendance_records
		SET check_out_time = $2, points = $3, is_checked_out = TRUE, updated_at = NOW()
		WHERE id = $1
	`, id, checkOut, points)
	if err != nil {
		return model.AttendanceRecord{}, err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return model.AttendanceRecord{}, fmt.Errorf("close record %d: no such record", id)
	}
	return p.getRecord(ctx, id)
}

// DeleteRecord removes a single record. Ledger reversal is the state
// machine's job and happens before this call.
func (p *Postgres) DeleteRecord(ctx context.Context, id int64) error {
	_, err := p.db.ExecContext(ctx, `DELETE FROM attendance_records WHERE id = $1`, id)
	return err
}

// ListRecords returns records with joined names, newest check-in first.
func (p *Postgres) ListRecords(ctx context.Context, f model.RecordFilter) ([]model.AttendanceRecord, error) {
	query := `SELECT ` + recordColumns + ` ` + recordJoins
	args := []any{}
	clauses := []string{}
	if f.EventID != 0 {
		args = append(args, f.EventID)
		clauses = append(clauses, "ar.event_id = $"+strconv.Itoa(len(args)))
	}
	if f.StudentID != "" {
		args = append(args, f.StudentID)
		clauses = append(clauses, "ar.student_id = $"+strconv.Itoa(len(args)))
	}
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY ar.check_in_time DESC"

	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []model.AttendanceRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func (p *Postgres) getRecord(ctx context.Context, id int64) (model.AttendanceRecord, error) {
	rec, err := p.FindRecord(ctx, id)
	if err != nil {
		return model.AttendanceRecord{}, err
	}
	if rec == nil {
		return model.AttendanceRecord{}, fmt.Errorf("record %d vanished", id)
	}
	return *rec, nil
}
