package model

import "time"

// Student is a participant identified by an external student id.
// TotalPoints mirrors the sum of points on the student's attendance
// records except where an administrative override has rewritten it.
type Student struct {
	ID          int64     `json:"id"`
	StudentID   string    `json:"student_id"`
	Name        *string   `json:"name,omitempty"`
	TotalPoints int       `json:"total_points"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Event is a scheduled session attendance is recorded against.
// At most one event is active at any moment.
type Event struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description *string   `json:"description,omitempty"`
	Date        string    `json:"date"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// EventFields carries the writable event attributes.
type EventFields struct {
	Name        string  `json:"name"`
	Description *string `json:"description"`
	Date        string  `json:"date"`
}

// AttendanceRecord is one check-in/check-out cycle. A record with
// IsCheckedOut false is an open session; points are set at checkout.
type AttendanceRecord struct {
	ID           int64      `json:"id"`
	StudentID    string     `json:"student_id"`
	EventID      int64      `json:"event_id"`
	CheckInTime  time.Time  `json:"check_in_time"`
	CheckOutTime *time.Time `json:"check_out_time,omitempty"`
	Points       int        `json:"points"`
	IsCheckedOut bool       `json:"is_checked_out"`
	StudentName  *string    `json:"student_name,omitempty"`
	EventName    *string    `json:"event_name,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// RecordFilter narrows attendance listings. Zero values mean no filter.
type RecordFilter struct {
	EventID   int64
	StudentID string
}
