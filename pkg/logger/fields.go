package logger

// Standard field names, shared by the services and the HTTP layer so
// log lines stay queryable by the same keys everywhere.
const (
	FieldService   = "service"
	FieldOperation = "operation"
	FieldStudentID = "student_id"
	FieldEventID   = "event_id"
	FieldRecordID  = "record_id"
	FieldRequestID = "request_id"
)
