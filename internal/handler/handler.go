// Package handler maps HTTP requests 1:1 onto the core services. It
// owns status-code mapping and request decoding and nothing else.
package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"pointtrack/internal/attendance"
	"pointtrack/internal/event"
	"pointtrack/internal/httpmiddleware"
	"pointtrack/internal/metrics"
	"pointtrack/internal/model"
	"pointtrack/internal/student"
	"pointtrack/pkg/logger"
)

type Handler struct {
	attendance *attendance.Service
	events     *event.Service
	students   *student.Service
	log        *zap.Logger
}

func New(att *attendance.Service, events *event.Service, students *student.Service, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{attendance: att, events: events, students: students, log: log}
}

// Register mounts all routes under /api.
func (h *Handler) Register(r gin.IRouter) {
	api := r.Group("/api")

	att := api.Group("/attendance")
	att.POST("/process", h.ProcessAttendance)
	att.GET("", h.ListRecords)
	att.GET("/event/:eventId", h.ListEventRecords)
	att.PATCH("/:id/checkout", h.ManualCheckout)
	att.DELETE("/:id", h.DeleteRecord)

	ev := api.Group("/events")
	ev.GET("", h.ListEvents)
	ev.GET("/:id", h.GetEvent)
	ev.GET("/active/current", h.ActiveEvent)
	ev.POST("", h.CreateEvent)
	ev.PUT("/:id", h.UpdateEvent)
	ev.PATCH("/:id/activate", h.ActivateEvent)
	ev.PATCH("/deactivate/all", h.DeactivateAllEvents)
	ev.DELETE("/:id", h.DeleteEvent)

	st := api.Group("/students")
	st.GET("", h.ListStudents)
	st.GET("/:studentId", h.GetStudent)
	st.POST("", h.UpsertStudent)
	st.PATCH("/:studentId/points", h.AdjustPoints)
	st.GET("/leaderboard/top", h.Leaderboard)
	st.DELETE("/:studentId", h.DeleteStudent)
}

// fail translates core error kinds to HTTP statuses. Storage errors
// stay opaque to callers.
func (h *Handler) fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, attendance.ErrValidation),
		errors.Is(err, event.ErrValidation),
		errors.Is(err, student.ErrValidation),
		errors.Is(err, attendance.ErrEventUnavailable):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, attendance.ErrRecordNotFound),
		errors.Is(err, event.ErrNotFound),
		errors.Is(err, student.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	default:
		h.log.Error("request failed",
			zap.String(logger.FieldRequestID, c.GetString(httpmiddleware.ContextRequestID)),
			zap.String(logger.FieldOperation, c.Request.Method+" "+c.FullPath()),
			zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func pathID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
		return 0, false
	}
	return id, true
}

// ---------- Attendance ----------

type processRequest struct {
	StudentID string `json:"student_id" binding:"required"`
	EventID   int64  `json:"event_id" binding:"required"`
}

func (h *Handler) ProcessAttendance(c *gin.Context) {
	var req processRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "student_id and event_id are required"})
		return
	}
	result, err := h.attendance.Process(c.Request.Context(), req.StudentID, req.EventID)
	if err != nil {
		h.fail(c, err)
		return
	}

	status := http.StatusOK
	switch result.Action {
	case attendance.ActionCheckIn:
		metrics.CheckIns.Inc()
		status = http.StatusCreated
	case attendance.ActionCheckOut:
		metrics.CheckOuts.Inc()
		metrics.PointsAwarded.Add(float64(result.Points))
	}
	c.JSON(status, result)
}

func (h *Handler) ListRecords(c *gin.Context) {
	var f model.RecordFilter
	if v := c.Query("event_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid event_id"})
			return
		}
		f.EventID = id
	}
	f.StudentID = c.Query("student_id")

	records, err := h.attendance.ListRecords(c.Request.Context(), f)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, records)
}

func (h *Handler) ListEventRecords(c *gin.Context) {
	eventID, ok := pathID(c, "eventId")
	if !ok {
		return
	}
	records, err := h.attendance.ListRecords(c.Request.Context(), model.RecordFilter{EventID: eventID})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, records)
}

func (h *Handler) ManualCheckout(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	result, err := h.attendance.ManualCheckout(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	metrics.CheckOuts.Inc()
	metrics.PointsAwarded.Add(float64(result.Points))
	c.JSON(http.StatusOK, result)
}

func (h *Handler) DeleteRecord(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.attendance.DeleteRecord(c.Request.Context(), id); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "attendance record deleted"})
}

// ---------- Events ----------

type eventRequest struct {
	Name        string  `json:"name"`
	Description *string `json:"description"`
	Date        string  `json:"date"`
	IsActive    bool    `json:"is_active"`
}

func (req eventRequest) fields() model.EventFields {
	return model.EventFields{Name: req.Name, Description: req.Description, Date: req.Date}
}

func (h *Handler) ListEvents(c *gin.Context) {
	events, err := h.events.List(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, events)
}

func (h *Handler) GetEvent(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	evt, err := h.events.Get(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, evt)
}

func (h *Handler) ActiveEvent(c *gin.Context) {
	evt, err := h.events.Active(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, evt)
}

func (h *Handler) CreateEvent(c *gin.Context) {
	var req eventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	evt, err := h.events.Create(c.Request.Context(), req.fields(), req.IsActive)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, evt)
}

func (h *Handler) UpdateEvent(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req eventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	evt, err := h.events.Update(c.Request.Context(), id, req.fields(), req.IsActive)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, evt)
}

func (h *Handler) ActivateEvent(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	evt, err := h.events.Activate(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, evt)
}

func (h *Handler) DeactivateAllEvents(c *gin.Context) {
	if err := h.events.DeactivateAll(c.Request.Context()); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "all events deactivated"})
}

func (h *Handler) DeleteEvent(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.events.Delete(c.Request.Context(), id); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "event deleted"})
}

// ---------- Students ----------

type upsertStudentRequest struct {
	StudentID   string  `json:"student_id" binding:"required"`
	Name        *string `json:"name"`
	TotalPoints *int    `json:"total_points"`
}

func (h *Handler) ListStudents(c *gin.Context) {
	students, err := h.students.List(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, students)
}

func (h *Handler) GetStudent(c *gin.Context) {
	st, err := h.students.Get(c.Request.Context(), c.Param("studentId"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

func (h *Handler) UpsertStudent(c *gin.Context) {
	var req upsertStudentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "student_id is required"})
		return
	}
	st, err := h.students.Upsert(c.Request.Context(), req.StudentID, req.Name, req.TotalPoints)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

type adjustPointsRequest struct {
	Points *int `json:"points" binding:"required"`
}

func (h *Handler) AdjustPoints(c *gin.Context) {
	var req adjustPointsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "points must be a number"})
		return
	}
	st, err := h.students.AdjustPoints(c.Request.Context(), c.Param("studentId"), *req.Points)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

func (h *Handler) Leaderboard(c *gin.Context) {
	limit := 10
	if v := c.Query("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			limit = parsed
		}
	}
	top, err := h.students.Leaderboard(c.Request.Context(), limit)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, top)
}

func (h *Handler) DeleteStudent(c *gin.Context) {
	if err := h.students.Delete(c.Request.Context(), c.Param("studentId")); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "student deleted"})
}
