package handler

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"pointtrack/internal/httpmiddleware"
	"pointtrack/pkg/logger"
)

func TestFailTagsInternalErrorsWithRequestID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	core, logs := observer.New(zap.ErrorLevel)
	h := New(nil, nil, nil, zap.New(core))

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/api/students", nil)
	c.Set(httpmiddleware.ContextRequestID, "req-42")

	h.fail(c, errors.New("connection refused"))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, "req-42", entries[0].ContextMap()[logger.FieldRequestID],
		"storage failures are correlatable with the failing request")
}
