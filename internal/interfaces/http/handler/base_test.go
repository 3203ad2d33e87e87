package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/clinic/backend/internal/domain/ledger"
	"github.com/clinic/backend/internal/domain/shared"
	"github.com/clinic/backend/internal/interfaces/http/dto"
	"github.com/clinic/backend/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
	if err := middleware.SetupValidator(); err != nil {
		panic(err)
	}
}

var (
	staffActor   = ledger.ActorFromPermissions(uuid.New(), "Reception", []string{ledger.PermissionInvoiceCreate})
	managerActor = ledger.ActorFromPermissions(uuid.New(), "Manager",
		[]string{ledger.PermissionInvoiceCreate, ledger.PermissionInvoiceViewAll})
)

// withActor simulates the JWT middleware
func withActor(actor ledger.Actor) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(middleware.ActorKey, actor)
		c.Set(middleware.JWTUserIDKey, actor.ID.String())
		c.Next()
	}
}

func newTestEngine(actor *ledger.Actor) *gin.Engine {
	engine := gin.New()
	engine.Use(middleware.RequestID())
	if actor != nil {
		engine.Use(withActor(*actor))
	}
	return engine
}

func doRequest(engine *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		raw, _ := json.Marshal(b)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	return w
}

func decodeResponse(t *testing.T, w *httptest.ResponseRecorder) dto.Response {
	t.Helper()
	var resp dto.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func decodeData[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var resp struct {
		Success bool `json:"success"`
		Data    T    `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.True(t, resp.Success)
	return resp.Data
}

func TestBaseHandler_HandleError(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		status  int
		code    string
		message string
	}{
		{
			name:    "not found",
			err:     shared.NewNotFoundError("Invoice"),
			status:  http.StatusNotFound,
			code:    dto.ErrCodeNotFound,
			message: "Invoice not found",
		},
		{
			name:   "forbidden",
			err:    shared.ErrForbidden,
			status: http.StatusForbidden,
			code:   dto.ErrCodeForbidden,
		},
		{
			name:    "validation",
			err:     shared.NewValidationError("Quantity must be at least 1"),
			status:  http.StatusUnprocessableEntity,
			code:    dto.ErrCodeValidation,
			message: "Quantity must be at least 1",
		},
		{
			name:    "insufficient stock",
			err:     ledger.InsufficientStockError("Amoxicillin", 3),
			status:  http.StatusUnprocessableEntity,
			code:    dto.ErrCodeInsufficientStock,
			message: "Insufficient stock for Amoxicillin. Available: 3",
		},
		{
			name:   "credit activity blocks delete",
			err:    shared.NewDomainError(ledger.ErrCodeInvoiceHasCreditActivity, "Invoice has credit activity"),
			status: http.StatusConflict,
			code:   dto.ErrCodeInvoiceHasCreditActivity,
		},
		{
			name:   "concurrency conflict",
			err:    shared.ErrConcurrencyConflict,
			status: http.StatusConflict,
			code:   dto.ErrCodeConcurrencyConflict,
		},
		{
			name:    "wrapped domain error",
			err:     fmt.Errorf("apply credit: %w", shared.NewDomainError(ledger.ErrCodeCreditExceedsBalance, "Credit exceeds remaining balance")),
			status:  http.StatusUnprocessableEntity,
			code:    dto.ErrCodeCreditExceedsBalance,
			message: "Credit exceeds remaining balance",
		},
		{
			name:    "infrastructure error",
			err:     errors.New("pq: connection refused"),
			status:  http.StatusInternalServerError,
			code:    dto.ErrCodeInternal,
			message: "An unexpected error occurred",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := &BaseHandler{}
			engine := newTestEngine(nil)
			engine.GET("/test", func(c *gin.Context) { h.HandleError(c, tt.err) })

			w := doRequest(engine, http.MethodGet, "/test", nil)

			assert.Equal(t, tt.status, w.Code)
			resp := decodeResponse(t, w)
			assert.False(t, resp.Success)
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.code, resp.Error.Code)
			assert.NotEmpty(t, resp.Error.RequestID)
			if tt.message != "" {
				assert.Equal(t, tt.message, resp.Error.Message)
			}
		})
	}
}

func TestBaseHandler_HandleErrorNil(t *testing.T) {
	h := &BaseHandler{}
	engine := newTestEngine(nil)
	engine.GET("/test", func(c *gin.Context) {
		h.HandleError(c, nil)
		c.Status(http.StatusTeapot)
	})

	w := doRequest(engine, http.MethodGet, "/test", nil)
	assert.Equal(t, http.StatusTeapot, w.Code)
}

func TestBaseHandler_ActorRequired(t *testing.T) {
	h := &BaseHandler{}
	engine := newTestEngine(nil)
	engine.GET("/test", func(c *gin.Context) {
		if _, ok := h.actor(c); !ok {
			return
		}
		c.Status(http.StatusOK)
	})

	w := doRequest(engine, http.MethodGet, "/test", nil)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, dto.ErrCodeUnauthorized, decodeResponse(t, w).Error.Code)
}

func TestBaseHandler_UUIDParam(t *testing.T) {
	h := &BaseHandler{}
	engine := newTestEngine(nil)
	engine.GET("/invoices/:id", func(c *gin.Context) {
		id, ok := h.uuidParam(c, "id", "invoice")
		if !ok {
			return
		}
		h.Success(c, id)
	})

	id := uuid.New()
	w := doRequest(engine, http.MethodGet, "/invoices/"+id.String(), nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, id, decodeData[uuid.UUID](t, w))

	w = doRequest(engine, http.MethodGet, "/invoices/INV-000001", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Invalid invoice ID format", decodeResponse(t, w).Error.Message)
}

func TestGetRequestID(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)

	assert.Empty(t, getRequestID(c))

	c.Request.Header.Set(middleware.RequestIDHeader, "header-id")
	assert.Equal(t, "header-id", getRequestID(c))

	c.Set(middleware.RequestIDKey, "ctx-id")
	assert.Equal(t, "ctx-id", getRequestID(c))
}
