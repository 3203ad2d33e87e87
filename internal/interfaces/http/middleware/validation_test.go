package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/clinic/backend/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type validationProbeItem struct {
	Quantity     int    `json:"quantity" binding:"min=1"`
	DiscountType string `json:"discount_type" binding:"omitempty,discount_type"`
}

type validationProbe struct {
	PatientID uuid.UUID             `json:"patient_id" binding:"required"`
	Status    string                `json:"status" binding:"omitempty,oneof=unpaid partial paid"`
	Items     []validationProbeItem `json:"items" binding:"dive"`
}

func validationRouter(t *testing.T) *gin.Engine {
	t.Helper()
	require.NoError(t, SetupValidator())

	router := gin.New()
	router.Use(RequestID())
	router.POST("/test", func(c *gin.Context) {
		var req validationProbe
		if err := c.ShouldBindJSON(&req); err != nil {
			HandleBindingError(c, err)
			return
		}
		c.JSON(http.StatusOK, dto.NewSuccessResponse(req))
	})
	return router
}

func postJSON(router *gin.Engine, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/test", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) *dto.ErrorInfo {
	t.Helper()
	var resp dto.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.False(t, resp.Success)
	require.NotNil(t, resp.Error)
	return resp.Error
}

func TestHandleBindingError_ValidationIs422WithFieldNames(t *testing.T) {
	router := validationRouter(t)

	w := postJSON(router, `{"status":"refunded","items":[{"quantity":0,"discount_type":"bogus"}]}`)

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	errInfo := decodeError(t, w)
	assert.Equal(t, dto.ErrCodeValidation, errInfo.Code)
	assert.NotEmpty(t, errInfo.RequestID)

	fields := make(map[string]dto.ValidationDetail)
	for _, d := range errInfo.Details {
		fields[d.Field] = d
	}
	require.Contains(t, fields, "patient_id")
	assert.Equal(t, dto.ErrCodeValidationRequired, fields["patient_id"].Code)
	require.Contains(t, fields, "status")
	assert.Equal(t, "Must be one of: unpaid partial paid", fields["status"].Message)
	require.Contains(t, fields, "items[0].quantity")
	assert.Equal(t, dto.ErrCodeValidationRange, fields["items[0].quantity"].Code)
	require.Contains(t, fields, "items[0].discount_type")
	assert.Equal(t, "Must be one of: fixed percentage", fields["items[0].discount_type"].Message)
}

func TestHandleBindingError_MalformedJSONIs400(t *testing.T) {
	router := validationRouter(t)

	for _, body := range []string{`{"patient_id":`, `not json`, ``} {
		w := postJSON(router, body)
		assert.Equal(t, http.StatusBadRequest, w.Code, "body %q", body)
		assert.Equal(t, dto.ErrCodeInvalidJSON, decodeError(t, w).Code)
	}
}

func TestHandleBindingError_WrongTypeIs422(t *testing.T) {
	router := validationRouter(t)

	w := postJSON(router, `{"patient_id":"`+uuid.NewString()+`","items":[{"quantity":"two"}]}`)

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	errInfo := decodeError(t, w)
	assert.Equal(t, dto.ErrCodeValidation, errInfo.Code)
	require.Len(t, errInfo.Details, 1)
	assert.Equal(t, dto.ErrCodeValidationFormat, errInfo.Details[0].Code)
}

func TestHandleBindingError_BadUUIDIs422(t *testing.T) {
	router := validationRouter(t)

	w := postJSON(router, `{"patient_id":"not-a-uuid"}`)

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, dto.ErrCodeValidationFormat, decodeError(t, w).Code)
}

func TestDiscountTypeValidator_AcceptsKnownKinds(t *testing.T) {
	router := validationRouter(t)

	body := `{"patient_id":"` + uuid.NewString() + `","items":[{"quantity":1,"discount_type":"percentage"},{"quantity":2,"discount_type":"fixed"},{"quantity":3}]}`
	w := postJSON(router, body)

	assert.Equal(t, http.StatusOK, w.Code)
}
