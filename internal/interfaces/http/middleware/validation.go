package middleware

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/clinic/backend/internal/domain/ledger"
	"github.com/clinic/backend/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

// SetupValidator configures gin's validator: errors name fields by their
// JSON (or form) tag and the discount_type tag accepts the ledger discount
// kinds.
func SetupValidator() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return nil
	}
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			name = strings.SplitN(fld.Tag.Get("form"), ",", 2)[0]
		}
		return name
	})
	return v.RegisterValidation("discount_type", validateDiscountType)
}

func validateDiscountType(fl validator.FieldLevel) bool {
	return ledger.DiscountType(fl.Field().String()).IsValid()
}

// FormatValidationErrors formats validation errors into a standard response
func FormatValidationErrors(err error, requestID string) dto.Response {
	var details []dto.ValidationDetail

	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		for _, e := range validationErrors {
			details = append(details, dto.ValidationDetail{
				Field:   validationPath(e),
				Message: getValidationMessage(e),
				Code:    validationCode(e),
			})
		}
	}

	return dto.NewValidationErrorResponse("Request validation failed", requestID, details)
}

// HandleBindingError answers a failed ShouldBind call. Unreadable JSON is a
// 400, oversized bodies a 413 and everything the decoder or validator
// rejected a 422.
func HandleBindingError(c *gin.Context, err error) {
	requestID := c.GetString(RequestIDKey)

	var (
		syntaxErr      *json.SyntaxError
		maxBytesErr    *http.MaxBytesError
		typeErr        *json.UnmarshalTypeError
		validationErrs validator.ValidationErrors
	)
	switch {
	case errors.As(err, &maxBytesErr):
		c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge,
			dto.NewErrorResponseWithRequestID(dto.ErrCodeRequestTooLarge, "Request body exceeds maximum allowed size", requestID))
	case errors.As(err, &syntaxErr), errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		c.AbortWithStatusJSON(http.StatusBadRequest,
			dto.NewErrorResponseWithRequestID(dto.ErrCodeInvalidJSON, "Request body is not valid JSON", requestID))
	case errors.As(err, &validationErrs):
		c.AbortWithStatusJSON(http.StatusUnprocessableEntity, FormatValidationErrors(err, requestID))
	case errors.As(err, &typeErr):
		c.AbortWithStatusJSON(http.StatusUnprocessableEntity,
			dto.NewValidationErrorResponse("Request validation failed", requestID, []dto.ValidationDetail{{
				Field:   typeErr.Field,
				Message: "Must be of type " + typeErr.Type.String(),
				Code:    dto.ErrCodeValidationFormat,
			}}))
	default:
		c.AbortWithStatusJSON(http.StatusUnprocessableEntity,
			dto.NewErrorResponseWithRequestID(dto.ErrCodeValidationFormat, err.Error(), requestID))
	}
}

// validationPath drops the top-level struct name, so "InvoiceRequest.items[0].quantity"
// becomes "items[0].quantity".
func validationPath(e validator.FieldError) string {
	ns := e.Namespace()
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return e.Field()
}

func validationCode(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return dto.ErrCodeValidationRequired
	case "min", "max", "gt", "gte", "lt", "lte":
		return dto.ErrCodeValidationRange
	default:
		return dto.ErrCodeValidationFormat
	}
}

func getValidationMessage(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "This field is required"
	case "min":
		if e.Kind() == reflect.String {
			return "Must be at least " + e.Param() + " characters"
		}
		if e.Kind() == reflect.Slice {
			return "Must contain at least " + e.Param() + " items"
		}
		return "Must be at least " + e.Param()
	case "max":
		if e.Kind() == reflect.String {
			return "Must be at most " + e.Param() + " characters"
		}
		return "Must be at most " + e.Param()
	case "uuid":
		return "Invalid UUID format"
	case "oneof":
		return "Must be one of: " + e.Param()
	case "discount_type":
		return "Must be one of: fixed percentage"
	case "gt":
		return "Must be greater than " + e.Param()
	case "gte":
		return "Must be greater than or equal to " + e.Param()
	default:
		return "Invalid value"
	}
}
