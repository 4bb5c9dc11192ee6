package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"reflect"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"newsletter-go/internal/models"
)

var registerTagNames sync.Once

// useJSONFieldNames makes validator report `email` instead of `Email`.
func useJSONFieldNames() {
	registerTagNames.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" || name == "" {
				return fld.Name
			}
			return name
		})
	})
}

// NotFound is the fallback for unmatched routes and methods.
func NotFound(c *gin.Context) {
	c.JSON(http.StatusNotFound, gin.H{"ok": false, "error": "not found"})
}

func respondValidation(c *gin.Context, verr *models.ValidationError) {
	c.JSON(http.StatusBadRequest, gin.H{
		"ok":      false,
		"error":   "validation failed",
		"details": verr.Fields,
	})
}

func respondStoreError(c *gin.Context) {
	c.JSON(http.StatusInternalServerError, gin.H{
		"ok":    false,
		"error": "internal server error",
	})
}

// bindingError converts a ShouldBindJSON failure into the validation
// taxonomy. The second return is true when the body exceeded the size cap.
func bindingError(err error) (*models.ValidationError, bool) {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return nil, true
	}

	verr := &models.ValidationError{}

	var fieldErrs validator.ValidationErrors
	var typeErr *json.UnmarshalTypeError
	var syntaxErr *json.SyntaxError
	switch {
	case errors.As(err, &fieldErrs):
		for _, fe := range fieldErrs {
			verr.Add(fe.Field(), fe.Tag(), fieldMessage(fe))
		}
	case errors.Is(err, io.EOF):
		verr.Add("email", "required", "email is required")
	case errors.As(err, &typeErr):
		field := typeErr.Field
		if field == "" {
			field = "body"
		}
		verr.Add(field, "type", field+" must be a "+typeErr.Type.String())
	case errors.As(err, &syntaxErr), errors.Is(err, io.ErrUnexpectedEOF):
		verr.Add("body", "json", "request body must be valid JSON")
	default:
		verr.Add("body", "invalid", err.Error())
	}
	return verr, false
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is required"
	case "email":
		return fe.Field() + " must be a valid email address"
	case "max":
		return fe.Field() + " must be at most " + fe.Param() + " characters"
	default:
		return fe.Field() + " failed the " + fe.Tag() + " check"
	}
}
