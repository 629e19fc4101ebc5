// Package validation adapts go-playground/validator to echo and renders its
// failures as field-level apierr validation errors.
package validation

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/medrec/medrec/internal/platform/apierr"
)

const (
	MsgRequired    = "This field is required."
	MsgInvalidDate = "Date has wrong format. Use one of these formats instead: YYYY-MM-DD."
	DateLayout     = "2006-01-02"
)

var usernamePattern = regexp.MustCompile(`^[\w.@+-]+$`)

// Validator implements echo.Validator.
type Validator struct {
	v *validator.Validate
}

func New() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		if name == "" {
			return fld.Name
		}
		return name
	})
	_ = v.RegisterValidation("isodate", func(fl validator.FieldLevel) bool {
		_, err := time.Parse(DateLayout, fl.Field().String())
		return err == nil
	})
	_ = v.RegisterValidation("username", func(fl validator.FieldLevel) bool {
		return usernamePattern.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
	return &Validator{v: v}
}

// Validate returns nil or an *apierr.Error of KindValidation.
func (cv *Validator) Validate(i interface{}) error {
	err := cv.v.Struct(i)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	fields := apierr.FieldErrors{}
	for _, fe := range verrs {
		fields.Add(fe.Field(), message(fe))
	}
	return apierr.Validation(fields)
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", "required_without":
		return MsgRequired
	case "notblank":
		return "This field may not be blank."
	case "max":
		return fmt.Sprintf("Ensure this field has no more than %s characters.", fe.Param())
	case "min":
		return fmt.Sprintf("Ensure this field has at least %s characters.", fe.Param())
	case "oneof":
		return fmt.Sprintf("\"%v\" is not a valid choice.", deref(fe.Value()))
	case "email":
		return "Enter a valid email address."
	case "isodate":
		return MsgInvalidDate
	case "gt", "gte":
		return fmt.Sprintf("Ensure this value is greater than or equal to %s.", fe.Param())
	case "username":
		return "Enter a valid username. This value may contain only letters, numbers, and @/./+/-/_ characters."
	}
	return fmt.Sprintf("Failed on the %q rule.", fe.Tag())
}

func deref(v interface{}) interface{} {
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Ptr && !rv.IsNil() {
		return rv.Elem().Interface()
	}
	return v
}

// FieldsOf extracts field errors from a Validate result. Any other error is
// returned unchanged.
func FieldsOf(err error) (apierr.FieldErrors, error) {
	if err == nil {
		return apierr.FieldErrors{}, nil
	}
	var apiErr *apierr.Error
	if errors.As(err, &apiErr) && apiErr.Kind == apierr.KindValidation {
		return apiErr.Fields, nil
	}
	return nil, err
}

// DecodeJSON decodes the request body onto dst. Keys absent from the body
// leave dst untouched, which is how partial updates are merged onto the
// current state. An empty body decodes as {}.
func DecodeJSON(c echo.Context, dst interface{}) error {
	data, err := ReadBody(c)
	if err != nil {
		return err
	}
	return Unmarshal(data, dst)
}

// ReadBody reads the whole request body. Errors raised by the body reader
// itself, such as the 413 from the body limit, are returned unchanged.
func ReadBody(c echo.Context) ([]byte, error) {
	body := c.Request().Body
	if body == nil || body == http.NoBody {
		return nil, nil
	}
	data, err := io.ReadAll(body)
	if err != nil {
		var he *echo.HTTPError
		if errors.As(err, &he) {
			return nil, he
		}
		return nil, echo.NewHTTPError(http.StatusBadRequest, "could not read request body").SetInternal(err)
	}
	return data, nil
}

// Unmarshal decodes a JSON object onto dst with the same merge semantics
// as DecodeJSON.
func Unmarshal(data []byte, dst interface{}) error {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	err := json.Unmarshal(data, dst)
	if err == nil {
		return nil
	}

	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) && typeErr.Field != "" {
		return apierr.Field(typeErr.Field, typeMessage(typeErr))
	}
	var syntaxErr *json.SyntaxError
	if errors.As(err, &syntaxErr) {
		return echo.NewHTTPError(http.StatusBadRequest,
			fmt.Sprintf("JSON parse error - %s", syntaxErr.Error()))
	}
	if typeErr != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid data. Expected a dictionary.")
	}
	return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("JSON parse error - %s", err.Error()))
}

func typeMessage(e *json.UnmarshalTypeError) string {
	switch e.Type.Kind() {
	case reflect.Int, reflect.Int32, reflect.Int64:
		return "A valid integer is required."
	case reflect.Bool:
		return "Must be a valid boolean."
	case reflect.String:
		return "Not a valid string."
	case reflect.Ptr:
		switch e.Type.Elem().Kind() {
		case reflect.Int, reflect.Int32, reflect.Int64:
			return "A valid integer is required."
		case reflect.Bool:
			return "Must be a valid boolean."
		}
		return "Not a valid string."
	}
	return "Invalid value."
}
