// Package validate is the schema boundary for AI-extracted connect-card
// payloads. Nothing reaches the normalizer or the pending queue without
// passing through Validate.
package validate

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rotisserie/eris"
)

// ErrInvalidPayload is wrapped by Result.Err for every rejected payload.
var ErrInvalidPayload = eris.New("validate: invalid payload")

// Field bounds.
const (
	MaxNameLen          = 200
	MaxEmailLen         = 255
	MaxPhoneLen         = 50
	MaxPrayerRequestLen = 5000
	MaxInterests        = 20
	MaxInterestLen      = 100
	MaxKeywords         = 10
	MaxKeywordLen       = 50
)

// Payload is the shape the extraction step must produce. Every field is
// individually nullable: a card carrying only a prayer request is valid.
type Payload struct {
	Name          *string  `json:"name" validate:"omitnil,max=200"`
	Email         *string  `json:"email" validate:"omitnil,max=255,email"`
	Phone         *string  `json:"phone" validate:"omitnil,max=50"`
	PrayerRequest *string  `json:"prayer_request" validate:"omitnil,max=5000"`
	VisitStatus   *string  `json:"visit_status"`
	Interests     []string `json:"interests" validate:"omitnil,max=20,dive,max=100"`
	Keywords      []string `json:"keywords" validate:"omitnil,max=10,dive,max=50"`
}

// FieldError describes one rejected field.
type FieldError struct {
	Field   string `json:"field"`
	Rule    string `json:"rule"`
	Param   string `json:"param,omitempty"`
	Message string `json:"message"`
}

// Result is the outcome of Validate. Data is set only on success.
type Result struct {
	Success bool         `json:"success"`
	Data    *Payload     `json:"data,omitempty"`
	Errors  []FieldError `json:"errors,omitempty"`
}

// Err collapses a failed result into a single error, or nil on success.
func (r Result) Err() error {
	if r.Success {
		return nil
	}
	msgs := make([]string, len(r.Errors))
	for i, fe := range r.Errors {
		msgs[i] = fe.Message
	}
	return eris.Wrap(ErrInvalidPayload, strings.Join(msgs, "; "))
}

var schema = newSchema()

func newSchema() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate decodes raw as a Payload and checks every bound. Wrong JSON types,
// a non-object document, trailing data, or any exceeded bound fail the
// whole payload; nothing is truncated.
func Validate(raw []byte) Result {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return fail(FieldError{Field: "", Rule: "object", Message: "payload must be a JSON object"})
	}

	dec := json.NewDecoder(bytes.NewReader(trimmed))
	var p Payload
	if err := dec.Decode(&p); err != nil {
		return fail(decodeError(err))
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return fail(FieldError{Field: "", Rule: "object", Message: "unexpected data after payload"})
	}

	return Struct(&p)
}

// Struct validates an already-decoded payload.
func Struct(p *Payload) Result {
	if p == nil {
		return fail(FieldError{Rule: "object", Message: "payload is null"})
	}
	err := schema.Struct(p)
	if err == nil {
		return Result{Success: true, Data: p}
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fail(FieldError{Rule: "schema", Message: err.Error()})
	}
	out := make([]FieldError, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, FieldError{
			Field:   fe.Field(),
			Rule:    fe.Tag(),
			Param:   fe.Param(),
			Message: message(fe),
		})
	}
	return Result{Errors: out}
}

func fail(fe FieldError) Result {
	return Result{Errors: []FieldError{fe}}
}

func decodeError(err error) FieldError {
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		return FieldError{
			Field:   typeErr.Field,
			Rule:    "type",
			Param:   typeErr.Type.String(),
			Message: fmt.Sprintf("%s: expected %s, got %s", typeErr.Field, typeErr.Type, typeErr.Value),
		}
	}
	return FieldError{Rule: "json", Message: "malformed payload: " + err.Error()}
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "max":
		if fe.Kind() == reflect.Slice {
			return fmt.Sprintf("%s: at most %s entries allowed", fe.Field(), fe.Param())
		}
		return fmt.Sprintf("%s: exceeds %s characters", fe.Field(), fe.Param())
	case "email":
		return fmt.Sprintf("%s: not a valid email address", fe.Field())
	default:
		return fmt.Sprintf("%s: failed %s", fe.Field(), fe.Tag())
	}
}
