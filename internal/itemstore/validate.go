package itemstore

import (
	"errors"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/itemdesk/internal/apperr"
	"github.com/starford/itemdesk/internal/models"
)

// User-facing validation messages.
const (
	MsgName        = "name must be at least 3 characters and cannot be empty"
	MsgDescription = "description cannot be empty"
	MsgPriority    = "priority must be one of high, medium, low"
)

// MinNameLength is the shortest accepted item name, in runes.
const MinNameLength = 3

// Fields are the user-editable attributes of an item.
type Fields struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Priority    models.Priority `json:"priority"`
}

// normalize trims whitespace and maps priority aliases.
func (f Fields) normalize() Fields {
	f.Name = strings.TrimSpace(f.Name)
	f.Description = strings.TrimSpace(f.Description)
	if p, ok := models.ParsePriority(string(f.Priority)); ok {
		f.Priority = p
	}
	return f
}

// Validate checks f as given. Callers normally go through Store.Add and
// Store.Update, which normalise first.
func (f Fields) Validate() error {
	err := validation.ValidateStruct(&f,
		validation.Field(&f.Name,
			validation.Required.Error(MsgName),
			validation.RuneLength(MinNameLength, 0).Error(MsgName),
		),
		validation.Field(&f.Description,
			validation.Required.Error(MsgDescription),
		),
		validation.Field(&f.Priority,
			validation.Required.Error(MsgPriority),
			validation.In(models.PriorityHigh, models.PriorityMedium, models.PriorityLow).Error(MsgPriority),
		),
	)
	if err == nil {
		return nil
	}
	var verrs validation.Errors
	if !errors.As(err, &verrs) {
		return err
	}
	return newValidationError(verrs)
}

// Problem is one failed field.
type Problem struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError lists every field that failed, in form order.
type ValidationError struct {
	Problems []Problem
}

var fieldOrder = []string{"name", "description", "priority"}

func newValidationError(verrs validation.Errors) *ValidationError {
	ve := &ValidationError{}
	for _, field := range fieldOrder {
		if e, ok := verrs[field]; ok && e != nil {
			ve.Problems = append(ve.Problems, Problem{Field: field, Message: e.Error()})
		}
	}
	return ve
}

func (e *ValidationError) Error() string {
	msgs := e.Messages()
	if len(msgs) == 0 {
		return "validation failed"
	}
	return strings.Join(msgs, "; ")
}

// Messages returns the user-facing messages in form order.
func (e *ValidationError) Messages() []string {
	out := make([]string, len(e.Problems))
	for i, p := range e.Problems {
		out[i] = p.Message
	}
	return out
}

func (e *ValidationError) Unwrap() error { return apperr.ErrInvalid }
