package validator

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	apperrors "coachdesk/pkg/errors"
	"coachdesk/pkg/model"
)

// SessionValidator validates sessions before they reach the store.
type SessionValidator interface {
	Validate(session *model.Session) error
	ValidateUpdate(update *model.SessionUpdate) error
}

type sessionValidator struct {
	validate *validator.Validate
}

func NewSessionValidator() SessionValidator {
	return &sessionValidator{
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (v *sessionValidator) Validate(session *model.Session) error {
	if session == nil {
		return apperrors.InvalidInput("session cannot be nil")
	}

	if err := v.validate.Struct(session); err != nil {
		return translateValidationErrors(err)
	}

	if !strictClock(session.Time) {
		return apperrors.Validation("time must match format 15:04", nil)
	}

	// Cross-field rules the struct tags cannot express. Exactly one of
	// location/meeting_link is populated, matching the session type.
	switch session.Type {
	case model.TypeInPerson:
		if strings.TrimSpace(session.Location) == "" {
			return apperrors.Validation("location is required for in-person sessions", nil)
		}
		if strings.TrimSpace(session.MeetingLink) != "" {
			return apperrors.Validation("meeting_link must be empty for in-person sessions", nil)
		}
	case model.TypeVirtual:
		if strings.TrimSpace(session.MeetingLink) == "" {
			return apperrors.Validation("meeting_link is required for virtual sessions", nil)
		}
		if strings.TrimSpace(session.Location) != "" {
			return apperrors.Validation("location must be empty for virtual sessions", nil)
		}
	}

	return nil
}

// strictClock rejects times the datetime tag lets through, like "9:30":
// the stored encoding is always zero-padded HH:MM.
func strictClock(clock string) bool {
	return len(clock) == len("15:04")
}

func (v *sessionValidator) ValidateUpdate(update *model.SessionUpdate) error {
	if update == nil {
		return apperrors.InvalidInput("update cannot be nil")
	}

	if err := v.validate.Struct(update); err != nil {
		return translateValidationErrors(err)
	}

	if update.Time != nil && !strictClock(*update.Time) {
		return apperrors.Validation("time must match format 15:04", nil)
	}

	return nil
}

// translateValidationErrors converts validator errors into client-facing
// messages keyed on the failing field and tag.
func translateValidationErrors(err error) error {
	validationErrors, ok := err.(validator.ValidationErrors)
	if !ok {
		return apperrors.Validation(err.Error(), nil)
	}

	messages := make([]string, 0, len(validationErrors))
	fields := make(map[string]any, len(validationErrors))
	for _, fieldErr := range validationErrors {
		msg := describeFieldError(fieldErr)
		messages = append(messages, msg)
		fields[strings.ToLower(fieldErr.Field())] = msg
	}

	return apperrors.Validation(strings.Join(messages, "; "), map[string]any{"fields": fields})
}

func describeFieldError(fieldErr validator.FieldError) string {
	field := strings.ToLower(fieldErr.Field())

	switch fieldErr.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "min":
		return fmt.Sprintf("%s must be at least %s", field, fieldErr.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s", field, fieldErr.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, fieldErr.Param())
	case "datetime":
		return fmt.Sprintf("%s must match format %s", field, fieldErr.Param())
	case "url":
		return fmt.Sprintf("%s must be a valid URL", field)
	case "mongodb":
		return fmt.Sprintf("%s must be a valid object ID", field)
	default:
		return fmt.Sprintf("%s is invalid", field)
	}
}
