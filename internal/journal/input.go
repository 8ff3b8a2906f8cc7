// ABOUTME: Validated inputs for creating check-ins, steps and experiments
// ABOUTME: Validation failures unwrap to ErrInvalidInput

package journal

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// NewCheckIn is the input to AddCheckIn. An empty Date means today.
type NewCheckIn struct {
	Date  string    `json:"date" validate:"omitempty,datetime=2006-01-02"`
	Mood  int       `json:"mood" validate:"min=1,max=5"`
	Focus FocusArea `json:"focus" validate:"oneof=work study health relationship other"`
	Note  string    `json:"note,omitempty" validate:"max=2000"`
}

// NewStep is the input to PushStep.
type NewStep struct {
	QID        string `json:"qid" validate:"required"`
	Question   string `json:"question" validate:"required"`
	AnswerText string `json:"answerText,omitempty" validate:"max=8000"`
}

// NewExperiment is the input to CreateExperiment. An empty EndDate means
// the date of the last tick.
type NewExperiment struct {
	Title      string `json:"title" validate:"required,max=200"`
	Hypothesis string `json:"hypothesis" validate:"max=2000"`
	Metric     string `json:"metric" validate:"max=200"`
	StartDate  string `json:"startDate" validate:"required,datetime=2006-01-02"`
	EndDate    string `json:"endDate,omitempty" validate:"omitempty,datetime=2006-01-02"`
	Days       int    `json:"days" validate:"min=1,max=366"`
}

// ValidationError lists the inputs that failed validation.
type ValidationError struct {
	Fields []string
}

func (e *ValidationError) Error() string {
	return "invalid input: " + strings.Join(e.Fields, ", ")
}

func (e *ValidationError) Unwrap() error { return ErrInvalidInput }

func (s *Store) check(v any) error {
	err := s.validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, fe.Field())
	}
	return &ValidationError{Fields: fields}
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		return strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
	})
	return v
}
