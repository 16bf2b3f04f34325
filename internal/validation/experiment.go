package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	apperrors "csstcli/internal/errors"
	"csstcli/pkg/contracts/domain"
)

type experimentView struct {
	FileName string        `json:"file_name" validate:"required"`
	Version  string        `json:"version" validate:"required,numeric"`
	Time     []float64     `json:"time_since_experiment_start" validate:"required,min=1,nondecreasing"`
	Reactors []reactorView `json:"reactors" validate:"unique=ReactorNumber,dive"`
}

// reactor numbers are wells 1 to 16 of a Crystal 16 block
type reactorView struct {
	ReactorNumber int     `json:"reactor_number" validate:"gte=1,lte=16"`
	Polymer       string  `json:"polymer" validate:"required"`
	Solvent       string  `json:"solvent" validate:"required"`
	Conc          float64 `json:"conc" validate:"gt=0"`
	ConcUnit      string  `json:"conc_unit" validate:"required"`
}

// ExperimentValidator checks a loaded experiment before it is processed or
// stored
type ExperimentValidator struct {
	validate *validator.Validate
}

// NewExperimentValidator creates a validator with the experiment rules
// registered
func NewExperimentValidator() *ExperimentValidator {
	v := validator.New()
	_ = v.RegisterValidation("nondecreasing", isNonDecreasing)
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &ExperimentValidator{validate: v}
}

// Validate reports every problem found in exp as one validation error.
// Besides the field rules, all series must share one length and the run
// must have a start time.
func (v *ExperimentValidator) Validate(exp *domain.Experiment) error {
	if exp == nil {
		return apperrors.NewAppValidationError("experiment is nil")
	}

	var problems []string
	if err := v.validate.Struct(view(exp)); err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			return fmt.Errorf("failed to validate %s: %w", exp.FileName, err)
		}
		for _, fe := range fieldErrs {
			problems = append(problems, formatFieldError(fe))
		}
	}
	if exp.StartOfExperiment.IsZero() {
		problems = append(problems, "start_of_experiment is required")
	}
	if n, aligned := exp.SeriesLength(); !aligned {
		problems = append(problems, fmt.Sprintf("series lengths differ from time_since_experiment_start (%d samples)", n))
	}

	if len(problems) == 0 {
		return nil
	}
	return apperrors.NewAppValidationError(strings.Join(problems, "; ")).
		WithContext("file", exp.FileName)
}

func view(exp *domain.Experiment) experimentView {
	v := experimentView{
		FileName: exp.FileName,
		Version:  exp.Version,
		Reactors: make([]reactorView, 0, len(exp.Reactors)),
	}
	if exp.TimeSinceExperimentStart != nil {
		v.Time = exp.TimeSinceExperimentStart.Values
	}
	for _, r := range exp.Reactors {
		v.Reactors = append(v.Reactors, reactorView{
			ReactorNumber: r.ReactorNumber,
			Polymer:       r.Polymer,
			Solvent:       r.Solvent,
			Conc:          r.Conc.Value,
			ConcUnit:      r.Conc.Unit,
		})
	}
	return v
}

// isNonDecreasing validates float slices used for binary search
func isNonDecreasing(fl validator.FieldLevel) bool {
	field := fl.Field()
	if field.Kind() != reflect.Slice {
		return false
	}
	for i := 1; i < field.Len(); i++ {
		if field.Index(i).Float() < field.Index(i-1).Float() {
			return false
		}
	}
	return true
}

func formatFieldError(err validator.FieldError) string {
	field := err.Namespace()
	if i := strings.Index(field, "."); i >= 0 {
		field = field[i+1:]
	}
	param := err.Param()

	switch err.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "min":
		return fmt.Sprintf("%s must have at least %s entries", field, param)
	case "numeric":
		return fmt.Sprintf("%s must be numeric", field)
	case "unique":
		return fmt.Sprintf("%s must not repeat %s", field, param)
	case "nondecreasing":
		return fmt.Sprintf("%s must be non-decreasing", field)
	case "gte":
		return fmt.Sprintf("%s must be greater than or equal to %s", field, param)
	case "lte":
		return fmt.Sprintf("%s must be less than or equal to %s", field, param)
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", field, param)
	default:
		return fmt.Sprintf("%s failed %s validation", field, err.Tag())
	}
}
