package validation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "csstcli/internal/errors"
	"csstcli/pkg/contracts/domain"
)

func validExperiment() *domain.Experiment {
	exp := domain.NewExperiment("run.csv")
	exp.Version = "1014"
	exp.StartOfExperiment = time.Date(2022, 2, 24, 14, 22, 0, 0, time.UTC)
	series := func(name domain.PropertyName, unit string) *domain.PropertyValues {
		return &domain.PropertyValues{Name: name, Unit: unit, Values: []float64{1, 2, 3}}
	}
	exp.TimeSinceExperimentStart = &domain.PropertyValues{Name: domain.PropertyTime, Unit: "hour", Values: []float64{0, 0.5, 0.5}}
	exp.SetTemperature = series(domain.PropertyTemperature, "°C")
	exp.ActualTemperature = series(domain.PropertyTemperature, "°C")
	exp.StirRates = series(domain.PropertyStirRate, "rpm")
	conc := domain.PropertyValue{Name: domain.PropertyConcentration, Unit: "mg/ml", Value: 5}
	exp.AddReactor("PEG", "MeOH", conc, 1, series(domain.PropertyTransmission, "%"))
	exp.AddReactor("PVP", "MeOH", conc, 2, series(domain.PropertyTransmission, "%"))
	return exp
}

func TestExperimentValidator_Valid(t *testing.T) {
	assert.NoError(t, NewExperimentValidator().Validate(validExperiment()))
}

func TestExperimentValidator_Problems(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*domain.Experiment)
		message string
	}{
		{
			name:    "nil time series",
			mutate:  func(e *domain.Experiment) { e.TimeSinceExperimentStart = nil },
			message: "time_since_experiment_start is required",
		},
		{
			name:    "decreasing time",
			mutate:  func(e *domain.Experiment) { e.TimeSinceExperimentStart.Values = []float64{0, 1, 0.5} },
			message: "time_since_experiment_start must be non-decreasing",
		},
		{
			name:    "non numeric version",
			mutate:  func(e *domain.Experiment) { e.Version = "v14" },
			message: "version must be numeric",
		},
		{
			name:    "duplicate reactor",
			mutate:  func(e *domain.Experiment) { e.Reactors[1].ReactorNumber = 1 },
			message: "reactors must not repeat ReactorNumber",
		},
		{
			name:    "reactor out of block",
			mutate:  func(e *domain.Experiment) { e.Reactors[1].ReactorNumber = 17 },
			message: "reactors[1].reactor_number must be less than or equal to 16",
		},
		{
			name:    "missing solvent",
			mutate:  func(e *domain.Experiment) { e.Reactors[0].Solvent = "" },
			message: "reactors[0].solvent is required",
		},
		{
			name:    "missing start",
			mutate:  func(e *domain.Experiment) { e.StartOfExperiment = time.Time{} },
			message: "start_of_experiment is required",
		},
		{
			name:    "misaligned series",
			mutate:  func(e *domain.Experiment) { e.Reactors[0].Transmission.Values = []float64{1} },
			message: "series lengths differ",
		},
	}

	v := NewExperimentValidator()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exp := validExperiment()
			tt.mutate(exp)
			err := v.Validate(exp)
			require.Error(t, err)
			assert.ErrorIs(t, err, apperrors.ErrValidation)
			assert.Contains(t, err.Error(), tt.message)
		})
	}
}

func TestExperimentValidator_Nil(t *testing.T) {
	assert.ErrorIs(t, NewExperimentValidator().Validate(nil), apperrors.ErrValidation)
}
