package processor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "csstcli/internal/errors"
	"csstcli/pkg/contracts/domain"
)

func TestFindIndexAfterXHours(t *testing.T) {
	reactor := newReactor(t)

	assert.Equal(t, 4, FindIndexAfterXHours(reactor, 0))
	assert.Equal(t, 6, FindIndexAfterXHours(reactor, 30.0/60))
	assert.Equal(t, 10, FindIndexAfterXHours(reactor, 5))
	assert.Equal(t, 0, FindIndexAfterXHours(reactor, -1))
	assert.Equal(t, 0, FindIndexAfterXHours(nil, 1))
}

// linspace returns n evenly spaced values from start to stop inclusive
func linspace(start, stop float64, n int) []float64 {
	out := make([]float64, n)
	step := (stop - start) / float64(n-1)
	for i := range out {
		out[i] = start + float64(i)*step
	}
	return out
}

func TestFindIndexAfterSampleTuneAndLoad_Monotonic(t *testing.T) {
	times := linspace(0, 1.4, 14)
	exp := domain.NewExperiment("linspace.csv")
	exp.TimeSinceExperimentStart = &domain.PropertyValues{Name: domain.PropertyTime, Unit: "hour", Values: times}
	reactor := exp.AddReactor("PEG", "MeOH", domain.PropertyValue{Name: domain.PropertyConcentration, Unit: "mg/ml", Value: 1}, 1,
		&domain.PropertyValues{Name: domain.PropertyTransmission, Unit: "%", Values: make([]float64, len(times))})

	assert.Equal(t, 1, FindIndexAfterSampleTuneAndLoad(reactor, 0))
	assert.Equal(t, 1, FindIndexAfterSampleTuneAndLoad(reactor, DefaultSkipHours))

	previous := 0
	for _, skip := range linspace(0, 1.5, 31) {
		idx := FindIndexAfterSampleTuneAndLoad(reactor, skip)
		assert.GreaterOrEqual(t, idx, previous, "skip %g", skip)
		if idx < len(times) {
			assert.Greater(t, times[idx], skip)
		}
		if idx > 0 {
			assert.LessOrEqual(t, times[idx-1], skip)
		}
		previous = idx
	}
	assert.Equal(t, len(times), previous)
}

func holdFor(value float64, unit string) domain.TemperatureHold {
	return domain.TemperatureHold{
		At:  domain.PropertyValue{Name: domain.PropertyTemperature, Unit: "°C", Value: 20},
		For: domain.PropertyValue{Name: domain.PropertyTime, Unit: unit, Value: value},
	}
}

func TestTuneAndLoadDuration(t *testing.T) {
	heat := domain.TemperatureChange{
		Setting: domain.TemperatureHeat,
		To:      domain.PropertyValue{Name: domain.PropertyTemperature, Unit: "°C", Value: 20},
		Rate:    domain.PropertyValue{Name: domain.PropertyTemperatureChangeRate, Unit: "°C/min", Value: 5},
	}

	tests := []struct {
		name    string
		program *domain.TemperatureProgram
		want    float64
	}{
		{name: "nil program", program: nil, want: 0},
		{
			name: "seconds and minutes",
			program: &domain.TemperatureProgram{
				SolventTune: []domain.TemperatureStep{heat, holdFor(1800, "sec")},
				SampleLoad:  []domain.TemperatureStep{holdFor(30, "min")},
			},
			want: 1,
		},
		{
			name: "experiment phase holds are not counted",
			program: &domain.TemperatureProgram{
				SampleLoad: []domain.TemperatureStep{holdFor(2, "hour")},
				Experiment: []domain.TemperatureStep{holdFor(10, "hour")},
			},
			want: 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := TuneAndLoadDuration(tt.program)
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-12)
		})
	}
}

func TestTuneAndLoadDuration_UnknownUnit(t *testing.T) {
	program := &domain.TemperatureProgram{SolventTune: []domain.TemperatureStep{holdFor(1, "fortnight")}}
	_, err := TuneAndLoadDuration(program)
	assert.ErrorIs(t, err, apperrors.ErrUnsupportedFeature)
}

func TestFindIndexAfterProgramTuneAndLoad(t *testing.T) {
	reactor := newReactor(t)
	reactor.Experiment().TemperatureProgram = &domain.TemperatureProgram{
		SolventTune: []domain.TemperatureStep{holdFor(15, "min")},
		SampleLoad:  []domain.TemperatureStep{holdFor(900, "sec")},
	}

	// 0.5 h of holds: first time above 0.5 is index 6
	idx, err := FindIndexAfterProgramTuneAndLoad(reactor, 0)
	require.NoError(t, err)
	assert.Equal(t, 6, idx)

	idx, err = FindIndexAfterProgramTuneAndLoad(reactor, 0.25)
	require.NoError(t, err)
	assert.Equal(t, 7, idx)
}
