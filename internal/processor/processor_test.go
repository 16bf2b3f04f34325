package processor

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"csstcli/pkg/contracts/domain"
)

// newReactor builds a one-reactor experiment. Sorted by temperature the
// samples are
//
//	temp  = [5, 5, 10, 10, 15, 15, 20, 20, 20, 20]
//	trans = [5, 4, 20, 22, 50, 45, 78, 78, 79, 80]
func newReactor(t *testing.T) *domain.Reactor {
	t.Helper()
	temps := []float64{5, 10, 15, 20, 20, 20, 20, 15, 10, 5}
	trans := []float64{5, 20, 50, 78, 79, 80, 78, 45, 22, 4}
	times := []float64{0, 0, 0, 0, 0.25, 0.5, 0.75, 1, 1.25, 1.5}

	exp := domain.NewExperiment("fixture.csv")
	exp.ActualTemperature = &domain.PropertyValues{Name: domain.PropertyTemperature, Unit: "°C", Values: temps}
	exp.SetTemperature = &domain.PropertyValues{Name: domain.PropertyTemperature, Unit: "°C", Values: temps}
	exp.TimeSinceExperimentStart = &domain.PropertyValues{Name: domain.PropertyTime, Unit: "hour", Values: times}
	exp.StirRates = &domain.PropertyValues{Name: domain.PropertyStirRate, Unit: "rpm", Values: make([]float64, len(temps))}

	return exp.AddReactor("PEG", "MeOH",
		domain.PropertyValue{Name: domain.PropertyConcentration, Unit: "mg/ml", Value: 5},
		1,
		&domain.PropertyValues{Name: domain.PropertyTransmission, Unit: "%", Values: trans})
}

func TestProcessReactorTransmissionAtTemp(t *testing.T) {
	reactor := newReactor(t)

	tests := []struct {
		name      string
		temp      float64
		tempRange float64
		average   float64
		median    float64
		std       float64
		count     int
	}{
		{name: "exact match", temp: 5, tempRange: 0, average: 4.5, median: 4.5, std: 0.5, count: 2},
		{name: "window too narrow to reach the next set point", temp: 5, tempRange: 10, average: 4.5, median: 4.5, std: 0.5, count: 2},
		{name: "window reaching 10 degrees", temp: 5, tempRange: 11, average: 12.75, median: 12.5, std: 8.288, count: 4},
		{name: "wide window around 15 degrees", temp: 15, tempRange: 11, average: 56.5, median: 64, std: 24.187, count: 8},
		{name: "four samples at 20 degrees", temp: 20, tempRange: 0, average: 78.75, median: 78.5, std: 0.829, count: 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ProcessReactorTransmissionAtTemp(reactor, tt.temp, tt.tempRange)
			require.True(t, ok)
			assert.Equal(t, tt.temp, got.AverageTemperature)
			assert.Equal(t, tt.tempRange, got.TemperatureRange)
			assert.InDelta(t, tt.average, got.AverageTransmission, 1e-9)
			assert.InDelta(t, tt.median, got.MedianTransmission, 1e-9)
			assert.InDelta(t, tt.std, got.TransmissionStd, 5e-4)
			assert.Equal(t, tt.count, got.SampleCount)
		})
	}
}

func TestProcessReactorTransmissionAtTemp_Empty(t *testing.T) {
	reactor := newReactor(t)

	_, ok := ProcessReactorTransmissionAtTemp(reactor, 0, 0)
	assert.False(t, ok)

	_, ok = ProcessReactorTransmissionAtTemp(reactor, 5.1, 0)
	assert.False(t, ok)

	_, ok = ProcessReactorTransmissionAtTemp(reactor, 25, 1)
	assert.False(t, ok)

	_, ok = ProcessReactorTransmissionAtTemp(nil, 5, 0)
	assert.False(t, ok)
}

func TestProcessReactorTransmissionAtTemp_UpperBoundExclusive(t *testing.T) {
	reactor := newReactor(t)

	// [4, 5) excludes the 5 degree samples, [5, 6) includes them
	_, ok := ProcessReactorTransmissionAtTemp(reactor, 4.5, 1)
	assert.False(t, ok)

	got, ok := ProcessReactorTransmissionAtTemp(reactor, 5.5, 1)
	require.True(t, ok)
	assert.Equal(t, 2, got.SampleCount)
}

func TestProcessReactorTransmissionAtTemp_Tolerance(t *testing.T) {
	reactor := newReactor(t)
	proc := New(nil, Options{Tolerance: 0.2})

	got, ok := proc.ProcessReactorTransmissionAtTemp(reactor, 5.1, 0)
	require.True(t, ok)
	assert.InDelta(t, 4.5, got.AverageTransmission, 1e-9)
	assert.Equal(t, DefaultBucketWidth, proc.Options().BucketWidth)
}

func TestProcessReactorTransmissionAtTemps(t *testing.T) {
	reactor := newReactor(t)

	tests := []struct {
		name      string
		temps     []float64
		tempRange float64
		wantTemps []float64
		averages  []float64
	}{
		{
			name:      "exact set points",
			temps:     []float64{5, 10, 15, 20},
			tempRange: 0,
			wantTemps: []float64{5, 10, 15, 20},
			averages:  []float64{4.5, 21, 47.5, 78.75},
		},
		{
			name:      "offset windows drop the empty bucket",
			temps:     []float64{6, 11, 16, 19, 21},
			tempRange: 2,
			wantTemps: []float64{6, 11, 16, 21},
			averages:  []float64{4.5, 21, 47.5, 78.75},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buckets := ProcessReactorTransmissionAtTemps(reactor, tt.temps, tt.tempRange)
			var temps, averages []float64
			for _, b := range buckets {
				temps = append(temps, b.AverageTemperature)
				averages = append(averages, b.AverageTransmission)
			}
			assert.Equal(t, tt.wantTemps, temps)
			assert.InDeltaSlice(t, tt.averages, averages, 1e-9)
		})
	}
}

func TestProcessReactor(t *testing.T) {
	reactor := newReactor(t)

	processed := ProcessReactor(reactor)
	assert.Same(t, reactor, processed.UnprocessedReactor)

	var temps, averages []float64
	for _, b := range processed.Temperatures {
		temps = append(temps, b.AverageTemperature)
		averages = append(averages, b.AverageTransmission)
		assert.Equal(t, 1.0, b.TemperatureRange)
	}
	assert.Equal(t, []float64{5, 10, 15, 20}, temps)
	assert.InDeltaSlice(t, []float64{4.5, 21, 47.5, 78.75}, averages, 1e-9)
}

func TestProcessReactorFrom(t *testing.T) {
	reactor := newReactor(t)
	proc := New(nil, DefaultOptions())

	// from index 4 the samples are temp [20,20,20,15,10,5]
	processed := proc.ProcessReactorFrom(reactor, 4)
	var temps []float64
	for _, b := range processed.Temperatures {
		temps = append(temps, b.AverageTemperature)
	}
	assert.Equal(t, []float64{5, 10, 15, 20}, temps)
	assert.InDelta(t, 4.0, processed.Temperatures[0].AverageTransmission, 1e-9)
	assert.InDelta(t, 79.0, processed.Temperatures[3].AverageTransmission, 1e-9)

	assert.Empty(t, proc.ProcessReactorFrom(reactor, 100).Temperatures)
}

func TestProcessReactorTransmissionAtTempsFrom(t *testing.T) {
	reactor := newReactor(t)
	proc := New(nil, DefaultOptions())

	buckets := proc.ProcessReactorTransmissionAtTempsFrom(reactor, 4, []float64{5, 12, 20}, 0)
	require.Len(t, buckets, 2)
	assert.Equal(t, 5.0, buckets[0].AverageTemperature)
	assert.InDelta(t, 4.0, buckets[0].AverageTransmission, 1e-9)
	assert.Equal(t, 1, buckets[0].SampleCount)
	assert.Equal(t, 20.0, buckets[1].AverageTemperature)
	assert.InDelta(t, 79.0, buckets[1].AverageTransmission, 1e-9)
	assert.Equal(t, 3, buckets[1].SampleCount)
}

func TestProcessReactor_NoSamples(t *testing.T) {
	exp := domain.NewExperiment("empty.csv")
	exp.ActualTemperature = &domain.PropertyValues{Name: domain.PropertyTemperature, Unit: "°C", Values: []float64{}}
	reactor := exp.AddReactor("PEG", "MeOH", domain.PropertyValue{Name: domain.PropertyConcentration, Unit: "mg/ml", Value: 1}, 1,
		&domain.PropertyValues{Name: domain.PropertyTransmission, Unit: "%", Values: []float64{}})

	processed := ProcessReactor(reactor)
	assert.NotNil(t, processed.Temperatures)
	assert.Empty(t, processed.Temperatures)
}

// reactorWith builds a one-reactor experiment from explicit series
func reactorWith(temps, trans []float64) *domain.Reactor {
	exp := domain.NewExperiment("series.csv")
	exp.ActualTemperature = &domain.PropertyValues{Name: domain.PropertyTemperature, Unit: "°C", Values: temps}
	return exp.AddReactor("PEG", "MeOH", domain.PropertyValue{Name: domain.PropertyConcentration, Unit: "mg/ml", Value: 1}, 1,
		&domain.PropertyValues{Name: domain.PropertyTransmission, Unit: "%", Values: trans})
}

func TestProcessReactor_UnbucketableSpan(t *testing.T) {
	tests := []struct {
		name    string
		temps   []float64
		buckets int
	}{
		{name: "positive infinity", temps: []float64{10, math.Inf(1), 20}},
		{name: "negative infinity", temps: []float64{math.Inf(-1), 10, 20}},
		{name: "NaN samples are skipped", temps: []float64{math.NaN(), 10, 20}, buckets: 2},
		{name: "only NaN", temps: []float64{math.NaN(), math.NaN(), math.NaN()}},
		{name: "huge finite span", temps: []float64{-1e9, 10, 1e9}},
		{name: "span at the limit", temps: []float64{0, 999.5, 999.5}, buckets: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reactor := reactorWith(tt.temps, []float64{10, 20, 30})
			var processed domain.ProcessedReactor
			require.NotPanics(t, func() { processed = ProcessReactor(reactor) })
			assert.NotNil(t, processed.Temperatures)
			assert.Len(t, processed.Temperatures, tt.buckets)
		})
	}
}

func TestProcessReactorTransmissionAtTemp_ExactInfinity(t *testing.T) {
	reactor := reactorWith([]float64{math.Inf(1), 10}, []float64{50, 60})

	got, ok := ProcessReactorTransmissionAtTemp(reactor, math.Inf(1), 0)
	require.True(t, ok)
	assert.Equal(t, 1, got.SampleCount)
	assert.Equal(t, 50.0, got.AverageTransmission)

	_, ok = ProcessReactorTransmissionAtTemp(reactor, math.Inf(-1), 0)
	assert.False(t, ok)
}

func TestMedian(t *testing.T) {
	assert.Equal(t, 3.0, median([]float64{5, 1, 3}))
	assert.Equal(t, 2.5, median([]float64{4, 1, 3, 2}))

	input := []float64{3, 1, 2}
	median(input)
	assert.Equal(t, []float64{3, 1, 2}, input)
}
