package processor

import (
	"log/slog"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"csstcli/pkg/contracts/domain"
)

// DefaultBucketWidth is the window ProcessReactor queries each integer degree
// with (+/- 0.5 degrees)
const DefaultBucketWidth = 1.0

// MaxDegreeSpan bounds the number of degrees ProcessReactor buckets. Wider
// actual temperature spans yield no buckets.
const MaxDegreeSpan = 1000.0

// Options tunes the bucketing
type Options struct {
	// BucketWidth is the full window width used by ProcessReactor
	BucketWidth float64
	// Tolerance widens the exact temperature match used when the range is 0.
	// Zero keeps bit-for-bit equality.
	Tolerance float64
}

// DefaultOptions returns exact matching with one degree buckets
func DefaultOptions() Options {
	return Options{BucketWidth: DefaultBucketWidth}
}

// Processor turns raw reactor samples into per-temperature statistics
type Processor struct {
	logger *slog.Logger
	opts   Options
}

// New creates a processor. A non-positive bucket width falls back to
// DefaultBucketWidth.
func New(logger *slog.Logger, opts Options) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.BucketWidth <= 0 {
		opts.BucketWidth = DefaultBucketWidth
	}
	if opts.Tolerance < 0 {
		opts.Tolerance = 0
	}
	return &Processor{
		logger: logger.With(slog.String("component", "processor")),
		opts:   opts,
	}
}

// Options returns the effective options
func (p *Processor) Options() Options { return p.opts }

// ProcessReactorTransmissionAtTemp aggregates the transmission samples whose
// actual temperature falls in the window around temp.
//
// With tempRange 0 only samples equal to temp (within Options.Tolerance) are
// used. Otherwise the window is [temp-tempRange/2, temp+tempRange/2). The
// result echoes tempRange unchanged. ok is false when no sample matched.
func (p *Processor) ProcessReactorTransmissionAtTemp(reactor *domain.Reactor, temp, tempRange float64) (domain.ProcessedTemperature, bool) {
	return p.atTemp(reactor, 0, temp, tempRange)
}

// ProcessReactorTransmissionAtTemps runs ProcessReactorTransmissionAtTemp for
// each temperature and keeps the non-empty buckets in input order
func (p *Processor) ProcessReactorTransmissionAtTemps(reactor *domain.Reactor, temps []float64, tempRange float64) []domain.ProcessedTemperature {
	return p.atTemps(reactor, 0, temps, tempRange)
}

// ProcessReactorTransmissionAtTempsFrom is ProcessReactorTransmissionAtTemps
// restricted to samples at index start and later
func (p *Processor) ProcessReactorTransmissionAtTempsFrom(reactor *domain.Reactor, start int, temps []float64, tempRange float64) []domain.ProcessedTemperature {
	return p.atTemps(reactor, start, temps, tempRange)
}

// ProcessReactor buckets every integer degree between the floor of the lowest
// and the ceiling of the highest actual temperature
func (p *Processor) ProcessReactor(reactor *domain.Reactor) domain.ProcessedReactor {
	return p.ProcessReactorFrom(reactor, 0)
}

// ProcessReactorFrom is ProcessReactor restricted to samples at index start
// and later, e.g. the index returned by FindIndexAfterSampleTuneAndLoad
func (p *Processor) ProcessReactorFrom(reactor *domain.Reactor, start int) domain.ProcessedReactor {
	result := domain.ProcessedReactor{
		UnprocessedReactor: reactor,
		Temperatures:       []domain.ProcessedTemperature{},
	}

	temps, _ := samples(reactor, start)
	if len(temps) == 0 {
		return result
	}

	low := math.Floor(floats.Min(temps))
	high := math.Ceil(floats.Max(temps))
	if !finite(low) || !finite(high) || high-low > MaxDegreeSpan {
		p.logger.Warn("actual temperatures outside the bucketable span",
			slog.Float64("low", low),
			slog.Float64("high", high),
			slog.Float64("max_span", MaxDegreeSpan))
		return result
	}
	degrees := make([]float64, 0, int(high-low)+1)
	for t := low; t <= high; t++ {
		degrees = append(degrees, t)
	}

	result.Temperatures = p.atTemps(reactor, start, degrees, p.opts.BucketWidth)
	return result
}

func (p *Processor) atTemps(reactor *domain.Reactor, start int, temps []float64, tempRange float64) []domain.ProcessedTemperature {
	out := make([]domain.ProcessedTemperature, 0, len(temps))
	for _, temp := range temps {
		if bucket, ok := p.atTemp(reactor, start, temp, tempRange); ok {
			out = append(out, bucket)
		}
	}
	return out
}

func (p *Processor) atTemp(reactor *domain.Reactor, start int, temp, tempRange float64) (domain.ProcessedTemperature, bool) {
	temps, transmissions := samples(reactor, start)

	selected := make([]float64, 0)
	half := tempRange / 2
	for i, t := range temps {
		var in bool
		if tempRange == 0 {
			in = t == temp || math.Abs(t-temp) <= p.opts.Tolerance
		} else {
			in = t >= temp-half && t < temp+half
		}
		if in {
			selected = append(selected, transmissions[i])
		}
	}

	if len(selected) == 0 {
		p.logger.Debug("no samples in temperature window",
			slog.Float64("temperature", temp),
			slog.Float64("half_range", half))
		return domain.ProcessedTemperature{}, false
	}

	mean, std := stat.PopMeanStdDev(selected, nil)
	return domain.ProcessedTemperature{
		AverageTemperature:  temp,
		TemperatureRange:    tempRange,
		AverageTransmission: mean,
		MedianTransmission:  median(selected),
		TransmissionStd:     std,
		SampleCount:         len(selected),
	}, true
}

// samples returns the actual temperature and transmission series from index
// start, cut to their common length
func samples(reactor *domain.Reactor, start int) (temps, transmissions []float64) {
	if reactor == nil || reactor.Experiment() == nil {
		return nil, nil
	}
	actual := reactor.ActualTemperature()
	if actual == nil || reactor.Transmission == nil {
		return nil, nil
	}
	n := min(len(actual.Values), len(reactor.Transmission.Values))
	if start < 0 {
		start = 0
	}
	if start >= n {
		return nil, nil
	}
	return actual.Values[start:n], reactor.Transmission.Values[start:n]
}

func finite(v float64) bool {
	return !math.IsInf(v, 0) && !math.IsNaN(v)
}

// median averages the two middle values of an even-sized sample
func median(values []float64) float64 {
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2
}

// ProcessReactorTransmissionAtTemp uses a processor with default options
func ProcessReactorTransmissionAtTemp(reactor *domain.Reactor, temp, tempRange float64) (domain.ProcessedTemperature, bool) {
	return New(nil, DefaultOptions()).ProcessReactorTransmissionAtTemp(reactor, temp, tempRange)
}

// ProcessReactorTransmissionAtTemps uses a processor with default options
func ProcessReactorTransmissionAtTemps(reactor *domain.Reactor, temps []float64, tempRange float64) []domain.ProcessedTemperature {
	return New(nil, DefaultOptions()).ProcessReactorTransmissionAtTemps(reactor, temps, tempRange)
}

// ProcessReactor uses a processor with default options
func ProcessReactor(reactor *domain.Reactor) domain.ProcessedReactor {
	return New(nil, DefaultOptions()).ProcessReactor(reactor)
}
