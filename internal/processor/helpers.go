package processor

import (
	"fmt"
	"sort"
	"strings"

	apperrors "csstcli/internal/errors"
	"csstcli/pkg/contracts/domain"
)

// DefaultSkipHours is the fixed time skipped after the start of a run to get
// past solvent tuning and sample loading transients
const DefaultSkipHours = 2.0 / 60

// FindIndexAfterXHours returns the first index whose elapsed time is strictly
// greater than hours. The time series must be non-decreasing.
func FindIndexAfterXHours(reactor *domain.Reactor, hours float64) int {
	if reactor == nil || reactor.Experiment() == nil {
		return 0
	}
	times := reactor.TimeSinceExperimentStart()
	if times == nil {
		return 0
	}
	return sort.Search(len(times.Values), func(i int) bool {
		return times.Values[i] > hours
	})
}

// FindIndexAfterSampleTuneAndLoad skips timeToSkipInHours from the start of
// the run. Pass DefaultSkipHours for the standard policy.
func FindIndexAfterSampleTuneAndLoad(reactor *domain.Reactor, timeToSkipInHours float64) int {
	return FindIndexAfterXHours(reactor, timeToSkipInHours)
}

// FindIndexAfterProgramTuneAndLoad skips the hold durations of the solvent
// tune and sample load phases plus extraHours
func FindIndexAfterProgramTuneAndLoad(reactor *domain.Reactor, extraHours float64) (int, error) {
	if reactor == nil || reactor.Experiment() == nil {
		return 0, nil
	}
	hours, err := TuneAndLoadDuration(reactor.TemperatureProgram())
	if err != nil {
		return 0, err
	}
	return FindIndexAfterXHours(reactor, hours+extraHours), nil
}

// TuneAndLoadDuration sums the hold durations, in hours, of the solvent tune
// and sample load phases
func TuneAndLoadDuration(program *domain.TemperatureProgram) (float64, error) {
	if program == nil {
		return 0, nil
	}
	var total float64
	for _, phase := range [][]domain.TemperatureStep{program.SolventTune, program.SampleLoad} {
		for _, step := range phase {
			hold, ok := step.(domain.TemperatureHold)
			if !ok {
				continue
			}
			hours, err := toHours(hold.For)
			if err != nil {
				return 0, err
			}
			total += hours
		}
	}
	return total, nil
}

func toHours(d domain.PropertyValue) (float64, error) {
	switch strings.ToLower(strings.TrimSpace(d.Unit)) {
	case "sec", "s", "second", "seconds":
		return d.Value / 3600, nil
	case "min", "minute", "minutes":
		return d.Value / 60, nil
	case "hour", "hours", "h", "hr":
		return d.Value, nil
	}
	return 0, apperrors.NewUnsupportedFeatureError(fmt.Sprintf("hold duration unit %q cannot be converted to hours", d.Unit)).
		WithContext("unit", d.Unit)
}
