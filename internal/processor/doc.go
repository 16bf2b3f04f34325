// Package processor derives per-temperature transmission statistics from a
// reactor's raw samples.
//
// A bucket collects the samples whose actual temperature lies in
// [temp-range/2, temp+range/2), or equals temp when range is 0, and reports
// their mean, median and population standard deviation. ProcessReactor builds
// one bucket per integer degree across the observed temperature span and drops
// the empty ones.
//
// The index helpers locate where the experiment phase starts so that tuning
// and loading transients can be left out:
//
//	start := processor.FindIndexAfterSampleTuneAndLoad(reactor, processor.DefaultSkipHours)
//	processed := proc.ProcessReactorFrom(reactor, start)
package processor
