package domain

// ProcessedTemperature aggregates the transmission samples of one reactor
// inside one temperature window
type ProcessedTemperature struct {
	// AverageTemperature is the queried window centre
	AverageTemperature float64 `json:"average_temperature"`
	// TemperatureRange is the full window width the bucket was queried with
	// (centre +/- range/2). Zero means exact temperature matching.
	TemperatureRange    float64 `json:"temperature_range"`
	AverageTransmission float64 `json:"average_transmission"`
	MedianTransmission  float64 `json:"median_transmission"`
	// TransmissionStd is the population standard deviation
	TransmissionStd float64 `json:"transmission_std"`
	SampleCount     int     `json:"sample_count"`
}

// ProcessedReactor is a reactor with its per-temperature buckets. It is
// derived data and never written back onto the reactor.
type ProcessedReactor struct {
	UnprocessedReactor *Reactor               `json:"unprocessed_reactor"`
	Temperatures       []ProcessedTemperature `json:"temperatures"`
}
