package domain

import (
	"fmt"
	"strings"
	"time"
)

// Experiment is one Crystal 16 dissolution/solubility run loaded from an
// instrument export. The experiment owns the time, temperature and stir
// series; reactors read them through their parent handle.
type Experiment struct {
	FileName          string    `json:"file_name"`
	Version           string    `json:"version"`
	ExperimentDetails string    `json:"experiment_details"`
	ExperimentNumber  string    `json:"experiment_number"`
	Experimenter      string    `json:"experimenter"`
	Project           string    `json:"project"`
	LabJournal        string    `json:"lab_journal"`
	Description       []string  `json:"description"`
	StartOfExperiment time.Time `json:"start_of_experiment"`

	// PolymerIDs and SolventIDs map names used in reactor definitions to
	// external identifiers, when the description lists them.
	PolymerIDs map[string]string `json:"polymer_ids,omitempty"`
	SolventIDs map[string]string `json:"solvent_ids,omitempty"`

	TemperatureProgram *TemperatureProgram `json:"temperature_program,omitempty"`
	BottomStirRate     *PropertyValue      `json:"bottom_stir_rate,omitempty"`

	SetTemperature           *PropertyValues `json:"set_temperature,omitempty"`
	ActualTemperature        *PropertyValues `json:"actual_temperature,omitempty"`
	TimeSinceExperimentStart *PropertyValues `json:"time_since_experiment_start,omitempty"`
	StirRates                *PropertyValues `json:"stir_rates,omitempty"`

	Reactors []*Reactor `json:"reactors"`
}

// NewExperiment returns an empty experiment for the given source file
func NewExperiment(fileName string) *Experiment {
	return &Experiment{
		FileName:   fileName,
		PolymerIDs: map[string]string{},
		SolventIDs: map[string]string{},
		Reactors:   []*Reactor{},
	}
}

// AddReactor creates a reactor bound to this experiment and appends it.
// Reactors can only be created through their experiment.
func (e *Experiment) AddReactor(polymer, solvent string, conc PropertyValue, number int, transmission *PropertyValues) *Reactor {
	r := &Reactor{
		Polymer:       polymer,
		Solvent:       solvent,
		Conc:          conc,
		ReactorNumber: number,
		Transmission:  transmission,
		experiment:    e,
	}
	e.Reactors = append(e.Reactors, r)
	return r
}

// SeriesLength returns the common length of the shared series and reports
// whether every shared and reactor series has that length.
func (e *Experiment) SeriesLength() (int, bool) {
	n := e.TimeSinceExperimentStart.Len()
	aligned := e.SetTemperature.Len() == n &&
		e.ActualTemperature.Len() == n &&
		e.StirRates.Len() == n
	for _, r := range e.Reactors {
		if r.Transmission.Len() != n {
			aligned = false
		}
	}
	return n, aligned
}

// Details returns the scalar metadata of the experiment
func (e *Experiment) Details() ExperimentDetails {
	return ExperimentDetails{
		FileName:          e.FileName,
		Version:           e.Version,
		ExperimentDetails: e.ExperimentDetails,
		ExperimentNumber:  e.ExperimentNumber,
		Experimenter:      e.Experimenter,
		Project:           e.Project,
		LabJournal:        e.LabJournal,
		Description:       strings.Join(e.Description, "\n"),
		StartOfExperiment: e.StartOfExperiment,
	}
}

// ExperimentDetails is the flattened scalar metadata of an experiment, the
// shape used for storage and lookups. The description lines are joined with
// newlines.
type ExperimentDetails struct {
	FileName          string    `json:"file_name"`
	Version           string    `json:"version"`
	ExperimentDetails string    `json:"experiment_details"`
	ExperimentNumber  string    `json:"experiment_number"`
	Experimenter      string    `json:"experimenter"`
	Project           string    `json:"project"`
	LabJournal        string    `json:"lab_journal"`
	Description       string    `json:"description"`
	StartOfExperiment time.Time `json:"start_of_experiment"`
}

// SameExperiment reports whether two detail records describe the same run.
// The file name is not part of the identity so a renamed export is still
// recognised.
func (d ExperimentDetails) SameExperiment(other ExperimentDetails) bool {
	return d.Version == other.Version &&
		d.ExperimentDetails == other.ExperimentDetails &&
		d.ExperimentNumber == other.ExperimentNumber &&
		d.Experimenter == other.Experimenter &&
		d.Project == other.Project &&
		d.LabJournal == other.LabJournal &&
		d.Description == other.Description &&
		d.StartOfExperiment.Equal(other.StartOfExperiment)
}

// DescriptionLines splits the joined description back into lines
func (d ExperimentDetails) DescriptionLines() []string {
	if d.Description == "" {
		return []string{}
	}
	return strings.Split(d.Description, "\n")
}

// Reactor is one sample well of an experiment. It owns only its transmission
// series; time, temperature, stir rates and the temperature program are read
// from the parent experiment, so a mutation of a shared series is visible to
// every reactor of the run.
type Reactor struct {
	Solvent       string          `json:"solvent"`
	Polymer       string          `json:"polymer"`
	Conc          PropertyValue   `json:"conc"`
	ReactorNumber int             `json:"reactor_number"`
	Transmission  *PropertyValues `json:"transmission"`

	experiment *Experiment
}

// Experiment returns the owning experiment
func (r *Reactor) Experiment() *Experiment { return r.experiment }

// ActualTemperature returns the shared measured temperature series
func (r *Reactor) ActualTemperature() *PropertyValues { return r.experiment.ActualTemperature }

// SetTemperature returns the shared set-point series
func (r *Reactor) SetTemperature() *PropertyValues { return r.experiment.SetTemperature }

// TimeSinceExperimentStart returns the shared time series in hours
func (r *Reactor) TimeSinceExperimentStart() *PropertyValues {
	return r.experiment.TimeSinceExperimentStart
}

// StirRates returns the shared stir rate series
func (r *Reactor) StirRates() *PropertyValues { return r.experiment.StirRates }

// BottomStirRate returns the bottom stirrer rate of the run
func (r *Reactor) BottomStirRate() *PropertyValue { return r.experiment.BottomStirRate }

// TemperatureProgram returns the program of the run
func (r *Reactor) TemperatureProgram() *TemperatureProgram {
	return r.experiment.TemperatureProgram
}

// String returns "<conc> <unit> <polymer> in <solvent>"
func (r *Reactor) String() string {
	return fmt.Sprintf("%g %s %s in %s", r.Conc.Value, r.Conc.Unit, r.Polymer, r.Solvent)
}
