package storage

import (
	"context"
	"time"

	"csstcli/pkg/contracts/domain"
)

// EntityKind names the owner of a stored property
type EntityKind string

const (
	EntityExperiment EntityKind = "experiment"
	EntityReactor    EntityKind = "reactor"
)

// EntityRef addresses the owner of a property
type EntityRef struct {
	Kind EntityKind
	ID   int64
}

// NameKind selects the polymer or solvent name table
type NameKind string

const (
	NamePolymer NameKind = "polymer"
	NameSolvent NameKind = "solvent"
)

// Stored property names that differ from domain.PropertyName
const (
	PropertySetTemperature = "set_temperature"
)

// Experiment columns usable in a Condition
const (
	ColFileName          = "file_name"
	ColVersion           = "version"
	ColExperimentDetails = "experiment_details"
	ColExperimentNumber  = "experiment_number"
	ColExperimenter      = "experimenter"
	ColProject           = "project"
	ColLabJournal        = "lab_journal"
	ColDescription       = "description"
	ColStartOfExperiment = "start_of_experiment"
)

// Condition is an equality test on one experiment column. Time values are
// compared as instants.
type Condition struct {
	Column string
	Value  any
}

// ExperimentRecord is a stored experiment row
type ExperimentRecord struct {
	ID        int64
	Details   domain.ExperimentDetails
	ProgramID int64
}

// ReactorRecord is a stored reactor row
type ReactorRecord struct {
	ID            int64
	ExperimentID  int64
	ReactorNumber int
	Polymer       string
	Solvent       string
	PolymerID     string
	SolventID     string
	Conc          float64
	ConcUnit      string
}

// ScalarProperty is a stored (name, unit) -> value entry
type ScalarProperty struct {
	Name  string
	Unit  string
	Value float64
}

// ArrayProperty is a stored (name, unit) -> indexed values entry, already
// ordered by index
type ArrayProperty struct {
	Name   string
	Unit   string
	Values []float64
}

// Tx is one unit of work against a backend
type Tx interface {
	FindExperiments(ctx context.Context, conds []Condition) ([]ExperimentRecord, error)
	InsertExperiment(ctx context.Context, details domain.ExperimentDetails, programID int64) (int64, error)

	FindProgram(ctx context.Context, hash string) (int64, bool, error)
	InsertProgram(ctx context.Context, hash string, program *domain.TemperatureProgram) (int64, error)
	Program(ctx context.Context, id int64) (*domain.TemperatureProgram, error)

	InsertReactor(ctx context.Context, rec ReactorRecord) (int64, error)
	Reactors(ctx context.Context, experimentID int64) ([]ReactorRecord, error)

	PutScalar(ctx context.Context, owner EntityRef, prop ScalarProperty) error
	Scalars(ctx context.Context, owner EntityRef) ([]ScalarProperty, error)
	PutArray(ctx context.Context, owner EntityRef, prop ArrayProperty) error
	Arrays(ctx context.Context, owner EntityRef) ([]ArrayProperty, error)

	AddName(ctx context.Context, kind NameKind, externalID, name string) error
	LookupName(ctx context.Context, kind NameKind, searchName string) ([]string, error)
}

// Store runs transactions against a backend. fn's writes are committed only
// when it returns nil.
type Store interface {
	RunInTransaction(ctx context.Context, fn func(tx Tx) error) error
	Close() error
}

// IdentityConditions matches every identity field of d, empty ones included.
// The file name is not part of the identity.
func IdentityConditions(d domain.ExperimentDetails) []Condition {
	return []Condition{
		{Column: ColVersion, Value: d.Version},
		{Column: ColExperimentDetails, Value: d.ExperimentDetails},
		{Column: ColExperimentNumber, Value: d.ExperimentNumber},
		{Column: ColExperimenter, Value: d.Experimenter},
		{Column: ColProject, Value: d.Project},
		{Column: ColLabJournal, Value: d.LabJournal},
		{Column: ColDescription, Value: d.Description},
		{Column: ColStartOfExperiment, Value: d.StartOfExperiment},
	}
}

// ExperimentFilter selects experiments on the fields that are set. An empty
// filter selects every experiment.
type ExperimentFilter struct {
	FileName          string
	Version           string
	ExperimentDetails string
	ExperimentNumber  string
	Experimenter      string
	Project           string
	LabJournal        string
	Description       string
	StartOfExperiment time.Time
}

// Conditions returns one condition per non-empty field
func (f ExperimentFilter) Conditions() []Condition {
	var conds []Condition
	add := func(col, v string) {
		if v != "" {
			conds = append(conds, Condition{Column: col, Value: v})
		}
	}
	add(ColFileName, f.FileName)
	add(ColVersion, f.Version)
	add(ColExperimentDetails, f.ExperimentDetails)
	add(ColExperimentNumber, f.ExperimentNumber)
	add(ColExperimenter, f.Experimenter)
	add(ColProject, f.Project)
	add(ColLabJournal, f.LabJournal)
	add(ColDescription, f.Description)
	if !f.StartOfExperiment.IsZero() {
		conds = append(conds, Condition{Column: ColStartOfExperiment, Value: f.StartOfExperiment})
	}
	return conds
}

// DetailColumn returns the value of an experiment column
func DetailColumn(d domain.ExperimentDetails, column string) (any, bool) {
	switch column {
	case ColFileName:
		return d.FileName, true
	case ColVersion:
		return d.Version, true
	case ColExperimentDetails:
		return d.ExperimentDetails, true
	case ColExperimentNumber:
		return d.ExperimentNumber, true
	case ColExperimenter:
		return d.Experimenter, true
	case ColProject:
		return d.Project, true
	case ColLabJournal:
		return d.LabJournal, true
	case ColDescription:
		return d.Description, true
	case ColStartOfExperiment:
		return d.StartOfExperiment, true
	}
	return nil, false
}
