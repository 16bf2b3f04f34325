package storage

import (
	"context"
	"fmt"
	"log/slog"

	apperrors "csstcli/internal/errors"
	"csstcli/pkg/contracts/domain"
)

// Repository persists and restores whole experiments through a Store
type Repository struct {
	store    Store
	resolver Resolver
	logger   *slog.Logger
}

// NewRepository wires a repository. A nil resolver falls back to the store's
// own name tables.
func NewRepository(store Store, resolver Resolver, logger *slog.Logger) *Repository {
	if resolver == nil {
		resolver = NewStoreResolver(store)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Repository{
		store:    store,
		resolver: resolver,
		logger:   logger.With(slog.String("component", "repository")),
	}
}

// Store returns the backing store
func (r *Repository) Store() Store { return r.store }

type resolvedReactor struct {
	reactor   *domain.Reactor
	polymerID string
	solventID string
}

// AddExperiment stores exp with its temperature program, series and reactors.
// A run already stored under the same identity (every detail but the file
// name) is left untouched and its id is returned with added=false.
func (r *Repository) AddExperiment(ctx context.Context, exp *domain.Experiment) (id int64, added bool, err error) {
	if exp == nil {
		return 0, false, apperrors.NewAppValidationError("experiment is nil")
	}
	details := exp.Details()

	existing, err := r.findIdentity(ctx, details)
	if err != nil {
		return 0, false, err
	}
	if existing != 0 {
		r.logger.InfoContext(ctx, "experiment already stored",
			slog.String("file", exp.FileName),
			slog.Int64("experiment_id", existing))
		return existing, false, nil
	}

	// resolve before writing so an unknown material aborts cleanly
	resolved := make([]resolvedReactor, 0, len(exp.Reactors))
	for _, reactor := range exp.Reactors {
		polymerID, err := r.materialID(ctx, NamePolymer, reactor.Polymer, exp.PolymerIDs)
		if err != nil {
			return 0, false, err
		}
		solventID, err := r.materialID(ctx, NameSolvent, reactor.Solvent, exp.SolventIDs)
		if err != nil {
			return 0, false, err
		}
		resolved = append(resolved, resolvedReactor{reactor: reactor, polymerID: polymerID, solventID: solventID})
	}

	err = r.store.RunInTransaction(ctx, func(tx Tx) error {
		// another writer may have stored the run since the check above
		found, err := tx.FindExperiments(ctx, IdentityConditions(details))
		if err != nil {
			return err
		}
		if len(found) > 0 {
			id = found[0].ID
			return nil
		}

		programID, err := r.programID(ctx, tx, exp.TemperatureProgram)
		if err != nil {
			return err
		}
		if id, err = tx.InsertExperiment(ctx, details, programID); err != nil {
			return err
		}
		owner := EntityRef{Kind: EntityExperiment, ID: id}

		if p := exp.BottomStirRate; p != nil {
			if err := tx.PutScalar(ctx, owner, ScalarProperty{Name: string(p.Name), Unit: p.Unit, Value: p.Value}); err != nil {
				return err
			}
		}
		series := []struct {
			name   string
			values *domain.PropertyValues
		}{
			{name: string(domain.PropertyTemperature), values: exp.ActualTemperature},
			{name: PropertySetTemperature, values: exp.SetTemperature},
			{name: string(domain.PropertyTime), values: exp.TimeSinceExperimentStart},
			{name: string(domain.PropertyStirRate), values: exp.StirRates},
		}
		for _, s := range series {
			if s.values == nil {
				continue
			}
			if err := tx.PutArray(ctx, owner, ArrayProperty{Name: s.name, Unit: s.values.Unit, Values: s.values.Values}); err != nil {
				return err
			}
		}

		for _, rr := range resolved {
			reactorID, err := tx.InsertReactor(ctx, ReactorRecord{
				ExperimentID:  id,
				ReactorNumber: rr.reactor.ReactorNumber,
				Polymer:       rr.reactor.Polymer,
				Solvent:       rr.reactor.Solvent,
				PolymerID:     rr.polymerID,
				SolventID:     rr.solventID,
				Conc:          rr.reactor.Conc.Value,
				ConcUnit:      rr.reactor.Conc.Unit,
			})
			if err != nil {
				return err
			}
			if t := rr.reactor.Transmission; t != nil {
				err = tx.PutArray(ctx, EntityRef{Kind: EntityReactor, ID: reactorID},
					ArrayProperty{Name: string(t.Name), Unit: t.Unit, Values: t.Values})
				if err != nil {
					return err
				}
			}
		}
		added = true
		return nil
	})
	if err != nil {
		return 0, false, fmt.Errorf("store %s: %w", exp.FileName, err)
	}

	if added {
		r.logger.InfoContext(ctx, "experiment stored",
			slog.String("file", exp.FileName),
			slog.Int64("experiment_id", id),
			slog.Int("reactors", len(resolved)))
	}
	return id, added, nil
}

func (r *Repository) findIdentity(ctx context.Context, details domain.ExperimentDetails) (int64, error) {
	var id int64
	err := r.store.RunInTransaction(ctx, func(tx Tx) error {
		found, err := tx.FindExperiments(ctx, IdentityConditions(details))
		if err != nil {
			return err
		}
		if len(found) > 0 {
			id = found[0].ID
		}
		return nil
	})
	return id, err
}

// materialID prefers the identifiers listed in the run file's description
func (r *Repository) materialID(ctx context.Context, kind NameKind, name string, listed map[string]string) (string, error) {
	if id, ok := listed[name]; ok {
		return id, nil
	}
	return r.resolver.Resolve(ctx, kind, name)
}

func (r *Repository) programID(ctx context.Context, tx Tx, program *domain.TemperatureProgram) (int64, error) {
	if program == nil {
		return 0, nil
	}
	hash, err := program.Hash()
	if err != nil {
		return 0, apperrors.NewStorageError("hash temperature program", err)
	}
	id, ok, err := tx.FindProgram(ctx, hash)
	if err != nil || ok {
		return id, err
	}
	return tx.InsertProgram(ctx, hash, program)
}

// LoadExperiments rebuilds every stored experiment matching filter
func (r *Repository) LoadExperiments(ctx context.Context, filter ExperimentFilter) ([]*domain.Experiment, error) {
	var out []*domain.Experiment
	err := r.store.RunInTransaction(ctx, func(tx Tx) error {
		records, err := tx.FindExperiments(ctx, filter.Conditions())
		if err != nil {
			return err
		}
		for _, rec := range records {
			exp, err := rebuild(ctx, tx, rec)
			if err != nil {
				return err
			}
			out = append(out, exp)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	r.logger.DebugContext(ctx, "experiments loaded", slog.Int("count", len(out)))
	return out, nil
}

func rebuild(ctx context.Context, tx Tx, rec ExperimentRecord) (*domain.Experiment, error) {
	d := rec.Details
	exp := domain.NewExperiment(d.FileName)
	exp.Version = d.Version
	exp.ExperimentDetails = d.ExperimentDetails
	exp.ExperimentNumber = d.ExperimentNumber
	exp.Experimenter = d.Experimenter
	exp.Project = d.Project
	exp.LabJournal = d.LabJournal
	exp.Description = d.DescriptionLines()
	exp.StartOfExperiment = d.StartOfExperiment

	if rec.ProgramID != 0 {
		program, err := tx.Program(ctx, rec.ProgramID)
		if err != nil {
			return nil, err
		}
		exp.TemperatureProgram = program
	}

	owner := EntityRef{Kind: EntityExperiment, ID: rec.ID}
	scalars, err := tx.Scalars(ctx, owner)
	if err != nil {
		return nil, err
	}
	for _, s := range scalars {
		if s.Name == string(domain.PropertyBottomStirRate) {
			exp.BottomStirRate = &domain.PropertyValue{Name: domain.PropertyBottomStirRate, Unit: s.Unit, Value: s.Value}
		}
	}

	arrays, err := tx.Arrays(ctx, owner)
	if err != nil {
		return nil, err
	}
	for _, a := range arrays {
		switch a.Name {
		case string(domain.PropertyTemperature):
			exp.ActualTemperature = series(domain.PropertyTemperature, a)
		case PropertySetTemperature:
			exp.SetTemperature = series(domain.PropertyTemperature, a)
		case string(domain.PropertyTime):
			exp.TimeSinceExperimentStart = series(domain.PropertyTime, a)
		case string(domain.PropertyStirRate):
			exp.StirRates = series(domain.PropertyStirRate, a)
		}
	}

	reactors, err := tx.Reactors(ctx, rec.ID)
	if err != nil {
		return nil, err
	}
	for _, rr := range reactors {
		var transmission *domain.PropertyValues
		arrays, err := tx.Arrays(ctx, EntityRef{Kind: EntityReactor, ID: rr.ID})
		if err != nil {
			return nil, err
		}
		for _, a := range arrays {
			if a.Name == string(domain.PropertyTransmission) {
				transmission = series(domain.PropertyTransmission, a)
			}
		}
		exp.AddReactor(rr.Polymer, rr.Solvent,
			domain.PropertyValue{Name: domain.PropertyConcentration, Unit: rr.ConcUnit, Value: rr.Conc},
			rr.ReactorNumber, transmission)
		exp.PolymerIDs[rr.Polymer] = rr.PolymerID
		exp.SolventIDs[rr.Solvent] = rr.SolventID
	}
	return exp, nil
}

func series(name domain.PropertyName, a ArrayProperty) *domain.PropertyValues {
	values := a.Values
	if values == nil {
		values = []float64{}
	}
	return &domain.PropertyValues{Name: name, Unit: a.Unit, Values: values}
}
