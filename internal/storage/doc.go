// Package storage persists experiments as a key-value property store.
//
// Experiments and reactors are rows; their measurements are properties keyed
// by (name, unit). Scalar properties hold one value, array properties hold
// indexed values that are returned in index order. Temperature programs are
// stored once per content hash and shared by every experiment that ran them.
//
// A Store provides transactions; the in-memory MemoryStore serves tests and
// dry runs, package sqlstore provides SQLite and Postgres. Repository sits on
// top of a Store:
//
//	repo := storage.NewRepository(store, nil, logger)
//	id, added, err := repo.AddExperiment(ctx, exp)
//	runs, err := repo.LoadExperiments(ctx, storage.ExperimentFilter{Project: "Polymer solubility"})
//
// Adding a run that is already stored under a different file name is a no-op.
// Polymer and solvent names are matched on their searchable form (lower-case
// letters and digits) when the run file does not list their identifiers.
package storage
