package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	apperrors "csstcli/internal/errors"
	"csstcli/pkg/contracts/domain"
)

type propertyKey struct {
	owner EntityRef
	name  string
	unit  string
}

type nameEntry struct {
	externalID string
	search     string
}

type programEntry struct {
	hash    string
	program *domain.TemperatureProgram
}

// memoryState holds every table. It is copied at the start of a transaction
// and swapped in on commit.
type memoryState struct {
	nextID      int64
	experiments []ExperimentRecord
	programs    map[int64]programEntry
	reactors    []ReactorRecord
	scalars     map[propertyKey]float64
	arrays      map[propertyKey][]float64
	names       map[NameKind][]nameEntry
}

func newMemoryState() *memoryState {
	return &memoryState{
		programs: make(map[int64]programEntry),
		scalars:  make(map[propertyKey]float64),
		arrays:   make(map[propertyKey][]float64),
		names:    make(map[NameKind][]nameEntry),
	}
}

func (s *memoryState) clone() *memoryState {
	c := newMemoryState()
	c.nextID = s.nextID
	c.experiments = append([]ExperimentRecord(nil), s.experiments...)
	c.reactors = append([]ReactorRecord(nil), s.reactors...)
	for k, v := range s.programs {
		c.programs[k] = v
	}
	for k, v := range s.scalars {
		c.scalars[k] = v
	}
	// array slices are never mutated after insertion
	for k, v := range s.arrays {
		c.arrays[k] = v
	}
	for k, v := range s.names {
		c.names[k] = append([]nameEntry(nil), v...)
	}
	return c
}

func (s *memoryState) id() int64 {
	s.nextID++
	return s.nextID
}

// MemoryStore keeps everything in process memory. Transactions are
// serialised.
type MemoryStore struct {
	mu    sync.Mutex
	state *memoryState
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore returns an empty store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{state: newMemoryState()}
}

// RunInTransaction runs fn against a private copy of the state and keeps the
// copy only when fn succeeds
func (m *MemoryStore) RunInTransaction(ctx context.Context, fn func(tx Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	tx := &memoryTx{state: m.state.clone()}
	if err := fn(tx); err != nil {
		return err
	}
	m.state = tx.state
	return nil
}

// Close is a no-op
func (m *MemoryStore) Close() error { return nil }

type memoryTx struct {
	state *memoryState
}

func matches(d domain.ExperimentDetails, conds []Condition) (bool, error) {
	for _, c := range conds {
		got, ok := DetailColumn(d, c.Column)
		if !ok {
			return false, apperrors.NewStorageError(fmt.Sprintf("unknown experiment column %q", c.Column), nil)
		}
		if want, isTime := c.Value.(time.Time); isTime {
			if gotTime, ok := got.(time.Time); !ok || !gotTime.Equal(want) {
				return false, nil
			}
			continue
		}
		if got != c.Value {
			return false, nil
		}
	}
	return true, nil
}

func (tx *memoryTx) FindExperiments(_ context.Context, conds []Condition) ([]ExperimentRecord, error) {
	var out []ExperimentRecord
	for _, rec := range tx.state.experiments {
		ok, err := matches(rec.Details, conds)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (tx *memoryTx) InsertExperiment(_ context.Context, details domain.ExperimentDetails, programID int64) (int64, error) {
	id := tx.state.id()
	tx.state.experiments = append(tx.state.experiments, ExperimentRecord{ID: id, Details: details, ProgramID: programID})
	return id, nil
}

func (tx *memoryTx) FindProgram(_ context.Context, hash string) (int64, bool, error) {
	for id, entry := range tx.state.programs {
		if entry.hash == hash {
			return id, true, nil
		}
	}
	return 0, false, nil
}

func (tx *memoryTx) InsertProgram(_ context.Context, hash string, program *domain.TemperatureProgram) (int64, error) {
	id := tx.state.id()
	tx.state.programs[id] = programEntry{hash: hash, program: program}
	return id, nil
}

func (tx *memoryTx) Program(_ context.Context, id int64) (*domain.TemperatureProgram, error) {
	entry, ok := tx.state.programs[id]
	if !ok {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("temperature program %d", id))
	}
	return entry.program, nil
}

func (tx *memoryTx) InsertReactor(_ context.Context, rec ReactorRecord) (int64, error) {
	rec.ID = tx.state.id()
	tx.state.reactors = append(tx.state.reactors, rec)
	return rec.ID, nil
}

func (tx *memoryTx) Reactors(_ context.Context, experimentID int64) ([]ReactorRecord, error) {
	var out []ReactorRecord
	for _, rec := range tx.state.reactors {
		if rec.ExperimentID == experimentID {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (tx *memoryTx) PutScalar(_ context.Context, owner EntityRef, prop ScalarProperty) error {
	tx.state.scalars[propertyKey{owner: owner, name: prop.Name, unit: prop.Unit}] = prop.Value
	return nil
}

func (tx *memoryTx) Scalars(_ context.Context, owner EntityRef) ([]ScalarProperty, error) {
	var out []ScalarProperty
	for k, v := range tx.state.scalars {
		if k.owner == owner {
			out = append(out, ScalarProperty{Name: k.name, Unit: k.unit, Value: v})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (tx *memoryTx) PutArray(_ context.Context, owner EntityRef, prop ArrayProperty) error {
	key := propertyKey{owner: owner, name: prop.Name, unit: prop.Unit}
	if _, exists := tx.state.arrays[key]; exists {
		return apperrors.NewStorageError(
			fmt.Sprintf("array property %s [%s] already stored for %s %d", prop.Name, prop.Unit, owner.Kind, owner.ID), nil)
	}
	tx.state.arrays[key] = append([]float64(nil), prop.Values...)
	return nil
}

func (tx *memoryTx) Arrays(_ context.Context, owner EntityRef) ([]ArrayProperty, error) {
	var out []ArrayProperty
	for k, v := range tx.state.arrays {
		if k.owner == owner {
			out = append(out, ArrayProperty{Name: k.name, Unit: k.unit, Values: append([]float64(nil), v...)})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (tx *memoryTx) AddName(_ context.Context, kind NameKind, externalID, name string) error {
	search := MakeNameSearchable(name)
	for _, e := range tx.state.names[kind] {
		if e.externalID == externalID && e.search == search {
			return nil
		}
	}
	tx.state.names[kind] = append(tx.state.names[kind], nameEntry{externalID: externalID, search: search})
	return nil
}

func (tx *memoryTx) LookupName(_ context.Context, kind NameKind, searchName string) ([]string, error) {
	seen := make(map[string]bool)
	var ids []string
	for _, e := range tx.state.names[kind] {
		if e.search == searchName && !seen[e.externalID] {
			seen[e.externalID] = true
			ids = append(ids, e.externalID)
		}
	}
	sort.Strings(ids)
	return ids, nil
}
