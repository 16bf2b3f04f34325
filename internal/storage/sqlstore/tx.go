package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	apperrors "csstcli/internal/errors"
	"csstcli/internal/storage"
	"csstcli/pkg/contracts/domain"
)

// timeLayout stores instants as UTC text so equal instants compare equal
const timeLayout = time.RFC3339Nano

type sqlTx struct {
	tx      *sql.Tx
	dialect dialect
}

func (t *sqlTx) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return t.tx.ExecContext(ctx, t.dialect.rebind(query), args...)
}

func (t *sqlTx) query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return t.tx.QueryContext(ctx, t.dialect.rebind(query), args...)
}

func (t *sqlTx) queryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return t.tx.QueryRowContext(ctx, t.dialect.rebind(query), args...)
}

func formatTime(v time.Time) string {
	return v.UTC().Format(timeLayout)
}

const experimentColumns = `id, file_name, version, experiment_details, experiment_number, experimenter,
	project, lab_journal, description, start_of_experiment, temperature_program_id`

func (t *sqlTx) FindExperiments(ctx context.Context, conds []storage.Condition) ([]storage.ExperimentRecord, error) {
	var (
		where []string
		args  []any
	)
	for _, c := range conds {
		if _, ok := storage.DetailColumn(domain.ExperimentDetails{}, c.Column); !ok {
			return nil, apperrors.NewStorageError(fmt.Sprintf("unknown experiment column %q", c.Column), nil)
		}
		value := c.Value
		if ts, ok := value.(time.Time); ok {
			value = formatTime(ts)
		}
		where = append(where, c.Column+" = ?")
		args = append(args, value)
	}
	query := `SELECT ` + experimentColumns + ` FROM experiments`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY id`

	rows, err := t.query(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewStorageError("select experiments", err)
	}
	defer func() { _ = rows.Close() }()

	var out []storage.ExperimentRecord
	for rows.Next() {
		var (
			rec       storage.ExperimentRecord
			start     string
			programID sql.NullInt64
		)
		d := &rec.Details
		if err := rows.Scan(&rec.ID, &d.FileName, &d.Version, &d.ExperimentDetails, &d.ExperimentNumber,
			&d.Experimenter, &d.Project, &d.LabJournal, &d.Description, &start, &programID); err != nil {
			return nil, apperrors.NewStorageError("scan experiment", err)
		}
		if d.StartOfExperiment, err = time.Parse(timeLayout, start); err != nil {
			return nil, apperrors.NewStorageError("decode start_of_experiment", err).WithContext("experiment_id", rec.ID)
		}
		rec.ProgramID = programID.Int64
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewStorageError("iterate experiments", err)
	}
	return out, nil
}

func (t *sqlTx) InsertExperiment(ctx context.Context, d domain.ExperimentDetails, programID int64) (int64, error) {
	program := sql.NullInt64{Int64: programID, Valid: programID != 0}
	var id int64
	err := t.queryRow(ctx, `INSERT INTO experiments (file_name, version, experiment_details, experiment_number,
		experimenter, project, lab_journal, description, start_of_experiment, temperature_program_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?) RETURNING id`,
		d.FileName, d.Version, d.ExperimentDetails, d.ExperimentNumber, d.Experimenter, d.Project,
		d.LabJournal, d.Description, formatTime(d.StartOfExperiment), program).Scan(&id)
	if err != nil {
		return 0, apperrors.NewStorageError("insert experiment", err).WithContext("file", d.FileName)
	}
	return id, nil
}

func (t *sqlTx) FindProgram(ctx context.Context, hash string) (int64, bool, error) {
	var id int64
	err := t.queryRow(ctx, `SELECT id FROM temperature_programs WHERE hash = ?`, hash).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, apperrors.NewStorageError("select temperature program", err)
	}
	return id, true, nil
}

func (t *sqlTx) InsertProgram(ctx context.Context, hash string, program *domain.TemperatureProgram) (int64, error) {
	payload, err := json.Marshal(program)
	if err != nil {
		return 0, apperrors.NewStorageError("encode temperature program", err)
	}
	var id int64
	err = t.queryRow(ctx, `INSERT INTO temperature_programs (hash, program) VALUES (?, ?) RETURNING id`,
		hash, string(payload)).Scan(&id)
	if err != nil {
		return 0, apperrors.NewStorageError("insert temperature program", err)
	}
	return id, nil
}

func (t *sqlTx) Program(ctx context.Context, id int64) (*domain.TemperatureProgram, error) {
	var payload string
	err := t.queryRow(ctx, `SELECT program FROM temperature_programs WHERE id = ?`, id).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("temperature program %d", id))
	}
	if err != nil {
		return nil, apperrors.NewStorageError("select temperature program", err)
	}
	var program domain.TemperatureProgram
	if err := json.Unmarshal([]byte(payload), &program); err != nil {
		return nil, apperrors.NewStorageError("decode temperature program", err).WithContext("program_id", id)
	}
	return &program, nil
}

func (t *sqlTx) InsertReactor(ctx context.Context, rec storage.ReactorRecord) (int64, error) {
	var id int64
	err := t.queryRow(ctx, `INSERT INTO reactors (experiment_id, reactor_number, polymer, solvent,
		polymer_id, solvent_id, conc, conc_unit) VALUES (?, ?, ?, ?, ?, ?, ?, ?) RETURNING id`,
		rec.ExperimentID, rec.ReactorNumber, rec.Polymer, rec.Solvent,
		rec.PolymerID, rec.SolventID, rec.Conc, rec.ConcUnit).Scan(&id)
	if err != nil {
		return 0, apperrors.NewStorageError("insert reactor", err).WithContext("reactor", rec.ReactorNumber)
	}
	return id, nil
}

func (t *sqlTx) Reactors(ctx context.Context, experimentID int64) ([]storage.ReactorRecord, error) {
	rows, err := t.query(ctx, `SELECT id, experiment_id, reactor_number, polymer, solvent, polymer_id,
		solvent_id, conc, conc_unit FROM reactors WHERE experiment_id = ? ORDER BY id`, experimentID)
	if err != nil {
		return nil, apperrors.NewStorageError("select reactors", err)
	}
	defer func() { _ = rows.Close() }()

	var out []storage.ReactorRecord
	for rows.Next() {
		var r storage.ReactorRecord
		if err := rows.Scan(&r.ID, &r.ExperimentID, &r.ReactorNumber, &r.Polymer, &r.Solvent,
			&r.PolymerID, &r.SolventID, &r.Conc, &r.ConcUnit); err != nil {
			return nil, apperrors.NewStorageError("scan reactor", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewStorageError("iterate reactors", err)
	}
	return out, nil
}

// propertyID returns the id of (name, unit), adding the property if absent
func (t *sqlTx) propertyID(ctx context.Context, name, unit string) (int64, error) {
	if _, err := t.exec(ctx, `INSERT INTO properties (name, unit) VALUES (?, ?)
		ON CONFLICT (name, unit) DO NOTHING`, name, unit); err != nil {
		return 0, apperrors.NewStorageError("insert property", err).WithContext("property", name)
	}
	var id int64
	if err := t.queryRow(ctx, `SELECT id FROM properties WHERE name = ? AND unit = ?`, name, unit).Scan(&id); err != nil {
		return 0, apperrors.NewStorageError("select property", err).WithContext("property", name)
	}
	return id, nil
}

func (t *sqlTx) PutScalar(ctx context.Context, owner storage.EntityRef, prop storage.ScalarProperty) error {
	propertyID, err := t.propertyID(ctx, prop.Name, prop.Unit)
	if err != nil {
		return err
	}
	_, err = t.exec(ctx, `INSERT INTO property_values (entity_kind, entity_id, property_id, value)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (entity_kind, entity_id, property_id) DO UPDATE SET value = excluded.value`,
		string(owner.Kind), owner.ID, propertyID, prop.Value)
	if err != nil {
		return apperrors.NewStorageError("insert property value", err).WithContext("property", prop.Name)
	}
	return nil
}

func (t *sqlTx) Scalars(ctx context.Context, owner storage.EntityRef) ([]storage.ScalarProperty, error) {
	rows, err := t.query(ctx, `SELECT p.name, p.unit, v.value FROM property_values v
		JOIN properties p ON p.id = v.property_id
		WHERE v.entity_kind = ? AND v.entity_id = ? ORDER BY p.name`, string(owner.Kind), owner.ID)
	if err != nil {
		return nil, apperrors.NewStorageError("select property values", err)
	}
	defer func() { _ = rows.Close() }()

	var out []storage.ScalarProperty
	for rows.Next() {
		var p storage.ScalarProperty
		if err := rows.Scan(&p.Name, &p.Unit, &p.Value); err != nil {
			return nil, apperrors.NewStorageError("scan property value", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewStorageError("iterate property values", err)
	}
	return out, nil
}

func (t *sqlTx) PutArray(ctx context.Context, owner storage.EntityRef, prop storage.ArrayProperty) error {
	propertyID, err := t.propertyID(ctx, prop.Name, prop.Unit)
	if err != nil {
		return err
	}

	var existing int64
	err = t.queryRow(ctx, `SELECT id FROM property_arrays WHERE entity_kind = ? AND entity_id = ? AND property_id = ?`,
		string(owner.Kind), owner.ID, propertyID).Scan(&existing)
	switch {
	case err == nil:
		return apperrors.NewStorageError(
			fmt.Sprintf("array property %s [%s] already stored for %s %d", prop.Name, prop.Unit, owner.Kind, owner.ID), nil)
	case !errors.Is(err, sql.ErrNoRows):
		return apperrors.NewStorageError("select property array", err)
	}

	var arrayID int64
	err = t.queryRow(ctx, `INSERT INTO property_arrays (entity_kind, entity_id, property_id)
		VALUES (?, ?, ?) RETURNING id`, string(owner.Kind), owner.ID, propertyID).Scan(&arrayID)
	if err != nil {
		return apperrors.NewStorageError("insert property array", err).WithContext("property", prop.Name)
	}

	stmt, err := t.tx.PrepareContext(ctx, t.dialect.rebind(
		`INSERT INTO property_array_values (array_id, array_index, value) VALUES (?, ?, ?)`))
	if err != nil {
		return apperrors.NewStorageError("prepare array insert", err)
	}
	defer func() { _ = stmt.Close() }()
	for i, v := range prop.Values {
		if _, err := stmt.ExecContext(ctx, arrayID, i, v); err != nil {
			return apperrors.NewStorageError("insert array value", err).
				WithContext("property", prop.Name).
				WithContext("index", i)
		}
	}
	return nil
}

type arrayHeader struct {
	id   int64
	name string
	unit string
}

func (t *sqlTx) Arrays(ctx context.Context, owner storage.EntityRef) ([]storage.ArrayProperty, error) {
	headers, err := t.arrayHeaders(ctx, owner)
	if err != nil {
		return nil, err
	}
	out := make([]storage.ArrayProperty, 0, len(headers))
	for _, h := range headers {
		values, err := t.arrayValues(ctx, h.id)
		if err != nil {
			return nil, err
		}
		out = append(out, storage.ArrayProperty{Name: h.name, Unit: h.unit, Values: values})
	}
	return out, nil
}

func (t *sqlTx) arrayHeaders(ctx context.Context, owner storage.EntityRef) ([]arrayHeader, error) {
	rows, err := t.query(ctx, `SELECT a.id, p.name, p.unit FROM property_arrays a
		JOIN properties p ON p.id = a.property_id
		WHERE a.entity_kind = ? AND a.entity_id = ? ORDER BY p.name`, string(owner.Kind), owner.ID)
	if err != nil {
		return nil, apperrors.NewStorageError("select property arrays", err)
	}
	defer func() { _ = rows.Close() }()

	var headers []arrayHeader
	for rows.Next() {
		var h arrayHeader
		if err := rows.Scan(&h.id, &h.name, &h.unit); err != nil {
			return nil, apperrors.NewStorageError("scan property array", err)
		}
		headers = append(headers, h)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewStorageError("iterate property arrays", err)
	}
	return headers, nil
}

func (t *sqlTx) arrayValues(ctx context.Context, arrayID int64) ([]float64, error) {
	rows, err := t.query(ctx, `SELECT value FROM property_array_values WHERE array_id = ? ORDER BY array_index`, arrayID)
	if err != nil {
		return nil, apperrors.NewStorageError("select array values", err)
	}
	defer func() { _ = rows.Close() }()

	values := []float64{}
	for rows.Next() {
		var v float64
		if err := rows.Scan(&v); err != nil {
			return nil, apperrors.NewStorageError("scan array value", err)
		}
		values = append(values, v)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewStorageError("iterate array values", err)
	}
	return values, nil
}

func (t *sqlTx) AddName(ctx context.Context, kind storage.NameKind, externalID, name string) error {
	_, err := t.exec(ctx, `INSERT INTO material_names (kind, external_id, search_name) VALUES (?, ?, ?)
		ON CONFLICT (kind, external_id, search_name) DO NOTHING`,
		string(kind), externalID, storage.MakeNameSearchable(name))
	if err != nil {
		return apperrors.NewStorageError("insert material name", err).WithContext("name", name)
	}
	return nil
}

func (t *sqlTx) LookupName(ctx context.Context, kind storage.NameKind, searchName string) ([]string, error) {
	rows, err := t.query(ctx, `SELECT DISTINCT external_id FROM material_names
		WHERE kind = ? AND search_name = ? ORDER BY external_id`, string(kind), searchName)
	if err != nil {
		return nil, apperrors.NewStorageError("select material names", err)
	}
	defer func() { _ = rows.Close() }()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, apperrors.NewStorageError("scan material name", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewStorageError("iterate material names", err)
	}
	return ids, nil
}
