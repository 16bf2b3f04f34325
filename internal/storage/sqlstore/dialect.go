package sqlstore

import (
	"fmt"
	"strconv"
	"strings"
)

// dialect carries what differs between the supported engines
type dialect struct {
	name       string
	driver     string
	idColumn   string
	positional bool
}

var (
	sqliteDialect = dialect{
		name:     "sqlite",
		driver:   "sqlite",
		idColumn: "INTEGER PRIMARY KEY AUTOINCREMENT",
	}
	postgresDialect = dialect{
		name:       "postgres",
		driver:     "pgx",
		idColumn:   "BIGSERIAL PRIMARY KEY",
		positional: true,
	}
)

// rebind rewrites ? placeholders to $1, $2... for engines that need it
func (d dialect) rebind(query string) string {
	if !d.positional {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

const schemaTemplate = `
CREATE TABLE IF NOT EXISTS temperature_programs (
	id %[1]s,
	hash TEXT NOT NULL UNIQUE,
	program TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS experiments (
	id %[1]s,
	file_name TEXT NOT NULL,
	version TEXT NOT NULL,
	experiment_details TEXT NOT NULL,
	experiment_number TEXT NOT NULL,
	experimenter TEXT NOT NULL,
	project TEXT NOT NULL,
	lab_journal TEXT NOT NULL,
	description TEXT NOT NULL,
	start_of_experiment TEXT NOT NULL,
	temperature_program_id BIGINT REFERENCES temperature_programs(id)
);
CREATE TABLE IF NOT EXISTS reactors (
	id %[1]s,
	experiment_id BIGINT NOT NULL REFERENCES experiments(id),
	reactor_number INTEGER NOT NULL,
	polymer TEXT NOT NULL,
	solvent TEXT NOT NULL,
	polymer_id TEXT NOT NULL,
	solvent_id TEXT NOT NULL,
	conc DOUBLE PRECISION NOT NULL,
	conc_unit TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS properties (
	id %[1]s,
	name TEXT NOT NULL,
	unit TEXT NOT NULL,
	UNIQUE (name, unit)
);
CREATE TABLE IF NOT EXISTS property_values (
	entity_kind TEXT NOT NULL,
	entity_id BIGINT NOT NULL,
	property_id BIGINT NOT NULL REFERENCES properties(id),
	value DOUBLE PRECISION NOT NULL,
	PRIMARY KEY (entity_kind, entity_id, property_id)
);
CREATE TABLE IF NOT EXISTS property_arrays (
	id %[1]s,
	entity_kind TEXT NOT NULL,
	entity_id BIGINT NOT NULL,
	property_id BIGINT NOT NULL REFERENCES properties(id),
	UNIQUE (entity_kind, entity_id, property_id)
);
CREATE TABLE IF NOT EXISTS property_array_values (
	array_id BIGINT NOT NULL REFERENCES property_arrays(id),
	array_index INTEGER NOT NULL,
	value DOUBLE PRECISION NOT NULL,
	PRIMARY KEY (array_id, array_index)
);
CREATE TABLE IF NOT EXISTS material_names (
	kind TEXT NOT NULL,
	external_id TEXT NOT NULL,
	search_name TEXT NOT NULL,
	PRIMARY KEY (kind, external_id, search_name)
);
CREATE INDEX IF NOT EXISTS idx_reactors_experiment ON reactors (experiment_id);
CREATE INDEX IF NOT EXISTS idx_material_names_search ON material_names (kind, search_name);
`

// schema returns the DDL statements for d
func (d dialect) schema() []string {
	var stmts []string
	for _, stmt := range strings.Split(fmt.Sprintf(schemaTemplate, d.idColumn), ";") {
		if strings.TrimSpace(stmt) != "" {
			stmts = append(stmts, stmt)
		}
	}
	return stmts
}
