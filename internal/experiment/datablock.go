package experiment

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	apperrors "csstcli/internal/errors"
	"csstcli/pkg/contracts/domain"
)

// Column markers of the data block header row
const (
	columnTime        = "Decimal Time"
	columnSetpoint    = "Temperature Setpoint"
	columnActual      = "Temperature Actual"
	columnStirring    = "Stirring"
	timeUnitHours     = "hour"
	minimumHeaderCols = 4
)

// column is a located data block column
type column struct {
	index int
	name  string
	unit  string
}

type dataColumns struct {
	time     column
	setpoint column
	actual   column
	stirring column
	reactors []column
}

func (p *parser1014) readDataBlock(src *Source) error {
	offset := src.Line()

	reader := csv.NewReader(src.Remaining())
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return apperrors.NewParsingError("data block has no header row", nil).WithLine(offset + 1)
	}
	if err != nil {
		return csvError(err, offset)
	}

	cols, colErr := p.locateColumns(header)
	if colErr != nil {
		return colErr.WithLine(offset + 1)
	}

	var times, setpoints, actuals, stirring []float64
	transmissions := make([][]float64, len(cols.reactors))

	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return csvError(err, offset)
		}
		if blankRecord(record) {
			continue
		}
		recordLine, _ := reader.FieldPos(0)
		lineNo := offset + recordLine

		cell, cellErr := cellAt(record, cols.time, lineNo)
		if cellErr != nil {
			return cellErr
		}
		hours, timeErr := ParseDecimalTime(cell)
		if timeErr != nil {
			return timeErr.WithContext("column", cols.time.name).WithLine(lineNo)
		}
		times = append(times, hours)

		for _, target := range []struct {
			col  column
			dest *[]float64
		}{
			{cols.setpoint, &setpoints},
			{cols.actual, &actuals},
			{cols.stirring, &stirring},
		} {
			v, err := floatCell(record, target.col, lineNo)
			if err != nil {
				return err
			}
			*target.dest = append(*target.dest, v)
		}

		for i, col := range cols.reactors {
			v, err := floatCell(record, col, lineNo)
			if err != nil {
				return err
			}
			transmissions[i] = append(transmissions[i], v)
		}
	}

	p.exp.TimeSinceExperimentStart = &domain.PropertyValues{
		Name: domain.PropertyTime, Unit: timeUnitHours, Values: nonNil(times),
	}
	p.exp.SetTemperature = &domain.PropertyValues{
		Name: domain.PropertyTemperature, Unit: cols.setpoint.unit, Values: nonNil(setpoints),
	}
	p.exp.ActualTemperature = &domain.PropertyValues{
		Name: domain.PropertyTemperature, Unit: cols.actual.unit, Values: nonNil(actuals),
	}
	p.exp.StirRates = &domain.PropertyValues{
		Name: domain.PropertyStirRate, Unit: cols.stirring.unit, Values: nonNil(stirring),
	}

	for i, spec := range p.reactors {
		p.exp.AddReactor(spec.polymer, spec.solvent, spec.conc, spec.number, &domain.PropertyValues{
			Name:   domain.PropertyTransmission,
			Unit:   cols.reactors[i].unit,
			Values: nonNil(transmissions[i]),
		})
	}
	return nil
}

func (p *parser1014) locateColumns(header []string) (*dataColumns, *apperrors.AppError) {
	if len(header) < minimumHeaderCols {
		return nil, apperrors.NewParsingError("data block header has too few columns", nil).
			WithContext("columns", len(header))
	}

	cols := &dataColumns{}
	var err *apperrors.AppError
	if cols.time, err = findColumn(header, columnTime, false); err != nil {
		return nil, err
	}
	if cols.setpoint, err = findColumn(header, columnSetpoint, true); err != nil {
		return nil, err
	}
	if cols.actual, err = findColumn(header, columnActual, true); err != nil {
		return nil, err
	}
	if cols.stirring, err = findColumn(header, columnStirring, true); err != nil {
		return nil, err
	}

	for _, spec := range p.reactors {
		col, err := findReactorColumn(header, spec.label)
		if err != nil {
			return nil, err
		}
		cols.reactors = append(cols.reactors, col)
	}
	return cols, nil
}

// findColumn returns the first header cell containing marker
func findColumn(header []string, marker string, needUnit bool) (column, *apperrors.AppError) {
	for i, name := range header {
		if !strings.Contains(name, marker) {
			continue
		}
		col := column{index: i, name: name}
		if needUnit {
			unit, err := bracketUnit(name)
			if err != nil {
				return column{}, err
			}
			col.unit = unit
		}
		return col, nil
	}
	return column{}, apperrors.NewParsingError(fmt.Sprintf("data block has no %q column", marker), nil).
		WithContext("column", marker)
}

// findReactorColumn matches "Reactor1" against "Reactor1 [%]" but not
// "Reactor10 [%]"
func findReactorColumn(header []string, label string) (column, *apperrors.AppError) {
	for i, name := range header {
		if !containsLabel(name, label) {
			continue
		}
		unit, err := bracketUnit(name)
		if err != nil {
			return column{}, err
		}
		return column{index: i, name: name, unit: unit}, nil
	}
	return column{}, apperrors.NewParsingError("data block has no column for reactor", nil).
		WithContext("reactor", label)
}

func containsLabel(name, label string) bool {
	for from := 0; ; {
		i := strings.Index(name[from:], label)
		if i < 0 {
			return false
		}
		end := from + i + len(label)
		if end == len(name) || name[end] < '0' || name[end] > '9' {
			return true
		}
		from = from + i + 1
	}
}

// bracketUnit returns "unit" from "Name [unit]"
func bracketUnit(name string) (string, *apperrors.AppError) {
	_, rest, ok := strings.Cut(name, "[")
	if !ok {
		return "", apperrors.NewParsingError("column header has no [unit] suffix", nil).
			WithContext("column", name)
	}
	unit, _, _ := strings.Cut(rest, "]")
	return strings.TrimSpace(unit), nil
}

func cellAt(record []string, col column, lineNo int) (string, *apperrors.AppError) {
	if col.index >= len(record) {
		return "", apperrors.NewParsingError("row is shorter than the header", nil).
			WithContext("column", col.name).
			WithLine(lineNo)
	}
	cell := strings.TrimSpace(record[col.index])
	if cell == "" {
		return "", apperrors.NewParsingError("empty cell", nil).
			WithContext("column", col.name).
			WithLine(lineNo)
	}
	return cell, nil
}

var errNotFinite = errors.New("value is not finite")

// parseFinite parses a decimal number and rejects the Inf and NaN spellings
// strconv accepts
func parseFinite(s string) (float64, error) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return 0, errNotFinite
	}
	return v, nil
}

func floatCell(record []string, col column, lineNo int) (float64, error) {
	cell, err := cellAt(record, col, lineNo)
	if err != nil {
		return 0, err
	}
	v, perr := parseFinite(cell)
	if perr != nil {
		return 0, apperrors.NewParsingError(fmt.Sprintf("%q is not a number", cell), perr).
			WithContext("column", col.name).
			WithLine(lineNo)
	}
	return v, nil
}

func blankRecord(record []string) bool {
	for _, cell := range record {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

func csvError(err error, offset int) error {
	var parseErr *csv.ParseError
	if errors.As(err, &parseErr) {
		return apperrors.NewParsingError("malformed data block", err).WithLine(offset + parseErr.Line)
	}
	return apperrors.NewParsingError("failed to read data block", err)
}

func nonNil(values []float64) []float64 {
	if values == nil {
		return []float64{}
	}
	return values
}
