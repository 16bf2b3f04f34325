package experiment

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"unicode"

	apperrors "csstcli/internal/errors"
	"csstcli/pkg/contracts/domain"
)

// parseState is the position of the version 1014 parser in the file
type parseState int

const (
	stateHeader parseState = iota
	stateDescription
	stateProgramPreamble
	stateSolventTune
	stateSampleLoad
	stateExperiment
	stateDataBlock
)

func (s parseState) String() string {
	switch s {
	case stateHeader:
		return "header"
	case stateDescription:
		return "description"
	case stateProgramPreamble:
		return "program_preamble"
	case stateSolventTune:
		return "solvent_tune"
	case stateSampleLoad:
		return "sample_load"
	case stateExperiment:
		return "experiment"
	case stateDataBlock:
		return "data_block"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// reactorSpec is a reactor definition from the header, bound to its data
// column once the data block is read
type reactorSpec struct {
	label   string
	number  int
	polymer string
	solvent string
	conc    domain.PropertyValue
}

type parser1014 struct {
	ctx    context.Context
	logger *slog.Logger
	exp    *domain.Experiment

	state    parseState
	reactors []reactorSpec
	program  *domain.TemperatureProgram
	// tempUnit is the unit of the last Heat to/Cool to line, reused by Hold at
	tempUnit string
}

func parseVersion1014(ctx context.Context, exp *domain.Experiment, src *Source, logger *slog.Logger) error {
	p := &parser1014{
		ctx:    ctx,
		logger: logger,
		exp:    exp,
		state:  stateHeader,
		program: &domain.TemperatureProgram{
			SolventTune: []domain.TemperatureStep{},
			SampleLoad:  []domain.TemperatureStep{},
			Experiment:  []domain.TemperatureStep{},
		},
	}

	for p.state != stateDataBlock {
		raw, ok, err := src.Next()
		if err != nil {
			return apperrors.NewParsingError("failed to read line", err).WithLine(src.Line() + 1)
		}
		if !ok {
			return apperrors.NewParsingError("unexpected end of file", nil).
				WithContext("state", p.state.String()).
				WithLine(src.Line())
		}
		if err := p.consume(trimLine(raw), src.Line()); err != nil {
			return err
		}
	}

	exp.TemperatureProgram = p.program
	return p.readDataBlock(src)
}

// trimLine drops the trailing field padding the instrument writes
func trimLine(raw string) string {
	return strings.Trim(raw, ",")
}

// consume advances the state machine by one line
func (p *parser1014) consume(line string, lineNo int) error {
	fields := strings.Split(line, ",")

	switch p.state {
	case stateHeader:
		if strings.Contains(line, "Temperature Program") {
			p.state = stateProgramPreamble
			return nil
		}
		return p.headerLine(fields, lineNo)

	case stateDescription:
		if strings.Contains(line, "Temperature Program") {
			p.state = stateProgramPreamble
			return nil
		}
		if strings.Contains(line, "Start of Experiment") {
			p.state = stateHeader
			return p.headerLine(fields, lineNo)
		}
		return p.descriptionLine(line, fields, lineNo)

	case stateProgramPreamble, stateSolventTune, stateSampleLoad, stateExperiment:
		return p.programLine(fields, lineNo)
	}

	return apperrors.NewParsingError("parser reached an unexpected state", nil).
		WithContext("state", p.state.String()).
		WithLine(lineNo)
}

func (p *parser1014) headerLine(fields []string, lineNo int) error {
	key := strings.TrimSpace(fields[0])
	value := strings.TrimSpace(strings.Join(fields[1:], ","))

	switch {
	case key == "Experiment details":
		p.exp.ExperimentDetails = value
	case key == "ExperimentNumber":
		p.exp.ExperimentNumber = value
	case key == "Experimentor":
		p.exp.Experimenter = value
	case key == "Project":
		p.exp.Project = value
	case key == "Labjournal":
		p.exp.LabJournal = value
	case key == "Description":
		if value != "" {
			p.exp.Description = append(p.exp.Description, value)
		}
		p.state = stateDescription
	case key == "Start of Experiment":
		if value == "" {
			return nil
		}
		start, err := ParseStartOfExperiment(value)
		if err != nil {
			return err.WithLine(lineNo)
		}
		p.exp.StartOfExperiment = start
	case strings.Contains(key, "Reactor"):
		return p.reactorLine(key, value, lineNo)
	case key == "":
	default:
		p.logger.DebugContext(p.ctx, "ignoring header line",
			slog.String("key", key),
			slog.Int("line", lineNo))
	}
	return nil
}

func (p *parser1014) descriptionLine(line string, fields []string, lineNo int) error {
	key := strings.ToLower(strings.TrimSpace(fields[0]))

	var target map[string]string
	var prefix string
	switch {
	case strings.HasPrefix(key, "polymer_ids"):
		target, prefix = p.exp.PolymerIDs, "polymer_ids"
	case strings.HasPrefix(key, "solvent_ids"):
		target, prefix = p.exp.SolventIDs, "solvent_ids"
	default:
		p.exp.Description = append(p.exp.Description, line)
		return nil
	}

	tokens := fields[1:]
	if rest := strings.TrimLeft(strings.TrimSpace(fields[0])[len(prefix):], " :="); rest != "" {
		tokens = append([]string{rest}, tokens...)
	}
	pairs, err := ParseIDPairs(tokens)
	if err != nil {
		return err.WithContext("field", prefix).WithLine(lineNo)
	}
	for name, id := range pairs {
		target[name] = id
	}
	return nil
}

// reactorLine parses "Reactor<n>,<conc> <unit> <polymer> in <solvent>"
func (p *parser1014) reactorLine(label, value string, lineNo int) error {
	parts := strings.Fields(value)
	if len(parts) == 0 {
		return apperrors.NewParsingError("reactor definition is empty", nil).
			WithContext("reactor", label).
			WithLine(lineNo)
	}

	conc, err := parseFinite(parts[0])
	if err != nil {
		return apperrors.NewParsingError("reactor concentration is not a number", err).
			WithContext("reactor", label).
			WithLine(lineNo)
	}
	if conc == 0 {
		p.logger.DebugContext(p.ctx, "dropping empty reactor",
			slog.String("reactor", label),
			slog.Int("line", lineNo))
		return nil
	}
	if len(parts) < 2 {
		return apperrors.NewParsingError("reactor concentration has no unit", nil).
			WithContext("reactor", label).
			WithLine(lineNo)
	}

	polymer, solvent, ok := strings.Cut(" "+strings.Join(parts[2:], " ")+" ", " in ")
	if !ok {
		return apperrors.NewParsingError(`reactor definition is not "<conc> <unit> <polymer> in <solvent>"`, nil).
			WithContext("reactor", label).
			WithLine(lineNo)
	}

	number, numErr := reactorNumber(label)
	if numErr != nil {
		return numErr.WithLine(lineNo)
	}

	p.reactors = append(p.reactors, reactorSpec{
		label:   label,
		number:  number,
		polymer: strings.TrimSpace(polymer),
		solvent: strings.TrimSpace(solvent),
		conc: domain.PropertyValue{
			Name:  domain.PropertyConcentration,
			Unit:  strings.TrimSpace(parts[1]),
			Value: conc,
		},
	})
	return nil
}

// reactorNumber returns the trailing digits of a label such as "Reactor12"
func reactorNumber(label string) (int, *apperrors.AppError) {
	end := len(label)
	start := end
	for start > 0 && unicode.IsDigit(rune(label[start-1])) {
		start--
	}
	if start == end {
		return 0, apperrors.NewParsingError("reactor label has no number", nil).
			WithContext("reactor", label)
	}
	n, err := strconv.Atoi(label[start:end])
	if err != nil {
		return 0, apperrors.NewParsingError("reactor label has no number", err).
			WithContext("reactor", label)
	}
	return n, nil
}

func (p *parser1014) programLine(fields []string, lineNo int) error {
	key := fields[0]

	switch {
	case strings.Contains(key, "Data Block"):
		p.state = stateDataBlock

	case strings.Contains(key, "Block"):
		block, err := stringField(fields, 1, "block", lineNo)
		if err != nil {
			return err
		}
		p.program.Block = block
		p.state = stateSolventTune

	case strings.Contains(key, "Tune"):
		p.state = stateSampleLoad

	case strings.Contains(key, "Stir (Bottom)"):
		rate, err := floatField(fields, 1, "bottom stir rate", lineNo)
		if err != nil {
			return err
		}
		unit, err := stringField(fields, 2, "bottom stir rate unit", lineNo)
		if err != nil {
			return err
		}
		p.exp.BottomStirRate = &domain.PropertyValue{
			Name:  domain.PropertyBottomStirRate,
			Unit:  unit,
			Value: rate,
		}
		p.state = stateExperiment

	case strings.Contains(key, "Stir"):
		return apperrors.NewUnsupportedFeatureError("only a bottom stir rate is supported in the temperature program").
			WithContext("stir", strings.TrimSpace(key)).
			WithLine(lineNo)

	case strings.Contains(key, "Heat to"), strings.Contains(key, "Cool to"):
		step, err := p.changeStep(key, fields, lineNo)
		if err != nil {
			return err
		}
		p.addStep(step, lineNo)

	case strings.Contains(key, "Hold at"):
		step, err := p.holdStep(fields, lineNo)
		if err != nil {
			return err
		}
		p.addStep(step, lineNo)

	default:
		if strings.TrimSpace(key) != "" {
			p.logger.DebugContext(p.ctx, "ignoring temperature program line",
				slog.String("key", key),
				slog.Int("line", lineNo))
		}
	}
	return nil
}

// changeStep parses "Heat to,<temp>,<unit>,<rate>,<unit>/<time unit>"
func (p *parser1014) changeStep(key string, fields []string, lineNo int) (domain.TemperatureStep, error) {
	setting := domain.TemperatureCool
	if strings.Contains(key, "Heat") {
		setting = domain.TemperatureHeat
	}

	to, err := floatField(fields, 1, "target temperature", lineNo)
	if err != nil {
		return nil, err
	}
	rate, err := floatField(fields, 3, "temperature change rate", lineNo)
	if err != nil {
		return nil, err
	}
	rateUnit, err := stringField(fields, 4, "temperature change rate unit", lineNo)
	if err != nil {
		return nil, err
	}

	tempUnit, _, _ := strings.Cut(rateUnit, "/")
	p.tempUnit = tempUnit

	return domain.TemperatureChange{
		Setting: setting,
		To:      domain.PropertyValue{Name: domain.PropertyTemperature, Unit: tempUnit, Value: to},
		Rate:    domain.PropertyValue{Name: domain.PropertyTemperatureChangeRate, Unit: rateUnit, Value: rate},
	}, nil
}

// holdStep parses "Hold at,<temp>,<unit>,<duration>,<time unit>"
func (p *parser1014) holdStep(fields []string, lineNo int) (domain.TemperatureStep, error) {
	if p.tempUnit == "" {
		return nil, apperrors.NewParsingError("hold step appears before any heat or cool step", nil).
			WithLine(lineNo)
	}
	at, err := floatField(fields, 1, "hold temperature", lineNo)
	if err != nil {
		return nil, err
	}
	duration, err := floatField(fields, 3, "hold duration", lineNo)
	if err != nil {
		return nil, err
	}
	unit, err := stringField(fields, 4, "hold duration unit", lineNo)
	if err != nil {
		return nil, err
	}

	return domain.TemperatureHold{
		At:  domain.PropertyValue{Name: domain.PropertyTemperature, Unit: p.tempUnit, Value: at},
		For: domain.PropertyValue{Name: domain.PropertyTime, Unit: unit, Value: duration},
	}, nil
}

func (p *parser1014) addStep(step domain.TemperatureStep, lineNo int) {
	switch p.state {
	case stateSolventTune:
		p.program.SolventTune = append(p.program.SolventTune, step)
	case stateSampleLoad:
		p.program.SampleLoad = append(p.program.SampleLoad, step)
	case stateExperiment:
		p.program.Experiment = append(p.program.Experiment, step)
	default:
		p.logger.DebugContext(p.ctx, "dropping temperature step outside a program phase",
			slog.String("kind", string(step.Kind())),
			slog.Int("line", lineNo))
	}
}

func stringField(fields []string, i int, name string, lineNo int) (string, error) {
	if i >= len(fields) || strings.TrimSpace(fields[i]) == "" {
		return "", apperrors.NewParsingError(fmt.Sprintf("missing %s", name), nil).
			WithContext("field", i).
			WithLine(lineNo)
	}
	return strings.TrimSpace(fields[i]), nil
}

func floatField(fields []string, i int, name string, lineNo int) (float64, error) {
	s, err := stringField(fields, i, name, lineNo)
	if err != nil {
		return 0, err
	}
	v, perr := parseFinite(s)
	if perr != nil {
		return 0, apperrors.NewParsingError(fmt.Sprintf("%s is not a number", name), perr).
			WithContext("field", i).
			WithLine(lineNo)
	}
	return v, nil
}
