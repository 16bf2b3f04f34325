package domain

import (
	"bytes"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// TemperatureSetting is the direction of a temperature change
type TemperatureSetting string

const (
	TemperatureHeat TemperatureSetting = "heat"
	TemperatureCool TemperatureSetting = "cool"
)

// StepKind discriminates the temperature step variants
type StepKind string

const (
	StepKindChange StepKind = "change"
	StepKindHold   StepKind = "hold"
)

// TemperatureStep is one step of a temperature program. Implemented only by
// TemperatureChange and TemperatureHold.
type TemperatureStep interface {
	Kind() StepKind
	document() map[string]any
}

// TemperatureChange heats or cools the block to a target at a fixed rate
type TemperatureChange struct {
	Setting TemperatureSetting `json:"setting"`
	To      PropertyValue      `json:"to"`
	Rate    PropertyValue      `json:"rate"`
}

// Kind implements TemperatureStep
func (TemperatureChange) Kind() StepKind { return StepKindChange }

func (c TemperatureChange) document() map[string]any {
	return map[string]any{
		"setting": string(c.Setting),
		"to":      propertyDocument(c.To),
		"rate":    propertyDocument(c.Rate),
	}
}

// TemperatureHold keeps the block at a temperature for a duration
type TemperatureHold struct {
	At  PropertyValue `json:"at"`
	For PropertyValue `json:"for_"`
}

// Kind implements TemperatureStep
func (TemperatureHold) Kind() StepKind { return StepKindHold }

func (h TemperatureHold) document() map[string]any {
	return map[string]any{
		"at":   propertyDocument(h.At),
		"for_": propertyDocument(h.For),
	}
}

func propertyDocument(p PropertyValue) map[string]any {
	return map[string]any{
		"name":  string(p.Name),
		"unit":  p.Unit,
		"value": canonicalFloat(p.Value),
	}
}

// canonicalFloat renders v the way Python's float repr does: integral values
// keep a ".0", exponents outside [-4, 16) switch to scientific notation. -0
// renders as 0.0.
func canonicalFloat(v float64) json.Number {
	if v == 0 {
		return "0.0"
	}
	sci := strconv.FormatFloat(v, 'e', -1, 64)
	exp, _ := strconv.Atoi(sci[strings.IndexByte(sci, 'e')+1:])
	if exp < -4 || exp >= 16 {
		return json.Number(sci)
	}
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return json.Number(s)
}

// canonicalEncode writes compact JSON with sorted keys and unescaped
// non-ASCII and HTML characters
func canonicalEncode(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

// TemperatureProgram is the scripted sequence the instrument runs, split into
// the solvent tuning, sample loading and experiment phases.
type TemperatureProgram struct {
	Block       string            `json:"block"`
	SolventTune []TemperatureStep `json:"solvent_tune"`
	SampleLoad  []TemperatureStep `json:"sample_load"`
	Experiment  []TemperatureStep `json:"experiment"`
}

// CanonicalJSON renders the program with sorted keys, no whitespace and
// Python-style float values, matching the documents earlier versions of the
// tool persisted. Equal programs always render to identical bytes.
func (p *TemperatureProgram) CanonicalJSON() ([]byte, error) {
	return canonicalEncode(map[string]any{
		"block":        p.Block,
		"solvent_tune": stepDocuments(p.SolventTune),
		"sample_load":  stepDocuments(p.SampleLoad),
		"experiment":   stepDocuments(p.Experiment),
	})
}

// Hash returns the hex MD5 digest of CanonicalJSON. It is the dedup key for
// stored programs.
func (p *TemperatureProgram) Hash() (string, error) {
	data, err := p.CanonicalJSON()
	if err != nil {
		return "", fmt.Errorf("encode temperature program: %w", err)
	}
	sum := md5.Sum(data)
	return hex.EncodeToString(sum[:]), nil
}

// MarshalJSON implements json.Marshaler using the canonical form
func (p TemperatureProgram) MarshalJSON() ([]byte, error) {
	return p.CanonicalJSON()
}

// UnmarshalJSON implements json.Unmarshaler
func (p *TemperatureProgram) UnmarshalJSON(data []byte) error {
	var raw struct {
		Block       string          `json:"block"`
		SolventTune json.RawMessage `json:"solvent_tune"`
		SampleLoad  json.RawMessage `json:"sample_load"`
		Experiment  json.RawMessage `json:"experiment"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	var err error
	p.Block = raw.Block
	if p.SolventTune, err = UnmarshalSteps(raw.SolventTune); err != nil {
		return fmt.Errorf("solvent_tune: %w", err)
	}
	if p.SampleLoad, err = UnmarshalSteps(raw.SampleLoad); err != nil {
		return fmt.Errorf("sample_load: %w", err)
	}
	if p.Experiment, err = UnmarshalSteps(raw.Experiment); err != nil {
		return fmt.Errorf("experiment: %w", err)
	}
	return nil
}

// MarshalSteps encodes a phase step list in the canonical form
func MarshalSteps(steps []TemperatureStep) ([]byte, error) {
	return canonicalEncode(stepDocuments(steps))
}

// UnmarshalSteps decodes a phase step list. A step with a "setting" key is a
// TemperatureChange, one with an "at" key is a TemperatureHold.
func UnmarshalSteps(data []byte) ([]TemperatureStep, error) {
	steps := []TemperatureStep{}
	if len(data) == 0 || string(data) == "null" {
		return steps, nil
	}
	var raws []map[string]json.RawMessage
	if err := json.Unmarshal(data, &raws); err != nil {
		return nil, err
	}
	for i, raw := range raws {
		encoded, err := json.Marshal(raw)
		if err != nil {
			return nil, err
		}
		switch {
		case raw["setting"] != nil:
			var change TemperatureChange
			if err := json.Unmarshal(encoded, &change); err != nil {
				return nil, fmt.Errorf("step %d: %w", i, err)
			}
			steps = append(steps, change)
		case raw["at"] != nil:
			var hold TemperatureHold
			if err := json.Unmarshal(encoded, &hold); err != nil {
				return nil, fmt.Errorf("step %d: %w", i, err)
			}
			steps = append(steps, hold)
		default:
			return nil, fmt.Errorf("step %d: unknown temperature step shape", i)
		}
	}
	return steps, nil
}

func stepDocuments(steps []TemperatureStep) []map[string]any {
	docs := make([]map[string]any, 0, len(steps))
	for _, step := range steps {
		docs = append(docs, step.document())
	}
	return docs
}
