package domain

import (
	"fmt"
)

// PropertyName identifies a measured or configured quantity
type PropertyName string

const (
	PropertyTemperature           PropertyName = "temperature"
	PropertyTransmission          PropertyName = "transmission"
	PropertyBottomStirRate        PropertyName = "bottom_stir_rate"
	PropertyStirRate              PropertyName = "stir_rate"
	PropertyConcentration         PropertyName = "concentration"
	PropertyTime                  PropertyName = "time"
	PropertyTemperatureChangeRate PropertyName = "temperature_change_rate"
)

// IsValid reports whether the name is one of the known property names
func (n PropertyName) IsValid() bool {
	switch n {
	case PropertyTemperature, PropertyTransmission, PropertyBottomStirRate, PropertyStirRate,
		PropertyConcentration, PropertyTime, PropertyTemperatureChangeRate:
		return true
	}
	return false
}

// PropertyValue holds a single value with its unit (e.g. 5 mg/ml, 700 rpm)
type PropertyValue struct {
	Name  PropertyName `json:"name" validate:"required"`
	Unit  string       `json:"unit"`
	Value float64      `json:"value"`
}

// String returns "<name> is <value> <unit>"
func (p PropertyValue) String() string {
	return fmt.Sprintf("%s is %g %s", p.Name, p.Value, p.Unit)
}

// PropertyValues holds a per-timestep series sharing one name and unit.
// All series of one experiment are index aligned.
type PropertyValues struct {
	Name   PropertyName `json:"name" validate:"required"`
	Unit   string       `json:"unit"`
	Values []float64    `json:"values"`
}

// Len returns the number of samples, nil-safe
func (p *PropertyValues) Len() int {
	if p == nil {
		return 0
	}
	return len(p.Values)
}

// String returns "<name> (<unit>)"
func (p *PropertyValues) String() string {
	return fmt.Sprintf("%s (%s)", p.Name, p.Unit)
}
