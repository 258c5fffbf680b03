package enums

import "fmt"

// UnitOfMeasure is how a product is sold: by weight, by piece or by box.
type UnitOfMeasure string

const (
	UnitOfMeasureKg   UnitOfMeasure = "kg"
	UnitOfMeasureUnit UnitOfMeasure = "unit"
	UnitOfMeasureBox  UnitOfMeasure = "box"
)

var validUnitsOfMeasure = []UnitOfMeasure{
	UnitOfMeasureKg,
	UnitOfMeasureUnit,
	UnitOfMeasureBox,
}

// String implements fmt.Stringer.
func (u UnitOfMeasure) String() string {
	return string(u)
}

// IsValid reports whether the value is a known UnitOfMeasure.
func (u UnitOfMeasure) IsValid() bool {
	for _, candidate := range validUnitsOfMeasure {
		if candidate == u {
			return true
		}
	}
	return false
}

// ParseUnitOfMeasure converts raw input into a UnitOfMeasure.
func ParseUnitOfMeasure(value string) (UnitOfMeasure, error) {
	for _, candidate := range validUnitsOfMeasure {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid unit of measure %q", value)
}
