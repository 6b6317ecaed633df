package enums

import "fmt"

// PanelType identifies the board construction of a product.
type PanelType string

const (
	PanelTypeLattePlaquage PanelType = "latte_plaquage"
	PanelTypeMDFFormica    PanelType = "mdf_formica"
	PanelTypeMDFHydrofuge  PanelType = "mdf_hydrofuge"
)

var validPanelTypes = []PanelType{
	PanelTypeLattePlaquage,
	PanelTypeMDFFormica,
	PanelTypeMDFHydrofuge,
}

// String implements fmt.Stringer.
func (p PanelType) String() string {
	return string(p)
}

// IsValid reports whether the value is a known PanelType.
func (p PanelType) IsValid() bool {
	for _, candidate := range validPanelTypes {
		if candidate == p {
			return true
		}
	}
	return false
}

// ParsePanelType converts raw input into a PanelType.
func ParsePanelType(value string) (PanelType, error) {
	for _, candidate := range validPanelTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid panel type %q", value)
}
