package tui

import (
	"fmt"
	"strconv"

	"stramate/internal/config"
)

const (
	metersPerMile = 1609.34
	metersPerKm   = 1000.0
)

// Units formats distances in the user's preferred unit
type Units struct {
	cfg config.DisplayConfig
}

// NewUnits creates a new Units helper with the given display config
func NewUnits(cfg config.DisplayConfig) Units {
	return Units{cfg: cfg}
}

// IsMiles returns true if distances are shown in miles
func (u Units) IsMiles() bool {
	return u.cfg.DistanceUnit == "mi"
}

// FormatDistance formats a distance in meters
func (u Units) FormatDistance(meters float64) string {
	if u.IsMiles() {
		return fmt.Sprintf("%.1f mi", meters/metersPerMile)
	}
	return fmt.Sprintf("%.1f km", meters/metersPerKm)
}

// FormatKilometers formats a snapshot distance, which is kilometers with
// one decimal. Unparseable values are shown as stored.
func (u Units) FormatKilometers(km string) string {
	v, err := strconv.ParseFloat(km, 64)
	if err != nil {
		return km
	}
	return u.FormatDistance(v * metersPerKm)
}
