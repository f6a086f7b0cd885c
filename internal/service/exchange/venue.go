// Package exchange holds the order placement services orders are sent to.
package exchange

import (
	"fmt"
	"strings"

	"github.com/krobus00/order-entry/internal/config"
	"github.com/krobus00/order-entry/internal/entity"
)

const (
	VenueModePaper = "paper"
	VenueModeRest  = "rest"
)

// NewVenue returns the placement service selected by cfg.Mode.
func NewVenue(cfg config.VenueConfig) (entity.OrderPlacementService, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Mode)) {
	case "", VenueModePaper:
		return NewPaperVenue(), nil
	case VenueModeRest:
		return NewRestVenue(cfg)
	default:
		return nil, fmt.Errorf("unknown venue mode %q", cfg.Mode)
	}
}
