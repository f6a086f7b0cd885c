package exchange

import (
	"context"
	"strings"
	"testing"

	"github.com/krobus00/order-entry/internal/config"
	"github.com/krobus00/order-entry/internal/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewVenue(t *testing.T) {
	venue, err := NewVenue(config.VenueConfig{})
	require.NoError(t, err)
	assert.IsType(t, &PaperVenue{}, venue)

	venue, err = NewVenue(config.VenueConfig{Mode: "REST", BaseURL: "http://venue", APIKey: "k", APISecret: "s"})
	require.NoError(t, err)
	assert.IsType(t, &RestVenue{}, venue)

	_, err = NewVenue(config.VenueConfig{Mode: "fix"})
	require.Error(t, err)
}

func TestPaperVenue(t *testing.T) {
	venue := NewPaperVenue()
	ctx := context.Background()

	spotID, err := venue.PlaceSpotOrder(ctx, entity.SpotOrderRequest{PlacementOrder: testOrder()})
	require.NoError(t, err)
	perpID, err := venue.PlacePerpOrder(ctx, entity.PerpOrderRequest{PlacementOrder: testOrder()})
	require.NoError(t, err)
	triggerID, err := venue.PlaceTriggerOrder(ctx, entity.TriggerOrderRequest{PlacementOrder: testOrder()})
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(spotID, "paper-"))
	assert.NotEqual(t, spotID, perpID)

	orders := venue.Orders()
	require.Len(t, orders, 3)
	assert.Equal(t, entity.PlacementProtocolSpot, orders[0].Protocol)
	assert.Equal(t, entity.PlacementProtocolPerp, orders[1].Protocol)
	assert.Equal(t, triggerID, orders[2].TxID)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = venue.PlaceSpotOrder(cancelled, entity.SpotOrderRequest{PlacementOrder: testOrder()})
	require.ErrorIs(t, err, context.Canceled)
}
