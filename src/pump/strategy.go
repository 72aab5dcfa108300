package pump

import (
	"context"

	"trading-backbone/src/interfaces"
	"trading-backbone/src/models"
)

// -----------------------------------------------------------------------------
// Quote strategy
// -----------------------------------------------------------------------------

// quoteStrategy abstracts how one cycle's worth of quotes is obtained. The
// pump's subscribe/unsubscribe/broadcast surface is the same regardless of
// strategy, so a push-based stream can replace polling without touching the
// registry.
type quoteStrategy interface {
	fetch(ctx context.Context, client interfaces.IGatewayClient, instruments []models.MInstrument) ([]models.MTick, error)
}

// -----------------------------------------------------------------------------

// pollingStrategy is the fallback wired today: one quotes request per poll
// cycle for the whole subscribed instrument set.
type pollingStrategy struct{}

func (pollingStrategy) fetch(ctx context.Context, client interfaces.IGatewayClient, instruments []models.MInstrument) ([]models.MTick, error) {
	return client.Quotes(ctx, instruments)
}
