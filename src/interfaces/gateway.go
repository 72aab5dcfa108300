package interfaces

import (
	"context"

	"trading-backbone/src/models"
)

// -----------------------------------------------------------------------------
// IGatewayClient is an authenticated connection to the brokerage gateway for
// a single channel. Created exclusively by the session cache.
// -----------------------------------------------------------------------------

type IGatewayClient interface {

	// Token returns the gateway session token issued at login.
	Token() string

	// -----------------------------------------------------------------------------

	// Quotes fetches the latest touchline quotes for the given instruments.
	Quotes(ctx context.Context, instruments []models.MInstrument) ([]models.MTick, error)

	// -----------------------------------------------------------------------------

	// Search looks up candidate instruments by stock name.
	Search(ctx context.Context, query string) ([]models.MInstrument, error)

	// -----------------------------------------------------------------------------

	// Logout releases the gateway session. Best-effort on cache eviction.
	Logout(ctx context.Context) error
}

// -----------------------------------------------------------------------------
// IGatewayDialer authenticates against the gateway and produces clients.
// -----------------------------------------------------------------------------

type IGatewayDialer interface {
	Login(ctx context.Context, channel models.Channel, creds *models.MCredentials) (IGatewayClient, error)
}
