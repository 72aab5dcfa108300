package models

// -----------------------------------------------------------------------------
// Channel enumeration
// -----------------------------------------------------------------------------

// Channel is one of the gateway's two independent credential scopes.
// The gateway exposes a market data API and an interactive (trading) API,
// each with its own key pair and login endpoint.
type Channel string

const (
	ChannelMarketData Channel = "market"
	ChannelTrading    Channel = "interactive"
)

// Channels lists every valid channel. Used wherever an operation must cover
// all scopes (cascade refresh, logout).
func Channels() []Channel {
	return []Channel{ChannelMarketData, ChannelTrading}
}

// -----------------------------------------------------------------------------

func (c Channel) Valid() bool {
	return c == ChannelMarketData || c == ChannelTrading
}

// -----------------------------------------------------------------------------

func (c Channel) String() string {
	return string(c)
}
