package models

// -----------------------------------------------------------------------------
// WebSocket protocol (JSON text frames, matches the frontend contract)
// -----------------------------------------------------------------------------

// MWsCommand is a client -> server frame.
// Types: "subscribe_stock", "unsubscribe_stock", "get_subscriptions", "ping".
type MWsCommand struct {
	Type      string `json:"type"`
	StockName string `json:"stock_name,omitempty"`
	Timestamp int64  `json:"timestamp,omitempty"`
}

// -----------------------------------------------------------------------------

// MWsEvent is a server -> client frame. Exactly one of the optional payload
// fields is populated depending on Type. Timestamp is an RFC 3339 string on
// market_data frames and an echoed client value (numeric) on pong frames.
type MWsEvent struct {
	Type          string   `json:"type"`
	StockName     string   `json:"stock_name,omitempty"`
	InstrumentID  string   `json:"instrument_id,omitempty"`
	Message       string   `json:"message,omitempty"`
	Subscriptions []string `json:"subscriptions,omitempty"`
	Data          *MTick   `json:"data,omitempty"`
	Timestamp     any      `json:"timestamp,omitempty"`
}

// -----------------------------------------------------------------------------
// Event type constants
// -----------------------------------------------------------------------------

const (
	WsTypeConnection        = "connection"
	WsTypeSubscriptionOK    = "subscription_success"
	WsTypeSubscriptionError = "subscription_error"
	WsTypeSubscriptionsList = "subscriptions_list"
	WsTypeMarketData        = "market_data"
	WsTypePong              = "pong"
	WsTypeError             = "error"
)
