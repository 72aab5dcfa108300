package models

// -----------------------------------------------------------------------------
// Instrument identification
// -----------------------------------------------------------------------------

// MInstrument identifies one tradable instrument on the gateway.
// ExchangeSegment 1 is NSECM (cash market).
type MInstrument struct {
	StockName       string `json:"stock_name"`
	ExchangeSegment int    `json:"exchange_segment"`
	InstrumentID    int64  `json:"instrument_id"`
	DisplayName     string `json:"display_name"`
	Symbol          string `json:"symbol"`
	Series          string `json:"series"`
	ISIN            string `json:"isin"`
}
