package models

// MTick represents one normalized market update for an instrument.
// Produced by the streaming pump from raw gateway touchline payloads,
// consumed by the subscription registry for fan-out. Not persisted.
type MTick struct {
	StockName     string  `json:"stock_name"`
	InstrumentID  string  `json:"instrument_id"`
	LastPrice     float64 `json:"ltp"`
	Change        float64 `json:"change"`
	ChangePercent float64 `json:"change_percent"`
	Volume        int64   `json:"volume"`
	Open          float64 `json:"open"`
	High          float64 `json:"high"`
	Low           float64 `json:"low"`
	Close         float64 `json:"close"`
	Bid           float64 `json:"bid"`
	Ask           float64 `json:"ask"`
	BidSize       int64   `json:"bid_size"`
	AskSize       int64   `json:"ask_size"`
	Timestamp     string  `json:"timestamp"`
}
