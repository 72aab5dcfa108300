package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"trading-backbone/src/helpers"
	"trading-backbone/src/interfaces"
	"trading-backbone/src/logger"
	"trading-backbone/src/models"
)

// -----------------------------------------------------------------------------
// Route table (XTS-style REST API, one prefix per channel)
// -----------------------------------------------------------------------------

const (
	routeMarketLogin  = "/apimarketdata/auth/login"
	routeMarketLogout = "/apimarketdata/auth/logout"
	routeQuotes       = "/apimarketdata/instruments/quotes"
	routeSearch       = "/apimarketdata/search/instrumentsbystring"

	routeInteractiveSession = "/interactive/user/session"

	// Touchline message code for the quotes endpoint.
	messageCodeTouchline = 1501
)

// -----------------------------------------------------------------------------
// Response envelope
// -----------------------------------------------------------------------------

// envelope is the gateway's uniform response wrapper.
type envelope struct {
	Type        string          `json:"type"`
	Code        string          `json:"code"`
	Description string          `json:"description"`
	Result      json.RawMessage `json:"result"`
}

type loginResult struct {
	Token            string `json:"token"`
	UserID           string `json:"userID"`
	IsInvestorClient bool   `json:"isInvestorClient"`
}

type quotesResult struct {
	MessageCode int      `json:"mdp"`
	ListQuotes  []string `json:"listQuotes"`
}

// touchline is one raw quote payload inside listQuotes.
type touchline struct {
	ExchangeInstrumentID int64   `json:"ExchangeInstrumentID"`
	LastTradedPrice      float64 `json:"LastTradedPrice"`
	Change               float64 `json:"Change"`
	PercentChange        float64 `json:"PercentChange"`
	Volume               int64   `json:"Volume"`
	Open                 float64 `json:"Open"`
	High                 float64 `json:"High"`
	Low                  float64 `json:"Low"`
	Close                float64 `json:"Close"`
	BidPrice             float64 `json:"BidPrice"`
	AskPrice             float64 `json:"AskPrice"`
	BidSize              int64   `json:"BidSize"`
	AskSize              int64   `json:"AskSize"`
}

type searchResult struct {
	ExchangeSegment      int    `json:"ExchangeSegment"`
	ExchangeInstrumentID int64  `json:"ExchangeInstrumentID"`
	Name                 string `json:"Name"`
	DisplayName          string `json:"DisplayName"`
	Series               string `json:"Series"`
	ISIN                 string `json:"ISIN"`
}

// -----------------------------------------------------------------------------
// Dialer
// -----------------------------------------------------------------------------

// Dialer authenticates against the brokerage gateway and produces clients.
type Dialer struct {
	Config models.MGatewayConfig
	HTTP   *http.Client
	Logger *logger.Logger
}

// -----------------------------------------------------------------------------

func NewDialer(cfg models.MGatewayConfig, log *logger.Logger) *Dialer {
	return &Dialer{
		Config: cfg,
		HTTP: &http.Client{
			Timeout: time.Duration(cfg.RequestTimeout) * time.Second,
		},
		Logger: log,
	}
}

// -----------------------------------------------------------------------------

// Login authenticates one (channel, credentials) pair and returns a client
// bound to the issued session token.
func (d *Dialer) Login(ctx context.Context, channel models.Channel, creds *models.MCredentials) (interfaces.IGatewayClient, error) {
	route := routeMarketLogin
	if channel == models.ChannelTrading {
		route = routeInteractiveSession
	}

	body := map[string]string{
		"appKey":    creds.APIKey,
		"secretKey": creds.SecretKey,
		"source":    d.Config.Source,
	}

	c := &Client{
		dialer:  d,
		channel: channel,
	}

	env, err := c.do(ctx, http.MethodPost, route, body, nil)
	if err != nil {
		return nil, err
	}

	var result loginResult
	if err := json.Unmarshal(env.Result, &result); err != nil {
		return nil, &helpers.GatewayError{Description: "malformed login result", Cause: err}
	}
	if result.Token == "" {
		return nil, &helpers.GatewayError{
			Code:        env.Code,
			Description: "login succeeded without a session token",
			Auth:        true,
		}
	}

	c.token = result.Token
	c.userID = result.UserID
	d.Logger.Info("Gateway login succeeded for channel %s (gateway user %s)", channel, result.UserID)
	return c, nil
}

// -----------------------------------------------------------------------------
// Client
// -----------------------------------------------------------------------------

// Client is one authenticated gateway connection. Owned by the session cache;
// safe for concurrent use since all state is set at login.
type Client struct {
	dialer  *Dialer
	channel models.Channel
	token   string
	userID  string
}

// -----------------------------------------------------------------------------

func (c *Client) Token() string {
	return c.token
}

// -----------------------------------------------------------------------------

// Quotes fetches touchline quotes for the given instruments and normalizes
// them into ticks. StockName is left for the caller to fill in, since only
// the subscription layer knows the user-facing name.
func (c *Client) Quotes(ctx context.Context, instruments []models.MInstrument) ([]models.MTick, error) {
	reqInstruments := make([]map[string]interface{}, 0, len(instruments))
	for _, inst := range instruments {
		reqInstruments = append(reqInstruments, map[string]interface{}{
			"exchangeSegment":      inst.ExchangeSegment,
			"exchangeInstrumentID": inst.InstrumentID,
		})
	}

	body := map[string]interface{}{
		"instruments":    reqInstruments,
		"xtsMessageCode": messageCodeTouchline,
		"publishFormat":  "JSON",
	}

	env, err := c.do(ctx, http.MethodPost, routeQuotes, body, nil)
	if err != nil {
		return nil, err
	}

	var result quotesResult
	if err := json.Unmarshal(env.Result, &result); err != nil {
		return nil, &helpers.GatewayError{Description: "malformed quotes result", Cause: err}
	}

	ticks := make([]models.MTick, 0, len(result.ListQuotes))
	now := time.Now().UTC().Format(time.RFC3339)
	for _, raw := range result.ListQuotes {
		var tl touchline
		if err := json.Unmarshal([]byte(raw), &tl); err != nil {
			c.dialer.Logger.Warning("Skipping unparseable quote payload: %v", err)
			continue
		}
		ticks = append(ticks, models.MTick{
			InstrumentID:  strconv.FormatInt(tl.ExchangeInstrumentID, 10),
			LastPrice:     tl.LastTradedPrice,
			Change:        tl.Change,
			ChangePercent: tl.PercentChange,
			Volume:        tl.Volume,
			Open:          tl.Open,
			High:          tl.High,
			Low:           tl.Low,
			Close:         tl.Close,
			Bid:           tl.BidPrice,
			Ask:           tl.AskPrice,
			BidSize:       tl.BidSize,
			AskSize:       tl.AskSize,
			Timestamp:     now,
		})
	}

	return ticks, nil
}

// -----------------------------------------------------------------------------

// Search looks up candidate instruments by stock name.
func (c *Client) Search(ctx context.Context, query string) ([]models.MInstrument, error) {
	params := url.Values{}
	params.Set("searchString", query)

	env, err := c.do(ctx, http.MethodGet, routeSearch, nil, params)
	if err != nil {
		return nil, err
	}

	var results []searchResult
	if err := json.Unmarshal(env.Result, &results); err != nil {
		return nil, &helpers.GatewayError{Description: "malformed search result", Cause: err}
	}

	instruments := make([]models.MInstrument, 0, len(results))
	for _, r := range results {
		instruments = append(instruments, models.MInstrument{
			ExchangeSegment: r.ExchangeSegment,
			InstrumentID:    r.ExchangeInstrumentID,
			DisplayName:     r.DisplayName,
			Symbol:          r.Name,
			Series:          r.Series,
			ISIN:            r.ISIN,
		})
	}

	return instruments, nil
}

// -----------------------------------------------------------------------------

// Logout releases the gateway session. Cache eviction calls this best-effort.
func (c *Client) Logout(ctx context.Context) error {
	route := routeMarketLogout
	if c.channel == models.ChannelTrading {
		route = routeInteractiveSession
	}

	_, err := c.do(ctx, http.MethodDelete, route, nil, nil)
	return err
}

// -----------------------------------------------------------------------------
// HTTP plumbing
// -----------------------------------------------------------------------------

func (c *Client) do(ctx context.Context, method, route string, body interface{}, params url.Values) (*envelope, error) {
	endpoint := strings.TrimRight(c.dialer.Config.RootURI, "/") + route
	if params != nil {
		endpoint += "?" + params.Encode()
	}

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		// The gateway expects the bare session token, no Bearer prefix.
		req.Header.Set("Authorization", c.token)
	}

	resp, err := c.dialer.HTTP.Do(req)
	if err != nil {
		return nil, &helpers.GatewayError{Description: fmt.Sprintf("%s %s failed", method, route), Cause: err}
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &helpers.GatewayError{Description: "failed to read gateway response", Cause: err}
	}

	var env envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return nil, &helpers.GatewayError{Description: fmt.Sprintf("unparseable gateway response (status %d)", resp.StatusCode), Cause: err}
	}

	if env.Type != "success" {
		return nil, &helpers.GatewayError{
			Code:        env.Code,
			Description: env.Description,
			Auth:        resp.StatusCode == http.StatusUnauthorized || isLoginRoute(route),
		}
	}

	return &env, nil
}

// -----------------------------------------------------------------------------

func isLoginRoute(route string) bool {
	return route == routeMarketLogin || route == routeInteractiveSession
}
