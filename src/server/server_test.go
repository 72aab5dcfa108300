package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"trading-backbone/src/auth"
	"trading-backbone/src/interfaces"
	"trading-backbone/src/logger"
	"trading-backbone/src/models"
	"trading-backbone/src/registry"
	"trading-backbone/src/sessions"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// -----------------------------------------------------------------------------
// Fixtures
// -----------------------------------------------------------------------------

type stubGatewayClient struct{}

func (stubGatewayClient) Token() string { return "gw-token" }

func (stubGatewayClient) Quotes(_ context.Context, instruments []models.MInstrument) ([]models.MTick, error) {
	ticks := make([]models.MTick, 0, len(instruments))
	for _, inst := range instruments {
		ticks = append(ticks, models.MTick{
			InstrumentID: "2885",
			LastPrice:    2450.5,
			Timestamp:    time.Now().UTC().Format(time.RFC3339),
			StockName:    inst.StockName,
		})
	}
	return ticks, nil
}

func (stubGatewayClient) Search(context.Context, string) ([]models.MInstrument, error) {
	return []models.MInstrument{
		{ExchangeSegment: 1, InstrumentID: 2885, Symbol: "RELIANCE", Series: "EQ"},
	}, nil
}

func (stubGatewayClient) Logout(context.Context) error { return nil }

// -----------------------------------------------------------------------------

type stubDialer struct{ logins int }

func (d *stubDialer) Login(context.Context, models.Channel, *models.MCredentials) (interfaces.IGatewayClient, error) {
	d.logins++
	return stubGatewayClient{}, nil
}

// -----------------------------------------------------------------------------

type memStore struct {
	creds map[string]*models.MCredentials
}

func (s *memStore) Initialize() error { return nil }
func (s *memStore) Close() error      { return nil }

func (s *memStore) Get(subject string, channel models.Channel) (*models.MCredentials, error) {
	creds, ok := s.creds[subject+"/"+string(channel)]
	if !ok {
		return nil, assert.AnError
	}
	return creds, nil
}

func (s *memStore) Put(creds *models.MCredentials) error {
	s.creds[creds.Subject+"/"+string(creds.Channel)] = creds
	return nil
}

func (s *memStore) Delete(subject string, channel models.Channel) error {
	delete(s.creds, subject+"/"+string(channel))
	return nil
}

// -----------------------------------------------------------------------------

type testHarness struct {
	ts      *httptest.Server
	issuer  *auth.TokenIssuer
	expired *auth.TokenIssuer
	dialer  *stubDialer
}

func newHarness(t *testing.T) *testHarness {
	t.Helper()

	authCfg := models.MAuthConfig{
		JWTSecret:              "0123456789abcdef0123456789abcdef",
		AccessTokenExpireMin:   30,
		RefreshTokenExpireDays: 30,
		CredentialKey:          "server-test-key",
	}

	box, err := auth.NewCredentialBox(authCfg.CredentialKey)
	require.NoError(t, err)

	store := &memStore{creds: make(map[string]*models.MCredentials)}
	for _, channel := range models.Channels() {
		apiKey, err := box.Encrypt("api-key")
		require.NoError(t, err)
		secretKey, err := box.Encrypt("secret-key")
		require.NoError(t, err)
		require.NoError(t, store.Put(&models.MCredentials{
			Subject: "user-1", Channel: channel, APIKey: apiKey, SecretKey: secretKey,
		}))
	}

	log := logger.NewLogger("ERROR", "server-test")
	dialer := &stubDialer{}
	cache := sessions.NewCache(store, dialer, box, models.MSessionsConfig{ValidityHours: 12}, log)

	issuer := auth.NewTokenIssuer(authCfg)
	coordinator := auth.NewCoordinator(issuer, func(ctx context.Context, subject string, channel models.Channel) error {
		_, err := cache.ForceRefresh(ctx, subject, channel)
		return err
	}, log)

	reg := registry.NewRegistry(log)

	cfg := &models.MConfig{Name: "trading-backbone", Host: "127.0.0.1", Port: 8000, LogLevel: "ERROR"}
	srv := NewServer(cfg, coordinator, cache, reg, log)

	ts := httptest.NewServer(srv.engine)
	t.Cleanup(ts.Close)

	// Same secret, negative TTL: mints structurally valid but expired tokens.
	expiredCfg := authCfg
	expiredCfg.AccessTokenExpireMin = -1
	expired := auth.NewTokenIssuer(expiredCfg)

	return &testHarness{ts: ts, issuer: issuer, expired: expired, dialer: dialer}
}

// -----------------------------------------------------------------------------

func (h *testHarness) request(t *testing.T, method, path, accessToken, refreshToken string) *http.Response {
	t.Helper()

	req, err := http.NewRequest(method, h.ts.URL+path, http.NoBody)
	require.NoError(t, err)
	if accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+accessToken)
	}
	if refreshToken != "" {
		req.Header.Set("X-Refresh-Token", refreshToken)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

// -----------------------------------------------------------------------------
// REST tests
// -----------------------------------------------------------------------------

func TestServer_HealthIsPublic(t *testing.T) {
	h := newHarness(t)

	resp := h.request(t, http.MethodGet, "/api/health", "", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestServer_MissingTokenRejected(t *testing.T) {
	h := newHarness(t)

	resp := h.request(t, http.MethodGet, "/api/market/quote?symbol=RELIANCE", "", "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestServer_GarbageTokenRejected(t *testing.T) {
	h := newHarness(t)

	resp := h.request(t, http.MethodGet, "/api/market/quote?symbol=RELIANCE", "not-a-jwt", "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestServer_QuoteWithValidToken(t *testing.T) {
	h := newHarness(t)

	access, err := h.issuer.AccessToken("user-1")
	require.NoError(t, err)

	resp := h.request(t, http.MethodGet, "/api/market/quote?symbol=RELIANCE", access, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var tick models.MTick
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&tick))
	assert.Equal(t, "RELIANCE", tick.StockName)
	assert.Equal(t, 2450.5, tick.LastPrice)

	// No refresh headers on a plain authenticated request.
	assert.Empty(t, resp.Header.Get("X-New-Access-Token"))
	assert.Empty(t, resp.Header.Get("X-Token-Refreshed"))
}

func TestServer_ExpiredTokenTransparentRefresh(t *testing.T) {
	h := newHarness(t)

	access, err := h.expired.AccessToken("user-1")
	require.NoError(t, err)
	refresh, err := h.issuer.RefreshToken("user-1")
	require.NoError(t, err)

	resp := h.request(t, http.MethodGet, "/api/market/quote?symbol=RELIANCE", access, refresh)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	newAccess := resp.Header.Get("X-New-Access-Token")
	assert.NotEmpty(t, newAccess)
	assert.Equal(t, "true", resp.Header.Get("X-Token-Refreshed"))
	assert.Equal(t, "true", resp.Header.Get("X-IIFL-Sessions-Refreshed"))

	// The replacement token works on its own.
	resp = h.request(t, http.MethodGet, "/api/market/search?q=REL", newAccess, "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestServer_ExpiredTokenWithoutRefreshRejected(t *testing.T) {
	h := newHarness(t)

	access, err := h.expired.AccessToken("user-1")
	require.NoError(t, err)

	resp := h.request(t, http.MethodGet, "/api/market/quote?symbol=RELIANCE", access, "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestServer_QuoteRequiresSymbol(t *testing.T) {
	h := newHarness(t)

	access, err := h.issuer.AccessToken("user-1")
	require.NoError(t, err)

	resp := h.request(t, http.MethodGet, "/api/market/quote", access, "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestServer_Logout(t *testing.T) {
	h := newHarness(t)

	access, err := h.issuer.AccessToken("user-1")
	require.NoError(t, err)

	// Prime a session, then log out and prime again: two logins total.
	resp := h.request(t, http.MethodGet, "/api/market/quote?symbol=RELIANCE", access, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = h.request(t, http.MethodPost, "/api/auth/logout", access, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = h.request(t, http.MethodGet, "/api/market/quote?symbol=RELIANCE", access, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 2, h.dialer.logins)
}

// -----------------------------------------------------------------------------
// WebSocket tests
// -----------------------------------------------------------------------------

func dialWS(t *testing.T, h *testHarness, token string) *websocket.Conn {
	t.Helper()

	wsURL := "ws" + strings.TrimPrefix(h.ts.URL, "http") + "/ws?token=" + token
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) *models.MWsEvent {
	t.Helper()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	event := &models.MWsEvent{}
	require.NoError(t, conn.ReadJSON(event))
	return event
}

func TestServer_WebSocketRequiresToken(t *testing.T) {
	h := newHarness(t)

	wsURL := "ws" + strings.TrimPrefix(h.ts.URL, "http") + "/ws"
	_, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestServer_WebSocketProtocol(t *testing.T) {
	h := newHarness(t)

	access, err := h.issuer.AccessToken("user-1")
	require.NoError(t, err)
	conn := dialWS(t, h, access)

	// Connection ack arrives first.
	event := readEvent(t, conn)
	assert.Equal(t, models.WsTypeConnection, event.Type)

	// Subscribe.
	require.NoError(t, conn.WriteJSON(&models.MWsCommand{Type: "subscribe_stock", StockName: "reliance"}))
	event = readEvent(t, conn)
	assert.Equal(t, models.WsTypeSubscriptionOK, event.Type)
	assert.Equal(t, "RELIANCE", event.StockName)

	// Subscription list reflects it.
	require.NoError(t, conn.WriteJSON(&models.MWsCommand{Type: "get_subscriptions"}))
	event = readEvent(t, conn)
	assert.Equal(t, models.WsTypeSubscriptionsList, event.Type)
	assert.Equal(t, []string{"RELIANCE"}, event.Subscriptions)

	// Ping echoes the client timestamp.
	require.NoError(t, conn.WriteJSON(&models.MWsCommand{Type: "ping", Timestamp: 1757000000}))
	event = readEvent(t, conn)
	assert.Equal(t, models.WsTypePong, event.Type)
	assert.EqualValues(t, 1757000000, event.Timestamp)

	// Unsubscribe.
	require.NoError(t, conn.WriteJSON(&models.MWsCommand{Type: "unsubscribe_stock", StockName: "RELIANCE"}))
	event = readEvent(t, conn)
	assert.Equal(t, models.WsTypeSubscriptionOK, event.Type)

	// Unknown message types are reported, not fatal.
	require.NoError(t, conn.WriteJSON(&models.MWsCommand{Type: "dance"}))
	event = readEvent(t, conn)
	assert.Equal(t, models.WsTypeError, event.Type)
	assert.Equal(t, "Unknown message type: dance", event.Message)

	// Malformed frames are reported too.
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("{nope")))
	event = readEvent(t, conn)
	assert.Equal(t, models.WsTypeError, event.Type)
}

func TestServer_WebSocketSubscribeWithoutSymbol(t *testing.T) {
	h := newHarness(t)

	access, err := h.issuer.AccessToken("user-1")
	require.NoError(t, err)
	conn := dialWS(t, h, access)

	readEvent(t, conn) // connection ack

	require.NoError(t, conn.WriteJSON(&models.MWsCommand{Type: "subscribe_stock"}))
	event := readEvent(t, conn)
	assert.Equal(t, models.WsTypeSubscriptionError, event.Type)
}
