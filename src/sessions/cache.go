package sessions

import (
	"context"
	"fmt"
	"sync"
	"time"

	"trading-backbone/src/auth"
	"trading-backbone/src/helpers"
	"trading-backbone/src/interfaces"
	"trading-backbone/src/logger"
	"trading-backbone/src/models"
)

// -----------------------------------------------------------------------------
// Session
// -----------------------------------------------------------------------------

// Session is one cached, time-bounded authenticated handle to the brokerage
// gateway for a (subject, channel) pair.
type Session struct {
	Subject   string
	Channel   models.Channel
	Client    interfaces.IGatewayClient
	Token     string
	CreatedAt time.Time
}

// -----------------------------------------------------------------------------

type cacheKey struct {
	subject string
	channel models.Channel
}

// -----------------------------------------------------------------------------
// Cache
// -----------------------------------------------------------------------------

// Cache owns the (subject, channel) -> Session mapping. At most one live
// session per pair exists at any time. The cache is reachable from
// thread-pooled code paths, so every map access happens under the mutex;
// gateway logins also run under it, serializing concurrent first-time logins
// (acceptable: logins are rare relative to request volume).
type Cache struct {
	mu       sync.Mutex
	sessions map[cacheKey]*Session

	store    interfaces.ICredentialStore
	dialer   interfaces.IGatewayDialer
	box      *auth.CredentialBox
	validity time.Duration
	logger   *logger.Logger

	now func() time.Time
}

// -----------------------------------------------------------------------------

func NewCache(store interfaces.ICredentialStore, dialer interfaces.IGatewayDialer, box *auth.CredentialBox, cfg models.MSessionsConfig, log *logger.Logger) *Cache {
	return &Cache{
		sessions: make(map[cacheKey]*Session),
		store:    store,
		dialer:   dialer,
		box:      box,
		validity: time.Duration(cfg.ValidityHours) * time.Hour,
		logger:   log,
		now:      time.Now,
	}
}

// -----------------------------------------------------------------------------

// GetOrCreate returns a valid cached session or synchronously creates one by
// authenticating with the gateway. A stale entry is replaced in place; a
// failed creation leaves no entry behind.
func (c *Cache) GetOrCreate(ctx context.Context, subject string, channel models.Channel) (*Session, error) {
	if !channel.Valid() {
		return nil, fmt.Errorf("unknown channel %q", channel)
	}

	key := cacheKey{subject: subject, channel: channel}

	c.mu.Lock()
	defer c.mu.Unlock()

	if session, ok := c.sessions[key]; ok {
		if c.now().Sub(session.CreatedAt) < c.validity {
			return session, nil
		}
		// Expired: treated as absent, replaced below.
		delete(c.sessions, key)
	}

	session, err := c.create(ctx, subject, channel)
	if err != nil {
		return nil, err
	}

	c.sessions[key] = session
	return session, nil
}

// -----------------------------------------------------------------------------

// ForceRefresh discards any cached entry for the pair and creates a fresh
// session. Used by the token refresh cascade and by the streaming pump after
// a gateway authentication failure.
func (c *Cache) ForceRefresh(ctx context.Context, subject string, channel models.Channel) (*Session, error) {
	if !channel.Valid() {
		return nil, fmt.Errorf("unknown channel %q", channel)
	}

	key := cacheKey{subject: subject, channel: channel}

	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.sessions, key)

	session, err := c.create(ctx, subject, channel)
	if err != nil {
		return nil, err
	}

	c.sessions[key] = session
	c.logger.Info("Refreshed gateway session for %s/%s", subject, channel)
	return session, nil
}

// -----------------------------------------------------------------------------

// InvalidateAll removes every cached session for a subject regardless of
// channel (logout). Gateway logout is best-effort: the entry goes away even
// if the upstream call fails.
func (c *Cache) InvalidateAll(ctx context.Context, subject string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for key, session := range c.sessions {
		if key.subject != subject {
			continue
		}
		if err := session.Client.Logout(ctx); err != nil {
			c.logger.Warning("Gateway logout failed for %s/%s: %v", subject, key.channel, err)
		}
		delete(c.sessions, key)
	}

	c.logger.Info("Invalidated all gateway sessions for %s", subject)
}

// -----------------------------------------------------------------------------

// create authenticates a new session. Called with c.mu held.
func (c *Cache) create(ctx context.Context, subject string, channel models.Channel) (*Session, error) {
	stored, err := c.store.Get(subject, channel)
	if err != nil {
		return nil, helpers.NewCredentialError(
			fmt.Sprintf("no %s credentials configured for %s", channel, subject), err)
	}

	apiKey, err := c.box.Decrypt(stored.APIKey)
	if err != nil {
		return nil, helpers.NewCredentialError("failed to decrypt api key", err)
	}
	secretKey, err := c.box.Decrypt(stored.SecretKey)
	if err != nil {
		return nil, helpers.NewCredentialError("failed to decrypt secret key", err)
	}

	creds := &models.MCredentials{
		Subject:       subject,
		Channel:       channel,
		APIKey:        apiKey,
		SecretKey:     secretKey,
		GatewayUserID: stored.GatewayUserID,
	}

	client, err := c.dialer.Login(ctx, channel, creds)
	if err != nil {
		return nil, err
	}

	session := &Session{
		Subject:   subject,
		Channel:   channel,
		Client:    client,
		Token:     client.Token(),
		CreatedAt: c.now(),
	}

	c.logger.Info("Created gateway session for %s/%s", subject, channel)
	return session, nil
}
