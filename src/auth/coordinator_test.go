package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"trading-backbone/src/logger"
	"trading-backbone/src/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// -----------------------------------------------------------------------------
// Fixtures
// -----------------------------------------------------------------------------

type cascadeRecorder struct {
	calls []models.Channel
	fail  map[models.Channel]error
}

func (r *cascadeRecorder) refresh(_ context.Context, _ string, channel models.Channel) error {
	r.calls = append(r.calls, channel)
	if err, ok := r.fail[channel]; ok {
		return err
	}
	return nil
}

func newTestCoordinator(rec *cascadeRecorder) (*Coordinator, *TokenIssuer) {
	issuer := testIssuer()
	log := logger.NewLogger("ERROR", "coordinator-test")
	return NewCoordinator(issuer, rec.refresh, log), issuer
}

// -----------------------------------------------------------------------------
// Tests
// -----------------------------------------------------------------------------

func TestCoordinator_ValidAccessToken(t *testing.T) {
	rec := &cascadeRecorder{}
	coordinator, issuer := newTestCoordinator(rec)

	access, err := issuer.AccessToken("user-1")
	require.NoError(t, err)

	result, err := coordinator.Authenticate(context.Background(), access, "")
	require.NoError(t, err)

	assert.Equal(t, "user-1", result.Subject)
	assert.Empty(t, result.NewAccessToken)
	assert.False(t, result.SessionsRefreshed)
	assert.Empty(t, rec.calls, "no cascade on a valid access token")
}

func TestCoordinator_ExpiredAccessWithValidRefresh(t *testing.T) {
	rec := &cascadeRecorder{}
	coordinator, issuer := newTestCoordinator(rec)

	access, err := issuer.AccessToken("user-1")
	require.NoError(t, err)
	refresh, err := issuer.RefreshToken("user-1")
	require.NoError(t, err)

	// Past the access TTL but well within the refresh TTL.
	issuer.now = func() time.Time { return time.Now().Add(31 * time.Minute) }

	result, err := coordinator.Authenticate(context.Background(), access, refresh)
	require.NoError(t, err)

	assert.Equal(t, "user-1", result.Subject)
	assert.NotEmpty(t, result.NewAccessToken)
	assert.True(t, result.SessionsRefreshed)
	assert.ElementsMatch(t, models.Channels(), rec.calls)

	// The minted token authenticates on its own.
	subject, err := issuer.VerifyAccess(result.NewAccessToken)
	require.NoError(t, err)
	assert.Equal(t, "user-1", subject)
}

func TestCoordinator_CascadeFailureDoesNotFailRefresh(t *testing.T) {
	rec := &cascadeRecorder{fail: map[models.Channel]error{
		models.ChannelTrading: errors.New("interactive login rejected"),
	}}
	coordinator, issuer := newTestCoordinator(rec)

	access, err := issuer.AccessToken("user-1")
	require.NoError(t, err)
	refresh, err := issuer.RefreshToken("user-1")
	require.NoError(t, err)

	issuer.now = func() time.Time { return time.Now().Add(31 * time.Minute) }

	result, err := coordinator.Authenticate(context.Background(), access, refresh)
	require.NoError(t, err)

	assert.NotEmpty(t, result.NewAccessToken)
	// One channel succeeded, so sessions count as refreshed.
	assert.True(t, result.SessionsRefreshed)
	assert.ElementsMatch(t, models.Channels(), rec.calls, "all channels attempted despite one failing")
}

func TestCoordinator_AllCascadesFailStillMintsToken(t *testing.T) {
	rec := &cascadeRecorder{fail: map[models.Channel]error{
		models.ChannelMarketData: errors.New("no credentials"),
		models.ChannelTrading:    errors.New("no credentials"),
	}}
	coordinator, issuer := newTestCoordinator(rec)

	access, err := issuer.AccessToken("user-1")
	require.NoError(t, err)
	refresh, err := issuer.RefreshToken("user-1")
	require.NoError(t, err)

	issuer.now = func() time.Time { return time.Now().Add(31 * time.Minute) }

	result, err := coordinator.Authenticate(context.Background(), access, refresh)
	require.NoError(t, err)

	assert.NotEmpty(t, result.NewAccessToken)
	assert.False(t, result.SessionsRefreshed)
}

func TestCoordinator_ExpiredAccessNoRefreshToken(t *testing.T) {
	rec := &cascadeRecorder{}
	coordinator, issuer := newTestCoordinator(rec)

	access, err := issuer.AccessToken("user-1")
	require.NoError(t, err)

	issuer.now = func() time.Time { return time.Now().Add(31 * time.Minute) }

	_, err = coordinator.Authenticate(context.Background(), access, "")
	assert.Error(t, err)
	assert.Empty(t, rec.calls)
}

func TestCoordinator_InvalidRefreshSurfacesAccessError(t *testing.T) {
	rec := &cascadeRecorder{}
	coordinator, issuer := newTestCoordinator(rec)

	access, err := issuer.AccessToken("user-1")
	require.NoError(t, err)

	issuer.now = func() time.Time { return time.Now().Add(31 * time.Minute) }

	_, err = coordinator.Authenticate(context.Background(), access, "garbage-refresh-token")
	require.Error(t, err)
	// The caller sees the access-token failure, not the refresh one.
	assert.Contains(t, err.Error(), "could not validate credentials")
	assert.Empty(t, rec.calls)
}

func TestCoordinator_AccessTokenUsedAsRefreshRejected(t *testing.T) {
	rec := &cascadeRecorder{}
	coordinator, issuer := newTestCoordinator(rec)

	access, err := issuer.AccessToken("user-1")
	require.NoError(t, err)

	issuer.now = func() time.Time { return time.Now().Add(31 * time.Minute) }

	// Presenting the expired access token in both positions must not mint.
	_, err = coordinator.Authenticate(context.Background(), access, access)
	assert.Error(t, err)
	assert.Empty(t, rec.calls)
}
