package auth

import (
	"context"

	"trading-backbone/src/logger"
	"trading-backbone/src/models"
)

// -----------------------------------------------------------------------------
// Token Refresh Coordinator
// -----------------------------------------------------------------------------

// RefreshFunc force-refreshes one downstream gateway session. Wired to the
// session cache in main; kept as a function type so the coordinator does not
// depend on the cache package.
type RefreshFunc func(ctx context.Context, subject string, channel models.Channel) error

// -----------------------------------------------------------------------------

// AuthResult is the per-request outcome carried to the response layer.
// NewAccessToken and SessionsRefreshed are exposed as response headers by the
// server middleware without changing the handler's own return value.
type AuthResult struct {
	Subject           string
	NewAccessToken    string
	SessionsRefreshed bool
}

// -----------------------------------------------------------------------------

// Coordinator verifies the platform's bearer token and, on expiry, cascades
// a refresh-token renewal into the subject's downstream gateway sessions.
type Coordinator struct {
	Tokens  *TokenIssuer
	Refresh RefreshFunc
	Logger  *logger.Logger
}

// -----------------------------------------------------------------------------

func NewCoordinator(tokens *TokenIssuer, refresh RefreshFunc, log *logger.Logger) *Coordinator {
	return &Coordinator{
		Tokens:  tokens,
		Refresh: refresh,
		Logger:  log,
	}
}

// -----------------------------------------------------------------------------

// Authenticate resolves the current subject from an access token, falling
// back to the refresh token when the access token is invalid or expired.
//
// Outcomes:
//   - valid access token: subject returned, nothing minted;
//   - invalid access token + valid refresh token: new access token minted and
//     the subject's gateway sessions force-refreshed per channel, each one
//     independent and best-effort;
//   - invalid access token + missing/invalid refresh token: the ORIGINAL
//     access-token verification error is returned.
func (c *Coordinator) Authenticate(ctx context.Context, accessToken, refreshToken string) (*AuthResult, error) {
	subject, accessErr := c.Tokens.VerifyAccess(accessToken)
	if accessErr == nil {
		return &AuthResult{Subject: subject}, nil
	}

	if refreshToken == "" {
		return nil, accessErr
	}

	subject, err := c.Tokens.VerifyRefresh(refreshToken)
	if err != nil {
		c.Logger.Warning("Refresh token rejected for expired access token: %v", err)
		// Surface the original verification failure, not the refresh one.
		return nil, accessErr
	}

	newAccess, err := c.Tokens.AccessToken(subject)
	if err != nil {
		return nil, accessErr
	}

	result := &AuthResult{
		Subject:        subject,
		NewAccessToken: newAccess,
	}

	// Cascade into downstream sessions. A failure in one channel must not
	// abort the others or fail the token refresh itself.
	if c.Refresh != nil {
		for _, channel := range models.Channels() {
			if err := c.Refresh(ctx, subject, channel); err != nil {
				c.Logger.Warning("Cascade refresh failed for %s/%s: %v", subject, channel, err)
				continue
			}
			result.SessionsRefreshed = true
		}
	}

	c.Logger.Info("Access token refreshed for %s (sessions refreshed: %v)", subject, result.SessionsRefreshed)
	return result, nil
}
