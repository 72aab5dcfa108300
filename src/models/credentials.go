package models

// MCredentials holds one subject's key pair for a single gateway channel.
// APIKey and SecretKey are stored encrypted at rest and decrypted only at
// login time.
type MCredentials struct {
	Subject       string
	Channel       Channel
	APIKey        string
	SecretKey     string
	GatewayUserID string
}
