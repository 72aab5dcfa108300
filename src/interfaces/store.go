package interfaces

import "trading-backbone/src/models"

// -----------------------------------------------------------------------------
// ICredentialStore defines the contract for stored gateway credentials.
// Key material is encrypted at rest; callers receive it still encrypted and
// decrypt at login time.
// -----------------------------------------------------------------------------

type ICredentialStore interface {

	// Initialize sets up the database schema and tables.
	Initialize() error

	// -----------------------------------------------------------------------------

	// Get returns the stored credentials for one (subject, channel) pair.
	Get(subject string, channel models.Channel) (*models.MCredentials, error)

	// -----------------------------------------------------------------------------

	// Put inserts or replaces the credentials for creds' (subject, channel).
	Put(creds *models.MCredentials) error

	// -----------------------------------------------------------------------------

	// Delete removes the credentials for one (subject, channel) pair.
	Delete(subject string, channel models.Channel) error

	// -----------------------------------------------------------------------------

	// Close the database connection
	Close() error
}
