package interfaces

// -----------------------------------------------------------------------------
// IConnection is one live duplex channel to an end-user client.
// -----------------------------------------------------------------------------

type IConnection interface {

	// ID uniquely identifies this connection among a subject's connections.
	ID() string

	// -----------------------------------------------------------------------------

	// Subject returns the owning authenticated user id.
	Subject() string

	// -----------------------------------------------------------------------------

	// Send enqueues a JSON-serializable payload for delivery. It must not
	// block: a slow or dead consumer returns an error instead of stalling
	// the caller.
	Send(payload interface{}) error

	// -----------------------------------------------------------------------------

	// Close tears the underlying transport down.
	Close() error
}
