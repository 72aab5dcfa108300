package interfaces

// -----------------------------------------------------------------------------
// IStreamController receives subscriber-set transitions from the registry.
// The pump manager implements it: a subject's first live subscription starts
// their pump, the last one going away stops it.
// -----------------------------------------------------------------------------

type IStreamController interface {
	SubjectActive(subject string)
	SubjectIdle(subject string)
}

// -----------------------------------------------------------------------------
// IBroadcaster is the registry surface the pump depends on.
// -----------------------------------------------------------------------------

type IBroadcaster interface {

	// Broadcast delivers payload to every connection subscribed to symbol.
	Broadcast(symbol string, payload interface{})

	// -----------------------------------------------------------------------------

	// Subscriptions returns the symbols a subject is currently subscribed to.
	Subscriptions(subject string) []string
}
