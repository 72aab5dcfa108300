package registry

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"trading-backbone/src/interfaces"
	"trading-backbone/src/logger"
	"trading-backbone/src/models"
)

// -----------------------------------------------------------------------------
// Registry
// -----------------------------------------------------------------------------

// Registry owns the live connection set and the bidirectional index between
// subjects and subscribed symbols. The two symbol mappings are mutated under
// one lock so a reader never observes one updated and the other stale; a
// symbol appears as a key in symbolSubs iff at least one subject's set in
// userSymbols contains it.
type Registry struct {
	mu          sync.RWMutex
	connections map[string]map[string]interfaces.IConnection // subject -> connection id -> connection
	userSymbols map[string]map[string]struct{}               // subject -> symbols
	symbolSubs  map[string]map[string]struct{}               // symbol -> subjects

	controller interfaces.IStreamController
	logger     *logger.Logger
}

// -----------------------------------------------------------------------------

func NewRegistry(log *logger.Logger) *Registry {
	return &Registry{
		connections: make(map[string]map[string]interfaces.IConnection),
		userSymbols: make(map[string]map[string]struct{}),
		symbolSubs:  make(map[string]map[string]struct{}),
		logger:      log,
	}
}

// -----------------------------------------------------------------------------

// SetStreamController wires the pump manager. Must be called before the
// first Connect; transitions are reported outside the registry lock.
func (r *Registry) SetStreamController(ctrl interfaces.IStreamController) {
	r.controller = ctrl
}

// -----------------------------------------------------------------------------
// Connection lifecycle
// -----------------------------------------------------------------------------

// Connect registers a connection under its subject and acknowledges it.
func (r *Registry) Connect(conn interfaces.IConnection) {
	subject := conn.Subject()

	r.mu.Lock()
	if r.connections[subject] == nil {
		r.connections[subject] = make(map[string]interfaces.IConnection)
	}
	r.connections[subject][conn.ID()] = conn
	total := len(r.connections[subject])
	r.mu.Unlock()

	r.logger.Info("Subject %s connected (%d live connections)", subject, total)

	if err := conn.Send(&models.MWsEvent{
		Type:    models.WsTypeConnection,
		Message: "Connected to trading platform",
	}); err != nil {
		r.logger.Warning("Connect ack failed for %s: %v", subject, err)
	}
}

// -----------------------------------------------------------------------------

// Disconnect removes a connection. When it was the subject's last one, every
// symbol subscription owned by that subject is dropped as well, keeping the
// two mappings consistent.
func (r *Registry) Disconnect(conn interfaces.IConnection) {
	subject := conn.Subject()
	wentIdle := false

	r.mu.Lock()
	conns, ok := r.connections[subject]
	if ok {
		delete(conns, conn.ID())
		if len(conns) == 0 {
			delete(r.connections, subject)
			wentIdle = r.dropAllSubscriptionsLocked(subject)
		}
	}
	r.mu.Unlock()

	_ = conn.Close()
	r.logger.Info("Subject %s disconnected", subject)

	if wentIdle && r.controller != nil {
		r.controller.SubjectIdle(subject)
	}
}

// -----------------------------------------------------------------------------

// dropAllSubscriptionsLocked removes every symbol owned by subject from both
// mappings. Returns true if the subject had at least one subscription.
// Called with r.mu held.
func (r *Registry) dropAllSubscriptionsLocked(subject string) bool {
	symbols, ok := r.userSymbols[subject]
	if !ok {
		return false
	}

	for symbol := range symbols {
		if subs, ok := r.symbolSubs[symbol]; ok {
			delete(subs, subject)
			if len(subs) == 0 {
				delete(r.symbolSubs, symbol)
			}
		}
	}
	delete(r.userSymbols, subject)
	return len(symbols) > 0
}

// -----------------------------------------------------------------------------
// Subscriptions
// -----------------------------------------------------------------------------

// Subscribe adds symbol to a subject's subscription set. Idempotent: a repeat
// subscribe changes nothing but is still acknowledged.
func (r *Registry) Subscribe(subject, symbol string) error {
	symbol = normalizeSymbol(symbol)
	if symbol == "" {
		return fmt.Errorf("empty stock name")
	}

	r.mu.Lock()
	firstForSubject := len(r.userSymbols[subject]) == 0

	if r.userSymbols[subject] == nil {
		r.userSymbols[subject] = make(map[string]struct{})
	}
	r.userSymbols[subject][symbol] = struct{}{}

	if r.symbolSubs[symbol] == nil {
		r.symbolSubs[symbol] = make(map[string]struct{})
	}
	r.symbolSubs[symbol][subject] = struct{}{}
	r.mu.Unlock()

	r.logger.Info("Subject %s subscribed to %s", subject, symbol)

	r.SendToSubject(subject, &models.MWsEvent{
		Type:      models.WsTypeSubscriptionOK,
		StockName: symbol,
		Message:   fmt.Sprintf("Subscribed to %s updates", symbol),
	})

	if firstForSubject && r.controller != nil {
		r.controller.SubjectActive(subject)
	}
	return nil
}

// -----------------------------------------------------------------------------

// Unsubscribe removes symbol from a subject's subscription set. A symbol not
// subscribed is a no-op that is still acknowledged.
func (r *Registry) Unsubscribe(subject, symbol string) {
	symbol = normalizeSymbol(symbol)

	r.mu.Lock()
	had := false
	if symbols, ok := r.userSymbols[subject]; ok {
		if _, exists := symbols[symbol]; exists {
			had = true
			delete(symbols, symbol)
			if len(symbols) == 0 {
				delete(r.userSymbols, subject)
			}
		}
	}
	if subs, ok := r.symbolSubs[symbol]; ok {
		delete(subs, subject)
		if len(subs) == 0 {
			delete(r.symbolSubs, symbol)
		}
	}
	wentIdle := had && len(r.userSymbols[subject]) == 0
	r.mu.Unlock()

	r.logger.Info("Subject %s unsubscribed from %s", subject, symbol)

	r.SendToSubject(subject, &models.MWsEvent{
		Type:      models.WsTypeSubscriptionOK,
		StockName: symbol,
		Message:   fmt.Sprintf("Unsubscribed from %s updates", symbol),
	})

	if wentIdle && r.controller != nil {
		r.controller.SubjectIdle(subject)
	}
}

// -----------------------------------------------------------------------------

// Subscriptions returns the symbols a subject is currently subscribed to.
func (r *Registry) Subscriptions(subject string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	symbols := make([]string, 0, len(r.userSymbols[subject]))
	for symbol := range r.userSymbols[subject] {
		symbols = append(symbols, symbol)
	}
	sort.Strings(symbols)
	return symbols
}

// -----------------------------------------------------------------------------

// SubscribedSymbols returns every symbol with at least one subscriber.
func (r *Registry) SubscribedSymbols() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	symbols := make([]string, 0, len(r.symbolSubs))
	for symbol := range r.symbolSubs {
		symbols = append(symbols, symbol)
	}
	sort.Strings(symbols)
	return symbols
}

// -----------------------------------------------------------------------------

// ConnectionCount returns the number of live connections across subjects.
func (r *Registry) ConnectionCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	total := 0
	for _, conns := range r.connections {
		total += len(conns)
	}
	return total
}

// -----------------------------------------------------------------------------
// Fan-out
// -----------------------------------------------------------------------------

// Broadcast delivers payload to every connection subscribed to symbol. The
// lock is released before any send happens: delivery walks a snapshot so slow
// consumers never block subscribe/unsubscribe. A failed send tears that
// connection down and delivery continues to the rest.
func (r *Registry) Broadcast(symbol string, payload interface{}) {
	symbol = normalizeSymbol(symbol)

	r.mu.RLock()
	var targets []interfaces.IConnection
	for subject := range r.symbolSubs[symbol] {
		for _, conn := range r.connections[subject] {
			targets = append(targets, conn)
		}
	}
	r.mu.RUnlock()

	r.deliver(targets, payload)
}

// -----------------------------------------------------------------------------

// SendToSubject delivers payload to every connection owned by subject.
func (r *Registry) SendToSubject(subject string, payload interface{}) {
	r.mu.RLock()
	targets := make([]interfaces.IConnection, 0, len(r.connections[subject]))
	for _, conn := range r.connections[subject] {
		targets = append(targets, conn)
	}
	r.mu.RUnlock()

	r.deliver(targets, payload)
}

// -----------------------------------------------------------------------------

// BroadcastAll delivers payload to every live connection (system
// notifications).
func (r *Registry) BroadcastAll(payload interface{}) {
	r.mu.RLock()
	var targets []interfaces.IConnection
	for _, conns := range r.connections {
		for _, conn := range conns {
			targets = append(targets, conn)
		}
	}
	r.mu.RUnlock()

	r.deliver(targets, payload)
}

// -----------------------------------------------------------------------------

func (r *Registry) deliver(targets []interfaces.IConnection, payload interface{}) {
	for _, conn := range targets {
		if err := conn.Send(payload); err != nil {
			r.logger.Warning("Send failed for subject %s connection %s, disconnecting: %v",
				conn.Subject(), conn.ID(), err)
			r.Disconnect(conn)
		}
	}
}

// -----------------------------------------------------------------------------

func normalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}
