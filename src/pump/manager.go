package pump

import (
	"context"
	"sync"

	"trading-backbone/src/interfaces"
	"trading-backbone/src/logger"
	"trading-backbone/src/models"
	"trading-backbone/src/sessions"
	"trading-backbone/src/utils"
)

// -----------------------------------------------------------------------------
// Session provider
// -----------------------------------------------------------------------------

// SessionProvider is the slice of the session cache the pumps need.
type SessionProvider interface {
	GetOrCreate(ctx context.Context, subject string, channel models.Channel) (*sessions.Session, error)
	ForceRefresh(ctx context.Context, subject string, channel models.Channel) (*sessions.Session, error)
}

// -----------------------------------------------------------------------------
// Manager
// -----------------------------------------------------------------------------

// Manager runs one streaming pump per subject with live subscriptions. Pumps
// start on a subject's first subscription and stop when the subject's
// subscription set empties out or its last connection drops.
type Manager struct {
	mu    sync.Mutex
	pumps map[string]*Pump

	cache       SessionProvider
	broadcaster interfaces.IBroadcaster
	cfg         models.MStreamingConfig
	calendar    *utils.TradingCalendar
	logger      *logger.Logger
}

// -----------------------------------------------------------------------------

func NewManager(cache SessionProvider, broadcaster interfaces.IBroadcaster, cfg models.MStreamingConfig, log *logger.Logger) *Manager {
	m := &Manager{
		pumps:       make(map[string]*Pump),
		cache:       cache,
		broadcaster: broadcaster,
		cfg:         cfg,
		logger:      log,
	}
	if cfg.MarketHoursOnly {
		m.calendar = utils.GetCalendar(cfg.ExchangeMIC)
	}
	return m
}

// -----------------------------------------------------------------------------
// IStreamController
// -----------------------------------------------------------------------------

// SubjectActive starts a pump for the subject if none is running.
func (m *Manager) SubjectActive(subject string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, running := m.pumps[subject]; running {
		return
	}

	p := newPump(subject, m.cache, m.broadcaster, m.cfg, m.calendar, m.logger)
	m.pumps[subject] = p

	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	go p.run(ctx)

	m.logger.Info("Started streaming pump for %s (%d active)", subject, len(m.pumps))
}

// -----------------------------------------------------------------------------

// SubjectIdle stops the subject's pump. The pump goroutine is cancelled but
// not joined here: SubjectIdle can be reached from a pump's own broadcast path
// when a failed send tears down the last connection, and joining would
// deadlock on that pump.
func (m *Manager) SubjectIdle(subject string) {
	m.mu.Lock()
	p, running := m.pumps[subject]
	if running {
		delete(m.pumps, subject)
	}
	m.mu.Unlock()

	if !running {
		return
	}

	p.cancel()
	m.logger.Info("Stopped streaming pump for %s", subject)
}

// -----------------------------------------------------------------------------

// ActivePumps returns the number of running pumps.
func (m *Manager) ActivePumps() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pumps)
}

// -----------------------------------------------------------------------------

// StopAll cancels every pump and waits for them to exit. Shutdown only.
func (m *Manager) StopAll() {
	m.mu.Lock()
	pumps := make([]*Pump, 0, len(m.pumps))
	for subject, p := range m.pumps {
		pumps = append(pumps, p)
		delete(m.pumps, subject)
	}
	m.mu.Unlock()

	for _, p := range pumps {
		p.cancel()
	}
	for _, p := range pumps {
		<-p.done
	}

	m.logger.Info("All streaming pumps stopped")
}
