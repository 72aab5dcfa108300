package pump

import (
	"context"
	"strconv"
	"time"

	"trading-backbone/src/helpers"
	"trading-backbone/src/interfaces"
	"trading-backbone/src/logger"
	"trading-backbone/src/models"
	"trading-backbone/src/utils"
)

// -----------------------------------------------------------------------------
// Pump
// -----------------------------------------------------------------------------

// Pump polls the gateway for one subject's subscribed symbols and broadcasts
// normalized ticks. A poll failure never kills the pump: transient errors skip
// the cycle, gateway authentication failures force a session refresh before
// the next one.
type Pump struct {
	subject     string
	cache       SessionProvider
	broadcaster interfaces.IBroadcaster
	cfg         models.MStreamingConfig
	calendar    *utils.TradingCalendar
	logger      *logger.Logger
	strategy    quoteStrategy

	// Resolved symbol -> instrument, kept for the pump's lifetime so the
	// search endpoint is hit once per symbol, not once per cycle.
	instruments map[string]models.MInstrument

	cancel context.CancelFunc
	done   chan struct{}
}

// -----------------------------------------------------------------------------

func newPump(subject string, cache SessionProvider, broadcaster interfaces.IBroadcaster, cfg models.MStreamingConfig, cal *utils.TradingCalendar, log *logger.Logger) *Pump {
	return &Pump{
		subject:     subject,
		cache:       cache,
		broadcaster: broadcaster,
		cfg:         cfg,
		calendar:    cal,
		logger:      log,
		strategy:    pollingStrategy{},
		instruments: make(map[string]models.MInstrument),
		done:        make(chan struct{}),
	}
}

// -----------------------------------------------------------------------------

func (p *Pump) run(ctx context.Context) {
	defer close(p.done)

	interval := time.Duration(p.cfg.PollIntervalSeconds) * time.Second
	if interval <= 0 {
		interval = time.Second
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.cycle(ctx)
		}
	}
}

// -----------------------------------------------------------------------------

func (p *Pump) cycle(ctx context.Context) {
	if p.calendar != nil && !p.calendar.IsOpenOnMinute(time.Now()) {
		return
	}

	symbols := p.broadcaster.Subscriptions(p.subject)
	if len(symbols) == 0 {
		return
	}

	session, err := p.cache.GetOrCreate(ctx, p.subject, models.ChannelMarketData)
	if err != nil {
		p.logger.Warning("No market data session for %s: %v", p.subject, err)
		return
	}

	instruments := p.resolve(ctx, session.Client, symbols)
	if len(instruments) == 0 {
		return
	}

	ticks, err := p.strategy.fetch(ctx, session.Client, instruments)
	if err != nil {
		if helpers.IsGatewayAuth(err) {
			p.logger.Warning("Gateway auth failure polling quotes for %s, refreshing session: %v", p.subject, err)
			if _, rerr := p.cache.ForceRefresh(ctx, p.subject, models.ChannelMarketData); rerr != nil {
				p.logger.Error("Session refresh failed for %s: %v", p.subject, rerr)
			}
		} else {
			p.logger.Warning("Quote poll failed for %s: %v", p.subject, err)
		}
		return
	}

	names := make(map[string]string, len(instruments))
	for _, inst := range instruments {
		names[strconv.FormatInt(inst.InstrumentID, 10)] = inst.StockName
	}

	for i := range ticks {
		tick := ticks[i]
		if tick.StockName == "" {
			tick.StockName = names[tick.InstrumentID]
		}
		if tick.StockName == "" {
			continue
		}

		p.broadcaster.Broadcast(tick.StockName, &models.MWsEvent{
			Type:         models.WsTypeMarketData,
			StockName:    tick.StockName,
			InstrumentID: tick.InstrumentID,
			Data:         &tick,
			Timestamp:    tick.Timestamp,
		})
	}
}

// -----------------------------------------------------------------------------

// resolve maps subscribed symbols to gateway instruments, searching only for
// symbols not seen before. A symbol that cannot be resolved is skipped this
// cycle and retried on the next.
func (p *Pump) resolve(ctx context.Context, client interfaces.IGatewayClient, symbols []string) []models.MInstrument {
	instruments := make([]models.MInstrument, 0, len(symbols))

	for _, symbol := range symbols {
		if inst, ok := p.instruments[symbol]; ok {
			instruments = append(instruments, inst)
			continue
		}

		matches, err := client.Search(ctx, symbol)
		if err != nil {
			p.logger.Warning("Instrument lookup failed for %s: %v", symbol, err)
			continue
		}
		if len(matches) == 0 {
			p.logger.Warning("No instrument found for %s", symbol)
			continue
		}

		inst := pickInstrument(matches)
		inst.StockName = symbol
		p.instruments[symbol] = inst
		instruments = append(instruments, inst)
	}

	return instruments
}

// -----------------------------------------------------------------------------

// pickInstrument prefers the cash equity listing (NSE cash segment, EQ
// series) over derivatives and other series; first match otherwise.
func pickInstrument(matches []models.MInstrument) models.MInstrument {
	for _, m := range matches {
		if m.ExchangeSegment == 1 && m.Series == "EQ" {
			return m
		}
	}
	return matches[0]
}
