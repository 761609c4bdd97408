package monitoring

import (
	"context"
	"time"

	"github.com/isdelr/ender-world-manager/internal/metrics"
	"github.com/isdelr/ender-world-manager/internal/models"
	"github.com/isdelr/ender-world-manager/internal/services"
	"github.com/isdelr/ender-world-manager/internal/websocket"
	"github.com/rs/zerolog/log"
)

// statusUpdate is the payload of a server_status broadcast.
type statusUpdate struct {
	Status models.ServerStatus `json:"status"`
	Worlds []models.World      `json:"worlds"`
}

// StatusPoller periodically probes the game server, updates the Prometheus
// gauges and pushes the result to websocket clients.
type StatusPoller struct {
	statusSvc services.StatusServiceProvider
	worldSvc  services.WorldServiceProvider
	hub       *websocket.Hub
	interval  time.Duration
	ticker    *time.Ticker
	done      chan struct{}
	wasOnline *bool
	eventSvc  services.EventServiceProvider
}

// NewStatusPoller creates a new StatusPoller. hub may be nil.
func NewStatusPoller(statusSvc services.StatusServiceProvider, worldSvc services.WorldServiceProvider, eventSvc services.EventServiceProvider, hub *websocket.Hub, interval time.Duration) *StatusPoller {
	return &StatusPoller{
		statusSvc: statusSvc,
		worldSvc:  worldSvc,
		eventSvc:  eventSvc,
		hub:       hub,
		interval:  interval,
		done:      make(chan struct{}),
	}
}

// Run starts the periodic updates.
func (p *StatusPoller) Run() {
	log.Info().Dur("interval", p.interval).Msg("Starting background status poller...")
	p.ticker = time.NewTicker(p.interval)
	defer p.ticker.Stop()

	// Run once immediately on start
	p.poll()

	for {
		select {
		case <-p.done:
			log.Info().Msg("Stopping background status poller.")
			return
		case <-p.ticker.C:
			p.poll()
		}
	}
}

// Stop halts the periodic updates.
func (p *StatusPoller) Stop() {
	close(p.done)
}

func (p *StatusPoller) poll() {
	ctx, cancel := context.WithTimeout(context.Background(), p.interval)
	defer cancel()

	status := p.statusSvc.GetStatus(ctx)
	if status.Online {
		metrics.ServerOnline.Set(1)
	} else {
		metrics.ServerOnline.Set(0)
	}
	metrics.PlayersOnline.Set(float64(status.PlayerCount))
	p.trackAvailability(status.Online)

	worlds, err := p.worldSvc.ListWorlds()
	if err != nil {
		log.Warn().Err(err).Msg("StatusPoller: Failed to list worlds")
		worlds = []models.World{}
	}
	metrics.WorldSizeBytes.Reset()
	for _, w := range worlds {
		metrics.WorldSizeBytes.WithLabelValues(w.Name).Set(float64(w.SizeBytes))
	}

	msg, err := websocket.Encode("server_status", statusUpdate{Status: status, Worlds: worlds})
	if err != nil {
		log.Error().Err(err).Msg("StatusPoller: Failed to encode status update")
		return
	}
	p.hub.Publish(msg)
}

// trackAvailability records an event whenever the server goes up or down.
func (p *StatusPoller) trackAvailability(online bool) {
	if p.wasOnline != nil && *p.wasOnline != online {
		if online {
			p.eventSvc.CreateEvent("server.online", "info", "Game server is reachable again.", nil)
		} else {
			p.eventSvc.CreateEvent("server.offline", "warn", "Game server stopped answering the remote console.", nil)
		}
	}
	p.wasOnline = &online
}
