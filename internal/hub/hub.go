// Package hub fans state and events out to live subscribers and applies
// their commands to the shared process state.
package hub

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Romanvolodimer/Dispetcher-progecr/internal/config"
	"github.com/Romanvolodimer/Dispetcher-progecr/internal/logger"
	"github.com/Romanvolodimer/Dispetcher-progecr/internal/metrics"
	"github.com/Romanvolodimer/Dispetcher-progecr/internal/models"
	"github.com/Romanvolodimer/Dispetcher-progecr/internal/threshold"
)

// subscriberBuffer is the per-subscriber event queue size. A slow consumer
// skips events rather than blocking the broadcast path.
const subscriberBuffer = 100

// Control re-arms and triggers the poll scheduler.
type Control interface {
	Interval() time.Duration
	SetInterval(d time.Duration)
	Kick()
}

// Adjuster applies manual threshold adjustments.
type Adjuster interface {
	Adjust(ctx context.Context, installation string, direction int, when time.Time) (float64, error)
}

// Archiver receives a copy of every broadcast event.
type Archiver interface {
	Enqueue(ev models.Event)
}

// Hub maintains the set of live subscribers and the canonical in-memory
// snapshot of thresholds and the poll interval. All shared-state mutation
// runs through its command handler.
type Hub struct {
	installations []config.Installation
	fallbacks     *threshold.Fallbacks
	engine        Adjuster
	control       Control
	archiver      Archiver
	now           func() time.Time

	mu      sync.RWMutex
	clients map[string]chan models.Event
}

// New creates a hub. The scheduler is attached separately because it is
// built around the poll runner, which in turn broadcasts through the hub.
func New(installations []config.Installation, fallbacks *threshold.Fallbacks, engine Adjuster) *Hub {
	return &Hub{
		installations: installations,
		fallbacks:     fallbacks,
		engine:        engine,
		now:           time.Now,
		clients:       make(map[string]chan models.Event),
	}
}

// AttachControl wires the poll scheduler. Must be called before serving
// subscribers.
func (h *Hub) AttachControl(c Control) { h.control = c }

// AttachArchiver wires the optional event archiver.
func (h *Hub) AttachArchiver(a Archiver) { h.archiver = a }

// Register adds a subscriber and returns its event channel. The config
// snapshot is the first event delivered.
func (h *Hub) Register(id string) <-chan models.Event {
	h.mu.Lock()
	defer h.mu.Unlock()

	if existing, ok := h.clients[id]; ok {
		close(existing)
		delete(h.clients, id)
	}

	ch := make(chan models.Event, subscriberBuffer)
	h.clients[id] = ch
	ch <- h.snapshot()

	metrics.SubscribersConnected.Set(float64(len(h.clients)))
	log := logger.WithComponent("hub")
	log.Info().Str("subscriber", id).Int("total", len(h.clients)).Msg("subscriber connected")

	return ch
}

// Unregister removes a subscriber and closes its channel.
func (h *Hub) Unregister(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	ch, ok := h.clients[id]
	if !ok {
		return
	}
	close(ch)
	delete(h.clients, id)

	metrics.SubscribersConnected.Set(float64(len(h.clients)))
	log := logger.WithComponent("hub")
	log.Info().Str("subscriber", id).Int("total", len(h.clients)).Msg("subscriber disconnected")
}

// ClientCount returns the number of connected subscribers.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Broadcast sends an event to every subscriber and taps it to the archiver.
func (h *Hub) Broadcast(ev models.Event) {
	metrics.BroadcastsTotal.WithLabelValues(string(ev.Type)).Inc()
	if h.archiver != nil {
		h.archiver.Enqueue(ev)
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for id, ch := range h.clients {
		select {
		case ch <- ev:
		default:
			log := logger.WithComponent("hub")
			log.Warn().Str("subscriber", id).Str("type", string(ev.Type)).Msg("subscriber queue full, event skipped")
		}
	}
}

// sendTo delivers an event to a single subscriber.
func (h *Hub) sendTo(id string, ev models.Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if ch, ok := h.clients[id]; ok {
		select {
		case ch <- ev:
		default:
		}
	}
}

// snapshot builds the configAll event from the current fallback thresholds
// and poll interval.
func (h *Hub) snapshot() models.Event {
	intervalMs := int64(0)
	if h.control != nil {
		intervalMs = h.control.Interval().Milliseconds()
	}

	cards := make([]models.Card, 0, len(h.installations))
	for _, inst := range h.installations {
		thr, _ := h.fallbacks.Get(inst.Name)
		cards = append(cards, models.Card{
			ID:             inst.CardID,
			Threshold:      thr,
			PollIntervalMs: intervalMs,
		})
	}
	return models.NewConfigAll(cards)
}

// HandleCommand validates and applies one subscriber command. Rejections
// never mutate state; resulting state changes are re-broadcast to all
// subscribers.
func (h *Hub) HandleCommand(ctx context.Context, clientID string, raw []byte) {
	log := logger.WithComponent("hub")

	cmd, err := models.ParseCommand(raw)
	if err != nil {
		log.Warn().Err(err).Str("subscriber", clientID).Msg("malformed command")
		metrics.CommandsTotal.WithLabelValues("unknown", "invalid").Inc()
		h.sendTo(clientID, models.NewErrorEvent(0, "malformed command", h.now()))
		return
	}

	switch cmd.Type {
	case models.CmdGetConfigAll:
		h.sendTo(clientID, h.snapshot())
		metrics.CommandsTotal.WithLabelValues(cmd.Type, "ok").Inc()

	case models.CmdSetThreshold:
		h.setFallbackThreshold(clientID, cmd)

	case models.CmdSetPollIntervalMs:
		h.setPollInterval(clientID, cmd)

	case models.CmdAdjustThreshold:
		h.adjustThreshold(ctx, clientID, cmd)

	case models.CmdCheckNow:
		// The optional card id is accepted and ignored: a check always
		// runs the full cycle.
		h.control.Kick()
		metrics.CommandsTotal.WithLabelValues(cmd.Type, "ok").Inc()
	}
}

// setFallbackThreshold updates the in-memory fallback for one card.
func (h *Hub) setFallbackThreshold(clientID string, cmd models.Command) {
	v, err := cmd.FloatValue()
	if err != nil {
		metrics.CommandsTotal.WithLabelValues(cmd.Type, "invalid").Inc()
		h.sendTo(clientID, models.NewErrorEvent(cmd.ID, "threshold value is not numeric", h.now()))
		return
	}

	inst, ok := h.installation(cmd.ID)
	if !ok {
		metrics.CommandsTotal.WithLabelValues(cmd.Type, "invalid").Inc()
		h.sendTo(clientID, models.NewErrorEvent(cmd.ID, fmt.Sprintf("unknown card %d", cmd.ID), h.now()))
		return
	}

	h.fallbacks.Set(inst.Name, v)
	metrics.CommandsTotal.WithLabelValues(cmd.Type, "ok").Inc()

	h.Broadcast(h.snapshot())
	h.Broadcast(models.NewInfo(cmd.ID, fmt.Sprintf("Fallback threshold set to %g", v)))
}

// setPollInterval re-arms the scheduler with a new period.
func (h *Hub) setPollInterval(clientID string, cmd models.Command) {
	v, err := cmd.FloatValue()
	if err != nil || time.Duration(v)*time.Millisecond < config.MinPollInterval {
		metrics.CommandsTotal.WithLabelValues(cmd.Type, "rejected").Inc()
		h.sendTo(clientID, models.NewErrorEvent(cmd.ID, "poll interval must be a number of at least 1000 ms", h.now()))
		return
	}

	interval := time.Duration(v) * time.Millisecond
	h.control.SetInterval(interval)
	metrics.CommandsTotal.WithLabelValues(cmd.Type, "ok").Inc()

	h.Broadcast(h.snapshot())
	h.Broadcast(models.NewInfo(cmd.ID, fmt.Sprintf("Poll interval set to %d s", int(interval.Seconds()))))
}

// adjustThreshold delegates to the adjustment engine and broadcasts the
// outcome.
func (h *Hub) adjustThreshold(ctx context.Context, clientID string, cmd models.Command) {
	dir, err := cmd.Direction()
	if err != nil {
		metrics.CommandsTotal.WithLabelValues(cmd.Type, "invalid").Inc()
		h.sendTo(clientID, models.NewErrorEvent(cmd.CardID, "adjustment must be a signed number", h.now()))
		return
	}

	inst, ok := h.installation(cmd.CardID)
	if !ok {
		metrics.CommandsTotal.WithLabelValues(cmd.Type, "invalid").Inc()
		h.sendTo(clientID, models.NewErrorEvent(cmd.CardID, fmt.Sprintf("unknown card %d", cmd.CardID), h.now()))
		return
	}

	next, err := h.engine.Adjust(ctx, inst.Name, dir, h.now())
	if err != nil {
		metrics.CommandsTotal.WithLabelValues(cmd.Type, "rejected").Inc()
		h.Broadcast(models.NewErrorEvent(cmd.CardID, rejectionMessage(inst.Name, err), h.now()))
		return
	}

	metrics.CommandsTotal.WithLabelValues(cmd.Type, "ok").Inc()
	h.Broadcast(h.snapshot())
	h.Broadcast(models.NewInfo(cmd.CardID,
		fmt.Sprintf("Threshold (%s) stepped %+d LRV, new threshold %g kW", inst.Name, dir, next)))
}

// rejectionMessage renders an engine rejection for subscribers.
func rejectionMessage(installation string, err error) string {
	var rej *threshold.Rejection
	if errors.As(err, &rej) {
		switch rej.Reason {
		case threshold.RejectOppositeLocked:
			return fmt.Sprintf("Adjustment rejected for %s: same direction already applied this hour", installation)
		case threshold.RejectPersistenceFailure:
			return fmt.Sprintf("Adjustment failed for %s: could not update threshold in store", installation)
		case threshold.RejectUnknownInstallation:
			return fmt.Sprintf("Unknown installation %s", installation)
		}
	}
	return fmt.Sprintf("Adjustment failed for %s", installation)
}

func (h *Hub) installation(cardID int) (config.Installation, bool) {
	for _, inst := range h.installations {
		if inst.CardID == cardID {
			return inst, true
		}
	}
	return config.Installation{}, false
}
