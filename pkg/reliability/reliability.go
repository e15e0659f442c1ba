package reliability

import (
	"sort"
	"sync"
	"time"

	"github.com/cbodonnell/cardroom/pkg/log"
	"github.com/cbodonnell/cardroom/pkg/messages"
	"github.com/cbodonnell/cardroom/pkg/metrics"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

const (
	DefaultConfirmationTimeout = 5 * time.Second
	DefaultMaxAttempts         = 3

	ReasonDeliveryTimeout  = "delivery-timeout"
	ReasonClientRequested  = "client-requested"
	HealthStatusHealthy    = "healthy"
	HealthStatusDegraded   = "degraded"
	degradedPendingPerRoom = 20
)

// DefaultCriticalEvents are the events that need confirmation out of the box.
var DefaultCriticalEvents = []string{
	messages.MessageTypeReadyChanged,
	messages.MessageTypeTeamsFormed,
	messages.MessageTypeGameStarting,
}

// Emitter is the fire-and-forget room broadcast primitive.
type Emitter interface {
	Emit(gameID string, event string, payload interface{})
}

type Event struct {
	EventID     string      `json:"eventId"`
	GameID      string      `json:"gameId"`
	EventType   string      `json:"eventType"`
	Payload     interface{} `json:"payload"`
	EmittedAt   time.Time   `json:"emittedAt"`
	ConfirmedAt *time.Time  `json:"confirmedAt,omitempty"`
	Attempts    int         `json:"attempts"`
	IsCritical  bool        `json:"isCritical"`
}

type EventStats struct {
	Sent          int64 `json:"sent"`
	Confirmed     int64 `json:"confirmed"`
	Retries       int64 `json:"retries"`
	Failed        int64 `json:"failed"`
	Fallbacks     int64 `json:"fallbacks"`
	ConfirmMillis int64 `json:"totalConfirmMillis"`
}

type Stats struct {
	EventStats        map[string]EventStats `json:"eventStats"`
	PendingEvents     int                   `json:"pendingEvents"`
	MonitoringEnabled bool                  `json:"monitoringEnabled"`
	CriticalEvents    []string              `json:"criticalEvents"`
}

type pendingEvent struct {
	event Event
	timer clockwork.Timer
}

// Service wraps room broadcasts so critical events are tracked until the
// client confirms them, redelivered on timeout, and replaced by a
// state-refresh-required once redelivery gives up.
type Service struct {
	emitter     Emitter
	clock       clockwork.Clock
	timeout     time.Duration
	maxAttempts int

	lock     sync.Mutex
	critical map[string]struct{}
	pending  map[string]*pendingEvent
	stats    map[string]*EventStats
	stopped  bool
}

type NewServiceOptions struct {
	Emitter             Emitter
	Clock               clockwork.Clock
	ConfirmationTimeout time.Duration
	MaxAttempts         int
	// CriticalEvents overrides DefaultCriticalEvents when not nil.
	CriticalEvents []string
}

func NewService(opts NewServiceOptions) *Service {
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.ConfirmationTimeout <= 0 {
		opts.ConfirmationTimeout = DefaultConfirmationTimeout
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = DefaultMaxAttempts
	}
	if opts.CriticalEvents == nil {
		opts.CriticalEvents = DefaultCriticalEvents
	}
	s := &Service{
		emitter:     opts.Emitter,
		clock:       opts.Clock,
		timeout:     opts.ConfirmationTimeout,
		maxAttempts: opts.MaxAttempts,
		critical:    make(map[string]struct{}),
		pending:     make(map[string]*pendingEvent),
		stats:       make(map[string]*EventStats),
	}
	for _, e := range opts.CriticalEvents {
		s.critical[e] = struct{}{}
	}
	return s
}

func (s *Service) AddCriticalEvent(eventType string) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.critical[eventType] = struct{}{}
}

func (s *Service) RemoveCriticalEvent(eventType string) {
	s.lock.Lock()
	defer s.lock.Unlock()
	delete(s.critical, eventType)
}

func (s *Service) IsCritical(eventType string) bool {
	s.lock.Lock()
	defer s.lock.Unlock()
	_, ok := s.critical[eventType]
	return ok
}

// EmitReliable emits payload to the room. Critical events are wrapped in an
// Envelope and tracked until confirmed. It returns false once the service is stopped.
func (s *Service) EmitReliable(gameID string, eventType string, payload interface{}) bool {
	s.lock.Lock()
	if s.stopped {
		s.lock.Unlock()
		return false
	}
	stats := s.statsFor(eventType)
	stats.Sent++
	_, critical := s.critical[eventType]
	if !critical {
		s.lock.Unlock()
		s.emitter.Emit(gameID, eventType, payload)
		metrics.ReliableEventsTotal.WithLabelValues(eventType, "sent").Inc()
		return true
	}

	p := &pendingEvent{event: Event{
		EventID:    uuid.NewString(),
		GameID:     gameID,
		EventType:  eventType,
		Payload:    payload,
		EmittedAt:  s.clock.Now(),
		Attempts:   1,
		IsCritical: true,
	}}
	s.pending[p.event.EventID] = p
	s.arm(p)
	envelope := s.envelope(p)
	metrics.PendingEvents.Set(float64(len(s.pending)))
	s.lock.Unlock()

	s.emitter.Emit(gameID, eventType, envelope)
	metrics.ReliableEventsTotal.WithLabelValues(eventType, "sent").Inc()
	return true
}

// arm must be called with the lock held.
func (s *Service) arm(p *pendingEvent) {
	if p.timer != nil {
		p.timer.Stop()
	}
	eventID := p.event.EventID
	p.timer = s.clock.AfterFunc(s.timeout, func() { s.onTimeout(eventID) })
}

// envelope must be called with the lock held.
func (s *Service) envelope(p *pendingEvent) messages.Envelope {
	return messages.Envelope{
		EventID:   p.event.EventID,
		Attempt:   p.event.Attempts,
		Data:      p.event.Payload,
		Timestamp: s.clock.Now(),
	}
}

func (s *Service) onTimeout(eventID string) {
	s.lock.Lock()
	p, ok := s.pending[eventID]
	if !ok || s.stopped {
		s.lock.Unlock()
		return
	}
	event := p.event
	stats := s.statsFor(event.EventType)

	if event.Attempts < s.maxAttempts {
		p.event.Attempts++
		stats.Retries++
		s.arm(p)
		envelope := s.envelope(p)
		s.lock.Unlock()

		log.WithFields(log.Fields{"game_id": event.GameID, "event_id": eventID}).Debug("Redelivering %s, attempt %d", event.EventType, envelope.Attempt)
		metrics.ReliableEventsTotal.WithLabelValues(event.EventType, "retried").Inc()
		s.emitter.Emit(event.GameID, event.EventType, envelope)
		return
	}

	delete(s.pending, eventID)
	stats.Failed++
	metrics.PendingEvents.Set(float64(len(s.pending)))
	now := s.clock.Now()
	s.lock.Unlock()

	log.WithFields(log.Fields{"game_id": event.GameID, "event_id": eventID}).Warn("%s was not confirmed after %d attempts", event.EventType, event.Attempts)
	metrics.ReliableEventsTotal.WithLabelValues(event.EventType, "timed_out").Inc()
	s.emitter.Emit(event.GameID, messages.MessageTypeStateRefreshRequired, messages.StateRefreshRequired{
		GameID:    event.GameID,
		Reason:    ReasonDeliveryTimeout,
		EventType: event.EventType,
		Timestamp: now,
	})
}

// Confirm acknowledges a critical event. It reports whether the event was pending.
func (s *Service) Confirm(eventID string) bool {
	return s.ConfirmFor(eventID, nil)
}

// ConfirmFor confirms eventID only when inRoom accepts the room the event was
// emitted to. A nil inRoom accepts every room.
func (s *Service) ConfirmFor(eventID string, inRoom func(gameID string) bool) bool {
	s.lock.Lock()
	defer s.lock.Unlock()
	p, ok := s.pending[eventID]
	if !ok {
		return false
	}
	if inRoom != nil && !inRoom(p.event.GameID) {
		return false
	}
	p.timer.Stop()
	delete(s.pending, eventID)

	now := s.clock.Now()
	p.event.ConfirmedAt = &now
	stats := s.statsFor(p.event.EventType)
	stats.Confirmed++
	stats.ConfirmMillis += now.Sub(p.event.EmittedAt).Milliseconds()
	metrics.PendingEvents.Set(float64(len(s.pending)))
	metrics.ReliableEventsTotal.WithLabelValues(p.event.EventType, "confirmed").Inc()
	return true
}

// RequestFallback records a client's request to resync after it missed an
// event, and returns the refresh instruction to send back to it.
func (s *Service) RequestFallback(eventType string, gameID string) messages.StateRefreshRequired {
	s.lock.Lock()
	s.statsFor(eventType).Fallbacks++
	now := s.clock.Now()
	s.lock.Unlock()

	log.WithFields(log.Fields{"game_id": gameID}).Info("Client requested fallback for %s", eventType)
	return messages.StateRefreshRequired{
		GameID:    gameID,
		Reason:    ReasonClientRequested,
		EventType: eventType,
		Timestamp: now,
	}
}

func (s *Service) HealthCheck() messages.ConnectionHealthResponse {
	s.lock.Lock()
	defer s.lock.Unlock()

	status := HealthStatusHealthy
	perRoom := make(map[string]int)
	for _, p := range s.pending {
		perRoom[p.event.GameID]++
		if perRoom[p.event.GameID] > degradedPendingPerRoom {
			status = HealthStatusDegraded
		}
	}
	return messages.ConnectionHealthResponse{
		Status:             status,
		Timestamp:          s.clock.Now(),
		ReliabilityEnabled: !s.stopped,
	}
}

// ForceEventDelivery emits payload right away and redelivers every pending
// event of the same type for the room.
func (s *Service) ForceEventDelivery(gameID string, eventType string, payload interface{}) bool {
	s.lock.Lock()
	if s.stopped {
		s.lock.Unlock()
		return false
	}
	ids := make([]string, 0)
	for id, p := range s.pending {
		if p.event.GameID == gameID && p.event.EventType == eventType {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	envelopes := make([]messages.Envelope, 0, len(ids))
	for _, id := range ids {
		p := s.pending[id]
		p.event.Attempts++
		s.statsFor(eventType).Retries++
		s.arm(p)
		envelopes = append(envelopes, s.envelope(p))
	}
	s.lock.Unlock()

	for _, envelope := range envelopes {
		s.emitter.Emit(gameID, eventType, envelope)
	}
	if payload == nil {
		return len(envelopes) > 0
	}
	return s.EmitReliable(gameID, eventType, payload)
}

// Pending returns the unconfirmed events for gameID, or for every room when gameID is empty.
func (s *Service) Pending(gameID string) []Event {
	s.lock.Lock()
	defer s.lock.Unlock()
	events := make([]Event, 0)
	for _, p := range s.pending {
		if gameID == "" || p.event.GameID == gameID {
			events = append(events, p.event)
		}
	}
	sort.Slice(events, func(i, j int) bool {
		if !events[i].EmittedAt.Equal(events[j].EmittedAt) {
			return events[i].EmittedAt.Before(events[j].EmittedAt)
		}
		return events[i].EventID < events[j].EventID
	})
	return events
}

func (s *Service) Stats() Stats {
	s.lock.Lock()
	defer s.lock.Unlock()
	eventStats := make(map[string]EventStats, len(s.stats))
	for k, v := range s.stats {
		eventStats[k] = *v
	}
	critical := make([]string, 0, len(s.critical))
	for k := range s.critical {
		critical = append(critical, k)
	}
	sort.Strings(critical)
	return Stats{
		EventStats:        eventStats,
		PendingEvents:     len(s.pending),
		MonitoringEnabled: !s.stopped,
		CriticalEvents:    critical,
	}
}

// Stop cancels every confirmation timer and drops pending events.
func (s *Service) Stop() {
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.stopped {
		return
	}
	s.stopped = true
	for id, p := range s.pending {
		p.timer.Stop()
		delete(s.pending, id)
	}
	metrics.PendingEvents.Set(0)
}

// statsFor must be called with the lock held.
func (s *Service) statsFor(eventType string) *EventStats {
	stats, ok := s.stats[eventType]
	if !ok {
		stats = &EventStats{}
		s.stats[eventType] = stats
	}
	return stats
}
