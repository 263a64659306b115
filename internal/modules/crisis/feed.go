// Package crisis provides Crisis Feed implementations: an in-memory feed
// fed by Publish/Resolve and a Kafka consumer that drives the same registry.
package crisis

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/finvoice/riskengine/internal/domain"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// StaticFeed is an in-memory registry of active crisis events. Events expire
// ttl after detection; a ttl of zero keeps them until resolved.
type StaticFeed struct {
	mu     sync.RWMutex
	events map[string]domain.CrisisEvent
	ttl    time.Duration
	log    zerolog.Logger
	now    func() time.Time
}

// NewStaticFeed creates an empty feed
func NewStaticFeed(ttl time.Duration, log zerolog.Logger) *StaticFeed {
	return &StaticFeed{
		events: make(map[string]domain.CrisisEvent),
		ttl:    ttl,
		log:    log.With().Str("component", "crisis_feed").Logger(),
		now:    time.Now,
	}
}

// Publish adds or replaces an event. A missing id is generated and a
// missing detection time is set to now. Severity is clamped to [0, 10].
func (f *StaticFeed) Publish(e domain.CrisisEvent) (domain.CrisisEvent, error) {
	e.Category = strings.TrimSpace(e.Category)
	e.Description = strings.TrimSpace(e.Description)
	if e.Category == "" && e.Description == "" {
		return domain.CrisisEvent{}, fmt.Errorf("crisis event needs a category or description")
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.DetectedAt.IsZero() {
		e.DetectedAt = f.now().UTC()
	}
	switch {
	case e.Severity < 0:
		e.Severity = 0
	case e.Severity > 10:
		e.Severity = 10
	}
	e.Resolved = false

	f.mu.Lock()
	f.events[e.ID] = e
	f.mu.Unlock()

	f.log.Info().
		Str("event_id", e.ID).
		Str("category", e.Category).
		Float64("severity", e.Severity).
		Msg("Crisis event active")
	return e, nil
}

// Resolve removes an event. It reports whether the event was active.
func (f *StaticFeed) Resolve(id string) bool {
	f.mu.Lock()
	_, ok := f.events[id]
	delete(f.events, id)
	f.mu.Unlock()

	if ok {
		f.log.Info().Str("event_id", id).Msg("Crisis event resolved")
	}
	return ok
}

// ListActiveEvents returns unexpired events, most severe first.
func (f *StaticFeed) ListActiveEvents(ctx context.Context) ([]domain.CrisisEvent, error) {
	now := f.now()

	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]domain.CrisisEvent, 0, len(f.events))
	for id, e := range f.events {
		if f.ttl > 0 && now.Sub(e.DetectedAt) > f.ttl {
			delete(f.events, id)
			continue
		}
		out = append(out, e)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Severity != out[j].Severity {
			return out[i].Severity > out[j].Severity
		}
		if !out[i].DetectedAt.Equal(out[j].DetectedAt) {
			return out[i].DetectedAt.After(out[j].DetectedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// Count returns the number of unexpired events.
func (f *StaticFeed) Count() int {
	events, _ := f.ListActiveEvents(context.Background())
	return len(events)
}
