package travel

import (
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	ErrUnknownAgent = errors.New("unknown agent")
	ErrUnknownZone  = errors.New("unknown zone")
	ErrUnknownKind  = errors.New("unknown agent kind")
)

// ArrivalHandler receives finished and cancelled routes.
type ArrivalHandler func(Arrival)

// Traveler owns the agents of one map and steps them once per frame.
type Traveler struct {
	mu        sync.Mutex
	layout    *Layout
	agents    map[string]Agent
	profiles  map[Kind]Profile
	rng       *rand.Rand
	onArrival ArrivalHandler
	logger    *zap.Logger
}

// Option configures a Traveler.
type Option func(*Traveler)

func WithProfiles(p map[Kind]Profile) Option {
	return func(t *Traveler) { t.profiles = p }
}

func WithRand(rng *rand.Rand) Option {
	return func(t *Traveler) { t.rng = rng }
}

func WithArrivalHandler(h ArrivalHandler) Option {
	return func(t *Traveler) { t.onArrival = h }
}

func WithLogger(l *zap.Logger) Option {
	return func(t *Traveler) { t.logger = l }
}

// NewTraveler returns a Traveler over layout with no agents.
func NewTraveler(layout *Layout, opts ...Option) *Traveler {
	t := &Traveler{
		layout:   layout,
		agents:   map[string]Agent{},
		profiles: DefaultProfiles(),
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.rng == nil {
		t.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return t
}

// Spawn places a new idle agent of the given kind at a random point of zoneID.
func (t *Traveler) Spawn(kind Kind, zoneID string) (Agent, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	p, ok := t.profiles[kind]
	if !ok {
		return Agent{}, fmt.Errorf("spawn %q: %w", kind, ErrUnknownKind)
	}
	z, ok := t.layout.Zone(zoneID)
	if !ok {
		return Agent{}, fmt.Errorf("spawn in %q: %w", zoneID, ErrUnknownZone)
	}
	a := Agent{
		ID:             uuid.New().String(),
		Kind:           kind,
		CurrentZoneID:  zoneID,
		TargetZoneID:   zoneID,
		WanderVelocity: RandomVelocity(p.WanderSpeed, t.rng),
	}
	a = Relocate(a, z, p, t.rng)
	t.agents[a.ID] = a
	t.logger.Debug("agent spawned", zap.String("agent", a.ID), zap.String("kind", string(kind)), zap.String("zone", zoneID))
	return a, nil
}

// Command sets the zone an agent should head to. It takes effect on the next
// Advance; commanding the agent's current zone cancels an active route.
func (t *Traveler) Command(agentID, zoneID string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	a, ok := t.agents[agentID]
	if !ok {
		return fmt.Errorf("command %q: %w", agentID, ErrUnknownAgent)
	}
	a.TargetZoneID = zoneID
	t.agents[agentID] = a
	t.logger.Debug("agent commanded", zap.String("agent", agentID), zap.String("from", a.CurrentZoneID), zap.String("to", zoneID))
	return nil
}

// Remove forgets an agent without emitting an arrival.
func (t *Traveler) Remove(agentID string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.agents[agentID]; !ok {
		return fmt.Errorf("remove %q: %w", agentID, ErrUnknownAgent)
	}
	delete(t.agents, agentID)
	return nil
}

// Advance steps every agent by dt seconds and hands the arrivals to the
// handler after the agents are updated.
func (t *Traveler) Advance(dt float64) []Arrival {
	t.mu.Lock()
	var arrivals []Arrival
	for id, a := range t.agents {
		next, arrived := Step(t.layout, a, t.profiles[a.Kind], dt)
		t.agents[id] = next
		if arrived != nil {
			arrivals = append(arrivals, *arrived)
		}
	}
	handler := t.onArrival
	t.mu.Unlock()

	sort.Slice(arrivals, func(i, j int) bool { return arrivals[i].AgentID < arrivals[j].AgentID })
	for _, arr := range arrivals {
		t.logger.Debug("agent arrived",
			zap.String("agent", arr.AgentID),
			zap.String("zone", arr.ZoneID),
			zap.Bool("cancelled", arr.Cancelled))
		if handler != nil {
			handler(arr)
		}
	}
	return arrivals
}

// SetLayout swaps the zone registry. Idle agents whose zone changed shape are
// dropped at a fresh random point of the new bounds.
func (t *Traveler) SetLayout(layout *Layout) {
	t.mu.Lock()
	defer t.mu.Unlock()
	old := t.layout
	t.layout = layout
	for id, a := range t.agents {
		if a.Traveling() || a.TargetZoneID != a.CurrentZoneID {
			continue
		}
		z, ok := layout.Zone(a.CurrentZoneID)
		if !ok {
			continue
		}
		if prev, ok := old.Zone(a.CurrentZoneID); ok && prev.Bounds == z.Bounds {
			continue
		}
		t.agents[id] = Relocate(a, z, t.profiles[a.Kind], t.rng)
	}
	t.logger.Info("layout replaced", zap.Int("zones", len(layout.order)))
}

// Layout returns the current zone registry.
func (t *Traveler) Layout() *Layout {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.layout
}

// Agent returns the current state of one agent.
func (t *Traveler) Agent(id string) (Agent, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	a, ok := t.agents[id]
	return a, ok
}

// Snapshot returns every agent sorted by id.
func (t *Traveler) Snapshot() []Agent {
	t.mu.Lock()
	out := make([]Agent, 0, len(t.agents))
	for _, a := range t.agents {
		out = append(out, a)
	}
	t.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
