// Package server streams agent positions to the map renderer over a websocket
// and accepts travel commands from it.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/paulmach/orb"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"electionsim/mapsim/internal/config"
	"electionsim/mapsim/internal/travel"
)

const shutdownTimeout = 5 * time.Second

var upgrader = websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}

// Server owns the traveler, the hub and the frame loop.
type Server struct {
	cfg       *config.Config
	logger    *zap.Logger
	traveler  *travel.Traveler
	hub       *Hub
	tick      time.Duration
	broadcast time.Duration

	layoutMu sync.Mutex // serializes layout edits
}

// New builds the layout from cfg and seeds the starting population.
func New(cfg *config.Config, logger *zap.Logger) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	layout, err := cfg.Map.Layout()
	if err != nil {
		return nil, fmt.Errorf("build layout: %w", err)
	}
	tick, _ := cfg.Server.Tick()
	every, _ := cfg.Server.Broadcast()

	s := &Server{
		cfg:       cfg,
		logger:    logger,
		hub:       newHub(logger.Named("hub")),
		tick:      tick,
		broadcast: every,
	}
	s.traveler = travel.NewTraveler(layout,
		travel.WithProfiles(cfg.Agents.KindProfiles()),
		travel.WithArrivalHandler(s.onArrival),
		travel.WithLogger(logger.Named("travel")),
	)
	for _, seed := range cfg.Agents.Seed {
		for i := 0; i < seed.Count; i++ {
			if _, err := s.traveler.Spawn(travel.Kind(seed.Kind), seed.Zone); err != nil {
				return nil, fmt.Errorf("seed %s: %w", seed.Zone, err)
			}
		}
	}
	logger.Info("map ready",
		zap.Int("zones", len(layout.Zones())),
		zap.Int("agents", len(s.traveler.Snapshot())),
		zap.Float64("corridor_x", layout.CorridorX()))
	return s, nil
}

// Traveler exposes the motion model, mostly for tests and tooling.
func (s *Server) Traveler() *travel.Traveler { return s.traveler }

// Handler routes the websocket and the read-only HTTP endpoints.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.wsHandler)
	mux.HandleFunc("/layout.geojson", s.layoutHandler)
	mux.HandleFunc("/route.geojson", s.routeHandler)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if _, err := w.Write([]byte("ok")); err != nil {
			s.logger.Debug("healthz write failed", zap.Error(err))
		}
	})
	return mux
}

// Run serves until ctx is cancelled or a component fails.
func (s *Server) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	srv := &http.Server{Addr: s.cfg.Server.Addr, Handler: s.Handler()}

	g.Go(func() error { return s.hub.run(ctx) })
	g.Go(func() error { return s.frameLoop(ctx) })
	g.Go(func() error {
		s.logger.Info("server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func (s *Server) wsHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Debug("websocket upgrade failed", zap.Error(err))
		return
	}
	c := &Client{
		id:      uuid.New().String(),
		conn:    conn,
		send:    make(chan []byte, 128),
		limiter: rate.NewLimiter(rate.Limit(s.cfg.Server.CommandRate), s.cfg.Server.CommandBurst),
	}
	if !s.hub.join(c) {
		conn.Close()
		return
	}
	go c.writer()
	go c.reader(s.hub, s.handle)
	s.hub.sendTo(c, EventFullState, s.fullState())
}

func (s *Server) fullState() FullState {
	layout := s.traveler.Layout()
	agents := s.traveler.Snapshot()
	views := make([]AgentView, len(agents))
	for i, a := range agents {
		views[i] = agentView(a)
	}
	return FullState{CorridorX: layout.CorridorX(), Zones: zoneViews(layout), Agents: views}
}

func (s *Server) handle(c *Client, env Envelope) {
	if !c.limiter.Allow() {
		s.hub.sendTo(c, EventError, ErrorEvent{Action: env.Type, Message: "rate limited"})
		return
	}
	var err error
	switch env.Type {
	case ActionCommand:
		var p CommandPayload
		if err = decode(env, &p); err == nil {
			err = s.traveler.Command(p.AgentID, p.ZoneID)
		}
	case ActionSpawn:
		var p SpawnPayload
		if err = decode(env, &p); err == nil {
			var a travel.Agent
			if a, err = s.traveler.Spawn(p.Kind, p.ZoneID); err == nil {
				s.hub.announce(EventSpawned, agentView(a))
			}
		}
	case ActionRemove:
		var p RemovePayload
		if err = decode(env, &p); err == nil {
			if err = s.traveler.Remove(p.AgentID); err == nil {
				s.hub.announce(EventRemoved, p)
			}
		}
	case ActionResizeZone:
		var p ResizeZonePayload
		if err = decode(env, &p); err == nil {
			err = s.resizeZone(p)
		}
	case ActionRemoveZone:
		var p RemoveZonePayload
		if err = decode(env, &p); err == nil {
			err = s.removeZone(p.ZoneID)
		}
	default:
		err = fmt.Errorf("unknown action %q", env.Type)
	}
	if err != nil {
		s.logger.Debug("action rejected", zap.String("client", c.id), zap.String("action", env.Type), zap.Error(err))
		s.hub.sendTo(c, EventError, ErrorEvent{Action: env.Type, Message: err.Error()})
	}
}

// resizeZone moves a zone's rectangle, keeping its gateway at the middle of
// the side facing the corridor.
func (s *Server) resizeZone(p ResizeZonePayload) error {
	s.layoutMu.Lock()
	defer s.layoutMu.Unlock()
	layout := s.traveler.Layout()
	z, ok := layout.Zone(p.ZoneID)
	if !ok {
		return fmt.Errorf("resize %q: %w", p.ZoneID, travel.ErrUnknownZone)
	}
	side := layout.Side(z)
	z.Bounds = orb.Bound{Min: orb.Point{p.X, p.Y}, Max: orb.Point{p.X + p.Width, p.Y + p.Height}}
	if side == travel.Left {
		z.Gateway = orb.Point{z.Bounds.Max[0], p.Y + p.Height/2}
	} else {
		z.Gateway = orb.Point{z.Bounds.Min[0], p.Y + p.Height/2}
	}
	next, err := layout.WithZone(z)
	if err != nil {
		return err
	}
	s.applyLayout(next)
	return nil
}

// removeZone drops a zone. Agents heading there cancel in place on the next
// frame; agents standing in it stop wandering.
func (s *Server) removeZone(id string) error {
	s.layoutMu.Lock()
	defer s.layoutMu.Unlock()
	layout := s.traveler.Layout()
	if _, ok := layout.Zone(id); !ok {
		return fmt.Errorf("remove zone %q: %w", id, travel.ErrUnknownZone)
	}
	s.applyLayout(layout.WithoutZone(id))
	return nil
}

func (s *Server) applyLayout(l *travel.Layout) {
	s.traveler.SetLayout(l)
	s.hub.announce(EventLayout, LayoutEvent{CorridorX: l.CorridorX(), Zones: zoneViews(l)})
}

func (s *Server) onArrival(a travel.Arrival) {
	s.hub.announce(EventArrived, ArrivedEvent{
		AgentID:   a.AgentID,
		ZoneID:    a.ZoneID,
		X:         a.Position[0],
		Y:         a.Position[1],
		Cancelled: a.Cancelled,
	})
}

// frameLoop is the host render loop: it advances every agent once per tick
// with the measured frame time and pushes positions at the broadcast rate.
func (s *Server) frameLoop(ctx context.Context) error {
	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()
	last := time.Now()
	sinceBroadcast := time.Duration(0)
	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			elapsed := now.Sub(last)
			last = now
			s.traveler.Advance(elapsed.Seconds())
			sinceBroadcast += elapsed
			if sinceBroadcast >= s.broadcast {
				sinceBroadcast = 0
				s.broadcastPositions(now)
			}
		}
	}
}

func (s *Server) broadcastPositions(now time.Time) {
	agents := s.traveler.Snapshot()
	out := make([]AgentView, len(agents))
	for i, a := range agents {
		out[i] = agentView(a)
	}
	s.hub.announce(EventPositions, PositionsEvent{TS: now.UnixNano(), Agents: out})
}
