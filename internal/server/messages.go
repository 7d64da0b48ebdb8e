package server

import (
	"encoding/json"
	"fmt"

	"electionsim/mapsim/internal/travel"
)

// Event names sent to the map renderer
const (
	EventFullState = "full_state"
	EventPositions = "positions"
	EventArrived   = "arrived"
	EventSpawned   = "spawned"
	EventRemoved   = "removed"
	EventLayout    = "layout"
	EventError     = "error"
)

// Client -> Server actions
const (
	ActionCommand    = "command"
	ActionSpawn      = "spawn"
	ActionRemove     = "remove"
	ActionResizeZone = "resize_zone"
	ActionRemoveZone = "remove_zone"
)

type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Payload helper types
type CommandPayload struct {
	AgentID string `json:"agentId"`
	ZoneID  string `json:"zoneId"`
}
type SpawnPayload struct {
	Kind   travel.Kind `json:"kind"`
	ZoneID string      `json:"zoneId"`
}
type RemovePayload struct {
	AgentID string `json:"agentId"`
}
type ResizeZonePayload struct {
	ZoneID string  `json:"zoneId"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}
type RemoveZonePayload struct {
	ZoneID string `json:"zoneId"`
}
type ErrorEvent struct {
	Action  string `json:"action"`
	Message string `json:"message"`
}

type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type ZoneView struct {
	ID      string  `json:"id"`
	Name    string  `json:"name"`
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
	Width   float64 `json:"width"`
	Height  float64 `json:"height"`
	Gateway Point   `json:"gateway"`
	Side    string  `json:"side"`
}

type AgentView struct {
	ID        string      `json:"id"`
	Kind      travel.Kind `json:"kind"`
	X         float64     `json:"x"`
	Y         float64     `json:"y"`
	Zone      string      `json:"zone"`
	Target    string      `json:"target"`
	Traveling bool        `json:"traveling"`
}

type FullState struct {
	CorridorX float64     `json:"corridorX"`
	Zones     []ZoneView  `json:"zones"`
	Agents    []AgentView `json:"agents"`
}

type LayoutEvent struct {
	CorridorX float64    `json:"corridorX"`
	Zones     []ZoneView `json:"zones"`
}

type PositionsEvent struct {
	TS     int64       `json:"ts"`
	Agents []AgentView `json:"agents"`
}

type ArrivedEvent struct {
	AgentID   string  `json:"agentId"`
	ZoneID    string  `json:"zoneId"`
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	Cancelled bool    `json:"cancelled"`
}

func agentView(a travel.Agent) AgentView {
	return AgentView{
		ID:        a.ID,
		Kind:      a.Kind,
		X:         a.Position[0],
		Y:         a.Position[1],
		Zone:      a.CurrentZoneID,
		Target:    a.TargetZoneID,
		Traveling: a.Traveling(),
	}
}

func zoneViews(l *travel.Layout) []ZoneView {
	zones := l.Zones()
	out := make([]ZoneView, len(zones))
	for i, z := range zones {
		out[i] = ZoneView{
			ID:      z.ID,
			Name:    z.Name,
			X:       z.Bounds.Min[0],
			Y:       z.Bounds.Min[1],
			Width:   z.Bounds.Max[0] - z.Bounds.Min[0],
			Height:  z.Bounds.Max[1] - z.Bounds.Min[1],
			Gateway: Point{z.Gateway[0], z.Gateway[1]},
			Side:    l.Side(z).String(),
		}
	}
	return out
}

func encode(t string, data interface{}) []byte {
	payload, _ := json.Marshal(data)
	b, _ := json.Marshal(Envelope{Type: t, Payload: payload})
	return b
}

func decode(env Envelope, v interface{}) error {
	if err := json.Unmarshal(env.Payload, v); err != nil {
		return fmt.Errorf("bad %s payload: %w", env.Type, err)
	}
	return nil
}
