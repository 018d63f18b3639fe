package protocol

import (
	"github.com/masterblaster1999/Nebula4X-sub001/internal/jsonptr"
	"github.com/masterblaster1999/Nebula4X-sub001/internal/sim/planner"
	"github.com/masterblaster1999/Nebula4X-sub001/internal/sim/world"
	"github.com/masterblaster1999/Nebula4X-sub001/internal/watch"
)

// SUBSCRIBE (client -> server)
type SubscribeMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	// MinLevel filters the stream; empty means info.
	MinLevel watch.Level `json:"min_level,omitempty"`
	// SinceSeq replays inbox alerts newer than this sequence first.
	SinceSeq uint64 `json:"since_seq,omitempty"`
}

// SUBSCRIBED (server -> client)
type SubscribedMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	SessionID       string `json:"session_id"`
	MinLevel        string `json:"min_level"`
}

// ALERT (server -> client). Field names match the alert inbox rows.
type AlertMsg struct {
	Type                  string `json:"type"`
	ProtocolVersion       string `json:"protocol_version"`
	Seq                   uint64 `json:"seq"`
	Day                   int64  `json:"day"`
	Hour                  int    `json:"hour"`
	Level                 string `json:"level"`
	PinID                 uint64 `json:"pin_id"`
	Label                 string `json:"label"`
	Path                  string `json:"path"`
	RepresentativePointer string `json:"representative_pointer"`
	Message               string `json:"message"`
}

func NewAlertMsg(a watch.Alert) AlertMsg {
	return AlertMsg{
		Type:                  TypeAlert,
		ProtocolVersion:       Version,
		Seq:                   a.Seq,
		Day:                   a.Day,
		Hour:                  a.Hour,
		Level:                 a.Level.String(),
		PinID:                 a.PinID,
		Label:                 a.Label,
		Path:                  a.Path,
		RepresentativePointer: a.RepresentativePointer,
		Message:               a.Message,
	}
}

// ERROR (server -> client), also the body of failed HTTP requests.
type ErrorMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Code            string `json:"code"`
	Message         string `json:"message"`
}

func NewErrorMsg(code, msg string) ErrorMsg {
	return ErrorMsg{Type: TypeError, ProtocolVersion: Version, Code: code, Message: msg}
}

// HTTP bodies.

type StatusResponse struct {
	ProtocolVersion string `json:"protocol_version"`
	Snapshot        string `json:"snapshot"`
	WorldID         string `json:"world_id,omitempty"`
	Day             int64  `json:"day"`
	Hour            int    `json:"hour"`
	Revision        int64  `json:"revision"`
	Digest          string `json:"digest"`
	Pins            int    `json:"pins"`
	LastAlertSeq    uint64 `json:"last_alert_seq"`
}

type ResolveResponse struct {
	Path  string `json:"path"`
	Found bool   `json:"found"`
	Value any    `json:"value,omitempty"`
	Error string `json:"error,omitempty"`
}

type QueryResponse struct {
	Pattern string             `json:"pattern"`
	Matches []jsonptr.Match    `json:"matches"`
	Stats   jsonptr.QueryStats `json:"stats"`
	Error   string             `json:"error,omitempty"`
}

type CompleteResponse struct {
	Input       string   `json:"input"`
	Suggestions []string `json:"suggestions"`
}

type PlanRequest struct {
	ShipID  world.ID         `json:"ship_id"`
	Orders  *world.Queue     `json:"orders,omitempty"`
	Options *planner.Options `json:"options,omitempty"`
}

type WatchResponse struct {
	Day     int64             `json:"day"`
	Hour    int               `json:"hour"`
	Results []PinResultRecord `json:"results"`
}

type PinResultRecord struct {
	PinID  uint64       `json:"pin_id"`
	Label  string       `json:"label"`
	Result watch.Result `json:"result"`
}

type AlertsResponse struct {
	Alerts []AlertMsg `json:"alerts"`
}
