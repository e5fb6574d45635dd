package bridge

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/zeusync/inputlink/internal/core/facts"
	"github.com/zeusync/inputlink/internal/core/systems/physics"
	"github.com/zeusync/inputlink/internal/core/world"
)

var ErrInvalidFrame = errors.New("invalid frame")

// Client frame types.
const (
	FrameHello          = "hello"
	FrameAction         = "action"
	FrameWaypoint       = "waypoint"
	FrameRemoveWaypoint = "remove-waypoint"
)

// Server frame types.
const (
	FrameWelcome  = "welcome"
	FrameAck      = "ack"
	FrameCommit   = "commit"
	FrameSnapshot = "snapshot"
	FrameTick     = "tick"
	FrameError    = "error"
)

// ClientFrame is a message from a remote reasoning engine. Hello binds the
// connection to an entity; every later frame acts on that entity.
type ClientFrame struct {
	Type   string                `json:"type"`
	Entity string                `json:"entity,omitempty"`
	Name   string                `json:"name,omitempty"`
	Target *physics.Vec3         `json:"target,omitempty"`
	Action *world.ProposedAction `json:"action,omitempty"`
}

// ServerFrame is a message to a remote reasoning engine. Tick is the index of
// the tick a frame belongs to, starting at 0, the same value the clock leaf
// carries.
type ServerFrame struct {
	Type     string          `json:"type"`
	Entity   string          `json:"entity,omitempty"`
	Tick     uint64          `json:"tick"`
	Version  uint64          `json:"version"`
	Changes  []facts.Change  `json:"changes,omitempty"`
	Snapshot *facts.Snapshot `json:"snapshot,omitempty"`
	Error    string          `json:"error,omitempty"`
}

//go:embed schemas/client.schema.json
var clientSchemaJSON []byte

const clientSchemaURL = "client.schema.json"

func compileClientSchema() (*jsonschema.Schema, error) {
	c := jsonschema.NewCompiler()
	if err := c.AddResource(clientSchemaURL, bytes.NewReader(clientSchemaJSON)); err != nil {
		return nil, fmt.Errorf("load client schema: %w", err)
	}
	s, err := c.Compile(clientSchemaURL)
	if err != nil {
		return nil, fmt.Errorf("compile client schema: %w", err)
	}
	return s, nil
}

// decodeFrame validates raw against the client schema before decoding it.
func decodeFrame(schema *jsonschema.Schema, raw []byte) (ClientFrame, error) {
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return ClientFrame{}, fmt.Errorf("%w: %w", ErrInvalidFrame, err)
	}
	if err := schema.Validate(doc); err != nil {
		return ClientFrame{}, fmt.Errorf("%w: %w", ErrInvalidFrame, err)
	}
	var f ClientFrame
	if err := json.Unmarshal(raw, &f); err != nil {
		return ClientFrame{}, fmt.Errorf("%w: %w", ErrInvalidFrame, err)
	}
	return f, nil
}
