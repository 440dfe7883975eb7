package multiplayer

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"

	"github.com/vmihailenco/msgpack/v5"
)

// ErrUnknownEvent is returned when an inbound frame names an event the
// server does not handle.
var ErrUnknownEvent = errors.New("multiplayer: unknown event")

// ErrInvalidPayload is returned when a frame decodes but carries values the
// server cannot use, such as a NaN paddle position.
var ErrInvalidPayload = errors.New("multiplayer: invalid payload")

// validator is implemented by inbound events with constraints beyond their
// wire types.
type validator interface {
	validate() error
}

// Codec converts events to and from transport frames.
type Codec interface {
	// Name returns the codec name used in the ?codec= query parameter.
	Name() string
	// Binary reports whether frames must be sent as binary messages.
	Binary() bool
	Encode(evt SessionEvent) ([]byte, error)
	Decode(frame []byte) (InboundEvent, error)
}

// Envelope is the wire frame: {"event": "<name>", "data": {...}}.
type Envelope struct {
	Event string `json:"event" msgpack:"event"`
	Data  any    `json:"data,omitempty" msgpack:"data,omitempty"`
}

// CodecByName returns the codec for name. An empty name selects JSON.
func CodecByName(name string) (Codec, error) {
	switch name {
	case "", "json":
		return JSONCodec{}, nil
	case "msgpack":
		return MsgpackCodec{}, nil
	default:
		return nil, fmt.Errorf("multiplayer: unknown codec %q", name)
	}
}

// JSONCodec encodes envelopes as JSON text frames.
type JSONCodec struct{}

func (JSONCodec) Name() string { return "json" }
func (JSONCodec) Binary() bool { return false }

// Encode marshals evt inside an envelope.
func (JSONCodec) Encode(evt SessionEvent) ([]byte, error) {
	data, err := json.Marshal(Envelope{Event: evt.EventName(), Data: evt})
	if err != nil {
		return nil, fmt.Errorf("multiplayer: cannot encode %s: %w", evt.EventName(), err)
	}
	return data, nil
}

// Decode parses a JSON envelope into the matching inbound event.
func (JSONCodec) Decode(frame []byte) (InboundEvent, error) {
	var env struct {
		Event string          `json:"event"`
		Data  json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(frame, &env); err != nil {
		return nil, fmt.Errorf("multiplayer: cannot decode frame: %w", err)
	}
	return decodeInbound(env.Event, env.Data, json.Unmarshal)
}

// MsgpackCodec encodes envelopes as MessagePack binary frames. Field names
// follow the json tags so both codecs share one schema.
type MsgpackCodec struct{}

func (MsgpackCodec) Name() string { return "msgpack" }
func (MsgpackCodec) Binary() bool { return true }

// Encode marshals evt inside an envelope.
func (MsgpackCodec) Encode(evt SessionEvent) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetCustomStructTag("json")
	if err := enc.Encode(Envelope{Event: evt.EventName(), Data: evt}); err != nil {
		return nil, fmt.Errorf("multiplayer: cannot encode %s: %w", evt.EventName(), err)
	}
	return buf.Bytes(), nil
}

// Decode parses a MessagePack envelope into the matching inbound event.
func (MsgpackCodec) Decode(frame []byte) (InboundEvent, error) {
	var env struct {
		Event string             `msgpack:"event"`
		Data  msgpack.RawMessage `msgpack:"data"`
	}
	if err := msgpack.Unmarshal(frame, &env); err != nil {
		return nil, fmt.Errorf("multiplayer: cannot decode frame: %w", err)
	}
	return decodeInbound(env.Event, env.Data, unmarshalMsgpack)
}

func unmarshalMsgpack(data []byte, v any) error {
	dec := msgpack.NewDecoder(bytes.NewReader(data))
	dec.SetCustomStructTag("json")
	return dec.Decode(v)
}

func decodeInbound(name string, data []byte, unmarshal func([]byte, any) error) (InboundEvent, error) {
	ptr, ok := newInbound(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownEvent, name)
	}
	if len(data) > 0 {
		if err := unmarshal(data, ptr); err != nil {
			return nil, fmt.Errorf("multiplayer: cannot decode %s payload: %w", name, err)
		}
	}
	evt := reflect.ValueOf(ptr).Elem().Interface().(InboundEvent)
	if v, ok := evt.(validator); ok {
		if err := v.validate(); err != nil {
			return nil, err
		}
	}
	// Handlers switch on value types.
	return evt, nil
}
