// Package protocol implements the harsh wire format: one JSON object per
// line, tagged with a "type" field naming the variant.
package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// ErrMalformed is returned for lines that are not a JSON object.
	ErrMalformed = errors.New("malformed message")

	// ErrUnknownType is returned when the "type" tag names no variant.
	ErrUnknownType = errors.New("unknown message type")
)

// Command is a client to server request.
type Command interface {
	Type() string
}

// Event is a server to client message.
type Event interface {
	Type() string
}

// header is decoded first to choose the variant.
type header struct {
	Type *string `json:"type"`
}

// ParseCommand decodes one line into the command it names.
func ParseCommand(line string) (Command, error) {
	return decode(line, commandRegistry)
}

// ParseEvent decodes one line into the event it names.
func ParseEvent(line string) (Event, error) {
	return decode(line, eventRegistry)
}

// EncodeCommand serializes a command to a single line without the
// trailing newline.
func EncodeCommand(cmd Command) (string, error) {
	return encode(cmd.Type(), cmd)
}

// EncodeEvent serializes an event to a single line without the trailing
// newline.
func EncodeEvent(ev Event) (string, error) {
	return encode(ev.Type(), ev)
}

// CommandTypes lists every known command tag in sorted order.
func CommandTypes() []string {
	return tags(commandRegistry)
}

// EventTypes lists every known event tag in sorted order.
func EventTypes() []string {
	return tags(eventRegistry)
}

func decode[T any](line string, registry map[string]func() T) (T, error) {
	var zero T

	data := []byte(strings.TrimSpace(line))
	var h header
	if err := json.Unmarshal(data, &h); err != nil {
		return zero, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if h.Type == nil {
		return zero, fmt.Errorf("%w: missing type", ErrMalformed)
	}

	factory, ok := registry[*h.Type]
	if !ok {
		return zero, fmt.Errorf("%w: %q", ErrUnknownType, *h.Type)
	}

	msg := factory()
	if err := json.Unmarshal(data, msg); err != nil {
		return zero, fmt.Errorf("%w: %s: %v", ErrMalformed, *h.Type, err)
	}
	return msg, nil
}

// encode splices the type tag in front of the variant's own fields.
func encode(tag string, v interface{}) (string, error) {
	body, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("failed to encode %s: %w", tag, err)
	}
	if len(body) < 2 || body[0] != '{' {
		return "", fmt.Errorf("failed to encode %s: not an object", tag)
	}

	quoted, err := json.Marshal(tag)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	buf.Grow(len(body) + len(quoted) + 9)
	buf.WriteString(`{"type":`)
	buf.Write(quoted)
	if len(body) > 2 {
		buf.WriteByte(',')
	}
	buf.Write(body[1:])
	return buf.String(), nil
}

func tags[T any](registry map[string]func() T) []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
