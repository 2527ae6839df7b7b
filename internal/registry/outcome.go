package registry

import (
	"encoding/json"
	"runtime/debug"
)

// HandlerError wraps a handler's returned error together with the stack
// captured at the moment it was caught, so FlattenOutput can surface both
// under the "message"/"stack" keys spec.md §9 requires.
type HandlerError struct {
	Err   error
	Stack string
}

func (e *HandlerError) Error() string { return e.Err.Error() }
func (e *HandlerError) Unwrap() error { return e.Err }

// NewHandlerError wraps err with the current goroutine's stack trace.
func NewHandlerError(err error) *HandlerError {
	return &HandlerError{Err: err, Stack: string(debug.Stack())}
}

// FlattenOutput normalizes a handler's outcome (returned value, returned
// error, or a resolve()/fail() payload) into a JSON-safe value, matching
// spec.md §9: errors flatten to {message, stack, ...own fields}; plain
// non-object values are wrapped as {value: x}; maps/structs pass through.
func FlattenOutput(v any) json.RawMessage {
	switch t := v.(type) {
	case nil:
		return json.RawMessage(`null`)
	case *HandlerError:
		m := map[string]any{"message": t.Err.Error()}
		if t.Stack != "" {
			m["stack"] = t.Stack
		}
		if fields, ok := t.Err.(interface{ Fields() map[string]any }); ok {
			for k, val := range fields.Fields() {
				m[k] = val
			}
		}
		raw, err := json.Marshal(m)
		if err != nil {
			return json.RawMessage(`{"message":"unserializable error"}`)
		}
		return raw
	case error:
		m := map[string]any{"message": t.Error()}
		raw, err := json.Marshal(m)
		if err != nil {
			return json.RawMessage(`{"message":"unserializable error"}`)
		}
		return raw
	case json.RawMessage:
		if len(t) == 0 {
			return json.RawMessage(`null`)
		}
		return t
	}

	raw, err := json.Marshal(v)
	if err != nil {
		return json.RawMessage(`{"value":null}`)
	}

	// Only object/array/string/number/bool/null encode "naturally"; a bare
	// scalar is still valid top-level JSON, but the spec's contract wraps
	// any non-object/non-null return as {value: x} so consumers always see
	// an object shape for ad-hoc return values.
	var probe any
	_ = json.Unmarshal(raw, &probe)
	if _, isMap := probe.(map[string]any); isMap {
		return raw
	}
	wrapped, err := json.Marshal(map[string]any{"value": probe})
	if err != nil {
		return json.RawMessage(`{"value":null}`)
	}
	return wrapped
}
