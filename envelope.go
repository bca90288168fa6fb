package streamworker

import "fmt"

func NewEvent(name string, payload any) Event {
	return Event{Name: name, Payload: payload}
}

func (e Event) String() string {
	return fmt.Sprintf("%s: %v", e.Name, e.Payload)
}

// Valid reports whether e can cross the bridge. Only the name is checked.
func (e Event) Valid() bool {
	return e.Name != ""
}

// toEvent translates a value written into a Sink. Events pass through
// untouched, a two element [name, value] pair is split, and anything else is
// sent under the sink's name.
func toEvent(name string, v any) Event {
	switch x := v.(type) {
	case Event:
		return x
	case *Event:
		if x != nil {
			return *x
		}
	case [2]any:
		if n, ok := x[0].(string); ok {
			return Event{Name: n, Payload: x[1]}
		}
	case []any:
		if len(x) == 2 {
			if n, ok := x[0].(string); ok {
				return Event{Name: n, Payload: x[1]}
			}
		}
	}
	return Event{Name: name, Payload: v}
}
