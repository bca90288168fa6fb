package streamworker

import "reflect"

const (
	DefaultEndOfStream = "close"
	DefaultEndOfInput  = -1
	DefaultInputName   = "value"
)

// Protocol names the in-band conventions used to end a stream. Neither
// value is enforced by the bridge itself: streams and sinks honour
// EndOfStream, and workers check IsEndOfInput on their input.
type Protocol struct {
	// EndOfStream is the event name that ends an outbound Stream or an inbound Sink.
	EndOfStream string `yaml:"end_of_stream"`
	// EndOfInput is the payload a sink sends when it is closed.
	EndOfInput any `yaml:"end_of_input"`
	// InputName is the default event name for values written to a sink.
	InputName string `yaml:"input_name"`
}

func DefaultProtocol() Protocol {
	return Protocol{
		EndOfStream: DefaultEndOfStream,
		EndOfInput:  DefaultEndOfInput,
		InputName:   DefaultInputName,
	}
}

func (p Protocol) withDefaults() Protocol {
	if p.EndOfStream == "" {
		p.EndOfStream = DefaultEndOfStream
	}
	if p.EndOfInput == nil {
		p.EndOfInput = DefaultEndOfInput
	}
	if p.InputName == "" {
		p.InputName = DefaultInputName
	}
	return p
}

func (p Protocol) IsEndOfStream(ev Event) bool {
	return ev.Name == p.EndOfStream
}

// IsEndOfInput compares numbers by value regardless of their Go type, so a
// sentinel of -1 matches int64(-1) and -1.0. Other payloads must be equal.
func (p Protocol) IsEndOfInput(payload any) bool {
	return sameValue(payload, p.EndOfInput)
}

func (p Protocol) EndOfInputEvent(name string) Event {
	if name == "" {
		name = p.InputName
	}
	return Event{Name: name, Payload: p.EndOfInput}
}

func sameValue(a, b any) bool {
	x, aok := toFloat(a)
	y, bok := toFloat(b)
	if aok && bok {
		return x == y
	}
	return reflect.DeepEqual(a, b)
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}
