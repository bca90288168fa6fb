package streamworker

import (
	"fmt"
	"math"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Channel-3-Eugene/streamworker/metrics"
)

// Config is the opaque option blob handed to a worker factory at start.
// The bridge copies it, so later changes by the caller are not seen.
type Config map[string]any

func (c Config) clone() Config {
	out := make(Config, len(c))
	for k, v := range c {
		out[k] = v
	}
	return out
}

func (c Config) Lookup(key string) (any, bool) {
	v, ok := c[key]
	return v, ok
}

func (c Config) String(key, def string) string {
	if s, ok := c[key].(string); ok {
		return s
	}
	return def
}

// maxExactFloat is the largest magnitude below which every integer has an
// exact float64 representation.
const maxExactFloat = 1 << 53

// Int64 accepts any integral number that fits in an int64. Floats, as
// produced by YAML or JSON decoders, must be whole and within ±2^53.
func (c Config) Int64(key string) (int64, bool) {
	switch n := c[key].(type) {
	case int:
		return int64(n), true
	case int8:
		return int64(n), true
	case int16:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint:
		if uint64(n) > math.MaxInt64 {
			return 0, false
		}
		return int64(n), true
	case uint8:
		return int64(n), true
	case uint16:
		return int64(n), true
	case uint32:
		return int64(n), true
	case uint64:
		if n > math.MaxInt64 {
			return 0, false
		}
		return int64(n), true
	case float32:
		return wholeFloat(float64(n))
	case float64:
		return wholeFloat(n)
	}
	return 0, false
}

func wholeFloat(f float64) (int64, bool) {
	if f != math.Trunc(f) || math.Abs(f) > maxExactFloat {
		return 0, false
	}
	return int64(f), true
}

func (c Config) Int(key string, def int) int {
	if n, ok := c.Int64(key); ok {
		return int(n)
	}
	return def
}

func (c Config) Float(key string, def float64) float64 {
	if f, ok := toFloat(c[key]); ok {
		return f
	}
	return def
}

func (c Config) Bool(key string, def bool) bool {
	if b, ok := c[key].(bool); ok {
		return b
	}
	return def
}

// Duration accepts a time.Duration, a duration string, or a number of milliseconds.
func (c Config) Duration(key string, def time.Duration) time.Duration {
	switch v := c[key].(type) {
	case time.Duration:
		return v
	case string:
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
		return def
	}
	if f, ok := toFloat(c[key]); ok {
		return time.Duration(f * float64(time.Millisecond))
	}
	return def
}

// DeliveryErrorPolicy decides what happens to a malformed outbound event.
type DeliveryErrorPolicy uint8

const (
	// DropAndLog discards the event and returns the error to the worker.
	DropAndLog DeliveryErrorPolicy = iota
	// Escalate fails the handle.
	Escalate
)

func (p DeliveryErrorPolicy) String() string {
	if p == Escalate {
		return "escalate"
	}
	return "drop"
}

func ParseDeliveryErrorPolicy(s string) (DeliveryErrorPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "drop", "drop-and-log":
		return DropAndLog, nil
	case "escalate":
		return Escalate, nil
	}
	return DropAndLog, fmt.Errorf("unknown delivery error policy %q", s)
}

func (p *OverflowPolicy) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := ParseOverflowPolicy(s)
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

func (p OverflowPolicy) MarshalYAML() (any, error) {
	return p.String(), nil
}

func (p *DeliveryErrorPolicy) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := ParseDeliveryErrorPolicy(s)
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

func (p DeliveryErrorPolicy) MarshalYAML() (any, error) {
	return p.String(), nil
}

// Options configures a Bridge and every handle it starts.
type Options struct {
	// QueueCapacity bounds the worker to host queue. Zero or less is unbounded.
	QueueCapacity int `yaml:"queue_capacity"`
	// OverflowPolicy applies when the worker to host queue is full.
	OverflowPolicy OverflowPolicy `yaml:"overflow_policy"`
	// InboxCapacity bounds the host to worker queue. Zero or less is unbounded.
	InboxCapacity int `yaml:"inbox_capacity"`
	// InboxPolicy applies when the host to worker queue is full.
	InboxPolicy OverflowPolicy `yaml:"inbox_policy"`
	// StreamBuffer is the default buffer of a Stream.
	StreamBuffer int `yaml:"stream_buffer"`
	// CloseTimeout arms the watchdog. Zero disables it.
	CloseTimeout time.Duration `yaml:"close_timeout"`
	// WriteTimeout bounds how long a Sink waits for its handle to run. Zero waits forever.
	WriteTimeout time.Duration `yaml:"write_timeout"`
	// DeliveryErrors applies to malformed outbound events.
	DeliveryErrors DeliveryErrorPolicy `yaml:"delivery_errors"`
	Protocol       Protocol            `yaml:"protocol"`

	Loop    *EventLoop       `yaml:"-"`
	Metrics *metrics.Metrics `yaml:"-"`
}

type Option func(*Options)

func DefaultOptions() Options {
	return Options{
		QueueCapacity:  256,
		OverflowPolicy: Block,
		InboxCapacity:  0,
		InboxPolicy:    Fail,
		StreamBuffer:   64,
		DeliveryErrors: DropAndLog,
		Protocol:       DefaultProtocol(),
	}
}

// ParseOptions decodes YAML over DefaultOptions.
func ParseOptions(data []byte) (Options, error) {
	opts := DefaultOptions()
	if err := yaml.Unmarshal(data, &opts); err != nil {
		return opts, fmt.Errorf("parse options: %w", err)
	}
	opts.Protocol = opts.Protocol.withDefaults()
	return opts, nil
}

func LoadOptions(path string) (Options, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return DefaultOptions(), fmt.Errorf("load options: %w", err)
	}
	return ParseOptions(data)
}

// Apply returns a copy of o with opts applied.
func (o Options) Apply(opts ...Option) Options {
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	o.Protocol = o.Protocol.withDefaults()
	return o
}

func WithOptions(base Options) Option {
	return func(o *Options) {
		*o = base
	}
}

func WithQueueCapacity(n int) Option {
	return func(o *Options) {
		o.QueueCapacity = n
	}
}

func WithOverflowPolicy(p OverflowPolicy) Option {
	return func(o *Options) {
		o.OverflowPolicy = p
	}
}

func WithInboxCapacity(n int, p OverflowPolicy) Option {
	return func(o *Options) {
		o.InboxCapacity = n
		o.InboxPolicy = p
	}
}

func WithStreamBuffer(n int) Option {
	return func(o *Options) {
		o.StreamBuffer = n
	}
}

func WithCloseTimeout(d time.Duration) Option {
	return func(o *Options) {
		o.CloseTimeout = d
	}
}

func WithWriteTimeout(d time.Duration) Option {
	return func(o *Options) {
		o.WriteTimeout = d
	}
}

func WithDeliveryErrorPolicy(p DeliveryErrorPolicy) Option {
	return func(o *Options) {
		o.DeliveryErrors = p
	}
}

func WithProtocol(p Protocol) Option {
	return func(o *Options) {
		o.Protocol = p
	}
}

// WithEventLoop makes every handle deliver on loop instead of a private one.
// The caller owns loop and stops it. A subscriber that blocks, such as a
// full Block-policy Stream, stalls delivery and terminal callbacks for every
// handle on the loop; Handle.Stream uses an unbounded buffer in this case.
func WithEventLoop(loop *EventLoop) Option {
	return func(o *Options) {
		o.Loop = loop
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(o *Options) {
		o.Metrics = m
	}
}
