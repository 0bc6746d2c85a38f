// Package sink announces batch results to other processes over NATS.
package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/fluxorio/threadpool/pkg/conjecture"
	"github.com/fluxorio/threadpool/pkg/core"
	"github.com/nats-io/nats.go"
)

// FlushTimeout bounds the flush after a counterexample when the caller's
// context has no deadline.
const FlushTimeout = 5 * time.Second

// Config configures the NATS connection. An empty URL disables publishing.
type Config struct {
	URL string `yaml:"url" json:"url" mapstructure:"url"`
	// Prefix is prepended to every subject, e.g. "conjecture" publishes on
	// "conjecture.batch" and "conjecture.counterexample".
	Prefix string `yaml:"prefix" json:"prefix" mapstructure:"prefix"`
	// Service names the connection on the server.
	Service string `yaml:"service" json:"service" mapstructure:"service"`
}

// DefaultConfig publishes nothing until a URL is set.
func DefaultConfig() Config {
	return Config{
		Prefix:  "conjecture",
		Service: "conjecture",
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.URL != "" && c.Prefix == "" {
		return &core.Error{Code: core.CodeInvalidConfig, Message: "nats prefix is required"}
	}
	return nil
}

// BatchEvent is the JSON payload published for every processed batch.
type BatchEvent struct {
	RunID          string  `json:"run_id"`
	Begin          uint64  `json:"begin"`
	End            uint64  `json:"end"`
	Checked        uint64  `json:"checked"`
	Counterexample *uint64 `json:"counterexample,omitempty"`
	DurationMS     float64 `json:"duration_ms"`
	Timestamp      int64   `json:"timestamp"`
}

// NewBatchEvent builds the event for res.
func NewBatchEvent(runID string, res conjecture.BatchResult) BatchEvent {
	return BatchEvent{
		RunID:          runID,
		Begin:          res.Begin,
		End:            res.End,
		Checked:        res.Checked,
		Counterexample: res.Counterexample,
		DurationMS:     float64(res.Duration) / float64(time.Millisecond),
		Timestamp:      time.Now().UnixMilli(),
	}
}

// NATSPublisher publishes batch events with core NATS.
type NATSPublisher struct {
	nc     *nats.Conn
	prefix string
	logger core.Logger
}

// Connect dials the server at cfg.URL.
func Connect(cfg Config, logger core.Logger) (*NATSPublisher, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.URL == "" {
		return nil, &core.Error{Code: core.CodeInvalidConfig, Message: "nats url is required"}
	}
	if logger == nil {
		logger = core.DefaultLogger()
	}
	logger = logger.WithFields(map[string]interface{}{"nats": cfg.URL})

	nc, err := nats.Connect(cfg.URL,
		nats.Name(cfg.Service),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Error("nats disconnected: ", err)
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("nats reconnected to ", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to nats %s: %w", cfg.URL, err)
	}

	logger.Info(fmt.Sprintf("Connected to NATS: %s (prefix: %s)", nc.ConnectedUrl(), cfg.Prefix))
	return &NATSPublisher{nc: nc, prefix: cfg.Prefix, logger: logger}, nil
}

// BatchSubject is where every batch event goes.
func (p *NATSPublisher) BatchSubject() string {
	return p.prefix + ".batch"
}

// CounterexampleSubject additionally receives events that carry a counterexample.
func (p *NATSPublisher) CounterexampleSubject() string {
	return p.prefix + ".counterexample"
}

// PublishBatch publishes the result of one batch.
func (p *NATSPublisher) PublishBatch(ctx context.Context, runID string, res conjecture.BatchResult) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.Marshal(NewBatchEvent(runID, res))
	if err != nil {
		return fmt.Errorf("encode batch event: %w", err)
	}

	if err := p.nc.Publish(p.BatchSubject(), data); err != nil {
		return fmt.Errorf("publish %s: %w", p.BatchSubject(), err)
	}
	if res.Counterexample != nil {
		if err := p.nc.Publish(p.CounterexampleSubject(), data); err != nil {
			return fmt.Errorf("publish %s: %w", p.CounterexampleSubject(), err)
		}
		// counterexamples are rare and must not sit in the write buffer
		if _, ok := ctx.Deadline(); !ok {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, FlushTimeout)
			defer cancel()
		}
		if err := p.nc.FlushWithContext(ctx); err != nil {
			return fmt.Errorf("flush: %w", err)
		}
	}
	return nil
}

// Connected reports whether the connection is currently up.
func (p *NATSPublisher) Connected() bool {
	return p.nc.IsConnected()
}

// Close flushes pending events and closes the connection.
func (p *NATSPublisher) Close() error {
	err := p.nc.Drain()
	if err != nil {
		p.nc.Close()
	}
	return err
}
