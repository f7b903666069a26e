package influxdb

import (
	"context"
	"errors"
	"fmt"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/loykin/iniguard/internal/history"
)

// Measurement is the InfluxDB measurement every event is written to.
const Measurement = "guard_event"

// Config holds the InfluxDB v2 connection settings.
type Config struct {
	URL    string
	Token  string
	Org    string
	Bucket string
}

// Sink writes each event as one point, tagged by type and target.
// Writes are synchronous so Send reports failures.
type Sink struct {
	client influxdb2.Client
	write  api.WriteAPIBlocking
}

func New(cfg Config) (*Sink, error) {
	if cfg.URL == "" {
		return nil, errors.New("influxdb url required")
	}
	if cfg.Org == "" || cfg.Bucket == "" {
		return nil, errors.New("influxdb org and bucket required")
	}
	c := influxdb2.NewClient(cfg.URL, cfg.Token)
	return &Sink{client: c, write: c.WriteAPIBlocking(cfg.Org, cfg.Bucket)}, nil
}

func (s *Sink) Send(ctx context.Context, e history.Event) error {
	tags := map[string]string{
		"type":   string(e.Type),
		"target": e.Record.Target,
	}
	fields := map[string]interface{}{
		"pid":         int64(e.Record.PID),
		"config_path": e.Record.ConfigPath,
	}
	if e.Record.Detail != "" {
		fields["detail"] = e.Record.Detail
	}
	if e.Record.Error != "" {
		fields["error"] = e.Record.Error
	}
	p := write.NewPoint(Measurement, tags, fields, e.OccurredAt)
	if err := s.write.WritePoint(ctx, p); err != nil {
		return fmt.Errorf("influxdb write: %w", err)
	}
	return nil
}

func (s *Sink) Close() error {
	if s.client != nil {
		s.client.Close()
	}
	return nil
}
