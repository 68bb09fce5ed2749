// Package analytics binds the response analytics sink to InfluxDB.
package analytics

import (
	"context"
	"net/http"
	"strconv"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	coreanalytics "github.com/fieldmatch/dispatchd/core/analytics"
	"github.com/fieldmatch/dispatchd/infra/logger"
)

// Config defines the InfluxDB sink settings.
type Config struct {
	Enabled bool   `json:"enabled"`
	URL     string `json:"url"`
	Token   string `json:"token"`
	Org     string `json:"org"`
	Bucket  string `json:"bucket"`
}

// InfluxSink writes response analytics records as line protocol events.
type InfluxSink struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	log      logger.Logger
}

// NewInfluxSink creates a sink for the given InfluxDB endpoint.
func NewInfluxSink(cfg Config) *InfluxSink {
	client := influxdb2.NewClientWithOptions(cfg.URL, cfg.Token,
		influxdb2.DefaultOptions().SetHTTPClient(&http.Client{Timeout: 5 * time.Second}))
	return &InfluxSink{
		client:   client,
		writeAPI: client.WriteAPIBlocking(cfg.Org, cfg.Bucket),
		log:      logger.New("influx-sink"),
	}
}

// NewInfluxSinkWithFallback tries to ping the InfluxDB instance and
// returns a NopSink when the health check fails, so analytics never
// blocks dispatch.
func NewInfluxSinkWithFallback(cfg Config) coreanalytics.Sink {
	sink := NewInfluxSink(cfg)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	health, err := sink.client.Health(ctx)
	if err != nil || health.Status != "pass" {
		if err != nil {
			sink.log.Errorf("influx health check error: %v", err)
		} else {
			sink.log.Errorf("influx health status: %s", health.Status)
		}
		sink.client.Close()
		return coreanalytics.NopSink{}
	}
	return sink
}

// Append implements analytics.Sink.
func (s *InfluxSink) Append(ctx context.Context, rec coreanalytics.Record) error {
	wctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("offer_response").
		AddTag("dispatch_id", rec.DispatchID).
		AddTag("provider_id", rec.ProviderID).
		AddTag("action", rec.Action).
		AddTag("weekday", rec.Weekday.String()).
		AddField("latency_ms", rec.Latency.Milliseconds()).
		AddField("hour_of_day", rec.HourOfDay).
		AddField("current_jobs", rec.CurrentJobs).
		AddField("distance_miles", round3(rec.Distance)).
		SetTime(rec.RecordedAt)
	return s.writeAPI.WritePoint(wctx, p)
}

// Close releases the underlying client.
func (s *InfluxSink) Close() {
	s.client.Close()
}

func round3(v float64) float64 {
	f, _ := strconv.ParseFloat(strconv.FormatFloat(v, 'f', 3, 64), 64)
	return f
}
