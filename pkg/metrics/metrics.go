// Package metrics provides a small embedded time-series store for runtime
// gauges and counters, backed by tstorage under the application workdir.
package metrics

import (
	"path/filepath"
	"sync"
	"time"

	"github.com/nakabonne/tstorage"
	"go.uber.org/zap"
)

var (
	mu       sync.Mutex
	storage  tstorage.Storage
	counters = make(map[string]int64)
)

// InitMetrics opens the metrics store under <workdir>/metrics.
func InitMetrics(workdir string) error {
	mu.Lock()
	defer mu.Unlock()
	s, err := tstorage.NewStorage(
		tstorage.WithDataPath(filepath.Join(workdir, "metrics")),
		tstorage.WithTimestampPrecision(tstorage.Seconds),
		tstorage.WithRetention(7*24*time.Hour),
	)
	if err != nil {
		return err
	}
	storage = s
	return nil
}

func insert(name string, value int64) {
	if storage == nil {
		return
	}
	err := storage.InsertRows([]tstorage.Row{
		{
			Metric:    name,
			DataPoint: tstorage.DataPoint{Timestamp: time.Now().Unix(), Value: float64(value)},
		},
	})
	if err != nil {
		zap.L().Debug("metrics: insert failed", zap.String("metric", name), zap.Error(err))
	}
}

// SetGauge records the current value of a gauge metric.
func SetGauge(name string, value int64) {
	mu.Lock()
	defer mu.Unlock()
	insert(name, value)
}

// IncrCounter adds delta to a cumulative counter and records the new total.
func IncrCounter(name string, delta int64) {
	mu.Lock()
	defer mu.Unlock()
	counters[name] += delta
	insert(name, counters[name])
}

// CounterValue returns the in-memory cumulative value of a counter.
func CounterValue(name string) int64 {
	mu.Lock()
	defer mu.Unlock()
	return counters[name]
}

// Range returns the stored datapoints for a metric between start and end
// (unix seconds). Missing metrics yield an empty slice.
func Range(name string, start, end int64) []*tstorage.DataPoint {
	mu.Lock()
	s := storage
	mu.Unlock()
	if s == nil {
		return nil
	}
	points, err := s.Select(name, nil, start, end)
	if err != nil {
		return nil
	}
	return points
}

// Close flushes and closes the metrics store.
func Close() error {
	mu.Lock()
	defer mu.Unlock()
	if storage == nil {
		return nil
	}
	err := storage.Close()
	storage = nil
	return err
}
