package metrics

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saturnino-fabrica-de-software/eventcore/internal/bus"
)

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) lines() []map[string]any {
	b.mu.Lock()
	defer b.mu.Unlock()

	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(b.buf.String()), "\n") {
		if line == "" {
			continue
		}
		var entry map[string]any
		if err := json.Unmarshal([]byte(line), &entry); err == nil {
			out = append(out, entry)
		}
	}
	return out
}

func TestReporter_ReportsDeltas(t *testing.T) {
	buf := &syncBuffer{}
	logger := slog.New(slog.NewJSONHandler(buf, nil))

	src := &staticSource{m: bus.Metrics{Published: 10, Delivered: 10}}
	r := NewReporter(src, logger, time.Hour)

	r.report(context.Background())
	src.m = bus.Metrics{Published: 15, Delivered: 12, Failed: 2}
	r.report(context.Background())

	entries := buf.lines()
	require.Len(t, entries, 2)

	assert.Equal(t, "INFO", entries[0]["level"])
	assert.Equal(t, 10.0, entries[0]["published_delta"])

	assert.Equal(t, "WARN", entries[1]["level"])
	assert.Equal(t, 5.0, entries[1]["published_delta"])
	assert.Equal(t, 2.0, entries[1]["failed_delta"])
	assert.Equal(t, "metrics_reporter", entries[1]["component"])
}

func TestReporter_StartStop(t *testing.T) {
	buf := &syncBuffer{}
	logger := slog.New(slog.NewJSONHandler(buf, nil))

	r := NewReporter(&staticSource{}, logger, 10*time.Millisecond)

	done := make(chan struct{})
	go func() {
		r.Start(context.Background())
		close(done)
	}()

	assert.Eventually(t, func() bool {
		for _, e := range buf.lines() {
			if e["msg"] == "bus metrics" {
				return true
			}
		}
		return false
	}, time.Second, 5*time.Millisecond)

	r.Stop()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("reporter did not stop")
	}
}

func TestReporter_DefaultInterval(t *testing.T) {
	r := NewReporter(&staticSource{}, slog.Default(), 0)
	assert.Equal(t, time.Minute, r.interval)
}
