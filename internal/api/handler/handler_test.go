package handler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"

	"github.com/saturnino-fabrica-de-software/eventcore/internal/api/middleware"
	"github.com/saturnino-fabrica-de-software/eventcore/internal/audit"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestApp() *fiber.App {
	return fiber.New(fiber.Config{
		ErrorHandler: middleware.ErrorHandler(testLogger()),
	})
}

type memoryAudit struct {
	mu     sync.Mutex
	events []audit.Event
}

func (m *memoryAudit) Log(_ context.Context, evt audit.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, evt)
	return nil
}

func (m *memoryAudit) records() []audit.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]audit.Event(nil), m.events...)
}

type errorBody struct {
	Error struct {
		Code      string   `json:"code"`
		Message   string   `json:"message"`
		EventType string   `json:"event_type"`
		Missing   []string `json:"missing"`
	} `json:"error"`
}

func decode(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

type fiberApp struct {
	*fiber.App
}

// do runs req and returns the status and raw body.
func (a *fiberApp) do(t *testing.T, req *http.Request) (int, string) {
	t.Helper()
	resp, err := a.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body)
}
