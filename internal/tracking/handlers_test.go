package tracking

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/edge-hybrid/location-tracker/internal/location"

	"github.com/gofiber/fiber/v2"
)

func newTrackingApp(t *testing.T, status location.Status, push *location.PushSource) (*fiber.App, *Service) {
	t.Helper()
	var src location.Source = push
	if push == nil {
		src = location.NewReplaySource(nil, 0)
	}
	svc := NewService(NewStore(), Deps{
		Gate:    location.NewStaticGate(status, location.StatusDenied),
		Source:  src,
		Logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		Current: location.CurrentOptions{Timeout: 10 * time.Millisecond, MaxAge: time.Minute},
	})
	t.Cleanup(svc.Close)

	app := fiber.New()
	RegisterRoutes(app.Group("/tracking"), svc, push)
	return app, svc
}

func postJSON(t *testing.T, app *fiber.App, path, body string) *http.Response {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader([]byte(body)))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("request %s: %v", path, err)
	}
	return resp
}

func TestTrackingHandlersFlow(t *testing.T) {
	push := location.NewPushSource()
	app, svc := newTrackingApp(t, location.StatusGranted, push)

	resp := postJSON(t, app, "/tracking/start", "")
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("start status: %d", resp.StatusCode)
	}
	var state State
	if err := json.NewDecoder(resp.Body).Decode(&state); err != nil || !state.IsTracking {
		t.Fatalf("start body: %v %+v", err, state)
	}

	for _, body := range []string{
		`{"lat":0,"lng":0,"timestamp":1000}`,
		`{"lat":0,"lng":0.001,"timestamp":2000}`,
	} {
		if resp := postJSON(t, app, "/tracking/fixes", body); resp.StatusCode != http.StatusAccepted {
			t.Fatalf("fix status: %d", resp.StatusCode)
		}
	}
	waitFor(t, func() bool { return len(svc.Snapshot().Points) == 2 })

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/tracking/session", nil))
	if err != nil || resp.StatusCode != http.StatusOK {
		t.Fatalf("session status: %v", err)
	}
	if err := json.NewDecoder(resp.Body).Decode(&state); err != nil || len(state.Points) != 2 {
		t.Fatalf("session body: %v %+v", err, state)
	}

	resp = postJSON(t, app, "/tracking/stop", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("stop status: %d", resp.StatusCode)
	}
	var summary Summary
	if err := json.NewDecoder(resp.Body).Decode(&summary); err != nil {
		t.Fatalf("stop body: %v", err)
	}
	if summary.PointCount != 2 || math.Abs(summary.DistanceM-111.19) > 0.01 {
		t.Fatalf("unexpected summary %+v", summary)
	}

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/tracking/summary", nil))
	if err != nil || resp.StatusCode != http.StatusOK {
		t.Fatalf("summary status: %v", err)
	}
}

func TestTrackingHandlersStartDenied(t *testing.T) {
	app, _ := newTrackingApp(t, location.StatusDenied, location.NewPushSource())
	if resp := postJSON(t, app, "/tracking/start", ""); resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", resp.StatusCode)
	}
}

func TestTrackingHandlersLocation(t *testing.T) {
	push := location.NewPushSource()
	app, _ := newTrackingApp(t, location.StatusGranted, push)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/tracking/location", nil))
	if err != nil || resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 without fixes: %v", err)
	}

	postJSON(t, app, "/tracking/fixes", `{"lat":-6.2,"lng":106.8}`)
	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/tracking/location", nil))
	if err != nil || resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 after a fix: %v", err)
	}
}

func TestTrackingHandlersLocationDenied(t *testing.T) {
	app, _ := newTrackingApp(t, location.StatusDenied, location.NewPushSource())
	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/tracking/location", nil))
	if err != nil || resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403: %v", err)
	}
}

func TestTrackingHandlersFixBadRequest(t *testing.T) {
	app, _ := newTrackingApp(t, location.StatusGranted, location.NewPushSource())

	if resp := postJSON(t, app, "/tracking/fixes", "{"); resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed body, got %d", resp.StatusCode)
	}
	if resp := postJSON(t, app, "/tracking/fixes", `{"lat":1}`); resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 without lng, got %d", resp.StatusCode)
	}
	if resp := postJSON(t, app, "/tracking/fixes", `{"error":"no signal"}`); resp.StatusCode != http.StatusAccepted {
		t.Fatalf("expected 202 for fix error, got %d", resp.StatusCode)
	}
}

func TestTrackingHandlersFixesWithoutPushSource(t *testing.T) {
	app, _ := newTrackingApp(t, location.StatusGranted, nil)
	if resp := postJSON(t, app, "/tracking/fixes", `{"lat":1,"lng":1}`); resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409, got %d", resp.StatusCode)
	}
}

func TestTrackingHandlersStartWatchFailure(t *testing.T) {
	app, _ := newTrackingApp(t, location.StatusGranted, nil)
	if resp := postJSON(t, app, "/tracking/start", ""); resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 when the source has nothing to replay, got %d", resp.StatusCode)
	}
}
