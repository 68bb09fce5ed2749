package httpapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/fieldmatch/dispatchd/core/analytics"
	"github.com/fieldmatch/dispatchd/core/dispatch"
	"github.com/fieldmatch/dispatchd/core/matching"
	"github.com/fieldmatch/dispatchd/core/push"
	"github.com/fieldmatch/dispatchd/core/registry"
	"github.com/fieldmatch/dispatchd/infra/logger"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type testAPI struct {
	router   http.Handler
	reg      *registry.Registry
	sink     *analytics.MemorySink
	channels map[string]*push.MockChannel
}

func newTestAPI(providerIDs ...string) *testAPI {
	reg := registry.New(time.Minute, time.Minute, logger.NopLogger{})
	channels := make(map[string]*push.MockChannel)
	for _, id := range providerIDs {
		ch := push.NewMockChannel()
		channels[id] = ch
		reg.Register(id, ch)
	}
	sink := analytics.NewMemorySink()
	orch := dispatch.NewOrchestrator(reg, sink, nil, nil, logger.NopLogger{}, time.Minute)
	engine := matching.NewEngine(nil, logger.NopLogger{})
	h := NewHandler(engine, orch, sink, zerolog.Nop())
	return &testAPI{
		router:   Router(h, zerolog.Nop()),
		reg:      reg,
		sink:     sink,
		channels: channels,
	}
}

func (a *testAPI) do(t *testing.T, method, path string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode request: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)

	var out map[string]any
	if w.Body.Len() > 0 {
		if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
			t.Fatalf("decode response %q: %v", w.Body.String(), err)
		}
	}
	return w, out
}

func submitBody(candidateIDs ...string) map[string]any {
	candidates := make([]any, 0, len(candidateIDs))
	for _, id := range candidateIDs {
		candidates = append(candidates, map[string]any{
			"id":             id,
			"name":           "Tech " + id,
			"skills":         []string{"network setup"},
			"rating":         4.2,
			"service_radius": 30,
			"active":         true,
			"verified":       true,
			"availability": map[string]any{
				"monday": map[string]string{}, "tuesday": map[string]string{},
				"wednesday": map[string]string{}, "thursday": map[string]string{},
				"friday": map[string]string{}, "saturday": map[string]string{},
				"sunday": map[string]string{},
			},
			"location": map[string]any{
				"address":   "123 Main St",
				"latitude":  37.78,
				"longitude": -122.42,
			},
			"current_jobs": 1,
		})
	}
	return map[string]any{
		"job": map[string]any{
			"ticket_id":    "t1",
			"customer_id":  "c1",
			"service_type": "onsite",
			"category":     "network setup",
			"description":  "router replacement",
			"urgency":      "high",
			"customer_location": map[string]any{
				"address":   "456 Oak Ave",
				"latitude":  37.7749,
				"longitude": -122.4194,
			},
		},
		"candidates": candidates,
	}
}

func TestSubmitJobStartsDispatch(t *testing.T) {
	api := newTestAPI("p1", "p2")
	w, out := api.do(t, http.MethodPost, "/api/dispatches", submitBody("p1", "p2"))

	if w.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", w.Code, w.Body.String())
	}
	id, _ := out["dispatch_id"].(string)
	if id == "" {
		t.Fatal("expected a dispatch id")
	}
	if out["candidates"].(float64) != 2 {
		t.Fatalf("expected 2 ranked candidates, got %v", out["candidates"])
	}
	// The best candidate holds the offer already.
	if len(api.channels["p1"].Sent()) == 0 && len(api.channels["p2"].Sent()) == 0 {
		t.Fatal("expected an offer pushed to a candidate")
	}
}

func TestSubmitJobNoEligibleProviders(t *testing.T) {
	api := newTestAPI()
	w, out := api.do(t, http.MethodPost, "/api/dispatches", submitBody())

	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", w.Code)
	}
	if out["error"] != "no eligible providers" {
		t.Fatalf("unexpected body: %v", out)
	}

	// The id in the error body resolves to the failed dispatch.
	id := out["dispatch_id"].(string)
	w, out = api.do(t, http.MethodGet, "/api/dispatches/"+id, nil)
	if w.Code != http.StatusOK || out["status"] != "failed" {
		t.Fatalf("expected a failed snapshot, got %d: %v", w.Code, out)
	}
}

func TestSubmitJobRejectsBadUrgency(t *testing.T) {
	api := newTestAPI()
	body := submitBody()
	body["job"].(map[string]any)["urgency"] = "whenever"
	w, _ := api.do(t, http.MethodPost, "/api/dispatches", body)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestSubmitJobRejectsMissingTicket(t *testing.T) {
	api := newTestAPI()
	body := submitBody()
	delete(body["job"].(map[string]any), "ticket_id")
	w, _ := api.do(t, http.MethodPost, "/api/dispatches", body)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestProviderResponseLifecycle(t *testing.T) {
	api := newTestAPI("p1")
	_, out := api.do(t, http.MethodPost, "/api/dispatches", submitBody("p1"))
	id := out["dispatch_id"].(string)

	w, out := api.do(t, http.MethodPost, fmt.Sprintf("/api/dispatches/%s/response", id), map[string]any{
		"provider_id":         "p1",
		"action":              "accepted",
		"response_latency_ms": 1500,
	})
	if w.Code != http.StatusOK || out["result"] != "ok" {
		t.Fatalf("expected ok, got %d: %v", w.Code, out)
	}

	w, out = api.do(t, http.MethodGet, "/api/dispatches/"+id, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if out["status"] != "accepted" || out["assigned_provider"] != "p1" {
		t.Fatalf("unexpected snapshot: %v", out)
	}

	// A duplicate response is reported as stale, not an error.
	w, out = api.do(t, http.MethodPost, fmt.Sprintf("/api/dispatches/%s/response", id), map[string]any{
		"provider_id":         "p1",
		"action":              "accepted",
		"response_latency_ms": 2000,
	})
	if w.Code != http.StatusOK || out["result"] != "stale" {
		t.Fatalf("expected stale, got %d: %v", w.Code, out)
	}
}

func TestProviderResponseRejectsBadAction(t *testing.T) {
	api := newTestAPI("p1")
	_, out := api.do(t, http.MethodPost, "/api/dispatches", submitBody("p1"))
	id := out["dispatch_id"].(string)

	w, _ := api.do(t, http.MethodPost, fmt.Sprintf("/api/dispatches/%s/response", id), map[string]any{
		"provider_id":         "p1",
		"action":              "maybe",
		"response_latency_ms": 10,
	})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestCancelDispatch(t *testing.T) {
	api := newTestAPI("p1")
	_, out := api.do(t, http.MethodPost, "/api/dispatches", submitBody("p1"))
	id := out["dispatch_id"].(string)

	w, out := api.do(t, http.MethodDelete, "/api/dispatches/"+id, nil)
	if w.Code != http.StatusOK || out["result"] != "cancelled" {
		t.Fatalf("expected cancelled, got %d: %v", w.Code, out)
	}
	w, _ = api.do(t, http.MethodDelete, "/api/dispatches/"+id, nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 on double cancel, got %d", w.Code)
	}
}

func TestGetUnknownDispatch(t *testing.T) {
	api := newTestAPI()
	w, _ := api.do(t, http.MethodGet, "/api/dispatches/nope", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestAnalyticsSummary(t *testing.T) {
	api := newTestAPI("p1")
	_, out := api.do(t, http.MethodPost, "/api/dispatches", submitBody("p1"))
	id := out["dispatch_id"].(string)
	api.do(t, http.MethodPost, fmt.Sprintf("/api/dispatches/%s/response", id), map[string]any{
		"provider_id":         "p1",
		"action":              "accepted",
		"response_latency_ms": 1200,
	})

	w, out := api.do(t, http.MethodGet, "/api/analytics/summary", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if out["total"].(float64) != 1 || out["accepted"].(float64) != 1 {
		t.Fatalf("unexpected summary: %v", out)
	}
	if out["mean_latency_ms"].(float64) != 1200 {
		t.Fatalf("expected mean 1200ms, got %v", out["mean_latency_ms"])
	}
}

func TestHealthz(t *testing.T) {
	api := newTestAPI()
	w, out := api.do(t, http.MethodGet, "/healthz", nil)
	if w.Code != http.StatusOK || out["status"] != "ok" {
		t.Fatalf("unexpected health response: %d %v", w.Code, out)
	}
}
