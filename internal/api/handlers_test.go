package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tourroute/internal/config"
	"tourroute/internal/metrics"
	"tourroute/internal/model"
)

func testConfig() config.Config {
	cfg := config.Default()
	cfg.CacheBackend = "memory"
	cfg.Optimizer.Seed = 7
	cfg.Optimizer.Timeout = 2 * time.Second
	return cfg
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	return newTestServerWith(t, testConfig())
}

func newTestServerWith(t *testing.T, cfg config.Config) *Server {
	t.Helper()
	s, err := NewServer(cfg, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// walk is a short city walk: a start and four sights a few hundred meters apart.
func walk() []model.Waypoint {
	return []model.Waypoint{
		{ID: "hotel", Name: "Hotel", Type: model.TypeStart, Location: model.GeoPoint{Lat: 48.8566, Lng: 2.3522}, Priority: model.PriorityMedium, Difficulty: model.DifficultyEasy},
		{ID: "museum", Name: "Museum", Type: model.TypePOI, Location: model.GeoPoint{Lat: 48.8606, Lng: 2.3376}, EstimatedDuration: 30, Priority: model.PriorityHigh, Difficulty: model.DifficultyEasy, Tags: []string{"art"}},
		{ID: "garden", Name: "Garden", Type: model.TypePOI, Location: model.GeoPoint{Lat: 48.8635, Lng: 2.3275}, EstimatedDuration: 20, Priority: model.PriorityMedium, Difficulty: model.DifficultyEasy, Tags: []string{"nature"}},
		{ID: "tower", Name: "Tower", Type: model.TypeViewpoint, Location: model.GeoPoint{Lat: 48.8530, Lng: 2.3499}, EstimatedDuration: 15, Priority: model.PriorityLow, Difficulty: model.DifficultyModerate},
		{ID: "cafe", Name: "Cafe", Type: model.TypeRest, Location: model.GeoPoint{Lat: 48.8580, Lng: 2.3470}, EstimatedDuration: 10, Priority: model.PriorityLow, Difficulty: model.DifficultyEasy},
	}
}

func optimizeBody(t *testing.T, req model.OptimizeRequest) *bytes.Reader {
	t.Helper()
	b, err := json.Marshal(req)
	require.NoError(t, err)
	return bytes.NewReader(b)
}

func postOptimize(t *testing.T, h http.Handler, target string, req model.OptimizeRequest) *httptest.ResponseRecorder {
	t.Helper()
	rr := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, target, optimizeBody(t, req))
	r.Header.Set("Content-Type", "application/json")
	h.ServeHTTP(rr, r)
	return rr
}

func TestHealthReady(t *testing.T) {
	s := newTestServer(t)
	rr := httptest.NewRecorder()
	s.HealthHandler(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, 200, rr.Code)
	rr = httptest.NewRecorder()
	s.ReadyHandler(rr, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, 200, rr.Code)
}

func TestOptimizeInlineWaypoints(t *testing.T) {
	s := newTestServer(t)
	rr := postOptimize(t, s.Routes(), "/v1/optimize", model.OptimizeRequest{
		Waypoints:   walk(),
		Constraints: model.RouteConstraints{MaxDuration: 180, TimeOfDay: "afternoon", DayType: "weekday"},
	})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var route model.OptimizedRoute
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &route))
	require.NotEmpty(t, route.Waypoints)
	assert.Equal(t, "hotel", route.Waypoints[0].ID)
	assert.NotEmpty(t, route.ID)
	assert.NotEmpty(t, route.Metadata.Algorithm)
	assert.LessOrEqual(t, route.TotalDuration, 180.1)
	assert.Len(t, route.Route.Coordinates, len(route.Waypoints)+1)
	assert.Len(t, route.Metadata.Strategies, 4)
}

func TestOptimizeFromWaypointSet(t *testing.T) {
	s := newTestServer(t)
	h := s.Routes()

	b, _ := json.Marshal(map[string]any{"waypoints": walk()})
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPut, "/v1/waypoint-sets/paris", bytes.NewReader(b)))
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/waypoint-sets/paris", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	var got struct {
		Waypoints []model.Waypoint `json:"waypoints"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
	assert.Len(t, got.Waypoints, 5)

	rr = postOptimize(t, h, "/v1/optimize", model.OptimizeRequest{
		WaypointSetID: "paris",
		Constraints:   model.RouteConstraints{MaxDuration: 120},
	})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	rr = postOptimize(t, h, "/v1/optimize", model.OptimizeRequest{
		WaypointSetID: "nowhere",
		Constraints:   model.RouteConstraints{MaxDuration: 120},
	})
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestWaypointSetEditBypassesCachedRoute(t *testing.T) {
	s := newTestServer(t)
	h := s.Routes()
	put := func(wps []model.Waypoint) {
		b, _ := json.Marshal(map[string]any{"waypoints": wps})
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, httptest.NewRequest(http.MethodPut, "/v1/waypoint-sets/paris", bytes.NewReader(b)))
		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	}
	optimize := func() model.OptimizedRoute {
		rr := postOptimize(t, h, "/v1/optimize", model.OptimizeRequest{
			WaypointSetID: "paris",
			Constraints:   model.RouteConstraints{MaxDuration: 240, MaxDistance: 20000, MaxDifficulty: model.DifficultyModerate},
		})
		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
		var r model.OptimizedRoute
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &r))
		return r
	}

	wps := walk()
	put(wps)
	first := optimize()
	assert.Equal(t, first.ID, optimize().ID, "unchanged set is served from cache")

	wps[1].Difficulty = model.DifficultyChallenging
	put(wps)
	second := optimize()
	assert.NotEqual(t, first.ID, second.ID)
	for _, w := range second.Waypoints {
		assert.NotEqual(t, "museum", w.ID, "museum is now too difficult")
	}
}

func TestWaypointSetRejectsInvalid(t *testing.T) {
	s := newTestServer(t)
	h := s.Routes()
	cases := map[string]string{
		"empty":     `{"waypoints":[]}`,
		"duplicate": `{"waypoints":[{"id":"a","location":{"lat":1,"lng":1}},{"id":"a","location":{"lat":1,"lng":1}}]}`,
		"range":     `{"waypoints":[{"id":"a","location":{"lat":91,"lng":1}}]}`,
		"json":      `{"waypoints":`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, httptest.NewRequest(http.MethodPut, "/v1/waypoint-sets/x", strings.NewReader(body)))
			assert.Equal(t, http.StatusBadRequest, rr.Code)
		})
	}
}

func TestOptimizeErrors(t *testing.T) {
	s := newTestServer(t)
	h := s.Routes()

	cases := []struct {
		name string
		req  model.OptimizeRequest
		want int
	}{
		{"no waypoints", model.OptimizeRequest{Constraints: model.RouteConstraints{MaxDuration: 60}}, 400},
		{"both sources", model.OptimizeRequest{WaypointSetID: "x", Waypoints: walk(), Constraints: model.RouteConstraints{MaxDuration: 60}}, 400},
		{"zero budget", model.OptimizeRequest{Waypoints: walk()}, 400},
		{"bad pace", model.OptimizeRequest{Waypoints: walk(), Constraints: model.RouteConstraints{MaxDuration: 60, PreferredPace: "sprint"}}, 400},
		{"nothing accessible", model.OptimizeRequest{Waypoints: walk(), Constraints: model.RouteConstraints{MaxDuration: 60, AccessibilityNeeds: true}}, 400},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rr := postOptimize(t, h, "/v1/optimize", tc.req)
			assert.Equal(t, tc.want, rr.Code, rr.Body.String())
			var p Problem
			require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &p))
			assert.Equal(t, tc.want, p.Status)
		})
	}

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/v1/optimize", strings.NewReader("{")))
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/optimize", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
}

func TestOptimizePublishesRunEvents(t *testing.T) {
	s := newTestServer(t)
	ch := s.Broker.Subscribe("run-1")
	defer s.Broker.Unsubscribe("run-1", ch)

	rr := postOptimize(t, s.Routes(), "/v1/optimize?runId=run-1", model.OptimizeRequest{
		Waypoints:   walk(),
		Constraints: model.RouteConstraints{MaxDuration: 120},
	})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var types []string
	for len(ch) > 0 {
		types = append(types, (<-ch).Type)
	}
	require.NotEmpty(t, types)
	assert.Equal(t, "optimize.context", types[0])
	assert.Contains(t, types, "optimize.strategy")
	assert.Contains(t, types, "optimize.selected")
	assert.Equal(t, "optimize.done", types[len(types)-1])
}

func TestOptimizeEventsRequiresRunID(t *testing.T) {
	s := newTestServer(t)
	rr := httptest.NewRecorder()
	s.OptimizeEventsHandler(rr, httptest.NewRequest(http.MethodGet, "/v1/optimize/events", nil))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestOptimizeWebSocket(t *testing.T) {
	s := newTestServer(t)
	srv := httptest.NewServer(s.Routes())
	defer srv.Close()

	u := "ws" + strings.TrimPrefix(srv.URL, "http") + "/v1/optimize/ws"
	c, _, err := websocket.DefaultDialer.Dial(u, nil)
	require.NoError(t, err)
	defer func() { _ = c.Close() }()

	pl, _ := json.Marshal(model.OptimizeRequest{Waypoints: walk(), Constraints: model.RouteConstraints{MaxDuration: 120}})
	require.NoError(t, c.WriteJSON(wsMessage{Type: "optimize", ID: "1", Payload: pl}))

	_ = c.SetReadDeadline(time.Now().Add(10 * time.Second))
	events := 0
	for {
		var m wsMessage
		require.NoError(t, c.ReadJSON(&m))
		require.Equal(t, "1", m.ID)
		if m.Type == "event" {
			events++
			continue
		}
		require.Equal(t, "route", m.Type, string(m.Payload))
		var route model.OptimizedRoute
		require.NoError(t, json.Unmarshal(m.Payload, &route))
		assert.Equal(t, "hotel", route.Waypoints[0].ID)
		break
	}
	assert.GreaterOrEqual(t, events, 3)

	// a bad request answers with an error frame and keeps the socket open
	require.NoError(t, c.WriteJSON(wsMessage{Type: "optimize", ID: "2", Payload: json.RawMessage(`{}`)}))
	var m wsMessage
	require.NoError(t, c.ReadJSON(&m))
	assert.Equal(t, "error", m.Type)
	var p Problem
	require.NoError(t, json.Unmarshal(m.Payload, &p))
	assert.Equal(t, 400, p.Status)

	require.NoError(t, c.WriteJSON(wsMessage{Type: "ping", ID: "3"}))
	require.NoError(t, c.ReadJSON(&m))
	assert.Equal(t, "pong", m.Type)
}

func TestPlanMetricsRecorded(t *testing.T) {
	s := newTestServer(t)
	h := s.Routes()
	rr := postOptimize(t, h, "/v1/optimize", model.OptimizeRequest{Waypoints: walk(), Constraints: model.RouteConstraints{MaxDuration: 120}})
	require.Equal(t, http.StatusOK, rr.Code)
	var route model.OptimizedRoute
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &route))

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/admin/plan-metrics?limit=5", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	var res struct {
		Items []model.PlanMetrics `json:"items"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &res))
	require.Len(t, res.Items, 1)
	assert.Equal(t, route.ID, res.Items[0].RouteID)
	assert.Equal(t, len(route.Waypoints), res.Items[0].Waypoints)
	assert.Len(t, res.Items[0].Strategies, 4)

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/admin/plan-metrics?limit=x", nil))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestOptimizerConfig(t *testing.T) {
	s := newTestServer(t)
	rr := httptest.NewRecorder()
	s.Routes().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/optimizer/config", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	var res struct {
		Defaults struct {
			Strategies []string `json:"strategies"`
			TimeoutMs  int64    `json:"timeoutMs"`
		} `json:"defaults"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &res))
	assert.ElementsMatch(t, []string{"greedy", "genetic", "dynamic_programming", "simulated_annealing"}, res.Defaults.Strategies)
	assert.Equal(t, int64(2000), res.Defaults.TimeoutMs)
}

func TestRateLimit(t *testing.T) {
	cfg := testConfig()
	cfg.RateRPS = 0.001
	cfg.RateBurst = 1
	h := newTestServerWith(t, cfg).Routes()

	get := func(path string) int {
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))
		return rr.Code
	}
	assert.Equal(t, http.StatusOK, get("/v1/optimizer/config"))
	assert.Equal(t, http.StatusTooManyRequests, get("/v1/optimizer/config"))
	assert.Equal(t, http.StatusOK, get("/healthz"))
}

func TestMetricsAndDebug(t *testing.T) {
	metrics.RegisterDefault()
	h := newTestServer(t).Routes()

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "http_requests_total")

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/debug", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"CACHE_BACKEND":"memory"`)
}

func TestRouteLabel(t *testing.T) {
	assert.Equal(t, "/v1/waypoint-sets/{id}", routeLabel("/v1/waypoint-sets/abc"))
	assert.Equal(t, "/v1/optimize", routeLabel("/v1/optimize"))
}
