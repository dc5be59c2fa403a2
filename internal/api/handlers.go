package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"tourroute/internal/model"
	"tourroute/internal/opt"
	"tourroute/internal/store"
)

// requestError marks problems with the caller's request, reported as 4xx.
type requestError struct {
	status int
	title  string
	err    error
}

func (e *requestError) Error() string { return e.err.Error() }
func (e *requestError) Unwrap() error { return e.err }

// resolve turns an optimize request into engine input: it loads a stored
// waypoint set when asked, fills clock-derived constraint defaults and picks
// a start point when none is given.
func (s *Server) resolve(ctx context.Context, req *model.OptimizeRequest) ([]model.Waypoint, model.RouteConstraints, model.GeoPoint, error) {
	var start model.GeoPoint
	if err := validateOptimizeRequest(req); err != nil {
		return nil, model.RouteConstraints{}, start, &requestError{http.StatusBadRequest, "Invalid optimize request", err}
	}
	wps := req.Waypoints
	if req.WaypointSetID != "" {
		set, err := s.Store.GetWaypointSet(ctx, req.WaypointSetID)
		if errors.Is(err, store.ErrNotFound) {
			return nil, model.RouteConstraints{}, start, &requestError{http.StatusNotFound, "Waypoint set not found", fmt.Errorf("waypoint set %s: %w", req.WaypointSetID, err)}
		}
		if err != nil {
			return nil, model.RouteConstraints{}, start, fmt.Errorf("load waypoint set %s: %w", req.WaypointSetID, err)
		}
		wps = set
	}
	c := req.Constraints.ApplyClockDefaults(time.Now())
	switch {
	case req.Start != nil:
		start = *req.Start
	default:
		start = wps[0].Location
		for _, w := range wps {
			if w.Type == model.TypeStart {
				start = w.Location
				break
			}
		}
	}
	return wps, c, start, nil
}

// optimize runs the engine, forwarding progress to the broker under runID
// (when set) and to sink (when set).
func (s *Server) optimize(ctx context.Context, wps []model.Waypoint, c model.RouteConstraints, start model.GeoPoint, runID string, sink func(opt.Event)) (*model.OptimizedRoute, error) {
	if runID == "" && sink == nil {
		return s.Engine.Optimize(ctx, wps, c, start)
	}
	events := make(chan opt.Event, 8)
	forwarded := make(chan struct{})
	go func() {
		defer close(forwarded)
		for ev := range events {
			if runID != "" {
				s.Broker.Publish(runID, SSEEvent{Type: "optimize." + ev.Kind, Data: eventData(ev)})
			}
			if sink != nil {
				sink(ev)
			}
		}
	}()
	route, err := s.Engine.OptimizeStream(ctx, wps, c, start, events)
	close(events)
	<-forwarded
	return route, err
}

func eventData(ev opt.Event) map[string]any {
	b, _ := json.Marshal(ev)
	var m map[string]any
	_ = json.Unmarshal(b, &m)
	return m
}

// optimizeProblem maps engine and request errors onto problem responses.
func optimizeProblem(err error) (int, string) {
	var re *requestError
	switch {
	case errors.As(err, &re):
		return re.status, re.title
	case opt.IsInputError(err):
		return http.StatusBadRequest, "Invalid optimize request"
	case errors.Is(err, opt.ErrOptimizationFailed):
		return http.StatusUnprocessableEntity, "Optimization failed"
	}
	return http.StatusInternalServerError, "Optimize failed"
}

// OptimizeHandler handles POST /v1/optimize. With ?runId=... progress events
// are published for /v1/optimize/events subscribers.
func (s *Server) OptimizeHandler(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/v1/optimize" {
		writeProblem(w, http.StatusNotFound, "Not Found", "", r.URL.Path)
		return
	}
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req model.OptimizeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
		return
	}
	wps, c, start, err := s.resolve(r.Context(), &req)
	if err == nil {
		var route *model.OptimizedRoute
		route, err = s.optimize(r.Context(), wps, c, start, r.URL.Query().Get("runId"), nil)
		if err == nil {
			writeJSON(w, http.StatusOK, route)
			return
		}
	}
	status, title := optimizeProblem(err)
	writeProblem(w, status, title, err.Error(), r.URL.Path)
}

// OptimizeEventsHandler streams progress of one optimize run as SSE.
func (s *Server) OptimizeEventsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	id := r.URL.Query().Get("runId")
	if id == "" {
		writeProblem(w, http.StatusBadRequest, "Missing runId", "", r.URL.Path)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeProblem(w, 500, "Streaming unsupported", "", r.URL.Path)
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	ch := s.Broker.Subscribe(id)
	defer s.Broker.Unsubscribe(id, ch)
	heartbeat := func() {
		fmt.Fprintf(w, "event: heartbeat\n")
		fmt.Fprintf(w, "data: {\"runId\":\"%s\",\"ts\":\"%s\"}\n\n", id, time.Now().Format(time.RFC3339))
		flusher.Flush()
	}
	heartbeat()
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-r.Context().Done():
			return
		case evt, ok := <-ch:
			if !ok {
				return
			}
			b, _ := json.Marshal(evt.Data)
			fmt.Fprintf(w, "event: %s\n", evt.Type)
			fmt.Fprintf(w, "data: %s\n\n", string(b))
			flusher.Flush()
			if evt.Type == "optimize."+opt.EventDone {
				return
			}
		case <-ticker.C:
			heartbeat()
		}
	}
}

// OptimizerConfigHandler returns the optimizer settings in effect.
func (s *Server) OptimizerConfigHandler(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/v1/optimizer/config" || r.Method != http.MethodGet {
		writeProblem(w, 404, "Not Found", "", r.URL.Path)
		return
	}
	o := s.Config.Optimizer
	strategies := []string{}
	for _, st := range s.Engine.Strategies {
		strategies = append(strategies, st.Name())
	}
	writeJSON(w, 200, map[string]any{"defaults": map[string]any{
		"strategies":       strategies,
		"timeoutMs":        s.Engine.Timeout.Milliseconds(),
		"contextTimeoutMs": s.Engine.ContextTimeout.Milliseconds(),
		"dpMaxWaypoints":   o.DPMaxWaypoints,
		"genetic":          o.Genetic,
		"annealing":        o.Annealing,
		"weights":          s.Engine.Weights,
		"seeded":           o.Seed != 0,
	}})
}

// WaypointSetHandler handles PUT/GET /v1/waypoint-sets/{id}
func (s *Server) WaypointSetHandler(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/v1/waypoint-sets/")
	if id == "" || strings.Contains(id, "/") {
		writeProblem(w, http.StatusNotFound, "Not Found", "missing id", r.URL.Path)
		return
	}
	switch r.Method {
	case http.MethodPut:
		var body struct {
			Waypoints []model.Waypoint `json:"waypoints"`
		}
		if err := decodeJSON(w, r, &body); err != nil {
			writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
			return
		}
		if len(body.Waypoints) == 0 {
			writeProblem(w, http.StatusBadRequest, "Invalid waypoint set", "waypoints required", r.URL.Path)
			return
		}
		if err := validateWaypoints(body.Waypoints); err != nil {
			writeProblem(w, http.StatusBadRequest, "Invalid waypoint set", err.Error(), r.URL.Path)
			return
		}
		if err := s.Store.PutWaypointSet(r.Context(), id, body.Waypoints); err != nil {
			writeProblem(w, http.StatusInternalServerError, "Save waypoint set failed", err.Error(), r.URL.Path)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"id": id, "count": len(body.Waypoints)})
	case http.MethodGet:
		wps, err := s.Store.GetWaypointSet(r.Context(), id)
		if errors.Is(err, store.ErrNotFound) {
			writeProblem(w, http.StatusNotFound, "Waypoint set not found", id, r.URL.Path)
			return
		}
		if err != nil {
			writeProblem(w, http.StatusInternalServerError, "Load waypoint set failed", err.Error(), r.URL.Path)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"id": id, "waypoints": wps})
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// PlanMetricsHandler lists recent optimize runs, newest first.
func (s *Server) PlanMetricsHandler(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/v1/admin/plan-metrics" || r.Method != http.MethodGet {
		writeProblem(w, 404, "Not Found", "", r.URL.Path)
		return
	}
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeProblem(w, 400, "Invalid limit", v, r.URL.Path)
			return
		}
		limit = n
	}
	items, err := s.Store.ListPlanMetrics(r.Context(), r.URL.Query().Get("algo"), limit)
	if err != nil {
		writeProblem(w, 500, "List plan metrics failed", err.Error(), r.URL.Path)
		return
	}
	writeJSON(w, 200, map[string]any{"items": items})
}

func (s *Server) HealthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, 200, map[string]string{"status": "ok"})
}

func (s *Server) ReadyHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 500*time.Millisecond)
	defer cancel()
	if err := s.Store.Ping(ctx); err != nil {
		writeProblem(w, 503, "Not Ready", err.Error(), r.URL.Path)
		return
	}
	writeJSON(w, 200, map[string]string{"status": "ready"})
}
