package handler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"itera/internal/agent"
	"itera/internal/hub"
	"itera/internal/route"
	"itera/internal/session"
	"itera/internal/storage"
)

const planJSON = `{
	"status": "success",
	"itinerary": [
		{"id": 0, "time": "09:00", "title": "Sagrada Familia", "lat": "41.4036", "lon": "2.1744", "type": "Indoor", "price": "$26"},
		{"id": 1, "time": "11:00", "title": "Park Güell", "lat": 41.4145, "lon": 2.1527, "type": "Outdoor", "price": "$10"},
		{"id": 2, "time": "14:00", "title": "Barceloneta", "lat": "41.3784", "lon": "2.1925", "type": "Outdoor/Beach"}
	],
	"insights": [
		{"category": "Transit_Cost", "content": "Flights", "value": "$500"},
		{"category": "Local_Tip", "content": "Lunch is at 2pm"}
	],
	"center": {"lat": 41.3874, "lon": 2.1686}
}`

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeAgentServer answers /plan with planJSON unless the destination is
// "Nowhere", and /chat with a replan when the message mentions rain.
func fakeAgentServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/plan":
			var req agent.PlanRequest
			json.NewDecoder(r.Body).Decode(&req)
			if req.Destination == "Nowhere" {
				io.WriteString(w, `{"status": "error"}`)
				return
			}
			if req.Destination == "Down" {
				w.WriteHeader(http.StatusInternalServerError)
				return
			}
			io.WriteString(w, planJSON)
		case "/chat":
			var req agent.ChatRequest
			json.NewDecoder(r.Body).Decode(&req)
			if strings.Contains(req.Message, "rain") {
				io.WriteString(w, `{"type": "replan", "new_itinerary": [
					{"id": 0, "title": "Sagrada Familia", "lat": "41.4036", "lon": "2.1744", "type": "Indoor"},
					{"id": 5, "title": "Picasso Museum", "lat": "41.3852", "lon": "2.1809", "type": "Indoor"}
				]}`)
				return
			}
			io.WriteString(w, `{"type": "answer", "answer": "Bring an umbrella."}`)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

type testEnv struct {
	h     *Handler
	sess  *session.Session
	db    *storage.DB
	scene *route.Scene
	mux   *http.ServeMux
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger := testLogger()
	agentSrv := fakeAgentServer(t)

	db, err := storage.Open(filepath.Join(t.TempDir(), "test.db"), logger)
	if err != nil {
		t.Fatalf("storage.Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	sess := session.New(agent.NewClient(agentSrv.URL, 5*time.Second, logger), session.Options{History: db}, logger)
	scene := route.NewScene()
	renderer := route.NewRenderer(nil, scene, route.Config{}, logger)
	hb := hub.NewHub(nil, logger)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hb.Run(ctx)

	h := New(Deps{
		Session:  sess,
		History:  db,
		Renderer: renderer,
		Scene:    scene,
		Hub:      hb,
	}, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/journey", h.Journey)
	mux.HandleFunc("POST /api/journey/new", h.NewJourney)
	mux.HandleFunc("GET /api/journey.ics", h.Calendar)
	mux.HandleFunc("POST /api/plan", h.Plan)
	mux.HandleFunc("POST /api/chat", h.Chat)
	mux.HandleFunc("POST /api/concierge", h.Concierge)
	mux.HandleFunc("POST /api/reached/{index}", h.Reached)
	mux.HandleFunc("POST /api/events", h.AddEvent)
	mux.HandleFunc("DELETE /api/events", h.ClearEvents)
	mux.HandleFunc("GET /api/alerts", h.Alerts)
	mux.HandleFunc("GET /api/history", h.History)
	mux.HandleFunc("POST /api/history/{id}/select", h.SelectHistory)
	mux.HandleFunc("GET /api/route", h.Route)
	mux.HandleFunc("GET /healthz", h.Health)

	return &testEnv{h: h, sess: sess, db: db, scene: scene, mux: mux}
}

func (e *testEnv) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	rec := httptest.NewRecorder()
	e.mux.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rec.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return v
}

func (e *testEnv) plan(t *testing.T) {
	t.Helper()
	rec := e.do(t, "POST", "/api/plan", `{"destination": "Barcelona", "budget": 2000, "startDate": "2026-05-01"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("plan status = %d: %s", rec.Code, rec.Body)
	}
}

func TestPlanAndJourney(t *testing.T) {
	e := newTestEnv(t)

	rec := e.do(t, "POST", "/api/plan", `{"destination": "Barcelona", "budget": 2000}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body)
	}
	resp := decode[planResponse](t, rec)
	if resp.Result.Stops != 3 || resp.Result.JourneyID == 0 {
		t.Errorf("result = %+v", resp.Result)
	}
	j := resp.Journey
	if j.Summary.TotalSpent != 36 || j.Summary.RemainingBudget != 1500 {
		t.Errorf("summary = %+v", j.Summary)
	}
	if len(j.Feed) != 1 || j.Feed[0].Category != "Local_Tip" {
		t.Errorf("feed = %+v", j.Feed)
	}

	view := decode[JourneyView](t, e.do(t, "GET", "/api/journey", ""))
	if !view.Active || view.LastReachedIndex != -1 || len(view.Stops) != 3 {
		t.Errorf("journey = %+v", view)
	}
}

func TestPlanErrors(t *testing.T) {
	e := newTestEnv(t)
	tests := []struct {
		name string
		body string
		want int
	}{
		{"malformed", `{"destination": `, http.StatusBadRequest},
		{"missing destination", `{"destination": "  "}`, http.StatusBadRequest},
		{"rejected", `{"destination": "Nowhere"}`, http.StatusUnprocessableEntity},
		{"agent down", `{"destination": "Down"}`, http.StatusBadGateway},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := e.do(t, "POST", "/api/plan", tt.body)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d: %s", rec.Code, tt.want, rec.Body)
			}
		})
	}
	if e.sess.Snapshot().Active {
		t.Error("failed plans created a journey")
	}
}

func TestReachedAndReplan(t *testing.T) {
	e := newTestEnv(t)
	e.plan(t)

	rec := e.do(t, "POST", "/api/reached/0", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("reached status = %d", rec.Code)
	}
	view := decode[JourneyView](t, rec)
	if !view.Stops[0].Reached || view.Stops[1].Reached {
		t.Errorf("reached flags = %v %v", view.Stops[0].Reached, view.Stops[1].Reached)
	}

	for path, want := range map[string]int{
		"/api/reached/7":   http.StatusBadRequest,
		"/api/reached/abc": http.StatusBadRequest,
		"/api/reached/-2":  http.StatusBadRequest,
	} {
		if rec := e.do(t, "POST", path, ""); rec.Code != want {
			t.Errorf("%s status = %d, want %d", path, rec.Code, want)
		}
	}

	rec = e.do(t, "POST", "/api/chat", `{"message": "it will rain all afternoon"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("chat status = %d: %s", rec.Code, rec.Body)
	}
	chat := decode[chatResponse](t, rec)
	if !chat.Result.Applied || chat.Result.Stops != 2 {
		t.Errorf("chat result = %+v", chat.Result)
	}
	if chat.Journey.LastReachedIndex != 0 {
		t.Errorf("progress not carried over: %d", chat.Journey.LastReachedIndex)
	}
}

func TestChatAnswerAndConcierge(t *testing.T) {
	e := newTestEnv(t)

	if rec := e.do(t, "POST", "/api/chat", `{"message": "hello"}`); rec.Code != http.StatusConflict {
		t.Errorf("chat without journey status = %d, want 409", rec.Code)
	}
	if rec := e.do(t, "POST", "/api/chat", `{"message": ""}`); rec.Code != http.StatusBadRequest {
		t.Errorf("empty message status = %d, want 400", rec.Code)
	}

	// The concierge works without a journey.
	rec := e.do(t, "POST", "/api/concierge", `{"message": "what should I pack?"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("concierge status = %d: %s", rec.Code, rec.Body)
	}
	res := decode[session.ChatResult](t, rec)
	if res.Answer != "Bring an umbrella." || res.Applied {
		t.Errorf("concierge = %+v", res)
	}

	e.plan(t)
	rec = e.do(t, "POST", "/api/chat", `{"message": "what time is it?"}`)
	chat := decode[chatResponse](t, rec)
	if chat.Result.Applied || len(chat.Journey.Stops) != 3 {
		t.Errorf("answer mutated the journey: %+v", chat.Result)
	}
}

func TestEvents(t *testing.T) {
	e := newTestEnv(t)
	if rec := e.do(t, "POST", "/api/events", `{"type": "rain"}`); rec.Code != http.StatusConflict {
		t.Errorf("event without journey status = %d, want 409", rec.Code)
	}
	e.plan(t)

	rec := e.do(t, "POST", "/api/events", `{"id": "w1", "type": "RAIN", "detail": "Heavy showers"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body)
	}
	view := decode[JourneyView](t, rec)
	if view.Stops[0].Adjusted || !view.Stops[1].Adjusted || !view.Stops[2].Adjusted {
		t.Errorf("adjusted = %v %v %v", view.Stops[0].Adjusted, view.Stops[1].Adjusted, view.Stops[2].Adjusted)
	}
	if !strings.HasSuffix(view.Stops[1].Title, "(Adjusted)") {
		t.Errorf("title = %q", view.Stops[1].Title)
	}
	if len(view.Events) != 1 || view.Events[0].Source != "traveler" {
		t.Errorf("events = %+v", view.Events)
	}

	if rec := e.do(t, "POST", "/api/events", `{"id": "w1", "type": "rain"}`); rec.Code != http.StatusOK {
		t.Errorf("duplicate status = %d, want 200", rec.Code)
	}
	if rec := e.do(t, "POST", "/api/events", `{"type": "hail"}`); rec.Code != http.StatusBadRequest {
		t.Errorf("unknown type status = %d, want 400", rec.Code)
	}

	view = decode[JourneyView](t, e.do(t, "DELETE", "/api/events", ""))
	if len(view.Events) != 0 || view.Stops[1].Adjusted {
		t.Errorf("after clear = %+v", view)
	}
}

func TestHistory(t *testing.T) {
	e := newTestEnv(t)
	e.plan(t)
	e.plan(t)

	rec := e.do(t, "GET", "/api/history", "")
	hist := decode[historyResponse](t, rec)
	if hist.Count != 2 {
		t.Fatalf("count = %d, want 2", hist.Count)
	}
	if hist.Journeys[0].ID < hist.Journeys[1].ID {
		t.Error("history should be newest first")
	}

	if rec := e.do(t, "GET", "/api/history?limit=1", ""); decode[historyResponse](t, rec).Count != 1 {
		t.Error("limit not applied")
	}
	if rec := e.do(t, "GET", "/api/history?limit=x", ""); rec.Code != http.StatusBadRequest {
		t.Errorf("bad limit status = %d", rec.Code)
	}

	e.do(t, "POST", "/api/reached/1", "")
	e.do(t, "POST", "/api/journey/new", "")
	if e.sess.Snapshot().Active {
		t.Fatal("new journey should clear the session")
	}

	rec = e.do(t, "POST", "/api/history/1/select", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("select status = %d: %s", rec.Code, rec.Body)
	}
	view := decode[JourneyView](t, rec)
	if !view.Active || view.JourneyID != 1 || view.LastReachedIndex != -1 {
		t.Errorf("selected = %+v", view)
	}

	if rec := e.do(t, "POST", "/api/history/99/select", ""); rec.Code != http.StatusNotFound {
		t.Errorf("unknown id status = %d, want 404", rec.Code)
	}
	if rec := e.do(t, "POST", "/api/history/zero/select", ""); rec.Code != http.StatusBadRequest {
		t.Errorf("bad id status = %d, want 400", rec.Code)
	}
}

func TestRouteFallbackGeoJSON(t *testing.T) {
	e := newTestEnv(t)

	empty := decode[map[string]any](t, e.do(t, "GET", "/api/route", ""))
	if empty["degraded"] != false {
		t.Errorf("empty route = %v", empty)
	}

	e.plan(t)
	rec := e.do(t, "GET", "/api/route", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp struct {
		Degraded bool          `json:"degraded"`
		Reason   string        `json:"reason"`
		Stops    int           `json:"stops"`
		Distance string        `json:"distance"`
		Padding  route.Padding `json:"padding"`
		Scene    struct {
			Type     string `json:"type"`
			Features []struct {
				Properties map[string]any `json:"properties"`
			} `json:"features"`
			BBox []float64 `json:"bbox"`
		} `json:"scene"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if !resp.Degraded || resp.Reason == "" {
		t.Errorf("without a provider the route should fall back: %+v", resp)
	}
	if resp.Stops != 3 || resp.Padding != route.DefaultPadding {
		t.Errorf("route = %+v", resp)
	}
	if resp.Scene.Type != "FeatureCollection" || len(resp.Scene.Features) != 4 || len(resp.Scene.BBox) != 4 {
		t.Errorf("scene = %+v", resp.Scene)
	}
	if !strings.HasSuffix(resp.Distance, "km") {
		t.Errorf("distance = %q", resp.Distance)
	}
	if e.scene.Active() != 1 {
		t.Errorf("Active() = %d, want 1", e.scene.Active())
	}
}

func TestCalendar(t *testing.T) {
	e := newTestEnv(t)
	if rec := e.do(t, "GET", "/api/journey.ics", ""); rec.Code != http.StatusConflict {
		t.Errorf("no journey status = %d, want 409", rec.Code)
	}

	e.plan(t)
	rec := e.do(t, "GET", "/api/journey.ics", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/calendar") {
		t.Errorf("Content-Type = %q", ct)
	}
	if cd := rec.Header().Get("Content-Disposition"); !strings.Contains(cd, "itera-barcelona.ics") {
		t.Errorf("Content-Disposition = %q", cd)
	}
	body := rec.Body.String()
	if strings.Count(body, "BEGIN:VEVENT") != 3 || !strings.Contains(body, "DTSTART:20260501T090000Z") {
		t.Errorf("calendar = %s", body)
	}
}

func TestHealthAndAlerts(t *testing.T) {
	e := newTestEnv(t)
	health := decode[healthResponse](t, e.do(t, "GET", "/healthz", ""))
	if health.Status != "ok" || health.Active {
		t.Errorf("health = %+v", health)
	}
	alerts := decode[alertsResponse](t, e.do(t, "GET", "/api/alerts", ""))
	if alerts.Alerts == nil || len(alerts.Alerts) != 0 {
		t.Errorf("alerts = %+v", alerts)
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{session.ErrStale, http.StatusConflict},
		{session.ErrPlanRejected, http.StatusUnprocessableEntity},
		{agent.ErrTransport, http.StatusBadGateway},
		{storage.ErrNotFound, http.StatusNotFound},
		{io.EOF, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := statusFor(tt.err); got != tt.want {
			t.Errorf("statusFor(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}

func TestSlugAndDistance(t *testing.T) {
	for in, want := range map[string]string{
		"Barcelona":      "barcelona",
		"New York City":  "new-york-city",
		"São Paulo":      "so-paulo",
		"":               "journey",
		"Kyoto - Nara 2": "kyoto-nara-2",
	} {
		if got := slug(in); got != want {
			t.Errorf("slug(%q) = %q, want %q", in, got, want)
		}
	}
	for m, want := range map[float64]string{850: "850 m", 2300: "2.3 km", 1000: "1.0 km"} {
		if got := formatDistance(m); got != want {
			t.Errorf("formatDistance(%v) = %q, want %q", m, got, want)
		}
	}
}

func TestHandleCommand(t *testing.T) {
	e := newTestEnv(t)
	e.plan(t)

	tests := []struct {
		name      string
		frame     string
		wantType  string // "" when no direct reply is expected
		wantError string
	}{
		{"ping", `{"type": "ping"}`, "pong", ""},
		{"resync", `{"type": "resync"}`, "snapshot", ""},
		{"reached", `{"type": "reached", "payload": {"index": 1}}`, "", ""},
		{"reached out of range", `{"type": "reached", "payload": {"index": 9}}`, "error", "out of range"},
		{"reached bad payload", `{"type": "reached", "payload": "x"}`, "error", "invalid reached payload"},
		{"event", `{"type": "event", "payload": {"id": "ws-1", "type": "Delay"}}`, "", ""},
		{"unknown event type", `{"type": "event", "payload": {"type": "fog"}}`, "error", "invalid event"},
		{"unknown command", `{"type": "teleport"}`, "error", "unknown message type"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var cmd wsCommand
			if err := json.Unmarshal([]byte(tt.frame), &cmd); err != nil {
				t.Fatal(err)
			}
			reply := e.h.handleCommand(cmd)
			if tt.wantType == "" {
				if reply != nil {
					t.Errorf("unexpected reply %s", reply)
				}
				return
			}
			var msg struct {
				Type    string `json:"type"`
				Payload struct {
					Error string `json:"error"`
				} `json:"payload"`
			}
			if err := json.Unmarshal(reply, &msg); err != nil {
				t.Fatalf("decode reply %s: %v", reply, err)
			}
			if msg.Type != tt.wantType {
				t.Errorf("reply type = %q, want %q", msg.Type, tt.wantType)
			}
			if !strings.Contains(msg.Payload.Error, tt.wantError) {
				t.Errorf("reply error = %q, want it to contain %q", msg.Payload.Error, tt.wantError)
			}
		})
	}

	snap := e.sess.Snapshot()
	if snap.LastReachedIndex != 1 {
		t.Errorf("LastReachedIndex = %d, want 1", snap.LastReachedIndex)
	}
	if len(snap.Events) != 1 || snap.Events[0].Type != "delay" || snap.Events[0].Source != "traveler" {
		t.Errorf("events = %+v", snap.Events)
	}
}
