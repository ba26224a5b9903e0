package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"tracking-server/internal/engine"
	"tracking-server/internal/network"
	"tracking-server/pkg/api"

	"github.com/gorilla/websocket"
)

type frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	hub := network.NewHub()
	cfg := engine.NewConfig()
	cfg.Seed = 7
	svc := engine.NewService(cfg, hub)

	ctx, cancel := context.WithCancel(context.Background())
	go svc.Run(ctx)

	ts := httptest.NewServer(New(svc, hub, "0").Router())
	t.Cleanup(func() {
		ts.Close()
		cancel()
		<-svc.Done()
		hub.Close()
	})
	return ts
}

func dial(t *testing.T, ts *httptest.Server, session string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws?session=" + session
	conn, _, err := websocket.DefaultDialer.Dial(url, http.Header{"User-Agent": {"Mozilla/5.0 (Windows NT 10.0)"}})
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	return conn
}

// readUntil читает кадры, пока не встретит нужное событие.
func readUntil(t *testing.T, conn *websocket.Conn, event string) frame {
	t.Helper()
	if err := conn.SetReadDeadline(time.Now().Add(3 * time.Second)); err != nil {
		t.Fatal(err)
	}
	for {
		var f frame
		if err := conn.ReadJSON(&f); err != nil {
			t.Fatalf("waiting for %s: %v", event, err)
		}
		if f.Event == event {
			return f
		}
	}
}

func getJSON(t *testing.T, url string, dst interface{}) {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("GET %s: status %d", url, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		t.Fatalf("decode %s: %v", url, err)
	}
}

func TestServer_StaticRoutes(t *testing.T) {
	ts := newTestServer(t)

	tests := []struct {
		path     string
		contains string
	}{
		{"/health", "ok"},
		{"/", "leaflet"},
		{"/static/js/client.js", "user-leaving"},
		{"/version", "calculated"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			resp, err := http.Get(ts.URL + tt.path)
			if err != nil {
				t.Fatal(err)
			}
			defer resp.Body.Close()
			body, _ := io.ReadAll(resp.Body)
			if resp.StatusCode != http.StatusOK {
				t.Fatalf("status = %d", resp.StatusCode)
			}
			if !strings.Contains(string(body), tt.contains) {
				t.Errorf("body does not contain %q", tt.contains)
			}
		})
	}
}

func TestServer_WebSocketFlow(t *testing.T) {
	ts := newTestServer(t)

	a := dial(t, ts, "")
	defer a.Close()

	var ident api.IdentityView
	f := readUntil(t, a, api.EventUserRegistered)
	if err := json.Unmarshal(f.Data, &ident); err != nil {
		t.Fatal(err)
	}
	if ident.ConnectionID == "" || ident.DeviceClass != "desktop" {
		t.Fatalf("identity = %+v", ident)
	}
	readUntil(t, a, api.EventUsersListUpdated)

	b := dial(t, ts, "")
	defer b.Close()
	readUntil(t, b, api.EventUserRegistered)

	// Позиция A доходит до B и обратно до A
	err := a.WriteJSON(map[string]interface{}{
		"event": api.EventSendLocation,
		"data":  map[string]float64{"latitude": 10, "longitude": 20},
	})
	if err != nil {
		t.Fatal(err)
	}
	for _, conn := range []*websocket.Conn{a, b} {
		var view api.ParticipantView
		f := readUntil(t, conn, api.EventUserLocationUpdated)
		if err := json.Unmarshal(f.Data, &view); err != nil {
			t.Fatal(err)
		}
		if view.ConnectionID != ident.ConnectionID || view.Location == nil || view.Location.Latitude != 10 {
			t.Errorf("view = %+v", view)
		}
	}

	// Кривые данные - кадр ошибки
	if err := a.WriteJSON(map[string]interface{}{"event": api.EventSendLocation, "data": map[string]string{"latitude": "x"}}); err != nil {
		t.Fatal(err)
	}
	var ev api.ErrorView
	if err := json.Unmarshal(readUntil(t, a, api.EventError).Data, &ev); err != nil {
		t.Fatal(err)
	}
	if ev.Code != api.ErrCodeMalformed {
		t.Errorf("error code = %q", ev.Code)
	}

	var roster api.RosterView
	getJSON(t, ts.URL+"/api/users", &roster)
	if roster.Total != 2 || roster.Online != 2 {
		t.Errorf("roster = %+v", roster)
	}

	// A закрывает вкладку: B видит оффлайн, запись остается
	msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "")
	if err := a.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second)); err != nil {
		t.Fatal(err)
	}
	var status api.StatusView
	if err := json.Unmarshal(readUntil(t, b, api.EventUserStatusChanged).Data, &status); err != nil {
		t.Fatal(err)
	}
	if status.ConnectionID != ident.ConnectionID || status.OnlineState != api.StateOffline {
		t.Errorf("status = %+v", status)
	}

	var participants []api.DebugParticipantView
	getJSON(t, ts.URL+"/debug/participants", &participants)
	if len(participants) != 2 {
		t.Fatalf("participants = %d", len(participants))
	}
	if participants[0].Liveness != "grace" {
		t.Errorf("liveness = %q, want grace", participants[0].Liveness)
	}
}

func TestServer_UserLeavingRemovesImmediately(t *testing.T) {
	ts := newTestServer(t)

	a := dial(t, ts, "tok-leave")
	defer a.Close()
	readUntil(t, a, api.EventUserRegistered)
	b := dial(t, ts, "")
	defer b.Close()
	readUntil(t, b, api.EventUserRegistered)

	if err := a.WriteJSON(map[string]string{"event": api.EventUserLeaving}); err != nil {
		t.Fatal(err)
	}
	var removal api.RemovalView
	if err := json.Unmarshal(readUntil(t, b, api.EventUserDisconnected).Data, &removal); err != nil {
		t.Fatal(err)
	}

	var sessions api.DebugSessionsView
	getJSON(t, ts.URL+"/debug/sessions", &sessions)
	if _, ok := sessions.Sessions["tok-leave"]; ok {
		t.Error("empty session kept after removal")
	}
	if sessions.RememberedTotal != 1 {
		t.Errorf("remembered = %d, want 1", sessions.RememberedTotal)
	}
}

// Сервис занят дольше connectTimeout: соединение закрыто, но запись,
// созданная позже, должна уйти по grace-таймеру.
func TestServer_AbandonedConnectDoesNotLeaveRecord(t *testing.T) {
	hub := network.NewHub()
	cfg := engine.NewConfig()
	cfg.GracePeriod = 30 * time.Millisecond
	cfg.HardTimeout = time.Second
	cfg.SweepInterval = time.Second
	svc := engine.NewService(cfg, hub)

	srv := New(svc, hub, "0")
	srv.connectTimeout = 20 * time.Millisecond
	if err := srv.connect("ghost", engine.ConnectInfo{}); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want DeadlineExceeded", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	go svc.Run(ctx)
	defer func() {
		cancel()
		<-svc.Done()
		hub.Close()
	}()

	deadline := time.Now().Add(2 * time.Second)
	for {
		ps, err := svc.Snapshot(context.Background())
		if err != nil {
			t.Fatal(err)
		}
		if len(ps) == 0 {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("record %s (%v) never removed", ps[0].ConnectionID, ps[0].State)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestSessionToken(t *testing.T) {
	tests := []struct {
		name    string
		query   string
		want    string
		wantErr bool
	}{
		{name: "absent", query: "", want: ""},
		{name: "regular", query: "session=tok-1", want: "tok-1"},
		{name: "at limit", query: "session=" + strings.Repeat("a", api.MaxSessionTokenLen), want: strings.Repeat("a", api.MaxSessionTokenLen)},
		{name: "too long", query: "session=" + strings.Repeat("a", api.MaxSessionTokenLen+1), want: "", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/ws?"+tt.query, nil)
			got, err := sessionToken(r)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("token = %q, want %q", got, tt.want)
			}
		})
	}
}

// Токен сверх лимита не попадает в сессии: соединение подключается без неё.
func TestServer_OversizedSessionTokenIgnored(t *testing.T) {
	ts := newTestServer(t)
	conn := dial(t, ts, strings.Repeat("x", api.MaxSessionTokenLen+1))
	defer conn.Close()
	readUntil(t, conn, api.EventUserRegistered)

	var sessions api.DebugSessionsView
	getJSON(t, ts.URL+"/debug/sessions", &sessions)
	if len(sessions.Sessions) != 0 {
		t.Errorf("sessions = %v, want none", sessions.Sessions)
	}
}

func TestCloseReason(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{&websocket.CloseError{Code: websocket.CloseNormalClosure}, "client-close"},
		{&websocket.CloseError{Code: websocket.CloseGoingAway}, "going-away"},
		{&websocket.CloseError{Code: websocket.CloseAbnormalClosure}, "transport-error"},
		{&websocket.CloseError{Code: 4000}, "close-4000"},
		{websocket.ErrReadLimit, "message-too-large"},
		{errors.New("boom"), "transport-error"},
	}
	for _, tt := range tests {
		if got := closeReason(tt.err); got != tt.want {
			t.Errorf("closeReason(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}
