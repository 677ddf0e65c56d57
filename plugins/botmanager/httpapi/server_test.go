package httpapi

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dm-vev/botmanager/plugins/botmanager/bot"
	"github.com/dm-vev/botmanager/plugins/botmanager/location"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/gorilla/websocket"
)

type recordingExecutor struct {
	mu       sync.Mutex
	commands []string
}

func (e *recordingExecutor) Execute(command string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.commands = append(e.commands, command)
	return nil
}

func (e *recordingExecutor) take() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	c := e.commands
	e.commands = nil
	return c
}

type memStore struct {
	mu      sync.Mutex
	records []bot.Record
}

func (s *memStore) Load() ([]bot.Record, error) { return nil, nil }

func (s *memStore) Save(records []bot.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = records
	return nil
}

func newTestServer(t *testing.T, token string) (*httptest.Server, *bot.Manager, *recordingExecutor) {
	t.Helper()
	exec := &recordingExecutor{}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	m, err := bot.Config{Server: exec, Store: &memStore{}, Log: log}.New()
	if err != nil {
		t.Fatalf("bot.Config.New() error = %v", err)
	}
	srv := httptest.NewServer(Config{Manager: m, Token: token, Log: log}.New())
	t.Cleanup(srv.Close)
	return srv, m, exec
}

func do(t *testing.T, srv *httptest.Server, method, path, body string) (int, []byte) {
	t.Helper()
	req, err := http.NewRequest(method, srv.URL+path, strings.NewReader(body))
	if err != nil {
		t.Fatalf("NewRequest() error = %v", err)
	}
	resp, err := srv.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s error = %v", method, path, err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body error = %v", err)
	}
	return resp.StatusCode, data
}

func decodeInfo(t *testing.T, data []byte) bot.Info {
	t.Helper()
	var info bot.Info
	if err := json.Unmarshal(data, &info); err != nil {
		t.Fatalf("decode %s: %v", data, err)
	}
	return info
}

const aliceJSON = `{"name": "Alice", "location": {"position": [1, 64, 2], "facing": [90, 0], "dimension": -1}, "tags": ["farm"], "autoLogin": true}`

func TestCreateGetDelete(t *testing.T) {
	t.Parallel()

	srv, _, _ := newTestServer(t, "")
	status, data := do(t, srv, http.MethodPost, "/bots", aliceJSON)
	if status != http.StatusCreated {
		t.Fatalf("POST /bots status = %d (%s), want %d", status, data, http.StatusCreated)
	}
	info := decodeInfo(t, data)
	want := location.New(mgl64.Vec3{1, 64, 2}, mgl64.Vec2{90, 0}, location.Nether)
	if info.Name != "alice" || !info.Saved || !info.AutoLogin || info.Location != want || len(info.Tags) != 1 {
		t.Fatalf("POST /bots = %+v", info)
	}

	status, data = do(t, srv, http.MethodGet, "/bots/ALICE", "")
	if status != http.StatusOK || decodeInfo(t, data).Name != "alice" {
		t.Fatalf("GET /bots/ALICE = %d %s", status, data)
	}

	tests := map[string]struct {
		method, path, body string
		status             int
	}{
		"duplicate":        {http.MethodPost, "/bots", aliceJSON, http.StatusBadRequest},
		"missing location": {http.MethodPost, "/bots", `{"name": "bob"}`, http.StatusBadRequest},
		"bad dimension":    {http.MethodPost, "/bots", `{"name": "bob", "location": {"position": [0, 0, 0], "facing": [0, 0], "dimension": 7}}`, http.StatusBadRequest},
		"unknown field":    {http.MethodPost, "/bots", `{"name": "bob", "colour": "red"}`, http.StatusBadRequest},
		"not json":         {http.MethodPost, "/bots", `{`, http.StatusBadRequest},
		"unknown bot":      {http.MethodGet, "/bots/bob", "", http.StatusNotFound},
		"delete unknown":   {http.MethodDelete, "/bots/bob", "", http.StatusNotFound},
	}
	for name, tt := range tests {
		status, data := do(t, srv, tt.method, tt.path, tt.body)
		if status != tt.status {
			t.Fatalf("%s: %s %s status = %d (%s), want %d", name, tt.method, tt.path, status, data, tt.status)
		}
		var body errorBody
		if err := json.Unmarshal(data, &body); err != nil || body.Error == "" {
			t.Fatalf("%s: error body = %s", name, data)
		}
	}

	if status, data := do(t, srv, http.MethodDelete, "/bots/alice", ""); status != http.StatusOK {
		t.Fatalf("DELETE /bots/alice status = %d (%s)", status, data)
	}
	if status, _ := do(t, srv, http.MethodGet, "/bots/alice", ""); status != http.StatusNotFound {
		t.Fatalf("GET deleted bot status = %d, want %d", status, http.StatusNotFound)
	}
}

func TestList(t *testing.T) {
	t.Parallel()

	srv, m, _ := newTestServer(t, "")
	for i := range 12 {
		if _, err := m.Register(fmt.Sprintf("bot_%d", i), location.Location{}); err != nil {
			t.Fatalf("Register() error = %v", err)
		}
	}

	tests := map[string]struct {
		status     int
		bots, maxI int
		total      int
	}{
		"/bots":                   {http.StatusOK, 10, 1, 12},
		"/bots?index=1":           {http.StatusOK, 2, 1, 12},
		"/bots?online=true":       {http.StatusOK, 0, 0, 0},
		"/bots?saved=1&tag=none":  {http.StatusOK, 0, 0, 0},
		"/bots?index=2":           {http.StatusBadRequest, 0, 0, 0},
		"/bots?index=x":           {http.StatusBadRequest, 0, 0, 0},
		"/bots?online=maybe":      {http.StatusBadRequest, 0, 0, 0},
		"/bots?saved=true&index=": {http.StatusOK, 10, 1, 12},
	}
	for path, tt := range tests {
		status, data := do(t, srv, http.MethodGet, path, "")
		if status != tt.status {
			t.Fatalf("GET %s status = %d (%s), want %d", path, status, data, tt.status)
		}
		if status != http.StatusOK {
			continue
		}
		var page listResponse
		if err := json.Unmarshal(data, &page); err != nil {
			t.Fatalf("decode %s: %v", data, err)
		}
		if page.Bots == nil || len(page.Bots) != tt.bots || page.MaxIndex != tt.maxI || page.Total != tt.total {
			t.Fatalf("GET %s = %+v", path, page)
		}
	}
}

func TestPatch(t *testing.T) {
	t.Parallel()

	srv, m, exec := newTestServer(t, "")
	if _, err := m.Register("alice", location.Location{}); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	status, data := do(t, srv, http.MethodPatch, "/bots/alice", `{"comment": "afk", "actions": ["use"], "autoUpdate": true}`)
	if status != http.StatusOK {
		t.Fatalf("PATCH status = %d (%s)", status, data)
	}
	info := decodeInfo(t, data)
	if info.Comment != "afk" || len(info.Actions) != 1 || !info.AutoUpdate || info.AutoLogin {
		t.Fatalf("PATCH = %+v", info)
	}
	if got := exec.take(); len(got) != 0 {
		t.Fatalf("PATCH without online ran %q", got)
	}

	status, data = do(t, srv, http.MethodPatch, "/bots/alice", `{"online": true}`)
	if status != http.StatusOK {
		t.Fatalf("PATCH online status = %d (%s)", status, data)
	}
	if got := exec.take(); len(got) != 1 || got[0] != "player alice spawn at 0 0 0 facing 0 0 in minecraft:overworld" {
		t.Fatalf("PATCH online ran %q", got)
	}

	tests := map[string]struct {
		path, body string
		status     int
	}{
		"offline kill":  {"/bots/alice", `{"online": false}`, http.StatusBadRequest},
		"unknown field": {"/bots/alice", `{"name": "bob"}`, http.StatusBadRequest},
		"wrong type":    {"/bots/alice", `{"tags": "farm"}`, http.StatusBadRequest},
		"unknown bot":   {"/bots/bob", `{"comment": "x"}`, http.StatusNotFound},
	}
	for name, tt := range tests {
		if status, data := do(t, srv, http.MethodPatch, tt.path, tt.body); status != tt.status {
			t.Fatalf("%s: PATCH status = %d (%s), want %d", name, status, data, tt.status)
		}
	}
}

func TestToken(t *testing.T) {
	t.Parallel()

	srv, _, _ := newTestServer(t, "secret")
	if status, _ := do(t, srv, http.MethodGet, "/bots", ""); status != http.StatusUnauthorized {
		t.Fatalf("GET without token status = %d, want %d", status, http.StatusUnauthorized)
	}

	for token, want := range map[string]int{"Bearer secret": http.StatusOK, "Bearer wrong": http.StatusUnauthorized, "secret": http.StatusUnauthorized} {
		req, err := http.NewRequest(http.MethodGet, srv.URL+"/bots", nil)
		if err != nil {
			t.Fatalf("NewRequest() error = %v", err)
		}
		req.Header.Set("Authorization", token)
		resp, err := srv.Client().Do(req)
		if err != nil {
			t.Fatalf("GET /bots error = %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode != want {
			t.Fatalf("GET with %q status = %d, want %d", token, resp.StatusCode, want)
		}
	}
}

func TestStream(t *testing.T) {
	t.Parallel()

	srv, m, _ := newTestServer(t, "secret")
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/bots/stream"
	header := http.Header{"Authorization": {"Bearer secret"}}
	conn, resp, err := websocket.DefaultDialer.Dial(url, header)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	resp.Body.Close()
	t.Cleanup(func() { conn.Close() })

	if _, err := m.Register("alice", location.Location{}); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	type change struct {
		Type string   `json:"type"`
		Bot  bot.Info `json:"bot"`
	}
	want := []change{{Type: "added"}, {Type: "updated"}}
	want[1].Bot.Saved = true
	for _, w := range want {
		_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		var c change
		if err := conn.ReadJSON(&c); err != nil {
			t.Fatalf("ReadJSON() error = %v", err)
		}
		if c.Type != w.Type || c.Bot.Name != "alice" || c.Bot.Saved != w.Bot.Saved {
			t.Fatalf("stream change = %+v, want type %s saved %v", c, w.Type, w.Bot.Saved)
		}
	}
}
