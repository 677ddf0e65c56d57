package plugin

import (
	"io"
	"log/slog"
	"slices"
	"testing"
)

type recordingHandler struct {
	NopHandler
	events []string
}

func (h *recordingHandler) HandleServerStartup()        { h.events = append(h.events, "startup") }
func (h *recordingHandler) HandleServerStop(code int)   { h.events = append(h.events, "stop") }
func (h *recordingHandler) HandlePlayerJoined(p string) { h.events = append(h.events, "join:"+p) }
func (h *recordingHandler) HandlePlayerLeft(p string)   { h.events = append(h.events, "left:"+p) }
func (h *recordingHandler) HandlePluginUnloaded()       { h.events = append(h.events, "unloaded") }

type panickingHandler struct{ NopHandler }

func (panickingHandler) HandlePlayerJoined(string) { panic("boom") }

func TestEventHubDispatch(t *testing.T) {
	t.Parallel()

	var panicked []string
	hub := newEventHub(slog.New(slog.NewTextHandler(io.Discard, nil)), func(plugin string, _ any) {
		panicked = append(panicked, plugin)
	})
	a, b := &recordingHandler{}, &recordingHandler{}
	hub.add("a", a)
	removeB := hub.add("b", b)
	hub.add("c", panickingHandler{})

	hub.dispatch(Event{Kind: EventServerStartup}, "")
	hub.dispatch(Event{Kind: EventPlayerJoined, Player: "bot_alice"}, "")
	hub.dispatch(Event{Kind: EventPluginUnloaded}, "a")
	removeB()
	removeB()
	hub.dispatch(Event{Kind: EventPlayerLeft, Player: "bot_alice"}, "")

	if want := []string{"startup", "join:bot_alice", "unloaded", "left:bot_alice"}; !slices.Equal(a.events, want) {
		t.Fatalf("handler a events = %v, want %v", a.events, want)
	}
	if want := []string{"startup", "join:bot_alice"}; !slices.Equal(b.events, want) {
		t.Fatalf("handler b events = %v, want %v", b.events, want)
	}
	if !slices.Equal(panicked, []string{"c"}) {
		t.Fatalf("panics reported = %v, want [c]", panicked)
	}

	hub.rename("a", "renamed")
	hub.clear("renamed")
	if n := len(hub.registrations()); n != 1 {
		t.Fatalf("registrations after clear = %d, want 1", n)
	}
}

func TestEventKindString(t *testing.T) {
	if got := EventPlayerJoined.String(); got != "player_joined" {
		t.Fatalf("EventPlayerJoined.String() = %q", got)
	}
	if got := EventKind(200).String(); got != "unknown" {
		t.Fatalf("EventKind(200).String() = %q", got)
	}
}
