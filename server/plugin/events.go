package plugin

import (
	"log/slog"
	"sync"
	"sync/atomic"
)

// EventKind identifies a lifecycle event dispatched by the host.
type EventKind uint8

const (
	// EventServerStartup is dispatched once the server finished starting.
	EventServerStartup EventKind = iota
	// EventServerStop is dispatched after the server process exited.
	EventServerStop
	// EventPlayerJoined is dispatched when a player joined the game.
	EventPlayerJoined
	// EventPlayerLeft is dispatched when a player left the game.
	EventPlayerLeft
	// EventUserInfo is dispatched for every chat line and plugin command
	// typed by a player or the console.
	EventUserInfo
	// EventPluginUnloaded is dispatched to a plugin right before it is closed.
	EventPluginUnloaded
)

// String returns the name of the event kind.
func (k EventKind) String() string {
	switch k {
	case EventServerStartup:
		return "server_startup"
	case EventServerStop:
		return "server_stop"
	case EventPlayerJoined:
		return "player_joined"
	case EventPlayerLeft:
		return "player_left"
	case EventUserInfo:
		return "user_info"
	case EventPluginUnloaded:
		return "plugin_unloaded"
	}
	return "unknown"
}

// Event is a single event dispatched to plugin handlers. Only the fields
// relevant to Kind are set.
type Event struct {
	Kind EventKind
	// Player is the name of the player for player and user info events. It
	// is empty for user info typed into the console.
	Player string
	// Content is the chat line of a user info event.
	Content string
	// ExitCode is the exit code of the server process for EventServerStop.
	ExitCode int
}

// Handler handles events dispatched by the host. Embed NopHandler to only
// implement the methods needed.
type Handler interface {
	HandleServerStartup()
	HandleServerStop(exitCode int)
	HandlePlayerJoined(player string)
	HandlePlayerLeft(player string)
	HandleUserInfo(player, content string)
	HandlePluginUnloaded()
}

// NopHandler implements Handler without doing anything.
type NopHandler struct{}

// Compile time check to make sure NopHandler implements Handler.
var _ Handler = NopHandler{}

func (NopHandler) HandleServerStartup()          {}
func (NopHandler) HandleServerStop(int)          {}
func (NopHandler) HandlePlayerJoined(string)     {}
func (NopHandler) HandlePlayerLeft(string)       {}
func (NopHandler) HandleUserInfo(string, string) {}
func (NopHandler) HandlePluginUnloaded()         {}

func (e Event) deliver(h Handler) {
	switch e.Kind {
	case EventServerStartup:
		h.HandleServerStartup()
	case EventServerStop:
		h.HandleServerStop(e.ExitCode)
	case EventPlayerJoined:
		h.HandlePlayerJoined(e.Player)
	case EventPlayerLeft:
		h.HandlePlayerLeft(e.Player)
	case EventUserInfo:
		h.HandleUserInfo(e.Player, e.Content)
	case EventPluginUnloaded:
		h.HandlePluginUnloaded()
	}
}

type eventRegistration[T any] struct {
	plugin  string
	handler T
	id      uint64
}

type eventList[T any] struct {
	regs []eventRegistration[T]
	next uint64
}

func (l *eventList[T]) add(plugin string, handler T) uint64 {
	id := l.next
	l.next++
	l.regs = append(l.regs, eventRegistration[T]{plugin: plugin, handler: handler, id: id})
	return id
}

func (l *eventList[T]) remove(keep func(eventRegistration[T]) bool) {
	regs := l.regs[:0]
	for _, reg := range l.regs {
		if keep(reg) {
			regs = append(regs, reg)
		}
	}
	l.regs = regs
}

func (l *eventList[T]) rename(oldName, newName string) {
	for i := range l.regs {
		if l.regs[i].plugin == oldName {
			l.regs[i].plugin = newName
		}
	}
}

func (l *eventList[T]) snapshot() []eventRegistration[T] {
	out := make([]eventRegistration[T], len(l.regs))
	copy(out, l.regs)
	return out
}

type eventHub struct {
	mu       sync.Mutex
	log      *slog.Logger
	handlers eventList[Handler]
	chain    atomic.Pointer[[]eventRegistration[Handler]]
	panics   func(plugin string, reason any)
}

func newEventHub(log *slog.Logger, panics func(plugin string, reason any)) *eventHub {
	if log == nil {
		log = slog.Default()
	}
	hub := &eventHub{log: log.With("subsystem", "plugin.events"), panics: panics}
	hub.chain.Store(&[]eventRegistration[Handler]{})
	return hub
}

func (hub *eventHub) add(plugin string, handler Handler) func() {
	if handler == nil {
		return func() {}
	}
	hub.mu.Lock()
	id := hub.handlers.add(plugin, handler)
	hub.store()
	hub.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			hub.mu.Lock()
			hub.handlers.remove(func(reg eventRegistration[Handler]) bool { return reg.id != id })
			hub.store()
			hub.mu.Unlock()
		})
	}
}

func (hub *eventHub) clear(plugin string) {
	hub.mu.Lock()
	hub.handlers.remove(func(reg eventRegistration[Handler]) bool { return reg.plugin != plugin })
	hub.store()
	hub.mu.Unlock()
}

func (hub *eventHub) rename(oldName, newName string) {
	if newName == "" || oldName == newName {
		return
	}
	hub.mu.Lock()
	hub.handlers.rename(oldName, newName)
	hub.store()
	hub.mu.Unlock()
}

func (hub *eventHub) store() {
	regs := hub.handlers.snapshot()
	hub.chain.Store(&regs)
}

func (hub *eventHub) registrations() []eventRegistration[Handler] {
	return *hub.chain.Load()
}

// dispatch delivers e to every registered handler in registration order.
// EventPluginUnloaded is only delivered to handlers of the plugin passed.
func (hub *eventHub) dispatch(e Event, plugin string) {
	for _, reg := range hub.registrations() {
		if e.Kind == EventPluginUnloaded && reg.plugin != plugin {
			continue
		}
		hub.invoke(reg, e)
	}
}

func (hub *eventHub) invoke(reg eventRegistration[Handler], e Event) {
	defer func() {
		if r := recover(); r != nil {
			hub.log.Error("Event handler panic.", "plugin", reg.plugin, "event", e.Kind.String(), "panic", r)
			if hub.panics != nil {
				hub.panics(reg.plugin, r)
			}
		}
	}()
	e.deliver(reg.handler)
}
