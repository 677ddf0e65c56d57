package bot

// ChangeKind is the kind of a Change.
type ChangeKind uint8

const (
	// ChangeAdded is published when a bot is registered.
	ChangeAdded ChangeKind = iota
	// ChangeUpdated is published when a bot changed.
	ChangeUpdated
	// ChangeRemoved is published when a bot is removed from the registry.
	ChangeRemoved
)

func (k ChangeKind) String() string {
	switch k {
	case ChangeAdded:
		return "added"
	case ChangeUpdated:
		return "updated"
	case ChangeRemoved:
		return "removed"
	}
	return "unknown"
}

// MarshalText encodes the kind by its name.
func (k ChangeKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Change describes a change of the registry. Bot is the state of the bot
// right after the change.
type Change struct {
	Kind ChangeKind `json:"type"`
	Bot  Info       `json:"bot"`
}

// Subscribe registers fn to be called with every change of the registry.
// fn is called after the registry lock is released, from the goroutine that
// made the change. The returned function removes the subscription.
func (m *Manager) Subscribe(fn func(Change)) func() {
	m.smu.Lock()
	id := m.next
	m.next++
	m.subs[id] = fn
	m.smu.Unlock()
	return func() {
		m.smu.Lock()
		delete(m.subs, id)
		m.smu.Unlock()
	}
}

func (m *Manager) publish(c Change) {
	m.smu.Lock()
	subs := make([]func(Change), 0, len(m.subs))
	for _, fn := range m.subs {
		subs = append(subs, fn)
	}
	m.smu.Unlock()
	for _, fn := range subs {
		fn(c)
	}
}
