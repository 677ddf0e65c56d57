package bot

import (
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"github.com/dm-vev/botmanager/plugins/botmanager/location"
)

// PageSize is the number of bots on one page returned by Manager.List.
const PageSize = 10

// NameParser normalises a user supplied bot name into the registry key.
type NameParser func(name string) (string, error)

// Config holds the collaborators of a Manager.
type Config struct {
	// Server executes the commands issued by bots. Commands are dropped if it
	// is nil.
	Server Executor
	// Locate returns the live location of a player, used when creating bots
	// at the location of the player issuing the command and when updating
	// the location of bots with auto update set.
	Locate Locator
	// Store persists the saved bots. Nothing is persisted if it is nil.
	Store Store
	// ParseName normalises names. It defaults to lower-casing.
	ParseName NameParser
	Gamemode  Gamemode
	Log       *slog.Logger
}

// Manager is the registry of all bots, keyed by normalised name. All bots are
// created, mutated and removed through it, under one lock that also covers
// persisting the saved bots.
type Manager struct {
	conf Config
	log  *slog.Logger
	env  *env

	mu      sync.Mutex
	bots    map[string]*Bot
	order   []string
	pending []Change

	smu  sync.Mutex
	subs map[int]func(Change)
	next int
}

// New creates a Manager and loads the saved bots from the Store.
func (conf Config) New() (*Manager, error) {
	if conf.Log == nil {
		conf.Log = slog.Default()
	}
	if conf.ParseName == nil {
		conf.ParseName = func(name string) (string, error) { return strings.ToLower(name), nil }
	}
	m := &Manager{
		conf: conf,
		log:  conf.Log,
		bots: map[string]*Bot{},
		subs: map[int]func(Change){},
	}
	m.env = &env{exec: conf.Server, locate: conf.Locate, gamemode: conf.Gamemode, persist: m.saveLocked, log: conf.Log}
	if err := m.load(); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Manager) load() error {
	if m.conf.Store == nil {
		return nil
	}
	records, err := m.conf.Store.Load()
	if err != nil {
		return fmt.Errorf("load bots: %w", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, rec := range records {
		key, err := m.conf.ParseName(rec.Name)
		if err != nil {
			m.log.Warn("Skipping saved bot with an illegal name.", "name", rec.Name, "error", err)
			continue
		}
		if _, ok := m.bots[key]; ok {
			m.log.Warn("Skipping duplicate saved bot.", "name", key)
			continue
		}
		rec.Name = key
		b := newBot(m.env, rec)
		b.saved = true
		m.insert(b)
	}
	m.pending = nil
	m.log.Debug("Loaded saved bots.", "count", len(m.order))
	return nil
}

func (m *Manager) lock() {
	m.mu.Lock()
}

// unlock releases the registry lock and publishes the changes made while it
// was held.
func (m *Manager) unlock() {
	pending := m.pending
	m.pending = nil
	m.mu.Unlock()
	for _, c := range pending {
		m.publish(c)
	}
}

func (m *Manager) key(name string) (string, error) {
	return m.conf.ParseName(name)
}

func (m *Manager) insert(b *Bot) {
	m.bots[b.name] = b
	m.order = append(m.order, b.name)
	m.changed(ChangeAdded, b)
}

func (m *Manager) remove(b *Bot) {
	delete(m.bots, b.name)
	m.order = slices.DeleteFunc(m.order, func(key string) bool { return key == b.name })
	m.changed(ChangeRemoved, b)
}

func (m *Manager) get(name string) (*Bot, error) {
	key, b, err := m.lookup(name)
	if err != nil {
		return nil, err
	}
	if b == nil {
		return nil, botError(ErrBotNotExists, key)
	}
	return b, nil
}

// lookup returns the key of name and the bot registered under it, or nil.
func (m *Manager) lookup(name string) (string, *Bot, error) {
	key, err := m.key(name)
	if err != nil {
		return "", nil, err
	}
	return key, m.bots[key], nil
}

func (m *Manager) changed(kind ChangeKind, b *Bot) {
	m.pending = append(m.pending, Change{Kind: kind, Bot: b.Info()})
}

// NewBot registers a new offline, unsaved bot. It fails with
// ErrBotAlreadyExists if the name is taken.
func (m *Manager) NewBot(rec Record) (Info, error) {
	m.lock()
	defer m.unlock()
	b, err := m.newBot(rec)
	if err != nil {
		return Info{}, err
	}
	return b.Info(), nil
}

func (m *Manager) newBot(rec Record) (*Bot, error) {
	key, err := m.key(rec.Name)
	if err != nil {
		return nil, err
	}
	if _, ok := m.bots[key]; ok {
		return nil, botError(ErrBotAlreadyExists, key)
	}
	rec.Name = key
	b := newBot(m.env, rec)
	m.insert(b)
	return b, nil
}

// Bot returns a snapshot of the bot with the name passed.
func (m *Manager) Bot(name string) (Info, error) {
	m.lock()
	defer m.unlock()
	b, err := m.get(name)
	if err != nil {
		return Info{}, err
	}
	return b.Info(), nil
}

// Contains reports if a bot with the name passed is registered.
func (m *Manager) Contains(name string) bool {
	m.lock()
	defer m.unlock()
	_, err := m.get(name)
	return err == nil
}

// Len returns the number of registered bots.
func (m *Manager) Len() int {
	m.lock()
	defer m.unlock()
	return len(m.order)
}

// Spawn spawns the bot with the name passed. An unknown bot is created at
// the location of player first; without a player, ErrBotNotSaved is
// returned.
func (m *Manager) Spawn(name, player string) (Info, error) {
	m.lock()
	defer m.unlock()
	key, b, err := m.lookup(name)
	if err != nil {
		return Info{}, err
	}
	created := b == nil
	if created {
		if player == "" {
			return Info{}, botError(ErrBotNotSaved, key)
		}
		if b, err = m.newBotAt(key, player); err != nil {
			return Info{}, err
		}
	}
	if err := b.Spawn(); err != nil {
		if created {
			m.remove(b)
		}
		return b.Info(), err
	}
	return b.Info(), nil
}

func (m *Manager) newBotAt(name, player string) (*Bot, error) {
	if m.conf.Locate == nil {
		return nil, fmt.Errorf("locate %s: no locator", player)
	}
	loc, err := m.conf.Locate(player)
	if err != nil {
		return nil, fmt.Errorf("locate %s: %w", player, err)
	}
	return m.newBot(Record{Name: name, Location: loc})
}

// Kill kills the bot with the name passed and compacts the registry.
func (m *Manager) Kill(name string) (Info, error) {
	m.lock()
	defer m.unlock()
	b, err := m.get(name)
	if err != nil {
		return Info{}, err
	}
	if err := b.Kill(); err != nil {
		return b.Info(), err
	}
	m.changed(ChangeUpdated, b)
	info := b.Info()
	m.compact()
	return info, nil
}

// RunActions runs all actions of the bot with the name passed.
func (m *Manager) RunActions(name string) (Info, error) {
	m.lock()
	defer m.unlock()
	b, err := m.get(name)
	if err != nil {
		return Info{}, err
	}
	return b.Info(), b.RunActions()
}

// RunAction runs the action at index of the bot with the name passed.
func (m *Manager) RunAction(name string, index int) (Info, error) {
	m.lock()
	defer m.unlock()
	b, err := m.get(name)
	if err != nil {
		return Info{}, err
	}
	return b.Info(), b.RunAction(index)
}

// Register saves the bot with the name passed at loc, creating it if it
// does not exist. It fails with ErrBotAlreadySaved if the bot is saved.
func (m *Manager) Register(name string, loc location.Location) (Info, error) {
	if !loc.Dimension.Valid() {
		return Info{}, location.IllegalDimensionError{Value: fmt.Sprint(int(loc.Dimension))}
	}
	m.lock()
	defer m.unlock()
	key, b, err := m.lookup(name)
	switch {
	case err != nil:
		return Info{}, err
	case b == nil:
		if b, err = m.newBot(Record{Name: key, Location: loc}); err != nil {
			return Info{}, err
		}
	case b.saved:
		return b.Info(), botError(ErrBotAlreadySaved, b.name)
	default:
		b.location = loc
	}
	b.saved = true
	m.changed(ChangeUpdated, b)
	return b.Info(), m.saveLocked()
}

// Commit saves the bot with the name passed as it is. An unknown bot is
// created at the location of player; without a player, ErrBotNotExists is
// returned. It fails with ErrBotAlreadySaved if the bot is saved.
func (m *Manager) Commit(name, player string) (Info, error) {
	m.lock()
	defer m.unlock()
	key, b, err := m.lookup(name)
	switch {
	case err != nil:
		return Info{}, err
	case b == nil && player == "":
		return Info{}, botError(ErrBotNotExists, key)
	case b == nil:
		if b, err = m.newBotAt(key, player); err != nil {
			return Info{}, err
		}
	case b.saved:
		return b.Info(), botError(ErrBotAlreadySaved, b.name)
	}
	b.saved = true
	m.changed(ChangeUpdated, b)
	return b.Info(), m.saveLocked()
}

// Delete unsaves the bot with the name passed. The bot is removed from the
// registry unless it is online.
func (m *Manager) Delete(name string) (Info, error) {
	m.lock()
	defer m.unlock()
	b, err := m.get(name)
	if err != nil {
		return Info{}, err
	}
	if !b.saved {
		return b.Info(), botError(ErrBotNotSaved, b.name)
	}
	b.saved = false
	m.changed(ChangeUpdated, b)
	m.compact()
	return b.Info(), m.saveLocked()
}

// ListQuery filters the bots returned by List. A bot is listed if it is
// online and Online is set, or saved and Saved is set. If Tag is not empty,
// only bots carrying it are listed.
type ListQuery struct {
	Index  int
	Online bool
	Saved  bool
	Tag    string
}

// Page is one page of bots returned by List.
type Page struct {
	Bots     []Info
	Index    int
	MaxIndex int
	Total    int
}

// List returns the page q.Index of the bots matching q, in registration
// order. It fails with IllegalListIndexError if the page is outside of
// [0, MaxIndex].
func (m *Manager) List(q ListQuery) (Page, error) {
	m.lock()
	defer m.unlock()
	var matched []Info
	for _, key := range m.order {
		b := m.bots[key]
		if !(q.Online && b.online) && !(q.Saved && b.saved) {
			continue
		}
		if q.Tag != "" && !b.HasTag(q.Tag) {
			continue
		}
		matched = append(matched, b.Info())
	}
	maxIndex := max((len(matched)+PageSize-1)/PageSize-1, 0)
	if q.Index < 0 || q.Index > maxIndex {
		return Page{MaxIndex: maxIndex, Total: len(matched)}, IllegalListIndexError{Index: q.Index, Max: maxIndex}
	}
	start := q.Index * PageSize
	end := min(start+PageSize, len(matched))
	return Page{Bots: matched[start:end], Index: q.Index, MaxIndex: maxIndex, Total: len(matched)}, nil
}

// All returns all registered bots in registration order.
func (m *Manager) All() []Info {
	m.lock()
	defer m.unlock()
	infos := make([]Info, 0, len(m.order))
	for _, key := range m.order {
		infos = append(infos, m.bots[key].Info())
	}
	return infos
}

// BotsByTag returns the bots carrying tag.
func (m *Manager) BotsByTag(tag string) []Info {
	m.lock()
	defer m.unlock()
	var infos []Info
	for _, b := range m.byTag(tag) {
		infos = append(infos, b.Info())
	}
	return infos
}

func (m *Manager) byTag(tag string) []*Bot {
	var bots []*Bot
	for _, key := range m.order {
		if b := m.bots[key]; b.HasTag(tag) {
			bots = append(bots, b)
		}
	}
	return bots
}

// Tags returns the number of bots carrying each tag.
func (m *Manager) Tags() map[string]int {
	m.lock()
	defer m.unlock()
	tags := map[string]int{}
	for _, b := range m.bots {
		for _, tag := range slices.Compact(slices.Sorted(slices.Values(b.tags))) {
			tags[tag]++
		}
	}
	return tags
}

// SpawnTag spawns every offline bot carrying tag. It fails with
// TagNotExistsError if no bot carries it. The bots spawned are returned,
// along with the first error encountered.
func (m *Manager) SpawnTag(tag string) ([]Info, error) {
	return m.tagged(tag, func(b *Bot) (bool, error) {
		if b.online {
			return false, nil
		}
		return true, b.Spawn()
	})
}

// KillTag kills every online bot carrying tag. It fails with
// TagNotExistsError if no bot carries it.
func (m *Manager) KillTag(tag string) ([]Info, error) {
	infos, err := m.tagged(tag, func(b *Bot) (bool, error) {
		if !b.online {
			return false, nil
		}
		return true, b.Kill()
	})
	m.Compact()
	return infos, err
}

func (m *Manager) tagged(tag string, fn func(b *Bot) (bool, error)) ([]Info, error) {
	m.lock()
	defer m.unlock()
	bots := m.byTag(tag)
	if len(bots) == 0 {
		return nil, TagNotExistsError{Tag: tag}
	}
	var (
		infos    []Info
		firstErr error
	)
	for _, b := range bots {
		ok, err := fn(b)
		if err != nil && firstErr == nil {
			firstErr = err
		}
		if ok && err == nil {
			m.changed(ChangeUpdated, b)
			infos = append(infos, b.Info())
		}
	}
	return infos, firstErr
}

// Compact removes every bot that is neither online nor saved.
func (m *Manager) Compact() {
	m.lock()
	defer m.unlock()
	m.compact()
}

func (m *Manager) compact() {
	order := m.order[:0]
	for _, key := range m.order {
		b := m.bots[key]
		if b.online || b.saved {
			order = append(order, key)
			continue
		}
		delete(m.bots, key)
		m.changed(ChangeRemoved, b)
	}
	clear(m.order[len(order):])
	m.order = order
}

// Save persists all saved bots.
func (m *Manager) Save() error {
	m.lock()
	defer m.unlock()
	return m.saveLocked()
}

func (m *Manager) saveLocked() error {
	if m.conf.Store == nil {
		return nil
	}
	records := make([]Record, 0, len(m.order))
	for _, key := range m.order {
		if b := m.bots[key]; b.saved {
			records = append(records, b.SavingData())
		}
	}
	if err := m.conf.Store.Save(records); err != nil {
		return fmt.Errorf("save bots: %w", err)
	}
	return nil
}

// Configure runs fn with the bot with the name passed under the registry
// lock and persists the bot afterwards if it is saved. Changes are kept if
// fn fails.
func (m *Manager) Configure(name string, fn func(b *Bot) error) (Info, error) {
	m.lock()
	defer m.unlock()
	b, err := m.get(name)
	if err != nil {
		return Info{}, err
	}
	if err := fn(b); err != nil {
		return b.Info(), err
	}
	m.changed(ChangeUpdated, b)
	if b.saved {
		return b.Info(), m.saveLocked()
	}
	return b.Info(), nil
}

// Rename changes the name of a bot, keeping its position in the registry.
// Online bots cannot be renamed, as the game knows them by their old name.
func (m *Manager) Rename(name, newName string) (Info, error) {
	m.lock()
	defer m.unlock()
	b, err := m.get(name)
	if err != nil {
		return Info{}, err
	}
	if b.online {
		return b.Info(), botError(ErrBotOnline, b.name)
	}
	key, err := m.key(newName)
	if err != nil {
		return b.Info(), err
	}
	if key == b.name {
		return b.Info(), nil
	}
	if _, ok := m.bots[key]; ok {
		return b.Info(), botError(ErrBotAlreadyExists, key)
	}
	m.changed(ChangeRemoved, b)
	delete(m.bots, b.name)
	m.order[slices.Index(m.order, b.name)] = key
	b.name = key
	m.bots[key] = b
	m.changed(ChangeAdded, b)
	if b.saved {
		return b.Info(), m.saveLocked()
	}
	return b.Info(), nil
}

// Spawned handles the join of the player mcName. If a bot with that name is
// registered, it is marked online. Otherwise, if track is set, a new unsaved
// bot is created at the location of the player. Spawned reports if the
// player is a bot.
func (m *Manager) Spawned(mcName string, track bool) (Info, bool) {
	m.lock()
	defer m.unlock()
	key, err := m.key(mcName)
	if err != nil {
		return Info{}, false
	}
	b, ok := m.bots[key]
	if !ok {
		if !track {
			return Info{}, false
		}
		var loc location.Location
		if m.conf.Locate != nil {
			if loc, err = m.conf.Locate(mcName); err != nil {
				m.log.Warn("Could not locate joined bot.", "bot", mcName, "error", err)
			}
		}
		b = newBot(m.env, Record{Name: key, Location: loc})
		m.insert(b)
	}
	if err := b.Spawned(mcName); err != nil {
		m.log.Error("Bot joined.", "bot", key, "error", err)
	}
	m.changed(ChangeUpdated, b)
	return b.Info(), true
}

// Left handles the player mcName leaving the game. The bot is marked
// offline and the registry compacted.
func (m *Manager) Left(mcName string) (Info, bool) {
	m.lock()
	defer m.unlock()
	key, err := m.key(mcName)
	if err != nil {
		return Info{}, false
	}
	b, ok := m.bots[key]
	if !ok {
		return Info{}, false
	}
	b.online = false
	m.changed(ChangeUpdated, b)
	m.compact()
	return b.Info(), true
}

// AutoLogin spawns every saved, offline bot with auto login set.
func (m *Manager) AutoLogin() []Info {
	m.lock()
	defer m.unlock()
	var infos []Info
	for _, key := range m.order {
		b := m.bots[key]
		if !b.saved || !b.autoLogin || b.online {
			continue
		}
		if err := b.Spawn(); err != nil {
			m.log.Error("Auto login bot.", "bot", key, "error", err)
			continue
		}
		infos = append(infos, b.Info())
	}
	return infos
}

// ServerStopped marks every bot offline and compacts the registry.
func (m *Manager) ServerStopped() {
	m.lock()
	defer m.unlock()
	for _, key := range m.order {
		if b := m.bots[key]; b.online {
			b.online = false
			m.changed(ChangeUpdated, b)
		}
	}
	m.compact()
}

// Restore reconciles the registry with the bots of a previous Manager, as
// returned by All, and the players currently online. Bots online before are
// marked online again if they still are; unsaved bots are registered again.
// Registered bots among the live players are marked online as well.
func (m *Manager) Restore(prev []Info, live []string) {
	m.lock()
	defer m.unlock()
	online := make(map[string]string, len(live))
	for _, name := range live {
		if key, err := m.key(name); err == nil {
			online[key] = name
		}
	}
	for _, info := range prev {
		if !info.Online {
			continue
		}
		key, err := m.key(info.Name)
		if err != nil {
			continue
		}
		mcName := info.MCName
		if live != nil {
			name, ok := online[key]
			if !ok {
				continue
			}
			mcName = name
		}
		b, ok := m.bots[key]
		if !ok {
			rec := info.Record
			rec.Name = key
			b = newBot(m.env, rec)
			m.insert(b)
		}
		b.online, b.mcName = true, mcName
		m.changed(ChangeUpdated, b)
	}
	for key, mcName := range online {
		if b, ok := m.bots[key]; ok && !b.online {
			b.online, b.mcName = true, mcName
			m.changed(ChangeUpdated, b)
		}
	}
}
