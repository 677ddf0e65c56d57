package server

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"os/signal"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/dm-vev/botmanager/server/cmd"
	"github.com/dm-vev/botmanager/server/plugin"
)

// ErrNotRunning is returned when a command is sent while the server process
// is not running.
var ErrNotRunning = errors.New("server not running")

// Server wraps a Minecraft Java server process. It parses the output of the
// process into events for plugins, executes plugin commands typed in chat,
// and gives plugins a way to send commands back to the server.
type Server struct {
	conf    Config
	log     *slog.Logger
	output  io.Writer
	plugins *plugin.Manager[*Server, Config]
	rcon    *rconClient

	mu      sync.Mutex
	proc    *exec.Cmd
	stdin   io.Writer
	done    chan struct{}
	running atomic.Bool
	started atomic.Pointer[time.Time]

	pmu     sync.RWMutex
	players map[string]string // lower-cased name -> name
}

// New creates a Server using the Config. The server process is not started
// until Start is called.
func (conf Config) New() *Server {
	if conf.Log == nil {
		conf.Log = slog.Default()
	}
	if conf.CommandPrefix == "" {
		conf.CommandPrefix = "!!"
	}
	if conf.StopTimeout <= 0 {
		conf.StopTimeout = 30 * time.Second
	}
	srv := &Server{
		conf:    conf,
		log:     conf.Log,
		output:  os.Stdout,
		rcon:    newRCONClient(conf.RCON, conf.Log),
		players: map[string]string{},
		done:    make(chan struct{}),
	}
	close(srv.done)
	srv.plugins = plugin.NewManager(newPluginHost(srv), conf.Plugins)
	return srv
}

// SetOutput sets the writer that server output lines are copied to. It
// defaults to os.Stdout.
func (srv *Server) SetOutput(w io.Writer) {
	srv.mu.Lock()
	defer srv.mu.Unlock()
	srv.output = w
}

// Plugins returns the plugin manager of the server.
func (srv *Server) Plugins() *plugin.Manager[*Server, Config] {
	return srv.plugins
}

// RegisterPlugin makes a plugin compiled into the binary available under
// name. See plugin.Manager.RegisterFactory.
func (srv *Server) RegisterPlugin(name string, factory PluginFactory) {
	srv.plugins.RegisterFactory(name, factory)
}

// LoadPlugins enables the plugins named in the configuration.
func (srv *Server) LoadPlugins() {
	srv.plugins.LoadConfigured()
}

// PluginsEnabled reports if the plugin subsystem is active.
func (srv *Server) PluginsEnabled() bool {
	return srv.plugins.Enabled()
}

// Start starts the server process. It returns once the process is running;
// use Done to wait for it to exit.
func (srv *Server) Start() error {
	srv.mu.Lock()
	defer srv.mu.Unlock()
	if srv.running.Load() {
		return errors.New("server already running")
	}
	proc := exec.Command(srv.conf.Command[0], srv.conf.Command[1:]...)
	proc.Dir = srv.conf.WorkingDirectory
	stdin, err := proc.StdinPipe()
	if err != nil {
		return fmt.Errorf("open stdin: %w", err)
	}
	stdout, err := proc.StdoutPipe()
	if err != nil {
		return fmt.Errorf("open stdout: %w", err)
	}
	proc.Stderr = proc.Stdout
	if err := proc.Start(); err != nil {
		return fmt.Errorf("start server: %w", err)
	}
	srv.proc, srv.stdin = proc, stdin
	srv.done = make(chan struct{})
	srv.running.Store(true)
	srv.log.Info("Server process started.", "pid", proc.Process.Pid, "command", strings.Join(srv.conf.Command, " "))

	go srv.run(proc, stdout, srv.done)
	return nil
}

func (srv *Server) run(proc *exec.Cmd, stdout io.Reader, done chan struct{}) {
	defer close(done)
	srv.readOutput(stdout)

	exitCode := 0
	if err := proc.Wait(); err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			srv.log.Error("Wait for server process.", "error", err)
		}
		exitCode = proc.ProcessState.ExitCode()
	}
	srv.stopped(exitCode)
}

func (srv *Server) readOutput(r io.Reader) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		srv.handleLine(scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		srv.log.Error("Read server output.", "error", err)
	}
}

// handleLine handles a single line of server output.
func (srv *Server) handleLine(line string) {
	srv.mu.Lock()
	out := srv.output
	srv.mu.Unlock()
	if out != nil {
		_, _ = io.WriteString(out, line+"\n")
	}

	parsed := ParseLine(line)
	switch parsed.Kind {
	case LogStartup:
		now := time.Now()
		srv.started.Store(&now)
		srv.log.Info("Server started.")
		srv.plugins.Dispatch(plugin.Event{Kind: plugin.EventServerStartup})
	case LogPlayerJoined:
		srv.pmu.Lock()
		srv.players[strings.ToLower(parsed.Player)] = parsed.Player
		srv.pmu.Unlock()
		srv.plugins.Dispatch(plugin.Event{Kind: plugin.EventPlayerJoined, Player: parsed.Player})
	case LogPlayerLeft:
		srv.pmu.Lock()
		delete(srv.players, strings.ToLower(parsed.Player))
		srv.pmu.Unlock()
		srv.plugins.Dispatch(plugin.Event{Kind: plugin.EventPlayerLeft, Player: parsed.Player})
	case LogChat:
		srv.plugins.Dispatch(plugin.Event{Kind: plugin.EventUserInfo, Player: parsed.Player, Content: parsed.Content})
		if strings.HasPrefix(parsed.Content, srv.conf.CommandPrefix) {
			srv.ExecuteCommand(srv.playerSource(parsed.Player), parsed.Content)
		}
	case LogRCONStarted:
		go func() {
			if err := srv.rcon.connect(); err != nil {
				srv.log.Error("Connect to RCON.", "error", err)
			}
		}()
	}
}

func (srv *Server) stopped(exitCode int) {
	srv.running.Store(false)
	srv.started.Store(nil)
	srv.rcon.close()
	srv.pmu.Lock()
	clear(srv.players)
	srv.pmu.Unlock()
	srv.log.Info("Server process exited.", "code", exitCode)
	srv.plugins.Dispatch(plugin.Event{Kind: plugin.EventServerStop, ExitCode: exitCode})
}

// Done returns a channel closed once the server process exited.
func (srv *Server) Done() <-chan struct{} {
	srv.mu.Lock()
	defer srv.mu.Unlock()
	return srv.done
}

// Running reports if the server process is running.
func (srv *Server) Running() bool {
	return srv.running.Load()
}

// StartTime returns the time the server finished starting, or the zero time
// if it has not.
func (srv *Server) StartTime() time.Time {
	if t := srv.started.Load(); t != nil {
		return *t
	}
	return time.Time{}
}

// Execute writes a command to the standard input of the server.
func (srv *Server) Execute(command string) error {
	srv.mu.Lock()
	defer srv.mu.Unlock()
	if srv.stdin == nil || !srv.running.Load() {
		return ErrNotRunning
	}
	command = strings.TrimPrefix(strings.TrimSpace(command), "/")
	if _, err := io.WriteString(srv.stdin, command+"\n"); err != nil {
		return fmt.Errorf("write command: %w", err)
	}
	return nil
}

// Query runs a command over RCON and returns the response of the server.
func (srv *Server) Query(command string) (string, error) {
	if !srv.running.Load() {
		return "", ErrNotRunning
	}
	return srv.rcon.query(strings.TrimPrefix(command, "/"))
}

type textComponent struct {
	Text string `json:"text"`
}

func (srv *Server) tellraw(target, message string) error {
	data, err := json.Marshal(textComponent{Text: message})
	if err != nil {
		return err
	}
	return srv.Execute("tellraw " + target + " " + string(data))
}

// Say broadcasts a message to all online players.
func (srv *Server) Say(message string) error {
	return srv.tellraw("@a", message)
}

// Tell sends a message to the player passed.
func (srv *Server) Tell(player, message string) error {
	return srv.tellraw(player, message)
}

// Online reports if a player with the name passed is online. Names are
// compared case-insensitively.
func (srv *Server) Online(name string) bool {
	srv.pmu.RLock()
	defer srv.pmu.RUnlock()
	_, ok := srv.players[strings.ToLower(name)]
	return ok
}

// Players returns the names of all online players, sorted.
func (srv *Server) Players() []string {
	srv.pmu.RLock()
	names := make([]string, 0, len(srv.players))
	for _, name := range srv.players {
		names = append(names, name)
	}
	srv.pmu.RUnlock()
	slices.Sort(names)
	return names
}

// PlayerCount returns the number of online players.
func (srv *Server) PlayerCount() int {
	srv.pmu.RLock()
	defer srv.pmu.RUnlock()
	return len(srv.players)
}

// PermissionLevel returns the permission level of a player.
func (srv *Server) PermissionLevel(player string) int {
	if level, ok := srv.conf.Permissions[strings.ToLower(player)]; ok {
		return level
	}
	return srv.conf.DefaultPermission
}

// CommandPrefix returns the prefix of plugin commands.
func (srv *Server) CommandPrefix() string {
	return srv.conf.CommandPrefix
}

// ExecuteCommand executes a plugin command line, including the command
// prefix, on behalf of source.
func (srv *Server) ExecuteCommand(source cmd.Source, commandLine string) {
	cmd.ExecuteLine(source, commandLine, srv.conf.CommandPrefix, func(c cmd.Command, args []string) bool {
		srv.log.Debug("Command executed.", "source", source.Name(), "command", c.Name(), "args", strings.Join(args, " "))
		return true
	})
}

// HandleConsoleInput handles a line typed into the console. Lines starting
// with the command prefix are run as plugin commands on behalf of source,
// other lines are forwarded to the server.
func (srv *Server) HandleConsoleInput(source cmd.Source, line string) {
	line = strings.TrimSpace(line)
	if line == "" {
		return
	}
	srv.plugins.Dispatch(plugin.Event{Kind: plugin.EventUserInfo, Content: line})
	if strings.HasPrefix(line, srv.conf.CommandPrefix) {
		srv.ExecuteCommand(source, line)
		return
	}
	if err := srv.Execute(line); err != nil {
		srv.log.Error("Forward console input.", "error", err)
	}
}

// Close stops the server by sending `stop`, waiting up to the stop timeout
// before killing the process. Plugins are disabled afterwards.
func (srv *Server) Close() error {
	err := srv.stop()
	srv.plugins.Shutdown()
	return err
}

func (srv *Server) stop() error {
	if !srv.running.Load() {
		return nil
	}
	done := srv.Done()
	if err := srv.Execute("stop"); err != nil && !errors.Is(err, ErrNotRunning) {
		srv.log.Error("Send stop command.", "error", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), srv.conf.StopTimeout)
	defer cancel()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
	}
	srv.log.Warn("Server did not stop in time, killing process.", "timeout", srv.conf.StopTimeout)
	srv.mu.Lock()
	proc := srv.proc
	srv.mu.Unlock()
	if proc == nil || proc.Process == nil {
		return nil
	}
	if err := proc.Process.Kill(); err != nil {
		return fmt.Errorf("kill server: %w", err)
	}
	<-done
	return nil
}

// CloseOnProgramEnd closes the server right before the program ends, when a
// SIGINT or SIGTERM is received.
func (srv *Server) CloseOnProgramEnd() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	go func() {
		defer stop()
		<-ctx.Done()
		if err := srv.Close(); err != nil {
			srv.log.Error("Close server.", "error", err)
		}
	}()
}

// PluginInfos returns metadata of all loaded plugins.
func (srv *Server) PluginInfos() []PluginInfo {
	return srv.plugins.Infos()
}

// EnablePlugin enables the plugin at path, or the compiled-in plugin
// registered under that name.
func (srv *Server) EnablePlugin(path string) (PluginInfo, error) {
	return srv.plugins.Enable(path)
}

// DisablePlugin disables the loaded plugin with the name passed.
func (srv *Server) DisablePlugin(name string) (PluginInfo, error) {
	return srv.plugins.Disable(name)
}

// ReloadPlugin disables and enables the plugin with the name passed again.
func (srv *Server) ReloadPlugin(name string) (PluginInfo, error) {
	return srv.plugins.Reload(name)
}
