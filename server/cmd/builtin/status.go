package builtin

import (
	"fmt"
	"runtime"
	"time"

	"github.com/dm-vev/botmanager/server/cmd"
)

type statusCommand struct {
	srv serverAdapter
}

func newStatusCommand(srv serverAdapter) cmd.Command {
	return cmd.New("status", "Displays server and host statistics.", nil, statusCommand{srv: srv})
}

func (s statusCommand) Run(_ cmd.Source, o *cmd.Output) {
	if !s.srv.Running() {
		o.Print("Server: stopped")
	} else {
		o.Print("Server: running")
		if start := s.srv.StartTime(); !start.IsZero() {
			o.Printf("Uptime: %s", time.Since(start).Round(time.Second))
		}
	}
	o.Printf("Players: %d", s.srv.PlayerCount())
	if s.srv.PluginsEnabled() {
		o.Printf("Plugins: %d", len(s.srv.PluginInfos()))
	}

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)
	lastGC := "never"
	if mem.LastGC != 0 {
		lastGC = fmt.Sprintf("%s ago", time.Since(time.Unix(0, int64(mem.LastGC))).Round(time.Second))
	}
	o.Printf("Memory: %.2f MiB heap used / %.2f MiB reserved", bytesToMiB(mem.HeapAlloc), bytesToMiB(mem.HeapSys))
	o.Printf("Goroutines: %d | GOMAXPROCS: %d | GC cycles: %d | Last GC: %s", runtime.NumGoroutine(), runtime.GOMAXPROCS(0), mem.NumGC, lastGC)
}

func bytesToMiB(v uint64) float64 {
	return float64(v) / (1024 * 1024)
}
