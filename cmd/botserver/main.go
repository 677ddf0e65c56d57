// Command botserver runs a Minecraft Java server wrapped by the plugin host,
// with the bot manager plugin compiled in.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/dm-vev/botmanager/plugins/botmanager"
	"github.com/dm-vev/botmanager/server"
	"github.com/dm-vev/botmanager/server/cmd/builtin"
	"github.com/dm-vev/botmanager/server/console"
	"github.com/pelletier/go-toml"
)

func main() {
	path := flag.String("config", "config.toml", "path of the configuration file")
	debug := flag.Bool("debug", false, "log debug messages")
	flag.Parse()

	level := slog.LevelInfo
	if *debug {
		level = slog.LevelDebug
	}
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(log)

	conf, err := readConfig(*path, log)
	if err != nil {
		log.Error("Read config.", "path", *path, "error", err)
		os.Exit(1)
	}

	srv := conf.New()
	srv.RegisterPlugin("botmanager", botmanager.Init)
	builtin.Register(srv)

	c := console.New(srv, log)
	srv.SetOutput(c.Writer())
	srv.LoadPlugins()

	if err := srv.Start(); err != nil {
		log.Error("Start server.", "error", err)
		_ = srv.Close()
		os.Exit(1)
	}
	srv.CloseOnProgramEnd()

	ctx, cancel := context.WithCancel(context.Background())
	go c.Run(ctx)
	<-srv.Done()
	cancel()
	if err := srv.Close(); err != nil {
		log.Error("Close server.", "error", err)
	}
}

// readConfig reads the configuration from the file at path, or creates the
// file with the default configuration if it does not yet exist.
func readConfig(path string, log *slog.Logger) (server.Config, error) {
	c := server.DefaultConfig()
	var zero server.Config
	if _, err := os.Stat(path); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return zero, fmt.Errorf("stat config: %w", err)
		}
		data, err := toml.Marshal(c)
		if err != nil {
			return zero, fmt.Errorf("encode default config: %w", err)
		}
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return zero, fmt.Errorf("create default config: %w", err)
		}
		log.Info("Wrote default config.", "path", path)
	} else {
		data, err := os.ReadFile(path)
		if err != nil {
			return zero, fmt.Errorf("read config: %w", err)
		}
		if err := toml.Unmarshal(data, &c); err != nil {
			return zero, fmt.Errorf("decode config: %w", err)
		}
	}
	return c.Config(log)
}
