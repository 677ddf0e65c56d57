package server

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/gorcon/rcon"
)

// ErrRCONUnavailable is returned by queries when RCON is disabled or not
// connected.
var ErrRCONUnavailable = errors.New("rcon unavailable")

// rconClient holds the RCON connection to the server. It reconnects once
// when a query fails on a broken connection.
type rconClient struct {
	conf RCONConfig
	log  *slog.Logger

	mu   sync.Mutex
	conn *rcon.Conn
	// ready is set once the server reported that RCON is listening.
	ready bool
}

func newRCONClient(conf RCONConfig, log *slog.Logger) *rconClient {
	return &rconClient{conf: conf, log: log.With("subsystem", "rcon")}
}

// connect marks RCON as available and dials it.
func (c *rconClient) connect() error {
	if !c.conf.Enabled {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ready = true
	return c.dialLocked()
}

func (c *rconClient) dialLocked() error {
	if c.conn != nil {
		return nil
	}
	conn, err := rcon.Dial(c.conf.Address, c.conf.Password,
		rcon.SetDialTimeout(c.conf.Timeout),
		rcon.SetDeadline(c.conf.Timeout),
	)
	if err != nil {
		return fmt.Errorf("dial rcon: %w", err)
	}
	c.conn = conn
	c.log.Info("RCON connected.", "address", c.conf.Address)
	return nil
}

func (c *rconClient) query(command string) (string, error) {
	if !c.conf.Enabled {
		return "", ErrRCONUnavailable
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.ready {
		return "", ErrRCONUnavailable
	}
	for attempt := 0; ; attempt++ {
		if err := c.dialLocked(); err != nil {
			return "", fmt.Errorf("%w: %v", ErrRCONUnavailable, err)
		}
		resp, err := c.conn.Execute(command)
		if err == nil {
			return resp, nil
		}
		_ = c.conn.Close()
		c.conn = nil
		if attempt == 1 {
			return "", fmt.Errorf("rcon query: %w", err)
		}
		c.log.Debug("RCON query failed, reconnecting.", "error", err)
	}
}

func (c *rconClient) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ready = false
	if c.conn == nil {
		return
	}
	if err := c.conn.Close(); err != nil {
		c.log.Debug("Close RCON connection.", "error", err)
	}
	c.conn = nil
}
