// Package httpapi exposes the bot registry over HTTP. Bots can be listed,
// created, changed and deleted, and registry changes are streamed over a
// websocket.
package httpapi

import (
	"context"
	"crypto/subtle"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dm-vev/botmanager/plugins/botmanager/bot"
	"github.com/dm-vev/botmanager/plugins/botmanager/location"
	"github.com/gorilla/websocket"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed create.schema.json
var createSchemaJSON string

//go:embed patch.schema.json
var patchSchemaJSON string

var (
	createSchema = jsonschema.MustCompileString("create.schema.json", createSchemaJSON)
	patchSchema  = jsonschema.MustCompileString("patch.schema.json", patchSchemaJSON)
)

// maxBodySize is the maximum size of a request body.
const maxBodySize = 1 << 20

// Config configures a Server.
type Config struct {
	Manager *bot.Manager
	// Token, if not empty, must be passed as a bearer token with every
	// request.
	Token string
	Log   *slog.Logger
}

// Server serves the bot registry of a Manager.
type Server struct {
	conf     Config
	m        *bot.Manager
	log      *slog.Logger
	mux      *http.ServeMux
	upgrader websocket.Upgrader
}

// New creates a Server using the Config.
func (conf Config) New() *Server {
	if conf.Log == nil {
		conf.Log = slog.Default()
	}
	s := &Server{
		conf: conf,
		m:    conf.Manager,
		log:  conf.Log,
		mux:  http.NewServeMux(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
	s.mux.HandleFunc("GET /bots", s.handleList)
	s.mux.HandleFunc("GET /bots/stream", s.handleStream)
	s.mux.HandleFunc("GET /bots/{name}", s.handleGet)
	s.mux.HandleFunc("POST /bots", s.handleCreate)
	s.mux.HandleFunc("PATCH /bots/{name}", s.handlePatch)
	s.mux.HandleFunc("DELETE /bots/{name}", s.handleDelete)
	return s
}

// ServeHTTP checks the bearer token of the request and routes it.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if s.conf.Token != "" {
		token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || subtle.ConstantTimeCompare([]byte(token), []byte(s.conf.Token)) != 1 {
			writeJSON(w, http.StatusUnauthorized, errorBody{Error: "unauthorised"})
			return
		}
	}
	s.mux.ServeHTTP(w, r)
}

// Serve serves requests accepted by l until ctx is cancelled. Open streams
// are closed with ctx.
func (s *Server) Serve(ctx context.Context, l net.Listener) error {
	srv := &http.Server{
		Handler:           s,
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.log.Warn("HTTP server shutdown.", "error", err)
		}
	}()
	s.log.Info("HTTP API listening.", "address", l.Addr().String())
	if err := srv.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// ListenAndServe listens on the TCP address passed and calls Serve.
func (s *Server) ListenAndServe(ctx context.Context, address string) error {
	l, err := net.Listen("tcp", address)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", address, err)
	}
	return s.Serve(ctx, l)
}

type errorBody struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusBadRequest
	if errors.Is(err, bot.ErrBotNotExists) {
		status = http.StatusNotFound
	}
	writeJSON(w, status, errorBody{Error: err.Error()})
}

// decode reads the body of r, validates it against schema and decodes it
// into v.
func decode(w http.ResponseWriter, r *http.Request, schema *jsonschema.Schema, v any) error {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodySize))
	if err != nil {
		return fmt.Errorf("read body: %w", err)
	}
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("decode body: %w", err)
	}
	if err := schema.Validate(doc); err != nil {
		return fmt.Errorf("validate body: %w", err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode body: %w", err)
	}
	return nil
}

// listResponse is the body returned by GET /bots.
type listResponse struct {
	Bots     []bot.Info `json:"bots"`
	Index    int        `json:"index"`
	MaxIndex int        `json:"maxIndex"`
	Total    int        `json:"total"`
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	q, err := parseQuery(r)
	if err != nil {
		writeError(w, err)
		return
	}
	page, err := s.m.List(q)
	if err != nil {
		writeError(w, err)
		return
	}
	bots := page.Bots
	if bots == nil {
		bots = []bot.Info{}
	}
	writeJSON(w, http.StatusOK, listResponse{Bots: bots, Index: page.Index, MaxIndex: page.MaxIndex, Total: page.Total})
}

// parseQuery parses the index, online, saved and tag query parameters. If
// neither online nor saved is set, both are listed.
func parseQuery(r *http.Request) (bot.ListQuery, error) {
	values := r.URL.Query()
	q := bot.ListQuery{Tag: values.Get("tag")}
	if v := values.Get("index"); v != "" {
		index, err := strconv.Atoi(v)
		if err != nil {
			return q, fmt.Errorf("parse index: %w", err)
		}
		q.Index = index
	}
	for name, dst := range map[string]*bool{"online": &q.Online, "saved": &q.Saved} {
		v := values.Get(name)
		if v == "" {
			continue
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			return q, fmt.Errorf("parse %s: %w", name, err)
		}
		*dst = b
	}
	if !values.Has("online") && !values.Has("saved") {
		q.Online, q.Saved = true, true
	}
	return q, nil
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	info, err := s.m.Bot(r.PathValue("name"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	var rec bot.Record
	if err := decode(w, r, createSchema, &rec); err != nil {
		writeError(w, err)
		return
	}
	if _, err := s.m.Register(rec.Name, rec.Location); err != nil {
		writeError(w, err)
		return
	}
	info, err := s.m.Configure(rec.Name, func(b *bot.Bot) error {
		b.SetComment(rec.Comment)
		b.SetActions(rec.Actions)
		b.SetTags(rec.Tags)
		b.SetAutoLogin(rec.AutoLogin)
		b.SetAutoRunActions(rec.AutoRunActions)
		b.SetAutoUpdate(rec.AutoUpdate)
		return nil
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, info)
}

// patch holds the fields of a bot changed by PATCH /bots/{name}. Online
// spawns or kills the bot after the other fields are applied.
type patch struct {
	Location       *location.Location `json:"location"`
	Comment        *string            `json:"comment"`
	Actions        *[]string          `json:"actions"`
	Tags           *[]string          `json:"tags"`
	AutoLogin      *bool              `json:"autoLogin"`
	AutoRunActions *bool              `json:"autoRunActions"`
	AutoUpdate     *bool              `json:"autoUpdate"`
	Online         *bool              `json:"online"`
}

func (p patch) apply(b *bot.Bot) error {
	if p.Location != nil {
		b.SetLocation(*p.Location)
	}
	if p.Comment != nil {
		b.SetComment(*p.Comment)
	}
	if p.Actions != nil {
		b.SetActions(*p.Actions)
	}
	if p.Tags != nil {
		b.SetTags(*p.Tags)
	}
	if p.AutoLogin != nil {
		b.SetAutoLogin(*p.AutoLogin)
	}
	if p.AutoRunActions != nil {
		b.SetAutoRunActions(*p.AutoRunActions)
	}
	if p.AutoUpdate != nil {
		b.SetAutoUpdate(*p.AutoUpdate)
	}
	return nil
}

func (s *Server) handlePatch(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	var p patch
	if err := decode(w, r, patchSchema, &p); err != nil {
		writeError(w, err)
		return
	}
	info, err := s.m.Configure(name, p.apply)
	if err != nil {
		writeError(w, err)
		return
	}
	if p.Online != nil {
		if *p.Online {
			info, err = s.m.Spawn(name, "")
		} else {
			info, err = s.m.Kill(name)
		}
		if err != nil {
			writeError(w, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, info)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	info, err := s.m.Delete(r.PathValue("name"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}
