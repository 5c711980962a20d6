// ABOUTME: Wires config into a running client session
// ABOUTME: Builds the transport client, turn stores, renderer and conversation manager

package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/2389/council/internal/config"
	"github.com/2389/council/internal/conversation"
	"github.com/2389/council/internal/render"
	"github.com/2389/council/internal/sentinel"
	"github.com/2389/council/internal/store"
	"github.com/2389/council/internal/transport"
	"github.com/2389/council/internal/turn"
)

// session holds everything one CLI invocation needs to talk to the server.
type session struct {
	cfg      *config.Config
	client   *transport.Client
	manager  *conversation.Manager
	memory   *store.Memory
	db       *store.SQLite // nil unless store.driver is sqlite
	renderer render.Renderer
	out      *lockedWriter
	logger   *slog.Logger
}

func newSession(cfg *config.Config, out io.Writer, logger *slog.Logger) (*session, error) {
	client, err := transport.NewClient(cfg.Server.URL, &http.Client{}, logger)
	if err != nil {
		return nil, fmt.Errorf("creating client: %w", err)
	}

	format, err := render.ParseFormat(cfg.Render.Format)
	if err != nil {
		return nil, err
	}
	renderer, err := render.New(format, render.Options{NoColor: cfg.Render.NoColor})
	if err != nil {
		return nil, err
	}

	s := &session{
		cfg:      cfg,
		client:   client,
		memory:   store.NewMemory(),
		renderer: renderer,
		out:      newLockedWriter(out),
		logger:   logger,
	}

	stores := store.Multi{s.memory}
	if cfg.Store.Driver == config.StoreSQLite {
		s.db, err = store.NewSQLite(logger)
		if err != nil {
			return nil, fmt.Errorf("opening turn store: %w", err)
		}
		stores = append(stores, s.db)
	}
	stores = append(stores, store.Func(s.print))

	s.manager, err = conversation.NewManager(conversation.Config{
		Dialer:      client,
		Store:       stores,
		Detector:    sentinel.New(cfg.SentinelConfig()),
		MaxDuration: cfg.Conversation.MaxDuration,
		Logger:      logger,
	})
	if err != nil {
		s.close()
		return nil, fmt.Errorf("creating conversation manager: %w", err)
	}

	return s, nil
}

// print renders an appended turn as soon as the manager stores it.
func (s *session) print(t turn.Turn) {
	if err := s.renderer.Render(s.out, t); err != nil {
		s.logger.Warn("failed to render turn", "sequence", t.Sequence, "error", err)
	}
}

// options returns the submission options from config.
func (s *session) options() conversation.Options {
	mode, _ := transport.ParseMode(s.cfg.Conversation.Transport)
	return conversation.Options{Model: s.cfg.Conversation.Model, Transport: mode}
}

// history returns the session's turns, preferring the SQLite store.
func (s *session) history(ctx context.Context) ([]turn.Turn, error) {
	if s.db != nil {
		return s.db.Turns(ctx)
	}
	return s.memory.Turns(), nil
}

// agents returns the distinct agent names seen this session.
func (s *session) agents(ctx context.Context) ([]string, error) {
	if s.db != nil {
		return s.db.Agents(ctx)
	}
	seen := make(map[string]bool)
	var names []string
	for _, t := range s.memory.Turns() {
		if t.IsAgent() && !seen[t.Agent] {
			seen[t.Agent] = true
			names = append(names, t.Agent)
		}
	}
	return names, nil
}

// listModels fetches the server's models within the request timeout.
func (s *session) listModels(ctx context.Context) ([]transport.Model, error) {
	if s.cfg.Server.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.Server.RequestTimeout)
		defer cancel()
	}
	return s.client.ListModels(ctx)
}

func (s *session) close() {
	if s.manager != nil {
		s.manager.Close()
	}
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			s.logger.Warn("closing turn store", "error", err)
		}
	}
}
