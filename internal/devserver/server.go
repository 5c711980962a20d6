// ABOUTME: Fake council server serving SSE and batch solve endpoints plus model listing
// ABOUTME: Used by tests and the fake-council binary to drive the client end to end

package devserver

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"
)

// Model is one entry of GET /models.
type Model struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

// DefaultModels is served when Config.Models is empty.
var DefaultModels = []Model{
	{Value: "gpt-4o", Label: "GPT-4o"},
	{Value: "gpt-4o-mini", Label: "GPT-4o mini"},
	{Value: "llama3", Label: "Llama 3 (local)"},
}

// ScriptFunc produces the records sent for one request.
type ScriptFunc func(prompt, model string) []string

// Config configures a Server.
type Config struct {
	// Script defaults to DefaultScript.
	Script ScriptFunc
	// Delay is waited before each streamed record.
	Delay time.Duration
	// HoldOpen keeps SSE streams open after the script until the client
	// goes away.
	HoldOpen bool
	Models   []Model
	Logger   *slog.Logger
}

// Received records a request the server handled.
type Received struct {
	Method string
	Prompt string
	Model  string
}

// Server is the fake council server.
type Server struct {
	cfg    Config
	logger *slog.Logger
	mux    *http.ServeMux

	mu       sync.Mutex
	received []Received
}

// New creates a Server.
func New(cfg Config) *Server {
	if cfg.Script == nil {
		cfg.Script = DefaultScript
	}
	if len(cfg.Models) == 0 {
		cfg.Models = DefaultModels
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		cfg:    cfg,
		logger: logger.With("component", "devserver"),
		mux:    http.NewServeMux(),
	}
	s.mux.HandleFunc("/solve", s.handleSolve)
	s.mux.HandleFunc("/models", s.handleModels)
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Received returns the requests handled so far.
func (s *Server) Received() []Received {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Received(nil), s.received...)
}

func (s *Server) record(r Received) {
	s.mu.Lock()
	s.received = append(s.received, r)
	s.mu.Unlock()
}

func (s *Server) handleSolve(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.handleStream(w, r)
	case http.MethodPost:
		s.handleBatch(w, r)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// handleStream handles GET /solve with an SSE response.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	prompt := r.URL.Query().Get("prompt")
	model := r.URL.Query().Get("model")
	if strings.TrimSpace(prompt) == "" {
		sendJSONError(w, http.StatusBadRequest, "prompt is required")
		return
	}
	s.record(Received{Method: http.MethodGet, Prompt: prompt, Model: model})

	flusher, ok := w.(http.Flusher)
	if !ok {
		sendJSONError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ctx := r.Context()
	for _, record := range s.cfg.Script(prompt, model) {
		if s.cfg.Delay > 0 {
			select {
			case <-ctx.Done():
				return
			case <-time.After(s.cfg.Delay):
			}
		}
		writeSSERecord(w, record)
		flusher.Flush()
	}

	if s.cfg.HoldOpen {
		<-ctx.Done()
	}
	s.logger.Debug("stream finished", "prompt", prompt)
}

// batchRequest is the JSON body of POST /solve.
type batchRequest struct {
	Prompt string `json:"prompt"`
	Model  string `json:"model,omitempty"`
}

// batchResponse is the JSON response of POST /solve.
type batchResponse struct {
	Conversation []string `json:"conversation"`
	Solution     *string  `json:"solution"`
}

// handleBatch handles POST /solve with the whole conversation at once.
func (s *Server) handleBatch(w http.ResponseWriter, r *http.Request) {
	var req batchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Prompt) == "" {
		sendJSONError(w, http.StatusBadRequest, "prompt is required")
		return
	}
	s.record(Received{Method: http.MethodPost, Prompt: req.Prompt, Model: req.Model})

	conversation := s.cfg.Script(req.Prompt, req.Model)
	resp := batchResponse{Conversation: conversation}
	for i := len(conversation) - 1; i >= 0; i-- {
		if rest, ok := strings.CutPrefix(conversation[i], "Solver:"); ok {
			solution := strings.TrimSpace(rest)
			resp.Solution = &solution
			break
		}
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.logger.Error("failed to encode batch response", "error", err)
	}
}

// handleModels handles GET /models.
func (s *Server) handleModels(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string][]Model{"models": s.cfg.Models}); err != nil {
		s.logger.Error("failed to encode models", "error", err)
	}
}

// writeSSERecord writes one message event. Each line of a multi-line
// record becomes its own data field.
func writeSSERecord(w http.ResponseWriter, record string) {
	for _, line := range strings.Split(record, "\n") {
		fmt.Fprintf(w, "data: %s\n", line)
	}
	fmt.Fprint(w, "\n")
}

// sendJSONError writes a JSON error response in the server's format.
func sendJSONError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"detail": message})
}
