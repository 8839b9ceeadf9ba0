package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/S-Axhwin/ransomwar-engine/internal/domain"
)

// ContainmentController is the part of the containment controller exposed to operators
type ContainmentController interface {
	SafeMode() bool
	State() domain.ContainmentState
	TriggeredAt() time.Time
	Actions() []domain.ActionRecord
	Reset() domain.ContainmentState
}

// CanaryVerifier lists and verifies deployed decoys
type CanaryVerifier interface {
	Ledger() *domain.CanaryLedger
	VerifyCanary(path string) bool
}

// StatsProvider is implemented by every long-running component
type StatsProvider interface {
	Stats() map[string]interface{}
}

// Dependencies wires the server to the running engine
type Dependencies struct {
	Containment ContainmentController
	Canaries    CanaryVerifier
	Components  map[string]StatsProvider
	Metrics     http.Handler
	// OnReset runs after an operator reset, may be nil
	OnReset func(previous domain.ContainmentState)
	// OperatorToken is the bearer token for canary, action and reset routes.
	// Those routes answer 403 while it is empty.
	OperatorToken string
	Logger        zerolog.Logger
}

// Server is the local operator API
type Server struct {
	r    *chi.Mux
	deps Dependencies
	log  zerolog.Logger
}

func NewServer(deps Dependencies) *Server {
	s := &Server{
		r:    chi.NewRouter(),
		deps: deps,
		log:  deps.Logger.With().Str("component", "http").Logger(),
	}

	s.r.Use(middleware.RequestID)
	s.r.Use(requestLogger(s.log))
	s.r.Use(middleware.Recoverer)

	s.routes()
	return s
}

func (s *Server) routes() {
	s.r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.Write([]byte("ok")) })

	s.r.Get("/status", s.getStatus)

	// canary tokens and containment control
	s.r.Group(func(r chi.Router) {
		r.Use(requireToken(s.deps.OperatorToken, s.log))
		r.Get("/canaries", s.getCanaries)
		r.Get("/containment/actions", s.getActions)
		r.Post("/containment/reset", s.postReset)
	})

	if s.deps.Metrics != nil {
		s.r.Method(http.MethodGet, "/metrics", s.deps.Metrics)
	}
}

func (s *Server) Handler() http.Handler { return s.r }

// Run serves on addr until ctx is cancelled
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", addr).Msg("operator API listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		<-errCh
		return nil
	}
}

type containmentView struct {
	State       string     `json:"state"`
	SafeMode    bool       `json:"safe_mode"`
	TriggeredAt *time.Time `json:"triggered_at,omitempty"`
	Actions     int        `json:"actions"`
}

func (s *Server) containmentView() *containmentView {
	if s.deps.Containment == nil {
		return nil
	}
	view := &containmentView{
		State:    s.deps.Containment.State().String(),
		SafeMode: s.deps.Containment.SafeMode(),
		Actions:  len(s.deps.Containment.Actions()),
	}
	if at := s.deps.Containment.TriggeredAt(); !at.IsZero() {
		view.TriggeredAt = &at
	}
	return view
}

func (s *Server) getStatus(w http.ResponseWriter, r *http.Request) {
	components := make(map[string]map[string]interface{}, len(s.deps.Components))
	for name, provider := range s.deps.Components {
		components[name] = provider.Stats()
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"containment": s.containmentView(),
		"components":  components,
	})
}

type canaryView struct {
	Path      string    `json:"path"`
	Token     string    `json:"token"`
	SizeBytes int64     `json:"size_bytes"`
	CreatedAt time.Time `json:"created_at"`
	Intact    bool      `json:"intact"`
}

func (s *Server) getCanaries(w http.ResponseWriter, r *http.Request) {
	if s.deps.Canaries == nil {
		writeJSON(w, http.StatusOK, []canaryView{})
		return
	}

	decoys := s.deps.Canaries.Ledger().Snapshot()
	sort.Slice(decoys, func(i, j int) bool { return decoys[i].Path < decoys[j].Path })

	views := make([]canaryView, 0, len(decoys))
	for _, decoy := range decoys {
		views = append(views, canaryView{
			Path:      decoy.Path,
			Token:     decoy.Token,
			SizeBytes: decoy.SizeBytes,
			CreatedAt: decoy.CreatedAt,
			Intact:    s.deps.Canaries.VerifyCanary(decoy.Path),
		})
	}
	writeJSON(w, http.StatusOK, views)
}

func (s *Server) getActions(w http.ResponseWriter, r *http.Request) {
	if s.deps.Containment == nil {
		writeJSON(w, http.StatusOK, []domain.ActionRecord{})
		return
	}
	writeJSON(w, http.StatusOK, s.deps.Containment.Actions())
}

func (s *Server) postReset(w http.ResponseWriter, r *http.Request) {
	if s.deps.Containment == nil {
		http.Error(w, "containment not configured", http.StatusServiceUnavailable)
		return
	}

	previous := s.deps.Containment.Reset()
	s.log.Warn().
		Str("previous", previous.String()).
		Str("request_id", middleware.GetReqID(r.Context())).
		Msg("containment reset by operator")

	if s.deps.OnReset != nil {
		s.deps.OnReset(previous)
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"previous":    previous.String(),
		"containment": s.containmentView(),
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
