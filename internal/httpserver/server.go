// internal/httpserver/server.go
//
// HTTP view layer for the puzzle engine.
// Responsibilities:
//   - Router + middleware (JSON, CORS, timeouts, panic recovery, request IDs, request logs).
//   - Public endpoints: "/", "/health", "/debug/puzzles".
//   - Session creation: POST /game/new (random puzzle), POST /daily/new (puzzle of the day).
//   - Session intents (token required): select, deselect, shuffle, guess, reset,
//     notice dismiss, result panel open/dismiss; GET /game for the snapshot.
//   - GET /game/ws pushes a snapshot after every change, including the
//     timer-driven reveal and notice expiry.
//
// Notes:
//   - Handlers never hold game state; they call an intent and return Snapshot().
//   - Sessions are addressed by a signed token (see token.go), not by raw ID.

package httpserver

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"github.com/robalobadob/connections/internal/daily"
	"github.com/robalobadob/connections/internal/game"
	"github.com/robalobadob/connections/internal/puzzle"
	"github.com/robalobadob/connections/internal/store"
)

// Options configures a Server.
type Options struct {
	Store          store.Store
	Source         puzzle.Source
	Secret         string        // HMAC key for session tokens
	ClientOrigin   string        // allowed CORS / WebSocket origin
	TokenTTL       time.Duration // token and cookie lifetime
	DailySalt      string
	SessionOptions []game.Option
	Now            func() time.Time
}

// Server bundles router, session store and puzzle source.
type Server struct {
	r        *chi.Mux
	store    store.Store
	src      puzzle.Source
	secret   []byte
	origin   string
	ttl      time.Duration
	salt     string
	sessOpts []game.Option
	now      func() time.Time
}

// New constructs a Server, installs middleware, and registers routes.
func New(o Options) *Server {
	s := &Server{
		r:        chi.NewRouter(),
		store:    o.Store,
		src:      o.Source,
		secret:   []byte(o.Secret),
		origin:   o.ClientOrigin,
		ttl:      o.TokenTTL,
		salt:     o.DailySalt,
		sessOpts: o.SessionOptions,
		now:      o.Now,
	}
	if len(s.secret) == 0 {
		s.secret = []byte("dev_secret_change_me")
	}
	if s.origin == "" {
		s.origin = "http://localhost:5173"
	}
	if s.ttl <= 0 {
		s.ttl = time.Hour
	}
	if s.now == nil {
		s.now = time.Now
	}

	// --- middleware ---
	s.r.Use(chimw.RequestID)     // add X-Request-ID
	s.r.Use(chimw.RealIP)        // set RemoteAddr from X-Forwarded-For etc.
	s.r.Use(requestLogger)       // zerolog access log
	s.r.Use(chimw.Recoverer)     // recover from panics
	s.r.Use(jsonContentType)     // default JSON responses
	s.r.Use(cors(s.origin))      // credentials-friendly CORS

	// Everything except the WebSocket gets a bounded handler time.
	timed := s.r.With(chimw.Timeout(10 * time.Second))

	// --- diagnostics ---
	timed.Get("/", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"service":"connections-go","endpoints":["/health","POST /game/new","POST /daily/new","/game/*"]}`))
	})
	timed.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"ok":true}`))
	})
	timed.Get("/debug/puzzles", s.handlePuzzleStats)

	// --- sessions ---
	timed.Post("/daily/new", s.handleNewDaily)

	s.r.Route("/game", func(r chi.Router) {
		r.With(chimw.Timeout(10*time.Second)).Post("/new", s.handleNewGame)

		// Session-scoped (token required)
		r.With(s.requireSession()).Get("/ws", s.handleWS)
		r.Group(func(r chi.Router) {
			r.Use(s.requireSession())
			r.Use(chimw.Timeout(10 * time.Second))
			r.Get("/", s.handleState)
			r.Delete("/", s.handleEndGame)
			r.Post("/select", s.handleSelect)
			r.Post("/deselect", s.intent((*game.Session).DeselectAll))
			r.Post("/shuffle", s.intent((*game.Session).Shuffle))
			r.Post("/guess", s.intent((*game.Session).SubmitGuess))
			r.Post("/reset", s.handleReset)
			r.Post("/notice/dismiss", s.intent((*game.Session).DismissNotice))
			r.Post("/result/open", s.intent((*game.Session).OpenResultPanel))
			r.Post("/result/dismiss", s.intent((*game.Session).DismissResultPanel))
		})
	})

	// JSON 404 for easier debugging
	s.r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "not_found")
	})

	return s
}

// Router exposes the internal router (useful for tests and http.Server).
func (s *Server) Router() chi.Router { return s.r }

// ----------------------------- middleware ----------------------------------

// jsonContentType sets a default JSON Content-Type header on all responses.
func jsonContentType(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		next.ServeHTTP(w, r)
	})
}

// cors enables credentialed CORS for a single origin.
func cors(origin string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Vary", "Origin")
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Credentials", "true")
			w.Header().Set("Access-Control-Allow-Methods", "GET,POST,DELETE,OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			w.Header().Set("Access-Control-Expose-Headers", sessionTokenHeader)
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// requestLogger writes one debug line per request.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		log.Debug().
			Str("requestId", chimw.GetReqID(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("elapsed", time.Since(start)).
			Msg("request")
	})
}

// ------------------------------ payloads -----------------------------------

// stateRes is the snapshot plus display hints for the client.
type stateRes struct {
	game.Snapshot
	Palette map[int]string `json:"palette"`
}

func (s *Server) state(sess *game.Session) stateRes {
	return stateRes{Snapshot: sess.Snapshot(), Palette: game.Palette()}
}

// newGameRes is returned by POST /game/new and POST /daily/new.
type newGameRes struct {
	GameID string   `json:"gameId"`
	Token  string   `json:"token"`
	Date   string   `json:"date,omitempty"`
	State  stateRes `json:"state"`
}

type selectReq struct {
	TileID string `json:"tileId"`
}

func writeJSON(w http.ResponseWriter, v any) {
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn().Err(err).Msg("encode response")
	}
}

func writeError(w http.ResponseWriter, code int, msg string) {
	http.Error(w, `{"error":"`+msg+`"}`, code)
}

// ------------------------------ handlers -----------------------------------

func (s *Server) handlePuzzleStats(w http.ResponseWriter, r *http.Request) {
	pool, err := s.src.Load(r.Context())
	if err != nil {
		log.Warn().Err(err).Msg("puzzle stats")
		writeError(w, http.StatusServiceUnavailable, "dataset_unavailable")
		return
	}
	writeJSON(w, map[string]any{"categories": len(pool), "byDifficulty": puzzle.Stats(pool)})
}

// handleNewGame starts a session with a random puzzle.
func (s *Server) handleNewGame(w http.ResponseWriter, r *http.Request) {
	s.startSession(w, r, "", s.sessOpts)
}

// handleNewDaily starts a session with today's shared puzzle.
func (s *Server) handleNewDaily(w http.ResponseWriter, r *http.Request) {
	now := s.now()
	opts := append(append([]game.Option{}, s.sessOpts...), game.WithRand(daily.Rand(now, s.salt)))
	s.startSession(w, r, daily.DateKey(now), opts)
}

// startSession creates, starts and registers a session. A dataset failure is
// not an HTTP error: the session is returned with loadError set so the
// client can show it and retry via /game/reset.
func (s *Server) startSession(w http.ResponseWriter, r *http.Request, date string, opts []game.Option) {
	sess := game.New(s.src, opts...)
	if err := sess.Start(r.Context()); err != nil {
		log.Warn().Err(err).Str("session", sess.ID()).Msg("session started without a puzzle")
	}
	if err := s.store.Save(r.Context(), sess); err != nil {
		log.Error().Err(err).Msg("save session")
		writeError(w, http.StatusInternalServerError, "save_failed")
		return
	}

	tok, exp, err := s.signToken(sess.ID())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "sign_failed")
		return
	}
	setSessionCookie(w, tok, exp)
	writeJSON(w, newGameRes{GameID: sess.ID(), Token: tok, Date: date, State: s.state(sess)})
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.state(sessionFrom(r)))
}

// intent adapts a no-argument session method into a handler returning the new state.
func (s *Server) intent(fn func(*game.Session)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess := sessionFrom(r)
		fn(sess)
		writeJSON(w, s.state(sess))
	}
}

func (s *Server) handleSelect(w http.ResponseWriter, r *http.Request) {
	var req selectReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.TileID == "" {
		writeError(w, http.StatusBadRequest, "bad_json")
		return
	}
	sess := sessionFrom(r)
	sess.SelectTile(req.TileID)
	writeJSON(w, s.state(sess))
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r)
	if err := sess.Reset(r.Context()); err != nil {
		log.Warn().Err(err).Str("session", sess.ID()).Msg("reset failed")
	}
	writeJSON(w, s.state(sess))
}

func (s *Server) handleEndGame(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r)
	if err := s.store.Delete(r.Context(), sess.ID()); err != nil && !errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusInternalServerError, "delete_failed")
		return
	}
	clearSessionCookie(w)
	writeJSON(w, map[string]bool{"ok": true})
}
