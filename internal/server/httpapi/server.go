// Package httpapi exposes the speedcube backend over HTTP/JSON.
package httpapi

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/and161185/speedcube/internal/service"
)

// DefaultOrigins are the browser origins allowed by CORS when none are configured.
var DefaultOrigins = []string{"http://localhost:5173", "http://localhost:3000"}

// maxBody caps request bodies.
const maxBody = 1 << 20

// Server wires services into HTTP handlers.
type Server struct {
	auth    service.AuthService
	solves  service.SolveService
	records service.RecordsService
	solver  service.SolverService
	log     *zap.Logger
	origins []string
	solveRL *throttle
}

// Option customizes a Server.
type Option func(*Server)

// WithLogger sets the request and error logger.
func WithLogger(l *zap.Logger) Option { return func(s *Server) { s.log = l } }

// WithAllowedOrigins overrides the CORS origin allowlist.
func WithAllowedOrigins(origins ...string) Option {
	return func(s *Server) {
		if len(origins) > 0 {
			s.origins = origins
		}
	}
}

// WithSolveRate sets the per-client rate limit of POST /solve.
func WithSolveRate(limit rate.Limit, burst int) Option {
	return func(s *Server) { s.solveRL = newThrottle(limit, burst) }
}

// New constructs the HTTP server with injected services.
func New(auth service.AuthService, solves service.SolveService, records service.RecordsService, solver service.SolverService, opts ...Option) *Server {
	s := &Server{
		auth:    auth,
		solves:  solves,
		records: records,
		solver:  solver,
		log:     zap.NewNop(),
		origins: DefaultOrigins,
		solveRL: newThrottle(DefaultSolveRate, DefaultSolveBurst),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Handler returns the routed handler wrapped in CORS, recovery and logging.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/", s.root).Methods(http.MethodGet)
	r.HandleFunc("/users/register", s.register).Methods(http.MethodPost)
	r.HandleFunc("/token", s.token).Methods(http.MethodPost)
	r.HandleFunc("/solves", s.requireUser(s.createSolve)).Methods(http.MethodPost)
	r.HandleFunc("/solves", s.requireUser(s.listSolves)).Methods(http.MethodGet)
	r.HandleFunc("/stats", s.stats).Methods(http.MethodGet)
	r.HandleFunc("/solve", s.solveRL.wrap(s.solve)).Methods(http.MethodPost)

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeDetail(w, http.StatusNotFound, "Not Found")
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeDetail(w, http.StatusMethodNotAllowed, "Method Not Allowed")
	})
	r.Use(Recover(s.log))

	c := cors.New(cors.Options{
		AllowedOrigins:   s.origins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	})
	return Logging(s.log)(c.Handler(r))
}
