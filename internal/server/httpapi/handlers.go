package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/and161185/speedcube/internal/convert"
	"github.com/and161185/speedcube/internal/errs"
)

func (s *Server) root(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, convert.MessageResponse{Message: "Speedcube API is running."})
}

func (s *Server) register(w http.ResponseWriter, r *http.Request) {
	var req convert.RegisterRequest
	if !s.decode(w, r, &req) {
		return
	}
	username, password, err := convert.FromRegisterRequest(req)
	if err != nil {
		writeDetail(w, http.StatusBadRequest, "Username and password are required")
		return
	}
	u, err := s.auth.Register(r.Context(), username, password)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, convert.ToUserResponse(u))
	case errors.Is(err, errs.ErrAlreadyExists):
		writeDetail(w, http.StatusBadRequest, "Username already registered")
	case errors.Is(err, errs.ErrInvalidInput):
		writeDetail(w, http.StatusBadRequest, "Username and password are required")
	default:
		s.internal(w, r, "register", err)
	}
}

// token implements the OAuth2 password flow: form fields username and password.
func (s *Server) token(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBody)
	if err := r.ParseForm(); err != nil {
		writeDetail(w, http.StatusBadRequest, "Malformed form body")
		return
	}
	username, password := r.PostForm.Get("username"), r.PostForm.Get("password")
	if username == "" || password == "" {
		writeDetail(w, http.StatusUnprocessableEntity, "username and password form fields are required")
		return
	}
	tok, err := s.auth.Login(r.Context(), username, password, clientIP(r))
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, convert.ToTokenResponse(tok))
	case errors.Is(err, errs.ErrUnauthorized):
		unauthorized(w, "Incorrect username or password")
	case errors.Is(err, errs.ErrRateLimited):
		writeDetail(w, http.StatusTooManyRequests, "Too many failed login attempts, try again later")
	default:
		s.internal(w, r, "login", err)
	}
}

func (s *Server) createSolve(w http.ResponseWriter, r *http.Request) {
	u, _ := UserFromCtx(r.Context())
	var req convert.SolveRequest
	if !s.decode(w, r, &req) {
		return
	}
	in, err := convert.FromSolveRequest(req)
	if err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, "time_ms must be a non-negative integer")
		return
	}
	out, err := s.solves.Record(r.Context(), u.ID, in)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, convert.ToSolveResponse(out))
	case errors.Is(err, errs.ErrInvalidInput):
		writeDetail(w, http.StatusUnprocessableEntity, "Invalid solve")
	default:
		s.internal(w, r, "record solve", err)
	}
}

func (s *Server) listSolves(w http.ResponseWriter, r *http.Request) {
	u, _ := UserFromCtx(r.Context())
	out, err := s.solves.List(r.Context(), u.ID)
	if err != nil {
		s.internal(w, r, "list solves", err)
		return
	}
	writeJSON(w, http.StatusOK, convert.ToSolveResponses(out))
}

func (s *Server) stats(w http.ResponseWriter, r *http.Request) {
	wr, err := s.records.WorldRecords(r.Context())
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, wr)
	case errors.Is(err, errs.ErrUnavailable):
		writeDetail(w, http.StatusNotFound, "wca_records.json file not found.")
	default:
		s.internal(w, r, "stats", err)
	}
}

func (s *Server) solve(w http.ResponseWriter, r *http.Request) {
	var req convert.CubeRequest
	if !s.decode(w, r, &req) {
		return
	}
	sol, err := s.solver.Solve(r.Context(), req.CubeString)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, convert.SolutionResponse{Solution: sol})
	case errors.Is(err, errs.ErrInvalidInput):
		writeDetail(w, http.StatusBadRequest, "Invalid or unsolvable cube string.")
	case errors.Is(err, errs.ErrUnavailable):
		s.log.Warn("solver unavailable", zap.Error(err))
		writeDetail(w, http.StatusServiceUnavailable, "Solver is unavailable")
	default:
		s.internal(w, r, "solve", err)
	}
}

// decode reads a JSON body into v, answering 422 on failure.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBody))
	if err := dec.Decode(v); err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, "Malformed JSON body")
		return false
	}
	return true
}
