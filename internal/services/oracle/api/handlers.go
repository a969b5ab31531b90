// Package api serves the oracle HTTP API over a commitment ledger.
package api

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/jimrubenstein/randomproof/internal/draw/hashing"
	"github.com/jimrubenstein/randomproof/internal/draw/randomness"
	apperrors "github.com/jimrubenstein/randomproof/internal/platform/errors"
	"github.com/jimrubenstein/randomproof/internal/platform/pagination"
	"github.com/jimrubenstein/randomproof/internal/platform/requestctx"
	"github.com/jimrubenstein/randomproof/internal/services/ledger"
	"github.com/jimrubenstein/randomproof/internal/services/oracle/auth"
)

const maxBodyBytes = 64 << 10

var eventPageSize = pagination.PageSizeConfig{Default: 50, Max: 500}

// Server handles oracle HTTP routes.
type Server struct {
	ledger *ledger.Ledger
	auth   auth.Config
}

// NewServer creates the API handlers. Writes require a bearer token signed
// with authCfg; reads are public so anyone can verify a draw.
func NewServer(l *ledger.Ledger, authCfg auth.Config) *Server {
	return &Server{ledger: l, auth: authCfg}
}

// RegisterRoutes registers the oracle routes on mux.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	if s == nil || mux == nil {
		return
	}
	mux.HandleFunc("POST /v1/requests", s.requireAuth(s.handleSubmit))
	mux.HandleFunc("DELETE /v1/requests/{requestID}", s.requireAuth(s.handleCancel))
	mux.HandleFunc("GET /v1/randomness/{entityHash}", s.handleRandomness)
	mux.HandleFunc("GET /v1/records/{key}", s.handleRecord)
	mux.HandleFunc("GET /v1/events", s.handleEvents)
}

// requireAuth verifies the bearer token and stores its subject as the
// requester.
func (s *Server) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, err := auth.Verify(s.auth, auth.BearerToken(r))
		if err != nil {
			writeError(w, r, err)
			return
		}
		next(w, r.WithContext(requestctx.WithRequester(r.Context(), claims.Subject)))
	}
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var body SubmitRequest
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&body); err != nil {
		if errors.Is(err, io.EOF) {
			err = errors.New("request body is empty")
		}
		writeError(w, r, invalidInput(err.Error()))
		return
	}
	entityHash, err := hashing.ParseDigest(body.EntityHash)
	if err != nil {
		writeError(w, r, err)
		return
	}
	saltDigest := hashing.ZeroDigest
	if strings.TrimSpace(body.SaltDigest) != "" {
		saltDigest, err = hashing.ParseDigest(body.SaltDigest)
		if err != nil {
			writeError(w, r, err)
			return
		}
	}

	requestID, err := s.ledger.Submit(r.Context(), entityHash, saltDigest, requestctx.RequesterFromContext(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, SubmitResponse{
		RequestID:  requestID,
		TrackingID: strconv.FormatInt(requestID, 10),
		EntityHash: entityHash.String(),
	})
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	requestID, err := strconv.ParseInt(r.PathValue("requestID"), 10, 64)
	if err != nil {
		writeError(w, r, invalidInput("request id must be an integer"))
		return
	}

	record, err := s.ledger.GetByRequestID(r.Context(), requestID)
	if err != nil {
		if apperrors.HasCode(err, apperrors.CodeNotFound) {
			writeJSON(w, http.StatusOK, CancelResponse{Cancelled: false})
			return
		}
		writeError(w, r, err)
		return
	}
	if record.Requester != requestctx.RequesterFromContext(r.Context()) {
		writeError(w, r, apperrors.New(apperrors.CodeUnauthorized, "request belongs to another requester"))
		return
	}
	cancelled, err := s.ledger.Cancel(r.Context(), requestID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, CancelResponse{Cancelled: cancelled})
}

func (s *Server) handleRandomness(w http.ResponseWriter, r *http.Request) {
	entityHash, err := hashing.ParseDigest(r.PathValue("entityHash"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	resp := RandomnessResponse{
		EntityHash: entityHash.String(),
		Status:     randomness.StatusUnknown.String(),
		Randomness: "0",
	}
	record, err := s.ledger.GetByEntityHash(r.Context(), entityHash)
	switch {
	case err == nil && record.Fulfilled:
		resp.Status = randomness.StatusFulfilled.String()
		resp.Randomness = record.Randomness.Dec()
	case err == nil:
		resp.Status = randomness.StatusPending.String()
	case !apperrors.HasCode(err, apperrors.CodeNotFound):
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleRecord(w http.ResponseWriter, r *http.Request) {
	record, err := s.ledger.Lookup(r.Context(), r.PathValue("key"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, NewRecordResponse(record))
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	after, err := pagination.ParseCursor(query.Get("after"))
	if err != nil {
		writeError(w, r, invalidInput(err.Error()))
		return
	}
	pageSize, err := pagination.ParsePageSize(query.Get("page_size"), eventPageSize)
	if err != nil {
		writeError(w, r, invalidInput(err.Error()))
		return
	}
	page, err := s.ledger.ListEvents(r.Context(), ledger.EventQuery{
		Filter:   query.Get("filter"),
		AfterSeq: int64(after),
		PageSize: pageSize,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	resp := EventsResponse{
		Events:     make([]EventResponse, 0, len(page.Events)),
		NextCursor: page.NextCursor,
	}
	for _, event := range page.Events {
		resp.Events = append(resp.Events, NewEventResponse(event))
	}
	writeJSON(w, http.StatusOK, resp)
}

func invalidInput(reason string) error {
	return apperrors.WithMetadata(apperrors.CodeInvalidInput, reason, map[string]string{"Reason": reason})
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := apperrors.CodeOf(err)
	status := code.HTTPStatus()
	if status >= http.StatusInternalServerError {
		log.Printf("oracle api: %s %s: %v", r.Method, r.URL.Path, err)
	}
	writeJSON(w, status, ErrorResponse{
		Code:    string(code),
		Message: apperrors.UserMessage(err, requestLocale(r)),
	})
}

// requestLocale picks the first Accept-Language entry.
func requestLocale(r *http.Request) string {
	header := r.Header.Get("Accept-Language")
	first, _, _ := strings.Cut(header, ",")
	tag, _, _ := strings.Cut(first, ";")
	return strings.TrimSpace(tag)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
