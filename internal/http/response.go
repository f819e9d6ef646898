package httpserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/Clark-Hu/movie-reviews/internal/apperr"
)

const maxRequestBody = 1 << 20 // 1 MiB

type errorResponse struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

type messageResponse struct {
	Message string `json:"message"`
	MovieID string `json:"movieId,omitempty"`
}

func decodeJSONBody(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return err
	}
	return nil
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload != nil {
		if err := json.NewEncoder(w).Encode(payload); err != nil {
			s.logger.Error().Err(err).Msg("failed to encode response")
		}
	}
}

func (s *Server) respondError(w http.ResponseWriter, status int, code, message string) {
	s.respondJSON(w, status, errorResponse{
		Code:    code,
		Message: message,
	})
}

// respondAppError renders a service error. Store failures are logged with
// their cause; clients only see the safe message.
func (s *Server) respondAppError(w http.ResponseWriter, r *http.Request, err error) {
	appErr, ok := apperr.As(err)
	if !ok {
		appErr = apperr.Store(err, "Internal server error")
	}
	if appErr.Kind == apperr.KindStore {
		s.requestLogger(r).Error().Err(appErr.Err).Str("route", r.URL.Path).Msg(appErr.Message)
	}
	resp := errorResponse{Code: appErr.Code, Message: appErr.Message}
	if len(appErr.Fields) > 0 {
		resp.Details = appErr.Fields
	}
	s.respondJSON(w, appErr.HTTPStatus(), resp)
}

func (s *Server) respondDecodeError(w http.ResponseWriter, err error) {
	var syntaxError *json.SyntaxError
	var typeError *json.UnmarshalTypeError
	var maxBytesError *http.MaxBytesError
	switch {
	case errors.As(err, &syntaxError), errors.Is(err, io.ErrUnexpectedEOF):
		s.respondError(w, http.StatusBadRequest, apperr.CodeValidation, "Malformed JSON payload")
	case errors.As(err, &typeError):
		s.respondError(w, http.StatusBadRequest, apperr.CodeValidation, fmt.Sprintf("Invalid value for field %s", typeError.Field))
	case errors.As(err, &maxBytesError):
		s.respondError(w, http.StatusRequestEntityTooLarge, apperr.CodeValidation, "Request body too large")
	case errors.Is(err, io.EOF):
		s.respondError(w, http.StatusBadRequest, apperr.CodeValidation, "Request body cannot be empty")
	default:
		s.respondError(w, http.StatusBadRequest, apperr.CodeValidation, "Unable to parse request body")
	}
}

// requestLogger prefers the request-scoped logger installed by the access
// log middleware.
func (s *Server) requestLogger(r *http.Request) *zerolog.Logger {
	if l := zerolog.Ctx(r.Context()); l.GetLevel() != zerolog.Disabled {
		return l
	}
	return &s.logger
}
