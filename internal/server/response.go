package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/me/pipeweave/pkg/model"
)

// requestID generates a unique request identifier.
func requestID() string {
	return "req_" + uuid.New().String()[:8]
}

// respondOK writes a success response with the standard envelope.
func respondOK(w http.ResponseWriter, reqID string, data any) {
	respondJSON(w, http.StatusOK, reqID, data, nil)
}

// respondCreated writes a 201 response with the standard envelope.
func respondCreated(w http.ResponseWriter, reqID string, data any) {
	respondJSON(w, http.StatusCreated, reqID, data, nil)
}

// respondError writes an error response with the standard envelope.
func respondError(w http.ResponseWriter, reqID string, status int, planErr *model.PlanError) {
	respondJSON(w, status, reqID, nil, planErr)
}

// respondPlanError maps a planning error to the matching HTTP status.
func respondPlanError(w http.ResponseWriter, reqID string, err error) {
	var perr *model.PlanError
	if !errors.As(err, &perr) {
		perr = &model.PlanError{Code: "INTERNAL", Message: err.Error()}
		respondJSON(w, http.StatusInternalServerError, reqID, nil, perr)
		return
	}
	respondJSON(w, statusFor(perr.Code), reqID, nil, perr)
}

func statusFor(code model.ErrorCode) int {
	switch code {
	case model.ErrNotFound:
		return http.StatusNotFound
	case model.ErrConflict:
		return http.StatusConflict
	case model.ErrDefinition, model.ErrVariable, model.ErrReference, model.ErrNoValidBinding:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func respondJSON(w http.ResponseWriter, status int, reqID string, data any, planErr *model.PlanError) {
	resp := model.Response{
		RequestID: reqID,
		Timestamp: time.Now().UTC(),
		Data:      data,
		Error:     planErr,
	}
	if planErr != nil {
		resp.Status = "error"
	} else {
		resp.Status = "ok"
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(resp)
}
