package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/linesmerrill/resolveit-api/config"
	"github.com/linesmerrill/resolveit-api/consent"
	"github.com/linesmerrill/resolveit-api/lifecycle"
)

type errorKind struct {
	target  error
	status  int
	code    string
	message string
}

// first match wins, so wrapped sentinels must come before the ones they wrap
var errorKinds = []errorKind{
	{lifecycle.ErrExpired, http.StatusGone, "expired", "consent link has expired"},
	{consent.ErrExpired, http.StatusGone, "expired", "consent link has expired"},
	{consent.ErrBadFormat, http.StatusBadRequest, "invalid_token", "invalid consent link"},
	{consent.ErrBadSignature, http.StatusBadRequest, "invalid_token", "invalid consent link"},
	{lifecycle.ErrMismatch, http.StatusBadRequest, "invalid_token", "invalid consent link"},
	{lifecycle.ErrAlreadyResponded, http.StatusConflict, "already_responded", "consent has already been given"},
	{lifecycle.ErrInvalidAction, http.StatusBadRequest, "invalid_action", "action must be accept or decline"},
	{lifecycle.ErrNotFound, http.StatusNotFound, "not_found", "not found"},
	{lifecycle.ErrForbidden, http.StatusForbidden, "forbidden", "not allowed"},
	{lifecycle.ErrInvalidStatus, http.StatusBadRequest, "invalid_status", "unknown case status"},
	{lifecycle.ErrInvalidTransition, http.StatusBadRequest, "invalid_transition", "status transition not allowed"},
	{lifecycle.ErrInvalidState, http.StatusBadRequest, "invalid_state", "operation not allowed in the current case status"},
	{lifecycle.ErrValidation, http.StatusBadRequest, "validation", "validation failed"},
	{lifecycle.ErrMissingContact, http.StatusBadRequest, "missing_contact", "opposite party has no email or phone"},
	{lifecycle.ErrConflict, http.StatusConflict, "conflict", "conflict"},
	{lifecycle.ErrInconsistent, http.StatusInternalServerError, "inconsistent", "panel was created but the case could not be updated"},
	{context.DeadlineExceeded, http.StatusGatewayTimeout, "timeout", "request timed out"},
}

// writeError maps err onto the error table and renders it. Anything unknown is a 500
// with the caller supplied message.
func writeError(w http.ResponseWriter, message string, err error) {
	for _, k := range errorKinds {
		if errors.Is(err, k.target) {
			config.ErrorCodeStatus(k.message, k.code, k.status, w, err)
			return
		}
	}
	config.ErrorCodeStatus(message, "internal", http.StatusInternalServerError, w, err)
}

func badRequest(w http.ResponseWriter, message string, err error) {
	config.ErrorCodeStatus(message, "bad_request", http.StatusBadRequest, w, err)
}
