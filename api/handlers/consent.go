package handlers

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/linesmerrill/resolveit-api/api"
	"github.com/linesmerrill/resolveit-api/lifecycle"
	"github.com/linesmerrill/resolveit-api/models"
)

// Consent serves the public routes the opposite party reaches through their link
type Consent struct {
	Engine *lifecycle.Engine
}

type consentRequest struct {
	Action string `json:"action"`
}

type consentResponse struct {
	Message    string            `json:"message"`
	CaseNumber string            `json:"caseNumber"`
	Response   string            `json:"response"`
	Status     models.CaseStatus `json:"status"`
}

// ConsentDetailsHandler shows the case summary behind a consent link
func (c Consent) ConsentDetailsHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	view, err := c.Engine.ConsentDetails(ctx, mux.Vars(r)["token"])
	if err != nil {
		writeError(w, "failed to load consent link", err)
		return
	}
	api.WriteJSON(w, http.StatusOK, view)
}

// ConsentRespondHandler records accept or decline and burns the link
func (c Consent) ConsentRespondHandler(w http.ResponseWriter, r *http.Request) {
	var req consentRequest
	if err := api.DecodeJSON(w, r, &req); err != nil {
		badRequest(w, "failed to decode request body", err)
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	updated, err := c.Engine.Consume(ctx, mux.Vars(r)["token"], req.Action)
	if err != nil {
		writeError(w, "failed to record consent", err)
		return
	}

	resp := consentResponse{
		CaseNumber: updated.Details.CaseNumber,
		Status:     updated.Details.Status,
	}
	if updated.Details.Consent != nil && updated.Details.Consent.Response != nil {
		resp.Response = *updated.Details.Consent.Response
	}
	if resp.Response == models.ConsentAccepted {
		resp.Message = "thank you, mediation will proceed"
	} else {
		resp.Message = "your response has been recorded"
	}
	api.WriteJSON(w, http.StatusOK, resp)
}
