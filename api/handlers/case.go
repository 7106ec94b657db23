package handlers

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/linesmerrill/resolveit-api/api"
	"github.com/linesmerrill/resolveit-api/databases"
	"github.com/linesmerrill/resolveit-api/lifecycle"
	"github.com/linesmerrill/resolveit-api/models"
)

const (
	defaultPageLimit = 10
	maxPageLimit     = 100
)

// Case exported for testing purposes
type Case struct {
	Engine *lifecycle.Engine
	DB     databases.CaseDatabase
}

type documentsRequest struct {
	Documents []models.DocumentItem `json:"documents"`
}

// pageParams reads page and limit, falling back to the first page of ten
func pageParams(r *http.Request) (int, int) {
	page, err := strconv.Atoi(r.URL.Query().Get("page"))
	if err != nil || page < 1 {
		page = 1
	}
	limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || limit < 1 {
		limit = defaultPageLimit
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}
	return page, limit
}

func identity(r *http.Request) api.Identity {
	id, _ := api.IdentityFrom(r.Context())
	return id
}

// CreateCaseHandler registers a new case owned by the caller
func (c Case) CreateCaseHandler(w http.ResponseWriter, r *http.Request) {
	var input lifecycle.CaseInput
	if err := api.DecodeJSON(w, r, &input); err != nil {
		badRequest(w, "failed to decode request body", err)
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	created, err := c.Engine.CreateCase(ctx, input, identity(r).ID)
	if err != nil {
		writeError(w, "failed to create case", err)
		return
	}
	zap.S().Infow("case registered",
		"caseId", created.ID.Hex(),
		"caseNumber", created.Details.CaseNumber)
	api.WriteJSON(w, http.StatusCreated, created)
}

// MyCasesHandler lists the caller's own cases, newest first
func (c Case) MyCasesHandler(w http.ResponseWriter, r *http.Request) {
	page, limit := pageParams(r)
	q := r.URL.Query()
	filter := models.CaseFilter{
		Complainant: identity(r).ID,
		Status:      q.Get("status"),
		CaseType:    q.Get("caseType"),
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	list, err := c.DB.List(ctx, filter, page, limit)
	if err != nil {
		writeError(w, "failed to get cases", err)
		return
	}
	api.WriteJSON(w, http.StatusOK, list)
}

// CaseByIDHandler returns one case to its owner or an admin
func (c Case) CaseByIDHandler(w http.ResponseWriter, r *http.Request) {
	caseID := mux.Vars(r)["case_id"]
	zap.S().Debugf("case_id: %v", caseID)

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	found, err := c.Engine.Get(ctx, caseID)
	if err != nil {
		writeError(w, "failed to get case", err)
		return
	}
	caller := identity(r)
	if !caller.IsAdmin() && found.Details.Complainant != caller.ID {
		writeError(w, "failed to get case", lifecycle.ErrForbidden)
		return
	}
	api.WriteJSON(w, http.StatusOK, found)
}

// UpdateCaseHandler applies a partial update of the editable fields
func (c Case) UpdateCaseHandler(w http.ResponseWriter, r *http.Request) {
	var update lifecycle.CaseUpdate
	if err := api.DecodeJSON(w, r, &update); err != nil {
		badRequest(w, "failed to decode request body", err)
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	updated, err := c.Engine.UpdateDetails(ctx, mux.Vars(r)["case_id"], update, identity(r).Actor())
	if err != nil {
		writeError(w, "failed to update case", err)
		return
	}
	api.WriteJSON(w, http.StatusOK, updated)
}

// AddDocumentsHandler appends metadata of files the client already uploaded
func (c Case) AddDocumentsHandler(w http.ResponseWriter, r *http.Request) {
	var req documentsRequest
	if err := api.DecodeJSON(w, r, &req); err != nil {
		badRequest(w, "failed to decode request body", err)
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	updated, err := c.Engine.AddDocuments(ctx, mux.Vars(r)["case_id"], req.Documents, identity(r).Actor())
	if err != nil {
		writeError(w, "failed to add documents", err)
		return
	}
	api.WriteJSON(w, http.StatusOK, updated)
}
