package handlers

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.mongodb.org/mongo-driver/bson"
	"go.uber.org/zap"

	"github.com/linesmerrill/resolveit-api/api"
	"github.com/linesmerrill/resolveit-api/databases"
	"github.com/linesmerrill/resolveit-api/lifecycle"
	"github.com/linesmerrill/resolveit-api/models"
)

// cases created within this window count as recent on the dashboard
const recentWindow = 30 * 24 * time.Hour

// activeStatuses are the states counted as open work on the dashboard
var activeStatuses = []models.CaseStatus{
	models.StatusRegistered,
	models.StatusUnderReview,
	models.StatusAwaitingResponse,
	models.StatusAccepted,
	models.StatusWitnessNomination,
	models.StatusPanelFormation,
	models.StatusMediationInProgress,
}

// Admin represents the admin handler
type Admin struct {
	Engine *lifecycle.Engine
	Panels *lifecycle.PanelService
	DB     databases.CaseDatabase
	UDB    databases.UserDatabase
	Clock  func() time.Time
}

type statusRequest struct {
	Status string `json:"status"`
	Notes  string `json:"notes"`
}

type witnessesRequest struct {
	Witnesses []lifecycle.WitnessInput `json:"witnesses"`
}

type panelRequest struct {
	Members []lifecycle.MemberInput `json:"members"`
}

type notifyResponse struct {
	Message string       `json:"message"`
	Case    *models.Case `json:"case"`
}

type statsOverview struct {
	TotalCases    int64 `json:"totalCases"`
	TotalUsers    int64 `json:"totalUsers"`
	ActiveCases   int64 `json:"activeCases"`
	ResolvedCases int64 `json:"resolvedCases"`
	RecentCases   int64 `json:"recentCases"`
}

type statsBreakdowns struct {
	ByStatus   []models.CountBucket `json:"byStatus"`
	ByType     []models.CountBucket `json:"byType"`
	ByPriority []models.CountBucket `json:"byPriority"`
}

type statsResponse struct {
	Overview   statsOverview   `json:"overview"`
	Breakdowns statsBreakdowns `json:"breakdowns"`
}

func (h Admin) now() time.Time {
	if h.Clock != nil {
		return h.Clock()
	}
	return time.Now()
}

// CasesHandler lists every case with optional status, type, priority and text filters
func (h Admin) CasesHandler(w http.ResponseWriter, r *http.Request) {
	page, limit := pageParams(r)
	q := r.URL.Query()
	filter := models.CaseFilter{
		Status:   q.Get("status"),
		CaseType: q.Get("caseType"),
		Priority: q.Get("priority"),
		Search:   q.Get("search"),
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	list, err := h.DB.List(ctx, filter, page, limit)
	if err != nil {
		writeError(w, "failed to get cases", err)
		return
	}
	api.WriteJSON(w, http.StatusOK, list)
}

// StatsHandler returns the dashboard counters and the per field breakdowns
func (h Admin) StatsHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	var (
		resp statsResponse
		err  error
	)
	counts := []struct {
		dst    *int64
		filter bson.M
	}{
		{&resp.Overview.TotalCases, bson.M{}},
		{&resp.Overview.ActiveCases, bson.M{"case.status": bson.M{"$in": activeStatuses}}},
		{&resp.Overview.ResolvedCases, bson.M{"case.status": models.StatusResolved}},
		{&resp.Overview.RecentCases, bson.M{"case.createdAt": bson.M{"$gte": h.now().Add(-recentWindow)}}},
	}
	for _, c := range counts {
		if *c.dst, err = h.DB.CountDocuments(ctx, c.filter); err != nil {
			writeError(w, "failed to count cases", err)
			return
		}
	}
	if resp.Overview.TotalUsers, err = h.UDB.Count(ctx); err != nil {
		writeError(w, "failed to count users", err)
		return
	}

	breakdowns := []struct {
		dst   *[]models.CountBucket
		field string
	}{
		{&resp.Breakdowns.ByStatus, "status"},
		{&resp.Breakdowns.ByType, "caseType"},
		{&resp.Breakdowns.ByPriority, "priority"},
	}
	for _, b := range breakdowns {
		if *b.dst, err = h.DB.Breakdown(ctx, b.field); err != nil {
			writeError(w, "failed to aggregate cases", err)
			return
		}
	}
	api.WriteJSON(w, http.StatusOK, resp)
}

// UpdateStatusHandler moves a case to a new status
func (h Admin) UpdateStatusHandler(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if err := api.DecodeJSON(w, r, &req); err != nil {
		badRequest(w, "failed to decode request body", err)
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	updated, err := h.Engine.Transition(ctx, mux.Vars(r)["case_id"], req.Status, req.Notes, identity(r).Actor())
	if err != nil {
		writeError(w, "failed to update case status", err)
		return
	}
	api.WriteJSON(w, http.StatusOK, updated)
}

// AddWitnessesHandler nominates witnesses for a case
func (h Admin) AddWitnessesHandler(w http.ResponseWriter, r *http.Request) {
	var req witnessesRequest
	if err := api.DecodeJSON(w, r, &req); err != nil {
		badRequest(w, "failed to decode request body", err)
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	updated, err := h.Engine.AddWitnesses(ctx, mux.Vars(r)["case_id"], req.Witnesses, identity(r).Actor())
	if err != nil {
		writeError(w, "failed to add witnesses", err)
		return
	}
	api.WriteJSON(w, http.StatusOK, updated)
}

// RemoveWitnessHandler drops one witness from a case
func (h Admin) RemoveWitnessHandler(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	updated, err := h.Engine.RemoveWitness(ctx, vars["case_id"], vars["witness_id"], identity(r).Actor())
	if err != nil {
		writeError(w, "failed to remove witness", err)
		return
	}
	api.WriteJSON(w, http.StatusOK, updated)
}

// NotifyHandler sends the opposite party a fresh consent link
func (h Admin) NotifyHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	updated, err := h.Engine.NotifyOppositeParty(ctx, mux.Vars(r)["case_id"], identity(r).Actor())
	if err != nil {
		writeError(w, "failed to notify opposite party", err)
		return
	}
	api.WriteJSON(w, http.StatusOK, notifyResponse{
		Message: "opposite party notified",
		Case:    updated,
	})
}

// CreatePanelHandler forms the mediation panel of a case
func (h Admin) CreatePanelHandler(w http.ResponseWriter, r *http.Request) {
	var req panelRequest
	if err := api.DecodeJSON(w, r, &req); err != nil {
		badRequest(w, "failed to decode request body", err)
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	panel, err := h.Panels.CreatePanel(ctx, mux.Vars(r)["case_id"], req.Members, identity(r).Actor())
	if err != nil {
		writeError(w, "failed to create panel", err)
		return
	}
	zap.S().Infow("panel created",
		"panelId", panel.ID.Hex(),
		"caseId", panel.Details.Case.Hex())
	api.WriteJSON(w, http.StatusCreated, panel)
}

// ActivatePanelHandler starts mediation with a formed panel
func (h Admin) ActivatePanelHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	panel, err := h.Panels.ActivatePanel(ctx, mux.Vars(r)["panel_id"], identity(r).Actor())
	if err != nil {
		writeError(w, "failed to activate panel", err)
		return
	}
	api.WriteJSON(w, http.StatusOK, panel)
}

// PanelMembersHandler lists accounts that can sit on a panel, optionally for one role
func (h Admin) PanelMembersHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	candidates, err := h.Panels.CandidateMembers(ctx, r.URL.Query().Get("role"))
	if err != nil {
		writeError(w, "failed to get panel members", err)
		return
	}
	api.WriteJSON(w, http.StatusOK, candidates)
}
