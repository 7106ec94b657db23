package handlers_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/linesmerrill/resolveit-api/api"
	"github.com/linesmerrill/resolveit-api/api/handlers"
	"github.com/linesmerrill/resolveit-api/config"
	"github.com/linesmerrill/resolveit-api/databases/mocks"
	"github.com/linesmerrill/resolveit-api/models"
)

var fixedNow = time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC)

var (
	complainant = api.Identity{ID: primitive.NewObjectID().Hex(), Email: "asha@example.com", Role: models.UserRoleUser}
	stranger    = api.Identity{ID: primitive.NewObjectID().Hex(), Email: "ravi@example.com", Role: models.UserRoleUser}
	admin       = api.Identity{ID: primitive.NewObjectID().Hex(), Email: "admin@example.com", Role: models.UserRoleAdmin}
)

type testApp struct {
	*handlers.App
	cases    *mocks.CaseDatabase
	panels   *mocks.PanelDatabase
	users    *mocks.UserDatabase
	counters *mocks.CounterDatabase
}

func testConfig() config.Config {
	return config.Config{
		ClientURL:        "http://localhost:3000",
		Env:              "test",
		ConsentSecret:    "test-consent-secret",
		ConsentValidDays: 7,
		JWTSecret:        "test-jwt-secret",
		JWTTTL:           time.Hour,
		CaseNumberPrefix: "RIT",
		RequestTimeout:   5 * time.Second,
	}
}

func newTestApp(t *testing.T) *testApp {
	return newTestAppWithConfig(t, testConfig())
}

func newTestAppWithConfig(t *testing.T, cfg config.Config) *testApp {
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	ta := &testApp{
		cases:    &mocks.CaseDatabase{},
		panels:   &mocks.PanelDatabase{},
		users:    &mocks.UserDatabase{},
		counters: &mocks.CounterDatabase{},
	}
	ta.App = &handlers.App{
		Config:   cfg,
		Cases:    ta.cases,
		Panels:   ta.panels,
		Users:    ta.users,
		Counters: ta.counters,
		Metrics:  api.NewMetrics(prometheus.NewRegistry()),
		Clock:    func() time.Time { return fixedNow },
	}
	ta.Wire(ctx)
	t.Cleanup(ta.Hub.Close)
	return ta
}

func (ta *testApp) token(t *testing.T, id api.Identity) string {
	t.Helper()
	tok, _, err := ta.Auth.Sign(id)
	require.NoError(t, err)
	return tok
}

// do sends the request through the full router. A nil caller sends no token.
func (ta *testApp) do(t *testing.T, method, path, body string, caller *api.Identity) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	if caller != nil {
		req.Header.Set("Authorization", "Bearer "+ta.token(t, *caller))
	}
	rr := httptest.NewRecorder()
	ta.Router.ServeHTTP(rr, req)
	return rr
}

func errorCode(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	var body models.ErrorMessageResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body), rr.Body.String())
	return body.Response.Code
}

func decode(t *testing.T, rr *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), v), rr.Body.String())
}

func registeredCase(owner string) *models.Case {
	return &models.Case{
		ID: primitive.NewObjectID(),
		Details: models.CaseDetails{
			CaseNumber:  "RIT-2024-000001",
			CaseType:    "family",
			Title:       "Boundary wall dispute",
			Description: "The neighbour extended the wall two feet into our plot.",
			Complainant: owner,
			OppositeParty: models.OppositeParty{
				Name:  "Vikram Rao",
				Email: "vikram@example.com",
			},
			Status:    models.StatusRegistered,
			Documents: []models.DocumentItem{},
			Witnesses: []models.Witness{},
			Priority:  "medium",
			Tags:      []string{},
			CreatedAt: fixedNow.Add(-24 * time.Hour),
			UpdatedAt: fixedNow.Add(-24 * time.Hour),
		},
	}
}

func serve(ta *testApp, req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	ta.Router.ServeHTTP(rr, req)
	return rr
}
