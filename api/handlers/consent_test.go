package handlers_test

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/linesmerrill/resolveit-api/consent"
	"github.com/linesmerrill/resolveit-api/models"
)

// awaitingConsent returns a case with an outstanding link and the raw token
func awaitingConsent(t *testing.T, ta *testApp) (*models.Case, string) {
	t.Helper()
	c := registeredCase(complainant.ID)
	c.Details.Status = models.StatusAwaitingResponse
	tok, exp, err := ta.Engine.Signer.Issue(c.ID.Hex(), 7)
	require.NoError(t, err)
	c.Details.Consent = &models.Consent{Token: &tok, ExpiresAt: &exp}
	c.Details.OppositePartyNotified = true
	return c, tok
}

func TestConsent_ConsentDetailsHandler(t *testing.T) {
	ta := newTestApp(t)
	c, tok := awaitingConsent(t, ta)
	ta.cases.On("FindByID", mock.Anything, c.ID).Return(c, nil)

	rr := ta.do(t, "GET", "/api/v1/public/consent/"+tok, "", nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var got struct {
		CaseNumber    string               `json:"caseNumber"`
		CaseType      string               `json:"caseType"`
		OppositeParty models.OppositeParty `json:"oppositeParty"`
	}
	decode(t, rr, &got)
	assert.Equal(t, "RIT-2024-000001", got.CaseNumber)
	assert.Equal(t, "family", got.CaseType)
	assert.Equal(t, "Vikram Rao", got.OppositeParty.Name)
	assert.NotContains(t, rr.Body.String(), complainant.ID)
}

func TestConsent_ConsentRespondHandlerAccept(t *testing.T) {
	ta := newTestApp(t)
	c, tok := awaitingConsent(t, ta)
	ta.cases.On("FindByID", mock.Anything, c.ID).Return(c, nil)
	ta.cases.On("Save", mock.Anything, mock.Anything).Return(nil).Once()

	rr := ta.do(t, "POST", "/api/v1/public/consent/"+tok, `{"action":"accept"}`, nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.JSONEq(t, `{
		"message": "thank you, mediation will proceed",
		"caseNumber": "RIT-2024-000001",
		"response": "accepted",
		"status": "accepted"
	}`, rr.Body.String())
	assert.Nil(t, c.Details.Consent.Token)
	assert.Equal(t, models.ConsentAccepted, c.Details.OppositePartyResponse)

	// the token is burned, a second answer is refused
	rr = ta.do(t, "POST", "/api/v1/public/consent/"+tok, `{"action":"decline"}`, nil)
	assert.Equal(t, http.StatusConflict, rr.Code)
	assert.Equal(t, "already_responded", errorCode(t, rr))
	ta.cases.AssertNumberOfCalls(t, "Save", 1)
}

func TestConsent_ConsentRespondHandlerDecline(t *testing.T) {
	ta := newTestApp(t)
	c, tok := awaitingConsent(t, ta)
	ta.cases.On("FindByID", mock.Anything, c.ID).Return(c, nil)
	ta.cases.On("Save", mock.Anything, mock.Anything).Return(nil)

	rr := ta.do(t, "POST", "/api/v1/public/consent/"+tok, `{"action":"decline"}`, nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Contains(t, rr.Body.String(), `"status":"unresolved"`)
	assert.Contains(t, rr.Body.String(), "your response has been recorded")

	metrics := ta.do(t, "GET", "/metrics", "", nil)
	assert.Contains(t, metrics.Body.String(), `resolveit_consent_responses_total{response="declined"} 1`)
}

func TestConsent_Rejected(t *testing.T) {
	past := consent.NewSigner("test-consent-secret", consent.WithClock(func() time.Time {
		return fixedNow.Add(-10 * 24 * time.Hour)
	}))
	foreign := consent.NewSigner("someone-elses-secret", consent.WithClock(func() time.Time { return fixedNow }))

	tests := []struct {
		name   string
		setup  func(t *testing.T, ta *testApp) string
		body   string
		status int
		code   string
	}{
		{
			name:   "garbage token",
			setup:  func(t *testing.T, ta *testApp) string { return "not-a-token" },
			body:   `{"action":"accept"}`,
			status: http.StatusBadRequest,
			code:   "invalid_token",
		},
		{
			name: "foreign signature",
			setup: func(t *testing.T, ta *testApp) string {
				c, _ := awaitingConsent(t, ta)
				tok, _, err := foreign.Issue(c.ID.Hex(), 7)
				require.NoError(t, err)
				return tok
			},
			body:   `{"action":"accept"}`,
			status: http.StatusBadRequest,
			code:   "invalid_token",
		},
		{
			name: "expired",
			setup: func(t *testing.T, ta *testApp) string {
				c, _ := awaitingConsent(t, ta)
				tok, _, err := past.Issue(c.ID.Hex(), 7)
				require.NoError(t, err)
				return tok
			},
			body:   `{"action":"accept"}`,
			status: http.StatusGone,
			code:   "expired",
		},
		{
			name: "replaced by a newer link",
			setup: func(t *testing.T, ta *testApp) string {
				c, _ := awaitingConsent(t, ta)
				older, _, err := ta.Engine.Signer.Issue(c.ID.Hex(), 7)
				require.NoError(t, err)
				ta.cases.On("FindByID", mock.Anything, c.ID).Return(c, nil)
				return older
			},
			body:   `{"action":"accept"}`,
			status: http.StatusBadRequest,
			code:   "invalid_token",
		},
		{
			name: "unknown action",
			setup: func(t *testing.T, ta *testApp) string {
				_, tok := awaitingConsent(t, ta)
				return tok
			},
			body:   `{"action":"maybe"}`,
			status: http.StatusBadRequest,
			code:   "invalid_action",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ta := newTestApp(t)
			tok := tt.setup(t, ta)

			rr := ta.do(t, "POST", "/api/v1/public/consent/"+tok, tt.body, nil)
			assert.Equal(t, tt.status, rr.Code, rr.Body.String())
			assert.Equal(t, tt.code, errorCode(t, rr))
			ta.cases.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
		})
	}
}

func TestConsent_ConsentDetailsHandlerAfterAnswer(t *testing.T) {
	ta := newTestApp(t)
	c, tok := awaitingConsent(t, ta)
	accepted := models.ConsentAccepted
	c.Details.Consent.Token = nil
	c.Details.Consent.Response = &accepted
	ta.cases.On("FindByID", mock.Anything, c.ID).Return(c, nil)

	rr := ta.do(t, "GET", "/api/v1/public/consent/"+tok, "", nil)
	assert.Equal(t, http.StatusConflict, rr.Code)
	assert.Equal(t, "already_responded", errorCode(t, rr))
}
