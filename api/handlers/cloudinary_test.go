package handlers_test

import (
	"net/http"
	"net/url"
	"testing"

	cldapi "github.com/cloudinary/cloudinary-go/v2/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func cloudinaryApp(t *testing.T) *testApp {
	cfg := testConfig()
	cfg.CloudinaryCloudName = "resolveit-test"
	cfg.CloudinaryAPIKey = "123456789"
	cfg.CloudinaryAPISecret = "cloudinary-secret"
	return newTestAppWithConfig(t, cfg)
}

func TestCloudinary_GenerateSignature(t *testing.T) {
	ta := cloudinaryApp(t)
	c := registeredCase(complainant.ID)
	ta.cases.On("FindByID", mock.Anything, c.ID).Return(c, nil)

	rr := ta.do(t, "POST", "/api/v1/cases/"+c.ID.Hex()+"/documents/signature", "", &complainant)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var got struct {
		Timestamp string `json:"timestamp"`
		Signature string `json:"signature"`
		APIKey    string `json:"apiKey"`
		CloudName string `json:"cloudName"`
		Folder    string `json:"folder"`
	}
	decode(t, rr, &got)
	assert.Equal(t, "1710061200", got.Timestamp)
	assert.Equal(t, "resolveit/cases/RIT-2024-000001", got.Folder)
	assert.Equal(t, "123456789", got.APIKey)
	assert.Equal(t, "resolveit-test", got.CloudName)

	want, err := cldapi.SignParameters(url.Values{
		"timestamp": {got.Timestamp},
		"folder":    {got.Folder},
	}, "cloudinary-secret")
	require.NoError(t, err)
	assert.Equal(t, want, got.Signature)
	assert.NotContains(t, rr.Body.String(), "cloudinary-secret")
}

func TestCloudinary_GenerateSignatureNotOwner(t *testing.T) {
	ta := cloudinaryApp(t)
	c := registeredCase(complainant.ID)
	ta.cases.On("FindByID", mock.Anything, c.ID).Return(c, nil)

	rr := ta.do(t, "POST", "/api/v1/cases/"+c.ID.Hex()+"/documents/signature", "", &stranger)
	assert.Equal(t, http.StatusForbidden, rr.Code)
}

func TestCloudinary_GenerateSignatureNotConfigured(t *testing.T) {
	ta := newTestApp(t)

	rr := ta.do(t, "POST", "/api/v1/cases/65f0c0ffee0000000000000a/documents/signature", "", &complainant)
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	assert.Equal(t, "unavailable", errorCode(t, rr))
	ta.cases.AssertNotCalled(t, "FindByID", mock.Anything, mock.Anything)
}
