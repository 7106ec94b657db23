package handlers

import (
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"time"

	cldapi "github.com/cloudinary/cloudinary-go/v2/api"
	"github.com/gorilla/mux"

	"github.com/linesmerrill/resolveit-api/api"
	"github.com/linesmerrill/resolveit-api/config"
	"github.com/linesmerrill/resolveit-api/lifecycle"
)

var errUploadsDisabled = errors.New("cloudinary credentials are not configured")

// CloudinaryHandler signs direct browser uploads of case documents
type CloudinaryHandler struct {
	Engine       *lifecycle.Engine
	CloudName    string
	APIKey       string
	APISecret    string
	UploadPreset string
	Clock        func() time.Time
}

type signatureResponse struct {
	Timestamp    string `json:"timestamp"`
	Signature    string `json:"signature"`
	APIKey       string `json:"apiKey"`
	CloudName    string `json:"cloudName"`
	Folder       string `json:"folder"`
	UploadPreset string `json:"uploadPreset,omitempty"`
}

// GenerateSignature signs an upload into the case's own folder. Only the
// complainant may upload.
func (c CloudinaryHandler) GenerateSignature(w http.ResponseWriter, r *http.Request) {
	if c.APISecret == "" {
		config.ErrorCodeStatus("document uploads are not available", "unavailable", http.StatusServiceUnavailable, w, errUploadsDisabled)
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	found, err := c.Engine.Get(ctx, mux.Vars(r)["case_id"])
	if err != nil {
		writeError(w, "failed to get case", err)
		return
	}
	if found.Details.Complainant != identity(r).ID {
		writeError(w, "failed to sign upload", lifecycle.ErrForbidden)
		return
	}

	now := time.Now()
	if c.Clock != nil {
		now = c.Clock()
	}
	resp := signatureResponse{
		Timestamp:    strconv.FormatInt(now.Unix(), 10),
		APIKey:       c.APIKey,
		CloudName:    c.CloudName,
		Folder:       "resolveit/cases/" + found.Details.CaseNumber,
		UploadPreset: c.UploadPreset,
	}
	params := url.Values{}
	params.Set("timestamp", resp.Timestamp)
	params.Set("folder", resp.Folder)
	if c.UploadPreset != "" {
		params.Set("upload_preset", c.UploadPreset)
	}
	resp.Signature, err = cldapi.SignParameters(params, c.APISecret)
	if err != nil {
		config.ErrorStatus("failed to sign upload", http.StatusInternalServerError, w, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, resp)
}
