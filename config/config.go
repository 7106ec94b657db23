package config

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/kelseyhightower/envconfig"
	"go.uber.org/zap"

	"github.com/linesmerrill/resolveit-api/models"
)

const (
	devConsentSecret = "dev-consent-secret"
	devJWTSecret     = "dev-jwt-secret"
)

// Config holds the project config values
type Config struct {
	URL          string `envconfig:"DB_URI" default:"mongodb://127.0.0.1:27017"`
	DatabaseName string `envconfig:"DB_NAME" default:"resolveit"`
	BaseURL      string `envconfig:"BASE_URL"`
	ClientURL    string `envconfig:"CLIENT_URL" default:"http://localhost:3000"`
	Port         string `envconfig:"PORT" default:"8080"`
	Env          string `envconfig:"ENV" default:"local"`

	// ConsentSecret signs opposite-party consent links. It is read once at
	// startup and never changes for the life of the process.
	ConsentSecret    string `envconfig:"CONSENT_SECRET" default:"dev-consent-secret"`
	ConsentValidDays int    `envconfig:"CONSENT_VALID_DAYS" default:"7"`

	JWTSecret string        `envconfig:"JWT_SECRET" default:"dev-jwt-secret"`
	JWTTTL    time.Duration `envconfig:"JWT_TTL" default:"168h"`

	SendgridAPIKey string `envconfig:"SENDGRID_API_KEY"`
	MailFrom       string `envconfig:"MAIL_FROM" default:"no-reply@resolveit.app"`
	MailFromName   string `envconfig:"MAIL_FROM_NAME" default:"ResolveIt"`

	CaseNumberPrefix  string `envconfig:"CASE_NUMBER_PREFIX" default:"RIT"`
	MongoTransactions bool   `envconfig:"MONGO_TRANSACTIONS" default:"false"`

	CloudinaryCloudName    string `envconfig:"CLOUDINARY_CLOUD_NAME"`
	CloudinaryAPIKey       string `envconfig:"CLOUDINARY_API_KEY"`
	CloudinaryAPISecret    string `envconfig:"CLOUDINARY_API_SECRET"`
	CloudinaryUploadPreset string `envconfig:"CLOUDINARY_UPLOAD_PRESET"`

	RequestTimeout time.Duration `envconfig:"REQUEST_TIMEOUT" default:"30s"`

	// stale consent digest: an empty schedule disables it, an empty recipient only logs
	DigestSchedule  string `envconfig:"DIGEST_SCHEDULE" default:"0 6 * * *"`
	DigestRecipient string `envconfig:"DIGEST_RECIPIENT"`
}

// New sets up all config related services
func New() (*Config, error) {
	c := &Config{}
	if err := envconfig.Process("", c); err != nil {
		return nil, err
	}

	//setup zap logger and replace default logger
	logger, err := setLogger(c.Env)
	if err != nil {
		return nil, err
	}
	_ = zap.ReplaceGlobals(logger)

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Validate rejects settings that are unsafe outside local development
func (c *Config) Validate() error {
	if c.ConsentValidDays <= 0 {
		return errors.New("CONSENT_VALID_DAYS must be positive")
	}
	if c.Env != "production" {
		return nil
	}
	if c.ConsentSecret == "" || c.ConsentSecret == devConsentSecret {
		return errors.New("CONSENT_SECRET must be set in production")
	}
	if c.JWTSecret == "" || c.JWTSecret == devJWTSecret {
		return errors.New("JWT_SECRET must be set in production")
	}
	return nil
}

// ErrorStatus is a useful function that will log, write http headers and body for a
// give message, status code and err
func ErrorStatus(message string, httpStatusCode int, w http.ResponseWriter, err error) {
	ErrorCodeStatus(message, "", httpStatusCode, w, err)
}

// ErrorCodeStatus is ErrorStatus with a machine readable code for clients that
// branch on the failure kind
func ErrorCodeStatus(message, code string, httpStatusCode int, w http.ResponseWriter, err error) {
	errText := ""
	if err != nil {
		errText = err.Error()
	}
	if httpStatusCode >= http.StatusInternalServerError {
		zap.S().Errorw(message, "error", err, "code", code)
	} else {
		zap.S().Debugw(message, "error", err, "code", code)
	}
	b, _ := json.Marshal(models.ErrorMessageResponse{Response: models.MessageError{
		Message: message,
		Error:   errText,
		Code:    code,
	}})
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(httpStatusCode)
	_, _ = w.Write(b)
}
