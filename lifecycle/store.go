package lifecycle

import (
	"context"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/linesmerrill/resolveit-api/models"
)

// CaseStore persists cases. Save must fail with databases.ErrStaleVersion when the
// stored version no longer matches c.Version.
type CaseStore interface {
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.Case, error)
	Insert(ctx context.Context, c *models.Case) error
	Save(ctx context.Context, c *models.Case) error
}

// PanelStore persists panels
type PanelStore interface {
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.Panel, error)
	FindByCase(ctx context.Context, caseID primitive.ObjectID) (*models.Panel, error)
	Insert(ctx context.Context, p *models.Panel) error
	Save(ctx context.Context, p *models.Panel) error
}

// Sequencer hands out increasing numbers per key
type Sequencer interface {
	Next(ctx context.Context, key string) (int64, error)
}

// Directory answers who a user is. ResolveUsers leaves unknown ids out of the map.
type Directory interface {
	ResolveUsers(ctx context.Context, ids []string) (map[string]string, error)
	FindByRole(ctx context.Context, role string) ([]models.User, error)
}

// Invite is what the opposite party receives
type Invite struct {
	Email         string
	Phone         string
	URL           string
	CaseNumber    string
	RecipientName string
}

// Notifier delivers consent invites. Errors are logged by the caller, never returned.
type Notifier interface {
	Send(ctx context.Context, invite Invite) error
}

// Publisher emits best-effort live events
type Publisher interface {
	Publish(event string, payload interface{}) error
}

// TxRunner runs fn in a storage transaction. The ctx passed to fn must be used for
// every write that should join it.
type TxRunner interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// Event names
const (
	EventStatusChanged    = "case_status_changed"
	EventConsentResponded = "consent_responded"
)

// StatusChange is the payload of EventStatusChanged
type StatusChange struct {
	CaseID     string            `json:"caseId"`
	CaseNumber string            `json:"caseNumber"`
	From       models.CaseStatus `json:"from"`
	To         models.CaseStatus `json:"to"`
	Actor      string            `json:"actor,omitempty"`

	Complainant string `json:"-"`
}

// ConsentResponse is the payload of EventConsentResponded
type ConsentResponse struct {
	CaseID     string `json:"caseId"`
	CaseNumber string `json:"caseNumber"`
	Response   string `json:"response"`

	Complainant string `json:"-"`
}

// Owner is the user the case belongs to
func (s StatusChange) Owner() string { return s.Complainant }

// Owner is the user the case belongs to
func (r ConsentResponse) Owner() string { return r.Complainant }

// Actor is the authenticated caller of an operation
type Actor struct {
	ID   string
	Role string
}

// IsAdmin reports whether the actor holds the admin role
func (a Actor) IsAdmin() bool {
	return a.Role == models.UserRoleAdmin
}
