package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// CaseStatus is one of the fixed lifecycle states of a case
type CaseStatus string

// Lifecycle states, in workflow order
const (
	StatusRegistered          CaseStatus = "registered"
	StatusUnderReview         CaseStatus = "under_review"
	StatusAwaitingResponse    CaseStatus = "awaiting_response"
	StatusAccepted            CaseStatus = "accepted"
	StatusWitnessNomination   CaseStatus = "witness_nomination"
	StatusPanelFormation      CaseStatus = "panel_formation"
	StatusMediationInProgress CaseStatus = "mediation_in_progress"
	StatusResolved            CaseStatus = "resolved"
	StatusUnresolved          CaseStatus = "unresolved"
	StatusCancelled           CaseStatus = "cancelled"
)

// CaseStatuses lists every lifecycle state in workflow order
var CaseStatuses = []CaseStatus{
	StatusRegistered,
	StatusUnderReview,
	StatusAwaitingResponse,
	StatusAccepted,
	StatusWitnessNomination,
	StatusPanelFormation,
	StatusMediationInProgress,
	StatusResolved,
	StatusUnresolved,
	StatusCancelled,
}

// Valid reports whether s is one of the known lifecycle states
func (s CaseStatus) Valid() bool {
	for _, known := range CaseStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// Case types and priorities accepted at registration
var (
	CaseTypes      = []string{"family", "business", "criminal", "civil", "other"}
	CasePriorities = []string{"low", "medium", "high", "urgent"}
)

// Witness sides
const (
	SideComplainant = "complainant"
	SideOpposite    = "opposite"
)

// Consent responses
const (
	ConsentAccepted = "accepted"
	ConsentDeclined = "declined"
)

// Case holds the structure for the cases collection in mongo
type Case struct {
	ID      primitive.ObjectID `json:"_id" bson:"_id"`
	Details CaseDetails        `json:"case" bson:"case"`
	Version int32              `json:"__v" bson:"__v"`
}

// CaseDetails holds the structure for the inner case details
type CaseDetails struct {
	CaseNumber  string `json:"caseNumber" bson:"caseNumber"`
	CaseType    string `json:"caseType" bson:"caseType"` // "family", "business", "criminal", "civil", "other"
	Title       string `json:"title" bson:"title"`
	Description string `json:"description" bson:"description"`

	// Parties
	Complainant   string        `json:"complainant" bson:"complainant"` // owning user id, never reassigned
	OppositeParty OppositeParty `json:"oppositeParty" bson:"oppositeParty"`

	// Legal
	IsInCourt    bool          `json:"isInCourt" bson:"isInCourt"`
	CourtDetails *CourtDetails `json:"courtDetails,omitempty" bson:"courtDetails,omitempty"`

	Status CaseStatus `json:"status" bson:"status"`

	Documents []DocumentItem `json:"documents" bson:"documents"`
	Witnesses []Witness      `json:"witnesses" bson:"witnesses"`

	// set once by panel creation
	PanelID *primitive.ObjectID `json:"panelId" bson:"panelId"`

	MediationSessions []MediationSession `json:"mediationSessions" bson:"mediationSessions"`
	Resolution        *Resolution        `json:"resolution,omitempty" bson:"resolution,omitempty"`

	// Communication
	OppositePartyNotified   bool       `json:"oppositePartyNotified" bson:"oppositePartyNotified"`
	OppositePartyResponse   string     `json:"oppositePartyResponse,omitempty" bson:"oppositePartyResponse,omitempty"`
	OppositePartyResponseAt *time.Time `json:"oppositePartyResponseAt,omitempty" bson:"oppositePartyResponseAt,omitempty"`

	Priority string   `json:"priority" bson:"priority"` // "low", "medium", "high", "urgent"
	Tags     []string `json:"tags" bson:"tags"`
	Notes    string   `json:"notes" bson:"notes"`

	Consent *Consent `json:"consent,omitempty" bson:"consent,omitempty"`

	// Audit trail
	History []CaseHistoryEntry `json:"history" bson:"history"`

	CreatedAt time.Time `json:"createdAt" bson:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt" bson:"updatedAt"`
}

// OppositeParty is the non-registering side of the dispute. They have no account.
type OppositeParty struct {
	Name    string  `json:"name" bson:"name"`
	Email   string  `json:"email,omitempty" bson:"email,omitempty"`
	Phone   string  `json:"phone,omitempty" bson:"phone,omitempty"`
	Address Address `json:"address" bson:"address"`
}

// HasContact reports whether the opposite party can be reached at all
func (o OppositeParty) HasContact() bool {
	return o.Email != "" || o.Phone != ""
}

// Address is a postal address
type Address struct {
	Street  string `json:"street" bson:"street"`
	City    string `json:"city" bson:"city"`
	ZipCode string `json:"zipCode" bson:"zipCode"`
}

// CourtDetails is only present when the dispute is also pending in court
type CourtDetails struct {
	CaseNumber    string `json:"caseNumber" bson:"caseNumber"`
	CourtName     string `json:"courtName" bson:"courtName"`
	FIRNumber     string `json:"firNumber" bson:"firNumber"`
	PoliceStation string `json:"policeStation" bson:"policeStation"`
}

// DocumentItem is metadata for a file stored outside the API
type DocumentItem struct {
	FileName     string    `json:"fileName" bson:"fileName"`
	OriginalName string    `json:"originalName" bson:"originalName"`
	FileType     string    `json:"fileType" bson:"fileType"` // "image", "video", "audio", "document"
	FileSize     int64     `json:"fileSize" bson:"fileSize"`
	URL          string    `json:"url,omitempty" bson:"url,omitempty"`
	UploadedAt   time.Time `json:"uploadedAt" bson:"uploadedAt"`
	UploadedBy   string    `json:"uploadedBy" bson:"uploadedBy"`
}

// Witness is nominated by either side and lives only inside its case
type Witness struct {
	ID       primitive.ObjectID `json:"_id" bson:"_id"`
	Name     string             `json:"name" bson:"name"`
	Email    string             `json:"email,omitempty" bson:"email,omitempty"`
	Phone    string             `json:"phone,omitempty" bson:"phone,omitempty"`
	Relation string             `json:"relation,omitempty" bson:"relation,omitempty"`
	Side     string             `json:"side" bson:"side"` // "complainant", "opposite"
}

// Consent tracks the one-time link sent to the opposite party
type Consent struct {
	Token       *string    `json:"-" bson:"token"`
	ExpiresAt   *time.Time `json:"expiresAt" bson:"expiresAt"`
	RespondedAt *time.Time `json:"respondedAt" bson:"respondedAt"`
	Response    *string    `json:"response" bson:"response"` // "accepted", "declined" or nil
}

// MediationSession records a scheduled mediation meeting
type MediationSession struct {
	ScheduledAt time.Time `json:"scheduledAt" bson:"scheduledAt"`
	Duration    int       `json:"duration" bson:"duration"` // minutes
	Attendees   []string  `json:"attendees" bson:"attendees"`
	Notes       string    `json:"notes,omitempty" bson:"notes,omitempty"`
	Outcome     string    `json:"outcome,omitempty" bson:"outcome,omitempty"`
}

// Resolution holds the agreed settlement, if any
type Resolution struct {
	Agreement string     `json:"agreement,omitempty" bson:"agreement,omitempty"`
	AgreedAt  *time.Time `json:"agreedAt,omitempty" bson:"agreedAt,omitempty"`
	AgreedBy  []string   `json:"agreedBy,omitempty" bson:"agreedBy,omitempty"`
	Document  string     `json:"document,omitempty" bson:"document,omitempty"`
}

// CaseHistoryEntry records a single event in the case lifecycle
type CaseHistoryEntry struct {
	Action     string     `json:"action" bson:"action"` // "registered", "status_changed", "witnesses_added", ...
	FromStatus CaseStatus `json:"fromStatus,omitempty" bson:"fromStatus,omitempty"`
	ToStatus   CaseStatus `json:"toStatus,omitempty" bson:"toStatus,omitempty"`
	UserID     string     `json:"userID,omitempty" bson:"userID,omitempty"`
	Notes      string     `json:"notes,omitempty" bson:"notes,omitempty"`
	Timestamp  time.Time  `json:"timestamp" bson:"timestamp"`
}

// CaseFilter narrows case listings. Empty fields are ignored.
type CaseFilter struct {
	Complainant string
	Status      string
	CaseType    string
	Priority    string
	Search      string // matched against title, case number and opposite party name
}

// CaseList is one page of cases plus the paging metadata
type CaseList struct {
	Cases       []Case `json:"cases"`
	CurrentPage int    `json:"currentPage"`
	TotalPages  int    `json:"totalPages"`
	TotalCases  int64  `json:"totalCases"`
	HasNextPage bool   `json:"hasNextPage"`
	HasPrevPage bool   `json:"hasPrevPage"`
}

// CountBucket is a single group-by result for dashboards
type CountBucket struct {
	Key   string `json:"_id" bson:"_id"`
	Count int64  `json:"count" bson:"count"`
}
