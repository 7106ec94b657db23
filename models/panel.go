package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Panel roles. A panel has exactly one member of each.
const (
	RoleLawyer    = "lawyer"
	RoleScholar   = "scholar"
	RoleCommunity = "community"
)

// PanelRoles lists the roles a complete panel must cover
var PanelRoles = []string{RoleLawyer, RoleScholar, RoleCommunity}

// Panel statuses
const (
	PanelCreated = "created"
	PanelActive  = "active"
)

// Panel holds the structure for the panels collection in mongo
type Panel struct {
	ID      primitive.ObjectID `json:"_id" bson:"_id"`
	Details PanelDetails       `json:"panel" bson:"panel"`
	Version int32              `json:"__v" bson:"__v"`
}

// PanelDetails holds the inner panel structure
type PanelDetails struct {
	Case      primitive.ObjectID `json:"case" bson:"case"` // unique: one panel per case
	Members   []PanelMember      `json:"members" bson:"members"`
	Status    string             `json:"status" bson:"status"` // "created", "active"
	CreatedAt time.Time          `json:"createdAt" bson:"createdAt"`
	UpdatedAt time.Time          `json:"updatedAt" bson:"updatedAt"`
}

// PanelMember pairs a panel-eligible user with the role they fill
type PanelMember struct {
	User string `json:"user" bson:"user"`
	Role string `json:"role" bson:"role"`
}
