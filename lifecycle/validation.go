package lifecycle

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/linesmerrill/resolveit-api/models"
)

var (
	emailPattern = regexp.MustCompile(`^\w+([.-]?\w+)*@\w+([.-]?\w+)*(\.\w{2,3})+$`)
	phonePattern = regexp.MustCompile(`^[+]?[\d\s\-\(\)]{10,}$`)
)

// CaseInput is what a complainant submits to register a dispute
type CaseInput struct {
	Title         string                `json:"title"`
	Description   string                `json:"description"`
	CaseType      string                `json:"caseType"`
	Priority      string                `json:"priority"`
	Notes         string                `json:"notes"`
	Tags          []string              `json:"tags"`
	IsInCourt     bool                  `json:"isInCourt"`
	CourtDetails  *models.CourtDetails  `json:"courtDetails"`
	OppositeParty models.OppositeParty  `json:"oppositeParty"`
	Documents     []models.DocumentItem `json:"documents"`
}

// CaseUpdate carries the editable case fields. Nil fields are left alone.
type CaseUpdate struct {
	Title         *string              `json:"title"`
	Description   *string              `json:"description"`
	CaseType      *string              `json:"caseType"`
	Priority      *string              `json:"priority"`
	Notes         *string              `json:"notes"`
	OppositeParty *OppositePartyUpdate `json:"oppositeParty"`
}

// OppositePartyUpdate is the partial form of models.OppositeParty
type OppositePartyUpdate struct {
	Name    *string         `json:"name"`
	Email   *string         `json:"email"`
	Phone   *string         `json:"phone"`
	Address *models.Address `json:"address"`
}

// WitnessInput is one nominated witness
type WitnessInput struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	Relation string `json:"relation"`
	Side     string `json:"side"`
}

func (in *CaseInput) normalize() {
	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)
	in.Notes = strings.TrimSpace(in.Notes)
	if in.Priority == "" {
		in.Priority = "medium"
	}
	in.OppositeParty.Name = strings.TrimSpace(in.OppositeParty.Name)
	in.OppositeParty.Email = strings.ToLower(strings.TrimSpace(in.OppositeParty.Email))
	in.OppositeParty.Phone = strings.TrimSpace(in.OppositeParty.Phone)
	if in.CourtDetails != nil {
		in.CourtDetails.CaseNumber = strings.TrimSpace(in.CourtDetails.CaseNumber)
		in.CourtDetails.CourtName = strings.TrimSpace(in.CourtDetails.CourtName)
	}
}

func (in CaseInput) validate() error {
	var problems []string
	problems = append(problems, checkLength("title", in.Title, 5, 200)...)
	problems = append(problems, checkLength("description", in.Description, 20, 2000)...)
	if !oneOf(in.CaseType, models.CaseTypes) {
		problems = append(problems, "caseType must be one of: "+strings.Join(models.CaseTypes, ", "))
	}
	if !oneOf(in.Priority, models.CasePriorities) {
		problems = append(problems, "priority must be one of: "+strings.Join(models.CasePriorities, ", "))
	}
	if utf8.RuneCountInString(in.Notes) > 1000 {
		problems = append(problems, "notes cannot exceed 1000 characters")
	}
	problems = append(problems, checkLength("oppositeParty.name", in.OppositeParty.Name, 2, 100)...)
	problems = append(problems, checkContact("oppositeParty", in.OppositeParty.Email, in.OppositeParty.Phone)...)

	if in.IsInCourt {
		if in.CourtDetails == nil || in.CourtDetails.CaseNumber == "" || in.CourtDetails.CourtName == "" {
			problems = append(problems, "courtDetails.caseNumber and courtDetails.courtName are required when the case is in court")
		}
	} else if in.CourtDetails != nil {
		problems = append(problems, "courtDetails is only allowed when the case is in court")
	}

	if len(problems) > 0 {
		return validationError(problems)
	}
	return nil
}

// apply validates u and writes it onto d
func (u CaseUpdate) apply(d *models.CaseDetails) error {
	var problems []string
	if u.Title != nil {
		t := strings.TrimSpace(*u.Title)
		problems = append(problems, checkLength("title", t, 5, 200)...)
		d.Title = t
	}
	if u.Description != nil {
		desc := strings.TrimSpace(*u.Description)
		problems = append(problems, checkLength("description", desc, 20, 2000)...)
		d.Description = desc
	}
	if u.CaseType != nil {
		if !oneOf(*u.CaseType, models.CaseTypes) {
			problems = append(problems, "caseType must be one of: "+strings.Join(models.CaseTypes, ", "))
		}
		d.CaseType = *u.CaseType
	}
	if u.Priority != nil {
		if !oneOf(*u.Priority, models.CasePriorities) {
			problems = append(problems, "priority must be one of: "+strings.Join(models.CasePriorities, ", "))
		}
		d.Priority = *u.Priority
	}
	if u.Notes != nil {
		n := strings.TrimSpace(*u.Notes)
		if utf8.RuneCountInString(n) > 1000 {
			problems = append(problems, "notes cannot exceed 1000 characters")
		}
		d.Notes = n
	}
	if op := u.OppositeParty; op != nil {
		if op.Name != nil {
			name := strings.TrimSpace(*op.Name)
			problems = append(problems, checkLength("oppositeParty.name", name, 2, 100)...)
			d.OppositeParty.Name = name
		}
		if op.Email != nil {
			d.OppositeParty.Email = strings.ToLower(strings.TrimSpace(*op.Email))
		}
		if op.Phone != nil {
			d.OppositeParty.Phone = strings.TrimSpace(*op.Phone)
		}
		if op.Address != nil {
			d.OppositeParty.Address = *op.Address
		}
		problems = append(problems, checkContact("oppositeParty", d.OppositeParty.Email, d.OppositeParty.Phone)...)
	}
	if len(problems) > 0 {
		return validationError(problems)
	}
	return nil
}

func (w WitnessInput) validate(i int) []string {
	var problems []string
	if strings.TrimSpace(w.Name) == "" {
		problems = append(problems, fmt.Sprintf("witnesses[%d].name is required", i))
	}
	if w.Side != models.SideComplainant && w.Side != models.SideOpposite {
		problems = append(problems, fmt.Sprintf("witnesses[%d].side must be complainant or opposite", i))
	}
	return problems
}

func checkLength(field, v string, min, max int) []string {
	n := utf8.RuneCountInString(v)
	switch {
	case n == 0:
		return []string{field + " is required"}
	case n < min:
		return []string{fmt.Sprintf("%s must be at least %d characters long", field, min)}
	case n > max:
		return []string{fmt.Sprintf("%s cannot exceed %d characters", field, max)}
	}
	return nil
}

func checkContact(prefix, email, phone string) []string {
	var problems []string
	if email != "" && !emailPattern.MatchString(email) {
		problems = append(problems, prefix+".email is not a valid email address")
	}
	if phone != "" && !phonePattern.MatchString(phone) {
		problems = append(problems, prefix+".phone is not a valid phone number")
	}
	return problems
}

// ValidEmail reports whether s looks like an email address
func ValidEmail(s string) bool {
	return emailPattern.MatchString(s)
}

func oneOf(v string, allowed []string) bool {
	for _, a := range allowed {
		if v == a {
			return true
		}
	}
	return false
}
