package handlers

import (
	"fmt"
	"net/http"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/linesmerrill/resolveit-api/api"
	"github.com/linesmerrill/resolveit-api/config"
	"github.com/linesmerrill/resolveit-api/databases"
	"github.com/linesmerrill/resolveit-api/lifecycle"
	"github.com/linesmerrill/resolveit-api/models"
)

const minPasswordLength = 8

// User handles account registration
type User struct {
	DB    databases.UserDatabase
	Clock func() time.Time
}

type registerRequest struct {
	Name     string         `json:"name"`
	Email    string         `json:"email"`
	Phone    string         `json:"phone"`
	Password string         `json:"password"`
	Address  models.Address `json:"address"`
}

type registerResponse struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

func (req *registerRequest) validate() []string {
	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.Phone = strings.TrimSpace(req.Phone)

	var problems []string
	if n := utf8.RuneCountInString(req.Name); n < 2 || n > 50 {
		problems = append(problems, "name must be between 2 and 50 characters long")
	}
	if !lifecycle.ValidEmail(req.Email) {
		problems = append(problems, "please enter a valid email address")
	}
	if !strongPassword(req.Password) {
		problems = append(problems, fmt.Sprintf("password must be at least %d characters and contain upper and lower case letters, a digit and a symbol", minPasswordLength))
	}
	return problems
}

func strongPassword(p string) bool {
	if utf8.RuneCountInString(p) < minPasswordLength {
		return false
	}
	var lower, upper, digit, symbol bool
	for _, r := range p {
		switch {
		case unicode.IsLower(r):
			lower = true
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsDigit(r):
			digit = true
		case strings.ContainsRune("!@#$%^&*", r):
			symbol = true
		}
	}
	return lower && upper && digit && symbol
}

// RegisterHandler creates a regular user account
func (u User) RegisterHandler(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := api.DecodeJSON(w, r, &req); err != nil {
		badRequest(w, "failed to decode request body", err)
		return
	}
	if problems := req.validate(); len(problems) > 0 {
		config.ErrorCodeStatus("validation failed", "validation", http.StatusBadRequest, w,
			fmt.Errorf("%s", strings.Join(problems, "; ")))
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		config.ErrorStatus("failed to hash password", http.StatusInternalServerError, w, err)
		return
	}

	now := time.Now()
	if u.Clock != nil {
		now = u.Clock()
	}
	user := &models.User{Details: models.UserDetails{
		Name:         req.Name,
		Email:        req.Email,
		Phone:        req.Phone,
		PasswordHash: string(hash),
		Role:         models.UserRoleUser,
		Address:      req.Address,
		CreatedAt:    now,
		UpdatedAt:    now,
	}}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	if err := u.DB.Insert(ctx, user); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			config.ErrorCodeStatus("user with this email already exists", "conflict", http.StatusConflict, w, err)
			return
		}
		config.ErrorStatus("failed to create user", http.StatusInternalServerError, w, err)
		return
	}
	zap.S().Infow("user registered", "userId", user.ID.Hex())
	api.WriteJSON(w, http.StatusCreated, registerResponse{
		ID:    user.ID.Hex(),
		Name:  user.Details.Name,
		Email: user.Details.Email,
		Role:  user.Details.Role,
	})
}
