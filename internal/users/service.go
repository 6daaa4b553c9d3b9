package users

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/text/secure/precis"

	"github.com/steward-admin/steward/internal/rbac"
	"github.com/steward-admin/steward/internal/shared"
)

// Validation messages surfaced to the operator.
const (
	msgNameRequired        = "Name is required."
	msgNameTooLongCreate   = "Name may not be greater than 60 characters."
	msgNameTooLongUpdate   = "Name may not be greater than 255 characters."
	msgEmailRequired       = "Email is required."
	msgEmailInvalid        = "Email must be a valid email address."
	msgEmailTaken          = "Email has already been taken."
	msgEmailTooLongCreate  = "Email may not be greater than 60 characters."
	msgEmailTooLongUpdate  = "Email may not be greater than 255 characters."
	msgUsernameInvalid     = "Username is invalid."
	msgUsernameTaken       = "Username has already been taken."
	msgPhoneTaken          = "Phone has already been taken."
	msgPasswordRequired    = "Password is required."
	msgPasswordTooShort    = "Password must be at least 6 characters."
	msgPasswordConfirm     = "Password confirmation does not match."
	msgRoleUnknownTemplate = "Role '%s' does not exist."
)

var validate = validator.New()

// usernameProfile folds case and rejects confusable or control characters so
// two visually identical usernames cannot coexist.
var usernameProfile = precis.UsernameCaseMapped

// RoleRef pairs a role id with its name for membership sync.
type RoleRef struct {
	ID   int64
	Name string
}

// NewUser is the resolved, validated payload handed to the repository.
type NewUser struct {
	Name         string
	Email        string
	Username     *string
	Phone        *string
	PasswordHash string
	RoleIDs      []int64
}

// UserUpdate is the resolved update payload. RoleIDs nil means membership is
// untouched.
type UserUpdate struct {
	Name     string
	Email    string
	Username *string
	Phone    *string
	RoleIDs  *[]int64
}

// RepositoryPort defines data access methods for users.
type RepositoryPort interface {
	List(ctx context.Context, excludeID int64) ([]ListItem, error)
	Get(ctx context.Context, id int64) (User, error)
	EmailTaken(ctx context.Context, email string, excludeID int64) (bool, error)
	UsernameTaken(ctx context.Context, username string, excludeID int64) (bool, error)
	PhoneTaken(ctx context.Context, phone string, excludeID int64) (bool, error)
	RolesByName(ctx context.Context, names []string) ([]RoleRef, error)
	RoleNames(ctx context.Context) ([]string, error)
	Create(ctx context.Context, in NewUser) (User, error)
	Update(ctx context.Context, id int64, in UserUpdate) error
	Delete(ctx context.Context, id int64, entry shared.AuditLog) error
}

// Service handles user business logic.
type Service struct {
	repo RepositoryPort
}

// NewService builds Service instance.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// List returns every account except the requesting actor's own, newest first.
func (s *Service) List(ctx context.Context) ([]ListItem, error) {
	var excludeID int64
	if actor := rbac.ActorFromContext(ctx); actor != nil {
		excludeID = actor.ID
	}
	return s.repo.List(ctx, excludeID)
}

// Get fetches one account with its role names.
func (s *Service) Get(ctx context.Context, id int64) (User, error) {
	return s.repo.Get(ctx, id)
}

// AssignableRoles returns the role names an account may be given.
func (s *Service) AssignableRoles(ctx context.Context) ([]string, error) {
	return s.repo.RoleNames(ctx)
}

// Create validates the input, hashes the password and persists the account
// with its role set in one transaction.
func (s *Service) Create(ctx context.Context, in CreateInput) (User, error) {
	verr := shared.NewValidationError()

	name := strings.TrimSpace(in.Name)
	switch {
	case name == "":
		verr.Add("name", msgNameRequired)
	case len(name) > 60:
		verr.Add("name", msgNameTooLongCreate)
	}

	email := strings.TrimSpace(in.Email)
	if err := s.checkEmail(ctx, verr, email, 60, msgEmailTooLongCreate, 0); err != nil {
		return User{}, err
	}

	username, err := s.checkUsername(ctx, verr, in.Username, 0)
	if err != nil {
		return User{}, err
	}
	phone, err := s.checkPhone(ctx, verr, in.Phone, 0)
	if err != nil {
		return User{}, err
	}

	switch {
	case in.Password == "":
		verr.Add("password", msgPasswordRequired)
	case len(in.Password) < 6:
		verr.Add("password", msgPasswordTooShort)
	case in.Password != in.PasswordConfirmation:
		verr.Add("password", msgPasswordConfirm)
	}

	roleIDs, err := s.resolveRoles(ctx, verr, in.Roles)
	if err != nil {
		return User{}, err
	}

	if err := verr.Err(); err != nil {
		return User{}, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return User{}, fmt.Errorf("users: hash password: %w", err)
	}

	user, err := s.repo.Create(ctx, NewUser{
		Name:         name,
		Email:        email,
		Username:     username,
		Phone:        phone,
		PasswordHash: string(hash),
		RoleIDs:      roleIDs,
	})
	if err != nil {
		return User{}, err
	}
	return user, nil
}

// Update validates and applies profile changes. The password is never
// altered by this path. When Roles is supplied the membership is replaced
// wholesale.
func (s *Service) Update(ctx context.Context, id int64, in UpdateInput) (User, error) {
	if _, err := s.repo.Get(ctx, id); err != nil {
		return User{}, err
	}

	verr := shared.NewValidationError()

	name := strings.TrimSpace(in.Name)
	switch {
	case name == "":
		verr.Add("name", msgNameRequired)
	case len(name) > 255:
		verr.Add("name", msgNameTooLongUpdate)
	}

	email := strings.TrimSpace(in.Email)
	if err := s.checkEmail(ctx, verr, email, 255, msgEmailTooLongUpdate, id); err != nil {
		return User{}, err
	}

	username, err := s.checkUsername(ctx, verr, in.Username, id)
	if err != nil {
		return User{}, err
	}
	phone, err := s.checkPhone(ctx, verr, in.Phone, id)
	if err != nil {
		return User{}, err
	}

	var roleIDs *[]int64
	if in.Roles != nil {
		resolved, err := s.resolveRoles(ctx, verr, *in.Roles)
		if err != nil {
			return User{}, err
		}
		if resolved == nil {
			resolved = []int64{}
		}
		roleIDs = &resolved
	}

	if err := verr.Err(); err != nil {
		return User{}, err
	}

	update := UserUpdate{Name: name, Email: email, Username: username, Phone: phone, RoleIDs: roleIDs}
	if err := s.repo.Update(ctx, id, update); err != nil {
		return User{}, err
	}
	return s.repo.Get(ctx, id)
}

// Delete removes the account after writing an audit entry in the same
// transaction. The requesting actor cannot delete their own account.
func (s *Service) Delete(ctx context.Context, id int64) error {
	user, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}

	actorLabel := shared.AuditActorSystem
	if actor := rbac.ActorFromContext(ctx); actor != nil {
		if actor.ID == id {
			return fmt.Errorf("self deletion refused: %w", shared.ErrForbidden)
		}
		actorLabel = strconv.FormatInt(actor.ID, 10)
	}

	entry := shared.AuditLog{
		Actor:    actorLabel,
		Action:   "user.deleted",
		Entity:   "user",
		EntityID: strconv.FormatInt(user.ID, 10),
		Meta: map[string]any{
			"user_id":    user.ID,
			"user_name":  user.Name,
			"user_email": user.Email,
		},
	}
	return s.repo.Delete(ctx, id, entry)
}

func (s *Service) checkEmail(ctx context.Context, verr *shared.ValidationError, email string, maxLen int, tooLong string, excludeID int64) error {
	switch {
	case email == "":
		verr.Add("email", msgEmailRequired)
		return nil
	case validate.Var(email, "email") != nil:
		verr.Add("email", msgEmailInvalid)
		return nil
	case len(email) > maxLen:
		verr.Add("email", tooLong)
		return nil
	}
	taken, err := s.repo.EmailTaken(ctx, email, excludeID)
	if err != nil {
		return fmt.Errorf("users: check email: %w", err)
	}
	if taken {
		verr.Add("email", msgEmailTaken)
	}
	return nil
}

// checkUsername normalizes the optional username and verifies uniqueness.
// Returns nil when the field was not supplied.
func (s *Service) checkUsername(ctx context.Context, verr *shared.ValidationError, raw string, excludeID int64) (*string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	username, err := usernameProfile.String(raw)
	if err != nil {
		verr.Add("username", msgUsernameInvalid)
		return nil, nil
	}
	taken, err := s.repo.UsernameTaken(ctx, username, excludeID)
	if err != nil {
		return nil, fmt.Errorf("users: check username: %w", err)
	}
	if taken {
		verr.Add("username", msgUsernameTaken)
	}
	return &username, nil
}

func (s *Service) checkPhone(ctx context.Context, verr *shared.ValidationError, raw string, excludeID int64) (*string, error) {
	phone := strings.TrimSpace(raw)
	if phone == "" {
		return nil, nil
	}
	taken, err := s.repo.PhoneTaken(ctx, phone, excludeID)
	if err != nil {
		return nil, fmt.Errorf("users: check phone: %w", err)
	}
	if taken {
		verr.Add("phone", msgPhoneTaken)
	}
	return &phone, nil
}

// resolveRoles maps role names to ids, rejecting unknown names and dropping
// duplicates.
func (s *Service) resolveRoles(ctx context.Context, verr *shared.ValidationError, names []string) ([]int64, error) {
	if len(names) == 0 {
		return nil, nil
	}
	resolved, err := s.repo.RolesByName(ctx, names)
	if err != nil {
		return nil, fmt.Errorf("users: resolve roles: %w", err)
	}
	byName := make(map[string]int64, len(resolved))
	for _, r := range resolved {
		byName[strings.ToLower(r.Name)] = r.ID
	}

	var roleIDs []int64
	seen := make(map[int64]struct{}, len(names))
	for _, n := range names {
		id, ok := byName[strings.ToLower(strings.TrimSpace(n))]
		if !ok {
			verr.Add("roles", fmt.Sprintf(msgRoleUnknownTemplate, strings.TrimSpace(n)))
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		roleIDs = append(roleIDs, id)
	}
	return roleIDs, nil
}
