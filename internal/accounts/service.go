package accounts

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/h4ev/formgate/internal/auth"
	"github.com/h4ev/formgate/internal/models"
)

const maxNameLength = 150

type CreateInput struct {
	Username  string `json:"username"`
	Password  string `json:"password"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Role      *int   `json:"role"`
}

var _ auth.IdentityLookup = (*Service)(nil)

type Service struct {
	store Store
	log   *logrus.Entry
	now   func() time.Time
}

func NewService(logger *logrus.Logger, store Store) *Service {
	return &Service{
		store: store,
		log:   logger.WithField("component", "accounts"),
		now:   time.Now,
	}
}

func (in CreateInput) validate() *ValidationError {
	verr := &ValidationError{}

	switch {
	case in.Username == "":
		verr.add("username", "This field is required.")
	case len(in.Username) > maxNameLength:
		verr.add("username", fmt.Sprintf("Ensure this field has no more than %d characters.", maxNameLength))
	default:
		if addr, err := mail.ParseAddress(in.Username); err != nil || addr.Address != in.Username {
			verr.add("username", "Enter a valid email address.")
		}
	}

	switch {
	case in.Password == "":
		verr.add("password", "This field is required.")
	case len(in.Password) > auth.MaxPasswordBytes:
		verr.add("password", fmt.Sprintf("Ensure this field has no more than %d bytes.", auth.MaxPasswordBytes))
	}
	if len(in.FirstName) > maxNameLength {
		verr.add("first_name", fmt.Sprintf("Ensure this field has no more than %d characters.", maxNameLength))
	}
	if len(in.LastName) > maxNameLength {
		verr.add("last_name", fmt.Sprintf("Ensure this field has no more than %d characters.", maxNameLength))
	}
	if in.Role != nil && *in.Role < 0 {
		verr.add("role", "Ensure this value is greater than or equal to 0.")
	}

	if verr.empty() {
		return nil
	}
	return verr
}

// Create registers a new account. It returns a *ValidationError for bad
// input and ErrAlreadyExists when the username is taken.
func (s *Service) Create(ctx context.Context, in CreateInput) (*models.User, error) {
	if verr := in.validate(); verr != nil {
		return nil, verr
	}

	if _, err := s.store.FindByUsername(ctx, in.Username); err == nil {
		return nil, ErrAlreadyExists
	} else if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &models.User{
		Username:   in.Username,
		Password:   hash,
		FirstName:  in.FirstName,
		LastName:   in.LastName,
		Email:      in.Username,
		Role:       in.Role,
		IsActive:   true,
		DateJoined: s.now(),
	}
	if err := s.store.Create(ctx, user); err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{"user_id": user.ID, "username": user.Username}).Info("User created")
	return user, nil
}

// Authenticate checks username and password.
func (s *Service) Authenticate(ctx context.Context, username, password string) (*models.User, error) {
	user, err := s.store.FindByUsername(ctx, username)
	if errors.Is(err, ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if auth.CheckPassword(user.Password, password) != nil {
		return nil, ErrInvalidCredentials
	}
	if !user.IsActive {
		return nil, ErrInactive
	}

	now := s.now()
	if err := s.store.TouchLastLogin(ctx, user.ID, now); err != nil {
		s.log.WithError(err).WithField("user_id", user.ID).Warn("Failed to update last login")
	} else {
		user.LastLogin = &now
	}
	return user, nil
}

func (s *Service) Get(ctx context.Context, id uint) (*models.User, error) {
	return s.store.FindByID(ctx, id)
}

func (s *Service) List(ctx context.Context) ([]models.User, error) {
	return s.store.List(ctx)
}

func (s *Service) Delete(ctx context.Context, id uint) error {
	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}
	s.log.WithField("user_id", id).Info("User deleted")
	return nil
}

// LookupIdentity resolves the identity of an active account.
func (s *Service) LookupIdentity(ctx context.Context, userID uint) (*auth.Identity, error) {
	user, err := s.store.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !user.IsActive {
		return nil, ErrInactive
	}
	return IdentityOf(user), nil
}

func IdentityOf(user *models.User) *auth.Identity {
	return &auth.Identity{UserID: user.ID, Username: user.Username, Role: user.Role}
}
