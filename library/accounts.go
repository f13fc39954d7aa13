package library

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/text/language"
)

// Session carries the signed-in user and the collation locale into every
// manager call. A nil Session or one without a user runs no library logic.
type Session struct {
	User   *User
	Locale language.Tag
}

// NewSession builds a session for u. An undefined locale falls back to English.
func NewSession(u *User, locale language.Tag) *Session {
	if locale == language.Und {
		locale = language.English
	}
	return &Session{User: u, Locale: locale}
}

// CurrentUser reports the signed-in user, if any.
func (s *Session) CurrentUser() (User, bool) {
	if s == nil || s.User == nil {
		return User{}, false
	}
	return *s.User, true
}

func (s *Session) userID() (string, error) {
	u, ok := s.CurrentUser()
	if !ok || u.ID == "" {
		return "", ErrNoUser
	}
	return u.ID, nil
}

func (s *Session) locale() language.Tag {
	if s == nil || s.Locale == language.Und {
		return language.English
	}
	return s.Locale
}

// Accounts is the local identity provider. Passwords are stored as bcrypt
// hashes in the users table of the same database as the records.
type Accounts struct {
	db *Database
}

// NewAccounts wraps db.
func NewAccounts(db *Database) *Accounts {
	return &Accounts{db: db}
}

// SignUp registers a new account. The email is normalised to lower case.
func (a *Accounts) SignUp(ctx context.Context, email, displayName, password string) (*User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, &ValidationError{Field: "email", Message: "must be a valid address"}
	}
	if len(password) < 6 {
		return nil, &ValidationError{Field: "password", Message: "must be at least 6 characters"}
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	u := &User{
		ID:           uuid.NewString(),
		Email:        email,
		DisplayName:  strings.TrimSpace(displayName),
		PasswordHash: string(hash),
	}
	if err := a.db.InsertUser(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

// SignIn checks the credentials and returns a session for the account.
func (a *Accounts) SignIn(ctx context.Context, email, password string, locale language.Tag) (*Session, error) {
	u, err := a.db.GetUserByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if errors.Is(err, ErrUserNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return NewSession(u, locale), nil
}

// UpdateProfile changes the display name of the signed-in user.
func (a *Accounts) UpdateProfile(ctx context.Context, sess *Session, displayName string) error {
	if _, err := sess.userID(); err != nil {
		return err
	}
	displayName = strings.TrimSpace(displayName)
	if displayName == "" {
		return &ValidationError{Field: "displayName", Message: "cannot be empty"}
	}
	updated := *sess.User
	updated.DisplayName = displayName
	if err := a.db.UpdateUser(ctx, &updated); err != nil {
		return fmt.Errorf("update profile: %w", err)
	}
	sess.User.DisplayName = displayName
	return nil
}

// ChangePassword replaces the password after re-checking the current one.
func (a *Accounts) ChangePassword(ctx context.Context, sess *Session, current, next string) error {
	id, err := sess.userID()
	if err != nil {
		return err
	}
	u, err := a.db.GetUser(ctx, id)
	if err != nil {
		return err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(current)); err != nil {
		return ErrInvalidCredentials
	}
	if len(next) < 6 {
		return &ValidationError{Field: "password", Message: "must be at least 6 characters"}
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(next), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	u.PasswordHash = string(hash)
	if err := a.db.UpdateUser(ctx, u); err != nil {
		return fmt.Errorf("change password: %w", err)
	}
	sess.User.PasswordHash = u.PasswordHash
	return nil
}

// MarkEmailVerified flags the account as verified. Delivery of the
// verification mail happens elsewhere.
func (a *Accounts) MarkEmailVerified(ctx context.Context, userID string) error {
	u, err := a.db.GetUser(ctx, userID)
	if err != nil {
		return err
	}
	u.EmailVerified = true
	return a.db.UpdateUser(ctx, u)
}
