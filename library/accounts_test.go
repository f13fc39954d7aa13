package library

import (
	"context"
	"errors"
	"testing"

	"golang.org/x/text/language"
)

func TestSignUpAndSignIn(t *testing.T) {
	accounts := NewAccounts(tempDB(t))
	ctx := context.Background()

	u, err := accounts.SignUp(ctx, " Ann@Example.com ", "Ann", "secret1")
	if err != nil {
		t.Fatalf("sign up: %v", err)
	}
	if u.Email != "ann@example.com" || u.PasswordHash == "secret1" {
		t.Fatalf("unexpected user %+v", u)
	}
	if _, err := accounts.SignUp(ctx, "ann@example.com", "Other", "secret2"); !errors.Is(err, ErrEmailTaken) {
		t.Fatalf("want ErrEmailTaken, got %v", err)
	}

	sess, err := accounts.SignIn(ctx, "ANN@example.com", "secret1", language.Und)
	if err != nil {
		t.Fatalf("sign in: %v", err)
	}
	cur, ok := sess.CurrentUser()
	if !ok || cur.ID != u.ID {
		t.Fatalf("session user %+v", cur)
	}
	if sess.Locale != language.English {
		t.Fatalf("undefined locale kept: %v", sess.Locale)
	}

	if _, err := accounts.SignIn(ctx, "ann@example.com", "wrong", language.English); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("bad password: want ErrInvalidCredentials, got %v", err)
	}
	if _, err := accounts.SignIn(ctx, "bob@example.com", "secret1", language.English); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("unknown email: want ErrInvalidCredentials, got %v", err)
	}
}

func TestSignUpValidation(t *testing.T) {
	accounts := NewAccounts(tempDB(t))
	ctx := context.Background()
	var verr *ValidationError
	if _, err := accounts.SignUp(ctx, "not-an-email", "X", "secret1"); !errors.As(err, &verr) || verr.Field != "email" {
		t.Fatalf("want email validation error, got %v", err)
	}
	if _, err := accounts.SignUp(ctx, "x@example.com", "X", "123"); !errors.As(err, &verr) || verr.Field != "password" {
		t.Fatalf("want password validation error, got %v", err)
	}
}

func TestProfileAndPassword(t *testing.T) {
	db := tempDB(t)
	accounts := NewAccounts(db)
	ctx := context.Background()
	u, err := accounts.SignUp(ctx, "ann@example.com", "Ann", "secret1")
	if err != nil {
		t.Fatalf("sign up: %v", err)
	}
	sess, err := accounts.SignIn(ctx, "ann@example.com", "secret1", language.English)
	if err != nil {
		t.Fatalf("sign in: %v", err)
	}

	if err := accounts.UpdateProfile(ctx, sess, "  Annie "); err != nil {
		t.Fatalf("update profile: %v", err)
	}
	if cur, _ := sess.CurrentUser(); cur.DisplayName != "Annie" {
		t.Fatalf("session not refreshed: %q", cur.DisplayName)
	}
	stored, _ := db.GetUser(ctx, u.ID)
	if stored.DisplayName != "Annie" {
		t.Fatalf("profile not stored: %q", stored.DisplayName)
	}
	if err := accounts.UpdateProfile(ctx, sess, " "); err == nil {
		t.Fatalf("empty display name accepted")
	}

	if err := accounts.ChangePassword(ctx, sess, "wrong", "secret2"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("want ErrInvalidCredentials, got %v", err)
	}
	if err := accounts.ChangePassword(ctx, sess, "secret1", "secret2"); err != nil {
		t.Fatalf("change password: %v", err)
	}
	if _, err := accounts.SignIn(ctx, "ann@example.com", "secret1", language.English); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("old password still works")
	}
	if _, err := accounts.SignIn(ctx, "ann@example.com", "secret2", language.English); err != nil {
		t.Fatalf("new password rejected: %v", err)
	}

	if err := accounts.MarkEmailVerified(ctx, u.ID); err != nil {
		t.Fatalf("verify: %v", err)
	}
	stored, _ = db.GetUser(ctx, u.ID)
	if !stored.EmailVerified {
		t.Fatalf("email not verified")
	}
}

func TestSessionWithoutUser(t *testing.T) {
	var nilSess *Session
	if _, ok := nilSess.CurrentUser(); ok {
		t.Fatalf("nil session has a user")
	}
	accounts := NewAccounts(tempDB(t))
	if err := accounts.UpdateProfile(context.Background(), &Session{}, "X"); !errors.Is(err, ErrNoUser) {
		t.Fatalf("want ErrNoUser, got %v", err)
	}
	if UserMessage(ErrNoUser) != ErrNoUser.Error() {
		t.Fatalf("no-user message not verbatim")
	}
}
