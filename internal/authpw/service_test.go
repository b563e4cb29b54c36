package authpw

import (
	"context"
	"errors"
	"testing"
	"time"

	"intakeflow/api/internal/store"
)

type passwordReset struct {
	userID    string
	expiresAt time.Time
	used      bool
}

type memUserStore struct {
	users         map[string]store.User
	emailIndex    map[string]string
	verifications map[string]string // token -> userID
	resets        map[string]passwordReset
}

func newMemUserStore() *memUserStore {
	return &memUserStore{
		users:         make(map[string]store.User),
		emailIndex:    make(map[string]string),
		verifications: make(map[string]string),
		resets:        make(map[string]passwordReset),
	}
}

func (m *memUserStore) GetUserByEmail(ctx context.Context, email string) (store.User, error) {
	if userID, ok := m.emailIndex[email]; ok {
		return m.users[userID], nil
	}
	return store.User{}, errors.New("user not found")
}

func (m *memUserStore) GetUserByID(ctx context.Context, id string) (store.User, error) {
	if user, ok := m.users[id]; ok {
		return user, nil
	}
	return store.User{}, errors.New("user not found")
}

func (m *memUserStore) CreateUser(ctx context.Context, user store.User) error {
	m.users[user.ID] = user
	m.emailIndex[user.Email] = user.ID
	return nil
}

func (m *memUserStore) UpdateUserVerificationToken(ctx context.Context, userID, token string, expiresAt time.Time) error {
	m.verifications[token] = userID
	return nil
}

func (m *memUserStore) VerifyUserEmail(ctx context.Context, token string) error {
	userID, ok := m.verifications[token]
	if !ok {
		return errors.New("invalid token")
	}
	user := m.users[userID]
	user.IsEmailVerified = true
	m.users[userID] = user
	delete(m.verifications, token)
	return nil
}

func (m *memUserStore) UpdateUserPassword(ctx context.Context, userID, passwordHash string) error {
	user, ok := m.users[userID]
	if !ok {
		return errors.New("user not found")
	}
	user.PasswordHash = passwordHash
	m.users[userID] = user
	return nil
}

func (m *memUserStore) CreatePasswordReset(ctx context.Context, userID, token string, expiresAt time.Time) error {
	m.resets[token] = passwordReset{userID: userID, expiresAt: expiresAt}
	return nil
}

func (m *memUserStore) GetPasswordReset(ctx context.Context, token string) (string, error) {
	reset, ok := m.resets[token]
	if !ok || reset.used || time.Now().After(reset.expiresAt) {
		return "", errors.New("invalid or expired token")
	}
	return reset.userID, nil
}

func (m *memUserStore) MarkPasswordResetUsed(ctx context.Context, token string) error {
	if reset, ok := m.resets[token]; ok {
		reset.used = true
		m.resets[token] = reset
	}
	return nil
}

func TestSignUp(t *testing.T) {
	ctx := context.Background()
	mem := newMemUserStore()
	svc := NewService(mem)

	t.Run("successful sign up", func(t *testing.T) {
		resp, err := svc.SignUp(ctx, SignUpRequest{
			Email:       "new@example.com",
			Password:    "password123",
			DisplayName: "New User",
		})
		if err != nil {
			t.Fatalf("SignUp() error = %v", err)
		}
		if !resp.RequiresEmailVerify {
			t.Error("expected RequiresEmailVerify to be true")
		}
		user, err := mem.GetUserByID(ctx, resp.UserID)
		if err != nil {
			t.Fatalf("created user not found: %v", err)
		}
		if user.Role != "intake_user" {
			t.Errorf("expected default role intake_user, got %s", user.Role)
		}
		if user.PasswordHash == "password123" {
			t.Error("password stored in plaintext")
		}
	})

	t.Run("duplicate email rejected", func(t *testing.T) {
		_, err := svc.SignUp(ctx, SignUpRequest{
			Email:       "new@example.com",
			Password:    "password123",
			DisplayName: "Another",
		})
		if !errors.Is(err, ErrEmailTaken) {
			t.Fatalf("expected ErrEmailTaken, got %v", err)
		}
	})

	t.Run("short password rejected", func(t *testing.T) {
		_, err := svc.SignUp(ctx, SignUpRequest{
			Email:       "short@example.com",
			Password:    "short",
			DisplayName: "Short",
		})
		if err == nil {
			t.Fatal("expected error for short password")
		}
	})
}

func TestSignInAndVerify(t *testing.T) {
	ctx := context.Background()
	mem := newMemUserStore()
	svc := NewService(mem)

	resp, err := svc.SignUp(ctx, SignUpRequest{
		Email:       "ada@example.com",
		Password:    "correct-horse",
		DisplayName: "Ada",
	})
	if err != nil {
		t.Fatalf("SignUp() error = %v", err)
	}

	t.Run("unverified account flagged", func(t *testing.T) {
		signIn, err := svc.SignIn(ctx, SignInRequest{Email: "ada@example.com", Password: "correct-horse"})
		if err != nil {
			t.Fatalf("SignIn() error = %v", err)
		}
		if !signIn.RequiresVerify {
			t.Error("expected RequiresVerify before email verification")
		}
	})

	t.Run("wrong password rejected", func(t *testing.T) {
		_, err := svc.SignIn(ctx, SignInRequest{Email: "ada@example.com", Password: "wrong"})
		if !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("expected ErrInvalidCredentials, got %v", err)
		}
	})

	t.Run("verify then sign in", func(t *testing.T) {
		if err := svc.VerifyEmail(ctx, resp.VerificationToken); err != nil {
			t.Fatalf("VerifyEmail() error = %v", err)
		}
		signIn, err := svc.SignIn(ctx, SignInRequest{Email: "ada@example.com", Password: "correct-horse"})
		if err != nil {
			t.Fatalf("SignIn() after verify error = %v", err)
		}
		if signIn.RequiresVerify {
			t.Error("did not expect RequiresVerify after verification")
		}
	})

	t.Run("bad verification token", func(t *testing.T) {
		if err := svc.VerifyEmail(ctx, "bogus"); !errors.Is(err, ErrInvalidVerifyToken) {
			t.Fatalf("expected ErrInvalidVerifyToken, got %v", err)
		}
	})
}

func TestPasswordReset(t *testing.T) {
	ctx := context.Background()
	mem := newMemUserStore()
	svc := NewService(mem)

	signUp, err := svc.SignUp(ctx, SignUpRequest{
		Email:       "reset@example.com",
		Password:    "original-pass",
		DisplayName: "Resetter",
	})
	if err != nil {
		t.Fatalf("SignUp() error = %v", err)
	}
	if err := svc.VerifyEmail(ctx, signUp.VerificationToken); err != nil {
		t.Fatalf("VerifyEmail() error = %v", err)
	}

	t.Run("unknown email yields empty token", func(t *testing.T) {
		token, err := svc.RequestPasswordReset(ctx, "nobody@example.com")
		if err != nil {
			t.Fatalf("RequestPasswordReset() error = %v", err)
		}
		if token != "" {
			t.Error("expected empty token for unknown email")
		}
	})

	t.Run("full reset flow", func(t *testing.T) {
		token, err := svc.RequestPasswordReset(ctx, "reset@example.com")
		if err != nil {
			t.Fatalf("RequestPasswordReset() error = %v", err)
		}
		if token == "" {
			t.Fatal("expected a reset token")
		}

		err = svc.ResetPassword(ctx, ResetPasswordRequest{Token: token, NewPassword: "brand-new-pass"})
		if err != nil {
			t.Fatalf("ResetPassword() error = %v", err)
		}

		if _, err := svc.SignIn(ctx, SignInRequest{Email: "reset@example.com", Password: "original-pass"}); err == nil {
			t.Error("old password still accepted")
		}
		if _, err := svc.SignIn(ctx, SignInRequest{Email: "reset@example.com", Password: "brand-new-pass"}); err != nil {
			t.Errorf("new password rejected: %v", err)
		}
	})

	t.Run("used token rejected", func(t *testing.T) {
		token, err := svc.RequestPasswordReset(ctx, "reset@example.com")
		if err != nil {
			t.Fatalf("RequestPasswordReset() error = %v", err)
		}
		if err := svc.ResetPassword(ctx, ResetPasswordRequest{Token: token, NewPassword: "another-pass"}); err != nil {
			t.Fatalf("ResetPassword() error = %v", err)
		}
		err = svc.ResetPassword(ctx, ResetPasswordRequest{Token: token, NewPassword: "third-pass"})
		if !errors.Is(err, ErrInvalidResetToken) {
			t.Fatalf("expected ErrInvalidResetToken, got %v", err)
		}
	})
}
