package tasks

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/desertthunder/zylofm/internal/auth"
	"github.com/desertthunder/zylofm/internal/models"
	"github.com/desertthunder/zylofm/internal/repositories"
	"github.com/desertthunder/zylofm/internal/services"
	"github.com/desertthunder/zylofm/internal/shared"
	tu "github.com/desertthunder/zylofm/internal/testing"
)

func newAccounts(t *testing.T) (*Accounts, *repositories.Store) {
	t.Helper()
	store := repositories.NewStore(tu.SetupDB(t))
	tokens := auth.NewTokenIssuer("test-secret", "zylofm", time.Hour)
	return NewAccounts(store.Users, tokens, tu.DiscardLogger()), store
}

func TestAccounts(t *testing.T) {
	ctx := context.Background()

	t.Run("RegisterAndLogin", func(t *testing.T) {
		accounts, _ := newAccounts(t)

		session, err := accounts.Register(ctx, " Nova@Example.com ", "Nova", "hunter22")
		if err != nil {
			t.Fatalf("Register failed: %v", err)
		}
		if session.Token == "" || session.User.Role != models.RoleListener || session.User.Email != "nova@example.com" {
			t.Errorf("unexpected session: %+v", session)
		}

		if _, err := accounts.Register(ctx, "nova@example.com", "Nova", "hunter22"); !errors.Is(err, shared.ErrConflict) {
			t.Errorf("expected ErrConflict for duplicate email, got %v", err)
		}
		if _, err := accounts.Register(ctx, "weak@example.com", "Weak", "short"); !errors.Is(err, shared.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput for weak password, got %v", err)
		}

		login, err := accounts.Login(ctx, "NOVA@example.com", "hunter22")
		if err != nil {
			t.Fatalf("Login failed: %v", err)
		}
		user, err := accounts.Authenticate(ctx, login.Token)
		if err != nil {
			t.Fatalf("Authenticate failed: %v", err)
		}
		if user.ID != session.User.ID {
			t.Errorf("expected %s, got %s", session.User.ID, user.ID)
		}

		if _, err := accounts.Login(ctx, "nova@example.com", "wrongpass1"); !errors.Is(err, shared.ErrInvalidCredentials) {
			t.Errorf("expected ErrInvalidCredentials, got %v", err)
		}
		if _, err := accounts.Login(ctx, "nobody@example.com", "hunter22"); !errors.Is(err, shared.ErrInvalidCredentials) {
			t.Errorf("expected ErrInvalidCredentials for unknown email, got %v", err)
		}
	})

	t.Run("AuthenticateDeletedUser", func(t *testing.T) {
		accounts, store := newAccounts(t)
		session, err := accounts.Register(ctx, "gone@example.com", "Gone", "hunter22")
		if err != nil {
			t.Fatal(err)
		}
		if err := store.Users.Delete(session.User.ID); err != nil {
			t.Fatal(err)
		}
		if _, err := accounts.Authenticate(ctx, session.Token); !errors.Is(err, shared.ErrUnauthorized) {
			t.Errorf("expected ErrUnauthorized, got %v", err)
		}
	})

	t.Run("SignInExternal", func(t *testing.T) {
		accounts, store := newAccounts(t)
		existing, err := accounts.CreateUser(ctx, "dj@example.com", "DJ", "hunter22", models.RoleDJ)
		if err != nil {
			t.Fatal(err)
		}

		linked, created, err := accounts.SignInExternal(ctx, &services.ExternalProfile{
			Provider: models.ProviderGoogle, ID: "g-1", Email: "dj@example.com", Name: "Google DJ", Picture: "https://img.example.com/a.png",
		})
		if err != nil {
			t.Fatalf("SignInExternal failed: %v", err)
		}
		if created || linked.User.ID != existing.ID || linked.User.Role != models.RoleDJ {
			t.Errorf("expected existing account to be linked, got created=%v %+v", created, linked.User)
		}
		if got, _ := store.Users.GetByProvider(models.ProviderGoogle, "g-1"); got == nil || got.ID != existing.ID {
			t.Errorf("expected provider identity stored")
		}

		fresh, created, err := accounts.SignInExternal(ctx, &services.ExternalProfile{
			Provider: models.ProviderGoogle, ID: "g-2", Email: "new@example.com",
		})
		if err != nil {
			t.Fatal(err)
		}
		if !created || fresh.User.Name != "new" || fresh.User.Role != models.RoleListener {
			t.Errorf("unexpected new account: %+v", fresh.User)
		}

		again, created, err := accounts.SignInExternal(ctx, &services.ExternalProfile{
			Provider: models.ProviderGoogle, ID: "g-2", Email: "new@example.com",
		})
		if err != nil || created || again.User.ID != fresh.User.ID {
			t.Errorf("expected returning user, got created=%v err=%v", created, err)
		}

		if _, _, err := accounts.SignInExternal(ctx, &services.ExternalProfile{
			Provider: models.ProviderGoogle, ID: "g-3", Email: "dj@example.com",
		}); !errors.Is(err, shared.ErrConflict) {
			t.Errorf("expected ErrConflict for second google identity, got %v", err)
		}
	})

	t.Run("UpdateProfile", func(t *testing.T) {
		accounts, _ := newAccounts(t)
		user, err := accounts.CreateUser(ctx, "me@example.com", "Me", "hunter22", models.RoleListener)
		if err != nil {
			t.Fatal(err)
		}

		bio := "  Deep house diaries  "
		updated, err := accounts.UpdateProfile(ctx, user, ProfileChanges{Bio: &bio})
		if err != nil {
			t.Fatal(err)
		}
		if updated.Bio != "Deep house diaries" {
			t.Errorf("expected trimmed bio, got %q", updated.Bio)
		}

		next := "newpass99"
		if _, err := accounts.UpdateProfile(ctx, updated, ProfileChanges{Password: &next, CurrentPassword: "wrong"}); !errors.Is(err, shared.ErrInvalidCredentials) {
			t.Errorf("expected ErrInvalidCredentials, got %v", err)
		}
		if _, err := accounts.UpdateProfile(ctx, updated, ProfileChanges{Password: &next, CurrentPassword: "hunter22"}); err != nil {
			t.Fatal(err)
		}
		if _, err := accounts.Login(ctx, "me@example.com", next); err != nil {
			t.Errorf("expected login with new password, got %v", err)
		}

		empty := " "
		if _, err := accounts.UpdateProfile(ctx, updated, ProfileChanges{Name: &empty}); !errors.Is(err, shared.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput for blank name, got %v", err)
		}
	})

	t.Run("ProfileEditKeepsPromotion", func(t *testing.T) {
		accounts, store := newAccounts(t)
		mod := NewModerator(store, tu.DiscardLogger())
		admin := tu.SeedUser(t, store.DB, "admin@example.com", models.RoleAdmin)

		session, err := accounts.Register(ctx, "fan@example.com", "Fan", "hunter22")
		if err != nil {
			t.Fatal(err)
		}
		user, err := accounts.Authenticate(ctx, session.Token)
		if err != nil {
			t.Fatal(err)
		}

		req, err := mod.RequestDJ(ctx, user, "let me play", "")
		if err != nil {
			t.Fatalf("RequestDJ failed: %v", err)
		}
		if _, err := mod.ApproveDJRequest(ctx, req.ID, admin.ID); err != nil {
			t.Fatalf("ApproveDJRequest failed: %v", err)
		}

		bio := "first set soon"
		updated, err := accounts.UpdateProfile(ctx, user, ProfileChanges{Bio: &bio})
		if err != nil {
			t.Fatalf("UpdateProfile failed: %v", err)
		}
		if updated.Role != models.RoleDJ || updated.Bio != bio {
			t.Errorf("expected dj with new bio, got role=%s bio=%q", updated.Role, updated.Bio)
		}
		stored, _ := store.Users.Get(user.ID)
		if stored.Role != models.RoleDJ {
			t.Errorf("profile edit reverted promotion, role is %s", stored.Role)
		}
	})
}
