package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/99minutos/travel-portal/internal/core/domain"
	"github.com/99minutos/travel-portal/internal/core/ports"
	"github.com/99minutos/travel-portal/internal/infrastructure/db/memory"
)

// gatedUsers blocks Where until gate is closed.
type gatedUsers struct {
	*stubCollection[domain.User]
	gate    chan struct{}
	entered chan struct{}
	result  []domain.User
}

func (g *gatedUsers) Where(ctx context.Context, _ string, _ any) ([]domain.User, error) {
	g.entered <- struct{}{}
	select {
	case <-g.gate:
		return g.result, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

type erroringUsers struct {
	*stubCollection[domain.User]
}

func (erroringUsers) Where(context.Context, string, any) ([]domain.User, error) {
	return nil, errors.New("query failed")
}

func newResolver(t *testing.T, users ports.Collection[domain.User]) (*IdentityService, *SessionResolver) {
	t.Helper()
	idp := newIdentity(newStubPrincipalRepo())
	if _, err := idp.Register(context.Background(), "ana@example.com", "pw123456", "Ana"); err != nil {
		t.Fatalf("Register: %v", err)
	}
	r := NewSessionResolver(idp, users, zerolog.Nop())
	r.Start(context.Background())
	t.Cleanup(r.Stop)
	return idp, r
}

func TestSessionResolver_LoginMatchesUserByEmail(t *testing.T) {
	users := memory.NewCollection[domain.User]("users")
	uid, _ := users.Add(context.Background(), domain.User{Name: "Ana Admin", Email: "ana@example.com", Roles: []domain.Role{domain.RoleAdmin}})
	_, r := newResolver(t, users)

	p, st, err := r.Login(context.Background(), "ana@example.com", "pw123456")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if st.Loading || !st.Authenticated || st.User == nil {
		t.Fatalf("unexpected state %+v", st)
	}
	if st.User.ID != uid || st.User.ID == p.ID {
		t.Fatalf("expected the User document id, got %q (principal %q)", st.User.ID, p.ID)
	}
	if !st.User.HasRole(domain.RoleAdmin) {
		t.Fatalf("expected admin role, got %v", st.User.Roles)
	}
}

func TestSessionResolver_FallbackWithoutUserDocument(t *testing.T) {
	_, r := newResolver(t, memory.NewCollection[domain.User]("users"))

	p, st, err := r.Login(context.Background(), "ana@example.com", "pw123456")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if st.User == nil || st.User.ID != p.ID || st.User.Email != "ana@example.com" || st.User.Name != "Ana" {
		t.Fatalf("unexpected fallback user %+v", st.User)
	}
	if st.User.Roles == nil || len(st.User.Roles) != 0 {
		t.Fatalf("fallback user must have an empty role list, got %#v", st.User.Roles)
	}
}

func TestSessionResolver_DuplicateEmailsTakeFirst(t *testing.T) {
	users := memory.NewCollection[domain.User]("users")
	first, _ := users.Add(context.Background(), domain.User{Name: "one", Email: "ana@example.com", Roles: []domain.Role{domain.RoleAgent}})
	_, _ = users.Add(context.Background(), domain.User{Name: "two", Email: "ana@example.com", Roles: []domain.Role{domain.RoleAdmin}})
	_, r := newResolver(t, users)

	_, st, err := r.Login(context.Background(), "ana@example.com", "pw123456")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if st.User.ID != first {
		t.Fatalf("expected first match, got %+v", st.User)
	}
}

func TestSessionResolver_LookupErrorIsUnauthenticated(t *testing.T) {
	users := erroringUsers{&stubCollection[domain.User]{name: "users"}}
	_, r := newResolver(t, users)

	if _, err := r.Resolve(context.Background(), domain.Principal{ID: "p", Email: "ana@example.com"}); !errors.Is(err, domain.ErrProfileNotFound) {
		t.Fatalf("expected ErrProfileNotFound, got %v", err)
	}

	_, st, err := r.Login(context.Background(), "ana@example.com", "pw123456")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if st.Loading || st.User != nil || st.Authenticated {
		t.Fatalf("expected settled unauthenticated session without user, got %+v", st)
	}
}

func TestSessionResolver_LoginBadPassword(t *testing.T) {
	_, r := newResolver(t, memory.NewCollection[domain.User]("users"))
	if _, _, err := r.Login(context.Background(), "ana@example.com", "nope"); !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestSessionResolver_LogoutClearsSession(t *testing.T) {
	_, r := newResolver(t, memory.NewCollection[domain.User]("users"))
	p, _, err := r.Login(context.Background(), "ana@example.com", "pw123456")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if err := r.Logout(context.Background(), p.ID); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	if st := r.Session(p.ID); st.Authenticated || st.User != nil {
		t.Fatalf("expected cleared session, got %+v", st)
	}
}

func TestSessionResolver_SignOutDiscardsInFlightLookup(t *testing.T) {
	users := &gatedUsers{
		stubCollection: &stubCollection[domain.User]{name: "users"},
		gate:           make(chan struct{}),
		entered:        make(chan struct{}, 1),
		result:         []domain.User{{ID: "u1", Email: "ana@example.com"}},
	}
	idp, r := newResolver(t, users)

	p, err := idp.SignIn(context.Background(), "ana@example.com", "pw123456")
	if err != nil {
		t.Fatalf("SignIn: %v", err)
	}
	<-users.entered
	if st := r.Session(p.ID); !st.Loading {
		t.Fatalf("expected loading session, got %+v", st)
	}

	waited := make(chan SessionState, 1)
	go func() {
		st, _ := r.WaitResolved(context.Background(), p.ID)
		waited <- st
	}()

	if err := idp.SignOut(context.Background(), p.ID); err != nil {
		t.Fatalf("SignOut: %v", err)
	}
	select {
	case st := <-waited:
		if st.Authenticated {
			t.Fatalf("waiter should see the signed-out state, got %+v", st)
		}
	case <-time.After(time.Second):
		t.Fatal("sign-out did not wake the waiter")
	}

	close(users.gate)
	r.Stop()
	if st := r.Session(p.ID); st.Authenticated || st.User != nil {
		t.Fatalf("late lookup result was applied: %+v", st)
	}
}
