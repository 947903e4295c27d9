package service

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/99minutos/travel-portal/internal/api/metrics"
	"github.com/99minutos/travel-portal/internal/core/domain"
	"github.com/99minutos/travel-portal/internal/core/ports"
)

// SessionState is what the view layer knows about a principal's session.
type SessionState struct {
	User          *domain.User
	Loading       bool
	Authenticated bool
}

type session struct {
	principal domain.Principal
	user      *domain.User
	loading   bool
	failed    bool
	seq       uint64
	done      chan struct{}
}

// SessionResolver maps identity provider principals to User documents. The
// join is by email: the User document id, not the principal id, is what the
// rest of the system references.
type SessionResolver struct {
	idp   ports.IdentityProvider
	users ports.Collection[domain.User]
	log   zerolog.Logger

	mu       sync.Mutex
	sessions map[string]*session
	seq      uint64
	unsub    ports.Unsubscribe
	wg       sync.WaitGroup
}

func NewSessionResolver(idp ports.IdentityProvider, users ports.Collection[domain.User], log zerolog.Logger) *SessionResolver {
	return &SessionResolver{
		idp:      idp,
		users:    users,
		log:      log.With().Str("component", "session").Logger(),
		sessions: make(map[string]*session),
	}
}

// Start registers with the identity provider. ctx bounds the profile lookups.
func (r *SessionResolver) Start(ctx context.Context) {
	unsub := r.idp.OnAuthStateChanged(func(ev ports.AuthEvent) { r.handle(ctx, ev) })
	r.mu.Lock()
	r.unsub = unsub
	r.mu.Unlock()
}

// Stop unregisters from the identity provider and waits for in-flight lookups.
func (r *SessionResolver) Stop() {
	r.mu.Lock()
	unsub := r.unsub
	r.unsub = nil
	r.mu.Unlock()
	if unsub != nil {
		unsub()
	}
	r.wg.Wait()
}

func (r *SessionResolver) handle(ctx context.Context, ev ports.AuthEvent) {
	r.mu.Lock()
	r.seq++
	seq := r.seq
	prev := r.sessions[ev.PrincipalID]
	if prev != nil && prev.loading {
		close(prev.done)
	}

	if ev.Principal == nil {
		delete(r.sessions, ev.PrincipalID)
		r.mu.Unlock()
		return
	}

	s := &session{principal: *ev.Principal, loading: true, seq: seq, done: make(chan struct{})}
	r.sessions[ev.PrincipalID] = s
	r.wg.Add(1)
	r.mu.Unlock()

	principal := *ev.Principal
	go func() {
		defer r.wg.Done()
		user, err := r.Resolve(ctx, principal)
		if err != nil {
			r.log.Error().Err(err).Str("principal_id", principal.ID).Msg("profile lookup failed")
			user = nil
		}

		r.mu.Lock()
		defer r.mu.Unlock()
		cur := r.sessions[principal.ID]
		if cur == nil || cur.seq != seq {
			r.log.Debug().Str("principal_id", principal.ID).Msg("discarding superseded profile lookup")
			return
		}
		cur.user = user
		cur.failed = err != nil
		cur.loading = false
		close(cur.done)
	}()
}

// Resolve looks up the User document whose email matches the principal. With
// no match it returns a fallback user carrying the principal id and no roles.
func (r *SessionResolver) Resolve(ctx context.Context, p domain.Principal) (*domain.User, error) {
	matches, err := r.users.Where(ctx, "email", p.Email)
	if err != nil {
		metrics.SessionResolutionsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("%w: %w", domain.ErrProfileNotFound, err)
	}

	switch {
	case len(matches) == 0:
		metrics.SessionResolutionsTotal.WithLabelValues("fallback").Inc()
		r.log.Warn().Str("principal_id", p.ID).Str("email", p.Email).Msg("no user document for principal, using fallback profile")
		return &domain.User{ID: p.ID, Email: p.Email, Name: p.DisplayName, Roles: []domain.Role{}}, nil
	case len(matches) > 1:
		r.log.Warn().Str("email", p.Email).Int("matches", len(matches)).Msg("several user documents share an email, using the first")
	}
	metrics.SessionResolutionsTotal.WithLabelValues("matched").Inc()
	u := matches[0]
	return &u, nil
}

// Session returns the current state for a principal.
func (r *SessionResolver) Session(principalID string) SessionState {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := r.sessions[principalID]
	if s == nil {
		return SessionState{}
	}
	return s.state()
}

func (s *session) state() SessionState {
	// A failed profile lookup leaves the principal signed in at the
	// provider but unauthenticated here.
	st := SessionState{Loading: s.loading, Authenticated: !s.failed}
	if s.user != nil {
		u := *s.user
		st.User = &u
	}
	return st
}

// WaitResolved blocks until the principal's profile lookup settles or ctx is done.
func (r *SessionResolver) WaitResolved(ctx context.Context, principalID string) (SessionState, error) {
	r.mu.Lock()
	s := r.sessions[principalID]
	r.mu.Unlock()
	if s == nil {
		return SessionState{}, nil
	}

	select {
	case <-s.done:
	case <-ctx.Done():
		return SessionState{}, ctx.Err()
	}
	return r.Session(principalID), nil
}

// Login signs in through the identity provider and waits for the profile.
func (r *SessionResolver) Login(ctx context.Context, email, password string) (*domain.Principal, SessionState, error) {
	p, err := r.idp.SignIn(ctx, email, password)
	if err != nil {
		return nil, SessionState{}, err
	}
	st, err := r.WaitResolved(ctx, p.ID)
	if err != nil {
		return nil, SessionState{}, err
	}
	return p, st, nil
}

func (r *SessionResolver) Logout(ctx context.Context, principalID string) error {
	return r.idp.SignOut(ctx, principalID)
}
