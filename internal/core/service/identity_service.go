package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/99minutos/travel-portal/internal/core/domain"
	"github.com/99minutos/travel-portal/internal/core/ports"
)

// IdentityService is the identity provider: it checks bcrypt credentials,
// announces session transitions to observers and signs session tokens.
type IdentityService struct {
	repo      ports.PrincipalRepository
	jwtSecret string
	tokenTTL  time.Duration
	log       zerolog.Logger

	mu        sync.Mutex
	observers map[int]ports.AuthStateFunc
	nextObs   int
}

var _ ports.IdentityProvider = (*IdentityService)(nil)

func NewIdentityService(repo ports.PrincipalRepository, jwtSecret string, tokenTTL time.Duration, log zerolog.Logger) *IdentityService {
	if tokenTTL <= 0 {
		tokenTTL = 24 * time.Hour
	}
	return &IdentityService{
		repo:      repo,
		jwtSecret: jwtSecret,
		tokenTTL:  tokenTTL,
		log:       log.With().Str("component", "identity").Logger(),
		observers: make(map[int]ports.AuthStateFunc),
	}
}

// Register creates a principal. It does not create the matching User document.
func (s *IdentityService) Register(ctx context.Context, email, password, displayName string) (*domain.Principal, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return nil, domain.ErrInvalidCredentials
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	created, err := s.repo.Create(ctx, &domain.Credential{
		Email:        email,
		DisplayName:  displayName,
		PasswordHash: string(hash),
	})
	if err != nil {
		return nil, err
	}
	return created.Principal(), nil
}

// SignIn checks the password and, on success, notifies observers that the
// principal signed in. Unknown emails and wrong passwords are indistinguishable.
func (s *IdentityService) SignIn(ctx context.Context, email, password string) (*domain.Principal, error) {
	if email == "" || password == "" {
		return nil, domain.ErrInvalidCredentials
	}

	cred, err := s.repo.FindByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrInvalidCredentials
		}
		return nil, err
	}
	if bcrypt.CompareHashAndPassword([]byte(cred.PasswordHash), []byte(password)) != nil {
		return nil, domain.ErrInvalidCredentials
	}

	p := cred.Principal()
	s.log.Info().Str("principal_id", p.ID).Msg("principal signed in")
	s.emit(ports.AuthEvent{PrincipalID: p.ID, Principal: p})
	return p, nil
}

// SignOut notifies observers that the principal's session ended.
func (s *IdentityService) SignOut(_ context.Context, principalID string) error {
	s.log.Info().Str("principal_id", principalID).Msg("principal signed out")
	s.emit(ports.AuthEvent{PrincipalID: principalID})
	return nil
}

// OnAuthStateChanged registers fn for every subsequent session transition.
func (s *IdentityService) OnAuthStateChanged(fn ports.AuthStateFunc) ports.Unsubscribe {
	s.mu.Lock()
	id := s.nextObs
	s.nextObs++
	s.observers[id] = fn
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.observers, id)
			s.mu.Unlock()
		})
	}
}

func (s *IdentityService) emit(ev ports.AuthEvent) {
	s.mu.Lock()
	fns := make([]ports.AuthStateFunc, 0, len(s.observers))
	for _, fn := range s.observers {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn(ev)
	}
}

// SessionToken is a signed token and the identifiers needed to revoke it.
type SessionToken struct {
	Token     string
	ID        string
	ExpiresAt time.Time
}

// IssueToken signs a token for the resolved user. The subject is the User
// document id; the principal id travels separately so logout can end the
// provider session.
func (s *IdentityService) IssueToken(principal domain.Principal, user domain.User) (SessionToken, error) {
	now := time.Now()
	exp := now.Add(s.tokenTTL)

	roles := make([]string, 0, len(user.Roles))
	for _, r := range user.Roles {
		roles = append(roles, string(r))
	}

	jti := uuid.NewString()
	claims := jwt.MapClaims{
		"sub":   user.ID,
		"pid":   principal.ID,
		"email": user.Email,
		"name":  user.Name,
		"roles": roles,
		"jti":   jti,
		"iat":   now.Unix(),
		"exp":   exp.Unix(),
	}

	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := t.SignedString([]byte(s.jwtSecret))
	if err != nil {
		return SessionToken{}, err
	}
	return SessionToken{Token: signed, ID: jti, ExpiresAt: exp}, nil
}

func (s *IdentityService) TokenTTL() time.Duration { return s.tokenTTL }
