package realtime

import (
	"errors"

	"workbridge_backend/internal/models"
	"workbridge_backend/internal/repositories"

	"gorm.io/gorm"
)

// Identity is the resolved principal a session acts as. It is the root of
// trust for every visibility decision the broker makes.
type Identity struct {
	ID          string
	Role        models.UserRole
	Status      models.UserStatus
	DisplayName string
	AvatarURL   string
}

// Anonymous reports whether no principal is resolved.
func (i Identity) Anonymous() bool { return i.ID == "" }

// Banned is the one fatal state: the session must be torn down.
func (i Identity) Banned() bool { return i.Status == models.UserStatusBanned }

// HasRole reports whether profile completion happened; without a role the
// client must be routed to role selection and gets no feeds.
func (i Identity) HasRole() bool {
	return i.Role != "" && i.Role != models.UserRoleNone
}

// sameResolved compares the tuple that defines "the same resolved state".
// Display fields may churn without re-firing IdentityChanged.
func (i Identity) sameResolved(o Identity) bool {
	return i.ID == o.ID && i.Role == o.Role && i.Status == o.Status
}

// IdentityResolver loads the identity snapshot for a principal.
type IdentityResolver interface {
	Resolve(userID string) (Identity, error)
}

// SessionStore resolves identities from the user and profile rows and
// tracks the current one for a session, firing IdentityChanged exactly
// once per actual (id, role, status) change.
type SessionStore struct {
	users repositories.UserRepository

	current   Identity
	listeners []func(old, new Identity)
}

func NewSessionStore(users repositories.UserRepository) *SessionStore {
	return &SessionStore{users: users}
}

// Resolve loads the identity snapshot for userID.
func (s *SessionStore) Resolve(userID string) (Identity, error) {
	user, err := s.users.FindByID(userID)
	if err != nil {
		return Identity{}, err
	}

	identity := Identity{
		ID:     user.ID,
		Role:   user.Role,
		Status: user.Status,
	}

	switch user.Role {
	case models.UserRoleFreelancer:
		profile, err := s.users.FindFreelancerProfile(userID)
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return Identity{}, err
		}
		if profile != nil {
			identity.DisplayName = profile.DisplayName
			identity.AvatarURL = profile.AvatarURL
		}
	case models.UserRoleEmployer:
		profile, err := s.users.FindEmployerProfile(userID)
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return Identity{}, err
		}
		if profile != nil {
			identity.DisplayName = profile.CompanyName
			identity.AvatarURL = profile.AvatarURL
		}
	default:
		identity.DisplayName = user.Email
	}

	return identity, nil
}

// Current returns the identity the session currently acts as.
func (s *SessionStore) Current() Identity { return s.current }

// OnIdentityChanged registers a listener. Listeners run on the session
// loop, in registration order.
func (s *SessionStore) OnIdentityChanged(fn func(old, new Identity)) {
	s.listeners = append(s.listeners, fn)
}

// Set installs a newly resolved identity. Listeners fire only when the
// resolved tuple actually changed, so a redundant re-resolution never
// double-fires.
func (s *SessionStore) Set(identity Identity) {
	old := s.current
	s.current = identity
	if old.sameResolved(identity) {
		return
	}
	for _, fn := range s.listeners {
		fn(old, identity)
	}
}

// Clear drops the identity on sign-out or teardown.
func (s *SessionStore) Clear() {
	s.Set(Identity{})
}
