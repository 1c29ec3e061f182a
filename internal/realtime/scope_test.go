package realtime

import (
	"testing"
	"time"

	"workbridge_backend/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func domainEvent(entity EntityType, payload Row) DomainEvent {
	return DomainEvent{
		EntityType: entity,
		EntityID:   payload.Str("id"),
		Kind:       ChangeUpdated,
		Payload:    payload,
		ServerTS:   time.Now(),
	}
}

func TestScopeForAnonymousRejected(t *testing.T) {
	_, err := ScopeFor(EntityNotification, Identity{})
	assert.Error(t, err)
}

func TestScopeForAdminSeesEverything(t *testing.T) {
	scope, err := ScopeFor(EntityProposal, Identity{ID: "a1", Role: models.UserRoleAdmin})
	require.NoError(t, err)

	assert.True(t, scope.Matches(domainEvent(EntityProposal, Row{"id": "p1", "employer_id": "someone-else"})))
	assert.False(t, scope.Matches(domainEvent(EntityJob, Row{"id": "j1"})), "still bounded to the entity type")
}

func TestScopeForMessagesMatchesEitherParticipant(t *testing.T) {
	scope, err := ScopeFor(EntityMessage, Identity{ID: "u1", Role: models.UserRoleFreelancer})
	require.NoError(t, err)

	assert.True(t, scope.Matches(domainEvent(EntityMessage, Row{"id": "m1", "recipient_id": "u1", "sender_id": "u2"})))
	assert.True(t, scope.Matches(domainEvent(EntityMessage, Row{"id": "m2", "recipient_id": "u2", "sender_id": "u1"})))
	assert.False(t, scope.Matches(domainEvent(EntityMessage, Row{"id": "m3", "recipient_id": "u2", "sender_id": "u3"})))
}

func TestScopeForJobsByRole(t *testing.T) {
	employerScope, err := ScopeFor(EntityJob, Identity{ID: "e1", Role: models.UserRoleEmployer})
	require.NoError(t, err)
	assert.True(t, employerScope.Matches(domainEvent(EntityJob, Row{"id": "j1", "employer_id": "e1", "status": "draft"})))
	assert.False(t, employerScope.Matches(domainEvent(EntityJob, Row{"id": "j2", "employer_id": "e2", "status": "open"})))

	freelancerScope, err := ScopeFor(EntityJob, Identity{ID: "f1", Role: models.UserRoleFreelancer})
	require.NoError(t, err)
	assert.True(t, freelancerScope.Matches(domainEvent(EntityJob, Row{"id": "j2", "employer_id": "e2", "status": "open"})))
	// A job closing stays visible so boards can drop it; drafts never show.
	assert.True(t, freelancerScope.Matches(domainEvent(EntityJob, Row{"id": "j3", "status": "closed"})))
	assert.False(t, freelancerScope.Matches(domainEvent(EntityJob, Row{"id": "j4", "status": "draft"})))
}

func TestScopeForRoleWithoutFeed(t *testing.T) {
	_, err := ScopeFor(EntityProposal, Identity{ID: "u1", Role: models.UserRoleNone})
	assert.Error(t, err)
}

func TestScopeKeysIdentifyFeeds(t *testing.T) {
	a, err := ScopeFor(EntityProposal, Identity{ID: "e1", Role: models.UserRoleEmployer})
	require.NoError(t, err)
	b, err := ScopeFor(EntityProposal, Identity{ID: "e1", Role: models.UserRoleEmployer})
	require.NoError(t, err)
	c, err := ScopeFor(EntityProposal, Identity{ID: "e2", Role: models.UserRoleEmployer})
	require.NoError(t, err)

	assert.Equal(t, a.Key(), b.Key(), "same identity, same feed")
	assert.NotEqual(t, a.Key(), c.Key())
}
