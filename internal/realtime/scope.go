package realtime

import (
	"fmt"

	"workbridge_backend/internal/models"
)

// Scope is the authorization rule deciding which events an identity may
// observe. Two scopes with equal keys are the same logical feed and share
// one subscription.
type Scope struct {
	key     string
	matches func(DomainEvent) bool
}

func (s Scope) Key() string { return s.key }

// Matches reports whether the identity behind this scope may see ev.
func (s Scope) Matches(ev DomainEvent) bool {
	if s.matches == nil {
		return false
	}
	return s.matches(ev)
}

func fieldScope(entity EntityType, field, value string) Scope {
	return Scope{
		key: fmt.Sprintf("%s:%s=%s", entity, field, value),
		matches: func(ev DomainEvent) bool {
			return ev.EntityType == entity && ev.Payload.Str(field) == value
		},
	}
}

func anyFieldScope(entity EntityType, value string, fields ...string) Scope {
	key := fmt.Sprintf("%s:any(", entity)
	for i, f := range fields {
		if i > 0 {
			key += "|"
		}
		key += f
	}
	key += ")=" + value

	return Scope{
		key: key,
		matches: func(ev DomainEvent) bool {
			if ev.EntityType != entity {
				return false
			}
			for _, f := range fields {
				if ev.Payload.Str(f) == value {
					return true
				}
			}
			return false
		},
	}
}

// AllOf is the admin feed: every event of the entity type.
func AllOf(entity EntityType) Scope {
	return Scope{
		key: fmt.Sprintf("%s:all", entity),
		matches: func(ev DomainEvent) bool {
			return ev.EntityType == entity
		},
	}
}

// OpenJobs is the public job board feed freelancers watch.
func OpenJobs() Scope {
	return Scope{
		key: "job:open",
		matches: func(ev DomainEvent) bool {
			if ev.EntityType != EntityJob {
				return false
			}
			// A job leaving the open state is still visible so boards can
			// drop it; drafts never are.
			return ev.Payload.Str("status") != string(models.JobStatusDraft)
		},
	}
}

// ScopeFor derives the feed an identity is entitled to for an entity
// type. This is the only place scope rules live; the normalizer trusts
// nothing else.
func ScopeFor(entity EntityType, identity Identity) (Scope, error) {
	if identity.ID == "" {
		return Scope{}, fmt.Errorf("realtime: anonymous identity cannot subscribe to %s", entity)
	}
	if identity.Role == models.UserRoleAdmin {
		return AllOf(entity), nil
	}

	switch entity {
	case EntityNotification:
		return fieldScope(EntityNotification, "user_id", identity.ID), nil

	case EntityMessage:
		return anyFieldScope(EntityMessage, identity.ID, "recipient_id", "sender_id"), nil

	case EntityProposal:
		switch identity.Role {
		case models.UserRoleEmployer:
			return fieldScope(EntityProposal, "employer_id", identity.ID), nil
		case models.UserRoleFreelancer:
			return fieldScope(EntityProposal, "freelancer_id", identity.ID), nil
		}

	case EntityJob:
		switch identity.Role {
		case models.UserRoleEmployer:
			return fieldScope(EntityJob, "employer_id", identity.ID), nil
		case models.UserRoleFreelancer:
			return OpenJobs(), nil
		}

	case EntityPayout:
		switch identity.Role {
		case models.UserRoleFreelancer:
			return fieldScope(EntityPayout, "freelancer_id", identity.ID), nil
		case models.UserRoleEmployer:
			return fieldScope(EntityPayout, "employer_id", identity.ID), nil
		}
	}

	return Scope{}, fmt.Errorf("realtime: role %q has no %s feed", identity.Role, entity)
}
