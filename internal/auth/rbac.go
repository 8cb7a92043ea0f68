package auth

import (
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/palisade-io/palisade/internal/domain"
)

const (
	defaultDecisionTTL     = 300 * time.Second
	defaultDecisionEntries = 10000
)

// Permitted reports whether the user holds a permission granting action on
// resource. It is a pure function over the already-hydrated user: two users
// with identical roles always yield identical decisions. The Admin action and
// the "*" resource act as wildcards; SuperAdmin carries them as data.
func Permitted(user *domain.User, action domain.Action, resource string) bool {
	for _, role := range user.Roles {
		for _, p := range role.Permissions {
			if p.Resource != resource && p.Resource != domain.WildcardResource {
				continue
			}
			if p.Action == action || p.Action == domain.ActionAdmin {
				return true
			}
		}
	}
	return false
}

type decisionKey struct {
	userID   uuid.UUID
	action   domain.Action
	resource string
}

// RBACService evaluates permission checks through a TTL and size bounded
// decision cache keyed by (user id, action, resource). The evaluator itself
// never performs I/O; permission data rides on the User.
type RBACService struct {
	decisions *expirable.LRU[decisionKey, bool]
}

func NewRBACService() *RBACService {
	return &RBACService{
		decisions: expirable.NewLRU[decisionKey, bool](defaultDecisionEntries, nil, defaultDecisionTTL),
	}
}

// CheckPermission returns the cached decision for (user, action, resource),
// computing and inserting it on a miss. A race on an identical decision is
// benign: last writer wins with the same value.
func (s *RBACService) CheckPermission(user *domain.User, action domain.Action, resource string) bool {
	key := decisionKey{userID: user.ID, action: action, resource: resource}
	if decision, ok := s.decisions.Get(key); ok {
		return decision
	}

	decision := Permitted(user, action, resource)
	s.decisions.Add(key, decision)
	return decision
}

// Invalidate drops every cached decision. Called when role or permission
// definitions change in a way that cannot be attributed to a single user.
func (s *RBACService) Invalidate() {
	s.decisions.Purge()
}

// InvalidateUser drops all cached decisions for one user. Role mutation
// paths call this so revoked roles stop deciding immediately.
func (s *RBACService) InvalidateUser(userID uuid.UUID) {
	for _, key := range s.decisions.Keys() {
		if key.userID == userID {
			s.decisions.Remove(key)
		}
	}
}
