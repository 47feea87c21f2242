package domain

import "context"

type Role string

const (
	RoleMember    Role = "member"
	RoleAdmin     Role = "admin"
	RoleModerator Role = "moderator"
	RoleBilling   Role = "billing"
)

// Actor is the identity supplied by the authentication boundary.
type Actor struct {
	UserID string
	OrgID  string
	Role   Role
}

func (a *Actor) IsModerator() bool {
	return a != nil && a.Role == RoleModerator
}

// CanView reports whether the actor may read the link.
func (a *Actor) CanView(l *Link) bool {
	if a == nil {
		return false
	}
	return a.IsModerator() || a.OrgID == l.OrgID
}

// CanManage reports whether the actor may edit, disable or delete the link.
func (a *Actor) CanManage(l *Link) bool {
	if a == nil {
		return false
	}
	if a.IsModerator() {
		return true
	}
	if a.OrgID != l.OrgID {
		return false
	}
	return a.Role == RoleAdmin || a.UserID == l.CreatedBy
}

type actorKey struct{}

// NewActorContext returns a context carrying the actor.
func NewActorContext(ctx context.Context, a *Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, a)
}

// ActorFromContext returns the actor stored by the authentication filter.
func ActorFromContext(ctx context.Context) (*Actor, bool) {
	a, ok := ctx.Value(actorKey{}).(*Actor)
	return a, ok && a != nil
}
