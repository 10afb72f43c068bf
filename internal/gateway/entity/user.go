package entity

import (
	"context"
	"strings"
)

const DemoUserID UserID = "demo-user"

// UserID identifies a verified shopper.
type UserID string

// User is the identity the authenticating proxy vouched for.
type User struct {
	ID    UserID
	Email string
	Admin bool
}

func NewUser(rawID, email string) User {
	return User{ID: NormalizeUserID(rawID), Email: strings.TrimSpace(email)}
}

func NormalizeUserID(raw string) UserID {
	return UserID(strings.TrimSpace(raw))
}

func (id UserID) String() string {
	return strings.TrimSpace(string(id))
}

func (id UserID) IsZero() bool {
	return id.String() == ""
}

type userKey struct{}

func WithUser(ctx context.Context, u User) context.Context {
	return context.WithValue(ctx, userKey{}, u)
}

// UserFrom returns the verified user stored by the identity middleware.
func UserFrom(ctx context.Context) (User, bool) {
	u, ok := ctx.Value(userKey{}).(User)
	if !ok || u.ID.IsZero() {
		return User{}, false
	}
	return u, true
}
