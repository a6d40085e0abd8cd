// Package events carries domain events from the OAuth service to their
// subscribers. The set of kinds is closed; each kind has a typed payload.
package events

import (
	"context"
	"time"
)

type Kind string

const (
	KindUserRegistered        Kind = "user_registered"
	KindUserLoggedIn          Kind = "user_logged_in"
	KindSocialAccountLinked   Kind = "social_account_linked"
	KindSocialAccountUnlinked Kind = "social_account_unlinked"
)

// Event is implemented only by the payload types of this package.
type Event interface {
	Kind() Kind
	event()
}

// MethodSocial is the Method of login/registration events from this service.
const MethodSocial = "social"

type UserRegistered struct {
	Tenant   string `json:"tenant"`
	UserID   string `json:"user_id"`
	Email    string `json:"email"`
	Method   string `json:"method"`
	Provider string `json:"provider,omitempty"`
}

type UserLoggedIn struct {
	Tenant      string `json:"tenant"`
	UserID      string `json:"user_id"`
	Method      string `json:"method"`
	Provider    string `json:"provider,omitempty"`
	Requires2FA bool   `json:"requires_2fa"`
}

type SocialAccountLinked struct {
	Tenant   string `json:"tenant"`
	UserID   string `json:"user_id"`
	Provider string `json:"provider"`
}

type SocialAccountUnlinked struct {
	Tenant   string `json:"tenant"`
	UserID   string `json:"user_id"`
	Provider string `json:"provider"`
}

func (UserRegistered) Kind() Kind        { return KindUserRegistered }
func (UserLoggedIn) Kind() Kind          { return KindUserLoggedIn }
func (SocialAccountLinked) Kind() Kind   { return KindSocialAccountLinked }
func (SocialAccountUnlinked) Kind() Kind { return KindSocialAccountUnlinked }

func (UserRegistered) event()        {}
func (UserLoggedIn) event()          {}
func (SocialAccountLinked) event()   {}
func (SocialAccountUnlinked) event() {}

// Envelope is the wire form published to external subscribers.
type Envelope struct {
	Kind       Kind      `json:"kind"`
	OccurredAt time.Time `json:"occurred_at"`
	Payload    Event     `json:"payload"`
}

// Emitter is what the service depends on. Emit must not block on slow
// subscribers.
type Emitter interface {
	Emit(ctx context.Context, e Event)
}

// Nop discards events.
type Nop struct{}

func (Nop) Emit(context.Context, Event) {}
