// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package identity models the session owner context and the event stream of
// sign-in/sign-out transitions. The owner context is an explicit value
// passed to consumers, never ambient shared state.
package identity

import (
	"errors"
	"sync"
)

// Owner identifies which backend governs a repository's reads and writes:
// the zero value is the anonymous on-device session, a non-zero UserID is an
// authenticated remote session.
type Owner struct {
	UserID string
	Email  string
}

// Anonymous returns the anonymous owner context.
func Anonymous() Owner {
	return Owner{}
}

// Authenticated returns the owner context of a signed-in user.
func Authenticated(uid, email string) Owner {
	return Owner{UserID: uid, Email: email}
}

// IsAnonymous reports whether this is the anonymous session.
func (o Owner) IsAnonymous() bool {
	return o.UserID == ""
}

// String implements fmt.Stringer for log fields.
func (o Owner) String() string {
	if o.IsAnonymous() {
		return "anonymous"
	}
	return "user:" + o.UserID
}

// ErrEmptyUserID is returned by SignIn when no user id is supplied.
var ErrEmptyUserID = errors.New("identity: empty user id")

// Provider broadcasts owner-context transitions to subscribers. It stands in
// for an external identity service: whatever performs the actual
// authentication calls SignIn/SignOut, and the rest of the application only
// consumes the resulting event stream.
type Provider struct {
	mu      sync.Mutex
	current Owner
	subs    map[int]func(Owner)
	nextID  int
}

// NewProvider creates a provider starting in the anonymous state.
func NewProvider() *Provider {
	return &Provider{subs: make(map[int]func(Owner))}
}

// Current returns the owner context as of the last transition.
func (p *Provider) Current() Owner {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current
}

// Subscribe registers fn for owner transitions and immediately delivers the
// current state, mirroring how an auth listener fires once on attach. The
// returned cancel function stops further deliveries.
func (p *Provider) Subscribe(fn func(Owner)) func() {
	p.mu.Lock()
	id := p.nextID
	p.nextID++
	p.subs[id] = fn
	current := p.current
	p.mu.Unlock()

	fn(current)

	return func() {
		p.mu.Lock()
		delete(p.subs, id)
		p.mu.Unlock()
	}
}

// SignIn transitions to the authenticated owner context and notifies
// subscribers. Signing in while already authenticated (as the same or a
// different user) is delivered as a plain transition; edge detection is the
// consumer's concern.
func (p *Provider) SignIn(uid, email string) error {
	if uid == "" {
		return ErrEmptyUserID
	}
	p.broadcast(Authenticated(uid, email))
	return nil
}

// SignOut transitions back to the anonymous owner context.
func (p *Provider) SignOut() {
	p.broadcast(Anonymous())
}

// broadcast updates the current state and notifies subscribers outside the
// lock, in stable registration order not guaranteed.
func (p *Provider) broadcast(next Owner) {
	p.mu.Lock()
	p.current = next
	fns := make([]func(Owner), 0, len(p.subs))
	for _, fn := range p.subs {
		fns = append(fns, fn)
	}
	p.mu.Unlock()

	for _, fn := range fns {
		fn(next)
	}
}
