// Package session carries the authenticated user's token and record
// explicitly instead of reading them from ambient storage.
package session

import (
	"errors"
	"strings"
	"sync/atomic"

	"github.com/vibast-solutions/ms-go-payment-confirmations/app/entity"
)

var ErrUnauthorized = errors.New("unauthorized")

// Session is the token plus the last known user record. The record is only
// ever replaced whole; readers never observe a partially updated user.
type Session struct {
	token string
	user  atomic.Pointer[entity.User]
}

func New(token string) *Session {
	return &Session{token: strings.TrimSpace(token)}
}

func NewWithUser(token string, user *entity.User) *Session {
	s := New(token)
	s.user.Store(user)
	return s
}

func (s *Session) Token() string {
	return s.token
}

func (s *Session) User() *entity.User {
	return s.user.Load()
}

func (s *Session) Replace(user *entity.User) {
	s.user.Store(user)
}
