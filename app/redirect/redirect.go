// Package redirect reads and cleans the checkout session identifier carried by
// return URLs.
//
// Two conventions exist and are kept apart on purpose:
//   - the hosted checkout returns to /subscription/success?session_id=...
//   - the OAuth provider returns to /auth/callback#session_id=...
package redirect

import (
	"errors"
	"net/url"
	"strings"
)

const SessionIDParam = "session_id"

var ErrMissingSessionID = errors.New("session_id is missing from the return url")

// SessionIDFromQuery extracts the checkout session id from the query string.
func SessionIDFromQuery(u *url.URL) (string, error) {
	if u == nil {
		return "", ErrMissingSessionID
	}
	return nonEmpty(u.Query().Get(SessionIDParam))
}

// SessionIDFromFragment extracts the OAuth session id from the URL fragment.
func SessionIDFromFragment(u *url.URL) (string, error) {
	if u == nil || u.Fragment == "" {
		return "", ErrMissingSessionID
	}
	values, err := url.ParseQuery(strings.TrimPrefix(u.Fragment, "#"))
	if err != nil {
		return "", err
	}
	return nonEmpty(values.Get(SessionIDParam))
}

// StripSessionID returns a copy of u without the session id in either the
// query or the fragment, so reloading the page does not start another
// confirmation. Other parameters keep their original order and encoding.
func StripSessionID(u *url.URL) *url.URL {
	if u == nil {
		return nil
	}
	cleaned := *u

	if raw, removed := withoutSessionID(cleaned.RawQuery); removed {
		cleaned.RawQuery = raw
		cleaned.ForceQuery = false
	}

	if fragment := cleaned.EscapedFragment(); fragment != "" {
		if raw, removed := withoutSessionID(fragment); removed {
			if unescaped, err := url.PathUnescape(raw); err == nil {
				cleaned.Fragment = unescaped
				cleaned.RawFragment = raw
			}
		}
	}

	return &cleaned
}

// withoutSessionID drops every session_id pair from a raw query string.
func withoutSessionID(raw string) (string, bool) {
	if raw == "" {
		return raw, false
	}
	pairs := strings.Split(raw, "&")
	kept := pairs[:0]
	removed := false
	for _, pair := range pairs {
		key, _, _ := strings.Cut(pair, "=")
		if name, err := url.QueryUnescape(key); err == nil && name == SessionIDParam {
			removed = true
			continue
		}
		kept = append(kept, pair)
	}
	return strings.Join(kept, "&"), removed
}

func nonEmpty(value string) (string, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", ErrMissingSessionID
	}
	return value, nil
}
