// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package redact strips credentials from URLs before they reach logs.
package redact

import (
	"errors"
	"net/url"
	"strings"
)

const placeholder = "REDACTED"

var sensitiveParams = map[string]struct{}{
	"apikey":   {},
	"api_key":  {},
	"token":    {},
	"passkey":  {},
	"password": {},
}

// URLString returns raw with sensitive query values and any userinfo
// password replaced. Unparseable input is returned as a placeholder.
func URLString(raw string) string {
	if raw == "" {
		return ""
	}

	u, err := url.Parse(raw)
	if err != nil {
		return placeholder
	}

	if u.User != nil {
		if _, ok := u.User.Password(); ok {
			u.User = url.UserPassword(u.User.Username(), placeholder)
		}
	}

	if u.RawQuery == "" {
		return u.String()
	}

	q := u.Query()
	changed := false
	for key := range q {
		if _, ok := sensitiveParams[strings.ToLower(key)]; ok {
			q.Set(key, placeholder)
			changed = true
		}
	}
	if changed {
		u.RawQuery = q.Encode()
	}

	return u.String()
}

// URLError redacts the URL carried by a *url.Error anywhere in err's chain.
// Other errors are returned unchanged.
func URLError(err error) error {
	if err == nil {
		return nil
	}

	var urlErr *url.Error
	if !errors.As(err, &urlErr) {
		return err
	}

	redacted := &url.Error{Op: urlErr.Op, URL: URLString(urlErr.URL), Err: urlErr.Err}
	if err == error(urlErr) {
		return redacted
	}

	return &wrappedError{
		msg: strings.ReplaceAll(err.Error(), urlErr.URL, redacted.URL),
		err: redacted,
	}
}

type wrappedError struct {
	msg string
	err error
}

func (e *wrappedError) Error() string { return e.msg }
func (e *wrappedError) Unwrap() error { return e.err }
