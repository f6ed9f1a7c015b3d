// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Lorenzo Contributors

package transport

import (
	"errors"

	"github.com/samber/oops"

	"github.com/lorenzo-online/lorenzo/pkg/errutil"
)

// Error codes shared by every binding.
const (
	CodeConnectionFailed     = "CONNECTION_FAILED"
	CodeNotConnected         = "NOT_CONNECTED"
	CodeNotAuthenticated     = "NOT_AUTHENTICATED"
	CodeUnknownToken         = "UNKNOWN_TOKEN"
	CodeIncompatibleVersion  = "INCOMPATIBLE_VERSION"
	CodeAlreadyAuthenticated = "ALREADY_AUTHENTICATED"
)

// Sentinels callers branch on with errors.Is.
var (
	ErrNotConnected     = errors.New("not connected")
	ErrNotAuthenticated = errors.New("not authenticated")
)

// ConnectionError wraps a failure to reach the server.
func ConnectionError(addr string, err error) error {
	return oops.Code(CodeConnectionFailed).
		With("addr", addr).
		Wrapf(err, "connect to %s", addr)
}

// NotConnectedError is returned when an operation needs a live connection.
func NotConnectedError() error {
	return oops.Code(CodeNotConnected).Wrap(ErrNotConnected)
}

// NotAuthenticatedError is returned when an action is submitted before a
// successful login.
func NotAuthenticatedError() error {
	return oops.Code(CodeNotAuthenticated).Wrap(ErrNotAuthenticated)
}

// UnknownTokenError is returned by a Core for a token it never issued or
// already released.
func UnknownTokenError(token string) error {
	return oops.Code(CodeUnknownToken).
		With("token", token).
		Wrap(ErrNotConnected)
}

// IncompatibleVersionError is returned by Connect when the client's
// protocol version does not satisfy the server's constraint.
func IncompatibleVersionError(version, constraint string, err error) error {
	b := oops.Code(CodeIncompatibleVersion).
		With("version", version).
		With("constraint", constraint)
	if err != nil {
		return b.Wrapf(err, "protocol version %q is not supported", version)
	}
	return b.Errorf("protocol version %q does not satisfy %s", version, constraint)
}

// AlreadyAuthenticatedError is returned by Login or Register on a
// connection that is already logged in.
func AlreadyAuthenticatedError(username string) error {
	return oops.Code(CodeAlreadyAuthenticated).
		With("username", username).
		Errorf("already logged in as %s", username)
}

// ErrorCode returns the oops code carried by err, or "" if it has none.
func ErrorCode(err error) string {
	return errutil.Code(err)
}

// FromCode rebuilds, on the client side, an error a server sent as a code
// and a message. Sentinels survive the trip so errors.Is keeps working.
func FromCode(code, message string) error {
	switch code {
	case CodeUnknownToken, CodeNotConnected:
		return oops.Code(code).Wrapf(ErrNotConnected, "%s", message)
	case CodeNotAuthenticated:
		return oops.Code(code).Wrapf(ErrNotAuthenticated, "%s", message)
	case "":
		return oops.Errorf("%s", message)
	}
	return oops.Code(code).Errorf("%s", message)
}
