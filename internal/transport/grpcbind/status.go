// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Lorenzo Contributors

package grpcbind

import (
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/lorenzo-online/lorenzo/internal/transport"
)

var statusCodes = map[string]codes.Code{
	transport.CodeUnknownToken:         codes.NotFound,
	transport.CodeNotConnected:         codes.NotFound,
	transport.CodeNotAuthenticated:     codes.Unauthenticated,
	transport.CodeIncompatibleVersion:  codes.FailedPrecondition,
	transport.CodeAlreadyAuthenticated: codes.AlreadyExists,
	"SERVER_CLOSED":                    codes.Unavailable,
}

// toStatus converts a Core error into a gRPC status error.
func toStatus(err error) error {
	if err == nil {
		return nil
	}
	code, ok := statusCodes[transport.ErrorCode(err)]
	if !ok {
		code = codes.Internal
	}
	return status.Error(code, err.Error())
}

// fromStatus converts a gRPC error received by the client back into a
// transport error.
func fromStatus(addr string, err error) error {
	st, ok := status.FromError(err)
	if !ok {
		return transport.ConnectionError(addr, err)
	}
	switch st.Code() {
	case codes.NotFound:
		return transport.FromCode(transport.CodeUnknownToken, st.Message())
	case codes.Unauthenticated:
		return transport.FromCode(transport.CodeNotAuthenticated, st.Message())
	case codes.FailedPrecondition:
		return transport.FromCode(transport.CodeIncompatibleVersion, st.Message())
	case codes.AlreadyExists:
		return transport.FromCode(transport.CodeAlreadyAuthenticated, st.Message())
	case codes.Unavailable, codes.DeadlineExceeded, codes.Canceled:
		return transport.ConnectionError(addr, err)
	}
	return transport.FromCode("", st.Message())
}
