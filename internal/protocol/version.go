// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Lorenzo Contributors

package protocol

// Version is the protocol version clients send on connect.
const Version = "1.0.0"

// DefaultVersionConstraint accepts every client of the current major
// version.
const DefaultVersionConstraint = "^1.0.0"
