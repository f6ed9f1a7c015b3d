// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Lorenzo Contributors

package socket

import (
	"encoding/json"

	"github.com/samber/oops"
)

// FrameType names a frame on the wire.
type FrameType string

// Frame types. Requests flow from client to server and are answered, in
// order, with connected, ack or error. Notifications flow the other way
// at any time.
const (
	FrameConnect      FrameType = "connect"
	FrameConnected    FrameType = "connected"
	FrameLogin        FrameType = "login"
	FrameRegister     FrameType = "register"
	FrameAction       FrameType = "action"
	FrameAck          FrameType = "ack"
	FrameNotification FrameType = "notification"
	FrameError        FrameType = "error"
	FrameDisconnect   FrameType = "disconnect"
)

// Frame is one line of the socket protocol. ID correlates a reply with
// its request.
type Frame struct {
	Type    FrameType       `json:"type"`
	ID      uint64          `json:"id,omitempty"`
	Token   string          `json:"token,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type connectPayload struct {
	Version string `json:"version"`
}

type connectedPayload struct {
	Token string `json:"token"`
}

type errorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func newFrame(typ FrameType, id uint64, token string, payload any) (Frame, error) {
	f := Frame{Type: typ, ID: id, Token: token}
	if payload == nil {
		return f, nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return Frame{}, oops.Code("FRAME_ENCODE_FAILED").With("type", typ).Wrap(err)
	}
	f.Payload = data
	return f, nil
}

func decodePayload[T any](f Frame) (T, error) {
	var v T
	if len(f.Payload) == 0 {
		return v, oops.Code("FRAME_DECODE_FAILED").With("type", f.Type).Errorf("%s frame has no payload", f.Type)
	}
	if err := json.Unmarshal(f.Payload, &v); err != nil {
		return v, oops.Code("FRAME_DECODE_FAILED").With("type", f.Type).Wrap(err)
	}
	return v, nil
}
