// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Lorenzo Contributors

package grpcbind

import (
	"encoding/json"

	"google.golang.org/grpc/encoding"
)

// CodecName is the content subtype the Match service is spoken in.
const CodecName = "json"

func init() {
	encoding.RegisterCodec(jsonCodec{})
}

// jsonCodec carries the protocol envelopes as JSON instead of protobuf, so
// both bindings share one wire representation of actions and notifications.
type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error)      { return json.Marshal(v) }
func (jsonCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }
func (jsonCodec) Name() string                       { return CodecName }
