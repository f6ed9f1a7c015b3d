// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Lorenzo Contributors

package socket

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lorenzo-online/lorenzo/internal/transport"
	"github.com/lorenzo-online/lorenzo/pkg/errutil"
)

func TestNewFrame(t *testing.T) {
	f, err := newFrame(FrameLogin, 3, "tok", transport.Credentials{Username: "alice", Password: "pw"})
	require.NoError(t, err)

	data, err := json.Marshal(f)
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"login","id":3,"token":"tok","payload":{"username":"alice","password":"pw"}}`, string(data))
}

func TestNewFrameWithoutPayload(t *testing.T) {
	f, err := newFrame(FrameAck, 7, "", nil)
	require.NoError(t, err)

	data, err := json.Marshal(f)
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"ack","id":7}`, string(data))
}

func TestDecodePayload(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		p, err := decodePayload[connectPayload](Frame{Type: FrameConnect, Payload: json.RawMessage(`{"version":"1.2.0"}`)})
		require.NoError(t, err)
		assert.Equal(t, "1.2.0", p.Version)
	})

	t.Run("missing", func(t *testing.T) {
		_, err := decodePayload[connectPayload](Frame{Type: FrameConnect})
		errutil.AssertErrorCode(t, err, "FRAME_DECODE_FAILED")
	})

	t.Run("malformed", func(t *testing.T) {
		_, err := decodePayload[connectPayload](Frame{Type: FrameConnect, Payload: json.RawMessage(`[1,2]`)})
		errutil.AssertErrorCode(t, err, "FRAME_DECODE_FAILED")
	})
}
