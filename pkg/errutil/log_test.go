// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Lorenzo Contributors

package errutil_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/samber/oops"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lorenzo-online/lorenzo/pkg/errutil"
)

func decodeEntry(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	return entry
}

func TestLogError_OopsErrorCarriesCodeAndContext(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	err := oops.Code("NOT_STRONG_ENOUGH").
		With("place", "tower-3").
		Errorf("force 2 below 5")

	errutil.LogError(logger, "action refused", err)

	entry := decodeEntry(t, &buf)
	assert.Equal(t, "ERROR", entry["level"])
	assert.Equal(t, "action refused", entry["msg"])
	assert.Equal(t, "NOT_STRONG_ENOUGH", entry["code"])
	assert.Equal(t, map[string]any{"place": "tower-3"}, entry["context"])
}

func TestLogError_StandardError(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	errutil.LogError(logger, "operation failed", errors.New("standard error"))

	entry := decodeEntry(t, &buf)
	assert.Equal(t, "ERROR", entry["level"])
	assert.Contains(t, entry["error"], "standard error")
	assert.NotContains(t, entry, "code")
}

type ctxKey struct{}

// ctxHandler copies a context value into every record.
type ctxHandler struct{ slog.Handler }

func (h ctxHandler) Handle(ctx context.Context, r slog.Record) error {
	if v, ok := ctx.Value(ctxKey{}).(string); ok {
		r.AddAttrs(slog.String("request", v))
	}
	return h.Handler.Handle(ctx, r)
}

func TestLogErrorContext_PassesContext(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(ctxHandler{slog.NewJSONHandler(&buf, nil)})
	ctx := context.WithValue(context.Background(), ctxKey{}, "req-7")

	errutil.LogErrorContext(ctx, logger, "login failed", oops.Code("AUTH_LOGIN_FAILED").Errorf("db down"))

	entry := decodeEntry(t, &buf)
	assert.Equal(t, "req-7", entry["request"])
	assert.Equal(t, "AUTH_LOGIN_FAILED", entry["code"])
}
