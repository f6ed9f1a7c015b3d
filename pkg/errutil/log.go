// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Lorenzo Contributors

// Package errutil holds helpers for oops errors shared by every package.
package errutil

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/samber/oops"
)

// Code returns the oops code carried by err, or "" if it has none.
func Code(err error) string {
	if oopsErr, ok := oops.AsOops(err); ok && oopsErr.Code() != nil {
		return fmt.Sprint(oopsErr.Code())
	}
	return ""
}

// LogError logs err at error level. Oops errors contribute their code and
// context as attributes.
func LogError(logger *slog.Logger, msg string, err error) {
	logger.Error(msg, errorAttrs(err)...)
}

// LogErrorContext is LogError with a context, so handlers can pick up the
// active trace.
func LogErrorContext(ctx context.Context, logger *slog.Logger, msg string, err error) {
	logger.ErrorContext(ctx, msg, errorAttrs(err)...)
}

func errorAttrs(err error) []any {
	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return []any{"error", err}
	}
	attrs := []any{"error", oopsErr.Error()}
	if code := oopsErr.Code(); code != nil {
		attrs = append(attrs, "code", code)
	}
	if ctx := oopsErr.Context(); len(ctx) > 0 {
		attrs = append(attrs, "context", ctx)
	}
	return attrs
}
