// ABOUTME: Tests for the colorized slog handler
// ABOUTME: Covers group-qualified attr keys and level filtering

package main

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestColorHandler_GroupQualifiesAttrKeys(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(&colorHandler{w: &buf, level: slog.LevelDebug})

	logger.WithGroup("req").With("method", "GET").Info("handled", "status", 200)

	out := buf.String()
	assert.Contains(t, out, "req.method=", "attrs bound after WithGroup carry the group prefix")
	assert.Contains(t, out, "req.status=", "record attrs carry the group prefix")
}

func TestColorHandler_NestedGroups(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(&colorHandler{w: &buf, level: slog.LevelDebug})

	logger.WithGroup("http").WithGroup("client").Info("dial", "addr", "localhost:8080")

	assert.Contains(t, buf.String(), "http.client.addr=")
}

func TestColorHandler_NoGroupLeavesKeysBare(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(&colorHandler{w: &buf, level: slog.LevelDebug})

	logger.With("component", "store").Info("opened", "path", "/tmp/db")

	out := buf.String()
	assert.Contains(t, out, " component=")
	assert.Contains(t, out, " path=")
	assert.NotContains(t, out, ".component=")
}

func TestColorHandler_LevelFilter(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(&colorHandler{w: &buf, level: slog.LevelInfo})

	logger.Debug("hidden")
	logger.Info("shown")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "shown")
}
