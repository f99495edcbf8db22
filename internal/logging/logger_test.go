// Package logging tests for structured JSON logging.
package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
)

// Init is process-global, so one buffer serves every test in the package.
var logBuf bytes.Buffer

func init() {
	Init(&logBuf, logrus.DebugLevel)
}

func lastLine(t *testing.T) map[string]interface{} {
	t.Helper()
	lines := strings.Split(strings.TrimSpace(logBuf.String()), "\n")
	var entry map[string]interface{}
	if err := json.Unmarshal([]byte(lines[len(lines)-1]), &entry); err != nil {
		t.Fatalf("log line is not JSON: %v", err)
	}
	return entry
}

func TestInitIsIdempotent(t *testing.T) {
	var other bytes.Buffer
	Init(&other, logrus.InfoLevel)

	Info("after second init")
	if other.Len() != 0 {
		t.Error("second Init replaced the global logger")
	}
	if !strings.Contains(logBuf.String(), "after second init") {
		t.Error("log line missing from the original output")
	}
}

func TestInfoEmitsStructuredFields(t *testing.T) {
	logBuf.Reset()
	Info("pass completed", map[string]interface{}{
		"merged":  float64(4),
		"dropped": float64(1),
	})

	entry := lastLine(t)
	if entry["msg"] != "pass completed" {
		t.Errorf("msg = %v", entry["msg"])
	}
	if entry["level"] != "info" {
		t.Errorf("level = %v", entry["level"])
	}
	if entry["merged"] != float64(4) || entry["dropped"] != float64(1) {
		t.Errorf("context fields = %v/%v", entry["merged"], entry["dropped"])
	}
}

func TestErrorCarriesCause(t *testing.T) {
	logBuf.Reset()
	Error("push failed", errors.New("remote down"), map[string]interface{}{
		"record_id": "r1",
	})

	entry := lastLine(t)
	if entry["error"] != "remote down" {
		t.Errorf("error field = %v", entry["error"])
	}
	if entry["record_id"] != "r1" {
		t.Errorf("record_id = %v", entry["record_id"])
	}
}

func TestDebugRespectsLevel(t *testing.T) {
	logBuf.Reset()
	Debug("queue scan", nil)

	entry := lastLine(t)
	if entry["level"] != "debug" {
		t.Errorf("level = %v", entry["level"])
	}
}

func TestMultipleContextMapsMerge(t *testing.T) {
	logBuf.Reset()
	Warn("slow pass",
		map[string]interface{}{"elapsed": "2s"},
		map[string]interface{}{"records": float64(10)},
	)

	entry := lastLine(t)
	if entry["elapsed"] != "2s" || entry["records"] != float64(10) {
		t.Errorf("merged context = %v", entry)
	}
}
