package logging

import (
	"bytes"
	"os"
	"strings"
	"sync"
	"testing"
)

func TestLevel_StringAndColor(t *testing.T) {
	tests := []struct {
		level     Level
		wantName  string
		wantColor string
	}{
		{DEBUG, "DEBUG", "\033[36m"},
		{INFO, "INFO", "\033[32m"},
		{WARN, "WARN", "\033[33m"},
		{ERROR, "ERROR", "\033[31m"},
		{Level(42), "UNKNOWN", "\033[0m"},
	}

	for _, tt := range tests {
		t.Run(tt.wantName, func(t *testing.T) {
			if got := tt.level.String(); got != tt.wantName {
				t.Errorf("String() = %q, want %q", got, tt.wantName)
			}
			if got := tt.level.Color(); got != tt.wantColor {
				t.Errorf("Color() = %q, want %q", got, tt.wantColor)
			}
		})
	}
}

func TestLevelOrdering(t *testing.T) {
	if !(DEBUG < INFO && INFO < WARN && WARN < ERROR) {
		t.Error("levels must order DEBUG < INFO < WARN < ERROR")
	}
}

func TestNew(t *testing.T) {
	var buf bytes.Buffer
	logger := New(WARN, &buf)

	logger.Info("simulation sim-81 stored")
	if buf.Len() > 0 {
		t.Error("INFO should be suppressed at WARN level")
	}

	logger.Warn("executor exec-deploy unreachable")
	if !strings.Contains(buf.String(), "executor exec-deploy unreachable") {
		t.Errorf("WARN should be written, got %q", buf.String())
	}
}

func TestNew_NilOutputDefaultsToStdout(t *testing.T) {
	logger := New(INFO, nil)
	if logger.output != os.Stdout {
		t.Error("nil output should fall back to os.Stdout")
	}
}

func TestSetLevelAndOutput(t *testing.T) {
	origLevel := defaultLogger.level
	origOutput := defaultLogger.output
	defer func() {
		defaultLogger.level = origLevel
		defaultLogger.output = origOutput
	}()

	var buf bytes.Buffer
	SetLevel(DEBUG)
	SetOutput(&buf)

	Debug("scoring 3 candidates for action act-7")
	if !strings.Contains(buf.String(), "[DEBUG]") {
		t.Error("package-level Debug should write after SetLevel(DEBUG)")
	}
	if !strings.Contains(buf.String(), "act-7") {
		t.Error("message body missing from output")
	}
}

func TestPackageLevelFunctions(t *testing.T) {
	origLevel := defaultLogger.level
	origOutput := defaultLogger.output
	defer func() {
		defaultLogger.level = origLevel
		defaultLogger.output = origOutput
	}()

	var buf bytes.Buffer
	SetLevel(DEBUG)
	SetOutput(&buf)

	tests := []struct {
		name string
		fn   func(string, ...interface{})
		tag  string
	}{
		{"Debug", Debug, "[DEBUG]"},
		{"Info", Info, "[INFO]"},
		{"Warn", Warn, "[WARN]"},
		{"Error", Error, "[ERROR]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf.Reset()
			tt.fn("decision dec-1 moved to %s", "APPROVED")
			out := buf.String()
			if !strings.Contains(out, tt.tag) {
				t.Errorf("output missing %s tag: %q", tt.tag, out)
			}
			if !strings.Contains(out, "decision dec-1 moved to APPROVED") {
				t.Errorf("output missing formatted message: %q", out)
			}
		})
	}
}

func TestLogger_Methods(t *testing.T) {
	var buf bytes.Buffer
	logger := New(DEBUG, &buf)

	tests := []struct {
		name string
		fn   func(string, ...interface{})
		tag  string
	}{
		{"Debug", logger.Debug, "[DEBUG]"},
		{"Info", logger.Info, "[INFO]"},
		{"Warn", logger.Warn, "[WARN]"},
		{"Error", logger.Error, "[ERROR]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf.Reset()
			tt.fn("normalized 12 trajectories")
			if !strings.Contains(buf.String(), tt.tag) {
				t.Errorf("output missing %s tag: %q", tt.tag, buf.String())
			}
		})
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := New(ERROR, &buf)

	logger.Debug("ranked executor exec-general")
	logger.Info("ranked executor exec-general")
	logger.Warn("ranked executor exec-general")
	if buf.Len() > 0 {
		t.Errorf("nothing below ERROR should be written, got %q", buf.String())
	}

	logger.Error("vector index upsert failed for exec-general")
	if buf.Len() == 0 {
		t.Error("ERROR should always be written")
	}
}

func TestWithField(t *testing.T) {
	logger := WithField("simulation_id", "sim-42")

	if logger == nil {
		t.Fatal("WithField returned nil")
	}
	if logger.fields["simulation_id"] != "sim-42" {
		t.Error("field not carried on derived logger")
	}
	if len(defaultLogger.fields) > 0 {
		t.Error("default logger must stay free of fields")
	}
}

func TestWithFields(t *testing.T) {
	logger := WithFields(map[string]interface{}{
		"executor_id": "exec-notify",
		"attempt":     2,
	})

	if logger == nil {
		t.Fatal("WithFields returned nil")
	}
	if logger.fields["executor_id"] != "exec-notify" {
		t.Error("executor_id field missing")
	}
	if logger.fields["attempt"] != 2 {
		t.Error("attempt field missing")
	}
}

func TestLogger_WithField_CopiesFields(t *testing.T) {
	var buf bytes.Buffer
	base := New(INFO, &buf).WithField("simulation_id", "sim-42")

	derived := base.WithField("action_id", "act-7")

	if derived.fields["simulation_id"] != "sim-42" {
		t.Error("derived logger lost parent field")
	}
	if derived.fields["action_id"] != "act-7" {
		t.Error("derived logger missing its own field")
	}
	if _, ok := base.fields["action_id"]; ok {
		t.Error("parent logger gained the derived field")
	}

	// Writing to the derived map must not leak back into the parent.
	derived.fields["late"] = true
	if _, ok := base.fields["late"]; ok {
		t.Error("parent fields mutated through derived logger")
	}
}

func TestLogger_WithFields_Merges(t *testing.T) {
	var buf bytes.Buffer
	base := New(INFO, &buf).WithField("simulation_id", "sim-42")

	merged := base.WithFields(map[string]interface{}{
		"decision_id": "dec-9",
		"executor_id": "exec-general",
	})

	if len(merged.fields) != 3 {
		t.Errorf("got %d fields, want 3", len(merged.fields))
	}
	if merged.fields["simulation_id"] != "sim-42" {
		t.Error("parent field not preserved through merge")
	}
	if merged.fields["decision_id"] != "dec-9" {
		t.Error("merged field missing")
	}
}

func TestLogOutputFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := New(DEBUG, &buf).WithFields(map[string]interface{}{
		"decision_id": "dec-9",
		"attempt":     3,
	})

	logger.Info("retrying with executor %s", "exec-deploy")

	out := buf.String()
	if !strings.Contains(out, "[INFO]") {
		t.Errorf("output missing level tag: %q", out)
	}
	if !strings.Contains(out, "retrying with executor exec-deploy") {
		t.Errorf("output missing formatted message: %q", out)
	}
	if !strings.Contains(out, "decision_id=dec-9") {
		t.Errorf("output missing decision_id field: %q", out)
	}
	if !strings.Contains(out, "attempt=3") {
		t.Errorf("output missing attempt field: %q", out)
	}
}

func TestLogger_ConcurrentWrites(t *testing.T) {
	var buf bytes.Buffer
	logger := New(DEBUG, &buf)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			logger.Info("dispatched action act-%d", n)
		}(i)
	}
	wg.Wait()

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 16 {
		t.Errorf("expected 16 log lines, got %d", len(lines))
	}
}

func TestDefaultLogger(t *testing.T) {
	if defaultLogger == nil {
		t.Fatal("defaultLogger must be initialized")
	}
	if defaultLogger.level != INFO {
		t.Error("default level should be INFO")
	}
	if defaultLogger.output != os.Stdout {
		t.Error("default output should be os.Stdout")
	}
	if defaultLogger.fields == nil {
		t.Error("default fields map should be initialized")
	}
}
