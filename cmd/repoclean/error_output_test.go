package main

import (
	stderrors "errors"
	"io"
	"os"
	"strings"
	"testing"

	coreerrors "github.com/davidahmann/repoclean/core/errors"
)

func captureStdout(t *testing.T, run func()) string {
	t.Helper()
	original := os.Stdout
	reader, writer, err := os.Pipe()
	if err != nil {
		t.Fatalf("pipe: %v", err)
	}
	os.Stdout = writer
	defer func() { os.Stdout = original }()
	run()
	_ = writer.Close()
	captured, err := io.ReadAll(reader)
	if err != nil {
		t.Fatalf("read captured output: %v", err)
	}
	return string(captured)
}

func TestHasJSONFlag(t *testing.T) {
	cases := []struct {
		name      string
		arguments []string
		want      bool
	}{
		{"present", []string{"--repo", ".", "--json"}, true},
		{"absent", []string{"--repo", "."}, false},
		{"empty", nil, false},
		{"equals form not matched", []string{"--json=true"}, false},
	}
	for _, testCase := range cases {
		t.Run(testCase.name, func(t *testing.T) {
			if got := hasJSONFlag(testCase.arguments); got != testCase.want {
				t.Fatalf("hasJSONFlag(%v) = %v, want %v", testCase.arguments, got, testCase.want)
			}
		})
	}
}

func TestParseErrorHonorsJSONFlag(t *testing.T) {
	var code int
	output := captureStdout(t, func() {
		code = runDispatch([]string{"repoclean", "scan", "--json", "--no-such-flag"})
	})
	if code != exitInvalidInput {
		t.Fatalf("exit = %d, want %d", code, exitInvalidInput)
	}
	trimmed := strings.TrimSpace(output)
	if !strings.HasPrefix(trimmed, "{") {
		t.Fatalf("malformed --json invocation produced non-JSON output: %q", trimmed)
	}
	if !strings.Contains(trimmed, `"error"`) || !strings.Contains(trimmed, `"hint"`) {
		t.Fatalf("JSON error envelope incomplete: %q", trimmed)
	}
}

func TestMarshalOutputWithErrorEnvelope(t *testing.T) {
	payload := map[string]any{
		"ok":    false,
		"error": "boom",
	}
	encoded, err := marshalOutputWithErrorEnvelope(payload, exitPreconditionFailed)
	if err != nil {
		t.Fatalf("marshalOutputWithErrorEnvelope: %v", err)
	}
	result := string(encoded)
	if !strings.Contains(result, `"error_category":"precondition"`) {
		t.Fatalf("missing error_category: %s", result)
	}
	if !strings.Contains(result, `"severity":"error"`) {
		t.Fatalf("missing severity: %s", result)
	}
	if !strings.Contains(result, `"hint":"the operation's preconditions do not hold; nothing was changed"`) {
		t.Fatalf("missing hint: %s", result)
	}
}

func TestMarshalOutputLeavesSuccessAlone(t *testing.T) {
	encoded, err := marshalOutputWithErrorEnvelope(map[string]any{"ok": true}, exitOK)
	if err != nil {
		t.Fatalf("marshalOutputWithErrorEnvelope: %v", err)
	}
	result := string(encoded)
	if strings.Contains(result, "error_category") || strings.Contains(result, "hint") {
		t.Fatalf("success output gained error fields: %s", result)
	}
}

func TestMarshalOutputKeepsExplicitEnvelope(t *testing.T) {
	payload := map[string]any{
		"ok":             false,
		"error":          "hash mismatch",
		"error_category": "integrity",
		"severity":       "critical",
		"hint":           "inspect the backup",
	}
	encoded, err := marshalOutputWithErrorEnvelope(payload, exitInternalFailure)
	if err != nil {
		t.Fatalf("marshalOutputWithErrorEnvelope: %v", err)
	}
	result := string(encoded)
	if !strings.Contains(result, `"error_category":"integrity"`) || !strings.Contains(result, `"severity":"critical"`) {
		t.Fatalf("explicit envelope overwritten: %s", result)
	}
}

func TestExitCodeForError(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, exitOK},
		{"plain falls back", stderrors.New("plain"), exitInvalidInput},
		{
			"integrity",
			coreerrors.New(coreerrors.CategoryIntegrity, coreerrors.SeverityCritical, "m", "", ""),
			exitIntegrityFailed,
		},
		{
			"verification",
			coreerrors.New(coreerrors.CategoryVerification, coreerrors.SeverityCritical, "m", "", ""),
			exitIntegrityFailed,
		},
		{
			"precondition",
			coreerrors.New(coreerrors.CategoryPrecondition, coreerrors.SeverityError, "m", "", ""),
			exitPreconditionFailed,
		},
		{
			"not found",
			coreerrors.New(coreerrors.CategoryNotFound, coreerrors.SeverityError, "m", "", ""),
			exitNotFound,
		},
		{
			"filesystem",
			coreerrors.New(coreerrors.CategoryFileSystem, coreerrors.SeverityError, "m", "", ""),
			exitInternalFailure,
		},
		{
			"persistence",
			coreerrors.New(coreerrors.CategoryPersistence, coreerrors.SeverityWarning, "m", "", ""),
			exitInternalFailure,
		},
		{
			"aggregate",
			coreerrors.NewAggregate(1, []coreerrors.OperationFailure{{OperationID: "x", Err: stderrors.New("y")}}),
			exitPartialRollback,
		},
	}
	for _, testCase := range cases {
		t.Run(testCase.name, func(t *testing.T) {
			if got := exitCodeForError(testCase.err, exitInvalidInput); got != testCase.want {
				t.Fatalf("exitCodeForError = %d, want %d", got, testCase.want)
			}
		})
	}
}

func TestEnvelopeForError(t *testing.T) {
	err := coreerrors.New(coreerrors.CategoryIntegrity, coreerrors.SeverityCritical, "hash mismatch", "/tmp/f", "inspect")
	envelope := envelopeForError(err)
	if envelope.Error != "hash mismatch" || envelope.ErrorCategory != "integrity" ||
		envelope.Severity != "critical" || envelope.Path != "/tmp/f" || envelope.Hint != "inspect" {
		t.Fatalf("envelope = %+v", envelope)
	}
	if empty := envelopeForError(nil); empty.Error != "" {
		t.Fatalf("nil error produced %+v", empty)
	}
}
