package main

import (
	"encoding/json"
	"fmt"
	"strings"

	coreerrors "github.com/davidahmann/repoclean/core/errors"
)

const (
	exitOK                 = 0
	exitInternalFailure    = 1
	exitInvalidInput       = 2
	exitIntegrityFailed    = 3
	exitPreconditionFailed = 4
	exitNotFound           = 5
	exitPartialRollback    = 6
)

// hasJSONFlag reports whether --json appears in the raw arguments. Used on
// flag-parse failures, where the bound output variable was never set, so
// --json consumers still get a JSON error envelope.
func hasJSONFlag(arguments []string) bool {
	for _, argument := range arguments {
		if strings.TrimSpace(argument) == "--json" {
			return true
		}
	}
	return false
}

func writeJSONOutput(output any, exitCode int) int {
	encoded, err := marshalOutputWithErrorEnvelope(output, exitCode)
	if err != nil {
		fmt.Println(`{"ok":false,"error":"failed to encode output","error_category":"filesystem"}`)
		return exitInvalidInput
	}
	fmt.Println(string(encoded))
	return exitCode
}

// marshalOutputWithErrorEnvelope fills the error envelope fields when the
// output carries an error: category, severity, path, and hint, defaulted
// from the exit code when the command did not set them.
func marshalOutputWithErrorEnvelope(output any, exitCode int) ([]byte, error) {
	encoded, err := json.Marshal(output)
	if err != nil {
		return nil, err
	}
	result := map[string]any{}
	if err := json.Unmarshal(encoded, &result); err != nil {
		return nil, err
	}
	errorText := strings.TrimSpace(asString(result["error"]))
	if errorText == "" {
		return json.Marshal(result)
	}
	if strings.TrimSpace(asString(result["error_category"])) == "" {
		result["error_category"] = string(defaultErrorCategory(exitCode))
	}
	if strings.TrimSpace(asString(result["severity"])) == "" {
		result["severity"] = string(coreerrors.SeverityError)
	}
	if strings.TrimSpace(asString(result["hint"])) == "" {
		result["hint"] = defaultHint(exitCode)
	}
	return json.Marshal(result)
}

// errorEnvelope carries the classified fields of one failure into command
// output structs.
type errorEnvelope struct {
	Error         string `json:"error,omitempty"`
	ErrorCategory string `json:"error_category,omitempty"`
	Severity      string `json:"severity,omitempty"`
	Path          string `json:"path,omitempty"`
	Hint          string `json:"hint,omitempty"`
}

func envelopeForError(err error) errorEnvelope {
	if err == nil {
		return errorEnvelope{}
	}
	return errorEnvelope{
		Error:         err.Error(),
		ErrorCategory: string(coreerrors.CategoryOf(err)),
		Severity:      string(coreerrors.SeverityOf(err)),
		Path:          coreerrors.PathOf(err),
		Hint:          coreerrors.HintOf(err),
	}
}

func exitCodeForError(err error, fallbackExit int) int {
	if err == nil {
		return exitOK
	}
	switch coreerrors.CategoryOf(err) {
	case coreerrors.CategoryIntegrity, coreerrors.CategoryVerification:
		return exitIntegrityFailed
	case coreerrors.CategoryPrecondition:
		return exitPreconditionFailed
	case coreerrors.CategoryNotFound:
		return exitNotFound
	case coreerrors.CategoryAggregate:
		return exitPartialRollback
	case coreerrors.CategoryFileSystem, coreerrors.CategoryPersistence:
		return exitInternalFailure
	}
	return fallbackExit
}

func defaultErrorCategory(exitCode int) coreerrors.Category {
	switch exitCode {
	case exitInvalidInput:
		return coreerrors.CategoryPrecondition
	case exitIntegrityFailed:
		return coreerrors.CategoryIntegrity
	case exitPreconditionFailed:
		return coreerrors.CategoryPrecondition
	case exitNotFound:
		return coreerrors.CategoryNotFound
	case exitPartialRollback:
		return coreerrors.CategoryAggregate
	default:
		return coreerrors.CategoryFileSystem
	}
}

func defaultHint(exitCode int) string {
	switch exitCode {
	case exitInvalidInput:
		return "check command usage with 'repoclean <command> --help'"
	case exitIntegrityFailed:
		return "a content hash no longer matches; do not delete backups, inspect them manually"
	case exitPreconditionFailed:
		return "the operation's preconditions do not hold; nothing was changed"
	case exitNotFound:
		return "list sessions and operations with 'repoclean status'"
	case exitPartialRollback:
		return "re-run rollback after resolving the per-operation failures"
	default:
		return "retry after checking filesystem permissions and free space"
	}
}

func asString(value any) string {
	text, _ := value.(string)
	return text
}
