package main

import (
	"flag"
	"fmt"
	"io"
	"strings"

	"github.com/davidahmann/repoclean/core/errors"
	"github.com/davidahmann/repoclean/core/rollback"
)

type rollbackOutput struct {
	OK              bool              `json:"ok"`
	SessionID       string            `json:"session_id,omitempty"`
	RolledBackCount int               `json:"rolled_back_count"`
	Results         []rollback.Result `json:"results,omitempty"`
	Failures        []rollbackFailure `json:"failures,omitempty"`
	errorEnvelope
}

type rollbackFailure struct {
	OperationID   string `json:"operation_id"`
	Error         string `json:"error"`
	ErrorCategory string `json:"error_category,omitempty"`
}

func runRollback(arguments []string) int {
	if hasExplainFlag(arguments) {
		return writeExplain("Undo journaled operations: --op reverses one operation from its backup, --all reverses the whole session in reverse order, best-effort.")
	}
	flagSet := flag.NewFlagSet("rollback", flag.ContinueOnError)
	flagSet.SetOutput(io.Discard)

	var repoFlag string
	var configFlag string
	var backupDirFlag string
	var sessionFlag string
	var operationFlag string
	var allFlag bool
	var jsonOutput bool
	var helpFlag bool

	flagSet.StringVar(&repoFlag, "repo", ".", "repository root")
	flagSet.StringVar(&configFlag, "config", "", "path to project config (default <repo>/.repoclean/config.yaml)")
	flagSet.StringVar(&backupDirFlag, "backup-dir", "", "backup directory override")
	flagSet.StringVar(&sessionFlag, "session", "", "session id (default: most recent)")
	flagSet.StringVar(&operationFlag, "op", "", "operation id to roll back")
	flagSet.BoolVar(&allFlag, "all", false, "roll back every operation in the session")
	flagSet.BoolVar(&jsonOutput, "json", false, "emit JSON output")
	flagSet.BoolVar(&helpFlag, "help", false, "show help")

	arguments = reorderInterspersedFlags(arguments, map[string]bool{
		"repo": true, "config": true, "backup-dir": true, "session": true, "op": true,
	})
	if err := flagSet.Parse(arguments); err != nil {
		return writeRollbackOutput(hasJSONFlag(arguments), rollbackOutput{errorEnvelope: envelopeForError(err)}, exitInvalidInput)
	}
	if helpFlag {
		printRollbackUsage()
		return exitOK
	}
	if len(flagSet.Args()) > 0 {
		return writeRollbackOutput(jsonOutput, rollbackOutput{errorEnvelope: errorEnvelope{Error: "unexpected positional arguments"}}, exitInvalidInput)
	}
	hasOperation := strings.TrimSpace(operationFlag) != ""
	if hasOperation == allFlag {
		return writeRollbackOutput(jsonOutput, rollbackOutput{errorEnvelope: errorEnvelope{Error: "pass exactly one of --op <id> or --all"}}, exitInvalidInput)
	}

	setup, err := resolveSetup(repoFlag, configFlag, backupDirFlag)
	if err != nil {
		return writeRollbackOutput(jsonOutput, rollbackOutput{errorEnvelope: envelopeForError(err)}, exitCodeForError(err, exitInvalidInput))
	}
	sess, err := attachSession(setup, sessionFlag)
	if err != nil {
		return writeRollbackOutput(jsonOutput, rollbackOutput{errorEnvelope: envelopeForError(err)}, exitCodeForError(err, exitNotFound))
	}
	defer func() { _ = sess.Close() }()

	engine := rollback.NewEngine(sess, version)

	if hasOperation {
		result, rollbackErr := engine.RollbackOperation(operationFlag)
		if rollbackErr != nil {
			return writeRollbackOutput(jsonOutput, rollbackOutput{
				SessionID:     sess.ID,
				errorEnvelope: envelopeForError(rollbackErr),
			}, exitCodeForError(rollbackErr, exitInternalFailure))
		}
		return writeRollbackOutput(jsonOutput, rollbackOutput{
			OK:              true,
			SessionID:       sess.ID,
			RolledBackCount: 1,
			Results:         []rollback.Result{result},
		}, exitOK)
	}

	rolledBack, rollbackErr := engine.RollbackSession()
	output := rollbackOutput{SessionID: sess.ID, RolledBackCount: rolledBack}
	if rollbackErr != nil {
		for _, failure := range errors.FailuresOf(rollbackErr) {
			output.Failures = append(output.Failures, rollbackFailure{
				OperationID:   failure.OperationID,
				Error:         failure.Err.Error(),
				ErrorCategory: string(errors.CategoryOf(failure.Err)),
			})
		}
		output.errorEnvelope = envelopeForError(rollbackErr)
		return writeRollbackOutput(jsonOutput, output, exitCodeForError(rollbackErr, exitPartialRollback))
	}
	output.OK = true
	return writeRollbackOutput(jsonOutput, output, exitOK)
}

func writeRollbackOutput(jsonOutput bool, output rollbackOutput, exitCode int) int {
	if jsonOutput {
		return writeJSONOutput(output, exitCode)
	}
	if output.Error != "" && len(output.Failures) == 0 {
		fmt.Printf("rollback error: %s\n", output.Error)
		if output.Hint != "" {
			fmt.Printf("hint: %s\n", output.Hint)
		}
		return exitCode
	}
	fmt.Printf("rollback: session %s, %d operation(s) rolled back\n", output.SessionID, output.RolledBackCount)
	for _, result := range output.Results {
		fmt.Printf("- %s restored %s\n", result.OperationID, result.RestoredPath)
		if result.JournalWarning != "" {
			fmt.Printf("  warning: %s\n", result.JournalWarning)
		}
	}
	for _, failure := range output.Failures {
		fmt.Printf("- failed %s: %s\n", failure.OperationID, failure.Error)
	}
	return exitCode
}

func printRollbackUsage() {
	fmt.Println("Usage:")
	fmt.Println("  repoclean rollback --op <operation-id> | --all [--session <id>] [--repo <path>] [--backup-dir <path>] [--config <path>] [--json] [--explain]")
}
