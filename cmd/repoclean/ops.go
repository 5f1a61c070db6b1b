package main

import (
	"flag"
	"fmt"
	"io"
	"strings"

	cleanup "github.com/davidahmann/repoclean/core/schema/v1/cleanup"
	"github.com/davidahmann/repoclean/core/txn"
)

// operationOutput is shared by the delete and rename commands; both report
// one executor result.
type operationOutput struct {
	OK             bool                     `json:"ok"`
	SessionID      string                   `json:"session_id,omitempty"`
	Changed        bool                     `json:"changed"`
	Operation      *cleanup.OperationRecord `json:"operation,omitempty"`
	JournalWarning string                   `json:"journal_warning,omitempty"`
	errorEnvelope
}

func runDelete(arguments []string) int {
	if hasExplainFlag(arguments) {
		return writeExplain("Safely delete one file: verified backup first, then delete, then journal. Deleting an absent file is a no-op success.")
	}
	flagSet := flag.NewFlagSet("delete", flag.ContinueOnError)
	flagSet.SetOutput(io.Discard)

	var repoFlag string
	var configFlag string
	var backupDirFlag string
	var sessionFlag string
	var pathFlag string
	var reasonFlag string
	var jsonOutput bool
	var helpFlag bool

	flagSet.StringVar(&repoFlag, "repo", ".", "repository root")
	flagSet.StringVar(&configFlag, "config", "", "path to project config (default <repo>/.repoclean/config.yaml)")
	flagSet.StringVar(&backupDirFlag, "backup-dir", "", "backup directory override")
	flagSet.StringVar(&sessionFlag, "session", "", "extend an existing session instead of starting a new one")
	flagSet.StringVar(&pathFlag, "path", "", "file to delete")
	flagSet.StringVar(&reasonFlag, "reason", "", "recorded reason for the deletion")
	flagSet.BoolVar(&jsonOutput, "json", false, "emit JSON output")
	flagSet.BoolVar(&helpFlag, "help", false, "show help")

	arguments = reorderInterspersedFlags(arguments, map[string]bool{
		"repo": true, "config": true, "backup-dir": true, "session": true, "path": true, "reason": true,
	})
	if err := flagSet.Parse(arguments); err != nil {
		return writeOperationOutput(hasJSONFlag(arguments), "delete", operationOutput{errorEnvelope: envelopeForError(err)}, exitInvalidInput)
	}
	if helpFlag {
		printDeleteUsage()
		return exitOK
	}
	if pathFlag == "" && len(flagSet.Args()) == 1 {
		pathFlag = flagSet.Args()[0]
	} else if len(flagSet.Args()) > 0 {
		return writeOperationOutput(jsonOutput, "delete", operationOutput{errorEnvelope: errorEnvelope{Error: "unexpected positional arguments"}}, exitInvalidInput)
	}
	if strings.TrimSpace(pathFlag) == "" {
		return writeOperationOutput(jsonOutput, "delete", operationOutput{errorEnvelope: errorEnvelope{Error: "missing required --path <file>"}}, exitInvalidInput)
	}

	return runExecutorOperation(jsonOutput, "delete", repoFlag, configFlag, backupDirFlag, sessionFlag,
		func(executor *txn.Executor) (txn.Result, error) {
			return executor.SafeDelete(pathFlag, reasonFlag)
		})
}

func runRename(arguments []string) int {
	if hasExplainFlag(arguments) {
		return writeExplain("Safely rename one file: verified backup first, then rename, then journal. Never overwrites an existing destination.")
	}
	flagSet := flag.NewFlagSet("rename", flag.ContinueOnError)
	flagSet.SetOutput(io.Discard)

	var repoFlag string
	var configFlag string
	var backupDirFlag string
	var sessionFlag string
	var sourceFlag string
	var destinationFlag string
	var reasonFlag string
	var jsonOutput bool
	var helpFlag bool

	flagSet.StringVar(&repoFlag, "repo", ".", "repository root")
	flagSet.StringVar(&configFlag, "config", "", "path to project config (default <repo>/.repoclean/config.yaml)")
	flagSet.StringVar(&backupDirFlag, "backup-dir", "", "backup directory override")
	flagSet.StringVar(&sessionFlag, "session", "", "extend an existing session instead of starting a new one")
	flagSet.StringVar(&sourceFlag, "source", "", "file to rename")
	flagSet.StringVar(&destinationFlag, "destination", "", "new path for the file")
	flagSet.StringVar(&reasonFlag, "reason", "", "recorded reason for the rename")
	flagSet.BoolVar(&jsonOutput, "json", false, "emit JSON output")
	flagSet.BoolVar(&helpFlag, "help", false, "show help")

	arguments = reorderInterspersedFlags(arguments, map[string]bool{
		"repo": true, "config": true, "backup-dir": true, "session": true,
		"source": true, "destination": true, "reason": true,
	})
	if err := flagSet.Parse(arguments); err != nil {
		return writeOperationOutput(hasJSONFlag(arguments), "rename", operationOutput{errorEnvelope: envelopeForError(err)}, exitInvalidInput)
	}
	if helpFlag {
		printRenameUsage()
		return exitOK
	}
	positionals := flagSet.Args()
	if sourceFlag == "" && destinationFlag == "" && len(positionals) == 2 {
		sourceFlag, destinationFlag = positionals[0], positionals[1]
	} else if len(positionals) > 0 {
		return writeOperationOutput(jsonOutput, "rename", operationOutput{errorEnvelope: errorEnvelope{Error: "unexpected positional arguments"}}, exitInvalidInput)
	}
	if strings.TrimSpace(sourceFlag) == "" || strings.TrimSpace(destinationFlag) == "" {
		return writeOperationOutput(jsonOutput, "rename", operationOutput{errorEnvelope: errorEnvelope{Error: "missing required --source <file> and --destination <file>"}}, exitInvalidInput)
	}

	return runExecutorOperation(jsonOutput, "rename", repoFlag, configFlag, backupDirFlag, sessionFlag,
		func(executor *txn.Executor) (txn.Result, error) {
			return executor.SafeRename(sourceFlag, destinationFlag, reasonFlag)
		})
}

func runExecutorOperation(
	jsonOutput bool,
	commandName, repoFlag, configFlag, backupDirFlag, sessionFlag string,
	operation func(*txn.Executor) (txn.Result, error),
) int {
	setup, err := resolveSetup(repoFlag, configFlag, backupDirFlag)
	if err != nil {
		return writeOperationOutput(jsonOutput, commandName, operationOutput{errorEnvelope: envelopeForError(err)}, exitCodeForError(err, exitInvalidInput))
	}
	sess, err := openSession(setup, sessionFlag)
	if err != nil {
		return writeOperationOutput(jsonOutput, commandName, operationOutput{errorEnvelope: envelopeForError(err)}, exitCodeForError(err, exitInternalFailure))
	}
	defer func() { _ = sess.Close() }()

	executor, err := txn.NewExecutor(sess, version)
	if err != nil {
		return writeOperationOutput(jsonOutput, commandName, operationOutput{
			SessionID:     sess.ID,
			errorEnvelope: envelopeForError(err),
		}, exitCodeForError(err, exitInternalFailure))
	}
	result, err := operation(executor)
	if err != nil {
		return writeOperationOutput(jsonOutput, commandName, operationOutput{
			SessionID:     sess.ID,
			errorEnvelope: envelopeForError(err),
		}, exitCodeForError(err, exitInternalFailure))
	}
	return writeOperationOutput(jsonOutput, commandName, operationOutput{
		OK:             true,
		SessionID:      sess.ID,
		Changed:        result.Changed,
		Operation:      result.Operation,
		JournalWarning: result.JournalWarning,
	}, exitOK)
}

func writeOperationOutput(jsonOutput bool, commandName string, output operationOutput, exitCode int) int {
	if jsonOutput {
		return writeJSONOutput(output, exitCode)
	}
	if output.Error != "" {
		fmt.Printf("%s error: %s\n", commandName, output.Error)
		if output.Hint != "" {
			fmt.Printf("hint: %s\n", output.Hint)
		}
		return exitCode
	}
	if !output.Changed {
		fmt.Printf("%s: nothing to do\n", commandName)
		return exitCode
	}
	operation := output.Operation
	if operation != nil {
		fmt.Printf("%s: %s (operation %s, session %s)\n", commandName, operation.SourcePath, operation.OperationID, output.SessionID)
		fmt.Printf("backup: %s (%s)\n", operation.BackupPath, operation.ContentHash)
		fmt.Printf("undo with: repoclean rollback --op %s --session %s\n", operation.OperationID, output.SessionID)
	}
	if output.JournalWarning != "" {
		fmt.Printf("warning: %s\n", output.JournalWarning)
	}
	return exitCode
}

func printDeleteUsage() {
	fmt.Println("Usage:")
	fmt.Println("  repoclean delete --path <file> [--reason <text>] [--repo <path>] [--session <id>] [--backup-dir <path>] [--config <path>] [--json] [--explain]")
}

func printRenameUsage() {
	fmt.Println("Usage:")
	fmt.Println("  repoclean rename --source <file> --destination <file> [--reason <text>] [--repo <path>] [--session <id>] [--backup-dir <path>] [--config <path>] [--json] [--explain]")
}
