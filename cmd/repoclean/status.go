package main

import (
	"flag"
	"fmt"
	"io"
	"time"

	"github.com/davidahmann/repoclean/core/journal"
	cleanup "github.com/davidahmann/repoclean/core/schema/v1/cleanup"
)

type statusOutput struct {
	OK              bool          `json:"ok"`
	SessionID       string        `json:"session_id,omitempty"`
	RepositoryPath  string        `json:"repository_path,omitempty"`
	BackupDirectory string        `json:"backup_directory,omitempty"`
	JournalPath     string        `json:"journal_path,omitempty"`
	OperationCount  int           `json:"operation_count"`
	Operations      []statusEntry `json:"operations,omitempty"`
	Header          *statusHeader `json:"header,omitempty"`
	Warning         string        `json:"warning,omitempty"`
	errorEnvelope
}

type statusHeader struct {
	CreatedAt       string `json:"created_at"`
	ProducerVersion string `json:"producer_version"`
}

type statusEntry struct {
	OperationID     string `json:"operation_id"`
	Sequence        int64  `json:"sequence"`
	OperationType   string `json:"operation_type"`
	State           string `json:"state"`
	SourcePath      string `json:"source_path"`
	DestinationPath string `json:"destination_path,omitempty"`
	BackupPath      string `json:"backup_path"`
	ContentHash     string `json:"content_hash"`
	Reason          string `json:"reason,omitempty"`
}

func runStatus(arguments []string) int {
	if hasExplainFlag(arguments) {
		return writeExplain("Show a session's journal: every operation with its state, backup artifact, and content hash. Defaults to the most recent session.")
	}
	flagSet := flag.NewFlagSet("status", flag.ContinueOnError)
	flagSet.SetOutput(io.Discard)

	var repoFlag string
	var configFlag string
	var backupDirFlag string
	var sessionFlag string
	var jsonOutput bool
	var helpFlag bool

	flagSet.StringVar(&repoFlag, "repo", ".", "repository root")
	flagSet.StringVar(&configFlag, "config", "", "path to project config (default <repo>/.repoclean/config.yaml)")
	flagSet.StringVar(&backupDirFlag, "backup-dir", "", "backup directory override")
	flagSet.StringVar(&sessionFlag, "session", "", "session id (default: most recent)")
	flagSet.BoolVar(&jsonOutput, "json", false, "emit JSON output")
	flagSet.BoolVar(&helpFlag, "help", false, "show help")

	arguments = reorderInterspersedFlags(arguments, map[string]bool{
		"repo": true, "config": true, "backup-dir": true, "session": true,
	})
	if err := flagSet.Parse(arguments); err != nil {
		return writeStatusOutput(hasJSONFlag(arguments), statusOutput{errorEnvelope: envelopeForError(err)}, exitInvalidInput)
	}
	if helpFlag {
		printStatusUsage()
		return exitOK
	}
	if len(flagSet.Args()) > 0 {
		return writeStatusOutput(jsonOutput, statusOutput{errorEnvelope: errorEnvelope{Error: "unexpected positional arguments"}}, exitInvalidInput)
	}

	setup, err := resolveSetup(repoFlag, configFlag, backupDirFlag)
	if err != nil {
		return writeStatusOutput(jsonOutput, statusOutput{errorEnvelope: envelopeForError(err)}, exitCodeForError(err, exitInvalidInput))
	}
	sess, err := attachSession(setup, sessionFlag)
	if err != nil {
		return writeStatusOutput(jsonOutput, statusOutput{errorEnvelope: envelopeForError(err)}, exitCodeForError(err, exitNotFound))
	}
	defer func() { _ = sess.Close() }()

	snapshot, err := journal.New(sess.JournalPath).Load()
	if err != nil {
		return writeStatusOutput(jsonOutput, statusOutput{
			SessionID:     sess.ID,
			errorEnvelope: envelopeForError(err),
		}, exitCodeForError(err, exitInternalFailure))
	}

	entries := make([]statusEntry, 0, len(snapshot.Operations))
	for _, operation := range snapshot.Operations {
		entries = append(entries, statusEntry{
			OperationID:     operation.OperationID,
			Sequence:        operation.Sequence,
			OperationType:   string(operation.OperationType),
			State:           string(snapshot.State(operation.OperationID)),
			SourcePath:      operation.SourcePath,
			DestinationPath: operation.DestinationPath,
			BackupPath:      operation.BackupPath,
			ContentHash:     operation.ContentHash,
			Reason:          operation.Metadata["reason"],
		})
	}
	return writeStatusOutput(jsonOutput, statusOutput{
		OK:              true,
		SessionID:       sess.ID,
		RepositoryPath:  sess.RepositoryPath,
		BackupDirectory: sess.BackupDirectory,
		JournalPath:     sess.JournalPath,
		OperationCount:  len(entries),
		Operations:      entries,
		Header: &statusHeader{
			CreatedAt:       snapshot.Header.CreatedAt.Format(time.RFC3339),
			ProducerVersion: snapshot.Header.ProducerVersion,
		},
		Warning: snapshot.Warning,
	}, exitOK)
}

func writeStatusOutput(jsonOutput bool, output statusOutput, exitCode int) int {
	if jsonOutput {
		return writeJSONOutput(output, exitCode)
	}
	if output.Error != "" {
		fmt.Printf("status error: %s\n", output.Error)
		if output.Hint != "" {
			fmt.Printf("hint: %s\n", output.Hint)
		}
		return exitCode
	}
	fmt.Printf("session %s (%d operation(s))\n", output.SessionID, output.OperationCount)
	fmt.Printf("journal: %s\n", output.JournalPath)
	for _, entry := range output.Operations {
		line := fmt.Sprintf("- %s seq=%d %s %s", entry.OperationID, entry.Sequence, entry.OperationType, entry.SourcePath)
		if entry.DestinationPath != "" {
			line += " -> " + entry.DestinationPath
		}
		line += fmt.Sprintf(" [%s]", entry.State)
		fmt.Println(line)
		if entry.State == string(cleanup.StateCompleted) {
			fmt.Printf("  backup: %s (%s)\n", entry.BackupPath, entry.ContentHash)
		}
	}
	if output.Warning != "" {
		fmt.Printf("warning: %s\n", output.Warning)
	}
	return exitCode
}

func printStatusUsage() {
	fmt.Println("Usage:")
	fmt.Println("  repoclean status [--session <id>] [--repo <path>] [--backup-dir <path>] [--config <path>] [--json] [--explain]")
}
