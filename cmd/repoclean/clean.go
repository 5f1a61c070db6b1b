package main

import (
	"flag"
	"fmt"
	"io"
	"path/filepath"

	"github.com/davidahmann/repoclean/core/errors"
	"github.com/davidahmann/repoclean/core/scan"
	"github.com/davidahmann/repoclean/core/txn"
)

type cleanOutput struct {
	OK         bool           `json:"ok"`
	DryRun     bool           `json:"dry_run"`
	SessionID  string         `json:"session_id,omitempty"`
	Candidates []scan.Issue   `json:"candidates,omitempty"`
	Deleted    []string       `json:"deleted,omitempty"`
	Reported   []scan.Issue   `json:"reported_only,omitempty"`
	Failures   []cleanFailure `json:"failures,omitempty"`
	Warnings   []string       `json:"warnings,omitempty"`
	errorEnvelope
}

type cleanFailure struct {
	Path          string `json:"path"`
	Error         string `json:"error"`
	ErrorCategory string `json:"error_category,omitempty"`
}

func runClean(arguments []string) int {
	if hasExplainFlag(arguments) {
		return writeExplain("Delete flagged files through the safety layer. Dry-run by default; --apply takes a verified backup and journals every deletion so the session can be rolled back.")
	}
	flagSet := flag.NewFlagSet("clean", flag.ContinueOnError)
	flagSet.SetOutput(io.Discard)

	var repoFlag string
	var configFlag string
	var backupDirFlag string
	var sessionFlag string
	var applyFlag bool
	var jsonOutput bool
	var helpFlag bool

	flagSet.StringVar(&repoFlag, "repo", ".", "repository root to clean")
	flagSet.StringVar(&configFlag, "config", "", "path to project config (default <repo>/.repoclean/config.yaml)")
	flagSet.StringVar(&backupDirFlag, "backup-dir", "", "backup directory override")
	flagSet.StringVar(&sessionFlag, "session", "", "extend an existing session instead of starting a new one")
	flagSet.BoolVar(&applyFlag, "apply", false, "actually delete; without it clean only reports candidates")
	flagSet.BoolVar(&jsonOutput, "json", false, "emit JSON output")
	flagSet.BoolVar(&helpFlag, "help", false, "show help")

	arguments = reorderInterspersedFlags(arguments, map[string]bool{
		"repo": true, "config": true, "backup-dir": true, "session": true,
	})
	if err := flagSet.Parse(arguments); err != nil {
		return writeCleanOutput(hasJSONFlag(arguments), cleanOutput{errorEnvelope: envelopeForError(err)}, exitInvalidInput)
	}
	if helpFlag {
		printCleanUsage()
		return exitOK
	}
	if len(flagSet.Args()) > 0 {
		return writeCleanOutput(jsonOutput, cleanOutput{errorEnvelope: errorEnvelope{Error: "unexpected positional arguments"}}, exitInvalidInput)
	}

	setup, err := resolveSetup(repoFlag, configFlag, backupDirFlag)
	if err != nil {
		return writeCleanOutput(jsonOutput, cleanOutput{errorEnvelope: envelopeForError(err)}, exitCodeForError(err, exitInvalidInput))
	}

	rules := scan.DefaultRuleset().Extend(setup.Config.Scan.ExtraSuffixes, setup.Config.Scan.IgnoreDirectories)
	issues, err := scan.NewScanner(setup.RepositoryPath, rules).Scan()
	if err != nil {
		return writeCleanOutput(jsonOutput, cleanOutput{errorEnvelope: envelopeForError(err)}, exitCodeForError(err, exitInternalFailure))
	}

	var candidates []scan.Issue
	var reported []scan.Issue
	for _, issue := range issues {
		if scan.Deletable(issue.Kind) {
			candidates = append(candidates, issue)
		} else {
			reported = append(reported, issue)
		}
	}

	if !applyFlag {
		return writeCleanOutput(jsonOutput, cleanOutput{
			OK:         true,
			DryRun:     true,
			Candidates: candidates,
			Reported:   reported,
		}, exitOK)
	}

	sess, err := openSession(setup, sessionFlag)
	if err != nil {
		return writeCleanOutput(jsonOutput, cleanOutput{errorEnvelope: envelopeForError(err)}, exitCodeForError(err, exitInternalFailure))
	}
	defer func() { _ = sess.Close() }()

	executor, err := txn.NewExecutor(sess, version)
	if err != nil {
		return writeCleanOutput(jsonOutput, cleanOutput{
			SessionID:     sess.ID,
			errorEnvelope: envelopeForError(err),
		}, exitCodeForError(err, exitInternalFailure))
	}

	output := cleanOutput{SessionID: sess.ID, Reported: reported}
	for _, issue := range candidates {
		absolute := filepath.Join(setup.RepositoryPath, issue.Path)
		result, deleteErr := executor.SafeDelete(absolute, issue.Reason)
		if deleteErr != nil {
			output.Failures = append(output.Failures, cleanFailure{
				Path:          absolute,
				Error:         deleteErr.Error(),
				ErrorCategory: string(errors.CategoryOf(deleteErr)),
			})
			// A critical failure means backups can no longer be trusted;
			// stop instead of moving to the next candidate.
			if errors.IsCritical(deleteErr) {
				output.errorEnvelope = envelopeForError(deleteErr)
				return writeCleanOutput(jsonOutput, output, exitCodeForError(deleteErr, exitInternalFailure))
			}
			continue
		}
		if result.Changed {
			output.Deleted = append(output.Deleted, absolute)
		}
		if result.JournalWarning != "" {
			output.Warnings = append(output.Warnings, result.JournalWarning)
		}
	}

	if len(output.Failures) > 0 {
		output.Error = fmt.Sprintf("%d of %d deletion(s) failed", len(output.Failures), len(candidates))
		return writeCleanOutput(jsonOutput, output, exitInternalFailure)
	}
	output.OK = true
	return writeCleanOutput(jsonOutput, output, exitOK)
}

func writeCleanOutput(jsonOutput bool, output cleanOutput, exitCode int) int {
	if jsonOutput {
		return writeJSONOutput(output, exitCode)
	}
	if output.Error != "" && len(output.Failures) == 0 {
		fmt.Printf("clean error: %s\n", output.Error)
		return exitCode
	}
	if output.DryRun {
		if len(output.Candidates) == 0 {
			fmt.Println("clean (dry-run): nothing to delete")
		} else {
			fmt.Printf("clean (dry-run): %d file(s) would be deleted\n", len(output.Candidates))
			for _, issue := range output.Candidates {
				fmt.Printf("- %s (%s)\n", issue.Path, issue.Reason)
			}
			fmt.Println("re-run with --apply to delete; every deletion is backed up and reversible")
		}
		printReportedOnly(output.Reported)
		return exitCode
	}
	fmt.Printf("clean: session %s deleted %d file(s)\n", output.SessionID, len(output.Deleted))
	for _, path := range output.Deleted {
		fmt.Printf("- deleted %s\n", path)
	}
	for _, failure := range output.Failures {
		fmt.Printf("- failed %s: %s\n", failure.Path, failure.Error)
	}
	for _, warning := range output.Warnings {
		fmt.Printf("- warning: %s\n", warning)
	}
	printReportedOnly(output.Reported)
	if len(output.Deleted) > 0 {
		fmt.Printf("undo with: repoclean rollback --all --session %s\n", output.SessionID)
	}
	return exitCode
}

func printReportedOnly(reported []scan.Issue) {
	if len(reported) == 0 {
		return
	}
	fmt.Printf("reported only (never auto-deleted): %d\n", len(reported))
	for _, issue := range reported {
		fmt.Printf("- [%s] %s (%s)\n", issue.Kind, issue.Path, issue.Reason)
	}
}

func printCleanUsage() {
	fmt.Println("Usage:")
	fmt.Println("  repoclean clean [--repo <path>] [--apply] [--session <id>] [--backup-dir <path>] [--config <path>] [--json] [--explain]")
}
