package main

import (
	"flag"
	"fmt"
	"io"
	"time"

	"github.com/davidahmann/repoclean/core/backup"
)

type sweepOutput struct {
	OK              bool   `json:"ok"`
	BackupDirectory string `json:"backup_directory,omitempty"`
	MaxAgeDays      int    `json:"max_age_days"`
	RemovedCount    int    `json:"removed_count"`
	errorEnvelope
}

func runSweep(arguments []string) int {
	if hasExplainFlag(arguments) {
		return writeExplain("Remove expired backup state by age. Sessions are the retention unit: artifacts of a live session are never swept.")
	}
	flagSet := flag.NewFlagSet("sweep", flag.ContinueOnError)
	flagSet.SetOutput(io.Discard)

	var repoFlag string
	var configFlag string
	var backupDirFlag string
	var maxAgeDays int
	var jsonOutput bool
	var helpFlag bool

	flagSet.StringVar(&repoFlag, "repo", ".", "repository root")
	flagSet.StringVar(&configFlag, "config", "", "path to project config (default <repo>/.repoclean/config.yaml)")
	flagSet.StringVar(&backupDirFlag, "backup-dir", "", "backup directory override")
	flagSet.IntVar(&maxAgeDays, "max-age-days", -1, "retention age in days (default: config retention_days, else 30)")
	flagSet.BoolVar(&jsonOutput, "json", false, "emit JSON output")
	flagSet.BoolVar(&helpFlag, "help", false, "show help")

	arguments = reorderInterspersedFlags(arguments, map[string]bool{
		"repo": true, "config": true, "backup-dir": true, "max-age-days": true,
	})
	if err := flagSet.Parse(arguments); err != nil {
		return writeSweepOutput(hasJSONFlag(arguments), sweepOutput{errorEnvelope: envelopeForError(err)}, exitInvalidInput)
	}
	if helpFlag {
		printSweepUsage()
		return exitOK
	}
	if len(flagSet.Args()) > 0 {
		return writeSweepOutput(jsonOutput, sweepOutput{errorEnvelope: errorEnvelope{Error: "unexpected positional arguments"}}, exitInvalidInput)
	}

	setup, err := resolveSetup(repoFlag, configFlag, backupDirFlag)
	if err != nil {
		return writeSweepOutput(jsonOutput, sweepOutput{errorEnvelope: envelopeForError(err)}, exitCodeForError(err, exitInvalidInput))
	}
	age := retentionDays(setup, maxAgeDays)
	removed, err := backup.SweepOlderThan(setup.BackupDirectory, age, time.Now().UTC())
	if err != nil {
		return writeSweepOutput(jsonOutput, sweepOutput{
			BackupDirectory: setup.BackupDirectory,
			MaxAgeDays:      age,
			RemovedCount:    removed,
			errorEnvelope:   envelopeForError(err),
		}, exitCodeForError(err, exitInternalFailure))
	}
	return writeSweepOutput(jsonOutput, sweepOutput{
		OK:              true,
		BackupDirectory: setup.BackupDirectory,
		MaxAgeDays:      age,
		RemovedCount:    removed,
	}, exitOK)
}

func writeSweepOutput(jsonOutput bool, output sweepOutput, exitCode int) int {
	if jsonOutput {
		return writeJSONOutput(output, exitCode)
	}
	if output.Error != "" {
		fmt.Printf("sweep error: %s\n", output.Error)
		if output.Hint != "" {
			fmt.Printf("hint: %s\n", output.Hint)
		}
		return exitCode
	}
	fmt.Printf("sweep: removed %d file(s) older than %d day(s) from %s\n", output.RemovedCount, output.MaxAgeDays, output.BackupDirectory)
	return exitCode
}

func printSweepUsage() {
	fmt.Println("Usage:")
	fmt.Println("  repoclean sweep [--max-age-days <n>] [--repo <path>] [--backup-dir <path>] [--config <path>] [--json] [--explain]")
}
