package main

import (
	"flag"
	"fmt"
	"io"

	"github.com/davidahmann/repoclean/core/doctor"
)

type doctorOutput struct {
	OK              bool           `json:"ok"`
	SchemaID        string         `json:"schema_id,omitempty"`
	SchemaVersion   string         `json:"schema_version,omitempty"`
	CreatedAt       string         `json:"created_at,omitempty"`
	ProducerVersion string         `json:"producer_version,omitempty"`
	Status          string         `json:"status,omitempty"`
	Summary         string         `json:"summary,omitempty"`
	Checks          []doctor.Check `json:"checks,omitempty"`
	errorEnvelope
}

func runDoctor(arguments []string) int {
	if hasExplainFlag(arguments) {
		return writeExplain("Check the environment before destructive commands: repository writability, backup directory, embedded schemas, and whether every session journal still loads.")
	}
	flagSet := flag.NewFlagSet("doctor", flag.ContinueOnError)
	flagSet.SetOutput(io.Discard)

	var repoFlag string
	var configFlag string
	var backupDirFlag string
	var jsonOutput bool
	var helpFlag bool

	flagSet.StringVar(&repoFlag, "repo", ".", "repository root to check")
	flagSet.StringVar(&configFlag, "config", "", "path to project config (default <repo>/.repoclean/config.yaml)")
	flagSet.StringVar(&backupDirFlag, "backup-dir", "", "backup directory override")
	flagSet.BoolVar(&jsonOutput, "json", false, "emit JSON output")
	flagSet.BoolVar(&helpFlag, "help", false, "show help")

	arguments = reorderInterspersedFlags(arguments, map[string]bool{
		"repo": true, "config": true, "backup-dir": true,
	})
	if err := flagSet.Parse(arguments); err != nil {
		return writeDoctorOutput(hasJSONFlag(arguments), doctorOutput{errorEnvelope: envelopeForError(err)}, exitInvalidInput)
	}
	if helpFlag {
		printDoctorUsage()
		return exitOK
	}
	if len(flagSet.Args()) > 0 {
		return writeDoctorOutput(jsonOutput, doctorOutput{errorEnvelope: errorEnvelope{Error: "unexpected positional arguments"}}, exitInvalidInput)
	}

	setup, err := resolveSetup(repoFlag, configFlag, backupDirFlag)
	if err != nil {
		return writeDoctorOutput(jsonOutput, doctorOutput{errorEnvelope: envelopeForError(err)}, exitCodeForError(err, exitInvalidInput))
	}

	result := doctor.Run(doctor.Options{
		RepositoryPath:  setup.RepositoryPath,
		BackupDirectory: setup.BackupDirectory,
		ProducerVersion: version,
	})
	exitCode := exitOK
	if result.Status == "fail" {
		exitCode = exitInternalFailure
	}
	return writeDoctorOutput(jsonOutput, doctorOutput{
		OK:              result.Status != "fail",
		SchemaID:        result.SchemaID,
		SchemaVersion:   result.SchemaVersion,
		CreatedAt:       result.CreatedAt,
		ProducerVersion: result.ProducerVersion,
		Status:          result.Status,
		Summary:         result.Summary,
		Checks:          result.Checks,
	}, exitCode)
}

func writeDoctorOutput(jsonOutput bool, output doctorOutput, exitCode int) int {
	if jsonOutput {
		return writeJSONOutput(output, exitCode)
	}
	if output.Error != "" {
		fmt.Printf("doctor error: %s\n", output.Error)
		return exitCode
	}
	fmt.Println(output.Summary)
	for _, check := range output.Checks {
		fmt.Printf("- %s: %s (%s)\n", check.Name, check.Status, check.Message)
	}
	return exitCode
}

func printDoctorUsage() {
	fmt.Println("Usage:")
	fmt.Println("  repoclean doctor [--repo <path>] [--backup-dir <path>] [--config <path>] [--json] [--explain]")
}
