package main

import (
	"flag"
	"fmt"
	"io"

	"github.com/davidahmann/repoclean/core/scan"
)

type scanOutput struct {
	OK             bool         `json:"ok"`
	RepositoryPath string       `json:"repository_path,omitempty"`
	IssueCount     int          `json:"issue_count"`
	Issues         []scan.Issue `json:"issues,omitempty"`
	errorEnvelope
}

func runScan(arguments []string) int {
	if hasExplainFlag(arguments) {
		return writeExplain("Walk the repository and list hygiene issues (backup files, cache bloat, junk names) without touching anything.")
	}
	flagSet := flag.NewFlagSet("scan", flag.ContinueOnError)
	flagSet.SetOutput(io.Discard)

	var repoFlag string
	var configFlag string
	var jsonOutput bool
	var helpFlag bool

	flagSet.StringVar(&repoFlag, "repo", ".", "repository root to scan")
	flagSet.StringVar(&configFlag, "config", "", "path to project config (default <repo>/.repoclean/config.yaml)")
	flagSet.BoolVar(&jsonOutput, "json", false, "emit JSON output")
	flagSet.BoolVar(&helpFlag, "help", false, "show help")

	arguments = reorderInterspersedFlags(arguments, map[string]bool{"repo": true, "config": true})
	if err := flagSet.Parse(arguments); err != nil {
		return writeScanOutput(hasJSONFlag(arguments), scanOutput{errorEnvelope: envelopeForError(err)}, exitInvalidInput)
	}
	if helpFlag {
		printScanUsage()
		return exitOK
	}
	if len(flagSet.Args()) > 0 {
		return writeScanOutput(jsonOutput, scanOutput{errorEnvelope: errorEnvelope{Error: "unexpected positional arguments"}}, exitInvalidInput)
	}

	setup, err := resolveSetup(repoFlag, configFlag, "")
	if err != nil {
		return writeScanOutput(jsonOutput, scanOutput{errorEnvelope: envelopeForError(err)}, exitCodeForError(err, exitInvalidInput))
	}

	rules := scan.DefaultRuleset().Extend(setup.Config.Scan.ExtraSuffixes, setup.Config.Scan.IgnoreDirectories)
	issues, err := scan.NewScanner(setup.RepositoryPath, rules).Scan()
	if err != nil {
		return writeScanOutput(jsonOutput, scanOutput{errorEnvelope: envelopeForError(err)}, exitCodeForError(err, exitInternalFailure))
	}
	return writeScanOutput(jsonOutput, scanOutput{
		OK:             true,
		RepositoryPath: setup.RepositoryPath,
		IssueCount:     len(issues),
		Issues:         issues,
	}, exitOK)
}

func writeScanOutput(jsonOutput bool, output scanOutput, exitCode int) int {
	if jsonOutput {
		return writeJSONOutput(output, exitCode)
	}
	if output.Error != "" {
		fmt.Printf("scan error: %s\n", output.Error)
		return exitCode
	}
	if output.IssueCount == 0 {
		fmt.Println("scan: no issues found")
		return exitCode
	}
	fmt.Printf("scan: %d issue(s) in %s\n", output.IssueCount, output.RepositoryPath)
	for _, issue := range output.Issues {
		fmt.Printf("- [%s] %s (%s)\n", issue.Kind, issue.Path, issue.Reason)
	}
	fmt.Println("run 'repoclean explain --issue <kind>' for remediation details")
	return exitCode
}

func printScanUsage() {
	fmt.Println("Usage:")
	fmt.Println("  repoclean scan [--repo <path>] [--config <path>] [--json] [--explain]")
}
