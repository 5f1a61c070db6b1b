package main

import (
	"flag"
	"fmt"
	"io"
	"strings"

	"github.com/davidahmann/repoclean/core/scan"
)

type explainIssueOutput struct {
	OK           bool               `json:"ok"`
	Explanations []scan.Explanation `json:"explanations,omitempty"`
	errorEnvelope
}

func runExplainIssue(arguments []string) int {
	if hasExplainFlag(arguments) {
		return writeExplain("Describe what an issue kind means and how to remediate it. Without --issue, lists every kind.")
	}
	flagSet := flag.NewFlagSet("explain", flag.ContinueOnError)
	flagSet.SetOutput(io.Discard)

	var issueFlag string
	var jsonOutput bool
	var helpFlag bool

	flagSet.StringVar(&issueFlag, "issue", "", "issue kind to explain (backup_file, bloat_file, junk_name)")
	flagSet.BoolVar(&jsonOutput, "json", false, "emit JSON output")
	flagSet.BoolVar(&helpFlag, "help", false, "show help")

	arguments = reorderInterspersedFlags(arguments, map[string]bool{"issue": true})
	if err := flagSet.Parse(arguments); err != nil {
		return writeExplainIssueOutput(hasJSONFlag(arguments), explainIssueOutput{errorEnvelope: envelopeForError(err)}, exitInvalidInput)
	}
	if helpFlag {
		printExplainIssueUsage()
		return exitOK
	}
	if issueFlag == "" && len(flagSet.Args()) == 1 {
		issueFlag = flagSet.Args()[0]
	} else if len(flagSet.Args()) > 0 {
		return writeExplainIssueOutput(jsonOutput, explainIssueOutput{errorEnvelope: errorEnvelope{Error: "unexpected positional arguments"}}, exitInvalidInput)
	}

	if strings.TrimSpace(issueFlag) == "" {
		return writeExplainIssueOutput(jsonOutput, explainIssueOutput{
			OK:           true,
			Explanations: scan.Explanations(),
		}, exitOK)
	}
	explanation, found := scan.ExplanationFor(strings.TrimSpace(issueFlag))
	if !found {
		return writeExplainIssueOutput(jsonOutput, explainIssueOutput{
			errorEnvelope: errorEnvelope{Error: fmt.Sprintf("unknown issue kind: %s", issueFlag)},
		}, exitNotFound)
	}
	return writeExplainIssueOutput(jsonOutput, explainIssueOutput{
		OK:           true,
		Explanations: []scan.Explanation{explanation},
	}, exitOK)
}

func writeExplainIssueOutput(jsonOutput bool, output explainIssueOutput, exitCode int) int {
	if jsonOutput {
		return writeJSONOutput(output, exitCode)
	}
	if output.Error != "" {
		fmt.Printf("explain error: %s\n", output.Error)
		return exitCode
	}
	for index, explanation := range output.Explanations {
		if index > 0 {
			fmt.Println()
		}
		fmt.Printf("%s: %s\n", explanation.Kind, explanation.Summary)
		fmt.Println(explanation.Detail)
		fmt.Printf("remediation: %s\n", explanation.Remediation)
	}
	return exitCode
}

func printExplainIssueUsage() {
	fmt.Println("Usage:")
	fmt.Println("  repoclean explain [--issue <kind>] [--json] [--explain]")
}
