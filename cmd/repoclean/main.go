package main

import (
	"fmt"
	"os"
)

// version is stamped at release time via ldflags; default stays dev for local builds.
var version = "0.0.0-dev"

func main() {
	os.Exit(runDispatch(os.Args))
}

func runDispatch(arguments []string) int {
	if len(arguments) < 2 {
		printUsage()
		return exitInvalidInput
	}
	if arguments[1] == "--explain" {
		return writeExplain("repoclean is a repository hygiene CLI whose every destructive operation is backed up, hash-verified, journaled, and reversible.")
	}

	switch arguments[1] {
	case "scan":
		return runScan(arguments[2:])
	case "clean":
		return runClean(arguments[2:])
	case "delete":
		return runDelete(arguments[2:])
	case "rename":
		return runRename(arguments[2:])
	case "status":
		return runStatus(arguments[2:])
	case "rollback":
		return runRollback(arguments[2:])
	case "sweep":
		return runSweep(arguments[2:])
	case "explain":
		return runExplainIssue(arguments[2:])
	case "doctor":
		return runDoctor(arguments[2:])
	case "version", "--version", "-v":
		if hasExplainFlag(arguments[2:]) {
			return writeExplain("Print the CLI version.")
		}
		fmt.Println("repoclean", version)
		return exitOK
	default:
		printUsage()
		return exitInvalidInput
	}
}

func printUsage() {
	fmt.Println(`repoclean ` + version + `

Usage: repoclean <command> [flags]

Commands:
  scan      list hygiene issues without touching anything
  clean     delete flagged files through the safety layer (dry-run by default)
  delete    safely delete one file (backup + journal + reversible)
  rename    safely rename one file (backup + journal + reversible)
  status    show a session's journal: operations, backups, hashes
  rollback  undo one operation (--op) or a whole session (--all)
  sweep     remove expired backup state by age
  explain   describe an issue kind and its remediation
  doctor    check the environment before running destructive commands
  version   print the CLI version

Run 'repoclean <command> --help' for command flags, or '--explain' for a summary.`)
}
