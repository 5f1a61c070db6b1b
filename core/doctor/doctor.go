// Package doctor runs environment checks for the safety layer: repository
// writability, backup directory health, schema integrity, and whether every
// persisted session journal still loads cleanly.
package doctor

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/davidahmann/repoclean/core/journal"
	"github.com/davidahmann/repoclean/core/schema/validate"
	"github.com/davidahmann/repoclean/core/session"
)

const (
	statusPass = "pass"
	statusWarn = "warn"
	statusFail = "fail"
)

type Options struct {
	RepositoryPath  string
	BackupDirectory string
	ProducerVersion string
}

type Result struct {
	SchemaID        string  `json:"schema_id"`
	SchemaVersion   string  `json:"schema_version"`
	CreatedAt       string  `json:"created_at"`
	ProducerVersion string  `json:"producer_version"`
	Status          string  `json:"status"`
	Summary         string  `json:"summary"`
	Checks          []Check `json:"checks"`
}

type Check struct {
	Name    string `json:"name"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

func Run(opts Options) Result {
	repositoryPath := strings.TrimSpace(opts.RepositoryPath)
	if repositoryPath == "" {
		repositoryPath = "."
	}
	if absolute, err := filepath.Abs(repositoryPath); err == nil {
		repositoryPath = absolute
	}
	backupDirectory := session.ResolveBackupDir(repositoryPath, opts.BackupDirectory)

	producerVersion := strings.TrimSpace(opts.ProducerVersion)
	if producerVersion == "" {
		producerVersion = "0.0.0-dev"
	}

	checks := []Check{
		checkRepository(repositoryPath),
		checkRepositoryWritable(repositoryPath),
		checkBackupDirectory(backupDirectory),
		checkSchemas(),
	}
	checks = append(checks, checkJournals(backupDirectory)...)

	status := statusPass
	failed := 0
	warned := 0
	for _, check := range checks {
		switch check.Status {
		case statusFail:
			failed++
		case statusWarn:
			warned++
		}
	}
	summary := "environment is ready for safe cleanup"
	if warned > 0 {
		status = statusWarn
		summary = fmt.Sprintf("%d check(s) reported warnings", warned)
	}
	if failed > 0 {
		status = statusFail
		summary = fmt.Sprintf("%d check(s) failed; do not run destructive commands until fixed", failed)
	}

	return Result{
		SchemaID:        "repoclean.cleanup.doctor_result",
		SchemaVersion:   "1.0.0",
		CreatedAt:       time.Now().UTC().Format(time.RFC3339),
		ProducerVersion: producerVersion,
		Status:          status,
		Summary:         summary,
		Checks:          checks,
	}
}

func checkRepository(repositoryPath string) Check {
	info, err := os.Stat(repositoryPath)
	if err != nil || !info.IsDir() {
		return Check{
			Name:    "repository_path",
			Status:  statusFail,
			Message: fmt.Sprintf("%s is not an accessible directory", repositoryPath),
		}
	}
	return Check{
		Name:    "repository_path",
		Status:  statusPass,
		Message: repositoryPath,
	}
}

func checkRepositoryWritable(repositoryPath string) Check {
	probe, err := os.CreateTemp(repositoryPath, ".repoclean-doctor-*")
	if err != nil {
		return Check{
			Name:    "repository_writable",
			Status:  statusFail,
			Message: fmt.Sprintf("cannot write in %s: %v", repositoryPath, err),
		}
	}
	probePath := probe.Name()
	_ = probe.Close()
	_ = os.Remove(probePath)
	return Check{
		Name:    "repository_writable",
		Status:  statusPass,
		Message: "repository accepts writes",
	}
}

func checkBackupDirectory(backupDirectory string) Check {
	if err := os.MkdirAll(backupDirectory, 0o750); err != nil {
		return Check{
			Name:    "backup_directory",
			Status:  statusFail,
			Message: fmt.Sprintf("cannot create %s: %v", backupDirectory, err),
		}
	}
	return Check{
		Name:    "backup_directory",
		Status:  statusPass,
		Message: backupDirectory,
	}
}

func checkSchemas() Check {
	if err := validate.CompileAll(); err != nil {
		return Check{
			Name:    "journal_schemas",
			Status:  statusFail,
			Message: fmt.Sprintf("embedded schema compile failed: %v", err),
		}
	}
	return Check{
		Name:    "journal_schemas",
		Status:  statusPass,
		Message: "embedded journal schemas compile",
	}
}

// checkJournals reloads every persisted session journal. A journal that no
// longer loads is a warning: the session cannot be rolled back safely but
// new sessions are unaffected.
func checkJournals(backupDirectory string) []Check {
	entries, err := os.ReadDir(backupDirectory)
	if err != nil {
		return []Check{{
			Name:    "session_journals",
			Status:  statusWarn,
			Message: fmt.Sprintf("cannot enumerate %s: %v", backupDirectory, err),
		}}
	}
	var checks []Check
	inspected := 0
	for _, entry := range entries {
		name := entry.Name()
		if !strings.HasPrefix(name, "session-") || !strings.HasSuffix(name, ".jsonl") {
			continue
		}
		inspected++
		journalPath := filepath.Join(backupDirectory, name)
		if _, loadErr := journal.New(journalPath).Load(); loadErr != nil {
			checks = append(checks, Check{
				Name:    "session_journal:" + name,
				Status:  statusWarn,
				Message: fmt.Sprintf("journal does not load: %v", loadErr),
			})
		}
	}
	if len(checks) == 0 {
		checks = append(checks, Check{
			Name:    "session_journals",
			Status:  statusPass,
			Message: fmt.Sprintf("%d journal(s) load cleanly", inspected),
		})
	}
	return checks
}
