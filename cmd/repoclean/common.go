package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/davidahmann/repoclean/core/errors"
	"github.com/davidahmann/repoclean/core/projectconfig"
	"github.com/davidahmann/repoclean/core/session"
)

// commandSetup is the resolved environment shared by every command: the
// repository root, the loaded project config, and the backup directory
// after flag > config > default precedence.
type commandSetup struct {
	RepositoryPath  string
	Config          projectconfig.Config
	BackupDirectory string
}

func resolveSetup(repoFlag, configFlag, backupDirFlag string) (commandSetup, error) {
	repositoryPath := strings.TrimSpace(repoFlag)
	if repositoryPath == "" {
		repositoryPath = "."
	}
	absolute, err := filepath.Abs(repositoryPath)
	if err != nil {
		return commandSetup{}, errors.Wrap(err, errors.CategoryFileSystem, errors.SeverityError,
			fmt.Sprintf("resolve repository path %s: %v", repositoryPath, err), repositoryPath,
			"use an absolute --repo path")
	}
	repositoryPath = absolute

	configuration, err := loadProjectConfig(repositoryPath, configFlag)
	if err != nil {
		return commandSetup{}, errors.Wrap(err, errors.CategoryPrecondition, errors.SeverityError,
			err.Error(), strings.TrimSpace(configFlag), "fix or remove the project config file")
	}

	backupDirectory := strings.TrimSpace(backupDirFlag)
	if backupDirectory == "" {
		backupDirectory = configuration.Backup.Directory
	}
	return commandSetup{
		RepositoryPath:  repositoryPath,
		Config:          configuration,
		BackupDirectory: session.ResolveBackupDir(repositoryPath, backupDirectory),
	}, nil
}

// loadProjectConfig loads the explicit --config path, or the conventional
// in-repo path when no flag is given. Only the conventional path may be
// absent.
func loadProjectConfig(repositoryPath, configFlag string) (projectconfig.Config, error) {
	trimmed := strings.TrimSpace(configFlag)
	if trimmed != "" {
		return projectconfig.Load(trimmed, false)
	}
	return projectconfig.Load(filepath.Join(repositoryPath, projectconfig.DefaultPath), true)
}

// attachSession reopens the named session, falling back to the most recent
// one when no id is given.
func attachSession(setup commandSetup, sessionFlag string) (*session.Session, error) {
	sessionID := strings.TrimSpace(sessionFlag)
	if sessionID == "" {
		latest, err := session.Latest(setup.BackupDirectory)
		if err != nil {
			return nil, err
		}
		if latest == "" {
			return nil, errors.New(errors.CategoryNotFound, errors.SeverityError,
				"no sessions found in "+setup.BackupDirectory, setup.BackupDirectory,
				"run a cleanup first, or pass --session explicitly")
		}
		sessionID = latest
	}
	return session.Attach(setup.RepositoryPath, setup.BackupDirectory, sessionID)
}

// openSession attaches when a session id is given and creates a fresh
// session otherwise. Mutating commands use this so retries can extend an
// existing journal.
func openSession(setup commandSetup, sessionFlag string) (*session.Session, error) {
	if strings.TrimSpace(sessionFlag) != "" {
		return session.Attach(setup.RepositoryPath, setup.BackupDirectory, sessionFlag)
	}
	return session.Create(setup.RepositoryPath, setup.BackupDirectory)
}

func retentionDays(setup commandSetup, flagValue int) int {
	if flagValue >= 0 {
		return flagValue
	}
	if setup.Config.Backup.RetentionDays > 0 {
		return setup.Config.Backup.RetentionDays
	}
	return 30
}
