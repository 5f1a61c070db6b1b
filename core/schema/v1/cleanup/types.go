package cleanup

import "time"

const (
	SessionHeaderSchemaID  = "repoclean.cleanup.session_header"
	OperationSchemaID      = "repoclean.cleanup.operation"
	RollbackMarkerSchemaID = "repoclean.cleanup.rollback_marker"
	SchemaVersion          = "1.0.0"
)

type OperationType string

const (
	OperationDelete OperationType = "delete"
	OperationRename OperationType = "rename"
)

type OperationState string

const (
	StateCompleted  OperationState = "completed"
	StateRolledBack OperationState = "rolled_back"
)

// SessionHeader is the first line of every session journal and binds the
// journal to one repository and one backup directory.
type SessionHeader struct {
	SchemaID        string    `json:"schema_id"`
	SchemaVersion   string    `json:"schema_version"`
	CreatedAt       time.Time `json:"created_at"`
	ProducerVersion string    `json:"producer_version"`
	SessionID       string    `json:"session_id"`
	RepositoryPath  string    `json:"repository_path"`
	BackupDirectory string    `json:"backup_directory"`
	JournalPath     string    `json:"journal_path"`
}

// OperationRecord is one completed, reversible mutation. RecordDigest is a
// sha256 over the RFC 8785 canonical form of the record with the digest
// field empty, so a tampered or truncated line fails on load.
type OperationRecord struct {
	SchemaID        string            `json:"schema_id"`
	SchemaVersion   string            `json:"schema_version"`
	CreatedAt       time.Time         `json:"created_at"`
	ProducerVersion string            `json:"producer_version"`
	SessionID       string            `json:"session_id"`
	OperationID     string            `json:"operation_id"`
	Sequence        int64             `json:"sequence"`
	OperationType   OperationType     `json:"operation_type"`
	SourcePath      string            `json:"source_path"`
	DestinationPath string            `json:"destination_path,omitempty"`
	BackupPath      string            `json:"backup_path"`
	ContentHash     string            `json:"content_hash"`
	Metadata        map[string]string `json:"metadata,omitempty"`
	RecordDigest    string            `json:"record_digest"`
}

// RollbackMarker records that an operation transitioned Completed ->
// RolledBack. The journal stays append-only, so state changes are new lines.
type RollbackMarker struct {
	SchemaID        string    `json:"schema_id"`
	SchemaVersion   string    `json:"schema_version"`
	CreatedAt       time.Time `json:"created_at"`
	ProducerVersion string    `json:"producer_version"`
	SessionID       string    `json:"session_id"`
	OperationID     string    `json:"operation_id"`
}

type SessionSummary struct {
	SessionID       string            `json:"session_id"`
	RepositoryPath  string            `json:"repository_path"`
	BackupDirectory string            `json:"backup_directory"`
	OperationCount  int               `json:"operation_count"`
	Operations      []OperationRecord `json:"operations"`
	JournalPath     string            `json:"journal_path"`
}
