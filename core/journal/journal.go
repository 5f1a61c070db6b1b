// Package journal persists the append-only, ordered record of operations
// within a session. One JSON record per line: damage from a mid-write crash
// is bounded to the final line, and prior entries are never rewritten.
package journal

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/davidahmann/repoclean/core/errors"
	"github.com/davidahmann/repoclean/core/fsx"
	"github.com/davidahmann/repoclean/core/jcs"
	cleanup "github.com/davidahmann/repoclean/core/schema/v1/cleanup"
	"github.com/davidahmann/repoclean/core/schema/validate"
)

const (
	recordTypeHeader    = "header"
	recordTypeOperation = "operation"
	recordTypeRollback  = "rollback"
)

type journalLine struct {
	RecordType string          `json:"record_type"`
	Header     json.RawMessage `json:"header,omitempty"`
	Operation  json.RawMessage `json:"operation,omitempty"`
	Rollback   json.RawMessage `json:"rollback,omitempty"`
}

type Journal struct {
	path string
}

// Snapshot is the reconstructed state of a journal: the header, operations
// in insertion order, and which operation ids have been rolled back.
// Warning is set when a torn final line was dropped during load.
type Snapshot struct {
	Header     cleanup.SessionHeader
	Operations []cleanup.OperationRecord
	RolledBack map[string]bool
	Warning    string
}

func (s Snapshot) Find(operationID string) (cleanup.OperationRecord, bool) {
	for _, operation := range s.Operations {
		if operation.OperationID == operationID {
			return operation, true
		}
	}
	return cleanup.OperationRecord{}, false
}

func (s Snapshot) State(operationID string) cleanup.OperationState {
	if s.RolledBack[operationID] {
		return cleanup.StateRolledBack
	}
	return cleanup.StateCompleted
}

func New(path string) *Journal {
	return &Journal{path: path}
}

func (j *Journal) Path() string {
	return j.path
}

// Init writes the header line for a fresh journal. An existing journal is
// re-read and must carry the same session identity.
func (j *Journal) Init(header cleanup.SessionHeader) error {
	if _, err := os.Stat(j.path); err == nil {
		snapshot, loadErr := j.Load()
		if loadErr != nil {
			return loadErr
		}
		if snapshot.Header.SessionID != header.SessionID {
			return errors.New(errors.CategoryPrecondition, errors.SeverityError,
				fmt.Sprintf("journal %s already belongs to session %s", j.path, snapshot.Header.SessionID),
				j.path, "start a new session instead of reusing another session's journal path")
		}
		return nil
	}
	header.SchemaID = cleanup.SessionHeaderSchemaID
	header.SchemaVersion = cleanup.SchemaVersion
	return j.appendLine(journalEnvelope(recordTypeHeader, header))
}

// AppendOperation stamps the record digest and durably appends one
// operation line. Failures are persistence-category: the caller decides
// whether the mutation they describe already happened and must stand.
func (j *Journal) AppendOperation(operation cleanup.OperationRecord) (cleanup.OperationRecord, error) {
	operation.SchemaID = cleanup.OperationSchemaID
	operation.SchemaVersion = cleanup.SchemaVersion
	digest, err := recordDigest(operation)
	if err != nil {
		return cleanup.OperationRecord{}, err
	}
	operation.RecordDigest = digest
	if err := j.appendLine(journalEnvelope(recordTypeOperation, operation)); err != nil {
		return cleanup.OperationRecord{}, err
	}
	return operation, nil
}

// AppendRollback marks an operation as rolled back with a new line; prior
// entries are never edited.
func (j *Journal) AppendRollback(marker cleanup.RollbackMarker) error {
	marker.SchemaID = cleanup.RollbackMarkerSchemaID
	marker.SchemaVersion = cleanup.SchemaVersion
	return j.appendLine(journalEnvelope(recordTypeRollback, marker))
}

// Load reconstructs the ordered operation list, including entries written
// by a prior process. Every line is schema-validated; operation lines must
// carry strictly increasing sequences, matching session identity, and a
// valid record digest. A final line that is not parsable JSON is the
// signature of a crash mid-append: it is dropped and reported as a warning
// on the snapshot, since every preceding line is intact. The same damage
// anywhere else fails the load.
func (j *Journal) Load() (Snapshot, error) {
	// #nosec G304 -- journal path is owned by the session.
	file, err := os.Open(j.path)
	if err != nil {
		return Snapshot{}, errors.Wrap(err, errors.CategoryPersistence, errors.SeverityError,
			fmt.Sprintf("open session journal %s: %v", j.path, err), j.path,
			"check the session id and backup directory")
	}
	defer func() { _ = file.Close() }()

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 128*1024), 8*1024*1024)

	var contents []string
	var lineNumbers []int
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		raw := strings.TrimSpace(scanner.Text())
		if raw == "" {
			continue
		}
		contents = append(contents, raw)
		lineNumbers = append(lineNumbers, lineNo)
	}
	if err := scanner.Err(); err != nil {
		return Snapshot{}, errors.Wrap(err, errors.CategoryPersistence, errors.SeverityError,
			fmt.Sprintf("read session journal %s: %v", j.path, err), j.path, "check for disk I/O errors")
	}

	snapshot := Snapshot{RolledBack: map[string]bool{}}
	haveHeader := false
	expectedSequence := int64(1)

	for index, raw := range contents {
		lineNo := lineNumbers[index]
		var line journalLine
		if err := json.Unmarshal([]byte(raw), &line); err != nil {
			if index == len(contents)-1 {
				snapshot.Warning = fmt.Sprintf(
					"session journal %s line %d: dropped torn final record (crash during append): %v",
					j.path, lineNo, err)
				break
			}
			return Snapshot{}, loadError(j.path, lineNo, fmt.Sprintf("parse: %v", err))
		}
		switch line.RecordType {
		case recordTypeHeader:
			if haveHeader {
				return Snapshot{}, loadError(j.path, lineNo, "duplicate header")
			}
			if err := validate.Validate(validate.SchemaSessionHeader, line.Header); err != nil {
				return Snapshot{}, loadError(j.path, lineNo, err.Error())
			}
			if err := json.Unmarshal(line.Header, &snapshot.Header); err != nil {
				return Snapshot{}, loadError(j.path, lineNo, fmt.Sprintf("decode header: %v", err))
			}
			haveHeader = true
		case recordTypeOperation:
			if !haveHeader {
				return Snapshot{}, loadError(j.path, lineNo, "operation before header")
			}
			if err := validate.Validate(validate.SchemaOperation, line.Operation); err != nil {
				return Snapshot{}, loadError(j.path, lineNo, err.Error())
			}
			var operation cleanup.OperationRecord
			if err := json.Unmarshal(line.Operation, &operation); err != nil {
				return Snapshot{}, loadError(j.path, lineNo, fmt.Sprintf("decode operation: %v", err))
			}
			if operation.SessionID != snapshot.Header.SessionID {
				return Snapshot{}, loadError(j.path, lineNo, "operation session identity mismatch")
			}
			if operation.Sequence != expectedSequence {
				return Snapshot{}, loadError(j.path, lineNo,
					fmt.Sprintf("sequence mismatch: got %d want %d", operation.Sequence, expectedSequence))
			}
			expectedDigest, digestErr := recordDigest(operation)
			if digestErr != nil {
				return Snapshot{}, digestErr
			}
			if operation.RecordDigest != expectedDigest {
				return Snapshot{}, errors.New(errors.CategoryIntegrity, errors.SeverityCritical,
					fmt.Sprintf("journal %s line %d: record digest mismatch for %s", j.path, lineNo, operation.OperationID),
					j.path, "the journal was modified after being written; do not trust this session for rollback")
			}
			snapshot.Operations = append(snapshot.Operations, operation)
			expectedSequence++
		case recordTypeRollback:
			if !haveHeader {
				return Snapshot{}, loadError(j.path, lineNo, "rollback marker before header")
			}
			if err := validate.Validate(validate.SchemaRollbackMarker, line.Rollback); err != nil {
				return Snapshot{}, loadError(j.path, lineNo, err.Error())
			}
			var marker cleanup.RollbackMarker
			if err := json.Unmarshal(line.Rollback, &marker); err != nil {
				return Snapshot{}, loadError(j.path, lineNo, fmt.Sprintf("decode rollback marker: %v", err))
			}
			if _, ok := snapshot.Find(marker.OperationID); !ok {
				return Snapshot{}, loadError(j.path, lineNo,
					fmt.Sprintf("rollback marker references unknown operation %s", marker.OperationID))
			}
			if snapshot.RolledBack[marker.OperationID] {
				return Snapshot{}, loadError(j.path, lineNo,
					fmt.Sprintf("duplicate rollback marker for operation %s", marker.OperationID))
			}
			snapshot.RolledBack[marker.OperationID] = true
		default:
			return Snapshot{}, loadError(j.path, lineNo, fmt.Sprintf("unsupported record_type %q", line.RecordType))
		}
	}
	if !haveHeader {
		return Snapshot{}, loadError(j.path, 0, "missing header")
	}
	return snapshot, nil
}

func (j *Journal) appendLine(line journalLine) error {
	encoded, err := json.Marshal(line)
	if err != nil {
		return errors.Wrap(err, errors.CategoryPersistence, errors.SeverityWarning,
			fmt.Sprintf("encode journal record: %v", err), j.path, "")
	}
	if err := fsx.AppendLineLocked(j.path, encoded, 0o600); err != nil {
		return errors.Wrap(err, errors.CategoryPersistence, errors.SeverityWarning,
			fmt.Sprintf("append to session journal %s: %v", j.path, err), j.path,
			"the mutation already happened; record it manually or re-run status to confirm state")
	}
	return nil
}

func journalEnvelope(recordType string, payload any) journalLine {
	encoded, err := json.Marshal(payload)
	if err != nil {
		// Payloads are plain structs; marshal cannot fail for them. Keep the
		// envelope well-formed regardless.
		encoded = []byte("{}")
	}
	line := journalLine{RecordType: recordType}
	switch recordType {
	case recordTypeHeader:
		line.Header = encoded
	case recordTypeOperation:
		line.Operation = encoded
	case recordTypeRollback:
		line.Rollback = encoded
	}
	return line
}

// recordDigest hashes the canonical JSON form of an operation with the
// digest field cleared.
func recordDigest(operation cleanup.OperationRecord) (string, error) {
	operation.RecordDigest = ""
	raw, err := json.Marshal(operation)
	if err != nil {
		return "", errors.Wrap(err, errors.CategoryPersistence, errors.SeverityError,
			fmt.Sprintf("encode operation for digest: %v", err), "", "")
	}
	digest, err := jcs.DigestJCS(raw)
	if err != nil {
		return "", errors.Wrap(err, errors.CategoryPersistence, errors.SeverityError,
			fmt.Sprintf("canonicalize operation record: %v", err), "", "")
	}
	return digest, nil
}

func loadError(path string, lineNo int, detail string) error {
	message := fmt.Sprintf("session journal %s line %d: %s", path, lineNo, detail)
	if lineNo == 0 {
		message = fmt.Sprintf("session journal %s: %s", path, detail)
	}
	return errors.New(errors.CategoryPersistence, errors.SeverityError, message, path,
		"the journal is damaged; inspect it manually before attempting rollback")
}
