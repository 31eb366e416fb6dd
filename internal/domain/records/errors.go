package records

import "fmt"

// RecordType identifies which input collection a record came from.
type RecordType string

const (
	RecordTransaction RecordType = "bank_transaction"
	RecordLedgerEntry RecordType = "ledger_entry"
)

// ErrorKind separates malformed records from records skipped for capacity.
type ErrorKind string

const (
	KindValidation ErrorKind = "validation"
	KindCapacity   ErrorKind = "capacity"
)

// RecordError reports a record that was excluded from matching.
type RecordError struct {
	RecordID   string     `json:"record_id"`
	RecordType RecordType `json:"record_type"`
	Kind       ErrorKind  `json:"kind"`
	Reason     string     `json:"reason"`
}

// ValidationError is a single malformed input record.
type ValidationError struct {
	RecordID   string
	RecordType RecordType
	Reason     string
}

func (e *ValidationError) Error() string {
	id := e.RecordID
	if id == "" {
		id = "<missing id>"
	}
	return fmt.Sprintf("invalid %s %s: %s", e.RecordType, id, e.Reason)
}

// Report converts the error into its reported form.
func (e *ValidationError) Report() RecordError {
	return RecordError{
		RecordID:   e.RecordID,
		RecordType: e.RecordType,
		Kind:       KindValidation,
		Reason:     e.Reason,
	}
}
