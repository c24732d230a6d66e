package result

import "fmt"

// Kind tags the variant of an ErrorInfo.
type Kind string

// Error kinds.
const (
	// KindStore is a store-level failure carrying a numeric engine code.
	KindStore Kind = "Store"
	// KindPostgres is a PostgreSQL failure carrying an SQLSTATE code.
	KindPostgres Kind = "Postgres"
	// KindTransactionClosed reports use of a transaction after commit or rollback.
	KindTransactionClosed Kind = "TransactionClosed"
)

// ErrorInfo describes a classified failure. Which fields are set depends on Kind.
type ErrorInfo struct {
	Kind    Kind   `json:"kind" yaml:"kind"`
	Code    int    `json:"code,omitempty" yaml:"code,omitempty"`
	Message string `json:"message" yaml:"message"`

	// PostgreSQL details.
	State    string `json:"state,omitempty" yaml:"state,omitempty"`
	Severity string `json:"severity,omitempty" yaml:"severity,omitempty"`
	Detail   string `json:"detail,omitempty" yaml:"detail,omitempty"`
	Column   string `json:"column,omitempty" yaml:"column,omitempty"`
	Hint     string `json:"hint,omitempty" yaml:"hint,omitempty"`
}

// StoreError builds a KindStore failure.
func StoreError(code int, message string) ErrorInfo {
	return ErrorInfo{Kind: KindStore, Code: code, Message: message}
}

// TransactionClosed builds a KindTransactionClosed failure.
func TransactionClosed(op string) ErrorInfo {
	return ErrorInfo{
		Kind:    KindTransactionClosed,
		Message: fmt.Sprintf("%s called on a transaction that was already committed or rolled back", op),
	}
}

func (e *ErrorInfo) Error() string {
	switch e.Kind {
	case KindStore:
		return fmt.Sprintf("store error %d: %s", e.Code, e.Message)
	case KindPostgres:
		return fmt.Sprintf("postgres error %s: %s", e.State, e.Message)
	default:
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
}
