// Package operation carries the error and log vocabulary shared by the domain
// services and their stores.
package operation

import "fmt"

// Error tags a store or cache failure with where it happened. It renders as
// "operation.subject.code: cause", for example "store.wallet.debit: ...".
type Error struct {
	operation string
	subject   string
	code      string
	err       error
}

func (operationError Error) Error() string {
	return fmt.Sprintf("%s.%s.%s: %v", operationError.operation, operationError.subject, operationError.code, operationError.err)
}

// Unwrap exposes the cause so sentinel errors still match with errors.Is.
func (operationError Error) Unwrap() error {
	return operationError.err
}

// Operation is the layer that failed, such as "store" or "cache".
func (operationError Error) Operation() string {
	return operationError.operation
}

// Subject is the record kind involved, such as "wallet" or "cart".
func (operationError Error) Subject() string {
	return operationError.subject
}

// Code names the failed step, such as "debit" or "insert".
func (operationError Error) Code() string {
	return operationError.code
}

// WrapError returns nil for a nil err, otherwise err tagged with its location.
func WrapError(operation string, subject string, code string, err error) error {
	if err == nil {
		return nil
	}
	return Error{
		operation: operation,
		subject:   subject,
		code:      code,
		err:       err,
	}
}
