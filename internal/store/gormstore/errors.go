package gormstore

import (
	"errors"
	"strings"

	"github.com/MarkoPoloResearchLab/bookingledger/pkg/operation"
	gosqlite "github.com/glebarez/go-sqlite"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

const (
	pgUniqueViolationCode = "23505"
	sqliteConstraintCode  = 19
	sqliteUniqueMarker    = "UNIQUE"

	errorOperationStore = "store"

	errorSubjectWallet      = "wallet"
	errorSubjectTransaction = "transaction"
	errorSubjectCart        = "cart"
	errorSubjectItem        = "item"
	errorSubjectSchema      = "schema"

	errorCodeLookup       = "lookup"
	errorCodeCreate       = "create"
	errorCodeGet          = "get"
	errorCodeCredit       = "credit"
	errorCodeDebit        = "debit"
	errorCodeInsert       = "insert"
	errorCodeList         = "list"
	errorCodeCount        = "count"
	errorCodeUpdate       = "update"
	errorCodeUpdateStatus = "update_status"
	errorCodeTouch        = "touch"
	errorCodeDelete       = "delete"
	errorCodeReassign     = "reassign"
	errorCodeDuplicate    = "duplicate"
	errorCodeInvalid      = "invalid"
	errorCodeMigrate      = "migrate"
)

func wrapStoreError(subject string, code string, err error) error {
	return operation.WrapError(errorOperationStore, subject, code, err)
}

// isUniqueViolation recognizes duplicate-key failures from every supported driver.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolationCode
	}
	var sqliteErr *gosqlite.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code()&0xFF == sqliteConstraintCode && strings.Contains(sqliteErr.Error(), sqliteUniqueMarker)
	}
	return false
}

// errorsIsNotFound reports gorm's missing-row error.
func errorsIsNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
