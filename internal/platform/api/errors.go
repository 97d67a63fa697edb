package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/go-sql-driver/mysql"
)

type Code string

const (
	CodeInvalidArgument  Code = "INVALID_ARGUMENT"
	CodeNotFound         Code = "NOT_FOUND"
	CodeMethodNotAllowed Code = "METHOD_NOT_ALLOWED"
	CodeUnavailable      Code = "UNAVAILABLE"
	CodeConflict         Code = "CONFLICT"
	CodeUnauthenticated  Code = "UNAUTHENTICATED"
	CodeForbidden        Code = "FORBIDDEN"
	CodeInternal         Code = "INTERNAL"
)

type APIError struct {
	Code    Code
	Message string
}

func (e *APIError) Error() string { return fmt.Sprintf("%s: %s", e.Code, e.Message) }

func ErrInvalid(msg string) *APIError         { return &APIError{Code: CodeInvalidArgument, Message: msg} }
func ErrNotFound(msg string) *APIError        { return &APIError{Code: CodeNotFound, Message: msg} }
func ErrUnavailable(msg string) *APIError     { return &APIError{Code: CodeUnavailable, Message: msg} }
func ErrConflict(msg string) *APIError        { return &APIError{Code: CodeConflict, Message: msg} }
func ErrUnauthenticated(msg string) *APIError { return &APIError{Code: CodeUnauthenticated, Message: msg} }
func ErrForbidden(msg string) *APIError       { return &APIError{Code: CodeForbidden, Message: msg} }
func ErrInternal(msg string) *APIError        { return &APIError{Code: CodeInternal, Message: msg} }

// UNAVAILABLE は在庫切れなどの業務ルール違反なので 400
func ToHTTPStatus(err error) int {
	var ae *APIError
	if errors.As(err, &ae) {
		switch ae.Code {
		case CodeInvalidArgument, CodeUnavailable:
			return http.StatusBadRequest
		case CodeNotFound:
			return http.StatusNotFound
		case CodeMethodNotAllowed:
			return http.StatusMethodNotAllowed
		case CodeConflict:
			return http.StatusConflict
		case CodeUnauthenticated:
			return http.StatusUnauthorized
		case CodeForbidden:
			return http.StatusForbidden
		default:
			return http.StatusInternalServerError
		}
	}
	return http.StatusInternalServerError
}

// MySQL エラー番号
const (
	mysqlDupEntry        = 1062
	mysqlRowIsReferenced = 1451
	mysqlNoReferencedRow = 1452
)

// FromMySQL: 制約違反を APIError に変換する。該当しなければ err をそのまま返す。
func FromMySQL(err error, dupMsg string) error {
	var me *mysql.MySQLError
	if !errors.As(err, &me) {
		return err
	}
	switch me.Number {
	case mysqlDupEntry:
		return ErrConflict(dupMsg)
	case mysqlNoReferencedRow:
		return ErrInvalid("referenced record does not exist")
	case mysqlRowIsReferenced:
		return ErrConflict("record is still referenced by other records")
	}
	return err
}

func IsDuplicate(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == mysqlDupEntry
}
