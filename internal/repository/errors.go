package repository

import (
	"errors"

	"github.com/lib/pq"
)

// ErrDuplicateEmail はメールアドレスのUNIQUE制約違反を表す。
var ErrDuplicateEmail = errors.New("email already registered")

// uniqueViolation はPostgreSQLのunique_violationエラーコード。
const uniqueViolation = "23505"

// isUniqueViolation はエラーがUNIQUE制約違反かどうかを判定する。
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == uniqueViolation
	}
	return false
}
