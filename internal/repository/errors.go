// Package repository defines error types that are reused across multiple
// repositories. These sentinel values allow higher layers to distinguish
// between failure scenarios without inspecting driver errors. ErrDuplicate
// and ErrConflict are produced from single constrained writes (unique keys,
// foreign keys, conditional updates) rather than read-then-write checks.
package repository

import (
	"errors"

	"github.com/go-sql-driver/mysql"
)

// ErrNotFound is returned when the addressed row does not exist.
var ErrNotFound = errors.New("not found")

// ErrDuplicate is returned when an insert or update violates a unique key
// such as the equipment serial number or the team name.
var ErrDuplicate = errors.New("duplicate")

// ErrConflict is returned when a write cannot be performed because of the
// current state of the row or its dependents, for example scrapping
// equipment twice or deleting a team that still has equipment.
var ErrConflict = errors.New("conflict")

// MySQL server error numbers the repositories translate.
const (
	mysqlDuplicateEntry  = 1062
	mysqlRowIsReferenced = 1451
	mysqlNoReferencedRow = 1452
)

func mysqlErrNumber(err error) uint16 {
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		return me.Number
	}
	return 0
}

// translate maps driver errors to the sentinels above and passes everything
// else through untouched.
func translate(err error) error {
	switch mysqlErrNumber(err) {
	case mysqlDuplicateEntry:
		return ErrDuplicate
	case mysqlRowIsReferenced:
		return ErrConflict
	case mysqlNoReferencedRow:
		return ErrNotFound
	}
	return err
}

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}
