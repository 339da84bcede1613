// Package sqlxrepos implements the core repositories on PostgreSQL with sqlx.
// Queries are written with `?` placeholders and rebound to `$n` before execution.
package sqlxrepos

import (
	"context"
	"database/sql"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/gradebook/core"
)

type repository struct {
	exec core.DBExecutor
}

func (repo repository) getExec(svcExec []core.DBExecutor) core.DBExecutor {
	if len(svcExec) > 0 && svcExec[0] != nil {
		return svcExec[0]
	}
	return repo.exec
}

// selectContext runs the query and scans every row into dest, a pointer to a slice of structs.
func (repo repository) selectContext(ctx context.Context, exec []core.DBExecutor, dest interface{}, query string, args ...interface{}) error {
	query, args, err := expandIn(query, args)
	if err != nil {
		return err
	}
	rows, err := repo.getExec(exec).QueryContext(ctx, rebind(query), args...)
	if err != nil {
		return err
	}
	defer func() { _ = rows.Close() }()
	return sqlx.StructScan(rows, dest)
}

// execContext runs the statement and returns the number of affected rows.
func (repo repository) execContext(ctx context.Context, exec []core.DBExecutor, query string, args ...interface{}) (int, error) {
	query, args, err := expandIn(query, args)
	if err != nil {
		return 0, err
	}
	res, err := repo.getExec(exec).ExecContext(ctx, rebind(query), args...)
	if err != nil {
		return 0, err
	}
	cnt, err := res.RowsAffected()
	return int(cnt), err
}

func (repo repository) countContext(ctx context.Context, exec []core.DBExecutor, query string, args ...interface{}) (int, error) {
	query, args, err := expandIn(query, args)
	if err != nil {
		return 0, err
	}
	var cnt int
	err = repo.getExec(exec).QueryRowContext(ctx, rebind(query), args...).Scan(&cnt)
	return cnt, err
}

// expandIn expands slice args bound to `IN (?)`.
func expandIn(query string, args []interface{}) (string, []interface{}, error) {
	if !strings.Contains(query, "(?)") {
		return query, args, nil
	}
	return sqlx.In(query, args...)
}

// trapNoRowsErr maps psql "no rows" err to notFoundErr
func trapNoRowsErr(err error, notFoundErr error, msg string) error {
	if errors.Cause(err) == sql.ErrNoRows {
		return notFoundErr
	}
	return errors.Wrap(err, msg)
}

// validID reports whether id can be compared to a UUID column.
func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

func validIDs(ids []string) []string {
	valid := make([]string, 0, len(ids))
	for _, id := range ids {
		if validID(id) {
			valid = append(valid, id)
		}
	}
	return valid
}

func newID() string {
	return uuid.New().String()
}

// where joins the conditions with AND.
type where struct {
	conds []string
	args  []interface{}
}

func (w *where) add(cond string, args ...interface{}) {
	w.conds = append(w.conds, cond)
	w.args = append(w.args, args...)
}

func (w *where) String() string {
	if len(w.conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.conds, " AND ")
}

// orderBy whitelists the ordering fields against the column names of a table.
func orderBy(ordering []core.DBOrdering, columns map[string]string, fallback string) string {
	list := make([]string, 0, len(ordering))
	for _, ord := range ordering {
		col, ok := columns[ord.Field]
		if !ok {
			continue
		}
		list = append(list, core.DBOrdering{Field: col, Ascending: ord.Ascending}.String())
	}
	if len(list) == 0 {
		return " ORDER BY " + fallback
	}
	return " ORDER BY " + strings.Join(list, ", ")
}

// rebind turns the `?` placeholders into postgres `$n` ones.
func rebind(query string) string {
	return sqlx.Rebind(sqlx.DOLLAR, query)
}
