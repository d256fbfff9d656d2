package sqlxrepos

import (
	"strings"

	"github.com/jmoiron/sqlx"
)

// likePattern returns a case-insensitive LIKE pattern matching s anywhere; used with `ESCAPE '\'`
// against LOWER(column). Postgres lowers any letter but SQLite's LOWER only folds ASCII ones:
// on SQLite, searching "école" does not match "École".
func likePattern(s string) string {
	s = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(strings.ToLower(s))
	return "%" + s + "%"
}

// in expands the slice args of query & rebinds it for db.
func in(db *sqlx.DB, query string, args ...interface{}) (string, []interface{}, error) {
	q, args, err := sqlx.In(query, args...)
	if err != nil {
		return "", nil, err
	}
	return db.Rebind(q), args, nil
}
