// Package mysqlrepo implements the repository contracts on MySQL. Ordered
// lists and the specification map are stored in JSON columns so a product
// round-trips with its feature and image order intact.
package mysqlrepo

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/go-sql-driver/mysql"

	"github.com/allureimpex/allure-impex-api/internal/repository"
)

// New returns a Stores bundle over an open, migrated handle.
func New(db *sql.DB) repository.Stores {
	return repository.Stores{
		Users:    NewUserRepo(db),
		Products: NewProductRepo(db),
		Messages: NewMessageRepo(db),
		Ping:     db.PingContext,
		Close:    func(context.Context) error { return db.Close() },
	}
}

// isDuplicate reports a unique-key violation (ER_DUP_ENTRY).
func isDuplicate(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == 1062
}

// notFound maps sql.ErrNoRows to the repository sentinel.
func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return repository.ErrNotFound
	}
	return err
}

// affected turns a zero-row update/delete into ErrNotFound.
func affected(res sql.Result, err error) error {
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return repository.ErrNotFound
	}
	return nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// likePattern is a lower-cased, escaped %substring% pattern.
func likePattern(q string) string {
	return "%" + likeEscaper.Replace(strings.ToLower(strings.TrimSpace(q))) + "%"
}

// orderBy maps a repository sort onto a whitelisted column.
func orderBy(s repository.Sort, columns map[string]string) string {
	col, ok := columns[s.FieldOr(repository.SortCreatedAt)]
	if !ok {
		col = "created_at"
	}
	dir := "DESC"
	if s.Asc {
		dir = "ASC"
	}
	return " ORDER BY " + col + " " + dir + ", id " + dir
}

func limitClause(p repository.Page, args []any) (string, []any) {
	if !p.Paginated() {
		return "", args
	}
	return " LIMIT ? OFFSET ?", append(args, p.Limit, p.Offset())
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}
