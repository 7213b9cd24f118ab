package sqlxrepos

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/ihub/core"
)

type baseRepository struct {
	db *sqlx.DB
}

// getExec returns the executor the service passed in (a transaction) or the repository's DB.
func (repo baseRepository) getExec(svcExec []core.DBExecutor) sqlx.ExtContext {
	if len(svcExec) == 0 || svcExec[0] == nil {
		return repo.db
	}
	ext, ok := svcExec[0].(sqlx.ExtContext)
	if !ok {
		panic(fmt.Sprintf("sqlxrepos: unsupported executor %T", svcExec[0]))
	}
	return ext
}

// trapNoRowsErr maps psql "no rows" err to notFound
func trapNoRowsErr(err error, notFound error, msg string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return notFound
	}
	return errors.Wrap(err, msg)
}

// orderBy renders an ORDER BY clause on alias columns. Fields must come from core.CleanOrdering.
func orderBy(alias string, ordering []core.DBOrdering, tieBreaker string) string {
	clauses := make([]string, 0, len(ordering)+1)
	for _, ord := range ordering {
		ord.Field = alias + "." + ord.Field
		clauses = append(clauses, ord.String())
	}
	if tieBreaker != "" {
		clauses = append(clauses, tieBreaker)
	}
	if len(clauses) == 0 {
		return ""
	}
	return " ORDER BY " + strings.Join(clauses, ", ")
}

// limitOffset renders LIMIT/OFFSET for page. A zero page selects every row.
func limitOffset(page core.Page) string {
	if page.Size <= 0 {
		return ""
	}
	return fmt.Sprintf(" LIMIT %d OFFSET %d", page.Limit(), page.Offset())
}

// whereClause joins conditions with AND. Conditions use `?` placeholders;
// rebind the final query with the DB's bind type.
type whereClause struct {
	conds []string
	args  []interface{}
}

func (w *whereClause) add(cond string, args ...interface{}) {
	w.args = append(w.args, args...)
	w.conds = append(w.conds, "("+cond+")")
}

func (w whereClause) String() string {
	if len(w.conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.conds, " AND ")
}

func likePattern(s string) string {
	r := strings.NewReplacer(`\`, `\\`, "%", `\%`, "_", `\_`)
	return "%" + r.Replace(s) + "%"
}
