package valueset

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/fhirsync/fhirsync/internal/platform/fhir"
)

// ErrNotExpanded reports an attempt to build an insert for a value set whose
// expansion carries no codes. Expand the value set first.
var ErrNotExpanded = errors.New("value set must be expanded before its codes can be inserted")

// Codes table columns. An absent value set version is stored as the empty
// string, never NULL, so the join equality below is total.
var codeColumns = []string{"valueseturi", "valuesetversion", "system", "code"}

var tableNamePattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_.]*$`)

// InsertStatement is a vendor-neutral SQL statement with positional args,
// ready for the caller's execution engine.
type InsertStatement struct {
	SQL  string
	Args []any
}

// BuildInsert constructs a set-difference bulk insert placing the value
// set's expanded codes into table. Codes already present in the table, keyed
// by (valueseturi, valuesetversion, system, code), are filtered out with a
// LEFT JOIN, so executing the statement repeatedly inserts each code at most
// once. Existing rows are never updated or deleted. The builder does not
// execute the statement or manage transactions; without surrounding
// isolation or a unique constraint, concurrent writers can still race
// between the check and the insert.
func BuildInsert(vs *fhir.ValueSet, table string) (*InsertStatement, error) {
	if !vs.Expanded() {
		return nil, fmt.Errorf("%w: %s", ErrNotExpanded, vs.URL)
	}
	if !tableNamePattern.MatchString(table) {
		return nil, fmt.Errorf("invalid table name: %q", table)
	}

	cols := strings.Join(codeColumns, ", ")
	var sb strings.Builder
	args := make([]any, 0, len(vs.Expansion.Contains)*len(codeColumns))

	fmt.Fprintf(&sb, "INSERT INTO %s (%s)\n", table, cols)
	sb.WriteString("SELECT codes.valueseturi, codes.valuesetversion, codes.system, codes.code\nFROM (\n")

	for i, code := range vs.Expansion.Contains {
		if i == 0 {
			fmt.Fprintf(&sb,
				"    SELECT $%d::text AS valueseturi, $%d::text AS valuesetversion, $%d::text AS system, $%d::text AS code\n",
				len(args)+1, len(args)+2, len(args)+3, len(args)+4)
		} else {
			fmt.Fprintf(&sb, "    UNION ALL SELECT $%d, $%d, $%d, $%d\n",
				len(args)+1, len(args)+2, len(args)+3, len(args)+4)
		}
		args = append(args, vs.URL, vs.Version, code.System, code.Code)
	}

	fmt.Fprintf(&sb, ") AS codes\nLEFT JOIN %s AS existing ON\n", table)
	joins := make([]string, len(codeColumns))
	for i, col := range codeColumns {
		joins[i] = fmt.Sprintf("    codes.%s = existing.%s", col, col)
	}
	sb.WriteString(strings.Join(joins, " AND\n"))

	guards := make([]string, len(codeColumns))
	for i, col := range codeColumns {
		guards[i] = fmt.Sprintf("existing.%s IS NULL", col)
	}
	fmt.Fprintf(&sb, "\nWHERE %s", strings.Join(guards, " AND "))

	return &InsertStatement{SQL: sb.String(), Args: args}, nil
}
