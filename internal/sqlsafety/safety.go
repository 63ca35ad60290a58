// Package sqlsafety validates and normalizes SQL before anything executes it.
// Every statement, whether template-built or model-generated, passes through
// Enforce; nothing else in the pipeline is allowed to touch the database.
package sqlsafety

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/xwb1989/sqlparser"
)

// Config is process-wide policy, immutable after construction.
type Config struct {
	AllowedTables []string
	RequireLimit  bool
	DefaultLimit  int
}

func DefaultConfig() Config {
	return Config{
		AllowedTables: []string{"clients", "invoices", "invoice_line_items"},
		RequireLimit:  true,
		DefaultLimit:  50,
	}
}

// Error reports SQL rejected by the safety policy.
type Error struct {
	Reason string
}

func (e *Error) Error() string {
	return fmt.Sprintf("unsafe sql: %s", e.Reason)
}

func errorf(format string, args ...any) *Error {
	return &Error{Reason: fmt.Sprintf(format, args...)}
}

var writeKeywords = regexp.MustCompile(`(?i)\b(INSERT|UPDATE|DELETE|DROP|ALTER|TRUNCATE|CREATE|REPLACE|GRANT|REVOKE)\b`)

// IsWriteQuery reports whether the SQL text contains a write or DDL keyword.
// Purely textual: it runs before parsing so that even unparseable statements
// are rejected fast.
func IsWriteQuery(sql string) bool {
	return writeKeywords.MatchString(sql)
}

// Enforce validates sql against cfg and returns a normalized statement with
// exactly one trailing terminator, appending a default LIMIT to non-aggregate
// queries when required. It is idempotent over its own output.
func Enforce(sql string, cfg Config) (string, error) {
	sql = strings.TrimSpace(sql)
	sql = strings.TrimSpace(strings.TrimRight(sql, ";"))
	if sql == "" {
		return "", errorf("empty statement")
	}

	if IsWriteQuery(sql) {
		return "", errorf("write operations are not allowed (read-only mode)")
	}

	stmt, err := sqlparser.Parse(sql)
	if err != nil {
		return "", errorf("parse error: %v", err)
	}

	if _, ok := stmt.(sqlparser.SelectStatement); !ok {
		return "", errorf("only SELECT queries are allowed")
	}

	if disallowed := disallowedTables(stmt, cfg.AllowedTables); len(disallowed) > 0 {
		return "", errorf("query references disallowed tables: %s", strings.Join(disallowed, ", "))
	}

	if cfg.RequireLimit && !isAggregateQuery(stmt) && !hasLimit(stmt) {
		sql = sql + " LIMIT " + strconv.Itoa(cfg.DefaultLimit)
	}

	return sql + ";", nil
}

// disallowedTables collects every unqualified table name referenced anywhere
// in the statement, including subqueries and joins, and returns the ones
// outside the allow-list in sorted order.
func disallowedTables(stmt sqlparser.Statement, allowed []string) []string {
	allowedSet := make(map[string]struct{}, len(allowed))
	for _, name := range allowed {
		allowedSet[strings.ToLower(name)] = struct{}{}
	}

	seen := map[string]struct{}{}
	_ = sqlparser.Walk(func(node sqlparser.SQLNode) (bool, error) {
		aliased, ok := node.(*sqlparser.AliasedTableExpr)
		if !ok {
			return true, nil
		}
		if table, ok := aliased.Expr.(sqlparser.TableName); ok {
			name := strings.ToLower(table.Name.String())
			if name != "" {
				seen[name] = struct{}{}
			}
		}
		return true, nil
	}, stmt)

	var disallowed []string
	for name := range seen {
		if _, ok := allowedSet[name]; !ok {
			disallowed = append(disallowed, name)
		}
	}
	sort.Strings(disallowed)
	return disallowed
}

var aggregateFuncs = map[string]struct{}{
	"sum":   {},
	"count": {},
	"avg":   {},
	"min":   {},
	"max":   {},
}

// isAggregateQuery reports whether the statement groups rows or calls an
// aggregate function. Both the parser's own aggregate classification and a
// name match are consulted to tolerate parser variance.
func isAggregateQuery(stmt sqlparser.Statement) bool {
	aggregate := false
	_ = sqlparser.Walk(func(node sqlparser.SQLNode) (bool, error) {
		switch typed := node.(type) {
		case *sqlparser.Select:
			if len(typed.GroupBy) > 0 {
				aggregate = true
				return false, nil
			}
		case *sqlparser.FuncExpr:
			if typed.IsAggregate() {
				aggregate = true
				return false, nil
			}
			if _, ok := aggregateFuncs[strings.ToLower(typed.Name.String())]; ok {
				aggregate = true
				return false, nil
			}
		}
		return true, nil
	}, stmt)
	return aggregate
}

func hasLimit(stmt sqlparser.Statement) bool {
	found := false
	_ = sqlparser.Walk(func(node sqlparser.SQLNode) (bool, error) {
		// Walk visits Select.Limit even when the field is a nil pointer.
		if limit, ok := node.(*sqlparser.Limit); ok && limit != nil {
			found = true
			return false, nil
		}
		return true, nil
	}, stmt)
	return found
}
