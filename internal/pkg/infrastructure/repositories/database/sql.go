package database

import (
	"fmt"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5"
)

func quote(name string) string {
	return pgx.Identifier{name}.Sanitize()
}

func quoteAll(names []string) []string {
	q := make([]string, len(names))
	for i, n := range names {
		q[i] = quote(n)
	}
	return q
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func placeholders(from, n int) []string {
	p := make([]string, n)
	for i := range p {
		p[i] = fmt.Sprintf("$%d", from+i)
	}
	return p
}

func selectOneSQL(table string, fields, conditions []string) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "SELECT %s FROM %s", strings.Join(quoteAll(fields), ", "), quote(table))

	for i, c := range conditions {
		if i == 0 {
			sb.WriteString(" WHERE ")
		} else {
			sb.WriteString(" AND ")
		}
		fmt.Fprintf(&sb, "%s = $%d", quote(c), i+1)
	}

	sb.WriteString(" LIMIT 1")

	return sb.String()
}

func insertSQL(table string, columns []string) string {
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		quote(table),
		strings.Join(quoteAll(columns), ", "),
		strings.Join(placeholders(1, len(columns)), ", "),
	)
}

func updateSQL(table string, columns []string, idField string) string {
	set := make([]string, len(columns))
	for i, c := range columns {
		set[i] = fmt.Sprintf("%s = $%d", quote(c), i+1)
	}

	return fmt.Sprintf("UPDATE %s SET %s WHERE %s = $%d",
		quote(table), strings.Join(set, ", "), quote(idField), len(columns)+1,
	)
}

func deleteSQL(table, idField string) string {
	return fmt.Sprintf("DELETE FROM %s WHERE %s = $1", quote(table), quote(idField))
}

func deleteWhereSQL(table string, p Predicate) (string, error) {
	switch p.Operator {
	case Equal, Less, LessOrEqual, Greater, GreaterOrEqual:
	default:
		return "", fmt.Errorf("unsupported operator %q", p.Operator)
	}

	return fmt.Sprintf("DELETE FROM %s WHERE %s %s $1", quote(table), quote(p.Field), p.Operator), nil
}
