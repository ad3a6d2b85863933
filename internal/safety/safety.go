// Package safety classifies raw SQL into a risk tier and gates execution
// behind a confirmation policy proportional to that risk.
package safety

import (
	"fmt"
	"regexp"
	"strings"
)

// Tier is the risk classification of a SQL statement or batch.
type Tier int

const (
	Safe Tier = iota
	Cautious
	Destructive
)

func (t Tier) String() string {
	switch t {
	case Safe:
		return "safe"
	case Cautious:
		return "cautious"
	case Destructive:
		return "destructive"
	}
	return "unknown"
}

// Error is returned when the confirmation policy blocks an operation. It
// carries enough structure for the caller to retry with elevated flags.
type Error struct {
	Tier    Tier
	SQL     string
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("blocked %s operation: %s", e.Tier, e.Message)
}

// rule maps a statement pattern to a tier. Rules are evaluated in order and
// the first match wins, so destructive patterns must come before the broader
// safe ones (e.g. DELETE without WHERE before DELETE with WHERE).
type rule struct {
	pattern *regexp.Regexp
	tier    Tier
}

var rules = []rule{
	// Destructive: schema or data loss with no recovery path.
	{regexp.MustCompile(`(?is)^\s*DROP\s+TABLE\b`), Destructive},
	{regexp.MustCompile(`(?is)^\s*DROP\s+DATABASE\b`), Destructive},
	{regexp.MustCompile(`(?is)^\s*DROP\s+SCHEMA\b`), Destructive},
	{regexp.MustCompile(`(?is)^\s*DROP\s+FUNCTION\b`), Destructive},
	{regexp.MustCompile(`(?is)^\s*DROP\s+TYPE\b`), Destructive},
	{regexp.MustCompile(`(?is)^\s*DROP\s+INDEX\b`), Destructive},
	{regexp.MustCompile(`(?is)^\s*ALTER\s+TABLE\b.*\bDROP\s+CONSTRAINT\b`), Destructive},

	// A DELETE scoped by WHERE is cautious. The bare rule below then
	// catches every WHERE-less DELETE (aliases, RETURNING, ONLY included)
	// as a full-table wipe, so this one must come first.
	{regexp.MustCompile(`(?is)^\s*DELETE\s+FROM\b.*\bWHERE\b`), Cautious},
	{regexp.MustCompile(`(?is)^\s*DELETE\s+FROM\b`), Destructive},

	// Cautious: recoverable but scope-limited damage possible.
	{regexp.MustCompile(`(?is)^\s*TRUNCATE\b`), Cautious},
	{regexp.MustCompile(`(?is)^\s*ALTER\s+TABLE\b.*\bDROP\s+COLUMN\b`), Cautious},

	// UPDATE with a WHERE clause is safe; the bare UPDATE rule below
	// catches the unscoped form, so this one must come first.
	{regexp.MustCompile(`(?is)^\s*UPDATE\b.*\bWHERE\b`), Safe},
	{regexp.MustCompile(`(?is)^\s*UPDATE\b`), Cautious},

	// Safe: additive DDL and ordinary DML.
	{regexp.MustCompile(`(?is)^\s*CREATE\s+(?:OR\s+REPLACE\s+)?(?:TABLE|INDEX|UNIQUE\s+INDEX|TYPE|EXTENSION|FUNCTION|VIEW)\b`), Safe},
	{regexp.MustCompile(`(?is)^\s*ALTER\s+TABLE\b.*\bADD\s+COLUMN\b`), Safe},
	{regexp.MustCompile(`(?is)^\s*ALTER\s+TABLE\b.*\bRENAME\b`), Safe},
	{regexp.MustCompile(`(?is)^\s*SELECT\b`), Safe},
	{regexp.MustCompile(`(?is)^\s*WITH\b`), Safe},
	{regexp.MustCompile(`(?is)^\s*INSERT\b`), Safe},
	{regexp.MustCompile(`(?is)^\s*COMMENT\s+ON\b`), Safe},
}

var (
	blockComment = regexp.MustCompile(`(?s)/\*.*?\*/`)
	lineComment  = regexp.MustCompile(`--[^\n]*`)
)

// stripComments removes block and line comments so a comment can neither
// hide a destructive statement nor falsely trigger a tier.
func stripComments(sql string) string {
	sql = blockComment.ReplaceAllString(sql, " ")
	return lineComment.ReplaceAllString(sql, " ")
}

// Classify inspects raw SQL and returns the highest-risk tier among all
// statements present. Pure function: no I/O, stable across calls,
// whitespace- and case-insensitive. Unrecognized statements classify as
// Cautious, never Safe.
func Classify(sql string) Tier {
	stripped := stripComments(sql)
	result := Safe
	matched := false
	for _, stmt := range strings.Split(stripped, ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		matched = true
		tier := classifyStatement(stmt)
		if tier > result {
			result = tier
		}
	}
	if !matched {
		return Safe
	}
	return result
}

func classifyStatement(stmt string) Tier {
	for _, r := range rules {
		if r.pattern.MatchString(stmt) {
			return r.tier
		}
	}
	// Fail toward caution for anything we do not recognize.
	return Cautious
}

// Check classifies sql and applies the confirmation policy:
//
//   - Safe always passes.
//   - Cautious requires confirm.
//   - Destructive requires iKnowWhatImDoing; confirm alone is not enough.
//
// The two flags are deliberately distinct so a blanket "yes" cannot
// escalate into a destructive operation.
func Check(sql string, confirm, iKnowWhatImDoing bool) (Tier, error) {
	tier := Classify(sql)
	switch tier {
	case Destructive:
		if !iKnowWhatImDoing {
			return tier, &Error{
				Tier:    tier,
				SQL:     sql,
				Message: "destructive operation requires i_know_what_im_doing=true (confirm alone is not sufficient)",
			}
		}
	case Cautious:
		if !confirm {
			return tier, &Error{
				Tier:    tier,
				SQL:     sql,
				Message: "cautious operation requires confirm=true",
			}
		}
	}
	return tier, nil
}
