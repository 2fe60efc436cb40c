package jira

import (
	"fmt"
	"sort"
	"strings"

	"github.com/tuannvm/jira-tracker/internal/models"
)

// Query is JQL text. It is built once and never modified.
type Query string

// MatchNothing is a valid query that no issue satisfies; every issue has a key.
const MatchNothing Query = "issuekey IS EMPTY"

const jqlDateLayout = "2006-01-02"

var jqlEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\n`, "\r", `\r`, "\t", `\t`)

// quote renders s as a JQL string literal.
func quote(s string) string {
	return `"` + jqlEscaper.Replace(s) + `"`
}

// QueryBuilder compiles search criteria into JQL. Output depends only on the
// input, so equal criteria always yield identical text.
type QueryBuilder struct{}

// SearchQuery builds the JQL for a general search. Criteria with no filters
// yield an empty query, which the tracker treats as "all issues".
func (QueryBuilder) SearchQuery(sc models.SearchCriteria) Query {
	var clauses []string
	clauses = appendScope(clauses, sc)

	if status, ok := sc.Status(); ok {
		if name, known := jqlStatusNames[status]; known {
			clauses = append(clauses, "status = "+quote(name))
		}
	}
	if assignee, ok := sc.Assignee(); ok {
		clauses = append(clauses, "assignee = "+quote(assignee))
	}
	if reporter, ok := sc.Reporter(); ok {
		clauses = append(clauses, "reporter = "+quote(reporter))
	}
	if component, ok := sc.Component(); ok {
		clauses = append(clauses, "component = "+quote(component))
	}
	clauses = appendStage(clauses, sc.Stage())

	if start, ok := sc.StartDate(); ok {
		clauses = append(clauses, "created >= "+quote(start.Format(jqlDateLayout)))
	}
	if end, ok := sc.EndDate(); ok {
		clauses = append(clauses, "created <= "+quote(end.Format(jqlDateLayout)))
	}
	if updated, ok := sc.LastUpdated(); ok {
		clauses = append(clauses, "updated >= "+quote(updated.Format(jqlDateLayout)))
	}
	return Query(strings.Join(clauses, " AND "))
}

// DateRangeQuery selects issues of a product whose fix version was set to the
// criteria's release during the start/end window.
func (QueryBuilder) DateRangeQuery(sc models.SearchCriteria) Query {
	var clauses []string
	if product, ok := sc.Product(); ok {
		clauses = append(clauses, "project = "+quote(product))
	}
	release, ok := sc.Release()
	if !ok || release.Version == "" {
		return Query(strings.Join(clauses, " AND "))
	}

	clause := "fixVersion CHANGED TO " + quote(release.Version)
	start, hasStart := sc.StartDate()
	end, hasEnd := sc.EndDate()
	switch {
	case hasStart && hasEnd:
		clause += fmt.Sprintf(" DURING (%s, %s)", quote(start.Format(jqlDateLayout)), quote(end.Format(jqlDateLayout)))
	case hasStart:
		clause += " AFTER " + quote(start.Format(jqlDateLayout))
	case hasEnd:
		clause += " BEFORE " + quote(end.Format(jqlDateLayout))
	}
	clauses = append(clauses, clause)
	return Query(strings.Join(clauses, " AND "))
}

// MultiIssueQuery matches exactly the given keys regardless of their order.
// An empty set yields MatchNothing. The caller's slice is not modified.
func (QueryBuilder) MultiIssueQuery(keys []string) Query {
	seen := make(map[string]struct{}, len(keys))
	sorted := make([]string, 0, len(keys))
	for _, k := range keys {
		k = strings.TrimSpace(k)
		if k == "" {
			continue
		}
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		sorted = append(sorted, k)
	}
	if len(sorted) == 0 {
		return MatchNothing
	}
	sort.Strings(sorted)

	quoted := make([]string, len(sorted))
	for i, k := range sorted {
		quoted[i] = quote(k)
	}
	return Query("key in (" + strings.Join(quoted, ", ") + ")")
}

func appendScope(clauses []string, sc models.SearchCriteria) []string {
	if product, ok := sc.Product(); ok {
		clauses = append(clauses, "project = "+quote(product))
	}
	if release, ok := sc.Release(); ok {
		if release.Version != "" {
			clauses = append(clauses, "fixVersion = "+quote(release.Version))
		}
		if release.Milestone != "" {
			clauses = append(clauses, jqlField(FieldTargetRelease)+" = "+quote(release.Milestone))
		}
	}
	return clauses
}

// appendStage adds one clause per flag, in flag order so output is stable.
func appendStage(clauses []string, stage models.Stage) []string {
	flags := make([]string, 0, len(stage))
	for f := range stage {
		flags = append(flags, string(f))
	}
	sort.Strings(flags)
	for _, f := range flags {
		key, ok := FlagField(models.Flag(f))
		if !ok {
			continue
		}
		status := stage[models.Flag(f)]
		if status == models.FlagNoSet {
			clauses = append(clauses, jqlField(key)+" IS EMPTY")
			continue
		}
		clauses = append(clauses, jqlField(key)+" = "+quote(string(status)))
	}
	return clauses
}
