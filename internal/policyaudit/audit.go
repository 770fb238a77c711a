package policyaudit

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/armature-app/armature/internal/visibility"
)

// Verdict classifies a resource class's policy against the predicate engine.
type Verdict string

const (
	// Equivalent means the declarative policy matches the engine's predicate
	// attribute for attribute.
	Equivalent Verdict = "equivalent"
	// Divergent means the two layers disagree on what is visible. Blocks
	// deployment.
	Divergent Verdict = "divergent"
	// Unoptimized means the layers agree logically but the policy carries a
	// known performance anti-pattern.
	Unoptimized Verdict = "unoptimized"
)

// Finding is the auditor's result for one resource class.
type Finding struct {
	Class   visibility.Class
	Table   string
	Verdict Verdict
	Details []string
}

// Report aggregates findings across all resource classes.
type Report struct {
	Findings []Finding
}

// HasDivergence reports whether any class diverged.
func (r Report) HasDivergence() bool {
	for _, f := range r.Findings {
		if f.Verdict == Divergent {
			return true
		}
	}
	return false
}

// principalFnRe matches identity helper calls; bareFnRe matches calls not
// wrapped in a scalar subselect, which Postgres re-evaluates per row instead
// of once per statement.
var (
	principalFnRe = regexp.MustCompile(`(?i)(app_principal_id|app_client_id)\s*\(\s*\)`)
	wrappedFnRe   = regexp.MustCompile(`(?i)\(\s*select\s+(app_principal_id|app_client_id)\s*\(\s*\)\s*\)`)
)

// Audit compares every registered resource class against the declarative
// policies. It is a structural comparison, not a semantic prover: it flags
// known anti-patterns and arm-level mismatches.
func Audit(policies []Policy) Report {
	byTable := make(map[string][]Policy)
	for _, p := range policies {
		byTable[p.Table] = append(byTable[p.Table], p)
	}

	var report Report
	known := make(map[string]bool)
	for _, class := range visibility.Classes() {
		desc, _ := visibility.Lookup(class)
		known[desc.Table] = true
		report.Findings = append(report.Findings, auditClass(desc, byTable[desc.Table]))
	}

	// Policies for tables the kernel does not know about are divergence too:
	// one layer enforces something the other cannot see.
	var orphans []string
	for table := range byTable {
		if !known[table] {
			orphans = append(orphans, table)
		}
	}
	sort.Strings(orphans)
	for _, table := range orphans {
		report.Findings = append(report.Findings, Finding{
			Table:   table,
			Verdict: Divergent,
			Details: []string{"policy exists for a table with no registered resource class"},
		})
	}
	return report
}

func auditClass(desc visibility.Descriptor, policies []Policy) Finding {
	finding := Finding{Class: desc.Class, Table: desc.Table}

	var selectPolicies []Policy
	for _, p := range policies {
		if p.Action == "SELECT" || p.Action == "ALL" {
			selectPolicies = append(selectPolicies, p)
		}
	}
	if len(selectPolicies) == 0 {
		finding.Verdict = Divergent
		finding.Details = []string{"no declarative row policy covers SELECT"}
		return finding
	}

	var divergences, antipatterns []string

	// Multiple permissive policies for the same action are OR-combined by
	// the storage layer and each is evaluated per query.
	permissive := 0
	for _, p := range selectPolicies {
		if p.Permissive {
			permissive++
		}
	}
	if permissive > 1 {
		antipatterns = append(antipatterns,
			fmt.Sprintf("%d permissive policies cover SELECT; consolidate into one", permissive))
	}

	combined := combineUsing(selectPolicies)

	if bare := bareIdentityCalls(combined); len(bare) > 0 {
		antipatterns = append(antipatterns, fmt.Sprintf(
			"identity lookup %s re-evaluated per row; wrap in a scalar subselect", strings.Join(bare, ", ")))
	}

	if nested := nestedLookups(combined); len(nested) > 0 {
		antipatterns = append(antipatterns, fmt.Sprintf(
			"nested lookup into %s inside the policy expression", strings.Join(nested, ", ")))
	}

	want := armSet(ExpectedUsing(desc))
	got := armSet(combined)
	for arm := range want {
		if !got[arm] {
			divergences = append(divergences, fmt.Sprintf("policy missing arm: %s", arm))
		}
	}
	for arm := range got {
		if !want[arm] {
			divergences = append(divergences, fmt.Sprintf("policy has extra arm: %s", arm))
		}
	}
	sort.Strings(divergences)

	switch {
	case len(divergences) > 0:
		finding.Verdict = Divergent
		finding.Details = append(divergences, antipatterns...)
	case len(antipatterns) > 0:
		finding.Verdict = Unoptimized
		finding.Details = antipatterns
	default:
		finding.Verdict = Equivalent
	}
	return finding
}

// ExpectedUsing renders the engine's logical predicate for a class in the
// declarative policy's vocabulary. This is the canonical text a policy must
// match arm for arm.
func ExpectedUsing(desc visibility.Descriptor) string {
	var arms []string
	if desc.FullAccessCapability != "" {
		arms = append(arms, fmt.Sprintf("app_has_capability('%s')", desc.FullAccessCapability))
	}
	if desc.OwnerColumn != "" {
		arms = append(arms, fmt.Sprintf("%s = (select app_principal_id())", desc.OwnerColumn))
	}
	if desc.MembershipColumn != "" {
		arms = append(arms, fmt.Sprintf(
			"%s in (select project_id from project_members where member_id = (select app_principal_id()))",
			desc.MembershipColumn))
	}
	if desc.ClientColumn != "" {
		arms = append(arms, fmt.Sprintf("%s = (select app_client_id())", desc.ClientColumn))
	}
	return strings.Join(arms, " OR ")
}

// combineUsing OR-combines the USING expressions of all policies covering an
// action, mirroring how the storage layer evaluates multiple permissive
// policies.
func combineUsing(policies []Policy) string {
	if len(policies) == 1 {
		return policies[0].Using
	}
	parts := make([]string, len(policies))
	for i, p := range policies {
		parts[i] = "(" + p.Using + ")"
	}
	return strings.Join(parts, " OR ")
}

func armSet(expr string) map[string]bool {
	set := make(map[string]bool)
	for _, arm := range orArms(expr) {
		if arm != "" && arm != "false" {
			set[canonicalArm(arm)] = true
		}
	}
	return set
}

// canonicalArm erases the per-row vs per-statement distinction so that an
// unwrapped identity call still compares equal logically; the wrapping is
// reported separately as an anti-pattern, not a divergence.
func canonicalArm(arm string) string {
	arm = wrappedFnRe.ReplaceAllString(arm, "$1()")
	arm = principalFnRe.ReplaceAllString(arm, "$1()")
	return normalize(arm)
}

func bareIdentityCalls(expr string) []string {
	stripped := wrappedFnRe.ReplaceAllString(expr, "")
	seen := make(map[string]bool)
	var bare []string
	for _, m := range principalFnRe.FindAllStringSubmatch(stripped, -1) {
		name := strings.ToLower(m[1]) + "()"
		if !seen[name] {
			seen[name] = true
			bare = append(bare, name)
		}
	}
	sort.Strings(bare)
	return bare
}

var subselectTableRe = regexp.MustCompile(`(?i)select\s+[a-z0-9_,\s]+\s+from\s+([a-z0-9_]+)`)

// nestedLookups flags subselects against tables other than the membership
// table; policies that re-query protected tables trigger recursive policy
// evaluation per row.
func nestedLookups(expr string) []string {
	seen := make(map[string]bool)
	var nested []string
	for _, m := range subselectTableRe.FindAllStringSubmatch(expr, -1) {
		table := strings.ToLower(m[1])
		if table == "project_members" || seen[table] {
			continue
		}
		seen[table] = true
		nested = append(nested, table)
	}
	sort.Strings(nested)
	return nested
}
