package policyaudit

import (
	"fmt"
	"regexp"
	"strings"
)

// Policy is one declarative row-security policy parsed from the storage
// layer's policy file. The kernel never generates these; it only inspects
// them.
type Policy struct {
	Name       string
	Table      string
	Action     string // SELECT, INSERT, UPDATE, DELETE or ALL
	Roles      []string
	Permissive bool
	Using      string
}

var policyHeadRe = regexp.MustCompile(
	`(?is)create\s+policy\s+"?([a-z0-9_]+)"?\s+on\s+(?:[a-z0-9_]+\.)?([a-z0-9_]+)` +
		`(\s+as\s+(permissive|restrictive))?` +
		`(\s+for\s+(select|insert|update|delete|all))?` +
		`(\s+to\s+([a-z0-9_,\s]+?))?\s+using\s*\(`)

// ParsePolicies extracts CREATE POLICY statements from SQL text. The parser
// is deliberately structural: it reads names, tables, actions, roles and the
// balanced USING expression, nothing more.
func ParsePolicies(sql string) ([]Policy, error) {
	var policies []Policy
	for _, match := range policyHeadRe.FindAllStringSubmatchIndex(sql, -1) {
		groups := policyHeadRe.FindStringSubmatch(sql[match[0]:match[1]])
		using, err := balancedExpr(sql, match[1]-1)
		if err != nil {
			return nil, fmt.Errorf("policyaudit: policy %s: %w", groups[1], err)
		}
		policy := Policy{
			Name:       groups[1],
			Table:      strings.ToLower(groups[2]),
			Action:     "ALL",
			Permissive: true,
			Using:      using,
		}
		if groups[4] != "" {
			policy.Permissive = strings.EqualFold(groups[4], "permissive")
		}
		if groups[6] != "" {
			policy.Action = strings.ToUpper(groups[6])
		}
		if groups[8] != "" {
			for _, role := range strings.Split(groups[8], ",") {
				if role = strings.TrimSpace(strings.ToLower(role)); role != "" {
					policy.Roles = append(policy.Roles, role)
				}
			}
		}
		policies = append(policies, policy)
	}
	return policies, nil
}

// balancedExpr returns the parenthesized expression starting at the opening
// paren at position open, without the outer parens.
func balancedExpr(sql string, open int) (string, error) {
	depth := 0
	for i := open; i < len(sql); i++ {
		switch sql[i] {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return strings.TrimSpace(sql[open+1 : i]), nil
			}
		}
	}
	return "", fmt.Errorf("unbalanced USING expression")
}

// normalize lowercases and collapses whitespace so two policy texts can be
// compared structurally.
func normalize(expr string) string {
	expr = strings.ToLower(expr)
	expr = strings.Join(strings.Fields(expr), " ")
	expr = strings.ReplaceAll(expr, "( ", "(")
	expr = strings.ReplaceAll(expr, " )", ")")
	return strings.TrimSpace(expr)
}

// orArms splits a normalized boolean expression on top-level OR.
func orArms(expr string) []string {
	expr = stripOuterParens(normalize(expr))
	var (
		arms  []string
		depth int
		start int
	)
	for i := 0; i+4 <= len(expr); i++ {
		switch expr[i] {
		case '(':
			depth++
		case ')':
			depth--
		}
		if depth == 0 && i+4 <= len(expr) && expr[i:i+4] == " or " {
			arms = append(arms, stripOuterParens(strings.TrimSpace(expr[start:i])))
			start = i + 4
		}
	}
	arms = append(arms, stripOuterParens(strings.TrimSpace(expr[start:])))
	return arms
}

func stripOuterParens(expr string) string {
	for strings.HasPrefix(expr, "(") && strings.HasSuffix(expr, ")") {
		depth := 0
		balanced := true
		for i := 0; i < len(expr)-1; i++ {
			switch expr[i] {
			case '(':
				depth++
			case ')':
				depth--
			}
			if depth == 0 {
				balanced = false
				break
			}
		}
		if !balanced {
			break
		}
		expr = strings.TrimSpace(expr[1 : len(expr)-1])
	}
	return expr
}
