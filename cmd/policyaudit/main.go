// Command policyaudit compares the declarative row security policies
// against the in-process access predicates. It is meant for CI: a
// divergent verdict exits non-zero and blocks the deploy.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/armature-app/armature/internal/policyaudit"
)

func main() {
	policyFile := flag.String("policies", "db/policies.sql", "path to the policy SQL script")
	flag.Parse()

	raw, err := os.ReadFile(*policyFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "policyaudit: read %s: %v\n", *policyFile, err)
		os.Exit(2)
	}

	policies, err := policyaudit.ParsePolicies(string(raw))
	if err != nil {
		fmt.Fprintf(os.Stderr, "policyaudit: parse policies: %v\n", err)
		os.Exit(2)
	}

	report := policyaudit.Audit(policies)
	if err := report.Write(os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "policyaudit: write report: %v\n", err)
		os.Exit(2)
	}

	if report.HasDivergence() {
		os.Exit(1)
	}
}
