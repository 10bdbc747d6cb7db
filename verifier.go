package main

import (
	"context"
	"fmt"
)

// VerifyStore is the read-only storage surface the verifier needs.
// PostgresStore implements it.
type VerifyStore interface {
	Count(ctx context.Context, table string, filter map[string]any) (int, error)
	DanglingInteractions(ctx context.Context) (int, error)
	DuplicatePairs(ctx context.Context) (int, error)
	SeverityCounts(ctx context.Context) (map[Severity]int, error)
}

// Thresholds are the caller-supplied minimum row counts; they are
// configuration, not rules of the verifier.
type Thresholds struct {
	MinSupplements  int `json:"minSupplements"`
	MinMedications  int `json:"minMedications"`
	MinInteractions int `json:"minInteractions"`
}

// CheckResult is one independently reportable verification check.
type CheckResult struct {
	Name   string `json:"name"`
	Pass   bool   `json:"pass"`
	Got    int    `json:"got"`
	Want   int    `json:"want"`
	Detail string `json:"detail,omitempty"`
}

// VerificationReport is the verifier's structured pass/fail output. A
// failing report is surfaced, never raised; the caller decides whether it
// blocks a deploy.
type VerificationReport struct {
	Checks         []CheckResult    `json:"checks"`
	SeverityCounts map[Severity]int `json:"severityCounts"`
	Pass           bool             `json:"pass"`
}

// Verifier runs the post-import invariant checks. Read-only.
type Verifier struct {
	store      VerifyStore
	thresholds Thresholds
}

func NewVerifier(store VerifyStore, thresholds Thresholds) *Verifier {
	return &Verifier{store: store, thresholds: thresholds}
}

// Verify runs every check and reports each independently; the overall
// status is the conjunction. Query errors fail the affected check rather
// than aborting the report.
func (v *Verifier) Verify(ctx context.Context) VerificationReport {
	report := VerificationReport{Pass: true}

	add := func(check CheckResult) {
		report.Checks = append(report.Checks, check)
		if !check.Pass {
			report.Pass = false
		}
	}

	add(v.countCheck(ctx, "supplements_count", "supplements", v.thresholds.MinSupplements))
	add(v.countCheck(ctx, "medications_count", "medications", v.thresholds.MinMedications))
	add(v.countCheck(ctx, "interactions_count", "interactions", v.thresholds.MinInteractions))

	dangling, err := v.store.DanglingInteractions(ctx)
	add(zeroCheck("dangling_foreign_key_count", dangling, err))

	duplicates, err := v.store.DuplicatePairs(ctx)
	add(zeroCheck("duplicate_pair_count", duplicates, err))

	severities, err := v.store.SeverityCounts(ctx)
	if err != nil {
		add(CheckResult{Name: "severity_distribution", Detail: err.Error()})
	} else {
		report.SeverityCounts = severities
		add(severityCheck(severities))
	}

	return report
}

func (v *Verifier) countCheck(ctx context.Context, name, table string, min int) CheckResult {
	count, err := v.store.Count(ctx, table, nil)
	if err != nil {
		return CheckResult{Name: name, Want: min, Detail: err.Error()}
	}
	return CheckResult{Name: name, Pass: count >= min, Got: count, Want: min}
}

func zeroCheck(name string, got int, err error) CheckResult {
	if err != nil {
		return CheckResult{Name: name, Detail: err.Error()}
	}
	return CheckResult{Name: name, Pass: got == 0, Got: got}
}

// severityCheck catches skewed or corrupted source data: a non-trivial
// interactions table where every row carries the same severity fails.
func severityCheck(counts map[Severity]int) CheckResult {
	total := 0
	for _, n := range counts {
		total += n
	}
	check := CheckResult{Name: "severity_distribution", Pass: true, Got: len(counts)}
	if total > 1 && len(counts) == 1 {
		check.Pass = false
		for sev := range counts {
			check.Detail = fmt.Sprintf("all %d interactions have severity %q", total, sev)
		}
	}
	return check
}
