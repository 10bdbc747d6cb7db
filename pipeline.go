package main

import (
	"context"
	"io"

	"go.uber.org/zap"
)

// sampleLimit bounds the example rows carried in the run report; full
// counts are always reported.
const sampleLimit = 10

// RunReport is the structured result of a complete pipeline run. It is
// produced regardless of partial failure so operators never reconstruct
// state from logs.
type RunReport struct {
	Parsed     int `json:"parsed"`
	Malformed  int `json:"malformed"`
	Resolved   int `json:"resolved"`
	Unresolved int `json:"unresolved"`

	MalformedSamples  []RecordDiagnostic `json:"malformedSamples,omitempty"`
	UnresolvedSamples []UnresolvedRecord `json:"unresolvedSamples,omitempty"`

	Batches   int        `json:"batches"`
	Execution ExecReport `json:"execution"`

	Verification *VerificationReport `json:"verification,omitempty"`

	Failed        bool   `json:"failed"`
	FailureReason string `json:"failureReason,omitempty"`
}

// Pipeline wires the full bulk path: parse, reconcile, execute, verify.
type Pipeline struct {
	cfg   Config
	store Store
	log   *zap.SugaredLogger
}

func NewPipeline(cfg Config, store Store, log *zap.SugaredLogger) *Pipeline {
	return &Pipeline{cfg: cfg, store: store, log: log}
}

// Run imports interaction records from src against the given catalog
// snapshot and returns the run report. The report is complete even when the
// run fails partway.
func (p *Pipeline) Run(ctx context.Context, src io.Reader, format SourceFormat, catalog *Catalog) RunReport {
	var report RunReport

	records, diagnostics, err := parseRecords(src, format)
	if err != nil {
		report.Failed = true
		report.FailureReason = "parse: " + err.Error()
		return report
	}
	report.Parsed = len(records) + len(diagnostics)
	report.Malformed = len(diagnostics)
	report.MalformedSamples = truncateDiagnostics(diagnostics)
	p.log.Infow("parsed source",
		"records", len(records),
		"malformed", len(diagnostics),
		"format", format,
	)

	result := reconcile(records, catalog)
	report.Resolved = len(result.Resolved)
	report.Unresolved = len(result.Unresolved)
	report.UnresolvedSamples = truncateUnresolved(result.Unresolved)
	p.log.Infow("reconciled records",
		"resolved", len(result.Resolved),
		"unresolved", len(result.Unresolved),
		"supplements", catalog.Len(KindSupplement),
		"medications", catalog.Len(KindMedication),
	)

	if p.cfg.FailOnUnresolved && len(result.Unresolved) > 0 {
		// Abort before any batch is written: a run with known coverage gaps
		// must not partially update the interactions table in this mode.
		report.Failed = true
		report.FailureReason = "unresolved records present and FAIL_ON_UNRESOLVED is set"
		return report
	}

	batches := splitBatches(result.Resolved, p.cfg.BatchSize)
	report.Batches = len(batches)

	executor := NewExecutor(p.store, p.log, p.cfg.RetryAttempts, p.cfg.RetryBaseDelay, p.cfg.ResumeAfter)
	report.Execution = executor.Execute(ctx, batches)
	if report.Execution.Err != nil {
		report.Failed = true
		report.FailureReason = report.Execution.Err.Error()
	}

	if vs, ok := p.store.(VerifyStore); ok {
		verification := NewVerifier(vs, p.cfg.Thresholds).Verify(ctx)
		report.Verification = &verification
	}

	return report
}

func truncateDiagnostics(diags []RecordDiagnostic) []RecordDiagnostic {
	if len(diags) > sampleLimit {
		return diags[:sampleLimit]
	}
	return diags
}

func truncateUnresolved(recs []UnresolvedRecord) []UnresolvedRecord {
	if len(recs) > sampleLimit {
		return recs[:sampleLimit]
	}
	return recs
}
