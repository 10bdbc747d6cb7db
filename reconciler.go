package main

// ResolvedInteraction is an interaction row with both names resolved to
// canonical ids. The business key is (SupplementID, MedicationID).
type ResolvedInteraction struct {
	SupplementID   string   `json:"supplement_id"`
	MedicationID   string   `json:"medication_id"`
	Severity       Severity `json:"severity"`
	Description    string   `json:"description"`
	Recommendation string   `json:"recommendation"`
}

// UnresolvedRecord is a structurally valid record whose names have no
// catalog match. This is a data-coverage gap, reported separately from
// malformed rows so catalog growth decisions can be made.
type UnresolvedRecord struct {
	Row               int    `json:"row"`
	SupplementName    string `json:"supplementName"`
	MedicationName    string `json:"medicationName"`
	MissingSupplement bool   `json:"missingSupplement"`
	MissingMedication bool   `json:"missingMedication"`
}

// ReconcileResult satisfies len(records) == len(Resolved) + len(Unresolved):
// every input record lands in exactly one bucket.
type ReconcileResult struct {
	Resolved   []ResolvedInteraction
	Unresolved []UnresolvedRecord
}

// reconcile resolves each record's two names against the catalog snapshot
// and deduplicates by (supplement_id, medication_id). When two records
// collide, the later record in parse order wins, mirroring the upsert
// semantics of the storage layer; output keeps first-seen ordering so batch
// generation is stable across runs on the same input.
func reconcile(records []RawInteractionRecord, catalog *Catalog) ReconcileResult {
	var result ReconcileResult

	position := make(map[string]int, len(records))
	for _, rec := range records {
		suppID, suppOK := catalog.LookupID(KindSupplement, rec.SupplementName)
		medID, medOK := catalog.LookupID(KindMedication, rec.MedicationName)

		if !suppOK || !medOK {
			result.Unresolved = append(result.Unresolved, UnresolvedRecord{
				Row:               rec.Row,
				SupplementName:    rec.SupplementName,
				MedicationName:    rec.MedicationName,
				MissingSupplement: !suppOK,
				MissingMedication: !medOK,
			})
			continue
		}

		resolved := ResolvedInteraction{
			SupplementID:   suppID,
			MedicationID:   medID,
			Severity:       rec.Severity,
			Description:    rec.Description,
			Recommendation: rec.Recommendation,
		}

		key := suppID + "|" + medID
		if idx, seen := position[key]; seen {
			result.Resolved[idx] = resolved
			continue
		}
		position[key] = len(result.Resolved)
		result.Resolved = append(result.Resolved, resolved)
	}

	return result
}

// BatchStatus tracks an ImportBatch through the executor.
type BatchStatus string

const (
	BatchPending BatchStatus = "pending"
	BatchApplied BatchStatus = "applied"
	BatchFailed  BatchStatus = "failed"
)

// ImportBatch is a fixed-size group of resolved interactions. Ordinals are
// 1-based and rows are immutable once the batch is constructed; only Status
// transitions.
type ImportBatch struct {
	Ordinal int
	Rows    []ResolvedInteraction
	Status  BatchStatus
}

// splitBatches groups resolved interactions into fixed-size batches,
// preserving order.
func splitBatches(rows []ResolvedInteraction, size int) []ImportBatch {
	if size <= 0 {
		size = defaultBatchSize
	}

	var batches []ImportBatch
	for start := 0; start < len(rows); start += size {
		end := start + size
		if end > len(rows) {
			end = len(rows)
		}
		batches = append(batches, ImportBatch{
			Ordinal: len(batches) + 1,
			Rows:    rows[start:end],
			Status:  BatchPending,
		})
	}
	return batches
}
