package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rawRecord(row int, supplement, medication string, sev Severity, desc string) RawInteractionRecord {
	return RawInteractionRecord{
		Row:            row,
		SupplementName: supplement,
		MedicationName: medication,
		Severity:       sev,
		Description:    desc,
	}
}

func TestReconcileResolvesNames(t *testing.T) {
	catalog := testCatalog()
	records := []RawInteractionRecord{
		rawRecord(1, "Omega-3", "Warfarin", SeverityHigh, "bleeding risk"),
		rawRecord(2, "Fish Oil", "Coumadin", SeverityModerate, "same pair via synonyms"),
	}

	result := reconcile(records, catalog)
	assert.Empty(t, result.Unresolved)
	require.Len(t, result.Resolved, 1, "synonym spellings collapse to one pair")

	omega, _ := catalog.LookupID(KindSupplement, "Omega-3")
	warfarin, _ := catalog.LookupID(KindMedication, "Warfarin")
	assert.Equal(t, omega, result.Resolved[0].SupplementID)
	assert.Equal(t, warfarin, result.Resolved[0].MedicationID)

	// Later record wins the collision.
	assert.Equal(t, SeverityModerate, result.Resolved[0].Severity)
	assert.Equal(t, "same pair via synonyms", result.Resolved[0].Description)
}

func TestReconcileDedupKeepsFirstSeenOrder(t *testing.T) {
	catalog := testCatalog()
	records := []RawInteractionRecord{
		rawRecord(1, "Omega-3", "Warfarin", SeverityLow, "first"),
		rawRecord(2, "Ginkgo Biloba", "Ibuprofen", SeverityModerate, "second"),
		rawRecord(3, "Omega-3", "Warfarin", SeverityHigh, "third"),
	}

	result := reconcile(records, catalog)
	require.Len(t, result.Resolved, 2)

	// The colliding pair keeps its original slot with the later fields.
	assert.Equal(t, "third", result.Resolved[0].Description)
	assert.Equal(t, SeverityHigh, result.Resolved[0].Severity)
	assert.Equal(t, "second", result.Resolved[1].Description)
}

func TestReconcileUnresolved(t *testing.T) {
	catalog := testCatalog()
	records := []RawInteractionRecord{
		rawRecord(1, "Omega-3", "Warfarin", SeverityHigh, "ok"),
		rawRecord(2, "Unknown Herb", "Warfarin", SeverityLow, "bad supplement"),
		rawRecord(3, "Omega-3", "Unknown Drug", SeverityLow, "bad medication"),
		rawRecord(4, "Unknown Herb", "Unknown Drug", SeverityLow, "both bad"),
	}

	result := reconcile(records, catalog)
	assert.Len(t, result.Resolved, 1)
	require.Len(t, result.Unresolved, 3)

	// Every record lands in exactly one bucket.
	assert.Equal(t, len(records), len(result.Resolved)+len(result.Unresolved))

	assert.True(t, result.Unresolved[0].MissingSupplement)
	assert.False(t, result.Unresolved[0].MissingMedication)
	assert.Equal(t, 2, result.Unresolved[0].Row)

	assert.False(t, result.Unresolved[1].MissingSupplement)
	assert.True(t, result.Unresolved[1].MissingMedication)

	assert.True(t, result.Unresolved[2].MissingSupplement)
	assert.True(t, result.Unresolved[2].MissingMedication)
}

func TestSplitBatches(t *testing.T) {
	rows := make([]ResolvedInteraction, 5)
	batches := splitBatches(rows, 2)
	require.Len(t, batches, 3)

	assert.Equal(t, 1, batches[0].Ordinal)
	assert.Equal(t, 2, batches[1].Ordinal)
	assert.Equal(t, 3, batches[2].Ordinal)
	assert.Len(t, batches[0].Rows, 2)
	assert.Len(t, batches[1].Rows, 2)
	assert.Len(t, batches[2].Rows, 1)
	for _, b := range batches {
		assert.Equal(t, BatchPending, b.Status)
	}
}

func TestSplitBatchesEmptyAndDefaults(t *testing.T) {
	assert.Empty(t, splitBatches(nil, 2))

	// Non-positive size falls back to the default.
	rows := make([]ResolvedInteraction, defaultBatchSize+1)
	batches := splitBatches(rows, 0)
	require.Len(t, batches, 2)
	assert.Len(t, batches[0].Rows, defaultBatchSize)
	assert.Len(t, batches[1].Rows, 1)
}
