package main

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func healthyStore(t *testing.T) *memStore {
	t.Helper()
	store := newMemStore()
	store.supplements = 5
	store.medications = 5

	rows := []Row{
		{"supplement_id": uuid.NewString(), "medication_id": uuid.NewString(), "severity": "low"},
		{"supplement_id": uuid.NewString(), "medication_id": uuid.NewString(), "severity": "moderate"},
		{"supplement_id": uuid.NewString(), "medication_id": uuid.NewString(), "severity": "high"},
	}
	require.NoError(t, store.Upsert(context.Background(), "interactions", rows, "supplement_id,medication_id"))
	return store
}

func checkByName(t *testing.T, report VerificationReport, name string) CheckResult {
	t.Helper()
	for _, c := range report.Checks {
		if c.Name == name {
			return c
		}
	}
	t.Fatalf("check %q not in report", name)
	return CheckResult{}
}

func TestVerifyHealthy(t *testing.T) {
	store := healthyStore(t)
	thresholds := Thresholds{MinSupplements: 5, MinMedications: 5, MinInteractions: 3}

	report := NewVerifier(store, thresholds).Verify(context.Background())
	assert.True(t, report.Pass)
	assert.Len(t, report.Checks, 6)
	assert.Equal(t, 1, report.SeverityCounts[SeverityLow])
	for _, c := range report.Checks {
		assert.True(t, c.Pass, "check %s", c.Name)
	}
}

func TestVerifyCountBelowThreshold(t *testing.T) {
	store := healthyStore(t)
	thresholds := Thresholds{MinSupplements: 100, MinMedications: 5, MinInteractions: 3}

	report := NewVerifier(store, thresholds).Verify(context.Background())
	assert.False(t, report.Pass)

	check := checkByName(t, report, "supplements_count")
	assert.False(t, check.Pass)
	assert.Equal(t, 5, check.Got)
	assert.Equal(t, 100, check.Want)

	// Other checks still run and report independently.
	assert.True(t, checkByName(t, report, "medications_count").Pass)
	assert.True(t, checkByName(t, report, "interactions_count").Pass)
}

func TestVerifyDanglingForeignKey(t *testing.T) {
	store := healthyStore(t)
	store.dangling = 1

	report := NewVerifier(store, Thresholds{}).Verify(context.Background())
	assert.False(t, report.Pass)

	check := checkByName(t, report, "dangling_foreign_key_count")
	assert.False(t, check.Pass)
	assert.Equal(t, 1, check.Got)
}

func TestVerifyDuplicatePairs(t *testing.T) {
	store := healthyStore(t)
	store.duplicates = 2

	report := NewVerifier(store, Thresholds{}).Verify(context.Background())
	check := checkByName(t, report, "duplicate_pair_count")
	assert.False(t, check.Pass)
	assert.Equal(t, 2, check.Got)
}

func TestVerifySeveritySkew(t *testing.T) {
	store := newMemStore()
	store.supplements = 5
	store.medications = 5
	rows := []Row{
		{"supplement_id": uuid.NewString(), "medication_id": uuid.NewString(), "severity": "high"},
		{"supplement_id": uuid.NewString(), "medication_id": uuid.NewString(), "severity": "high"},
	}
	require.NoError(t, store.Upsert(context.Background(), "interactions", rows, "supplement_id,medication_id"))

	report := NewVerifier(store, Thresholds{}).Verify(context.Background())
	check := checkByName(t, report, "severity_distribution")
	assert.False(t, check.Pass)
	assert.Contains(t, check.Detail, `severity "high"`)
}

func TestVerifySingleRowNotSkewed(t *testing.T) {
	store := newMemStore()
	rows := []Row{
		{"supplement_id": uuid.NewString(), "medication_id": uuid.NewString(), "severity": "high"},
	}
	require.NoError(t, store.Upsert(context.Background(), "interactions", rows, "supplement_id,medication_id"))

	report := NewVerifier(store, Thresholds{}).Verify(context.Background())
	assert.True(t, checkByName(t, report, "severity_distribution").Pass)
}

func TestVerifyEmptyStore(t *testing.T) {
	report := NewVerifier(newMemStore(), Thresholds{}).Verify(context.Background())
	// Zero thresholds make an empty store valid.
	assert.True(t, report.Pass)
}
