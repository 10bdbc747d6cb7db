package main

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testCatalog builds the catalog fixture shared across packages' tests:
// four supplements, three medications, and synonym tables exercising
// hyphens, apostrophes and multi-word names.
func testCatalog() *Catalog {
	supplements := []CanonicalEntity{
		{ID: uuid.NewString(), Name: "Omega-3"},
		{ID: uuid.NewString(), Name: "5-Hydroxytryptophan"},
		{ID: uuid.NewString(), Name: "St. John's Wort"},
		{ID: uuid.NewString(), Name: "Ginkgo Biloba"},
	}
	medications := []CanonicalEntity{
		{ID: uuid.NewString(), Name: "Warfarin"},
		{ID: uuid.NewString(), Name: "Sertraline"},
		{ID: uuid.NewString(), Name: "Ibuprofen"},
	}
	suppSynonyms := map[string]string{
		"fish oil":         "omega-3",
		"5-htp":            "5-hydroxytryptophan",
		"saint johns wort": "st johns wort",
		"orphan synonym":   "no such entity",
	}
	medSynonyms := map[string]string{
		"coumadin": "warfarin",
		"zoloft":   "sertraline",
	}
	return NewCatalog(supplements, medications, suppSynonyms, medSynonyms)
}

func TestLookupIDCanonicalName(t *testing.T) {
	catalog := testCatalog()

	id, ok := catalog.LookupID(KindSupplement, "Omega-3")
	require.True(t, ok)
	assert.Equal(t, "Omega-3", catalog.EntityName(KindSupplement, id))

	// Raw input normalizes before lookup.
	again, ok := catalog.LookupID(KindSupplement, "  OMEGA-3 ")
	require.True(t, ok)
	assert.Equal(t, id, again)
}

func TestLookupIDThroughSynonym(t *testing.T) {
	catalog := testCatalog()

	direct, ok := catalog.LookupID(KindSupplement, "5-Hydroxytryptophan")
	require.True(t, ok)

	viaSynonym, ok := catalog.LookupID(KindSupplement, "5-HTP")
	require.True(t, ok)
	assert.Equal(t, direct, viaSynonym)

	viaMed, ok := catalog.LookupID(KindMedication, "Coumadin")
	require.True(t, ok)
	warfarin, _ := catalog.LookupID(KindMedication, "Warfarin")
	assert.Equal(t, warfarin, viaMed)
}

func TestLookupIDCrossKindIsolation(t *testing.T) {
	catalog := testCatalog()

	_, ok := catalog.LookupID(KindSupplement, "Warfarin")
	assert.False(t, ok, "medication name must not resolve in the supplement namespace")

	_, ok = catalog.LookupID(KindMedication, "Omega-3")
	assert.False(t, ok)
}

func TestResolveKeyPassThrough(t *testing.T) {
	catalog := testCatalog()

	// A key with no synonym entry resolves to itself.
	assert.Equal(t, "omega-3", catalog.resolveKey(KindSupplement, "omega-3"))
	assert.Equal(t, "unknown thing", catalog.resolveKey(KindSupplement, "unknown thing"))

	// Exactly one indirection, never a chain.
	assert.Equal(t, "warfarin", catalog.resolveKey(KindMedication, "coumadin"))
}

func TestOrphanSynonymDropped(t *testing.T) {
	catalog := testCatalog()

	// A synonym whose canonical key has no entity must not shadow
	// pass-through resolution.
	assert.Equal(t, "orphan synonym", catalog.resolveKey(KindSupplement, "orphan synonym"))
	_, ok := catalog.LookupID(KindSupplement, "orphan synonym")
	assert.False(t, ok)
}

func TestSynonymsFor(t *testing.T) {
	catalog := testCatalog()

	assert.Equal(t, []string{"5-htp"}, catalog.SynonymsFor(KindSupplement, "5-hydroxytryptophan"))
	assert.Empty(t, catalog.SynonymsFor(KindSupplement, "ginkgo biloba"))
	assert.Equal(t, []string{"coumadin"}, catalog.SynonymsFor(KindMedication, "warfarin"))
}

func TestCatalogLen(t *testing.T) {
	catalog := testCatalog()
	assert.Equal(t, 4, catalog.Len(KindSupplement))
	assert.Equal(t, 3, catalog.Len(KindMedication))
}
