package main

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	meilisearch "github.com/meilisearch/meilisearch-go"
	"go.uber.org/zap"
)

// minPrefixLen guards autocomplete against trivial input: anything shorter
// after normalization returns no results instead of scanning the index.
const minPrefixLen = 2

// Suggestion is one autocomplete result.
type Suggestion struct {
	ID   string     `json:"id"`
	Name string     `json:"name"`
	Kind EntityKind `json:"kind"`
}

type suggestEntry struct {
	key  string
	kind EntityKind
	id   string
	name string
}

// SuggestIndex is the query-time resolver: a precomputed, sorted index of
// every normalized entity key and synonym key in the catalog. It applies
// the same normalization rules as the bulk path, so a name considered the
// same substance at import time is the same substance at query time.
type SuggestIndex struct {
	entries []suggestEntry
}

// NewSuggestIndex precomputes the prefix index from a catalog snapshot.
func NewSuggestIndex(catalog *Catalog) *SuggestIndex {
	var entries []suggestEntry
	for _, kind := range []EntityKind{KindSupplement, KindMedication} {
		for _, e := range catalog.Entities(kind) {
			entries = append(entries, suggestEntry{key: e.Key, kind: kind, id: e.ID, name: e.Name})
			for _, syn := range catalog.SynonymsFor(kind, e.Key) {
				entries = append(entries, suggestEntry{key: syn, kind: kind, id: e.ID, name: e.Name})
			}
		}
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].key != entries[j].key {
			return entries[i].key < entries[j].key
		}
		return entries[i].id < entries[j].id
	})
	return &SuggestIndex{entries: entries}
}

// Suggest returns at most limit entities whose normalized key or any synonym
// key starts with the normalized prefix, deduplicated by entity id. kind
// narrows the search to one namespace; empty matches both.
func (x *SuggestIndex) Suggest(kind EntityKind, prefix string, limit int) []Suggestion {
	prefix = normalizeKey(prefix)
	if len(prefix) < minPrefixLen || limit <= 0 {
		return nil
	}

	start := sort.Search(len(x.entries), func(i int) bool {
		return x.entries[i].key >= prefix
	})

	seen := make(map[string]bool)
	var out []Suggestion
	for i := start; i < len(x.entries); i++ {
		e := x.entries[i]
		if !strings.HasPrefix(e.key, prefix) {
			break
		}
		if kind != "" && e.kind != kind {
			continue
		}
		if seen[e.kind.String()+e.id] {
			continue
		}
		seen[e.kind.String()+e.id] = true
		out = append(out, Suggestion{ID: e.id, Name: e.name, Kind: e.kind})
		if len(out) >= limit {
			break
		}
	}
	return out
}

func (k EntityKind) String() string { return string(k) }

const meiliIndexName = "substances"

// indexCatalogToMeili pushes the catalog snapshot into Meilisearch for the
// full-text search path. Autocomplete stays on the in-memory prefix index;
// Meilisearch serves typo-tolerant search over names and synonyms.
func indexCatalogToMeili(catalog *Catalog, meiliURL, apiKey string, log *zap.SugaredLogger) error {
	client := meilisearch.New(meiliURL, meilisearch.WithAPIKey(apiKey))
	_, _ = client.CreateIndex(&meilisearch.IndexConfig{Uid: meiliIndexName, PrimaryKey: "id"})
	index := client.Index(meiliIndexName)

	if err := setupMeiliIndex(index, catalog); err != nil {
		return fmt.Errorf("failed to configure meilisearch index: %w", err)
	}

	indexed := 0
	for _, kind := range []EntityKind{KindSupplement, KindMedication} {
		docs := make([]map[string]interface{}, 0, catalog.Len(kind))
		for _, e := range catalog.Entities(kind) {
			docs = append(docs, map[string]interface{}{
				"id":            fmt.Sprintf("%s_%s", kind, e.ID),
				"entityId":      e.ID,
				"name":          e.Name,
				"normalizedKey": e.Key,
				"kind":          string(kind),
				"synonyms":      catalog.SynonymsFor(kind, e.Key),
			})
		}
		if len(docs) == 0 {
			continue
		}
		pk := "id"
		if _, err := index.AddDocuments(docs, &meilisearch.DocumentOptions{PrimaryKey: &pk}); err != nil {
			return fmt.Errorf("failed to index %s documents: %w", kind, err)
		}
		indexed += len(docs)
		log.Infow("indexed catalog documents", "kind", kind, "count", len(docs))
	}

	log.Infof("indexing completed, %d substances indexed", indexed)
	return nil
}

func setupMeiliIndex(index meilisearch.IndexManager, catalog *Catalog) error {
	searchable := []string{"name", "synonyms", "normalizedKey"}
	if _, err := index.UpdateSearchableAttributes(&searchable); err != nil {
		return fmt.Errorf("failed to update searchable attributes: %w", err)
	}

	filterable := []interface{}{"kind"}
	if _, err := index.UpdateFilterableAttributes(&filterable); err != nil {
		return fmt.Errorf("failed to update filterable attributes: %w", err)
	}

	// Mirror the catalog's synonym table into Meilisearch so typed synonyms
	// rank the canonical entity.
	synonyms := make(map[string][]string)
	for _, kind := range []EntityKind{KindSupplement, KindMedication} {
		for _, e := range catalog.Entities(kind) {
			if syns := catalog.SynonymsFor(kind, e.Key); len(syns) > 0 {
				synonyms[e.Key] = syns
			}
		}
	}
	if len(synonyms) > 0 {
		if _, err := index.UpdateSynonyms(&synonyms); err != nil {
			return fmt.Errorf("failed to update synonyms: %w", err)
		}
	}

	return nil
}

// searchSubstances queries the Meilisearch catalog index.
func searchSubstances(meiliURL, apiKey, query string, kind EntityKind, limit int) ([]Suggestion, error) {
	client := meilisearch.New(meiliURL, meilisearch.WithAPIKey(apiKey))
	index := client.Index(meiliIndexName)

	req := &meilisearch.SearchRequest{Limit: int64(limit)}
	if kind != "" {
		req.Filter = fmt.Sprintf("kind = %q", string(kind))
	}

	res, err := index.Search(query, req)
	if err != nil {
		return nil, err
	}

	var hits []map[string]interface{}
	b, _ := json.Marshal(res.Hits)
	_ = json.Unmarshal(b, &hits)

	out := make([]Suggestion, 0, len(hits))
	for _, h := range hits {
		name, _ := h["name"].(string)
		entityID, _ := h["entityId"].(string)
		hitKind, _ := h["kind"].(string)
		if name == "" || entityID == "" {
			continue
		}
		out = append(out, Suggestion{ID: entityID, Name: name, Kind: EntityKind(hitKind)})
	}
	return out, nil
}
