package main

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
)

// EntityKind names one of the two disjoint catalog namespaces.
type EntityKind string

const (
	KindSupplement EntityKind = "supplement"
	KindMedication EntityKind = "medication"
)

// CanonicalEntity is one authoritative supplement or medication row. The
// catalog is owned by the seeding process; this pipeline only reads it.
type CanonicalEntity struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Key  string `json:"normalizedKey"`
}

// namespace holds the lookup state for one entity kind.
type namespace struct {
	entities []CanonicalEntity
	idByKey  map[string]string // normalized key -> entity id
	nameByID map[string]string // entity id -> display name
	synonyms map[string]string // synonym key -> canonical key, one indirection
}

// Catalog is an immutable snapshot of both namespaces plus their synonym
// tables, built once per run. Keeping the two kinds in separate maps makes
// cross-kind name collisions impossible by construction.
type Catalog struct {
	supplements namespace
	medications namespace
}

// NewCatalog builds a catalog snapshot from already-loaded entities and
// synonym tables. Entity names are normalized here so callers can pass
// display names as stored. Synonym maps are keyed and valued by normalized
// keys; entries whose canonical key has no entity are dropped (they cannot
// resolve to an id and would otherwise shadow pass-through behavior).
func NewCatalog(supplements, medications []CanonicalEntity, suppSynonyms, medSynonyms map[string]string) *Catalog {
	return &Catalog{
		supplements: newNamespace(supplements, suppSynonyms),
		medications: newNamespace(medications, medSynonyms),
	}
}

func newNamespace(entities []CanonicalEntity, synonyms map[string]string) namespace {
	ns := namespace{
		entities: make([]CanonicalEntity, 0, len(entities)),
		idByKey:  make(map[string]string, len(entities)),
		nameByID: make(map[string]string, len(entities)),
		synonyms: make(map[string]string, len(synonyms)),
	}
	for _, e := range entities {
		if e.Key == "" {
			e.Key = normalizeKey(e.Name)
		}
		ns.entities = append(ns.entities, e)
		ns.idByKey[e.Key] = e.ID
		ns.nameByID[e.ID] = e.Name
	}
	for syn, canonical := range synonyms {
		syn = normalizeKey(syn)
		canonical = normalizeKey(canonical)
		if _, ok := ns.idByKey[canonical]; ok {
			ns.synonyms[syn] = canonical
		}
	}
	return ns
}

func (c *Catalog) ns(kind EntityKind) *namespace {
	if kind == KindMedication {
		return &c.medications
	}
	return &c.supplements
}

// resolveKey maps a normalized key through the kind's synonym table. An
// absent key passes through unchanged; chains are never followed (the
// synonym table is flat by invariant, enforced at write time).
func (c *Catalog) resolveKey(kind EntityKind, key string) string {
	if canonical, ok := c.ns(kind).synonyms[key]; ok {
		return canonical
	}
	return key
}

// LookupID resolves a raw name to an entity id within one namespace.
func (c *Catalog) LookupID(kind EntityKind, name string) (string, bool) {
	ns := c.ns(kind)
	id, ok := ns.idByKey[c.resolveKey(kind, normalizeKey(name))]
	return id, ok
}

// EntityName returns the canonical display name for an id.
func (c *Catalog) EntityName(kind EntityKind, id string) string {
	return c.ns(kind).nameByID[id]
}

// Entities returns the snapshot's entities for one kind.
func (c *Catalog) Entities(kind EntityKind) []CanonicalEntity {
	return c.ns(kind).entities
}

// Len reports the number of entities in one namespace.
func (c *Catalog) Len(kind EntityKind) int {
	return len(c.ns(kind).entities)
}

// SynonymsFor returns the sorted synonym keys that resolve to the entity
// owning canonicalKey. Used when building search documents.
func (c *Catalog) SynonymsFor(kind EntityKind, canonicalKey string) []string {
	var out []string
	for syn, canonical := range c.ns(kind).synonyms {
		if canonical == canonicalKey {
			out = append(out, syn)
		}
	}
	sort.Strings(out)
	return out
}

// LoadCatalog snapshots the reference catalog and synonym tables from
// Postgres. The catalog must not be reseeded while a reconciliation run
// holds this snapshot.
func LoadCatalog(ctx context.Context, db *sql.DB) (*Catalog, error) {
	supps, err := loadEntities(ctx, db, "supplements")
	if err != nil {
		return nil, fmt.Errorf("failed to load supplements: %w", err)
	}
	meds, err := loadEntities(ctx, db, "medications")
	if err != nil {
		return nil, fmt.Errorf("failed to load medications: %w", err)
	}
	suppSyns, err := loadSynonyms(ctx, db, "supplement_synonyms")
	if err != nil {
		return nil, fmt.Errorf("failed to load supplement synonyms: %w", err)
	}
	medSyns, err := loadSynonyms(ctx, db, "medication_synonyms")
	if err != nil {
		return nil, fmt.Errorf("failed to load medication synonyms: %w", err)
	}
	return NewCatalog(supps, meds, suppSyns, medSyns), nil
}

func loadEntities(ctx context.Context, db *sql.DB, table string) ([]CanonicalEntity, error) {
	rows, err := db.QueryContext(ctx, fmt.Sprintf(`SELECT id, name FROM %s ORDER BY name`, table))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entities []CanonicalEntity
	for rows.Next() {
		var e CanonicalEntity
		if err := rows.Scan(&e.ID, &e.Name); err != nil {
			return nil, err
		}
		e.Key = normalizeKey(e.Name)
		entities = append(entities, e)
	}
	return entities, rows.Err()
}

func loadSynonyms(ctx context.Context, db *sql.DB, table string) (map[string]string, error) {
	rows, err := db.QueryContext(ctx, fmt.Sprintf(`SELECT synonym_key, canonical_key FROM %s`, table))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	synonyms := make(map[string]string)
	for rows.Next() {
		var syn, canonical string
		if err := rows.Scan(&syn, &canonical); err != nil {
			return nil, err
		}
		synonyms[syn] = canonical
	}
	return synonyms, rows.Err()
}
