package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DocumentManifest is what directory mode records per compiled document:
// enough to decide whether the document can be skipped on the next run
// (its direct import targets) and enough to stand in for it during
// cross-document resolution when it is skipped (its references and
// navigation hints).
//
// Only direct @import edges are recorded; invalidating through a
// multi-hop import chain still requires --force-rebuild.
// TODO: record the transitive import closure and invalidate dependents.
type DocumentManifest struct {
	OutputName string                 `json:"output_name"`
	Imports    []string               `json:"imports,omitempty"`
	References map[string]ManifestRef `json:"references,omitempty"`
	Usages     []ManifestUsage        `json:"usages,omitempty"`
	Navigation map[string]string      `json:"navigation,omitempty"`
}

// ManifestRef is one recorded reference definition: the element id it
// anchors to and the element kind that defined it.
type ManifestRef struct {
	ElementID int `json:"id"`
	Kind      int `json:"kind"`
}

// ManifestUsage is one recorded reference usage site. Recording usages
// lets the resolver re-check a skipped document's references against
// the current document set, so removing a definition elsewhere still
// surfaces an unresolved-reference diagnostic here without a rebuild.
type ManifestUsage struct {
	Ref    string `json:"ref"`
	Doc    string `json:"doc,omitempty"`
	AnyDoc bool   `json:"any_doc,omitempty"`
}

// compiledDocument is the manifest's row shape: the source path keys it,
// the variable-shape manifest body rides in a JSON column.
type compiledDocument struct {
	Path       string         `gorm:"primaryKey;type:varchar(512)"`
	CompiledAt time.Time      `gorm:"index"`
	Manifest   datatypes.JSON `gorm:"type:json"`
}

func (compiledDocument) TableName() string { return "compiled_documents" }

// PutManifest records (or replaces) the manifest for the document at
// path, stamped with the compile time callers compare source and import
// mtimes against.
func (s *Store) PutManifest(path string, compiledAt time.Time, m *DocumentManifest) error {
	payload, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("cache: marshal manifest for %q: %w", path, err)
	}
	row := compiledDocument{Path: path, CompiledAt: compiledAt, Manifest: datatypes.JSON(payload)}
	err = s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "path"}},
		DoUpdates: clause.AssignmentColumns([]string{"compiled_at", "manifest"}),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("cache: put manifest: %w", err)
	}
	return nil
}

// GetManifest returns the recorded manifest and compile time for path,
// and whether one exists.
func (s *Store) GetManifest(path string) (*DocumentManifest, time.Time, bool, error) {
	var row compiledDocument
	err := s.db.Where("path = ?", path).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, time.Time{}, false, nil
	}
	if err != nil {
		return nil, time.Time{}, false, fmt.Errorf("cache: get manifest: %w", err)
	}
	var m DocumentManifest
	if err := json.Unmarshal(row.Manifest, &m); err != nil {
		return nil, time.Time{}, false, fmt.Errorf("cache: decode manifest for %q: %w", path, err)
	}
	return &m, row.CompiledAt, true, nil
}
