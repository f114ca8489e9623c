// Package cache implements NML's content-addressed render cache: a
// key/value store over canonicalized render-step inputs (LaTeX, Graphviz,
// code highlighting), keyed by a SHA-256 fingerprint of each step's
// canonical parameter tuple. Expiration and eviction are out of scope —
// the store grows monotonically; an environment change alters downstream
// fingerprints, so stale entries simply become unreachable.
package cache

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Kind selects which of the cache's logical tables an operation targets.
type Kind string

const (
	KindTex  Kind = "tex"
	KindDot  Kind = "dot"
	KindCode Kind = "code"
)

// cachedTex, cachedDot and cachedCode are primary-keyed fingerprint rows
// holding the rendered bytes, migrated with gorm.AutoMigrate and renamed
// via TableName to the on-disk "cached_tex(fingerprint PRIMARY KEY, svg
// BLOB)" schema.
type cachedTex struct {
	Fingerprint string `gorm:"primaryKey;type:varchar(64)"`
	SVG         []byte `gorm:"type:blob"`
	CreatedAt   time.Time `gorm:"autoCreateTime"`
}

func (cachedTex) TableName() string { return "cached_tex" }

type cachedDot struct {
	Fingerprint string    `gorm:"primaryKey;type:varchar(64)"`
	SVG         []byte    `gorm:"type:blob"`
	CreatedAt   time.Time `gorm:"autoCreateTime"`
}

func (cachedDot) TableName() string { return "cached_dot" }

// cachedCode is the code-highlight table added beyond the base two,
// since the table set is extensible and the code-highlight
// fingerprint tuple for code (language, theme, body, line_offset) needs a
// home of its own.
type cachedCode struct {
	Fingerprint string    `gorm:"primaryKey;type:varchar(64)"`
	HTML        []byte    `gorm:"type:blob"`
	CreatedAt   time.Time `gorm:"autoCreateTime"`
}

func (cachedCode) TableName() string { return "cached_code" }

// Store is the render cache's handle onto its backing sqlite database.
type Store struct {
	db *gorm.DB
}

// Open connects to (creating if absent) the sqlite database at path and
// migrates its three render-cache tables plus the per-document compile
// manifest directory mode keeps. Required in directory mode; a
// failure here is a Fatal-severity condition for the caller to surface,
// not a per-document diagnostic.
func Open(path string) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("cache: open %q: %w", path, err)
	}
	if err := db.AutoMigrate(&cachedTex{}, &cachedDot{}, &cachedCode{}, &compiledDocument{}); err != nil {
		return nil, fmt.Errorf("cache: migrate: %w", err)
	}
	return &Store{db: db}, nil
}

// Get returns the cached bytes for fingerprint under kind, and whether an
// entry was found.
func (s *Store) Get(kind Kind, fingerprint string) ([]byte, bool, error) {
	switch kind {
	case KindTex:
		var row cachedTex
		return lookup(s.db, fingerprint, &row, func() []byte { return row.SVG })
	case KindDot:
		var row cachedDot
		return lookup(s.db, fingerprint, &row, func() []byte { return row.SVG })
	case KindCode:
		var row cachedCode
		return lookup(s.db, fingerprint, &row, func() []byte { return row.HTML })
	default:
		return nil, false, fmt.Errorf("cache: unknown kind %q", kind)
	}
}

func lookup[T any](db *gorm.DB, fingerprint string, row *T, payload func() []byte) ([]byte, bool, error) {
	err := db.Where("fingerprint = ?", fingerprint).First(row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("cache: get: %w", err)
	}
	return payload(), true, nil
}

// Put stores payload under fingerprint in kind's table. Idempotent: a
// conflicting fingerprint overwrites rather than erroring, satisfying the
// "concurrent put of the same key is tolerated (last write wins with
// identical bytes)" — callers only ever put the same bytes for a given
// fingerprint, since the fingerprint is itself derived from the input.
func (s *Store) Put(kind Kind, fingerprint string, payload []byte) error {
	onConflict := clause.OnConflict{
		Columns:   []clause.Column{{Name: "fingerprint"}},
		DoUpdates: clause.AssignmentColumns([]string{payloadColumn(kind)}),
	}
	var err error
	switch kind {
	case KindTex:
		err = s.db.Clauses(onConflict).Create(&cachedTex{Fingerprint: fingerprint, SVG: payload}).Error
	case KindDot:
		err = s.db.Clauses(onConflict).Create(&cachedDot{Fingerprint: fingerprint, SVG: payload}).Error
	case KindCode:
		err = s.db.Clauses(onConflict).Create(&cachedCode{Fingerprint: fingerprint, HTML: payload}).Error
	default:
		return fmt.Errorf("cache: unknown kind %q", kind)
	}
	if err != nil {
		return fmt.Errorf("cache: put: %w", err)
	}
	return nil
}

func payloadColumn(kind Kind) string {
	if kind == KindCode {
		return "html"
	}
	return "svg"
}

// FingerprintTex canonicalizes the LaTeX render-step input tuple named by
// (kind, env_fontsize, env_preamble, env_block_prepend, env_exec,
// tex_body).
func FingerprintTex(blockKind, fontsize, preamble, blockPrepend, exec, body string) string {
	return fingerprint(blockKind, fontsize, preamble, blockPrepend, exec, body)
}

// FingerprintDot canonicalizes the Graphviz render-step input tuple:
// (layout, width, dot_body).
func FingerprintDot(layout, width, dotBody string) string {
	return fingerprint(layout, width, dotBody)
}

// FingerprintCode canonicalizes the code-highlight render-step input
// tuple: (language, theme, body, line_offset).
func FingerprintCode(language, theme, body string, lineOffset int) string {
	return fingerprint(language, theme, body, strconv.Itoa(lineOffset))
}

// fingerprint hashes a sequence of fields (sha256, hex-encoded), each
// length-prefixed so that e.g. ("ab", "c") and ("a", "bc") never collide.
func fingerprint(fields ...string) string {
	h := sha256.New()
	var lenBuf [8]byte
	for _, f := range fields {
		binary.BigEndian.PutUint64(lenBuf[:], uint64(len(f)))
		h.Write(lenBuf[:])
		h.Write([]byte(f))
	}
	return hex.EncodeToString(h.Sum(nil))
}
