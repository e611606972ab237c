package bundle

import (
	"bytes"
	"crypto/sha256"
	"database/sql"
	"encoding/gob"
	"encoding/hex"
	"sort"

	_ "github.com/mattn/go-sqlite3"

	rerrors "github.com/opa-rego/rego-go/internal/errors"
	"github.com/opa-rego/rego-go/internal/value"
)

// Store is a build cache keyed by the SHA-256 of a build's concatenated
// module sources and data document, so re-building an unchanged policy
// set skips recompilation. Grounded on the teacher's internal/database
// package (a thin database/sql wrapper opening a driver-registered DSN
// and running plain SQL through it) — adapted here from a general
// key-value/query surface to one purpose-built table.
type Store struct {
	db *sql.DB
}

// OpenStore opens (creating if absent) a sqlite3-backed cache at path.
func OpenStore(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, rerrors.Wrap(err, rerrors.CompileError, "opening bundle cache", rerrors.SourceLocation{})
	}
	const schema = `
CREATE TABLE IF NOT EXISTS bundle_cache (
	digest TEXT PRIMARY KEY,
	payload BLOB NOT NULL,
	created_at INTEGER NOT NULL DEFAULT (strftime('%s','now'))
);`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, rerrors.Wrap(err, rerrors.CompileError, "initializing bundle cache schema", rerrors.SourceLocation{})
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// Digest computes the cache key for a build: the SHA-256 of every
// module source (sorted by name for determinism) followed by the raw
// data document's JSON form.
func Digest(sources map[string]string, data []byte) string {
	names := make([]string, 0, len(sources))
	for n := range sources {
		names = append(names, n)
	}
	sort.Strings(names)

	h := sha256.New()
	for _, n := range names {
		h.Write([]byte(n))
		h.Write([]byte{0})
		h.Write([]byte(sources[n]))
		h.Write([]byte{0})
	}
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// Get returns the cached bundle for digest, or ok=false on a miss.
func (s *Store) Get(digest string) (*Bundle, bool, error) {
	var payload []byte
	err := s.db.QueryRow(`SELECT payload FROM bundle_cache WHERE digest = ?`, digest).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, rerrors.Wrap(err, rerrors.CompileError, "reading bundle cache", rerrors.SourceLocation{})
	}

	var doc wireBundle
	if err := gob.NewDecoder(bytes.NewReader(payload)).Decode(&doc); err != nil {
		return nil, false, rerrors.Wrap(err, rerrors.CompileError, "decoding cached bundle", rerrors.SourceLocation{})
	}
	b := New()
	b.Strings = doc.Strings
	b.LocalCount = doc.LocalCount
	b.Functions = doc.Functions
	b.Plans = doc.Plans
	b.QueryPlan = doc.QueryPlan
	b.Sources = doc.Sources
	b.Data = jsonToValue(doc.Data)
	b.Constants = make([]value.Value, len(doc.Constants))
	for i, c := range doc.Constants {
		b.Constants[i] = jsonToValue(c)
	}
	return b, true, nil
}

// Put stores b under digest, replacing any prior entry.
func (s *Store) Put(digest string, b *Bundle) error {
	var buf bytes.Buffer
	doc := wireBundle{
		Strings: b.Strings, LocalCount: b.LocalCount,
		Functions: b.Functions, Plans: b.Plans, QueryPlan: b.QueryPlan,
		Sources: b.Sources,
	}
	doc.Constants = make([]interface{}, len(b.Constants))
	for i, c := range b.Constants {
		doc.Constants[i] = valueToJSON(c)
	}
	doc.Data = valueToJSON(b.Data)

	if err := gob.NewEncoder(&buf).Encode(doc); err != nil {
		return rerrors.Wrap(err, rerrors.CompileError, "encoding bundle for cache", rerrors.SourceLocation{})
	}
	_, err := s.db.Exec(`INSERT INTO bundle_cache(digest, payload) VALUES (?, ?)
		ON CONFLICT(digest) DO UPDATE SET payload = excluded.payload`, digest, buf.Bytes())
	if err != nil {
		return rerrors.Wrap(err, rerrors.CompileError, "writing bundle cache", rerrors.SourceLocation{})
	}
	return nil
}
