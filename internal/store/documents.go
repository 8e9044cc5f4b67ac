package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/roach88/doccore/internal/ir"
)

// ErrNotFound is returned when a document or snapshot does not exist.
var ErrNotFound = errors.New("not found")

// Document is a stored flat document.
type Document struct {
	ID            string
	Name          string
	Hash          string
	Flat          *ir.FlatDocument
	EngineVersion string
	SchemaVersion string
}

// SaveDocument stores flat under name. Documents are content-addressed:
// saving a document whose hash is already stored returns the existing
// record unchanged, whatever name it was first saved under.
func (s *Store) SaveDocument(ctx context.Context, name string, flat *ir.FlatDocument) (Document, error) {
	hash, err := ir.DocumentHash(flat)
	if err != nil {
		return Document{}, fmt.Errorf("save document: %w", err)
	}
	if existing, err := s.documentBy(ctx, "doc_hash", hash); err == nil {
		return existing, nil
	} else if !errors.Is(err, ErrNotFound) {
		return Document{}, fmt.Errorf("save document: %w", err)
	}

	data, err := json.Marshal(flat)
	if err != nil {
		return Document{}, fmt.Errorf("save document: marshal: %w", err)
	}
	doc := Document{
		ID:            s.ids.Generate(),
		Name:          name,
		Hash:          hash,
		Flat:          flat,
		EngineVersion: ir.EngineVersion,
		SchemaVersion: ir.SchemaVersion,
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO documents (id, name, doc_hash, flat, engine_version, schema_version)
		VALUES (?, ?, ?, ?, ?, ?)
	`, doc.ID, doc.Name, doc.Hash, string(data), doc.EngineVersion, doc.SchemaVersion)
	if err != nil {
		return Document{}, fmt.Errorf("save document: %w", err)
	}
	return doc, nil
}

// LoadDocument returns the document with the given ID.
func (s *Store) LoadDocument(ctx context.Context, id string) (Document, error) {
	doc, err := s.documentBy(ctx, "id", id)
	if err != nil {
		return Document{}, fmt.Errorf("load document %s: %w", id, err)
	}
	return doc, nil
}

// FindDocument returns the stored document with the same content as flat.
func (s *Store) FindDocument(ctx context.Context, flat *ir.FlatDocument) (Document, error) {
	hash, err := ir.DocumentHash(flat)
	if err != nil {
		return Document{}, fmt.Errorf("find document: %w", err)
	}
	doc, err := s.documentBy(ctx, "doc_hash", hash)
	if err != nil {
		return Document{}, fmt.Errorf("find document: %w", err)
	}
	return doc, nil
}

// ListDocuments returns every stored document with the given name, or all
// documents when name is empty. Flat content is not loaded.
func (s *Store) ListDocuments(ctx context.Context, name string) ([]Document, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, doc_hash, engine_version, schema_version
		FROM documents
		WHERE ? = '' OR name = ?
		ORDER BY name ASC, id ASC COLLATE BINARY
	`, name, name)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		var d Document
		if err := rows.Scan(&d.ID, &d.Name, &d.Hash, &d.EngineVersion, &d.SchemaVersion); err != nil {
			return nil, fmt.Errorf("list documents: scan: %w", err)
		}
		docs = append(docs, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	return docs, nil
}

// documentBy loads one document by an indexed column. column is never
// caller-supplied.
func (s *Store) documentBy(ctx context.Context, column, value string) (Document, error) {
	var (
		d    Document
		data string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, doc_hash, flat, engine_version, schema_version
		FROM documents WHERE `+column+` = ?
	`, value).Scan(&d.ID, &d.Name, &d.Hash, &data, &d.EngineVersion, &d.SchemaVersion)
	if errors.Is(err, sql.ErrNoRows) {
		return Document{}, ErrNotFound
	}
	if err != nil {
		return Document{}, err
	}
	var flat ir.FlatDocument
	if err := json.Unmarshal([]byte(data), &flat); err != nil {
		return Document{}, fmt.Errorf("decode document %s: %w", d.ID, err)
	}
	d.Flat = &flat
	return d, nil
}
