package store

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"fmt"
	"time"
)

// TranslationRepo is the translation memory. Translations are keyed by
// the hash of the source text and the target language, so the same
// sentence is never translated twice.
type TranslationRepo struct {
	DB *sql.DB
}

// NewTranslationRepo wraps an open database.
func NewTranslationRepo(db *sql.DB) *TranslationRepo {
	return &TranslationRepo{DB: db}
}

func sourceHash(text string) string {
	return fmt.Sprintf("%x", sha256.Sum256([]byte(text)))
}

// Get returns the remembered translation, or empty when none is stored.
func (r *TranslationRepo) Get(ctx context.Context, text, language string) (string, error) {
	const q = `SELECT translated FROM translations WHERE source_hash = ? AND language = ?`

	var translated string
	err := r.DB.QueryRowContext(ctx, q, sourceHash(text), language).Scan(&translated)
	if err != nil {
		if err == sql.ErrNoRows {
			return "", nil
		}
		return "", fmt.Errorf("get translation: %w", err)
	}
	return translated, nil
}

// Put remembers a translation. Re-inserting the same key overwrites, so
// a corrected translation wins.
func (r *TranslationRepo) Put(ctx context.Context, text, language, translated string) error {
	const q = `INSERT INTO translations (source_hash, language, source_text, translated, created_at)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT(source_hash, language) DO UPDATE SET translated = excluded.translated`

	_, err := r.DB.ExecContext(ctx, q, sourceHash(text), language, text, translated, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("put translation: %w", err)
	}
	return nil
}

// Count returns how many translations are stored for a language.
func (r *TranslationRepo) Count(ctx context.Context, language string) (int, error) {
	const q = `SELECT COUNT(*) FROM translations WHERE language = ?`

	var n int
	if err := r.DB.QueryRowContext(ctx, q, language).Scan(&n); err != nil {
		return 0, fmt.Errorf("count translations: %w", err)
	}
	return n, nil
}
