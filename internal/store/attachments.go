package store

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"time"

	"github.com/sparklive/rustmailer/internal/apperr"
)

// AttachmentStore is the content-addressed attachment-body cache: insert,
// get, delete by sha256 content hash.
type AttachmentStore struct {
	s *Store
}

func NewAttachmentStore(s *Store) *AttachmentStore { return &AttachmentStore{s: s} }

// Put stores content, returning its hex-encoded sha256 hash as the key.
func (a *AttachmentStore) Put(content []byte) (string, error) {
	sum := sha256.Sum256(content)
	key := hex.EncodeToString(sum[:])
	_, err := a.s.DB().Exec(
		`INSERT INTO blobs (content_hash, content, size, created_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(content_hash) DO NOTHING`,
		key, content, len(content), time.Now().Unix(),
	)
	return key, err
}

func (a *AttachmentStore) Get(key string) ([]byte, error) {
	var content []byte
	err := a.s.DB().QueryRow("SELECT content FROM blobs WHERE content_hash = ?", key).Scan(&content)
	if err == sql.ErrNoRows {
		return nil, apperr.New(apperr.ResourceNotFound, "attachment blob not found")
	}
	return content, err
}

func (a *AttachmentStore) Delete(key string) error {
	_, err := a.s.DB().Exec("DELETE FROM blobs WHERE content_hash = ?", key)
	return err
}
