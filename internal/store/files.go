package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/OlfillasOdikno/abrechnung/internal/ledger"
)

// InsertBlob stores attachment content under a unique key.
func (t *Tx) InsertBlob(ctx context.Context, key string, content []byte, mimeType string) (int64, error) {
	res, err := t.exec(ctx, `
		INSERT INTO blobs (key, content, mime_type) VALUES (?, ?, ?)
	`, key, content, mimeType)
	if err != nil {
		return 0, fmt.Errorf("insert blob: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("insert blob: last insert id: %w", err)
	}
	return id, nil
}

// Blob reads attachment content and its MIME type.
// Returns sql.ErrNoRows if not found.
func (t *Tx) Blob(ctx context.Context, blobID int64) (content []byte, mimeType string, err error) {
	err = t.queryRow(ctx, `
		SELECT content, mime_type FROM blobs WHERE id = ?
	`, blobID).Scan(&content, &mimeType)
	return content, mimeType, err
}

// CreateFile inserts a new attachment identity for a transaction.
func (t *Tx) CreateFile(ctx context.Context, transactionID int64) (int64, error) {
	res, err := t.exec(ctx, `
		INSERT INTO files (transaction_id) VALUES (?)
	`, transactionID)
	if err != nil {
		return 0, fmt.Errorf("create file: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("create file: last insert id: %w", err)
	}
	return id, nil
}

// FileTransaction returns the transaction owning an attachment.
// Returns sql.ErrNoRows if the file does not exist.
func (t *Tx) FileTransaction(ctx context.Context, fileID int64) (int64, error) {
	var id int64
	err := t.queryRow(ctx, `
		SELECT transaction_id FROM files WHERE id = ?
	`, fileID).Scan(&id)
	return id, err
}

// Files returns the IDs of all attachments of a transaction.
func (t *Tx) Files(ctx context.Context, transactionID int64) ([]int64, error) {
	rows, err := t.query(ctx, `
		SELECT id FROM files WHERE transaction_id = ? ORDER BY id ASC
	`, transactionID)
	if err != nil {
		return nil, fmt.Errorf("query files: %w", err)
	}
	ids, err := collectIDs(rows)
	if err != nil {
		return nil, fmt.Errorf("scan files: %w", err)
	}
	return ids, nil
}

// InsertFileVersion writes attachment metadata at a revision.
func (t *Tx) InsertFileVersion(ctx context.Context, row ledger.FileRow) error {
	_, err := t.exec(ctx, `
		INSERT INTO file_history (file_id, revision_id, filename, blob_id, deleted)
		VALUES (?, ?, ?, ?, ?)
	`, row.FileID, row.RevisionID, row.Filename, row.BlobID, encodeBool(row.Deleted))
	if err != nil {
		return fmt.Errorf("insert file version: %w", err)
	}
	return nil
}

// MarkFileDeleted flags an attachment as deleted at a revision.
func (t *Tx) MarkFileDeleted(ctx context.Context, fileID, revisionID int64) (bool, error) {
	res, err := t.exec(ctx, `
		UPDATE file_history SET deleted = 1 WHERE file_id = ? AND revision_id = ?
	`, fileID, revisionID)
	if err != nil {
		return false, fmt.Errorf("mark file deleted: %w", err)
	}
	return affected(res)
}

// FileVersion reads attachment metadata at a revision, including the blob's
// key and MIME type.
func (t *Tx) FileVersion(ctx context.Context, fileID, revisionID int64) (row ledger.FileRow, found bool, err error) {
	var deleted int
	err = t.queryRow(ctx, `
		SELECT h.file_id, h.revision_id, h.filename, h.blob_id, b.key, b.mime_type, h.deleted
		FROM file_history h JOIN blobs b ON b.id = h.blob_id
		WHERE h.file_id = ? AND h.revision_id = ?
	`, fileID, revisionID).Scan(&row.FileID, &row.RevisionID, &row.Filename, &row.BlobID, &row.BlobKey, &row.MimeType, &deleted)
	if errors.Is(err, sql.ErrNoRows) {
		return ledger.FileRow{}, false, nil
	}
	if err != nil {
		return ledger.FileRow{}, false, fmt.Errorf("read file version: %w", err)
	}
	row.Deleted = deleted != 0
	return row, true, nil
}
