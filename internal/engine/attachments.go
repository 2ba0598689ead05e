package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/OlfillasOdikno/abrechnung/internal/ledger"
	"github.com/OlfillasOdikno/abrechnung/internal/store"
)

// FileContent is an attachment as the caller sees it.
type FileContent struct {
	Filename string
	MimeType string
	Content  []byte
}

// UploadFile validates content, stores it and attaches it to the
// transaction in the caller's revision. Returns the new file ID.
func (e *Engine) UploadFile(ctx context.Context, userID, transactionID int64, filename string, content []byte) (int64, error) {
	var fileID int64
	err := e.unit(ctx, "upload file", userID, func(tx *store.Tx) error {
		if _, _, err := e.gate.RequireTransaction(ctx, tx, transactionID, userID, true); err != nil {
			return err
		}
		mimeType, err := e.files.Validate(filename, content)
		if err != nil {
			return err
		}

		revID, err := e.getOrCreateRevision(ctx, tx, userID, transactionID)
		if err != nil {
			return err
		}
		if err := requireBaseline(ctx, tx, transactionID, revID); err != nil {
			return err
		}

		blobID, err := tx.InsertBlob(ctx, e.files.NewKey(), content, mimeType)
		if err != nil {
			return err
		}
		fileID, err = tx.CreateFile(ctx, transactionID)
		if err != nil {
			return err
		}
		return tx.InsertFileVersion(ctx, ledger.FileRow{
			FileID:     fileID,
			RevisionID: revID,
			Filename:   ledger.NormalizeText(filename),
			BlobID:     blobID,
		})
	})
	if err != nil {
		return 0, err
	}
	return fileID, nil
}

// DeleteFile marks an attachment deleted in the caller's pending change.
// Like any other edit it only takes effect on commit.
func (e *Engine) DeleteFile(ctx context.Context, userID, fileID int64) error {
	return e.unit(ctx, "delete file", userID, func(tx *store.Tx) error {
		transactionID, err := fileTransaction(ctx, tx, fileID)
		if err != nil {
			return err
		}
		if _, _, err := e.gate.RequireTransaction(ctx, tx, transactionID, userID, true); err != nil {
			return err
		}
		revID, err := e.getOrCreatePendingFileChange(ctx, tx, userID, transactionID, fileID)
		if err != nil {
			return err
		}
		_, err = tx.MarkFileDeleted(ctx, fileID, revID)
		return err
	})
}

// ReadFile returns the attachment as visible to the caller: their pending
// version if they have one, otherwise the committed one.
func (e *Engine) ReadFile(ctx context.Context, userID, fileID int64) (FileContent, error) {
	var out FileContent
	err := e.unit(ctx, "read file", userID, func(tx *store.Tx) error {
		transactionID, err := fileTransaction(ctx, tx, fileID)
		if err != nil {
			return err
		}
		if _, _, err := e.gate.RequireTransaction(ctx, tx, transactionID, userID, false); err != nil {
			return err
		}

		version, found, err := visibleFile(ctx, tx, userID, transactionID, fileID)
		if err != nil {
			return err
		}
		if !found {
			return ledger.NewNotFound("file", fileID, "file not found")
		}
		if version.Deleted {
			return ledger.NewInvalidCommand("file", fileID, "file is deleted")
		}

		content, mimeType, err := tx.Blob(ctx, version.BlobID)
		if err != nil {
			return fmt.Errorf("read blob: %w", err)
		}
		out = FileContent{Filename: version.Filename, MimeType: mimeType, Content: content}
		return nil
	})
	if err != nil {
		return FileContent{}, err
	}
	return out, nil
}

func fileTransaction(ctx context.Context, tx *store.Tx, fileID int64) (int64, error) {
	transactionID, err := tx.FileTransaction(ctx, fileID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ledger.NewNotFound("file", fileID, "file not found")
	}
	if err != nil {
		return 0, fmt.Errorf("resolve file: %w", err)
	}
	return transactionID, nil
}

// visibleFile picks the caller's WIP version of a file, falling back to the
// latest committed one.
func visibleFile(ctx context.Context, tx *store.Tx, userID, transactionID, fileID int64) (ledger.FileRow, bool, error) {
	wip, open, err := tx.OpenRevision(ctx, transactionID, userID)
	if err != nil {
		return ledger.FileRow{}, false, err
	}
	if open {
		f, found, err := tx.FileVersion(ctx, fileID, wip)
		if err != nil || found {
			return f, found, err
		}
	}

	base, found, err := tx.LatestCommitted(ctx, store.KindFile, fileID)
	if err != nil || !found {
		return ledger.FileRow{}, false, err
	}
	return tx.FileVersion(ctx, fileID, base)
}
