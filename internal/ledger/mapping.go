package ledger

import "time"

// BuildDetails flattens a snapshot and its shares into Details.
//
// Share rows that belong to a different transaction or revision than the
// snapshot are ignored, so the result never mixes revisions.
func BuildDetails(rev RevisionRow, snap SnapshotRow, creditor, debitor []ShareRow) Details {
	return Details{
		RevisionID:             snap.RevisionID,
		Description:            snap.Description,
		Value:                  snap.Value,
		CurrencySymbol:         snap.CurrencySymbol,
		CurrencyConversionRate: snap.CurrencyConversionRate,
		BilledAt:               snap.BilledAt,
		Deleted:                snap.Deleted,
		ChangedBy:              rev.UserID,
		CommittedAt:            copyTime(rev.CommittedAt),
		CreditorShares:         sharesOf(snap, creditor),
		DebitorShares:          sharesOf(snap, debitor),
	}
}

// BuildPosition flattens a purchase item row and its usages into a Position.
// Usage rows of other items or revisions are ignored.
func BuildPosition(pos PositionRow, usages []UsageRow) Position {
	u := make(Shares, len(usages))
	for _, row := range usages {
		if row.ItemID != pos.ItemID || row.RevisionID != pos.RevisionID {
			continue
		}
		u[row.AccountID] = row.Amount
	}
	return Position{
		ID:              pos.ItemID,
		RevisionID:      pos.RevisionID,
		Name:            pos.Name,
		Price:           pos.Price,
		CommunistShares: pos.CommunistShares,
		Deleted:         pos.Deleted,
		Usages:          u,
	}
}

// BuildAttachment flattens a file row into an Attachment.
func BuildAttachment(f FileRow) Attachment {
	return Attachment{
		ID:         f.FileID,
		RevisionID: f.RevisionID,
		Filename:   f.Filename,
		BlobKey:    f.BlobKey,
		MimeType:   f.MimeType,
		Deleted:    f.Deleted,
	}
}

func sharesOf(snap SnapshotRow, rows []ShareRow) Shares {
	s := make(Shares, len(rows))
	for _, row := range rows {
		if row.TransactionID != snap.TransactionID || row.RevisionID != snap.RevisionID {
			continue
		}
		s[row.AccountID] = row.Amount
	}
	return s
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}
