package store

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/OlfillasOdikno/abrechnung/internal/ledger"
)

func TestCreateGroup_OwnerMembership(t *testing.T) {
	s := createTestStore(t)
	f := seedFixture(t, s)

	inTx(t, s, func(ctx context.Context, tx *Tx) error {
		m, found, err := tx.Member(ctx, f.groupID, f.userID)
		if err != nil {
			return err
		}
		if !found || !m.CanWrite || !m.IsOwner {
			t.Errorf("Member() = %+v, found=%v, want writing owner", m, found)
		}
		return nil
	})
}

func TestAddMember_Upserts(t *testing.T) {
	s := createTestStore(t)
	f := seedFixture(t, s)

	inTx(t, s, func(ctx context.Context, tx *Tx) error {
		reader, err := tx.CreateUser(ctx, "reader")
		if err != nil {
			return err
		}
		if err := tx.AddMember(ctx, Membership{GroupID: f.groupID, UserID: reader}); err != nil {
			return err
		}
		if err := tx.AddMember(ctx, Membership{GroupID: f.groupID, UserID: reader, CanWrite: true}); err != nil {
			return err
		}
		m, _, err := tx.Member(ctx, f.groupID, reader)
		if err != nil {
			return err
		}
		if !m.CanWrite || m.IsOwner {
			t.Errorf("Member() = %+v, want writer non-owner", m)
		}

		id, err := tx.UserByName(ctx, "reader")
		if err != nil {
			return err
		}
		if id != reader {
			t.Errorf("UserByName() = %d, want %d", id, reader)
		}
		return nil
	})
}

func TestAccountGroup(t *testing.T) {
	s := createTestStore(t)
	f := seedFixture(t, s)

	inTx(t, s, func(ctx context.Context, tx *Tx) error {
		g, err := tx.AccountGroup(ctx, f.alice)
		if err != nil {
			return err
		}
		if g != f.groupID {
			t.Errorf("AccountGroup() = %d, want %d", g, f.groupID)
		}
		if _, err := tx.AccountGroup(ctx, 999); !errors.Is(err, sql.ErrNoRows) {
			t.Errorf("AccountGroup(999) error = %v, want sql.ErrNoRows", err)
		}
		ok, err := tx.GroupExists(ctx, f.groupID)
		if err != nil {
			return err
		}
		if !ok {
			t.Error("GroupExists() = false, want true")
		}
		return nil
	})
}

func TestGroupLog(t *testing.T) {
	s := createTestStore(t)
	f := seedFixture(t, s)

	inTx(t, s, func(ctx context.Context, tx *Tx) error {
		entries := []ledger.LogEntry{
			{GroupID: f.groupID, UserID: f.userID, Type: ledger.EventTransactionCommitted, Message: "first"},
			{GroupID: f.groupID, UserID: f.userID, Type: ledger.EventTransactionDeleted, Message: "second"},
		}
		for _, e := range entries {
			if err := tx.AppendLog(ctx, e, testEpoch); err != nil {
				return err
			}
		}
		got, err := tx.GroupLog(ctx, f.groupID)
		if err != nil {
			return err
		}
		if len(got) != 2 {
			t.Fatalf("GroupLog() = %d entries, want 2", len(got))
		}
		if got[0].Message != "first" || got[1].Type != ledger.EventTransactionDeleted {
			t.Errorf("GroupLog() = %+v", got)
		}
		if !got[0].LoggedAt.Equal(testEpoch) {
			t.Errorf("LoggedAt = %v, want %v", got[0].LoggedAt, testEpoch)
		}
		return nil
	})
}
