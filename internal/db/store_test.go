package db

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"nft-auction-house/internal/model"
)

// openTest connects to AUCTION_TEST_DSN and applies the migrations. The test
// is skipped when no database is configured.
func openTest(t *testing.T) *Store {
	t.Helper()
	dsn := os.Getenv("AUCTION_TEST_DSN")
	if dsn == "" {
		t.Skip("AUCTION_TEST_DSN not set")
	}
	s, err := Open(dsn)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	require.NoError(t, s.Migrate("../../migrations"))
	return s
}

func TestNumeric(t *testing.T) {
	require.Equal(t, "0", numeric(model.Amount{}))
	require.Equal(t, "42", numeric(model.NewAmount(42)))
}

func TestAccounts(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()
	addr := model.Address{0x7a, byte(time.Now().UnixNano())}

	got, err := s.GetAccount(ctx, addr)
	require.NoError(t, err)
	require.Nil(t, got)

	_, err = s.CreateAccount(ctx, addr, "hash", model.RoleUser)
	require.NoError(t, err)
	got, err = s.GetAccount(ctx, addr)
	require.NoError(t, err)
	require.Equal(t, model.RoleUser, got.Role)
	require.Equal(t, "hash", got.PasswordHash)
}

func TestCommitAndListEvents(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()
	token := model.Address{0xc1, byte(time.Now().UnixNano())}
	id := model.OrderID{0x99, byte(time.Now().UnixNano())}

	o := model.ZeroOrder()
	o.Token, o.TokenID, o.Seller = token, 1, model.Address{0x01}
	o.StartPrice = model.NewAmount(1000)
	rec := model.Record{
		Order: &model.OrderView{ID: id, Status: model.StatusActive, Order: o},
		Events: []model.Event{{
			ID: uuid.New(), Seq: uint64(time.Now().UnixNano()), Type: model.EventMakeOrder,
			Token: token, OrderID: id, Amount: model.NewAmount(1000), CreatedAt: time.Now().UTC(),
		}},
		Outbid: []model.OutbidEntry{{Bidder: model.Address{0x02}, Currency: model.Native, Amount: model.NewAmount(5)}},
	}
	require.NoError(t, s.Commit(ctx, rec))

	// A later snapshot of the same order upserts.
	rec.Order.Status = model.StatusSold
	rec.Events = nil
	require.NoError(t, s.Commit(ctx, rec))

	logs, err := s.ListEvents(ctx, &token, 10)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	require.Equal(t, model.EventMakeOrder, logs[0].Type)
	require.Equal(t, id, *logs[0].OrderID)

	var status string
	require.NoError(t, s.DB.QueryRowContext(ctx, `SELECT status FROM orders WHERE id=$1`, id.Hex()).Scan(&status))
	require.Equal(t, string(model.StatusSold), status)
}
