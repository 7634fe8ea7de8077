package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/lib/pq"
	"github.com/pkg/errors"

	"nft-auction-house/internal/model"
)

// Store is the Postgres journal and read model. The engine's memory is the
// source of truth; rows here mirror it after each committed operation.
type Store struct{ DB *sql.DB }

func Open(dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, errors.Wrap(err, "open")
	}
	db.SetMaxOpenConns(20)
	db.SetConnMaxLifetime(5 * time.Minute)
	if err := db.Ping(); err != nil {
		return nil, errors.Wrap(err, "ping")
	}
	return &Store{DB: db}, nil
}

func (s *Store) Close() error { return s.DB.Close() }

func (s *Store) Migrate(dir string) error {
	driver, err := postgres.WithInstance(s.DB, &postgres.Config{})
	if err != nil {
		return errors.Wrap(err, "migrate driver")
	}
	m, err := migrate.NewWithDatabaseInstance("file://"+dir, "postgres", driver)
	if err != nil {
		return errors.Wrap(err, "migrate source")
	}
	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return errors.Wrap(err, "migrate up")
	}
	return nil
}

func (s *Store) BeginTx(ctx context.Context) (*sql.Tx, error) {
	return s.DB.BeginTx(ctx, nil)
}

// ── Journal ──────────────────────────────────────────

// Commit writes one engine record in a single transaction.
func (s *Store) Commit(ctx context.Context, rec model.Record) error {
	tx, err := s.BeginTx(ctx)
	if err != nil {
		return errors.Wrap(err, "begin")
	}
	defer tx.Rollback()

	if rec.Order != nil {
		if err := UpsertOrder(tx, rec.Order); err != nil {
			return errors.Wrapf(err, "order %s", rec.Order.ID.Hex())
		}
	}
	for i := range rec.Events {
		if err := InsertEvent(tx, &rec.Events[i]); err != nil {
			return errors.Wrapf(err, "event %s", rec.Events[i].Type)
		}
	}
	for _, e := range rec.Outbid {
		if err := UpsertOutbid(tx, e); err != nil {
			return errors.Wrapf(err, "outbid %s", e.Bidder.Hex())
		}
	}
	return errors.Wrap(tx.Commit(), "commit")
}

// ── Accounts ─────────────────────────────────────────

func (s *Store) CreateAccount(ctx context.Context, addr model.Address, hash string, role model.Role) (*model.Account, error) {
	a := &model.Account{Address: addr}
	err := s.DB.QueryRowContext(ctx,
		`INSERT INTO accounts (address, password_hash, role) VALUES ($1,$2,$3)
		 RETURNING password_hash, role, created_at`, addr.Hex(), hash, role,
	).Scan(&a.PasswordHash, &a.Role, &a.CreatedAt)
	if err != nil {
		return nil, errors.Wrap(err, "create account")
	}
	return a, nil
}

func (s *Store) GetAccount(ctx context.Context, addr model.Address) (*model.Account, error) {
	a := &model.Account{Address: addr}
	err := s.DB.QueryRowContext(ctx,
		`SELECT password_hash, role, created_at FROM accounts WHERE address=$1`, addr.Hex(),
	).Scan(&a.PasswordHash, &a.Role, &a.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "get account")
	}
	return a, nil
}

// ── Orders ───────────────────────────────────────────

func UpsertOrder(tx *sql.Tx, v *model.OrderView) error {
	o := v.Order
	_, err := tx.Exec(
		`INSERT INTO orders (id,status,order_type,seller,token,token_id,currency,start_price,end_price,start_time,end_time,last_bid_price,last_bidder,is_sold)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
		 ON CONFLICT (id) DO UPDATE SET
		   status=$2, order_type=$3, seller=$4, token=$5, token_id=$6, currency=$7,
		   start_price=$8, end_price=$9, start_time=$10, end_time=$11,
		   last_bid_price=$12, last_bidder=$13, is_sold=$14, updated_at=now()`,
		v.ID.Hex(), v.Status, o.OrderType.String(), o.Seller.Hex(), o.Token.Hex(),
		strconv.FormatUint(o.TokenID, 10), o.Currency.Hex(),
		numeric(o.StartPrice), numeric(o.EndPrice), o.StartTime, o.EndTime,
		numeric(o.LastBidPrice), o.LastBidder.Hex(), o.IsSold,
	)
	return err
}

// ── Outbid balances ──────────────────────────────────

func UpsertOutbid(tx *sql.Tx, e model.OutbidEntry) error {
	_, err := tx.Exec(
		`INSERT INTO outbid_balances (bidder, currency, amount) VALUES ($1,$2,$3)
		 ON CONFLICT (bidder, currency) DO UPDATE SET amount=$3, updated_at=now()`,
		e.Bidder.Hex(), e.Currency.Hex(), numeric(e.Amount),
	)
	return err
}

// ── Event Log ────────────────────────────────────────

func InsertEvent(tx *sql.Tx, ev *model.Event) error {
	b, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	var token, orderID *string
	if ev.Token != (model.Address{}) {
		h := ev.Token.Hex()
		token = &h
	}
	if ev.OrderID != (model.OrderID{}) {
		h := ev.OrderID.Hex()
		orderID = &h
	}
	_, err = tx.Exec(
		`INSERT INTO event_log (id, seq, type, token, order_id, payload_json, created_at) VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		ev.ID, int64(ev.Seq), ev.Type, token, orderID, b, ev.CreatedAt,
	)
	return err
}

// ListEvents returns the newest events, optionally only those of one
// collection.
func (s *Store) ListEvents(ctx context.Context, token *model.Address, limit int) ([]model.EventLog, error) {
	q := `SELECT id, seq, type, token, order_id, payload_json, created_at FROM event_log`
	var args []any
	if token != nil {
		q += ` WHERE token=$1`
		args = append(args, token.Hex())
	}
	q += ` ORDER BY seq DESC LIMIT ` + fmt.Sprintf("%d", limit)
	rows, err := s.DB.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, errors.Wrap(err, "list events")
	}
	defer rows.Close()

	var out []model.EventLog
	for rows.Next() {
		var (
			e              model.EventLog
			seq            int64
			token, orderID sql.NullString
			raw            []byte
		)
		if err := rows.Scan(&e.ID, &seq, &e.Type, &token, &orderID, &raw, &e.CreatedAt); err != nil {
			return nil, errors.Wrap(err, "scan event")
		}
		e.Seq = uint64(seq)
		if token.Valid {
			a := common.HexToAddress(token.String)
			e.Token = &a
		}
		if orderID.Valid {
			h := common.HexToHash(orderID.String)
			e.OrderID = &h
		}
		_ = json.Unmarshal(raw, &e.PayloadJSON)
		out = append(out, e)
	}
	return out, rows.Err()
}

func numeric(a model.Amount) string {
	return model.OrZero(a).String()
}
