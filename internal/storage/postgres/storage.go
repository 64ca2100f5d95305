package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	domainErrors "github.com/polkiloo/vipm-fulfillment/internal/domain/errors"
	"github.com/polkiloo/vipm-fulfillment/internal/domain/model"
	"github.com/polkiloo/vipm-fulfillment/internal/domain/repository"
)

type pgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error)
	Ping(ctx context.Context) error
	Close()
}

var newPgxPool = func(ctx context.Context, cfg *pgxpool.Config) (pgxPool, error) {
	return pgxpool.NewWithConfig(ctx, cfg)
}

// Storage acts as repository facade backed by PostgreSQL.
type Storage struct {
	pool   pgxPool
	logger *slog.Logger
}

type transferRepository struct {
	storage *Storage
}

type offerRepository struct {
	storage *Storage
}

// New creates storage with schema initialization.
func New(ctx context.Context, dsn string, logger *slog.Logger) (*Storage, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}

	pool, err := newPgxPool(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect db: %w", err)
	}

	storage := &Storage{pool: pool, logger: logger}
	if err := storage.initSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return storage, nil
}

// Close releases database resources.
func (s *Storage) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// Factory methods for domain repositories.
func (s *Storage) Transfers() repository.TransferRepository {
	return &transferRepository{storage: s}
}

func (s *Storage) Offers() repository.OfferRepository {
	return &offerRepository{storage: s}
}

func (s *Storage) initSchema(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS transfers (
            id BIGSERIAL PRIMARY KEY,
            product_id TEXT NOT NULL,
            authorization_id TEXT NOT NULL,
            seller_id TEXT NOT NULL DEFAULT '',
            membership_id TEXT NOT NULL,
            transfer_id TEXT NOT NULL DEFAULT '',
            customer_id TEXT NOT NULL DEFAULT '',
            status TEXT NOT NULL,
            retry_count INTEGER NOT NULL DEFAULT 0,
            reschedule_count INTEGER NOT NULL DEFAULT 0,
            error_code TEXT NOT NULL DEFAULT '',
            error_description TEXT NOT NULL DEFAULT '',
            status_description TEXT NOT NULL DEFAULT '',
            customer JSONB NOT NULL DEFAULT '{}'::jsonb,
            mpt_order_id TEXT NOT NULL DEFAULT '',
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            completed_at TIMESTAMPTZ,
            synchronized_at TIMESTAMPTZ,
            UNIQUE (product_id, authorization_id, membership_id)
        )`,
		`CREATE TABLE IF NOT EXISTS offers (
            id BIGSERIAL PRIMARY KEY,
            membership_id TEXT NOT NULL,
            offer_id TEXT NOT NULL,
            quantity INTEGER NOT NULL DEFAULT 0,
            renewal_date TEXT NOT NULL DEFAULT '',
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            UNIQUE (membership_id, offer_id)
        )`,
		`CREATE INDEX IF NOT EXISTS idx_transfers_status ON transfers(product_id, status)`,
		`CREATE INDEX IF NOT EXISTS idx_transfers_customer ON transfers(product_id, authorization_id, customer_id)`,
	}

	for _, stmt := range statements {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}
	}

	return nil
}

// --- TransferRepository implementation ---

const transferColumns = `id, product_id, authorization_id, seller_id, membership_id, transfer_id, customer_id,
    status, retry_count, reschedule_count, error_code, error_description, status_description,
    customer, mpt_order_id, created_at, updated_at, completed_at, synchronized_at`

func (r *transferRepository) Create(ctx context.Context, transfer *model.Transfer) (*model.Transfer, error) {
	const query = `INSERT INTO transfers (product_id, authorization_id, seller_id, membership_id, status)
        VALUES ($1, $2, $3, $4, $5) RETURNING id, created_at, updated_at`
	created := *transfer
	err := r.storage.pool.QueryRow(ctx, query,
		transfer.ProductID, transfer.AuthorizationID, transfer.SellerID, transfer.MembershipID, string(transfer.Status),
	).Scan(&created.ID, &created.CreatedAt, &created.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, domainErrors.ErrAlreadyExists
		}
		return nil, err
	}
	return &created, nil
}

func (r *transferRepository) FindByMembershipOrCustomer(ctx context.Context, productID, authorizationID, membershipOrCustomer string) (*model.Transfer, error) {
	query := `SELECT ` + transferColumns + ` FROM transfers
        WHERE product_id=$1 AND authorization_id=$2 AND (membership_id=$3 OR customer_id=$3)
        ORDER BY id DESC LIMIT 1`
	t, err := scanTransfer(r.storage.pool.QueryRow(ctx, query, productID, authorizationID, membershipOrCustomer))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domainErrors.ErrNotFound
		}
		return nil, err
	}
	return t, nil
}

func (r *transferRepository) ListReadyToStart(ctx context.Context, productID string) ([]model.Transfer, error) {
	query := `SELECT ` + transferColumns + ` FROM transfers
        WHERE product_id=$1 AND status IN ('pending', 'rescheduled') ORDER BY id`
	return r.list(ctx, query, productID)
}

func (r *transferRepository) ListRunning(ctx context.Context, productID string) ([]model.Transfer, error) {
	query := `SELECT ` + transferColumns + ` FROM transfers
        WHERE product_id=$1 AND status='running' ORDER BY id`
	return r.list(ctx, query, productID)
}

func (r *transferRepository) List(ctx context.Context, productID string, status model.TransferStatus) ([]model.Transfer, error) {
	if status == "" {
		query := `SELECT ` + transferColumns + ` FROM transfers WHERE product_id=$1 ORDER BY id DESC`
		return r.list(ctx, query, productID)
	}
	query := `SELECT ` + transferColumns + ` FROM transfers WHERE product_id=$1 AND status=$2 ORDER BY id DESC`
	return r.list(ctx, query, productID, string(status))
}

func (r *transferRepository) list(ctx context.Context, query string, args ...any) ([]model.Transfer, error) {
	rows, err := r.storage.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var transfers []model.Transfer
	for rows.Next() {
		t, err := scanTransfer(rows)
		if err != nil {
			return nil, err
		}
		transfers = append(transfers, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return transfers, nil
}

func (r *transferRepository) Save(ctx context.Context, transfer *model.Transfer) error {
	customer, err := json.Marshal(transfer.Customer)
	if err != nil {
		return fmt.Errorf("encode customer: %w", err)
	}
	if transfer.UpdatedAt.IsZero() {
		transfer.UpdatedAt = time.Now().UTC()
	}

	const query = `UPDATE transfers SET seller_id=$2, transfer_id=$3, customer_id=$4, status=$5,
        retry_count=$6, reschedule_count=$7, error_code=$8, error_description=$9, status_description=$10,
        customer=$11, mpt_order_id=$12, updated_at=$13, completed_at=$14, synchronized_at=$15
        WHERE id=$1`
	tag, err := r.storage.pool.Exec(ctx, query,
		transfer.ID, transfer.SellerID, transfer.TransferID, transfer.CustomerID, string(transfer.Status),
		transfer.RetryCount, transfer.RescheduleCount, transfer.ErrorCode, transfer.ErrorDescription,
		transfer.StatusDescription, customer, transfer.MPTOrderID, transfer.UpdatedAt,
		transfer.CompletedAt, transfer.SynchronizedAt,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domainErrors.ErrNotFound
	}
	return nil
}

func scanTransfer(row pgx.Row) (*model.Transfer, error) {
	var (
		t        model.Transfer
		status   string
		customer []byte
	)
	err := row.Scan(
		&t.ID, &t.ProductID, &t.AuthorizationID, &t.SellerID, &t.MembershipID, &t.TransferID, &t.CustomerID,
		&status, &t.RetryCount, &t.RescheduleCount, &t.ErrorCode, &t.ErrorDescription, &t.StatusDescription,
		&customer, &t.MPTOrderID, &t.CreatedAt, &t.UpdatedAt, &t.CompletedAt, &t.SynchronizedAt,
	)
	if err != nil {
		return nil, err
	}
	t.Status = model.TransferStatus(status)
	if len(customer) > 0 {
		if err := json.Unmarshal(customer, &t.Customer); err != nil {
			return nil, fmt.Errorf("decode customer of transfer %d: %w", t.ID, err)
		}
	}
	return &t, nil
}

// --- OfferRepository implementation ---

func (r *offerRepository) KnownOfferIDs(ctx context.Context, membershipID string) (map[string]struct{}, error) {
	const query = `SELECT offer_id FROM offers WHERE membership_id=$1`
	rows, err := r.storage.pool.Query(ctx, query, membershipID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	known := make(map[string]struct{})
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		known[id] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return known, nil
}

func (r *offerRepository) CreateMany(ctx context.Context, offers []model.Offer) error {
	if len(offers) == 0 {
		return nil
	}
	const query = `INSERT INTO offers (membership_id, offer_id, quantity, renewal_date)
        VALUES ($1, $2, $3, $4) ON CONFLICT (membership_id, offer_id) DO NOTHING`
	return r.storage.WithinTransaction(ctx, func(tx pgx.Tx) error {
		for _, o := range offers {
			if _, err := tx.Exec(ctx, query, o.MembershipID, o.OfferID, o.Quantity, o.RenewalDate); err != nil {
				return fmt.Errorf("insert offer %s: %w", o.OfferID, err)
			}
		}
		return nil
	})
}

// WithinTransaction executes function inside transaction boundary.
func (s *Storage) WithinTransaction(ctx context.Context, fn func(pgx.Tx) error) (err error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		} else {
			err = tx.Commit(ctx)
		}
	}()

	err = fn(tx)
	return err
}

// HealthCheck pings the database.
func (s *Storage) HealthCheck(ctx context.Context) error {
	return s.pool.Ping(ctx)
}
