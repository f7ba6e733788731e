// Package repository содержит реализацию доступа к данным в PostgreSQL.
package repository

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/mmeshcher/prefunding-system/internal/model"
	"github.com/mmeshcher/prefunding-system/internal/pipeline"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// ErrClientNotFound возвращается, если клиент не найден в коллекции конвейера.
var (
	ErrClientNotFound = errors.New("client not found")
	// ErrRequestExists возвращается при повторной вставке заявки с тем же идентификатором.
	ErrRequestExists = errors.New("funding request already exists")
)

// PostgresRepository предоставляет доступ к хранилищу данных в PostgreSQL.
// Обращения выполняются по одной попытке, без клиентских ретраев.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository создаёт новый репозиторий и инициализирует схему БД через миграции.
func NewPostgresRepository(dsn string) (*PostgresRepository, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse pool config: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	r := &PostgresRepository{pool: pool}

	if err := r.runMigrations(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return r, nil
}

func (r *PostgresRepository) runMigrations(ctx context.Context) error {
	db := stdlib.OpenDBFromPool(r.pool)
	defer db.Close()

	goose.SetBaseFS(migrationsFS)

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}

	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	return nil
}

// Close закрывает пул соединений с БД.
func (r *PostgresRepository) Close() error {
	r.pool.Close()
	return nil
}

// GetClient возвращает клиента по идентификатору из коллекции конвейера.
func (r *PostgresRepository) GetClient(ctx context.Context, p pipeline.Pipeline, id string) (*model.Client, error) {
	// Имя таблицы приходит только из дескриптора конвейера, не от пользователя.
	query := fmt.Sprintf(
		`SELECT id, client_company_name, country_code, created_at, pin, vertical FROM %s WHERE id = $1`,
		pgx.Identifier{p.ClientsTable}.Sanitize(),
	)

	var c model.Client
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&c.ID, &c.CompanyName, &c.CountryCode, &c.CreatedAt, &c.PIN, &c.Vertical,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrClientNotFound
		}
		return nil, fmt.Errorf("get client: %w", err)
	}

	return &c, nil
}

// CreateFundingRequest вставляет заявку в коллекцию конвейера. Поля
// подтверждения сохраняются только в конфигурациях с поддержкой загрузки.
func (r *PostgresRepository) CreateFundingRequest(ctx context.Context, p pipeline.Pipeline, req model.FundingRequest) error {
	table := pgx.Identifier{p.RequestsTable}.Sanitize()

	var err error
	if p.UploadEnabled {
		_, err = r.pool.Exec(ctx,
			fmt.Sprintf(`INSERT INTO %s (id, client_id, amount, wallet_address, status, processed_at, receipt_url, receipt_file_name)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`, table),
			req.ID, req.ClientID, req.AmountCents, req.WalletAddress,
			string(req.Status), req.ProcessedAt, req.ReceiptURL, req.ReceiptFileName,
		)
	} else {
		_, err = r.pool.Exec(ctx,
			fmt.Sprintf(`INSERT INTO %s (id, client_id, amount, wallet_address, status, processed_at)
			 VALUES ($1, $2, $3, $4, $5, $6)`, table),
			req.ID, req.ClientID, req.AmountCents, req.WalletAddress,
			string(req.Status), req.ProcessedAt,
		)
	}

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return fmt.Errorf("%w: %s", ErrRequestExists, req.ID)
		}
		return fmt.Errorf("insert funding request: %w", err)
	}

	return nil
}
