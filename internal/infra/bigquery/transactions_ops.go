package bigquery

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"cloud.google.com/go/bigquery"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/iterator"

	"github.com/dvloznov/expense-bot/internal/domain"
	"github.com/dvloznov/expense-bot/internal/ledger"
)

// Config names the table transactions live in.
type Config struct {
	Project string
	Dataset string
	Table   string
}

func (c Config) qualifiedTable() string {
	return fmt.Sprintf("`%s.%s.%s`", c.Project, c.Dataset, c.Table)
}

// Repository implements ledger.Repository on BigQuery. It holds one shared
// client for its lifetime.
type Repository struct {
	client *bigquery.Client
	cfg    Config
	log    zerolog.Logger
}

var _ ledger.Repository = (*Repository)(nil)

// NewRepository creates a client for cfg.Project and makes sure the table exists.
func NewRepository(ctx context.Context, cfg Config, log zerolog.Logger) (*Repository, error) {
	client, err := bigquery.NewClient(ctx, cfg.Project)
	if err != nil {
		return nil, fmt.Errorf("NewRepository: creating client: %w", err)
	}
	r := &Repository{client: client, cfg: cfg, log: log}
	if err := r.EnsureTable(ctx); err != nil {
		client.Close()
		return nil, err
	}
	return r, nil
}

// EnsureTable creates the transactions table from TransactionRow when it is missing.
func (r *Repository) EnsureTable(ctx context.Context) error {
	table := r.client.DatasetInProject(r.cfg.Project, r.cfg.Dataset).Table(r.cfg.Table)
	_, err := table.Metadata(ctx)
	if err == nil {
		return nil
	}
	var apiErr *googleapi.Error
	if !errors.As(err, &apiErr) || apiErr.Code != http.StatusNotFound {
		return fmt.Errorf("EnsureTable: table metadata: %w", err)
	}

	schema, err := bigquery.InferSchema(TransactionRow{})
	if err != nil {
		return fmt.Errorf("EnsureTable: infer schema: %w", err)
	}
	meta := &bigquery.TableMetadata{
		Schema: schema,
		TimePartitioning: &bigquery.TimePartitioning{
			Type:  bigquery.DayPartitioningType,
			Field: "created_ts",
		},
		Clustering: &bigquery.Clustering{Fields: []string{"user_id"}},
	}
	if err := table.Create(ctx, meta); err != nil {
		return fmt.Errorf("EnsureTable: create table: %w", err)
	}
	r.log.Info().Str("table", r.cfg.Table).Msg("Created BigQuery transactions table")
	return nil
}

// Insert streams one row into the table.
func (r *Repository) Insert(ctx context.Context, tx *domain.Transaction) error {
	if tx.ID == "" {
		tx.ID = uuid.New().String()
	}
	inserter := r.client.DatasetInProject(r.cfg.Project, r.cfg.Dataset).Table(r.cfg.Table).Inserter()
	if err := inserter.Put(ctx, []*TransactionRow{toRow(tx)}); err != nil {
		return fmt.Errorf("Insert: inserting row: %w", err)
	}
	return nil
}

// List returns matching transactions newest first.
func (r *Repository) List(ctx context.Context, q ledger.Query) ([]domain.Transaction, error) {
	sql, params := buildListQuery(r.cfg, q)
	query := r.client.Query(sql)
	query.Parameters = params

	it, err := query.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("List: query read: %w", err)
	}

	var out []domain.Transaction
	for {
		var row TransactionRow
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("List: iter next: %w", err)
		}
		tx, err := row.toDomain()
		if err != nil {
			return nil, fmt.Errorf("List: decode row %s: %w", row.TransactionID, err)
		}
		out = append(out, tx)
	}
	return out, nil
}

func buildListQuery(cfg Config, q ledger.Query) (string, []bigquery.QueryParameter) {
	var sb strings.Builder
	sb.WriteString(`
		SELECT
			transaction_id,
			user_id,
			kind,
			amount,
			currency,
			category_name,
			description,
			raw_message,
			created_ts
		FROM `)
	sb.WriteString(cfg.qualifiedTable())
	sb.WriteString(`
		WHERE user_id = @user_id`)
	params := []bigquery.QueryParameter{{Name: "user_id", Value: q.UserID}}

	if !q.From.IsZero() {
		sb.WriteString(`
		  AND created_ts >= @from_ts`)
		params = append(params, bigquery.QueryParameter{Name: "from_ts", Value: q.From.UTC()})
	}
	if !q.To.IsZero() {
		sb.WriteString(`
		  AND created_ts < @to_ts`)
		params = append(params, bigquery.QueryParameter{Name: "to_ts", Value: q.To.UTC()})
	}
	if q.Kind != nil {
		sb.WriteString(`
		  AND kind = @kind`)
		params = append(params, bigquery.QueryParameter{Name: "kind", Value: string(*q.Kind)})
	}
	sb.WriteString(`
		ORDER BY created_ts DESC`)
	if q.Limit > 0 {
		sb.WriteString(`
		LIMIT @limit`)
		params = append(params, bigquery.QueryParameter{Name: "limit", Value: q.Limit})
	}
	return sb.String(), params
}

// Close closes the BigQuery client connection.
func (r *Repository) Close() error {
	if r.client != nil {
		return r.client.Close()
	}
	return nil
}
