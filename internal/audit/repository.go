package audit

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository reads and prunes audit log rows.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository builds Repository instance.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const entryColumns = `id, actor_id, action, entity, entity_id, meta, occurred_at`

// Timeline returns entries matching the filters, newest first. It fetches one
// extra row past the page to detect whether a next page exists.
func (r *Repository) Timeline(ctx context.Context, filters TimelineFilters, offset, limit int) ([]Entry, error) {
	where, args := buildWhere(filters)
	query := fmt.Sprintf(`SELECT %s FROM audit_logs %s ORDER BY occurred_at DESC, id DESC OFFSET $%d LIMIT $%d`,
		entryColumns, where, len(args)+1, len(args)+2)
	args = append(args, offset, limit)
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("audit timeline: %w", err)
	}
	defer rows.Close()
	return scanEntries(rows)
}

// All returns every entry matching the filters without paging, for exports.
func (r *Repository) All(ctx context.Context, filters TimelineFilters) ([]Entry, error) {
	where, args := buildWhere(filters)
	query := fmt.Sprintf(`SELECT %s FROM audit_logs %s ORDER BY occurred_at DESC, id DESC`, entryColumns, where)
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("audit export: %w", err)
	}
	defer rows.Close()
	return scanEntries(rows)
}

// DeleteBefore removes entries older than the cutoff and reports how many
// rows were pruned.
func (r *Repository) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM audit_logs WHERE occurred_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("audit retention: %w", err)
	}
	return tag.RowsAffected(), nil
}

func buildWhere(filters TimelineFilters) (string, []any) {
	clauses := make([]string, 0, 5)
	args := make([]any, 0, 5)
	add := func(clause string, value any) {
		args = append(args, value)
		clauses = append(clauses, strings.Replace(clause, "?", "$"+strconv.Itoa(len(args)), 1))
	}
	if !filters.From.IsZero() {
		add("occurred_at >= ?", filters.From)
	}
	if !filters.To.IsZero() {
		add("occurred_at < ?", filters.To)
	}
	if filters.ActorID > 0 {
		add("actor_id = ?", filters.ActorID)
	}
	if entity := strings.TrimSpace(filters.Entity); entity != "" {
		add("entity = ?", entity)
	}
	if action := strings.TrimSpace(filters.Action); action != "" {
		add("action = ?", action)
	}
	if len(clauses) == 0 {
		return "", args
	}
	return "WHERE " + strings.Join(clauses, " AND "), args
}

func scanEntries(rows pgx.Rows) ([]Entry, error) {
	entries := make([]Entry, 0, 16)
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.ActorID, &e.Action, &e.Entity, &e.EntityID, &e.Meta, &e.At); err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit entries: %w", err)
	}
	return entries, nil
}
