package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/iho/yieldledger/internal/domain"
	"github.com/iho/yieldledger/internal/usecase"
)

// AuditRepository implements audit log persistence
type AuditRepository struct {
	db dbtx
}

// NewAuditRepository creates a new audit repository
func NewAuditRepository(pool *pgxpool.Pool) *AuditRepository {
	return newAuditRepositoryWithDB(pool)
}

func newAuditRepositoryWithDB(db dbtx) *AuditRepository {
	return &AuditRepository{db: db}
}

// Create inserts a new audit log entry inside tx
func (r *AuditRepository) Create(ctx context.Context, tx usecase.Tx, log *domain.AuditLog) error {
	pgxTx, err := pgxTxFrom(tx)
	if err != nil {
		return err
	}

	var beforeStateJSON, afterStateJSON []byte

	if log.BeforeState != nil {
		beforeStateJSON, err = json.Marshal(log.BeforeState)
		if err != nil {
			return err
		}
	}

	if log.AfterState != nil {
		afterStateJSON, err = json.Marshal(log.AfterState)
		if err != nil {
			return err
		}
	}

	_, err = pgxTx.Exec(ctx, `
		INSERT INTO audit_logs (
			id, actor_id, action, resource_type, resource_id,
			reason, request_id, before_state, after_state, status, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		log.ID,
		log.ActorID,
		log.Action,
		log.ResourceType,
		log.ResourceID,
		log.Reason,
		log.RequestID,
		beforeStateJSON,
		afterStateJSON,
		log.Status,
		log.CreatedAt,
	)

	return err
}

// List returns matching audit rows, newest first.
func (r *AuditRepository) List(ctx context.Context, filter domain.AuditFilter) ([]*domain.AuditLog, error) {
	var (
		conds []string
		args  []any
	)
	where := func(column, op string, value any) {
		args = append(args, value)
		conds = append(conds, fmt.Sprintf("%s %s $%d", column, op, len(args)))
	}
	for _, f := range []struct{ column, value string }{
		{"actor_id", filter.ActorID},
		{"action", filter.Action},
		{"resource_type", filter.ResourceType},
		{"resource_id", filter.ResourceID},
	} {
		if f.value != "" {
			where(f.column, "=", f.value)
		}
	}
	if filter.StartDate != nil {
		where("created_at", ">=", *filter.StartDate)
	}
	if filter.EndDate != nil {
		where("created_at", "<=", *filter.EndDate)
	}

	query := `SELECT id, actor_id, action, resource_type, resource_id,
		reason, request_id, before_state, after_state, status, created_at
		FROM audit_logs`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	args = append(args, filter.Limit, filter.Offset)
	query += fmt.Sprintf(" ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	logs := make([]*domain.AuditLog, 0)
	for rows.Next() {
		var (
			log           domain.AuditLog
			before, after []byte
		)
		if err := rows.Scan(&log.ID, &log.ActorID, &log.Action, &log.ResourceType, &log.ResourceID,
			&log.Reason, &log.RequestID, &before, &after, &log.Status, &log.CreatedAt); err != nil {
			return nil, err
		}
		if log.BeforeState, err = decodeState(before); err != nil {
			return nil, fmt.Errorf("audit %s before_state: %w", log.ID, err)
		}
		if log.AfterState, err = decodeState(after); err != nil {
			return nil, fmt.Errorf("audit %s after_state: %w", log.ID, err)
		}
		logs = append(logs, &log)
	}

	return logs, rows.Err()
}

func decodeState(raw []byte) (domain.JSON, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var state domain.JSON
	if err := json.Unmarshal(raw, &state); err != nil {
		return nil, err
	}
	return state, nil
}
