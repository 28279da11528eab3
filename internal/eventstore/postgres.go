package eventstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/roundtable/engine/pkg/types"
)

// PostgresStore is the durable Store backend for deployments that need
// events to survive a process restart. It expects the schema created by
// the "events" migration under cmd/discussiond/migrations to already be
// applied (see the "discussiond migrate" subcommand).
type PostgresStore struct {
	db *sql.DB
}

// OpenPostgresStore opens a connection pool against dsn using the pgx
// stdlib driver.
func OpenPostgresStore(dsn string) (*PostgresStore, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &PostgresStore{db: db}, nil
}

func (p *PostgresStore) Append(ctx context.Context, sessionID string, e types.Event) error {
	payload, err := json.Marshal(e.Payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	_, err = p.db.ExecContext(ctx, `
		INSERT INTO discussion_events
			(id, session_id, sequence, type, timestamp, agent_id, payload, transient)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (session_id, sequence) DO NOTHING`,
		e.ID, sessionID, e.Sequence, string(e.Type), e.Timestamp, e.AgentID, payload, e.Transient,
	)
	if err != nil {
		return fmt.Errorf("append event: %w", err)
	}
	return nil
}

func (p *PostgresStore) LoadAll(ctx context.Context, sessionID string) ([]types.Event, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, session_id, sequence, type, timestamp, agent_id, payload, transient
		FROM discussion_events
		WHERE session_id = $1
		ORDER BY sequence ASC`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("load events: %w", err)
	}
	defer rows.Close()

	var out []types.Event
	for rows.Next() {
		var e types.Event
		var payload []byte
		var agentID sql.NullString
		if err := rows.Scan(&e.ID, &e.SessionID, &e.Sequence, &e.Type, &e.Timestamp, &agentID, &payload, &e.Transient); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		e.AgentID = agentID.String
		if len(payload) > 0 {
			if err := json.Unmarshal(payload, &e.Payload); err != nil {
				return nil, fmt.Errorf("unmarshal payload: %w", err)
			}
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (p *PostgresStore) Overwrite(ctx context.Context, sessionID string, events []types.Event) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM discussion_events WHERE session_id = $1`, sessionID); err != nil {
		return fmt.Errorf("clear events: %w", err)
	}
	for _, e := range events {
		payload, err := json.Marshal(e.Payload)
		if err != nil {
			return fmt.Errorf("marshal payload: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO discussion_events
				(id, session_id, sequence, type, timestamp, agent_id, payload, transient)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			e.ID, sessionID, e.Sequence, string(e.Type), e.Timestamp, e.AgentID, payload, e.Transient,
		); err != nil {
			return fmt.Errorf("insert event: %w", err)
		}
	}
	return tx.Commit()
}

func (p *PostgresStore) Delete(ctx context.Context, sessionID string) error {
	_, err := p.db.ExecContext(ctx, `DELETE FROM discussion_events WHERE session_id = $1`, sessionID)
	if err != nil {
		return fmt.Errorf("delete events: %w", err)
	}
	return nil
}

func (p *PostgresStore) Sessions(ctx context.Context) ([]string, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT DISTINCT session_id FROM discussion_events`)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan session id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (p *PostgresStore) Close() error {
	return p.db.Close()
}
