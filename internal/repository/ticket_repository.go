package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/support-assistant/internal/domain"
)

// TicketStore encapsulates ticket persistence. Get returns (nil, nil) when no
// ticket exists for the given id.
type TicketStore interface {
	Get(ctx context.Context, ticketID string) (*domain.Ticket, error)
	Upsert(ctx context.Context, ticket *domain.Ticket) error
}

type ticketStore struct {
	pool *pgxpool.Pool
}

// NewTicketStore instantiates the postgres-backed store.
func NewTicketStore(pool *pgxpool.Pool) TicketStore {
	return &ticketStore{pool: pool}
}

const ticketColumns = `id, status, title, description, requester_name, requester_user_id,
       requester_conversation_id, sme_card_activity_id, sme_thread_conversation_id,
       assigned_to_name, assigned_to_object_id, date_created, date_assigned, date_closed,
       last_modified_by_name, last_modified_by_object_id`

func (r *ticketStore) Get(ctx context.Context, ticketID string) (*domain.Ticket, error) {
	const query = `SELECT ` + ticketColumns + ` FROM tickets WHERE id=$1`

	var ticket domain.Ticket
	err := r.pool.QueryRow(ctx, query, ticketID).Scan(
		&ticket.TicketID,
		&ticket.Status,
		&ticket.Title,
		&ticket.Description,
		&ticket.RequesterName,
		&ticket.RequesterUserID,
		&ticket.RequesterConversationID,
		&ticket.SmeCardActivityID,
		&ticket.SmeThreadConversationID,
		&ticket.AssignedToName,
		&ticket.AssignedToObjectID,
		&ticket.DateCreated,
		&ticket.DateAssigned,
		&ticket.DateClosed,
		&ticket.LastModifiedByName,
		&ticket.LastModifiedByObjectID,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &ticket, nil
}

func (r *ticketStore) Upsert(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        INSERT INTO tickets (` + ticketColumns + `)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)
        ON CONFLICT (id) DO UPDATE SET
            status=EXCLUDED.status,
            title=EXCLUDED.title,
            description=EXCLUDED.description,
            sme_card_activity_id=EXCLUDED.sme_card_activity_id,
            sme_thread_conversation_id=EXCLUDED.sme_thread_conversation_id,
            assigned_to_name=EXCLUDED.assigned_to_name,
            assigned_to_object_id=EXCLUDED.assigned_to_object_id,
            date_assigned=EXCLUDED.date_assigned,
            date_closed=EXCLUDED.date_closed,
            last_modified_by_name=EXCLUDED.last_modified_by_name,
            last_modified_by_object_id=EXCLUDED.last_modified_by_object_id,
            updated_at=NOW()`
	_, err := r.pool.Exec(ctx, query,
		ticket.TicketID,
		ticket.Status,
		ticket.Title,
		ticket.Description,
		ticket.RequesterName,
		ticket.RequesterUserID,
		ticket.RequesterConversationID,
		ticket.SmeCardActivityID,
		ticket.SmeThreadConversationID,
		ticket.AssignedToName,
		ticket.AssignedToObjectID,
		ticket.DateCreated,
		ticket.DateAssigned,
		ticket.DateClosed,
		ticket.LastModifiedByName,
		ticket.LastModifiedByObjectID,
	)
	return err
}
