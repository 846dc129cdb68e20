package handler

import (
	"encoding/json"
	"errors"
	"log"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/phovang-pos/api/internal/ws"
)

// Broadcaster pushes events to WebSocket subscribers.
// Satisfied by *ws.Hub.
type Broadcaster interface {
	BroadcastToTopic(topic string, event ws.Event)
}

// AutoPrintNotifier schedules a kitchen ticket check for an order.
// Satisfied by *kitchen.AutoPrinter.
type AutoPrintNotifier interface {
	Notify(orderID uuid.UUID)
}

// broadcast marshals v and fans it out to a topic. Failures are logged,
// never surfaced: a dropped event degrades live screens, not the request.
func broadcast(hub Broadcaster, topic, eventType string, v interface{}) {
	if hub == nil {
		return
	}
	payload, err := json.Marshal(v)
	if err != nil {
		log.Printf("ERROR: marshal %s event: %v", eventType, err)
		return
	}
	hub.BroadcastToTopic(topic, ws.Event{Type: eventType, Payload: payload})
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// numericToString renders a whole-VND NUMERIC as its plain digit string.
func numericToString(n pgtype.Numeric) string {
	if !n.Valid {
		return "0"
	}
	val, err := n.Value()
	if err != nil || val == nil {
		return "0"
	}
	return val.(string)
}
