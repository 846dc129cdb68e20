package database

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

const createActivityLog = `
INSERT INTO activity_logs (actor_id, actor_name, action, detail)
VALUES ($1, $2, $3, $4)
RETURNING id, actor_id, actor_name, action, detail, created_at
`

type CreateActivityLogParams struct {
	ActorID   pgtype.UUID
	ActorName pgtype.Text
	Action    string
	Detail    pgtype.Text
}

func (q *Queries) CreateActivityLog(ctx context.Context, arg CreateActivityLogParams) (ActivityLog, error) {
	var l ActivityLog
	err := q.db.QueryRow(ctx, createActivityLog, arg.ActorID, arg.ActorName, arg.Action, arg.Detail).
		Scan(&l.ID, &l.ActorID, &l.ActorName, &l.Action, &l.Detail, &l.CreatedAt)
	return l, err
}

const listActivityLogs = `
SELECT id, actor_id, actor_name, action, detail, created_at
FROM activity_logs
WHERE ($1::timestamptz IS NULL OR created_at >= $1)
  AND ($2::timestamptz IS NULL OR created_at < $2)
ORDER BY created_at DESC
LIMIT $3
`

type ListActivityLogsParams struct {
	From  pgtype.Timestamptz
	To    pgtype.Timestamptz
	Limit int32
}

func (q *Queries) ListActivityLogs(ctx context.Context, arg ListActivityLogsParams) ([]ActivityLog, error) {
	rows, err := q.db.Query(ctx, listActivityLogs, arg.From, arg.To, arg.Limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var logs []ActivityLog
	for rows.Next() {
		var l ActivityLog
		if err := rows.Scan(&l.ID, &l.ActorID, &l.ActorName, &l.Action, &l.Detail, &l.CreatedAt); err != nil {
			return nil, err
		}
		logs = append(logs, l)
	}
	return logs, rows.Err()
}
