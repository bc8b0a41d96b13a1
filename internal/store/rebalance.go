package store

import (
	"context"
	"database/sql"
	"time"

	"taskboard/internal/grouping"
)

type RebalanceRequest struct {
	Dimension   grouping.Kind `json:"dimension"`
	GroupKey    string        `json:"groupKey"`
	RequestedAt time.Time     `json:"requestedAt"`
}

// RebalanceNeeded records that a group's order keys collapsed. Repeated
// signals for the same group refresh the timestamp.
func (s *Store) RebalanceNeeded(ctx context.Context, kind grouping.Kind, groupKey string) error {
	_, err := s.db.ExecContext(ctx, `INSERT OR REPLACE INTO rebalance_requests(dimension, group_key, requested_at) VALUES(?, ?, ?)`,
		string(kind), groupKey, formatTime(s.now()))
	if err != nil {
		return classify("record rebalance", err)
	}
	s.log.WithField("dimension", kind).WithField("group", groupKey).Info("rebalance requested")
	return nil
}

func (s *Store) PendingRebalances(ctx context.Context) ([]RebalanceRequest, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT dimension, group_key, requested_at FROM rebalance_requests ORDER BY requested_at, dimension, group_key`)
	if err != nil {
		return nil, classify("list rebalances", err)
	}
	defer rows.Close()
	var out []RebalanceRequest
	for rows.Next() {
		var (
			r    RebalanceRequest
			kind string
			at   string
		)
		if err := rows.Scan(&kind, &r.GroupKey, &at); err != nil {
			return nil, classify("list rebalances", err)
		}
		r.Dimension = grouping.Kind(kind)
		if t, err := parseTime(sql.NullString{String: at, Valid: true}); err == nil && t != nil {
			r.RequestedAt = *t
		}
		out = append(out, r)
	}
	return out, classify("list rebalances", rows.Err())
}

func (s *Store) ClearRebalance(ctx context.Context, kind grouping.Kind, groupKey string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM rebalance_requests WHERE dimension = ? AND group_key = ?`, string(kind), groupKey)
	return classify("clear rebalance", err)
}
