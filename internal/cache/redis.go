package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"taskboard/internal/model"
)

const (
	DefaultMirrorKey     = "taskboard:items"
	DefaultMirrorChannel = "taskboard:changes"
)

// RedisMirror copies authoritative item values into a Redis hash and
// broadcasts them on a channel so other processes can warm and refresh their
// own stores. Optimistic writes are never mirrored.
type RedisMirror struct {
	rc      *redis.Client
	key     string
	channel string
	origin  string
	timeout time.Duration
	log     *log.Entry
}

type mirrorEvent struct {
	Origin  string     `json:"origin"`
	Item    model.Item `json:"item"`
	Fields  []string   `json:"fields,omitempty"`
	Removed bool       `json:"removed,omitempty"`
}

func NewRedisMirror(rc *redis.Client, key, channel string) *RedisMirror {
	if rc == nil {
		panic("cache.NewRedisMirror: redis client is nil")
	}
	if key == "" {
		key = DefaultMirrorKey
	}
	if channel == "" {
		channel = DefaultMirrorChannel
	}
	origin := uuid.NewString()
	return &RedisMirror{
		rc:      rc,
		key:     key,
		channel: channel,
		origin:  origin,
		timeout: 2 * time.Second,
		log:     log.WithFields(log.Fields{"component": "mirror", "origin": origin}),
	}
}

// Origin identifies this mirror's own publications.
func (m *RedisMirror) Origin() string { return m.origin }

// Attach subscribes the mirror to s. Redis errors are logged, never returned:
// the mirror is best effort and the store stays authoritative locally.
func (m *RedisMirror) Attach(s *Store) (cancel func()) {
	return s.Subscribe(func(ch Change) {
		switch ch.Source {
		case SourceConfirm, SourceRefresh, SourceRemove:
		default:
			return
		}
		if !ch.Removed && len(ch.ConfirmedFields) == 0 {
			return
		}
		ctx, done := context.WithTimeout(context.Background(), m.timeout)
		defer done()
		if err := m.publish(ctx, ch); err != nil {
			m.log.WithError(err).WithField("item", ch.Item.ID).Warn("mirror write failed")
		}
	})
}

// publish writes the confirmed value, never the visible one: visible items
// may still carry optimistic fields.
func (m *RedisMirror) publish(ctx context.Context, ch Change) error {
	ev := mirrorEvent{Origin: m.origin, Item: ch.Confirmed, Fields: ch.ConfirmedFields, Removed: ch.Removed}
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	pipe := m.rc.TxPipeline()
	if ch.Removed {
		pipe.HDel(ctx, m.key, ch.Confirmed.ID)
	} else {
		data, err := json.Marshal(ch.Confirmed)
		if err != nil {
			return err
		}
		pipe.HSet(ctx, m.key, ch.Confirmed.ID, data)
	}
	pipe.Publish(ctx, m.channel, payload)
	_, err = pipe.Exec(ctx)
	return err
}

// Load reads every mirrored item. Entries that fail to decode are dropped
// from the hash.
func (m *RedisMirror) Load(ctx context.Context) ([]model.Item, error) {
	raw, err := m.rc.HGetAll(ctx, m.key).Result()
	if err != nil {
		return nil, fmt.Errorf("load mirror: %w", err)
	}
	items := make([]model.Item, 0, len(raw))
	for id, data := range raw {
		var it model.Item
		if err := json.Unmarshal([]byte(data), &it); err != nil || it.ID == "" {
			_ = m.rc.HDel(ctx, m.key, id).Err()
			continue
		}
		items = append(items, it)
	}
	return items, nil
}

// Warm loads the mirror into s.
func (m *RedisMirror) Warm(ctx context.Context, s *Store) (int, error) {
	items, err := m.Load(ctx)
	if err != nil {
		return 0, err
	}
	s.RefreshFrom(SourceRemote, items)
	return len(items), nil
}

// Listen applies other processes' publications to s until ctx is done.
// ready, when non-nil, is closed once the subscription is confirmed.
func (m *RedisMirror) Listen(ctx context.Context, s *Store, ready chan<- struct{}) error {
	sub := m.rc.Subscribe(ctx, m.channel)
	defer sub.Close()
	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", m.channel, err)
	}
	if ready != nil {
		close(ready)
	}
	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var ev mirrorEvent
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				m.log.WithError(err).Warn("unable to parse mirror event")
				continue
			}
			if ev.Origin == m.origin || ev.Item.ID == "" {
				continue
			}
			if ev.Removed {
				s.Remove(ev.Item.ID)
				continue
			}
			s.RefreshFields(SourceRemote, ev.Item, ev.Fields)
		}
	}
}
