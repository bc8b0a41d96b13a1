package cache

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"taskboard/internal/model"
)

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	rc := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rc.Close() })
	return mr, rc
}

func TestMirrorWritesOnlyAuthoritativeValues(t *testing.T) {
	mr, rc := newRedis(t)
	s := seeded()
	mirror := NewRedisMirror(rc, "", "")
	cancel := mirror.Attach(s)
	defer cancel()

	m, _ := s.Apply(model.Patch{ID: "i1", Order: model.FloatPtr(15)})
	if mr.Exists(DefaultMirrorKey) {
		t.Fatalf("optimistic write must not be mirrored")
	}

	s.Confirm(m, model.Item{ID: "i1", Title: "one", StatusID: "st-todo", Order: 15})
	raw := mr.HGet(DefaultMirrorKey, "i1")
	var it model.Item
	if err := json.Unmarshal([]byte(raw), &it); err != nil {
		t.Fatalf("decode mirrored item: %v (%q)", err, raw)
	}
	if it.Order != 15 {
		t.Fatalf("unexpected mirrored item: %+v", it)
	}

	s.Remove("i1")
	if mr.HGet(DefaultMirrorKey, "i1") != "" {
		t.Fatalf("removed item still mirrored")
	}
}

func TestMirrorWarmLoadsItemsAndDropsGarbage(t *testing.T) {
	mr, rc := newRedis(t)
	mr.HSet(DefaultMirrorKey, "i9", `{"id":"i9","title":"nine","order":90}`)
	mr.HSet(DefaultMirrorKey, "bad", `{not json`)

	s := New()
	n, err := NewRedisMirror(rc, "", "").Warm(context.Background(), s)
	if err != nil {
		t.Fatalf("warm: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 item, got %d", n)
	}
	if it, ok := s.Get("i9"); !ok || it.Title != "nine" {
		t.Fatalf("unexpected warmed item: %+v %v", it, ok)
	}
	if mr.HGet(DefaultMirrorKey, "bad") != "" {
		t.Fatalf("undecodable entry should be dropped")
	}
}

func TestMirrorListenAppliesRemoteChanges(t *testing.T) {
	_, rc := newRedis(t)
	local := seeded()
	remote := seeded()

	listener := NewRedisMirror(rc, "", "")
	publisher := NewRedisMirror(rc, "", "")
	cancelPub := publisher.Attach(remote)
	defer cancelPub()

	ctx, cancel := context.WithCancel(context.Background())
	ready := make(chan struct{})
	done := make(chan error, 1)
	go func() { done <- listener.Listen(ctx, local, ready) }()
	select {
	case <-ready:
	case <-time.After(time.Second):
		t.Fatal("subscription did not start")
	}

	m, _ := remote.Apply(model.Patch{ID: "i2", Order: model.FloatPtr(5)})
	remote.Confirm(m, model.Item{ID: "i2", Title: "two", StatusID: "st-todo", Order: 5})

	deadline := time.Now().Add(time.Second)
	for {
		if it, _ := local.Get("i2"); it.Order == 5 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("remote change never arrived")
		}
		time.Sleep(10 * time.Millisecond)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("listen: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Listen did not exit")
	}
}

func TestMirrorNeverPublishesPendingOptimisticFields(t *testing.T) {
	mr, rc := newRedis(t)
	s := seeded()
	cancel := NewRedisMirror(rc, "", "").Attach(s)
	defer cancel()

	s.Apply(model.Patch{ID: "i1", Order: model.FloatPtr(99)})
	s.Refresh([]model.Item{{ID: "i1", Title: "one, renamed", StatusID: "st-todo", Order: 10}})

	if it, _ := s.Get("i1"); it.Order != 99 {
		t.Fatalf("pending order should stay visible locally, got %v", it.Order)
	}
	var it model.Item
	if err := json.Unmarshal([]byte(mr.HGet(DefaultMirrorKey, "i1")), &it); err != nil {
		t.Fatalf("decode mirrored item: %v", err)
	}
	if it.Order != 10 || it.Title != "one, renamed" {
		t.Fatalf("mirror holds a non-authoritative value: %+v", it)
	}
}
