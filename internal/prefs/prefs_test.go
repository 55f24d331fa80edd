package prefs

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

type fakeRedis struct {
	values  map[string]string
	lists   map[string][]string
	expired map[string]time.Duration
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{values: map[string]string{}, lists: map[string][]string{}, expired: map[string]time.Duration{}}
}

func (f *fakeRedis) Get(_ context.Context, key string) (string, error) {
	value, ok := f.values[key]
	if !ok {
		return "", redis.Nil
	}
	return value, nil
}

func (f *fakeRedis) Set(_ context.Context, key string, value any, ttl time.Duration) error {
	f.values[key] = value.(string)
	f.expired[key] = ttl
	return nil
}

func (f *fakeRedis) LPush(_ context.Context, key string, values ...any) error {
	for _, v := range values {
		f.lists[key] = append([]string{v.(string)}, f.lists[key]...)
	}
	return nil
}

func (f *fakeRedis) LRem(_ context.Context, key string, _ int64, value any) error {
	kept := f.lists[key][:0]
	for _, v := range f.lists[key] {
		if v != value.(string) {
			kept = append(kept, v)
		}
	}
	f.lists[key] = kept
	return nil
}

func (f *fakeRedis) LTrim(_ context.Context, key string, start, stop int64) error {
	list := f.lists[key]
	if int(stop+1) < len(list) {
		f.lists[key] = list[start : stop+1]
	}
	return nil
}

func (f *fakeRedis) LRange(_ context.Context, key string, _, _ int64) ([]string, error) {
	return append([]string(nil), f.lists[key]...), nil
}

func (f *fakeRedis) Expire(_ context.Context, key string, ttl time.Duration) error {
	f.expired[key] = ttl
	return nil
}

func (f *fakeRedis) PrefsKey(sessionID, name string) string {
	return "sf:prefs:" + sessionID + ":" + name
}

type failingStore struct{}

func (failingStore) Get(context.Context, string, string) (string, bool, error) {
	return "", false, errors.New("unavailable")
}
func (failingStore) Set(context.Context, string, string, string) error {
	return errors.New("unavailable")
}
func (failingStore) PushBounded(context.Context, string, string, string, int) error {
	return errors.New("unavailable")
}
func (failingStore) List(context.Context, string, string) ([]string, error) {
	return nil, errors.New("unavailable")
}

func storesUnderTest() map[string]Store {
	return map[string]Store{
		"memory": NewMemoryStore(),
		"redis":  NewRedisStore(newFakeRedis(), 24*time.Hour),
	}
}

func TestPhonePrefill(t *testing.T) {
	for name, store := range storesUnderTest() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			p := New(store, 3, nil)

			if got := p.PhonePrefill(ctx, "sess-1"); got != "" {
				t.Fatalf("expected empty prefill, got %q", got)
			}
			p.RememberPhone(ctx, "sess-1", " 0772123456 ")
			if got := p.PhonePrefill(ctx, "sess-1"); got != "0772123456" {
				t.Fatalf("expected remembered phone, got %q", got)
			}
			if got := p.PhonePrefill(ctx, "sess-2"); got != "" {
				t.Fatalf("prefill leaked across sessions: %q", got)
			}
		})
	}
}

func TestRecentlyViewedBoundedAndDeduplicated(t *testing.T) {
	for name, store := range storesUnderTest() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			p := New(store, 3, nil)

			for _, id := range []string{"p1", "p2", "p3", "p2", "p4"} {
				p.ViewProduct(ctx, "sess-1", id)
			}
			got := p.RecentlyViewed(ctx, "sess-1")
			want := []string{"p4", "p2", "p3"}
			if !reflect.DeepEqual(got, want) {
				t.Fatalf("expected %v, got %v", want, got)
			}
		})
	}
}

func TestRedisStoreRefreshesTTL(t *testing.T) {
	fake := newFakeRedis()
	store := NewRedisStore(fake, time.Hour)
	if err := store.PushBounded(context.Background(), "sess-1", "recently_viewed", "p1", 5); err != nil {
		t.Fatalf("push: %v", err)
	}
	if fake.expired["sf:prefs:sess-1:recently_viewed"] != time.Hour {
		t.Fatalf("expected ttl refresh, got %v", fake.expired)
	}
}

func TestFailuresAreSwallowed(t *testing.T) {
	ctx := context.Background()
	p := New(failingStore{}, 3, nil)

	p.RememberPhone(ctx, "sess-1", "0772123456")
	p.ViewProduct(ctx, "sess-1", "p1")
	if got := p.PhonePrefill(ctx, "sess-1"); got != "" {
		t.Fatalf("expected empty prefill, got %q", got)
	}
	if got := p.RecentlyViewed(ctx, "sess-1"); len(got) != 0 || got == nil {
		t.Fatalf("expected empty non-nil list, got %#v", got)
	}
}

func TestNilPrefsIsNoop(t *testing.T) {
	var p *Prefs
	p.RememberPhone(context.Background(), "sess", "1")
	if got := p.PhonePrefill(context.Background(), "sess"); got != "" {
		t.Fatalf("expected empty, got %q", got)
	}
}
