package repository

import (
	"context"
	"fmt"
	"time"

	valkeylib "github.com/valkey-io/valkey-go"

	"github.com/vectorhub/ragcache/domains/cache"
	"github.com/vectorhub/ragcache/infrastructure/valkey"
)

// ValkeyStore implements cache.Store on top of Valkey. All keys are
// namespaced under the client's application prefix; the logical key
// (tenant-leading) is what callers see. Connectivity failures come back
// wrapped in cache.ErrUnavailable so the orchestrator can downgrade
// them to misses.
type ValkeyStore struct {
	client    *valkey.Client
	opTimeout time.Duration
}

// NewValkeyStore creates the adapter. opTimeout bounds every
// non-blocking operation so a degraded store never stalls a request.
func NewValkeyStore(client *valkey.Client, opTimeout time.Duration) *ValkeyStore {
	if opTimeout <= 0 {
		opTimeout = 3 * time.Second
	}
	return &ValkeyStore{client: client, opTimeout: opTimeout}
}

func (s *ValkeyStore) inner() valkeylib.Client {
	return s.client.Inner()
}

func (s *ValkeyStore) fullKey(key string) string {
	return s.client.KeyPrefix() + key
}

func (s *ValkeyStore) opCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.opTimeout)
}

func unavailable(op string, err error) error {
	return fmt.Errorf("valkey %s: %w: %v", op, cache.ErrUnavailable, err)
}

// Get returns (nil, nil) on a miss.
func (s *ValkeyStore) Get(ctx context.Context, key string) ([]byte, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	cmd := s.inner().B().Get().Key(s.fullKey(key)).Build()
	data, err := s.inner().Do(ctx, cmd).AsBytes()
	if err != nil {
		if valkey.IsNil(err) {
			return nil, nil
		}
		return nil, unavailable("get", err)
	}
	return data, nil
}

func (s *ValkeyStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	builder := s.inner().B().Set().Key(s.fullKey(key)).Value(string(value))
	var cmd valkeylib.Completed
	if ttl > 0 {
		cmd = builder.Ex(ttl).Build()
	} else {
		cmd = builder.Build()
	}
	if err := s.inner().Do(ctx, cmd).Error(); err != nil {
		return unavailable("set", err)
	}
	return nil
}

// SetIfAbsent is a single SET-NX round trip; the atomicity lives in the
// storage layer, never in the caller.
func (s *ValkeyStore) SetIfAbsent(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	builder := s.inner().B().Set().Key(s.fullKey(key)).Value(string(value)).Nx()
	var cmd valkeylib.Completed
	if ttl > 0 {
		cmd = builder.Ex(ttl).Build()
	} else {
		cmd = builder.Build()
	}
	err := s.inner().Do(ctx, cmd).Error()
	if err != nil {
		if valkey.IsNil(err) {
			// NX refused: the key already existed.
			return false, nil
		}
		return false, unavailable("setnx", err)
	}
	return true, nil
}

func (s *ValkeyStore) Delete(ctx context.Context, key string) (bool, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	cmd := s.inner().B().Del().Key(s.fullKey(key)).Build()
	removed, err := s.inner().Do(ctx, cmd).AsInt64()
	if err != nil {
		return false, unavailable("del", err)
	}
	return removed > 0, nil
}

// DeletePattern removes every key under prefix using SCAN, never KEYS.
func (s *ValkeyStore) DeletePattern(ctx context.Context, prefix string) (int64, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	match := s.fullKey(prefix) + "*"
	var removed int64
	var cursor uint64

	for {
		scanCmd := s.inner().B().Scan().Cursor(cursor).Match(match).Count(100).Build()
		result, err := s.inner().Do(ctx, scanCmd).AsScanEntry()
		if err != nil {
			return removed, unavailable("scan", err)
		}

		if len(result.Elements) > 0 {
			delCmd := s.inner().B().Del().Key(result.Elements...).Build()
			n, err := s.inner().Do(ctx, delCmd).AsInt64()
			if err != nil {
				return removed, unavailable("del", err)
			}
			removed += n
		}

		cursor = result.Cursor
		if cursor == 0 {
			break
		}
	}

	return removed, nil
}

func (s *ValkeyStore) Exists(ctx context.Context, key string) (bool, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	cmd := s.inner().B().Exists().Key(s.fullKey(key)).Build()
	n, err := s.inner().Do(ctx, cmd).AsInt64()
	if err != nil {
		return false, unavailable("exists", err)
	}
	return n > 0, nil
}

func (s *ValkeyStore) Increment(ctx context.Context, counterKey string, amount int64) (int64, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	cmd := s.inner().B().Incrby().Key(s.fullKey(counterKey)).Increment(amount).Build()
	n, err := s.inner().Do(ctx, cmd).AsInt64()
	if err != nil {
		return 0, unavailable("incrby", err)
	}
	return n, nil
}

func (s *ValkeyStore) ListPush(ctx context.Context, listKey string, value []byte) error {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	cmd := s.inner().B().Rpush().Key(s.fullKey(listKey)).Element(string(value)).Build()
	if err := s.inner().Do(ctx, cmd).Error(); err != nil {
		return unavailable("rpush", err)
	}
	return nil
}

// ListPopBlocking waits up to timeout for an element. Returns
// (nil, nil) when nothing arrived; this is the cooperative-poll pattern
// the worker loop relies on.
func (s *ValkeyStore) ListPopBlocking(ctx context.Context, listKey string, timeout time.Duration) ([]byte, error) {
	// valkey-go routes blocking commands over a dedicated connection,
	// so no op timeout here; BLPOP's own timeout bounds the wait.
	cmd := s.inner().B().Blpop().Key(s.fullKey(listKey)).Timeout(timeout.Seconds()).Build()
	result, err := s.inner().Do(ctx, cmd).AsStrSlice()
	if err != nil {
		if valkey.IsNil(err) {
			return nil, nil
		}
		return nil, unavailable("blpop", err)
	}
	// BLPOP replies [key, element].
	if len(result) < 2 {
		return nil, nil
	}
	return []byte(result[1]), nil
}

func (s *ValkeyStore) ListRange(ctx context.Context, listKey string, start, stop int64) ([][]byte, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	cmd := s.inner().B().Lrange().Key(s.fullKey(listKey)).Start(start).Stop(stop).Build()
	values, err := s.inner().Do(ctx, cmd).AsStrSlice()
	if err != nil {
		return nil, unavailable("lrange", err)
	}
	out := make([][]byte, len(values))
	for i, v := range values {
		out[i] = []byte(v)
	}
	return out, nil
}

func (s *ValkeyStore) Expire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	cmd := s.inner().B().Expire().Key(s.fullKey(key)).Seconds(int64(ttl.Seconds())).Build()
	n, err := s.inner().Do(ctx, cmd).AsInt64()
	if err != nil {
		return false, unavailable("expire", err)
	}
	return n > 0, nil
}

func (s *ValkeyStore) Ping(ctx context.Context) error {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	if err := s.client.Ping(ctx); err != nil {
		return unavailable("ping", err)
	}
	return nil
}
