package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/kisanmarket/kisan-golang/internal/models"
	"github.com/redis/go-redis/v9"
)

var ErrUpdateContention = errors.New("cart update contention")

// Store persists carts by id. A cart that was never written reads as empty.
type Store interface {
	Get(ctx context.Context, cartID string) (Cart, error)
	// Update applies the actions atomically and returns the resulting cart.
	Update(ctx context.Context, cartID string, actions ...Action) (Cart, error)
	Delete(ctx context.Context, cartID string) error
}

const maxUpdateAttempts = 5

type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client, ttl: 7 * 24 * time.Hour}
}

func (s *RedisStore) Get(ctx context.Context, cartID string) (Cart, error) {
	return s.load(ctx, s.client, cartID)
}

// Update uses WATCH so concurrent writers to the same cart never lose
// each other's changes; a losing writer re-reads and re-applies.
func (s *RedisStore) Update(ctx context.Context, cartID string, actions ...Action) (Cart, error) {
	key := cartKey(cartID)
	var result Cart

	txf := func(tx *redis.Tx) error {
		current, err := s.load(ctx, tx, cartID)
		if err != nil {
			return err
		}
		for _, a := range actions {
			current = Reduce(current, a)
		}
		data, err := json.Marshal(current)
		if err != nil {
			return fmt.Errorf("marshal cart failed: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, s.ttl)
			return nil
		})
		if err == nil {
			result = current
		}
		return err
	}

	for i := 0; i < maxUpdateAttempts; i++ {
		err := s.client.Watch(ctx, txf, key)
		if err == nil {
			return result, nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return Cart{}, fmt.Errorf("redis update failed: %w", err)
	}
	return Cart{}, ErrUpdateContention
}

func (s *RedisStore) Delete(ctx context.Context, cartID string) error {
	if err := s.client.Del(ctx, cartKey(cartID)).Err(); err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	return nil
}

func (s *RedisStore) load(ctx context.Context, r getter, cartID string) (Cart, error) {
	data, err := r.Get(ctx, cartKey(cartID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Cart{ID: cartID, Items: []models.CartLineItem{}}, nil
	}
	if err != nil {
		return Cart{}, fmt.Errorf("redis get failed: %w", err)
	}

	var c Cart
	if err := json.Unmarshal(data, &c); err != nil {
		return Cart{}, fmt.Errorf("unmarshal cart failed: %w", err)
	}
	c.ID = cartID
	return c, nil
}

// getter is satisfied by both *redis.Client and *redis.Tx.
type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func cartKey(cartID string) string {
	return fmt.Sprintf("cart:%s", cartID)
}

// MemoryStore keeps carts in process. Used when no Redis is configured.
type MemoryStore struct {
	mu    sync.Mutex
	carts map[string]Cart
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{carts: make(map[string]Cart)}
}

func (s *MemoryStore) Get(_ context.Context, cartID string) (Cart, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.get(cartID), nil
}

func (s *MemoryStore) Update(_ context.Context, cartID string, actions ...Action) (Cart, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current := s.get(cartID)
	for _, a := range actions {
		current = Reduce(current, a)
	}
	s.carts[cartID] = current
	return Reduce(current, Action{}), nil
}

func (s *MemoryStore) Delete(_ context.Context, cartID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.carts, cartID)
	return nil
}

func (s *MemoryStore) get(cartID string) Cart {
	c, ok := s.carts[cartID]
	if !ok {
		return Cart{ID: cartID, Items: []models.CartLineItem{}}
	}
	// Reduce with a no-op action hands back a copy.
	return Reduce(c, Action{})
}
