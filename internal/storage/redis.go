package storage

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	redisKeyPrefix     = "tyforge:storage:"
	redisEventsChannel = "tyforge:storage:events"
	redisOpTimeout     = 500 * time.Millisecond
)

type redisKVClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

// redisSubscription es la parte de *redis.PubSub que usa el hub.
type redisSubscription interface {
	Receive(ctx context.Context) (interface{}, error)
	Channel(opts ...redis.ChannelOption) <-chan *redis.Message
	Close() error
}

type redisStorage struct {
	client redisKVClient
	pubsub func(ctx context.Context, channels ...string) redisSubscription
	prefix string
	sealer *Sealer
	ttl    time.Duration

	// Una sola suscripcion por proceso, repartida entre los observadores.
	mu       sync.Mutex
	watchers map[*memoryWatcher]struct{}
	stopHub  context.CancelFunc
}

// NewRedisStorage guarda tokens en redis y difunde los cambios por pub/sub,
// de modo que las pestañas atendidas por otras instancias tambien los observan.
func NewRedisStorage(client *redis.Client, sealer *Sealer, ttl time.Duration) TokenStorage {
	if client == nil {
		return nil
	}
	return &redisStorage{
		client: client,
		pubsub: func(ctx context.Context, channels ...string) redisSubscription {
			return client.Subscribe(ctx, channels...)
		},
		prefix: redisKeyPrefix,
		sealer: sealer,
		ttl:    ttl,
	}
}

func (s *redisStorage) Get(ctx context.Context, key string) (string, bool, error) {
	if strings.TrimSpace(key) == "" {
		return "", false, ErrEmptyKey
	}
	ctx, cancel := context.WithTimeout(ctx, redisOpTimeout)
	defer cancel()
	sealed, err := s.client.Get(ctx, s.prefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	value, err := s.sealer.Open(sealed)
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

func (s *redisStorage) Set(ctx context.Context, key, value string) error {
	if strings.TrimSpace(key) == "" {
		return ErrEmptyKey
	}
	sealed, err := s.sealer.Seal(value)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, redisOpTimeout)
	defer cancel()
	if err := s.client.Set(ctx, s.prefix+key, sealed, s.ttl).Err(); err != nil {
		return err
	}
	return s.publish(ctx, Change{Key: key, Origin: originFrom(ctx)})
}

func (s *redisStorage) Remove(ctx context.Context, key string) error {
	if strings.TrimSpace(key) == "" {
		return ErrEmptyKey
	}
	ctx, cancel := context.WithTimeout(ctx, redisOpTimeout)
	defer cancel()
	n, err := s.client.Del(ctx, s.prefix+key).Result()
	if err != nil {
		return err
	}
	if n == 0 {
		return nil
	}
	return s.publish(ctx, Change{Key: key, Removed: true, Origin: originFrom(ctx)})
}

func (s *redisStorage) Watch(ctx context.Context) (<-chan Change, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopHub == nil {
		if err := s.startHub(ctx); err != nil {
			return nil, err
		}
	}
	if s.watchers == nil {
		s.watchers = make(map[*memoryWatcher]struct{})
	}
	w := &memoryWatcher{ch: make(chan Change, 16), ctx: ctx}
	s.watchers[w] = struct{}{}

	go func() {
		<-ctx.Done()
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.watchers, w)
		// Sin observadores se libera la conexion de pub/sub.
		if len(s.watchers) == 0 && s.stopHub != nil {
			s.stopHub()
			s.stopHub = nil
		}
	}()
	return w.ch, nil
}

// startHub abre la suscripcion compartida. Se llama con s.mu tomado.
func (s *redisStorage) startHub(ctx context.Context) error {
	hubCtx, cancel := context.WithCancel(context.Background())
	sub := s.pubsub(hubCtx, redisEventsChannel)
	// Receive confirma la suscripcion antes de devolver el canal.
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		cancel()
		return err
	}
	s.stopHub = cancel
	go s.runHub(hubCtx, sub)
	return nil
}

func (s *redisStorage) runHub(ctx context.Context, sub redisSubscription) {
	defer sub.Close()
	msgs := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-msgs:
			if !ok {
				return
			}
			change, err := decodeChange(msg.Payload)
			if err != nil {
				continue
			}
			s.mu.Lock()
			targets := make([]*memoryWatcher, 0, len(s.watchers))
			for w := range s.watchers {
				targets = append(targets, w)
			}
			s.mu.Unlock()
			fanOut(targets, change)
		}
	}
}

func (s *redisStorage) publish(ctx context.Context, change Change) error {
	payload, err := json.Marshal(change)
	if err != nil {
		return err
	}
	return s.client.Publish(ctx, redisEventsChannel, payload).Err()
}

func decodeChange(payload string) (Change, error) {
	var change Change
	if err := json.Unmarshal([]byte(payload), &change); err != nil {
		return Change{}, err
	}
	if strings.TrimSpace(change.Key) == "" {
		return Change{}, ErrEmptyKey
	}
	return change, nil
}
