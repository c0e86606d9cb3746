package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Skotchmaster/product_api/internal/models"
)

const (
	DefaultTTL     = 5 * time.Minute
	productKeyTmpl = "product:%d"
	genKeyTmpl     = "product:%d:gen"
)

// ProductCache is a read-through cache in front of single-product lookups.
//
// Readers take a Token before loading from the database and pass it to Fill;
// Fill is dropped when Invalidate ran for the same id in between, so a reader
// racing a writer never stores the pre-write row.
type ProductCache interface {
	Get(ctx context.Context, id uint) (*models.Product, bool, error)
	Token(ctx context.Context, id uint) (string, error)
	Fill(ctx context.Context, p *models.Product, token string) error
	Invalidate(ctx context.Context, id uint) error
}

type Nop struct{}

func (Nop) Get(context.Context, uint) (*models.Product, bool, error) { return nil, false, nil }
func (Nop) Token(context.Context, uint) (string, error)              { return "", nil }
func (Nop) Fill(context.Context, *models.Product, string) error      { return nil }
func (Nop) Invalidate(context.Context, uint) error                   { return nil }

func ProductKey(id uint) string {
	return fmt.Sprintf(productKeyTmpl, id)
}

func genKey(id uint) string {
	return fmt.Sprintf(genKeyTmpl, id)
}

// fillScript sets KEYS[1] only while the generation in KEYS[2] still equals
// ARGV[1]. A missing generation reads as "".
var fillScript = redis.NewScript(`
local g = redis.call('GET', KEYS[2])
if not g then g = '' end
if g == ARGV[1] then
	redis.call('SET', KEYS[1], ARGV[2], 'PX', ARGV[3])
	return 1
end
return 0
`)

type Redis struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedis(ctx context.Context, url string, ttl time.Duration) (*Redis, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse REDIS_URL: %w", err)
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return NewRedisFromClient(rdb, ttl), nil
}

func NewRedisFromClient(rdb *redis.Client, ttl time.Duration) *Redis {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Redis{rdb: rdb, ttl: ttl}
}

func (r *Redis) Get(ctx context.Context, id uint) (*models.Product, bool, error) {
	data, err := r.rdb.Get(ctx, ProductKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var p models.Product
	if err := json.Unmarshal(data, &p); err != nil {
		// a corrupt entry is treated as a miss and dropped
		_ = r.rdb.Del(ctx, ProductKey(id)).Err()
		return nil, false, nil
	}
	return &p, true, nil
}

func (r *Redis) Token(ctx context.Context, id uint) (string, error) {
	g, err := r.rdb.Get(ctx, genKey(id)).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	return g, err
}

func (r *Redis) Fill(ctx context.Context, p *models.Product, token string) error {
	data, err := json.Marshal(p)
	if err != nil {
		return err
	}
	return fillScript.Run(ctx, r.rdb,
		[]string{ProductKey(p.ID), genKey(p.ID)},
		token, data, r.ttl.Milliseconds(),
	).Err()
}

// Invalidate bumps the generation and drops the cached value in one MULTI.
// The generation outlives the value so in-flight fills still see the bump.
func (r *Redis) Invalidate(ctx context.Context, id uint) error {
	_, err := r.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, genKey(id))
		pipe.PExpire(ctx, genKey(id), 2*r.ttl)
		pipe.Del(ctx, ProductKey(id))
		return nil
	})
	return err
}

func (r *Redis) Close() error {
	return r.rdb.Close()
}
