// Package sequence issues human-readable document numbers of the form
// <prefix><yyyy><mm><nnnn> from an atomic per-period counter.
package sequence

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/zulandar/qcyard/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Document number prefixes.
const (
	PrefixInspection = "QC"
	PrefixRework     = "RW"
)

// Counter reserves the next value of a named counter. db is the transaction
// the reservation should join; counters backed by another store ignore it.
type Counter interface {
	Next(ctx context.Context, db *gorm.DB, key string) (int64, error)
}

// Key returns the counter key for prefix in the month containing t.
func Key(prefix string, t time.Time) string {
	return prefix + t.Format("200601")
}

// Format renders a document number. Values past 9999 simply widen.
func Format(prefix string, t time.Time, n int64) string {
	return fmt.Sprintf("%s%04d", Key(prefix, t), n)
}

// Generate reserves the next number for prefix in the month containing t.
func Generate(ctx context.Context, c Counter, db *gorm.DB, prefix string, t time.Time) (string, error) {
	n, err := c.Next(ctx, db, Key(prefix, t))
	if err != nil {
		return "", err
	}
	return Format(prefix, t, n), nil
}

// DBCounter keeps counters in the sequences table. Increments are a single
// UPDATE so concurrent callers never observe the same value.
type DBCounter struct{}

// Next implements Counter.
func (DBCounter) Next(ctx context.Context, db *gorm.DB, key string) (int64, error) {
	var seq models.Sequence
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).
			Create(&models.Sequence{Prefix: key}).Error; err != nil {
			return err
		}
		result := tx.Model(&models.Sequence{}).Where("prefix = ?", key).
			Update("value", gorm.Expr("value + 1"))
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return fmt.Errorf("counter row missing")
		}
		return tx.Where("prefix = ?", key).First(&seq).Error
	})
	if err != nil {
		return 0, fmt.Errorf("sequence: next %s: %w", key, err)
	}
	return seq.Value, nil
}

// RedisCounter keeps counters in Redis using INCR.
type RedisCounter struct {
	client    redis.Cmdable
	keyPrefix string
}

// NewRedisCounter returns a counter storing keys under "qc:seq:".
func NewRedisCounter(client redis.Cmdable) *RedisCounter {
	return &RedisCounter{client: client, keyPrefix: "qc:seq:"}
}

// Next implements Counter.
func (c *RedisCounter) Next(ctx context.Context, _ *gorm.DB, key string) (int64, error) {
	n, err := c.client.Incr(ctx, c.keyPrefix+key).Result()
	if err != nil {
		return 0, fmt.Errorf("sequence: redis incr %s: %w", key, err)
	}
	return n, nil
}

// NewRedisClient connects to Redis and verifies the connection.
func NewRedisClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("sequence: redis ping %s: %w", addr, err)
	}
	return client, nil
}
