// Package store exports a survey run to Redis.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/sagoresarker/cdnprobe/internal/models"
)

// Run is everything exported for one survey.
type Run struct {
	ID         string
	CdnDomains models.CdnDomainMap
	Samples    models.SampleTable
	Stats      []models.GroupStats
}

type RedisStore struct {
	client *redis.Client
	prefix string
}

func NewRedisStore(addr, prefix string) *RedisStore {
	return &RedisStore{
		client: redis.NewClient(&redis.Options{
			Addr:        addr,
			DialTimeout: 5 * time.Second,
		}),
		prefix: prefix,
	}
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Keys returns the Redis keys used for run id.
func (s *RedisStore) Keys(id string) (cdns, samples, stats string) {
	base := fmt.Sprintf("%s:%s", s.prefix, id)
	return base + ":cdns", base + ":samples", base + ":stats"
}

// Save writes the CDN map as a hash (CDN -> JSON domain list), the samples as a
// list of JSON rows and the statistics as a hash keyed by URL, then records the
// run id in the <prefix>:runs list. Everything is written in one transaction.
func (s *RedisStore) Save(ctx context.Context, run Run) error {
	cdnsKey, samplesKey, statsKey := s.Keys(run.ID)

	cdnFields := make(map[string]interface{}, len(run.CdnDomains))
	for _, entry := range run.CdnDomains {
		data, err := json.Marshal(entry.Domains)
		if err != nil {
			return err
		}
		cdnFields[entry.CDN] = data
	}
	rows := make([]interface{}, 0, len(run.Samples))
	for _, sample := range run.Samples {
		data, err := json.Marshal(sample)
		if err != nil {
			return err
		}
		rows = append(rows, data)
	}
	statFields := make(map[string]interface{}, len(run.Stats))
	for _, g := range run.Stats {
		data, err := json.Marshal(g)
		if err != nil {
			return err
		}
		statFields[g.Key.CDN+"|"+g.Key.Domain+"|"+g.Key.URL] = data
	}

	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, cdnsKey, samplesKey, statsKey)
		if len(cdnFields) > 0 {
			pipe.HSet(ctx, cdnsKey, cdnFields)
		}
		if len(rows) > 0 {
			pipe.RPush(ctx, samplesKey, rows...)
		}
		if len(statFields) > 0 {
			pipe.HSet(ctx, statsKey, statFields)
		}
		pipe.RPush(ctx, s.prefix+":runs", run.ID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("saving run %s to redis: %w", run.ID, err)
	}
	return nil
}

// loadSamples reads back the samples of run id.
func (s *RedisStore) loadSamples(ctx context.Context, id string) (models.SampleTable, error) {
	_, samplesKey, _ := s.Keys(id)
	raw, err := s.client.LRange(ctx, samplesKey, 0, -1).Result()
	if err != nil {
		return nil, err
	}
	table := make(models.SampleTable, 0, len(raw))
	for _, item := range raw {
		var sample models.TimingSample
		if err := json.Unmarshal([]byte(item), &sample); err != nil {
			return nil, err
		}
		table = append(table, sample)
	}
	return table, nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
