package record

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"
)

// RedisService stores boats in Redis.
//
// Each boat is a hash at fleetdeck:{namespace}:boat:{id}; the set
// fleetdeck:{namespace}:boats indexes the IDs. The service is safe for
// concurrent use.
type RedisService struct {
	rdb       *redis.Client
	namespace string
}

// Compile-time interface checks.
var (
	_ Service = (*RedisService)(nil)
	_ Seeder  = (*RedisService)(nil)
)

// NewRedisService creates a Redis-backed service scoped to namespace.
// Returns an error if namespace is empty.
func NewRedisService(opts *redis.Options, namespace string) (*RedisService, error) {
	if namespace == "" {
		return nil, fmt.Errorf("namespace cannot be empty")
	}
	return &RedisService{
		rdb:       redis.NewClient(opts),
		namespace: namespace,
	}, nil
}

// BoatKey returns the hash key for a boat.
func BoatKey(namespace, id string) string {
	return fmt.Sprintf("fleetdeck:%s:boat:%s", namespace, id)
}

// IndexKey returns the set key listing every boat ID.
func IndexKey(namespace string) string {
	return fmt.Sprintf("fleetdeck:%s:boats", namespace)
}

// Ping verifies Redis connectivity.
func (s *RedisService) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}

// Close closes the Redis connection.
func (s *RedisService) Close() error {
	return s.rdb.Close()
}

// ListRecords implements Service.
func (s *RedisService) ListRecords(ctx context.Context, filter Filter) ([]Record, error) {
	var ids []string
	if filter.RecordID != "" {
		ids = []string{filter.RecordID}
	} else {
		var err error
		ids, err = s.rdb.SMembers(ctx, IndexKey(s.namespace)).Result()
		if err != nil {
			return nil, fmt.Errorf("read boat index: %w", err)
		}
	}

	loaded, err := s.load(ctx, s.rdb, ids)
	if err != nil {
		return nil, err
	}

	records := make([]Record, 0, len(loaded))
	for _, r := range loaded {
		if filter.Matches(r) {
			records = append(records, r)
		}
	}
	sortRecords(records)
	return records, nil
}

// ApplyEdits implements Service. The affected keys are WATCHed and all
// writes go out in one MULTI/EXEC, so a concurrent writer aborts the batch
// rather than interleaving with it.
func (s *RedisService) ApplyEdits(ctx context.Context, set EditSet) error {
	if set.IsEmpty() {
		return nil
	}

	ids := set.RecordIDs()
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = BoatKey(s.namespace, id)
	}

	err := s.rdb.Watch(ctx, func(tx *redis.Tx) error {
		current, err := s.load(ctx, tx, ids)
		if err != nil {
			return err
		}

		changed, err := applyEdits(current, set)
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			for _, r := range changed {
				pipe.HSet(ctx, BoatKey(s.namespace, r.ID), recordToHash(r))
			}
			return nil
		})
		return err
	}, keys...)

	if errors.Is(err, redis.TxFailedErr) {
		return fmt.Errorf("boats changed during save, reload and retry: %w", err)
	}
	return err
}

// Put implements Seeder.
func (s *RedisService) Put(ctx context.Context, records ...Record) error {
	for _, r := range records {
		if r.ID == "" {
			return ErrMissingID
		}
	}

	_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, r := range records {
			pipe.HSet(ctx, BoatKey(s.namespace, r.ID), recordToHash(r))
			pipe.SAdd(ctx, IndexKey(s.namespace), r.ID)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("put boats: %w", err)
	}
	return nil
}

// load reads the hashes for ids. Missing boats are omitted from the result.
func (s *RedisService) load(ctx context.Context, c redis.Cmdable, ids []string) (map[string]Record, error) {
	out := make(map[string]Record, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	cmds := make([]*redis.MapStringStringCmd, len(ids))
	_, err := c.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, id := range ids {
			cmds[i] = pipe.HGetAll(ctx, BoatKey(s.namespace, id))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("read boats: %w", err)
	}

	for _, cmd := range cmds {
		hash := cmd.Val()
		if len(hash) == 0 {
			continue
		}
		r, err := hashToRecord(hash)
		if err != nil {
			return nil, err
		}
		out[r.ID] = r
	}
	return out, nil
}

func recordToHash(r Record) map[string]any {
	return map[string]any{
		"id":           r.ID,
		"name":         r.Name,
		"boat_type_id": r.BoatTypeID,
		"length":       strconv.FormatFloat(r.Length, 'f', -1, 64),
		"price":        strconv.FormatFloat(r.Price, 'f', -1, 64),
		"description":  r.Description,
	}
}

func hashToRecord(hash map[string]string) (Record, error) {
	r := Record{
		ID:          hash["id"],
		Name:        hash["name"],
		BoatTypeID:  hash["boat_type_id"],
		Description: hash["description"],
	}

	var err error
	if v := hash["length"]; v != "" {
		if r.Length, err = strconv.ParseFloat(v, 64); err != nil {
			return Record{}, fmt.Errorf("decode boat %s length: %w", r.ID, err)
		}
	}
	if v := hash["price"]; v != "" {
		if r.Price, err = strconv.ParseFloat(v, 64); err != nil {
			return Record{}, fmt.Errorf("decode boat %s price: %w", r.ID, err)
		}
	}
	return r, nil
}
