package redisad

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"channex_sync/internal/domain"
)

const mappingKeyPrefix = "channex:mapping:"

// MappingStore keeps one hash per entity type: field = local ID, value = Channex ID.
type MappingStore struct{ c *redis.Client }

func NewMappingStore(c *redis.Client) *MappingStore { return &MappingStore{c: c} }

func mappingKey(t domain.EntityType) string { return mappingKeyPrefix + string(t) }

func (s *MappingStore) Get(ctx context.Context, t domain.EntityType, localID string) (string, error) {
	v, err := s.c.HGet(ctx, mappingKey(t), localID).Result()
	if errors.Is(err, redis.Nil) || (err == nil && v == "") {
		return "", domain.ErrMappingNotFound
	}
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrStorageUnavailable, err)
	}
	return v, nil
}

func (s *MappingStore) Set(ctx context.Context, t domain.EntityType, localID, externalID string) error {
	if localID == "" || externalID == "" {
		return fmt.Errorf("%w: empty id in mapping", domain.ErrInvalidPayload)
	}
	if err := s.c.HSet(ctx, mappingKey(t), localID, externalID).Err(); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrStorageUnavailable, err)
	}
	return nil
}

func (s *MappingStore) Clear(ctx context.Context, t domain.EntityType, localID string) error {
	if err := s.c.HDel(ctx, mappingKey(t), localID).Err(); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrStorageUnavailable, err)
	}
	return nil
}

func (s *MappingStore) All(ctx context.Context, t domain.EntityType) (map[string]string, error) {
	m, err := s.c.HGetAll(ctx, mappingKey(t)).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrStorageUnavailable, err)
	}
	return m, nil
}
