package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"channex_sync/internal/domain"
)

// MappingStore is the id_mappings table behind domain.MappingStore.
type MappingStore struct{ db *sql.DB }

func NewMappingStore(db *sql.DB) *MappingStore { return &MappingStore{db: db} }

func (s *MappingStore) Get(ctx context.Context, t domain.EntityType, localID string) (string, error) {
	var ext string
	err := s.db.QueryRowContext(ctx, getMappingSQL, string(t), localID).Scan(&ext)
	if errors.Is(err, sql.ErrNoRows) {
		return "", domain.ErrMappingNotFound
	}
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrStorageUnavailable, err)
	}
	return ext, nil
}

func (s *MappingStore) Set(ctx context.Context, t domain.EntityType, localID, externalID string) error {
	if localID == "" || externalID == "" {
		return fmt.Errorf("%w: empty id in mapping", domain.ErrInvalidPayload)
	}
	if _, err := s.db.ExecContext(ctx, upsertMappingSQL, string(t), localID, externalID); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrStorageUnavailable, err)
	}
	return nil
}

func (s *MappingStore) Clear(ctx context.Context, t domain.EntityType, localID string) error {
	if _, err := s.db.ExecContext(ctx, deleteMappingSQL, string(t), localID); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrStorageUnavailable, err)
	}
	return nil
}

func (s *MappingStore) All(ctx context.Context, t domain.EntityType) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, listMappingsSQL, string(t))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrStorageUnavailable, err)
	}
	defer rows.Close()

	out := map[string]string{}
	for rows.Next() {
		var local, ext string
		if err := rows.Scan(&local, &ext); err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrStorageUnavailable, err)
		}
		out[local] = ext
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrStorageUnavailable, err)
	}
	return out, nil
}
