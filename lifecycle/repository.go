package lifecycle

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"ember/store"
)

// BoltBackupRepository implements BackupRepository on the internal store.
type BoltBackupRepository struct {
	*store.GenericRepository[BackupRecord]
}

// NewBackupRepository creates a backup record repository.
func NewBackupRepository(database store.Database, bucket string) BackupRepository {
	return &BoltBackupRepository{
		GenericRepository: store.NewGenericRepository[BackupRecord](database, bucket),
	}
}

// Save stores a backup record, assigning an ID and timestamp when absent.
func (r *BoltBackupRepository) Save(ctx context.Context, rec *BackupRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	return r.GenericRepository.Save(ctx, rec.ID, *rec)
}

// Get retrieves a backup record by ID.
func (r *BoltBackupRepository) Get(ctx context.Context, id string) (*BackupRecord, error) {
	rec, err := r.GenericRepository.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("backup record %s: %w", id, err)
	}
	return &rec, nil
}

// GetAll retrieves all backup records.
func (r *BoltBackupRepository) GetAll(ctx context.Context) ([]*BackupRecord, error) {
	recordsMap, err := r.GenericRepository.GetAll(ctx)
	if err != nil {
		return nil, err
	}

	var records []*BackupRecord
	for _, rec := range recordsMap {
		recCopy := rec
		records = append(records, &recCopy)
	}
	return records, nil
}

// GetByOS retrieves the backup records for one OS.
func (r *BoltBackupRepository) GetByOS(ctx context.Context, name string) ([]*BackupRecord, error) {
	all, err := r.GetAll(ctx)
	if err != nil {
		return nil, err
	}

	var filtered []*BackupRecord
	for _, rec := range all {
		if rec.OSName == name {
			filtered = append(filtered, rec)
		}
	}
	return filtered, nil
}

// Delete removes a backup record by ID.
func (r *BoltBackupRepository) Delete(ctx context.Context, id string) error {
	return r.GenericRepository.Delete(ctx, id)
}
