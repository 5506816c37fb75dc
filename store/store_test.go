package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"ember/config"
)

func newTestDB(t *testing.T) *BoltDB {
	t.Helper()

	cfg, err := config.NewConfigBuilder().
		WithDBPath(t.TempDir()).
		WithDBFile("test.db").
		WithBucket("test").
		Build()
	assert.NoError(t, err)

	db, err := NewBoltDB(cfg)
	assert.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestBoltKV(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	t.Run("PutKV and GetKV", func(t *testing.T) {
		err := db.PutKV(ctx, "test", []byte("key1"), []byte("value1"))
		assert.NoError(t, err)

		val, err := db.GetKV(ctx, "test", []byte("key1"))
		assert.NoError(t, err)
		assert.Equal(t, []byte("value1"), val)
	})

	t.Run("GetKV missing key", func(t *testing.T) {
		val, err := db.GetKV(ctx, "test", []byte("missing"))
		assert.NoError(t, err)
		assert.Nil(t, val)
	})

	t.Run("DeleteKV", func(t *testing.T) {
		assert.NoError(t, db.PutKV(ctx, "test", []byte("gone"), []byte("x")))
		assert.NoError(t, db.DeleteKV(ctx, "test", []byte("gone")))

		val, err := db.GetKV(ctx, "test", []byte("gone"))
		assert.NoError(t, err)
		assert.Nil(t, val)
	})

	t.Run("GetAllKV and DeleteAllKV", func(t *testing.T) {
		assert.NoError(t, db.PutKV(ctx, "test_backups", []byte("a"), []byte("1")))
		assert.NoError(t, db.PutKV(ctx, "test_backups", []byte("b"), []byte("2")))

		all, err := db.GetAllKV(ctx, "test_backups")
		assert.NoError(t, err)
		assert.Len(t, all, 2)

		assert.NoError(t, db.DeleteAllKV(ctx, "test_backups"))
		all, err = db.GetAllKV(ctx, "test_backups")
		assert.NoError(t, err)
		assert.Empty(t, all)
	})
}

type widget struct {
	ID    string `json:"id"`
	Count int    `json:"count"`
}

func TestGenericRepository(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	repo := NewGenericRepository[widget](db, "widgets")

	t.Run("Save and Get", func(t *testing.T) {
		assert.NoError(t, repo.Save(ctx, "w1", widget{ID: "w1", Count: 3}))

		got, err := repo.Get(ctx, "w1")
		assert.NoError(t, err)
		assert.Equal(t, widget{ID: "w1", Count: 3}, got)
	})

	t.Run("Get missing", func(t *testing.T) {
		_, err := repo.Get(ctx, "absent")
		assert.Error(t, err)
	})

	t.Run("GetAll skips undecodable records", func(t *testing.T) {
		assert.NoError(t, db.PutKV(ctx, "widgets", []byte("broken"), []byte("{not json")))

		all, err := repo.GetAll(ctx)
		assert.NoError(t, err)
		_, ok := all["broken"]
		assert.False(t, ok)
		_, ok = all["w1"]
		assert.True(t, ok)
	})

	t.Run("Delete", func(t *testing.T) {
		assert.NoError(t, repo.Delete(ctx, "w1"))
		_, err := repo.Get(ctx, "w1")
		assert.Error(t, err)
	})
}
