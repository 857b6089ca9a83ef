package database

import (
	"context"
	"testing"

	"rift-go/internal/config"
	"rift-go/internal/model"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
)

func TestOpenMigratesInlineTable(t *testing.T) {
	db, err := Open(sqlite.Open("file::memory:"), config.MySQLConfig{MaxOpenConns: 1})
	require.NoError(t, err)
	t.Cleanup(func() { _ = Close(db) })

	assert.True(t, db.Migrator().HasTable(&model.InlineFile{}))
	assert.True(t, db.Migrator().HasIndex(&model.InlineFile{}, "Checksum"))
}

func TestOpenRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()

	rdb, err := OpenRedis(context.Background(), config.RedisConfig{Addr: addr})
	require.NoError(t, err)
	assert.NoError(t, rdb.Close())

	// Close 之后 Addr 不可用
	mr.Close()
	_, err = OpenRedis(context.Background(), config.RedisConfig{Addr: addr})
	assert.Error(t, err)
}
