package service

import (
	"context"
	"errors"
	"io"
	"testing"

	"rift-go/internal/model"
	"rift-go/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetrieveUnknownChecksum(t *testing.T) {
	f := newFixture(t)
	_, err := uploadBytes(t, f.upload, []byte("something else"), "other.txt")
	require.NoError(t, err)

	dl, err := f.retrieval.Retrieve(context.Background(), HashBytes([]byte("never uploaded")))
	assert.Nil(t, dl)
	assert.Equal(t, KindNotFound, KindOf(err))
}

func TestRetrievePrefersInlineTier(t *testing.T) {
	f := newFixture(t)
	data := []byte("tiny")
	res, err := uploadBytes(t, f.upload, data, "tiny.txt")
	require.NoError(t, err)

	dl, err := f.retrieval.Retrieve(context.Background(), res.Record.Checksum)
	require.NoError(t, err)
	defer dl.Body.Close()
	assert.Equal(t, model.TierInline, dl.Tier)
	assert.Equal(t, int64(len(data)), dl.Size)
	assert.Equal(t, res.Record.Checksum, dl.Checksum)
}

// brokenInline 对所有查询返回存储错误。
type brokenInline struct {
	repository.InlineRepository
	err error
}

func (b brokenInline) Get(context.Context, string) (*repository.InlineObject, error) {
	return nil, b.err
}

func TestRetrieveStorageFailure(t *testing.T) {
	f := newFixture(t)
	boom := errors.New("database is locked")
	svc := NewRetrievalService(brokenInline{InlineRepository: f.inline, err: boom}, f.chunked)

	_, err := svc.Retrieve(context.Background(), HashBytes([]byte("x")))
	assert.Equal(t, KindStorageFailure, KindOf(err))
	assert.ErrorIs(t, err, boom)
}

func TestRetrieveEmptyFile(t *testing.T) {
	f := newFixture(t)
	res, err := uploadBytes(t, f.upload, []byte{}, "empty")
	require.NoError(t, err)

	dl, err := f.retrieval.Retrieve(context.Background(), res.Record.Checksum)
	require.NoError(t, err)
	got, err := io.ReadAll(dl.Body)
	require.NoError(t, err)
	assert.Empty(t, got)
}
