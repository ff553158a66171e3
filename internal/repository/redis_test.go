package repository_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"payment-relay/internal/repository"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisNotifiedSet(t *testing.T) {
	client, mock := redismock.NewClientMock()
	set := repository.NewRedisNotifiedSet(client, 24*time.Hour)

	mock.ExpectSetNX("relay:notified:tx_1", 1, 24*time.Hour).SetVal(true)
	mock.ExpectSetNX("relay:notified:tx_1", 1, 24*time.Hour).SetVal(false)
	mock.ExpectExists("relay:notified:tx_1").SetVal(1)

	first, err := set.CheckAndMark(context.Background(), "tx_1")
	require.NoError(t, err)
	assert.True(t, first)

	again, err := set.CheckAndMark(context.Background(), "tx_1")
	require.NoError(t, err)
	assert.False(t, again)

	found, err := set.Contains(context.Background(), "tx_1")
	require.NoError(t, err)
	assert.True(t, found)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisNotifiedSetError(t *testing.T) {
	client, mock := redismock.NewClientMock()
	set := repository.NewRedisNotifiedSet(client, 0)

	mock.ExpectSetNX("relay:notified:tx_1", 1, 0).SetErr(errors.New("connection reset"))

	ok, err := set.CheckAndMark(context.Background(), "tx_1")
	assert.False(t, ok)
	assert.ErrorContains(t, err, "connection reset")
}
