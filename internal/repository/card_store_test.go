package repository_test

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"payment-relay/internal/domain"
	"payment-relay/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingCardStore struct{}

func (failingCardStore) Save(context.Context, domain.SavedCard) error {
	return errors.New("disk full")
}

func TestCardStoresSavesToEveryStore(t *testing.T) {
	mem := repository.NewMemoryCardStore()
	var buf bytes.Buffer
	stores := repository.CardStores{failingCardStore{}, mem, repository.NewCardAuditLog(&buf)}

	err := stores.Save(context.Background(), domain.SavedCard{ID: "cc_1", TxID: "tx_1", Last4: "1111"})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	assert.Len(t, mem.List(), 1)
	assert.Contains(t, buf.String(), `"last4":"1111"`)
}

func TestMigrationURL(t *testing.T) {
	assert.Equal(t, "postgres://u@h/db?x-migrations-table=t", repository.MigrationURL("postgres://u@h/db", "t"))
	assert.Equal(t, "postgres://u@h/db?sslmode=disable&x-migrations-table=t", repository.MigrationURL("postgres://u@h/db?sslmode=disable", "t"))
}
