package repository

import (
	"context"
	"errors"

	"payment-relay/internal/domain"
)

type CardSaver interface {
	Save(ctx context.Context, card domain.SavedCard) error
}

// CardStores saves every card to each of its stores, for example the
// database and the audit log. All stores are attempted.
type CardStores []CardSaver

func (s CardStores) Save(ctx context.Context, card domain.SavedCard) error {
	var errs []error
	for _, store := range s {
		if err := store.Save(ctx, card); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
