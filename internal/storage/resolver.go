package storage

import (
	"context"
	"fmt"

	apperrors "csstcli/internal/errors"
)

// Resolver maps a polymer or solvent name as written in a run file to the
// identifier of the registered material
type Resolver interface {
	Resolve(ctx context.Context, kind NameKind, name string) (string, error)
}

// StoreResolver looks names up in the store's name tables
type StoreResolver struct {
	store Store
}

var _ Resolver = (*StoreResolver)(nil)

// NewStoreResolver returns a resolver backed by store
func NewStoreResolver(store Store) *StoreResolver {
	return &StoreResolver{store: store}
}

// Resolve compares searchable forms. Zero matches is NOT_FOUND, more than one
// distinct identifier is AMBIGUOUS.
func (r *StoreResolver) Resolve(ctx context.Context, kind NameKind, name string) (string, error) {
	var ids []string
	err := r.store.RunInTransaction(ctx, func(tx Tx) error {
		var err error
		ids, err = tx.LookupName(ctx, kind, MakeNameSearchable(name))
		return err
	})
	if err != nil {
		return "", err
	}

	resource := fmt.Sprintf("%s %q", kind, name)
	switch len(ids) {
	case 0:
		return "", apperrors.NewNotFoundError(resource).
			WithContext("hint", fmt.Sprintf("register the %s first", kind))
	case 1:
		return ids[0], nil
	default:
		return "", apperrors.NewAmbiguousError(resource, len(ids))
	}
}

// RegisterName records an additional name for a material
func RegisterName(ctx context.Context, store Store, kind NameKind, externalID string, names ...string) error {
	return store.RunInTransaction(ctx, func(tx Tx) error {
		for _, name := range names {
			if MakeNameSearchable(name) == "" {
				return apperrors.NewAppValidationError(fmt.Sprintf("%s name %q has no letters or digits", kind, name))
			}
			if err := tx.AddName(ctx, kind, externalID, name); err != nil {
				return err
			}
		}
		return nil
	})
}
