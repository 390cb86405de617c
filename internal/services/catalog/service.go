package catalog

import (
	"context"
	"errors"
	"fmt"

	pgrepo "github.com/olegbarsky/digistore/internal/repo/postgres"
)

var (
	ErrValidation      = errors.New("validation error")
	ErrProjectNotFound = errors.New("project not found")
)

type Store interface {
	FindByID(ctx context.Context, projectID int64) (pgrepo.ProjectRecord, error)
}

// Service is the read-only catalog lookup the ledger consults for
// prices, currencies, and download references.
type Service struct {
	store Store
}

func NewService(store Store) *Service {
	return &Service{store: store}
}

func (s *Service) Get(ctx context.Context, projectID int64) (pgrepo.ProjectRecord, error) {
	if projectID <= 0 {
		return pgrepo.ProjectRecord{}, ErrValidation
	}
	if s.store == nil {
		return pgrepo.ProjectRecord{}, fmt.Errorf("catalog store is nil")
	}

	record, err := s.store.FindByID(ctx, projectID)
	if err != nil {
		if errors.Is(err, pgrepo.ErrProjectNotFound) {
			return pgrepo.ProjectRecord{}, ErrProjectNotFound
		}
		return pgrepo.ProjectRecord{}, err
	}

	return record, nil
}
