package server

import (
	"context"
	"errors"
	"fmt"

	"github.com/chpollin/depcha-dashboard/internal/domain"
	"github.com/chpollin/depcha-dashboard/internal/graph"
)

// HealthService defines behaviour for readiness probes.
type HealthService interface {
	Probe(ctx context.Context) error
}

// GraphHealthService verifies graph connectivity as part of health checks.
// A nil client means graph export is disabled and always passes.
type GraphHealthService struct {
	Client graph.Client
}

// Probe implements the HealthService interface.
func (s GraphHealthService) Probe(ctx context.Context) error {
	if s.Client == nil {
		return nil
	}
	if err := s.Client.VerifyConnectivity(ctx); err != nil {
		return fmt.Errorf("graph: %w", err)
	}
	return nil
}

// CatalogueLister is the part of the context service the catalogue probe needs.
type CatalogueLister interface {
	Contexts(ctx context.Context) ([]domain.Context, error)
}

// CatalogueHealthService checks that the context catalogue can be listed.
type CatalogueHealthService struct {
	Catalogue CatalogueLister
}

// Probe implements the HealthService interface.
func (s CatalogueHealthService) Probe(ctx context.Context) error {
	if s.Catalogue == nil {
		return nil
	}
	if _, err := s.Catalogue.Contexts(ctx); err != nil {
		return fmt.Errorf("catalogue: %w", err)
	}
	return nil
}

// HealthChecks runs every probe and joins their failures.
type HealthChecks []HealthService

// Probe implements the HealthService interface.
func (c HealthChecks) Probe(ctx context.Context) error {
	var errs []error
	for _, check := range c {
		if err := check.Probe(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
