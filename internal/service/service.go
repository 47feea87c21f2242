package service

import (
	"context"

	"go-shortlinks/internal/domain"

	"github.com/google/wire"
)

// ProviderSet is service providers.
var ProviderSet = wire.NewSet(
	NewLinkService,
	NewRedirectService,
	NewAdminService,
	NewHealthService,
)

func actorFrom(ctx context.Context) (*domain.Actor, error) {
	actor, ok := domain.ActorFromContext(ctx)
	if !ok {
		return nil, domain.ErrUnauthenticated
	}
	return actor, nil
}
