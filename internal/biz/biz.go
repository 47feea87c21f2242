package biz

import "github.com/google/wire"

// ProviderSet is biz providers.
var ProviderSet = wire.NewSet(
	NewReservedWords,
	NewAllocator,
	NewLimiter,
	NewQuotaTracker,
	NewLinkDirectory,
	NewResolver,
	NewReconciler,
)
