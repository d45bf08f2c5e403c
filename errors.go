package pace

import (
	"goflare.io/pace/internal/models"
)

var (
	ErrUpstreamUnavailable = models.ErrUpstreamUnavailable
	ErrStatsNotFound       = models.ErrStatsNotFound
	ErrInvalidTarget       = models.ErrInvalidTarget
	ErrUnknownStatType     = models.ErrUnknownStatType
	ErrInvalidWeek         = models.ErrInvalidWeek
	ErrUnknownPlayer       = models.ErrUnknownPlayer
	ErrParlayNotFound      = models.ErrParlayNotFound
	ErrLegNotFound         = models.ErrLegNotFound
	ErrInvalidLeg          = models.ErrInvalidLeg
	ErrInvalidParlay       = models.ErrInvalidParlay
)
