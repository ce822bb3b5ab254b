package service

import (
	"errors"

	"github.com/Full-Stack-Sanctus/Remittra/internal/config"
)

// ErrTierLimitExceeded is returned before any mutation when a user's
// verification level does not allow the attempted amount or action.
var ErrTierLimitExceeded = errors.New("tier limit exceeded")

// TierGate maps a verification level to its limits. Pure lookups; all state
// lives in configuration.
type TierGate struct {
	limits [3]config.TierLimit
}

func NewTierGate(cfg config.TierConfig) *TierGate {
	return &TierGate{limits: [3]config.TierLimit{cfg.Tier1, cfg.Tier2, cfg.Tier3}}
}

func (g *TierGate) Limits(level int) config.TierLimit {
	if level < 1 || level > 3 {
		// Unknown levels get the most restrictive tier.
		return g.limits[0]
	}
	return g.limits[level-1]
}

// CheckJoin authorizes committing or contributing cycleAmount at the given
// level.
func (g *TierGate) CheckJoin(level int, cycleAmount int64) error {
	lim := g.Limits(level)
	if lim.MaxJoinAmount > 0 && cycleAmount > lim.MaxJoinAmount {
		return ErrTierLimitExceeded
	}
	return nil
}

// CheckCreate authorizes creating a circle with the given cycle amount.
func (g *TierGate) CheckCreate(level int, cycleAmount int64) error {
	lim := g.Limits(level)
	if !lim.CanCreateCircle {
		return ErrTierLimitExceeded
	}
	if lim.MaxCircleCreateAmount > 0 && cycleAmount > lim.MaxCircleCreateAmount {
		return ErrTierLimitExceeded
	}
	return nil
}
