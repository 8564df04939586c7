package state

import (
	"sort"
	"time"

	"github.com/rxtech-lab/argo-shortbot/internal/types"
)

// AddCooldown blocks a symbol until expiry, replacing any earlier entry, and asks persistence to store it.
func (s *Store) AddCooldown(symbol, reason string, expiry time.Time) types.CooldownEntry {
	s.mu.Lock()
	entry := types.CooldownEntry{Symbol: symbol, Reason: reason, Start: s.now(), Expiry: expiry}
	s.cooldowns[symbol] = entry
	s.mu.Unlock()

	s.publish(pendingEvent{types.EventCooldownAdd, types.CooldownAddPayload{Entry: entry}})

	return entry
}

// RemoveCooldown unblocks a symbol.
func (s *Store) RemoveCooldown(symbol string) bool {
	s.mu.Lock()
	_, ok := s.cooldowns[symbol]
	delete(s.cooldowns, symbol)
	s.mu.Unlock()

	s.publish(pendingEvent{types.EventCooldownRemove, types.CooldownRemovePayload{Symbol: symbol}})

	return ok
}

// RemoveAllCooldowns unblocks every symbol and returns how many entries were dropped.
func (s *Store) RemoveAllCooldowns() int {
	s.mu.Lock()
	symbols := make([]string, 0, len(s.cooldowns))

	for symbol := range s.cooldowns {
		symbols = append(symbols, symbol)
	}

	s.cooldowns = make(map[string]types.CooldownEntry)
	s.mu.Unlock()

	for _, symbol := range symbols {
		s.publish(pendingEvent{types.EventCooldownRemove, types.CooldownRemovePayload{Symbol: symbol}})
	}

	return len(symbols)
}

// IsOnCooldown reports whether the symbol has an unexpired entry.
func (s *Store) IsOnCooldown(symbol string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.cooldowns[symbol]

	return ok && entry.Active(s.now())
}

// Cooldown returns the entry of a symbol, expired or not.
func (s *Store) Cooldown(symbol string) (types.CooldownEntry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.cooldowns[symbol]

	return entry, ok
}

// Cooldowns returns every entry, soonest expiry first.
func (s *Store) Cooldowns() []types.CooldownEntry {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.cooldownsLocked()
}

func (s *Store) cooldownsLocked() []types.CooldownEntry {
	out := make([]types.CooldownEntry, 0, len(s.cooldowns))
	for _, entry := range s.cooldowns {
		out = append(out, entry)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Expiry.Before(out[j].Expiry) })

	return out
}

// RestoreCooldowns loads persisted entries without publishing.
func (s *Store) RestoreCooldowns(entries []types.CooldownEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, entry := range entries {
		s.cooldowns[entry.Symbol] = entry
	}
}
