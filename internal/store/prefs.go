package store

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/samber/lo"
	log "github.com/sirupsen/logrus"
)

const prefsVersion = 2

// prefsPayload is the on-disk shape of notification preferences.
type prefsPayload struct {
	Version      int      `json:"version"`
	Enabled      *bool    `json:"enabled,omitempty"`
	EnabledFeeds []string `json:"enabledFeeds"`
	KnownFeeds   []string `json:"knownFeeds"`
}

// migratePreferences decodes any historical encoding into the current one.
// A bare JSON array is the legacy form: it becomes both the enabled and the
// known set. Undecodable input yields empty preferences.
func migratePreferences(raw []byte) (prefsPayload, bool) {
	var p prefsPayload
	if err := json.Unmarshal(raw, &p); err == nil {
		migrated := p.Version != prefsVersion
		p.Version = prefsVersion
		return p, migrated
	}
	var legacy []string
	if err := json.Unmarshal(raw, &legacy); err == nil {
		return prefsPayload{
			Version:      prefsVersion,
			EnabledFeeds: legacy,
			KnownFeeds:   append([]string(nil), legacy...),
		}, true
	}
	return prefsPayload{Version: prefsVersion}, true
}

// Preferences holds the global notification toggle and per-feed opt-in.
// enabled is always a subset of known.
type Preferences struct {
	mu      sync.Mutex
	blobs   Blobs
	on      bool
	enabled map[string]struct{}
	known   map[string]struct{}
	logger  *log.Entry
}

// LoadPreferences reads and migrates the stored preferences. A migrated
// payload is written back once in the current format.
func LoadPreferences(ctx context.Context, blobs Blobs, logger *log.Entry) (*Preferences, error) {
	p := &Preferences{
		blobs:   blobs,
		on:      true,
		enabled: map[string]struct{}{},
		known:   map[string]struct{}{},
		logger:  loggerOr(logger, "preferences"),
	}
	raw, err := blobs.Get(ctx, KeyPreferences)
	if errors.Is(err, ErrNotFound) {
		return p, nil
	}
	if err != nil {
		return nil, err
	}
	payload, migrated := migratePreferences(raw)
	if payload.Enabled != nil {
		p.on = *payload.Enabled
	}
	p.known = toSet(payload.KnownFeeds)
	p.enabled = toSet(lo.Filter(payload.EnabledFeeds, func(u string, _ int) bool {
		_, ok := p.known[u]
		return ok
	}))
	if migrated {
		p.logger.Info("notification preferences migrated")
		_ = p.save(ctx)
	}
	return p, nil
}

func (p *Preferences) save(ctx context.Context) error {
	on := p.on
	return persist(ctx, p.blobs, KeyPreferences, prefsPayload{
		Version:      prefsVersion,
		Enabled:      &on,
		EnabledFeeds: sortedKeys(p.enabled),
		KnownFeeds:   sortedKeys(p.known),
	}, p.logger)
}

// Enabled reports the global toggle.
func (p *Preferences) Enabled() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.on
}

func (p *Preferences) SetEnabled(ctx context.Context, on bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.on == on {
		return nil
	}
	p.on = on
	return p.save(ctx)
}

// Reconcile auto-enables feeds seen for the first time and returns the
// enabled set. A feed the user disabled stays disabled.
func (p *Preferences) Reconcile(ctx context.Context, feedURLs []string) map[string]struct{} {
	p.mu.Lock()
	defer p.mu.Unlock()
	changed := false
	for _, u := range feedURLs {
		if _, ok := p.known[u]; ok {
			continue
		}
		p.known[u] = struct{}{}
		p.enabled[u] = struct{}{}
		changed = true
	}
	if changed {
		_ = p.save(ctx)
	}
	return lo.Assign(p.enabled)
}

// SetFeedEnabled opts a feed in or out. The feed becomes known either way.
func (p *Preferences) SetFeedEnabled(ctx context.Context, feedURL string, on bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, wasKnown := p.known[feedURL]
	_, wasOn := p.enabled[feedURL]
	if wasKnown && wasOn == on {
		return nil
	}
	p.known[feedURL] = struct{}{}
	if on {
		p.enabled[feedURL] = struct{}{}
	} else {
		delete(p.enabled, feedURL)
	}
	return p.save(ctx)
}

func (p *Preferences) FeedEnabled(feedURL string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.enabled[feedURL]
	return ok
}

// Prune forgets feeds that are no longer configured.
func (p *Preferences) Prune(ctx context.Context, live []string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	keep := toSet(live)
	changed := false
	for u := range p.known {
		if _, ok := keep[u]; !ok {
			delete(p.known, u)
			delete(p.enabled, u)
			changed = true
		}
	}
	if !changed {
		return nil
	}
	return p.save(ctx)
}

// Snapshot returns the enabled and known sets, sorted.
func (p *Preferences) Snapshot() (enabled, known []string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return sortedKeys(p.enabled), sortedKeys(p.known)
}
