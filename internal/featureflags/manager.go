// Package featureflags toggles optional behavior of the feed from the
// FEATURE_FLAGS setting.
package featureflags

import (
	"hash/fnv"
	"sort"
	"strconv"
	"strings"
)

// Flags consulted by the feed service.
const (
	// RealtimeNotifications pushes new notifications to open websocket streams.
	RealtimeNotifications = "realtime_notifications"
	// DomainEvents publishes comment, reaction and post events to the broker.
	DomainEvents = "domain_events"
	// MediaThumbnails renders a webp thumbnail for uploaded images.
	MediaThumbnails = "media_thumbnails"
	// ReactionCountCache serves reaction counts through Redis.
	ReactionCountCache = "reaction_count_cache"
)

// Known lists every flag the service reads, with the value used when
// FEATURE_FLAGS does not mention it.
var Known = map[string]bool{
	RealtimeNotifications: true,
	DomainEvents:          true,
	MediaThumbnails:       true,
	ReactionCountCache:    true,
}

// rule is one parsed flag. percent is only meaningful when rollout is set.
type rule struct {
	on      bool
	rollout bool
	percent int
}

// Manager evaluates flags written as a comma-separated key=value list, e.g.
// "domain_events=off,media_thumbnails=25%". Values are on/off (true/false,
// 1/0) or a percentage rolled out deterministically by user id. Malformed
// entries are ignored.
type Manager struct {
	rules map[string]rule
}

// NewManager parses raw into a Manager.
func NewManager(raw string) *Manager {
	rules := make(map[string]rule)
	for _, pair := range strings.Split(raw, ",") {
		key, value, ok := strings.Cut(pair, "=")
		if !ok {
			continue
		}
		key, value = normalize(key), normalize(value)
		if key == "" {
			continue
		}
		if r, ok := parseRule(value); ok {
			rules[key] = r
		}
	}
	return &Manager{rules: rules}
}

func parseRule(value string) (rule, bool) {
	switch value {
	case "on", "true", "1":
		return rule{on: true}, true
	case "off", "false", "0":
		return rule{}, true
	}
	pct, found := strings.CutSuffix(value, "%")
	if !found {
		return rule{}, false
	}
	n, err := strconv.Atoi(pct)
	if err != nil {
		return rule{}, false
	}
	return rule{rollout: true, percent: min(max(n, 0), 100)}, true
}

// On reports whether name is enabled for everyone. Partial rollouts are off
// here because there is no user to bucket; a nil Manager uses the defaults.
func (m *Manager) On(name string) bool {
	return m.For(name, 0)
}

// For reports whether name is enabled for userID. A user id of zero only
// passes a rollout at 100%.
func (m *Manager) For(name string, userID uint) bool {
	name = normalize(name)
	if m == nil {
		return Known[name]
	}
	r, ok := m.rules[name]
	if !ok {
		return Known[name]
	}
	if !r.rollout {
		return r.on
	}
	switch {
	case r.percent == 0:
		return false
	case r.percent == 100:
		return true
	case userID == 0:
		return false
	}
	return bucket(name, userID) < r.percent
}

// Snapshot evaluates every known and configured flag for userID.
func (m *Manager) Snapshot(userID uint) map[string]bool {
	out := make(map[string]bool)
	for _, name := range m.Names() {
		out[name] = m.For(name, userID)
	}
	return out
}

// Names returns the known flags plus any extra configured ones, sorted.
func (m *Manager) Names() []string {
	seen := make(map[string]struct{}, len(Known))
	for name := range Known {
		seen[name] = struct{}{}
	}
	if m != nil {
		for name := range m.rules {
			seen[name] = struct{}{}
		}
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func bucket(name string, userID uint) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(name + ":" + strconv.FormatUint(uint64(userID), 10)))
	return int(h.Sum32() % 100)
}
