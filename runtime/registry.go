package runtime

import (
	"log/slog"
	"sort"
	"sync"

	"chat-house/domain"
	"chat-house/errors"
)

// GroupInfo is a point-in-time view of one group, used by telemetry and
// the debug roster.
type GroupInfo struct {
	Name    string
	Type    domain.GroupType
	Admin   string
	Members int
	Waiting int
	Muted   int
}

// Registry is the shared mapping from group name to Group. Lookups and
// creations serialize on one mutex so two sessions can never race two
// distinct groups under the same name. A destroyed group counts as
// absent: its name may be rebound to a fresh Group, while stale
// references keep observing the dead instance.
type Registry struct {
	mu     sync.RWMutex
	log    *slog.Logger
	groups map[string]*domain.Group
}

func NewRegistry(log *slog.Logger) *Registry {
	return &Registry{
		log:    log,
		groups: make(map[string]*domain.Group),
	}
}

// Lookup returns the live group bound to name. Dead groups are treated
// as absent.
func (r *Registry) Lookup(name string) (*domain.Group, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	group, ok := r.groups[name]
	if !ok || !group.Alive() {
		return nil, false
	}
	return group, true
}

// Create binds name to a fresh group. When a live group already holds
// the name (two sessions racing the same creation), ErrGroupNameTaken is
// returned and the caller should fall back to joining the winner.
func (r *Registry) Create(name string, group *domain.Group) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.groups[name]; ok && existing.Alive() {
		return errors.ErrGroupNameTaken
	}
	r.groups[name] = group
	r.log.Info("group created", "group", name, "type", string(group.Type()), "admin", group.Admin())
	return nil
}

// Snapshot lists the live groups sorted by name.
func (r *Registry) Snapshot() []GroupInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var infos []GroupInfo
	for name, group := range r.groups {
		if !group.Alive() {
			continue
		}
		infos = append(infos, GroupInfo{
			Name:    name,
			Type:    group.Type(),
			Admin:   group.Admin(),
			Members: len(group.Members()),
			Waiting: len(group.WaitingUsers()),
			Muted:   len(group.MutedUsers()),
		})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos
}

// Sweep drops registry entries whose group is dead and whose name was
// never rebound, returning how many were dropped.
func (r *Registry) Sweep() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	swept := 0
	for name, group := range r.groups {
		if !group.Alive() {
			delete(r.groups, name)
			swept++
		}
	}
	return swept
}
