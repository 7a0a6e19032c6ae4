package app

import (
	"hash/fnv"
	"sync"

	"github.com/dkeye/Telehealth/internal/core"
	"github.com/dkeye/Telehealth/internal/domain"
	"github.com/rs/zerolog/log"
)

const registryShards = 32

type connSet map[core.SignalConnection]struct{}

type registryShard struct {
	mu    sync.RWMutex
	users map[domain.UserID]connSet
}

// Registry tracks live connections per user. One user may hold many
// connections (multi-device). Entries own their handle and close it on
// Disconnect.
type Registry struct {
	name   string
	shards [registryShards]*registryShard
}

var _ core.ConnectionRegistry = (*Registry)(nil)

func NewRegistry(name string) *Registry {
	r := &Registry{name: name}
	for i := range r.shards {
		r.shards[i] = &registryShard{users: make(map[domain.UserID]connSet)}
	}
	return r
}

func (r *Registry) shard(uid domain.UserID) *registryShard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(uid))
	return r.shards[h.Sum32()%registryShards]
}

func (r *Registry) Connect(uid domain.UserID, conn core.SignalConnection) {
	s := r.shard(uid)
	s.mu.Lock()
	set, ok := s.users[uid]
	if !ok {
		set = make(connSet)
		s.users[uid] = set
	}
	set[conn] = struct{}{}
	n := len(set)
	s.mu.Unlock()
	log.Info().Str("module", "app.registry").Str("registry", r.name).Str("user", string(uid)).Int("conns", n).Msg("connected")
}

// Disconnect removes conn from uid's set and closes it. Unknown handles are
// ignored.
func (r *Registry) Disconnect(uid domain.UserID, conn core.SignalConnection) {
	s := r.shard(uid)
	s.mu.Lock()
	set, ok := s.users[uid]
	if !ok {
		s.mu.Unlock()
		return
	}
	if _, ok := set[conn]; !ok {
		s.mu.Unlock()
		return
	}
	delete(set, conn)
	n := len(set)
	if n == 0 {
		delete(s.users, uid)
	}
	s.mu.Unlock()

	conn.Close()
	log.Info().Str("module", "app.registry").Str("registry", r.name).Str("user", string(uid)).Int("conns", n).Msg("disconnected")
}

func (r *Registry) ConnectionsFor(uid domain.UserID) []core.SignalConnection {
	s := r.shard(uid)
	s.mu.RLock()
	defer s.mu.RUnlock()
	set, ok := s.users[uid]
	if !ok {
		return nil
	}
	out := make([]core.SignalConnection, 0, len(set))
	for c := range set {
		out = append(out, c)
	}
	return out
}

// AllConnections snapshots every shard in turn. Each handle appears once.
func (r *Registry) AllConnections() []core.UserConnection {
	var out []core.UserConnection
	for _, s := range r.shards {
		s.mu.RLock()
		for uid, set := range s.users {
			for c := range set {
				out = append(out, core.UserConnection{UserID: uid, Conn: c})
			}
		}
		s.mu.RUnlock()
	}
	return out
}

// Count returns the number of live handles.
func (r *Registry) Count() int {
	n := 0
	for _, s := range r.shards {
		s.mu.RLock()
		for _, set := range s.users {
			n += len(set)
		}
		s.mu.RUnlock()
	}
	return n
}

// Users returns the number of users with at least one live handle.
func (r *Registry) Users() int {
	n := 0
	for _, s := range r.shards {
		s.mu.RLock()
		n += len(s.users)
		s.mu.RUnlock()
	}
	return n
}
