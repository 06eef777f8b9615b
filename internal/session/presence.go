package session

import (
	"sort"
	"sync"
)

// PresenceSet tracks which usernames are currently online. JOIN frames add,
// LEAVE frames remove, and a periodic reconciliation fetch merges in the
// authoritative server list. Merges are unions: a reconciliation response
// racing with a fresher JOIN frame never evicts anyone, so a user who left
// can linger until the next LEAVE frame or cycle. That staleness window is
// accepted rather than attempting last-write-wins.
type PresenceSet struct {
	mu        sync.RWMutex
	localUser string
	users     map[string]struct{}
}

// NewPresenceSet creates a presence set that always contains localUser.
func NewPresenceSet(localUser string) *PresenceSet {
	return &PresenceSet{
		localUser: localUser,
		users:     map[string]struct{}{localUser: {}},
	}
}

func (p *PresenceSet) Add(user string) {
	if user == "" {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.users[user] = struct{}{}
}

// Remove drops user from the set. The local user is never removed.
func (p *PresenceSet) Remove(user string) {
	if user == p.localUser {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.users, user)
}

// Reconcile merges the server-reported list into the set. The local user
// stays present even when absent from serverList.
func (p *PresenceSet) Reconcile(serverList []string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, user := range serverList {
		if user != "" {
			p.users[user] = struct{}{}
		}
	}
	p.users[p.localUser] = struct{}{}
}

// Contains reports membership.
func (p *PresenceSet) Contains(user string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, ok := p.users[user]
	return ok
}

// Members returns the current membership, sorted for stable display.
func (p *PresenceSet) Members() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()

	members := make([]string, 0, len(p.users))
	for user := range p.users {
		members = append(members, user)
	}
	sort.Strings(members)
	return members
}
