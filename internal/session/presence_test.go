package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPresenceContainsLocalUserFromTheStart(t *testing.T) {
	p := NewPresenceSet("alice")
	assert.Equal(t, []string{"alice"}, p.Members())
}

func TestPresenceJoinLeave(t *testing.T) {
	p := NewPresenceSet("alice")

	p.Add("bob")
	p.Add("carol")
	assert.Equal(t, []string{"alice", "bob", "carol"}, p.Members())

	p.Remove("bob")
	assert.Equal(t, []string{"alice", "carol"}, p.Members())
}

func TestPresenceNeverRemovesLocalUser(t *testing.T) {
	p := NewPresenceSet("alice")

	p.Remove("alice")
	assert.True(t, p.Contains("alice"), "explicit remove must not evict the local user")

	p.Reconcile([]string{"bob"})
	assert.True(t, p.Contains("alice"), "reconciliation without the local user must not evict them")
}

func TestReconcileMergesRatherThanReplaces(t *testing.T) {
	p := NewPresenceSet("alice")
	p.Add("dave") // JOIN frame the server list may not reflect yet

	p.Reconcile([]string{"bob", "carol"})

	assert.Equal(t, []string{"alice", "bob", "carol", "dave"}, p.Members(),
		"a reconciliation racing a fresher JOIN must not evict anyone")
}

func TestReconcileIgnoresEmptyNames(t *testing.T) {
	p := NewPresenceSet("alice")
	p.Reconcile([]string{"", "bob"})
	assert.Equal(t, []string{"alice", "bob"}, p.Members())
}
