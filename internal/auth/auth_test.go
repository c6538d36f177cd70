package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"stockroom/internal/types"
)

func TestSyntheticEmail(t *testing.T) {
	assert.Equal(t, "alice@stockroom.local", SyntheticEmail("Alice", "stockroom.local"))
	assert.Equal(t, "alice", UsernameFromEmail("alice@stockroom.local"))
	assert.Equal(t, "plain", UsernameFromEmail("plain"))
}

func TestNormalizeUsername(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"Alice", "alice", false},
		{"  bob  ", "bob", false},
		{"a.b-c_9", "a.b-c_9", false},
		{"", "", true},
		{"has space", "", true},
		{"sneaky@domain", "", true},
	}
	for _, tt := range tests {
		got, err := NormalizeUsername(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
		} else {
			assert.NoError(t, err, tt.in)
			assert.Equal(t, tt.want, got)
		}
	}
}

func TestDeriveRole(t *testing.T) {
	admins := []string{"boss", "Second"}
	assert.Equal(t, types.RoleAdmin, DeriveRole("boss", admins))
	assert.Equal(t, types.RoleAdmin, DeriveRole("second", admins), "case insensitive")
	assert.Equal(t, types.RoleMember, DeriveRole("alice", admins))
	assert.Equal(t, types.RoleMember, DeriveRole("boss", nil))
}

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("hunter2")
	assert.NoError(t, err)
	assert.NotEqual(t, "hunter2", hash)

	assert.True(t, VerifyPassword(hash, "hunter2"))
	assert.False(t, VerifyPassword(hash, "hunter3"))
	assert.False(t, VerifyPassword("not-a-hash", "hunter2"))
}
