package credential

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		key     Key
		wantErr bool
	}{
		{"complete", Key{OwnerID: "owner-1", TenantID: "clinic-a"}, false},
		{"missing owner", Key{TenantID: "clinic-a"}, true},
		{"missing tenant", Key{OwnerID: "owner-1"}, true},
		{"whitespace owner", Key{OwnerID: "  ", TenantID: "clinic-a"}, true},
		{"empty", Key{}, true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := tt.key.Validate()
			if tt.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestKeyString(t *testing.T) {
	t.Parallel()

	key := Key{OwnerID: "owner-1", TenantID: "clinic-a"}
	assert.Equal(t, "clinic-a/owner-1", key.String())
}

func TestMatchesTenant(t *testing.T) {
	t.Parallel()

	set := CredentialSet{OwnerID: "owner-1", TenantID: "clinic-a"}
	assert.True(t, set.MatchesTenant("clinic-a"))
	assert.False(t, set.MatchesTenant("clinic-b"))

	// Legacy records without a tenant tag never match anything.
	legacy := CredentialSet{OwnerID: "owner-1"}
	assert.False(t, legacy.MatchesTenant("clinic-a"))
	assert.False(t, legacy.MatchesTenant(""))
}

func TestResolutionConfigured(t *testing.T) {
	t.Parallel()

	res := Resolved(CredentialSet{OwnerID: "owner-1", TenantID: "clinic-a"}, SourceLocal)
	assert.True(t, res.Configured())
	assert.Equal(t, SourceLocal, res.Source)
	require.NotNil(t, res.Credentials)
	assert.Equal(t, SourceLocal, res.Credentials.SourceTier)

	none := NotConfigured()
	assert.False(t, none.Configured())
	assert.Nil(t, none.Credentials)
	assert.Equal(t, SourceNone, none.Source)
}

func TestResolvedCopiesTheRecord(t *testing.T) {
	t.Parallel()

	set := CredentialSet{OwnerID: "owner-1", TenantID: "clinic-a", SecretKey: "sk-1"}
	res := Resolved(set, SourceSession)

	res.Credentials.SecretKey = "mutated"
	assert.Equal(t, "sk-1", set.SecretKey)
}
