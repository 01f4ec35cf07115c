package ratelimit

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultCatalog(t *testing.T) {
	catalog := DefaultCatalog()

	names := []string{
		AuthRegister, AuthLogin, AuthPasswordReset,
		APIRead, APIWrite, UploadMedia, UploadMod, Reports,
	}
	for _, name := range names {
		p, err := catalog.Get(name)
		require.NoError(t, err, name)
		assert.Equal(t, name, p.Name)
		assert.NoError(t, p.Validate())
	}
	assert.Len(t, catalog.Names(), len(names))

	login := catalog.MustGet(AuthLogin)
	reads := catalog.MustGet(APIRead)
	assert.Less(t, login.MaxRequests, reads.MaxRequests, "auth must be stricter than reads")
}

func TestCatalog_Get_Unknown(t *testing.T) {
	_, err := DefaultCatalog().Get("NOPE")
	assert.ErrorIs(t, err, ErrUnknownPolicy)

	assert.Panics(t, func() { DefaultCatalog().MustGet("NOPE") })
}

func TestCatalog_Policies_Sorted(t *testing.T) {
	policies := DefaultCatalog().Policies()
	for i := 1; i < len(policies); i++ {
		assert.Less(t, policies[i-1].Name, policies[i].Name)
	}
}

func TestNewCatalog_Rejects(t *testing.T) {
	tests := []struct {
		name     string
		policies []Policy
	}{
		{"missing name", []Policy{{Identifier: "a", MaxRequests: 1, WindowSeconds: 1}}},
		{"invalid policy", []Policy{{Name: "A", Identifier: "a", WindowSeconds: 1}}},
		{"duplicate name", []Policy{
			{Name: "A", Identifier: "a", MaxRequests: 1, WindowSeconds: 1},
			{Name: "A", Identifier: "b", MaxRequests: 1, WindowSeconds: 1},
		}},
		{"shared identifier", []Policy{
			{Name: "A", Identifier: "same", MaxRequests: 1, WindowSeconds: 1},
			{Name: "B", Identifier: "same", MaxRequests: 1, WindowSeconds: 1},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewCatalog(tt.policies...)
			assert.ErrorIs(t, err, ErrInvalidPolicy)
		})
	}
}

func TestParseCatalog(t *testing.T) {
	doc := []byte(`
policies:
  AUTH_LOGIN:
    max_requests: 3
  SEARCH:
    identifier: search
    max_requests: 20
    window_seconds: 10
`)

	catalog, err := ParseCatalog(doc)
	require.NoError(t, err)

	login := catalog.MustGet(AuthLogin)
	assert.Equal(t, 3, login.MaxRequests)
	assert.Equal(t, DefaultCatalog().MustGet(AuthLogin).WindowSeconds, login.WindowSeconds)
	assert.Equal(t, "auth-login", login.Identifier)

	search := catalog.MustGet("SEARCH")
	assert.Equal(t, Policy{Name: "SEARCH", Identifier: "search", MaxRequests: 20, WindowSeconds: 10}, search)

	assert.Equal(t, DefaultCatalog().MustGet(Reports), catalog.MustGet(Reports))
}

func TestParseCatalog_Invalid(t *testing.T) {
	t.Run("bad yaml", func(t *testing.T) {
		_, err := ParseCatalog([]byte("policies: ["))
		assert.Error(t, err)
	})

	t.Run("incomplete new policy", func(t *testing.T) {
		_, err := ParseCatalog([]byte("policies:\n  SEARCH:\n    max_requests: 5\n"))
		assert.ErrorIs(t, err, ErrInvalidPolicy)
	})

	t.Run("zero window override", func(t *testing.T) {
		_, err := ParseCatalog([]byte("policies:\n  REPORTS:\n    window_seconds: 0\n"))
		assert.ErrorIs(t, err, ErrInvalidPolicy)
	})
}

func TestLoadCatalogFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policies.yaml")
	require.NoError(t, os.WriteFile(path, []byte("policies:\n  UPLOAD_MOD:\n    max_requests: 2\n"), 0o600))

	catalog, err := LoadCatalogFile(path)
	require.NoError(t, err)
	assert.Equal(t, 2, catalog.MustGet(UploadMod).MaxRequests)

	_, err = LoadCatalogFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
