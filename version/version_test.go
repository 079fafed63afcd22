package version

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	gwerrors "github.com/whiteheaddmark/Observatory-Databases/errors"
)

func newResolver(t *testing.T, cfg Config) *Resolver {
	t.Helper()
	r, err := NewResolver(cfg, nil)
	require.NoError(t, err)
	return r
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"none", Config{Strategy: StrategyNone, Default: "v1"}, false},
		{"uri", Config{Strategy: StrategyURI, Default: "v1"}, false},
		{"empty strategy defaults to none", Config{Default: "v1"}, false},
		{"unknown strategy", Config{Strategy: "content-type", Default: "v1"}, true},
		{"missing default", Config{Strategy: StrategyHeader}, true},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			err := test.cfg.Validate()
			if test.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestConfig_ValidateDefaults(t *testing.T) {
	cfg := Config{Strategy: StrategyQuery, Default: "v1"}
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "version", cfg.QueryParam)
	assert.Equal(t, "X-API-Version", cfg.Header)
}

func TestResolve_None(t *testing.T) {
	r := newResolver(t, Config{Strategy: StrategyNone, Default: "v1"})

	req := httptest.NewRequest("GET", "/calmodels", nil)
	req.Header.Set("X-API-Version", "v7") // ignored under none

	v, err := r.Resolve(req, "")
	require.NoError(t, err)
	assert.Equal(t, "v1", v)
}

func TestResolve_URI(t *testing.T) {
	r := newResolver(t, Config{Strategy: StrategyURI, Default: "v1"})
	req := httptest.NewRequest("GET", "/v2/calmodels", nil)

	v, err := r.Resolve(req, "v2")
	require.NoError(t, err)
	assert.Equal(t, "v2", v)
}

func TestResolve_URIMissingSegment(t *testing.T) {
	r := newResolver(t, Config{Strategy: StrategyURI, Default: "v1"})
	req := httptest.NewRequest("GET", "/calmodels", nil)

	_, err := r.Resolve(req, "")
	require.Error(t, err)
	assert.Equal(t, gwerrors.KindMissingVersion, gwerrors.KindOf(err))
}

func TestResolve_Query(t *testing.T) {
	r := newResolver(t, Config{Strategy: StrategyQuery, Default: "v1"})

	req := httptest.NewRequest("GET", "/calmodels?version=v3", nil)
	v, err := r.Resolve(req, "")
	require.NoError(t, err)
	assert.Equal(t, "v3", v)

	// Absent parameter resolves silently to the default.
	req = httptest.NewRequest("GET", "/calmodels", nil)
	v, err = r.Resolve(req, "")
	require.NoError(t, err)
	assert.Equal(t, "v1", v)
}

func TestResolve_QueryCustomParam(t *testing.T) {
	r := newResolver(t, Config{Strategy: StrategyQuery, Default: "v1", QueryParam: "api_version"})

	req := httptest.NewRequest("GET", "/calmodels?api_version=v2&version=v9", nil)
	v, err := r.Resolve(req, "")
	require.NoError(t, err)
	assert.Equal(t, "v2", v)
}

func TestResolve_Header(t *testing.T) {
	r := newResolver(t, Config{Strategy: StrategyHeader, Default: "v1"})

	req := httptest.NewRequest("GET", "/calmodels", nil)
	req.Header.Set("X-API-Version", "v2")
	v, err := r.Resolve(req, "")
	require.NoError(t, err)
	assert.Equal(t, "v2", v)

	// Absent header resolves to the default, never an error.
	req = httptest.NewRequest("GET", "/calmodels", nil)
	v, err = r.Resolve(req, "")
	require.NoError(t, err)
	assert.Equal(t, "v1", v)
}
