package natsbackend

import (
	"context"
	"encoding/json"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/whiteheaddmark/Observatory-Databases/adapter"
	gwerrors "github.com/whiteheaddmark/Observatory-Databases/errors"
)

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"valid", Config{ID: "telemetry", SubjectPrefix: "obs.data"}, false},
		{"missing id", Config{SubjectPrefix: "obs.data"}, true},
		{"missing prefix", Config{ID: "telemetry"}, true},
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

func TestBackend_Subject(t *testing.T) {
	b, err := New(Config{ID: "telemetry", SubjectPrefix: "obs.data"}, nil)
	require.NoError(t, err)

	subject := b.Subject(adapter.Request{
		Resource:  "calmodels",
		Operation: adapter.OpFetch,
	})
	assert.Equal(t, "obs.data.calmodels.fetch", subject)
}

func TestBackend_NilConnectionUnreachable(t *testing.T) {
	b, err := New(Config{ID: "telemetry", SubjectPrefix: "obs.data"}, nil)
	require.NoError(t, err)

	_, err = b.Invoke(context.Background(), adapter.Request{
		Resource:  "calmodels",
		Operation: adapter.OpFetch,
	})

	require.Error(t, err)
	assert.Equal(t, gwerrors.KindUnreachable, gwerrors.KindOf(err))
	assert.True(t, gwerrors.IsRetriable(err))
}

func TestBackend_EncodeWireRequest(t *testing.T) {
	b, err := New(Config{ID: "telemetry", SubjectPrefix: "obs.data"}, nil)
	require.NoError(t, err)

	q := url.Values{}
	q.Set("band", "L")
	wire := b.encode(adapter.Request{
		Resource:    "calmodels",
		Version:     "v2",
		Operation:   adapter.OpFetch,
		PathParams:  map[string]string{"id": "7"},
		QueryParams: q,
		Body:        json.RawMessage(`{"x":1}`),
		RequestID:   "req-9",
	})

	assert.Equal(t, adapter.OpFetch, wire.Operation)
	assert.Equal(t, "calmodels", wire.Resource)
	assert.Equal(t, "v2", wire.Version)
	assert.Equal(t, "7", wire.ID)
	assert.Equal(t, "L", wire.Query["band"])
	assert.Equal(t, "req-9", wire.RequestID)

	// Wire shape round-trips as JSON.
	data, err := json.Marshal(wire)
	require.NoError(t, err)
	var decoded wireRequest
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, wire.Resource, decoded.Resource)
}

func TestBackend_DefaultCapabilitiesFetchOnly(t *testing.T) {
	b, err := New(Config{ID: "telemetry", SubjectPrefix: "obs.data"}, nil)
	require.NoError(t, err)

	assert.True(t, b.Capabilities().Supports(adapter.OpFetch))
	assert.False(t, b.Capabilities().Supports(adapter.OpReplace))
}
