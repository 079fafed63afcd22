package adapter

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOperationForMethod(t *testing.T) {
	tests := []struct {
		method   string
		expected Operation
		ok       bool
	}{
		{http.MethodGet, OpFetch, true},
		{http.MethodPost, OpCreate, true},
		{http.MethodPut, OpReplace, true},
		{http.MethodPatch, OpPatch, true},
		{http.MethodDelete, OpDelete, true},
		{http.MethodHead, "", false},
		{http.MethodOptions, "", false},
	}

	for _, test := range tests {
		t.Run(test.method, func(t *testing.T) {
			op, ok := OperationForMethod(test.method)
			assert.Equal(t, test.ok, ok)
			assert.Equal(t, test.expected, op)
		})
	}
}

func TestOperation_Mutating(t *testing.T) {
	assert.False(t, OpFetch.Mutating())
	assert.True(t, OpCreate.Mutating())
	assert.True(t, OpReplace.Mutating())
	assert.True(t, OpPatch.Mutating())
	assert.True(t, OpDelete.Mutating())
}

func TestCapabilities(t *testing.T) {
	caps := NewCapabilities(OpFetch, OpCreate)

	assert.True(t, caps.Supports(OpFetch))
	assert.True(t, caps.Supports(OpCreate))
	assert.False(t, caps.Supports(OpDelete))
	assert.Equal(t, []Operation{OpFetch, OpCreate}, caps.List())
}

func TestRequest_ItemID(t *testing.T) {
	req := Request{PathParams: map[string]string{"id": "42"}}
	assert.Equal(t, "42", req.ItemID())

	assert.Equal(t, "", Request{}.ItemID())
}
