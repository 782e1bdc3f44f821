package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMethod(t *testing.T) {
	tests := []struct {
		input   string
		want    Method
		wantErr bool
	}{
		{"", MethodGet, false},
		{"get", MethodGet, false},
		{" Post ", MethodPost, false},
		{"DELETE", MethodDelete, false},
		{"TRACE", "", true},
		{"CONNECT", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseMethod(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestHostRequestIsImmutable(t *testing.T) {
	body := "a=1"
	headers := map[string]string{"x-custom": "1", "cookie": "k=v"}

	req, err := NewHostRequest("https://example.com", "", headers, &body)
	require.NoError(t, err)

	assert.Equal(t, MethodGet, req.Method())
	assert.True(t, req.HasHeader("Cookie"))
	v, ok := req.Header("X-CUSTOM")
	assert.True(t, ok)
	assert.Equal(t, "1", v)

	// Mutating inputs and returned copies does not leak into the request
	body = "changed"
	headers["X-Other"] = "2"
	req.Headers()["X-Custom"] = "mutated"

	got, ok := req.Body()
	assert.True(t, ok)
	assert.Equal(t, "a=1", got)
	assert.False(t, req.HasHeader("X-Other"))
	v, _ = req.Header("X-Custom")
	assert.Equal(t, "1", v)
}

func TestNewHostRequestRejects(t *testing.T) {
	_, err := NewHostRequest("", MethodGet, nil, nil)
	assert.Error(t, err)

	_, err = NewHostRequest("https://example.com", Method("BREW"), nil, nil)
	assert.Error(t, err)

	req, err := NewHostRequest("https://example.com", MethodHead, nil, nil)
	require.NoError(t, err)
	_, ok := req.Body()
	assert.False(t, ok)
}

func TestOperations(t *testing.T) {
	for _, op := range RequiredOperations {
		assert.True(t, op.IsRequired(), op)
		assert.True(t, op.Valid(), op)
	}
	assert.False(t, OpDiscover.IsRequired())
	assert.True(t, OpDiscover.Valid())

	op, err := ParseOperation("streams")
	require.NoError(t, err)
	assert.Equal(t, OpStreams, op)

	_, err = ParseOperation("Search")
	assert.Error(t, err)
}

func TestSanitizedDescription(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "A ninja story.", "A ninja story."},
		{"markup", "<p>Hello <b>world</b></p>", "Hello world"},
		{"entities", "Tom &amp; Jerry", "Tom & Jerry"},
		{"whitespace", "  <br/>Spaced  ", "Spaced"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info := &InfoData{Description: tt.in}
			assert.Equal(t, tt.want, info.SanitizedDescription())
		})
	}
}
