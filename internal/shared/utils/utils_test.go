package utils

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestChecksum(t *testing.T) {
	a := Checksum("const instance = {}")
	b := Checksum("const instance = {}")
	c := Checksum("const instance = { }")

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.True(t, strings.HasPrefix(a, ChecksumPrefix))
	assert.Len(t, a, len(ChecksumPrefix)+64)

	assert.Len(t, ShortChecksum(a), 12)
	assert.Equal(t, a[len(ChecksumPrefix):len(ChecksumPrefix)+12], ShortChecksum(a))
	assert.Equal(t, "abc", ShortChecksum("abc"))
}

func TestValidateModuleName(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"empty allowed", "", false},
		{"simple", "site", false},
		{"catalog path", "anime/site-v2.1", false},
		{"space", "my site", true},
		{"null byte", "a\x00b", true},
		{"too long", strings.Repeat("a", MaxNameLength+1), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateModuleName(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateSource(t *testing.T) {
	assert.NoError(t, ValidateSource("const instance = {}"))
	assert.Error(t, ValidateSource("   \n"))
	assert.Error(t, ValidateSource(strings.Repeat("x", MaxSourceSize+1)))
	assert.Error(t, ValidateSource("bad \xff byte"))
}
