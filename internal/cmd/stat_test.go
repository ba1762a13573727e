package cmd

import (
	"errors"
	"testing"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStat_Object(t *testing.T) {
	fileBucket(t, "bkt", map[string]string{"docs/readme.txt": "hello world"})

	out, err := execute(t, "", "stat", "file://bkt/docs/readme.txt", "-o", "jsonl")

	require.NoError(t, err)
	assert.Contains(t, out, `"type":"bucketnav.entry.v1"`)
	assert.Contains(t, out, `"key":"docs/readme.txt"`)
	assert.Contains(t, out, `"name":"readme.txt"`)
	assert.Contains(t, out, `"size":11`)
	assert.Contains(t, out, `"content_type":"text/plain`)
}

func TestStat_Table(t *testing.T) {
	fileBucket(t, "bkt", map[string]string{"a.txt": "abc"})

	out, err := execute(t, "", "stat", "file://bkt/a.txt")

	require.NoError(t, err)
	assert.Contains(t, out, "OBJ")
	assert.Contains(t, out, "a.txt")
	assert.Contains(t, out, "3 B")
}

func TestStat_Errors(t *testing.T) {
	tests := []struct {
		name     string
		uri      string
		wantCode int
	}{
		{name: "missing object", uri: "file://bkt/ghost.txt", wantCode: foundry.ExitFileNotFound},
		{name: "folder", uri: "file://bkt/docs/", wantCode: foundry.ExitInvalidArgument},
		{name: "glob", uri: "file://bkt/*.txt", wantCode: foundry.ExitInvalidArgument},
		{name: "bad scheme", uri: "ftp://bkt/a.txt", wantCode: foundry.ExitInvalidArgument},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fileBucket(t, "bkt", map[string]string{"docs/a.txt": "a"})

			_, err := execute(t, "", "stat", tt.uri)

			var ee *ExitError
			require.True(t, errors.As(err, &ee), "error: %v", err)
			assert.Equal(t, tt.wantCode, ee.Code)
		})
	}
}
