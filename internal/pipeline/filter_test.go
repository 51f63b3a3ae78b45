package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFilterIgnore(t *testing.T) {
	f, err := NewFilter([]string{".dailysync-*.tmp", "node_modules"})
	require.NoError(t, err)

	assert.True(t, f.Ignore(".dailysync-123.tmp"))
	assert.True(t, f.Ignore("sub/.dailysync-9.tmp"))
	assert.True(t, f.Ignore("web/node_modules/x/index.js"))
	assert.False(t, f.Ignore("notes.tmp"))
	assert.False(t, f.Ignore("sub/a.txt"))
}

func TestNilFilterKeepsEverything(t *testing.T) {
	var f *Filter
	assert.False(t, f.Ignore("anything"))

	empty, err := NewFilter(nil)
	require.NoError(t, err)
	assert.False(t, empty.Ignore(".dailysync-1.tmp"))
}

func TestNewFilterRejectsBadPattern(t *testing.T) {
	_, err := NewFilter([]string{"[a-"})
	assert.Error(t, err)
}
