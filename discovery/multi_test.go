package discovery

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/castellan/castellan/core"
)

func TestMultiSource_CombinesSources(t *testing.T) {
	t.Parallel()
	a, err := NewStaticSource(core.Descriptor{Name: "alpha", Version: "1.0.0"})
	require.NoError(t, err)
	b, err := NewStaticSource(core.Descriptor{Name: "beta", Version: "1.0.0"})
	require.NoError(t, err)

	descs, err := NewMultiSource(a, b).Discover(context.Background())
	require.NoError(t, err)
	assert.Len(t, descs, 2)
	assert.Contains(t, descs, "alpha")
	assert.Contains(t, descs, "beta")
}

func TestMultiSource_DuplicateAcrossSources(t *testing.T) {
	t.Parallel()
	a, err := NewStaticSource(core.Descriptor{Name: "alpha", Version: "1.0.0"})
	require.NoError(t, err)
	b, err := NewStaticSource(core.Descriptor{Name: "alpha", Version: "2.0.0"})
	require.NoError(t, err)

	_, err = NewMultiSource(a, b).Discover(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate module")
}
