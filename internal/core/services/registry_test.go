package services

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkaya/expbench/internal/core/domain"
)

func TestRegistryResolve(t *testing.T) {
	r := NewRegistry("/data/experiments", testExperiments())

	exp, err := r.Resolve("test")
	require.NoError(t, err)
	assert.Equal(t, "hello.py hello world 123", exp.Entrypoint)

	_, err = r.Resolve("missing")
	assert.ErrorIs(t, err, domain.ErrUnknownExperiment)
}

func TestRegistryListPreservesOrder(t *testing.T) {
	r := NewRegistry("", testExperiments())

	list := r.List()
	require.Len(t, list, 2)
	assert.Equal(t, "test", list[0].Name)
	assert.Equal(t, "analysing_pii_leakage", list[1].Name)
}

func TestRegistryDir(t *testing.T) {
	r := NewRegistry("/data/experiments", testExperiments())
	assert.Equal(t, filepath.Join("/data/experiments", "test"), r.Dir("test"))
}
