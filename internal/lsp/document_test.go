package lsp

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDocumentStore_OpenClose(t *testing.T) {
	s := NewDocumentStore()
	uri := DocumentURI("file:///tmp/main.go")

	require.NoError(t, s.open(uri, "go"))

	doc, ok := s.get(uri)
	require.True(t, ok)
	assert.Equal(t, 1, doc.Version, "documents open at version 1")
	assert.Equal(t, "go", doc.LanguageID)

	// A second open for the same URI is rejected.
	err := s.open(uri, "go")
	assert.True(t, errors.Is(err, ErrDocumentOpen))

	require.NoError(t, s.close(uri))
	_, ok = s.get(uri)
	assert.False(t, ok)

	// Closing again fails; reopening restarts at version 1.
	assert.True(t, errors.Is(s.close(uri), ErrDocumentNotOpen))
	require.NoError(t, s.open(uri, "go"))
	doc, _ = s.get(uri)
	assert.Equal(t, 1, doc.Version)
}

func TestDocumentStore_VersionMonotonic(t *testing.T) {
	s := NewDocumentStore()
	uri := DocumentURI("file:///tmp/main.go")
	require.NoError(t, s.open(uri, "go"))

	// Caller revision ahead of the stored version is taken as-is.
	v, err := s.bump(uri, 5)
	require.NoError(t, err)
	assert.Equal(t, 5, v)

	// A lagging or repeated caller revision still advances the version.
	v, err = s.bump(uri, 3)
	require.NoError(t, err)
	assert.Equal(t, 6, v)

	v, err = s.bump(uri, 6)
	require.NoError(t, err)
	assert.Equal(t, 7, v)

	// Version never decreases across any sequence of bumps.
	prev := v
	for _, rev := range []int{0, 100, 2, 101, 101} {
		v, err = s.bump(uri, rev)
		require.NoError(t, err)
		assert.Greater(t, v, prev, "bump(%d) did not increase the version", rev)
		prev = v
	}
}

func TestDocumentStore_BumpUnopened(t *testing.T) {
	s := NewDocumentStore()
	_, err := s.bump(DocumentURI("file:///tmp/ghost.go"), 2)
	assert.True(t, errors.Is(err, ErrDocumentNotOpen))
}

func TestDocumentStore_All(t *testing.T) {
	s := NewDocumentStore()
	require.NoError(t, s.open("file:///a.go", "go"))
	require.NoError(t, s.open("file:///b.rs", "rust"))

	docs := s.all()
	assert.Len(t, docs, 2)
}
