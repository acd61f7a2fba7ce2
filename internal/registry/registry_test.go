package registry

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forcewatch/publish-cli/internal/model"
	"github.com/forcewatch/publish-cli/internal/store"
)

func newTestNormalizer(t *testing.T) *Normalizer {
	t.Helper()
	dir := t.TempDir()
	repo := store.NewFile(store.FilePaths{
		Library:  filepath.Join(dir, "library.json"),
		Registry: filepath.Join(dir, "registry.json"),
		Runs:     filepath.Join(dir, "runs.json"),
	})
	require.NoError(t, repo.Migrate(context.Background()))
	return New(repo)
}

func TestMatch(t *testing.T) {
	entries := []string{"Clark County Sheriff", "Springfield Police Department"}

	tests := []struct {
		value string
		want  string
		ok    bool
	}{
		{"Clark County Sheriff", "Clark County Sheriff", true},
		{"clark county sheriff", "Clark County Sheriff", true},
		{"  Springfield   Police Department ", "Springfield Police Department", true},
		{"Clark County", "", false},
		{"", "", false},
		{"   ", "", false},
	}
	for _, tt := range tests {
		got, ok := Match(entries, tt.value)
		assert.Equal(t, tt.ok, ok, "value %q", tt.value)
		assert.Equal(t, tt.want, got, "value %q", tt.value)
	}
}

func TestEnsureAppendsOnlyNewEntries(t *testing.T) {
	n := newTestNormalizer(t)
	ctx := context.Background()

	added, err := n.Ensure(ctx, model.ListAgencies, []string{"Clark County Sheriff"})
	require.NoError(t, err)
	assert.Equal(t, []string{"Clark County Sheriff"}, added)

	// Case and whitespace variants of an existing entry never re-append.
	added, err = n.Ensure(ctx, model.ListAgencies, []string{
		"CLARK  county sheriff",
		"Boise Police Department",
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"Boise Police Department"}, added)

	reg, err := n.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Boise Police Department", "Clark County Sheriff"}, reg.Agencies)
}

func TestEnsureKeepsListSorted(t *testing.T) {
	n := newTestNormalizer(t)
	ctx := context.Background()

	_, err := n.Ensure(ctx, model.ListCounties, []string{"Washoe", "Ada", "clark"})
	require.NoError(t, err)

	reg, err := n.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Ada", "clark", "Washoe"}, reg.Counties)
}

func TestEnsureUnknownList(t *testing.T) {
	n := newTestNormalizer(t)
	_, err := n.Ensure(context.Background(), model.ListName("genders"), []string{"anything"})
	assert.Error(t, err)
}

func TestEnsureEmptyValuesNoWrite(t *testing.T) {
	n := newTestNormalizer(t)
	added, err := n.Ensure(context.Background(), model.ListCaseTags, []string{"", "  "})
	require.NoError(t, err)
	assert.Empty(t, added)
}

func writeContent(t *testing.T, dir, name, doc string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(doc), 0o644))
}

func TestRebuildUnionsFrontmatter(t *testing.T) {
	n := newTestNormalizer(t)
	ctx := context.Background()

	// A stale entry that no published file references must not survive.
	_, err := n.Ensure(ctx, model.ListAgencies, []string{"Stale Agency"})
	require.NoError(t, err)

	contentDir := t.TempDir()
	writeContent(t, filepath.Join(contentDir, "cases"), "a.md", `---
title: Case A
agencies: [Clark County Sheriff]
county: Clark
force_type: shooting
tags: [body-camera]
---
Body A.
`)
	writeContent(t, filepath.Join(contentDir, "cases"), "b.md", `---
title: Case B
agencies: [Clark County Sheriff, Boise Police Department]
county: Ada
tags: [body-camera, pursuit]
---
Body B.
`)
	writeContent(t, filepath.Join(contentDir, "posts"), "p.md", `---
title: Post
tags: [analysis]
---
Post body.
`)

	reg, err := n.Rebuild(ctx, contentDir)
	require.NoError(t, err)

	// Duplicate under normalization collapses to one entry.
	assert.Equal(t, []string{"Boise Police Department", "Clark County Sheriff"}, reg.Agencies)
	assert.Equal(t, []string{"Ada", "Clark"}, reg.Counties)
	assert.Equal(t, []string{"shooting"}, reg.ForceTypes)
	assert.Equal(t, []string{"body-camera", "pursuit"}, reg.CaseTags)
	assert.Equal(t, []string{"analysis"}, reg.PostTags)

	persisted, err := n.Snapshot(ctx)
	require.NoError(t, err)
	assert.NotContains(t, persisted.Agencies, "Stale Agency")
}

func TestRebuildEmptyContentDir(t *testing.T) {
	n := newTestNormalizer(t)
	reg, err := n.Rebuild(context.Background(), t.TempDir())
	require.NoError(t, err)
	assert.Empty(t, reg.Agencies)
	assert.Empty(t, reg.PostTags)
}
