package pipeline

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forcewatch/publish-cli/internal/frontmatter"
	"github.com/forcewatch/publish-cli/internal/model"
)

func testArticle() *model.GeneratedArticle {
	return &model.GeneratedArticle{
		Kind: model.DraftCase,
		Case: &model.CaseMetadata{
			VictimName: "John Doe",
			Title:      "Shooting of John Doe",
			Date:       "2024-03-01",
			Slug:       "shooting-of-john-doe",
		},
		Content: "Body text.\n",
		Slug:    "shooting-of-john-doe",
	}
}

func TestWriterWrite(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(dir)

	path, err := w.Write(testArticle(), false)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "cases", "shooting-of-john-doe.md"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var meta model.CaseMetadata
	body, err := frontmatter.Parse(data, &meta)
	require.NoError(t, err)
	assert.Equal(t, "John Doe", meta.VictimName)
	assert.Equal(t, "Body text.\n", string(body))
}

func TestWriterWriteConflict(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(dir)

	_, err := w.Write(testArticle(), false)
	require.NoError(t, err)

	_, err = w.Write(testArticle(), false)
	var conflict *WriteConflict
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, filepath.Join(dir, "cases", "shooting-of-john-doe.md"), conflict.Path)

	// Force replaces the existing file.
	article := testArticle()
	article.Content = "Replacement body.\n"
	path, err := w.Write(article, true)
	require.NoError(t, err)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "Replacement body.")
}

func TestWriterPostGoesToPosts(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(dir)

	article := &model.GeneratedArticle{
		Kind:    model.DraftPost,
		Post:    &model.PostMetadata{Title: "Roundup", Slug: "roundup"},
		Content: "Post body.\n",
		Slug:    "roundup",
	}
	path, err := w.Write(article, false)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "posts", "roundup.md"), path)
}

func TestMarkPublished(t *testing.T) {
	dir := t.TempDir()
	draft := filepath.Join(dir, "incident.md")
	require.NoError(t, os.WriteFile(draft, []byte("draft"), 0o644))

	w := NewWriter(t.TempDir())
	renamed, err := w.MarkPublished(draft)
	require.NoError(t, err)

	assert.NoFileExists(t, draft)
	assert.FileExists(t, renamed)
	base := filepath.Base(renamed)
	assert.True(t, strings.HasPrefix(base, PublishedPrefix), base)
	assert.True(t, strings.HasSuffix(base, "_incident.md"), base)
	assert.Equal(t, dir, filepath.Dir(renamed))
}
