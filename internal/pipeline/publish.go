package pipeline

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/forcewatch/publish-cli/internal/frontmatter"
	"github.com/forcewatch/publish-cli/internal/model"
)

// PublishedPrefix marks a draft file as already published. Prefixed drafts
// are refused as pipeline input.
const PublishedPrefix = "pub_"

// Writer commits a finished article to the content tree and retires the
// draft. Everything before this stage is side-effect free on the content
// directory.
type Writer struct {
	contentDir string
}

// NewWriter builds a Writer rooted at the content directory.
func NewWriter(contentDir string) *Writer {
	return &Writer{contentDir: contentDir}
}

// ContentPath returns the target path for an article slug.
func (w *Writer) ContentPath(kind model.DraftKind, slug string) string {
	sub := "cases"
	if kind == model.DraftPost {
		sub = "posts"
	}
	return filepath.Join(w.contentDir, sub, slug+".md")
}

// Write renders the article as frontmatter plus body and creates the
// content file. An existing file is a WriteConflict unless force is set;
// the caller resolves the conflict and retries with force.
func (w *Writer) Write(article *model.GeneratedArticle, force bool) (string, error) {
	var meta any
	switch article.Kind {
	case model.DraftCase:
		meta = article.Case
	case model.DraftPost:
		meta = article.Post
	default:
		return "", eris.Errorf("pipeline: unknown draft kind %q", article.Kind)
	}

	data, err := frontmatter.Compose(meta, article.Content)
	if err != nil {
		return "", eris.Wrap(err, "pipeline: compose article")
	}

	target := w.ContentPath(article.Kind, article.Slug)
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return "", eris.Wrap(err, "pipeline: create content dir")
	}

	flags := os.O_WRONLY | os.O_CREATE | os.O_EXCL
	if force {
		flags = os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	}
	f, err := os.OpenFile(target, flags, 0o644)
	if err != nil {
		if os.IsExist(err) {
			return "", &WriteConflict{Path: target}
		}
		return "", eris.Wrap(err, "pipeline: open content file")
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return "", eris.Wrap(err, "pipeline: write content file")
	}
	if err := f.Close(); err != nil {
		return "", eris.Wrap(err, "pipeline: close content file")
	}

	zap.L().Info("content file written",
		zap.String("path", target),
		zap.String("slug", article.Slug),
		zap.String("title", article.Title()),
	)
	return target, nil
}

// MarkPublished renames the draft in place to pub_<unix-ts>_<name>, keeping
// it next to any sibling drafts for later reference.
func (w *Writer) MarkPublished(draftPath string) (string, error) {
	dir := filepath.Dir(draftPath)
	base := filepath.Base(draftPath)
	renamed := filepath.Join(dir, fmt.Sprintf("%s%d_%s", PublishedPrefix, time.Now().Unix(), base))
	if err := os.Rename(draftPath, renamed); err != nil {
		return "", eris.Wrap(err, "pipeline: rename draft")
	}
	zap.L().Info("draft marked published",
		zap.String("draft", draftPath),
		zap.String("renamed", renamed),
	)
	return renamed, nil
}
