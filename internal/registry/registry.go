// Package registry maintains the seven canonical vocabularies that gate
// open-ended metadata fields: agencies, counties, force types, threat
// levels, investigation statuses, case tags, and post tags. Closed enums
// live in internal/model as typed constants and never pass through here.
package registry

import (
	"context"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/forcewatch/publish-cli/internal/model"
	"github.com/forcewatch/publish-cli/internal/store"
)

// Normalizer resolves free-text values against the canonical lists and
// appends genuinely new entries.
type Normalizer struct {
	repo store.Repository
}

// New creates a Normalizer over the given repository.
func New(repo store.Repository) *Normalizer {
	return &Normalizer{repo: repo}
}

// normalize is the matching key: trimmed, inner whitespace collapsed,
// lowercased. The stored entry keeps its original casing.
func normalize(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

// Match resolves value against entries. On a hit it returns the canonical
// stored spelling, not the caller's.
func Match(entries []string, value string) (string, bool) {
	key := normalize(value)
	if key == "" {
		return "", false
	}
	for _, e := range entries {
		if normalize(e) == key {
			return e, true
		}
	}
	return "", false
}

// Snapshot returns the current registry contents.
func (n *Normalizer) Snapshot(ctx context.Context) (*model.Registry, error) {
	return n.repo.LoadRegistry(ctx)
}

// Ensure appends the values missing from the named list, keeping it sorted
// and free of duplicates under normalization. It returns the entries that
// were actually added. Membership is re-checked inside the store's update
// transaction, so a concurrent append of the same value cannot double it.
func (n *Normalizer) Ensure(ctx context.Context, name model.ListName, values []string) ([]string, error) {
	var added []string
	_, err := n.repo.UpdateRegistry(ctx, func(reg *model.Registry) (bool, error) {
		entries := reg.List(name)
		if entries == nil && !validListName(name) {
			return false, eris.Errorf("registry: unknown list %q", name)
		}
		added = added[:0]
		for _, v := range values {
			v = strings.TrimSpace(v)
			if v == "" {
				continue
			}
			if _, ok := Match(entries, v); ok {
				continue
			}
			entries = append(entries, v)
			added = append(added, v)
		}
		if len(added) == 0 {
			return false, nil
		}
		sortEntries(entries)
		reg.SetList(name, entries)
		return true, nil
	})
	if err != nil {
		return nil, eris.Wrapf(err, "registry: ensure %s", name)
	}
	if len(added) > 0 {
		zap.L().Info("registry entries added",
			zap.String("list", string(name)),
			zap.Strings("entries", added))
	}
	return added, nil
}

func validListName(name model.ListName) bool {
	for _, n := range model.ListNames {
		if n == name {
			return true
		}
	}
	return false
}

func sortEntries(entries []string) {
	sort.Slice(entries, func(i, j int) bool {
		a, b := normalize(entries[i]), normalize(entries[j])
		if a == b {
			return entries[i] < entries[j]
		}
		return a < b
	})
}
