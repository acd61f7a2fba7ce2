package registry

import (
	"context"
	"os"
	"path/filepath"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/forcewatch/publish-cli/internal/frontmatter"
	"github.com/forcewatch/publish-cli/internal/model"
)

// rebuildConcurrency bounds the parallel frontmatter reads during a rebuild.
const rebuildConcurrency = 8

// caseHeader is the subset of case frontmatter that feeds registry lists.
type caseHeader struct {
	Agencies            []string `yaml:"agencies"`
	County              string   `yaml:"county"`
	ForceType           string   `yaml:"force_type"`
	ThreatLevel         string   `yaml:"threat_level"`
	InvestigationStatus string   `yaml:"investigation_status"`
	Tags                []string `yaml:"tags"`
}

type postHeader struct {
	Tags []string `yaml:"tags"`
}

// listSet accumulates the union of observed values per list, keyed by
// normalized spelling so the first observed casing wins.
type listSet struct {
	mu   sync.Mutex
	seen map[model.ListName]map[string]string
}

func newListSet() *listSet {
	seen := make(map[model.ListName]map[string]string, len(model.ListNames))
	for _, name := range model.ListNames {
		seen[name] = make(map[string]string)
	}
	return &listSet{seen: seen}
}

func (s *listSet) add(name model.ListName, values ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, v := range values {
		key := normalize(v)
		if key == "" {
			continue
		}
		if _, ok := s.seen[name][key]; !ok {
			s.seen[name][key] = v
		}
	}
}

func (s *listSet) registry() *model.Registry {
	var reg model.Registry
	for name, entries := range s.seen {
		list := make([]string, 0, len(entries))
		for _, v := range entries {
			list = append(list, v)
		}
		sortEntries(list)
		reg.SetList(name, list)
	}
	return &reg
}

// Rebuild derives the registry from scratch by scanning the frontmatter of
// every published content file under contentDir (cases/ and posts/
// subdirectories) and overwriting the stored registry with the union of
// observed values. It is the out-of-band recovery path for a drifted or
// lost registry file.
func (n *Normalizer) Rebuild(ctx context.Context, contentDir string) (*model.Registry, error) {
	set := newListSet()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(rebuildConcurrency)

	scanned := 0
	for _, sub := range []struct {
		dir  string
		read func(path string) error
	}{
		{dir: filepath.Join(contentDir, "cases"), read: func(path string) error {
			var h caseHeader
			if err := readHeader(path, &h); err != nil {
				return err
			}
			set.add(model.ListAgencies, h.Agencies...)
			set.add(model.ListCounties, h.County)
			set.add(model.ListForceTypes, h.ForceType)
			set.add(model.ListThreatLevels, h.ThreatLevel)
			set.add(model.ListInvestigationStatuses, h.InvestigationStatus)
			set.add(model.ListCaseTags, h.Tags...)
			return nil
		}},
		{dir: filepath.Join(contentDir, "posts"), read: func(path string) error {
			var h postHeader
			if err := readHeader(path, &h); err != nil {
				return err
			}
			set.add(model.ListPostTags, h.Tags...)
			return nil
		}},
	} {
		paths, err := filepath.Glob(filepath.Join(sub.dir, "*.md"))
		if err != nil {
			return nil, eris.Wrapf(err, "registry: glob %s", sub.dir)
		}
		scanned += len(paths)
		for _, path := range paths {
			read := sub.read
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				return read(path)
			})
		}
	}

	if err := g.Wait(); err != nil {
		return nil, eris.Wrap(err, "registry: rebuild scan")
	}

	reg := set.registry()
	if err := n.repo.ReplaceRegistry(ctx, reg); err != nil {
		return nil, eris.Wrap(err, "registry: rebuild replace")
	}
	zap.L().Info("registry rebuilt",
		zap.Int("files_scanned", scanned),
		zap.Int("agencies", len(reg.Agencies)),
		zap.Int("counties", len(reg.Counties)))
	return reg, nil
}

func readHeader(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return eris.Wrapf(err, "registry: read %s", path)
	}
	if _, err := frontmatter.Parse(data, out); err != nil {
		return eris.Wrapf(err, "registry: parse %s", path)
	}
	return nil
}
