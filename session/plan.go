package session

import (
	"path/filepath"

	"github.com/roethlar/blit/fsenum"
	"github.com/roethlar/blit/manifest"
)

// plan is the sender's view of one transfer: the full local inventory, and
// the subset the receiver reported needing, already classified by tier.
type plan struct {
	sourceRoot string
	entries    []manifest.Entry
	byPath     map[string]manifest.Entry

	dirs        []manifest.Entry
	smallFiles  []manifest.Entry
	mediumLarge []manifest.Entry // files needing a worker connection
	symlinks    []manifest.Entry
}

// buildPlan walks sourceRoot and classifies every entry by fsenum tier.
func buildPlan(sourceRoot string, filter fsenum.Filter) (*plan, error) {
	walked, err := fsenum.Walk(sourceRoot, &filter)
	if err != nil {
		return nil, err
	}
	p := &plan{sourceRoot: sourceRoot, byPath: map[string]manifest.Entry{}}
	for _, e := range walked {
		me := manifest.FromFSEnum(e)
		p.entries = append(p.entries, me)
		p.byPath[me.Relpath] = me
		switch me.Kind {
		case manifest.KindDirectory:
			p.dirs = append(p.dirs, me)
		case manifest.KindSymlink:
			p.symlinks = append(p.symlinks, me)
		case manifest.KindFile:
			if e.Tier == fsenum.TierSmall {
				p.smallFiles = append(p.smallFiles, me)
			} else {
				p.mediumLarge = append(p.mediumLarge, me)
			}
		}
	}
	return p, nil
}

// needed filters p's classified slices down to the relpaths the receiver
// actually asked for (spec §4.8 step 3 onward).
func (p *plan) needed(needSet map[string]bool) (small, mediumLarge, symlinks []manifest.Entry) {
	for _, e := range p.smallFiles {
		if needSet[e.Relpath] {
			small = append(small, e)
		}
	}
	for _, e := range p.mediumLarge {
		if needSet[e.Relpath] {
			mediumLarge = append(mediumLarge, e)
		}
	}
	for _, e := range p.symlinks {
		if needSet[e.Relpath] {
			symlinks = append(symlinks, e)
		}
	}
	return small, mediumLarge, symlinks
}

func (p *plan) absPath(relpath string) string {
	return filepath.Join(p.sourceRoot, filepath.FromSlash(relpath))
}
