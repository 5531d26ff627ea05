package analyzer

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"

	"github.com/gobwas/glob"
	"golang.org/x/sync/errgroup"

	"github.com/codesynapse/codesynapse/internal/graph"
)

// autoParallelThreshold is the file count above which ParseProject switches
// to the parallel walker even when Options.Parallel is false.
const autoParallelThreshold = 64

// ErrNotDirectory reports a project root that exists but is not a directory.
var ErrNotDirectory = errors.New("not a directory")

// ParseCache lets callers reuse per-file results across runs. Implementations
// must validate their own freshness; a hit is returned as-is. Entries are
// keyed by the signature-collection mode as well, since results visited with
// and without signatures differ.
type ParseCache interface {
	Get(absPath string, collectSignatures bool) (*graph.FileResult, bool)
	Put(absPath string, collectSignatures bool, result *graph.FileResult) error
}

// ProgressReporter receives walk progress. Implementations must be safe for
// concurrent Increment calls.
type ProgressReporter interface {
	Start(total int)
	Increment()
	Finish()
}

// Options controls a project walk.
type Options struct {
	// CollectSignatures enables signature rendering, complexity metrics, and
	// type-annotation scanning for every function.
	CollectSignatures bool

	// Parallel forces the concurrent walker. Large projects use it regardless.
	Parallel bool

	// MaxWorkers bounds walker concurrency. Zero picks a default based on
	// CPU count.
	MaxWorkers int

	// IncludePatterns and IgnorePatterns are glob patterns matched against
	// root-relative slash paths. Includes default to every .py file.
	IncludePatterns []string
	IgnorePatterns  []string

	Cache    ParseCache
	Progress ProgressReporter
}

func (o Options) workers() int {
	if o.MaxWorkers > 0 {
		return o.MaxWorkers
	}
	n := runtime.NumCPU() + 4
	if n > 32 {
		n = 32
	}
	return n
}

// compiledPattern keeps the source pattern next to its compiled glob so
// "**/"-prefixed patterns can also be matched against root-level paths.
type compiledPattern struct {
	pattern string
	glob    glob.Glob
}

func compilePatterns(patterns []string) ([]compiledPattern, error) {
	var compiled []compiledPattern
	for _, p := range patterns {
		g, err := glob.Compile(p, '/')
		if err != nil {
			return nil, fmt.Errorf("invalid pattern %q: %w", p, err)
		}
		compiled = append(compiled, compiledPattern{pattern: p, glob: g})
	}
	return compiled, nil
}

// matchAny matches a relative slash path against compiled patterns. Patterns
// with a "**/" prefix additionally match files at the root, where the prefix
// would otherwise require at least one directory.
func matchAny(patterns []compiledPattern, rel string) bool {
	for _, cp := range patterns {
		if cp.glob.Match(rel) {
			return true
		}
		if strings.HasPrefix(cp.pattern, "**/") {
			simplified := strings.TrimPrefix(cp.pattern, "**/")
			if g, err := glob.Compile(simplified, '/'); err == nil && g.Match(rel) {
				return true
			}
		}
	}
	return false
}

// FileDiscovery finds source files under a project root by glob patterns.
// Hidden directories are always skipped.
type FileDiscovery struct {
	includes []compiledPattern
	ignores  []compiledPattern
}

// NewFileDiscovery compiles the given patterns. An empty include list
// defaults to all Python files.
func NewFileDiscovery(includes, ignores []string) (*FileDiscovery, error) {
	if len(includes) == 0 {
		includes = []string{"**/*.py"}
	}
	compiledIncludes, err := compilePatterns(includes)
	if err != nil {
		return nil, err
	}
	compiledIgnores, err := compilePatterns(ignores)
	if err != nil {
		return nil, err
	}
	return &FileDiscovery{includes: compiledIncludes, ignores: compiledIgnores}, nil
}

// Discover walks the root and returns matching files as sorted root-relative
// slash paths.
func (d *FileDiscovery) Discover(root string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return relErr
		}
		rel = filepath.ToSlash(rel)
		if entry.IsDir() {
			if rel != "." && strings.HasPrefix(entry.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if d.matches(rel) {
			files = append(files, rel)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}

func (d *FileDiscovery) matches(rel string) bool {
	if matchAny(d.ignores, rel) {
		return false
	}
	return matchAny(d.includes, rel)
}

// ParseProject walks every matching file under root, visits each one, and
// returns the merged, resolved node and edge sets ready for assembly.
//
// A missing or non-directory root is the only fatal input condition. Files
// that cannot be read are skipped with a warning; files that fail to parse
// contribute a bare module declaration.
func ParseProject(ctx context.Context, root string, opts Options) ([]graph.Node, []graph.Edge, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, nil, fmt.Errorf("project path %s: %w", root, err)
	}
	if !info.IsDir() {
		return nil, nil, fmt.Errorf("project path %s: %w", root, ErrNotDirectory)
	}
	root, err = filepath.Abs(root)
	if err != nil {
		return nil, nil, err
	}

	discovery, err := NewFileDiscovery(opts.IncludePatterns, opts.IgnorePatterns)
	if err != nil {
		return nil, nil, err
	}
	files, err := discovery.Discover(root)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to discover files under %s: %w", root, err)
	}

	if opts.Progress != nil {
		opts.Progress.Start(len(files))
		defer opts.Progress.Finish()
	}

	results := make([]*graph.FileResult, len(files))
	if opts.Parallel || len(files) >= autoParallelThreshold {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(opts.workers())
		for i, rel := range files {
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				results[i] = parseOne(root, rel, opts)
				if opts.Progress != nil {
					opts.Progress.Increment()
				}
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, nil, err
		}
	} else {
		for i, rel := range files {
			if err := ctx.Err(); err != nil {
				return nil, nil, err
			}
			results[i] = parseOne(root, rel, opts)
			if opts.Progress != nil {
				opts.Progress.Increment()
			}
		}
	}

	return mergeResults(results)
}

// parseOne produces the FileResult for one file, consulting the cache first.
func parseOne(root, rel string, opts Options) *graph.FileResult {
	abs := filepath.Join(root, filepath.FromSlash(rel))
	if opts.Cache != nil {
		if result, ok := opts.Cache.Get(abs, opts.CollectSignatures); ok {
			return result
		}
	}

	source, err := os.ReadFile(abs)
	if err != nil {
		log.Printf("Warning: failed to read %s: %v", rel, err)
		return nil
	}

	var result *graph.FileResult
	tree := parsePython(source)
	if tree == nil || tree.RootNode().HasError() {
		log.Printf("Warning: syntax errors in %s, recording bare module", rel)
		result = bareModuleResult(rel)
	} else {
		result = visitFile(root, rel, source, tree.RootNode(), opts.CollectSignatures)
	}
	if tree != nil {
		tree.Close()
	}

	if opts.Cache != nil {
		if err := opts.Cache.Put(abs, opts.CollectSignatures, result); err != nil {
			log.Printf("Warning: failed to cache result for %s: %v", rel, err)
		}
	}
	return result
}

// mergeResults combines per-file results in deterministic file order, runs
// cross-file resolution, and deduplicates nodes and edges.
func mergeResults(results []*graph.FileResult) ([]graph.Node, []graph.Edge, error) {
	kept := results[:0]
	for _, r := range results {
		if r != nil {
			kept = append(kept, r)
		}
	}

	var nodes []graph.Node
	index := make(map[string]int)
	for _, r := range kept {
		for _, n := range r.Nodes {
			if at, ok := index[n.ID]; ok {
				// Duplicate fully qualified path across files: last write wins.
				nodes[at] = n
				continue
			}
			index[n.ID] = len(nodes)
			nodes = append(nodes, n)
		}
	}

	var edges []graph.Edge
	for _, r := range kept {
		edges = append(edges, r.Edges...)
	}
	edges = append(edges, resolveReferences(kept)...)

	seen := make(map[graph.Edge]struct{}, len(edges))
	deduped := edges[:0]
	for _, e := range edges {
		if _, ok := seen[e]; ok {
			continue
		}
		seen[e] = struct{}{}
		deduped = append(deduped, e)
	}

	return nodes, deduped, nil
}
