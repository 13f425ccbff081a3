package boltfs

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/gostratum/core/logx"
	lru "github.com/hashicorp/golang-lru/v2"
)

// SearchOptions configures a text search across the active provider
type SearchOptions struct {
	// Folders are the traversal roots (default: namespace root)
	Folders []string

	// IncludePattern, when set, limits scanning to matching paths
	IncludePattern string

	// ExcludePattern skips matching paths entirely
	ExcludePattern string

	// MaxResults caps the total number of emitted matches
	MaxResults int

	// UseRegExp treats the query as a regular expression
	UseRegExp bool

	// CaseSensitive disables case folding
	CaseSensitive bool

	// WholeWord requires word-boundary-delimited matches
	WholeWord bool
}

// SearchMatch is a single match within one line of a file
type SearchMatch struct {
	// Path is the absolute file path
	Path string

	// LineNumber is 1-based
	LineNumber int

	// PreviewText is the full matched line
	PreviewText string

	// MatchCharStart and MatchCharEnd are character offsets within
	// PreviewText
	MatchCharStart int
	MatchCharEnd   int
}

// RawMatch is the wire shape emitted by a provider's native search
// primitive: a match range plus a preview window that may begin at an
// earlier line than the match itself.
type RawMatch struct {
	// Line is the absolute 1-based line number of the match
	Line int

	// StartCol and EndCol are character offsets within the matched line
	StartCol int
	EndCol   int

	// Preview is the preview window text, possibly spanning lines
	Preview string

	// PreviewStartLine is the absolute 1-based line where Preview begins
	PreviewStartLine int
}

// BatchFunc receives one per-file batch of matches as results become
// available. Returning an error stops the search.
type BatchFunc func(path string, matches []SearchMatch) error

// NativeSearcher is optionally implemented by adapters that expose an
// indexed or streaming search primitive of their own.
type NativeSearcher interface {
	NativeSearch(ctx context.Context, query string, opts SearchOptions, emit func(path string, raw []RawMatch) error) error
}

// errLimitReached stops traversal once MaxResults matches were emitted
var errLimitReached = errors.New("boltfs: search result limit reached")

// searchPatternCacheSize bounds the compiled-pattern LRU
const searchPatternCacheSize = 128

// Searcher aggregates text search over the manager's active provider,
// delegating to the provider's native primitive when available and
// falling back to a sequential walk-based scan otherwise.
type Searcher struct {
	mgr      *Manager
	logger   logx.Logger
	inst     *Instrumenter
	limit    int
	patterns *lru.Cache[string, *regexp.Regexp]
}

// NewSearcher creates a searcher bound to the manager's active provider
func NewSearcher(mgr *Manager, options ...Option) *Searcher {
	opts := BuildOptions(options...)
	patterns, _ := lru.New[string, *regexp.Regexp](searchPatternCacheSize)

	limit := 0
	if mgr.cfg != nil {
		limit = mgr.cfg.SearchResultLimit
	}

	return &Searcher{
		mgr:      mgr,
		logger:   opts.GetLogger(),
		inst:     opts.GetInstrumenter(),
		limit:    limit,
		patterns: patterns,
	}
}

// Search runs the query against the active provider and invokes onBatch
// once per file as its matches become available. Matches within a file
// arrive in line order; file order follows discovery order and is not
// globally sorted. Search resolves once traversal completes.
func (s *Searcher) Search(ctx context.Context, query string, opts SearchOptions, onBatch BatchFunc) error {
	if strings.TrimSpace(query) == "" {
		return nil
	}

	adapter, err := s.mgr.adapter()
	if err != nil {
		return err
	}

	limit := opts.MaxResults
	if limit <= 0 {
		limit = s.limit
	}

	if native, ok := adapter.(NativeSearcher); ok && s.mgr.monitor.Healthy() {
		start := time.Now()
		err := s.nativeSearch(ctx, native, query, opts, onBatch, limit)
		s.inst.RecordSearch("native", time.Since(start), err)
		if err == nil {
			return nil
		}

		// The native provider may have gone unhealthy mid-session; the
		// walk strategy still works over the plain operation set.
		if s.mgr.monitor.Healthy() {
			return err
		}
		s.logger.Warn("Native search failed on unhealthy provider, retrying walk-based",
			ArgsToFields("provider", adapter.Kind(), "error", err)...)
	}

	start := time.Now()
	err = s.walkSearch(ctx, adapter, query, opts, onBatch, limit)
	s.inst.RecordSearch("walk", time.Since(start), err)
	return err
}

// nativeSearch delegates to the provider primitive and reconciles its
// raw ranges and preview windows into absolute line-keyed matches.
func (s *Searcher) nativeSearch(ctx context.Context, native NativeSearcher, query string, opts SearchOptions, onBatch BatchFunc, limit int) error {
	emitted := 0

	err := native.NativeSearch(ctx, query, opts, func(filePath string, raw []RawMatch) error {
		matches := make([]SearchMatch, 0, len(raw))
		for _, r := range raw {
			if emitted >= limit {
				break
			}
			matches = append(matches, reconcileRawMatch(filePath, r))
			emitted++
		}

		if len(matches) == 0 {
			return nil
		}
		s.inst.RecordSearchBatch(len(matches))
		if err := onBatch(filePath, matches); err != nil {
			return err
		}
		if emitted >= limit {
			return errLimitReached
		}
		return nil
	})

	if errors.Is(err, errLimitReached) {
		return nil
	}
	return err
}

// reconcileRawMatch locates the matched line inside the preview window
// using the preview's declared starting line, falling back to the first
// preview line when the computation is out of range.
func reconcileRawMatch(filePath string, raw RawMatch) SearchMatch {
	lines := strings.Split(raw.Preview, "\n")
	idx := raw.Line - raw.PreviewStartLine
	if idx < 0 || idx >= len(lines) {
		idx = 0
	}
	preview := lines[idx]

	start, end := raw.StartCol, raw.EndCol
	if max := utf8.RuneCountInString(preview); end > max {
		end = max
	}
	if start > end {
		start = end
	}
	if start < 0 {
		start = 0
	}

	return SearchMatch{
		Path:           filePath,
		LineNumber:     raw.Line,
		PreviewText:    preview,
		MatchCharStart: start,
		MatchCharEnd:   end,
	}
}

// walkSearch traverses each folder depth-first, one subtree fully
// explored before the next sibling begins, scanning files as it goes.
func (s *Searcher) walkSearch(ctx context.Context, adapter Adapter, query string, opts SearchOptions, onBatch BatchFunc, limit int) error {
	folders := opts.Folders
	if len(folders) == 0 {
		folders = []string{"/"}
	}

	emitted := 0
	for _, folder := range folders {
		err := s.walkDir(ctx, adapter, normPath(folder), query, opts, onBatch, &emitted, limit)
		if errors.Is(err, errLimitReached) {
			return nil
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *Searcher) walkDir(ctx context.Context, adapter Adapter, dir, query string, opts SearchOptions, onBatch BatchFunc, emitted *int, limit int) error {
	// Cancellation is polled between file boundaries, not mid-file
	if err := ctx.Err(); err != nil {
		return err
	}

	entries, err := adapter.Readdir(ctx, dir)
	if err != nil {
		// One bad directory never aborts the whole traversal
		s.logger.Warn("Skipping unreadable directory", ArgsToFields("path", dir, "error", err)...)
		return nil
	}

	for _, entry := range entries {
		if *emitted >= limit {
			return errLimitReached
		}

		child := path.Join(dir, entry.Name)
		if entry.IsDir {
			if err := s.walkDir(ctx, adapter, child, query, opts, onBatch, emitted, limit); err != nil {
				return err
			}
			continue
		}

		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.scanFile(ctx, adapter, child, query, opts, onBatch, emitted, limit); err != nil {
			return err
		}
	}
	return nil
}

// scanFile scans one file line by line, buffering its matches and
// flushing them as a single batch only after the whole file was
// scanned. Read errors and invalid per-file patterns skip the file.
func (s *Searcher) scanFile(ctx context.Context, adapter Adapter, filePath, query string, opts SearchOptions, onBatch BatchFunc, emitted *int, limit int) error {
	if opts.ExcludePattern != "" && s.pathMatches(opts.ExcludePattern, filePath) {
		return nil
	}
	if opts.IncludePattern != "" && !s.pathMatches(opts.IncludePattern, filePath) {
		return nil
	}

	var re *regexp.Regexp
	if opts.UseRegExp || opts.WholeWord {
		var err error
		re, err = s.compileQuery(query, opts)
		if err != nil {
			s.logger.Warn("Skipping file for invalid search pattern",
				ArgsToFields("path", filePath, "error", fmt.Errorf("%w: %v", ErrBadPattern, err))...)
			return nil
		}
	}

	content, err := adapter.ReadFile(ctx, filePath)
	if err != nil {
		s.logger.Warn("Skipping unreadable file", ArgsToFields("path", filePath, "error", err)...)
		return nil
	}
	if IsBinaryContent(content) {
		return nil
	}

	var batch []SearchMatch
	lines := strings.Split(string(content), "\n")
	for i, line := range lines {
		if *emitted+len(batch) >= limit {
			break
		}

		start, end, ok := matchLine(line, query, opts, re)
		if !ok {
			continue
		}

		batch = append(batch, SearchMatch{
			Path:           filePath,
			LineNumber:     i + 1,
			PreviewText:    line,
			MatchCharStart: start,
			MatchCharEnd:   end,
		})
	}

	if len(batch) == 0 {
		return nil
	}

	*emitted += len(batch)
	s.inst.RecordSearchBatch(len(batch))
	if err := onBatch(filePath, batch); err != nil {
		return err
	}
	if *emitted >= limit {
		return errLimitReached
	}
	return nil
}

// matchLine applies exactly one match strategy per the options and
// reports only the first match on the line, as character offsets.
func matchLine(line, query string, opts SearchOptions, re *regexp.Regexp) (int, int, bool) {
	if re != nil {
		loc := re.FindStringIndex(line)
		if loc == nil {
			return 0, 0, false
		}
		return charOffsets(line, loc[0], loc[1])
	}

	if opts.CaseSensitive {
		idx := strings.Index(line, query)
		if idx < 0 {
			return 0, 0, false
		}
		return charOffsets(line, idx, idx+len(query))
	}

	start, end, ok := FoldIndex(line, query)
	if !ok {
		return 0, 0, false
	}
	return charOffsets(line, start, end)
}

// FoldIndex finds the first case-insensitive occurrence of needle in s
// and returns byte offsets into s itself. Lowercasing the whole
// haystack would not do: some runes change byte length under ToLower
// (U+0130 becomes two runes), shifting every offset after them.
func FoldIndex(s, needle string) (start, end int, ok bool) {
	if needle == "" {
		return 0, 0, true
	}

	needleRunes := utf8.RuneCountInString(needle)
	for from := range s {
		to := from
		remaining := needleRunes
		for remaining > 0 && to < len(s) {
			_, size := utf8.DecodeRuneInString(s[to:])
			to += size
			remaining--
		}
		if remaining > 0 {
			return 0, 0, false
		}
		if strings.EqualFold(s[from:to], needle) {
			return from, to, true
		}
	}
	return 0, 0, false
}

// charOffsets converts byte offsets into character offsets
func charOffsets(line string, byteStart, byteEnd int) (int, int, bool) {
	start := utf8.RuneCountInString(line[:byteStart])
	end := start + utf8.RuneCountInString(line[byteStart:byteEnd])
	return start, end, true
}

// compileQuery builds the per-file matcher for regexp and whole-word
// strategies, caching compiled patterns.
func (s *Searcher) compileQuery(query string, opts SearchOptions) (*regexp.Regexp, error) {
	var pattern string
	switch {
	case opts.UseRegExp:
		pattern = query
	case opts.WholeWord:
		pattern = `\b(?:` + regexp.QuoteMeta(query) + `)\b`
	default:
		return nil, nil
	}

	if !opts.CaseSensitive {
		pattern = "(?i)" + pattern
	}

	if cached, ok := s.patterns.Get(pattern); ok {
		return cached, nil
	}

	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, err
	}
	s.patterns.Add(pattern, re)
	return re, nil
}

// pathMatches tests a glob-style pattern (*, **, ?) against the full
// path or its base name. Invalid patterns fall back to substring match.
func (s *Searcher) pathMatches(pattern, filePath string) bool {
	re, err := s.compileGlob(pattern)
	if err != nil {
		return strings.Contains(filePath, pattern)
	}
	return re.MatchString(filePath) || re.MatchString(path.Base(filePath))
}

func (s *Searcher) compileGlob(pattern string) (*regexp.Regexp, error) {
	key := "glob:" + pattern
	if cached, ok := s.patterns.Get(key); ok {
		return cached, nil
	}

	re, err := regexp.Compile(translateGlob(pattern))
	if err != nil {
		return nil, err
	}
	s.patterns.Add(key, re)
	return re, nil
}

// PathMatchesPattern tests a glob-style pattern (*, **, ?) against the
// full path or its base name, without the searcher's pattern cache.
// Adapters with their own search primitive use it to honor
// include/exclude filters the same way the walk strategy does.
func PathMatchesPattern(pattern, filePath string) bool {
	re, err := regexp.Compile(translateGlob(pattern))
	if err != nil {
		return strings.Contains(filePath, pattern)
	}
	return re.MatchString(filePath) || re.MatchString(path.Base(filePath))
}

// translateGlob turns a glob pattern into an anchored regexp source
func translateGlob(pattern string) string {
	var sb strings.Builder
	sb.WriteString("^")
	for i := 0; i < len(pattern); i++ {
		switch c := pattern[i]; c {
		case '*':
			if i+1 < len(pattern) && pattern[i+1] == '*' {
				sb.WriteString(".*")
				i++
			} else {
				sb.WriteString("[^/]*")
			}
		case '?':
			sb.WriteString("[^/]")
		default:
			sb.WriteString(regexp.QuoteMeta(string(c)))
		}
	}
	sb.WriteString("$")
	return sb.String()
}

// IsBinaryContent reports whether content looks non-textual. A NUL byte
// within the sniff window is the decisive signal.
func IsBinaryContent(content []byte) bool {
	window := content
	if len(window) > 8000 {
		window = window[:8000]
	}
	return bytes.IndexByte(window, 0) >= 0
}
