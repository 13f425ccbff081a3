package runtime

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"unicode"

	"github.com/blevesearch/bleve/v2"
	"github.com/chyke007/boltfs"
)

// candidateFetchSize bounds how many candidate files one index query
// returns when no tighter cap was requested.
const candidateFetchSize = 500

// NativeSearch is the runtime's indexed search primitive. Whole-word
// token queries narrow the candidate file set through the index; other
// queries scan every indexed file. Each candidate is scanned line by
// line with the exact match semantics the options request, and raw
// ranges are emitted with a preview window carrying one line of
// leading context.
func (a *Adapter) NativeSearch(ctx context.Context, query string, opts boltfs.SearchOptions, emit func(path string, raw []boltfs.RawMatch) error) error {
	a.mu.RLock()
	connected := a.connected
	a.mu.RUnlock()
	if !connected {
		return &boltfs.StorageError{Op: "native_search", Err: boltfs.ErrNotInitialized}
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	matcher, err := newLineMatcher(query, opts)
	if err != nil {
		return &boltfs.StorageError{Op: "native_search", Err: err}
	}

	candidates, err := a.candidates(ctx, query, opts)
	if err != nil {
		return &boltfs.StorageError{Op: "native_search", Err: err}
	}

	emitted := 0
	for _, candidate := range candidates {
		if err := ctx.Err(); err != nil {
			return err
		}
		if opts.MaxResults > 0 && emitted >= opts.MaxResults {
			return nil
		}
		if !inFolders(candidate, opts.Folders) {
			continue
		}
		if opts.ExcludePattern != "" && boltfs.PathMatchesPattern(opts.ExcludePattern, candidate) {
			continue
		}
		if opts.IncludePattern != "" && !boltfs.PathMatchesPattern(opts.IncludePattern, candidate) {
			continue
		}

		content, err := a.store.ReadFile(ctx, candidate)
		if err != nil {
			a.logger.Warn("Skipping unreadable candidate", boltfs.ArgsToFields("path", candidate, "error", err)...)
			continue
		}

		raws := scanCandidate(string(content), matcher)
		if opts.MaxResults > 0 && emitted+len(raws) > opts.MaxResults {
			raws = raws[:opts.MaxResults-emitted]
		}
		if len(raws) == 0 {
			continue
		}

		emitted += len(raws)
		if err := emit(candidate, raws); err != nil {
			return err
		}
	}
	return nil
}

// candidates selects the files worth scanning. The index tokenizes
// content, so it only answers queries whose boundaries line up with
// token boundaries: whole-word single-token lookups. Substring queries
// can match inside or across tokens ("rom B" inside "from Bolt") and
// regular expressions have no index form, so both scan every indexed
// file.
func (a *Adapter) candidates(ctx context.Context, query string, opts boltfs.SearchOptions) ([]string, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if a.index == nil {
		return nil, boltfs.ErrNotInitialized
	}

	if opts.UseRegExp || !opts.WholeWord || !isIndexToken(query) {
		return a.allIndexedLocked(), nil
	}

	matchQuery := bleve.NewMatchQuery(query)
	matchQuery.SetField("content")

	request := bleve.NewSearchRequest(matchQuery)
	request.Size = candidateFetchSize
	if opts.MaxResults > 0 && opts.MaxResults < candidateFetchSize {
		request.Size = opts.MaxResults
	}
	request.Fields = []string{}

	result, err := a.index.SearchInContext(ctx, request)
	if err != nil {
		return nil, fmt.Errorf("index query failed: %w", err)
	}

	// The analyzer drops stop words at indexing time, so zero hits do
	// not prove the word is absent.
	if len(result.Hits) == 0 {
		return a.allIndexedLocked(), nil
	}

	out := make([]string, 0, len(result.Hits))
	for _, hit := range result.Hits {
		out = append(out, hit.ID)
	}
	sort.Strings(out)
	return out, nil
}

// allIndexedLocked returns every indexed path in sorted order. Callers
// must hold a.mu.
func (a *Adapter) allIndexedLocked() []string {
	out := make([]string, 0, len(a.indexed))
	for p := range a.indexed {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// isIndexToken reports whether the query is a single alphanumeric word,
// the only shape whose word boundaries the tokenizer preserves.
func isIndexToken(query string) bool {
	if query == "" {
		return false
	}
	for _, r := range query {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

// scanCandidate walks the file line by line and builds raw ranges. The
// preview window starts one line before the match when one exists, so
// consumers must reconcile via PreviewStartLine.
func scanCandidate(content string, matcher *lineMatcher) []boltfs.RawMatch {
	var raws []boltfs.RawMatch

	lines := strings.Split(content, "\n")
	for i, line := range lines {
		byteStart, byteEnd, ok := matcher.first(line)
		if !ok {
			continue
		}
		start, end := charSpan(line, byteStart, byteEnd)

		preview := line
		previewStart := i + 1
		if i > 0 {
			preview = lines[i-1] + "\n" + line
			previewStart = i
		}

		raws = append(raws, boltfs.RawMatch{
			Line:             i + 1,
			StartCol:         start,
			EndCol:           end,
			Preview:          preview,
			PreviewStartLine: previewStart,
		})
	}
	return raws
}

// lineMatcher applies exactly one match strategy per the options
type lineMatcher struct {
	re     *regexp.Regexp
	needle string
	fold   bool
}

func newLineMatcher(query string, opts boltfs.SearchOptions) (*lineMatcher, error) {
	var pattern string
	switch {
	case opts.UseRegExp:
		pattern = query
	case opts.WholeWord:
		pattern = `\b(?:` + regexp.QuoteMeta(query) + `)\b`
	default:
		return &lineMatcher{needle: query, fold: !opts.CaseSensitive}, nil
	}

	if !opts.CaseSensitive {
		pattern = "(?i)" + pattern
	}

	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", boltfs.ErrBadPattern, err)
	}
	return &lineMatcher{re: re}, nil
}

// first returns the byte range of the first match on the line
func (m *lineMatcher) first(line string) (int, int, bool) {
	if m.re != nil {
		loc := m.re.FindStringIndex(line)
		if loc == nil {
			return 0, 0, false
		}
		return loc[0], loc[1], true
	}

	if m.fold {
		return boltfs.FoldIndex(line, m.needle)
	}

	idx := strings.Index(line, m.needle)
	if idx < 0 {
		return 0, 0, false
	}
	return idx, idx + len(m.needle), true
}

// inFolders reports whether p falls under one of the requested roots
func inFolders(p string, folders []string) bool {
	if len(folders) == 0 {
		return true
	}
	for _, folder := range folders {
		root := normalize(folder)
		if root == "/" || p == root || strings.HasPrefix(p, root+"/") {
			return true
		}
	}
	return false
}
