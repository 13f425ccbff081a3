package boltfs

import (
	"context"
	"testing"
)

func TestReconcileRawMatchLocatesLine(t *testing.T) {
	raw := RawMatch{
		Line:             5,
		StartCol:         1,
		EndCol:           4,
		Preview:          "line four\nline five",
		PreviewStartLine: 4,
	}

	match := reconcileRawMatch("/f.txt", raw)
	if match.PreviewText != "line five" {
		t.Fatalf("preview = %q", match.PreviewText)
	}
	if match.LineNumber != 5 {
		t.Fatalf("line = %d", match.LineNumber)
	}
	if match.MatchCharStart != 1 || match.MatchCharEnd != 4 {
		t.Fatalf("range = [%d,%d]", match.MatchCharStart, match.MatchCharEnd)
	}
}

func TestReconcileRawMatchFallsBackToFirstLine(t *testing.T) {
	raw := RawMatch{
		Line:             2,
		StartCol:         0,
		EndCol:           3,
		Preview:          "solo preview",
		PreviewStartLine: 40,
	}

	match := reconcileRawMatch("/f.txt", raw)
	if match.PreviewText != "solo preview" {
		t.Fatalf("preview = %q", match.PreviewText)
	}
}

func TestReconcileRawMatchClampsOffsets(t *testing.T) {
	raw := RawMatch{
		Line:             1,
		StartCol:         3,
		EndCol:           99,
		Preview:          "short",
		PreviewStartLine: 1,
	}

	match := reconcileRawMatch("/f.txt", raw)
	if match.MatchCharEnd != 5 {
		t.Fatalf("end = %d", match.MatchCharEnd)
	}
	if match.MatchCharStart != 3 {
		t.Fatalf("start = %d", match.MatchCharStart)
	}
}

func TestMatchLineStrategies(t *testing.T) {
	cases := []struct {
		name      string
		line      string
		query     string
		opts      SearchOptions
		wantStart int
		wantEnd   int
		wantOK    bool
	}{
		{"substring folded", "Hello World", "WORLD", SearchOptions{}, 6, 11, true},
		{"substring sensitive miss", "Hello World", "world", SearchOptions{CaseSensitive: true}, 0, 0, false},
		{"substring sensitive hit", "Hello World", "World", SearchOptions{CaseSensitive: true}, 6, 11, true},
		{"no match", "abc", "zzz", SearchOptions{}, 0, 0, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			start, end, ok := matchLine(tc.line, tc.query, tc.opts, nil)
			if ok != tc.wantOK {
				t.Fatalf("ok = %v", ok)
			}
			if ok && (start != tc.wantStart || end != tc.wantEnd) {
				t.Fatalf("range = [%d,%d], want [%d,%d]", start, end, tc.wantStart, tc.wantEnd)
			}
		})
	}
}

func TestMatchLineMultibyteOffsets(t *testing.T) {
	// Offsets are character positions, not byte positions
	start, end, ok := matchLine("héllo wörld", "wörld", SearchOptions{}, nil)
	if !ok {
		t.Fatal("expected match")
	}
	if start != 6 || end != 11 {
		t.Fatalf("range = [%d,%d], want [6,11]", start, end)
	}
}

func TestMatchLineOffsetsWithLengthChangingFold(t *testing.T) {
	// ToLower turns U+0130 into two runes, so folding the whole line
	// would shift every offset after it. Offsets must index the
	// original line, which is what lands in PreviewText.
	line := "AİB foo"
	start, end, ok := matchLine(line, "FOO", SearchOptions{}, nil)
	if !ok {
		t.Fatal("expected match")
	}
	if start != 4 || end != 7 {
		t.Fatalf("range = [%d,%d], want [4,7]", start, end)
	}
	if got := string([]rune(line)[start:end]); got != "foo" {
		t.Fatalf("slice of original line = %q", got)
	}
}

func TestFoldIndex(t *testing.T) {
	cases := []struct {
		s         string
		needle    string
		wantStart int
		wantEnd   int
		wantOK    bool
	}{
		{"Hello World", "world", 6, 11, true},
		{"AİB foo", "foo", 5, 8, true},
		{"wörld", "WÖRLD", 0, 6, true},
		{"abc", "zzz", 0, 0, false},
		{"short", "much longer needle", 0, 0, false},
		{"anything", "", 0, 0, true},
	}

	for _, tc := range cases {
		start, end, ok := FoldIndex(tc.s, tc.needle)
		if ok != tc.wantOK || start != tc.wantStart || end != tc.wantEnd {
			t.Errorf("FoldIndex(%q, %q) = (%d, %d, %v), want (%d, %d, %v)",
				tc.s, tc.needle, start, end, ok, tc.wantStart, tc.wantEnd, tc.wantOK)
		}
	}
}

func TestTranslateGlob(t *testing.T) {
	cases := []struct {
		pattern string
		path    string
		want    bool
	}{
		{"*.txt", "notes.txt", true},
		{"*.txt", "dir/notes.txt", true},
		{"*.txt", "dir/notes.bin", false},
		{"**/*.txt", "dir/notes.txt", true},
		{"/vendor/**", "/vendor/pkg/a.go", true},
		{"/vendor/**", "/src/a.go", false},
		{"file?.go", "file1.go", true},
		{"file?.go", "file10.go", false},
	}

	for _, tc := range cases {
		if got := PathMatchesPattern(tc.pattern, tc.path); got != tc.want {
			t.Errorf("PathMatchesPattern(%q, %q) = %v, want %v", tc.pattern, tc.path, got, tc.want)
		}
	}
}

func TestIsBinaryContent(t *testing.T) {
	if IsBinaryContent([]byte("plain text\nwith lines")) {
		t.Fatal("text misclassified as binary")
	}
	if !IsBinaryContent([]byte{0x00, 0x01, 0x02}) {
		t.Fatal("NUL bytes must classify as binary")
	}
	if IsBinaryContent(nil) {
		t.Fatal("empty content is not binary")
	}
}

func TestCompileQueryCachesPatterns(t *testing.T) {
	mgr, err := NewManager(DefaultConfig(), []Adapter{stubAdapter{}})
	if err != nil {
		t.Fatalf("manager: %v", err)
	}
	s := NewSearcher(mgr)

	opts := SearchOptions{UseRegExp: true}
	first, err := s.compileQuery(`\d+`, opts)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	second, err := s.compileQuery(`\d+`, opts)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if first != second {
		t.Fatal("expected the cached compiled pattern")
	}
}

// stubAdapter satisfies Adapter for tests that never touch storage
type stubAdapter struct{}

func (stubAdapter) Kind() ProviderKind                  { return ProviderLocal }
func (stubAdapter) Connect(context.Context) error       { return nil }
func (stubAdapter) ReadFile(context.Context, string) ([]byte, error) {
	return nil, ErrNotFound
}
func (stubAdapter) WriteFile(context.Context, string, []byte) error { return nil }
func (stubAdapter) Readdir(context.Context, string) ([]DirEntry, error) {
	return nil, nil
}
func (stubAdapter) Mkdir(context.Context, string, bool) error           { return nil }
func (stubAdapter) DeleteFile(context.Context, string) error            { return nil }
func (stubAdapter) DeleteDirectory(context.Context, string, bool) error { return nil }
func (stubAdapter) Exists(context.Context, string) (bool, error)        { return false, nil }
func (stubAdapter) Stat(context.Context, string) (FileInfo, error) {
	return FileInfo{}, ErrNotFound
}
func (stubAdapter) Ping(context.Context) error { return nil }
func (stubAdapter) Close() error               { return nil }

func TestNormPath(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"", "/"},
		{"/", "/"},
		{"a/b", "/a/b"},
		{"/a//b/", "/a/b"},
		{"/a/../b", "/b"},
	}
	for _, tc := range cases {
		if got := normPath(tc.in); got != tc.want {
			t.Errorf("normPath(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
