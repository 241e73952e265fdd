package segment

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

// makeWords returns n words "w0".."w{n-1}". Words for which ends reports
// true get a trailing period.
func makeWords(n int, ends func(i int) bool) []string {
	words := make([]string, n)
	for i := range words {
		words[i] = fmt.Sprintf("w%d", i)
		if ends != nil && ends(i) {
			words[i] += "."
		}
	}
	return words
}

func TestSegment_ShortTextIsOneDraft(t *testing.T) {
	t.Parallel()

	text := "The quick brown fox jumps over the lazy dog."
	drafts, err := Segment(text, 500, 100)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(drafts) != 1 {
		t.Fatalf("want 1 draft, got %d", len(drafts))
	}
	if drafts[0].Text != text {
		t.Errorf("want draft equal to input, got %q", drafts[0].Text)
	}
	if drafts[0].WordCount != 9 || drafts[0].SequenceIndex != 0 {
		t.Errorf("want 9 words at seq 0, got %d words at seq %d", drafts[0].WordCount, drafts[0].SequenceIndex)
	}
}

func TestSegment_ExactlyChunkSize(t *testing.T) {
	t.Parallel()

	words := makeWords(500, nil)
	drafts, err := Segment(strings.Join(words, " "), 500, 100)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(drafts) != 1 {
		t.Fatalf("want 1 draft for text of exactly chunk size, got %d", len(drafts))
	}
}

func TestSegment_EmptyInput(t *testing.T) {
	t.Parallel()

	for _, in := range []string{"", "   \n\t  "} {
		drafts, err := Segment(in, 500, 100)
		if err != nil {
			t.Fatalf("Segment(%q): unexpected error: %v", in, err)
		}
		if len(drafts) != 0 {
			t.Errorf("Segment(%q): want no drafts, got %d", in, len(drafts))
		}
	}
}

func TestSegment_1200Words(t *testing.T) {
	t.Parallel()

	words := makeWords(1200, func(i int) bool { return (i+1)%10 == 0 })
	drafts, err := Segment(strings.Join(words, " "), 500, 100)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(drafts) != 3 {
		t.Fatalf("want 3 drafts, got %d", len(drafts))
	}

	wantCounts := []int{500, 500, 400}
	for i, d := range drafts {
		if d.SequenceIndex != i {
			t.Errorf("draft %d: want sequence index %d, got %d", i, i, d.SequenceIndex)
		}
		if d.WordCount != wantCounts[i] {
			t.Errorf("draft %d: want %d words, got %d", i, wantCounts[i], d.WordCount)
		}
	}

	first := strings.Fields(drafts[0].Text)
	second := strings.Fields(drafts[1].Text)
	if got, want := strings.Join(second[:100], " "), strings.Join(first[400:], " "); got != want {
		t.Errorf("second draft should start with the first draft's last 100 words")
	}
}

func TestSegment_SnapsToSentenceBoundary(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		boundary int
		wantEnd  int
	}{
		{name: "inside lookback", boundary: 470, wantEnd: 471},
		{name: "at window end", boundary: 499, wantEnd: 500},
		{name: "outside lookback", boundary: 440, wantEnd: 500},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			words := makeWords(900, func(i int) bool { return i == tt.boundary })
			drafts, err := Segment(strings.Join(words, " "), 500, 100)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if drafts[0].EndWord != tt.wantEnd {
				t.Errorf("want first cut at %d, got %d", tt.wantEnd, drafts[0].EndWord)
			}
			if drafts[1].StartWord != tt.wantEnd-100 {
				t.Errorf("want second draft to start at %d, got %d", tt.wantEnd-100, drafts[1].StartWord)
			}
		})
	}
}

func TestSegment_RoundTrip(t *testing.T) {
	t.Parallel()

	tests := []struct {
		n, size, overlap int
	}{
		{333, 40, 15},
		{1000, 120, 100},
		{501, 500, 0},
		{2048, 64, 1},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("n=%d/size=%d/overlap=%d", tt.n, tt.size, tt.overlap), func(t *testing.T) {
			t.Parallel()

			words := makeWords(tt.n, func(i int) bool { return i%7 == 3 || i%13 == 0 })
			drafts, err := Segment(strings.Join(words, " "), tt.size, tt.overlap)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			var rebuilt []string
			prevEnd := 0
			for i, d := range drafts {
				if d.SequenceIndex != i {
					t.Fatalf("draft %d: non-contiguous sequence index %d", i, d.SequenceIndex)
				}
				if d.WordCount == 0 || d.WordCount > tt.size {
					t.Fatalf("draft %d: word count %d outside (0, %d]", i, d.WordCount, tt.size)
				}
				dw := strings.Fields(d.Text)
				if d.StartWord > prevEnd {
					t.Fatalf("draft %d: gap between %d and %d", i, prevEnd, d.StartWord)
				}
				rebuilt = append(rebuilt, dw[prevEnd-d.StartWord:]...)
				prevEnd = d.EndWord
			}

			if got, want := strings.Join(rebuilt, " "), strings.Join(words, " "); got != want {
				t.Errorf("round trip mismatch: rebuilt %d words, want %d", len(rebuilt), len(words))
			}
		})
	}
}

func TestSegment_ConfigurationErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		size      int
		overlap   int
		wantParam string
	}{
		{"zero size", 0, 0, "chunk_size"},
		{"negative size", -5, 0, "chunk_size"},
		{"negative overlap", 10, -1, "chunk_overlap"},
		{"overlap equals size", 10, 10, "chunk_overlap"},
		{"overlap exceeds size", 10, 50, "chunk_overlap"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := Segment("some words here", tt.size, tt.overlap)
			var cfgErr *ConfigurationError
			if !errors.As(err, &cfgErr) {
				t.Fatalf("want *ConfigurationError, got %v", err)
			}
			if cfgErr.Param != tt.wantParam {
				t.Errorf("want param %q, got %q", tt.wantParam, cfgErr.Param)
			}
		})
	}
}

func TestSegmentPages_TracksPageRange(t *testing.T) {
	t.Parallel()

	pages := []Page{
		{Number: 1, Text: strings.Join(makeWords(30, nil), " ")},
		{Number: 2, Text: strings.Join(makeWords(30, nil), " ")},
		{Number: 4, Text: strings.Join(makeWords(30, nil), " ")},
	}
	drafts, err := SegmentPages(pages, 40, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := [][2]int{{1, 2}, {2, 4}, {4, 4}}
	if len(drafts) != len(want) {
		t.Fatalf("want %d drafts, got %d", len(want), len(drafts))
	}
	for i, d := range drafts {
		if d.MinPage != want[i][0] || d.MaxPage != want[i][1] {
			t.Errorf("draft %d: want pages %d-%d, got %d-%d", i, want[i][0], want[i][1], d.MinPage, d.MaxPage)
		}
	}
}

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("MAX_CHUNK_SIZE", "250")
	t.Setenv("CHUNK_OVERLAP", "not-a-number")

	cfg := ConfigFromEnv()
	if cfg.ChunkSize != 250 {
		t.Errorf("ChunkSize: want 250, got %d", cfg.ChunkSize)
	}
	if cfg.ChunkOverlap != DefaultChunkOverlap {
		t.Errorf("ChunkOverlap: want default %d, got %d", DefaultChunkOverlap, cfg.ChunkOverlap)
	}
}
