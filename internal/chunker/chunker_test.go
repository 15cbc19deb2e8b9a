package chunker

import (
	"strings"
	"testing"

	"github.com/askdocs/askdocs/internal/log"
)

// repeatWords builds a body with exactly n words.
func repeatWords(n int) string {
	return strings.TrimSpace(strings.Repeat("word ", n))
}

func TestSegment_EmptyDocument(t *testing.T) {
	s := New(5, 100, log.NewNop())
	if got := s.Segment("", "doc.md"); got != nil {
		t.Errorf("Segment(empty) = %v, want nil", got)
	}
	if got := s.Segment("   \n\n  ", "doc.md"); got != nil {
		t.Errorf("Segment(whitespace) = %v, want nil", got)
	}
}

func TestSegment_NoHeaders(t *testing.T) {
	s := New(5, 100, log.NewNop())
	body := repeatWords(10)

	chunks := s.Segment(body, "doc.md")
	if len(chunks) != 1 {
		t.Fatalf("got %d chunks, want 1", len(chunks))
	}
	if chunks[0].Section != IntroductionSection {
		t.Errorf("Section = %q, want %q", chunks[0].Section, IntroductionSection)
	}
	if chunks[0].Text != body {
		t.Errorf("Text = %q, want the full body", chunks[0].Text)
	}
}

func TestSegment_SectionPerHeader(t *testing.T) {
	s := New(5, 100, log.NewNop())
	doc := "# A\n" + repeatWords(10) + "\n## B\n" + repeatWords(10) + "\n## C\n" + repeatWords(10)

	chunks := s.Segment(doc, "doc.md")
	if len(chunks) != 3 {
		t.Fatalf("got %d chunks, want 3", len(chunks))
	}

	wantSections := []string{"A", "B", "C"}
	for i, want := range wantSections {
		if chunks[i].Section != want {
			t.Errorf("chunks[%d].Section = %q, want %q", i, chunks[i].Section, want)
		}
		if chunks[i].ChunkIndex != 0 {
			t.Errorf("chunks[%d].ChunkIndex = %d, want 0", i, chunks[i].ChunkIndex)
		}
		if chunks[i].FilePath != "doc.md" {
			t.Errorf("chunks[%d].FilePath = %q, want doc.md", i, chunks[i].FilePath)
		}
	}
}

func TestSegment_IntroBeforeFirstHeader(t *testing.T) {
	s := New(3, 100, log.NewNop())
	doc := repeatWords(5) + "\n# First\n" + repeatWords(5)

	chunks := s.Segment(doc, "doc.md")
	if len(chunks) != 2 {
		t.Fatalf("got %d chunks, want 2", len(chunks))
	}
	if chunks[0].Section != IntroductionSection {
		t.Errorf("chunks[0].Section = %q, want %q", chunks[0].Section, IntroductionSection)
	}
	if chunks[1].Section != "First" {
		t.Errorf("chunks[1].Section = %q, want First", chunks[1].Section)
	}
}

func TestSegment_DropsSmallSections(t *testing.T) {
	s := New(10, 100, log.NewNop())
	doc := "# Stub\ntoo short\n# Real\n" + repeatWords(20)

	chunks := s.Segment(doc, "doc.md")
	if len(chunks) != 1 {
		t.Fatalf("got %d chunks, want 1", len(chunks))
	}
	if chunks[0].Section != "Real" {
		t.Errorf("surviving section = %q, want Real", chunks[0].Section)
	}
}

func TestSegment_OversizedSectionKeptWhole(t *testing.T) {
	s := New(5, 50, log.NewNop())
	body := repeatWords(200)

	chunks := s.Segment("# Big\n"+body, "doc.md")
	if len(chunks) != 1 {
		t.Fatalf("got %d chunks, want 1 (oversized sections stay atomic)", len(chunks))
	}
	if chunks[0].Text != body {
		t.Error("oversized section was not emitted whole")
	}
}

func TestSegment_HeaderLevels(t *testing.T) {
	s := New(1, 100, log.NewNop())
	doc := "# H1\none\n###### H6\nsix\n####### NotAHeader\nseven"

	chunks := s.Segment(doc, "doc.md")
	// 7+ hashes is not a header, so its line stays inside the H6 section.
	if len(chunks) != 2 {
		t.Fatalf("got %d chunks, want 2", len(chunks))
	}
	if chunks[1].Section != "H6" {
		t.Errorf("chunks[1].Section = %q, want H6", chunks[1].Section)
	}
	if !strings.Contains(chunks[1].Text, "####### NotAHeader") {
		t.Error("7-hash line should remain in the preceding section body")
	}
}

func TestSegment_IdempotentIDs(t *testing.T) {
	s := New(5, 100, log.NewNop())
	doc := "# A\n" + repeatWords(10)

	first := s.Segment(doc, "doc.md")
	second := s.Segment(doc, "doc.md")
	if first[0].ID != second[0].ID {
		t.Errorf("id not stable across runs: %q vs %q", first[0].ID, second[0].ID)
	}
	if len(first[0].ID) != 16 {
		t.Errorf("id length = %d, want 16 hex chars", len(first[0].ID))
	}

	// Same content under a different path must hash differently.
	other := s.Segment(doc, "other.md")
	if other[0].ID == first[0].ID {
		t.Error("id should depend on the file path")
	}
}

func TestSegment_IDsUniqueWithinDocument(t *testing.T) {
	s := New(1, 100, log.NewNop())
	doc := "# A\nalpha content here\n# B\nbeta content here"

	chunks := s.Segment(doc, "doc.md")
	if len(chunks) != 2 {
		t.Fatalf("got %d chunks, want 2", len(chunks))
	}
	if chunks[0].ID == chunks[1].ID {
		t.Error("different sections produced identical ids")
	}
}
