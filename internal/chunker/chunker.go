// Package chunker segments markdown documents into retrieval units.
//
// Segmentation is header-driven: every ATX header (# through ######) starts
// a new section, and each surviving section becomes exactly one chunk. A
// section is never split across chunks, so retrieved text always carries its
// full surrounding context.
package chunker

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"

	"github.com/askdocs/askdocs/internal/log"
)

// IntroductionSection names the implicit section for content that appears
// before the first header (or for documents without headers).
const IntroductionSection = "Introduction"

// headerPattern matches ATX headers: 1-6 hashes, a space, then the title.
var headerPattern = regexp.MustCompile(`(?m)^(#{1,6})\s+(.+)$`)

// Chunk is one indexed retrieval unit: a whole markdown section.
type Chunk struct {
	ID         string // content hash, stable across re-indexing
	Text       string
	FilePath   string
	Section    string
	ChunkIndex int
}

// Segmenter splits markdown into section chunks.
type Segmenter struct {
	minChunkSize   int // minimum section size in words; smaller sections are dropped
	maxSectionSize int // advisory maximum in words; larger sections are kept with a warning
	logger         log.Logger
}

// New creates a Segmenter. minChunkSize and maxSectionSize are word counts.
func New(minChunkSize, maxSectionSize int, logger log.Logger) *Segmenter {
	return &Segmenter{
		minChunkSize:   minChunkSize,
		maxSectionSize: maxSectionSize,
		logger:         logger,
	}
}

// section is an intermediate unit between header splitting and chunk emission.
type section struct {
	title string
	body  string
}

// Segment splits a markdown document into chunks.
//
// Rules:
//   - Content before the first header belongs to the implicit "Introduction"
//     section; a document without headers is a single Introduction section.
//   - Sections shorter than minChunkSize words are dropped whole.
//   - Sections longer than maxSectionSize words are kept whole with a warning;
//     splitting mid-section would lose context.
//   - An empty document yields no chunks.
func (s *Segmenter) Segment(content, filePath string) []Chunk {
	if strings.TrimSpace(content) == "" {
		return nil
	}

	sections := splitSections(content)

	var chunks []Chunk
	for _, sec := range sections {
		words := len(strings.Fields(sec.body))
		if words < s.minChunkSize {
			s.logger.Debug("skipping small section",
				"file", filePath, "section", sec.title, "words", words)
			continue
		}
		if words > s.maxSectionSize {
			s.logger.Warn("section exceeds maximum size, keeping whole",
				"file", filePath, "section", sec.title, "words", words)
		}

		// One chunk per section: the index is always 0 but participates in
		// the ID so the scheme stays stable if sections ever split.
		chunks = append(chunks, Chunk{
			ID:         chunkID(filePath, sec.title, 0, sec.body),
			Text:       sec.body,
			FilePath:   filePath,
			Section:    sec.title,
			ChunkIndex: 0,
		})
	}

	return chunks
}

// splitSections splits the document at every header line. Section bodies are
// the trimmed text between headers; the header line itself is not part of the
// body, its title becomes the section name. Empty bodies are dropped here.
func splitSections(content string) []section {
	var sections []section

	lastEnd := 0
	title := IntroductionSection

	for _, loc := range headerPattern.FindAllStringSubmatchIndex(content, -1) {
		body := strings.TrimSpace(content[lastEnd:loc[0]])
		if body != "" {
			sections = append(sections, section{title: title, body: body})
		}
		title = strings.TrimSpace(content[loc[4]:loc[5]])
		lastEnd = loc[1]
	}

	if rest := strings.TrimSpace(content[lastEnd:]); rest != "" {
		sections = append(sections, section{title: title, body: rest})
	}

	return sections
}

// chunkID derives a deterministic chunk identifier from the chunk's location
// and a prefix of its text. Identical inputs always hash to the same ID, so
// re-indexing an unchanged file upserts in place instead of duplicating.
func chunkID(filePath, sectionTitle string, index int, text string) string {
	prefix := text
	if len(prefix) > 100 {
		prefix = prefix[:100]
	}
	h := sha256.Sum256([]byte(fmt.Sprintf("%s:%s:%d:%s", filePath, sectionTitle, index, prefix)))
	return hex.EncodeToString(h[:])[:16]
}
