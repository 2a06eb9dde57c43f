// Package textsplitter turns linearized document text into ordered chunk
// drafts. Splitting is structure-aware: headings, paragraphs, GFM tables
// and fenced code blocks are treated as indivisible units, and a chunk is
// only ever closed on a unit boundary.
package textsplitter

import (
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	lcsplitter "github.com/tmc/langchaingo/textsplitter"

	"github.com/autoversio/ragcore/config"
	"github.com/autoversio/ragcore/schema"
)

type unitKind int

const (
	unitParagraph unitKind = iota
	unitHeading
	unitTable
	unitFence
)

type unit struct {
	kind unitKind
	text string
}

// Splitter accumulates structural units until the soft target size is
// reached, then closes the chunk. A single unit larger than the hard
// ceiling becomes its own oversized chunk; a plain paragraph that large
// is recursively split instead, since it has no internal structure worth
// preserving.
type Splitter struct {
	target  int
	ceiling int
	overlap int
	rec     lcsplitter.RecursiveCharacter
}

func New(cfg config.SplitterConfig) *Splitter {
	target := cfg.ChunkSize
	if target <= 0 {
		target = 1000
	}
	ceiling := cfg.HardCeiling
	if ceiling <= 0 {
		ceiling = 4 * target
	}
	overlap := target / 5
	return &Splitter{
		target:  target,
		ceiling: ceiling,
		overlap: overlap,
		rec: lcsplitter.NewRecursiveCharacter(
			lcsplitter.WithChunkSize(target),
			lcsplitter.WithChunkOverlap(overlap),
		),
	}
}

// ErrNotUTF8 marks input that is not valid UTF-8 text. Callers treat it
// as a conversion failure, not a partial result.
var ErrNotUTF8 = errors.New("text is not valid UTF-8")

// Split produces the ordered chunk sequence for one document. Identical
// input yields an identical sequence, including chunk ordinals and
// metadata. An empty or whitespace-only document yields zero chunks;
// non-UTF8 input yields zero chunks and ErrNotUTF8.
func (s *Splitter) Split(docID, filename, text string) ([]schema.Chunk, error) {
	if !utf8.ValidString(text) {
		return nil, ErrNotUTF8
	}
	units := scan(text)
	if len(units) == 0 {
		return nil, nil
	}

	var chunks []schema.Chunk
	var buf strings.Builder
	var section string
	bufHasTable, bufHasCode := false, false

	flush := func() {
		t := strings.TrimSpace(buf.String())
		if t == "" {
			buf.Reset()
			bufHasTable, bufHasCode = false, false
			return
		}
		chunks = append(chunks, schema.Chunk{
			ID:         chunkID(docID, len(chunks)),
			DocumentID: docID,
			Ordinal:    len(chunks),
			Text:       t,
			Metadata: schema.ChunkMetadata{
				ContentType:  classify(bufHasTable, bufHasCode),
				SectionTitle: section,
				HasTable:     bufHasTable,
				HasCode:      bufHasCode,
				Filename:     filename,
			},
		})
		buf.Reset()
		bufHasTable, bufHasCode = false, false
	}

	for _, u := range units {
		if u.kind == unitHeading {
			// a heading closes the running chunk and starts a new
			// section; the heading text rides with the next chunk
			flush()
			section = strings.TrimSpace(strings.TrimLeft(u.text, "# "))
			buf.WriteString(u.text)
			buf.WriteString("\n\n")
			continue
		}

		if len(u.text) > s.ceiling {
			flush()
			if u.kind == unitParagraph {
				parts, err := s.rec.SplitText(u.text)
				if err != nil {
					return nil, err
				}
				for _, p := range parts {
					buf.WriteString(p)
					flush()
				}
				continue
			}
			// indivisible unit: keep it whole as an oversized chunk
			buf.WriteString(u.text)
			bufHasTable = bufHasTable || u.kind == unitTable
			bufHasCode = bufHasCode || u.kind == unitFence
			flush()
			continue
		}

		if buf.Len() > 0 && buf.Len()+len(u.text) > s.target {
			flush()
		}
		buf.WriteString(u.text)
		buf.WriteString("\n\n")
		bufHasTable = bufHasTable || u.kind == unitTable
		bufHasCode = bufHasCode || u.kind == unitFence
	}
	flush()
	return chunks, nil
}

func classify(table, code bool) schema.ContentType {
	switch {
	case table:
		return schema.ContentTable
	case code:
		return schema.ContentCode
	default:
		return schema.ContentText
	}
}

// chunkID derives a stable UUID from the document id and ordinal so that
// re-chunking identical input produces identical point ids downstream.
func chunkID(docID string, ordinal int) string {
	ns := uuid.NewSHA1(uuid.NameSpaceOID, []byte(docID))
	return uuid.NewSHA1(ns, []byte{byte(ordinal >> 24), byte(ordinal >> 16), byte(ordinal >> 8), byte(ordinal)}).String()
}

// scan breaks text into structural units. Fenced code blocks and GFM
// tables are collected as single units; everything else groups into
// paragraphs on blank lines.
func scan(text string) []unit {
	lines := strings.Split(text, "\n")
	var units []unit
	var para []string

	closePara := func() {
		if len(para) == 0 {
			return
		}
		t := strings.TrimSpace(strings.Join(para, "\n"))
		if t != "" {
			units = append(units, unit{kind: unitParagraph, text: t})
		}
		para = nil
	}

	for i := 0; i < len(lines); i++ {
		line := lines[i]
		trimmed := strings.TrimSpace(line)

		switch {
		case trimmed == "":
			closePara()

		case strings.HasPrefix(trimmed, "```"):
			closePara()
			fence := []string{line}
			for i++; i < len(lines); i++ {
				fence = append(fence, lines[i])
				if strings.HasPrefix(strings.TrimSpace(lines[i]), "```") {
					break
				}
			}
			units = append(units, unit{kind: unitFence, text: strings.Join(fence, "\n")})

		case strings.HasPrefix(trimmed, "#"):
			closePara()
			units = append(units, unit{kind: unitHeading, text: trimmed})

		case strings.HasPrefix(trimmed, "|") && i+1 < len(lines) && isTableSeparator(lines[i+1]):
			closePara()
			table := []string{line}
			for i++; i < len(lines); i++ {
				if !strings.HasPrefix(strings.TrimSpace(lines[i]), "|") {
					i--
					break
				}
				table = append(table, lines[i])
			}
			units = append(units, unit{kind: unitTable, text: strings.Join(table, "\n")})

		default:
			para = append(para, line)
		}
	}
	closePara()
	return units
}

func isTableSeparator(line string) bool {
	t := strings.TrimSpace(line)
	if !strings.HasPrefix(t, "|") {
		return false
	}
	seen := false
	for _, r := range t {
		switch r {
		case '|', '-', ':', ' ':
			if r == '-' {
				seen = true
			}
		default:
			return false
		}
	}
	return seen
}
