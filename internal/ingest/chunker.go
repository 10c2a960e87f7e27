package ingest

import (
	"strings"
	"unicode"
)

// Passage is one retrievable slice of a manual.
type Passage struct {
	Content     string
	HeadingPath string
}

// ChunkConfig controls how manuals are cut into passages.
type ChunkConfig struct {
	Threshold  int // manuals up to this length stay one passage
	TargetSize int // sentence packing target for oversized paragraphs
	MinSize    int // smaller sections merge into the previous passage
	MaxSize    int // larger sections are split by paragraph
}

// DefaultChunkConfig suits embedding models with a 512 token window.
func DefaultChunkConfig() ChunkConfig {
	return ChunkConfig{
		Threshold:  1500,
		TargetSize: 750,
		MinSize:    200,
		MaxSize:    1000,
	}
}

// Chunk splits a manual into passages, preferring section boundaries, then
// paragraphs, then sentences. Empty manuals yield no passages.
func Chunk(m *Manual, cfg ChunkConfig) []Passage {
	content := strings.TrimSpace(m.Content)
	if content == "" {
		return nil
	}
	if len(content) <= cfg.Threshold {
		return []Passage{{Content: content}}
	}
	if len(m.Sections) == 0 {
		return byParagraphs(content, "", cfg)
	}
	return bySections(m.Sections, cfg)
}

func bySections(sections []Section, cfg ChunkConfig) []Passage {
	var out []Passage
	for _, s := range sections {
		if s.Content == "" {
			continue
		}
		if len(s.Content) > cfg.MaxSize {
			out = append(out, byParagraphs(s.Content, s.Path, cfg)...)
			continue
		}
		if len(s.Content) < cfg.MinSize && len(out) > 0 {
			out[len(out)-1].Content += "\n\n" + s.Content
			continue
		}
		out = append(out, Passage{Content: s.Content, HeadingPath: s.Path})
	}
	return out
}

func byParagraphs(content, headingPath string, cfg ChunkConfig) []Passage {
	var (
		out []Passage
		buf strings.Builder
	)
	flush := func() {
		if buf.Len() == 0 {
			return
		}
		out = append(out, Passage{Content: strings.TrimSpace(buf.String()), HeadingPath: headingPath})
		buf.Reset()
	}

	for _, para := range strings.Split(content, "\n\n") {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		if buf.Len() > 0 && buf.Len()+len(para) > cfg.MaxSize {
			flush()
		}
		if len(para) > cfg.MaxSize {
			flush()
			for _, s := range packSentences(para, cfg.TargetSize) {
				out = append(out, Passage{Content: s, HeadingPath: headingPath})
			}
			continue
		}
		if buf.Len() > 0 {
			buf.WriteString("\n\n")
		}
		buf.WriteString(para)
	}
	flush()
	return out
}

// packSentences groups sentences into pieces of about target bytes.
func packSentences(text string, target int) []string {
	var (
		out []string
		buf strings.Builder
	)
	for _, sentence := range splitSentences(text) {
		sentence = strings.TrimSpace(sentence)
		if sentence == "" {
			continue
		}
		if buf.Len() > 0 && buf.Len()+len(sentence) > target {
			out = append(out, buf.String())
			buf.Reset()
		}
		if buf.Len() > 0 {
			buf.WriteByte(' ')
		}
		buf.WriteString(sentence)
	}
	if buf.Len() > 0 {
		out = append(out, buf.String())
	}
	return out
}

// splitSentences cuts after ., ! or ? followed by whitespace. A single
// capital before the period (an initial, "Fig. A.") does not end a sentence.
func splitSentences(text string) []string {
	var (
		out []string
		buf strings.Builder
	)
	runes := []rune(text)
	for i, r := range runes {
		buf.WriteRune(r)
		if r != '.' && r != '!' && r != '?' {
			continue
		}
		if i+1 < len(runes) && !unicode.IsSpace(runes[i+1]) {
			continue
		}
		if r == '.' && i > 0 && unicode.IsUpper(runes[i-1]) && (i == 1 || unicode.IsSpace(runes[i-2])) {
			continue
		}
		out = append(out, buf.String())
		buf.Reset()
	}
	if buf.Len() > 0 {
		out = append(out, buf.String())
	}
	return out
}
