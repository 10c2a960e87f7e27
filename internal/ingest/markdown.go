// Package ingest turns service manuals and document manifests into context
// documents and loads them into the graph.
package ingest

import (
	"bufio"
	"fmt"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

var (
	headingRegex = regexp.MustCompile(`^(#{1,6})\s+(.+)$`)
	h1Regex      = regexp.MustCompile(`(?m)^#\s+(.+)$`)
)

// Frontmatter holds the recognised keys of a manual's YAML header.
type Frontmatter struct {
	Title  string `yaml:"title"`
	Source string `yaml:"source"`
}

// Manual is a parsed markdown service manual.
type Manual struct {
	Frontmatter Frontmatter
	Title       string
	Content     string // body after the frontmatter
	Sections    []Section
}

// Section is a heading and the text below it up to the next heading.
type Section struct {
	Level   int
	Heading string
	Path    string // e.g. "# Engine > ## Fault codes"
	Content string
}

// ParseManual splits a markdown document into frontmatter, title and sections.
// An unterminated frontmatter block is treated as body text.
func ParseManual(content string) (*Manual, error) {
	m := &Manual{}

	body := content
	if strings.HasPrefix(content, "---\n") {
		if end := strings.Index(content[4:], "\n---"); end >= 0 {
			header := content[4 : 4+end]
			body = strings.TrimPrefix(content[4+end+4:], "\n")
			if err := yaml.Unmarshal([]byte(header), &m.Frontmatter); err != nil {
				return nil, fmt.Errorf("parse frontmatter: %w", err)
			}
		}
	}

	m.Content = body
	m.Title = m.Frontmatter.Title
	if m.Title == "" {
		if match := h1Regex.FindStringSubmatch(body); len(match) > 1 {
			m.Title = strings.TrimSpace(match[1])
		}
	}
	m.Sections = parseSections(body)
	return m, nil
}

func parseSections(content string) []Section {
	var (
		sections []Section
		current  *Section
		body     strings.Builder
		path     []string
		levels   []int
	)

	flush := func() {
		if current == nil {
			return
		}
		current.Content = strings.TrimSpace(body.String())
		sections = append(sections, *current)
		body.Reset()
	}

	scanner := bufio.NewScanner(strings.NewReader(content))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		match := headingRegex.FindStringSubmatch(line)
		if match == nil {
			if current != nil {
				body.WriteString(line)
				body.WriteByte('\n')
			}
			continue
		}

		flush()
		level := len(match[1])
		heading := strings.TrimSpace(match[2])
		for len(levels) > 0 && levels[len(levels)-1] >= level {
			path = path[:len(path)-1]
			levels = levels[:len(levels)-1]
		}
		path = append(path, match[1]+" "+heading)
		levels = append(levels, level)

		current = &Section{Level: level, Heading: heading, Path: strings.Join(path, " > ")}
	}
	flush()

	return sections
}
