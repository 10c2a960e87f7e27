package chat

import (
	"fmt"
	"strings"

	"github.com/raphaelgruber/fsechat/internal/models"
)

// ExampleQuestions are shown to the model as the kind of question FSEs ask.
var ExampleQuestions = []string{
	"What are the configurations associated with engine serial number XYZ123?",
	"Which software components are contained in build ABC?",
	"List all ECM codes related to configuration ID 456.",
}

// BuildPrompt assembles the answer prompt from the graph schema, example
// questions, retrieved documents and the question itself.
func BuildPrompt(schema string, examples []string, docs []models.Document, question string) string {
	var b strings.Builder
	b.WriteString("Task: Answer a field service engineer's question using a graph database.\n")
	fmt.Fprintf(&b, "Schema:\n%s\n", strings.TrimSpace(schema))
	fmt.Fprintf(&b, "Example Questions: %s\n", strings.Join(examples, ", "))
	fmt.Fprintf(&b, "The question is: %s\n", question)
	b.WriteString("Graph Query Results:\n")
	if len(docs) == 0 {
		b.WriteString("(no matching documents)\n")
	}
	for _, d := range docs {
		title := d.Title
		if title == "" {
			title = "untitled"
		}
		fmt.Fprintf(&b, "[%d] %s: %s\n", d.Index, title, strings.TrimSpace(d.Content))
	}
	b.WriteString("Answer the question using the graph query results.\n")
	b.WriteString("Provide explanations or sources if available.\n")
	return b.String()
}
