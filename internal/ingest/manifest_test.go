package ingest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseManifest(t *testing.T) {
	data := []byte(`
source: fse-kb-export
documents:
  - index: 7
    title: ECM codes
    content: Code 111 means ECM failure.
  - index: 8
    title: Build ABC
    content: Build ABC contains part 123.
    source: builds.csv
    section: Parts
`)
	docs, err := ParseManifest(data)
	require.NoError(t, err)
	require.Len(t, docs, 2)

	assert.Equal(t, 7, docs[0].Index)
	assert.Equal(t, "fse-kb-export", docs[0].Source, "inherits the manifest source")
	assert.Equal(t, "builds.csv", docs[1].Source)
	assert.Equal(t, "Parts", docs[1].Section)
	assert.Nil(t, docs[1].Embedding)
}

func TestParseManifestErrors(t *testing.T) {
	tests := []struct {
		name string
		data string
		want string
	}{
		{name: "invalid yaml", data: "documents: [", want: "parse manifest"},
		{name: "missing content", data: "documents:\n  - index: 1\n    title: x\n", want: "content is required"},
		{name: "negative index", data: "documents:\n  - index: -2\n    content: x\n", want: "negative index"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseManifest([]byte(tt.data))
			assert.ErrorContains(t, err, tt.want)
		})
	}
}
