// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package render

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type wantSeg struct {
	kind SegmentKind
	body string
	lang string
}

func TestSplit(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []wantSeg
	}{
		{
			name:  "no fence",
			input: "just prose",
			want:  []wantSeg{{SegmentText, "just prose", ""}},
		},
		{
			name:  "empty input",
			input: "",
			want:  []wantSeg{{SegmentText, "", ""}},
		},
		{
			name:  "prose code prose",
			input: "Here:\n```go\nfmt.Println(1)\n```\nDone.",
			want: []wantSeg{
				{SegmentText, "Here:\n", ""},
				{SegmentCode, "fmt.Println(1)\n", "go"},
				{SegmentText, "\nDone.", ""},
			},
		},
		{
			name:  "untagged fence gets default language",
			input: "```\nls -la\n```",
			want:  []wantSeg{{SegmentCode, "ls -la\n", DefaultLanguage}},
		},
		{
			name:  "adjacent fences suppress empty prose",
			input: "```a\n1\n``````b\n2\n```",
			want: []wantSeg{
				{SegmentCode, "1\n", "a"},
				{SegmentCode, "2\n", "b"},
			},
		},
		{
			name:  "empty code body",
			input: "x```py\n```y",
			want: []wantSeg{
				{SegmentText, "x", ""},
				{SegmentCode, "", "py"},
				{SegmentText, "y", ""},
			},
		},
		{
			name:  "unclosed fence is prose",
			input: "start ```go\nnever closed",
			want:  []wantSeg{{SegmentText, "start ```go\nnever closed", ""}},
		},
		{
			name:  "inline backticks are prose",
			input: "use ```this``` inline",
			want:  []wantSeg{{SegmentText, "use ```this``` inline", ""}},
		},
		{
			name:  "crlf opener",
			input: "```js\r\nlet a\r\n```",
			want:  []wantSeg{{SegmentCode, "let a\r\n", "js"}},
		},
		{
			name:  "tag with symbols",
			input: "```c++\nint x;\n```",
			want:  []wantSeg{{SegmentCode, "int x;\n", "c++"}},
		},
		{
			name:  "fence after false opener",
			input: "```go x\n```sh\necho\n```",
			want: []wantSeg{
				{SegmentText, "```go x\n", ""},
				{SegmentCode, "echo\n", "sh"},
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			segs := Split(tc.input)
			require.Len(t, segs, len(tc.want))
			for i, w := range tc.want {
				assert.Equal(t, w.kind, segs[i].Kind, "segment %d kind", i)
				assert.Equal(t, w.body, segs[i].Content, "segment %d content", i)
				if w.kind == SegmentCode {
					assert.Equal(t, w.lang, segs[i].Language, "segment %d language", i)
				}
			}
			assert.Equal(t, tc.input, Join(segs))
		})
	}
}

func TestSplit_RoundTrip(t *testing.T) {
	inputs := []string{
		"",
		"plain",
		"```\n```",
		"```\n\n```",
		"a```b\nc```d```e\nf```g",
		"````\nfour backticks\n```",
		"text\n```python\ndef f():\n    return 1\n```\nmore text\n```\nraw\n```\n",
		"```go\nunterminated",
		"``` \nspace before newline```",
		"```go\r\nwindows\r\n```\r\n",
		"🙂 ```rust\nfn main() {}\n``` ✓",
	}

	for _, in := range inputs {
		assert.Equal(t, in, Join(Split(in)), "round trip of %q", in)
	}
}

func TestSplit_DocumentOrder(t *testing.T) {
	in := "one\n```a\nA\n```two\n```b\nB\n```three"
	segs := Split(in)
	var got []string
	for _, s := range segs {
		got = append(got, s.Content)
	}
	assert.Equal(t, []string{"one\n", "A\n", "two\n", "B\n", "three"}, got)
}

func TestJoin_ConstructedSegments(t *testing.T) {
	segs := []Segment{
		TextSegment("see "),
		CodeSegment("x := 1\n", "go"),
		CodeSegment("plain\n", ""),
	}
	assert.Equal(t, "see ```go\nx := 1\n``````\nplain\n```", Join(segs))
	assert.Equal(t, DefaultLanguage, segs[2].Language)
	assert.Equal(t, "code", segs[1].Kind.String())
}
