package textproc

import (
	"strings"
	"testing"

	"lanes/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProcess_EmptyInputRejected(t *testing.T) {
	p := New(nil)

	for _, raw := range []string{"", "   ", "\n\t \n"} {
		_, err := p.Process(raw)
		require.Error(t, err)
		var rejected *models.RejectedError
		require.ErrorAs(t, err, &rejected)
		assert.Equal(t, models.RejectEmptyMessage, rejected.Reason)
	}
}

func TestProcess_ReplyMarker(t *testing.T) {
	p := New(nil)

	out, err := p.Process(":42 hello there")
	require.NoError(t, err)
	assert.Equal(t, uint(42), out.ReplyTo)
	assert.Equal(t, ":42 hello there", out.HTML)
}

func TestProcess_ReplyMarkerOnlyAtStart(t *testing.T) {
	p := New(nil)

	out, err := p.Process("see :42 hello")
	require.NoError(t, err)
	assert.Zero(t, out.ReplyTo)
}

func TestProcess_Mentions(t *testing.T) {
	p := New(nil)

	out, err := p.Process("hey @alice and @bob, also @alice again")
	require.NoError(t, err)
	assert.Equal(t, []string{"alice", "bob"}, out.Mentions)
}

func TestProcess_FullyIndentedIsSinglePreBlock(t *testing.T) {
	p := New(nil)

	raw := "    if x > 0 {\n        **not bold**\n    }"
	out, err := p.Process(raw)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(out.HTML, "<pre>"))
	assert.True(t, strings.HasSuffix(out.HTML, "</pre>"))
	// No markdown substitution inside a code block.
	assert.NotContains(t, out.HTML, "<strong>")
	assert.Contains(t, out.HTML, "**not bold**")
	// Indent is stripped.
	assert.Contains(t, out.HTML, "if x > 0 {")
}

func TestProcess_BlankLinesAllowedInCodeBlock(t *testing.T) {
	p := New(nil)

	out, err := p.Process("    line one\n\n    line two")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out.HTML, "<pre>"))
}

func TestProcess_PartialIndentIsNotCodeBlock(t *testing.T) {
	p := New(nil)

	out, err := p.Process("    indented\nnot indented")
	require.NoError(t, err)
	assert.NotContains(t, out.HTML, "<pre>")
}

func TestProcess_EscapesScriptInjection(t *testing.T) {
	p := New(nil)

	out, err := p.Process(`<script>alert("x")</script>`)
	require.NoError(t, err)
	assert.NotContains(t, out.HTML, "<script>")
	assert.Contains(t, out.HTML, "&lt;script&gt;")
}

func TestProcess_EscapingSurvivesSubstitutionRules(t *testing.T) {
	p := New(nil)

	out, err := p.Process("**<b>bold</b>**")
	require.NoError(t, err)
	assert.Contains(t, out.HTML, "<strong>&lt;b&gt;bold&lt;/b&gt;</strong>")
}

func TestProcess_ImageOnebox(t *testing.T) {
	p := New(nil)

	out, err := p.Process("https://example.com/cat.png")
	require.NoError(t, err)
	assert.Equal(t, OneboxImage, out.Onebox)
	assert.Contains(t, out.HTML, `<img src="https://example.com/cat.png"/>`)
}

func TestProcess_VideoOnebox(t *testing.T) {
	p := New(nil)

	cases := map[string]string{
		"https://www.youtube.com/watch?v=abc123": "https://www.youtube.com/embed/abc123",
		"https://youtu.be/abc123":                "https://www.youtube.com/embed/abc123",
		"https://vimeo.com/123456":               "https://player.vimeo.com/video/123456",
	}
	for raw, embed := range cases {
		out, err := p.Process(raw)
		require.NoError(t, err, raw)
		assert.Equal(t, OneboxVideo, out.Onebox, raw)
		assert.Contains(t, out.HTML, embed, raw)
	}
}

func TestProcess_UnknownVideoHostFallsThrough(t *testing.T) {
	p := New([]string{"youtube.com"})

	out, err := p.Process("https://vimeo.com/123456")
	require.NoError(t, err)
	assert.Equal(t, OneboxNone, out.Onebox)
}

func TestProcess_OneboxRequiresSingleToken(t *testing.T) {
	p := New(nil)

	out, err := p.Process("look https://example.com/cat.png")
	require.NoError(t, err)
	assert.Equal(t, OneboxNone, out.Onebox)
}

func TestProcess_MarkdownLink(t *testing.T) {
	p := New(nil)

	out, err := p.Process("[docs](https://example.com/docs)")
	require.NoError(t, err)
	assert.Contains(t, out.HTML, `<a href="https://example.com/docs">docs</a>`)
}

func TestProcess_InvalidLinkTargetGetsNofollow(t *testing.T) {
	p := New(nil)

	// No dot in host fails validation.
	out, err := p.Process("[x](http://localhost/admin)")
	require.NoError(t, err)
	assert.Contains(t, out.HTML, `rel="nofollow"`)
}

func TestProcess_SubstitutionRules(t *testing.T) {
	p := New(nil)

	cases := map[string]string{
		"**bold**":     "<strong>bold</strong>",
		"__bold__":     "<strong>bold</strong>",
		"*em*":         "<em>em</em>",
		"_em_":         "<em>em</em>",
		"---gone---":   "<del>gone</del>",
		"`code`":       "<code>code</code>",
		"> quoted":     "<blockquote>quoted</blockquote>",
		"line\n> q":    "line<br/><blockquote>q</blockquote>",
		"one\ntwo":     "one<br/>two",
		"**a** and *b": "<strong>a</strong> and *b",
	}
	for raw, want := range cases {
		out, err := p.Process(raw)
		require.NoError(t, err, raw)
		assert.Contains(t, out.HTML, want, raw)
	}
}

func TestProcess_BoldBeforeEmphasis(t *testing.T) {
	p := New(nil)

	// A double-star run must become strong, never nested em.
	out, err := p.Process("**x**")
	require.NoError(t, err)
	assert.Equal(t, "<strong>x</strong>", out.HTML)
}

func TestProcess_ReplyMarkerWithCodeBlock(t *testing.T) {
	p := New(nil)

	out, err := p.Process(":7     indented code")
	require.NoError(t, err)
	assert.Equal(t, uint(7), out.ReplyTo)
	assert.True(t, strings.HasPrefix(out.HTML, ":7 "))
}
