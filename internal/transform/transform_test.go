package transform

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSelectsTransform(t *testing.T) {
	t.Parallel()

	tr, err := New("")
	require.NoError(t, err)
	assert.Equal(t, "passthrough", tr.Name())

	tr, err = New("htmltext")
	require.NoError(t, err)
	assert.Equal(t, "htmltext", tr.Name())

	_, err = New("bogus")
	require.Error(t, err)
}

func TestPassthroughCopiesInput(t *testing.T) {
	t.Parallel()

	input := []byte("raw bytes")
	out, err := Passthrough{}.Transform(input)
	require.NoError(t, err)
	assert.Equal(t, input, out)

	// The output must be independent of the caller's buffer.
	input[0] = 'X'
	assert.Equal(t, byte('r'), out[0])
}

func TestHTMLTextExtractsVisibleText(t *testing.T) {
	t.Parallel()

	html := `<html><head>
		<title>ignored</title>
		<style>body { color: red }</style>
	</head><body>
		<h1>Quarterly   Report</h1>
		<script>console.log("hidden")</script>
		<p>Revenue grew by
		12 percent.</p>
	</body></html>`

	out, err := HTMLText{}.Transform([]byte(html))
	require.NoError(t, err)

	text := string(out)
	assert.Contains(t, text, "Quarterly Report")
	assert.Contains(t, text, "Revenue grew by 12 percent.")
	assert.NotContains(t, text, "console.log")
	assert.NotContains(t, text, "color: red")
	assert.NotContains(t, text, "ignored")
}

func TestHTMLTextHandlesFragment(t *testing.T) {
	t.Parallel()

	out, err := HTMLText{}.Transform([]byte("<p>just a fragment</p>"))
	require.NoError(t, err)
	assert.Equal(t, "just a fragment", string(out))
}

func TestHTMLTextIsDeterministic(t *testing.T) {
	t.Parallel()

	input := []byte("<body><p>same in</p><p>same out</p></body>")
	first, err := HTMLText{}.Transform(input)
	require.NoError(t, err)
	second, err := HTMLText{}.Transform(input)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}
