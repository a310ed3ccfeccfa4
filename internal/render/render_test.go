package render

import (
	"bytes"
	"testing"

	"github.com/specialistvlad/stackmark/internal/element"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sample() *element.Tag {
	return &element.Tag{
		Name:  "section",
		Attrs: map[string]string{"id": "hero", "class": "a&b"},
		Children: []element.Node{
			&element.Tag{Name: "h1", Attrs: map[string]string{}, Children: []element.Node{element.Text{Value: "Fish & <Chips>"}}},
			&element.Tag{Name: "img", Attrs: map[string]string{"src": "x.png"}},
			element.Text{Value: "<em>raw</em>", Raw: true},
		},
	}
}

func TestHTML(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, HTML(&buf, sample()))
	assert.Equal(t,
		`<section class="a&amp;b" id="hero"><h1>Fish &amp; &lt;Chips&gt;</h1><img src="x.png"/><em>raw</em></section>`,
		buf.String())
}

func TestHTML_VoidElementWithBodyFails(t *testing.T) {
	var buf bytes.Buffer
	err := HTML(&buf, &element.Tag{Name: "br", Attrs: map[string]string{}, Children: []element.Node{element.Text{Value: "x"}}})
	assert.ErrorContains(t, err, "failed to render <br>")
}

func TestJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, JSON(&buf, sample()))
	assert.JSONEq(t, `[
		"section", {"class": "a&b", "id": "hero"},
		["h1", {}, "Fish & <Chips>"],
		["img", {"src": "x.png"}],
		{"raw": "<em>raw</em>"}
	]`, buf.String())
}

func TestRender_Dispatch(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Render(&buf, FormatJSON, &element.Tag{Name: "p"}))
	assert.JSONEq(t, `["p", {}]`, buf.String())

	assert.ErrorIs(t, Render(&buf, "pdf", &element.Tag{Name: "p"}), ErrUnknownFormat)
	assert.Equal(t, ".json", Ext(FormatJSON))
	assert.Equal(t, ".html", Ext(FormatHTML))
}
