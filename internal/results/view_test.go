package results

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func makeItems(n int) []Item {
	items := make([]Item, n)
	for i := range items {
		items[i] = Item{
			Name:              "Item " + string(rune('A'+i)),
			RawPriceText:      "Original Price: $49.99 Current Price: $29.99",
			Description:       "Description " + string(rune('A'+i)),
			ImagePathFragment: `products\item.jpg`,
		}
	}
	return items
}

func TestView_ZeroValueHasNoExpansion(t *testing.T) {
	var v View
	_, ok := v.Expanded()
	assert.False(t, ok)
	assert.Equal(t, 0, v.Len())
	assert.Equal(t, v, v.Toggle(0))
}

func TestView_ToggleSameIndexTwiceCollapses(t *testing.T) {
	v := NewView(makeItems(6))

	v = v.Toggle(2)
	idx, ok := v.Expanded()
	require.True(t, ok)
	assert.Equal(t, 2, idx)

	v = v.Toggle(2)
	_, ok = v.Expanded()
	assert.False(t, ok)
}

func TestView_ToggleDifferentIndexMovesExpansion(t *testing.T) {
	v := NewView(makeItems(6)).Toggle(2).Toggle(5)

	idx, ok := v.Expanded()
	require.True(t, ok)
	assert.Equal(t, 5, idx)
	assert.False(t, v.IsExpanded(2))
	assert.True(t, v.IsExpanded(5))
}

func TestView_ToggleOutOfRangeIsNoop(t *testing.T) {
	v := NewView(makeItems(2)).Toggle(1)
	assert.Equal(t, v, v.Toggle(7))
	assert.Equal(t, v, v.Toggle(-1))
}

func TestView_TransitionsDoNotMutateReceiver(t *testing.T) {
	before := NewView(makeItems(3))
	after := before.Toggle(1)

	_, ok := before.Expanded()
	assert.False(t, ok)
	assert.True(t, after.IsExpanded(1))

	items := after.Items()
	items[0].Name = "changed"
	first, _ := after.Item(0)
	assert.Equal(t, "Item A", first.Name)
}

func TestView_ReplaceResetsExpansionAndKeepsOrder(t *testing.T) {
	v := NewView(makeItems(3)).Toggle(0)

	dup := []Item{{Name: "x"}, {Name: "x"}, {Name: "y"}}
	v = v.Replace(dup)

	_, ok := v.Expanded()
	assert.False(t, ok)
	assert.Equal(t, dup, v.Items())
}

func TestView_ClearAndCollapse(t *testing.T) {
	v := NewView(makeItems(3)).Toggle(1)

	collapsed := v.Collapse()
	_, ok := collapsed.Expanded()
	assert.False(t, ok)
	assert.Equal(t, 3, collapsed.Len())

	cleared := v.Clear()
	assert.Equal(t, 0, cleared.Len())
	assert.Equal(t, []Item{}, cleared.Items())
}

func TestRender_ShowsDescriptionOnlyWhenExpanded(t *testing.T) {
	v := NewView(makeItems(2)).Toggle(1)

	out := Render(v, "http://localhost:8000")
	assert.Contains(t, out, Heading)
	assert.Contains(t, out, "Item A")
	assert.Contains(t, out, "Item B")
	assert.NotContains(t, out, "Description A")
	assert.Contains(t, out, "Description B")
	assert.Contains(t, out, "http://localhost:8000/products/item.jpg")
	assert.Contains(t, out, "29.99")
}

func TestRender_Empty(t *testing.T) {
	assert.Equal(t, "", Render(NewView(nil), "http://localhost:8000"))
}

func TestPlainPrices(t *testing.T) {
	assert.Equal(t, "$29.99 (was $49.99)", PlainPrices(Prices{Original: "49.99", Current: "29.99"}))
	assert.Equal(t, "$15", PlainPrices(Prices{Current: "15"}))
	assert.Equal(t, "(was $20)", PlainPrices(Prices{Original: "20"}))
	assert.Equal(t, "", PlainPrices(Prices{}))
}

func TestEncode_JSON(t *testing.T) {
	v := NewView(makeItems(2)).Toggle(0)

	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, v, "http://localhost:8000", FormatJSON))

	var doc EncodedView
	require.NoError(t, json.Unmarshal(buf.Bytes(), &doc))
	require.Len(t, doc.Products, 2)
	assert.Equal(t, "49.99", doc.Products[0].OriginalPrice)
	assert.Equal(t, "29.99", doc.Products[0].CurrentPrice)
	assert.True(t, doc.Products[0].Expanded)
	assert.Equal(t, "Description A", doc.Products[0].Description)
	assert.Empty(t, doc.Products[1].Description)
}

func TestEncode_YAML(t *testing.T) {
	v := NewView(makeItems(1))

	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, v, "http://localhost:8000/", FormatYAML))

	var doc EncodedView
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &doc))
	require.Len(t, doc.Products, 1)
	assert.Equal(t, "http://localhost:8000/products/item.jpg", doc.Products[0].ImageURL)
	assert.True(t, strings.HasPrefix(buf.String(), "products:"))
}

func TestEncode_UnknownFormat(t *testing.T) {
	err := Encode(&bytes.Buffer{}, NewView(nil), "", "xml")
	assert.Error(t, err)
}
