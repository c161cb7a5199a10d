package results

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"gopkg.in/yaml.v3"
)

// Output formats accepted by Encode.
const (
	FormatText = "text"
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// Heading is shown above a non-empty results list.
const Heading = "Recommended Products"

var (
	headingStyle  = lipgloss.NewStyle().Bold(true).MarginBottom(1)
	nameStyle     = lipgloss.NewStyle().Bold(true)
	originalStyle = lipgloss.NewStyle().Strikethrough(true).Foreground(lipgloss.Color("245"))
	currentStyle  = lipgloss.NewStyle().Bold(true)
	detailStyle   = lipgloss.NewStyle().PaddingLeft(4)
	linkStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("63"))
)

// EncodedItem is the structured form of an item written by Encode.
type EncodedItem struct {
	Index         int    `json:"index" yaml:"index"`
	Name          string `json:"name" yaml:"name"`
	OriginalPrice string `json:"original_price,omitempty" yaml:"original_price,omitempty"`
	CurrentPrice  string `json:"current_price,omitempty" yaml:"current_price,omitempty"`
	Description   string `json:"description,omitempty" yaml:"description,omitempty"`
	ImageURL      string `json:"image_url" yaml:"image_url"`
	Expanded      bool   `json:"expanded" yaml:"expanded"`
}

// EncodedView is the document written by Encode.
type EncodedView struct {
	Products []EncodedItem `json:"products" yaml:"products"`
}

// Document converts a view into its structured form. Descriptions are only
// included for the expanded item.
func Document(v View, baseURL string) EncodedView {
	doc := EncodedView{Products: make([]EncodedItem, 0, v.Len())}
	for i, it := range v.items {
		prices := it.Prices()
		enc := EncodedItem{
			Index:         i,
			Name:          it.Name,
			OriginalPrice: prices.Original,
			CurrentPrice:  prices.Current,
			ImageURL:      it.ImageURL(baseURL),
			Expanded:      v.IsExpanded(i),
		}
		if enc.Expanded {
			enc.Description = it.Description
		}
		doc.Products = append(doc.Products, enc)
	}
	return doc
}

// Encode writes the view to w in the given format.
func Encode(w io.Writer, v View, baseURL, format string) error {
	switch format {
	case FormatText, "":
		_, err := io.WriteString(w, Render(v, baseURL))
		return err
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(Document(v, baseURL))
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(Document(v, baseURL)); err != nil {
			return fmt.Errorf("failed to encode yaml: %w", err)
		}
		return enc.Close()
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
}

// Render formats the view for a terminal. An empty view renders as an empty
// string.
func Render(v View, baseURL string) string {
	if v.Len() == 0 {
		return ""
	}

	var sb strings.Builder
	sb.WriteString(headingStyle.Render(Heading))
	sb.WriteString("\n")
	for i, it := range v.items {
		marker := "▸"
		if v.IsExpanded(i) {
			marker = "▾"
		}
		sb.WriteString(fmt.Sprintf("%s %d. %s\n", marker, i+1, nameStyle.Render(it.Name)))

		if line := RenderPrices(it.Prices()); line != "" {
			sb.WriteString("   " + line + "\n")
		}
		sb.WriteString("   " + linkStyle.Render(it.ImageURL(baseURL)) + "\n")
		if v.IsExpanded(i) && it.Description != "" {
			sb.WriteString(detailStyle.Render(it.Description) + "\n")
		}
	}
	return sb.String()
}

// RenderPrices renders the original price struck through next to the current
// price. Missing prices are omitted.
func RenderPrices(p Prices) string {
	var parts []string
	if p.HasOriginal() {
		parts = append(parts, originalStyle.Render("$"+p.Original))
	}
	if p.HasCurrent() {
		parts = append(parts, currentStyle.Render("$"+p.Current))
	}
	return strings.Join(parts, " ")
}

// PlainPrices renders prices without terminal styling, e.g. "$29.99 (was
// $49.99)".
func PlainPrices(p Prices) string {
	switch {
	case p.HasOriginal() && p.HasCurrent():
		return fmt.Sprintf("$%s (was $%s)", p.Current, p.Original)
	case p.HasCurrent():
		return "$" + p.Current
	case p.HasOriginal():
		return fmt.Sprintf("(was $%s)", p.Original)
	default:
		return ""
	}
}
