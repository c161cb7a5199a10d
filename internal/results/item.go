package results

import (
	"regexp"
	"strings"
)

// Item is one product recommendation returned by the backend.
type Item struct {
	Name              string `json:"name" yaml:"name"`
	RawPriceText      string `json:"price" yaml:"price"`
	Description       string `json:"description" yaml:"description"`
	ImagePathFragment string `json:"image_path" yaml:"image_path"`
}

// Prices holds the price fields extracted from an item's raw price text.
// An empty field means the price was not present and should not be rendered.
type Prices struct {
	Original string
	Current  string
}

// HasOriginal reports whether an original price was found.
func (p Prices) HasOriginal() bool { return p.Original != "" }

// HasCurrent reports whether a current price was found.
func (p Prices) HasCurrent() bool { return p.Current != "" }

var (
	originalPriceRegex = regexp.MustCompile(`(?i)Original Price:\s*\$?([0-9.,]+)`)
	currentPriceRegex  = regexp.MustCompile(`(?i)Current Price:\s*\$?([0-9.,]+)`)
)

// ParsePrices extracts the original and current price from free text such as
// "Original Price: $49.99 Current Price: $29.99".
func ParsePrices(text string) Prices {
	return Prices{
		Original: firstGroup(originalPriceRegex, text),
		Current:  firstGroup(currentPriceRegex, text),
	}
}

func firstGroup(re *regexp.Regexp, text string) string {
	m := re.FindStringSubmatch(text)
	if m == nil {
		return ""
	}
	return m[1]
}

// Prices returns the prices parsed from the item's raw price text.
func (it Item) Prices() Prices {
	return ParsePrices(it.RawPriceText)
}

// ImageURL returns the absolute URL of the item's image on the backend.
func (it Item) ImageURL(baseURL string) string {
	return ImageURL(baseURL, it.ImagePathFragment)
}

// ImageURL joins a backend-relative image path onto baseURL. The backend may
// emit OS-native separators, so backslashes are normalized to forward slashes.
func ImageURL(baseURL, fragment string) string {
	fragment = strings.ReplaceAll(fragment, `\`, "/")
	return strings.TrimRight(baseURL, "/") + "/" + strings.TrimLeft(fragment, "/")
}
