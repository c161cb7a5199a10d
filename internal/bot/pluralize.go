package bot

import "fmt"

// pluralize formats count with the matching noun, e.g. "1 product".
func pluralize(singular, plural string, count int) string {
	if count == 1 {
		return fmt.Sprintf("%d %s", count, singular)
	}
	return fmt.Sprintf("%d %s", count, plural)
}
