package results

// noExpansion marks a view without an expanded item.
const noExpansion = -1

// View is the results list together with the single expanded item, if any.
// Views are values: every transition returns a new View and never mutates the
// receiver, so a View handed out as part of a snapshot stays stable.
type View struct {
	items    []Item
	expanded int
	set      bool // false for the zero value, which has no expansion
}

// NewView returns a view over items with nothing expanded.
func NewView(items []Item) View {
	return View{items: cloneItems(items), expanded: noExpansion, set: true}
}

// Items returns a copy of the items in backend order.
func (v View) Items() []Item {
	return cloneItems(v.items)
}

// Len returns the number of items.
func (v View) Len() int {
	return len(v.items)
}

// Item returns the item at index i.
func (v View) Item(i int) (Item, bool) {
	if i < 0 || i >= len(v.items) {
		return Item{}, false
	}
	return v.items[i], true
}

// Expanded returns the expanded index, or false when nothing is expanded.
func (v View) Expanded() (int, bool) {
	if !v.set || v.expanded == noExpansion {
		return 0, false
	}
	return v.expanded, true
}

// IsExpanded reports whether item i is the expanded item.
func (v View) IsExpanded(i int) bool {
	idx, ok := v.Expanded()
	return ok && idx == i
}

// Replace returns a view over new items. The expansion is reset.
func (v View) Replace(items []Item) View {
	return NewView(items)
}

// Clear returns an empty view.
func (v View) Clear() View {
	return NewView(nil)
}

// Toggle expands item i, or collapses it when it is already expanded. At most
// one item is expanded at a time. Out of range indexes leave the view as is.
func (v View) Toggle(i int) View {
	if i < 0 || i >= len(v.items) {
		return v
	}
	next := v
	next.set = true
	if v.IsExpanded(i) {
		next.expanded = noExpansion
	} else {
		next.expanded = i
	}
	return next
}

// Collapse returns the view with nothing expanded.
func (v View) Collapse() View {
	next := v
	next.set = true
	next.expanded = noExpansion
	return next
}

func cloneItems(items []Item) []Item {
	if len(items) == 0 {
		return []Item{}
	}
	out := make([]Item, len(items))
	copy(out, items)
	return out
}
