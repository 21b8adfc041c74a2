// File: internal/device/forest.go
// Description: The accessibility forest model and its flattened UI element
// projection. A forest is a snapshot of every UI surface rendered on the
// device at one instant; each window holds a tree of accessibility nodes.

package device

import "fmt"

// Rect is a rectangle in screen coordinates.
type Rect struct {
	Left   int `json:"left"`
	Top    int `json:"top"`
	Right  int `json:"right"`
	Bottom int `json:"bottom"`
}

// Width returns the horizontal extent of the rectangle.
func (r Rect) Width() int { return r.Right - r.Left }

// Height returns the vertical extent of the rectangle.
func (r Rect) Height() int { return r.Bottom - r.Top }

func (r Rect) String() string {
	return fmt.Sprintf("[%d,%d][%d,%d]", r.Left, r.Top, r.Right, r.Bottom)
}

// Node is one accessibility node inside a window tree.
type Node struct {
	Bounds             Rect    `json:"bounds"`
	Text               string  `json:"text,omitempty"`
	ContentDescription string  `json:"content_description,omitempty"`
	ClassName          string  `json:"class_name,omitempty"`
	PackageName        string  `json:"package_name,omitempty"`
	ResourceID         string  `json:"resource_id,omitempty"`
	HintText           string  `json:"hint_text,omitempty"`
	IsVisibleToUser    bool    `json:"is_visible_to_user"`
	IsClickable        bool    `json:"is_clickable"`
	IsLongClickable    bool    `json:"is_long_clickable"`
	IsEnabled          bool    `json:"is_enabled"`
	IsFocusable        bool    `json:"is_focusable"`
	IsFocused          bool    `json:"is_focused"`
	IsScrollable       bool    `json:"is_scrollable"`
	IsCheckable        bool    `json:"is_checkable"`
	IsChecked          bool    `json:"is_checked"`
	IsSelected         bool    `json:"is_selected"`
	IsEditable         bool    `json:"is_editable"`
	Children           []*Node `json:"children,omitempty"`
}

// Window is one UI surface (application window, system bar, IME, ...).
type Window struct {
	ID     int    `json:"id"`
	Layer  int    `json:"layer"`
	Title  string `json:"title,omitempty"`
	Active bool   `json:"active"`
	Root   *Node  `json:"root,omitempty"`
}

// Forest is a snapshot of all windows rendered on the device at one instant.
// Forests are owned transiently by the caller of a fetch and never cached
// across fetches.
type Forest struct {
	Windows []*Window `json:"windows"`
}

// UIElement is the flattened projection of a forest node: everything an
// evaluator or agent needs to reason about one on-screen element, detached
// from the tree structure. Derived, never mutated independently of its
// source snapshot.
type UIElement struct {
	Text               string `json:"text,omitempty"`
	ContentDescription string `json:"content_description,omitempty"`
	ClassName          string `json:"class_name,omitempty"`
	PackageName        string `json:"package_name,omitempty"`
	ResourceID         string `json:"resource_id,omitempty"`
	HintText           string `json:"hint_text,omitempty"`
	BoundsInScreen     Rect   `json:"bounds_in_screen"`
	IsVisible          bool   `json:"is_visible"`
	IsClickable        bool   `json:"is_clickable"`
	IsLongClickable    bool   `json:"is_long_clickable"`
	IsEnabled          bool   `json:"is_enabled"`
	IsFocusable        bool   `json:"is_focusable"`
	IsFocused          bool   `json:"is_focused"`
	IsScrollable       bool   `json:"is_scrollable"`
	IsCheckable        bool   `json:"is_checkable"`
	IsChecked          bool   `json:"is_checked"`
	IsSelected         bool   `json:"is_selected"`
	IsEditable         bool   `json:"is_editable"`
}

// FlattenForest projects every node of every window into a flat element
// slice, in depth-first document order. When excludeInvisible is set, nodes
// not visible to the user are skipped (their subtrees are still descended,
// since an invisible container can hold visible children).
func FlattenForest(f *Forest, excludeInvisible bool) []UIElement {
	if f == nil {
		return nil
	}
	var elements []UIElement
	for _, w := range f.Windows {
		flattenNode(w.Root, excludeInvisible, &elements)
	}
	return elements
}

func flattenNode(n *Node, excludeInvisible bool, out *[]UIElement) {
	if n == nil {
		return
	}
	if n.IsVisibleToUser || !excludeInvisible {
		*out = append(*out, nodeToElement(n))
	}
	for _, child := range n.Children {
		flattenNode(child, excludeInvisible, out)
	}
}

func nodeToElement(n *Node) UIElement {
	return UIElement{
		Text:               n.Text,
		ContentDescription: n.ContentDescription,
		ClassName:          n.ClassName,
		PackageName:        n.PackageName,
		ResourceID:         n.ResourceID,
		HintText:           n.HintText,
		BoundsInScreen:     n.Bounds,
		IsVisible:          n.IsVisibleToUser,
		IsClickable:        n.IsClickable,
		IsLongClickable:    n.IsLongClickable,
		IsEnabled:          n.IsEnabled,
		IsFocusable:        n.IsFocusable,
		IsFocused:          n.IsFocused,
		IsScrollable:       n.IsScrollable,
		IsCheckable:        n.IsCheckable,
		IsChecked:          n.IsChecked,
		IsSelected:         n.IsSelected,
		IsEditable:         n.IsEditable,
	}
}
