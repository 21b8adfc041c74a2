// File: internal/device/dump.go
// Description: Parses `uiautomator dump` XML into UI elements. This is the
// fallback path for devices where the accessibility forwarder wrapper is not
// in use; the dump is synchronous but carries less detail than a forest.

package device

import (
	"fmt"
	"regexp"
	"strconv"

	"github.com/beevik/etree"
)

var boundsRe = regexp.MustCompile(`\[(-?\d+),(-?\d+)\]\[(-?\d+),(-?\d+)\]`)

// ParseUIAutomatorDump converts a uiautomator XML document into a flat
// element slice in document order. Nodes in the dump are visible by
// definition; uiautomator only reports what is on screen.
func ParseUIAutomatorDump(xml string) ([]UIElement, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromString(xml); err != nil {
		return nil, fmt.Errorf("malformed uiautomator dump: %w", err)
	}
	root := doc.SelectElement("hierarchy")
	if root == nil {
		return nil, fmt.Errorf("uiautomator dump has no hierarchy element")
	}

	var elements []UIElement
	for _, node := range root.SelectElements("node") {
		collectDumpNodes(node, &elements)
	}
	return elements, nil
}

func collectDumpNodes(el *etree.Element, out *[]UIElement) {
	*out = append(*out, dumpNodeToElement(el))
	for _, child := range el.SelectElements("node") {
		collectDumpNodes(child, out)
	}
}

func dumpNodeToElement(el *etree.Element) UIElement {
	return UIElement{
		Text:               el.SelectAttrValue("text", ""),
		ContentDescription: el.SelectAttrValue("content-desc", ""),
		ClassName:          el.SelectAttrValue("class", ""),
		PackageName:        el.SelectAttrValue("package", ""),
		ResourceID:         el.SelectAttrValue("resource-id", ""),
		BoundsInScreen:     parseBounds(el.SelectAttrValue("bounds", "")),
		IsVisible:          true,
		IsClickable:        boolAttr(el, "clickable"),
		IsLongClickable:    boolAttr(el, "long-clickable"),
		IsEnabled:          boolAttr(el, "enabled"),
		IsFocusable:        boolAttr(el, "focusable"),
		IsFocused:          boolAttr(el, "focused"),
		IsScrollable:       boolAttr(el, "scrollable"),
		IsCheckable:        boolAttr(el, "checkable"),
		IsChecked:          boolAttr(el, "checked"),
		IsSelected:         boolAttr(el, "selected"),
	}
}

func boolAttr(el *etree.Element, name string) bool {
	return el.SelectAttrValue(name, "false") == "true"
}

func parseBounds(s string) Rect {
	m := boundsRe.FindStringSubmatch(s)
	if m == nil {
		return Rect{}
	}
	left, _ := strconv.Atoi(m[1])
	top, _ := strconv.Atoi(m[2])
	right, _ := strconv.Atoi(m[3])
	bottom, _ := strconv.Atoi(m[4])
	return Rect{Left: left, Top: top, Right: right, Bottom: bottom}
}
