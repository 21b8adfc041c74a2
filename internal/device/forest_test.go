// internal/device/forest_test.go
package device

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlattenForest_DocumentOrderAcrossWindows(t *testing.T) {
	t.Parallel()

	forest := &Forest{Windows: []*Window{
		{
			ID: 1,
			Root: &Node{
				Text: "a", IsVisibleToUser: true,
				Children: []*Node{
					{Text: "a1", IsVisibleToUser: true},
					{Text: "a2", IsVisibleToUser: true,
						Children: []*Node{{Text: "a2x", IsVisibleToUser: true}}},
				},
			},
		},
		{
			ID:   2,
			Root: &Node{Text: "b", IsVisibleToUser: true},
		},
	}}

	elements := FlattenForest(forest, true)
	texts := make([]string, len(elements))
	for i, e := range elements {
		texts[i] = e.Text
	}
	assert.Equal(t, []string{"a", "a1", "a2", "a2x", "b"}, texts)
}

func TestFlattenForest_InvisibleContainerStillDescended(t *testing.T) {
	t.Parallel()

	forest := &Forest{Windows: []*Window{{
		Root: &Node{
			Text: "container", IsVisibleToUser: false,
			Children: []*Node{
				{Text: "visible child", IsVisibleToUser: true},
			},
		},
	}}}

	visibleOnly := FlattenForest(forest, true)
	require.Len(t, visibleOnly, 1)
	assert.Equal(t, "visible child", visibleOnly[0].Text)

	all := FlattenForest(forest, false)
	require.Len(t, all, 2)
	assert.Equal(t, "container", all[0].Text)
	assert.False(t, all[0].IsVisible)
}

func TestFlattenForest_NilAndEmptyInputs(t *testing.T) {
	t.Parallel()

	assert.Nil(t, FlattenForest(nil, true))
	assert.Empty(t, FlattenForest(&Forest{}, true))
	assert.Empty(t, FlattenForest(&Forest{Windows: []*Window{{ID: 1}}}, true))
}

func TestRectDimensions(t *testing.T) {
	t.Parallel()

	r := Rect{Left: 10, Top: 20, Right: 110, Bottom: 220}
	assert.Equal(t, 100, r.Width())
	assert.Equal(t, 200, r.Height())
	assert.Equal(t, "[10,20][110,220]", r.String())
}
