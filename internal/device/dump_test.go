// internal/device/dump_test.go
package device

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleDump = `<?xml version='1.0' encoding='UTF-8' standalone='yes' ?>
<hierarchy rotation="0">
  <node index="0" text="" resource-id="" class="android.widget.FrameLayout" package="com.android.settings" content-desc="" checkable="false" checked="false" clickable="false" enabled="true" focusable="false" focused="false" scrollable="false" long-clickable="false" password="false" selected="false" bounds="[0,0][1080,2280]">
    <node index="0" text="Network &amp; internet" resource-id="android:id/title" class="android.widget.TextView" package="com.android.settings" content-desc="" checkable="false" checked="false" clickable="true" enabled="true" focusable="true" focused="false" scrollable="false" long-clickable="false" password="false" selected="false" bounds="[56,400][600,470]"/>
    <node index="1" text="" resource-id="com.android.settings:id/list" class="androidx.recyclerview.widget.RecyclerView" package="com.android.settings" content-desc="Settings list" checkable="false" checked="false" clickable="false" enabled="true" focusable="true" focused="false" scrollable="true" long-clickable="false" password="false" selected="false" bounds="[0,300][1080,2280]"/>
  </node>
</hierarchy>`

func TestParseUIAutomatorDump(t *testing.T) {
	t.Parallel()

	elements, err := ParseUIAutomatorDump(sampleDump)
	require.NoError(t, err)
	require.Len(t, elements, 3)

	root := elements[0]
	assert.Equal(t, "android.widget.FrameLayout", root.ClassName)
	assert.Equal(t, "com.android.settings", root.PackageName)
	assert.Equal(t, Rect{Left: 0, Top: 0, Right: 1080, Bottom: 2280}, root.BoundsInScreen)
	assert.True(t, root.IsVisible)
	assert.False(t, root.IsClickable)

	title := elements[1]
	assert.Equal(t, "Network & internet", title.Text)
	assert.Equal(t, "android:id/title", title.ResourceID)
	assert.True(t, title.IsClickable)
	assert.True(t, title.IsEnabled)
	assert.Equal(t, Rect{Left: 56, Top: 400, Right: 600, Bottom: 470}, title.BoundsInScreen)

	list := elements[2]
	assert.Equal(t, "Settings list", list.ContentDescription)
	assert.True(t, list.IsScrollable)
}

func TestParseUIAutomatorDump_NegativeBounds(t *testing.T) {
	t.Parallel()

	const xml = `<hierarchy><node bounds="[-20,-10][1080,1920]" enabled="true"/></hierarchy>`
	elements, err := ParseUIAutomatorDump(xml)
	require.NoError(t, err)
	require.Len(t, elements, 1)
	assert.Equal(t, Rect{Left: -20, Top: -10, Right: 1080, Bottom: 1920}, elements[0].BoundsInScreen)
}

func TestParseUIAutomatorDump_MalformedInputs(t *testing.T) {
	t.Parallel()

	_, err := ParseUIAutomatorDump("not xml at all <<<")
	assert.Error(t, err)

	_, err = ParseUIAutomatorDump("<wrongroot/>")
	assert.Error(t, err)
}

func TestParseUIAutomatorDump_MissingBoundsDefaultToZero(t *testing.T) {
	t.Parallel()

	elements, err := ParseUIAutomatorDump(`<hierarchy><node text="x"/></hierarchy>`)
	require.NoError(t, err)
	require.Len(t, elements, 1)
	assert.Equal(t, Rect{}, elements[0].BoundsInScreen)
}
