package contents

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleCOL = `
<XMLCOL>
<Collection>
<Folders>
  <Folder>
    <TitleString>Guides</TitleString>
    <FolderOrder>2</FolderOrder>
    <Folders>
      <Folder>
        <TitleString>=guide1</TitleString>
        <FolderOrder>1</FolderOrder>
      </Folder>
    </Folders>
  </Folder>
  <Folder>
    <TitleString>=reference</TitleString>
    <FolderOrder>1</FolderOrder>
  </Folder>
</Folders>
</Collection>
</XMLCOL>
`

func TestParseCOL(t *testing.T) {
	folders, err := ParseCOL([]byte(sampleCOL))
	require.NoError(t, err)
	require.Len(t, folders, 2)

	// Siblings come back in FolderOrder.
	assert.Equal(t, "=reference", folders[0].Title)
	assert.Equal(t, "Guides", folders[1].Title)

	stem, ok := folders[0].ArchiveStem()
	require.True(t, ok)
	assert.Equal(t, "reference", stem)

	_, ok = folders[1].ArchiveStem()
	assert.False(t, ok)

	require.Len(t, folders[1].Children, 1)
	stem, ok = folders[1].Children[0].ArchiveStem()
	require.True(t, ok)
	assert.Equal(t, "guide1", stem)
}

func TestBuildFromCol(t *testing.T) {
	folders, err := ParseCOL([]byte(sampleCOL))
	require.NoError(t, err)

	tr := New()
	BuildFromCol(tr, folders)

	root := tr.Node(tr.RootIndex())
	require.Len(t, root.Children, 2)

	ref := tr.Node(root.Children[0])
	assert.Equal(t, Placeholder, ref.Kind)
	assert.Equal(t, "reference", ref.Stem)

	guides := tr.Node(root.Children[1])
	assert.Equal(t, Folder, guides.Kind)
	assert.Equal(t, "Guides", guides.Title)
	require.Len(t, guides.Children, 1)

	guide1 := tr.Node(guides.Children[0])
	assert.Equal(t, Placeholder, guide1.Kind)
	assert.Equal(t, "guide1", guide1.Stem)
}

func TestCollectStems(t *testing.T) {
	folders, err := ParseCOL([]byte(sampleCOL))
	require.NoError(t, err)

	assert.Equal(t, []string{"reference", "guide1"}, CollectStems(folders))
}
