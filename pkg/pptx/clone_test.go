package pptx

import (
	"testing"

	"github.com/beevik/etree"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/participation-api/internal/testutil"
)

func shapeKinds(shapes []*Shape) []ShapeKind {
	kinds := make([]ShapeKind, 0, len(shapes))
	for _, shape := range shapes {
		kinds = append(kinds, shape.Kind)
	}
	return kinds
}

func slideXML(t *testing.T, s *Slide) string {
	t.Helper()
	out, err := s.doc.WriteToString()
	require.NoError(t, err)
	return out
}

func TestCloneSlideCopiesPictureTableAndGroup(t *testing.T) {
	deck := openCertificate(t)
	template := deck.Slides()[0]
	before := slideXML(t, template)

	clone, err := deck.CloneSlide(template)
	require.NoError(t, err)
	require.Equal(t, 2, deck.SlideCount())

	shapes := clone.Shapes()
	require.Equal(t, []ShapeKind{ShapeAuto, ShapePicture, ShapeTable, ShapeGroup}, shapeKinds(shapes))

	original := template.Shapes()
	wantTransform, ok := original[1].Transform()
	require.True(t, ok)
	gotTransform, ok := shapes[1].Transform()
	require.True(t, ok)
	require.Equal(t, wantTransform, gotTransform)

	image, err := shapes[1].Image()
	require.NoError(t, err)
	require.Equal(t, testutil.PNG(t), image)

	require.Equal(t, 4, shapes[2].CellCount())
	require.Equal(t, original[2].CellCount(), shapes[2].CellCount())

	children := shapes[3].Children()
	require.Len(t, children, len(original[3].Children()))
	require.Equal(t, []ShapeKind{ShapeAuto, ShapeAuto, ShapePicture}, shapeKinds(children))

	nested, err := children[2].Image()
	require.NoError(t, err, "relationship of a picture inside a group must be carried to the clone")
	require.Equal(t, testutil.PNG(t), nested)

	require.Equal(t, before, slideXML(t, template))
}

func TestCloneSlideKeepsExtensionListLast(t *testing.T) {
	deck := openCertificate(t)

	clone, err := deck.CloneSlide(deck.Slides()[0])
	require.NoError(t, err)

	children := spTree(clone.doc.Root()).ChildElements()
	require.Equal(t, "extLst", children[len(children)-1].Tag)
	require.Nil(t, clone.doc.Root().SelectElement("p:timing"))
	require.NotNil(t, clone.doc.Root().SelectElement("p:clrMapOvr"))
}

func TestCloneSlideUsesTemplateLayout(t *testing.T) {
	deck := openCertificate(t)

	clone, err := deck.CloneSlide(deck.Slides()[0])
	require.NoError(t, err)

	layout, ok := clone.rels.firstOfType(relTypeSlideLayout)
	require.True(t, ok)
	require.Equal(t, "../slideLayouts/slideLayout1.xml", layout.Target)
	require.Empty(t, clone.rels.ofType(relTypeNotesSlide))
}

func TestClonesAreIndependent(t *testing.T) {
	deck := openCertificate(t)
	template := deck.Slides()[0]
	placeholders := CompilePlaceholders("name")

	first, err := deck.CloneSlide(template)
	require.NoError(t, err)
	second, err := deck.CloneSlide(template)
	require.NoError(t, err)
	require.NotEqual(t, first.Part(), second.Part())

	first.ReplacePlaceholders(placeholders, map[string]string{"name": "Ada Lovelace"})
	second.ReplacePlaceholders(placeholders, map[string]string{"name": "Grace Hopper"})

	require.Contains(t, first.Text(), "Awarded to Ada Lovelace")
	require.NotContains(t, first.Text(), "Grace Hopper")
	require.Contains(t, second.Text(), "Awarded to Grace Hopper")
	require.Contains(t, template.Text(), "Awarded to {NAME}")
}

func TestCloneSlideFallsBackToDeepCopyForLinkedPictures(t *testing.T) {
	linked := `<p:pic>
  <p:nvPicPr><p:cNvPr id="2" name="Remote"/><p:cNvPicPr/><p:nvPr/></p:nvPicPr>
  <p:blipFill><a:blip r:link="rId3"/><a:stretch><a:fillRect/></a:stretch></p:blipFill>
  <p:spPr><a:xfrm><a:off x="10" y="20"/><a:ext cx="30" cy="40"/></a:xfrm></p:spPr>
</p:pic>`
	data := testutil.BuildPresentation(t, testutil.SlideFixture{
		Shapes: linked,
		Rels: []testutil.FixtureRel{
			{ID: "rId3", Type: testutil.RelTypeImage, Target: "https://cdn.example.com/logo.png", TargetMode: "External"},
		},
	})

	deck, err := Open(data)
	require.NoError(t, err)
	template := deck.Slides()[0]

	_, err = template.Shapes()[0].Image()
	require.ErrorIs(t, err, ErrPictureCopy)

	clone, err := deck.CloneSlide(template)
	require.NoError(t, err)

	shapes := clone.Shapes()
	require.Len(t, shapes, 1)
	require.Equal(t, ShapePicture, shapes[0].Kind)
	require.Equal(t, "Remote", shapes[0].Name())

	blip := shapes[0].el.SelectElement("p:blipFill").SelectElement("a:blip")
	rel, ok := clone.rels.get(blip.SelectAttrValue("r:link", ""))
	require.True(t, ok)
	require.True(t, rel.external())
	require.Equal(t, "https://cdn.example.com/logo.png", rel.Target)
}

func TestCloneSlideAssignsUniqueShapeIDs(t *testing.T) {
	shapes := `<p:pic>
  <p:nvPicPr><p:cNvPr id="9" name="Logo"/><p:cNvPicPr/><p:nvPr/></p:nvPicPr>
  <p:blipFill><a:blip r:embed="rId2"/><a:stretch><a:fillRect/></a:stretch></p:blipFill>
  <p:spPr><a:xfrm><a:off x="10" y="20"/><a:ext cx="30" cy="40"/></a:xfrm></p:spPr>
</p:pic>` + textShape(2, "Awarded to {name}")
	data := testutil.BuildPresentation(t, testutil.SlideFixture{
		Shapes: shapes,
		Rels: []testutil.FixtureRel{
			{ID: "rId2", Type: testutil.RelTypeImage, Target: "../media/image1.png"},
		},
	})

	deck, err := Open(data)
	require.NoError(t, err)

	clone, err := deck.CloneSlide(deck.Slides()[0])
	require.NoError(t, err)
	require.Equal(t, []ShapeKind{ShapePicture, ShapeAuto}, shapeKinds(clone.Shapes()))

	seen := make(map[string]bool)
	var walk func(el *etree.Element)
	walk = func(el *etree.Element) {
		if el.Tag == "cNvPr" {
			id := el.SelectAttrValue("id", "")
			require.False(t, seen[id], "duplicate shape id %s", id)
			seen[id] = true
		}
		for _, child := range el.ChildElements() {
			walk(child)
		}
	}
	walk(spTree(clone.doc.Root()))
	require.True(t, seen["2"])
	require.True(t, seen["10"])
}

func TestCloneSlideRejectsSlidesFromOtherDecks(t *testing.T) {
	deck := openCertificate(t)
	other := openCertificate(t)

	_, err := deck.CloneSlide(other.Slides()[0])
	require.ErrorIs(t, err, ErrSlideNotFound)
}

func TestShapeKindString(t *testing.T) {
	require.Equal(t, "picture", ShapePicture.String())
	require.Equal(t, "table", ShapeTable.String())
	require.Equal(t, "other", ShapeOther.String())
}
