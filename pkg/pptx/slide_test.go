package pptx

import (
	"testing"

	"github.com/stretchr/testify/require"
)

var certificateValues = map[string]string{
	"name":       "Ada Lovelace",
	"event_date": "2024-05-01",
	"event":      "Chess",
	"year":       "2024",
	"room":       "3",
	"position":   "First",
	"team_name":  "Owls",
	"events":     "Chess, Robotics",
	"award_date": "2024-06-01",
}

func certificatePlaceholders() *Placeholders {
	return CompilePlaceholders("name", "event_date", "event", "year", "room", "position", "team_name", "events", "award_date")
}

func TestReplacePlaceholdersCoversShapesTablesAndGroups(t *testing.T) {
	deck := openCertificate(t)
	clone, err := deck.CloneSlide(deck.Slides()[0])
	require.NoError(t, err)

	clone.ReplacePlaceholders(certificatePlaceholders(), certificateValues)

	text := clone.Text()
	require.Contains(t, text, "Awarded to Ada Lovelace")
	require.Contains(t, text, "held on 2024-05-01 for First place")
	require.Contains(t, text, "Keep {unmapped_key}")
	require.Contains(t, text, "Room 3")
	require.Contains(t, text, "Class of 2024")
	require.Contains(t, text, "Team: Owls")
	require.Contains(t, text, "Chess")
	require.Contains(t, text, "For taking part in Chess, Robotics")
	require.Contains(t, text, "Tournaments office, 2024-06-01")
}

func TestReplacePlaceholdersKeepsRunFormatting(t *testing.T) {
	deck := openCertificate(t)
	clone, err := deck.CloneSlide(deck.Slides()[0])
	require.NoError(t, err)

	clone.ReplacePlaceholders(certificatePlaceholders(), certificateValues)

	body := clone.Shapes()[0].el.SelectElement("p:txBody")
	paragraphs := body.SelectElements("a:p")
	require.Len(t, paragraphs, 3)

	// The token sat inside one run, so the run and its bold flag survive.
	runs := paragraphs[0].SelectElements("a:r")
	require.Len(t, runs, 1)
	require.Equal(t, "1", runs[0].SelectElement("a:rPr").SelectAttrValue("b", ""))
	require.Equal(t, "Awarded to Ada Lovelace", runs[0].SelectElement("a:t").Text())

	// The token straddled two runs; they collapse into one run styled like the first.
	runs = paragraphs[1].SelectElements("a:r")
	require.Len(t, runs, 1)
	require.Equal(t, "1", runs[0].SelectElement("a:rPr").SelectAttrValue("i", ""))
	require.Equal(t, "held on 2024-05-01 for First place", runs[0].SelectElement("a:t").Text())
	children := paragraphs[1].ChildElements()
	require.Equal(t, "endParaRPr", children[len(children)-1].Tag)
}

func TestReplaceLiteralTouchesEveryRun(t *testing.T) {
	deck := openCertificate(t)
	clone, err := deck.CloneSlide(deck.Slides()[0])
	require.NoError(t, err)

	clone.ReplaceLiteral("Tournaments", "Tournament")
	require.Contains(t, clone.Text(), "Tournament office")
	require.NotContains(t, clone.Text(), "Tournaments")

	clone.ReplaceLiteral("", "ignored")
	require.Contains(t, clone.Text(), "Tournament office")
}

func TestSubstitutionOnCloneLeavesTemplateUntouched(t *testing.T) {
	deck := openCertificate(t)
	template := deck.Slides()[0]

	clone, err := deck.CloneSlide(template)
	require.NoError(t, err)
	clone.ReplacePlaceholders(certificatePlaceholders(), certificateValues)
	clone.ReplaceLiteral("Tournaments", "Tournament")

	text := template.Text()
	require.Contains(t, text, "{NAME}")
	require.Contains(t, text, "[event_")
	require.Contains(t, text, "Tournaments office")
}
