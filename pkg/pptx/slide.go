package pptx

import (
	"strings"

	"github.com/beevik/etree"
)

// Slide is one slide part of a deck.
type Slide struct {
	deck  *Deck
	part  string
	relID string
	doc   *etree.Document
	rels  *relationships

	// idFloor is the highest shape id a clone inherits from its template.
	idFloor int
}

// Part returns the package part name of the slide.
func (s *Slide) Part() string {
	return s.part
}

// Shapes returns the top-level shapes in z-order.
func (s *Slide) Shapes() []*Shape {
	return wrapShapes(s, shapeElements(spTree(s.doc.Root())))
}

// Text returns the text of every text-bearing shape, one paragraph per line.
func (s *Slide) Text() string {
	var parts []string
	for _, shape := range s.Shapes() {
		if text := shape.Text(); text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, "\n")
}

// ReplacePlaceholders fills every recognised placeholder on the slide.
// Runs are rewritten in place so their formatting survives; a paragraph whose
// placeholder straddles runs is collapsed into a single run.
func (s *Slide) ReplacePlaceholders(p *Placeholders, values map[string]string) {
	replace := func(text string) string {
		return p.Replace(text, values)
	}

	for _, body := range s.textBodies() {
		for _, paragraph := range body.SelectElements("a:p") {
			runs := paragraph.SelectElements("a:r")
			if len(runs) == 0 {
				continue
			}

			var joined strings.Builder
			for _, run := range runs {
				t := run.SelectElement("a:t")
				if t == nil {
					continue
				}
				if replaced := replace(t.Text()); replaced != t.Text() {
					t.SetText(replaced)
				}
				joined.WriteString(t.Text())
			}

			if replaced := replace(joined.String()); replaced != joined.String() {
				collapseParagraph(paragraph, runs[0], replaced)
			}
		}
	}
}

// ReplaceLiteral substitutes a fixed substring inside every run of the slide.
func (s *Slide) ReplaceLiteral(search, replacement string) {
	if search == "" {
		return
	}
	for _, body := range s.textBodies() {
		for _, paragraph := range body.SelectElements("a:p") {
			for _, run := range paragraph.SelectElements("a:r") {
				t := run.SelectElement("a:t")
				if t == nil || !strings.Contains(t.Text(), search) {
					continue
				}
				t.SetText(strings.ReplaceAll(t.Text(), search, replacement))
			}
		}
	}
}

func (s *Slide) textBodies() []*etree.Element {
	var bodies []*etree.Element
	for _, el := range shapeElements(spTree(s.doc.Root())) {
		bodies = append(bodies, textBodies(el)...)
	}
	return bodies
}

// collapseParagraph replaces all runs, breaks and fields of p with one run
// carrying text. The new run keeps the character properties of first.
func collapseParagraph(p, first *etree.Element, text string) {
	var props *etree.Element
	if rPr := first.SelectElement("a:rPr"); rPr != nil {
		props = rPr.Copy()
	}

	for _, child := range p.ChildElements() {
		switch child.Tag {
		case "r", "br", "fld":
			p.RemoveChild(child)
		}
	}

	run := etree.NewElement("a:r")
	if props != nil {
		run.AddChild(props)
	}
	run.CreateElement("a:t").SetText(text)

	if end := p.SelectElement("a:endParaRPr"); end != nil {
		p.InsertChildAt(end.Index(), run)
		return
	}
	p.AddChild(run)
}
