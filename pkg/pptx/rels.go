package pptx

import (
	"fmt"
	"path"
	"strconv"
	"strings"

	"github.com/beevik/etree"
)

const (
	relTypeOfficeDocument = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/officeDocument"
	relTypeSlide          = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/slide"
	relTypeSlideLayout    = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/slideLayout"
	relTypeNotesSlide     = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/notesSlide"
	relTypeImage          = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/image"

	nsPackageRels = "http://schemas.openxmlformats.org/package/2006/relationships"

	contentTypeSlide = "application/vnd.openxmlformats-officedocument.presentationml.slide+xml"
	contentTypeRels  = "application/vnd.openxmlformats-package.relationships+xml"

	targetModeExternal = "External"
)

type relationship struct {
	ID         string
	Type       string
	Target     string
	TargetMode string
}

func (r relationship) external() bool {
	return strings.EqualFold(r.TargetMode, targetModeExternal)
}

// relationships wraps one *.rels part.
type relationships struct {
	part string
	doc  *etree.Document
}

func newRelationships(part string) *relationships {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8" standalone="yes"`)
	root := doc.CreateElement("Relationships")
	root.CreateAttr("xmlns", nsPackageRels)
	return &relationships{part: part, doc: doc}
}

func (r *relationships) root() *etree.Element {
	root := r.doc.Root()
	if root == nil {
		root = r.doc.CreateElement("Relationships")
		root.CreateAttr("xmlns", nsPackageRels)
	}
	return root
}

func (r *relationships) list() []relationship {
	elements := r.root().SelectElements("Relationship")
	result := make([]relationship, 0, len(elements))
	for _, el := range elements {
		result = append(result, relationship{
			ID:         el.SelectAttrValue("Id", ""),
			Type:       el.SelectAttrValue("Type", ""),
			Target:     el.SelectAttrValue("Target", ""),
			TargetMode: el.SelectAttrValue("TargetMode", ""),
		})
	}
	return result
}

func (r *relationships) get(id string) (relationship, bool) {
	for _, rel := range r.list() {
		if rel.ID == id {
			return rel, true
		}
	}
	return relationship{}, false
}

func (r *relationships) firstOfType(relType string) (relationship, bool) {
	for _, rel := range r.list() {
		if rel.Type == relType {
			return rel, true
		}
	}
	return relationship{}, false
}

func (r *relationships) ofType(relType string) []relationship {
	var result []relationship
	for _, rel := range r.list() {
		if rel.Type == relType {
			result = append(result, rel)
		}
	}
	return result
}

// add appends a relationship and returns its newly allocated rId.
func (r *relationships) add(relType, target, targetMode string) string {
	next := 1
	for _, rel := range r.list() {
		if n, ok := parseRID(rel.ID); ok && n >= next {
			next = n + 1
		}
	}

	id := "rId" + strconv.Itoa(next)
	el := r.root().CreateElement("Relationship")
	el.CreateAttr("Id", id)
	el.CreateAttr("Type", relType)
	el.CreateAttr("Target", target)
	if targetMode != "" {
		el.CreateAttr("TargetMode", targetMode)
	}
	return id
}

func (r *relationships) remove(id string) bool {
	root := r.root()
	for _, el := range root.SelectElements("Relationship") {
		if el.SelectAttrValue("Id", "") == id {
			root.RemoveChild(el)
			return true
		}
	}
	return false
}

func parseRID(id string) (int, bool) {
	if !strings.HasPrefix(id, "rId") {
		return 0, false
	}
	n, err := strconv.Atoi(strings.TrimPrefix(id, "rId"))
	if err != nil {
		return 0, false
	}
	return n, true
}

// relsPartFor returns the rels part name that belongs to the given part.
// The empty part name denotes the package itself.
func relsPartFor(part string) string {
	if part == "" {
		return "_rels/.rels"
	}
	return path.Join(path.Dir(part), "_rels", path.Base(part)+".rels")
}

// resolveTarget turns a relationship target into an absolute part name.
func resolveTarget(source, target string) string {
	if strings.HasPrefix(target, "/") {
		return strings.TrimPrefix(target, "/")
	}
	dir := "."
	if source != "" {
		dir = path.Dir(source)
	}
	return strings.TrimPrefix(path.Join(dir, target), "./")
}

// relativeTarget computes the target string used by source to reach part.
func relativeTarget(source, part string) string {
	from := strings.Split(path.Dir(source), "/")
	to := strings.Split(part, "/")

	common := 0
	for common < len(from) && common < len(to)-1 && from[common] == to[common] {
		common++
	}

	segments := make([]string, 0, len(from)-common+len(to)-common)
	for i := common; i < len(from); i++ {
		if from[i] == "." || from[i] == "" {
			continue
		}
		segments = append(segments, "..")
	}
	segments = append(segments, to[common:]...)
	return strings.Join(segments, "/")
}

type contentTypes struct {
	doc *etree.Document
}

func (c *contentTypes) root() (*etree.Element, error) {
	root := c.doc.Root()
	if root == nil {
		return nil, fmt.Errorf("content types part has no root element")
	}
	return root, nil
}

func (c *contentTypes) addOverride(part, contentType string) error {
	root, err := c.root()
	if err != nil {
		return err
	}
	name := "/" + part
	for _, el := range root.SelectElements("Override") {
		if el.SelectAttrValue("PartName", "") == name {
			el.CreateAttr("ContentType", contentType)
			return nil
		}
	}
	el := root.CreateElement("Override")
	el.CreateAttr("PartName", name)
	el.CreateAttr("ContentType", contentType)
	return nil
}

func (c *contentTypes) removeOverride(part string) {
	root, err := c.root()
	if err != nil {
		return
	}
	name := "/" + part
	for _, el := range root.SelectElements("Override") {
		if el.SelectAttrValue("PartName", "") == name {
			root.RemoveChild(el)
		}
	}
}

func (c *contentTypes) ensureDefault(extension, contentType string) error {
	root, err := c.root()
	if err != nil {
		return err
	}
	extension = strings.TrimPrefix(strings.ToLower(extension), ".")
	for _, el := range root.SelectElements("Default") {
		if strings.EqualFold(el.SelectAttrValue("Extension", ""), extension) {
			return nil
		}
	}

	el := etree.NewElement("Default")
	el.CreateAttr("Extension", extension)
	el.CreateAttr("ContentType", contentType)
	root.InsertChildAt(0, el)
	return nil
}
