package service

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"mime/multipart"

	"github.com/gabriel-vasile/mimetype"

	"github.com/noah-isme/participation-api/internal/observability"
	"github.com/noah-isme/participation-api/pkg/pptx"
)

const (
	defaultTemplateMaxSizeMB = 20
	maxTemplateExpansion     = 20
)

// TemplateIntake reads an uploaded certificate template into a deck,
// rejecting oversized, empty, non-zip and unparsable uploads.
type TemplateIntake struct {
	maxSize int64
}

// NewTemplateIntake builds an intake with the given size limit in megabytes.
func NewTemplateIntake(maxSizeMB int) *TemplateIntake {
	if maxSizeMB <= 0 {
		maxSizeMB = defaultTemplateMaxSizeMB
	}
	return &TemplateIntake{maxSize: int64(maxSizeMB) * 1024 * 1024}
}

// MaxSize returns the upload limit in bytes.
func (t *TemplateIntake) MaxSize() int64 {
	return t.maxSize
}

// Open reads the multipart file and parses it.
func (t *TemplateIntake) Open(file *multipart.FileHeader) (*pptx.Deck, error) {
	if file == nil {
		return nil, t.reject("missing", validationErrorf("template file is required"))
	}
	if file.Size > t.maxSize {
		return nil, t.reject("size", ErrTemplateTooLarge)
	}

	handle, err := file.Open()
	if err != nil {
		return nil, fmt.Errorf("open template: %w", err)
	}
	defer handle.Close()

	return t.Read(handle)
}

// Read consumes r up to the size limit and parses the template deck.
func (t *TemplateIntake) Read(r io.Reader) (*pptx.Deck, error) {
	buf := bytes.NewBuffer(nil)
	if _, err := io.Copy(buf, io.LimitReader(r, t.maxSize+1)); err != nil {
		return nil, fmt.Errorf("read template: %w", err)
	}
	if int64(buf.Len()) > t.maxSize {
		return nil, t.reject("size", ErrTemplateTooLarge)
	}
	if buf.Len() == 0 {
		return nil, t.reject("empty", validationErrorf("empty template file"))
	}

	payload := buf.Bytes()
	if !isZipPackage(payload) {
		return nil, t.reject("type", validationErrorf(fmt.Sprintf("invalid PPTX template: detected %s, expected a zip package", mimetype.Detect(payload).String())))
	}
	if err := t.scan(payload); err != nil {
		return nil, t.reject("scan", validationErrorf(fmt.Sprintf("invalid PPTX template: %v", err)))
	}

	deck, err := pptx.Open(payload)
	if err != nil {
		return nil, t.reject("parse", validationErrorf(fmt.Sprintf("invalid PPTX template: %v", err)))
	}
	if deck.SlideCount() == 0 {
		return nil, t.reject("no_slides", validationErrorf("template must contain at least one slide with placeholders"))
	}
	return deck, nil
}

// scan guards against archives that expand far beyond their upload size.
func (t *TemplateIntake) scan(payload []byte) error {
	reader, err := zip.NewReader(bytes.NewReader(payload), int64(len(payload)))
	if err != nil {
		return err
	}
	var total uint64
	for _, f := range reader.File {
		total += f.UncompressedSize64
		if total > uint64(t.maxSize*maxTemplateExpansion) {
			return fmt.Errorf("uncompressed size exceeds %d bytes", t.maxSize*maxTemplateExpansion)
		}
	}
	return nil
}

func (t *TemplateIntake) reject(reason string, err error) error {
	observability.TemplateRejections().WithLabelValues(reason).Inc()
	return err
}

func isZipPackage(payload []byte) bool {
	for m := mimetype.Detect(payload); m != nil; m = m.Parent() {
		if m.Is("application/zip") {
			return true
		}
	}
	return false
}
