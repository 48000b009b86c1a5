package constants

import "strings"

// Attachment types surfaced on RawEmailMessage.AttachmentType.
const (
	AttachmentPDF   = "pdf"
	AttachmentImage = "image"
	AttachmentOther = "other"
)

var imageExts = map[string]struct{}{
	"jpg":  {},
	"jpeg": {},
	"png":  {},
	"gif":  {},
	"heic": {},
	"webp": {},
}

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// AttachmentTypeFor maps a filename extension and content type to an attachment type.
func AttachmentTypeFor(ext, contentType string) string {
	ext = NormalizeExt(ext)
	ct := strings.ToLower(contentType)
	switch {
	case ext == "pdf" || ct == "application/pdf":
		return AttachmentPDF
	case strings.HasPrefix(ct, "image/"):
		return AttachmentImage
	}
	if _, ok := imageExts[ext]; ok {
		return AttachmentImage
	}
	return AttachmentOther
}
