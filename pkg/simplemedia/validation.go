package simplemedia

import (
	"path"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Field limits.
const (
	MaxCategoryNameLength = 100
	MaxVideoTitleLength   = 200
	MaxPayloadBytes       = 500 << 20
	MaxImageBytes         = 5 << 20
)

var (
	videoExtensions = map[string]bool{".mp4": true, ".avi": true, ".mov": true, ".mkv": true, ".wmv": true, ".flv": true, ".webm": true}
	imageExtensions = map[string]bool{".jpg": true, ".jpeg": true, ".png": true, ".gif": true, ".webp": true}
)

// Slugify lowercases s and collapses every run of characters outside
// [a-z0-9_] into a single hyphen.
func Slugify(s string) string {
	var b strings.Builder
	hyphen := false
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		switch {
		case r < utf8.RuneSelf && (unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_'):
			b.WriteRune(r)
			hyphen = false
		case !hyphen && b.Len() > 0:
			b.WriteByte('-')
			hyphen = true
		}
	}
	return strings.TrimRight(b.String(), "-")
}

func validSlug(slug string) bool {
	if slug == "" {
		return false
	}
	for _, r := range slug {
		if r >= utf8.RuneSelf || !(unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-' || r == '_') {
			return false
		}
	}
	return true
}

// normalizeCategory trims fields, derives a missing slug and validates c.
func normalizeCategory(c *Category) error {
	c.Name = strings.TrimSpace(c.Name)
	if utf8.RuneCountInString(c.Name) < 2 {
		return &ValidationError{Field: "name", Message: "must be at least 2 characters"}
	}
	if utf8.RuneCountInString(c.Name) > MaxCategoryNameLength {
		return &ValidationError{Field: "name", Message: "is too long"}
	}
	if c.Slug == "" {
		c.Slug = Slugify(c.Name)
	}
	if !validSlug(c.Slug) {
		return &ValidationError{Field: "slug", Message: "may contain only letters, digits, hyphens and underscores"}
	}
	c.Slug = strings.ToLower(c.Slug)
	if c.Image.Present() && !hasExtension(c.Image.Key, imageExtensions) {
		return &ValidationError{Field: FieldImage, Message: "unsupported image format"}
	}
	return nil
}

// normalizeVideo trims fields, derives a missing slug and status and validates v.
func normalizeVideo(v *Video) error {
	v.Title = strings.TrimSpace(v.Title)
	if utf8.RuneCountInString(v.Title) < 3 {
		return &ValidationError{Field: "title", Message: "must be at least 3 characters"}
	}
	if utf8.RuneCountInString(v.Title) > MaxVideoTitleLength {
		return &ValidationError{Field: "title", Message: "is too long"}
	}
	if v.Slug == "" {
		v.Slug = Slugify(v.Title)
	}
	if !validSlug(v.Slug) {
		return &ValidationError{Field: "slug", Message: "may contain only letters, digits, hyphens and underscores"}
	}
	v.Slug = strings.ToLower(v.Slug)
	if v.Status == "" {
		v.Status = VideoStatusDraft
	}
	if !v.Status.IsValid() {
		return ErrInvalidStatus
	}
	if v.Payload.Present() && !hasExtension(v.Payload.Key, videoExtensions) {
		return &ValidationError{Field: FieldPayload, Message: "unsupported video format"}
	}
	if v.Thumbnail.Present() && !hasExtension(v.Thumbnail.Key, imageExtensions) {
		return &ValidationError{Field: FieldThumbnail, Message: "unsupported image format"}
	}
	return nil
}

// ValidateUploadName checks that fileName has an extension accepted for field.
func ValidateUploadName(field, fileName string) error {
	allowed := imageExtensions
	if field == FieldPayload {
		allowed = videoExtensions
	}
	if !hasExtension(fileName, allowed) {
		return &ValidationError{Field: field, Message: "unsupported file format"}
	}
	return nil
}

func hasExtension(name string, allowed map[string]bool) bool {
	return allowed[strings.ToLower(path.Ext(name))]
}
