package core

// Content is the tagged union for message content: either a bare string or
// a sequence of typed parts (text, image). Per the gateway's own
// re-architecture notes, this is modeled as a closed interface with an
// unexported marker method rather than one open-ended struct — Go has no
// native union type, and a single struct with every field optional would
// let callers construct nonsensical combinations (e.g. both a string body
// and parts).
type Content interface {
	isContent()
}

// TextContent is a plain string message body — the common case for every
// dialect.
type TextContent string

func (TextContent) isContent() {}

// PartsContent is an ordered sequence of content parts, used for multipart
// messages (text mixed with image references, or a text part carrying a
// cache_control hint).
type PartsContent []ContentPart

func (PartsContent) isContent() {}

// ContentPart is one piece of a multipart message. Exactly one of the Text*
// or Image* fields is populated, discriminated by Type.
type ContentPart struct {
	Type string `json:"type"` // "text" or "image_url"

	Text string `json:"text,omitempty"`

	ImageURL *ImageURL `json:"image_url,omitempty"`

	// CacheControl flags this part as a cache-write hint. It is relevant
	// only to upstream dialects that support prompt caching (Anthropic-
	// style, OpenRouter) and must only propagate into the upstream request
	// when that upstream is actually selected — wire mappers that don't
	// understand cache_control simply ignore it.
	CacheControl *CacheControl `json:"cache_control,omitempty"`
}

// ImageURL carries an image reference for a multipart content part.
type ImageURL struct {
	URL    string `json:"url"`
	Detail string `json:"detail,omitempty"`
}

// CacheControl is a marker attached to a content part requesting that the
// upstream populate its prompt cache for this request. Its presence on any
// part of any message sets RequestContext.CacheWrite.
type CacheControl struct {
	Type string `json:"type"` // "ephemeral" is the only value in use today
}

// TextOf extracts the plain-text representation of a Content value,
// concatenating text parts when Content is PartsContent. Used wherever a
// wire format has no notion of multipart content (GigaChat, Yandex).
func TextOf(c Content) string {
	switch v := c.(type) {
	case TextContent:
		return string(v)
	case PartsContent:
		var out string
		for _, p := range v {
			if p.Type == "text" {
				out += p.Text
			}
		}
		return out
	default:
		return ""
	}
}

// HasCacheControl reports whether any part of c carries a cache_control
// hint.
func HasCacheControl(c Content) bool {
	parts, ok := c.(PartsContent)
	if !ok {
		return false
	}
	for _, p := range parts {
		if p.CacheControl != nil {
			return true
		}
	}
	return false
}
