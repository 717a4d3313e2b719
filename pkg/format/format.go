// Package format classifies files into semantic kinds by name.
//
// Classification never inspects content. On the pack side a file is classified
// from its own extension; on the restore side a binary envelope
// (<original-name>.bin) is classified from the extension recovered after
// stripping exactly one trailing ".bin".
package format

import (
	"errors"
	"path"
	"strings"
)

// EnvelopeExt is the extension appended to every binary envelope.
const EnvelopeExt = "bin"

// ErrUnsupportedKind is returned when a kind has no reconstruction path.
var ErrUnsupportedKind = errors.New("unsupported file kind")

// Kind is the semantic kind of a file.
type Kind uint8

const (
	Other Kind = iota
	Image
	Video
	Audio
	Text
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case Image:
		return "image"
	case Video:
		return "video"
	case Audio:
		return "audio"
	case Text:
		return "text"
	default:
		return "other"
	}
}

// Convertible reports whether files of this kind go through a binary envelope.
func (k Kind) Convertible() bool {
	return k == Image || k == Text
}

var (
	packTable = map[string]Kind{
		"png": Image, "jpg": Image,
		"mp4": Video, "avi": Video,
		"mp3": Audio, "wav": Audio,
		"txt": Text,
	}

	extendedImages = []string{"jpeg", "gif", "webp", "bmp", "tif", "tiff"}

	recoverTable = map[string]Kind{
		"png": Image, "jpg": Image, "jpeg": Image, "gif": Image,
		"webp": Image, "bmp": Image, "tif": Image, "tiff": Image, "ico": Image,
		"mp4": Video, "avi": Video, "mov": Video,
		"mp3": Audio, "wav": Audio,
		"txt": Text, "json": Text,
	}
)

// Classifier maps names to kinds. The zero value is not usable; use New.
type Classifier struct {
	pack map[string]Kind
}

// Option configures a Classifier.
type Option func(*Classifier)

// WithJSON adds json to the pack-side Text set.
func WithJSON() Option {
	return func(c *Classifier) {
		c.pack["json"] = Text
	}
}

// WithExtendedImages adds jpeg, gif, webp, bmp and tiff to the pack-side Image set.
func WithExtendedImages() Option {
	return func(c *Classifier) {
		for _, ext := range extendedImages {
			c.pack[ext] = Image
		}
	}
}

// New creates a Classifier with the baseline pack table.
func New(opts ...Option) *Classifier {
	c := &Classifier{pack: make(map[string]Kind, len(packTable)+len(extendedImages)+1)}
	for ext, k := range packTable {
		c.pack[ext] = k
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Default is the baseline classifier.
var Default = New()

// Classify returns the pack-side kind of name, looking at its extension only.
func (c *Classifier) Classify(name string) Kind {
	return c.pack[Ext(name)]
}

// ClassifyEntry returns the restore-side kind of an archive entry name.
// Envelopes are classified from their recovered extension; anything else
// from its own extension, with json recognised as Text.
func (c *Classifier) ClassifyEntry(name string) Kind {
	if original, ok := ParseEnvelope(name); ok {
		return recoverTable[Ext(original)]
	}
	return recoverTable[Ext(name)]
}

// Ext returns the lower-cased extension of name without the dot.
// Only the last dot of the base name is significant.
func Ext(name string) string {
	base := path.Base(strings.ReplaceAll(name, "\\", "/"))
	i := strings.LastIndexByte(base, '.')
	if i <= 0 || i == len(base)-1 {
		return ""
	}
	return strings.ToLower(base[i+1:])
}

// EnvelopeName returns the envelope file name for an original file name.
func EnvelopeName(original string) string {
	return original + "." + EnvelopeExt
}

// ParseEnvelope strips exactly one trailing ".bin" from name.
// It reports false when name is not an envelope.
func ParseEnvelope(name string) (original string, ok bool) {
	if Ext(name) != EnvelopeExt {
		return "", false
	}
	return name[:len(name)-len(EnvelopeExt)-1], true
}

// RecoverExtension returns the original extension of an envelope name, or the
// name's own extension when it is not an envelope.
func RecoverExtension(name string) string {
	if original, ok := ParseEnvelope(name); ok {
		return Ext(original)
	}
	return Ext(name)
}

// Classify classifies name with the Default classifier.
func Classify(name string) Kind { return Default.Classify(name) }

// ClassifyEntry classifies an archive entry name with the Default classifier.
func ClassifyEntry(name string) Kind { return Default.ClassifyEntry(name) }
