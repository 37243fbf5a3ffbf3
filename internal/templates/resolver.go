package templates

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/voxtour/ticket-gateway/internal/model"
)

// Variant distinguishes ticket content with and without the audio guide.
type Variant string

const (
	VariantStandard   Variant = "standard"
	VariantAudioGuide Variant = "audio_guide"
	// VariantDefault is the channel-level fallback registered per language.
	VariantDefault Variant = "default"
)

const fallbackLanguage = "en"

var placeholderPattern = regexp.MustCompile(`\{([a-z_]+)\}`)

// Template is a renderable subject/body pair. Placeholders use the
// {field_name} form; unknown placeholders render as empty strings.
type Template struct {
	Subject string
	Body    string
}

// Render substitutes vars into subject and body.
func (t Template) Render(vars map[string]string) (subject, body string) {
	replace := func(s string) string {
		return placeholderPattern.ReplaceAllStringFunc(s, func(match string) string {
			return vars[strings.Trim(match, "{}")]
		})
	}
	return replace(t.Subject), replace(t.Body)
}

type key struct {
	channel  model.Channel
	language string
	variant  Variant
}

// Resolver holds registered templates and walks the fallback chain:
// exact (language, variant, channel) -> English same variant/channel ->
// channel default for the language -> English channel default -> error.
type Resolver struct {
	templates map[key]Template
}

func NewResolver() *Resolver {
	return &Resolver{templates: make(map[key]Template)}
}

func (r *Resolver) Register(channel model.Channel, language string, variant Variant, t Template) {
	r.templates[key{channel, strings.ToLower(language), variant}] = t
}

func (r *Resolver) Resolve(channel model.Channel, language string, variant Variant) (Template, error) {
	language = strings.ToLower(language)
	if language == "" {
		language = fallbackLanguage
	}

	chain := []key{
		{channel, language, variant},
		{channel, fallbackLanguage, variant},
		{channel, language, VariantDefault},
		{channel, fallbackLanguage, VariantDefault},
	}
	for _, k := range chain {
		if t, ok := r.templates[k]; ok {
			return t, nil
		}
	}
	return Template{}, fmt.Errorf("no template registered for channel=%s language=%s variant=%s", channel, language, variant)
}

// NotificationTextProvider supplies the short SMS notification text used
// when email carries the actual ticket. Injected explicitly so the fallback
// order is testable rather than an ambient config lookup.
type NotificationTextProvider interface {
	NotificationText(language string) string
}

// StaticNotificationText is a per-language map with an English fallback.
type StaticNotificationText struct {
	Texts   map[string]string
	Default string
}

func (s StaticNotificationText) NotificationText(language string) string {
	if t, ok := s.Texts[strings.ToLower(language)]; ok {
		return t
	}
	return s.Default
}
