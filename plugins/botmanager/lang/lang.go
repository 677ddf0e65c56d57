// Package lang holds the translated replies of the bot manager.
package lang

import (
	"embed"
	"fmt"
	"sort"
	"strings"

	"github.com/sandertv/gophertunnel/minecraft/text"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"
)

//go:embed *.yml
var files embed.FS

// Languages supported, in the order of preference when matching. The first
// one is the fallback for missing keys.
var languages = []struct {
	tag  language.Tag
	file string
}{
	{tag: language.AmericanEnglish, file: "en_us.yml"},
	{tag: language.SimplifiedChinese, file: "zh_cn.yml"},
}

var matcher = language.NewMatcher(func() []language.Tag {
	tags := make([]language.Tag, len(languages))
	for i, l := range languages {
		tags[i] = l.tag
	}
	return tags
}())

// Lang translates message keys into formatted replies.
type Lang struct {
	tag      language.Tag
	messages map[string]string
	fallback map[string]string
}

// New returns the Lang best matching the language passed, such as en_us,
// zh_CN or zh-Hans. Unknown languages fall back to English.
func New(lang string) (*Lang, error) {
	_, index, _ := matcher.Match(parse(lang))
	fallback, err := load(languages[0].file)
	if err != nil {
		return nil, err
	}
	l := &Lang{tag: languages[index].tag, messages: fallback, fallback: fallback}
	if index != 0 {
		if l.messages, err = load(languages[index].file); err != nil {
			return nil, err
		}
	}
	return l, nil
}

func parse(lang string) language.Tag {
	tag, err := language.Parse(strings.ReplaceAll(strings.TrimSpace(lang), "_", "-"))
	if err != nil {
		return language.AmericanEnglish
	}
	return tag
}

func load(file string) (map[string]string, error) {
	data, err := files.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", file, err)
	}
	var doc map[string]any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode %s: %w", file, err)
	}
	messages := map[string]string{}
	flatten("", doc, messages)
	return messages, nil
}

func flatten(prefix string, v any, out map[string]string) {
	switch v := v.(type) {
	case map[string]any:
		for k, e := range v {
			key := k
			if prefix != "" {
				key = prefix + "." + k
			}
			flatten(key, e, out)
		}
	case nil:
	default:
		out[prefix] = fmt.Sprint(v)
	}
}

// Tag returns the language of the Lang.
func (l *Lang) Tag() language.Tag {
	return l.tag
}

// Keys returns all keys of the Lang, sorted.
func (l *Lang) Keys() []string {
	keys := make([]string, 0, len(l.messages))
	for k := range l.messages {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Template returns the untranslated template of key. Missing keys fall back
// to English, and to the key itself.
func (l *Lang) Template(key string) string {
	if m, ok := l.template(key); ok {
		return m
	}
	return key
}

func (l *Lang) template(key string) (string, bool) {
	if m, ok := l.messages[key]; ok {
		return m, true
	}
	m, ok := l.fallback[key]
	return m, ok
}

// F formats the template of key with the arguments passed, turning colour
// tags into formatting codes. A key without a template is returned as is.
func (l *Lang) F(key string, a ...any) string {
	m, ok := l.template(key)
	if !ok {
		return key
	}
	return text.Colourf(m, a...)
}

// Lines formats the template of key like F and splits it into lines.
func (l *Lang) Lines(key string, a ...any) []string {
	return strings.Split(l.F(key, a...), "\n")
}
