package lang

import (
	"strings"
	"testing"

	"github.com/sandertv/gophertunnel/minecraft/text"
	"golang.org/x/text/language"
)

func TestNewMatchesLanguage(t *testing.T) {
	t.Parallel()

	tests := map[string]language.Tag{
		"en_us":   language.AmericanEnglish,
		"en":      language.AmericanEnglish,
		"zh_cn":   language.SimplifiedChinese,
		"zh-CN":   language.SimplifiedChinese,
		"zh-Hans": language.SimplifiedChinese,
		"klingon": language.AmericanEnglish,
		"":        language.AmericanEnglish,
	}
	for in, want := range tests {
		l, err := New(in)
		if err != nil {
			t.Fatalf("New(%q) error = %v", in, err)
		}
		if l.Tag() != want {
			t.Fatalf("New(%q).Tag() = %v, want %v", in, l.Tag(), want)
		}
	}
}

func TestLanguagesHaveSameKeys(t *testing.T) {
	t.Parallel()

	en, _ := New("en_us")
	zh, _ := New("zh_cn")
	if strings.Join(en.Keys(), ",") != strings.Join(zh.Keys(), ",") {
		t.Fatalf("key sets differ:\nen: %v\nzh: %v", en.Keys(), zh.Keys())
	}
	for _, key := range []string{"error.bot_online", "info.true", "list.title", "help"} {
		if en.Template(key) == key {
			t.Fatalf("Template(%q) is missing", key)
		}
	}
}

func TestF(t *testing.T) {
	t.Parallel()

	l, err := New("en_us")
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if got := text.Clean(l.F("error.bot_online", "alice")); got != "Bot alice is already online." {
		t.Fatalf("F() = %q", got)
	}
	if got := l.F("no.such.key"); got != "no.such.key" {
		t.Fatalf("F() of a missing key = %q, want the key unchanged", got)
	}
	if got := l.Template("no.such.key"); got != "no.such.key" {
		t.Fatalf("Template() of a missing key = %q", got)
	}
	lines := l.Lines("help", "!!bot")
	if len(lines) < 10 || !strings.Contains(text.Clean(lines[1]), "!!bot list") {
		t.Fatalf("Lines(help) = %q", lines)
	}
}
