package parser

import (
	"errors"
	"strings"
	"testing"

	"github.com/dgallion1/docanchor/internal/doctree"
)

func render(nodes []*doctree.Node) string {
	var sb strings.Builder
	for _, n := range nodes {
		if n.Parent != nil {
			sb.WriteString("[attached]")
		}
		sb.WriteString(n.String())
	}
	return sb.String()
}

func TestParseFragment(t *testing.T) {
	tests := []struct {
		format string
		text   string
		rule   string
		want   string
	}{
		{"xml", "<p>a</p>\n<p>b <b>c</b></p>", "p", "<p>a</p><p>b <b>c</b></p>"},
		{"xml", "plain <i>inline</i>", RuleInline, "plain <i>inline</i>"},
		{"html", "<P class=x>a</P><p>b<br>c</p>", "p", `<p class="x">a</p><p>b<br/>c</p>`},
		{"html", "<td>x</td>", "", "x"},
		{"markdown", "first *para*\n\nsecond", "", "<p>first <i>para</i></p><p>second</p>"},
		{"markdown", "first\n\nsecond", "item", "<item>first</item><item>second</item>"},
		{"markdown", "# H\n\nbody", "section", "<section><heading>H</heading><p>body</p></section>"},
		{"markdown", "one **two**\n\nthree", RuleInline, "one <b>two</b> three"},
		{"text", "one\n\ntwo\nlines", "", "<p>one</p><p>two\nlines</p>"},
		{"text", "as is\n\n", RuleInline, "as is\n\n"},
		{"text", "", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.format+"/"+tt.rule, func(t *testing.T) {
			fp, err := ForFormat(tt.format)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			nodes, err := fp.ParseFragment(tt.text, tt.rule)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got := render(nodes); got != tt.want {
				t.Errorf("expected %s, got %s", tt.want, got)
			}
		})
	}
}

func TestParseFragment_RuleMismatch(t *testing.T) {
	tests := []struct {
		format string
		text   string
		rule   string
	}{
		{"xml", "<p>a</p><div>b</div>", "p"},
		{"xml", "<p>a</p>stray", "p"},
		{"html", "<div>a</div>", "p"},
	}
	for _, tt := range tests {
		fp, _ := ForFormat(tt.format)
		if _, err := fp.ParseFragment(tt.text, tt.rule); !errors.Is(err, ErrRuleMismatch) {
			t.Errorf("%s %q: expected ErrRuleMismatch, got %v", tt.format, tt.text, err)
		}
	}
}

func TestParseFragment_Errors(t *testing.T) {
	if _, err := ForFormat("rtf"); err == nil {
		t.Error("expected unsupported format error")
	}
	fp, _ := ForFormat("xml")
	if _, err := fp.ParseFragment("<p>unclosed", ""); err == nil {
		t.Error("expected malformed xml error")
	}
}
