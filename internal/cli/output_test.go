package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

func TestParseFormat(t *testing.T) {
	tests := map[string]Format{
		"json":     FormatJSON,
		"JSON":     FormatJSON,
		"yaml":     FormatYAML,
		"yml":      FormatYAML,
		"markdown": FormatMarkdown,
		"md":       FormatMarkdown,
		"text":     FormatText,
		"":         FormatText,
		"bogus":    FormatText,
	}
	for in, want := range tests {
		if got := ParseFormat(in); got != want {
			t.Errorf("ParseFormat(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestNewOutputFromViper(t *testing.T) {
	v := viper.New()
	v.Set("output", "yaml")
	var buf bytes.Buffer
	out := NewOutputFromViper(v, &buf)
	if out.Format() != FormatYAML {
		t.Errorf("Format = %q", out.Format())
	}
	if out.Writer() != &buf {
		t.Error("writer not kept")
	}
}

func hostsTable(out *Output) *Table {
	return out.Table("hosts", "Name", "Host", "Batch Size").
		AddRow("prod", "ibmi1.example.com", 500).
		AddRow("test", "", 100).
		AlignRight(2)
}

func TestTableText(t *testing.T) {
	var buf bytes.Buffer
	if err := hostsTable(NewOutput(FormatText, &buf)).Render(); err != nil {
		t.Fatal(err)
	}
	s := buf.String()
	for _, want := range []string{"NAME", "BATCH SIZE", "ibmi1.example.com", "500", "-"} {
		if !strings.Contains(s, want) {
			t.Errorf("text output missing %q:\n%s", want, s)
		}
	}
}

func TestTableJSON(t *testing.T) {
	var buf bytes.Buffer
	if err := hostsTable(NewOutput(FormatJSON, &buf)).Render(); err != nil {
		t.Fatal(err)
	}

	var got struct {
		Meta Meta             `json:"meta"`
		Data []map[string]any `json:"data"`
	}
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("unmarshal: %v\n%s", err, buf.String())
	}
	if got.Meta.Type != "hosts" || got.Meta.Version != "v1" || got.Meta.Generated.IsZero() {
		t.Errorf("meta = %+v", got.Meta)
	}
	if len(got.Data) != 2 {
		t.Fatalf("rows = %d", len(got.Data))
	}
	if got.Data[0]["name"] != "prod" || got.Data[0]["batch_size"] != float64(500) {
		t.Errorf("row 0 = %v", got.Data[0])
	}
	if got.Data[1]["host"] != "" {
		t.Errorf("empty cell = %v, want empty string", got.Data[1]["host"])
	}
}

func TestTableYAML(t *testing.T) {
	var buf bytes.Buffer
	if err := hostsTable(NewOutput(FormatYAML, &buf)).Render(); err != nil {
		t.Fatal(err)
	}

	var got struct {
		Meta struct {
			Type string `yaml:"type"`
		} `yaml:"meta"`
		Data []map[string]any `yaml:"data"`
	}
	if err := yaml.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("unmarshal: %v\n%s", err, buf.String())
	}
	if got.Meta.Type != "hosts" || len(got.Data) != 2 {
		t.Fatalf("got %+v", got)
	}
	if got.Data[1]["batch_size"] != 100 {
		t.Errorf("batch_size = %#v", got.Data[1]["batch_size"])
	}
}

func TestTableMarkdown(t *testing.T) {
	var buf bytes.Buffer
	if err := hostsTable(NewOutput(FormatMarkdown, &buf)).Render(); err != nil {
		t.Fatal(err)
	}
	s := buf.String()
	if !strings.HasPrefix(s, "---\ntype: hosts\n") {
		t.Errorf("missing frontmatter:\n%s", s)
	}
	if !strings.Contains(s, "| prod | ibmi1.example.com | 500 |") {
		t.Errorf("missing markdown row:\n%s", s)
	}
}

func TestKV(t *testing.T) {
	build := func(out *Output) *KV {
		return out.KV("cursor").
			Set("Key", "ibmi1/QSYS/QAUDJRN").
			Set("Sequence", uint64(42))
	}

	var text bytes.Buffer
	if err := build(NewOutput(FormatText, &text)).Render(); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(text.String(), "Key:") || !strings.Contains(text.String(), "42") {
		t.Errorf("text = %q", text.String())
	}
	if strings.Index(text.String(), "Key:") > strings.Index(text.String(), "Sequence:") {
		t.Errorf("pairs out of order: %q", text.String())
	}

	var js bytes.Buffer
	if err := build(NewOutput(FormatJSON, &js)).Render(); err != nil {
		t.Fatal(err)
	}
	var got struct {
		Data map[string]any `json:"data"`
	}
	if err := json.Unmarshal(js.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	if got.Data["key"] != "ibmi1/QSYS/QAUDJRN" || got.Data["sequence"] != float64(42) {
		t.Errorf("data = %v", got.Data)
	}

	var md bytes.Buffer
	if err := build(NewOutput(FormatMarkdown, &md)).Render(); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(md.String(), "**Sequence:** 42") {
		t.Errorf("markdown = %q", md.String())
	}
}

func TestKVEmptyText(t *testing.T) {
	var buf bytes.Buffer
	if err := NewOutput(FormatText, &buf).KV("empty").Render(); err != nil {
		t.Fatal(err)
	}
	if buf.Len() != 0 {
		t.Errorf("output = %q, want empty", buf.String())
	}
}

func TestStringList(t *testing.T) {
	var text bytes.Buffer
	l := NewOutput(FormatText, &text).StringList("problems").Add("host_2: missing user", "host_3: bad dialect")
	if l.Len() != 2 {
		t.Errorf("Len = %d", l.Len())
	}
	if err := l.Render(); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(text.String(), "host_2: missing user") {
		t.Errorf("text = %q", text.String())
	}

	var js bytes.Buffer
	if err := NewOutput(FormatJSON, &js).StringList("problems").Render(); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(js.String(), `"data": []`) {
		t.Errorf("empty list json = %s", js.String())
	}
}

func TestResult(t *testing.T) {
	build := func(out *Output) *Result {
		return out.Result("cursor-reset", "cursor removed").
			With("Key", "ibmi1/QSYS/QAUDJRN").
			With("Backend", "file")
	}

	var text bytes.Buffer
	if err := build(NewOutput(FormatText, &text)).Render(); err != nil {
		t.Fatal(err)
	}
	want := "cursor removed\n  Key:      ibmi1/QSYS/QAUDJRN\n  Backend:  file\n"
	if text.String() != want {
		t.Errorf("text =\n%q\nwant\n%q", text.String(), want)
	}

	var js bytes.Buffer
	if err := build(NewOutput(FormatJSON, &js)).Render(); err != nil {
		t.Fatal(err)
	}
	var got struct {
		Data map[string]any `json:"data"`
	}
	if err := json.Unmarshal(js.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	if got.Data["message"] != "cursor removed" || got.Data["backend"] != "file" {
		t.Errorf("data = %v", got.Data)
	}
}

func TestError(t *testing.T) {
	build := func(out *Output) *Error {
		return out.Error("cursor", errors.New("not found")).WithCode("E404").With("key", "a/b/c")
	}

	var text bytes.Buffer
	if err := build(NewOutput(FormatText, &text)).Render(); err != nil {
		t.Fatal(err)
	}
	if text.String() != "Error [E404]: not found\n  key: a/b/c\n" {
		t.Errorf("text = %q", text.String())
	}

	var js bytes.Buffer
	out := build(NewOutput(FormatJSON, &js))
	if out.Meta().Type != "cursor-error" {
		t.Errorf("type = %q", out.Meta().Type)
	}
	if err := out.Render(); err != nil {
		t.Fatal(err)
	}
	var got struct {
		Data map[string]any `json:"data"`
	}
	if err := json.Unmarshal(js.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	if got.Data["error"] != "not found" || got.Data["code"] != "E404" || got.Data["key"] != "a/b/c" {
		t.Errorf("data = %v", got.Data)
	}

	var md bytes.Buffer
	if err := build(NewOutput(FormatMarkdown, &md)).Render(); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(md.String(), "> **Error [E404]:** not found") {
		t.Errorf("markdown = %q", md.String())
	}
}

func TestEscapeMarkdown(t *testing.T) {
	if got := escapeMarkdown("a|b"); got != `a\|b` {
		t.Errorf("escapeMarkdown = %q", got)
	}
}
