package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/hyperjump/marcador/internal/geometry"
	"github.com/hyperjump/marcador/internal/highlight"
	"github.com/hyperjump/marcador/internal/models"
	"github.com/hyperjump/marcador/internal/session"
)

var letterPages = []models.PageInfo{
	{Page: 1, Width: 612, Height: 792},
	{Page: 2, Width: 612, Height: 792},
}

func sampleResult() *session.Result {
	return &session.Result{
		Term:  "hello",
		Scale: 1.5,
		Highlights: highlight.PageHighlights{
			1: {{X: 150, Y: 120, Width: 120, Height: 18, Space: geometry.Display}},
			2: {},
		},
	}
}

func TestParseFormat(t *testing.T) {
	for _, s := range []string{"text", "compact", "json"} {
		if f, err := ParseFormat(s); err != nil || string(f) != s {
			t.Errorf("ParseFormat(%q) = %q, %v", s, f, err)
		}
	}
	if _, err := ParseFormat("xml"); err == nil {
		t.Error("ParseFormat(xml) should fail")
	}
}

func TestNewReport(t *testing.T) {
	r, err := NewReport("/docs/a.pdf", sampleResult(), letterPages)
	if err != nil {
		t.Fatal(err)
	}
	if r.Total != 1 || r.NoMatches || len(r.Pages) != 1 || r.Pages[0].Page != 1 {
		t.Fatalf("report = %+v", r)
	}
	want := geometry.Rect{X: 100, Y: 700, Width: 80, Height: 12, Space: geometry.Document}
	if got := r.Pages[0].Matches[0].Document; got != want {
		t.Errorf("document rect = %+v, want %+v", got, want)
	}
}

func TestNewReport_NoMatchesAndBlank(t *testing.T) {
	none := &session.Result{Term: "zebra", Scale: 1.5, Highlights: highlight.PageHighlights{1: {}}}
	r, err := NewReport("a.pdf", none, letterPages)
	if err != nil {
		t.Fatal(err)
	}
	if !r.NoMatches || r.Message != models.NoMatchesMessage {
		t.Errorf("no-match report = %+v", r)
	}

	blank := &session.Result{Term: " ", Scale: 1.5, Highlights: highlight.PageHighlights{}}
	r, err = NewReport("a.pdf", blank, letterPages)
	if err != nil {
		t.Fatal(err)
	}
	if r.NoMatches {
		t.Error("blank term must not be reported as no matches")
	}
}

func TestNewReport_UnknownPage(t *testing.T) {
	res := sampleResult()
	_, err := NewReport("a.pdf", res, letterPages[1:])
	if !errors.Is(err, highlight.ErrUnknownPage) {
		t.Errorf("err = %v, want ErrUnknownPage", err)
	}
}

func TestWriteReport(t *testing.T) {
	r, err := NewReport("/docs/a.pdf", sampleResult(), letterPages)
	if err != nil {
		t.Fatal(err)
	}
	r.QueryTime = 7

	tests := []struct {
		format OutputFormat
		want   []string
	}{
		{OutputText, []string{"Found 1 occurrences", `"hello"`, "a.pdf", "7ms", "Page 1", "x=150.00 y=120.00 w=120.00 h=18.00", "x=100.00 y=700.00 w=80.00 h=12.00"}},
		{OutputCompact, []string{"/docs/a.pdf\t1\thello\tx=150.00"}},
		{OutputFormat("other"), []string{"Found 1 occurrences"}},
	}
	for _, tt := range tests {
		t.Run(string(tt.format), func(t *testing.T) {
			var buf bytes.Buffer
			if err := WriteReport(&buf, r, tt.format); err != nil {
				t.Fatal(err)
			}
			for _, sub := range tt.want {
				if !strings.Contains(buf.String(), sub) {
					t.Errorf("output missing %q:\n%s", sub, buf.String())
				}
			}
		})
	}
}

func TestWriteReport_JSON(t *testing.T) {
	r, err := NewReport("a.pdf", sampleResult(), letterPages)
	if err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	if err := WriteReport(&buf, r, OutputJSON); err != nil {
		t.Fatal(err)
	}
	var decoded Report
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("invalid JSON: %v\n%s", err, buf.String())
	}
	if decoded.Total != 1 || decoded.Pages[0].Matches[0].Display.Space != geometry.Display {
		t.Errorf("decoded = %+v", decoded)
	}
	if !strings.Contains(buf.String(), `"space": "document"`) {
		t.Errorf("spaces should be named in JSON:\n%s", buf.String())
	}
}

func TestWriteReport_NoMatches(t *testing.T) {
	none := &session.Result{Term: "zebra", Scale: 1.5, Highlights: highlight.PageHighlights{1: {}}}
	r, err := NewReport("a.pdf", none, letterPages)
	if err != nil {
		t.Fatal(err)
	}
	for _, f := range []OutputFormat{OutputText, OutputCompact} {
		var buf bytes.Buffer
		if err := WriteReport(&buf, r, f); err != nil {
			t.Fatal(err)
		}
		if !strings.Contains(buf.String(), models.NoMatchesMessage) {
			t.Errorf("%s output missing message: %q", f, buf.String())
		}
	}
}
