package output

import (
	"bytes"
	"strings"
	"testing"
)

type users []string

func (u users) Table() *Table {
	t := NewTable("ID", "NAME")
	for _, id := range u {
		t.AddRow(id, "")
	}
	return t
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{"", FormatTable, false},
		{"table", FormatTable, false},
		{"JSON", FormatJSON, false},
		{"yaml", FormatYAML, false},
		{"xml", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseFormat(tt.in)
			if (err != nil) != tt.wantErr || got != tt.want {
				t.Errorf("ParseFormat(%q) = %q, %v", tt.in, got, err)
			}
		})
	}
}

func TestFormatters(t *testing.T) {
	data := users{"alice", "bob"}
	tests := []struct {
		format Format
		want   []string
	}{
		{FormatTable, []string{"ID     NAME", "alice  -", "bob    -"}},
		{FormatJSON, []string{`"alice"`, `"bob"`}},
		{FormatYAML, []string{"- alice", "- bob"}},
	}
	for _, tt := range tests {
		t.Run(string(tt.format), func(t *testing.T) {
			var buf bytes.Buffer
			if err := NewFormatter(tt.format).Format(&buf, data); err != nil {
				t.Fatalf("Format() error = %v", err)
			}
			for _, w := range tt.want {
				if !strings.Contains(buf.String(), w) {
					t.Errorf("output %q missing %q", buf.String(), w)
				}
			}
		})
	}
}

func TestTableFormatter_Fallback(t *testing.T) {
	var buf bytes.Buffer
	if err := (&TableFormatter{}).Format(&buf, map[string]int{"n": 1}); err != nil {
		t.Fatalf("Format() error = %v", err)
	}
	if !strings.Contains(buf.String(), `"n": 1`) {
		t.Errorf("fallback output = %q", buf.String())
	}
}

func TestTable_NoHeaders(t *testing.T) {
	var buf bytes.Buffer
	(&TableFormatter{NoHeaders: true}).Format(&buf, users{"carol"})
	if strings.Contains(buf.String(), "ID") || !strings.Contains(buf.String(), "carol") {
		t.Errorf("output = %q", buf.String())
	}
}
