// Package prompt renders instruction text as titled sections. Rendering is
// plain string building: a section with a blank body is skipped.
package prompt

import (
	"bytes"
	"fmt"
	"strings"
)

// Builder accumulates "[TITLE]\nbody\n\n" sections.
type Builder struct {
	buf bytes.Buffer
}

// Section appends a titled block. Blank bodies are dropped.
func (b *Builder) Section(title, body string) *Builder {
	if strings.TrimSpace(body) == "" {
		return b
	}
	b.buf.WriteString("[")
	b.buf.WriteString(title)
	b.buf.WriteString("]\n")
	b.buf.WriteString(body)
	if !strings.HasSuffix(body, "\n") {
		b.buf.WriteString("\n")
	}
	b.buf.WriteString("\n")
	return b
}

// List appends a bullet section.
func (b *Builder) List(title string, items []string) *Builder {
	return b.Section(title, List(items))
}

// ListOr appends a bullet section, or empty when items has no entries.
func (b *Builder) ListOr(title string, items []string, empty string) *Builder {
	if len(nonBlank(items)) == 0 {
		return b.Section(title, empty)
	}
	return b.List(title, items)
}

// String returns the rendered prompt with a single trailing newline.
func (b *Builder) String() string {
	return strings.TrimSpace(b.buf.String()) + "\n"
}

// List renders items as "- item" lines, skipping blanks.
func List(items []string) string {
	var buf strings.Builder
	for _, item := range nonBlank(items) {
		fmt.Fprintf(&buf, "- %s\n", item)
	}
	return strings.TrimRight(buf.String(), "\n")
}

// Field describes one output field for the OUTPUT section.
type Field struct {
	Name        string
	Type        string
	Required    bool
	Description string
}

// Fields renders output field descriptions.
func Fields(fields []Field) string {
	var buf strings.Builder
	for _, f := range fields {
		name := strings.TrimSpace(f.Name)
		if name == "" {
			continue
		}
		req := "optional"
		if f.Required {
			req = "required"
		}
		if f.Description != "" {
			fmt.Fprintf(&buf, "- %s (%s, %s): %s\n", name, f.Type, req, f.Description)
		} else {
			fmt.Fprintf(&buf, "- %s (%s, %s)\n", name, f.Type, req)
		}
	}
	return strings.TrimRight(buf.String(), "\n")
}

// Quote wraps each value in double quotes, for name lists the model must
// reproduce exactly.
func Quote(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range nonBlank(values) {
		out = append(out, fmt.Sprintf("%q", v))
	}
	return out
}

func nonBlank(items []string) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		if it = strings.TrimSpace(it); it != "" {
			out = append(out, it)
		}
	}
	return out
}
