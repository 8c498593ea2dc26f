package presentation

import (
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/cockroachdb/errors"
	"github.com/mattn/go-runewidth"
	"github.com/muesli/reflow/indent"
	"github.com/muesli/reflow/wordwrap"
)

// Output formats
const (
	FormatJSON = "json"
	FormatText = "text"
)

// DefaultWidth is the wrap width for text output.
const DefaultWidth = 80

var (
	headingStyle = lipgloss.NewStyle().Bold(true)
	keyStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("6"))
	okStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("2")).Bold(true)
	failStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("1")).Bold(true)
	dimStyle     = lipgloss.NewStyle().Faint(true)
)

// Formatter handles output formatting
type Formatter struct {
	writer   io.Writer
	format   string
	width    int
	style    string // markdown style, see NewRenderer
	markdown *Renderer
}

// NewFormatter creates a new formatter. format is FormatJSON or FormatText.
func NewFormatter(writer io.Writer, format string) (*Formatter, error) {
	switch format {
	case FormatJSON, FormatText:
	default:
		return nil, errors.Newf("unknown output format %q", format)
	}
	return &Formatter{
		writer: writer,
		format: format,
		width:  DefaultWidth,
	}, nil
}

// SetMarkdownStyle sets the style item descriptions are rendered with.
func (f *Formatter) SetMarkdownStyle(style string) {
	f.style = style
	f.markdown = nil
}

// SetWidth sets the wrap width for text output.
func (f *Formatter) SetWidth(width int) {
	if width > 0 {
		f.width = width
		f.markdown = nil
	}
}

func (f *Formatter) json(v any) error {
	encoder := json.NewEncoder(f.writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

// FormatItems writes a list of items
func (f *Formatter) FormatItems(items []ItemDTO) error {
	if f.format == FormatJSON {
		return f.json(items)
	}
	if len(items) == 0 {
		_, err := fmt.Fprintln(f.writer, dimStyle.Render("no items"))
		return err
	}

	rows := make([][]string, 0, len(items))
	for _, it := range items {
		rows = append(rows, []string{
			it.Key,
			it.Name,
			strings.Join(it.Labels, ","),
			runewidth.Truncate(firstLine(it.Description), f.width/3, "…"),
		})
	}
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("KEY", "NAME", "LABELS", "DESCRIPTION").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return headingStyle.Padding(0, 1)
			case col == 0:
				return keyStyle.Padding(0, 1)
			default:
				return lipgloss.NewStyle().Padding(0, 1)
			}
		})
	_, err := fmt.Fprintln(f.writer, t.Render())
	return err
}

// FormatItem writes one item with its relations and properties
func (f *Formatter) FormatItem(it ItemDTO) error {
	if f.format == FormatJSON {
		return f.json(it)
	}

	var b strings.Builder
	title := it.Key
	if it.Name != "" {
		title += "  " + it.Name
	}
	b.WriteString(headingStyle.Render(title) + "\n")
	b.WriteString(dimStyle.Render("defined in "+it.Source) + "\n")

	if it.Description != "" {
		md, err := f.renderer()
		if err != nil {
			return err
		}
		rendered, err := md.Render(it.Description)
		if err != nil {
			return errors.Wrap(err, "render description")
		}
		b.WriteString(strings.TrimRight(rendered, "\n") + "\n")
	}
	if len(it.Labels) > 0 {
		b.WriteString("\nlabels: " + strings.Join(it.Labels, ", ") + "\n")
	}
	if len(it.Relations) > 0 {
		b.WriteString("\n" + headingStyle.Render("relations") + "\n")
		for _, r := range it.Relations {
			b.WriteString(fmt.Sprintf("  %s -> %s\n", r.Name, keyStyle.Render(r.Target)))
		}
	}
	if len(it.Properties) > 0 {
		b.WriteString("\n" + headingStyle.Render("properties") + "\n")
		for _, k := range slices.Sorted(maps.Keys(it.Properties)) {
			b.WriteString(fmt.Sprintf("  %s = %s\n", k, it.Properties[k]))
		}
	}
	_, err := io.WriteString(f.writer, b.String())
	return err
}

// FormatLabels writes label counts
func (f *Formatter) FormatLabels(labels []LabelDTO) error {
	if f.format == FormatJSON {
		return f.json(labels)
	}
	for _, l := range labels {
		if _, err := fmt.Fprintf(f.writer, "%-24s %d\n", l.Name, l.Count); err != nil {
			return err
		}
	}
	return nil
}

// FormatCheck writes a validation result
func (f *Formatter) FormatCheck(result CheckDTO) error {
	if f.format == FormatJSON {
		return f.json(result)
	}

	var b strings.Builder
	if result.OK {
		b.WriteString(okStyle.Render("ok") + " ")
		if c := result.Catalog; c != nil {
			b.WriteString(fmt.Sprintf("%d items in %d namespaces, generation %s", c.Items, len(c.Namespaces), c.Generation))
		}
		b.WriteString("\n")
	} else {
		noun := "problems"
		if len(result.Problems) == 1 {
			noun = "problem"
		}
		b.WriteString(failStyle.Render(fmt.Sprintf("%d %s", len(result.Problems), noun)) + "\n")
		for _, p := range result.Problems {
			b.WriteString(f.bullet(p.Message))
			if p.Hint != "" {
				b.WriteString(indent.String(dimStyle.Render("hint: "+p.Hint), 4) + "\n")
			}
		}
	}
	_, err := io.WriteString(f.writer, b.String())
	return err
}

// FormatReload writes one reload attempt
func (f *Formatter) FormatReload(r ReloadDTO) error {
	if f.format == FormatJSON {
		encoder := json.NewEncoder(f.writer)
		return encoder.Encode(r)
	}
	var line string
	if r.Error != "" {
		line = failStyle.Render("reload failed") + fmt.Sprintf(", still serving %s\n", r.Generation) + f.bullet(r.Error)
	} else {
		line = okStyle.Render("reloaded") + fmt.Sprintf(" %d items, generation %s\n", r.Items, r.Generation)
	}
	_, err := io.WriteString(f.writer, line)
	return err
}

// bullet wraps msg to the formatter width as an indented list entry.
func (f *Formatter) bullet(msg string) string {
	wrapped := wordwrap.String(msg, f.width-4)
	return "  - " + strings.TrimPrefix(indent.String(wrapped, 4), "    ") + "\n"
}

func (f *Formatter) renderer() (*Renderer, error) {
	if f.markdown == nil {
		md, err := NewRenderer(f.width, f.style)
		if err != nil {
			return nil, err
		}
		f.markdown = md
	}
	return f.markdown, nil
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(strings.TrimSpace(s), "\n")
	return line
}
