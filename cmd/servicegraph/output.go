package main

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"gopkg.in/yaml.v3"

	"go.tickamp.dev/servicegraph"
)

// printer renders published records.
type printer struct {
	mu     sync.Mutex
	out    io.Writer
	format string
	label  string
}

func newPrinter(out io.Writer, format string) (*printer, error) {
	switch format {
	case "table", "yaml":
	default:
		return nil, fmt.Errorf("unknown output format %q", format)
	}
	return &printer{out: out, format: format}, nil
}

// setLabel names the step causing the next publications.
func (p *printer) setLabel(label string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.label = label
}

// listener is a servicegraph.StatusListener.
func (p *printer) listener(records []servicegraph.StatusRecord) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.format == "yaml" {
		return p.yaml(records)
	}
	t := newTable()
	t.SetTitle(p.label)
	t.AppendHeader(table.Row{
		text.FgHiCyan.Sprint("SERVICE"),
		text.FgHiCyan.Sprint("STATUS"),
	})
	for _, r := range records {
		t.AppendRow(table.Row{r.ServiceID, colorStatus(r.Status)})
	}
	_, err := fmt.Fprintln(p.out, t.Render())
	return err
}

func (p *printer) yaml(records []servicegraph.StatusRecord) error {
	doc := struct {
		Step    string                      `yaml:"step"`
		Records []servicegraph.StatusRecord `yaml:"records"`
	}{p.label, records}
	enc := yaml.NewEncoder(p.out)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return err
	}
	if err := enc.Close(); err != nil {
		return err
	}
	_, err := io.WriteString(p.out, "---\n")
	return err
}

// printGraph renders the services in topological order.
func printGraph(out io.Writer, g *servicegraph.Graph) error {
	t := newTable()
	t.AppendHeader(table.Row{
		text.FgHiCyan.Sprint("SERVICE"),
		text.FgHiCyan.Sprint("REQUIRES"),
		text.FgHiCyan.Sprint("REQUIRED BY"),
	})
	for _, id := range g.IDs() {
		requires, err := g.Requires(id)
		if err != nil {
			return err
		}
		requiredBy, err := g.RequiredBy(id)
		if err != nil {
			return err
		}
		t.AppendRow(table.Row{id, strings.Join(requires, ", "),
			strings.Join(requiredBy, ", ")})
	}
	_, err := fmt.Fprintln(out, t.Render())
	return err
}

func newTable() table.Writer {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	return t
}

func colorStatus(s servicegraph.Status) string {
	switch s {
	case servicegraph.Started:
		return text.FgGreen.Sprint(s.String())
	case servicegraph.Stopped:
		return text.FgRed.Sprint(s.String())
	case servicegraph.Unknown:
		return s.String()
	default:
		return text.FgYellow.Sprint(s.String())
	}
}
