package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/c360studio/sparqlgate/iri"
	"github.com/c360studio/sparqlgate/sparql"
)

// printer writes command results as aligned tables or JSON.
type printer struct {
	w    io.Writer
	json bool
}

func newPrinter(w io.Writer, asJSON bool) *printer {
	return &printer{w: w, json: asJSON}
}

// JSON writes v indented.
func (p *printer) JSON(v any) error {
	enc := json.NewEncoder(p.w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// Table writes rows under headers, tab-aligned.
func (p *printer) Table(headers []string, rows [][]string) error {
	tw := tabwriter.NewWriter(p.w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(headers, "\t"))
	for _, row := range rows {
		fmt.Fprintln(tw, strings.Join(row, "\t"))
	}
	return tw.Flush()
}

// Line writes a single line.
func (p *printer) Line(format string, args ...any) {
	fmt.Fprintf(p.w, format+"\n", args...)
}

// SelectResult writes a SELECT result. With native set, JSON output holds the
// coerced row objects instead of the wire form. A non-nil codec compacts IRIs
// in table output.
func (p *printer) SelectResult(result *sparql.SelectResult, codec *iri.Codec, native bool) error {
	if p.json {
		if !native {
			return p.JSON(result)
		}
		rows, err := sparql.ToObjects(result.Results.Bindings)
		if encErr := p.JSON(rows); encErr != nil {
			return encErr
		}
		return err
	}

	vars := result.Head.Vars
	rows := make([][]string, 0, result.Len())
	for _, b := range result.Results.Bindings {
		row := make([]string, len(vars))
		for i, name := range vars {
			if v, ok := b[name]; ok {
				row[i] = formatValue(v, codec)
			}
		}
		rows = append(rows, row)
	}
	return p.Table(vars, rows)
}

// formatValue renders a term for table output.
func formatValue(v sparql.Value, codec *iri.Codec) string {
	switch {
	case v.IsIRI():
		if codec != nil {
			return codec.Compact(v.Value)
		}
		return v.Value
	case v.IsBlank():
		return "_:" + v.Value
	case v.Lang != "":
		return fmt.Sprintf("%q@%s", v.Value, v.Lang)
	case v.Datatype != "" && v.Datatype != iri.XSD+"string":
		dt := v.Datatype
		if codec != nil {
			dt = codec.Compact(dt)
		}
		return fmt.Sprintf("%q^^%s", v.Value, dt)
	default:
		return v.Value
	}
}
