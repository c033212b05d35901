package main

import (
	"encoding/json"
	"io"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

const previewBytes = 16

type output struct {
	format string
	w      io.Writer
}

func newOutput(opts *RootOptions, cmd *cobra.Command) output {
	return output{format: opts.Format, w: cmd.OutOrStdout()}
}

func (o output) keyValues(pairs ...[2]string) error {
	if o.format == "json" {
		m := make(map[string]string, len(pairs))
		for _, p := range pairs {
			m[p[0]] = p[1]
		}
		return o.json(m)
	}

	t := table.NewWriter()
	t.SetOutputMirror(o.w)
	for _, p := range pairs {
		t.AppendRow(table.Row{p[0], p[1]})
	}
	t.Render()
	return nil
}

func (o output) documents(docs [][]byte) error {
	if o.format == "json" {
		encoded := make([]hexutil.Bytes, len(docs))
		for i, doc := range docs {
			encoded[i] = doc
		}
		return o.json(map[string]any{"documents": encoded})
	}

	t := table.NewWriter()
	t.SetOutputMirror(o.w)
	t.AppendHeader(table.Row{"#", "Size", "Data"})
	t.AppendSeparator()
	for i, doc := range docs {
		t.AppendRow(table.Row{i, len(doc), preview(doc)})
	}
	t.AppendFooter(table.Row{"", "Total", len(docs)})
	t.Render()
	return nil
}

func (o output) json(v any) error {
	enc := json.NewEncoder(o.w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func preview(doc []byte) string {
	if len(doc) <= previewBytes {
		return hexutil.Encode(doc)
	}
	return hexutil.Encode(doc[:previewBytes]) + "..."
}
