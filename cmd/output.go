package cmd

import (
	"encoding/json"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// printer writes command results as JSON or YAML.
type printer struct {
	format string
	w      io.Writer
}

func newPrinter(opts *rootOptions, w io.Writer) printer {
	return printer{format: opts.Output, w: w}
}

// print renders v. YAML output goes through the JSON form so both formats share field names.
func (p printer) print(v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode output: %w", err)
	}

	if p.format == "yaml" {
		var doc any
		if err := json.Unmarshal(raw, &doc); err != nil {
			return fmt.Errorf("encode output: %w", err)
		}
		enc := yaml.NewEncoder(p.w)
		enc.SetIndent(2)
		if err := enc.Encode(doc); err != nil {
			return fmt.Errorf("encode output: %w", err)
		}
		return enc.Close()
	}

	var out []byte
	if out, err = json.MarshalIndent(json.RawMessage(raw), "", "  "); err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	_, err = fmt.Fprintln(p.w, string(out))
	return err
}
