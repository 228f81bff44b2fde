package main

import (
	"encoding/json"
	"fmt"
	"strings"
)

// OutputOptions control how command results are rendered. JSON takes
// precedence over plain; the delimiter only applies to the default
// tabular form.
type OutputOptions struct {
	JSON      bool   `long:"json" description:"Emit results as JSON"`
	Plain     bool   `long:"plain" description:"Emit only the primary value of each result, one per line"`
	Delimiter string `long:"delimiter" description:"Column separator for tabular output (default: tab)"`
}

func (o *OutputOptions) delimiter() string {
	if o.Delimiter == "" {
		return "\t"
	}
	return o.Delimiter
}

// emit renders one command result. v is the JSON shape; each row's first
// cell is the primary value that --plain reduces the row to.
func (o *OutputOptions) emit(v any, rows ...[]string) error {
	if o.JSON {
		data, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(data))
		return nil
	}

	for _, cells := range rows {
		if o.Plain {
			fmt.Println(cells[0])
			continue
		}
		fmt.Println(strings.Join(cells, o.delimiter()))
	}
	return nil
}
