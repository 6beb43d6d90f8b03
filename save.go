package hyoga

import (
	"encoding/gob"
	"fmt"
	"io"
)

// datasetGob mirrors Dataset with exported fields for gob encoding.
type datasetGob struct {
	Names      []string
	Vars       map[string]*Variable
	Attrs      map[string]string
	Coords     map[string][]float64
	CoordAttrs map[string]map[string]string
}

// Save writes the dataset to w as a gob file
// (format description at https://golang.org/pkg/encoding/gob/).
// Unlike WriteNetCDF, Save keeps double precision, which makes it
// suitable for caching intermediate results.
func (d *Dataset) Save(w io.Writer) error {
	e := gob.NewEncoder(w)
	err := e.Encode(datasetGob{
		Names:      d.names,
		Vars:       d.vars,
		Attrs:      d.Attrs,
		Coords:     d.Coords,
		CoordAttrs: d.CoordAttrs,
	})
	if err != nil {
		return fmt.Errorf("hyoga.Dataset.Save: %v", err)
	}
	return nil
}

// Load reads a dataset from a previously Saved file.
func Load(r io.Reader) (*Dataset, error) {
	dec := gob.NewDecoder(r)
	var g datasetGob
	if err := dec.Decode(&g); err != nil {
		return nil, fmt.Errorf("hyoga.Load: %v", err)
	}
	d := &Dataset{
		names:      g.Names,
		vars:       g.Vars,
		Attrs:      g.Attrs,
		Coords:     g.Coords,
		CoordAttrs: g.CoordAttrs,
	}
	if d.vars == nil {
		d.vars = make(map[string]*Variable)
	}
	if d.Attrs == nil {
		d.Attrs = make(map[string]string)
	}
	if d.Coords == nil {
		d.Coords = make(map[string][]float64)
	}
	if d.CoordAttrs == nil {
		d.CoordAttrs = make(map[string]map[string]string)
	}
	return d, nil
}
