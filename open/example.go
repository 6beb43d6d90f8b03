package open

import (
	"context"
	"strings"

	"github.com/juseg/hyoga"
)

const (
	defaultExample = "pism.alps.out.2d.nc"
	exampleRepo    = "https://raw.githubusercontent.com/juseg/hyoga-data/main"
)

// Example opens an example dataset from the hyoga-data online
// repository, downloading it on first use. The empty filename opens
// a PISM run of the last glacial maximum in the Alps.
func Example(ctx context.Context, filename string) (*hyoga.Dataset, error) {
	if filename == "" {
		filename = defaultExample
	}
	model := strings.Split(filename, ".")[0]
	d := FileDownloader{
		URL:  strings.Join([]string{exampleRepo, model, filename}, "/"),
		Path: filename,
	}
	path, err := d.Fetch(ctx)
	if err != nil {
		return nil, err
	}
	return Dataset(path)
}
