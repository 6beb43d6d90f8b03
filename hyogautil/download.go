/*
Copyright © 2025 the Hyoga authors.
This file is part of Hyoga.

Hyoga is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

Hyoga is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with Hyoga.  If not, see <http://www.gnu.org/licenses/>.
*/

package hyogautil

import (
	"context"
	"fmt"
	"io"
	"io/ioutil"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/juseg/hyoga"
	"github.com/juseg/hyoga/open"
)

// maybeDownload checks if the input is an existing file locally.
// If not, it checks if the file is a URL or a blob storage address.
// If it is, it downloads the file into a temporary directory and
// returns the path to the downloaded file.
// For shapefiles, it downloads all associated files and
// returns the path to the file with the ".shp" extension.
// Download failures are logged and the path returned unchanged, so
// that opening the input produces the error the caller reports.
func maybeDownload(ctx context.Context, path string) string {
	// Check if local file exists. If it does, return the given path.
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		return path
	}

	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return downloadHTTP(path)
	}

	if isBlob(path) {
		return downloadBlob(ctx, path)
	}

	return path
}

// downloadHTTP downloads a file from the specified URL and returns
// the path to the downloaded file.
func downloadHTTP(path string) string {
	// Prepare a temporary directory for the downloads.
	dir, err := ioutil.TempDir("", "hyoga")
	if err != nil {
		panic(fmt.Errorf("hyogautil: failed creating temporary download directory: %v", err))
	}

	fnames := expandShp(path)
	for _, fname := range fnames {
		w, err := os.Create(filepath.Join(dir, filepath.Base(fname)))
		if err != nil {
			panic(fmt.Errorf("hyogautil: failed creating file for download: %v", err))
		}
		resp, err := http.Get(fname)
		if err != nil {
			hyoga.Log.Error(err.Error())
			return path
		}
		_, err = io.Copy(w, resp.Body)
		if err != nil {
			hyoga.Log.Error(err.Error())
			return path
		}
		resp.Body.Close()
		w.Close()
	}
	return filepath.Join(dir, filepath.Base(fnames[0]))
}

// isBlob returns whether the given path represents a blob
// (i.e., if it starts with `gs://`, 's3://', or 'file://').
func isBlob(path string) bool {
	return strings.HasPrefix(path, "gs://") || strings.HasPrefix(path, "s3://") || strings.HasPrefix(path, "file://")
}

// downloadBlob downloads the specified file from blob storage.
func downloadBlob(ctx context.Context, path string) string {
	url, err := url.Parse(path)
	if err != nil {
		hyoga.Log.Error(err.Error())
		return path
	}
	bucket, err := open.OpenBucket(ctx, url.Scheme+"://"+url.Host)
	if err != nil {
		hyoga.Log.Error(err.Error())
		return path
	}
	dir, err := ioutil.TempDir("", "hyoga")
	if err != nil {
		panic(fmt.Errorf("hyogautil: failed creating temporary download directory: %v", err))
	}
	fnames := expandShp(url.Path)
	for _, fname := range fnames {
		w, err := os.Create(filepath.Join(dir, filepath.Base(fname)))
		if err != nil {
			panic(fmt.Errorf("hyogautil: failed creating file for download: %v", err))
		}
		bucketPath := strings.TrimPrefix(url.Path, "/")
		bucketPath = bucketPath[0:len(bucketPath)-4] + filepath.Ext(fname)
		r, err := bucket.NewReader(ctx, bucketPath)
		if err != nil {
			hyoga.Log.Error(err.Error())
			return path
		}
		_, err = io.Copy(w, r)
		if err != nil {
			hyoga.Log.Error(err.Error())
			return path
		}
		r.Close()
		w.Close()
	}
	return filepath.Join(dir, filepath.Base(fnames[0]))
}

// expandShp returns the given file + associated [.dbf, .shx, .prj]
// files if the given file has the .shp extension, and returns the given
// file otherwise.
func expandShp(filename string) []string {
	o := []string{filename}
	ext := filepath.Ext(filename)
	if ext != ".shp" {
		return o
	}
	for _, newExt := range []string{".dbf", ".shx", ".prj"} {
		o = append(o, filename[0:len(filename)-4]+newExt)
	}
	return o
}
