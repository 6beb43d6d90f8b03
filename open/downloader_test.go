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

package open

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

func TestFileDownloaderFetch(t *testing.T) {
	t.Setenv("XDG_CACHE_HOME", t.TempDir())
	requests := 0
	server := httptest.NewServer(http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			requests++
			fmt.Fprint(w, "elevation data")
		}))
	defer server.Close()

	d := FileDownloader{
		URL:  server.URL + "/topo.nc",
		Path: filepath.Join("gebco", "topo.nc"),
	}
	path, err := d.Fetch(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	want, err := cachePath("gebco", "topo.nc")
	if err != nil {
		t.Fatal(err)
	}
	if path != want {
		t.Errorf("downloaded path is %s, want %s", path, want)
	}
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(content) != "elevation data" {
		t.Errorf("downloaded content is %q", content)
	}

	// a second fetch reads the cache instead of the server
	if _, err := d.Fetch(context.Background()); err != nil {
		t.Fatal(err)
	}
	if requests != 1 {
		t.Errorf("server got %d requests (it should get 1)", requests)
	}
}

func TestFileDownloaderNotFound(t *testing.T) {
	t.Setenv("XDG_CACHE_HOME", t.TempDir())
	server := httptest.NewServer(http.NotFoundHandler())
	defer server.Close()

	d := FileDownloader{URL: server.URL + "/missing.nc", Path: "missing.nc"}
	if _, err := d.Fetch(context.Background()); err == nil {
		t.Fatal("fetching a missing file should be an error")
	}
	path, err := cachePath("missing.nc")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(path); err == nil {
		t.Error("no file should be left after a failed download")
	}
	if _, err := os.Stat(path + ".download"); err == nil {
		t.Error("no partial file should be left after a failed download")
	}
}

// buildZip builds a zip archive in memory for testing.
func buildZip(t *testing.T, members map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for name, content := range members {
		f, err := w.Create(name)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := f.Write([]byte(content)); err != nil {
			t.Fatal(err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func serveBytes(t *testing.T, data []byte) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			w.Write(data)
		}))
}

func TestZipDownloaderFetch(t *testing.T) {
	t.Setenv("XDG_CACHE_HOME", t.TempDir())
	archive := buildZip(t, map[string]string{
		"GEBCO_2022/topo.nc": "global topography",
	})
	server := serveBytes(t, archive)
	defer server.Close()

	d := ZipDownloader{
		URL:  server.URL + "/topo.zip",
		Path: filepath.Join("gebco", "topo.nc"),
	}
	path, err := d.Fetch(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(content) != "global topography" {
		t.Errorf("extracted content is %q", content)
	}
	if _, err := os.Stat(path + ".zip"); err != nil {
		t.Error("the archive should be kept in the cache")
	}

	// a second fetch returns the extracted file untouched
	if _, err := d.Fetch(context.Background()); err != nil {
		t.Fatal(err)
	}
}

func TestZipShapeDownloaderFetch(t *testing.T) {
	t.Setenv("XDG_CACHE_HOME", t.TempDir())
	archive := buildZip(t, map[string]string{
		"maps/lgm.shp":    "shapes",
		"maps/lgm.dbf":    "fields",
		"maps/lgm.prj":    "projection",
		"maps/lgm.shx":    "index",
		"maps/readme.txt": "notes",
	})
	server := serveBytes(t, archive)
	defer server.Close()

	d := ZipShapeDownloader{
		URL:      server.URL + "/maps.zip",
		Path:     filepath.Join("ehl11", "maps.zip"),
		Filename: "lgm.shp",
	}
	path, err := d.Fetch(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if filepath.Base(path) != "lgm.shp" {
		t.Errorf("fetched path is %s, want a lgm.shp file", path)
	}
	for ext, want := range map[string]string{
		".shp": "shapes",
		".dbf": "fields",
		".prj": "projection",
		".shx": "index",
	} {
		content, err := os.ReadFile(filepath.Join(filepath.Dir(path), "lgm"+ext))
		if err != nil {
			t.Fatal(err)
		}
		if string(content) != want {
			t.Errorf("extracted lgm%s content is %q, want %q", ext, content, want)
		}
	}
}

func TestExtractMissingMember(t *testing.T) {
	dir := t.TempDir()
	archivepath := filepath.Join(dir, "test.zip")
	if err := os.WriteFile(archivepath,
		buildZip(t, map[string]string{"a.txt": "a"}), 0644); err != nil {
		t.Fatal(err)
	}
	if err := extract(archivepath, "b.txt", dir); err == nil {
		t.Error("extracting a missing member should be an error")
	}
}

func TestNaturalEarthDownloaderCartopy(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_DATA_HOME", dir)
	stem := filepath.Join(dir, "cartopy", "shapefiles", "natural_earth",
		"physical", "ne_10m_coastline")
	if err := os.MkdirAll(filepath.Dir(stem), 0755); err != nil {
		t.Fatal(err)
	}
	for _, ext := range []string{".shp", ".dbf", ".prj", ".shx"} {
		if err := os.WriteFile(stem+ext, []byte("x"), 0644); err != nil {
			t.Fatal(err)
		}
	}
	d := NaturalEarthDownloader{Scale: "10m", Category: "physical", Theme: "coastline"}
	path, err := d.Fetch(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if path != stem+".shp" {
		t.Errorf("fetched path is %s, want %s", path, stem+".shp")
	}
}

func TestCW5E5DailyDownloaderBasename(t *testing.T) {
	d := CW5E5DailyDownloader{Variable: "tas", Year: 1979, Month: 1}
	want := "chelsa-w5e5v1.0_obsclim_tas_30arcsec_global_daily_197901.nc"
	if got := d.basename(); got != want {
		t.Errorf("basename is %s, want %s", got, want)
	}
}

func TestIsBlob(t *testing.T) {
	for fileURL, want := range map[string]bool{
		"gs://bucket/file.nc":   true,
		"s3://bucket/file.nc":   true,
		"file://bucket/file.nc": true,
		"https://host/file.nc":  false,
		"http://host/file.nc":   false,
	} {
		if got := isBlob(fileURL); got != want {
			t.Errorf("isBlob(%q) = %v", fileURL, got)
		}
	}
}

func TestOpenBucketInvalidProvider(t *testing.T) {
	if _, err := OpenBucket(context.Background(), "ftp://bucket"); err == nil {
		t.Error("an invalid provider should be an error")
	}
}
