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
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/cenkalti/backoff"
	"github.com/google/go-cloud/blob"
	"github.com/google/go-cloud/blob/fileblob"
	"github.com/google/go-cloud/blob/gcsblob"
	"github.com/google/go-cloud/blob/s3blob"
	"github.com/google/go-cloud/gcp"
	"github.com/juseg/hyoga"
)

// A Fetcher retrieves one or several files from the web, stores them
// in the cache directory, and returns the local path of the main file.
type Fetcher interface {
	Fetch(ctx context.Context) (string, error)
}

// CacheDir returns the directory where downloaded files are kept,
// $XDG_CACHE_HOME/hyoga or ~/.cache/hyoga by default.
func CacheDir() (string, error) {
	dir, err := os.UserCacheDir()
	if err != nil {
		return "", fmt.Errorf("hyoga: locating cache directory: %v", err)
	}
	return filepath.Join(dir, "hyoga"), nil
}

// cachePath joins path elements under the cache directory.
func cachePath(elem ...string) (string, error) {
	dir, err := CacheDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(append([]string{dir}, elem...)...), nil
}

// A FileDownloader fetches a single file into the cache directory.
// Addresses with scheme http:// or https:// are fetched over the web;
// gs://, s3:// and file:// are fetched from blob storage buckets.
type FileDownloader struct {
	// URL is the address of the file to download.
	URL string

	// Path is the destination path relative to the cache directory.
	Path string
}

// Fetch downloads the file unless a copy already exists in the cache,
// and returns the local path.
func (d *FileDownloader) Fetch(ctx context.Context) (string, error) {
	path, err := cachePath(d.Path)
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(path); err == nil {
		return path, nil
	}
	if err := fetch(ctx, d.URL, path); err != nil {
		return "", err
	}
	return path, nil
}

// fetch downloads the file at fileURL to path, creating missing
// directories and retrying failed requests with exponential backoff.
// The file appears at path only once complete, so that interrupted
// downloads are not mistaken for cached files.
func fetch(ctx context.Context, fileURL, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("hyoga: downloading %s: %v", fileURL, err)
	}
	hyoga.Log.Infof("downloading %s", fileURL)
	tmp := path + ".download"
	err := backoff.RetryNotify(
		func() error {
			if isBlob(fileURL) {
				return fetchBlob(ctx, fileURL, tmp)
			}
			return fetchHTTP(ctx, fileURL, tmp)
		},
		backoff.NewExponentialBackOff(),
		func(err error, d time.Duration) {
			hyoga.Log.Warnf("downloading %s: %v: retrying in %v", fileURL, err, d)
		},
	)
	if err != nil {
		os.Remove(tmp)
		return fmt.Errorf("hyoga: downloading %s: %v", fileURL, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("hyoga: downloading %s: %v", fileURL, err)
	}
	return nil
}

// fetchHTTP downloads a file over HTTP to the given local path.
func fetchHTTP(ctx context.Context, fileURL, path string) error {
	req, err := http.NewRequest("GET", fileURL, nil)
	if err != nil {
		return backoff.Permanent(err)
	}
	resp, err := http.DefaultClient.Do(req.WithContext(ctx))
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("bad status %s", resp.Status)
		if resp.StatusCode >= 400 && resp.StatusCode < 500 {
			// missing or forbidden files will not appear on retry
			return backoff.Permanent(err)
		}
		return err
	}
	return writeFile(path, resp.Body)
}

// fetchBlob downloads a file from blob storage to the given local path.
func fetchBlob(ctx context.Context, fileURL, path string) error {
	u, err := url.Parse(fileURL)
	if err != nil {
		return backoff.Permanent(err)
	}
	bucket, err := OpenBucket(ctx, u.Scheme+"://"+u.Host)
	if err != nil {
		return err
	}
	r, err := bucket.NewReader(ctx, strings.TrimPrefix(u.Path, "/"))
	if err != nil {
		return err
	}
	defer r.Close()
	return writeFile(path, r)
}

func writeFile(path string, r io.Reader) error {
	w, err := os.Create(path)
	if err != nil {
		return backoff.Permanent(err)
	}
	if _, err := io.Copy(w, r); err != nil {
		w.Close()
		return err
	}
	return w.Close()
}

// isBlob returns whether the given address represents a blob
// (i.e., if it starts with `gs://`, 's3://', or 'file://').
func isBlob(fileURL string) bool {
	return strings.HasPrefix(fileURL, "gs://") ||
		strings.HasPrefix(fileURL, "s3://") ||
		strings.HasPrefix(fileURL, "file://")
}

// OpenBucket returns the blob storage bucket specified by bucketName,
// where bucketName must be in the format 'provider://name' where provider
// is the name of the storage provider and name is the name of the bucket.
// The currently accepted storage providers are "file" for the local filesystem
// (e.g., for testing), "gs" for Google Cloud Storage, and "s3" for AWS S3.
func OpenBucket(ctx context.Context, bucketName string) (*blob.Bucket, error) {
	u, err := url.Parse(bucketName)
	if err != nil {
		return nil, fmt.Errorf("hyoga: opening bucket %s: %v", bucketName, err)
	}
	switch u.Scheme {
	case "file":
		return fileblob.NewBucket(u.Hostname())
	case "gs":
		return gsBucket(ctx, u.Hostname())
	case "s3":
		return s3Bucket(ctx, u.Hostname())
	default:
		return nil, fmt.Errorf("hyoga: opening bucket %s: invalid provider %s", bucketName, u.Scheme)
	}
}

func gsBucket(ctx context.Context, name string) (*blob.Bucket, error) {
	// See here for information on credentials:
	// https://cloud.google.com/docs/authentication/getting-started
	creds, err := gcp.DefaultCredentials(ctx)
	if err != nil {
		return nil, err
	}
	c, err := gcp.NewHTTPClient(gcp.DefaultTransport(), gcp.CredentialsTokenSource(creds))
	if err != nil {
		return nil, err
	}
	return gcsblob.OpenBucket(ctx, name, c)
}

// s3Bucket opens an s3 storage bucket. It assumes the following
// environment variables are set: AWS_REGION, AWS_ACCESS_KEY_ID, and
// AWS_SECRET_ACCESS_KEY.
func s3Bucket(ctx context.Context, name string) (*blob.Bucket, error) {
	region := os.Getenv("AWS_REGION")
	if region == "" {
		region = "us-east-2"
	}
	c := &aws.Config{
		Region:      aws.String(region),
		Credentials: credentials.NewEnvCredentials(),
	}
	s := session.Must(session.NewSession(c))
	return s3blob.OpenBucket(ctx, s, name)
}

// An OSFDownloader fetches a file by record key from osf.io.
type OSFDownloader struct {
	// Record is the record key of the file to download on osf.io.
	Record string

	// Path is the destination path relative to the cache directory.
	Path string
}

// Fetch downloads the record unless a copy already exists in the
// cache, and returns the local path.
func (d *OSFDownloader) Fetch(ctx context.Context) (string, error) {
	f := FileDownloader{
		URL:  "https://osf.io/" + d.Record + "/download",
		Path: d.Path,
	}
	return f.Fetch(ctx)
}

// A ZipDownloader fetches a zip archive and extracts a single member
// file. The archive is kept in the cache directory alongside the
// extracted file, under the same name with a .zip suffix.
type ZipDownloader struct {
	// URL is the address of the zip archive.
	URL string

	// Path is the destination path of the extracted member relative
	// to the cache directory.
	Path string
}

// Fetch downloads and extracts the archive unless the member file
// already exists in the cache, and returns the local path.
func (d *ZipDownloader) Fetch(ctx context.Context) (string, error) {
	path, err := cachePath(d.Path)
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(path); err == nil {
		return path, nil
	}
	archive := FileDownloader{URL: d.URL, Path: d.Path + ".zip"}
	archivepath, err := archive.Fetch(ctx)
	if err != nil {
		return "", err
	}
	member := filepath.Base(path)
	if err := extract(archivepath, member, filepath.Dir(path)); err != nil {
		return "", fmt.Errorf("hyoga: extracting %s: %v", member, err)
	}
	return path, nil
}

// A ZipShapeDownloader fetches a zip archive and extracts a shapefile
// together with its .dbf, .prj and .shx sidecar files.
type ZipShapeDownloader struct {
	// URL is the address of the zip archive.
	URL string

	// Path is the destination path of the archive relative to the
	// cache directory.
	Path string

	// Filename is the name of the .shp member to extract. Sidecar
	// files are extracted along with it into the directory containing
	// the archive.
	Filename string
}

// Fetch downloads the archive and extracts any missing shapefile
// member, and returns the local path of the .shp file.
func (d *ZipShapeDownloader) Fetch(ctx context.Context) (string, error) {
	archive := FileDownloader{URL: d.URL, Path: d.Path}
	archivepath, err := archive.Fetch(ctx)
	if err != nil {
		return "", err
	}
	stem := strings.TrimSuffix(d.Filename, ".shp")
	outdir := filepath.Dir(archivepath)
	for _, ext := range []string{".shp", ".dbf", ".prj", ".shx"} {
		if _, err := os.Stat(filepath.Join(outdir, stem+ext)); err == nil {
			continue
		}
		if err := extract(archivepath, stem+ext, outdir); err != nil {
			return "", fmt.Errorf("hyoga: extracting %s: %v", stem+ext, err)
		}
	}
	return filepath.Join(outdir, d.Filename), nil
}

// extract copies a single member of a zip archive into directory dir.
// Members are matched by full name or by base name, as some archives
// nest their files in subdirectories.
func extract(archivepath, member, dir string) error {
	archive, err := zip.OpenReader(archivepath)
	if err != nil {
		return err
	}
	defer archive.Close()
	for _, f := range archive.File {
		if f.Name != member && filepath.Base(f.Name) != member {
			continue
		}
		r, err := f.Open()
		if err != nil {
			return err
		}
		w, err := os.Create(filepath.Join(dir, member))
		if err != nil {
			r.Close()
			return err
		}
		if _, err := io.Copy(w, r); err != nil {
			r.Close()
			w.Close()
			return err
		}
		r.Close()
		if err := w.Close(); err != nil {
			return err
		}
		return nil
	}
	return fmt.Errorf("no member %s in %s", member, archivepath)
}

// A NaturalEarthDownloader fetches a Natural Earth shapefile. Data
// already downloaded by cartopy are reused when present.
type NaturalEarthDownloader struct {
	// Scale is the dataset scale, "10m", "50m" or "110m".
	Scale string

	// Category is "cultural" or "physical".
	Category string

	// Theme is the dataset name, such as "lakes" or
	// "admin_0_countries".
	Theme string
}

// Fetch returns the local path of the shapefile, downloading it from
// the Natural Earth servers unless already present in the cartopy
// data directory or in the cache.
func (d *NaturalEarthDownloader) Fetch(ctx context.Context) (string, error) {
	// this is where cartopy stores the same data
	if stem, err := d.cartopyStem(); err == nil {
		found := true
		for _, ext := range []string{".shp", ".dbf", ".prj", ".shx"} {
			if _, err := os.Stat(stem + ext); err != nil {
				found = false
				break
			}
		}
		if found {
			return stem + ".shp", nil
		}
	}
	name := fmt.Sprintf("ne_%s_%s", d.Scale, d.Theme)
	z := ZipShapeDownloader{
		URL: fmt.Sprintf("https://naturalearth.s3.amazonaws.com/%s_%s/%s.zip",
			d.Scale, d.Category, name),
		Path: filepath.Join(
			"natural_earth", fmt.Sprintf("%s_%s", d.Scale, d.Category), name+".zip"),
		Filename: name + ".shp",
	}
	return z.Fetch(ctx)
}

// cartopyStem returns the path prefix where cartopy stores the same
// shapefile, under $XDG_DATA_HOME or ~/.local/share.
func (d *NaturalEarthDownloader) cartopyStem() (string, error) {
	dir := os.Getenv("XDG_DATA_HOME")
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		dir = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(
		dir, "cartopy", "shapefiles", "natural_earth", d.Category,
		fmt.Sprintf("ne_%s_%s", d.Scale, d.Theme)), nil
}

// A CW5E5DailyDownloader fetches one month of CHELSA-W5E5 daily means
// for a given variable from the ISIMIP data repository.
type CW5E5DailyDownloader struct {
	// Variable is the short variable name, one of "pr", "rsds",
	// "tas", "tasmax" or "tasmin".
	Variable string

	// Year is the data year between 1979 and 2016.
	Year int

	// Month is the data month between 1 and 12.
	Month int
}

// Fetch downloads the daily means unless a copy already exists in the
// cache, and returns the local path.
func (d *CW5E5DailyDownloader) Fetch(ctx context.Context) (string, error) {
	basename := d.basename()
	f := FileDownloader{
		URL: "https://files.isimip.org/ISIMIP3a/InputData/climate/atmosphere/" +
			"obsclim/global/daily/historical/CHELSA-W5E5v1.0/" + basename,
		Path: filepath.Join("cw5e5", "daily", basename),
	}
	return f.Fetch(ctx)
}

func (d *CW5E5DailyDownloader) basename() string {
	return fmt.Sprintf(
		"chelsa-w5e5v1.0_obsclim_%s_30arcsec_global_daily_%d%02d.nc",
		d.Variable, d.Year, d.Month)
}
