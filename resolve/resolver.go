// Package resolve fetches the resources a conversion refers to: metadata
// descriptors, CSV files, RDF input and vocabulary documents. Resources
// are addressed by file path, file:, http(s): or s3:// URL, rewritten by
// path overrides and cached per conversion.
package resolve

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	miniogo "github.com/minio/minio-go/v7"
	"github.com/pquerna/cachecontrol"
	"github.com/rs/zerolog"

	"github.com/geoknoesis/csvw-go/errs"
	"github.com/geoknoesis/csvw-go/rdf"
)

// Resolver loads resources by URL. Relative URLs are resolved against base.
type Resolver interface {
	ResolveText(ctx context.Context, url, base string) (string, error)
	ResolveJSONLD(ctx context.Context, url, base string) (any, error)
	ResolveStream(ctx context.Context, url, base string) (io.ReadCloser, error)
}

// Fetcher is the standard Resolver. It is safe for concurrent use.
type Fetcher struct {
	client    *http.Client
	s3        *miniogo.Client
	cache     *Cache
	overrides *Overrides
	log       zerolog.Logger
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithHTTPClient sets the client used for http and https URLs.
func WithHTTPClient(c *http.Client) Option {
	return func(f *Fetcher) { f.client = c }
}

// WithS3 enables s3://bucket/key URLs.
func WithS3(c *miniogo.Client) Option {
	return func(f *Fetcher) { f.s3 = c }
}

// WithCache shares a cache between fetchers.
func WithCache(c *Cache) Option {
	return func(f *Fetcher) { f.cache = c }
}

// WithOverrides rewrites URLs before they are fetched.
func WithOverrides(o *Overrides) Option {
	return func(f *Fetcher) { f.overrides = o }
}

// WithLogger sets the logger for fetch events.
func WithLogger(l zerolog.Logger) Option {
	return func(f *Fetcher) { f.log = l }
}

// NewFetcher returns a Fetcher with a fresh cache and a 30 second HTTP
// timeout unless options say otherwise.
func NewFetcher(opts ...Option) *Fetcher {
	f := &Fetcher{
		client: &http.Client{Timeout: 30 * time.Second},
		log:    zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.cache == nil {
		f.cache = NewCache()
	}
	return f
}

// Cache returns the fetcher's cache.
func (f *Fetcher) Cache() *Cache {
	return f.cache
}

// Locate returns the URL that will be fetched for url after resolving it
// against base and applying path overrides.
func (f *Fetcher) Locate(url, base string) string {
	return f.overrides.Apply(rdf.ResolveIRI(base, url))
}

// ResolveText returns the resource as a string.
func (f *Fetcher) ResolveText(ctx context.Context, url, base string) (string, error) {
	e, err := f.Fetch(ctx, url, base)
	if err != nil {
		return "", err
	}
	return string(e.Body), nil
}

// ResolveJSONLD fetches and decodes a JSON document. When an HTTP response
// is not application/ld+json and carries Link headers with the JSON-LD
// context relation, the last such link is fetched instead.
func (f *Fetcher) ResolveJSONLD(ctx context.Context, url, base string) (any, error) {
	e, err := f.jsonEntry(ctx, url, base)
	if err != nil {
		return nil, err
	}
	var doc any
	if err := json.Unmarshal(e.Body, &doc); err != nil {
		return nil, errs.Wrap(errs.KindResolution, "decoding JSON from "+e.URL, err)
	}
	return doc, nil
}

func (f *Fetcher) jsonEntry(ctx context.Context, url, base string) (*Entry, error) {
	e, err := f.Fetch(ctx, url, base)
	if err != nil {
		return nil, err
	}
	if mediaType(e.ContentType) == "application/ld+json" {
		return e, nil
	}
	if target, ok := lastLink(e.Links, RelJSONLDContext); ok {
		f.log.Debug().Str("url", e.URL).Str("context", target).Msg("following JSON-LD context link")
		return f.Fetch(ctx, target, e.URL)
	}
	return e, nil
}

// ResolveStream opens the resource for reading. Cached resources are
// served from memory; others are streamed without being cached.
func (f *Fetcher) ResolveStream(ctx context.Context, url, base string) (io.ReadCloser, error) {
	target := f.Locate(url, base)
	if e, ok := f.cache.Get(target); ok {
		return io.NopCloser(bytes.NewReader(e.Body)), nil
	}
	rc, _, err := f.open(ctx, target)
	return rc, err
}

// LoadDocument implements rdf.DocumentLoader so remote JSON-LD contexts go
// through the same overrides and cache.
func (f *Fetcher) LoadDocument(ctx context.Context, iri string) (rdf.RemoteDocument, error) {
	e, err := f.jsonEntry(ctx, iri, "")
	if err != nil {
		return rdf.RemoteDocument{}, err
	}
	var doc any
	if err := json.Unmarshal(e.Body, &doc); err != nil {
		return rdf.RemoteDocument{}, errs.Wrap(errs.KindResolution, "decoding JSON-LD from "+e.URL, err)
	}
	return rdf.RemoteDocument{DocumentURL: e.URL, Document: doc}, nil
}

// Fetch returns the cached entry for url, fetching it on a miss.
func (f *Fetcher) Fetch(ctx context.Context, url, base string) (*Entry, error) {
	target := f.Locate(url, base)
	return f.cache.Do(target, func() (*Entry, error) {
		rc, e, err := f.open(ctx, target)
		if err != nil {
			return nil, err
		}
		defer rc.Close()
		e.Body, err = io.ReadAll(rc)
		if err != nil {
			return nil, errs.Wrap(errs.KindResolution, "reading "+target, err)
		}
		f.log.Debug().Str("url", target).Int("bytes", len(e.Body)).Msg("fetched resource")
		return e, nil
	})
}

// open dispatches on the URL scheme. The returned entry has no body yet.
func (f *Fetcher) open(ctx context.Context, target string) (io.ReadCloser, *Entry, error) {
	u, err := url.Parse(target)
	if err != nil {
		return nil, nil, errs.Wrap(errs.KindResolution, "invalid URL "+target, err)
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
		return f.openHTTP(ctx, target)
	case "s3":
		return f.openS3(ctx, u)
	case "file":
		return openFile(u.Path)
	case "":
		return openFile(target)
	default:
		return nil, nil, errs.Newf(errs.KindResolution, "unsupported URL scheme %q in %s", u.Scheme, target)
	}
}

func openFile(path string) (io.ReadCloser, *Entry, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, nil, errs.Wrap(errs.KindResolution, "opening "+path, err)
	}
	return fh, &Entry{URL: path}, nil
}

func (f *Fetcher) openHTTP(ctx context.Context, target string) (io.ReadCloser, *Entry, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, nil, errs.Wrap(errs.KindResolution, "building request for "+target, err)
	}
	req.Header.Set("Accept", "application/ld+json, application/json;q=0.9, text/csv;q=0.8, */*;q=0.1")
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, nil, errs.Wrap(errs.KindResolution, "fetching "+target, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		resp.Body.Close()
		return nil, nil, errs.Newf(errs.KindResolution, "fetching %s: %s", target, resp.Status)
	}

	e := &Entry{
		URL:         resp.Request.URL.String(),
		ContentType: resp.Header.Get("Content-Type"),
		Links:       ParseLinks(resp.Header.Values("Link")),
	}
	reasons, expires, err := cachecontrol.CachableResponse(req, resp, cachecontrol.Options{})
	switch {
	case err != nil || len(reasons) > 0:
		e.NoStore = true
	case !expires.IsZero():
		e.Expires = expires
	}
	return resp.Body, e, nil
}

func mediaType(contentType string) string {
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(contentType))
	}
	return mt
}

var (
	_ Resolver           = (*Fetcher)(nil)
	_ rdf.DocumentLoader = (*Fetcher)(nil)
)
