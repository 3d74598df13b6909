package main

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/klauspost/compress/gzip"
	"github.com/mapbox/vtshaver"
	"github.com/paulmach/orb/maptile"
	"go.uber.org/zap"
)

// maxTileZoom is the deepest zoom a uint32 x/y coordinate can address.
const maxTileZoom = 32

var errInvalidTile = errors.New("invalid tile coordinate")

// LayersHandler proxies tile requests to an origin server and shaves the
// response down to what the style uses.
//
// The request is matched against a route pattern with z, x, y and fmt
// variables, and the same variables are used to build the origin request.
// Custom headers are added to the origin request, and request headers
// matching doNotForwardHeaders are stripped.
type LayersHandler struct {
	origin              *url.URL
	route               *mux.Route
	customHeaders       http.Header
	doNotForwardHeaders []*regexp.Regexp
	httpClient          *http.Client

	filters *vtshaver.FilterTable
	// maxZoom is the max zoom of the origin tileset, if tiles are
	// overzoomed beyond it.
	maxZoom *float64
}

// tileRequest is a parsed incoming request.
type tileRequest struct {
	tile       maptile.Tile
	format     string
	originPath *url.URL
}

// forwardHeader returns true if the header should be forwarded to the
// origin, i.e. it matches none of the "do not forward" patterns.
func (h *LayersHandler) forwardHeader(k string) bool {
	for _, re := range h.doNotForwardHeaders {
		if re.MatchString(k) {
			return false
		}
	}
	return true
}

func parseCoordinate(vars map[string]string, k string) (uint32, error) {
	v, ok := vars[k]
	if !ok {
		return 0, fmt.Errorf("%w: route has no %q variable", errInvalidTile, k)
	}
	n, err := strconv.ParseUint(v, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("%w: %s=%q", errInvalidTile, k, v)
	}
	return uint32(n), nil
}

// parseRequestPath extracts the tile and format of the request, and builds
// the origin request path from the route variables.
func (h *LayersHandler) parseRequestPath(req *http.Request) (tileRequest, error) {
	vars := mux.Vars(req)

	z, err := parseCoordinate(vars, "z")
	if err != nil {
		return tileRequest{}, err
	}
	x, err := parseCoordinate(vars, "x")
	if err != nil {
		return tileRequest{}, err
	}
	y, err := parseCoordinate(vars, "y")
	if err != nil {
		return tileRequest{}, err
	}
	if z > maxTileZoom {
		return tileRequest{}, fmt.Errorf("%w: zoom %d is above %d", errInvalidTile, z, maxTileZoom)
	}
	if n := uint64(1) << z; uint64(x) >= n || uint64(y) >= n {
		return tileRequest{}, fmt.Errorf("%w: %d/%d/%d is outside the grid", errInvalidTile, z, x, y)
	}
	tile := maptile.New(x, y, maptile.Zoom(z))

	pairs := make([]string, 0, 2*len(vars))
	for k, v := range vars {
		pairs = append(pairs, k, v)
	}
	originPath, err := h.route.URLPath(pairs...)
	if err != nil {
		return tileRequest{}, err
	}

	return tileRequest{tile: tile, format: vars["fmt"], originPath: originPath}, nil
}

// makeProxyRequest makes the origin request with the handler's HTTP client.
//
// The request's ParseForm() must have been called before this point, so
// that form errors are reported as a bad request.
func (h *LayersHandler) makeProxyRequest(originPath string, req *http.Request) (*http.Response, error) {
	originURL := *h.origin
	originURL.Path = originPath
	// copy request parameters, as this might include an API key
	values := make(url.Values)
	for k, vs := range req.Form {
		for _, v := range vs {
			values.Add(k, v)
		}
	}
	originURL.RawQuery = values.Encode()

	newReq, err := http.NewRequestWithContext(req.Context(), req.Method, originURL.String(), nil)
	if err != nil {
		return nil, err
	}

	for k, v := range req.Header {
		if h.forwardHeader(k) {
			newReq.Header[k] = v
		}
	}
	for k, vs := range h.customHeaders {
		newReq.Header[k] = vs
	}

	// the default transport asks for gzip and decompresses transparently
	// when Accept-Encoding is not set.
	newReq.Header.Del("Accept-Encoding")

	return h.httpClient.Do(newReq)
}

func (h *LayersHandler) ServeHTTP(rw http.ResponseWriter, req *http.Request) {
	start := time.Now()
	requestID := uuid.NewString()
	rw.Header().Set("X-Request-Id", requestID)
	log := zap.L().With(zap.String("request_id", requestID), zap.String("path", req.URL.Path))

	format := mux.Vars(req)["fmt"]

	// parse form to ensure that query parameters are available.
	if err := req.ParseForm(); err != nil {
		countRequest(format, resultParseForm)
		http.Error(rw, err.Error(), http.StatusBadRequest)
		return
	}

	treq, err := h.parseRequestPath(req)
	if err != nil {
		if errors.Is(err, errInvalidTile) {
			countRequest(format, resultInvalidTile)
			http.Error(rw, err.Error(), http.StatusBadRequest)
			return
		}
		countRequest(format, resultParseRequest)
		log.Error("unable to build origin path", zap.Error(err))
		http.Error(rw, err.Error(), http.StatusInternalServerError)
		return
	}

	upstreamStart := time.Now()
	resp, err := h.makeProxyRequest(treq.originPath.Path, req)
	upstream := time.Since(upstreamStart)
	if err != nil {
		countRequest(format, resultProxyError)
		log.Error("origin request failed", zap.Error(err))
		http.Error(rw, err.Error(), http.StatusBadGateway)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		countRequest(format, resultUpstreamStatus)
		log.Info("passing origin status through", zap.Int("status", resp.StatusCode))
		copyResponse(log, vtshaver.CopyAll{}, resp, rw)
		return
	}

	// we're about to modify the content, so any existing Content-Length
	// header is very likely to be wrong.
	resp.Header.Del("Content-Length")

	copier, ok := vtshaver.CopierFor(treq.format, vtshaver.Options{
		Filters: h.filters,
		Zoom:    float64(treq.tile.Z),
		MaxZoom: h.maxZoom,
	})
	if !ok {
		// fall back to just copying the response as-is
		countRequest(format, resultOK)
		copyResponse(log, copier, resp, rw)
		return
	}

	// shaved tiles are buffered so that a failure can still be reported
	// with an error status.
	rd := &countingReader{rd: resp.Body}
	var body bytes.Buffer
	if err := copier.CopyLayers(rd, &body); err != nil {
		countRequest(format, resultCopyError)
		log.Error("unable to shave tile", zap.Error(err))
		status := http.StatusInternalServerError
		if errors.Is(err, vtshaver.ErrTileDecode) || errors.Is(err, vtshaver.ErrCodec) {
			status = http.StatusBadGateway
		}
		http.Error(rw, err.Error(), status)
		return
	}

	acceptsGzip := strings.Contains(req.Header.Get("Accept-Encoding"), "gzip")
	out, err := writeBody(rw, resp, body.Bytes(), acceptsGzip)
	if err != nil {
		log.Warn("problem while writing response body", zap.Error(err))
	}

	countRequest(format, resultOK)
	countBytes(rd.n, out)
	updateTimers(format, time.Since(start), upstream)
	log.Debug("served tile",
		zap.Uint32("z", uint32(treq.tile.Z)),
		zap.Uint32("x", treq.tile.X),
		zap.Uint32("y", treq.tile.Y),
		zap.Int64("bytes_in", rd.n),
		zap.Int64("bytes_out", out),
		zap.Duration("upstream", upstream))
}

type countingReader struct {
	rd io.Reader
	n  int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.rd.Read(p)
	c.n += int64(n)
	return n, err
}

type countingWriter struct {
	wr io.Writer
	n  int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.wr.Write(p)
	c.n += int64(n)
	return n, err
}

// writeBody writes the origin response headers and a new body, gzip
// compressing it when compress is set. It returns the number of bytes
// written to the client.
func writeBody(rw http.ResponseWriter, resp *http.Response, body []byte, compress bool) (int64, error) {
	for k, v := range resp.Header {
		rw.Header()[k] = v
	}
	rw.Header().Del("Content-Encoding")

	cw := &countingWriter{wr: rw}
	if !compress {
		rw.Header().Set("Content-Length", strconv.Itoa(len(body)))
		rw.WriteHeader(resp.StatusCode)
		_, err := cw.Write(body)
		return cw.n, err
	}

	rw.Header().Set("Content-Encoding", "gzip")
	rw.Header().Add("Vary", "Accept-Encoding")
	rw.WriteHeader(resp.StatusCode)
	gz := gzip.NewWriter(cw)
	if _, err := gz.Write(body); err != nil {
		return cw.n, err
	}
	err := gz.Close()
	return cw.n, err
}

// copyResponse streams an HTTP response back to the client via a
// LayerCopier.
func copyResponse(log *zap.Logger, copier vtshaver.LayerCopier, resp *http.Response, rw http.ResponseWriter) {
	for k, v := range resp.Header {
		rw.Header()[k] = v
	}
	rw.WriteHeader(resp.StatusCode)
	err := copier.CopyLayers(resp.Body, rw)

	// possibly can't return this to the client, as we've already written
	// the response header. a write failure at this stage also could be an
	// error writing _to_ the client.
	if err != nil {
		log.Warn("problem while writing response body", zap.Error(err))
	}
}
