package main

import (
	"fmt"
	"net/http"
	"net/url"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/mapbox/vtshaver"
	"github.com/mapbox/vtshaver/style"
	"github.com/namsral/flag"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

type config struct {
	pattern      string
	origin       string
	listen       string
	stylePath    string
	filtersPath  string
	maxZoom      int
	headers      string
	doNotForward string
	timeout      time.Duration
	debug        bool
}

func parseConfig(args []string) (config, error) {
	var c config

	f := flag.NewFlagSetWithEnvPrefix(args[0], "VTSHAVER", flag.ContinueOnError)
	f.StringVar(&c.pattern, "pattern", "/{z:[0-9]+}/{x:[0-9]+}/{y:[0-9]+}.{fmt}", "pattern to use when matching incoming tile requests")
	f.StringVar(&c.origin, "host", "http://localhost:8081/{z:[0-9]+}/{x:[0-9]+}/{y:[0-9]+}.{fmt}", "URL pattern to fetch tiles from")
	f.StringVar(&c.listen, "listen", ":8080", "interface and port to listen on")
	f.StringVar(&c.stylePath, "style", "", "path to the GL style the tiles are shaved for")
	f.StringVar(&c.filtersPath, "filters", "", "path to a JSON or YAML filters document, instead of a style")
	f.IntVar(&c.maxZoom, "maxzoom", -1, "max zoom of the origin tileset, when tiles are overzoomed beyond it")
	f.StringVar(&c.headers, "headers", "", "comma separated Key:Value headers to add to origin requests")
	f.StringVar(&c.doNotForward, "do-not-forward", "(?i)^X-Vtshaver-", "comma separated patterns of request headers not to forward to the origin")
	f.DurationVar(&c.timeout, "timeout", 30*time.Second, "origin request timeout")
	f.BoolVar(&c.debug, "debug", false, "log every request")

	if err := f.Parse(args[1:]); err != nil {
		return config{}, err
	}
	if (c.stylePath == "") == (c.filtersPath == "") {
		return config{}, fmt.Errorf("exactly one of -style or -filters is required")
	}
	return c, nil
}

func loadFilters(c config) (*vtshaver.FilterTable, error) {
	if c.filtersPath != "" {
		data, err := os.ReadFile(c.filtersPath)
		if err != nil {
			return nil, err
		}
		return vtshaver.ParseFilters(data)
	}

	data, err := os.ReadFile(c.stylePath)
	if err != nil {
		return nil, err
	}
	filters, err := style.ToFilters(data)
	if err != nil {
		return nil, err
	}
	return filters.Table()
}

func parseHeaders(s string) (http.Header, error) {
	h := make(http.Header)
	for _, kv := range strings.Split(s, ",") {
		if kv == "" {
			continue
		}
		k, v, ok := strings.Cut(kv, ":")
		if !ok {
			return nil, fmt.Errorf("header %q must be Key:Value", kv)
		}
		h.Add(strings.TrimSpace(k), strings.TrimSpace(v))
	}
	return h, nil
}

func parsePatterns(s string) ([]*regexp.Regexp, error) {
	var res []*regexp.Regexp
	for _, p := range strings.Split(s, ",") {
		if p == "" {
			continue
		}
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, err
		}
		res = append(res, re)
	}
	return res, nil
}

// newHandler builds the tile proxy from the configuration.
func newHandler(c config, filters *vtshaver.FilterTable) (*LayersHandler, error) {
	origin, err := url.Parse(c.origin)
	if err != nil {
		return nil, fmt.Errorf("unable to parse origin URL: %w", err)
	}

	originRouter := mux.NewRouter()
	originRouter.NewRoute().Path(origin.Path).BuildOnly().Name("origin")

	headers, err := parseHeaders(c.headers)
	if err != nil {
		return nil, err
	}
	doNotForward, err := parsePatterns(c.doNotForward)
	if err != nil {
		return nil, err
	}

	h := &LayersHandler{
		origin:              origin,
		route:               originRouter.GetRoute("origin"),
		customHeaders:       headers,
		doNotForwardHeaders: doNotForward,
		httpClient:          &http.Client{Timeout: c.timeout},
		filters:             filters,
	}
	if c.maxZoom >= 0 {
		mz := float64(c.maxZoom)
		h.maxZoom = &mz
	}
	return h, nil
}

func newRouter(c config, h http.Handler) *mux.Router {
	r := mux.NewRouter()
	r.Handle("/metrics", promhttp.Handler()).Methods("GET")
	r.Handle(c.pattern, h).Methods("GET", "HEAD")
	return r
}

func main() {
	c, err := parseConfig(os.Args)
	if err == flag.ErrHelp {
		return
	} else if err != nil {
		fmt.Fprintf(os.Stderr, "Unable to parse input command line, environment or config: %s\n", err)
		os.Exit(2)
	}

	logger, err := zap.NewProduction()
	if c.debug {
		logger, err = zap.NewDevelopment()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %s\n", err)
		os.Exit(1)
	}
	defer logger.Sync() //nolint:errcheck
	zap.ReplaceGlobals(logger)

	filters, err := loadFilters(c)
	if err != nil {
		logger.Fatal("unable to load filters", zap.Error(err))
	}

	h, err := newHandler(c, filters)
	if err != nil {
		logger.Fatal("invalid configuration", zap.Error(err))
	}

	logger.Info("listening",
		zap.String("listen", c.listen),
		zap.String("origin", c.origin),
		zap.Int("source_layers", filters.Len()))
	srv := &http.Server{
		Addr:              c.listen,
		Handler:           newRouter(c, h),
		ReadHeaderTimeout: 10 * time.Second,
	}
	logger.Fatal("server stopped", zap.Error(srv.ListenAndServe()))
}
