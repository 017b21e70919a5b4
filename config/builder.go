package config

import (
	"sort"

	"github.com/jpalmerr/pollstream"
)

// Source is a named stream constructor built from a [StreamConfig].
type Source struct {
	Name string
	New  func() (*pollstream.Stream, error)
}

// BuildSources converts parsed configuration into stream constructors.
//
// extra, if non-nil, returns options (a logger, event handlers) appended to
// the named stream's own options. Streams are not created until Source.New
// is called.
func BuildSources(cfg *Config, extra func(name string) []pollstream.Option) []Source {
	sources := make([]Source, 0, len(cfg.Streams))
	for _, sc := range cfg.Streams {
		opts := sc.Options()
		if extra != nil {
			opts = append(opts, extra(sc.Name)...)
		}
		sources = append(sources, Source{
			Name: sc.Name,
			New:  pollstream.NewFactory(sc.URI, opts...),
		})
	}
	return sources
}

// Options converts a single StreamConfig to stream options.
// Method is ignored; streams always use GET.
func (s StreamConfig) Options() []pollstream.Option {
	var opts []pollstream.Option

	if s.Interval != nil {
		opts = append(opts, pollstream.WithInterval(s.Interval.Duration()))
	}
	if s.Polling != nil {
		opts = append(opts, pollstream.WithPolling(*s.Polling))
	}
	switch {
	case s.PullOnDemand != nil:
		opts = append(opts, pollstream.WithPullOnDemand(*s.PullOnDemand))
	case s.Interval != nil:
		opts = append(opts, pollstream.WithPullOnDemand(false))
	}
	if s.Timeout != 0 {
		opts = append(opts, pollstream.WithTimeout(s.Timeout.Duration()))
	}
	if len(s.Headers) > 0 {
		opts = append(opts, pollstream.WithHeaders(mapToKeyValuePairs(s.Headers)...))
	}
	if len(s.Query) > 0 {
		opts = append(opts, pollstream.WithQuery(mapToKeyValuePairs(s.Query)...))
	}
	if s.ObjectMode {
		opts = append(opts, pollstream.WithObjectMode())
	}
	if s.HighWaterMark > 0 {
		opts = append(opts, pollstream.WithHighWaterMark(s.HighWaterMark))
	}

	return opts
}

// mapToKeyValuePairs converts a map to a sorted slice of key-value pairs.
func mapToKeyValuePairs(m map[string]string) []string {
	// sort keys for deterministic ordering
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(m)*2)
	for _, k := range keys {
		pairs = append(pairs, k, m[k])
	}
	return pairs
}
