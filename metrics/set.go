// Copyright 2024 The Erigon Authors
// This file is part of Erigon.
//
// Erigon is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Erigon is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with Erigon. If not, see <http://www.gnu.org/licenses/>.

package metrics

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Set is a group of metrics registered in one prometheus registry.
type Set struct {
	mu       sync.Mutex
	registry *prometheus.Registry
	metrics  map[string]prometheus.Collector
}

func NewSet() *Set {
	return &Set{registry: prometheus.NewRegistry(), metrics: map[string]prometheus.Collector{}}
}

var defaultSet = NewSet()

// DefaultRegistry is the registry behind the package level constructors.
func DefaultRegistry() *prometheus.Registry {
	return defaultSet.registry
}

// Handler serves the metrics of the default set in the prometheus text
// format.
func Handler() http.Handler {
	return promhttp.HandlerFor(defaultSet.registry, promhttp.HandlerOpts{})
}

func stripLabels(name string) string {
	if labelsIndex := strings.IndexByte(name, '{'); labelsIndex >= 0 {
		return name[0:labelsIndex]
	}
	return name
}

// parseMetric splits `foo{bar="baz",aaa="b"}` into its name and labels.
func parseMetric(name string) (string, prometheus.Labels, error) {
	labelsIndex := strings.IndexByte(name, '{')
	if labelsIndex < 0 {
		return name, nil, nil
	}
	if !strings.HasSuffix(name, "}") {
		return "", nil, fmt.Errorf("missing closing brace in metric %q", name)
	}
	labels := prometheus.Labels{}
	for _, pair := range strings.Split(name[labelsIndex+1:len(name)-1], ",") {
		if pair == "" {
			continue
		}
		k, v, ok := strings.Cut(pair, "=")
		if !ok {
			return "", nil, fmt.Errorf("malformed label %q in metric %q", pair, name)
		}
		value, err := strconv.Unquote(strings.TrimSpace(v))
		if err != nil {
			return "", nil, fmt.Errorf("malformed label value %q in metric %q: %w", v, name, err)
		}
		labels[strings.TrimSpace(k)] = value
	}
	return stripLabels(name), labels, nil
}

func (s *Set) register(name string, create func(string, prometheus.Labels) prometheus.Collector) (prometheus.Collector, error) {
	if _, ok := s.metrics[name]; ok {
		return nil, fmt.Errorf("metric %q is already registered", name)
	}
	base, labels, err := parseMetric(name)
	if err != nil {
		return nil, err
	}
	c := create(base, labels)
	if err := s.registry.Register(c); err != nil {
		return nil, err
	}
	s.metrics[name] = c
	return c, nil
}

func newCounter(name string, labels prometheus.Labels) prometheus.Collector {
	return prometheus.NewCounter(prometheus.CounterOpts{Name: name, Help: name, ConstLabels: labels})
}

func newGauge(name string, labels prometheus.Labels) prometheus.Collector {
	return prometheus.NewGauge(prometheus.GaugeOpts{Name: name, Help: name, ConstLabels: labels})
}

func newSummary(name string, labels prometheus.Labels) prometheus.Collector {
	return prometheus.NewSummary(prometheus.SummaryOpts{
		Name:        name,
		Help:        name,
		ConstLabels: labels,
		Objectives:  map[float64]float64{0.5: 0.05, 0.9: 0.01, 0.99: 0.001},
	})
}

func (s *Set) NewCounter(name string) (prometheus.Counter, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, err := s.register(name, newCounter)
	if err != nil {
		return nil, err
	}
	return c.(prometheus.Counter), nil
}

func (s *Set) GetOrCreateCounter(name string) (prometheus.Counter, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.metrics[name]; ok {
		if counter, ok := c.(prometheus.Counter); ok {
			return counter, nil
		}
		return nil, fmt.Errorf("metric %q is not a counter", name)
	}
	c, err := s.register(name, newCounter)
	if err != nil {
		return nil, err
	}
	return c.(prometheus.Counter), nil
}

func (s *Set) NewGauge(name string) (prometheus.Gauge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, err := s.register(name, newGauge)
	if err != nil {
		return nil, err
	}
	return g.(prometheus.Gauge), nil
}

func (s *Set) NewSummary(name string) (prometheus.Summary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sm, err := s.register(name, newSummary)
	if err != nil {
		return nil, err
	}
	return sm.(prometheus.Summary), nil
}
