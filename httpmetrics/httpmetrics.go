// Package httpmetrics instruments the API server's request handling.
package httpmetrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/golang/glog"
	"go.opencensus.io/stats"
	"go.opencensus.io/stats/view"
	"go.opencensus.io/tag"
)

var (
	keyPath   = tag.MustNewKey("path")
	keyMethod = tag.MustNewKey("method")
	keyStatus = tag.MustNewKey("status")
)

type Wrapper struct {
	requestCount   *stats.Int64Measure
	requestLatency *stats.Float64Measure
	views          []*view.View

	inner http.Handler
}

func New(inner http.Handler) *Wrapper {
	w := &Wrapper{inner: inner}

	w.requestCount = stats.Int64("api_requests", "Counter of handled API requests", stats.UnitDimensionless)
	w.requestLatency = stats.Float64("api_request_latency", "Latency of handled API requests", stats.UnitMilliseconds)

	w.views = []*view.View{
		{
			Name:        "api_requests",
			Description: "Counter of handled API requests",
			TagKeys:     []tag.Key{keyPath, keyMethod, keyStatus},
			Measure:     w.requestCount,
			Aggregation: view.Count(),
		},
		{
			Name:        "api_request_latency",
			Description: "Latency distribution of handled API requests",
			TagKeys:     []tag.Key{keyPath, keyMethod},
			Measure:     w.requestLatency,
			Aggregation: view.Distribution(1, 5, 25, 100, 500, 2000),
		},
	}

	return w
}

func (h *Wrapper) RegisterMetrics() {
	view.Register(h.views...)
}

// statusRecorder captures the status code written by the inner handler.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (h *Wrapper) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

	start := time.Now()
	h.inner.ServeHTTP(recorder, r)
	elapsed := time.Since(start)

	glog.Infof("Served method=%q path=%q status=%d elapsed=%v", r.Method, r.URL.Path, recorder.status, elapsed)

	stats.RecordWithOptions(
		r.Context(),
		stats.WithTags(
			tag.Insert(keyPath, r.URL.Path),
			tag.Insert(keyMethod, r.Method),
			tag.Insert(keyStatus, strconv.Itoa(recorder.status)),
		),
		stats.WithMeasurements(
			h.requestCount.M(1),
			h.requestLatency.M(float64(elapsed)/float64(time.Millisecond)),
		))
}
