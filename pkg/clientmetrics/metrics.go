// Package clientmetrics exposes Prometheus instrumentation for the
// client runtime. Metrics register on the default registerer under the
// `livenative` namespace.
package clientmetrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "livenative"

var (
	// Connects counts connection bootstraps, successful or not.
	Connects = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "connects_total",
		Help:      "Connection bootstraps started.",
	})

	// Joins counts successful main channel joins.
	Joins = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "channel_joins_total",
		Help:      "Successful live channel joins.",
	})

	// JoinRejections counts server-rejected joins that entered the retry
	// path.
	JoinRejections = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "join_rejections_total",
		Help:      "Channel joins rejected with a recoverable reason.",
	})

	// Reconnects counts socket swaps after a recoverable join rejection.
	Reconnects = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "socket_reconnects_total",
		Help:      "Sockets replaced during navigation retry.",
	})

	// DiffsMerged counts server diffs merged into the document.
	DiffsMerged = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "diffs_merged_total",
		Help:      "Server diffs merged into the live document.",
	})

	// PatchesApplied counts structural patches applied to documents.
	PatchesApplied = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "patches_applied_total",
		Help:      "Structural patches applied to live documents.",
	})

	// Uploads counts file uploads attempted.
	Uploads = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "uploads_total",
		Help:      "File uploads attempted.",
	})
)
