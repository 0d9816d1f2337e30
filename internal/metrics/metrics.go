package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// decodes counts anchor resolutions.
	// Labels: strategy (position, quote, whole, failed)
	decodes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "docanchor",
		Subsystem: "anchor",
		Name:      "decodes_total",
		Help:      "Anchor decodes by the strategy that resolved them",
	}, []string{"strategy"})

	// encodes counts span encodings.
	// Labels: status (ok, error)
	encodes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "docanchor",
		Subsystem: "anchor",
		Name:      "encodes_total",
		Help:      "Span encodings by outcome",
	}, []string{"status"})

	// surgeries counts structural edits.
	// Labels: op (replace_document, delete, replace), status (ok, rejected)
	surgeries = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "docanchor",
		Subsystem: "surgeon",
		Name:      "operations_total",
		Help:      "Structural edits by kind and outcome",
	}, []string{"op", "status"})

	// mutations counts delivered mutation records.
	// Labels: kind (childList, attributes, text)
	mutations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "docanchor",
		Subsystem: "notifier",
		Name:      "records_total",
		Help:      "Mutation records delivered to listeners",
	}, []string{"kind"})

	// openSessions tracks live document sessions.
	openSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "docanchor",
		Subsystem: "session",
		Name:      "open",
		Help:      "Open document sessions",
	})

	// streamDrops counts mutation batches dropped for slow stream clients.
	streamDrops = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "docanchor",
		Subsystem: "stream",
		Name:      "dropped_batches_total",
		Help:      "Mutation batches dropped because a stream client fell behind",
	})
)

// RecordDecode counts one decode. An empty strategy counts as failed.
func RecordDecode(strategy string) {
	if strategy == "" {
		strategy = "failed"
	}
	decodes.WithLabelValues(strategy).Inc()
}

// RecordEncode counts one encode.
func RecordEncode(err error) {
	encodes.WithLabelValues(status(err, "error")).Inc()
}

// RecordSurgery counts one structural edit.
func RecordSurgery(op string, err error) {
	surgeries.WithLabelValues(op, status(err, "rejected")).Inc()
}

// RecordMutation counts one delivered record of the given kind.
func RecordMutation(kind string) {
	mutations.WithLabelValues(kind).Inc()
}

// SessionOpened and SessionClosed move the open session gauge.
func SessionOpened() { openSessions.Inc() }
func SessionClosed() { openSessions.Dec() }

// RecordStreamDrop counts a batch dropped for a slow stream client.
func RecordStreamDrop() { streamDrops.Inc() }

func status(err error, failed string) string {
	if err != nil {
		return failed
	}
	return "ok"
}
