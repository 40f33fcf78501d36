// Package metrics provides Prometheus-based metrics for report conversations.
package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/zulandar/shiftlog/internal/report"
)

// Recorder implements report.Observer and report.OutcomeSink.
type Recorder struct {
	started         prometheus.Counter
	outcomes        *prometheus.CounterVec
	rejections      *prometheus.CounterVec
	photos          *prometheus.CounterVec
	persistDuration *prometheus.HistogramVec
	inbound         *prometheus.CounterVec
}

// NewRecorder registers the shiftlog metrics on reg. Pass
// prometheus.DefaultRegisterer to expose them on promhttp.Handler().
func NewRecorder(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		started: f.NewCounter(prometheus.CounterOpts{
			Name: "shiftlog_conversations_started_total",
			Help: "Total number of report conversations started",
		}),
		outcomes: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "shiftlog_outcomes_total",
				Help: "Total number of terminal conversation outcomes by status",
			},
			[]string{"platform", "status"},
		),
		rejections: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "shiftlog_validation_rejections_total",
				Help: "Total number of rejected inputs by step",
			},
			[]string{"step"},
		),
		photos: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "shiftlog_photo_uploads_total",
				Help: "Total number of photo uploads by result",
			},
			[]string{"result"},
		),
		persistDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "shiftlog_persist_duration_seconds",
				Help:    "Duration of spreadsheet appends in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"status"},
		),
		inbound: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "shiftlog_inbound_messages_total",
				Help: "Total number of inbound chat messages by platform and kind",
			},
			[]string{"platform", "kind"},
		),
	}
}

// ConversationStarted counts a new report.
func (r *Recorder) ConversationStarted() { r.started.Inc() }

// ValidationRejected counts an input that kept the conversation on step.
func (r *Recorder) ValidationRejected(step report.Step) {
	r.rejections.WithLabelValues(step.String()).Inc()
}

// PhotoStored counts a photo upload attempt.
func (r *Recorder) PhotoStored(ok bool) {
	result := "uploaded"
	if !ok {
		result = "failed"
	}
	r.photos.WithLabelValues(result).Inc()
}

// PersistDone records the duration of one spreadsheet append.
func (r *Recorder) PersistDone(d time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	r.persistDuration.WithLabelValues(status).Observe(d.Seconds())
}

// InboundMessage counts one inbound chat event. kind is "text" or "photo".
func (r *Recorder) InboundMessage(platform, kind string) {
	r.inbound.WithLabelValues(platform, kind).Inc()
}

// RecordOutcome counts a terminal outcome. It never fails.
func (r *Recorder) RecordOutcome(_ context.Context, o report.Outcome) error {
	r.outcomes.WithLabelValues(o.Owner.Platform, string(o.Status)).Inc()
	return nil
}
