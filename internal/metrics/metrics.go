// Package metrics はPrometheusのメトリクスを定義します。
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ログイン結果のラベル値
const (
	LoginSucceeded = "success"
	LoginFailed    = "failure"
	LoginLocked    = "locked"
)

// Metrics はアプリケーションのメトリクスをまとめたものです。
// nil のままでも各メソッドは何もしないので、テストでは省略できます。
type Metrics struct {
	SignupsTotal        prometheus.Counter
	LoginsTotal         *prometheus.CounterVec
	LogoutsTotal        prometheus.Counter
	AuthorizationDenied *prometheus.CounterVec
	SessionsRejected    prometheus.Counter
}

// New はメトリクスを作成して reg に登録します。
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		SignupsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "blog_signups_total",
			Help: "Total number of users created through /signup",
		}),
		LoginsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "blog_logins_total",
			Help: "Login attempts by result",
		}, []string{"result"}),
		LogoutsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "blog_logouts_total",
			Help: "Total number of successful logouts",
		}),
		AuthorizationDenied: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "blog_authorization_denied_total",
			Help: "Mutations rejected because the acting user does not own the resource",
		}, []string{"resource"}),
		SessionsRejected: factory.NewCounter(prometheus.CounterOpts{
			Name: "blog_sessions_rejected_total",
			Help: "Requests rejected because the session was missing, expired or destroyed",
		}),
	}
}

func (m *Metrics) IncSignup() {
	if m == nil {
		return
	}
	m.SignupsTotal.Inc()
}

func (m *Metrics) IncLogin(result string) {
	if m == nil {
		return
	}
	m.LoginsTotal.WithLabelValues(result).Inc()
}

func (m *Metrics) IncLogout() {
	if m == nil {
		return
	}
	m.LogoutsTotal.Inc()
}

func (m *Metrics) IncAuthorizationDenied(resource string) {
	if m == nil {
		return
	}
	m.AuthorizationDenied.WithLabelValues(resource).Inc()
}

func (m *Metrics) IncSessionRejected() {
	if m == nil {
		return
	}
	m.SessionsRejected.Inc()
}
