// Package di contains dependency injection tokens for the monitor context.
package di

import (
	"github.com/fd1az/mordor-monitor/business/monitor/app"
	"github.com/fd1az/mordor-monitor/business/monitor/infra/httpapi"
	"github.com/fd1az/mordor-monitor/internal/di"
)

// Public service tokens - exposed to other modules
var (
	Poller       = di.NewToken[*app.Poller]("monitor.Poller")
	QueryService = di.NewToken[*app.QueryService]("monitor.QueryService")
	Hub          = di.NewToken[*httpapi.Hub]("monitor.Hub")
	APIHandler   = di.NewToken[*httpapi.Handler]("monitor.APIHandler")
)

// Private dependency tokens - internal to monitor module
var (
	PollState   = di.NewToken[*app.PollState]("monitor:pollState")
	MetricsSink = di.NewToken[app.MetricsSink]("monitor:metricsSink")
)

func GetPoller(c di.ServiceRegistry) *app.Poller {
	return di.GetToken(c, Poller)
}

func GetQueryService(c di.ServiceRegistry) *app.QueryService {
	return di.GetToken(c, QueryService)
}

func GetHub(c di.ServiceRegistry) *httpapi.Hub {
	return di.GetToken(c, Hub)
}

func GetAPIHandler(c di.ServiceRegistry) *httpapi.Handler {
	return di.GetToken(c, APIHandler)
}

func GetPollState(c di.ServiceRegistry) *app.PollState {
	return di.GetToken(c, PollState)
}

func GetMetricsSink(c di.ServiceRegistry) app.MetricsSink {
	return di.GetToken(c, MetricsSink)
}
