package api

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/zxhio/usbboot/pkg/profile"
)

const DefaultAPIAddr = "127.0.0.1:9931"

const (
	APIPathQueryTransactions = "/api/transactions"
	APIPathQueryTransaction  = "/api/transactions/:port"
	APIPathQueryDevices      = "/api/devices"
	APIPathMetrics           = "/metrics"
)

type routerOpts struct {
	gatherer prometheus.Gatherer
	pprof    bool
}

type RouterOpt func(*routerOpts)

// WithGatherer serves gatherer on APIPathMetrics.
func WithGatherer(g prometheus.Gatherer) RouterOpt {
	return func(o *routerOpts) { o.gatherer = g }
}

func WithPprof(enable bool) RouterOpt {
	return func(o *routerOpts) { o.pprof = enable }
}

func SetBootRouter(g *gin.Engine, scanner TransactionQuerier, transport DeviceQuerier, opts ...RouterOpt) {
	var o routerOpts
	for _, opt := range opts {
		opt(&o)
	}

	h := &BootHandler{scanner: scanner, transport: transport}
	g.GET(APIPathQueryTransactions, h.QueryTransactions)
	g.GET(APIPathQueryTransaction, h.QueryTransaction)
	g.GET(APIPathQueryDevices, h.QueryDevices)

	if o.gatherer != nil {
		g.GET(APIPathMetrics, gin.WrapH(promhttp.HandlerFor(o.gatherer, promhttp.HandlerOpts{})))
	}
	if o.pprof {
		g.Any(profile.PathPrefix+"*name", gin.WrapH(profile.Handler()))
	}
}

func InstantiateAPIURL(apiPath string, params map[string]string) string {
	for k, v := range params {
		apiPath = strings.ReplaceAll(apiPath, k, v)
	}
	return strings.TrimSuffix(apiPath, "/")
}
