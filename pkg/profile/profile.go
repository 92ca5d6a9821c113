package profile

import (
	"net/http"
	"net/http/pprof"
)

const PathPrefix = "/usbboot-pprof/"

var namedProfiles = []string{"goroutine", "heap", "allocs", "threadcreate", "block", "mutex"}

// Handler serves the runtime profiles under PathPrefix.
func Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc(PathPrefix, pprof.Index)
	mux.HandleFunc(PathPrefix+"cmdline", pprof.Cmdline)
	mux.HandleFunc(PathPrefix+"profile", pprof.Profile)
	mux.HandleFunc(PathPrefix+"symbol", pprof.Symbol)
	mux.HandleFunc(PathPrefix+"trace", pprof.Trace)

	for _, name := range namedProfiles {
		mux.Handle(PathPrefix+name, pprof.Handler(name))
	}
	return mux
}
