// Package pprof mounts the runtime profiling endpoints on the API server.
package pprof

import (
	"fmt"
	"net/http"
	"net/http/pprof"
	"strconv"

	"github.com/mongodb/mongodb-dc-topology/pkg/util"
)

// Register adds the profiling handlers to mux under /debug/pprof/.
func Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /debug/pprof/", pprof.Index)
	mux.HandleFunc("GET /debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("GET /debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("GET /debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("GET /debug/pprof/trace", pprof.Trace)
}

// IsPprofEnabled checks if pprof is enabled based on the PPROF_ENABLED
// and OPERATOR_ENV environment variables. It returns true if:
// - PPROF_ENABLED is set to true
// - OPERATOR_ENV is set to dev and PPROF_ENABLED is not set
// Otherwise, it returns false.
func IsPprofEnabled(pprofEnabledString string, operatorEnv util.OperatorEnvironment) (bool, error) {
	if pprofEnabledString != "" {
		pprofEnabled, err := strconv.ParseBool(pprofEnabledString)
		if err != nil {
			return false, fmt.Errorf("unable to parse %s environment variable: %w", util.PprofEnabledEnv, err)
		}

		return pprofEnabled, nil
	}

	return operatorEnv == util.OperatorEnvironmentDev, nil
}
