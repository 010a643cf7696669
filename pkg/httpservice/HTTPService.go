package httpservice

import "context"
import "errors"
import "net"
import "net/http"

import "github.com/sirgallo/grsfs/pkg/logger"
import "github.com/sirgallo/grsfs/pkg/utils"


//=========================================== HTTP Service


/*
	create a new service instance with passable options
	--> initialize the mux and register the admin routes on it:
		status, election, promote and command for running path based filesystem ops on this node
*/

func NewHTTPService(opts *HTTPServiceOpts) *HTTPService {
	mux := http.NewServeMux()

	httpService := &HTTPService{
		Mux: mux,
		Port: utils.NormalizePort(opts.Port),
		Node: opts.Node,
		Log: clog.NewCustomLog(NAME),
	}

	httpService.RegisterStatusRoute()
	httpService.RegisterElectionRoute()
	httpService.RegisterPromoteRoute()
	httpService.RegisterCommandRoute()

	return httpService
}

/*
	Start HTTP Service
		listen on the configured port and serve in a separate go routine, the bound address is returned
*/

func (httpService *HTTPService) StartHTTPService() (net.Addr, error) {
	listener, listenErr := net.Listen("tcp", httpService.Port)
	if listenErr != nil { return nil, listenErr }

	httpService.server = &http.Server{ Handler: httpService.Mux, ReadHeaderTimeout: HTTPTimeout }

	go func() {
		httpService.Log.Info("http service starting up on:", listener.Addr().String())

		srvErr := httpService.server.Serve(listener)
		if srvErr != nil && ! errors.Is(srvErr, http.ErrServerClosed) { httpService.Log.Error("http service stopped:", srvErr.Error()) }
	}()

	return listener.Addr(), nil
}

func (httpService *HTTPService) StopHTTPService(ctx context.Context) error {
	if httpService.server == nil { return nil }
	return httpService.server.Shutdown(ctx)
}
