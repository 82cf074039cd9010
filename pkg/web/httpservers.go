package web

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"github.com/atlassian/gossipmember"
	"github.com/atlassian/gossipmember/pkg/cluster/nodes"
	"github.com/atlassian/gossipmember/pkg/engine"
)

// Member is the read side of a membership engine.
type Member interface {
	Self() gossipmember.Address
	State() engine.State
	Heartbeat() int64
	Members() []gossipmember.Entry
}

// HttpServer is the admin web server of a node.
type HttpServer struct {
	logger  logrus.FieldLogger
	address string
	Router  *mux.Router
}

type route struct {
	path    string
	handler http.Handler
	method  string
	name    string
}

var done = struct{}{}

// NewHttpServerFromViper creates an HttpServer listening on the address in
// the web-addr parameter.  An empty address disables the server, and nil is
// returned.
func NewHttpServerFromViper(
	v *viper.Viper,
	logger logrus.FieldLogger,
	member Member,
	picker nodes.NodePicker,
	gatherer prometheus.Gatherer,
) (*HttpServer, error) {
	v.SetDefault(gossipmember.ParamWebAddr, gossipmember.DefaultWebAddr)
	address := v.GetString(gossipmember.ParamWebAddr)
	if address == "" {
		return nil, nil
	}
	return NewHttpServer(logger, member, picker, gatherer, address)
}

// NewHttpServer creates an HttpServer serving the state of member.  The
// /owner route is only added if picker is not nil, and /metrics only if
// gatherer is not nil.
func NewHttpServer(
	logger logrus.FieldLogger,
	member Member,
	picker nodes.NodePicker,
	gatherer prometheus.Gatherer,
	address string,
) (*HttpServer, error) {
	server := &HttpServer{
		logger:  logger,
		address: address,
	}

	mh := &membershipHandler{member: member, picker: picker}
	hc := &healthChecker{logger: logger, member: member}
	routes := []route{
		{path: "/membership", handler: http.HandlerFunc(mh.membership), method: "GET", name: "membership_get"},
		{path: "/healthcheck", handler: http.HandlerFunc(hc.healthCheck), method: "GET", name: "healthcheck_get"},
	}
	if picker != nil {
		routes = append(routes,
			route{path: "/owner/{key}", handler: http.HandlerFunc(mh.owner), method: "GET", name: "owner_get"},
		)
	}
	if gatherer != nil {
		routes = append(routes,
			route{path: "/metrics", handler: promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}), method: "GET", name: "metrics_get"},
		)
	}

	router, err := createRoutes(routes)
	if err != nil {
		return nil, err
	}
	router.NotFoundHandler = server.logRequest(http.HandlerFunc(server.notFound))
	router.Use(server.logRequest)
	server.Router = router

	logger.WithFields(logrus.Fields{
		"address":       address,
		"enable-owner":  picker != nil,
		"enable-metric": gatherer != nil,
	}).Info("Created server")

	return server, nil
}

func (hs *HttpServer) notFound(w http.ResponseWriter, req *http.Request) {
	w.WriteHeader(http.StatusNotFound)
	_, _ = w.Write([]byte("not found"))
}

func createRoutes(routes []route) (*mux.Router, error) {
	router := mux.NewRouter()

	for _, route := range routes {
		r := router.Handle(route.path, route.handler).Methods(route.method).Name(route.name)
		if err := r.GetError(); err != nil {
			return nil, fmt.Errorf("error creating route %s: %v", route.name, err)
		}
	}

	return router, nil
}

func (hs *HttpServer) logRequest(handler http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		logFields := logrus.Fields{
			"srcip": strings.Split(req.RemoteAddr, ":")[0],
			"path":  req.URL.Path,
		}
		if route := mux.CurrentRoute(req); route == nil {
			logFields["method"] = req.Method
		} else {
			logFields["route"] = route.GetName()
		}
		if source := req.Header.Get("X-Forwarded-For"); source != "" {
			logFields["forwarded_for"] = source
		}

		start := time.Now()
		handler.ServeHTTP(w, req)
		dur := time.Since(start)

		logFields["duration"] = float64(dur) / float64(time.Millisecond)
		hs.logger.WithFields(logFields).Debug("request")
	})
}

// Run serves requests until the context is closed, then shuts the server
// down gracefully.
func (hs *HttpServer) Run(ctx context.Context) {
	server := &http.Server{
		Addr:              hs.address,
		Handler:           hs.Router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	chStopped := make(chan struct{}, 1)
	go hs.waitAndStop(ctx, server, chStopped)

	hs.logger.WithField("address", server.Addr).Info("listening")

	err := server.ListenAndServe()
	if err != http.ErrServerClosed {
		hs.logger.WithError(err).Error("web server failed")
		return
	}

	// Wait for graceful shutdown of existing connections
	select {
	case <-chStopped:
	case <-time.After(6 * time.Second):
		hs.logger.Info("timeout waiting for webserver to stop")
	}
}

// waitAndStop will gracefully shut down the Server when the Context passed is cancelled.  It signals
// on chStopped when it is done.  There is no guarantee that it will actually signal, if the server
// does not shutdown.
func (hs *HttpServer) waitAndStop(ctx context.Context, server *http.Server, chStopped chan<- struct{}) {
	<-ctx.Done()

	hs.logger.Info("shutting down web server")
	timeoutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(timeoutCtx); err != nil {
		hs.logger.WithError(err).Warn("failed to stop web server")
	}
	chStopped <- done
}
