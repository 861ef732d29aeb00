package web

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"time"

	"github.com/avstrong/slotbooking/internal/booking"
	"github.com/avstrong/slotbooking/internal/identity"
	"github.com/avstrong/slotbooking/internal/logger"
)

var ErrPanic = errors.New("panic")

type Server struct {
	srv      *http.Server
	router   *http.ServeMux
	l        *logger.Logger
	conf     Conf
	bManager *booking.Manager
	users    *identity.Service
}

type Conf struct {
	L                 *logger.Logger
	ServerLogger      *log.Logger
	Host              string
	Port              string
	ReadHeaderTimeout time.Duration
	LivenessEndpoint  string
	// CookieTTL is the lifetime of the access_token cookie set on login.
	CookieTTL time.Duration
}

func New(ctx context.Context, conf Conf, bookingManager *booking.Manager, users *identity.Service) (*Server, error) {
	mux := http.NewServeMux()

	//nolint:exhaustruct
	srv := &http.Server{
		Addr:              net.JoinHostPort(conf.Host, conf.Port),
		ReadHeaderTimeout: conf.ReadHeaderTimeout * time.Second, //nolint:durationcheck
		ErrorLog:          conf.ServerLogger,
		Handler:           mux,
		BaseContext: func(listener net.Listener) context.Context {
			return ctx
		},
	}

	server := &Server{
		srv:      srv,
		router:   mux,
		l:        conf.L,
		conf:     conf,
		bManager: bookingManager,
		users:    users,
	}

	server.addRoutes(mux)

	return server, nil
}

func (s *Server) Srv() *http.Server {
	return s.srv
}

func (s *Server) Handler() http.Handler {
	return s.router
}
