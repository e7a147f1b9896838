// Package http serves the dashboard API and the change relay with Fiber.
package http

import (
	"context"
	stderrors "errors"
	"net"
	"time"

	"content-sync/internal/collection/config"
	"content-sync/internal/collection/domain/repository"
	"content-sync/internal/dashboard"
	"content-sync/internal/shared/errors"
	"content-sync/internal/shared/logger"
	"content-sync/internal/shared/utils"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
)

const requestIDLocal = "requestid"

// Server bundles the Fiber app with the dashboard routes and the relay.
type Server struct {
	app  *fiber.App
	auth *AdminAuth
	log  logger.Logger
}

// NewServer builds the app. A nil push disables the relay route.
func NewServer(cfg *config.Config, dash *dashboard.Dashboard, push repository.PushChannel, log logger.Logger) *Server {
	log = logger.OrNop(log).WithComponent("http_server")
	app := NewApp(log)
	auth := NewAdminAuth(cfg.Auth, log)

	NewHandler(dash, log).RegisterRoutes(app, auth.Protect())
	NewWebSocketHandler(push, dashboard.Collections, log).RegisterRoutes(app, cfg.Server.WebSocketPath, auth.Protect())

	if !auth.Enabled() {
		log.Warn("ADMIN_JWT_SECRET is empty, admin routes are open")
	}
	return &Server{app: app, auth: auth, log: log}
}

// NewApp creates a Fiber app with the JSON codec, error mapping and the
// common middleware.
func NewApp(log logger.Logger) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               "content-sync",
		ReadTimeout:           30 * time.Second,
		WriteTimeout:          30 * time.Second,
		IdleTimeout:           60 * time.Second,
		DisableStartupMessage: true,
		JSONEncoder:           json.Marshal,
		JSONDecoder:           json.Unmarshal,
		ErrorHandler:          errorHandler(logger.OrNop(log)),
	})

	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,HEAD,PUT,DELETE,PATCH,OPTIONS",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
	}))
	app.Use(requestid.New(requestid.Config{
		Header:     "X-Request-ID",
		ContextKey: requestIDLocal,
	}))
	app.Use(requestContext)
	return app
}

// App returns the Fiber app.
func (s *Server) App() *fiber.App { return s.app }

// Auth returns the admin token checker.
func (s *Server) Auth() *AdminAuth { return s.auth }

// Listen serves on addr until Shutdown.
func (s *Server) Listen(addr string) error {
	s.log.Infof("listening on %s", addr)
	return s.app.Listen(addr)
}

// Serve serves on an existing listener until Shutdown.
func (s *Server) Serve(ln net.Listener) error {
	s.log.Infof("listening on %s", ln.Addr())
	return s.app.Listener(ln)
}

// Shutdown stops accepting connections and waits for open requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

func requestContext(c *fiber.Ctx) error {
	if id, ok := c.Locals(requestIDLocal).(string); ok && id != "" {
		c.SetUserContext(utils.WithRequestID(c.UserContext(), id))
	}
	return c.Next()
}

func errorHandler(log logger.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		var fe *fiber.Error
		if stderrors.As(err, &fe) {
			return c.Status(fe.Code).JSON(fiber.Map{"error": fe.Message})
		}

		status := errors.HTTPStatus(err)
		if status >= fiber.StatusInternalServerError {
			log.WithContext(c.UserContext()).Errorf("%s %s: %v", c.Method(), c.Path(), err)
		}
		body := fiber.Map{"error": err.Error()}
		if t := errors.TypeOf(err); t != "" {
			body["type"] = t
		}
		return c.Status(status).JSON(body)
	}
}
