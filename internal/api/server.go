// Package api serves the northbound REST API.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"firestige.xyz/vlanswitch/internal/controller"
	"firestige.xyz/vlanswitch/internal/core"
	"firestige.xyz/vlanswitch/internal/fdb"
	"firestige.xyz/vlanswitch/internal/topology"
)

// Controller is the part of *controller.Controller the API exposes.
type Controller interface {
	AddBinding(ctx context.Context, vlan core.VLANID, m topology.Member) error
	RemoveVLAN(ctx context.Context, vlan core.VLANID) error
	Bindings(ctx context.Context) ([]topology.VLANDef, error)
	LookupVLAN(port core.PortNo, sw core.SwitchID) core.VLANID
	PortsInVLAN(vlan core.VLANID, sw core.SwitchID) []core.PortNo
	VLANs() []topology.VLANDef
	Edges() []core.PortNo
	FDBEntries(f fdb.Filter) []fdb.Entry
	Stats() controller.Stats
}

// Server is the REST API server.
type Server struct {
	addr string
	app  *fiber.App
	ctrl Controller
	ln   net.Listener
}

// NewServer builds the routes. Call Start to listen.
func NewServer(addr string, ctrl Controller) *Server {
	s := &Server{addr: addr, ctrl: ctrl}
	s.app = fiber.New(fiber.Config{
		AppName:               "vlanswitch",
		DisableStartupMessage: true,
		ErrorHandler:          errorHandler,
	})
	s.routes()
	return s
}

// App exposes the fiber app for tests.
func (s *Server) App() *fiber.App { return s.app }

func (s *Server) routes() {
	s.app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.SendString("ok")
	})

	v1 := s.app.Group("/api/v1")
	v1.Get("/vlans", s.listVLANs)
	v1.Get("/vlans/lookup", s.lookupVLAN)
	v1.Get("/edges", s.listEdges)
	v1.Get("/fdb", s.listFDB)
	v1.Get("/bindings", s.listBindings)
	v1.Post("/bindings", s.addBinding)
	v1.Delete("/bindings/:vlan", s.deleteBinding)
	v1.Get("/stats", s.stats)
}

func errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
	}
	return c.Status(code).JSON(fiber.Map{"error": err.Error()})
}

func (s *Server) listVLANs(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"vlans": s.ctrl.VLANs()})
}

func (s *Server) lookupVLAN(c *fiber.Ctx) error {
	port, err := strconv.ParseUint(c.Query("port"), 10, 32)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid port")
	}
	sw, err := strconv.ParseUint(c.Query("switch"), 10, 64)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid switch")
	}

	vlan := s.ctrl.LookupVLAN(core.PortNo(port), core.SwitchID(sw))
	ports := s.ctrl.PortsInVLAN(vlan, core.SwitchID(sw))
	if ports == nil {
		ports = []core.PortNo{}
	}
	return c.JSON(fiber.Map{
		"vlan":    vlan,
		"default": vlan.IsDefault(),
		"ports":   ports,
	})
}

func (s *Server) listEdges(c *fiber.Ctx) error {
	ports := s.ctrl.Edges()
	return c.JSON(fiber.Map{"ports": ports, "count": len(ports)})
}

func (s *Server) listFDB(c *fiber.Ctx) error {
	f := fdb.Filter{VLAN: core.VLANID(c.Query("vlan"))}
	if raw := c.Query("switch"); raw != "" {
		sw, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid switch")
		}
		id := core.SwitchID(sw)
		f.Switch = &id
	}
	entries := s.ctrl.FDBEntries(f)
	if entries == nil {
		entries = []fdb.Entry{}
	}
	return c.JSON(fiber.Map{"entries": entries, "count": len(entries)})
}

func (s *Server) listBindings(c *fiber.Ctx) error {
	defs, err := s.ctrl.Bindings(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"bindings": defs})
}

type bindingRequest struct {
	VLAN   core.VLANID   `json:"vlan"`
	Port   core.PortNo   `json:"port"`
	Switch core.SwitchID `json:"switch"`
}

func (s *Server) addBinding(c *fiber.Ctx) error {
	var req bindingRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, fmt.Sprintf("invalid body: %v", err))
	}
	m := topology.Member{Port: req.Port, Switch: req.Switch}
	if err := s.ctrl.AddBinding(c.UserContext(), req.VLAN, m); err != nil {
		if errors.Is(err, core.ErrTopologyInvalid) {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(req)
}

func (s *Server) deleteBinding(c *fiber.Ctx) error {
	vlan := core.VLANID(c.Params("vlan"))
	if err := s.ctrl.RemoveVLAN(c.UserContext(), vlan); err != nil {
		if errors.Is(err, core.ErrVLANNotFound) {
			return fiber.NewError(fiber.StatusNotFound, err.Error())
		}
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (s *Server) stats(c *fiber.Ctx) error {
	return c.JSON(s.ctrl.Stats())
}

// Start listens on the configured address and serves in the background.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("api listen on %s: %w", s.addr, err)
	}
	s.ln = ln

	go func() {
		if err := s.app.Listener(ln); err != nil {
			slog.Error("api server error", "error", err)
		}
	}()

	slog.Info("api server started", "addr", ln.Addr().String())
	return nil
}

// Addr returns the bound address once started.
func (s *Server) Addr() string {
	if s.ln != nil {
		return s.ln.Addr().String()
	}
	return s.addr
}

// Stop shuts the server down gracefully.
func (s *Server) Stop(ctx context.Context) error {
	if s.ln == nil {
		return nil
	}
	return s.app.ShutdownWithContext(ctx)
}
