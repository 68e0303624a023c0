// Package api binds the account, device and telemetry operations to HTTP.
//
// Every /api route is a JSON POST answered with HTTP 200 and an Envelope;
// failures travel in Envelope.Err as a stable code (see domain.Code).
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/satriahrh/devicehub/domain"
	"github.com/satriahrh/devicehub/domain/entities"
	"github.com/satriahrh/devicehub/domain/repositories"
	"github.com/satriahrh/devicehub/internal/auth"
	"github.com/satriahrh/devicehub/internal/ingest"
	"github.com/satriahrh/devicehub/internal/websocket"
	"github.com/satriahrh/devicehub/usecase"
)

// StatsSource reports ingestion counters
type StatsSource interface {
	Stats() ingest.Stats
}

// Handler holds the services behind the routes
type Handler struct {
	Credentials *usecase.CredentialService
	Sessions    *usecase.SessionService
	Devices     *usecase.DeviceService
	Telemetry   *usecase.TelemetryService
	Hub         *websocket.Hub
	Storage     repositories.Health
	Ingest      StatsSource
	Logger      *zap.Logger
}

// InitRoutes initializes all routes on e
func InitRoutes(e *echo.Echo, h *Handler) {
	e.GET("/health", h.health)

	if h.Hub != nil {
		e.GET("/ws", func(c echo.Context) error {
			return websocket.HandleStream(h.Hub, h.Sessions, c, h.Logger)
		})
	}

	g := e.Group("/api")
	g.POST("/register", h.register)
	g.POST("/login", h.login)
	g.POST("/logout", h.logout)
	g.POST("/check_login", h.checkLogin)
	g.POST("/create_device", h.createDevice)
	g.POST("/remove_device", h.removeDevice)
	g.POST("/modify_device", h.modifyDevice)
	g.POST("/fetch_device", h.fetchDevice)
	g.POST("/fetch_device_profile", h.fetchDeviceProfile)
	g.POST("/fetch_device_list", h.fetchDeviceList)
	g.POST("/fetch_message_list", h.fetchMessageList)
}

func ok() Envelope {
	return Envelope{Success: true}
}

// failure builds the envelope for err, logging anything that is not a
// caller mistake.
func (h *Handler) failure(c echo.Context, err error) Envelope {
	code := domain.Code(err)
	switch code {
	case domain.CodeStore, domain.CodeUnknown:
		h.Logger.Error("Request failed",
			zap.String("path", c.Path()),
			zap.Error(err))
	default:
		h.Logger.Debug("Request rejected",
			zap.String("path", c.Path()),
			zap.String("code", code))
	}
	return Envelope{Err: code}
}

// bind decodes the body into req, answering with error-invalid-request on failure
func (h *Handler) bind(c echo.Context, req interface{}) bool {
	if err := c.Bind(req); err != nil {
		h.Logger.Debug("Failed to bind request", zap.String("path", c.Path()), zap.Error(err))
		return false
	}
	return true
}

func invalid(c echo.Context) error {
	return c.JSON(http.StatusOK, Envelope{Err: domain.ErrInvalidRequest.Error()})
}

func (h *Handler) health(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
	defer cancel()

	resp := HealthResponse{Status: "ok", Service: "devicehub", Storage: "ok"}
	status := http.StatusOK
	if err := h.Storage.Ping(ctx); err != nil {
		resp.Status = "degraded"
		resp.Storage = err.Error()
		status = http.StatusServiceUnavailable
	}
	if h.Ingest != nil {
		resp.Ingest = h.Ingest.Stats()
	}
	return c.JSON(status, resp)
}

func (h *Handler) register(c echo.Context) error {
	var req RegisterRequest
	if !h.bind(c, &req) {
		return invalid(c)
	}
	if req.Password == "" {
		return invalid(c)
	}

	err := h.Credentials.Register(c.Request().Context(), req.Mail, req.Name, auth.HashPassword(req.Password))
	if err != nil {
		return c.JSON(http.StatusOK, h.failure(c, err))
	}
	return c.JSON(http.StatusOK, ok())
}

func (h *Handler) login(c echo.Context) error {
	var req LoginRequest
	if !h.bind(c, &req) {
		return invalid(c)
	}
	ctx := c.Request().Context()

	identity, err := h.Credentials.Authenticate(ctx, req.Mail, auth.HashPassword(req.Password))
	if err != nil {
		return c.JSON(http.StatusOK, LoginResponse{Envelope: h.failure(c, err)})
	}

	token, err := h.Sessions.Issue(ctx, identity.Mail)
	if err != nil {
		return c.JSON(http.StatusOK, LoginResponse{Envelope: h.failure(c, err)})
	}

	h.Logger.Info("User logged in", zap.String("mail", identity.Mail))
	return c.JSON(http.StatusOK, LoginResponse{
		Envelope:   ok(),
		LoginToken: token,
		Mail:       identity.Mail,
		Name:       identity.Name,
	})
}

func (h *Handler) logout(c echo.Context) error {
	var req TokenRequest
	if !h.bind(c, &req) {
		return invalid(c)
	}
	if err := h.Sessions.Revoke(c.Request().Context(), req.LoginToken); err != nil {
		return c.JSON(http.StatusOK, h.failure(c, err))
	}
	return c.JSON(http.StatusOK, ok())
}

func (h *Handler) checkLogin(c echo.Context) error {
	var req TokenRequest
	if !h.bind(c, &req) {
		return invalid(c)
	}
	valid, err := h.Sessions.Validate(c.Request().Context(), req.LoginToken)
	if err != nil {
		return c.JSON(http.StatusOK, h.failure(c, err))
	}
	if !valid {
		return c.JSON(http.StatusOK, h.failure(c, domain.ErrSessionExpired))
	}
	return c.JSON(http.StatusOK, ok())
}

func (h *Handler) createDevice(c echo.Context) error {
	var req OwnedDeviceRequest
	if !h.bind(c, &req) {
		return invalid(c)
	}
	if err := h.Devices.AddDevice(c.Request().Context(), req.LoginToken, req.Mail, req.DeviceID); err != nil {
		return c.JSON(http.StatusOK, h.failure(c, err))
	}
	return c.JSON(http.StatusOK, ok())
}

func (h *Handler) removeDevice(c echo.Context) error {
	var req OwnedDeviceRequest
	if !h.bind(c, &req) {
		return invalid(c)
	}
	if err := h.Devices.RemoveDevice(c.Request().Context(), req.LoginToken, req.Mail, req.DeviceID); err != nil {
		return c.JSON(http.StatusOK, h.failure(c, err))
	}
	return c.JSON(http.StatusOK, ok())
}

func (h *Handler) modifyDevice(c echo.Context) error {
	var req ModifyDeviceRequest
	if !h.bind(c, &req) {
		return invalid(c)
	}
	err := h.Devices.ModifyDevice(c.Request().Context(), req.LoginToken, req.DeviceID, req.Name, req.Info)
	if err != nil {
		return c.JSON(http.StatusOK, h.failure(c, err))
	}
	return c.JSON(http.StatusOK, ok())
}

func (h *Handler) fetchDevice(c echo.Context) error {
	var req DeviceRequest
	if !h.bind(c, &req) {
		return invalid(c)
	}
	device, err := h.Devices.FetchDevice(c.Request().Context(), req.LoginToken, req.DeviceID)
	if err != nil {
		return c.JSON(http.StatusOK, DeviceResponse{Envelope: h.failure(c, err)})
	}
	return c.JSON(http.StatusOK, DeviceResponse{Envelope: ok(), Device: device})
}

func (h *Handler) fetchDeviceProfile(c echo.Context) error {
	var req DeviceRequest
	if !h.bind(c, &req) {
		return invalid(c)
	}
	profile, err := h.Devices.FetchDeviceProfile(c.Request().Context(), req.LoginToken, req.DeviceID)
	if err != nil {
		return c.JSON(http.StatusOK, DeviceProfileResponse{Envelope: h.failure(c, err)})
	}
	return c.JSON(http.StatusOK, DeviceProfileResponse{Envelope: ok(), DeviceProfile: profile})
}

func (h *Handler) fetchDeviceList(c echo.Context) error {
	var req DeviceListRequest
	if !h.bind(c, &req) {
		return invalid(c)
	}
	profiles, err := h.Devices.FetchDeviceList(c.Request().Context(), req.LoginToken, req.Mail)
	if err != nil {
		return c.JSON(http.StatusOK, DeviceListResponse{Envelope: h.failure(c, err)})
	}
	if profiles == nil {
		profiles = []entities.DeviceProfile{}
	}
	return c.JSON(http.StatusOK, DeviceListResponse{Envelope: ok(), Devices: profiles})
}

func (h *Handler) fetchMessageList(c echo.Context) error {
	var req MessageListRequest
	if !h.bind(c, &req) {
		return invalid(c)
	}
	page, err := h.Telemetry.Query(c.Request().Context(), req.LoginToken, req.Query())
	if err != nil {
		return c.JSON(http.StatusOK, MessageListResponse{Envelope: h.failure(c, err)})
	}
	messages := page.Messages
	if messages == nil {
		messages = []*entities.Message{}
	}
	return c.JSON(http.StatusOK, MessageListResponse{
		Envelope:          ok(),
		Messages:          messages,
		TotalMatchedCount: page.Total,
	})
}
