package registry

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/algocheckout/checkout"
	checkouthttp "github.com/algocheckout/checkout/http"
)

// errorResponse is the JSON body of every failed request
type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// NewServer returns an echo instance serving the registry routes.
func NewServer(r *Registry) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	Register(e, r)
	return e
}

// Register mounts the registry routes on e.
func Register(e *echo.Echo, r *Registry) {
	h := &handler{registry: r}
	e.GET("/health", h.health)
	e.POST("/checkouts", h.create)
	e.GET("/checkouts", h.list)
	e.GET("/checkouts/:id", h.get)
	e.POST("/checkouts/:id/status", h.updateStatus)
}

type handler struct {
	registry *Registry
}

func (h *handler) health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (h *handler) create(c echo.Context) error {
	var req checkouthttp.CreateCheckoutRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "malformed request body"})
	}
	co, err := h.registry.Create(req)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, co)
}

func (h *handler) list(c echo.Context) error {
	all, err := h.registry.List()
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{"checkouts": all})
}

func (h *handler) get(c echo.Context) error {
	co, err := h.registry.Get(c.Param("id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, co)
}

func (h *handler) updateStatus(c echo.Context) error {
	var req checkouthttp.UpdateStatusRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "malformed request body"})
	}
	co, err := h.registry.UpdateStatus(c.Param("id"), req)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, co)
}

func writeError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return c.JSON(http.StatusNotFound, errorResponse{Error: err.Error()})
	case errors.Is(err, ErrInvalidRequest):
		return c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
	case errors.Is(err, checkout.ErrInvalidTransition):
		return c.JSON(http.StatusConflict, errorResponse{Error: err.Error(), Code: checkout.ErrorCode(err)})
	default:
		return c.JSON(http.StatusInternalServerError, errorResponse{Error: err.Error()})
	}
}
