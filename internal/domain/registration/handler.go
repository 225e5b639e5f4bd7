package registration

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/campadventure/signup/internal/platform/auth"
	"github.com/campadventure/signup/internal/platform/badge"
	"github.com/campadventure/signup/internal/platform/notification"
	"github.com/campadventure/signup/pkg/pagination"
)

type Handler struct {
	svc *Service
	// maxFrameBytes bounds the raw body of a camera capture.
	maxFrameBytes int64
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc, maxFrameBytes: badge.DefaultMaxBytes}
}

// RegisterRoutes mounts the wizard on api and the completed-registration
// listing on admin. The admin group is expected to carry authentication.
func (h *Handler) RegisterRoutes(api *echo.Group, admin *echo.Group) {
	api.POST("/registrations", h.Start)
	api.GET("/registrations/:id", h.Get)
	api.DELETE("/registrations/:id", h.Reset)
	api.POST("/registrations/:id/steps/:step", h.SubmitStep)
	api.POST("/registrations/:id/back", h.Back)
	api.POST("/registrations/:id/jump/:index", h.Jump)
	api.POST("/registrations/:id/activities/:name/toggle", h.ToggleActivity)
	api.POST("/registrations/:id/badge/upload", h.UploadBadge)
	api.POST("/registrations/:id/badge/capture", h.CaptureBadge)
	api.POST("/registrations/:id/submit", h.Submit)

	if admin != nil {
		read := admin.Group("", auth.RequireStaff())
		read.GET("/registrations", h.ListRegistrations)
		read.GET("/registrations/:id", h.GetRegistration)
	}
}

// -- Wizard --

func (h *Handler) Start(c echo.Context) error {
	return c.JSON(http.StatusCreated, h.svc.Start(c.Request().Context()))
}

func (h *Handler) Get(c echo.Context) error {
	id, err := sessionID(c)
	if err != nil {
		return err
	}
	v, err := h.svc.View(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, v)
}

// SubmitStep decodes the body as the slice of the named step. An empty body
// or an object without a list on the activities step commits the toggled
// draft.
func (h *Handler) SubmitStep(c echo.Context) error {
	id, err := sessionID(c)
	if err != nil {
		return err
	}
	step, ok := StepByID(StepID(c.Param("step")))
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "unknown step")
	}
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	slice, err := DecodeSlice(step.ID, body)
	if err != nil {
		if step.ID == StepReview {
			return echo.NewHTTPError(http.StatusConflict, err.Error())
		}
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	v, err := h.svc.SubmitStep(c.Request().Context(), id, slice)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, v)
}

func (h *Handler) Back(c echo.Context) error {
	id, err := sessionID(c)
	if err != nil {
		return err
	}
	v, err := h.svc.Back(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, v)
}

func (h *Handler) Jump(c echo.Context) error {
	id, err := sessionID(c)
	if err != nil {
		return err
	}
	i, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid step index")
	}
	v, err := h.svc.Jump(c.Request().Context(), id, i)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, v)
}

func (h *Handler) ToggleActivity(c echo.Context) error {
	id, err := sessionID(c)
	if err != nil {
		return err
	}
	v, err := h.svc.ToggleActivity(c.Request().Context(), id, c.Param("name"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, v)
}

// UploadBadge accepts a multipart "file" field.
func (h *Handler) UploadBadge(c echo.Context) error {
	id, err := sessionID(c)
	if err != nil {
		return err
	}
	fh, err := c.FormFile("file")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "file is required")
	}
	f, err := fh.Open()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	defer f.Close()

	v, err := h.svc.UploadBadge(c.Request().Context(), id, f, fh.Header.Get("Content-Type"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, v)
}

// CaptureBadge treats the raw request body as the single frame of a camera.
func (h *Handler) CaptureBadge(c echo.Context) error {
	id, err := sessionID(c)
	if err != nil {
		return err
	}
	frame, err := io.ReadAll(io.LimitReader(c.Request().Body, h.maxFrameBytes+1))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if int64(len(frame)) > h.maxFrameBytes {
		return httpError(badge.ErrTooLarge)
	}
	v, err := h.svc.CaptureBadge(c.Request().Context(), id, badge.FrameCamera{Data: frame})
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, v)
}

// Submit returns 502 with the view, so the failure notice reaches the
// client together with the re-enabled submit control.
func (h *Handler) Submit(c echo.Context) error {
	id, err := sessionID(c)
	if err != nil {
		return err
	}
	v, err := h.svc.Submit(c.Request().Context(), id)
	var sendErr *notification.SendError
	if errors.As(err, &sendErr) {
		return c.JSON(http.StatusBadGateway, v)
	}
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, v)
}

func (h *Handler) Reset(c echo.Context) error {
	id, err := sessionID(c)
	if err != nil {
		return err
	}
	if err := h.svc.Reset(c.Request().Context(), id); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// -- Admin --

func (h *Handler) ListRegistrations(c echo.Context) error {
	p := pagination.FromContext(c)
	items, total, err := h.svc.ListRegistrations(c.Request().Context(), p.Limit, p.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, p.Limit, p.Offset).WithLinks(c.Request().URL.Path))
}

func (h *Handler) GetRegistration(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	reg, err := h.svc.GetRegistration(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, reg)
}

func sessionID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	return id, nil
}

// validationResponse is the 422 body.
type validationResponse struct {
	Message string       `json:"message"`
	Step    StepID       `json:"step"`
	Fields  []FieldError `json:"fields"`
}

func httpError(err error) error {
	var verr *ValidationError
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		// Left for the timeout middleware.
		return err
	case errors.As(err, &verr):
		return echo.NewHTTPError(http.StatusUnprocessableEntity, validationResponse{
			Message: "validation failed", Step: verr.Step, Fields: verr.Fields,
		})
	case errors.Is(err, ErrSessionNotFound), errors.Is(err, ErrRegistrationNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, badge.ErrUnsupportedImage),
		errors.Is(err, badge.ErrTooLarge),
		errors.Is(err, badge.ErrEmpty):
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, badge.ErrCameraUnavailable):
		return echo.NewHTTPError(http.StatusServiceUnavailable, err.Error())
	case errors.Is(err, ErrStepMismatch),
		errors.Is(err, ErrWizardSubmitted),
		errors.Is(err, ErrNotOnReview),
		errors.Is(err, ErrNotNavigable),
		errors.Is(err, ErrSubmissionInFlight),
		errors.Is(err, ErrAlreadySubmitted):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	}
	return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
}
