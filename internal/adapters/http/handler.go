package http

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/dkaya/expbench/internal/core/domain"
	"github.com/dkaya/expbench/internal/core/ports"
)

// ExperimentHandler maps the HTTP surface onto the lifecycle controller,
// registry and packager.
type ExperimentHandler struct {
	registry  ports.Registry
	lifecycle ports.Lifecycle
	packager  ports.ArtifactPackager
}

func NewExperimentHandler(registry ports.Registry, lifecycle ports.Lifecycle, packager ports.ArtifactPackager) *ExperimentHandler {
	return &ExperimentHandler{registry: registry, lifecycle: lifecycle, packager: packager}
}

// NameRequest is the body of every lifecycle operation.
type NameRequest struct {
	ExperimentName string `json:"experiment_name"`
}

func (h *ExperimentHandler) ListExperiments(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"experiments": h.registry.List()})
}

// Build streams the build log as plain text. A failing build still delivers
// everything captured before the stream terminates; the status line is
// already written by then, so failure is signaled in the log itself.
func (h *ExperimentHandler) Build(c *fiber.Ctx) error {
	req, err := parseName(c)
	if err != nil {
		return err
	}

	logs, err := h.lifecycle.Build(c.Context(), req.ExperimentName)
	if err != nil {
		return fail(c, err)
	}
	c.Set(fiber.HeaderContentType, fiber.MIMETextPlainCharsetUTF8)
	return c.SendStream(logs)
}

func (h *ExperimentHandler) Run(c *fiber.Ctx) error {
	req, err := parseName(c)
	if err != nil {
		return err
	}

	id, err := h.lifecycle.Run(c.Context(), req.ExperimentName)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"container_id": id})
}

func (h *ExperimentHandler) Remove(c *fiber.Ctx) error {
	req, err := parseName(c)
	if err != nil {
		return err
	}

	removed, err := h.lifecycle.Remove(c.Context(), req.ExperimentName)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"removed": removed})
}

func (h *ExperimentHandler) Fetch(c *fiber.Ctx) error {
	req, err := parseName(c)
	if err != nil {
		return err
	}

	if err := h.lifecycle.Fetch(c.Context(), req.ExperimentName); err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"fetched": req.ExperimentName})
}

func (h *ExperimentHandler) Status(c *fiber.Ctx) error {
	state, err := h.lifecycle.Status(c.Context(), c.Params("experiment_name"))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return c.JSON(fiber.Map{"status": "not running"})
		}
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"status": state.Status, "id": state.ID})
}

func (h *ExperimentHandler) Artifacts(c *fiber.Ctx) error {
	name := c.Params("experiment_name")
	archive, err := h.packager.Pack(name)
	if err != nil {
		return fail(c, err)
	}
	c.Set(fiber.HeaderContentType, "application/zip")
	c.Set(fiber.HeaderContentDisposition, `attachment; filename="`+name+`-artifacts.zip"`)
	return c.SendStream(archive)
}

func parseName(c *fiber.Ctx) (NameRequest, error) {
	var req NameRequest
	if err := c.BodyParser(&req); err != nil {
		return req, fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if req.ExperimentName == "" {
		return req, fiber.NewError(fiber.StatusBadRequest, "experiment_name is required")
	}
	return req, nil
}

// fail maps the error taxonomy onto HTTP statuses.
func fail(c *fiber.Ctx, err error) error {
	status := fiber.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrUnknownExperiment),
		errors.Is(err, domain.ErrNotFound),
		errors.Is(err, domain.ErrArtifactsNotFound):
		status = fiber.StatusNotFound
	case errors.Is(err, domain.ErrRuntimeUnavailable):
		status = fiber.StatusBadGateway
	}
	return c.Status(status).JSON(fiber.Map{"error": err.Error()})
}
