package http

import (
	"strconv"
	"time"

	"content-sync/internal/collection/domain/model"
	"content-sync/internal/dashboard"
	"content-sync/internal/shared/logger"

	"github.com/gofiber/fiber/v2"
)

// Handler exposes the dashboard over HTTP.
type Handler struct {
	dash *dashboard.Dashboard
	log  logger.Logger
}

// NewHandler creates a handler for dash.
func NewHandler(dash *dashboard.Dashboard, log logger.Logger) *Handler {
	return &Handler{dash: dash, log: logger.OrNop(log).WithComponent("dashboard_http")}
}

// RegisterRoutes mounts the API under /api/v1. Visitor submissions and
// link parsing are public; everything else goes through admin.
func (h *Handler) RegisterRoutes(router fiber.Router, admin fiber.Handler) {
	router.Get("/health", h.Health)

	api := router.Group("/api/v1")
	api.Post("/invites", h.SendInvite)
	api.Post("/comments", h.AddComment)
	api.Get("/comments/approved", h.ApprovedComments)
	api.Get("/videos/parse", h.ParseVideo)

	api.Get("/dashboard", admin, h.Snapshot)
	api.Get("/counts", admin, h.Counts)
	api.Get("/collections/:name", admin, h.Collection)
	api.Post("/collections/:name/refetch", admin, h.Refetch)
	api.Get("/notices", admin, h.Notices)
	api.Delete("/notices/:id", admin, h.DismissNotice)

	api.Post("/poems", admin, h.AddPoem)
	api.Patch("/poems/:id", admin, h.UpdatePoem)
	api.Delete("/poems/:id", admin, h.DeletePoem)
	api.Post("/videos", admin, h.AddVideo)
	api.Delete("/videos/:id", admin, h.DeleteVideo)
	api.Post("/comments/:id/approve", admin, h.ApproveComment)
	api.Delete("/comments/:id", admin, h.RemoveComment)
	api.Post("/invites/:id/read", admin, h.MarkInviteRead)
	api.Delete("/invites/:id", admin, h.DeleteInvite)
	api.Delete("/invites", admin, h.ClearAllInvites)
	api.Post("/media", admin, h.AddMediaAsset)
	api.Delete("/media/:id", admin, h.DeleteMediaAsset)
	api.Put("/live-settings", admin, h.SaveLiveSettings)
	api.Put("/profile", admin, h.SaveProfile)
	api.Post("/notifications/:id/read", admin, h.MarkNotificationRead)
}

// Health reports every collection's status. A failed collection makes the
// service degraded.
func (h *Handler) Health(c *fiber.Ctx) error {
	state := h.dash.Snapshot()
	collections := make(fiber.Map, len(state.Collections))
	healthy := true
	for name, s := range state.Collections {
		collections[name] = s.Status
		if s.Status == model.StatusFailed {
			healthy = false
		}
	}
	if !healthy {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"status":      "DEGRADED",
			"collections": collections,
			"timestamp":   time.Now().UTC(),
		})
	}
	return c.JSON(fiber.Map{
		"status":      "HEALTHY",
		"collections": collections,
		"timestamp":   time.Now().UTC(),
	})
}

// Snapshot returns the whole dashboard state.
func (h *Handler) Snapshot(c *fiber.Ctx) error {
	return c.JSON(h.dash.Snapshot())
}

// Counts returns the derived counts.
func (h *Handler) Counts(c *fiber.Ctx) error {
	return c.JSON(h.dash.Counts())
}

// Collection returns one collection's state.
func (h *Handler) Collection(c *fiber.Ctx) error {
	state, err := h.dash.Collection(c.Params("name"))
	if err != nil {
		return err
	}
	return c.JSON(state)
}

// Refetch refreshes one collection and returns its new state.
func (h *Handler) Refetch(c *fiber.Ctx) error {
	state, err := h.dash.Refetch(c.UserContext(), c.Params("name"))
	if err != nil {
		return err
	}
	return c.JSON(state)
}

// Notices lists the notices that are up.
func (h *Handler) Notices(c *fiber.Ctx) error {
	return c.JSON(h.dash.Notices().List())
}

// DismissNotice takes a notice down.
func (h *Handler) DismissNotice(c *fiber.Ctx) error {
	id, err := strconv.ParseUint(c.Params("id"), 10, 64)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid notice id")
	}
	if !h.dash.Notices().Remove(id) {
		return fiber.NewError(fiber.StatusNotFound, "notice not found")
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// ParseVideo reports how a video link is recognized.
func (h *Handler) ParseVideo(c *fiber.Ctx) error {
	ref, err := dashboard.ParseVideoURL(c.Query("url"))
	if err != nil {
		return err
	}
	out := fiber.Map{"platform": ref.Platform, "id": ref.ID, "url": ref.URL}
	if ref.Platform == dashboard.PlatformYouTube {
		out["embed_url"] = dashboard.YouTubeEmbedURL(ref.ID)
		out["thumbnail_url"] = dashboard.YouTubeThumbnailURL(ref.ID)
	}
	return c.JSON(out)
}

// ApprovedComments lists approved comments of one poem or video.
func (h *Handler) ApprovedComments(c *fiber.Ctx) error {
	return c.JSON(h.dash.ApprovedComments(c.Query("content_type"), c.Query("content_id")))
}

func (h *Handler) AddPoem(c *fiber.Ctx) error {
	var in dashboard.PoemInput
	if err := parse(c, &in); err != nil {
		return err
	}
	return result(c, h.dash.AddPoem(c.UserContext(), in))
}

func (h *Handler) UpdatePoem(c *fiber.Ctx) error {
	var patch map[string]interface{}
	if err := parse(c, &patch); err != nil {
		return err
	}
	return result(c, h.dash.UpdatePoem(c.UserContext(), c.Params("id"), model.Record(patch)))
}

func (h *Handler) DeletePoem(c *fiber.Ctx) error {
	return result(c, h.dash.DeletePoem(c.UserContext(), c.Params("id")))
}

func (h *Handler) AddVideo(c *fiber.Ctx) error {
	var in dashboard.VideoInput
	if err := parse(c, &in); err != nil {
		return err
	}
	return result(c, h.dash.AddVideo(c.UserContext(), in))
}

func (h *Handler) DeleteVideo(c *fiber.Ctx) error {
	return result(c, h.dash.DeleteVideo(c.UserContext(), c.Params("id")))
}

func (h *Handler) AddComment(c *fiber.Ctx) error {
	var in dashboard.CommentInput
	if err := parse(c, &in); err != nil {
		return err
	}
	return result(c, h.dash.AddComment(c.UserContext(), in))
}

func (h *Handler) ApproveComment(c *fiber.Ctx) error {
	return result(c, h.dash.ApproveComment(c.UserContext(), c.Params("id")))
}

func (h *Handler) RemoveComment(c *fiber.Ctx) error {
	return result(c, h.dash.RemoveComment(c.UserContext(), c.Params("id")))
}

func (h *Handler) SendInvite(c *fiber.Ctx) error {
	var in dashboard.InviteInput
	if err := parse(c, &in); err != nil {
		return err
	}
	return result(c, h.dash.SendInvite(c.UserContext(), in))
}

func (h *Handler) MarkInviteRead(c *fiber.Ctx) error {
	return result(c, h.dash.MarkInviteRead(c.UserContext(), c.Params("id")))
}

func (h *Handler) DeleteInvite(c *fiber.Ctx) error {
	return result(c, h.dash.DeleteInvite(c.UserContext(), c.Params("id")))
}

func (h *Handler) ClearAllInvites(c *fiber.Ctx) error {
	return result(c, h.dash.ClearAllInvites(c.UserContext()))
}

func (h *Handler) AddMediaAsset(c *fiber.Ctx) error {
	var in dashboard.MediaAssetInput
	if err := parse(c, &in); err != nil {
		return err
	}
	return result(c, h.dash.AddMediaAsset(c.UserContext(), in))
}

func (h *Handler) DeleteMediaAsset(c *fiber.Ctx) error {
	return result(c, h.dash.DeleteMediaAsset(c.UserContext(), c.Params("id")))
}

func (h *Handler) SaveLiveSettings(c *fiber.Ctx) error {
	var in dashboard.LiveSettingsInput
	if err := parse(c, &in); err != nil {
		return err
	}
	return result(c, h.dash.SaveLiveSettings(c.UserContext(), in))
}

func (h *Handler) SaveProfile(c *fiber.Ctx) error {
	var in dashboard.ProfileInput
	if err := parse(c, &in); err != nil {
		return err
	}
	return result(c, h.dash.SaveProfile(c.UserContext(), in))
}

func (h *Handler) MarkNotificationRead(c *fiber.Ctx) error {
	return result(c, h.dash.MarkNotificationRead(c.UserContext(), c.Params("id")))
}

func parse(c *fiber.Ctx, out interface{}) error {
	if err := c.BodyParser(out); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	return nil
}

// result writes an action result. Failed actions answer 422 with the same
// body shape.
func result(c *fiber.Ctx, res model.ActionResult) error {
	if !res.Success {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(res)
	}
	return c.JSON(res)
}
