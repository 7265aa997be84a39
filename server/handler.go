package server

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"

	"github.com/viant/visual-archive/archive"
	"github.com/viant/visual-archive/curator"
	"github.com/viant/visual-archive/embedder"
	"github.com/viant/visual-archive/query"
	"github.com/viant/visual-archive/storage"
)

// MaxImageBytes bounds an uploaded query image.
const MaxImageBytes = 16 << 20

// Handler serves the archive HTTP API.
type Handler struct {
	engine  *query.Engine
	curator curator.Processor
	store   storage.Store
	topK    int
	logger  logrus.FieldLogger
}

// NewHandler creates a handler. store is used by /v1/reload; topK is the
// candidate window for /v1/search.
func NewHandler(engine *query.Engine, proc curator.Processor, store storage.Store, topK int, logger logrus.FieldLogger) *Handler {
	if topK <= 0 {
		topK = query.FullArchiveTopK
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Handler{engine: engine, curator: proc, store: store, topK: topK, logger: logger}
}

// Register sets up the routes.
func (h *Handler) Register(router fiber.Router) {
	router.Get("/healthz", h.Health)
	v1 := router.Group("/v1")
	v1.Post("/search", h.Search)
	v1.Post("/curate", h.Curate)
	v1.Get("/tags", h.Tags)
	v1.Post("/reload", h.Reload)
}

// Health reports liveness and how many images are searchable.
func (h *Handler) Health(c fiber.Ctx) error {
	a := h.engine.Archive()
	if a == nil {
		return c.JSON(fiber.Map{"status": "ok", "archive": "absent", "records": 0})
	}
	return c.JSON(fiber.Map{"status": "ok", "archive": "loaded", "records": a.Len()})
}

// Search ranks archive images by similarity to the uploaded image.
func (h *Handler) Search(c fiber.Ctx) error {
	img, err := formImage(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	opts := query.Options{TopK: h.topK, Tags: formTags(c)}
	if raw := c.FormValue("k"); raw != "" {
		k, err := strconv.Atoi(raw)
		if err != nil || k <= 0 {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "k must be a positive integer"})
		}
		opts.TopK = k
	}
	res, err := h.engine.Search(c.Context(), img, opts)
	if err != nil {
		return h.queryError(c, err)
	}
	return c.JSON(res)
}

// Curate answers with a conversational description of the closest matches.
func (h *Handler) Curate(c fiber.Ctx) error {
	img, err := formImage(c)
	if err != nil && !errors.Is(err, embedder.ErrEmptyImage) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	finding, err := h.curator.Process(c.Context(), img)
	if err != nil {
		h.logger.WithError(err).Error("curate failed")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(fiber.Map{
		"reply":          h.curator.Respond(finding),
		"matches":        finding.Matches,
		"dominant_style": finding.DominantStyle,
	})
}

// Tags lists the archive's distinct tags.
func (h *Handler) Tags(c fiber.Ctx) error {
	tags, err := h.engine.Tags()
	if err != nil {
		return h.queryError(c, err)
	}
	return c.JSON(fiber.Map{"tags": tags})
}

// Reload reopens the archive from the store and swaps it in.
func (h *Handler) Reload(c fiber.Ctx) error {
	a, err := archive.Open(c.Context(), h.store)
	if err != nil {
		if errors.Is(err, archive.ErrArchiveAbsent) {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "archive not found; run the build first"})
		}
		h.logger.WithError(err).Error("reload failed")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	h.engine.SetArchive(a)
	h.logger.WithField("records", a.Len()).Info("archive reloaded")
	return c.JSON(fiber.Map{"records": a.Len()})
}

func (h *Handler) queryError(c fiber.Ctx, err error) error {
	switch query.KindOf(err) {
	case query.IndexUnavailable:
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "archive not found; run the build first"})
	case query.EmbeddingFailure:
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"error": err.Error()})
	case query.EmptyResult:
		msg := "no matches found with current filters"
		if query.ReasonOf(err) == query.ReasonArchiveEmpty {
			msg = "archive is empty"
		}
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": msg, "reason": query.ReasonOf(err)})
	}
	h.logger.WithError(err).Error("search failed")
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
}

// formImage reads the "image" multipart file.
func formImage(c fiber.Ctx) (embedder.Image, error) {
	fh, err := c.FormFile("image")
	if err != nil {
		return embedder.Image{}, fmt.Errorf("multipart field \"image\" is required")
	}
	if fh.Size > MaxImageBytes {
		return embedder.Image{}, fmt.Errorf("image exceeds %d bytes", MaxImageBytes)
	}
	f, err := fh.Open()
	if err != nil {
		return embedder.Image{}, err
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, MaxImageBytes))
	if err != nil {
		return embedder.Image{}, err
	}
	img := embedder.Image{Name: fh.Filename, Data: data}
	if len(data) == 0 {
		return img, embedder.ErrEmptyImage
	}
	return img, nil
}

// formTags collects "tags" values, accepting repeats and comma lists.
func formTags(c fiber.Ctx) []string {
	var values []string
	if form, err := c.MultipartForm(); err == nil && form != nil {
		values = form.Value["tags"]
	} else if v := c.FormValue("tags"); v != "" {
		values = []string{v}
	}
	var tags []string
	for _, v := range values {
		for _, t := range strings.Split(v, ",") {
			if t = strings.TrimSpace(t); t != "" {
				tags = append(tags, t)
			}
		}
	}
	return tags
}
