package handlers

import (
	"github.com/gofiber/fiber/v3"
	"go.uber.org/zap"

	"github.com/ivaspavlo/staff-management-system/internal/apperrors"
	"github.com/ivaspavlo/staff-management-system/internal/middleware"
	"github.com/ivaspavlo/staff-management-system/internal/services"
)

type FileHandler struct {
	fileService *services.FileService
	policies    *middleware.Policies
	log         *zap.Logger
}

func NewFileHandler(fileService *services.FileService, policies *middleware.Policies, log *zap.Logger) *FileHandler {
	return &FileHandler{fileService: fileService, policies: policies, log: log}
}

func (h *FileHandler) RegisterRoutes(app *fiber.App) {
	group := app.Group("/fileStorage", middleware.Require(h.policies.IsAuth))

	group.Post("/:fileType?", h.Upload)
	group.Delete("/", h.Delete)
	group.Get("/*", h.Download)
}

// Upload stores the multipart "file" field and returns its URL.
func (h *FileHandler) Upload(c fiber.Ctx) error {
	header, err := c.FormFile("file")
	if err != nil {
		return apperrors.NewValidation("Can't download the file")
	}
	file, err := header.Open()
	if err != nil {
		h.log.Error("Failed to open uploaded file", zap.Error(err))
		return apperrors.NewValidation("Can't download the file")
	}
	defer file.Close()

	url, err := h.fileService.Upload(c.Context(), c.Params("fileType"), header.Filename,
		header.Header.Get(fiber.HeaderContentType), header.Size, file)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"url": url})
}

func (h *FileHandler) Delete(c fiber.Ctx) error {
	msg, err := h.fileService.Delete(c.Context(), c.Query("URL"))
	if err != nil {
		return err
	}
	return send(c, msg)
}

func (h *FileHandler) Download(c fiber.Ctx) error {
	reader, info, err := h.fileService.Open(c.Context(), c.Params("*"))
	if err != nil {
		return err
	}
	if info.ContentType != "" {
		c.Set(fiber.HeaderContentType, info.ContentType)
	}
	return c.SendStream(reader, int(info.Size))
}
