package http

import (
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/wb-go/wbf/ginext"
	"github.com/wb-go/wbf/zlog"

	"github.com/yokitheyo/imageeditor/internal/domain"
	"github.com/yokitheyo/imageeditor/internal/dto"
)

type ImageHandler struct {
	service        domain.ImageService
	maxUploadSize  int64
	allowedFormats []string
}

func NewImageHandler(service domain.ImageService, maxUploadSizeMB int, allowedFormats []string) *ImageHandler {
	return &ImageHandler{
		service:        service,
		maxUploadSize:  int64(maxUploadSizeMB) * 1024 * 1024,
		allowedFormats: allowedFormats,
	}
}

func (h *ImageHandler) RegisterRoutes(engine *ginext.Engine) {
	engine.POST("/upload", h.UploadImage)
	engine.GET("/images", h.ListImages)
	engine.GET("/image/:id", h.GetImage)
	engine.GET("/image/:id/file", h.GetImageFile)
	engine.GET("/image/:id/original", h.GetOriginalImage)
	engine.GET("/image/:id/transformations", h.ListTransformations)
	engine.POST("/image/:id/transform", h.Transform)
	engine.DELETE("/image/:id", h.DeleteImage)
}

// UploadImage POST /upload
func (h *ImageHandler) UploadImage(c *ginext.Context) {
	file, header, err := c.Request.FormFile("image")
	if err != nil {
		zlog.Logger.Warn().Err(err).Msg("failed to get file from request")
		badRequest(c, "No image file provided")
		return
	}
	defer file.Close()

	if header.Size > h.maxUploadSize {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{
			Error:   "file_too_large",
			Message: fmt.Sprintf("File size exceeds maximum allowed (%d MB)", h.maxUploadSize/(1024*1024)),
		})
		return
	}

	ext := strings.ToLower(filepath.Ext(header.Filename))
	if !h.isAllowedFormat(ext) {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{
			Error:   "invalid_format",
			Message: fmt.Sprintf("Unsupported file format. Allowed: %v", h.allowedFormats),
		})
		return
	}

	image, err := h.service.UploadImage(
		c.Request.Context(),
		header.Filename,
		header.Size,
		io.LimitReader(file, h.maxUploadSize),
	)
	if err != nil {
		respondError(c, err, "failed to upload image")
		return
	}

	c.JSON(http.StatusCreated, dto.MapImageToResponse(image, baseURL(c)))
}

// GetImage GET /image/:id
func (h *ImageHandler) GetImage(c *ginext.Context) {
	image, err := h.service.GetImage(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err, "failed to get image")
		return
	}
	c.JSON(http.StatusOK, dto.MapImageToResponse(image, baseURL(c)))
}

// GetImageFile GET /image/:id/file[?original=true]
func (h *ImageHandler) GetImageFile(c *ginext.Context) {
	original, _ := strconv.ParseBool(c.Query("original"))
	h.sendFile(c, c.Param("id"), original)
}

// GetOriginalImage GET /image/:id/original
func (h *ImageHandler) GetOriginalImage(c *ginext.Context) {
	h.sendFile(c, c.Param("id"), true)
}

func (h *ImageHandler) sendFile(c *ginext.Context, id string, original bool) {
	file, filename, err := h.service.GetImageFile(c.Request.Context(), id, original)
	if err != nil {
		respondError(c, err, "failed to get image file")
		return
	}
	defer file.Close()

	if stater, ok := file.(interface{ Stat() (os.FileInfo, error) }); ok {
		if stat, err := stater.Stat(); err == nil {
			c.Header("Content-Length", strconv.FormatInt(stat.Size(), 10))
		}
	}

	c.Header("Content-Type", domain.ParseFormat(strings.TrimPrefix(filepath.Ext(filename), ".")).ContentType())
	c.Header("Content-Disposition", contentDisposition(filename))

	written, err := io.Copy(c.Writer, file)
	if err != nil {
		zlog.Logger.Error().
			Err(err).
			Str("image_id", id).
			Str("filename", filename).
			Int64("bytes_written", written).
			Msg("failed to write image to response")
		return
	}
	zlog.Logger.Info().
		Str("image_id", id).
		Str("filename", filename).
		Bool("original", original).
		Int64("bytes_written", written).
		Msg("image sent successfully")
}

// ListTransformations GET /image/:id/transformations
func (h *ImageHandler) ListTransformations(c *ginext.Context) {
	applied, err := h.service.ListTransformations(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err, "failed to list transformations")
		return
	}
	c.JSON(http.StatusOK, ginext.H{"transformations": dto.MapTransformations(applied)})
}

// Transform POST /image/:id/transform
func (h *ImageHandler) Transform(c *ginext.Context) {
	var req dto.TransformRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		zlog.Logger.Warn().Err(err).Msg("invalid transform request")
		badRequest(c, err.Error())
		return
	}

	image, err := h.service.SubmitBatch(c.Request.Context(), c.Param("id"), req.Transformations)
	if err != nil {
		respondError(c, err, "failed to submit transform batch")
		return
	}
	c.JSON(http.StatusAccepted, dto.MapImageToResponse(image, baseURL(c)))
}

// DeleteImage DELETE /image/:id
func (h *ImageHandler) DeleteImage(c *ginext.Context) {
	if err := h.service.DeleteImage(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err, "failed to delete image")
		return
	}
	c.Status(http.StatusNoContent)
}

// ListImages GET /images
func (h *ImageHandler) ListImages(c *ginext.Context) {
	limit := 10
	if l := c.Query("limit"); l != "" {
		if val, err := strconv.Atoi(l); err == nil && val > 0 {
			limit = val
		}
	}

	offset := 0
	if o := c.Query("offset"); o != "" {
		if val, err := strconv.Atoi(o); err == nil && val >= 0 {
			offset = val
		}
	}

	images, err := h.service.ListImages(c.Request.Context(), limit, offset)
	if err != nil {
		respondError(c, err, "failed to list images")
		return
	}

	c.JSON(http.StatusOK, dto.MapImagesToResponse(images, baseURL(c), limit, offset))
}

func (h *ImageHandler) isAllowedFormat(ext string) bool {
	ext = strings.TrimPrefix(ext, ".")
	for _, allowed := range h.allowedFormats {
		if strings.EqualFold(ext, allowed) {
			return true
		}
	}
	return false
}

func baseURL(c *ginext.Context) string {
	scheme := "http"
	if c.Request.TLS != nil {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s", scheme, c.Request.Host)
}

// contentDisposition quotes or RFC 2231 encodes the name as needed.
func contentDisposition(filename string) string {
	if v := mime.FormatMediaType("inline", map[string]string{"filename": filename}); v != "" {
		return v
	}
	return "inline"
}
