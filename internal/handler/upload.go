package handler

import (
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/allureimpex/allure-impex-api/internal/middleware"
	"github.com/allureimpex/allure-impex-api/internal/service"
)

// UploadHandler proxies files to the image host. The service applies its
// own per-call timeout.
type UploadHandler struct {
	uploads *service.UploadService
}

func NewUploadHandler(s *service.UploadService) *UploadHandler {
	return &UploadHandler{uploads: s}
}

// Upload stores the multipart field "file".
func (h *UploadHandler) Upload(c echo.Context) error {
	fh, err := c.FormFile("file")
	if err != nil {
		return service.BadRequest("No file uploaded")
	}
	f, err := fh.Open()
	if err != nil {
		return service.BadRequest("Cannot read uploaded file")
	}
	defer f.Close()

	a, err := h.uploads.Upload(c.Request().Context(), middleware.Identity(c), service.UploadFile{
		Name: fh.Filename,
		Size: fh.Size,
		Body: f,
	})
	if err != nil {
		return err
	}
	return ok(c, http.StatusOK, "File uploaded successfully", a)
}

// UploadMany stores every file of the multipart field "files".
func (h *UploadHandler) UploadMany(c echo.Context) error {
	form, err := c.MultipartForm()
	if err != nil {
		return service.BadRequest("No files uploaded")
	}
	headers := form.File["files"]
	if len(headers) > service.MaxFilesPerUpload {
		return service.BadRequest("Too many files (max 10)")
	}

	files := make([]service.UploadFile, 0, len(headers))
	opened := make([]multipart.File, 0, len(headers))
	defer func() {
		for _, f := range opened {
			_ = f.Close()
		}
	}()
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			return service.BadRequest("Cannot read uploaded file")
		}
		opened = append(opened, f)
		files = append(files, service.UploadFile{Name: fh.Filename, Size: fh.Size, Body: f})
	}

	assets, err := h.uploads.UploadMany(c.Request().Context(), middleware.Identity(c), files)
	if err != nil {
		return err
	}
	n := len(assets)
	return c.JSON(http.StatusOK, envelope{
		Success: true,
		Message: plural(n, "file") + " uploaded successfully",
		Count:   &n,
		Data:    assets,
	})
}

// Delete releases the object named by the rest of the path; public ids
// contain slashes.
func (h *UploadHandler) Delete(c echo.Context) error {
	id, err := url.PathUnescape(c.Param("*"))
	if err != nil {
		return service.BadRequest("Invalid public id")
	}
	if err := h.uploads.Delete(c.Request().Context(), middleware.Identity(c), id); err != nil {
		return err
	}
	return ok(c, http.StatusOK, "File deleted successfully", nil)
}

func plural(n int, word string) string {
	s := strconv.Itoa(n) + " " + word
	if n != 1 {
		s += "s"
	}
	return s
}
