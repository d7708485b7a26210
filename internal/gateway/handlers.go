package gateway

import (
	"errors"
	"io"
	"net"
	"net/http"
	"strings"

	"github.com/NeKzor/b2"
	"github.com/NeKzor/b2/internal/app"
	"github.com/NeKzor/b2/internal/config"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// Handler contains the HTTP handlers for the file gateway.
type Handler struct {
	container *app.Container
	config    *config.Config
	b2Client  b2.ClientAPI
	logger    *logrus.Logger
}

// NewHandler creates a new gateway handler.
func NewHandler(container *app.Container) *Handler {
	return &Handler{
		container: container,
		config:    container.Config,
		b2Client:  container.B2,
		logger:    container.Logger,
	}
}

// uploadResponse is the body returned after a successful upload.
type uploadResponse struct {
	File        *b2.UploadedFile `json:"file"`
	DownloadURL string           `json:"downloadUrl"`
}

// UploadFile stores the request body in the configured bucket under the
// path following /v1/files. The Content-Type, Content-Disposition and
// X-Bz-Content-Sha1 request headers carry through to the upload.
func (h *Handler) UploadFile(c *gin.Context) {
	name := strings.TrimPrefix(c.Param("name"), "/")
	if name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file name is required"})
		return
	}

	contents, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "reading request body: " + err.Error()})
		return
	}

	opts := &b2.UploadFileOptions{
		ContentType:        c.GetHeader("Content-Type"),
		ContentSha1:        c.GetHeader("X-Bz-Content-Sha1"),
		ContentDisposition: c.GetHeader("Content-Disposition"),
	}

	file, err := h.b2Client.UploadFile(h.config.B2.BucketID, name, contents, opts)
	if err != nil {
		h.logger.Errorf("Upload of %s failed: %v", name, err)
		h.writeError(c, err)
		return
	}

	downloadURL, err := h.b2Client.DownloadURL(name)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, uploadResponse{File: file, DownloadURL: downloadURL})
}

// DownloadRedirect sends the caller to the public by-name download URL
// for the path following /v1/files.
func (h *Handler) DownloadRedirect(c *gin.Context) {
	name := strings.TrimPrefix(c.Param("name"), "/")
	if name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file name is required"})
		return
	}

	downloadURL, err := h.b2Client.DownloadURL(name)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.Redirect(http.StatusFound, downloadURL)
}

// Healthz reports liveness and, once authorized, the account the gateway
// uploads into.
func (h *Handler) Healthz(c *gin.Context) {
	resp := gin.H{"status": "ok"}
	if auth := h.b2Client.Authorization(); auth != nil {
		resp["accountId"] = auth.AccountID
	}
	c.JSON(http.StatusOK, resp)
}

// writeError converts a b2 client error into a gateway response. API
// errors keep their upstream status; unreachable-network failures read
// as a bad gateway.
func (h *Handler) writeError(c *gin.Context, err error) {
	var apiErr *b2.APIError
	if errors.As(err, &apiErr) {
		c.JSON(apiErr.Status, gin.H{"error": apiErr.Message, "code": apiErr.Code})
		return
	}

	var validationErr *b2.ValidationError
	if errors.As(err, &validationErr) {
		c.JSON(http.StatusBadRequest, gin.H{"error": validationErr.Error()})
		return
	}

	var authErr *b2.AuthorizationError
	if errors.As(err, &authErr) {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": authErr.Error()})
		return
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		c.JSON(http.StatusBadGateway, gin.H{"error": "b2 unreachable"})
		return
	}

	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
}
