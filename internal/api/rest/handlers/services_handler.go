package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/Dhoini/subscription-commerce/internal/domain"
	"github.com/Dhoini/subscription-commerce/internal/service"
	"github.com/Dhoini/subscription-commerce/internal/storage"
	"github.com/Dhoini/subscription-commerce/pkg/logger"
	"github.com/gin-gonic/gin"
)

// ServicesHandler - услуги и подуслуги. Формы приходят как multipart с файлом logo.
type ServicesHandler struct {
	catalog service.CatalogService
	maxLogo int64
	log     *logger.Logger
}

func NewServicesHandler(catalog service.CatalogService, maxLogoBytes int64, log *logger.Logger) *ServicesHandler {
	if maxLogoBytes <= 0 {
		maxLogoBytes = 5 << 20
	}
	return &ServicesHandler{catalog: catalog, maxLogo: maxLogoBytes, log: log.Named("services_handler")}
}

type serviceIDRequest struct {
	ServiceID string `json:"serviceId" validate:"required"`
}

type subServiceIDRequest struct {
	ServiceID    string `json:"serviceId" validate:"required"`
	SubServiceID string `json:"subServiceId" validate:"required"`
}

// readForm разбирает поля формы и файл logo. Файл необязателен.
// Возвращаемая функция закрывает файл.
func (h *ServicesHandler) readForm(c *gin.Context) (service.ServiceInput, func(), error) {
	in := service.ServiceInput{
		Heading:     c.PostForm("heading"),
		Description: c.PostForm("description"),
	}
	if raw := c.PostForm("content"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &in.Content); err != nil {
			return in, func() {}, domain.NewValidationError("content", "must be a JSON array of {title, body}")
		}
	}

	header, err := c.FormFile("logo")
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
			return in, func() {}, nil
		}
		return in, func() {}, domain.NewValidationError("logo", "cannot be read")
	}
	if header.Size > h.maxLogo {
		return in, func() {}, domain.NewValidationError("logo", "is too large")
	}
	file, err := header.Open()
	if err != nil {
		return in, func() {}, domain.NewValidationError("logo", "cannot be read")
	}
	in.Logo = &storage.Object{
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Size:        header.Size,
		Body:        file,
	}
	return in, func() { _ = file.Close() }, nil
}

func (h *ServicesHandler) Create(c *gin.Context) {
	in, closeFile, err := h.readForm(c)
	defer closeFile()
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	svc, err := h.catalog.Create(c.Request.Context(), in)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	respond(c, http.StatusCreated, gin.H{"service": svc})
}

func (h *ServicesHandler) AddSubService(c *gin.Context) {
	in, closeFile, err := h.readForm(c)
	defer closeFile()
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	svc, err := h.catalog.AddSubService(c.Request.Context(), c.Param("serviceId"), in)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	respond(c, http.StatusCreated, gin.H{"service": svc})
}

func (h *ServicesHandler) All(c *gin.Context) {
	services, err := h.catalog.List(c.Request.Context())
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"services": services})
}

func (h *ServicesHandler) GetByID(c *gin.Context) {
	body, ok := bind[serviceIDRequest](c)
	if !ok {
		return
	}
	svc, err := h.catalog.GetByID(c.Request.Context(), body.ServiceID)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"service": svc})
}

func (h *ServicesHandler) GetSubService(c *gin.Context) {
	body, ok := bind[subServiceIDRequest](c)
	if !ok {
		return
	}
	sub, err := h.catalog.GetSubService(c.Request.Context(), body.ServiceID, body.SubServiceID)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"subService": sub})
}

// Update принимает serviceId полем формы
func (h *ServicesHandler) Update(c *gin.Context) {
	serviceID := c.PostForm("serviceId")
	if serviceID == "" {
		respondError(c, h.log, domain.NewValidationError("serviceId", "is required"))
		return
	}
	in, closeFile, err := h.readForm(c)
	defer closeFile()
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	svc, err := h.catalog.Update(c.Request.Context(), serviceID, in)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"service": svc})
}
