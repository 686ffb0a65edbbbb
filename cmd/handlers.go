// cmd/handlers.go
//
// HTTP surface of the catalog module. Every media operation answers before
// the work is done: the handlers stage bytes, enqueue jobs and return job
// ids the caller can poll on /api/v1/jobs/:id.
package main

import (
	"io"
	"mime/multipart"
	"strconv"

	"github.com/Pikiko14/motowork-products/pkg/catalog"
	"github.com/Pikiko14/motowork-products/pkg/catalog/catalogjobs"
	"github.com/Pikiko14/motowork-products/pkg/catalog/catalogsrv"
	"github.com/Pikiko14/motowork-products/pkg/errx"
	"github.com/gofiber/fiber/v2"
)

// ProductHandlers exposes the catalog write side over HTTP.
type ProductHandlers struct {
	container *Container
}

func NewProductHandlers(container *Container) *ProductHandlers {
	return &ProductHandlers{container: container}
}

func (h *ProductHandlers) RegisterRoutes(app *fiber.App) {
	api := app.Group("/api/v1")

	api.Post("/products", h.createProduct)
	api.Put("/products/:id", h.updateProduct)
	api.Post("/products/contapyme", h.importFromContapyme)
	api.Post("/products/:id/files", h.attachFiles)
	api.Delete("/products/:id/images/:imageId", h.removeImage)
	api.Put("/products/:id/images/:imageId/default", h.setDefaultImage)
	api.Get("/jobs/:id", h.jobStatus)
}

// createProduct persists the product synchronously; an attached icon is
// staged and uploaded in the background.
func (h *ProductHandlers) createProduct(c *fiber.Ctx) error {
	product := &catalog.Product{
		Name:        c.FormValue("name"),
		Model:       c.FormValue("model"),
		Brand:       c.FormValue("brand"),
		Category:    c.FormValue("category"),
		SKU:         c.FormValue("sku"),
		State:       c.FormValue("state"),
		Type:        c.FormValue("type"),
		Description: c.FormValue("description"),
		Active:      c.FormValue("active", "true") == "true",
	}
	if product.Name == "" {
		return errx.Validation("Product name is required")
	}
	if v := c.FormValue("price"); v != "" {
		price, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return errx.Validation("Invalid price")
		}
		product.Price = price
	}
	if v := c.FormValue("discount"); v != "" {
		discount, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return errx.Validation("Invalid discount")
		}
		product.Discount = discount
	}

	created, err := h.container.Products.Create(c.Context(), product)
	if err != nil {
		return err
	}

	response := fiber.Map{"product": created}

	if header, err := c.FormFile("icon"); err == nil {
		icon, err := readUpload(header)
		if err != nil {
			return err
		}
		jobID, err := h.container.Service.AttachIconOnCreate(c.Context(), created.ID, icon)
		if err != nil {
			return err
		}
		response["icon_job_id"] = jobID
	}

	return c.Status(fiber.StatusCreated).JSON(response)
}

// updateProduct patches the plain fields of a product. Absent fields are
// left untouched; media collections are only ever changed through the
// file and image endpoints.
func (h *ProductHandlers) updateProduct(c *fiber.Ctx) error {
	var body struct {
		Name        *string  `json:"name"`
		Model       *string  `json:"model"`
		Brand       *string  `json:"brand"`
		Category    *string  `json:"category"`
		State       *string  `json:"state"`
		Type        *string  `json:"type"`
		Description *string  `json:"description"`
		Price       *float64 `json:"price"`
		Discount    *float64 `json:"discount"`
		Active      *bool    `json:"active"`
	}
	if err := c.BodyParser(&body); err != nil {
		return errx.Validation("Invalid request body")
	}

	patch := catalog.ScalarPatch{
		Name:        body.Name,
		Model:       body.Model,
		Brand:       body.Brand,
		Category:    body.Category,
		State:       body.State,
		Type:        body.Type,
		Description: body.Description,
		Price:       body.Price,
		Discount:    body.Discount,
		Active:      body.Active,
	}
	if err := h.container.Products.UpdateScalars(c.Context(), c.Params("id"), patch); err != nil {
		return err
	}

	product, err := h.container.Products.FindByID(c.Context(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"product": product})
}

// attachFiles accepts banner_mobile, banner_desktop, images_mobile and
// images_desktop multipart fields and enqueues their upload jobs.
func (h *ProductHandlers) attachFiles(c *fiber.Ctx) error {
	form, err := c.MultipartForm()
	if err != nil {
		return errx.Validation("Expected a multipart form")
	}

	var req catalogsrv.AttachRequest

	if file, err := firstUpload(form, "banner_mobile"); err != nil {
		return err
	} else if file != nil {
		req.BannerMobile = file
	}
	if file, err := firstUpload(form, "banner_desktop"); err != nil {
		return err
	} else if file != nil {
		req.BannerDesktop = file
	}

	if req.ImagesMobile, err = allUploads(form, "images_mobile"); err != nil {
		return err
	}
	if req.ImagesDesktop, err = allUploads(form, "images_desktop"); err != nil {
		return err
	}

	jobIDs, err := h.container.Service.AttachProductFiles(c.Context(), c.Params("id"), req)
	if err != nil {
		return err
	}
	if len(jobIDs) == 0 {
		return errx.Validation("No files to attach")
	}

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"job_ids": jobIDs})
}

// removeImage takes the image off the document and returns the id of the
// background job deleting the remote object.
func (h *ProductHandlers) removeImage(c *fiber.Ctx) error {
	role := catalog.MediaRole(c.Query("role", string(catalog.RoleImage)))

	jobID, err := h.container.Service.RemoveProductImage(c.Context(), c.Params("id"), role, c.Params("imageId"))
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"job_id": jobID})
}

func (h *ProductHandlers) setDefaultImage(c *fiber.Ctx) error {
	var body struct {
		IsDefault *bool `json:"is_default"`
	}
	if err := c.BodyParser(&body); err != nil && len(c.Body()) > 0 {
		return errx.Validation("Invalid request body")
	}
	isDefault := true
	if body.IsDefault != nil {
		isDefault = *body.IsDefault
	}

	if err := h.container.Service.SetDefaultImage(c.Context(), c.Params("id"), c.Params("imageId"), isDefault); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"status": "ok"})
}

// importFromContapyme enqueues one sync job per seed on the serialized
// catalog sync queue.
func (h *ProductHandlers) importFromContapyme(c *fiber.Ctx) error {
	var seeds []catalogjobs.ProductSeed
	if err := c.BodyParser(&seeds); err != nil {
		return errx.Validation("Expected a JSON array of products")
	}
	if len(seeds) == 0 {
		return errx.Validation("No products to import")
	}

	jobIDs, err := h.container.Service.ImportFromContapyme(c.Context(), seeds)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"job_ids": jobIDs})
}

// jobStatus reports the broker's record of a job. The queue defaults to the
// media queue; sync jobs pass ?queue=products_contapyme.
func (h *ProductHandlers) jobStatus(c *fiber.Ctx) error {
	queue := c.Query("queue", h.container.Config.Jobs.MediaQueue)

	info, err := h.container.Service.JobStatus(c.Context(), queue, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(info)
}

// ---------------------------------------------------------------------------
// Multipart helpers
// ---------------------------------------------------------------------------

func readUpload(header *multipart.FileHeader) (catalogsrv.StagedFile, error) {
	f, err := header.Open()
	if err != nil {
		return catalogsrv.StagedFile{}, errx.Wrap(err, "Could not open uploaded file", errx.TypeValidation)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return catalogsrv.StagedFile{}, errx.Wrap(err, "Could not read uploaded file", errx.TypeValidation)
	}
	return catalogsrv.StagedFile{Name: header.Filename, Data: data}, nil
}

func firstUpload(form *multipart.Form, field string) (*catalogsrv.StagedFile, error) {
	headers := form.File[field]
	if len(headers) == 0 {
		return nil, nil
	}
	file, err := readUpload(headers[0])
	if err != nil {
		return nil, err
	}
	return &file, nil
}

func allUploads(form *multipart.Form, field string) ([]catalogsrv.StagedFile, error) {
	headers := form.File[field]
	files := make([]catalogsrv.StagedFile, 0, len(headers))
	for _, header := range headers {
		file, err := readUpload(header)
		if err != nil {
			return nil, err
		}
		files = append(files, file)
	}
	return files, nil
}
