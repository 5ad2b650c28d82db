package controllers

import (
	"invoicepay-backend/middlewares"
	"invoicepay-backend/models"
	"invoicepay-backend/repositories"
	"invoicepay-backend/services"
	"invoicepay-backend/utils"

	"github.com/gofiber/fiber/v2"
)

const maxPageSize = 100

// InvoiceController serves the admin invoice routes. Every handler runs
// behind IsAuthenticatedHeader, so the caller's user id is always present.
type InvoiceController struct {
	invoices *services.InvoiceService
}

func NewInvoiceController(invoices *services.InvoiceService) *InvoiceController {
	return &InvoiceController{invoices: invoices}
}

func (ic *InvoiceController) CreateInvoice(c *fiber.Ctx) error {
	var dto createInvoiceDTO
	if err := middlewares.BindAndValidate(c, &dto); err != nil {
		return err
	}
	utils.NormalizeDTO(&dto)

	due, err := parseDueDate(dto.DueDate)
	if err != nil {
		return err
	}

	invoice, err := ic.invoices.Create(c.UserContext(), middlewares.UserID(c), services.CreateInvoiceInput{
		ClientID:    dto.ClientID,
		ClientName:  dto.ClientName,
		ClientEmail: dto.ClientEmail,
		Items:       toLineItems(dto.Items),
		DueDate:     due,
		Notes:       dto.Notes,
		Status:      models.InvoiceStatus(dto.Status),
	})
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(invoice)
}

func (ic *InvoiceController) GetInvoices(c *fiber.Ctx) error {
	limit := utils.ParseIntDefault(c.Query("limit"), 50)
	if limit == 0 || limit > maxPageSize {
		limit = maxPageSize
	}
	invoices, err := ic.invoices.List(c.UserContext(), middlewares.UserID(c), repositories.ListFilter{
		Status: models.InvoiceStatus(c.Query("status")),
		Limit:  limit,
		Offset: utils.ParseIntDefault(c.Query("offset"), 0),
	})
	if err != nil {
		return err
	}
	return c.JSON(invoices)
}

func (ic *InvoiceController) GetInvoice(c *fiber.Ctx) error {
	invoice, err := ic.invoices.Get(c.UserContext(), middlewares.UserID(c), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(invoice)
}

func (ic *InvoiceController) UpdateInvoice(c *fiber.Ctx) error {
	var dto updateInvoiceDTO
	if err := middlewares.BindAndValidate(c, &dto); err != nil {
		return err
	}
	utils.NormalizeDTO(&dto)

	in := services.UpdateInvoiceInput{
		ClientName:  dto.ClientName,
		ClientEmail: dto.ClientEmail,
		Items:       toLineItems(dto.Items),
		Notes:       dto.Notes,
	}
	if dto.DueDate != nil {
		due, err := parseDueDate(*dto.DueDate)
		if err != nil {
			return err
		}
		in.DueDate = &due
	}
	if dto.Status != nil {
		status := models.InvoiceStatus(*dto.Status)
		in.Status = &status
	}

	invoice, err := ic.invoices.Update(c.UserContext(), middlewares.UserID(c), c.Params("id"), in)
	if err != nil {
		return err
	}
	return c.JSON(invoice)
}

func (ic *InvoiceController) MarkInvoicePaid(c *fiber.Ctx) error {
	var dto markPaidDTO
	if len(c.Body()) > 0 {
		if err := middlewares.BindAndValidate(c, &dto); err != nil {
			return err
		}
	}
	invoice, err := ic.invoices.MarkPaid(c.UserContext(), middlewares.UserID(c), c.Params("id"), dto.PaymentMethod)
	if err != nil {
		return err
	}
	return c.JSON(invoice)
}

func (ic *InvoiceController) DeleteInvoice(c *fiber.Ctx) error {
	if err := ic.invoices.Delete(c.UserContext(), middlewares.UserID(c), c.Params("id")); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"message": "invoice deleted", "id": c.Params("id")})
}
