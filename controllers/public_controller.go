package controllers

import (
	"invoicepay-backend/services"

	"github.com/gofiber/fiber/v2"
)

// PublicController serves the invoice page behind the emailed link.
type PublicController struct {
	invoices *services.InvoiceService
}

func NewPublicController(invoices *services.InvoiceService) *PublicController {
	return &PublicController{invoices: invoices}
}

func (pc *PublicController) GetPublicInvoice(c *fiber.Ctx) error {
	invoice, err := pc.invoices.FindByNumberAndToken(c.UserContext(), c.Params("invoiceNumber"), c.Params("accessToken"))
	if err != nil {
		return err
	}
	return c.JSON(invoice.Public())
}
