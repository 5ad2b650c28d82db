package controllers

import (
	"errors"

	"invoicepay-backend/apperrors"
	"invoicepay-backend/middlewares"
	"invoicepay-backend/models"
	"invoicepay-backend/payments"
	"invoicepay-backend/services"

	"github.com/gofiber/fiber/v2"
)

const stripeSignatureHeader = "Stripe-Signature"

var (
	errRawBodyMissing       = errors.New("raw body middleware not registered for webhook route")
	errWebhookSecretMissing = errors.New("STRIPE_WEBHOOK_SECRET not configured")
)

type PaymentController struct {
	invoices            *services.InvoiceService
	reconciler          *services.Reconciler
	stripeWebhookSecret string
}

func NewPaymentController(invoices *services.InvoiceService, reconciler *services.Reconciler, stripeWebhookSecret string) *PaymentController {
	return &PaymentController{
		invoices:            invoices,
		reconciler:          reconciler,
		stripeWebhookSecret: stripeWebhookSecret,
	}
}

// invoiceFor resolves the capability presented in a public payment request.
func (pc *PaymentController) invoiceFor(c *fiber.Ctx, capability capabilityDTO) (*models.Invoice, error) {
	return pc.invoices.FindByNumberAndToken(c.UserContext(), capability.InvoiceNumber, capability.AccessToken)
}

func (pc *PaymentController) CreateStripeIntent(c *fiber.Ctx) error {
	var dto capabilityDTO
	if err := middlewares.BindAndValidate(c, &dto); err != nil {
		return err
	}
	invoice, err := pc.invoiceFor(c, dto)
	if err != nil {
		return err
	}
	intent, err := pc.reconciler.CreateIntent(c.UserContext(), invoice.ID, models.ProviderStripe)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"clientSecret":    intent.ClientSecret,
		"paymentIntentId": intent.ProviderIntentID,
		"paymentId":       intent.PaymentID,
		"amount":          intent.Amount,
		"currency":        intent.Currency,
	})
}

func (pc *PaymentController) ConfirmStripePayment(c *fiber.Ctx) error {
	var dto confirmStripeDTO
	if err := middlewares.BindAndValidate(c, &dto); err != nil {
		return err
	}
	invoice, err := pc.invoiceFor(c, dto.capabilityDTO)
	if err != nil {
		return err
	}
	res, err := pc.reconciler.Confirm(c.UserContext(), invoice.ID, models.ProviderStripe, dto.PaymentIntentID)
	if err != nil {
		return err
	}
	return c.JSON(res)
}

// StripeWebhook needs the RawBody middleware on its route: the signature is
// computed over the exact bytes Stripe sent.
func (pc *PaymentController) StripeWebhook(c *fiber.Ctx) error {
	const op = "PaymentController.StripeWebhook"
	payload, ok := middlewares.RawBodyFrom(c)
	if !ok {
		return apperrors.Internal(op, errRawBodyMissing)
	}
	if pc.stripeWebhookSecret == "" {
		return apperrors.Internal(op, errWebhookSecretMissing)
	}

	event, err := payments.ParseStripeWebhook(payload, c.Get(stripeSignatureHeader), pc.stripeWebhookSecret)
	if err != nil {
		log := middlewares.RequestLog(c)
		log.Warn().Err(err).Msg("stripe webhook rejected")
		return err
	}
	if err := pc.reconciler.HandleStripeEvent(c.UserContext(), event); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"received": true})
}

func (pc *PaymentController) CreatePayPalOrder(c *fiber.Ctx) error {
	var dto capabilityDTO
	if err := middlewares.BindAndValidate(c, &dto); err != nil {
		return err
	}
	invoice, err := pc.invoiceFor(c, dto)
	if err != nil {
		return err
	}
	order, err := pc.reconciler.CreateIntent(c.UserContext(), invoice.ID, models.ProviderPayPal)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"orderId":     order.ProviderIntentID,
		"approvalUrl": order.ApprovalURL,
		"paymentId":   order.PaymentID,
		"amount":      order.Amount,
		"currency":    order.Currency,
	})
}

func (pc *PaymentController) CapturePayPalPayment(c *fiber.Ctx) error {
	var dto capturePayPalDTO
	if err := middlewares.BindAndValidate(c, &dto); err != nil {
		return err
	}
	invoice, err := pc.invoiceFor(c, dto.capabilityDTO)
	if err != nil {
		return err
	}
	res, err := pc.reconciler.Confirm(c.UserContext(), invoice.ID, models.ProviderPayPal, dto.OrderID)
	if err != nil {
		return err
	}
	return c.JSON(res)
}

func (pc *PaymentController) GetPaymentStatus(c *fiber.Ctx) error {
	summary, err := pc.reconciler.LatestStatus(c.UserContext(), c.Params("invoiceId"))
	if err != nil {
		return err
	}
	return c.JSON(summary)
}
