package controllers

import (
	"time"

	"invoicepay-backend/middlewares"
	"invoicepay-backend/repositories"

	"github.com/gofiber/fiber/v2"
)

const tokenTTL = 24 * time.Hour

// AuthController issues tokens for locally managed admins. Tokens use the same
// HS256 secret and claims as Supabase, so both kinds pass the same middleware.
type AuthController struct {
	admins repositories.AdminRepository
	secret []byte
}

func NewAuthController(admins repositories.AdminRepository, secret []byte) *AuthController {
	return &AuthController{admins: admins, secret: secret}
}

func (ac *AuthController) Login(c *fiber.Ctx) error {
	var dto loginDTO
	if err := middlewares.BindAndValidate(c, &dto); err != nil {
		return err
	}

	admin, err := ac.admins.FindByEmail(c.UserContext(), dto.Email)
	if err != nil {
		return err
	}
	if admin == nil || admin.ComparePassword(dto.Password) != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"message": "invalid credentials",
		})
	}

	token, err := middlewares.GenerateJWT(ac.secret, admin.Id, admin.Email, admin.Role, tokenTTL)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"token":     token,
		"expiresIn": int(tokenTTL.Seconds()),
		"user": fiber.Map{
			"id":    admin.Id,
			"name":  admin.Name,
			"email": admin.Email,
			"role":  admin.Role,
		},
	})
}
