package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"
)

func rbacTestApp(role string) *fiber.App {
	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		c.Locals("user_role", role)
		return c.Next()
	})
	app.Use(RequireRole(RoleTeacher, RoleAdmin))
	app.Get("/exams", func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})
	return app
}

func TestRequireRoleAllowsAuthorizedRoles(t *testing.T) {
	for _, role := range []string{RoleTeacher, RoleAdmin, "Teacher "} {
		app := rbacTestApp(role)

		req := httptest.NewRequest(http.MethodGet, "/exams", nil)
		resp, err := app.Test(req)
		require.NoError(t, err)
		require.Equal(t, fiber.StatusOK, resp.StatusCode)
	}
}

func TestRequireRoleRejectsUnauthorizedRoles(t *testing.T) {
	for _, role := range []string{RoleStudent, "", "auditor"} {
		app := rbacTestApp(role)

		req := httptest.NewRequest(http.MethodGet, "/exams", nil)
		resp, err := app.Test(req)
		require.NoError(t, err)
		require.Equal(t, fiber.StatusForbidden, resp.StatusCode)
	}
}
