package router

import "github.com/gofiber/fiber/v2"

// Router installs a set of routes into the app.
type Router interface {
	InstallRouter(app *fiber.App)
}
