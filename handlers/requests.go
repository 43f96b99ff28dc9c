// handlers/requests.go
package handlers

import (
	"recycle-pickup-system/middleware"
	"recycle-pickup-system/models"
	"recycle-pickup-system/services"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// callerFromCtx builds the engine's typed caller from the locals the auth
// middleware attached. Role and ownership checks happen inside the engine,
// not here.
func callerFromCtx(c *fiber.Ctx) services.Caller {
	id, _ := c.Locals("user_id").(string)
	roles, _ := c.Locals("user_roles").([]string)
	return services.Caller{ID: id, Roles: roles}
}

// statusForError maps the engine's error taxonomy onto HTTP status codes.
func statusForError(err error) int {
	switch services.KindOf(err) {
	case services.ErrValidation, services.ErrInvalidTransition:
		return fiber.StatusBadRequest
	case services.ErrNotFound:
		return fiber.StatusNotFound
	case services.ErrNotAuthorized:
		return fiber.StatusForbidden
	default:
		return fiber.StatusInternalServerError
	}
}

func errorJSON(c *fiber.Ctx, err error) error {
	status := statusForError(err)
	if status == fiber.StatusInternalServerError {
		// Internal detail stays server-side; the log already has it.
		return c.Status(status).JSON(fiber.Map{"error": "internal error"})
	}
	return c.Status(status).JSON(fiber.Map{"error": err.Error()})
}

func SetupRequestRoutes(app *fiber.App, engine *services.AssignmentService, accounts *services.AccountService) {
	secured := app.Group("/", middleware.UserContextMiddleware())

	secured.Post("/requests", func(c *fiber.Ctx) error {
		var input services.CreateRequestInput
		if err := c.BodyParser(&input); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
		}
		req, err := engine.Create(callerFromCtx(c), input)
		if err != nil {
			return errorJSON(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(req)
	})

	secured.Get("/requests", func(c *fiber.Ctx) error {
		caller := callerFromCtx(c)
		if status := c.Query("status"); status != "" {
			requests, err := engine.ListByState(caller, models.LifecycleState(status))
			if err != nil {
				return errorJSON(c, err)
			}
			return c.JSON(requests)
		}
		requests, err := engine.ListOpen(caller)
		if err != nil {
			return errorJSON(c, err)
		}
		return c.JSON(requests)
	})

	secured.Get("/requests/mine", func(c *fiber.Ctx) error {
		requests, err := engine.ListMine(callerFromCtx(c))
		if err != nil {
			return errorJSON(c, err)
		}
		return c.JSON(requests)
	})

	secured.Get("/requests/:id/activity", func(c *fiber.Ctx) error {
		id := c.Params("id")
		if _, err := uuid.Parse(id); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request ID"})
		}
		records, err := engine.ActivityForRequest(callerFromCtx(c), id)
		if err != nil {
			return errorJSON(c, err)
		}
		return c.JSON(records)
	})

	// Lifecycle transitions. Each route body is identical apart from the
	// engine operation it calls.
	transition := func(op func(services.Caller, string) (*models.PickupRequest, error)) fiber.Handler {
		return func(c *fiber.Ctx) error {
			id := c.Params("id")
			if _, err := uuid.Parse(id); err != nil {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request ID"})
			}
			req, err := op(callerFromCtx(c), id)
			if err != nil {
				return errorJSON(c, err)
			}
			return c.JSON(req)
		}
	}

	secured.Put("/requests/:id/accept", transition(engine.Claim))
	secured.Put("/requests/:id/reject", transition(engine.Reject))
	secured.Put("/requests/:id/start", transition(engine.Start))
	secured.Put("/requests/:id/complete", transition(engine.Complete))

	secured.Post("/requests/:id/photo", func(c *fiber.Ctx) error {
		id := c.Params("id")
		if _, err := uuid.Parse(id); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request ID"})
		}
		photo, err := c.FormFile("photo")
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "photo is required"})
		}
		req, err := engine.AttachPhoto(callerFromCtx(c), id, photo)
		if err != nil {
			return errorJSON(c, err)
		}
		return c.JSON(req)
	})

	secured.Get("/account/balance", func(c *fiber.Ctx) error {
		acct, err := accounts.Balance(callerFromCtx(c).ID)
		if err != nil {
			return errorJSON(c, err)
		}
		return c.JSON(fiber.Map{
			"participant_id": acct.ID,
			"point_balance":  acct.PointBalance,
		})
	})
}
