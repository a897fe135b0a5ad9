package handlers

import (
	"campaign-manager-system/middleware"
	"campaign-manager-system/services"

	"github.com/gofiber/fiber/v2"
)

func SetupSceneRoutes(app *fiber.App, sceneService *services.SceneService, turnOrderService *services.TurnOrderService) {
	secured := app.Group("/", middleware.UserContextMiddleware())

	// Scene CRUD
	secured.Post("/campaigns/:id/scenes", sceneService.CreateScene)
	secured.Get("/campaigns/:id/scenes", sceneService.ListScenes)
	secured.Get("/campaigns/:id/scenes/:sceneId", sceneService.GetScene)
	secured.Put("/campaigns/:id/scenes/:sceneId", sceneService.UpdateScene)
	secured.Patch("/campaigns/:id/scenes/:sceneId/status", sceneService.SetSceneStatus)
	secured.Delete("/campaigns/:id/scenes/:sceneId", sceneService.DeleteScene)

	// Turn order: POST initializes (GM), GET reads (member), PATCH mutates
	secured.Post("/campaigns/:id/scenes/:sceneId/turn-order", turnOrderService.InitializeTurnOrder)
	secured.Get("/campaigns/:id/scenes/:sceneId/turn-order", turnOrderService.GetTurnOrder)
	secured.Patch("/campaigns/:id/scenes/:sceneId/turn-order", turnOrderService.PatchTurnOrder)

	// Player-facing advance (requester must be the current participant)
	secured.Post("/campaigns/:id/scenes/:sceneId/turn-order/advance", turnOrderService.AdvanceMyTurn)

	// Participant maintenance (GM)
	secured.Post("/campaigns/:id/scenes/:sceneId/turn-order/participants", turnOrderService.AddParticipant)
	secured.Delete("/campaigns/:id/scenes/:sceneId/turn-order/participants/:characterId", turnOrderService.RemoveParticipant)

	// World: NPCs, factions, clocks
	secured.Post("/campaigns/:id/npcs", sceneService.CreateNPC)
	secured.Get("/campaigns/:id/npcs", sceneService.ListNPCs)
	secured.Post("/campaigns/:id/factions", sceneService.CreateFaction)
	secured.Get("/campaigns/:id/factions", sceneService.ListFactions)
	secured.Post("/campaigns/:id/clocks", sceneService.CreateClock)
	secured.Get("/campaigns/:id/clocks", sceneService.ListClocks)
	secured.Post("/campaigns/:id/clocks/:clockId/tick", sceneService.TickClock)
}
