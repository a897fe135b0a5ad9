package handlers

import (
	"campaign-manager-system/middleware"
	"campaign-manager-system/services"

	"github.com/gofiber/fiber/v2"
)

func SetupCampaignRoutes(app *fiber.App, campaignService *services.CampaignService, characterService *services.CharacterService) {
	// 🔐 Everything here needs user context from the Gateway
	secured := app.Group("/", middleware.UserContextMiddleware())

	// Campaign CRUD
	secured.Post("/campaigns", campaignService.CreateCampaign)
	secured.Get("/campaigns", campaignService.ListMyCampaigns)
	secured.Get("/campaigns/:id", campaignService.GetCampaign)
	secured.Put("/campaigns/:id", campaignService.UpdateCampaign)
	secured.Delete("/campaigns/:id", campaignService.DeleteCampaign)

	// Membership & invites
	secured.Get("/campaigns/:id/members", campaignService.ListMembers)
	secured.Post("/campaigns/:id/invites", campaignService.CreateInvite)
	secured.Post("/invites/:code/accept", campaignService.AcceptInvite)

	// Characters
	secured.Post("/campaigns/:id/characters", characterService.CreateCharacter)
	secured.Get("/campaigns/:id/characters", characterService.ListCharacters)
	secured.Get("/campaigns/:id/characters/:characterId", characterService.GetCharacter)
	secured.Put("/campaigns/:id/characters/:characterId", characterService.UpdateCharacter)
	secured.Delete("/campaigns/:id/characters/:characterId", characterService.DeleteCharacter)
	secured.Post("/campaigns/:id/characters/:characterId/portrait", characterService.UploadPortrait)
}
