package server

import (
	"net/http"

	"github.com/modvault/modvault/internal/ratelimit"
)

// Route binds a marketplace endpoint to the policy that guards it.
type Route struct {
	Name    string
	Method  string
	Pattern string
	Policy  string
}

// Routes is the marketplace route table. Business handlers are attached by
// name with Server.Mount; until then a route answers 503.
var Routes = []Route{
	{Name: "auth.register", Method: http.MethodPost, Pattern: "/api/v1/auth/register", Policy: ratelimit.AuthRegister},
	{Name: "auth.login", Method: http.MethodPost, Pattern: "/api/v1/auth/login", Policy: ratelimit.AuthLogin},
	{Name: "auth.password_reset", Method: http.MethodPost, Pattern: "/api/v1/auth/password-reset", Policy: ratelimit.AuthPasswordReset},

	{Name: "mods.list", Method: http.MethodGet, Pattern: "/api/v1/mods", Policy: ratelimit.APIRead},
	{Name: "mods.get", Method: http.MethodGet, Pattern: "/api/v1/mods/{id}", Policy: ratelimit.APIRead},
	{Name: "mods.create", Method: http.MethodPost, Pattern: "/api/v1/mods", Policy: ratelimit.UploadMod},
	{Name: "mods.update", Method: http.MethodPatch, Pattern: "/api/v1/mods/{id}", Policy: ratelimit.APIWrite},
	{Name: "mods.delete", Method: http.MethodDelete, Pattern: "/api/v1/mods/{id}", Policy: ratelimit.APIWrite},
	{Name: "mods.media", Method: http.MethodPost, Pattern: "/api/v1/mods/{id}/media", Policy: ratelimit.UploadMedia},

	{Name: "categories.list", Method: http.MethodGet, Pattern: "/api/v1/categories", Policy: ratelimit.APIRead},
	{Name: "categories.create", Method: http.MethodPost, Pattern: "/api/v1/categories", Policy: ratelimit.APIWrite},

	{Name: "reports.create", Method: http.MethodPost, Pattern: "/api/v1/reports", Policy: ratelimit.Reports},
	{Name: "reports.list", Method: http.MethodGet, Pattern: "/api/v1/reports", Policy: ratelimit.APIRead},
}
