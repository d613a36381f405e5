package main

import "net/http"

// healthCheckHandler godoc
//
//	@Summary		Health check
//	@Description	Reports service status, environment, version and loaded providers.
//	@Tags			ops
//	@Produce		json
//	@Success		200	{object}	map[string]any
//	@Router			/health [get]
func (app *application) healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	data := map[string]any{
		"status":    "ok",
		"env":       app.config.Env,
		"version":   version,
		"providers": app.payments.Providers(),
	}

	if err := app.jsonResponse(w, http.StatusOK, data); err != nil {
		app.internalServerError(w, r, err)
	}
}
