package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"testseries/internal/api/middleware"
	"testseries/internal/common"
	"testseries/internal/domain/model"
)

// Guards are the authentication middlewares handlers attach to routes.
type Guards struct {
	Required func(http.Handler) http.Handler
	Optional func(http.Handler) http.Handler
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		common.RespondWithError(w, http.StatusBadRequest, "Invalid request payload: "+err.Error())
		return false
	}
	return true
}

func queryInt(r *http.Request, name string) int {
	n, _ := strconv.Atoi(r.URL.Query().Get(name))
	return n
}

// currentUser is only used behind Guards.Required.
func currentUser(w http.ResponseWriter, r *http.Request) (*model.User, bool) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		common.RespondWithError(w, http.StatusUnauthorized, "Authorization token required")
	}
	return user, ok
}

// viewer returns the caller or nil for anonymous requests.
func viewer(r *http.Request) *model.User {
	user, _ := middleware.GetUser(r.Context())
	return user
}
