// Package user contains the HTTP handlers for the /users resource.
//
// Each exported function is a factory: it receives the storage dependency
// once at route registration and returns the http.HandlerFunc that serves
// every request.
//
//	router.HandleFunc("POST /users", user.New(storage))
package user

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"

	"github.com/aanand-mishra/users-api/internal/storage"
	"github.com/aanand-mishra/users-api/internal/types"
	"github.com/aanand-mishra/users-api/internal/utils/response"
)

var validate = validator.New()

// Register mounts all /users routes on mux.
//
//	POST   /users        create a user
//	GET    /users        list users
//	GET    /users/{id}   get one user
//	PUT    /users/{id}   partially update a user
//	DELETE /users/{id}   delete a user
func Register(mux *http.ServeMux, s storage.Storage) {
	mux.HandleFunc("POST /users", New(s))
	mux.HandleFunc("GET /users", GetList(s))
	mux.HandleFunc("GET /users/{id}", GetByID(s))
	mux.HandleFunc("PUT /users/{id}", Update(s))
	mux.HandleFunc("DELETE /users/{id}", Delete(s))
}

// ─────────────────────────────────────────────────────────────────────────────
// New handles POST /users
//
// Request body:
//
//	{ "name": "X", "email": "x@y.com" }
//
// Success response (201 Created), the stored user:
//
//	{ "id": 4, "name": "X", "email": "x@y.com" }
//
// 400 on an empty body, malformed JSON, or failed validation.
// ─────────────────────────────────────────────────────────────────────────────
func New(storage storage.Storage) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		slog.Info("creating a user")

		var user types.User
		err := json.NewDecoder(r.Body).Decode(&user)
		if errors.Is(err, io.EOF) {
			response.WriteJSON(w, http.StatusBadRequest,
				response.GeneralError(errors.New("request body is empty")))
			return
		}
		if err != nil {
			response.WriteJSON(w, http.StatusBadRequest, response.GeneralError(err))
			return
		}

		if err := validate.Struct(user); err != nil {
			writeValidationError(w, err)
			return
		}

		created, err := storage.CreateUser(user.Name, user.Email)
		if err != nil {
			slog.Error("error creating user", slog.String("error", err.Error()))
			response.Error(w, err)
			return
		}

		slog.Info("user created", slog.Int64("id", created.ID))
		response.WriteJSON(w, http.StatusCreated, created)
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// GetByID handles GET /users/{id}
//
// 400 if id is not an integer, 404 if no user has that id.
// ─────────────────────────────────────────────────────────────────────────────
func GetByID(storage storage.Storage) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		slog.Info("getting a user", slog.String("id", id))

		intID, ok := parseID(w, id)
		if !ok {
			return
		}

		user, err := storage.GetUserByID(intID)
		if err != nil {
			slog.Error("error getting user",
				slog.String("id", id),
				slog.String("error", err.Error()))
			response.Error(w, err)
			return
		}

		response.WriteJSON(w, http.StatusOK, user)
	}
}

// GetList handles GET /users. The body is always a JSON array, [] when empty.
func GetList(storage storage.Storage) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		slog.Info("getting all users")

		users, err := storage.GetUsers()
		if err != nil {
			slog.Error("error getting users", slog.String("error", err.Error()))
			response.Error(w, err)
			return
		}

		response.WriteJSON(w, http.StatusOK, users)
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Update handles PUT /users/{id}
// Overwrites only the fields present in the body; the rest keep their values.
//
//	{ "name": "Updated" }
//
// An empty body is an empty patch. 400 on malformed JSON or an invalid
// field, 404 if no user has that id.
// ─────────────────────────────────────────────────────────────────────────────
func Update(storage storage.Storage) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		slog.Info("updating a user", slog.String("id", id))

		intID, ok := parseID(w, id)
		if !ok {
			return
		}

		var patch types.UserPatch
		err := json.NewDecoder(r.Body).Decode(&patch)
		if err != nil && !errors.Is(err, io.EOF) {
			response.WriteJSON(w, http.StatusBadRequest, response.GeneralError(err))
			return
		}

		if err := validate.Struct(patch); err != nil {
			writeValidationError(w, err)
			return
		}

		updated, err := storage.UpdateUserByID(intID, patch)
		if err != nil {
			slog.Error("error updating user",
				slog.String("id", id),
				slog.String("error", err.Error()))
			response.Error(w, err)
			return
		}

		slog.Info("user updated", slog.String("id", id))
		response.WriteJSON(w, http.StatusOK, updated)
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Delete handles DELETE /users/{id}
//
// Success response (200 OK):
//
//	{ "status": "ok", "message": "user deleted" }
// ─────────────────────────────────────────────────────────────────────────────
func Delete(storage storage.Storage) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		slog.Info("deleting a user", slog.String("id", id))

		intID, ok := parseID(w, id)
		if !ok {
			return
		}

		if err := storage.DeleteUserByID(intID); err != nil {
			slog.Error("error deleting user",
				slog.String("id", id),
				slog.String("error", err.Error()))
			response.Error(w, err)
			return
		}

		slog.Info("user deleted", slog.String("id", id))
		response.WriteJSON(w, http.StatusOK, response.OK("user deleted"))
	}
}

// parseID writes a 400 and returns false when id is not a base-10 integer.
func parseID(w http.ResponseWriter, id string) (int64, bool) {
	intID, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		response.WriteJSON(w, http.StatusBadRequest,
			response.GeneralError(errors.New("invalid id: must be an integer")))
		return 0, false
	}
	return intID, true
}

func writeValidationError(w http.ResponseWriter, err error) {
	var validateErrs validator.ValidationErrors
	if errors.As(err, &validateErrs) {
		response.WriteJSON(w, http.StatusBadRequest, response.ValidationError(validateErrs))
		return
	}
	response.WriteJSON(w, http.StatusBadRequest, response.GeneralError(err))
}
