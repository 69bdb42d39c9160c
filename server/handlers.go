package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/oarkflow/trusty"
)

// DecisionHandler serves the decision endpoint, the only route with real
// semantics; everything else is directory administration.
type DecisionHandler struct {
	engine *trusty.AccessControlEngine
}

func NewDecisionHandler(engine *trusty.AccessControlEngine) *DecisionHandler {
	return &DecisionHandler{engine: engine}
}

func (h *DecisionHandler) IsAllowed(w http.ResponseWriter, r *http.Request) {
	var req trusty.IsAllowedRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, trusty.ErrInvalidRequest)
		return
	}
	res, err := h.engine.IsAllowed(r.Context(), &req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// ---------------------------------------------------------------------------
// Tenants
// ---------------------------------------------------------------------------

type TenantHandler struct {
	dir *trusty.Directory
}

func NewTenantHandler(dir *trusty.Directory) *TenantHandler {
	return &TenantHandler{dir: dir}
}

func (h *TenantHandler) Add(w http.ResponseWriter, r *http.Request) {
	var t trusty.Tenant
	if err := json.NewDecoder(r.Body).Decode(&t); err != nil {
		writeError(w, trusty.ErrInvalidRequest)
		return
	}
	created, err := h.dir.AddTenant(r.Context(), &t)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *TenantHandler) Update(w http.ResponseWriter, r *http.Request) {
	var t trusty.Tenant
	if err := json.NewDecoder(r.Body).Decode(&t); err != nil {
		writeError(w, trusty.ErrInvalidRequest)
		return
	}
	t.ID = chi.URLParam(r, "id")
	updated, err := h.dir.UpdateTenant(r.Context(), &t)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (h *TenantHandler) Get(w http.ResponseWriter, r *http.Request) {
	t, err := h.dir.GetTenant(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (h *TenantHandler) List(w http.ResponseWriter, r *http.Request) {
	tenants, err := h.dir.ListTenants(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tenants)
}

func (h *TenantHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.dir.DeleteTenant(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *TenantHandler) Subscribe(w http.ResponseWriter, r *http.Request) {
	err := h.dir.SubscribeTenantToProduct(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "product"))
	if err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ---------------------------------------------------------------------------
// Users
// ---------------------------------------------------------------------------

type UserHandler struct {
	dir *trusty.Directory
}

func NewUserHandler(dir *trusty.Directory) *UserHandler {
	return &UserHandler{dir: dir}
}

func (h *UserHandler) Add(w http.ResponseWriter, r *http.Request) {
	var u trusty.User
	if err := json.NewDecoder(r.Body).Decode(&u); err != nil {
		writeError(w, trusty.ErrInvalidRequest)
		return
	}
	created, err := h.dir.AddUser(r.Context(), &u)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *UserHandler) Update(w http.ResponseWriter, r *http.Request) {
	var u trusty.User
	if err := json.NewDecoder(r.Body).Decode(&u); err != nil {
		writeError(w, trusty.ErrInvalidRequest)
		return
	}
	u.ID = chi.URLParam(r, "id")
	updated, err := h.dir.UpdateUser(r.Context(), &u)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (h *UserHandler) Get(w http.ResponseWriter, r *http.Request) {
	u, err := h.dir.GetUser(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

// Info resolves a user by external id (the identity the upstream system
// authenticates).
func (h *UserHandler) Info(w http.ResponseWriter, r *http.Request) {
	u, err := h.dir.GetUserInfo(r.Context(), chi.URLParam(r, "externalID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	q := trusty.UserQuery{
		ExternalUserID: r.URL.Query().Get("external_user_id"),
		TenantID:       r.URL.Query().Get("tenant_id"),
	}
	users, err := h.dir.ListUsers(r.Context(), q)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, users)
}

func (h *UserHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.dir.DeleteUser(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *UserHandler) Associate(w http.ResponseWriter, r *http.Request) {
	err := h.dir.AssociateUserWithTenant(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "tenant"))
	if err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// AssignRole and RevokeRole take the external user id in the path, matching
// the membership keying the resolver reads.
func (h *UserHandler) AssignRole(w http.ResponseWriter, r *http.Request) {
	err := h.dir.AssignRole(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "role"))
	if err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *UserHandler) RevokeRole(w http.ResponseWriter, r *http.Request) {
	err := h.dir.RevokeRole(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "role"))
	if err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ---------------------------------------------------------------------------
// Roles
// ---------------------------------------------------------------------------

type RoleHandler struct {
	dir *trusty.Directory
}

func NewRoleHandler(dir *trusty.Directory) *RoleHandler {
	return &RoleHandler{dir: dir}
}

func (h *RoleHandler) Add(w http.ResponseWriter, r *http.Request) {
	var role trusty.Role
	if err := json.NewDecoder(r.Body).Decode(&role); err != nil {
		writeError(w, trusty.ErrInvalidRequest)
		return
	}
	created, err := h.dir.AddRole(r.Context(), &role)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *RoleHandler) Update(w http.ResponseWriter, r *http.Request) {
	var role trusty.Role
	if err := json.NewDecoder(r.Body).Decode(&role); err != nil {
		writeError(w, trusty.ErrInvalidRequest)
		return
	}
	role.ID = chi.URLParam(r, "id")
	updated, err := h.dir.UpdateRole(r.Context(), &role)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (h *RoleHandler) Get(w http.ResponseWriter, r *http.Request) {
	role, err := h.dir.GetRole(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, role)
}

func (h *RoleHandler) List(w http.ResponseWriter, r *http.Request) {
	roles, err := h.dir.ListRoles(r.Context(), r.URL.Query().Get("tenant_id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, roles)
}

func (h *RoleHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.dir.DeleteRole(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ---------------------------------------------------------------------------
// Responses
// ---------------------------------------------------------------------------

type errorBody struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps the error taxonomy onto HTTP statuses. A deny decision is
// never an error status; only undetermined outcomes reach here.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, trusty.ErrInvalidRequest) || trusty.IsValidation(err):
		status = http.StatusBadRequest
	case errors.Is(err, trusty.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, trusty.ErrStoreUnavailable):
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, errorBody{Error: err.Error()})
}
