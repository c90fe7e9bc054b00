package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"github.com/tendant/media-registry/pkg/registry"
)

const maxRequestBodyBytes = 1 << 20

// ContentRequest is the request body for registering or modifying content
type ContentRequest struct {
	Title       string   `json:"title"`
	SizeBytes   uint64   `json:"size_bytes"`
	Description string   `json:"description"`
	Tags        []string `json:"tags"`
}

// TransferRequest is the request body for an ownership transfer
type TransferRequest struct {
	NewOwner string `json:"new_owner"`
}

// PermissionRequest is the request body for setting a permission
type PermissionRequest struct {
	Allowed *bool `json:"allowed"`
}

// RegisterResponse is the response body for a registration
type RegisterResponse struct {
	ContentID uint64 `json:"content_id"`
}

// OwnerResponse is the response body for an owner lookup
type OwnerResponse struct {
	ContentID uint64             `json:"content_id"`
	Owner     registry.Principal `json:"owner"`
}

// RegistryHandler handles HTTP requests for the content registry
type RegistryHandler struct {
	registry  registry.Registry
	jwtSecret []byte
}

// HandlerOption configures a RegistryHandler
type HandlerOption func(*RegistryHandler)

// WithJWTSecret makes caller-scoped routes authenticate with HMAC bearer
// tokens instead of the X-Principal header.
func WithJWTSecret(secret string) HandlerOption {
	return func(h *RegistryHandler) {
		if secret != "" {
			h.jwtSecret = []byte(secret)
		}
	}
}

// NewRegistryHandler creates a new registry handler
func NewRegistryHandler(reg registry.Registry, opts ...HandlerOption) *RegistryHandler {
	h := &RegistryHandler{registry: reg}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Routes returns the registry routes, meant to be mounted under /api/v1
func (h *RegistryHandler) Routes() chi.Router {
	r := chi.NewRouter()

	// Queries open to anyone
	r.Get("/statistics", h.VaultStatistics)
	r.Get("/contents/{id}/owner", h.OwnerOf)
	r.Get("/contents/{id}/permissions/{principal}", h.CheckPermissions)

	// Caller-scoped routes
	r.Group(func(r chi.Router) {
		r.Use(PrincipalMiddleware(h.jwtSecret))

		r.Post("/contents", h.Register)
		r.Get("/contents/{id}", h.Retrieve)
		r.Put("/contents/{id}", h.Modify)
		r.Delete("/contents/{id}", h.Delete)
		r.Post("/contents/{id}/transfer", h.TransferOwnership)
		r.Put("/contents/{id}/permissions/{principal}", h.SetPermission)
	})

	return r
}

func contentID(r *http.Request) (uint64, error) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		return 0, errors.New("invalid content id")
	}
	return id, nil
}

func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodyBytes)
	if err := render.DecodeJSON(r.Body, v); err != nil {
		return errors.New("invalid JSON body")
	}
	return nil
}

// caller returns the identity set by PrincipalMiddleware.
func caller(r *http.Request) registry.Principal {
	p, _ := PrincipalFromContext(r.Context())
	return p
}

// Register registers a new content record owned by the caller
func (h *RegistryHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req ContentRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeBadRequest(w, r, err.Error())
		return
	}

	id, err := h.registry.Register(r.Context(), caller(r), registry.RegisterRequest{
		Title:       req.Title,
		SizeBytes:   req.SizeBytes,
		Description: req.Description,
		Tags:        req.Tags,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	render.Status(r, http.StatusCreated)
	render.JSON(w, r, RegisterResponse{ContentID: id})
}

// Retrieve returns a content record the caller may view
func (h *RegistryHandler) Retrieve(w http.ResponseWriter, r *http.Request) {
	id, err := contentID(r)
	if err != nil {
		writeBadRequest(w, r, err.Error())
		return
	}

	record, err := h.registry.Retrieve(r.Context(), caller(r), id)
	if err != nil {
		writeError(w, r, err)
		return
	}

	render.JSON(w, r, record)
}

// Modify replaces the mutable fields of a record owned by the caller
func (h *RegistryHandler) Modify(w http.ResponseWriter, r *http.Request) {
	id, err := contentID(r)
	if err != nil {
		writeBadRequest(w, r, err.Error())
		return
	}
	var req ContentRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeBadRequest(w, r, err.Error())
		return
	}

	err = h.registry.Modify(r.Context(), caller(r), id, registry.ModifyRequest{
		Title:       req.Title,
		SizeBytes:   req.SizeBytes,
		Description: req.Description,
		Tags:        req.Tags,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	render.JSON(w, r, map[string]bool{"updated": true})
}

// TransferOwnership hands a record owned by the caller to a new owner
func (h *RegistryHandler) TransferOwnership(w http.ResponseWriter, r *http.Request) {
	id, err := contentID(r)
	if err != nil {
		writeBadRequest(w, r, err.Error())
		return
	}
	var req TransferRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeBadRequest(w, r, err.Error())
		return
	}
	newOwner := registry.Principal(strings.TrimSpace(req.NewOwner))
	if newOwner == "" {
		writeBadRequest(w, r, "new_owner is required")
		return
	}

	if err := h.registry.TransferOwnership(r.Context(), caller(r), id, newOwner); err != nil {
		writeError(w, r, err)
		return
	}

	render.JSON(w, r, OwnerResponse{ContentID: id, Owner: newOwner})
}

// Delete removes a record owned by the caller
func (h *RegistryHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := contentID(r)
	if err != nil {
		writeBadRequest(w, r, err.Error())
		return
	}

	if err := h.registry.Delete(r.Context(), caller(r), id); err != nil {
		writeError(w, r, err)
		return
	}

	render.JSON(w, r, map[string]bool{"deleted": true})
}

// SetPermission grants or revokes a principal's view permission
func (h *RegistryHandler) SetPermission(w http.ResponseWriter, r *http.Request) {
	id, err := contentID(r)
	if err != nil {
		writeBadRequest(w, r, err.Error())
		return
	}
	var req PermissionRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeBadRequest(w, r, err.Error())
		return
	}
	if req.Allowed == nil {
		writeBadRequest(w, r, "allowed is required")
		return
	}
	principal := registry.Principal(chi.URLParam(r, "principal"))

	if err := h.registry.SetPermission(r.Context(), caller(r), id, principal, *req.Allowed); err != nil {
		writeError(w, r, err)
		return
	}

	render.JSON(w, r, registry.AccessGrant{ContentID: id, Principal: principal, Allowed: *req.Allowed})
}

// CheckPermissions reports how a principal relates to a record
func (h *RegistryHandler) CheckPermissions(w http.ResponseWriter, r *http.Request) {
	id, err := contentID(r)
	if err != nil {
		writeBadRequest(w, r, err.Error())
		return
	}
	principal := registry.Principal(chi.URLParam(r, "principal"))

	report, err := h.registry.CheckPermissions(r.Context(), id, principal)
	if err != nil {
		writeError(w, r, err)
		return
	}

	render.JSON(w, r, report)
}

// OwnerOf returns the owner of a record
func (h *RegistryHandler) OwnerOf(w http.ResponseWriter, r *http.Request) {
	id, err := contentID(r)
	if err != nil {
		writeBadRequest(w, r, err.Error())
		return
	}

	owner, err := h.registry.OwnerOf(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}

	render.JSON(w, r, OwnerResponse{ContentID: id, Owner: owner})
}

// VaultStatistics returns registry-wide counters
func (h *RegistryHandler) VaultStatistics(w http.ResponseWriter, r *http.Request) {
	stats, err := h.registry.VaultStatistics(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}

	render.JSON(w, r, stats)
}
