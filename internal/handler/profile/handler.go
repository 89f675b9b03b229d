package profile

import (
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/zhouzirui/profile-service/backend/internal/model/profile"
	"github.com/zhouzirui/profile-service/backend/pkg/utils"
)

// Recorder 接收处理器产生的指标，可以为nil
type Recorder interface {
	ObserveDecision(profile.Decision)
	ObserveRejected(op, reason string)
}

// Handler profile服务的HTTP处理器
type Handler struct {
	store    profile.Store
	recorder Recorder
}

// New 创建profile处理器
func New(store profile.Store, recorder Recorder) *Handler {
	return &Handler{
		store:    store,
		recorder: recorder,
	}
}

// RegisterRoutes 注册profile相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/profiles", func(pr chi.Router) {
		pr.Get("/", h.handleListProfiles)
		pr.Post("/", h.handleCreateProfile)
		pr.Get("/{name}", h.handleGetProfile)
		pr.Put("/{name}", h.handleUpdateProfile)
		pr.Delete("/{name}", h.handleDeleteProfile)
		pr.Get("/{name}/permissions/{permission}", h.handleValidatePermission)
	})
}

type createRequest struct {
	ProfileName string            `json:"profileName"`
	Parameters  map[string]string `json:"parameters"`
}

type updateRequest struct {
	Parameters map[string]string `json:"parameters"`
}

type validateResponse struct {
	ProfileName string `json:"profileName"`
	Permission  string `json:"permission"`
	Result      string `json:"result"`
}

// handleListProfiles 列出所有profile
func (h *Handler) handleListProfiles(w http.ResponseWriter, r *http.Request) {
	utils.RespondJSON(w, http.StatusOK, h.store.List())
}

// handleGetProfile 获取单个profile
func (h *Handler) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	p, ok := h.store.Get(name)
	if !ok {
		utils.RespondError(w, http.StatusNotFound, "profile not found")
		return
	}
	utils.RespondJSON(w, http.StatusOK, p)
}

// handleCreateProfile 创建profile
func (h *Handler) handleCreateProfile(w http.ResponseWriter, r *http.Request) {
	var payload createRequest
	if err := utils.DecodeJSON(r, &payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	name := payload.ProfileName
	if strings.TrimSpace(name) == "" {
		utils.RespondError(w, http.StatusBadRequest, "profileName is required")
		return
	}
	// names are exact identifiers; padded input is rejected rather than renamed
	if strings.TrimSpace(name) != name {
		utils.RespondError(w, http.StatusBadRequest, "profileName must not have leading or trailing whitespace")
		return
	}

	p, err := h.store.Create(name, payload.Parameters)
	if err != nil {
		h.respondStoreError(w, "create", err)
		return
	}

	utils.RespondJSON(w, http.StatusOK, p)
}

// handleUpdateProfile 替换profile的全部参数
func (h *Handler) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	var payload updateRequest
	if err := utils.DecodeJSON(r, &payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	p, err := h.store.Update(name, payload.Parameters)
	if err != nil {
		h.respondStoreError(w, "update", err)
		return
	}

	utils.RespondJSON(w, http.StatusOK, p)
}

// handleDeleteProfile 删除profile
func (h *Handler) handleDeleteProfile(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if err := h.store.Delete(name); err != nil {
		h.respondStoreError(w, "delete", err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// handleValidatePermission 校验profile中的某个权限
func (h *Handler) handleValidatePermission(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if strings.TrimSpace(name) == "" {
		utils.RespondError(w, http.StatusBadRequest, "profileName is required")
		return
	}
	permission := strings.TrimSpace(chi.URLParam(r, "permission"))
	if permission == "" {
		utils.RespondError(w, http.StatusBadRequest, "permission is required")
		return
	}

	decision := h.store.Validate(name, permission)
	if h.recorder != nil {
		h.recorder.ObserveDecision(decision)
	}

	utils.RespondJSON(w, http.StatusOK, validateResponse{
		ProfileName: name,
		Permission:  permission,
		Result:      decision.String(),
	})
}

// respondStoreError 将store错误映射为HTTP状态码
func (h *Handler) respondStoreError(w http.ResponseWriter, op string, err error) {
	var status int
	var reason string
	switch {
	case errors.Is(err, profile.ErrNotFound):
		status, reason = http.StatusNotFound, "not_found"
	case errors.Is(err, profile.ErrAlreadyExists):
		status, reason = http.StatusConflict, "already_exists"
	case errors.Is(err, profile.ErrInvalidValue):
		status, reason = http.StatusBadRequest, "invalid_value"
	default:
		log.Printf("[profile] %s failed: %v", op, err)
		if h.recorder != nil {
			h.recorder.ObserveRejected(op, "internal")
		}
		utils.RespondError(w, http.StatusInternalServerError, "internal error")
		return
	}

	if h.recorder != nil {
		h.recorder.ObserveRejected(op, reason)
	}
	utils.RespondError(w, status, err.Error())
}
