package handler

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// ===== ADMIN API =====

// handleAdminStats returns order totals, user count and keyword hit
// counts for the dashboard
func (h *Handler) handleAdminStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	stats, err := h.orders.GetOrderStats(ctx)
	if err != nil {
		h.sendErrorResponse(w, "Xatolik yuz berdi", http.StatusInternalServerError)
		return
	}

	userCount, err := h.users.CountUsers(ctx)
	if err != nil {
		h.sendErrorResponse(w, "Xatolik yuz berdi", http.StatusInternalServerError)
		return
	}

	hits, err := h.content.CountKeywordHits(ctx)
	if err != nil {
		h.sendErrorResponse(w, "Xatolik yuz berdi", http.StatusInternalServerError)
		return
	}

	totalHits := 0
	for _, count := range hits {
		totalHits += count
	}

	h.sendSuccessResponse(w, "Admin stats", map[string]interface{}{
		"orders":              stats,
		"users":               userCount,
		"keyword_hits":        totalHits,
		"keyword_hits_groups": hits,
	})
}

func (h *Handler) handleAdminOrders(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 && parsed <= 200 {
			limit = parsed
		}
	}

	orders, err := h.orders.ListRecentOrders(r.Context(), limit)
	if err != nil {
		h.sendErrorResponse(w, "Xatolik yuz berdi", http.StatusInternalServerError)
		return
	}

	h.sendSuccessResponse(w, "Admin orders", map[string]interface{}{
		"count":  len(orders),
		"orders": orders,
	})
}

func (h *Handler) handleAdminUsers(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 && parsed <= 200 {
			limit = parsed
		}
	}

	users, err := h.users.ListRecentUsers(r.Context(), limit)
	if err != nil {
		h.sendErrorResponse(w, "Xatolik yuz berdi", http.StatusInternalServerError)
		return
	}

	h.sendSuccessResponse(w, "Admin users", map[string]interface{}{
		"count": len(users),
		"users": users,
	})
}

func (h *Handler) handleAdminBlockUser(w http.ResponseWriter, r *http.Request) {
	var req struct {
		TelegramID int64 `json:"telegram_id"`
		Blocked    bool  `json:"blocked"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.TelegramID == 0 {
		h.sendErrorResponse(w, "telegram_id kerak", http.StatusBadRequest)
		return
	}

	if err := h.users.SetBlocked(r.Context(), req.TelegramID, req.Blocked); err != nil {
		h.sendErrorResponse(w, "Xatolik yuz berdi", http.StatusInternalServerError)
		return
	}

	h.logger.Info("User block flag changed via admin API",
		zap.Int64("telegram_id", req.TelegramID),
		zap.Bool("blocked", req.Blocked))

	h.sendSuccessResponse(w, "Saqlandi", map[string]interface{}{
		"telegram_id": req.TelegramID,
		"blocked":     req.Blocked,
	})
}

func (h *Handler) handleAdminKeywords(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if r.Method == http.MethodPost {
		var req struct {
			Keyword string `json:"keyword"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			h.sendErrorResponse(w, "keyword kerak", http.StatusBadRequest)
			return
		}

		keyword := strings.ToLower(strings.TrimSpace(req.Keyword))
		if keyword == "" {
			h.sendErrorResponse(w, "keyword kerak", http.StatusBadRequest)
			return
		}

		if err := h.content.UpsertKeyword(ctx, keyword); err != nil {
			h.sendErrorResponse(w, "Xatolik yuz berdi", http.StatusInternalServerError)
			return
		}
	}

	keywords, err := h.content.ListKeywords(ctx)
	if err != nil {
		h.sendErrorResponse(w, "Xatolik yuz berdi", http.StatusInternalServerError)
		return
	}

	h.sendSuccessResponse(w, "Keywords", map[string]interface{}{
		"count":    len(keywords),
		"keywords": keywords,
	})
}

func (h *Handler) handleAdminDeleteKeyword(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if id == "" {
		h.sendErrorResponse(w, "id kerak", http.StatusBadRequest)
		return
	}

	if err := h.content.DeleteKeyword(r.Context(), id); err != nil {
		h.sendErrorResponse(w, "Xatolik yuz berdi", http.StatusInternalServerError)
		return
	}

	h.sendSuccessResponse(w, "O'chirildi", nil)
}

func (h *Handler) handleAdminGroups(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if r.Method == http.MethodPost {
		var req struct {
			GroupID   int64  `json:"group_id"`
			GroupName string `json:"group_name"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.GroupID == 0 {
			h.sendErrorResponse(w, "group_id kerak", http.StatusBadRequest)
			return
		}

		if err := h.content.UpsertWatchedGroup(ctx, req.GroupID, req.GroupName); err != nil {
			h.sendErrorResponse(w, "Xatolik yuz berdi", http.StatusInternalServerError)
			return
		}
	}

	groups, err := h.content.ListWatchedGroups(ctx)
	if err != nil {
		h.sendErrorResponse(w, "Xatolik yuz berdi", http.StatusInternalServerError)
		return
	}

	h.sendSuccessResponse(w, "Watched groups", map[string]interface{}{
		"count":  len(groups),
		"groups": groups,
	})
}

func (h *Handler) handleAdminTexts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if r.Method == http.MethodPost {
		var req struct {
			Key   string `json:"key"`
			Value string `json:"value"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Key == "" || req.Value == "" {
			h.sendErrorResponse(w, "key va value kerak", http.StatusBadRequest)
			return
		}

		updated, err := h.content.SetText(ctx, req.Key, req.Value)
		if err != nil {
			h.sendErrorResponse(w, "Xatolik yuz berdi", http.StatusInternalServerError)
			return
		}
		if !updated {
			h.sendErrorResponse(w, "Bunday kalit topilmadi", http.StatusNotFound)
			return
		}
	}

	keys, err := h.content.ListTextKeys(ctx)
	if err != nil {
		h.sendErrorResponse(w, "Xatolik yuz berdi", http.StatusInternalServerError)
		return
	}

	texts := make(map[string]string, len(keys))
	for _, key := range keys {
		value, err := h.content.GetText(ctx, key)
		if err != nil {
			continue
		}
		texts[key] = value
	}

	h.sendSuccessResponse(w, "Bot texts", map[string]interface{}{
		"texts": texts,
	})
}

func (h *Handler) handleAdminSettings(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Key   string `json:"key"`
		Value string `json:"value"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Key == "" {
		h.sendErrorResponse(w, "key kerak", http.StatusBadRequest)
		return
	}

	if err := h.content.SetSetting(r.Context(), req.Key, req.Value); err != nil {
		h.sendErrorResponse(w, "Xatolik yuz berdi", http.StatusInternalServerError)
		return
	}

	h.sendSuccessResponse(w, "Saqlandi", map[string]interface{}{
		"key":   req.Key,
		"value": req.Value,
	})
}
