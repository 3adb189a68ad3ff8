package ginserver

import (
	"encoding/csv"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	gin "github.com/gin-gonic/gin"

	"fleamarket/internal/app/dto"
	domainchat "fleamarket/internal/domain/chat"
	domainlistings "fleamarket/internal/domain/listings"
	domainpurchase "fleamarket/internal/domain/purchase"
	domainuser "fleamarket/internal/domain/user"
)

type AdminHTTP interface {
	ListUsers(c *gin.Context)
	SetUserBlocked(c *gin.Context)
	ListListings(c *gin.Context)
	ListConversations(c *gin.Context)
	ExportListings(c *gin.Context)
	ExportPurchases(c *gin.Context)
}

// AdminHandler is the back office: user moderation, full catalog visibility
// and the sales export. Every route requires the admin role.
type AdminHandler struct {
	Users         domainuser.Repository
	Listings      domainlistings.Repository
	Purchases     domainpurchase.Repository
	Conversations domainchat.ConversationStore
	Logger        *slog.Logger
}

func (h AdminHandler) ListUsers(c *gin.Context) {
	if _, ok := requireRole(c, string(domainuser.RoleAdmin)); !ok {
		return
	}
	params := domainuser.ListParams{
		Query:  c.Query("q"),
		Limit:  queryInt(c, "limit", 50),
		Offset: queryInt(c, "offset", 0),
	}
	users, total, err := h.Users.List(c.Request.Context(), params)
	if err != nil {
		h.respondAdminError(c, err)
		return
	}
	items := make([]dto.UserProfile, 0, len(users))
	for _, u := range users {
		items = append(items, dto.MapUserProfile(u))
	}
	c.JSON(http.StatusOK, dto.UserList{Items: items, Total: total})
}

type setBlockedRequest struct {
	Blocked bool `json:"blocked"`
}

func (h AdminHandler) SetUserBlocked(c *gin.Context) {
	admin, ok := requireRole(c, string(domainuser.RoleAdmin))
	if !ok {
		return
	}
	var req setBlockedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	userID := domainuser.ID(c.Param("id"))
	if string(userID) == admin.ID {
		c.JSON(http.StatusConflict, gin.H{"error": "cannot block yourself"})
		return
	}
	user, err := h.Users.ByID(c.Request.Context(), userID)
	if err != nil {
		h.respondAdminError(c, err)
		return
	}
	user.SetBlocked(req.Blocked, time.Now())
	if err := h.Users.Save(c.Request.Context(), user); err != nil {
		h.respondAdminError(c, err)
		return
	}
	if h.Logger != nil {
		h.Logger.Info("user moderation updated", "user_id", user.ID, "blocked", user.Blocked, "admin_id", admin.ID)
	}
	c.JSON(http.StatusOK, dto.MapUserProfile(user))
}

func (h AdminHandler) ListListings(c *gin.Context) {
	if _, ok := requireRole(c, string(domainuser.RoleAdmin)); !ok {
		return
	}
	result, err := h.Listings.All(c.Request.Context(), queryInt(c, "limit", 50), queryInt(c, "offset", 0))
	if err != nil {
		h.respondAdminError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.MapListingList(result))
}

func (h AdminHandler) ListConversations(c *gin.Context) {
	if _, ok := requireRole(c, string(domainuser.RoleAdmin)); !ok {
		return
	}
	conversations, err := h.Conversations.All(c.Request.Context())
	if err != nil {
		h.respondAdminError(c, err)
		return
	}
	items := make([]dto.AdminConversation, 0, len(conversations))
	for _, conv := range conversations {
		items = append(items, dto.AdminConversation{
			ID:        string(conv.ID),
			BuyerID:   string(conv.Buyer),
			SellerID:  string(conv.Seller),
			ListingID: string(conv.Listing),
			CreatedAt: conv.CreatedAt.Format(time.RFC3339),
		})
	}
	c.JSON(http.StatusOK, dto.AdminConversationList{Items: items})
}

// ExportListings streams the full catalog, drafts and sold items included, as CSV.
func (h AdminHandler) ExportListings(c *gin.Context) {
	if _, ok := requireRole(c, string(domainuser.RoleAdmin)); !ok {
		return
	}
	c.Header("Content-Type", "text/csv")
	c.Header("Content-Disposition", `attachment; filename="listings.csv"`)
	writer := csv.NewWriter(c.Writer)
	_ = writer.Write([]string{"id", "seller_id", "title", "category", "condition", "price_cents", "state", "created_at"})

	const pageSize = 500
	for offset := 0; ; offset += pageSize {
		result, err := h.Listings.All(c.Request.Context(), pageSize, offset)
		if err != nil {
			h.respondAdminError(c, err)
			return
		}
		for _, l := range result.Items {
			_ = writer.Write([]string{
				string(l.ID),
				string(l.Seller),
				l.Title,
				l.Category,
				string(l.Condition),
				strconv.FormatInt(l.PriceCents, 10),
				string(l.State),
				l.CreatedAt.Format(time.RFC3339),
			})
		}
		if len(result.Items) < pageSize {
			break
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil && h.Logger != nil {
		h.Logger.Error("listing export failed", "error", err)
	}
}

// ExportPurchases streams every completed sale as CSV.
func (h AdminHandler) ExportPurchases(c *gin.Context) {
	if _, ok := requireRole(c, string(domainuser.RoleAdmin)); !ok {
		return
	}
	purchases, err := h.Purchases.All(c.Request.Context())
	if err != nil {
		h.respondAdminError(c, err)
		return
	}

	c.Header("Content-Type", "text/csv")
	c.Header("Content-Disposition", `attachment; filename="purchases.csv"`)
	writer := csv.NewWriter(c.Writer)
	_ = writer.Write([]string{"id", "listing_id", "buyer_id", "seller_id", "price_cents", "created_at"})
	for _, p := range purchases {
		_ = writer.Write([]string{
			string(p.ID),
			string(p.Listing),
			string(p.Buyer),
			string(p.Seller),
			strconv.FormatInt(p.PriceCents, 10),
			p.CreatedAt.Format(time.RFC3339),
		})
	}
	writer.Flush()
	if err := writer.Error(); err != nil && h.Logger != nil {
		h.Logger.Error("purchase export failed", "error", err)
	}
}

func (h AdminHandler) respondAdminError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domainuser.ErrNotFound),
		errors.Is(err, domainlistings.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	default:
		if h.Logger != nil {
			h.Logger.Error("admin operation failed", "error", err)
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

var _ AdminHTTP = (*AdminHandler)(nil)
