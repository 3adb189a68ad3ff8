package ginserver

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	gin "github.com/gin-gonic/gin"

	"fleamarket/internal/app/dto"
	marketsvc "fleamarket/internal/app/services/market"
	domainlistings "fleamarket/internal/domain/listings"
	domainpurchase "fleamarket/internal/domain/purchase"
	domainuser "fleamarket/internal/domain/user"
	"fleamarket/internal/infra/storage/s3"
)

type ListingHTTP interface {
	Catalog(c *gin.Context)
	Get(c *gin.Context)
	MyListings(c *gin.Context)
	Create(c *gin.Context)
	Update(c *gin.Context)
	Publish(c *gin.Context)
	AddPhoto(c *gin.Context)
	Buy(c *gin.Context)
	MyPurchases(c *gin.Context)
}

type ListingHandler struct {
	Service *marketsvc.Service
	Logger  *slog.Logger
}

type listingRequest struct {
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Category    string  `json:"category"`
	Condition   string  `json:"condition"`
	PriceCents  int64   `json:"price_cents"`
	PickupLabel string  `json:"pickup_label"`
	PickupLat   float64 `json:"pickup_lat"`
	PickupLon   float64 `json:"pickup_lon"`
}

func (r listingRequest) toInput() marketsvc.ListingInput {
	return marketsvc.ListingInput{
		Title:       r.Title,
		Description: r.Description,
		Category:    r.Category,
		Condition:   domainlistings.Condition(r.Condition),
		PriceCents:  r.PriceCents,
		Pickup: domainlistings.PickupPoint{
			Label: r.PickupLabel,
			Lat:   r.PickupLat,
			Lon:   r.PickupLon,
		},
	}
}

func (h ListingHandler) Catalog(c *gin.Context) {
	params := domainlistings.CatalogParams{
		Category: c.Query("category"),
		Limit:    queryInt(c, "limit", 20),
		Offset:   queryInt(c, "offset", 0),
	}
	result, err := h.Service.Catalog(c.Request.Context(), params)
	if err != nil {
		h.respondListingError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.MapListingList(result))
}

func (h ListingHandler) Get(c *gin.Context) {
	listing, err := h.Service.GetListing(c.Request.Context(), domainlistings.ListingID(c.Param("id")))
	if err != nil {
		h.respondListingError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.MapListing(listing))
}

func (h ListingHandler) MyListings(c *gin.Context) {
	p, ok := requireRole(c, "")
	if !ok {
		return
	}
	listings, err := h.Service.MyListings(c.Request.Context(), domainlistings.SellerID(p.ID))
	if err != nil {
		h.respondListingError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.MapListings(listings))
}

func (h ListingHandler) Create(c *gin.Context) {
	p, ok := requireRole(c, "")
	if !ok {
		return
	}
	var req listingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	listing, err := h.Service.CreateListing(c.Request.Context(), domainlistings.SellerID(p.ID), req.toInput())
	if err != nil {
		h.respondListingError(c, err)
		return
	}
	c.JSON(http.StatusCreated, dto.MapListing(listing))
}

func (h ListingHandler) Update(c *gin.Context) {
	p, ok := requireRole(c, "")
	if !ok {
		return
	}
	var req listingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	listing, err := h.Service.UpdateListing(c.Request.Context(), domainlistings.SellerID(p.ID), domainlistings.ListingID(c.Param("id")), req.toInput())
	if err != nil {
		h.respondListingError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.MapListing(listing))
}

func (h ListingHandler) Publish(c *gin.Context) {
	p, ok := requireRole(c, "")
	if !ok {
		return
	}
	listing, err := h.Service.PublishListing(c.Request.Context(), domainlistings.SellerID(p.ID), domainlistings.ListingID(c.Param("id")))
	if err != nil {
		h.respondListingError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.MapListing(listing))
}

// AddPhoto accepts a multipart upload under the "photo" field.
func (h ListingHandler) AddPhoto(c *gin.Context) {
	p, ok := requireRole(c, "")
	if !ok {
		return
	}
	fileHeader, err := c.FormFile("photo")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "photo file is required"})
		return
	}
	file, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "cannot read photo"})
		return
	}
	defer file.Close()

	contentType := fileHeader.Header.Get("Content-Type")
	listing, err := h.Service.AddPhoto(c.Request.Context(), domainlistings.SellerID(p.ID), domainlistings.ListingID(c.Param("id")), file, contentType)
	if err != nil {
		h.respondListingError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.MapListing(listing))
}

func (h ListingHandler) Buy(c *gin.Context) {
	p, ok := requireRole(c, "")
	if !ok {
		return
	}
	purchase, err := h.Service.Buy(c.Request.Context(), domainuser.ID(p.ID), domainlistings.ListingID(c.Param("id")))
	if err != nil {
		h.respondListingError(c, err)
		return
	}
	c.JSON(http.StatusCreated, dto.MapPurchase(purchase))
}

func (h ListingHandler) MyPurchases(c *gin.Context) {
	p, ok := requireRole(c, "")
	if !ok {
		return
	}
	purchases, err := h.Service.MyPurchases(c.Request.Context(), domainuser.ID(p.ID))
	if err != nil {
		h.respondListingError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.MapPurchases(purchases))
}

func (h ListingHandler) respondListingError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domainlistings.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, domainlistings.ErrNotSeller):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, domainlistings.ErrTitleRequired),
		errors.Is(err, domainlistings.ErrNegativePrice),
		errors.Is(err, s3.ErrUnsupportedContentType):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, domainlistings.ErrInvalidState),
		errors.Is(err, domainlistings.ErrConcurrentUpdate),
		errors.Is(err, domainpurchase.ErrOwnListing):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		if h.Logger != nil {
			h.Logger.Error("listing operation failed", "error", err)
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func queryInt(c *gin.Context, key string, def int) int {
	raw := c.Query(key)
	if raw == "" {
		return def
	}
	val, err := strconv.Atoi(raw)
	if err != nil || val < 0 {
		return def
	}
	return val
}

var _ ListingHTTP = (*ListingHandler)(nil)
