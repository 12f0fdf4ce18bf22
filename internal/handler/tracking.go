// Package handler contains the HTTP handlers of the tracking API.
//
// HANDLER RESPONSIBILITIES:
//  1. Parse the request (path params, JSON body) and validate its shape
//  2. Call the tracking service with the authenticated user id
//  3. Write the response or map the error via writeError
//
// Business rules live in the service; a handler only knows HTTP.
package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/sakif/dealwatch/internal/apperror"
	"github.com/sakif/dealwatch/internal/auth"
	"github.com/sakif/dealwatch/internal/extractor"
	"github.com/sakif/dealwatch/internal/model"
)

// Tracker is the service the handlers drive. *service.TrackingService
// implements it.
type Tracker interface {
	Register(ctx context.Context, userID int64, handle, referralCode string) (string, error)
	Preview(ctx context.Context, userID int64, rawURL string) (*model.ProductInfo, error)
	Track(ctx context.Context, userID int64, rawURL string, target *decimal.Decimal) (*model.Product, error)
	Products(ctx context.Context, userID int64) ([]model.Product, error)
	Remove(ctx context.Context, userID, productID int64) (bool, error)
	History(ctx context.Context, userID, productID int64) ([]model.PricePoint, error)
	Limits(ctx context.Context, userID int64) (*model.Limits, error)
	Referrals(ctx context.Context, userID int64) (*model.ReferralStats, error)
}

type TrackingHandler struct {
	tracker  Tracker
	validate *validator.Validate
	logger   *slog.Logger
}

func NewTrackingHandler(tracker Tracker, logger *slog.Logger) *TrackingHandler {
	return &TrackingHandler{
		tracker:  tracker,
		validate: newValidator(),
		logger:   logger,
	}
}

// Routes mounts the handlers on r. r is expected to sit behind
// auth.RequireAuth.
//
//	POST   /users                 → register, returns the referral code
//	GET    /me/limits             → quota usage
//	GET    /me/referrals          → referral standing
//	POST   /products              → start tracking a URL
//	POST   /products/preview      → scrape a URL without tracking it
//	GET    /products              → tracked products, newest first
//	GET    /products/{id}/history → price history, oldest first
//	DELETE /products/{id}         → stop tracking
func (h *TrackingHandler) Routes(r chi.Router) {
	r.Post("/users", h.HandleRegister)
	r.Get("/me/limits", h.HandleLimits)
	r.Get("/me/referrals", h.HandleReferrals)
	r.Route("/products", func(r chi.Router) {
		r.Post("/", h.HandleTrack)
		r.Get("/", h.HandleList)
		r.Post("/preview", h.HandlePreview)
		r.Get("/{id}/history", h.HandleHistory)
		r.Delete("/{id}", h.HandleRemove)
	})
}

type registerRequest struct {
	Handle       string `json:"handle" validate:"max=64"`
	ReferralCode string `json:"referral_code" validate:"max=64"`
}

type registerResponse struct {
	ReferralCode string `json:"referral_code"`
}

// HandleRegister creates the calling user if needed.
//
// HTTP: POST /api/users
// REQUEST BODY: {"handle": "alice", "referral_code": "1A2B3C4D"} (both optional)
func (h *TrackingHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	var req registerRequest
	if errResp := decodeJSON(w, r, h.validate, &req); errResp != nil {
		writeJSON(w, http.StatusBadRequest, errResp)
		return
	}

	code, err := h.tracker.Register(r.Context(), userID, req.Handle, req.ReferralCode)
	if err != nil {
		h.fail(w, r, "register", err)
		return
	}
	writeJSON(w, http.StatusOK, registerResponse{ReferralCode: code})
}

type trackRequest struct {
	URL         string           `json:"url" validate:"required,max=2048"`
	TargetPrice *decimal.Decimal `json:"target_price"`
}

// HandleTrack starts tracking a product.
//
// HTTP: POST /api/products
// REQUEST BODY: {"url": "https://www.amazon.com/dp/B0ABCDEFGH", "target_price": "19.99"}
//
// target_price may be a JSON number or string; omit it for drop alerts only.
func (h *TrackingHandler) HandleTrack(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	var req trackRequest
	if errResp := decodeJSON(w, r, h.validate, &req); errResp != nil {
		writeJSON(w, http.StatusBadRequest, errResp)
		return
	}

	p, err := h.tracker.Track(r.Context(), userID, req.URL, req.TargetPrice)
	if err != nil {
		h.fail(w, r, "track", err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

type previewRequest struct {
	URL string `json:"url" validate:"required,max=2048"`
}

// HandlePreview scrapes a product without tracking it.
//
// HTTP: POST /api/products/preview
func (h *TrackingHandler) HandlePreview(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	var req previewRequest
	if errResp := decodeJSON(w, r, h.validate, &req); errResp != nil {
		writeJSON(w, http.StatusBadRequest, errResp)
		return
	}

	info, err := h.tracker.Preview(r.Context(), userID, req.URL)
	if err != nil {
		h.fail(w, r, "preview", err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

// HandleList returns the caller's products, newest first.
//
// HTTP: GET /api/products
func (h *TrackingHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	products, err := h.tracker.Products(r.Context(), userID)
	if err != nil {
		h.fail(w, r, "list products", err)
		return
	}
	writeJSON(w, http.StatusOK, products)
}

// HandleHistory returns a product's price history.
//
// HTTP: GET /api/products/{id}/history
func (h *TrackingHandler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}
	productID, ok := productIDParam(w, r)
	if !ok {
		return
	}

	history, err := h.tracker.History(r.Context(), userID, productID)
	if err != nil {
		h.fail(w, r, "price history", err)
		return
	}
	writeJSON(w, http.StatusOK, history)
}

// HandleRemove stops tracking a product. Products of other users are
// reported as not found so their ids do not leak.
//
// HTTP: DELETE /api/products/{id}
func (h *TrackingHandler) HandleRemove(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}
	productID, ok := productIDParam(w, r)
	if !ok {
		return
	}

	removed, err := h.tracker.Remove(r.Context(), userID, productID)
	if err != nil {
		h.fail(w, r, "remove product", err)
		return
	}
	if !removed {
		writeError(w, apperror.NotFound("product", strconv.FormatInt(productID, 10)))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleLimits reports the caller's quota usage.
//
// HTTP: GET /api/me/limits
func (h *TrackingHandler) HandleLimits(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	limits, err := h.tracker.Limits(r.Context(), userID)
	if err != nil {
		h.fail(w, r, "limits", err)
		return
	}
	writeJSON(w, http.StatusOK, limits)
}

// HandleReferrals reports the caller's referral code and who joined with it.
//
// HTTP: GET /api/me/referrals
func (h *TrackingHandler) HandleReferrals(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	stats, err := h.tracker.Referrals(r.Context(), userID)
	if err != nil {
		h.fail(w, r, "referrals", err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// HandleHealth answers liveness probes.
//
// HTTP: GET /healthz
func HandleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *TrackingHandler) userID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{
			Error:   "unauthorized",
			Message: "valid bearer token required",
		})
	}
	return id, ok
}

func productIDParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, apperror.ValidationFailed("id", "product id must be a positive integer"))
		return 0, false
	}
	return id, true
}

// fail logs errors that are not the caller's fault and writes the response.
func (h *TrackingHandler) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	var appErr *apperror.AppError
	if !errors.As(err, &appErr) && !extractor.IsParse(err) {
		h.logger.Error(op+" failed",
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
	}
	writeError(w, err)
}
