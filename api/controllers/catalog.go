package controllers

import (
	"net/http"
	"strings"

	"github.com/panelcraft/panelcraft-backend/api/responses"
	"github.com/panelcraft/panelcraft-backend/api/validators"
	catalogsvc "github.com/panelcraft/panelcraft-backend/internal/catalog"
	"github.com/panelcraft/panelcraft-backend/pkg/enums"
	pkgerrors "github.com/panelcraft/panelcraft-backend/pkg/errors"
	"github.com/panelcraft/panelcraft-backend/pkg/logger"
)

type categoryRequest struct {
	Name        string  `json:"name" validate:"required"`
	Description *string `json:"description,omitempty"`
}

type updateCategoryRequest struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
}

type createProductRequest struct {
	Name              string  `json:"name" validate:"required"`
	PanelType         string  `json:"panel_type" validate:"required"`
	CategoryID        string  `json:"category_id" validate:"required,uuid"`
	Description       string  `json:"description"`
	TechnicalSpecs    *string `json:"technical_specs,omitempty"`
	Price             string  `json:"price" validate:"required"`
	StockQuantity     int     `json:"stock_quantity" validate:"omitempty,min=0"`
	MinStockThreshold int     `json:"min_stock_threshold" validate:"omitempty,min=0"`
}

type updateProductRequest struct {
	Name              *string `json:"name,omitempty"`
	PanelType         *string `json:"panel_type,omitempty"`
	CategoryID        *string `json:"category_id,omitempty" validate:"omitempty,uuid"`
	Description       *string `json:"description,omitempty"`
	TechnicalSpecs    *string `json:"technical_specs,omitempty"`
	Price             *string `json:"price,omitempty"`
	MinStockThreshold *int    `json:"min_stock_threshold,omitempty" validate:"omitempty,min=0"`
	IsActive          *bool   `json:"is_active,omitempty"`
}

type addReviewRequest struct {
	Rating  int    `json:"rating" validate:"required,min=1,max=5"`
	Comment string `json:"comment" validate:"required"`
}

func CreateCategory(svc catalogsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload categoryRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		category, err := svc.CreateCategory(r.Context(), catalogsvc.CreateCategoryInput{
			Name:        payload.Name,
			Description: payload.Description,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, category)
	}
}

func ListCategories(svc catalogsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		categories, err := svc.ListCategories(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, categories)
	}
}

func UpdateCategory(svc catalogsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathUUID(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload updateCategoryRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		category, err := svc.UpdateCategory(r.Context(), id, catalogsvc.UpdateCategoryInput{
			Name:        payload.Name,
			Description: payload.Description,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, category)
	}
}

func DeleteCategory(svc catalogsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathUUID(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := svc.DeleteCategory(r.Context(), id); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "deleted"})
	}
}

func CreateProduct(svc catalogsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload createProductRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		panelType, err := enums.ParsePanelType(strings.TrimSpace(payload.PanelType))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid panel type"))
			return
		}
		categoryID, err := parseUUIDString(payload.CategoryID, "category_id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		price, err := parseAmount(payload.Price, "price")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		product, err := svc.CreateProduct(r.Context(), catalogsvc.CreateProductInput{
			Name:              payload.Name,
			PanelType:         panelType,
			CategoryID:        categoryID,
			Description:       payload.Description,
			TechnicalSpecs:    payload.TechnicalSpecs,
			Price:             price,
			StockQuantity:     payload.StockQuantity,
			MinStockThreshold: payload.MinStockThreshold,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, product)
	}
}

func GetProduct(svc catalogsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathUUID(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		product, err := svc.GetProduct(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, product)
	}
}

func ListProducts(svc catalogsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, offset, err := pagination(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		filter := catalogsvc.ListProductsFilter{
			Search: validators.SanitizeString(r.URL.Query().Get("search"), 120),
			Limit:  limit,
			Offset: offset,
		}
		if raw := strings.TrimSpace(r.URL.Query().Get("panel_type")); raw != "" {
			panelType, err := enums.ParsePanelType(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid panel type"))
				return
			}
			filter.PanelType = &panelType
		}
		categoryID, err := queryUUID(r, "category_id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		filter.CategoryID = categoryID
		if r.URL.Query().Get("active") == "true" {
			filter.ActiveOnly = true
		}

		products, err := svc.ListProducts(r.Context(), filter)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, products)
	}
}

func UpdateProduct(svc catalogsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathUUID(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload updateProductRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input := catalogsvc.UpdateProductInput{
			Name:              payload.Name,
			Description:       payload.Description,
			TechnicalSpecs:    payload.TechnicalSpecs,
			MinStockThreshold: payload.MinStockThreshold,
			IsActive:          payload.IsActive,
		}
		if payload.PanelType != nil {
			panelType, err := enums.ParsePanelType(strings.TrimSpace(*payload.PanelType))
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid panel type"))
				return
			}
			input.PanelType = &panelType
		}
		if payload.CategoryID != nil {
			categoryID, err := parseUUIDString(*payload.CategoryID, "category_id")
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			input.CategoryID = &categoryID
		}
		if payload.Price != nil {
			price, err := parseAmount(*payload.Price, "price")
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			input.Price = &price
		}

		product, err := svc.UpdateProduct(r.Context(), id, input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, product)
	}
}

func DeleteProduct(svc catalogsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathUUID(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := svc.DeleteProduct(r.Context(), id); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "deleted"})
	}
}

func AddProductReview(svc catalogsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		productID, err := pathUUID(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		uid, err := actorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload addReviewRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		review, err := svc.AddReview(r.Context(), catalogsvc.AddReviewInput{
			ProductID: productID,
			UserID:    uid,
			Rating:    payload.Rating,
			Comment:   payload.Comment,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, review)
	}
}

func ListProductReviews(svc catalogsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		productID, err := pathUUID(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		reviews, err := svc.ListReviews(r.Context(), productID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, reviews)
	}
}
