package httpapi

import (
	"errors"
	"net/http"
	"strconv"

	"aerolite/backend/internal/catalog"
)

func (s *Server) listProducts(w http.ResponseWriter, r *http.Request) {
	products, err := s.svc.Catalog.List(r.Context())
	if err != nil {
		s.logger.Error("list products", "err", err)
		writeError(w, http.StatusInternalServerError, "Failed to load products")
		return
	}
	writeJSON(w, http.StatusOK, products)
}

func (s *Server) getProduct(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid product id")
		return
	}

	p, err := s.svc.Catalog.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, catalog.ErrProductNotFound) {
			writeError(w, http.StatusNotFound, "Product not found")
			return
		}
		s.logger.Error("get product", "product_id", id, "err", err)
		writeError(w, http.StatusInternalServerError, "Failed to load product")
		return
	}
	writeJSON(w, http.StatusOK, p)
}
