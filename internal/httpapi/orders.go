package httpapi

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"aerolite/backend/internal/order"
	"aerolite/backend/internal/payment"

	"github.com/shopspring/decimal"
)

// flexibleID accepts an identifier sent either as a JSON number or as a
// numeric string.
type flexibleID int64

func (id *flexibleID) UnmarshalJSON(b []byte) error {
	b = bytes.Trim(b, `"`)
	if len(b) == 0 || string(b) == "null" {
		*id = 0
		return nil
	}
	v, err := strconv.ParseInt(string(b), 10, 64)
	if err != nil {
		return err
	}
	*id = flexibleID(v)
	return nil
}

type createOrderRequest struct {
	TotalAmount     decimal.Decimal `json:"totalAmount"`
	ShippingAddress string          `json:"shippingAddress"`
	Items           []struct {
		ProductID flexibleID      `json:"productId"`
		Quantity  int             `json:"quantity"`
		Price     decimal.Decimal `json:"price"`
	} `json:"items"`
}

func (s *Server) createOrder(w http.ResponseWriter, r *http.Request, userID int64) {
	var req createOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}

	in := order.NewOrder{
		TotalAmount:     req.TotalAmount,
		ShippingAddress: req.ShippingAddress,
		Items:           make([]order.NewItem, 0, len(req.Items)),
	}
	for _, it := range req.Items {
		in.Items = append(in.Items, order.NewItem{
			ProductID: int64(it.ProductID),
			Quantity:  it.Quantity,
			Price:     it.Price,
		})
	}

	o, err := s.svc.Orders.Create(r.Context(), userID, in)
	if err != nil {
		var vErr *order.ValidationError
		if errors.As(err, &vErr) {
			writeError(w, http.StatusBadRequest, vErr.Msg)
			return
		}
		s.logger.Error("order error", "user_id", userID, "err", err)
		writeError(w, http.StatusInternalServerError, "Order creation failed")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"message":         "Order created successfully - Proceed to payment",
		"orderId":         o.ID,
		"requiresPayment": true,
	})
}

func (s *Server) listOrders(w http.ResponseWriter, r *http.Request, userID int64) {
	orders, err := s.svc.Orders.List(r.Context(), userID)
	if err != nil {
		s.logger.Error("list orders", "user_id", userID, "err", err)
		writeError(w, http.StatusInternalServerError, "Failed to load orders")
		return
	}
	writeJSON(w, http.StatusOK, orders)
}

func (s *Server) getOrder(w http.ResponseWriter, r *http.Request, userID int64) {
	orderID, err := strconv.ParseInt(r.PathValue("orderID"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid order id")
		return
	}

	o, err := s.svc.Orders.Get(r.Context(), orderID, userID)
	if err != nil {
		if errors.Is(err, order.ErrOrderNotFound) {
			writeError(w, http.StatusNotFound, "Order not found")
			return
		}
		s.logger.Error("get order", "order_id", orderID, "err", err)
		writeError(w, http.StatusInternalServerError, "Failed to load order")
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (s *Server) processPayment(w http.ResponseWriter, r *http.Request, userID int64) {
	var req struct {
		OrderID     flexibleID      `json:"orderId"`
		PaymentData payment.Details `json:"paymentData"`
		Amount      decimal.Decimal `json:"amount"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	if req.OrderID <= 0 {
		writeError(w, http.StatusBadRequest, "Order ID required")
		return
	}
	orderID := int64(req.OrderID)

	receipt, err := s.svc.Payments.Process(r.Context(), userID, orderID, req.PaymentData, req.Amount)
	if err != nil {
		switch {
		case errors.Is(err, order.ErrOrderNotFound):
			writeError(w, http.StatusNotFound, "Order not found")
		case errors.Is(err, order.ErrOrderSettled):
			writeError(w, http.StatusConflict, "Order already settled")
		default:
			s.logger.Error("payment processing error", "order_id", orderID, "err", err)
			writeError(w, http.StatusInternalServerError, "Payment processing failed")
		}
		return
	}

	if !receipt.Outcome.Approved {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"success": false,
			"error":   receipt.Outcome.Reason,
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":       true,
		"message":       "Payment processed successfully",
		"transactionId": receipt.Outcome.TransactionID,
		"orderId":       receipt.OrderID,
	})
}
