package handlers

import (
	"time"

	"github.com/quickshop/storefront/internal/domain"
)

// Wire payloads for the session API. Monetary fields are integer cents and a
// formatted companion string is included where the storefront renders money.

type cartItemPayload struct {
	ID        string `json:"id"`
	ProductID string `json:"productId"`
	Name      string `json:"name"`
	Price     int64  `json:"price"`
	Quantity  int    `json:"quantity"`
	Image     string `json:"image,omitempty"`
}

type cartSummaryPayload struct {
	Subtotal          int64  `json:"subtotal"`
	Tax               int64  `json:"tax"`
	Shipping          int64  `json:"shipping"`
	Total             int64  `json:"total"`
	SubtotalFormatted string `json:"subtotalFormatted"`
	TotalFormatted    string `json:"totalFormatted"`
}

type addressPayload struct {
	FirstName  string `json:"firstName"`
	LastName   string `json:"lastName"`
	Address1   string `json:"address1"`
	Address2   string `json:"address2,omitempty"`
	City       string `json:"city"`
	State      string `json:"state"`
	PostalCode string `json:"postalCode"`
	Country    string `json:"country"`
	Phone      string `json:"phone,omitempty"`
	Email      string `json:"email"`
}

type shippingOptionPayload struct {
	ID                string `json:"id"`
	Name              string `json:"name"`
	Description       string `json:"description,omitempty"`
	Price             int64  `json:"price"`
	EstimatedDelivery string `json:"estimatedDelivery,omitempty"`
}

type paymentMethodPayload struct {
	ID          string `json:"id"`
	Type        string `json:"type"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

type orderPayload struct {
	ID              string            `json:"id"`
	Items           []cartItemPayload `json:"items"`
	ShippingAddress addressPayload    `json:"shippingAddress"`
	BillingAddress  addressPayload    `json:"billingAddress"`
	ShippingMethod  string            `json:"shippingMethod,omitempty"`
	PaymentMethod   string            `json:"paymentMethod,omitempty"`
	Subtotal        int64             `json:"subtotal"`
	Tax             int64             `json:"tax"`
	Shipping        int64             `json:"shipping"`
	Total           int64             `json:"total"`
	Status          string            `json:"status"`
	CreatedAt       string            `json:"createdAt"`
	Email           string            `json:"email,omitempty"`
}

func buildItemPayloads(items []domain.CartItem) []cartItemPayload {
	out := make([]cartItemPayload, 0, len(items))
	for _, item := range items {
		out = append(out, cartItemPayload{
			ID:        item.ID,
			ProductID: item.ProductID,
			Name:      item.Name,
			Price:     item.UnitPrice,
			Quantity:  item.Quantity,
			Image:     item.Image,
		})
	}
	return out
}

func buildCartSummaryPayload(summary domain.CartSummary) cartSummaryPayload {
	return cartSummaryPayload{
		Subtotal:          summary.Subtotal,
		Tax:               summary.Tax,
		Shipping:          summary.Shipping,
		Total:             summary.Total,
		SubtotalFormatted: domain.FormatMoney(summary.Subtotal),
		TotalFormatted:    domain.FormatMoney(summary.Total),
	}
}

func buildAddressPayload(addr domain.Address) addressPayload {
	return addressPayload{
		FirstName:  addr.FirstName,
		LastName:   addr.LastName,
		Address1:   addr.Address1,
		Address2:   addr.Address2,
		City:       addr.City,
		State:      addr.State,
		PostalCode: addr.PostalCode,
		Country:    addr.Country,
		Phone:      addr.Phone,
		Email:      addr.Email,
	}
}

func (p addressPayload) toDomain() domain.Address {
	return domain.Address{
		FirstName:  p.FirstName,
		LastName:   p.LastName,
		Address1:   p.Address1,
		Address2:   p.Address2,
		City:       p.City,
		State:      p.State,
		PostalCode: p.PostalCode,
		Country:    p.Country,
		Phone:      p.Phone,
		Email:      p.Email,
	}
}

func buildShippingOptionPayloads(options []domain.ShippingOption) []shippingOptionPayload {
	out := make([]shippingOptionPayload, 0, len(options))
	for _, opt := range options {
		out = append(out, shippingOptionPayload{
			ID:                opt.ID,
			Name:              opt.Name,
			Description:       opt.Description,
			Price:             opt.Price,
			EstimatedDelivery: opt.EstimatedDelivery,
		})
	}
	return out
}

func buildPaymentMethodPayloads(methods []domain.PaymentMethod) []paymentMethodPayload {
	out := make([]paymentMethodPayload, 0, len(methods))
	for _, method := range methods {
		out = append(out, paymentMethodPayload{
			ID:          method.ID,
			Type:        string(method.Type),
			Name:        method.Name,
			Description: method.Description,
		})
	}
	return out
}

func buildOrderPayload(order domain.Order) orderPayload {
	return orderPayload{
		ID:              order.ID,
		Items:           buildItemPayloads(order.Items),
		ShippingAddress: buildAddressPayload(order.ShippingAddress),
		BillingAddress:  buildAddressPayload(order.BillingAddress),
		ShippingMethod:  order.ShippingMethod.ID,
		PaymentMethod:   order.PaymentMethod,
		Subtotal:        order.Subtotal,
		Tax:             order.Tax,
		Shipping:        order.Shipping,
		Total:           order.Total,
		Status:          order.Status,
		CreatedAt:       order.CreatedAt.UTC().Format(time.RFC3339),
		Email:           order.Email,
	}
}
