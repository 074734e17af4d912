// Package gateway is the HTTP client for the remote commerce backend. Every
// call carries a bounded timeout, reads that have documented fallbacks run
// behind circuit breakers, and a 401 from any endpoint clears the stored
// bearer token.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/quickshop/storefront/internal/domain"
)

const (
	defaultCallTimeout = 5 * time.Second
	maxResponseBody    = 1 << 20
)

var (
	// ErrUnauthorized indicates the backend rejected the bearer token.
	ErrUnauthorized = errors.New("gateway: unauthorized")
	// ErrUnavailable indicates the backend could not be reached or the circuit
	// breaker is open.
	ErrUnavailable = errors.New("gateway: backend unavailable")
	// ErrNotFound indicates the requested resource does not exist remotely.
	ErrNotFound = errors.New("gateway: not found")

	errBaseURLRequired = errors.New("gateway: base URL is required")
)

// RemoteError carries the backend's error envelope for non-2xx responses that
// are not covered by a sentinel.
type RemoteError struct {
	Status  int
	Code    string
	Message string
}

// Error implements the error interface.
func (e *RemoteError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("gateway: backend returned %d (%s): %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("gateway: backend returned %d: %s", e.Status, e.Message)
}

// ClientDeps wires the configuration for the backend client.
type ClientDeps struct {
	BaseURL     string
	Tokens      *TokenStore
	HTTPClient  *http.Client
	CallTimeout time.Duration
	Logger      func(ctx context.Context, event string, fields map[string]any)
}

// Client talks to the remote commerce REST API.
type Client struct {
	baseURL string
	tokens  *TokenStore
	http    *http.Client
	timeout time.Duration
	logger  func(ctx context.Context, event string, fields map[string]any)

	shippingOptionsCB *gobreaker.CircuitBreaker[[]domain.ShippingOption]
	shippingCostCB    *gobreaker.CircuitBreaker[int64]
	paymentMethodsCB  *gobreaker.CircuitBreaker[[]domain.PaymentMethod]
}

// NewClient constructs the backend client, instrumenting the transport and
// installing one circuit breaker per fallback-bearing read.
func NewClient(deps ClientDeps) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(deps.BaseURL), "/")
	if base == "" {
		return nil, errBaseURLRequired
	}
	if _, err := url.Parse(base); err != nil {
		return nil, fmt.Errorf("gateway: invalid base URL: %w", err)
	}

	timeout := deps.CallTimeout
	if timeout <= 0 {
		timeout = defaultCallTimeout
	}

	httpClient := deps.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		}
	}

	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	tokens := deps.Tokens
	if tokens == nil {
		tokens = NewTokenStore()
	}

	c := &Client{
		baseURL: base,
		tokens:  tokens,
		http:    httpClient,
		timeout: timeout,
		logger:  logger,
	}
	c.shippingOptionsCB = gobreaker.NewCircuitBreaker[[]domain.ShippingOption](breakerSettings("shipping-options"))
	c.shippingCostCB = gobreaker.NewCircuitBreaker[int64](breakerSettings("shipping-calculate"))
	c.paymentMethodsCB = gobreaker.NewCircuitBreaker[[]domain.PaymentMethod](breakerSettings("payment-methods"))
	return c, nil
}

func breakerSettings(name string) gobreaker.Settings {
	return gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
	}
}

// Tokens exposes the token store so callers can seed or drop credentials.
func (c *Client) Tokens() *TokenStore { return c.tokens }

type credentialsRequest struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"firstName,omitempty"`
	LastName  string `json:"lastName,omitempty"`
}

type authResponse struct {
	Token string `json:"token"`
}

// Login exchanges credentials for a bearer token and stores it.
func (c *Client) Login(ctx context.Context, email, password string) error {
	var resp authResponse
	err := c.doJSON(ctx, http.MethodPost, "/auth/login", credentialsRequest{Email: email, Password: password}, &resp)
	if err != nil {
		return err
	}
	c.tokens.Set(resp.Token)
	return nil
}

// Register creates an account and stores the returned token when present.
func (c *Client) Register(ctx context.Context, email, password, firstName, lastName string) error {
	var resp authResponse
	err := c.doJSON(ctx, http.MethodPost, "/auth/register", credentialsRequest{
		Email:     email,
		Password:  password,
		FirstName: firstName,
		LastName:  lastName,
	}, &resp)
	if err != nil {
		return err
	}
	if strings.TrimSpace(resp.Token) != "" {
		c.tokens.Set(resp.Token)
	}
	return nil
}

type cartItemPayload struct {
	ID        string `json:"id"`
	ProductID string `json:"productId"`
	Name      string `json:"name"`
	Price     int64  `json:"price"`
	Quantity  int    `json:"quantity"`
	Image     string `json:"image,omitempty"`
}

type cartResponse struct {
	Items []cartItemPayload `json:"items"`
}

// FetchCart loads the persisted cart for the session.
func (c *Client) FetchCart(ctx context.Context) ([]domain.CartItem, error) {
	var resp cartResponse
	if err := c.doJSON(ctx, http.MethodGet, "/cart", nil, &resp); err != nil {
		return nil, err
	}
	items := make([]domain.CartItem, 0, len(resp.Items))
	for _, item := range resp.Items {
		items = append(items, domain.CartItem{
			ID:        item.ID,
			ProductID: item.ProductID,
			Name:      item.Name,
			UnitPrice: item.Price,
			Quantity:  item.Quantity,
			Image:     item.Image,
		})
	}
	return items, nil
}

// SyncAddItem mirrors a local add-to-cart onto the backend.
func (c *Client) SyncAddItem(ctx context.Context, item domain.CartItem) error {
	payload := cartItemPayload{
		ID:        item.ID,
		ProductID: item.ProductID,
		Name:      item.Name,
		Price:     item.UnitPrice,
		Quantity:  item.Quantity,
		Image:     item.Image,
	}
	return c.doJSON(ctx, http.MethodPost, "/cart", payload, nil)
}

// SyncUpdateItem mirrors a local quantity change onto the backend.
func (c *Client) SyncUpdateItem(ctx context.Context, itemID string, quantity int) error {
	path := "/cart/" + url.PathEscape(itemID)
	return c.doJSON(ctx, http.MethodPut, path, map[string]int{"quantity": quantity}, nil)
}

// SyncRemoveItem mirrors a local removal onto the backend.
func (c *Client) SyncRemoveItem(ctx context.Context, itemID string) error {
	path := "/cart/" + url.PathEscape(itemID)
	return c.doJSON(ctx, http.MethodDelete, path, nil, nil)
}

// SyncClearCart empties the persisted cart.
func (c *Client) SyncClearCart(ctx context.Context) error {
	return c.doJSON(ctx, http.MethodDelete, "/cart", nil, nil)
}

type shippingOptionPayload struct {
	ID                string `json:"id"`
	Name              string `json:"name"`
	Description       string `json:"description"`
	Price             int64  `json:"price"`
	EstimatedDelivery string `json:"estimatedDelivery"`
}

// ShippingOptions lists the service levels the backend offers. Callers treat
// an error or an empty list as the cue to fall back to hardcoded options.
func (c *Client) ShippingOptions(ctx context.Context) ([]domain.ShippingOption, error) {
	return c.shippingOptionsCB.Execute(func() ([]domain.ShippingOption, error) {
		var payload []shippingOptionPayload
		if err := c.doJSON(ctx, http.MethodGet, "/shipping/options", nil, &payload); err != nil {
			return nil, err
		}
		options := make([]domain.ShippingOption, 0, len(payload))
		for _, opt := range payload {
			options = append(options, domain.ShippingOption{
				ID:                opt.ID,
				Name:              opt.Name,
				Description:       opt.Description,
				Price:             opt.Price,
				EstimatedDelivery: opt.EstimatedDelivery,
			})
		}
		return options, nil
	})
}

type calculateShippingRequest struct {
	Address          addressPayload    `json:"address"`
	Items            []cartItemPayload `json:"items"`
	ShippingOptionID string            `json:"shippingOptionId"`
}

type calculateShippingResponse struct {
	ShippingCost int64 `json:"shippingCost"`
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

// CalculateShipping asks the backend to price a shipping option for the given
// address and items. On failure callers fall back to the option's flat price.
func (c *Client) CalculateShipping(ctx context.Context, addr domain.Address, items []domain.CartItem, optionID string) (int64, error) {
	return c.shippingCostCB.Execute(func() (int64, error) {
		req := calculateShippingRequest{
			Address:          buildAddressPayload(addr),
			ShippingOptionID: optionID,
			Items:            make([]cartItemPayload, 0, len(items)),
		}
		for _, item := range items {
			req.Items = append(req.Items, cartItemPayload{
				ID:        item.ID,
				ProductID: item.ProductID,
				Name:      item.Name,
				Price:     item.UnitPrice,
				Quantity:  item.Quantity,
			})
		}
		var resp calculateShippingResponse
		if err := c.doJSON(ctx, http.MethodPost, "/shipping/calculate", req, &resp); err != nil {
			return 0, err
		}
		if resp.ShippingCost < 0 {
			return 0, &RemoteError{Status: http.StatusOK, Message: "negative shipping cost"}
		}
		return resp.ShippingCost, nil
	})
}

type paymentMethodPayload struct {
	ID          string `json:"id"`
	Type        string `json:"type"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// PaymentMethods lists the payment instruments the backend accepts. Callers
// treat an error or an empty list as the cue to fall back to the hardcoded
// pair.
func (c *Client) PaymentMethods(ctx context.Context) ([]domain.PaymentMethod, error) {
	return c.paymentMethodsCB.Execute(func() ([]domain.PaymentMethod, error) {
		var payload []paymentMethodPayload
		if err := c.doJSON(ctx, http.MethodGet, "/payment/methods", nil, &payload); err != nil {
			return nil, err
		}
		methods := make([]domain.PaymentMethod, 0, len(payload))
		for _, m := range payload {
			methods = append(methods, domain.PaymentMethod{
				ID:          m.ID,
				Type:        domain.PaymentMethodType(m.Type),
				Name:        m.Name,
				Description: m.Description,
			})
		}
		return methods, nil
	})
}

type paymentIntentRequest struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

type paymentIntentResponse struct {
	ID string `json:"id"`
}

// CreatePaymentIntent registers a payment authorization for the given amount.
func (c *Client) CreatePaymentIntent(ctx context.Context, amount int64, currency string) (string, error) {
	var resp paymentIntentResponse
	err := c.doJSON(ctx, http.MethodPost, "/payment/create-intent", paymentIntentRequest{
		Amount:   amount,
		Currency: currency,
	}, &resp)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(resp.ID), nil
}

type orderPayload struct {
	ID              string                `json:"id,omitempty"`
	OrderNumber     string                `json:"orderNumber,omitempty"`
	Items           []cartItemPayload     `json:"items"`
	ShippingAddress addressPayload        `json:"shippingAddress"`
	BillingAddress  addressPayload        `json:"billingAddress"`
	ShippingMethod  shippingOptionPayload `json:"shippingMethod"`
	PaymentMethod   string                `json:"paymentMethod"`
	Subtotal        int64                 `json:"subtotal"`
	Tax             int64                 `json:"tax"`
	Shipping        int64                 `json:"shipping"`
	Total           int64                 `json:"total"`
	Status          string                `json:"status"`
	CreatedAt       string                `json:"createdAt"`
	Email           string                `json:"email"`
}

type createOrderResponse struct {
	Order orderPayload `json:"order"`
}

// CreateOrder submits the order snapshot and returns the server-issued
// identifier. An empty identifier with a nil error means the backend accepted
// the order but minted no usable ID; callers substitute a local token.
func (c *Client) CreateOrder(ctx context.Context, order domain.Order) (string, error) {
	payload := buildOrderPayload(order)
	var resp createOrderResponse
	if err := c.doJSON(ctx, http.MethodPost, "/orders", payload, &resp); err != nil {
		return "", err
	}
	id := strings.TrimSpace(resp.Order.OrderNumber)
	if id == "" {
		id = strings.TrimSpace(resp.Order.ID)
	}
	return id, nil
}

// Orders lists the shopper's order history.
func (c *Client) Orders(ctx context.Context) ([]domain.Order, error) {
	var payload []orderPayload
	if err := c.doJSON(ctx, http.MethodGet, "/orders", nil, &payload); err != nil {
		return nil, err
	}
	orders := make([]domain.Order, 0, len(payload))
	for _, p := range payload {
		orders = append(orders, orderFromPayload(p))
	}
	return orders, nil
}

// OrderByID fetches one order.
func (c *Client) OrderByID(ctx context.Context, orderID string) (domain.Order, error) {
	var payload orderPayload
	path := "/orders/" + url.PathEscape(orderID)
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &payload); err != nil {
		return domain.Order{}, err
	}
	return orderFromPayload(payload), nil
}

func buildOrderPayload(order domain.Order) orderPayload {
	items := make([]cartItemPayload, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, cartItemPayload{
			ID:        item.ID,
			ProductID: item.ProductID,
			Name:      item.Name,
			Price:     item.UnitPrice,
			Quantity:  item.Quantity,
			Image:     item.Image,
		})
	}
	return orderPayload{
		OrderNumber:     order.ID,
		Items:           items,
		ShippingAddress: buildAddressPayload(order.ShippingAddress),
		BillingAddress:  buildAddressPayload(order.BillingAddress),
		ShippingMethod: shippingOptionPayload{
			ID:                order.ShippingMethod.ID,
			Name:              order.ShippingMethod.Name,
			Description:       order.ShippingMethod.Description,
			Price:             order.ShippingMethod.Price,
			EstimatedDelivery: order.ShippingMethod.EstimatedDelivery,
		},
		PaymentMethod: order.PaymentMethod,
		Subtotal:      order.Subtotal,
		Tax:           order.Tax,
		Shipping:      order.Shipping,
		Total:         order.Total,
		Status:        order.Status,
		CreatedAt:     order.CreatedAt.UTC().Format(time.RFC3339),
		Email:         order.Email,
	}
}

func orderFromPayload(p orderPayload) domain.Order {
	items := make([]domain.CartItem, 0, len(p.Items))
	for _, item := range p.Items {
		items = append(items, domain.CartItem{
			ID:        item.ID,
			ProductID: item.ProductID,
			Name:      item.Name,
			UnitPrice: item.Price,
			Quantity:  item.Quantity,
			Image:     item.Image,
		})
	}
	id := strings.TrimSpace(p.OrderNumber)
	if id == "" {
		id = strings.TrimSpace(p.ID)
	}
	createdAt, _ := time.Parse(time.RFC3339, p.CreatedAt)
	return domain.Order{
		ID:    id,
		Items: items,
		ShippingAddress: domain.Address{
			FirstName:  p.ShippingAddress.FirstName,
			LastName:   p.ShippingAddress.LastName,
			Address1:   p.ShippingAddress.Address1,
			Address2:   p.ShippingAddress.Address2,
			City:       p.ShippingAddress.City,
			State:      p.ShippingAddress.State,
			PostalCode: p.ShippingAddress.PostalCode,
			Country:    p.ShippingAddress.Country,
			Phone:      p.ShippingAddress.Phone,
			Email:      p.ShippingAddress.Email,
		},
		ShippingMethod: domain.ShippingOption{
			ID:                p.ShippingMethod.ID,
			Name:              p.ShippingMethod.Name,
			Description:       p.ShippingMethod.Description,
			Price:             p.ShippingMethod.Price,
			EstimatedDelivery: p.ShippingMethod.EstimatedDelivery,
		},
		PaymentMethod: p.PaymentMethod,
		Subtotal:      p.Subtotal,
		Tax:           p.Tax,
		Shipping:      p.Shipping,
		Total:         p.Total,
		Status:        p.Status,
		CreatedAt:     createdAt,
		Email:         p.Email,
	}
}

func (c *Client) doJSON(ctx context.Context, method, path string, body any, out any) error {
	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("gateway: encode request: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(callCtx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("gateway: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token, ok := c.tokens.Token(); ok {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger(ctx, "gateway.request_failed", map[string]any{
			"method": method,
			"path":   path,
			"error":  err.Error(),
		})
		return fmt.Errorf("%w: %s %s", ErrUnavailable, method, path)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return fmt.Errorf("%w: reading response for %s %s", ErrUnavailable, method, path)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		c.tokens.Clear()
		return ErrUnauthorized
	case resp.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case resp.StatusCode >= 500:
		c.logger(ctx, "gateway.server_error", map[string]any{
			"method": method,
			"path":   path,
			"status": resp.StatusCode,
		})
		return fmt.Errorf("%w: %s %s returned %d", ErrUnavailable, method, path, resp.StatusCode)
	case resp.StatusCode >= 400:
		return decodeRemoteError(resp.StatusCode, payload)
	}

	if out == nil || len(bytes.TrimSpace(payload)) == 0 {
		return nil
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return fmt.Errorf("gateway: decode response for %s %s: %w", method, path, err)
	}
	return nil
}

func decodeRemoteError(status int, payload []byte) error {
	envelope := struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}{}
	if err := json.Unmarshal(payload, &envelope); err != nil || (envelope.Error == "" && envelope.Message == "") {
		return &RemoteError{Status: status, Message: http.StatusText(status)}
	}
	message := envelope.Message
	if message == "" {
		message = envelope.Error
	}
	return &RemoteError{Status: status, Code: envelope.Error, Message: message}
}
