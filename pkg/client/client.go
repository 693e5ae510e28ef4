// Package client is a typed REST client for the storefront API.
package client

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
	"sync"
	"time"

	"github.com/example/foodhall/pkg/models"
)

// APIError is a non-2xx response.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d: %s", e.Status, e.Message)
}

// IsSessionExpired reports whether err means the token is missing, expired or rejected.
func IsSessionExpired(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.Status == http.StatusUnauthorized || apiErr.Status == http.StatusForbidden
}

type Client struct {
	baseURL string
	http    *http.Client

	mu    sync.RWMutex
	token string
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 15 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) SetToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = token
}

func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := c.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode >= 300 {
		apiErr := &APIError{Status: resp.StatusCode}
		var eb struct {
			Message string `json:"message"`
		}
		if json.Unmarshal(data, &eb) == nil && eb.Message != "" {
			apiErr.Message = eb.Message
		} else {
			apiErr.Message = http.StatusText(resp.StatusCode)
		}
		return apiErr
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

type AuthResponse struct {
	Token string         `json:"token"`
	User  models.Profile `json:"user"`
}

// Register creates the account and keeps the returned token for later calls.
func (c *Client) Register(ctx context.Context, name, email, password string) (*AuthResponse, error) {
	var out AuthResponse
	err := c.do(ctx, http.MethodPost, "/api/user/register",
		map[string]string{"name": name, "email": email, "password": password}, &out)
	if err != nil {
		return nil, err
	}
	c.SetToken(out.Token)
	return &out, nil
}

func (c *Client) Login(ctx context.Context, email, password string) (*AuthResponse, error) {
	var out AuthResponse
	err := c.do(ctx, http.MethodPost, "/api/user/login",
		map[string]string{"email": email, "password": password}, &out)
	if err != nil {
		return nil, err
	}
	c.SetToken(out.Token)
	return &out, nil
}

func (c *Client) Me(ctx context.Context) (*models.Profile, error) {
	var out struct {
		User models.Profile `json:"user"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/user/me", nil, &out); err != nil {
		return nil, err
	}
	return &out.User, nil
}

func (c *Client) Menu(ctx context.Context) ([]models.Item, error) {
	var out struct {
		Data []models.Item `json:"data"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/items", nil, &out); err != nil {
		return nil, err
	}
	return out.Data, nil
}

func (c *Client) GetCart(ctx context.Context) ([]models.CartLine, error) {
	var out struct {
		CartItems []models.CartLine `json:"cartItems"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/cart", nil, &out); err != nil {
		return nil, err
	}
	return out.CartItems, nil
}

type cartLineResponse struct {
	CartItem models.CartLine `json:"cartItem"`
}

func (c *Client) AddToCart(ctx context.Context, itemID string, quantity int) (*models.CartLine, error) {
	var out cartLineResponse
	err := c.do(ctx, http.MethodPost, "/api/cart",
		map[string]interface{}{"itemId": itemID, "quantity": quantity}, &out)
	if err != nil {
		return nil, err
	}
	return &out.CartItem, nil
}

func (c *Client) UpdateCartItem(ctx context.Context, entryID string, quantity int) (*models.CartLine, error) {
	var out cartLineResponse
	err := c.do(ctx, http.MethodPut, "/api/cart/"+url.PathEscape(entryID),
		map[string]int{"quantity": quantity}, &out)
	if err != nil {
		return nil, err
	}
	return &out.CartItem, nil
}

func (c *Client) RemoveCartItem(ctx context.Context, entryID string) error {
	return c.do(ctx, http.MethodDelete, "/api/cart/"+url.PathEscape(entryID), nil, nil)
}

func (c *Client) ClearCart(ctx context.Context) (int64, error) {
	var out struct {
		Removed int64 `json:"removed"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/cart/clear", nil, &out); err != nil {
		return 0, err
	}
	return out.Removed, nil
}

type OrderLine struct {
	ItemID   string `json:"itemId"`
	Quantity int    `json:"quantity"`
}

type CheckoutRequest struct {
	FirstName     string               `json:"firstName"`
	LastName      string               `json:"lastName"`
	Phone         string               `json:"phone"`
	Email         string               `json:"email"`
	Address       string               `json:"address"`
	City          string               `json:"city"`
	Zipcode       string               `json:"zipcode"`
	PaymentMethod models.PaymentMethod `json:"paymentMethod"`
	Subtotal      float64              `json:"subtotal"`
	Tax           float64              `json:"tax"`
	Total         float64              `json:"total"`
	Items         []OrderLine          `json:"items"`
}

type CheckoutResponse struct {
	Order       models.Order `json:"order"`
	CheckoutURL *string      `json:"checkoutUrl"`
}

func (c *Client) CreateOrder(ctx context.Context, req CheckoutRequest) (*CheckoutResponse, error) {
	var out CheckoutResponse
	if err := c.do(ctx, http.MethodPost, "/api/orders", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ConfirmPayment(ctx context.Context, sessionID string) (*models.Order, error) {
	var out models.Order
	err := c.do(ctx, http.MethodPost, "/api/orders/confirm", map[string]string{"session_id": sessionID}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Orders(ctx context.Context) ([]models.Order, error) {
	var out []models.Order
	if err := c.do(ctx, http.MethodGet, "/api/orders", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}
