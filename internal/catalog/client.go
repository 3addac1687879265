package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"

	myErr "storefront-cart/internal/types/errors"
	"storefront-cart/internal/types/product"
)

// Catalog источник данных о товарах
//
//go:generate mockgen -source=client.go -destination=../mocks/mock_catalog.go -package=mocks
type Catalog interface {
	// GetByID товар по id, ErrNotFound если такого нет
	GetByID(ctx context.Context, productID string) (*product.Product, error)
	// List все товары каталога
	List(ctx context.Context) ([]product.Product, error)
}

// Client ходит в product-service
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
	Logger     *zap.SugaredLogger
}

func NewClient(baseURL string, httpClient *http.Client, logger *zap.SugaredLogger) *Client {
	return &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		HTTPClient: httpClient,
		Logger:     logger,
	}
}

// GetByID GET /products/{id}
func (c *Client) GetByID(ctx context.Context, productID string) (*product.Product, error) {
	if productID == "" {
		return nil, myErr.ErrBadID
	}

	var p product.Product
	if err := c.getJSON(ctx, "/products/"+url.PathEscape(productID), &p); err != nil {
		return nil, err
	}
	if p.ID == "" {
		p.ID = productID
	}

	return &p, nil
}

// List GET /products. product-service отвечает 404 на пустой каталог
func (c *Client) List(ctx context.Context) ([]product.Product, error) {
	var products []product.Product
	err := c.getJSON(ctx, "/products", &products)
	if err != nil {
		if errors.Is(err, myErr.ErrNotFound) {
			return []product.Product{}, nil
		}
		return nil, err
	}

	return products, nil
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+path, nil)
	if err != nil {
		return err
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		c.Logger.Errorf("product service unreachable: %v", err)
		return fmt.Errorf("%w: %v", myErr.ErrUpstream, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return myErr.ErrNotFound
	default:
		return fmt.Errorf("%w: product service returned %d", myErr.ErrUpstream, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		c.Logger.Warnw("failed to decode product service response", "path", path, "err", err)
		return fmt.Errorf("%w: %v", myErr.ErrUpstream, err)
	}

	return nil
}
