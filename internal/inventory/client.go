package inventory

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	myErr "storefront-cart/internal/types/errors"
)

var lookupsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "inventory_lookups_total",
		Help: "Inventory stock lookups by result",
	},
	[]string{"result"},
)

func init() {
	prometheus.MustRegister(lookupsTotal)
}

// ответ inventory-service выглядит как "Stock disponible: 5"
var trailingInt = regexp.MustCompile(`(-?\d+)\s*$`)

const maxBodySize = 4 << 10

// Client ходит в inventory-service за остатками
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

// Stock GET /inventory?product_id=ID
func (c *Client) Stock(ctx context.Context, productID string) (int, error) {
	u := c.BaseURL + "/inventory?" + url.Values{"product_id": {productID}}.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return 0, err
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		lookupsTotal.WithLabelValues("unreachable").Inc()
		return 0, fmt.Errorf("%w: %v", myErr.ErrUpstream, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		lookupsTotal.WithLabelValues("unreachable").Inc()
		return 0, fmt.Errorf("%w: %v", myErr.ErrUpstream, err)
	}

	if resp.StatusCode != http.StatusOK {
		lookupsTotal.WithLabelValues("status_" + strconv.Itoa(resp.StatusCode)).Inc()
		if resp.StatusCode == http.StatusNotFound {
			return 0, myErr.ErrNotFound
		}
		return 0, fmt.Errorf("%w: inventory returned %d", myErr.ErrUpstream, resp.StatusCode)
	}

	stock, err := ParseStock(body)
	if err != nil {
		lookupsTotal.WithLabelValues("unparseable").Inc()
		c.Logger.Warnf("unparseable stock for product %s: %q", productID, string(body))
		return 0, err
	}

	lookupsTotal.WithLabelValues("ok").Inc()
	return stock, nil
}

// ParseStock понимает "Stock disponible: N", голое число и {"stock": N}
func ParseStock(body []byte) (int, error) {
	text := strings.TrimSpace(string(body))
	if text == "" {
		return 0, myErr.ErrBadStockValue
	}

	if strings.HasPrefix(text, "{") {
		var payload struct {
			Stock *int `json:"stock"`
		}
		if err := json.Unmarshal([]byte(text), &payload); err != nil || payload.Stock == nil {
			return 0, myErr.ErrBadStockValue
		}
		return *payload.Stock, nil
	}

	m := trailingInt.FindStringSubmatch(text)
	if m == nil {
		return 0, myErr.ErrBadStockValue
	}

	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, myErr.ErrBadStockValue
	}
	return n, nil
}
