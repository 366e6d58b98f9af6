// Package carrier はCDEK APIのクライアント。
// 料金見積もり、受取ポイント一覧、支払い済み注文の登録を行う。
package carrier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"storefront/internal/domain/model"
	"storefront/internal/usecase"
)

const (
	defaultBaseURL    = "https://api.cdek.ru"
	defaultTariffCode = 136
	maxPickupPoints   = 50
)

type CDEKConfig struct {
	BaseURL         string
	ClientID        string
	ClientSecret    string
	FromCityCode    int64
	TariffCode      int
	Currency        string
	ItemWeightGrams int64 // 注文登録時の1個あたりの重さ
}

type CDEKClient struct {
	cfg        CDEKConfig
	httpClient *http.Client

	mu          sync.Mutex
	token       string
	tokenExpiry time.Time
	now         func() time.Time
}

func NewCDEKClient(cfg CDEKConfig) *CDEKClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.TariffCode == 0 {
		cfg.TariffCode = defaultTariffCode
	}
	if cfg.ItemWeightGrams <= 0 {
		cfg.ItemWeightGrams = 500
	}
	return &CDEKClient{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		now:        time.Now,
	}
}

// ---- CDEK API request/response structs ----

type cdekTokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
}

type cdekLocation struct {
	Code    int64  `json:"code,omitempty"`
	Address string `json:"address,omitempty"`
}

type cdekPackageItem struct {
	Name    string      `json:"name"`
	WareKey string      `json:"ware_key"`
	Payment cdekPayment `json:"payment"`
	Cost    int64       `json:"cost"`
	Weight  int64       `json:"weight"`
	Amount  int64       `json:"amount"`
}

type cdekPayment struct {
	Value int64 `json:"value"`
}

type cdekPackage struct {
	Number string            `json:"number,omitempty"`
	Weight int64             `json:"weight"`
	Items  []cdekPackageItem `json:"items,omitempty"`
}

type cdekTariffRequest struct {
	TariffCode   int           `json:"tariff_code"`
	FromLocation cdekLocation  `json:"from_location"`
	ToLocation   cdekLocation  `json:"to_location"`
	Packages     []cdekPackage `json:"packages"`
}

type cdekAPIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type cdekTariffResponse struct {
	DeliverySum float64        `json:"delivery_sum"`
	PeriodMin   int            `json:"period_min"`
	PeriodMax   int            `json:"period_max"`
	Currency    string         `json:"currency"`
	Errors      []cdekAPIError `json:"errors"`
}

type cdekDeliveryPoint struct {
	Code     string `json:"code"`
	Name     string `json:"name"`
	Location struct {
		Address     string `json:"address"`
		AddressFull string `json:"address_full"`
	} `json:"location"`
}

type cdekPhone struct {
	Number string `json:"number"`
}

type cdekRecipient struct {
	Name   string      `json:"name"`
	Email  string      `json:"email,omitempty"`
	Phones []cdekPhone `json:"phones"`
}

type cdekOrderRequest struct {
	Number       string        `json:"number"`
	TariffCode   int           `json:"tariff_code"`
	Recipient    cdekRecipient `json:"recipient"`
	FromLocation cdekLocation  `json:"from_location"`
	ToLocation   cdekLocation  `json:"to_location"`
	Packages     []cdekPackage `json:"packages"`
}

type cdekOrderResponse struct {
	Entity struct {
		UUID string `json:"uuid"`
	} `json:"entity"`
	Requests []struct {
		State  string         `json:"state"`
		Errors []cdekAPIError `json:"errors"`
	} `json:"requests"`
}

// ---- QuoteProvider ----

func (c *CDEKClient) Quote(ctx context.Context, req usecase.DeliveryQuoteRequest) (usecase.DeliveryQuote, error) {
	tariffReq := cdekTariffRequest{
		TariffCode:   c.cfg.TariffCode,
		FromLocation: cdekLocation{Code: c.cfg.FromCityCode},
		ToLocation:   cdekLocation{Code: req.CityCode},
		Packages:     []cdekPackage{{Weight: req.WeightGrams}},
	}

	var resp cdekTariffResponse
	if err := c.doRequest(ctx, http.MethodPost, "/v2/calculator/tariff", tariffReq, &resp); err != nil {
		return usecase.DeliveryQuote{}, fmt.Errorf("cdek tariff: %w", err)
	}
	if len(resp.Errors) > 0 {
		return usecase.DeliveryQuote{}, fmt.Errorf("cdek tariff: %s", resp.Errors[0].Message)
	}

	currency := resp.Currency
	if currency == "" {
		currency = c.cfg.Currency
	}
	q := usecase.DeliveryQuote{
		// 端数は切り上げ
		Price:        int64(math.Ceil(resp.DeliverySum)),
		Currency:     currency,
		PeriodMin:    resp.PeriodMin,
		PeriodMax:    resp.PeriodMax,
		WeightGrams:  req.WeightGrams,
		PickupPoints: []usecase.PickupPoint{},
	}

	if req.IncludePickupPoints {
		points, err := c.PickupPoints(ctx, req.CityCode)
		if err != nil {
			return usecase.DeliveryQuote{}, err
		}
		q.PickupPoints = points
	}
	return q, nil
}

func (c *CDEKClient) PickupPoints(ctx context.Context, cityCode int64) ([]usecase.PickupPoint, error) {
	path := "/v2/deliverypoints?" + url.Values{
		"city_code": {strconv.FormatInt(cityCode, 10)},
		"type":      {"PVZ"},
	}.Encode()

	var resp []cdekDeliveryPoint
	if err := c.doRequest(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, fmt.Errorf("cdek deliverypoints: %w", err)
	}

	points := make([]usecase.PickupPoint, 0, len(resp))
	for _, p := range resp {
		if len(points) == maxPickupPoints {
			break
		}
		addr := p.Location.Address
		if addr == "" {
			addr = p.Location.AddressFull
		}
		points = append(points, usecase.PickupPoint{Code: p.Code, Name: p.Name, Address: addr})
	}
	return points, nil
}

// ---- CarrierRegistrar ----

func (c *CDEKClient) RegisterOrder(ctx context.Context, order model.Order, items []model.OrderItem) (string, error) {
	if order.DeliveryCityCode == nil {
		return "", fmt.Errorf("cdek order %s: delivery city code missing", order.OrderNumber)
	}

	pkg := cdekPackage{Number: order.OrderNumber}
	for _, it := range items {
		pkg.Items = append(pkg.Items, cdekPackageItem{
			Name:    it.ProductNameSnapshot,
			WareKey: strconv.FormatInt(it.ProductID, 10),
			Payment: cdekPayment{Value: 0}, // 支払い済み
			Cost:    it.UnitPriceSnapshot,
			Weight:  c.cfg.ItemWeightGrams,
			Amount:  it.Quantity,
		})
		pkg.Weight += c.cfg.ItemWeightGrams * it.Quantity
	}

	recipient := cdekRecipient{
		Name:   order.CustomerName,
		Phones: []cdekPhone{{Number: order.CustomerPhone}},
	}
	if order.CustomerEmail != nil {
		recipient.Email = *order.CustomerEmail
	}

	to := cdekLocation{Code: *order.DeliveryCityCode}
	if order.DeliveryAddress != nil {
		to.Address = *order.DeliveryAddress
	}

	var resp cdekOrderResponse
	err := c.doRequest(ctx, http.MethodPost, "/v2/orders", cdekOrderRequest{
		Number:       order.OrderNumber,
		TariffCode:   c.cfg.TariffCode,
		Recipient:    recipient,
		FromLocation: cdekLocation{Code: c.cfg.FromCityCode},
		ToLocation:   to,
		Packages:     []cdekPackage{pkg},
	}, &resp)
	if err != nil {
		return "", fmt.Errorf("cdek order %s: %w", order.OrderNumber, err)
	}
	for _, r := range resp.Requests {
		if r.State == "INVALID" && len(r.Errors) > 0 {
			return "", fmt.Errorf("cdek order %s: %s", order.OrderNumber, r.Errors[0].Message)
		}
	}
	return resp.Entity.UUID, nil
}

// ---- HTTP ----

func (c *CDEKClient) accessToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" && c.now().Before(c.tokenExpiry) {
		return c.token, nil
	}

	form := url.Values{
		"grant_type":    {"client_credentials"},
		"client_id":     {c.cfg.ClientID},
		"client_secret": {c.cfg.ClientSecret},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/v2/oauth/token", strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("oauth: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return "", fmt.Errorf("oauth: status %d: %s", resp.StatusCode, string(body))
	}

	var tr cdekTokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return "", fmt.Errorf("oauth: decode: %w", err)
	}
	if tr.AccessToken == "" {
		return "", fmt.Errorf("oauth: empty token")
	}

	// 期限の少し前に取り直す
	ttl := time.Duration(tr.ExpiresIn) * time.Second
	if ttl > time.Minute {
		ttl -= time.Minute
	}
	c.token = tr.AccessToken
	c.tokenExpiry = c.now().Add(ttl)
	return c.token, nil
}

func (c *CDEKClient) doRequest(ctx context.Context, method, path string, body interface{}, out interface{}) error {
	token, err := c.accessToken(ctx)
	if err != nil {
		return err
	}

	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal: %w", err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return fmt.Errorf("read body: %w", err)
	}
	if resp.StatusCode == http.StatusUnauthorized {
		c.mu.Lock()
		c.token = ""
		c.mu.Unlock()
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("status %d: %s", resp.StatusCode, truncate(string(raw), 300))
	}

	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("decode: %w", err)
		}
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
