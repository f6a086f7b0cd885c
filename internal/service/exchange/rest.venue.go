package exchange

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/krobus00/order-entry/internal/config"
	"github.com/krobus00/order-entry/internal/entity"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

const (
	defaultRecvWindow   = int64(5000)
	defaultVenueTimeout = 15 * time.Second

	spotOrderPath    = "/open/v1/orders/spot"
	perpOrderPath    = "/open/v1/orders/perp"
	triggerOrderPath = "/open/v1/orders/trigger"
)

var clientIDPattern = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

// RestVenue places orders through the venue's signed REST API.
type RestVenue struct {
	apiKey     string
	apiSecret  string
	baseURL    string
	recvWindow int64
	httpClient *http.Client
	limiter    *rate.Limiter
	now        func() time.Time
}

type venueResponse struct {
	Code      int             `json:"code"`
	Msg       string          `json:"msg"`
	Message   string          `json:"message"`
	Success   *bool           `json:"success"`
	Timestamp int64           `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

type placeOrderData struct {
	OrderID string `json:"orderId"`
	TxID    string `json:"txid"`
}

func NewRestVenue(cfg config.VenueConfig) (*RestVenue, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	apiSecret := strings.TrimSpace(cfg.APISecret)
	if apiKey == "" || apiSecret == "" {
		return nil, errors.New("venue credentials are missing in config")
	}

	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, errors.New("venue base_url is missing in config")
	}

	recvWindow := cfg.RecvWindow
	if recvWindow <= 0 || recvWindow > 60000 {
		recvWindow = defaultRecvWindow
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultVenueTimeout
	}

	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.RequestsPerSecond > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}

	return &RestVenue{
		apiKey:     apiKey,
		apiSecret:  apiSecret,
		baseURL:    baseURL,
		recvWindow: recvWindow,
		httpClient: &http.Client{Timeout: timeout},
		limiter:    limiter,
		now:        time.Now,
	}, nil
}

func (v *RestVenue) PlaceSpotOrder(ctx context.Context, req entity.SpotOrderRequest) (string, error) {
	pairs, err := v.orderPairs(req.PlacementOrder)
	if err != nil {
		return "", err
	}

	return v.placeOrder(ctx, spotOrderPath, req.PlacementOrder, pairs)
}

func (v *RestVenue) PlacePerpOrder(ctx context.Context, req entity.PerpOrderRequest) (string, error) {
	pairs, err := v.orderPairs(req.PlacementOrder)
	if err != nil {
		return "", err
	}

	pairs = append(pairs,
		"bookSide="+url.QueryEscape(req.BookSideRef),
		"reduceOnly="+strconv.FormatBool(req.ReduceOnly),
		"orderTime="+strconv.FormatInt(req.Timestamp.UnixMilli(), 10),
	)

	return v.placeOrder(ctx, perpOrderPath, req.PlacementOrder, pairs)
}

func (v *RestVenue) PlaceTriggerOrder(ctx context.Context, req entity.TriggerOrderRequest) (string, error) {
	pairs, err := v.orderPairs(req.PlacementOrder)
	if err != nil {
		return "", err
	}

	pairs = append(pairs,
		"triggerCondition="+string(req.TriggerCondition),
		"triggerPrice="+req.TriggerPrice.String(),
	)

	return v.placeOrder(ctx, triggerOrderPath, req.PlacementOrder, pairs)
}

func (v *RestVenue) orderPairs(order entity.PlacementOrder) ([]string, error) {
	quantity := order.Size.Truncate(order.Instrument.SizeDecimalCount())
	if !quantity.GreaterThan(decimal.Zero) {
		return nil, fmt.Errorf("order quantity becomes zero after normalization: quantity=%s", order.Size.String())
	}
	if !order.Price.GreaterThan(decimal.Zero) {
		return nil, fmt.Errorf("order price must be positive: price=%s", order.Price.String())
	}

	pairs := []string{
		"symbol=" + url.QueryEscape(order.Instrument.Symbol),
		"side=" + string(order.Side),
		"price=" + order.Price.String(),
		"quantity=" + quantity.String(),
		"orderType=" + string(order.Qualifier),
		"account=" + url.QueryEscape(order.AccountID),
		"signer=" + url.QueryEscape(order.Signer),
	}

	if strings.TrimSpace(order.SubmissionID) != "" {
		clientID, err := normalizeClientID(order.SubmissionID)
		if err != nil {
			return nil, err
		}

		pairs = append(pairs, "clientId="+clientID)
	}

	return pairs, nil
}

func (v *RestVenue) placeOrder(ctx context.Context, path string, order entity.PlacementOrder, pairs []string) (string, error) {
	if err := v.limiter.Wait(ctx); err != nil {
		return "", err
	}

	pairs = append(pairs,
		"timestamp="+strconv.FormatInt(v.now().UnixMilli(), 10),
		"recvWindow="+strconv.FormatInt(v.recvWindow, 10),
	)

	payload := strings.Join(pairs, "&")
	bodyPayload := payload + "&signature=" + hmacSHA256Hex(v.apiSecret, payload)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.baseURL+path, strings.NewReader(bodyPayload))
	if err != nil {
		return "", err
	}

	req.Header.Set("X-MBX-APIKEY", v.apiKey)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := v.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}

	var apiResp venueResponse
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return "", fmt.Errorf("venue order parse failed: status=%d body=%s", resp.StatusCode, string(body))
	}

	var data placeOrderData
	if len(apiResp.Data) > 0 && string(apiResp.Data) != "null" {
		if err := json.Unmarshal(apiResp.Data, &data); err != nil {
			return "", fmt.Errorf("venue order data parse failed: %w", err)
		}
	}

	if resp.StatusCode >= http.StatusBadRequest || apiResp.Code != 0 || (apiResp.Success != nil && !*apiResp.Success) {
		errMsg := apiResp.Message
		if errMsg == "" {
			errMsg = apiResp.Msg
		}
		if errMsg == "" {
			errMsg = "unknown error"
		}

		logrus.Infof("venue order rejected: status=%d code=%d message=%s", resp.StatusCode, apiResp.Code, errMsg)

		return "", &entity.PlacementError{Message: errMsg, TxID: data.TxID}
	}

	txID := data.TxID
	if txID == "" {
		txID = data.OrderID
	}
	if txID == "" {
		return "", fmt.Errorf("venue order accepted without transaction id: body=%s", string(body))
	}

	logrus.WithFields(logrus.Fields{
		"path":     path,
		"symbol":   order.Instrument.Symbol,
		"side":     order.Side,
		"price":    order.Price.String(),
		"quantity": order.Size.String(),
		"txid":     txID,
	}).Info("venue order placed")

	return txID, nil
}

func normalizeClientID(raw string) (string, error) {
	normalized := strings.TrimSpace(raw)
	normalized = strings.ReplaceAll(normalized, "-", "")

	if normalized == "" {
		return "", errors.New("clientId is empty")
	}

	if len(normalized) > 32 {
		normalized = normalized[:32]
	}

	if !clientIDPattern.MatchString(normalized) {
		return "", errors.New("clientId contains unsupported characters")
	}

	return normalized, nil
}

func hmacSHA256Hex(secret, payload string) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write([]byte(payload))
	return fmt.Sprintf("%x", h.Sum(nil))
}
