package gateway

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/md5"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gaiypov/rabota360-billing/common"
)

const alfabankDefaultAPIURL = "https://payment.alfabank.ru/payment/rest"

type AlfabankConfig struct {
	Username string
	Password string
	// WebhookSecret signs callback notifications. It is a separate
	// credential from the API password.
	WebhookSecret string
	APIURL        string
	Timeout       time.Duration
}

// Alfabank talks to the Alfabank e-commerce REST API. Requests are
// form-encoded with credentials in every call; responses are JSON. Callbacks
// carry an uppercase hex MD5 checksum over "orderNumber;status;secret".
type Alfabank struct {
	cfg    AlfabankConfig
	client *http.Client
}

func NewAlfabank(cfg AlfabankConfig) *Alfabank {
	if cfg.APIURL == "" {
		cfg.APIURL = alfabankDefaultAPIURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Alfabank{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

func (a *Alfabank) Name() string {
	return common.GatewayAlfabank
}

// Alfabank order states as reported by getOrderStatusExtended.do.
const (
	alfabankOrderRegistered = 0
	alfabankOrderHeld       = 1
	alfabankOrderDeposited  = 2
	alfabankOrderReversed   = 3
	alfabankOrderRefunded   = 4
	alfabankOrderACSAuth    = 5
	alfabankOrderDeclined   = 6
)

type alfabankResponse struct {
	OrderId      string      `json:"orderId"`
	FormUrl      string      `json:"formUrl"`
	OrderNumber  string      `json:"orderNumber"`
	OrderStatus  int         `json:"orderStatus"`
	Amount       json.Number `json:"amount"`
	ErrorCode    json.Number `json:"errorCode"`
	ErrorMessage string      `json:"errorMessage"`
}

func (a *Alfabank) Initiate(ctx context.Context, params InitiateParams) (*InitiateResult, error) {
	form := url.Values{}
	form.Set("orderNumber", params.OrderID)
	form.Set("amount", strconv.FormatInt(params.Amount, 10))
	form.Set("description", params.Description)
	form.Set("returnUrl", params.ReturnURL)
	if params.Email != "" {
		form.Set("email", params.Email)
	}
	if params.Phone != "" {
		form.Set("phone", params.Phone)
	}
	resp, err := a.call(ctx, "/register.do", form)
	if err != nil {
		return nil, err
	}
	return &InitiateResult{
		ExternalID: resp.OrderId,
		PaymentURL: resp.FormUrl,
	}, nil
}

func (a *Alfabank) QueryStatus(ctx context.Context, externalID string) (*Status, error) {
	form := url.Values{}
	form.Set("orderId", externalID)
	resp, err := a.call(ctx, "/getOrderStatusExtended.do", form)
	if err != nil {
		return nil, err
	}
	amount, _ := resp.Amount.Int64()
	return &Status{
		State:  alfabankState(resp.OrderStatus),
		Amount: amount,
	}, nil
}

func (a *Alfabank) Cancel(ctx context.Context, externalID string) error {
	form := url.Values{}
	form.Set("orderId", externalID)
	_, err := a.call(ctx, "/reverse.do", form)
	return err
}

func (a *Alfabank) Refund(ctx context.Context, externalID string, amount int64) error {
	form := url.Values{}
	form.Set("orderId", externalID)
	form.Set("amount", strconv.FormatInt(amount, 10))
	_, err := a.call(ctx, "/refund.do", form)
	return err
}

type alfabankCallback struct {
	OrderNumber string      `json:"orderNumber"`
	MdOrder     string      `json:"mdOrder"`
	Status      int         `json:"status"`
	Amount      json.Number `json:"amount"`
	Checksum    string      `json:"checksum"`
}

func (a *Alfabank) ParseWebhook(payload []byte) (*WebhookEvent, error) {
	var cb alfabankCallback
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.UseNumber()
	if err := dec.Decode(&cb); err != nil {
		return nil, fmt.Errorf("malformed alfabank webhook payload: %w", err)
	}
	if cb.Checksum == "" {
		return nil, ErrBadSignature
	}
	expected := a.checksum(cb.OrderNumber, cb.Status)
	if !hmac.Equal([]byte(strings.ToUpper(cb.Checksum)), []byte(expected)) {
		return nil, ErrBadSignature
	}

	amount, _ := cb.Amount.Int64()
	event := &WebhookEvent{
		OrderID:    cb.OrderNumber,
		ExternalID: cb.MdOrder,
		Amount:     amount,
	}
	switch cb.Status {
	case 1:
		event.State = StatePaid
	case 2:
		event.State = StateCancelled
	default:
		event.State = StatePending
	}
	return event, nil
}

func (a *Alfabank) checksum(orderNumber string, status int) string {
	sum := md5.Sum([]byte(fmt.Sprintf("%s;%d;%s", orderNumber, status, a.cfg.WebhookSecret)))
	return strings.ToUpper(fmt.Sprintf("%x", sum))
}

func alfabankState(orderStatus int) string {
	switch orderStatus {
	case alfabankOrderDeposited:
		return StatePaid
	case alfabankOrderReversed, alfabankOrderRefunded:
		return StateCancelled
	case alfabankOrderDeclined:
		return StateRejected
	default:
		return StatePending
	}
}

func (a *Alfabank) call(ctx context.Context, path string, form url.Values) (*alfabankResponse, error) {
	form.Set("userName", a.cfg.Username)
	form.Set("password", a.cfg.Password)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.APIURL+path, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("alfabank api returned HTTP %d", resp.StatusCode)
	}

	var out alfabankResponse
	dec := json.NewDecoder(resp.Body)
	dec.UseNumber()
	if err := dec.Decode(&out); err != nil {
		return nil, err
	}
	// errorCode "0" or absent means success.
	if code := out.ErrorCode.String(); code != "" && code != "0" {
		return nil, &Error{Gateway: a.Name(), Code: code, Message: out.ErrorMessage}
	}
	return &out, nil
}
