package gateway

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/gaiypov/rabota360-billing/common"
)

const tinkoffDefaultAPIURL = "https://securepay.tinkoff.ru/v2"

type TinkoffConfig struct {
	TerminalKey string
	SecretKey   string
	APIURL      string
	Timeout     time.Duration
}

// Tinkoff talks to the Tinkoff acquiring API. Requests and webhooks carry a
// Token field: SHA-256 over the values of all scalar request fields sorted
// by key, with the terminal secret appended. Amounts are kopecks on the
// wire, same as in the ledger, so no unit conversion happens here.
type Tinkoff struct {
	cfg    TinkoffConfig
	client *http.Client
}

func NewTinkoff(cfg TinkoffConfig) *Tinkoff {
	if cfg.APIURL == "" {
		cfg.APIURL = tinkoffDefaultAPIURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Tinkoff{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

func (t *Tinkoff) Name() string {
	return common.GatewayTinkoff
}

type tinkoffResponse struct {
	Success    bool        `json:"Success"`
	ErrorCode  string      `json:"ErrorCode"`
	Message    string      `json:"Message"`
	Details    string      `json:"Details"`
	Status     string      `json:"Status"`
	PaymentId  json.Number `json:"PaymentId"`
	PaymentURL string      `json:"PaymentURL"`
	OrderId    string      `json:"OrderId"`
	Amount     json.Number `json:"Amount"`
}

func (t *Tinkoff) Initiate(ctx context.Context, params InitiateParams) (*InitiateResult, error) {
	req := map[string]interface{}{
		"TerminalKey": t.cfg.TerminalKey,
		"Amount":      params.Amount,
		"OrderId":     params.OrderID,
		"Description": params.Description,
		"DATA": map[string]interface{}{
			"Email": params.Email,
			"Phone": params.Phone,
		},
		"Receipt": t.receipt(params),
	}
	var resp tinkoffResponse
	if err := t.call(ctx, "/Init", req, &resp); err != nil {
		return nil, err
	}
	return &InitiateResult{
		ExternalID: resp.PaymentId.String(),
		PaymentURL: resp.PaymentURL,
	}, nil
}

func (t *Tinkoff) QueryStatus(ctx context.Context, externalID string) (*Status, error) {
	req := map[string]interface{}{
		"TerminalKey": t.cfg.TerminalKey,
		"PaymentId":   externalID,
	}
	var resp tinkoffResponse
	if err := t.call(ctx, "/GetState", req, &resp); err != nil {
		return nil, err
	}
	amount, _ := resp.Amount.Int64()
	return &Status{
		State:  tinkoffState(resp.Status),
		Amount: amount,
	}, nil
}

func (t *Tinkoff) Cancel(ctx context.Context, externalID string) error {
	req := map[string]interface{}{
		"TerminalKey": t.cfg.TerminalKey,
		"PaymentId":   externalID,
	}
	var resp tinkoffResponse
	return t.call(ctx, "/Cancel", req, &resp)
}

// Refund uses the same /Cancel endpoint: on a confirmed payment Tinkoff
// interprets it as a (partial) refund of Amount.
func (t *Tinkoff) Refund(ctx context.Context, externalID string, amount int64) error {
	req := map[string]interface{}{
		"TerminalKey": t.cfg.TerminalKey,
		"PaymentId":   externalID,
		"Amount":      amount,
	}
	var resp tinkoffResponse
	return t.call(ctx, "/Cancel", req, &resp)
}

func (t *Tinkoff) ParseWebhook(payload []byte) (*WebhookEvent, error) {
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.UseNumber()
	fields := map[string]interface{}{}
	if err := dec.Decode(&fields); err != nil {
		return nil, fmt.Errorf("malformed tinkoff webhook payload: %w", err)
	}

	token, _ := fields["Token"].(string)
	if token == "" {
		return nil, ErrBadSignature
	}
	expected := t.signToken(fields)
	if !hmac.Equal([]byte(strings.ToLower(token)), []byte(expected)) {
		return nil, ErrBadSignature
	}

	event := &WebhookEvent{}
	event.OrderID, _ = fields["OrderId"].(string)
	if paymentId, ok := fields["PaymentId"].(json.Number); ok {
		event.ExternalID = paymentId.String()
	}
	if amount, ok := fields["Amount"].(json.Number); ok {
		event.Amount, _ = amount.Int64()
	}
	status, _ := fields["Status"].(string)
	event.State = tinkoffState(status)
	return event, nil
}

// signToken computes the request/webhook token. Only scalar root fields
// participate; nested objects (DATA, Receipt) are excluded, as is the Token
// field itself.
func (t *Tinkoff) signToken(fields map[string]interface{}) string {
	keys := make([]string, 0, len(fields))
	for key, value := range fields {
		if key == "Token" {
			continue
		}
		if tinkoffScalar(value) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)

	var sb strings.Builder
	for _, key := range keys {
		sb.WriteString(tinkoffValueString(fields[key]))
	}
	sb.WriteString(t.cfg.SecretKey)
	sum := sha256.Sum256([]byte(sb.String()))
	return hex.EncodeToString(sum[:])
}

func tinkoffScalar(value interface{}) bool {
	switch value.(type) {
	case string, bool, int, int64, float64, json.Number:
		return true
	}
	return false
}

func tinkoffValueString(value interface{}) string {
	switch v := value.(type) {
	case string:
		return v
	case bool:
		return strconv.FormatBool(v)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case json.Number:
		return v.String()
	}
	return ""
}

func tinkoffState(status string) string {
	switch status {
	case "CONFIRMED":
		return StatePaid
	case "CANCELED", "REVERSED", "REFUNDED", "PARTIAL_REFUNDED":
		return StateCancelled
	case "REJECTED", "DEADLINE_EXPIRED", "AUTH_FAIL", "ATTEMPTS_EXPIRED":
		return StateRejected
	default:
		// NEW, FORM_SHOWED, AUTHORIZED, 3DS_CHECKING, CONFIRMING, ...
		return StatePending
	}
}

// receipt builds the fiscal receipt block required by 54-FZ.
func (t *Tinkoff) receipt(params InitiateParams) map[string]interface{} {
	return map[string]interface{}{
		"Email":    params.Email,
		"Phone":    params.Phone,
		"Taxation": "usn_income",
		"Items": []map[string]interface{}{
			{
				"Name":          params.Description,
				"Price":         params.Amount,
				"Quantity":      1.0,
				"Amount":        params.Amount,
				"Tax":           "none",
				"PaymentMethod": "full_prepayment",
				"PaymentObject": "service",
			},
		},
	}
}

func (t *Tinkoff) call(ctx context.Context, path string, params map[string]interface{}, out *tinkoffResponse) error {
	params["Token"] = t.signToken(params)
	body, err := json.Marshal(params)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.cfg.APIURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("tinkoff api returned HTTP %d", resp.StatusCode)
	}
	dec := json.NewDecoder(resp.Body)
	dec.UseNumber()
	if err := dec.Decode(out); err != nil {
		return err
	}
	if !out.Success {
		message := out.Message
		if out.Details != "" {
			message = fmt.Sprintf("%s (%s)", out.Message, out.Details)
		}
		return &Error{Gateway: t.Name(), Code: out.ErrorCode, Message: message}
	}
	return nil
}
