package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"fieldserve/pkg/logger"

	"github.com/spf13/cast"
)

// HostedCheckoutProvider talks to a redirect-style gateway: a session is opened
// server to server, the customer pays on the gateway's page, and the result is
// confirmed through the gateway's validation API.
type HostedCheckoutProvider struct {
	BaseURL       string
	StoreID       string
	StorePassword string
	client        *http.Client
	log           logger.ILogger
}

func NewHostedCheckoutProvider(baseURL, storeID, storePassword string, timeout time.Duration, log logger.ILogger) *HostedCheckoutProvider {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HostedCheckoutProvider{
		BaseURL:       strings.TrimRight(baseURL, "/"),
		StoreID:       storeID,
		StorePassword: storePassword,
		client:        &http.Client{Timeout: timeout},
		log:           log,
	}
}

type sessionResp struct {
	Status         string `json:"status"`
	FailedReason   string `json:"failedreason"`
	SessionKey     string `json:"sessionkey"`
	GatewayPageURL string `json:"GatewayPageURL"`
}

type validationResp struct {
	Status   string `json:"status"`
	TranID   string `json:"tran_id"`
	ValID    string `json:"val_id"`
	Amount   string `json:"amount"`
	Currency string `json:"currency_type"`
}

func (p *HostedCheckoutProvider) InitiatePayment(ctx context.Context, req PaymentRequest) (*PaymentResponse, error) {
	form := url.Values{}
	form.Set("store_id", p.StoreID)
	form.Set("store_passwd", p.StorePassword)
	form.Set("total_amount", FormatAmount(req.AmountCents))
	form.Set("currency", req.Currency)
	form.Set("tran_id", req.TransactionID)
	form.Set("success_url", req.SuccessURL)
	form.Set("fail_url", req.FailURL)
	form.Set("cancel_url", req.CancelURL)
	form.Set("ipn_url", req.IPNURL)
	form.Set("product_name", req.Description)
	form.Set("product_category", "service")
	form.Set("product_profile", "non-physical-goods")
	form.Set("shipping_method", "NO")
	form.Set("cus_name", req.CustomerName)
	form.Set("cus_email", req.CustomerEmail)
	form.Set("cus_phone", req.CustomerPhone)

	apiReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.BaseURL+"/gwprocess/v4/api.php", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	apiReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	p.log.Info("gateway session request", logger.String("tran_id", req.TransactionID), logger.Int64("amount_cents", req.AmountCents))
	resp, err := p.client.Do(apiReq)
	if err != nil {
		return nil, fmt.Errorf("gateway session: %w", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("gateway session: status %d", resp.StatusCode)
	}
	var out sessionResp
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("gateway session: %w", err)
	}
	if !strings.EqualFold(out.Status, "SUCCESS") || out.GatewayPageURL == "" {
		p.log.Warning("gateway session declined", logger.String("tran_id", req.TransactionID), logger.String("reason", out.FailedReason))
		return nil, fmt.Errorf("%w: %s", ErrDeclined, out.FailedReason)
	}
	return &PaymentResponse{
		Reference:   out.SessionKey,
		Status:      out.Status,
		RedirectURL: out.GatewayPageURL,
		Raw:         string(body),
	}, nil
}

// VerifyPayment looks up a validation id issued to the success or IPN callback.
func (p *HostedCheckoutProvider) VerifyPayment(ctx context.Context, reference string) (*Verification, error) {
	q := url.Values{}
	q.Set("val_id", reference)
	q.Set("store_id", p.StoreID)
	q.Set("store_passwd", p.StorePassword)
	q.Set("format", "json")
	apiReq, err := http.NewRequestWithContext(ctx, http.MethodGet, p.BaseURL+"/validator/api/validationserverAPI.php?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := p.client.Do(apiReq)
	if err != nil {
		return nil, fmt.Errorf("gateway validation: %w", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("gateway validation: status %d", resp.StatusCode)
	}
	var out validationResp
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("gateway validation: %w", err)
	}
	amount, err := ParseAmount(out.Amount)
	if err != nil && out.Amount != "" {
		return nil, fmt.Errorf("gateway validation amount %q: %w", out.Amount, err)
	}
	return &Verification{
		Status:        strings.ToUpper(out.Status),
		TransactionID: out.TranID,
		ValidationRef: out.ValID,
		AmountCents:   amount,
		Currency:      out.Currency,
		Raw:           string(body),
	}, nil
}

// FormatAmount renders cents as a decimal major-unit string, e.g. 12345 -> "123.45".
func FormatAmount(cents int64) string {
	sign := ""
	if cents < 0 {
		sign, cents = "-", -cents
	}
	return sign + strconv.FormatInt(cents/100, 10) + "." + fmt.Sprintf("%02d", cents%100)
}

// ParseAmount reads a decimal major-unit amount into cents.
func ParseAmount(s string) (int64, error) {
	f, err := cast.ToFloat64E(strings.TrimSpace(s))
	if err != nil {
		return 0, err
	}
	return int64(math.Round(f * 100)), nil
}
