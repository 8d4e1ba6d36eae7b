package gateway

import (
	"bytes"
	"context"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"checkout-service/internal/models"
)

const (
	sslcommerzSandboxURL = "https://sandbox.sslcommerz.com"
	sslcommerzLiveURL    = "https://securepay.sslcommerz.com"
)

// SSLCommerzCredentials are the merchant credentials of the hosted-page gateway
type SSLCommerzCredentials struct {
	StoreID       string
	StorePassword string
}

// ParseSSLCommerzCredentials reads the SSLCommerz variant out of a settings row
func ParseSSLCommerzCredentials(creds models.Credentials) (SSLCommerzCredentials, error) {
	c := SSLCommerzCredentials{
		StoreID:       creds.Get("store_id"),
		StorePassword: creds.Get("store_password", "store_passwd"),
	}
	if c.StoreID == "" || c.StorePassword == "" {
		return c, configError(models.ProviderSSLCommerz, "SSLCommerz credentials are not configured")
	}
	return c, nil
}

type sslcommerzSessionResponse struct {
	Status         string `json:"status"`
	FailedReason   string `json:"failedreason"`
	SessionKey     string `json:"sessionkey"`
	GatewayPageURL string `json:"GatewayPageURL"`
}

type sslcommerzValidationResponse struct {
	Status      string `json:"status"`
	TranID      string `json:"tran_id"`
	ValID       string `json:"val_id"`
	Amount      string `json:"amount"`
	Currency    string `json:"currency"`
	BankTranID  string `json:"bank_tran_id"`
	APIConnect  string `json:"APIConnect"`
	RiskLevel   string `json:"risk_level"`
	RiskTitle   string `json:"risk_title"`
	ErrorReason string `json:"error"`
}

// SSLCommerz is the form-POST redirect gateway
type SSLCommerz struct {
	creds      SSLCommerzCredentials
	baseURL    string
	httpClient httpDoer
	timeout    time.Duration
}

// NewSSLCommerz creates the SSLCommerz adapter from its settings row
func NewSSLCommerz(settings models.GatewaySettings, httpClient httpDoer, timeout time.Duration) (*SSLCommerz, error) {
	creds, err := ParseSSLCommerzCredentials(settings.Credentials)
	if err != nil {
		return nil, err
	}

	baseURL := settings.BaseURL
	if baseURL == "" {
		baseURL = sslcommerzLiveURL
		if settings.SandboxMode {
			baseURL = sslcommerzSandboxURL
		}
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}

	return &SSLCommerz{
		creds:      creds,
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: httpClient,
		timeout:    timeout,
	}, nil
}

// Provider implements Gateway
func (s *SSLCommerz) Provider() string { return models.ProviderSSLCommerz }

// Initiate opens a hosted-page session. A status other than SUCCESS is a
// protocol error carrying the provider's failedreason.
func (s *SSLCommerz) Initiate(ctx context.Context, req *PaymentRequest) (*PaymentResponse, error) {
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	body, contentType, err := s.sessionForm(req)
	if err != nil {
		return nil, transportError(s.Provider(), "failed to build payment request", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/gwprocess/v4/api.php", body)
	if err != nil {
		return nil, transportError(s.Provider(), "failed to build payment request", err)
	}
	httpReq.Header.Set("Content-Type", contentType)

	var resp sslcommerzSessionResponse
	if err := doJSON(s.httpClient, s.Provider(), httpReq, &resp); err != nil {
		return nil, err
	}

	if !strings.EqualFold(resp.Status, "SUCCESS") {
		reason := resp.FailedReason
		if reason == "" {
			reason = "SSLCommerz payment initiation failed"
		}
		return nil, protocolError(s.Provider(), reason)
	}
	if resp.GatewayPageURL == "" {
		return nil, protocolError(s.Provider(), "SSLCommerz did not return a payment page")
	}

	return &PaymentResponse{
		Success:       true,
		PaymentURL:    resp.GatewayPageURL,
		TransactionID: resp.SessionKey,
	}, nil
}

func (s *SSLCommerz) sessionForm(req *PaymentRequest) (*bytes.Buffer, string, error) {
	country := req.Customer.Country
	if country == "" {
		country = "Bangladesh"
	}
	email := req.Customer.Email
	if email == "" {
		email = "customer@example.com"
	}

	fields := []struct{ key, value string }{
		{"store_id", s.creds.StoreID},
		{"store_passwd", s.creds.StorePassword},
		{"total_amount", req.Amount.StringFixed(2)},
		{"currency", req.Currency},
		{"tran_id", req.OrderID},
		{"success_url", req.SuccessURL},
		{"fail_url", req.FailURL},
		{"cancel_url", req.CancelURL},
		{"cus_name", req.Customer.Name},
		{"cus_email", email},
		{"cus_add1", req.Customer.Address},
		{"cus_city", req.Customer.City},
		{"cus_state", req.Customer.State},
		{"cus_postcode", req.Customer.PostCode},
		{"cus_country", country},
		{"cus_phone", req.Customer.Phone},
		{"shipping_method", "NO"},
		{"product_name", "Order " + req.OrderID},
		{"product_category", "general"},
		{"product_profile", "general"},
	}

	buf := &bytes.Buffer{}
	w := multipart.NewWriter(buf)
	for _, f := range fields {
		if err := w.WriteField(f.key, f.value); err != nil {
			return nil, "", err
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return buf, w.FormDataContentType(), nil
}

// Verify asks the validation API whether val_id is a completed payment for
// the order.
func (s *SSLCommerz) Verify(ctx context.Context, data CallbackData) error {
	if data.ValidationID == "" {
		return protocolError(s.Provider(), "missing validation id")
	}

	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	q := url.Values{}
	q.Set("val_id", data.ValidationID)
	q.Set("store_id", s.creds.StoreID)
	q.Set("store_passwd", s.creds.StorePassword)
	q.Set("format", "json")

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet,
		s.baseURL+"/validator/api/validationserverAPI.php?"+q.Encode(), nil)
	if err != nil {
		return transportError(s.Provider(), "failed to build validation request", err)
	}

	var resp sslcommerzValidationResponse
	if err := doJSON(s.httpClient, s.Provider(), httpReq, &resp); err != nil {
		return err
	}

	switch strings.ToUpper(resp.Status) {
	case "VALID", "VALIDATED":
	default:
		return protocolError(s.Provider(), "payment validation failed: "+resp.Status)
	}
	if data.OrderID != "" && resp.TranID != "" && resp.TranID != data.OrderID {
		return protocolError(s.Provider(), "validated transaction belongs to another order")
	}
	return nil
}
