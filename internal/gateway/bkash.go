package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"checkout-service/internal/models"
)

const (
	bkashSandboxURL = "https://tokenized.sandbox.bka.sh/v1.2.0-beta"
	bkashLiveURL    = "https://tokenized.pay.bka.sh/v1.2.0-beta"
)

// BkashCredentials are the app and merchant credentials of the token-exchange gateway
type BkashCredentials struct {
	AppKey    string
	AppSecret string
	Username  string
	Password  string
}

// ParseBkashCredentials reads the bKash variant out of a settings row
func ParseBkashCredentials(creds models.Credentials) (BkashCredentials, error) {
	c := BkashCredentials{
		AppKey:    creds.Get("app_key"),
		AppSecret: creds.Get("app_secret"),
		Username:  creds.Get("username"),
		Password:  creds.Get("password"),
	}
	if c.AppKey == "" || c.AppSecret == "" || c.Username == "" || c.Password == "" {
		return c, configError(models.ProviderBkash, "bKash credentials are not configured")
	}
	return c, nil
}

type bkashGrantRequest struct {
	AppKey    string `json:"app_key"`
	AppSecret string `json:"app_secret"`
}

type bkashGrantResponse struct {
	IDToken       string `json:"id_token"`
	TokenType     string `json:"token_type"`
	ExpiresIn     int    `json:"expires_in"`
	RefreshToken  string `json:"refresh_token"`
	StatusCode    string `json:"statusCode"`
	StatusMessage string `json:"statusMessage"`
}

type bkashCreateRequest struct {
	Mode                  string `json:"mode"`
	PayerReference        string `json:"payerReference"`
	CallbackURL           string `json:"callbackURL"`
	Amount                string `json:"amount"`
	Currency              string `json:"currency"`
	Intent                string `json:"intent"`
	MerchantInvoiceNumber string `json:"merchantInvoiceNumber"`
}

type bkashCreateResponse struct {
	PaymentID     string `json:"paymentID"`
	BkashURL      string `json:"bkashURL"`
	StatusCode    string `json:"statusCode"`
	StatusMessage string `json:"statusMessage"`
	ErrorCode     string `json:"errorCode"`
	ErrorMessage  string `json:"errorMessage"`
}

type bkashExecuteRequest struct {
	PaymentID string `json:"paymentID"`
}

type bkashExecuteResponse struct {
	PaymentID             string `json:"paymentID"`
	TrxID                 string `json:"trxID"`
	TransactionStatus     string `json:"transactionStatus"`
	Amount                string `json:"amount"`
	MerchantInvoiceNumber string `json:"merchantInvoiceNumber"`
	StatusCode            string `json:"statusCode"`
	StatusMessage         string `json:"statusMessage"`
	ErrorCode             string `json:"errorCode"`
	ErrorMessage          string `json:"errorMessage"`
}

// Bkash is the token-exchange wallet gateway
type Bkash struct {
	creds      BkashCredentials
	baseURL    string
	httpClient httpDoer
	timeout    time.Duration
}

// NewBkash creates the bKash adapter from its settings row
func NewBkash(settings models.GatewaySettings, httpClient httpDoer, timeout time.Duration) (*Bkash, error) {
	creds, err := ParseBkashCredentials(settings.Credentials)
	if err != nil {
		return nil, err
	}

	baseURL := settings.BaseURL
	if baseURL == "" {
		baseURL = bkashLiveURL
		if settings.SandboxMode {
			baseURL = bkashSandboxURL
		}
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}

	return &Bkash{
		creds:      creds,
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: httpClient,
		timeout:    timeout,
	}, nil
}

// Provider implements Gateway
func (b *Bkash) Provider() string { return models.ProviderBkash }

// Initiate grants a token and creates a payment. Without a token the create
// step is never attempted.
func (b *Bkash) Initiate(ctx context.Context, req *PaymentRequest) (*PaymentResponse, error) {
	ctx, cancel := withTimeout(ctx, b.timeout)
	defer cancel()

	token, err := b.grantToken(ctx)
	if err != nil {
		return nil, err
	}

	payer := req.Customer.Phone
	if payer == "" {
		payer = req.OrderID
	}

	var resp bkashCreateResponse
	err = b.postJSON(ctx, "/tokenized/checkout/create", token, bkashCreateRequest{
		Mode:                  "0011",
		PayerReference:        payer,
		CallbackURL:           req.SuccessURL,
		Amount:                req.Amount.StringFixed(2),
		Currency:              req.Currency,
		Intent:                "sale",
		MerchantInvoiceNumber: req.OrderID,
	}, &resp)
	if err != nil {
		return nil, err
	}

	if resp.BkashURL == "" || resp.PaymentID == "" {
		msg := resp.ErrorMessage
		if msg == "" {
			msg = resp.StatusMessage
		}
		if msg == "" {
			msg = "Failed to create bKash payment"
		}
		return nil, protocolError(b.Provider(), msg)
	}

	return &PaymentResponse{
		Success:       true,
		PaymentURL:    resp.BkashURL,
		TransactionID: resp.PaymentID,
	}, nil
}

// Verify executes the payment and requires a completed transaction
func (b *Bkash) Verify(ctx context.Context, data CallbackData) error {
	if data.TransactionID == "" {
		return protocolError(b.Provider(), "missing paymentID")
	}

	ctx, cancel := withTimeout(ctx, b.timeout)
	defer cancel()

	token, err := b.grantToken(ctx)
	if err != nil {
		return err
	}

	var resp bkashExecuteResponse
	if err := b.postJSON(ctx, "/tokenized/checkout/execute", token, bkashExecuteRequest{PaymentID: data.TransactionID}, &resp); err != nil {
		return err
	}

	if resp.StatusCode != "0000" || resp.TransactionStatus != "Completed" {
		msg := resp.ErrorMessage
		if msg == "" {
			msg = resp.StatusMessage
		}
		if msg == "" {
			msg = "bKash payment was not completed"
		}
		return protocolError(b.Provider(), msg)
	}
	if data.OrderID != "" && resp.MerchantInvoiceNumber != "" && resp.MerchantInvoiceNumber != data.OrderID {
		return protocolError(b.Provider(), "executed payment belongs to another order")
	}
	return nil
}

func (b *Bkash) grantToken(ctx context.Context) (string, error) {
	body, err := json.Marshal(bkashGrantRequest{AppKey: b.creds.AppKey, AppSecret: b.creds.AppSecret})
	if err != nil {
		return "", transportError(b.Provider(), "failed to build token request", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+"/tokenized/checkout/token/grant", bytes.NewReader(body))
	if err != nil {
		return "", transportError(b.Provider(), "failed to build token request", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("username", b.creds.Username)
	httpReq.Header.Set("password", b.creds.Password)

	var resp bkashGrantResponse
	if err := doJSON(b.httpClient, b.Provider(), httpReq, &resp); err != nil {
		return "", err
	}
	if resp.IDToken == "" {
		return "", protocolError(b.Provider(), "Failed to get bKash access token")
	}
	return resp.IDToken, nil
}

func (b *Bkash) postJSON(ctx context.Context, path, token string, in, out interface{}) error {
	body, err := json.Marshal(in)
	if err != nil {
		return transportError(b.Provider(), "failed to build payment request", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return transportError(b.Provider(), "failed to build payment request", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("Authorization", token)
	httpReq.Header.Set("X-APP-Key", b.creds.AppKey)

	return doJSON(b.httpClient, b.Provider(), httpReq, out)
}
