package notify

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

// CarrierSender sends WhatsApp messages through a Twilio-style carrier REST
// API: a form-encoded POST to the account's Messages endpoint with basic
// auth, From/To numbers carrying the "whatsapp:" channel prefix.
type CarrierSender struct {
	accountSID string
	authToken  string
	from       string
	baseURL    string
	client     *http.Client
	log        *zap.Logger
}

// CarrierConfig holds the carrier account settings.
type CarrierConfig struct {
	AccountSID string
	AuthToken  string
	FromNumber string
	BaseURL    string
}

// NewCarrierSender builds a sender for the configured carrier account.
func NewCarrierSender(cfg CarrierConfig, log *zap.Logger) (*CarrierSender, error) {
	if cfg.AccountSID == "" || cfg.AuthToken == "" || cfg.FromNumber == "" {
		return nil, fmt.Errorf("carrier sender needs account sid, auth token and from number")
	}
	if log == nil {
		log = zap.NewNop()
	}
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = "https://api.twilio.com"
	}
	return &CarrierSender{
		accountSID: cfg.AccountSID,
		authToken:  cfg.AuthToken,
		from:       cfg.FromNumber,
		baseURL:    base,
		client:     &http.Client{Timeout: 15 * time.Second},
		log:        log.Named("notify"),
	}, nil
}

func (s *CarrierSender) Send(ctx context.Context, phone, text string) error {
	form := url.Values{}
	form.Set("From", channelAddress(s.from))
	form.Set("To", channelAddress(phone))
	form.Set("Body", text)

	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json", s.baseURL, s.accountSID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.SetBasicAuth(s.accountSID, s.authToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("carrier send to %s: status %d: %s", phone, resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	s.log.Info("sent message", zap.String("to", phone))
	return nil
}

func channelAddress(phone string) string {
	phone = strings.TrimSpace(phone)
	if strings.HasPrefix(phone, "whatsapp:") {
		return phone
	}
	return "whatsapp:" + phone
}
