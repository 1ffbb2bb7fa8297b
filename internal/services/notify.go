package services

import (
	"context"
	"errors"
	"expiry-monitor/internal/config"
	"expiry-monitor/internal/models"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/net/proxy"
)

// HTTPDoer is the transport used to call the messaging API
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Notifier delivers a text message to every configured recipient
type Notifier interface {
	Send(ctx context.Context, message string) []models.Delivery
}

// TelegramNotifier sends messages through the Telegram Bot API
type TelegramNotifier struct {
	apiURL     string
	token      string
	recipients []string
	client     HTTPDoer
	logger     *zap.Logger
}

// NewTelegramNotifier creates a notifier with its own HTTP client, routed
// through a SOCKS5 proxy when one is configured
func NewTelegramNotifier(cfg *config.TelegramConfig, logger *zap.Logger) (*TelegramNotifier, error) {
	client := &http.Client{
		Timeout: cfg.Timeout,
	}

	if cfg.Proxy != "" {
		dialer, err := proxy.SOCKS5("tcp", cfg.Proxy, nil, proxy.Direct)
		if err != nil {
			return nil, fmt.Errorf("failed to create SOCKS5 proxy: %w", err)
		}
		client.Transport = &http.Transport{
			DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
				if cd, ok := dialer.(proxy.ContextDialer); ok {
					return cd.DialContext(ctx, network, addr)
				}
				return dialer.Dial(network, addr)
			},
		}
		logger.Info("Using SOCKS5 proxy for Telegram", zap.String("proxy", cfg.Proxy))
	}

	return NewTelegramNotifierWithClient(cfg, client, logger), nil
}

// NewTelegramNotifierWithClient creates a notifier using client as transport
func NewTelegramNotifierWithClient(cfg *config.TelegramConfig, client HTTPDoer, logger *zap.Logger) *TelegramNotifier {
	return &TelegramNotifier{
		apiURL:     strings.TrimRight(cfg.APIURL, "/"),
		token:      cfg.BotToken,
		recipients: cfg.Recipients(),
		client:     client,
		logger:     logger,
	}
}

// Send delivers message to each recipient independently. A failure for one
// recipient does not stop the others; nothing is retried.
func (t *TelegramNotifier) Send(ctx context.Context, message string) []models.Delivery {
	deliveries := make([]models.Delivery, 0, len(t.recipients))

	for _, chatID := range t.recipients {
		status, err := t.sendOne(ctx, chatID, message)
		d := models.Delivery{Recipient: chatID, StatusCode: status}
		if err != nil {
			d.Err = &DeliveryError{Recipient: chatID, StatusCode: status, Err: err}
			t.logger.Error("Telegram notification failed",
				zap.String("chat_id", chatID),
				zap.Int("status", status),
				zap.Error(err),
			)
		} else {
			t.logger.Info("Telegram notification sent", zap.String("chat_id", chatID))
		}
		deliveries = append(deliveries, d)
	}

	return deliveries
}

func (t *TelegramNotifier) sendOne(ctx context.Context, chatID, message string) (int, error) {
	params := url.Values{}
	params.Set("chat_id", chatID)
	params.Set("text", message)

	endpoint := fmt.Sprintf("%s/bot%s/sendMessage?%s", t.apiURL, t.token, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return 0, t.redact(err)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return 0, t.redact(err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode != http.StatusOK {
		return resp.StatusCode, fmt.Errorf("telegram API returned status %d", resp.StatusCode)
	}
	return resp.StatusCode, nil
}

// redact strips the bot token from transport errors, which embed the URL
func (t *TelegramNotifier) redact(err error) error {
	var uerr *url.Error
	if errors.As(err, &uerr) {
		uerr.URL = strings.ReplaceAll(uerr.URL, t.token, "<token>")
	}
	if t.token != "" && strings.Contains(err.Error(), t.token) {
		return errors.New(strings.ReplaceAll(err.Error(), t.token, "<token>"))
	}
	return err
}
