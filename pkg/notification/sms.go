package notification

import (
	"context"
	"fmt"
	"net/url"
	"strings"
)

type SMSConfig struct {
	// "ios" joins the body with '&', everything else with '?'
	Platform      string
	MaxRecipients int
}

// SMSLauncher 便于替换/注入的发送接口（系统短信编辑器或网关）
type SMSLauncher interface {
	Launch(ctx context.Context, link string) error
}

// LauncherFunc adapts a function to SMSLauncher.
type LauncherFunc func(ctx context.Context, link string) error

func (f LauncherFunc) Launch(ctx context.Context, link string) error { return f(ctx, link) }

// EmergencySMS composes one SMS to several emergency contacts.
type EmergencySMS struct {
	cfg SMSConfig
	cli SMSLauncher
}

func NewEmergencySMS(cfg SMSConfig, cli SMSLauncher) *EmergencySMS {
	if cfg.MaxRecipients <= 0 {
		cfg.MaxRecipients = 3
	}
	return &EmergencySMS{cfg: cfg, cli: cli}
}

// Notify opens a single composer addressed to at most MaxRecipients distinct
// numbers. It returns the link that was launched.
func (e *EmergencySMS) Notify(ctx context.Context, phones []string, body string) (string, error) {
	if e.cli == nil {
		return "", fmt.Errorf("SMSLauncher not configured")
	}
	recipients := Recipients(phones, e.cfg.MaxRecipients)
	if len(recipients) == 0 {
		return "", fmt.Errorf("no emergency contacts to notify")
	}
	link := SMSLink(recipients, body, e.cfg.Platform)
	return link, e.cli.Launch(ctx, link)
}

// Recipients trims, de-duplicates and caps a phone list, keeping order.
func Recipients(phones []string, max int) []string {
	seen := make(map[string]bool, len(phones))
	out := make([]string, 0, len(phones))
	for _, p := range phones {
		p = strings.Join(strings.Fields(p), "")
		if p == "" || seen[p] {
			continue
		}
		seen[p] = true
		out = append(out, p)
		if max > 0 && len(out) == max {
			break
		}
	}
	return out
}

// SMSLink builds an sms: deep link.
func SMSLink(phones []string, body, platform string) string {
	sep := "?"
	if strings.EqualFold(platform, "ios") {
		sep = "&"
	}
	link := "sms:" + strings.Join(phones, ",")
	if body != "" {
		link += sep + "body=" + strings.ReplaceAll(url.QueryEscape(body), "+", "%20")
	}
	return link
}
