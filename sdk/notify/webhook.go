package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"

	"github.com/jxo-me/ddnsd/config"
	"github.com/jxo-me/ddnsd/core/logger"
	"github.com/jxo-me/ddnsd/core/notify"
	"github.com/jxo-me/ddnsd/internal/util"
	"github.com/pkg/errors"
)

const WebhookCode = "webhook"

// Webhook calls the target's webhook URL. The URL and body accept the
// placeholders #{target} #{domain} #{family} #{result} #{old} #{new} #{detail}.
// An empty body sends a GET, otherwise a POST.
type Webhook struct {
	client *http.Client
	log    logger.ILogger
}

func NewWebhook(log logger.ILogger) *Webhook {
	return &Webhook{client: util.CreateHTTPClient(), log: log}
}

func (w *Webhook) String() string {
	return WebhookCode
}

func (w *Webhook) Wants(target *config.Target, ev notify.Event) bool {
	return target.WebhookOn(ev.Outcome)
}

func (w *Webhook) Send(ctx context.Context, target *config.Target, ev notify.Event) error {
	hook := target.Notify.Webhook
	method := http.MethodGet
	postPara := ""
	contentType := "application/x-www-form-urlencoded"
	if hook.Body != "" {
		method = http.MethodPost
		jsonBody := hasJSONPrefix(strings.TrimSpace(hook.Body))
		postPara = replacePara(hook.Body, ev, func(s string) string {
			if jsonBody {
				return jsonEscape(s)
			}
			return s
		})
		if json.Valid([]byte(postPara)) {
			contentType = "application/json"
		} else if jsonBody {
			w.log.Warnf("webhook body of %s is not valid JSON, sending it as form data", target.ID())
		}
	}
	requestURL := replacePara(hook.URL, ev, url.QueryEscape)
	u, err := url.Parse(requestURL)
	if err != nil {
		return errors.Wrap(err, "webhook url")
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), strings.NewReader(postPara))
	if err != nil {
		return errors.Wrap(err, "create webhook request")
	}
	for key, value := range parseHeaders(hook.Headers, w.log) {
		req.Header.Set(key, value)
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := w.client.Do(req)
	body, err := util.GetHTTPResponseOrg(resp, u.Redacted(), err)
	if err != nil {
		return err
	}
	w.log.Debugf("webhook of %s returned %q", target.ID(), util.Snippet(body))
	return nil
}

// hasJSONPrefix returns true if the string starts with a JSON open brace.
func hasJSONPrefix(s string) bool {
	return strings.HasPrefix(s, "{") || strings.HasPrefix(s, "[")
}

// jsonEscape escapes s for use inside a JSON string literal.
func jsonEscape(s string) string {
	b, _ := json.Marshal(s)
	return string(b[1 : len(b)-1])
}

// replacePara 替换参数
func replacePara(orgPara string, ev notify.Event, escape func(string) string) string {
	return strings.NewReplacer(
		"#{target}", escape(ev.TargetID),
		"#{domain}", escape(ev.Domain),
		"#{family}", escape(string(ev.Family)),
		"#{result}", escape(string(ev.Outcome)),
		"#{old}", escape(ev.Old),
		"#{new}", escape(ev.New),
		"#{detail}", escape(ev.Detail),
	).Replace(orgPara)
}

// parseHeaders reads "Key: Value" lines; malformed lines are skipped.
func parseHeaders(lines []string, log logger.ILogger) map[string]string {
	headers := make(map[string]string)
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		key, value, ok := strings.Cut(line, ":")
		if !ok || strings.TrimSpace(key) == "" {
			log.Warnf("ignoring malformed webhook header %q", line)
			continue
		}
		headers[strings.TrimSpace(key)] = strings.TrimSpace(value)
	}
	return headers
}
