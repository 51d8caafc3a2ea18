package sophos

import (
	"context"
	"crypto/tls"
	"encoding/xml"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"git.home.luguber.info/inful/choregate/internal/config"
	"git.home.luguber.info/inful/choregate/internal/foundation/errors"
	"git.home.luguber.info/inful/choregate/internal/logfields"
)

const apiPath = "/webconsole/APIController"

// Client talks to one firewall.
type Client struct {
	httpClient *http.Client
	endpoint   string
	user       string
	password   string
	logger     *slog.Logger
}

// NewClient creates a client for a full APIController URL.
func NewClient(httpClient *http.Client, endpoint, user, password string, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: config.DefaultHTTPTimeout}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		httpClient: httpClient,
		endpoint:   endpoint,
		user:       user,
		password:   password,
		logger:     logger,
	}
}

// NewFromConfig builds a client for https://host:port/webconsole/APIController.
// Certificate checks are skipped unless VerifyTLS is set; appliances ship
// with self-signed certificates.
func NewFromConfig(cfg config.SophosConfig, logger *slog.Logger) *Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.TLSClientConfig = &tls.Config{
		InsecureSkipVerify: !cfg.VerifyTLS, //nolint:gosec // opt-in verification
		MinVersion:         tls.VersionTLS12,
	}
	endpoint := (&url.URL{
		Scheme: "https",
		Host:   net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		Path:   apiPath,
	}).String()
	return NewClient(&http.Client{Timeout: cfg.Timeout, Transport: transport}, endpoint, cfg.User, cfg.Password, logger)
}

// Endpoint returns the APIController URL.
func (c *Client) Endpoint() string { return c.endpoint }

// Login verifies connectivity and credentials.
func (c *Client) Login(ctx context.Context) error {
	_, err := c.do(ctx, apiRequest{})
	return err
}

// GetRuleEnabled reports whether the named rule is enabled.
func (c *Client) GetRuleEnabled(ctx context.Context, rule string) (bool, error) {
	node, err := c.getRule(ctx, rule)
	if err != nil {
		return false, err
	}
	return parseStatus(rule, node.childText("Status"))
}

// SetRuleEnabled moves the named rule to the requested state. A rule already
// in that state is left alone.
func (c *Client) SetRuleEnabled(ctx context.Context, rule string, enabled bool) error {
	node, err := c.getRule(ctx, rule)
	if err != nil {
		return err
	}
	target := statusFor(enabled)
	current := node.childText("Status")
	if strings.EqualFold(current, target) {
		c.logger.Debug("Rule already in requested state", logfields.Rule(rule), logfields.State(target))
		return nil
	}

	status := node.child("Status")
	if status == nil {
		c.logger.Warn("Rule has no status field, updating anyway", logfields.Rule(rule))
		node.Nodes = append(node.Nodes, xmlNode{XMLName: xml.Name{Local: "Status"}})
		status = &node.Nodes[len(node.Nodes)-1]
	}
	status.Text = target

	resp, err := c.do(ctx, apiRequest{Set: &setBlock{Operation: "update", FirewallRule: *node}})
	if err != nil {
		return err
	}
	if len(resp.FirewallRules) == 0 {
		return errors.FirewallError("update response carried no rule status").
			WithContext("rule", rule).
			Build()
	}
	result := resp.FirewallRules[0].child("Status")
	if result == nil {
		return errors.FirewallError("update response carried no rule status").
			WithContext("rule", rule).
			Build()
	}
	if code := result.attr("code"); !strings.HasPrefix(code, "2") {
		return errors.FirewallError("firewall rejected rule update").
			WithContext("rule", rule).
			WithContext("code", code).
			WithContext("message", strings.TrimSpace(result.Text)).
			Build()
	}

	c.logger.Info("Rule updated",
		logfields.Rule(rule),
		slog.String("from", current),
		logfields.State(target))
	return nil
}

func (c *Client) getRule(ctx context.Context, rule string) (*xmlNode, error) {
	if strings.TrimSpace(rule) == "" {
		return nil, errors.ValidationError("rule name cannot be empty").Build()
	}
	req := apiRequest{Get: &getBlock{FirewallRule: ruleFilter{
		Key: filterKey{Name: "Name", Criteria: "=", Value: rule},
	}}}
	resp, err := c.do(ctx, req)
	if err != nil {
		return nil, err
	}
	for i := range resp.FirewallRules {
		if resp.FirewallRules[i].childText("Name") == rule {
			return &resp.FirewallRules[i], nil
		}
	}
	return nil, errors.NotFoundError("firewall rule").
		WithContext("rule", rule).
		Build()
}

func parseStatus(rule, raw string) (bool, error) {
	switch {
	case strings.EqualFold(raw, statusEnable):
		return true, nil
	case strings.EqualFold(raw, statusDisable):
		return false, nil
	}
	return false, errors.FirewallError(fmt.Sprintf("unexpected rule status %q", raw)).
		WithContext("rule", rule).
		Build()
}

// do sends one XML request with the login block filled in and checks the
// login and top-level status of the reply.
func (c *Client) do(ctx context.Context, req apiRequest) (*apiResponse, error) {
	req.Login = loginBlock{Username: c.user, Password: c.password}
	payload, err := xml.Marshal(req)
	if err != nil {
		return nil, errors.InternalError("failed to encode firewall request").WithCause(err).Build()
	}

	form := url.Values{}
	form.Set("reqxml", string(payload))
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, errors.FirewallError("failed to create request").
			WithCause(err).
			WithContext("url", c.endpoint).
			Build()
	}
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	httpReq.Header.Set("Accept", "application/xml")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, errors.NetworkError("failed to reach firewall").
			WithCause(err).
			WithContext("url", c.endpoint).
			Build()
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, errors.NetworkError("failed to read firewall response").WithCause(err).Build()
	}
	if resp.StatusCode >= 400 {
		return nil, errors.FirewallError(fmt.Sprintf("firewall API error: %s", resp.Status)).
			WithContext("code", resp.StatusCode).
			WithContext("url", c.endpoint).
			Build()
	}

	var out apiResponse
	if err := xml.Unmarshal(body, &out); err != nil {
		return nil, errors.FirewallError("failed to decode firewall response").
			WithCause(err).
			Build()
	}
	for i := range out.FirewallRules {
		out.FirewallRules[i].tidy()
	}

	if out.Login != nil && !strings.EqualFold(strings.TrimSpace(out.Login.Status), loginSuccessful) {
		return nil, errors.AuthError("firewall login failed").
			WithContext("status", strings.TrimSpace(out.Login.Status)).
			WithContext("url", c.endpoint).
			Build()
	}
	if out.Status != nil && !strings.HasPrefix(out.Status.Code, "2") {
		return nil, errors.FirewallError("firewall refused request").
			WithContext("code", out.Status.Code).
			WithContext("message", strings.TrimSpace(out.Status.Text)).
			Build()
	}
	if out.Login == nil {
		return nil, errors.FirewallError("firewall response carried no login result").Build()
	}
	return &out, nil
}
