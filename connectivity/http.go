package connectivity

import (
	"context"
	"time"

	"github.com/go-resty/resty/v2"
)

// check HTTPChecker compliance to its interface during compile time
var _ Checker = (*HTTPChecker)(nil)

type Config struct {
	// Url of the endpoint that is probed for reachability.
	Url string
	// Timeout bounds a single probe. DNS failure, connection refusal
	// and timeout all count as Offline.
	Timeout time.Duration
	Logger  Logger
}

type HTTPChecker struct {
	client *resty.Client
	url    string
	log    Logger
}

func NewHTTPChecker(config *Config) *HTTPChecker {
	client := resty.New()
	client.SetTimeout(config.Timeout)
	// The probe result is what matters, not the page behind a redirect
	client.SetRedirectPolicy(resty.FlexibleRedirectPolicy(3))

	checker := &HTTPChecker{
		client: client,
		url:    config.Url,
	}

	if config.Logger != nil {
		checker.log = config.Logger
	} else {
		checker.log = noopLogger{}
	}

	return checker
}

func (c *HTTPChecker) Check(ctx context.Context) State {
	res, err := c.client.R().SetContext(ctx).Get(c.url)
	if err != nil {
		c.log.Debugf("Probe of %v failed: %v", c.url, err)
		return Offline
	}

	if !res.IsSuccess() {
		c.log.Debugf("Probe of %v answered %v", c.url, res.StatusCode())
		return Offline
	}

	return Online
}
