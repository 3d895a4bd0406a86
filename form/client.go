package form

import (
	"net/http"
	"time"

	"github.com/go-errors/errors"
	"github.com/go-resty/resty/v2"
	"github.com/greenoaklabs/portald/network"
	"github.com/greenoaklabs/portald/portal"
)

// check PortalClient compliance to its interface during compile time
var _ Portal = (*PortalClient)(nil)

// PortalClient drives a live portal over its HTTP API, the way the
// configuration page does.
type PortalClient struct {
	client *resty.Client
}

func NewPortalClient(baseUrl string) *PortalClient {
	client := resty.New()
	client.SetBaseURL(baseUrl)
	client.SetHeader("Accept", "application/json")
	client.SetTimeout(10 * time.Second)

	return &PortalClient{
		client: client,
	}
}

type networkInfo struct {
	Ssid     string `json:"ssid"`
	Security string `json:"security"`
	Signal   int    `json:"signal"`
}

type apiError struct {
	Error string `json:"error"`
}

func (c *PortalClient) Networks() ([]*network.Network, error) {
	var infos []*networkInfo

	res, err := c.client.R().SetResult(&infos).Get("/api/v1/networks")
	if err != nil {
		return nil, errors.Errorf("could not fetch networks: %v", err)
	}

	if !res.IsSuccess() {
		return nil, errors.Errorf("could not fetch networks: %v", res.Status())
	}

	networks := make([]*network.Network, 0, len(infos))
	for _, info := range infos {
		networks = append(networks, &network.Network{
			Ssid:     info.Ssid,
			Security: network.ParseSecurity(info.Security),
			Signal:   info.Signal,
		})
	}

	return networks, nil
}

func (c *PortalClient) Submit(credentials *network.Credentials) error {
	var apiErr apiError

	res, err := c.client.R().
		SetBody(map[string]string{
			"ssid":       credentials.Ssid,
			"identity":   credentials.Identity,
			"passphrase": credentials.Passphrase,
		}).
		SetError(&apiErr).
		Post("/api/v1/connect")
	if err != nil {
		return errors.Errorf("could not submit: %v", err)
	}

	if res.StatusCode() == http.StatusConflict {
		return portal.ErrSubmissionRejected
	}

	if !res.IsSuccess() {
		return errors.Errorf("submission failed: %v", apiErr.Error)
	}

	return nil
}

func (c *PortalClient) Rescan() error {
	var apiErr apiError

	res, err := c.client.R().SetError(&apiErr).Post("/api/v1/networks/refresh")
	if err != nil {
		return errors.Errorf("could not request a rescan: %v", err)
	}

	if res.StatusCode() == http.StatusConflict {
		return portal.ErrRescanRejected
	}

	if !res.IsSuccess() {
		return errors.Errorf("rescan failed: %v", apiErr.Error)
	}

	return nil
}
