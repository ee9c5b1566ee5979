////////////////////////////////////////////////////////////////////////////////
// Copyright © 2024 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file                                                               //
////////////////////////////////////////////////////////////////////////////////

package xrpc

import (
	"context"
	"net/url"

	"github.com/pkg/errors"

	"gitlab.com/elixxir/convsync/api"
)

func (c *Client) GetProfiles(ctx context.Context,
	actors []string) ([]api.Profile, error) {
	if len(actors) > api.MaxProfileBatch {
		return nil, errors.Errorf("at most %d actors per call, received %d",
			api.MaxProfileBatch, len(actors))
	}
	if len(actors) == 0 {
		return nil, nil
	}
	var out struct {
		Profiles []api.Profile `json:"profiles"`
	}
	err := c.query(ctx, nsidGetProfiles, url.Values{"actors": actors}, &out)
	if err != nil {
		return nil, err
	}
	return out.Profiles, nil
}

func (c *Client) RegisterDevice(ctx context.Context,
	reg api.DeviceRegistration) (api.Device, error) {
	var out api.Device
	if err := c.procedure(ctx, nsidRegisterDevice, reg, &out); err != nil {
		return api.Device{}, err
	}
	return out, nil
}

func (c *Client) PublishKeyPackages(ctx context.Context, deviceID string,
	packages []api.PublishedKeyPackage) (api.PublishResult, error) {
	in := struct {
		DeviceID    string                    `json:"deviceId"`
		KeyPackages []api.PublishedKeyPackage `json:"keyPackages"`
	}{deviceID, packages}
	var out api.PublishResult
	if err := c.procedure(ctx, nsidPublishKeyPackages, in, &out); err != nil {
		return api.PublishResult{}, err
	}
	return out, nil
}

func (c *Client) CountKeyPackages(ctx context.Context,
	deviceID string) (int, error) {
	var out struct {
		Available int `json:"available"`
	}
	err := c.query(ctx, nsidGetKeyPackageStats,
		url.Values{"deviceId": {deviceID}}, &out)
	if err != nil {
		return 0, err
	}
	return out.Available, nil
}

func (c *Client) OptIn(ctx context.Context,
	deviceID string) (api.OptInStatus, error) {
	in := struct {
		DeviceID string `json:"deviceId"`
	}{deviceID}
	var out api.OptInStatus
	if err := c.procedure(ctx, nsidOptIn, in, &out); err != nil {
		return api.OptInStatus{}, err
	}
	return out, nil
}

func (c *Client) OptOut(ctx context.Context) error {
	return c.procedure(ctx, nsidOptOut, struct{}{}, nil)
}

func (c *Client) GetOptInStatus(ctx context.Context) (api.OptInStatus, error) {
	var out api.OptInStatus
	if err := c.query(ctx, nsidGetOptInStatus, nil, &out); err != nil {
		return api.OptInStatus{}, err
	}
	return out, nil
}
