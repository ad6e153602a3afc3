package client

import (
	"encoding/json"
	"strconv"
	"time"

	pkgerrors "github.com/pkg/errors"

	"github.com/eaglewings/perch/pkg/config"
	"github.com/eaglewings/perch/pkg/types"
)

func (c *Client) GetStatus() (*types.Status, error) {
	ret, err := c.Get("/status")
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to get status")
	}

	var st types.Status
	if err := json.Unmarshal([]byte(ret), &st); err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to unmarshal status")
	}
	return &st, nil
}

func (c *Client) GetBatteryInfo() (*types.BatteryInfo, error) {
	ret, err := c.Get("/battery-info")
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to get battery info")
	}

	var info types.BatteryInfo
	if err := json.Unmarshal([]byte(ret), &info); err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to unmarshal battery info")
	}
	return &info, nil
}

func (c *Client) GetConfig() (*config.RawFileConfig, error) {
	ret, err := c.Get("/config")
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to get config")
	}

	var conf config.RawFileConfig
	if err := json.Unmarshal([]byte(ret), &conf); err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to unmarshal config")
	}
	return &conf, nil
}

// SetConfig sends a partial config document. Only the fields set on the
// partial are changed by the daemon.
func (c *Client) SetConfig(partial *config.RawFileConfig) (string, error) {
	payload, err := json.Marshal(partial)
	if err != nil {
		return "", err
	}
	return c.Put("/config", string(payload))
}

// Search asks the daemon to run a charging spot search and reports
// whether the vehicle reached the spot. This blocks until the search
// finishes or times out.
func (c *Client) Search() (bool, error) {
	ret, err := c.Post("/search", "")
	if err != nil {
		return false, pkgerrors.Wrapf(err, "failed to run charging spot search")
	}
	return parseBoolResponse(ret)
}

func (c *Client) ResetChargingSpot() (string, error) {
	return c.Post("/reset-spot", "")
}

// SetCharging reports the external docked signal to the daemon.
func (c *Client) SetCharging(docked bool) (string, error) {
	return c.Put("/charging", strconv.FormatBool(docked))
}

// PatrolStatus is the daemon's view of the patrol schedule.
type PatrolStatus struct {
	Running bool      `json:"running"`
	NextRun time.Time `json:"nextRun"`
}

func (c *Client) GetPatrol() (*PatrolStatus, error) {
	ret, err := c.Get("/patrol")
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to get patrol status")
	}

	var ps PatrolStatus
	if err := json.Unmarshal([]byte(ret), &ps); err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to unmarshal patrol status")
	}
	return &ps, nil
}

func (c *Client) SkipPatrol() (string, error) {
	return c.Post("/patrol/skip", "")
}

func (c *Client) GetVersion() (string, error) {
	ret, err := c.Get("/version")
	if err != nil {
		return "", pkgerrors.Wrapf(err, "failed to get version")
	}
	// Remove "" around JSON string. I don't want to use a JSON decoder just for this.
	ret = ret[1 : len(ret)-1] // remove the surrounding quotes
	return ret, nil
}

func parseBoolResponse(resp string) (bool, error) {
	switch resp {
	case "true":
		return true, nil
	case "false":
		return false, nil
	default:
		return false, pkgerrors.Errorf("unexpected response: %s", resp)
	}
}
