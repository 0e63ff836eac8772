package platform

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
)

type Version struct {
	Label   string `json:"label"`
	URL     string `json:"url"`
	Version string `json:"version"`
}

// Versions lists the REST API versions the instance serves.
func (c *Client) Versions(ctx context.Context) ([]Version, error) {
	var versions []Version
	if err := c.Request(ctx, http.MethodGet, c.restBasePath+"/", nil, &versions); err != nil {
		return nil, err
	}
	return versions, nil
}

// LatestVersion picks the numerically highest version string.
func LatestVersion(versions []Version) (string, error) {
	latest, latestNum := "", -1.0
	for _, v := range versions {
		num, err := strconv.ParseFloat(v.Version, 64)
		if err != nil {
			continue
		}
		if num > latestNum {
			latest, latestNum = v.Version, num
		}
	}
	if latest == "" {
		return "", fmt.Errorf("no usable api version in %d entries", len(versions))
	}
	return latest, nil
}
