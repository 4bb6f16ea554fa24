package config

import (
	"errors"
	"fmt"
	"strings"
)

// ErrMissingCredentials is returned when no access id/key pair is configured.
var ErrMissingCredentials = errors.New("service access_id and access_key are required (SUMO_UID/SUMO_KEY)")

// ApplyAPIKey sets the access id and key from the "<id>:<key>" form taken by -a.
func (c *ServiceConfig) ApplyAPIKey(value string) error {
	id, key, ok := strings.Cut(value, ":")
	if !ok || id == "" || key == "" {
		return fmt.Errorf("api key must look like <id>:<key>")
	}
	c.AccessID, c.AccessKey = id, key
	return nil
}

// ApplyClient sets deployment and organization from the "<site>_<orgid>" form taken by -k.
func (c *ServiceConfig) ApplyClient(value string) error {
	site, org, ok := strings.Cut(value, "_")
	if !ok || site == "" || org == "" {
		return fmt.Errorf("client must look like <site>_<orgid>")
	}
	c.Deployment, c.OrgID = strings.ToLower(site), org
	return nil
}

// RequireCredentials reports ErrMissingCredentials when either half is empty.
func (c ServiceConfig) RequireCredentials() error {
	if c.AccessID == "" || c.AccessKey == "" {
		return ErrMissingCredentials
	}
	return nil
}
