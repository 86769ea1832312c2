package domain

import (
	"encoding/json"
	"maps"
)

// Well-known cloud metadata keys shared by every provider.
const (
	CloudLocalHostname    = "local-hostname"
	CloudLocalIPv4        = "local-ipv4"
	CloudPublicHostname   = "public-hostname"
	CloudPublicIPv4       = "public-ipv4"
	CloudInstanceID       = "instance-id"
	CloudInstanceType     = "instance-type"
	CloudAvailabilityZone = "availability-zone"
	CloudRegion           = "region"
	CloudImageID          = "ami-id"
)

// CloudMetadata is an immutable snapshot of what the cloud provider reports about
// the machine this process runs on.
type CloudMetadata struct {
	Provider string `json:"name"`
	values   map[string]string
}

func NewCloudMetadata(provider string, values map[string]string) *CloudMetadata {
	return &CloudMetadata{Provider: provider, values: maps.Clone(values)}
}

func (c *CloudMetadata) IsEmpty() bool {
	return c == nil || len(c.values) == 0
}

func (c *CloudMetadata) Get(key string) string {
	if c == nil {
		return ""
	}
	return c.values[key]
}

// Values returns a copy of the snapshot.
func (c *CloudMetadata) Values() map[string]string {
	if c == nil {
		return map[string]string{}
	}
	return maps.Clone(c.values)
}

func (c *CloudMetadata) MarshalJSON() ([]byte, error) {
	type wire struct {
		Name     string            `json:"name"`
		Metadata map[string]string `json:"metadata"`
	}
	return json.Marshal(wire{Name: c.Provider, Metadata: c.Values()})
}
