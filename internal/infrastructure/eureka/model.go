package eureka

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/apascualco/microscope/internal/domain"
)

var ErrInstanceNotFound = errors.New("instance not found")

const (
	defaultDataCenterClass = "com.netflix.appinfo.InstanceInfo$DefaultDataCenterInfo"
	amazonDataCenterClass  = "com.netflix.appinfo.AmazonInfo"
	defaultDataCenterName  = "MyOwn"
	amazonDataCenterName   = "Amazon"

	statusUp = "UP"
)

type instanceEnvelope struct {
	Instance Instance `json:"instance"`
}

// Instance is the Eureka REST v2 wire form of an instance descriptor.
type Instance struct {
	InstanceID           string            `json:"instanceId"`
	HostName             string            `json:"hostName"`
	App                  string            `json:"app"`
	IPAddr               string            `json:"ipAddr"`
	Status               string            `json:"status"`
	Port                 Port              `json:"port"`
	SecurePort           Port              `json:"securePort"`
	DataCenterInfo       DataCenterInfo    `json:"dataCenterInfo"`
	LeaseInfo            LeaseInfo         `json:"leaseInfo"`
	Metadata             map[string]string `json:"metadata,omitempty"`
	HomePageURL          string            `json:"homePageUrl,omitempty"`
	StatusPageURL        string            `json:"statusPageUrl,omitempty"`
	HealthCheckURL       string            `json:"healthCheckUrl,omitempty"`
	SecureHealthCheckURL string            `json:"secureHealthCheckUrl,omitempty"`
	VIPAddress           string            `json:"vipAddress"`
	SecureVIPAddress     string            `json:"secureVipAddress"`
}

type Port struct {
	Port    int    `json:"$"`
	Enabled string `json:"@enabled"`
}

type DataCenterInfo struct {
	Class    string            `json:"@class"`
	Name     string            `json:"name"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

type LeaseInfo struct {
	RenewalIntervalInSecs int `json:"renewalIntervalInSecs"`
	DurationInSecs        int `json:"durationInSecs"`
}

// FromDescriptor converts a fixed-up descriptor. The lease lasts three renewals.
func FromDescriptor(d *domain.InstanceDescriptor, renewal time.Duration) Instance {
	vip := strings.ToLower(d.AppName)
	renewalSecs := int(renewal.Seconds())

	instance := Instance{
		InstanceID:           d.ID(),
		HostName:             d.Host(),
		App:                  strings.ToUpper(d.AppName),
		IPAddr:               d.IPAddress,
		Status:               statusUp,
		Port:                 Port{Port: d.Port, Enabled: strconv.FormatBool(d.NonSecurePortEnabled)},
		SecurePort:           Port{Port: 443, Enabled: "false"},
		DataCenterInfo:       DataCenterInfo{Class: defaultDataCenterClass, Name: defaultDataCenterName},
		LeaseInfo:            LeaseInfo{RenewalIntervalInSecs: renewalSecs, DurationInSecs: renewalSecs * 3},
		Metadata:             d.Metadata,
		HomePageURL:          d.HomePageURL,
		StatusPageURL:        d.StatusPageURL,
		HealthCheckURL:       d.HealthCheckURL,
		SecureHealthCheckURL: d.SecureHealthCheckURL,
		VIPAddress:           vip,
		SecureVIPAddress:     vip,
	}

	if d.SecurePort != nil {
		instance.SecurePort = Port{Port: *d.SecurePort, Enabled: strconv.FormatBool(d.IsSecurePortEnabled())}
	}
	if !d.DataCenterInfo.IsEmpty() {
		instance.DataCenterInfo = DataCenterInfo{
			Class:    defaultDataCenterClass,
			Name:     d.DataCenterInfo.Provider,
			Metadata: d.DataCenterInfo.Values(),
		}
		if d.DataCenterInfo.Provider == amazonDataCenterName {
			instance.DataCenterInfo.Class = amazonDataCenterClass
		}
	}
	return instance
}
