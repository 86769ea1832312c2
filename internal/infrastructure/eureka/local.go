package eureka

import (
	"fmt"
	"net"
	"os"

	"github.com/apascualco/microscope/internal/domain"
)

// LocalInstance builds the base descriptor from the machine identity. Explicit
// hostname and ip address values are used as given.
func LocalInstance(appName string, hostname, ipAddress *string) (*domain.InstanceDescriptor, error) {
	host := ""
	if hostname != nil {
		host = *hostname
	} else {
		h, err := os.Hostname()
		if err != nil {
			return nil, fmt.Errorf("failed to resolve hostname: %w", err)
		}
		host = h
	}

	ip := ""
	if ipAddress != nil {
		ip = *ipAddress
	} else {
		detected, err := firstIPv4()
		if err != nil {
			return nil, err
		}
		ip = detected
	}

	return domain.NewInstanceDescriptor(appName, host, ip), nil
}

func firstIPv4() (string, error) {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return "", fmt.Errorf("failed to list interface addresses: %w", err)
	}
	for _, addr := range addrs {
		ipNet, ok := addr.(*net.IPNet)
		if !ok || ipNet.IP.IsLoopback() {
			continue
		}
		if v4 := ipNet.IP.To4(); v4 != nil {
			return v4.String(), nil
		}
	}
	return "127.0.0.1", nil
}
