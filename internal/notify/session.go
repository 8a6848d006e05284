package notify

import (
	"net"
	"os"

	"github.com/google/uuid"

	"github.com/eeya7ya/magictech-management-sub002/internal/domain"
)

// ClientSession is the identity of one running client process for the
// lifetime of a login. The device id is generated once when the session is
// created and reused by every component holding the session, which replaces
// the process-wide mutable device id the registry otherwise would need.
type ClientSession struct {
	DeviceID string
	UserID   string
	Username string
	Module   domain.ModuleType
}

// NewClientSession creates a session with a fresh device identifier.
func NewClientSession(userID, username string, module domain.ModuleType) *ClientSession {
	return &ClientSession{
		DeviceID: uuid.New().String(),
		UserID:   userID,
		Username: username,
		Module:   module,
	}
}

// HostInfo returns best-effort hostname and first non-loopback IPv4 address
// for informational presence fields. Either value may be nil.
func HostInfo() (hostname, ip *string) {
	if name, err := os.Hostname(); err == nil && name != "" {
		hostname = &name
	}

	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return hostname, nil
	}
	for _, addr := range addrs {
		ipNet, ok := addr.(*net.IPNet)
		if !ok || ipNet.IP.IsLoopback() {
			continue
		}
		if v4 := ipNet.IP.To4(); v4 != nil {
			s := v4.String()
			ip = &s
			break
		}
	}
	return hostname, ip
}
