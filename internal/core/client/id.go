package client

import (
	"net"
	"strconv"
	"strings"

	"github.com/yndnr/regmesh-go/internal/core/domain"
)

// IDSeparator splits an ip-port client id into address and ephemeral flag.
const IDSeparator = "#"

// IPPortClientID builds "ip:port#ephemeral".
func IPPortClientID(addr string, ephemeral bool) string {
	return addr + IDSeparator + strconv.FormatBool(ephemeral)
}

// IsIPPortClientID reports whether id names an ip-port client. Connection
// ids never contain the separator.
func IsIPPortClientID(id string) bool {
	return strings.Contains(id, IDSeparator)
}

// ParseIPPortClientID splits an ip-port client id.
func ParseIPPortClientID(id string) (addr string, ephemeral bool, err error) {
	addr, flag, ok := strings.Cut(id, IDSeparator)
	if !ok {
		return "", false, domain.ErrInvalidArgument.WithDetails("not an ip-port client id: " + id)
	}
	if _, _, err := net.SplitHostPort(addr); err != nil {
		return "", false, domain.ErrInvalidArgument.WithDetails("invalid client address: " + addr).WithCause(err)
	}
	ephemeral, err = strconv.ParseBool(flag)
	if err != nil {
		return "", false, domain.ErrInvalidArgument.WithDetails("invalid ephemeral flag: " + flag).WithCause(err)
	}
	return addr, ephemeral, nil
}

// ResponsibleID returns the key used to locate c's owner node.
func ResponsibleID(c Client) string {
	if ipc, ok := c.(*IPPortBasedClient); ok {
		return ipc.ResponsibleID()
	}
	return c.ClientID()
}
