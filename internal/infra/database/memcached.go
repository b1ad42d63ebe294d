package database

import (
	"strings"

	"github.com/bradfitz/gomemcache/memcache"
)

// NewMemcached returns nil when no server is configured.
func NewMemcached(servers string) *memcache.Client {
	if servers == "" {
		return nil
	}
	return memcache.New(strings.Split(servers, ",")...)
}
