// Package ipgeo maps client IPs to countries for access logs using a MaxMind
// MMDB file.
package ipgeo

import (
	"net/netip"

	"github.com/oschwald/maxminddb-golang/v2"
)

// Local is reported for addresses that never leave the host or LAN.
const Local = "local"

// Checker resolves IP addresses to ISO 3166-1 alpha-2 country codes.
//
// A nil *Checker is valid and only classifies local addresses.
type Checker struct {
	reader *maxminddb.Reader
}

// Open opens an MMDB country or city database.
func Open(path string) (*Checker, error) {
	r, err := maxminddb.Open(path)
	if err != nil {
		return nil, err
	}
	return &Checker{reader: r}, nil
}

// Close releases the database.
func (c *Checker) Close() error {
	if c == nil || c.reader == nil {
		return nil
	}
	return c.reader.Close()
}

type countryRecord struct {
	Country struct {
		ISOCode string `maxminddb:"iso_code"`
	} `maxminddb:"country"`
}

// CountryCode returns the country of ip, Local for loopback and private
// ranges, or "" when unknown.
func (c *Checker) CountryCode(ip string) string {
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return ""
	}
	addr = addr.Unmap()
	if isLocal(addr) {
		return Local
	}
	if c == nil || c.reader == nil {
		return ""
	}
	var rec countryRecord
	if err := c.reader.Lookup(addr).Decode(&rec); err != nil {
		return ""
	}
	return rec.Country.ISOCode
}

func isLocal(addr netip.Addr) bool {
	return addr.IsLoopback() || addr.IsPrivate() || addr.IsUnspecified() ||
		addr.IsLinkLocalUnicast() || addr.IsLinkLocalMulticast()
}
