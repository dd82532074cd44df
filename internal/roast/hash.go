package roast

import (
	"fmt"
	"strings"

	"github.com/jcmturner/gokrb5/v8/iana/etypeID"
)

// Format selects the crackable hash syntax.
type Format int

const (
	FormatHashcat Format = iota // hashcat mode 19900
	FormatJohn                  // John the Ripper krb5pa loader
)

func (f Format) String() string {
	if f == FormatJohn {
		return "john"
	}
	return "hashcat"
}

// ParseFormat maps the CLI selector onto a Format.
func ParseFormat(name string) (Format, error) {
	switch strings.ToLower(name) {
	case "hashcat":
		return FormatHashcat, nil
	case "john":
		return FormatJohn, nil
	}
	return FormatHashcat, fmt.Errorf("unknown hash format %q (want john or hashcat)", name)
}

// Hash renders the record as $krb5pa$18$ crack material. John's loader keys
// off a doubled separator before the cipher; hashcat wants a single one.
// The result depends only on username, realm, and cipher.
func Hash(r *Record, f Format) string {
	if f == FormatJohn {
		return fmt.Sprintf("$krb5pa$%d$%s$%s$$%s",
			etypeID.AES256_CTS_HMAC_SHA1_96, r.Username, r.Realm, r.Cipher)
	}
	return fmt.Sprintf("$krb5pa$%d$%s$%s$%s",
		etypeID.AES256_CTS_HMAC_SHA1_96, r.Username, r.Realm, r.Cipher)
}
