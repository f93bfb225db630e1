package barcode

import (
	"net/mail"
	"net/url"
	"strings"
)

// ContentKind classifies a decoded payload.
type ContentKind int

const (
	KindText ContentKind = iota
	KindURL
	KindEmail
	KindPhone
	KindSMS
	KindWiFi
	KindGeo
)

func (k ContentKind) String() string {
	switch k {
	case KindURL:
		return "url"
	case KindEmail:
		return "email"
	case KindPhone:
		return "phone"
	case KindSMS:
		return "sms"
	case KindWiFi:
		return "wifi"
	case KindGeo:
		return "geo"
	default:
		return "text"
	}
}

// Openable reports whether a link-opener can act on the payload directly.
func (k ContentKind) Openable() bool { return k == KindURL }

// Classify inspects a payload and returns its content kind.
func Classify(text string) ContentKind {
	t := strings.TrimSpace(text)
	lower := strings.ToLower(t)

	switch {
	case strings.HasPrefix(lower, "http://"), strings.HasPrefix(lower, "https://"):
		if u, err := url.Parse(t); err == nil && u.Host != "" {
			return KindURL
		}
		return KindText
	case strings.HasPrefix(lower, "www.") && !strings.ContainsAny(t, " \t\n"):
		return KindURL
	case strings.HasPrefix(lower, "mailto:"), strings.HasPrefix(lower, "matmsg:"):
		return KindEmail
	case strings.HasPrefix(lower, "tel:"):
		return KindPhone
	case strings.HasPrefix(lower, "sms:"), strings.HasPrefix(lower, "smsto:"):
		return KindSMS
	case strings.HasPrefix(lower, "wifi:"):
		return KindWiFi
	case strings.HasPrefix(lower, "geo:"):
		return KindGeo
	}

	if !strings.ContainsAny(t, " \t\n") && strings.Contains(t, "@") {
		if addr, err := mail.ParseAddress(t); err == nil && addr.Address == t {
			return KindEmail
		}
	}
	return KindText
}
