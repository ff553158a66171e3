package normalizer

import (
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"strings"
	"time"

	"payment-relay/internal/domain"

	"github.com/shopspring/decimal"
)

var cents = decimal.NewFromInt(100)

type ConversionOptions struct {
	PublicBaseURL string
	ThankYouPath  string
	Currency      string
	Now           time.Time
}

// BuildConversionEvent builds a purchase event for a conversions API. Email
// and phone only leave the process as SHA-256 digests.
func BuildConversionEvent(tx domain.Transaction, attr *domain.Attribution, opts ConversionOptions) domain.ConversionEvent {
	value, _ := decimal.NewFromInt(int64(tx.Amount)).Div(cents).Round(2).Float64()

	user := domain.ConversionUserData{ClientIPAddress: strings.TrimSpace(tx.IP)}
	if h := HashIdentifier(tx.Customer.Email); h != "" {
		user.Email = []string{h}
	}
	if h := HashIdentifier(PhoneDigits(tx.Customer.Phone)); h != "" {
		user.Phone = []string{h}
	}

	var contentIDs []string
	for _, i := range tx.Items {
		if id := itemID(i); id != "" {
			contentIDs = append(contentIDs, id)
		}
	}

	return domain.ConversionEvent{
		EventName:      "Purchase",
		EventTime:      opts.Now.Unix(),
		EventID:        string(tx.ID),
		ActionSource:   "website",
		EventSourceURL: SourceURL(opts.PublicBaseURL, opts.ThankYouPath, attr),
		UserData:       user,
		CustomData: domain.ConversionCustomData{
			Value:       value,
			Currency:    opts.Currency,
			OrderID:     string(tx.ID),
			ContentType: "product",
			ContentIDs:  contentIDs,
		},
	}
}

// SourceURL reconstructs the page the purchase most likely finished on,
// carrying the attribution as query parameters. Empty without a base URL.
func SourceURL(publicBaseURL, path string, attr *domain.Attribution) string {
	base := strings.TrimRight(strings.TrimSpace(publicBaseURL), "/")
	if base == "" {
		return ""
	}
	u := base + "/" + strings.TrimLeft(path, "/")
	if attr == nil {
		return u
	}
	var params []string
	for _, p := range attr.Pairs() {
		params = append(params, url.QueryEscape(p[0])+"="+url.QueryEscape(p[1]))
	}
	if len(params) == 0 {
		return u
	}
	return u + "?" + strings.Join(params, "&")
}

// HashIdentifier returns the hex SHA-256 of the trimmed, lower-cased value,
// or "" for an empty value.
func HashIdentifier(v string) string {
	v = strings.ToLower(strings.TrimSpace(v))
	if v == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(v))
	return hex.EncodeToString(sum[:])
}

func PhoneDigits(phone string) string {
	return digitsOnly(phone)
}

func digitsOnly(s string) string {
	return strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, s)
}
