// Package numbering generates the human-readable identifiers handed out for previews,
// orders and invoices.
package numbering

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"regexp"
	"time"
)

const alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

const (
	previewPrefix = "PV"
	orderPrefix   = "ORD"
	invoicePrefix = "INV"
)

var previewTokenPattern = regexp.MustCompile(`^PV[0-9]{8}[A-Z0-9]{4}$`)

// PreviewToken returns e.g. PV20261018K3ZQ.
func PreviewToken(now time.Time) (string, error) {
	suffix, err := randomSuffix(4)
	if err != nil {
		return "", err
	}
	return previewPrefix + now.UTC().Format("20060102") + suffix, nil
}

// ValidPreviewToken reports whether token has the preview token shape.
func ValidPreviewToken(token string) bool {
	return previewTokenPattern.MatchString(token)
}

// OrderNumber returns e.g. ORD20261018-7KQ2ZD.
func OrderNumber(now time.Time) (string, error) {
	return dated(orderPrefix, now)
}

// InvoiceNumber returns e.g. INV20261018-M0X8AA.
func InvoiceNumber(now time.Time) (string, error) {
	return dated(invoicePrefix, now)
}

func dated(prefix string, now time.Time) (string, error) {
	suffix, err := randomSuffix(6)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s%s-%s", prefix, now.UTC().Format("20060102"), suffix), nil
}

func randomSuffix(n int) (string, error) {
	base := big.NewInt(int64(len(alphabet)))
	buf := make([]byte, n)
	for i := range buf {
		idx, err := rand.Int(rand.Reader, base)
		if err != nil {
			return "", fmt.Errorf("numbering: read random: %w", err)
		}
		buf[i] = alphabet[idx.Int64()]
	}
	return string(buf), nil
}
