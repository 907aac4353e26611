package pricing

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/Additional-Code/tradehub/internal/entity"
)

const signatureVersion = "v1"

// Signer makes preview quotes tamper-evident with an HMAC-SHA256 over their canonical form.
type Signer struct {
	secret []byte
}

// NewSigner builds a Signer for secret.
func NewSigner(secret string) *Signer {
	return &Signer{secret: []byte(secret)}
}

// Sign returns the hex signature of q. The Signature field itself is not covered.
func (s *Signer) Sign(q *entity.PreviewQuote) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(canonical(q)))
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify reports whether q carries a valid signature.
func (s *Signer) Verify(q *entity.PreviewQuote) bool {
	want, err := hex.DecodeString(q.Signature)
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(canonical(q)))
	return hmac.Equal(want, mac.Sum(nil))
}

func canonical(q *entity.PreviewQuote) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s|%s|%d|%d|%d|%s|%s|%s|%q",
		signatureVersion,
		q.Token,
		q.CustomerID,
		q.CompanyID,
		q.ExpiresAt.Unix(),
		q.Subtotal.StringFixed(2),
		q.Discount.StringFixed(2),
		q.Total.StringFixed(2),
		q.Notes,
	)
	for _, l := range q.Lines {
		fmt.Fprintf(&b, "|%d:%d:%s:%s:%s:%s:%s",
			l.ProductID,
			l.Qty,
			l.UnitPrice.StringFixed(2),
			l.Discount.StringFixed(2),
			l.LineTotal.StringFixed(2),
			offerKey(l.OfferID),
			bonusKey(l.Bonuses),
		)
	}
	return b.String()
}
