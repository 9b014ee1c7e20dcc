package payment

import (
	"crypto/rand"
	"math/big"
	"strconv"
	"time"
)

// Reference prefixes per flow.
const (
	PrefixCashIn  = "CASHIN"
	PrefixCashOut = "CASHOUT"
	PrefixPayment = "PAY"
)

const (
	base36Alphabet  = "0123456789abcdefghijklmnopqrstuvwxyz"
	referenceSuffix = 9
)

// NewReference builds {prefix}-{unixMillis}-{9 base36 chars}. Uniqueness is
// probabilistic; Paypack's ref remains the system of record.
func NewReference(prefix string, now time.Time) string {
	return prefix + "-" + strconv.FormatInt(now.UnixMilli(), 10) + "-" + randomBase36(referenceSuffix)
}

func randomBase36(n int) string {
	buf := make([]byte, n)
	limit := big.NewInt(int64(len(base36Alphabet)))
	for i := range buf {
		v, err := rand.Int(rand.Reader, limit)
		if err != nil {
			// crypto/rand does not fail on supported platforms.
			panic(err)
		}
		buf[i] = base36Alphabet[v.Int64()]
	}
	return string(buf)
}
