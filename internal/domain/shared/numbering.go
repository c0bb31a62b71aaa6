package shared

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Document number prefixes.
const (
	PrefixTransfer      = "TRF"
	PrefixShopOrder     = "SO"
	PrefixReturnRequest = "RET"
	PrefixSale          = "SALE"
	PrefixRefund        = "REF"
	PrefixCashUp        = "CUR"
	PrefixRemittance    = "REM"
	PrefixDispute       = "DSP"
)

// NewDocumentNumber returns PREFIX-YYYYMMDD-XXXXXXXX where the suffix is the
// first eight hex digits of a random UUID.
func NewDocumentNumber(prefix string, at time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
	return fmt.Sprintf("%s-%s-%s", prefix, at.UTC().Format("20060102"), suffix)
}
