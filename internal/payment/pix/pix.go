// Package pix renders static PIX "copia e cola" payloads in the EMV merchant
// presented mode (BR Code) format, ready to be pasted into a banking app or
// encoded as a QR code.
package pix

import (
	"fmt"
	"strings"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Field IDs from the BR Code specification.
const (
	idPayloadFormat       = "00"
	idInitiationMethod    = "01"
	idMerchantAccountInfo = "26"
	idMerchantCategory    = "52"
	idCurrency            = "53"
	idAmount              = "54"
	idCountry             = "58"
	idMerchantName        = "59"
	idMerchantCity        = "60"
	idAdditionalData      = "62"
	idCRC                 = "63"

	subGUI  = "00"
	subKey  = "01"
	subTxID = "05"

	gui          = "br.gov.bcb.pix"
	currencyBRL  = "986"
	countryBR    = "BR"
	categoryNone = "0000"

	// one-time payment: each order gets its own payload
	initiationDynamic = "12"

	maxNameLen = 25
	maxCityLen = 15
	maxTxIDLen = 25
)

// ErrMissingKey is returned when the builder has no PIX key configured.
var ErrMissingKey = errors.New("pix key is required")

// Builder renders payment payloads for a single merchant account.
type Builder struct {
	Key          string
	MerchantName string
	MerchantCity string
}

// Payload renders the copy-and-paste payload for one order. txid correlates
// the payment with the order; amount is the order total including the
// delivery fee.
func (b Builder) Payload(txid string, amount decimal.Decimal) (string, error) {
	if b.Key == "" {
		return "", ErrMissingKey
	}
	if amount.IsNegative() || amount.IsZero() {
		return "", errors.Errorf("amount must be positive, got %s", amount)
	}

	account := emv(subGUI, gui) + emv(subKey, b.Key)
	additional := emv(subTxID, sanitizeTxID(txid))

	var sb strings.Builder
	sb.WriteString(emv(idPayloadFormat, "01"))
	sb.WriteString(emv(idInitiationMethod, initiationDynamic))
	sb.WriteString(emv(idMerchantAccountInfo, account))
	sb.WriteString(emv(idMerchantCategory, categoryNone))
	sb.WriteString(emv(idCurrency, currencyBRL))
	sb.WriteString(emv(idAmount, amount.StringFixed(2)))
	sb.WriteString(emv(idCountry, countryBR))
	sb.WriteString(emv(idMerchantName, clampASCII(b.MerchantName, maxNameLen)))
	sb.WriteString(emv(idMerchantCity, clampASCII(b.MerchantCity, maxCityLen)))
	sb.WriteString(emv(idAdditionalData, additional))

	// The CRC covers everything up to and including its own "6304" prefix.
	payload := sb.String() + idCRC + "04"
	return payload + fmt.Sprintf("%04X", crc16(payload)), nil
}

// emv encodes one TLV field: two-digit ID, two-digit length, value.
func emv(id, value string) string {
	return fmt.Sprintf("%s%02d%s", id, len(value), value)
}

// clampASCII strips non-printable-ASCII runes and truncates to max bytes.
// Banking apps reject payloads with multi-byte characters in name fields.
func clampASCII(s string, max int) string {
	var sb strings.Builder
	for _, r := range s {
		if r >= 0x20 && r <= 0x7E {
			sb.WriteRune(r)
		}
	}
	out := sb.String()
	if len(out) > max {
		out = out[:max]
	}
	return out
}

// sanitizeTxID keeps only alphanumeric characters, truncates to the field
// limit, and falls back to "***" (the BR Code free-txid marker) when nothing
// survives.
func sanitizeTxID(txid string) string {
	var sb strings.Builder
	for _, r := range txid {
		switch {
		case r >= '0' && r <= '9', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
			sb.WriteRune(r)
		}
	}
	out := sb.String()
	if len(out) > maxTxIDLen {
		out = out[:maxTxIDLen]
	}
	if out == "" {
		out = "***"
	}
	return out
}

// crc16 computes CRC-16/CCITT-FALSE (poly 0x1021, init 0xFFFF) as required
// by the BR Code spec.
func crc16(s string) uint16 {
	crc := uint16(0xFFFF)
	for i := 0; i < len(s); i++ {
		crc ^= uint16(s[i]) << 8
		for range 8 {
			if crc&0x8000 != 0 {
				crc = crc<<1 ^ 0x1021
			} else {
				crc <<= 1
			}
		}
	}
	return crc
}
