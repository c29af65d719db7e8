package pix

import (
	"fmt"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCRC16_KnownVector(t *testing.T) {
	// CRC-16/CCITT-FALSE check value from the CRC catalogue.
	assert.Equal(t, uint16(0x29B1), crc16("123456789"))
}

func TestEMV_Encoding(t *testing.T) {
	assert.Equal(t, "0014br.gov.bcb.pix", emv("00", "br.gov.bcb.pix"))
	assert.Equal(t, "5303986", emv("53", "986"))
}

func TestPayload_Structure(t *testing.T) {
	b := Builder{
		Key:          "pagamentos@pizzariabella.com.br",
		MerchantName: "Pizzaria Bella",
		MerchantCity: "Sao Paulo",
	}

	payload, err := b.Payload("20260901120000-ab12cd34", decimal.RequireFromString("46.90"))
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(payload, "000201"), payload)
	assert.Contains(t, payload, "br.gov.bcb.pix")
	assert.Contains(t, payload, b.Key)
	assert.Contains(t, payload, "5303986")
	assert.Contains(t, payload, "540546.90")
	assert.Contains(t, payload, "5802BR")
	assert.Contains(t, payload, "Pizzaria Bella")

	// Trailing CRC: "6304" plus four uppercase hex digits, and the digits
	// must match a recomputation over everything before them.
	require.Greater(t, len(payload), 8)
	tail := payload[len(payload)-8:]
	require.True(t, strings.HasPrefix(tail, "6304"), tail)
	var got uint16
	_, err = fmt.Sscanf(tail[4:], "%04X", &got)
	require.NoError(t, err)
	assert.Equal(t, crc16(payload[:len(payload)-4]), got)
	assert.Equal(t, payload[len(payload)-4:], strings.ToUpper(payload[len(payload)-4:]))
}

func TestPayload_TxIDSanitized(t *testing.T) {
	b := Builder{Key: "chave@loja.br", MerchantName: "Loja", MerchantCity: "Recife"}

	payload, err := b.Payload("2026-09-01/12:00!!", decimal.NewFromInt(10))
	require.NoError(t, err)
	assert.Contains(t, payload, "20260901")
	assert.NotContains(t, payload, "12:00")

	// Nothing alphanumeric left: fall back to the free-txid marker.
	payload, err = b.Payload("!!!", decimal.NewFromInt(10))
	require.NoError(t, err)
	assert.Contains(t, payload, "***")
}

func TestPayload_NameClamped(t *testing.T) {
	b := Builder{
		Key:          "chave@loja.br",
		MerchantName: "Churrascaria Fogo de Chão Premium Internacional",
		MerchantCity: "Florianópolis",
	}

	payload, err := b.Payload("tx1", decimal.NewFromInt(10))
	require.NoError(t, err)
	// 25-byte limit on merchant name; accented runes are stripped, not mangled.
	assert.NotContains(t, payload, "Internacional")
	assert.NotContains(t, payload, "ó")
}

func TestPayload_Errors(t *testing.T) {
	_, err := Builder{}.Payload("tx", decimal.NewFromInt(10))
	require.ErrorIs(t, err, ErrMissingKey)

	b := Builder{Key: "chave@loja.br", MerchantName: "Loja", MerchantCity: "Recife"}
	_, err = b.Payload("tx", decimal.Zero)
	require.Error(t, err)
	_, err = b.Payload("tx", decimal.NewFromInt(-5))
	require.Error(t, err)
}
