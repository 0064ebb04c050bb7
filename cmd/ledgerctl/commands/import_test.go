package commands

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeRecordsArray(t *testing.T) {
	records, err := decodeRecords(strings.NewReader(`
  [
    {"order_code": "A-1", "customer_name": "Laila", "items": [{"product_code": "P1", "quantity": 2, "price": "10.50"}]},
    {"order_code": "A-2", "customer_name": "Omar"}
  ]`))
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "A-1", records[0].OrderCode)
	require.Len(t, records[0].Items, 1)
	assert.Equal(t, "10.5", records[0].Items[0].Price.String())
}

func TestDecodeRecordsLines(t *testing.T) {
	records, err := decodeRecords(strings.NewReader(
		`{"order_code": "A-1", "marketer": "Hana"}` + "\n" +
			`{"order_code": "A-2", "mandobe": "Karim"}` + "\n"))
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "Hana", records[0].MarketerName)
	assert.Equal(t, "Karim", records[1].MandobeName)
}

func TestDecodeRecordsErrors(t *testing.T) {
	records, err := decodeRecords(strings.NewReader("  \n"))
	require.NoError(t, err)
	assert.Empty(t, records)

	_, err = decodeRecords(strings.NewReader(`{"order_code": "A-1"}` + "\n" + `{"order_code": `))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode order 2")
}
