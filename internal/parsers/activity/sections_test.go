package activity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIdentifySections_BasicGrouping(t *testing.T) {
	text := `Trades,Header,DataDiscriminator,Symbol
Trades,Data,Order,AAPL
Trades,Data,Order,MSFT
Cash Report,Header,Currency
Cash Report,Data,USD`

	secs := IdentifySections(text)

	require.True(t, secs.Has("Trades"))
	rows, _ := secs.Rows("Trades")
	require.Len(t, rows, 2)
	assert.Equal(t, "AAPL", rows[0][3])
	assert.Equal(t, "MSFT", rows[1][3])

	cashRows, ok := secs.Rows("Cash Report")
	require.True(t, ok)
	assert.Len(t, cashRows, 1)
}

func TestIdentifySections_RepeatedSectionsMerge(t *testing.T) {
	text := `Trades,Header,DataDiscriminator,Symbol
Trades,Data,Order,AAPL
Cash Report,Header,Currency
Cash Report,Data,USD
Trades,Header,DataDiscriminator,Symbol
Trades,Data,Order,TSLA`

	secs := IdentifySections(text)

	rows, _ := secs.Rows("Trades")
	require.Len(t, rows, 2)
	assert.Equal(t, "AAPL", rows[0][3])
	assert.Equal(t, "TSLA", rows[1][3])

	// First-occurrence ordering
	assert.Equal(t, []string{"Trades", "Cash Report"}, secs.Names())
}

func TestIdentifySections_NonDataRowsExcluded(t *testing.T) {
	text := `Trades,Header,DataDiscriminator,Symbol
Trades,Data,Order,AAPL
Trades,SubTotal,,AAPL
Trades,Total,,`

	secs := IdentifySections(text)

	rows, _ := secs.Rows("Trades")
	require.Len(t, rows, 1)
	assert.Equal(t, "AAPL", rows[0][3])
}

func TestIdentifySections_OpenPositionsKeepsHeaderRow(t *testing.T) {
	text := `Open Positions,Header,DataDiscriminator,Asset Category,Currency,Symbol,Quantity
Open Positions,Data,Summary,Stocks,USD,AAPL,10`

	secs := IdentifySections(text)

	rows, ok := secs.Rows(SectionOpenPositions)
	require.True(t, ok)
	// Header row is kept alongside the data row for this section only.
	require.Len(t, rows, 2)
	assert.Equal(t, "Header", rows[0][1])
	assert.Equal(t, "Data", rows[1][1])
}

func TestIdentifySections_HeaderRowsExcludedElsewhere(t *testing.T) {
	text := `Trades,Header,DataDiscriminator,Symbol
Trades,Data,Order,AAPL`

	secs := IdentifySections(text)

	rows, _ := secs.Rows("Trades")
	require.Len(t, rows, 1)
	assert.Equal(t, "Data", rows[0][1])
}

func TestIdentifySections_EmptyInput(t *testing.T) {
	secs := IdentifySections("")
	assert.Equal(t, 0, secs.Len())
	assert.Empty(t, secs.Names())
}
