package activity

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTokenize(t *testing.T) {
	tests := []struct {
		name string
		line string
		want []string
	}{
		{
			name: "plain fields",
			line: "a,b,c",
			want: []string{"a", "b", "c"},
		},
		{
			name: "quoted field with embedded comma",
			line: `a,"b,c",d`,
			want: []string{"a", "b,c", "d"},
		},
		{
			name: "doubled quote unescapes",
			line: `a,"b""c"`,
			want: []string{"a", `b"c`},
		},
		{
			name: "whitespace trimmed",
			line: " a , b ,c ",
			want: []string{"a", "b", "c"},
		},
		{
			name: "empty fields preserved",
			line: "a,,c",
			want: []string{"a", "", "c"},
		},
		{
			name: "unterminated quote consumes to end of line",
			line: `a,"b,c`,
			want: []string{"a", "b,c"},
		},
		{
			name: "empty line yields one empty field",
			line: "",
			want: []string{""},
		},
		{
			name: "quoted date time field",
			line: `Trades,Data,Order,Stocks,USD,AAPL,"2023-06-01, 09:30:00",10`,
			want: []string{"Trades", "Data", "Order", "Stocks", "USD", "AAPL", "2023-06-01, 09:30:00", "10"},
		},
		{
			name: "thousands separator inside quotes",
			line: `Trades,Data,Order,Stocks,USD,AAPL,"2023-06-01, 09:30:00","1,000",185.50`,
			want: []string{"Trades", "Data", "Order", "Stocks", "USD", "AAPL", "2023-06-01, 09:30:00", "1,000", "185.50"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Tokenize(tt.line))
		})
	}
}

func TestSplitAndTokenize_SkipsBlankLinesAndCR(t *testing.T) {
	lines := splitAndTokenize("a,b\r\n\r\n  \nc,d\n")

	assert.Len(t, lines, 2)
	assert.Equal(t, []string{"a", "b"}, lines[0])
	assert.Equal(t, []string{"c", "d"}, lines[1])
}
