package investing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"b3collect/internal/market"
)

const calendarHTML = `<table id="dividendsCalendarData" class="genTbl closedTbl dividendTbl">
<thead><tr><th></th><th>Empresa</th><th>Data ex-dividendos</th><th>Dividendo</th><th>Tipo</th><th>Pagamento</th><th>Rendimento</th></tr></thead>
<tbody>
<tr class="theDay"><td colspan="7">segunda-feira, 22 de janeiro de 2024</td></tr>
<tr>
	<td class="flag"><span title="Brasil" class="ceFlags Brazil">&nbsp;</span></td>
	<td class="left noWrap"><span class="earnCalCompanyName middle">Petrobras</span>&nbsp;(<a href="/equities/petrobras-pn">PETR4</a>)</td>
	<td>22.01.2024</td>
	<td>1,2345</td>
	<td data-value="1"><span class="dividendTypeIcon" title="Mensal">Mensal</span></td>
	<td>20.02.2024</td>
	<td>3,10%</td>
</tr>
<tr>
	<td class="flag"></td>
	<td class="left noWrap">
		<span class="earnCalCompanyName middle">Itaú   Unibanco</span> (<a>ITUB4</a>)
	</td>
	<td>31.01.2024</td><td>0,017</td><td>Mensal</td><td>01.03.2024</td><td>0,55%</td>
</tr>
<tr class="theDay"><td>a</td><td>b</td><td>c</td><td>d</td><td>e</td><td>f</td><td>g</td></tr>
<tr><td colspan="6">Nenhum evento</td></tr>
</tbody>
</table>`

func TestParseCalendar(t *testing.T) {
	events, err := ParseCalendar(calendarHTML)
	require.NoError(t, err)

	assert.Equal(t, []market.DividendEvent{
		{
			Company:   "Petrobras (PETR4)",
			ExDate:    "22.01.2024",
			Dividend:  "1,2345",
			Type:      "Mensal",
			PayDate:   "20.02.2024",
			YieldRate: "3,10%",
		},
		{
			Company:   "Itaú Unibanco (ITUB4)",
			ExDate:    "31.01.2024",
			Dividend:  "0,017",
			Type:      "Mensal",
			PayDate:   "01.03.2024",
			YieldRate: "0,55%",
		},
	}, events)
}

func TestParseCalendar_NoEvents(t *testing.T) {
	tests := []struct {
		name string
		html string
	}{
		{"empty string", ""},
		{"only day separators", `<table id="dividendsCalendarData"><tr class="theDay"><td colspan="7">hoje</td></tr></table>`},
		{"no table", `<div>Sem resultados</div>`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			events, err := ParseCalendar(tt.html)
			require.NoError(t, err)
			assert.Empty(t, events)
			assert.NotNil(t, events)
		})
	}
}
