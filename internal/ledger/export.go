package ledger

import (
	"bufio"
	"io"
	"strings"
)

// CSVHeader is the header row of ExportCSV.
const CSVHeader = "Tipo,Monto,Moneda,Fecha,Categoría,Notas"

// ExportCSV writes every transaction as type,amount,currency,date,category,notes.
// Fields are written verbatim: a comma or newline inside category or notes is
// not escaped and will shift columns for the reader.
func (l *Ledger) ExportCSV(w io.Writer) error {
	bw := bufio.NewWriter(w)
	if _, err := bw.WriteString(CSVHeader + "\n"); err != nil {
		return err
	}
	for _, t := range l.transactions {
		row := []string{
			string(t.Type),
			t.Amount.String(),
			string(t.Currency),
			t.Date.String(),
			t.Category,
			t.Notes,
		}
		if _, err := bw.WriteString(strings.Join(row, ",") + "\n"); err != nil {
			return err
		}
	}
	return bw.Flush()
}
