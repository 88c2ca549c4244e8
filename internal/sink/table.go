package sink

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/pterm/pterm"

	"github.com/1ureka/abxclient/internal/protocol"
)

// Table renders the packets as a terminal table.
type Table struct {
	Writer io.Writer
}

func (t *Table) Write(_ context.Context, packets []protocol.Packet) error {
	data := pterm.TableData{{"Sequence", "Symbol", "Side", "Quantity", "Price"}}
	for _, p := range packets {
		data = append(data, []string{
			strconv.FormatUint(uint64(p.Sequence), 10),
			p.Symbol.String(),
			p.Side.String(),
			strconv.FormatInt(int64(p.Quantity), 10),
			strconv.FormatInt(int64(p.Price), 10),
		})
	}

	out, err := pterm.DefaultTable.WithHasHeader().WithBoxed().WithData(data).Srender()
	if err != nil {
		return fmt.Errorf("failed to render table: %w", err)
	}
	_, err = fmt.Fprintln(t.Writer, out)
	return err
}
