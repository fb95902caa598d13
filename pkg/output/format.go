// Package output provides utilities for formatting and displaying resolved
// circles.
package output

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"

	"github.com/iwvelando/cultist-circle/internal/circle"
	"github.com/iwvelando/cultist-circle/pkg/constants"
	"github.com/iwvelando/cultist-circle/pkg/format"
)

// Write renders resp in the named format.
func Write(w io.Writer, outputFormat string, resp circle.Response) error {
	switch outputFormat {
	case constants.OutputFormatPretty:
		return Pretty(w, resp)
	case constants.OutputFormatCSV:
		return CSV(w, resp)
	case constants.OutputFormatJSON:
		return JSON(w, resp)
	default:
		return fmt.Errorf("unsupported output format %s", outputFormat)
	}
}

// Pretty outputs a human-readable rather than machine-readable table.
func Pretty(w io.Writer, resp circle.Response) error {
	fmt.Fprintf(w, "--- Cultist circle (%s) ---\n", resp.Mode)
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "Slot\tItem\tBase value\tCost\tNotes")
	fmt.Fprintln(tw, "____\t____\t__________\t____\t_____")
	for i, slot := range resp.Slots {
		if slot.Item == nil {
			fmt.Fprintf(tw, "%d\t-\t-\t-\t%s\n", i+1, notes(slot.Pinned, false))
			continue
		}
		cost, overridden := slotCost(resp, i)
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", i+1, slot.Item.Name,
			format.Roubles(slot.Item.BaseValue), format.Roubles(cost), notes(slot.Pinned, overridden))
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	status := "met"
	if !resp.ThresholdMet {
		status = fmt.Sprintf("short by %s", format.Roubles(resp.Remaining))
	}
	fmt.Fprintf(w, "Total value: %s / %s (%s)\n", format.Roubles(resp.TotalValue), format.Roubles(resp.Threshold), status)
	_, err := fmt.Fprintf(w, "Total cost:  %s\n", format.Roubles(resp.TotalCost))
	return err
}

// CSV outputs one row per slot in comma-separated value format.
func CSV(w io.Writer, resp circle.Response) error {
	cw := csv.NewWriter(w)
	_ = cw.Write([]string{"slot", "id", "name", "base value", "cost", "pinned", "overridden"})
	for i, slot := range resp.Slots {
		row := []string{strconv.Itoa(i + 1), "", "", "", "", strconv.FormatBool(slot.Pinned), "false"}
		if slot.Item != nil {
			cost, overridden := slotCost(resp, i)
			row[1] = slot.Item.ID
			row[2] = slot.Item.Name
			row[3] = strconv.FormatInt(slot.Item.BaseValue, 10)
			row[4] = strconv.FormatInt(cost, 10)
			row[6] = strconv.FormatBool(overridden)
		}
		_ = cw.Write(row)
	}
	_ = cw.Write([]string{"total", "", "", strconv.FormatInt(resp.TotalValue, 10), strconv.FormatInt(resp.TotalCost, 10), "", ""})
	cw.Flush()
	return cw.Error()
}

// JSON outputs the response as indented JSON.
func JSON(w io.Writer, resp circle.Response) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(resp)
}

func slotCost(resp circle.Response, i int) (int64, bool) {
	item := resp.Slots[i].Item
	if cost, ok := resp.Overrides[item.ID]; ok {
		return cost, true
	}
	return item.MarketCost, false
}

func notes(pinned, overridden bool) string {
	switch {
	case pinned && overridden:
		return "pinned, manual price"
	case pinned:
		return "pinned"
	case overridden:
		return "manual price"
	}
	return ""
}
