// Package report renders result tables for people and spreadsheets.
package report

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/BayesicGaming/MKWTTSpeedruns/internal/domain/entity"
)

func WriteCSV(w io.Writer, table *entity.ResultTable) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(table.Header()); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	if err := cw.WriteAll(table.Rows()); err != nil {
		return fmt.Errorf("write csv rows: %w", err)
	}
	return nil
}

// WriteText prints an aligned table followed by the total time line.
func WriteText(w io.Writer, table *entity.ResultTable) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(table.Header(), "\t"))
	for _, row := range table.Rows() {
		fmt.Fprintln(tw, strings.Join(row, "\t"))
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	line, err := TotalLine(table)
	if errors.Is(err, entity.ErrNoData) {
		_, err = fmt.Fprintln(w, "\nNo times detected.")
		return err
	}
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "\n%s\n", line)
	return err
}

func TotalLine(table *entity.ResultTable) (string, error) {
	total, err := table.TotalTime()
	if err != nil {
		return "", err
	}
	return "Total Time: " + entity.FormatTotal(total), nil
}
