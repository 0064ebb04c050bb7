package commands

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"sales-ledger/internal/ledger"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	// Import flags
	importFile    string
	importURL     string
	importRetries uint64
)

var importCmd = &cobra.Command{
	Use:   "import-orders",
	Short: "Import orders from a JSON export",
	Long: `Import orders from a JSON array or newline-delimited JSON (one order per line).

Orders whose order_code is already stored are skipped, so an export can be
replayed after a partial run. Missing products are created by code, marketers
and mandobes by name.

Examples:
  ledgerctl import-orders --file orders.json
  ledgerctl import-orders --url https://old-system.local/export/orders --json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if (importFile == "") == (importURL == "") {
			return errors.New("pass exactly one of --file or --url")
		}
		records, err := loadRecords(cmd.Context())
		if err != nil {
			return err
		}

		svc, _, err := openLedger()
		if err != nil {
			return err
		}
		policy := ledger.DefaultRetry
		policy.MaxRetries = importRetries
		report, err := svc.ImportOrders(cmd.Context(), records, policy, actor())
		if err != nil {
			return err
		}
		logger.Info("import finished",
			zap.Int("created", len(report.Created)),
			zap.Int("skipped", len(report.Skipped)),
			zap.Int("failed", len(report.Failed)))

		if jsonOutput {
			return printJSON(report)
		}
		fmt.Printf("created %d, skipped %d, failed %d\n", len(report.Created), len(report.Skipped), len(report.Failed))
		for _, f := range report.Failed {
			fmt.Printf("  %s: %s\n", f.OrderCode, f.Error)
		}
		if len(report.Failed) > 0 {
			return fmt.Errorf("%d orders failed", len(report.Failed))
		}
		return nil
	},
}

func loadRecords(ctx context.Context) ([]ledger.ImportRecord, error) {
	if importFile != "" {
		f, err := os.Open(importFile)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		return decodeRecords(f)
	}

	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, importURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: %s", importURL, resp.Status)
	}
	return decodeRecords(resp.Body)
}

// decodeRecords accepts a JSON array or one JSON object per line.
func decodeRecords(r io.Reader) ([]ledger.ImportRecord, error) {
	br := bufio.NewReader(r)
	for {
		b, err := br.Peek(1)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil, nil
			}
			return nil, err
		}
		if len(bytes.TrimSpace(b)) > 0 {
			break
		}
		_, _ = br.ReadByte()
	}

	dec := json.NewDecoder(br)
	if b, _ := br.Peek(1); b[0] == '[' {
		var records []ledger.ImportRecord
		if err := dec.Decode(&records); err != nil {
			return nil, fmt.Errorf("decode orders: %w", err)
		}
		return records, nil
	}

	var records []ledger.ImportRecord
	for {
		var rec ledger.ImportRecord
		err := dec.Decode(&rec)
		if errors.Is(err, io.EOF) {
			return records, nil
		}
		if err != nil {
			return nil, fmt.Errorf("decode order %d: %w", len(records)+1, err)
		}
		records = append(records, rec)
	}
}

func init() {
	importCmd.Flags().StringVar(&importFile, "file", "", "Path to the export file")
	importCmd.Flags().StringVar(&importURL, "url", "", "URL serving the export")
	importCmd.Flags().Uint64Var(&importRetries, "retries", ledger.DefaultRetry.MaxRetries, "Retries per order on transient database errors")
	rootCmd.AddCommand(importCmd)
}
