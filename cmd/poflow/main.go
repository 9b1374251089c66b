package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"poflow/internal/app"
	"poflow/internal/config"
	"poflow/internal/connectors"
	"poflow/internal/document"
	"poflow/internal/listener"
	"poflow/internal/pipeline"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	cfg, err := config.Load()
	must(err)
	log := config.NewLogger(cfg)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	a, err := app.New(ctx, cfg, log)
	must(err)
	defer a.Close()

	cmd := os.Args[1]
	args := os.Args[2:]
	switch cmd {
	case "run":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		input := fs.String("input", "", "purchase order pdf")
		output := fs.String("output", "", "export path (.csv or .xlsx)")
		finalize := fs.Bool("finalize", false, "save selected matches and finalize the order")
		_ = fs.Parse(args)
		if *input == "" {
			must(fmt.Errorf("--input is required"))
		}

		doc, err := document.Load(*input)
		must(err)
		report, err := a.NewOrchestrator().RunDocument(ctx, doc, *finalize)
		must(err)

		if *output != "" {
			must(writeExport(pipeline.ExportRows(report.Items), *output))
		}
		fmt.Printf("run done order=%s items=%d matched=%d selected=%d\n",
			report.OrderID, report.Counts["items"], report.Counts["matched"], report.Counts["selected"])
	case "catalog:import":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		file := fs.String("file", "", "catalog .xlsx or .csv")
		_ = fs.Parse(args)
		if *file == "" {
			must(fmt.Errorf("--file is required"))
		}
		count, err := a.Catalog.ImportFile(*file)
		must(err)
		fmt.Printf("catalog import complete: %d products\n", count)
	case "order:export":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		orderID := fs.String("order", "", "order id")
		out := fs.String("out", "", "output path (.csv or .xlsx)")
		_ = fs.Parse(args)
		if strings.TrimSpace(*orderID) == "" || strings.TrimSpace(*out) == "" {
			must(fmt.Errorf("--order and --out are required"))
		}
		items, err := a.Orders.ListItems(ctx, *orderID)
		must(err)
		if len(items) == 0 {
			must(fmt.Errorf("no items for order %s", *orderID))
		}
		must(writeExport(pipeline.ExportRowsFromOrderItems(items), *out))
		fmt.Printf("exported %d rows to %s\n", len(items), *out)
	case "mail:fetch":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		provider := fs.String("provider", cfg.MailListenerProvider, "gmail|imap")
		label := fs.String("label", cfg.MailListenerLabel, "mailbox/label")
		max := fs.Int("max", 50, "max messages")
		_ = fs.Parse(args)
		conn, err := listener.NewConnector(cfg)(ctx, strings.ToLower(strings.TrimSpace(*provider)))
		must(err)
		fetch := connectors.NewFetchService(a.DB, cfg.RawMailDir, conn, log)
		result, err := fetch.FetchAndStore(ctx, *label, *max)
		must(err)
		fmt.Printf("mail fetch done provider=%s fetched=%d stored=%d\n", *provider, result.Fetched, result.Stored)
	case "mail:process":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		provider := fs.String("provider", "", "gmail|imap, empty for all")
		messageID := fs.String("messageId", "", "specific message-id")
		batch := fs.Int("batch", cfg.MailListenerProcessBatch, "batch size")
		_ = fs.Parse(args)
		processor := a.Processor()
		if strings.TrimSpace(*messageID) != "" {
			res, err := processor.ProcessByProviderMessageID(ctx, *provider, *messageID)
			must(err)
			fmt.Printf("processed email id=%d status=%s orders=%s\n", res.EmailID, res.Status, strings.Join(res.Orders, ","))
			return
		}
		results, err := processor.ProcessPending(ctx, *batch, *provider)
		must(err)
		orders := 0
		for _, r := range results {
			orders += len(r.Orders)
		}
		fmt.Printf("processed pending emails=%d orders=%d\n", len(results), orders)
	case "mail:listen":
		must(a.Listener().Run(ctx))
	default:
		usage()
		os.Exit(1)
	}
}

func writeExport(rows []pipeline.ExportRow, path string) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx":
		return pipeline.ExportXLSX(rows, path)
	case ".csv":
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return err
		}
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		if err := pipeline.WriteExportCSV(f, rows); err != nil {
			_ = f.Close()
			return err
		}
		return f.Close()
	default:
		return fmt.Errorf("unsupported export format: %s", path)
	}
}

func usage() {
	fmt.Println("usage: poflow <command>")
	fmt.Println("commands:")
	fmt.Println("  run --input=po.pdf [--output=out.csv|out.xlsx] [--finalize]")
	fmt.Println("  catalog:import --file=catalog.xlsx")
	fmt.Println("  order:export --order=ID --out=./out/order.csv")
	fmt.Println("  mail:fetch --provider=gmail|imap --label=INBOX --max=50")
	fmt.Println("  mail:process [--provider=gmail|imap] [--messageId=...] [--batch=10]")
	fmt.Println("  mail:listen")
}

func must(err error) {
	if err == nil {
		return
	}
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}
