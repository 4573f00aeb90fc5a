// Command quotecalc prices a quote request offline, without the API or any store.
//
//	quotecalc -in basket.json -mode unbranded -format text
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/noah-isme/backend-quote/internal/pricing"
	"github.com/noah-isme/backend-quote/internal/quote"
)

func main() {
	if err := run(os.Args[1:], os.Stdin, os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "quotecalc:", err)
		os.Exit(1)
	}
}

func run(args []string, stdin io.Reader, stdout io.Writer) error {
	defaults := pricing.DefaultSettings()
	fs := flag.NewFlagSet("quotecalc", flag.ContinueOnError)
	var (
		in            = fs.String("in", "-", "request JSON file, - for stdin")
		modeFlag      = fs.String("mode", "", "branded or unbranded; defaults to the request's mode")
		margin        = fs.Float64("margin", defaults.MarginRate, "margin rate in [0,1)")
		vat           = fs.Float64("vat", defaults.VatRate, "VAT rate")
		deliveryFee   = fs.Float64("delivery-fee", defaults.DeliveryFeeFlat, "flat delivery fee ex VAT")
		freeThreshold = fs.Float64("free-threshold", defaults.DeliveryFreeThreshold, "items total incl. VAT from which delivery is free")
		format        = fs.String("format", "json", "output format: json or text")
		currency      = fs.String("currency", "ZAR", "currency code shown in the output")
	)
	fs.SetOutput(io.Discard)
	if err := fs.Parse(args); err != nil {
		return err
	}

	settings := pricing.Settings{
		MarginRate:            *margin,
		VatRate:               *vat,
		DeliveryFeeFlat:       *deliveryFee,
		DeliveryFreeThreshold: *freeThreshold,
	}
	if err := settings.Validate(); err != nil {
		return err
	}

	req, err := readRequest(*in, stdin)
	if err != nil {
		return err
	}
	raw := req.Mode
	if *modeFlag != "" {
		raw = *modeFlag
	}
	mode, ok := quote.ParseMode(raw)
	if !ok {
		return fmt.Errorf("unknown mode %q", raw)
	}

	q := quote.Engine{Settings: settings}.Build(req, mode)
	q.Currency = strings.ToUpper(*currency)

	switch strings.ToLower(*format) {
	case "json":
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(q)
	case "text":
		return writeText(stdout, q)
	default:
		return fmt.Errorf("unknown format %q", *format)
	}
}

func readRequest(path string, stdin io.Reader) (quote.Request, error) {
	r := stdin
	if path != "" && path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return quote.Request{}, err
		}
		defer f.Close()
		r = f
	}
	var req quote.Request
	dec := json.NewDecoder(r)
	dec.UseNumber()
	if err := dec.Decode(&req); err != nil {
		return quote.Request{}, fmt.Errorf("decode request: %w", err)
	}
	return req, nil
}

func writeText(w io.Writer, q quote.Quote) error {
	p := message.NewPrinter(language.English)
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', tabwriter.AlignRight)

	p.Fprintf(tw, "#\tItem\tQty\tUnit\tTotal\t\n")
	for i, it := range q.Items {
		name := itemName(it, i)
		if it.OutOfStock {
			p.Fprintf(tw, "%d\t%s\t%v\tout of stock\t%d\t\n", i+1, name, it.QtyRequested, 0)
			continue
		}
		p.Fprintf(tw, "%d\t%s\t%v\t%d\t%d\t\n", i+1, name, it.Qty, it.UnitPrice, it.LineTotal)
	}
	p.Fprintf(tw, "\t\t\t\t\t\n")
	p.Fprintf(tw, "\tItems\t\t\t%d\t\n", q.Totals.ItemsSubtotal)
	p.Fprintf(tw, "\tDelivery\t\t\t%d\t\n", q.DeliveryFee)
	p.Fprintf(tw, "\tSubtotal\t\t\t%d\t\n", q.Totals.Subtotal)
	p.Fprintf(tw, "\tVAT %.0f%%\t\t\t%d\t\n", q.VatRate*100, q.Totals.Vat)
	p.Fprintf(tw, "\tTotal %s\t\t\t%d\t\n", q.Currency, q.Totals.GrandTotal)
	return tw.Flush()
}

func itemName(it quote.Item, i int) string {
	for _, k := range []string{"name", "title", "description", "item_code", "sku"} {
		if s, ok := it.Fields[k].(string); ok && strings.TrimSpace(s) != "" {
			return s
		}
	}
	return fmt.Sprintf("item %d", i+1)
}
