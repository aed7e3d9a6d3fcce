package main

import (
	"context"
	"flag"
	"fmt"
	"time"

	"github.com/mirrorhop/mirrorhop/pkg/probe"
	"github.com/mirrorhop/mirrorhop/pkg/scanner"
)

func main() {
	// Usage: go run *.go -template "https://example{date}.net" -window 3

	templateFlag := flag.String("template", scanner.DefaultTemplate, "Candidate URL template with a {date} placeholder")
	windowFlag := flag.Int("window", scanner.DefaultWindow, "Number of days to look back")
	minFlag := flag.Int64("min-bytes", probe.DefaultMinBytes, "Minimum body size for a live mirror")

	// Parse the command-line flags
	flag.Parse()

	opts := scanner.DefaultOptions()
	opts.Template = *templateFlag
	opts.Window = *windowFlag
	opts.Probe.MinBytes = *minFlag

	svc, err := scanner.New(opts)
	if err != nil {
		fmt.Println(err)
		return
	}

	res := svc.TriggerScan(context.Background())
	for _, o := range res.Outcomes {
		fmt.Println(o.URL, o.Kind, o.StatusCode, o.BytesRead, o.Elapsed.Round(time.Millisecond))
	}

	if !res.Found() {
		fmt.Println("No mirror available")
		return
	}
	fmt.Println("Selected:", res.Selected)

	// The event log keeps what happened during the scan.
	for _, ev := range svc.Logs() {
		fmt.Println(ev.Timestamp.Format(time.RFC3339), ev.Kind, ev.Message)
	}
}
