// Command titlegen generates and ranks titles for one article and prints the table.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/joho/godotenv"

	"occtitles/pkg/assistant"
	"occtitles/pkg/config"
	"occtitles/pkg/editor"
	"occtitles/pkg/generator"
	"occtitles/pkg/request"
	"occtitles/pkg/scorer"
	"occtitles/pkg/titles"
	"occtitles/pkg/tracker"
)

func main() {
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("titlegen", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "configs/occtitles.yaml", "Path to the config file")
	style := fs.String("style", "", "Title style (empty lets the assistant choose)")
	verbose := fs.Bool("v", false, "Print job progress")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *style != "" {
		st, ok := titles.LookupStyle(*style)
		if !ok {
			return fmt.Errorf("unknown style %q, choose one of: %s", *style, styleNames())
		}
		*style = st.Value
	}

	body, err := readInput(fs.Arg(0), stdin)
	if err != nil {
		return err
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	level := slog.LevelWarn
	if *verbose {
		level = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level})))

	tr := tracker.New()
	client, err := assistant.NewClient(cfg.Assistant, request.New(tr, request.ClientConfig{
		Retries:   cfg.Request.Retries,
		Timeout:   cfg.Request.Timeout.Std(),
		BaseDelay: cfg.Request.Backoff.BaseDelay.Std(),
		MaxDelay:  cfg.Request.Backoff.MaxDelay.Std(),
	}))
	if err != nil {
		return err
	}
	svc := generator.NewService(client, config.NewProvider(cfg, nil), tr)

	var obs titles.Observer
	if *verbose {
		obs = func(ev titles.Event) {
			fmt.Fprintf(stderr, "[%s] attempt %d %s\n", ev.Status, ev.Attempts, ev.Detail)
		}
	}

	sess := editor.NewSession("post", "", cfg.Editor.Retries)
	res, err := sess.Generate(ctx, svc, editor.Request{Content: body, Style: *style}, obs)
	if err != nil {
		return fmt.Errorf("%s", titles.DisplayMessage(err))
	}

	printTable(stdout, res.Rows)
	fmt.Fprintln(stdout)
	fmt.Fprintln(stdout, res.KeywordLine)
	return nil
}

func readInput(path string, stdin io.Reader) (string, error) {
	var (
		data []byte
		err  error
	)
	if path == "" || path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return "", fmt.Errorf("failed to read article: %w", err)
	}
	return string(data), nil
}

func printTable(w io.Writer, rows []scorer.Row) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "\tTITLE\tCHARS\tSTYLE\tSEO\tSENTIMENT\tDENSITY\tREADABILITY\tSCORE")
	for i, r := range rows {
		mark := ""
		if r.Best {
			mark = "*"
		}
		fmt.Fprintf(tw, "%d%s\t%s\t%d\t%s\t%s\t%s\t%s\t%s\t%s\n",
			i, mark, r.Title, r.CharCount, r.Style, r.SEOGrade, r.Sentiment, r.KeywordDensity, r.Readability, r.OverallScore)
	}
	tw.Flush()
}

func styleNames() string {
	names := make([]string, 0, len(titles.Styles))
	for _, s := range titles.Styles {
		names = append(names, s.Label)
	}
	return strings.Join(names, ", ")
}
