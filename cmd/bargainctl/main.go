package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/tolmol-io/tolmol/internal/config"
	"github.com/tolmol-io/tolmol/internal/discovery"
	"github.com/tolmol-io/tolmol/internal/logbuf"
	"github.com/tolmol-io/tolmol/internal/phone"
	"github.com/tolmol-io/tolmol/internal/store"
	"github.com/tolmol-io/tolmol/internal/tactics"
	"github.com/tolmol-io/tolmol/internal/telephony"
	"github.com/tolmol-io/tolmol/internal/trip"
	"github.com/tolmol-io/tolmol/pkg/protocol"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(0)
	}

	switch os.Args[1] {
	case "trip":
		if len(os.Args) < 3 {
			fmt.Fprintln(os.Stderr, "usage: bargainctl trip <new|status|list>")
			os.Exit(1)
		}
		switch os.Args[2] {
		case "new":
			cmdTripNew(os.Args[3:])
		case "status":
			if len(os.Args) < 4 {
				fmt.Fprintln(os.Stderr, "usage: bargainctl trip status <id>")
				os.Exit(1)
			}
			cmdTripStatus(os.Args[3])
		case "list":
			cmdTripList(os.Args[3:])
		default:
			fmt.Fprintf(os.Stderr, "unknown trip subcommand: %s\n", os.Args[2])
			os.Exit(1)
		}
	case "sessions":
		if len(os.Args) < 3 {
			fmt.Fprintln(os.Stderr, "usage: bargainctl sessions <trip-id> [--transcript]")
			os.Exit(1)
		}
		cmdSessions(os.Args[2], os.Args[3:])
	case "vendors":
		if len(os.Args) < 3 {
			fmt.Fprintln(os.Stderr, "usage: bargainctl vendors <show|blacklist>")
			os.Exit(1)
		}
		switch os.Args[2] {
		case "show":
			if len(os.Args) < 4 {
				fmt.Fprintln(os.Stderr, "usage: bargainctl vendors show <phone>")
				os.Exit(1)
			}
			cmdVendorsShow(os.Args[3])
		case "blacklist":
			if len(os.Args) < 4 {
				fmt.Fprintln(os.Stderr, "usage: bargainctl vendors blacklist <phone> [--reason r]")
				os.Exit(1)
			}
			cmdVendorsBlacklist(os.Args[3], os.Args[4:])
		default:
			fmt.Fprintf(os.Stderr, "unknown vendors subcommand: %s\n", os.Args[2])
			os.Exit(1)
		}
	case "logs":
		cmdLogs(os.Args[2:])
	case "run":
		cmdRun(os.Args[2:])
	case "config":
		if len(os.Args) < 4 || os.Args[2] != "validate" {
			fmt.Fprintln(os.Stderr, "usage: bargainctl config validate <path>")
			os.Exit(1)
		}
		cmdConfigValidate(os.Args[3])
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

// --- trip commands ---

func tripFlags(fs *flag.FlagSet) func() protocol.TripRequest {
	dest := fs.String("dest", "", "Destination")
	start := fs.String("start", "", "Start date (YYYY-MM-DD)")
	end := fs.String("end", "", "End date (YYYY-MM-DD)")
	party := fs.Int("party", 2, "Party size")
	budgetMin := fs.Float64("budget-min", 0, "Budget floor")
	budgetMax := fs.Float64("budget-max", 0, "Budget target ceiling")
	stretch := fs.Float64("stretch", 0, "Absolute budget ceiling (defaults to budget-max)")
	category := fs.String("category", "taxi", "Vendor category (taxi|homestay|guide|activity|restaurant)")

	return func() protocol.TripRequest {
		s := *stretch
		if s == 0 {
			s = *budgetMax
		}
		return protocol.TripRequest{
			Destination:   *dest,
			StartDate:     *start,
			EndDate:       *end,
			PartySize:     *party,
			BudgetMin:     *budgetMin,
			BudgetMax:     *budgetMax,
			BudgetStretch: s,
			Category:      protocol.VendorCategory(*category),
		}
	}
}

// cmdTripNew queues a trip for the daemon: the record lands in the shared
// database in the planning phase and the next sweep picks it up.
func cmdTripNew(args []string) {
	fs := flag.NewFlagSet("trip new", flag.ExitOnError)
	request := tripFlags(fs)
	user := fs.String("user", "", "Requesting user ID")
	dataDir := fs.String("data-dir", envOr("TOLMOL_DATA_DIR", "/data"), "Daemon data directory")
	fs.Parse(args)

	st := openStore(*dataDir)
	defer st.Close()

	o := &trip.Orchestrator{Store: st, Logger: quietLogger()}
	t, err := o.Create(request(), *user)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("trip %s queued (%s %s, budget %.0f-%.0f/%.0f)\n",
		t.ID, t.Request.Destination, t.Request.Category,
		t.Request.BudgetMin, t.Request.BudgetMax, t.Request.BudgetStretch)
}

func cmdTripStatus(id string) {
	st := openStore(envOr("TOLMOL_DATA_DIR", "/data"))
	defer st.Close()

	t, err := st.GetTrip(id)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(prettyJSON(t))
}

func cmdTripList(args []string) {
	fs := flag.NewFlagSet("trip list", flag.ExitOnError)
	active := fs.Bool("active", false, "Only non-terminal trips")
	limit := fs.Int("limit", 50, "Max results")
	fs.Parse(args)

	st := openStore(envOr("TOLMOL_DATA_DIR", "/data"))
	defer st.Close()

	trips, err := st.ListTrips(store.TripFilter{Active: *active, Limit: *limit})
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	for _, t := range trips {
		deal := "-"
		if t.Deal != nil {
			deal = fmt.Sprintf("%.0f %s", t.Deal.FinalPrice, t.Deal.VendorPhone)
		}
		fmt.Printf("%-36s %-12s %-10s %-8s %s\n", t.ID, t.Phase, t.Request.Destination, t.Request.Category, deal)
	}
}

func cmdSessions(tripID string, args []string) {
	fs := flag.NewFlagSet("sessions", flag.ExitOnError)
	transcript := fs.Bool("transcript", false, "Print full event logs")
	fs.Parse(args)

	st := openStore(envOr("TOLMOL_DATA_DIR", "/data"))
	defer st.Close()

	sessions, err := st.ListSessions(tripID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	for _, s := range sessions {
		fmt.Printf("%-36s %-14s %-18s rounds=%d final=%.0f %s\n",
			s.ID, s.Phase, s.Outcome, s.Round, s.FinalPrice, s.VendorPhone)
		if *transcript {
			for _, e := range s.Events {
				fmt.Printf("  [%s] %-6s %s\n", e.Timestamp.Format(time.TimeOnly), e.Speaker, e.Utterance)
			}
		}
	}
}

// --- vendor commands ---

func cmdVendorsShow(rawPhone string) {
	st := openStore(envOr("TOLMOL_DATA_DIR", "/data"))
	defer st.Close()

	canonical, err := phone.Normalizer{}.Normalize(rawPhone)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	v, err := st.GetVendor(canonical)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(prettyJSON(v))
}

func cmdVendorsBlacklist(rawPhone string, args []string) {
	fs := flag.NewFlagSet("vendors blacklist", flag.ExitOnError)
	reason := fs.String("reason", "manual", "Blacklist reason")
	fs.Parse(args)

	st := openStore(envOr("TOLMOL_DATA_DIR", "/data"))
	defer st.Close()

	canonical, err := phone.Normalizer{}.Normalize(rawPhone)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	if err := st.BlacklistVendor(canonical, *reason); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("vendor %s blacklisted (%s)\n", canonical, *reason)
}

// cmdLogs tails the daemon's persisted log trail.
func cmdLogs(args []string) {
	fs := flag.NewFlagSet("logs", flag.ExitOnError)
	n := fs.Int("n", 100, "Number of entries")
	level := fs.String("level", "", "Minimum level (DEBUG|INFO|WARN|ERROR)")
	fs.Parse(args)

	st := openStore(envOr("TOLMOL_DATA_DIR", "/data"))
	defer st.Close()

	entries, err := st.RecentLogEntries(*n)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	minLevel := logbuf.ParseLevel(*level)
	for _, e := range entries {
		if *level != "" && logbuf.ParseLevel(e.Level) < minLevel {
			continue
		}
		line := fmt.Sprintf("[%s] %-5s %s", e.Time.Format(time.DateTime), e.Level, e.Message)
		if len(e.Attrs) > 0 {
			attrs, _ := json.Marshal(e.Attrs)
			line += " " + string(attrs)
		}
		fmt.Println(line)
	}
}

// --- run command ---

// cmdRun executes one trip end to end in process against the simulated
// directories and scripted vendors. No daemon, no bridge, throwaway store.
func cmdRun(args []string) {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	request := tripFlags(fs)
	verbose := fs.Bool("v", false, "Verbose logging")
	fs.Parse(args)

	logLevel := slog.LevelWarn
	if *verbose {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))

	dir, err := os.MkdirTemp("", "tolmol-dryrun-")
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	defer os.RemoveAll(dir)
	st := openStore(dir)
	defer st.Close()

	o := &trip.Orchestrator{
		Store:   st,
		Sources: discovery.SimulatedSources(),
		Dialer:  telephony.NewScriptedDialer(demoScripts()),
		Tactics: tactics.NewBuiltin(),
		Logger:  logger,
	}

	t, err := o.Create(request(), "")
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	if err := o.Run(context.Background(), t); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	fmt.Println(prettyJSON(t))
	sessions, _ := st.ListSessions(t.ID)
	for _, s := range sessions {
		fmt.Printf("\nsession %s (%s, %d rounds):\n", s.ID, s.Outcome, s.Round)
		for _, e := range s.Transcript() {
			fmt.Printf("  %-6s %s\n", e.Speaker, e.Utterance)
		}
	}
}

// demoScripts answer for the simulated directory vendors.
func demoScripts() map[string]telephony.Script {
	return map[string]telephony.Script{
		"+919876543210": {Answer: true, Replies: []string{
			"haan ji boliye",
			"haan available hai",
			"3500 lagega",
			"3200 se kam nahi",
			"accha theek hai, 2900 final",
			"haan pakka, done",
		}},
		"+919876543211": {Answer: true, Replies: []string{
			"haan boliye",
			"us week sab booked hai, nahi milega",
		}},
		"+919876543212": {Answer: false},
	}
}

func cmdConfigValidate(path string) {
	_, err := config.Load(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("config is valid")
}

// --- Helpers ---

func openStore(dataDir string) *store.SQLiteStore {
	st, err := store.NewSQLiteStore(filepath.Join(dataDir, "tolmol.db"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	return st
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
}

func prettyJSON(v any) string {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Sprintf("%+v", v)
	}
	return string(out)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func printUsage() {
	fmt.Println("bargainctl — trip bargaining CLI")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  trip new             Queue a trip for the daemon (--dest, --budget-min, --budget-max, ...)")
	fmt.Println("  trip status <id>     Show one trip")
	fmt.Println("  trip list            List trips (--active, --limit)")
	fmt.Println("  sessions <trip-id>   List a trip's negotiation sessions (--transcript)")
	fmt.Println("  vendors show <phone> Show a vendor's record and trust stats")
	fmt.Println("  vendors blacklist <phone>  Exclude a vendor permanently (--reason)")
	fmt.Println("  logs                 Tail the daemon's recent log entries (-n, -level)")
	fmt.Println("  run                  Dry-run one trip in process against simulated vendors")
	fmt.Println("  config validate <p>  Validate config file")
	fmt.Println()
	fmt.Println("Environment:")
	fmt.Println("  TOLMOL_DATA_DIR      Daemon data directory (default: /data)")
}
