// Command cube is the terminal companion for speedcubing: a scramble-driven
// stopwatch, a solver front-end and world-record statistics.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/and161185/speedcube/internal/authsession"
	"github.com/and161185/speedcube/internal/client"
	"github.com/and161185/speedcube/internal/convert"
	"github.com/and161185/speedcube/internal/cube"
	"github.com/and161185/speedcube/internal/model"
	"github.com/and161185/speedcube/internal/scramble"
	"github.com/and161185/speedcube/internal/stats"
	"github.com/and161185/speedcube/internal/timer"
	"github.com/and161185/speedcube/internal/tui"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

const alreadySolved = "The cube is already solved"

func usage() {
	fmt.Fprintf(os.Stderr, `cube CLI
Usage:
  cube [-api URL] [-log file] <cmd> [args]

Commands:
  version
  register   -u <username> -p <password>
  login      -u <username> -p <password>     (saves token)
  logout
  whoami
  timer                                      (space: start/stop, r: reset, q: quit)
  solve      -f <54 facelets> | -file <path|->
  stats                                      (3x3x3 world records)
  history                                    (your saved solves)
  dump                                       (saved solves as JSON)
`)
	os.Exit(2)
}

// main dispatches subcommands.
func main() {
	api := flag.String("api", envOr("SPEEDCUBE_API_URL", "http://localhost:8000"), "backend base URL")
	logPath := flag.String("log", "", "write debug logs to this file")
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() < 1 {
		usage()
	}
	cmd, args := flag.Arg(0), flag.Args()[1:]

	logger, err := newLogger(*logPath)
	if err != nil {
		fail(err)
	}
	defer func() { _ = logger.Sync() }()

	apiClient := client.New(*api, client.WithLogger(logger.Named("api")))
	session := authsession.NewManager(authsession.DefaultFileStore(), authsession.WithLogger(logger.Named("auth")))
	session.Restore()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	switch cmd {

	case "version":
		fmt.Printf("cube %s (%s)\n", version, buildDate)

	case "register":
		u, p := credentials("register", args)
		if _, err := apiClient.Register(ctx, u, p); err != nil {
			fail(errors.New(client.UserMessage(err, "Registration failed")))
		}
		fmt.Println("registered; now run: cube login -u", u)

	case "login":
		u, p := credentials("login", args)
		tok, err := apiClient.Token(ctx, u, p)
		if err != nil {
			fail(errors.New(client.UserMessage(err, "Login failed")))
		}
		if err := session.Login(tok); err != nil {
			fail(fmt.Errorf("server returned an unusable token: %w", err))
		}
		fmt.Println("ok")

	case "logout":
		session.Logout()
		fmt.Println("logged out")

	case "whoami":
		fmt.Println(whoami(session))

	case "timer":
		// the stopwatch runs until the user quits, not under the request timeout
		runTimer(apiClient, session, logger)

	case "solve":
		fs := flag.NewFlagSet("solve", flag.ExitOnError)
		raw := fs.String("f", "", "54 facelets in U,R,F,D,L,B order")
		file := fs.String("file", "", "read facelets from file ('-' for stdin)")
		_ = fs.Parse(args)
		in, err := readFacelets(*raw, *file, os.Stdin)
		if err != nil {
			fail(err)
		}
		f, err := cube.Parse(in)
		if err != nil {
			fail(err)
		}
		if f.IsSolved() {
			fmt.Println(alreadySolved)
			return
		}
		sol, err := apiClient.Solve(ctx, f)
		if err != nil {
			fail(errors.New(client.UserMessage(err, "An unexpected error occurred.")))
		}
		fmt.Println(sol)

	case "stats":
		wr, err := apiClient.Stats(ctx)
		if err != nil {
			fail(errors.New(client.UserMessage(err, "Failed to fetch data from the backend API.")))
		}
		fmt.Print(formatRecords(wr))

	case "history":
		tok, ok := session.ValidToken()
		if !ok {
			fail(errors.New("not logged in (run: cube login)"))
		}
		list, err := apiClient.ListSolves(ctx, tok)
		if err != nil {
			fail(errors.New(client.UserMessage(err, "Failed to load solves")))
		}
		fmt.Print(formatHistory(list))

	case "dump":
		// machine-readable history for scripts
		tok, ok := session.ValidToken()
		if !ok {
			fail(errors.New("not logged in (run: cube login)"))
		}
		list, err := apiClient.ListSolves(ctx, tok)
		if err != nil {
			fail(err)
		}
		printJSON(os.Stdout, list)

	default:
		usage()
	}
}

func runTimer(api *client.Client, session *authsession.Manager, logger *zap.Logger) {
	e := timer.New(scramble.New(),
		timer.WithLogger(logger.Named("timer")),
		timer.WithTokens(session),
		timer.WithPersister(api),
	)
	runErr := tui.RunTimer(context.Background(), e, session)

	cctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := e.Close(cctx); err != nil {
		logger.Warn("timer close", zap.Error(err))
	}
	if runErr != nil {
		fail(runErr)
	}
}

func credentials(name string, args []string) (string, string) {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	u := fs.String("u", "", "username")
	p := fs.String("p", "", "password")
	_ = fs.Parse(args)
	if *u == "" || *p == "" {
		fmt.Fprintln(os.Stderr, "need -u and -p")
		os.Exit(1)
	}
	return *u, *p
}

// ---- output ----

func whoami(r authsession.Reader) string {
	s, ok := r.Current()
	if !ok {
		return "not logged in"
	}
	return fmt.Sprintf("%s (token valid until %s)", s.Claims.Subject, s.Claims.ExpiresAt.Local().Format(time.DateTime))
}

func formatRecords(wr model.WorldRecords) string {
	ev, ok := wr.Records[timer.Event333]
	if !ok {
		return "no 3x3x3 records available\n"
	}
	var b strings.Builder
	b.WriteString("Cubing World Records (3x3x3)\n")
	for _, row := range []struct {
		label string
		rec   model.Record
	}{{"Single", ev.Single}, {"Average", ev.Average}} {
		fmt.Fprintf(&b, "  %-8s %8s  %s at %s (%d)\n",
			row.label, stats.FormatHundredths(row.rec.Result),
			row.rec.PersonName, row.rec.CompetitionName, row.rec.Year)
	}
	return b.String()
}

func formatHistory(list []convert.SolveResponse) string {
	if len(list) == 0 {
		return "no saved solves\n"
	}
	var b strings.Builder
	times := make([]int64, 0, len(list))
	for i, s := range list {
		times = append(times, s.TimeMs)
		fmt.Fprintf(&b, "%4d. %9s  %s  %s\n", i+1, stats.FormatMillis(s.TimeMs),
			s.Timestamp.Local().Format(time.DateTime), s.Scramble)
	}
	sum := stats.Summarize(times)
	fmt.Fprintf(&b, "\nSolves: %d  Best: %s  Worst: %s  Ao5: %s\n", sum.Count,
		stats.FormatOptional(sum.Best), stats.FormatOptional(sum.Worst), stats.FormatOptional(sum.Ao5))
	return b.String()
}

// ---- utils ----

func readFacelets(raw, file string, stdin io.Reader) (string, error) {
	switch {
	case raw != "" && file != "":
		return "", errors.New("use either -f or -file")
	case raw != "":
		return raw, nil
	case file == "-":
		b, err := io.ReadAll(stdin)
		return strings.TrimSpace(string(b)), err
	case file != "":
		b, err := os.ReadFile(file)
		return strings.TrimSpace(string(b)), err
	default:
		return "", errors.New("need -f or -file")
	}
}

func newLogger(path string) (*zap.Logger, error) {
	if path == "" {
		return zap.NewNop(), nil
	}
	cfg := zap.NewDevelopmentConfig()
	cfg.OutputPaths = []string{path}
	cfg.ErrorOutputPaths = []string{path}
	return cfg.Build()
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func printJSON(w io.Writer, v any) {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

func fail(err error) {
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}
