// The evaluator grades one submission against its test data and writes
// a result envelope. It runs inside the sandbox with the workspace as
// its only filesystem surface:
//
//	evaluator <code_file> <language> <test_data_file> <output_file> [timeout_seconds]
//
// The exit code is 0 when grading produced a result envelope, even a
// failing one; a non-zero exit means the evaluator itself broke.
package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"hushhire/internal/common/db"
	"hushhire/internal/evaluation/harness"
)

const defaultTimeoutSeconds = 30

func main() {
	if len(os.Args) < 5 {
		fmt.Fprintln(os.Stderr, "usage: evaluator <code_file> <language> <test_data_file> <output_file> [timeout_seconds]")
		os.Exit(2)
	}
	codeFile := os.Args[1]
	language := os.Args[2]
	testDataFile := os.Args[3]
	outputFile := os.Args[4]

	timeoutSeconds := defaultTimeoutSeconds
	if len(os.Args) > 5 {
		if n, err := strconv.Atoi(os.Args[5]); err == nil && n > 0 {
			timeoutSeconds = n
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(timeoutSeconds)*time.Second)
	defer cancel()

	env := evaluate(ctx, codeFile, language, testDataFile)
	if err := writeEnvelope(outputFile, env); err != nil {
		fmt.Fprintf(os.Stderr, "write output failed: %v\n", err)
		os.Exit(1)
	}
	if env.Status == harness.StatusError {
		fmt.Fprintln(os.Stderr, env.Message)
		os.Exit(1)
	}
}

func evaluate(ctx context.Context, codeFile, language, testDataFile string) harness.Envelope {
	td, err := harness.LoadTestData(testDataFile)
	if err != nil {
		return harness.NewErrorEnvelope(fmt.Sprintf("load test data: %v", err), "")
	}
	kind, err := td.Kind()
	if err != nil {
		return harness.NewErrorEnvelope(err.Error(), "")
	}

	switch kind {
	case "function":
		return evaluateFunction(ctx, codeFile, language, td)
	case "structural":
		return evaluateStructural(codeFile, td)
	case "query":
		return evaluateQuery(ctx, codeFile, td)
	default:
		return harness.NewErrorEnvelope(fmt.Sprintf("unknown test data kind %q", kind), "")
	}
}

// evaluateFunction spawns the language shim and drives the submission's
// function over the invocation protocol. One process serves the whole
// run so stateful submissions keep their state between test cases.
func evaluateFunction(ctx context.Context, codeFile, language string, td *harness.TestData) harness.Envelope {
	argv, err := shimArgv(language, codeFile)
	if err != nil {
		return harness.NewErrorEnvelope(err.Error(), "")
	}
	invoker, err := harness.NewProcessInvoker(ctx, argv...)
	if err != nil {
		return harness.NewErrorEnvelope(fmt.Sprintf("start %s runtime: %v", language, err), "")
	}
	return harness.NewFunctionHarness(invoker).Run(ctx, td)
}

// shimArgv returns the command that loads the submission and answers
// invocation requests on stdin/stdout. The shim scripts ship with the
// evaluator image; env vars override their locations for development.
func shimArgv(language, codeFile string) ([]string, error) {
	switch language {
	case "python":
		shim := envOr("EVALUATOR_PYTHON_SHIM", "/opt/evaluator/invoke.py")
		return []string{envOr("EVALUATOR_PYTHON", "python3"), shim, codeFile}, nil
	case "javascript":
		shim := envOr("EVALUATOR_NODE_SHIM", "/opt/evaluator/invoke.js")
		return []string{envOr("EVALUATOR_NODE", "node"), shim, codeFile}, nil
	default:
		return nil, fmt.Errorf("no runtime shim for language %q", language)
	}
}

func evaluateStructural(codeFile string, td *harness.TestData) harness.Envelope {
	submission, err := os.ReadFile(codeFile)
	if err != nil {
		return harness.NewErrorEnvelope(fmt.Sprintf("read submission: %v", err), "")
	}
	return harness.NewStructuralHarness().Run(string(submission), td)
}

// evaluateQuery grades SQL submissions. Set EVALUATOR_PG_DSN to grade
// against a disposable PostgreSQL database, which the canned schema
// targets. Without a DSN the run falls back to in-memory SQLite, which
// only works for questions shipping their own SQLite-compatible schema.
func evaluateQuery(ctx context.Context, codeFile string, td *harness.TestData) harness.Envelope {
	submission, err := os.ReadFile(codeFile)
	if err != nil {
		return harness.NewErrorEnvelope(fmt.Sprintf("read submission: %v", err), "")
	}

	var sqlDB *sql.DB
	if dsn := os.Getenv("EVALUATOR_PG_DSN"); dsn != "" {
		sqlDB, err = sql.Open("postgres", dsn)
	} else {
		sqlDB, err = sql.Open("sqlite3", ":memory:")
	}
	if err != nil {
		return harness.NewErrorEnvelope(fmt.Sprintf("open evaluation database: %v", err), "")
	}
	defer func() {
		_ = sqlDB.Close()
	}()

	return harness.NewQueryHarness(db.WrapSQLDB(sqlDB)).Run(ctx, string(submission), td)
}

func writeEnvelope(path string, env harness.Envelope) error {
	raw, err := json.Marshal(env)
	if err != nil {
		return err
	}
	return os.WriteFile(path, raw, 0o644)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
