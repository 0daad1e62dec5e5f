package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/vertigo/eventtimeline/internal/export"
	"github.com/vertigo/eventtimeline/internal/model"
	"github.com/vertigo/eventtimeline/internal/scheduler"
	"github.com/vertigo/eventtimeline/internal/service"
)

// cmdPlan returns 0 on success, 1 when the request cannot be planned and 2
// on usage errors.
func cmdPlan(args []string, defaults scheduler.Options, stdin io.Reader, stdout, stderr io.Writer) int {
	flags := flag.NewFlagSet("plan", flag.ContinueOnError)
	flags.SetOutput(stderr)
	format := flags.String("format", string(model.FormatJSON), "output format: json or ics")
	lead := flags.Int("lead", -1, "lead setup minutes (negative keeps the configured value)")
	crew := flags.Bool("crew", false, "include crew entries in ICS output")
	calls := flags.Bool("calls", false, "include call times in ICS output")
	strict := flags.Bool("strict", false, "fail when the plan runs past curfew")
	if err := flags.Parse(args); err != nil {
		return 2
	}
	if flags.NArg() != 1 {
		fmt.Fprintln(stderr, "planner: plan needs exactly one request file")
		return 2
	}
	out := model.OutputFormat(strings.ToLower(*format))
	if out != model.FormatJSON && out != model.FormatICS {
		fmt.Fprintf(stderr, "planner: unknown format %q\n", *format)
		return 2
	}

	req, err := readRequest(flags.Arg(0), stdin)
	if err != nil {
		fmt.Fprintf(stderr, "planner: %v\n", err)
		return 1
	}
	if err := validator.New().Struct(req); err != nil {
		fmt.Fprintf(stderr, "planner: invalid request: %v\n", err)
		return 1
	}
	if *lead >= 0 {
		if req.Options == nil {
			req.Options = &model.PlanOverrides{}
		}
		req.Options.LeadSetupMinutes = lead
	}
	if *strict {
		req.RejectOnOverrun = true
	}

	svc := service.NewTimelineService(defaults, nil)
	resp, err := svc.Plan(context.Background(), req)
	if err != nil {
		describe(stderr, err)
		return 1
	}
	if resp.Overrun != nil {
		fmt.Fprintf(stderr, "planner: warning: plan runs %d minutes past %s\n",
			resp.Overrun.Minutes, resp.Overrun.Limit.Format("15:04"))
	}

	if out == model.FormatICS {
		io.WriteString(stdout, export.ICS(resp.Result, export.ICSOptions{IncludeCrew: *crew, IncludeCallTimes: *calls}))
		return 0
	}
	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(resp); err != nil {
		fmt.Fprintf(stderr, "planner: %v\n", err)
		return 1
	}
	return 0
}

// readRequest decodes a request file. ".json" files go through
// encoding/json, everything else through YAML. "-" reads stdin as YAML.
func readRequest(path string, stdin io.Reader) (*model.PlanRequest, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read request: %w", err)
	}

	var req model.PlanRequest
	if strings.EqualFold(filepath.Ext(path), ".json") {
		err = json.Unmarshal(data, &req)
	} else {
		err = yaml.Unmarshal(data, &req)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return &req, nil
}

func describe(w io.Writer, err error) {
	info, ok := service.DescribeError(err)
	if !ok {
		fmt.Fprintf(w, "planner: %v\n", err)
		return
	}
	fmt.Fprintf(w, "planner: %s: %s\n", info.Code, info.Message)
	var cycle *scheduler.CyclicDependencyError
	if errors.As(err, &cycle) {
		fmt.Fprintf(w, "  cycle: %s\n", strings.Join(cycle.Cycle, " -> "))
	}
}
