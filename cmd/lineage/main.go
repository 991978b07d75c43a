// lineage is the command-line surface of the dependency graph engine:
// one process invocation loads the graph snapshot, performs a batch of
// operations, appends the audit events, saves the snapshot back, and
// exits. Exit code 0 on success, 1 on any engine error.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dd0wney/cluso-lineage/pkg/arbiter"
	"github.com/dd0wney/cluso-lineage/pkg/audit"
	"github.com/dd0wney/cluso-lineage/pkg/config"
	"github.com/dd0wney/cluso-lineage/pkg/graph"
	"github.com/dd0wney/cluso-lineage/pkg/logging"
	"github.com/dd0wney/cluso-lineage/pkg/metrics"
	"github.com/dd0wney/cluso-lineage/pkg/scheduler"
	"github.com/dd0wney/cluso-lineage/pkg/snapshot"
	"github.com/dd0wney/cluso-lineage/pkg/validation"
)

const usage = `lineage - dependency graph with staleness propagation and task scheduling

Usage: lineage [-config FILE] COMMAND [ARGS]

Graph commands:
  add ID TYPE TITLE [-deps a,b,c] [-tags x,y] [-notes TEXT]
  depend FROM TO          add a dependency edge (FROM depends on TO)
  remove-dep FROM TO      remove a dependency edge
  rewire FROM OLD NEW     atomically replace FROM->OLD with FROM->NEW
  status ID STATUS        set a node's status directly
  invalidate ID           mark ID and all transitive dependents stale
  show ID                 print one node
  validate                report integrity issues (exit 1 if any found)

Analysis commands:
  impact ID               what would go stale if ID changed
  lineage ID              everything ID is built from
  stale                   stale nodes in safe recomputation order

Task commands:
  plan                    plannable, blocked and active tasks
  claim ID [-arbiter]     claim a plannable task (pending -> active)
  parallel                independent task groups, wave by wave

History:
  archive                 write a compressed dump + manifest entry
`

func main() {
	configPath := flag.String("config", "lineage.yaml", "Config file")
	flag.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	flag.Parse()

	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(1)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fail(err)
	}

	logger := logging.NewJSONLogger(os.Stderr, logging.ParseLevel(cfg.LogLevel))

	app := &app{cfg: cfg, log: logger, metrics: metrics.NewRegistry()}
	command := flag.Arg(0)
	args := flag.Args()[1:]

	if err := app.run(command, args); err != nil {
		fail(err)
	}
}

func fail(err error) {
	fmt.Fprintf(os.Stderr, "❌ %v\n", err)
	os.Exit(1)
}

type app struct {
	cfg     *config.Config
	log     logging.Logger
	metrics *metrics.Registry
}

func (a *app) run(command string, args []string) error {
	switch command {
	case "add":
		return a.cmdAdd(args)
	case "depend":
		return a.cmdDepend(args)
	case "remove-dep":
		return a.cmdRemoveDep(args)
	case "rewire":
		return a.cmdRewire(args)
	case "status":
		return a.cmdStatus(args)
	case "invalidate":
		return a.cmdInvalidate(args)
	case "show":
		return a.cmdShow(args)
	case "validate":
		return a.cmdValidate(args)
	case "impact":
		return a.cmdImpact(args)
	case "lineage":
		return a.cmdLineage(args)
	case "stale":
		return a.cmdStale(args)
	case "plan":
		return a.cmdPlan(args)
	case "claim":
		return a.cmdClaim(args)
	case "parallel":
		return a.cmdParallel(args)
	case "archive":
		return a.cmdArchive(args)
	case "help", "-h", "--help":
		fmt.Print(usage)
		return nil
	}
	return fmt.Errorf("unknown command %q (try: lineage help)", command)
}

// session bundles one load-mutate-save cycle.
type session struct {
	g      *graph.Graph
	guard  *snapshot.Guard
	events []audit.Event
}

func (a *app) load() (*session, error) {
	g, err := snapshot.LoadOrInit(a.cfg.GraphPath())
	if err != nil {
		return nil, err
	}
	return &session{g: g, guard: snapshot.NewGuard(g)}, nil
}

// commit saves the snapshot and appends the session's events. Nothing is
// written when no mutation happened.
func (a *app) commit(s *session) error {
	if len(s.events) == 0 {
		return nil
	}

	if a.cfg.Guarded {
		if err := snapshot.SaveGuarded(a.cfg.GraphPath(), s.g, s.guard); err != nil {
			return err
		}
	} else if err := snapshot.Save(a.cfg.GraphPath(), s.g); err != nil {
		return err
	}

	ctx := context.Background()
	sink, closeSink, err := a.openSink(ctx)
	if err != nil {
		return err
	}
	defer closeSink()

	if err := audit.RecordAll(ctx, sink, s.events); err != nil {
		return fmt.Errorf("graph saved but event log append failed: %w", err)
	}

	a.metrics.ObserveEvents(s.events)
	a.metrics.ObserveGraph(s.g)

	a.log.Debug("session committed",
		logging.Count(len(s.events)), logging.Path(a.cfg.GraphPath()))
	return nil
}

// openSink opens the Postgres sink when configured, the JSONL log otherwise.
func (a *app) openSink(ctx context.Context) (audit.Sink, func(), error) {
	if a.cfg.Postgres.URL != "" {
		store, err := audit.NewPGStore(ctx, a.cfg.Postgres.URL)
		if err != nil {
			return nil, nil, err
		}
		return store, func() { store.Close() }, nil
	}

	logger, err := audit.NewFileLogger(a.cfg.EventLogPath())
	if err != nil {
		return nil, nil, err
	}
	return logger, func() { logger.Close() }, nil
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := parts[:0]
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func (a *app) cmdAdd(args []string) error {
	fs := flag.NewFlagSet("add", flag.ExitOnError)
	deps := fs.String("deps", "", "Comma-separated dependency ids")
	tags := fs.String("tags", "", "Comma-separated tags")
	notes := fs.String("notes", "", "Free-form notes")

	if len(args) < 3 {
		return errors.New("usage: lineage add ID TYPE TITLE [-deps a,b] [-tags x,y] [-notes TEXT]")
	}
	id, typeStr, title := args[0], args[1], args[2]
	if err := fs.Parse(args[3:]); err != nil {
		return err
	}

	record := &validation.NodeRecord{
		ID:        id,
		Type:      typeStr,
		Title:     title,
		DependsOn: splitList(*deps),
		Tags:      splitList(*tags),
		Notes:     *notes,
	}
	if err := validation.ValidateNodeRecord(record); err != nil {
		return err
	}
	nodeType, _ := graph.ParseNodeType(typeStr)

	s, err := a.load()
	if err != nil {
		return err
	}

	event, err := s.g.AddNode(id, nodeType, title, record.DependsOn, &graph.NodeOptions{
		Tags:  record.Tags,
		Notes: record.Notes,
	})
	if err != nil {
		return err
	}
	s.events = append(s.events, event)

	if err := a.commit(s); err != nil {
		return err
	}
	fmt.Printf("✅ Added %s (%s)\n", id, nodeType)
	return nil
}

func (a *app) cmdDepend(args []string) error {
	if len(args) != 2 {
		return errors.New("usage: lineage depend FROM TO")
	}

	s, err := a.load()
	if err != nil {
		return err
	}
	event, err := s.g.AddDependency(args[0], args[1])
	if err != nil {
		return err
	}
	s.events = append(s.events, event)

	if err := a.commit(s); err != nil {
		return err
	}
	fmt.Printf("✅ %s now depends on %s\n", args[0], args[1])
	return nil
}

func (a *app) cmdRemoveDep(args []string) error {
	if len(args) != 2 {
		return errors.New("usage: lineage remove-dep FROM TO")
	}

	s, err := a.load()
	if err != nil {
		return err
	}
	event, err := s.g.RemoveDependency(args[0], args[1])
	if err != nil {
		return err
	}
	s.events = append(s.events, event)

	if err := a.commit(s); err != nil {
		return err
	}
	fmt.Printf("✅ %s no longer depends on %s\n", args[0], args[1])
	return nil
}

func (a *app) cmdRewire(args []string) error {
	if len(args) != 3 {
		return errors.New("usage: lineage rewire FROM OLD NEW")
	}

	s, err := a.load()
	if err != nil {
		return err
	}
	events, err := s.g.Rewire(args[0], args[1], args[2])
	if err != nil {
		return err
	}
	s.events = append(s.events, events...)

	if err := a.commit(s); err != nil {
		return err
	}
	fmt.Printf("✅ %s rewired: %s -> %s\n", args[0], args[1], args[2])
	return nil
}

func (a *app) cmdStatus(args []string) error {
	if len(args) != 2 {
		return errors.New("usage: lineage status ID STATUS")
	}
	status, ok := graph.ParseStatus(args[1])
	if !ok {
		return fmt.Errorf("unknown status %q (valid|stale|pending|active|blocked)", args[1])
	}

	s, err := a.load()
	if err != nil {
		return err
	}
	event, err := s.g.SetStatus(args[0], status)
	if err != nil {
		return err
	}
	s.events = append(s.events, event)

	if err := a.commit(s); err != nil {
		return err
	}
	fmt.Printf("✅ %s: %s\n", args[0], event.Detail)
	return nil
}

func (a *app) cmdInvalidate(args []string) error {
	if len(args) != 1 {
		return errors.New("usage: lineage invalidate ID")
	}

	s, err := a.load()
	if err != nil {
		return err
	}
	events, err := s.g.Invalidate(args[0])
	if err != nil {
		return err
	}
	s.events = append(s.events, events...)
	a.metrics.ObserveInvalidation(len(events))

	if err := a.commit(s); err != nil {
		return err
	}
	if len(events) == 0 {
		fmt.Printf("Nothing to do: %s and its dependents are already stale\n", args[0])
		return nil
	}
	fmt.Printf("⚠️  %d node(s) marked stale:\n", len(events))
	for _, e := range events {
		fmt.Printf("   %s\n", e.NodeID)
	}
	return nil
}

func (a *app) cmdShow(args []string) error {
	if len(args) != 1 {
		return errors.New("usage: lineage show ID")
	}

	s, err := a.load()
	if err != nil {
		return err
	}
	node, ok := s.g.Node(args[0])
	if !ok {
		return &graph.GraphError{Op: "Show", NodeID: args[0], Cause: graph.ErrUnknownNode}
	}

	fmt.Printf("%s  [%s]  %s\n", node.ID, node.Type, node.Title)
	fmt.Printf("   status:  %s (v%d)\n", node.Status, node.Version)
	if node.LastValidated != nil {
		fmt.Printf("   last validated: %s\n", node.LastValidated.Format(time.RFC3339))
	}
	if len(node.DependsOn) > 0 {
		fmt.Printf("   depends on: %s\n", strings.Join(node.DependsOn, ", "))
	}
	if len(node.Tags) > 0 {
		fmt.Printf("   tags: %s\n", strings.Join(node.Tags, ", "))
	}
	if node.Notes != "" {
		fmt.Printf("   notes: %s\n", node.Notes)
	}
	return nil
}

func (a *app) cmdValidate(args []string) error {
	s, err := a.load()
	if err != nil {
		return err
	}

	issues := s.g.Validate()
	a.metrics.ObserveValidation(issues)
	if len(issues) == 0 {
		fmt.Printf("✅ Graph is consistent (%d nodes, %d edges)\n", s.g.NodeCount(), s.g.EdgeCount())
		return nil
	}

	fmt.Printf("⚠️  %d issue(s):\n", len(issues))
	for _, issue := range issues {
		fmt.Printf("   [%s] %s\n", issue.Kind, issue.Message)
	}
	return fmt.Errorf("%d integrity issue(s) found", len(issues))
}

func (a *app) cmdImpact(args []string) error {
	if len(args) != 1 {
		return errors.New("usage: lineage impact ID")
	}

	s, err := a.load()
	if err != nil {
		return err
	}
	result, err := s.g.Impact(args[0])
	if err != nil {
		return err
	}

	if result.CascadeCount == 0 {
		fmt.Printf("Nothing depends on %s\n", args[0])
		return nil
	}
	fmt.Printf("Invalidating %s would make %d node(s) stale:\n", args[0], result.CascadeCount)
	for _, t := range graph.NodeTypes {
		if n := result.ByType[t]; n > 0 {
			fmt.Printf("   %-12s %d\n", t, n)
		}
	}
	for _, id := range result.Affected {
		fmt.Printf("   %s\n", id)
	}
	return nil
}

func (a *app) cmdLineage(args []string) error {
	if len(args) != 1 {
		return errors.New("usage: lineage lineage ID")
	}

	s, err := a.load()
	if err != nil {
		return err
	}
	upstream, err := s.g.Upstream(args[0])
	if err != nil {
		return err
	}

	if len(upstream) == 0 {
		fmt.Printf("%s has no dependencies\n", args[0])
		return nil
	}
	fmt.Printf("%s is built from %d node(s), dependency order:\n", args[0], len(upstream))
	for _, id := range upstream {
		node := s.g.Nodes[id]
		fmt.Printf("   %s  [%s]  %s\n", id, node.Type, node.Status)
	}
	return nil
}

func (a *app) cmdStale(args []string) error {
	s, err := a.load()
	if err != nil {
		return err
	}

	stale := s.g.StaleNodes()
	if len(stale) == 0 {
		fmt.Println("✅ Nothing is stale")
		return nil
	}
	fmt.Printf("⚠️  %d stale node(s), safe recomputation order:\n", len(stale))
	for _, id := range stale {
		fmt.Printf("   %s  [%s]\n", id, s.g.Nodes[id].Type)
	}
	return nil
}

func (a *app) cmdPlan(args []string) error {
	s, err := a.load()
	if err != nil {
		return err
	}

	plannable := scheduler.Plannable(s.g)
	blocked := scheduler.Blocked(s.g)
	active := scheduler.Active(s.g)

	fmt.Printf("Ready to start (%d):\n", len(plannable))
	for _, t := range plannable {
		fmt.Printf("   %s  %s\n", t.ID, t.Title)
	}
	fmt.Printf("In progress (%d):\n", len(active))
	for _, t := range active {
		fmt.Printf("   %s  %s\n", t.ID, t.Title)
	}
	fmt.Printf("Blocked (%d):\n", len(blocked))
	for _, b := range blocked {
		fmt.Printf("   %s  waiting on: %s\n", b.Node.ID, strings.Join(b.Unmet, ", "))
	}
	return nil
}

func (a *app) cmdClaim(args []string) error {
	fs := flag.NewFlagSet("claim", flag.ExitOnError)
	viaArbiter := fs.Bool("arbiter", false, "Route the claim through the running arbiter")

	if len(args) < 1 {
		return errors.New("usage: lineage claim ID [-arbiter]")
	}
	taskID := args[0]
	if err := fs.Parse(args[1:]); err != nil {
		return err
	}

	if *viaArbiter {
		client, err := arbiter.Dial(a.cfg.Arbiter.Addr, 5*time.Second)
		if err != nil {
			return err
		}
		defer client.Close()

		if _, err := client.Claim(taskID); err != nil {
			return err
		}
		fmt.Printf("✅ Claimed %s (via arbiter)\n", taskID)
		return nil
	}

	s, err := a.load()
	if err != nil {
		return err
	}
	event, err := scheduler.Claim(s.g, taskID)
	if err != nil {
		return err
	}
	s.events = append(s.events, event)

	if err := a.commit(s); err != nil {
		return err
	}
	fmt.Printf("✅ Claimed %s\n", taskID)
	return nil
}

func (a *app) cmdParallel(args []string) error {
	s, err := a.load()
	if err != nil {
		return err
	}

	groups := scheduler.ParallelGroups(s.g)
	if len(groups) == 0 {
		fmt.Println("No plannable tasks")
		return nil
	}
	for i, group := range groups {
		fmt.Printf("Wave %d (%d task(s) in parallel):\n", i+1, len(group))
		for _, t := range group {
			fmt.Printf("   %s  %s\n", t.ID, t.Title)
		}
	}
	return nil
}

func (a *app) cmdArchive(args []string) error {
	s, err := a.load()
	if err != nil {
		return err
	}

	entry, err := snapshot.Archive(a.cfg.ArchiveDir(), s.g, time.Now())
	if err != nil {
		return err
	}
	fmt.Printf("✅ Archived %s (%d nodes, %d edges)\n", entry.File, entry.NodeCount, entry.EdgeCount)

	if pruned, err := snapshot.Prune(a.cfg.ArchiveDir(), a.cfg.Archive.Keep); err != nil {
		return err
	} else if pruned > 0 {
		fmt.Printf("   pruned %d old dump(s)\n", pruned)
	}

	if a.cfg.Archive.S3.Bucket != "" {
		ctx := context.Background()
		uploader, err := snapshot.NewS3Archiver(ctx, a.cfg.Archive.S3)
		if err != nil {
			return err
		}
		key, err := uploader.Upload(ctx, filepath.Join(a.cfg.ArchiveDir(), entry.File))
		if err != nil {
			return err
		}
		fmt.Printf("   uploaded to s3://%s/%s\n", a.cfg.Archive.S3.Bucket, key)
	}
	return nil
}
